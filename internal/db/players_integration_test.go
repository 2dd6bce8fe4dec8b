//go:build integration

package db

import (
	"context"
	"testing"

	"github.com/stretchr/testify/suite"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/catalog"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/registry"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/scheduler"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

type PlayersPostgresSuite struct {
	suite.Suite
	container *tcpostgres.PostgresContainer
	players   *PlayersPostgres
}

func TestPlayersPostgresSuite(t *testing.T) {
	suite.Run(t, new(PlayersPostgresSuite))
}

func (s *PlayersPostgresSuite) SetupSuite() {
	ctx := context.Background()

	container, err := tcpostgres.Run(ctx, "postgres:16-alpine",
		tcpostgres.WithDatabase("catalog"),
		tcpostgres.WithUsername("catalog"),
		tcpostgres.WithPassword("catalog"),
		tcpostgres.BasicWaitStrategies(),
	)
	s.Require().NoError(err)
	s.container = container

	dsn, err := container.ConnectionString(ctx, "sslmode=disable")
	s.Require().NoError(err)

	s.players, err = NewPlayersPostgres(dsn)
	s.Require().NoError(err)
	s.Require().NoError(s.players.Ping(ctx))
	s.Require().NoError(s.players.EnsureSchema(ctx))
}

func (s *PlayersPostgresSuite) TearDownSuite() {
	if s.players != nil {
		s.players.Close()
	}
	if s.container != nil {
		_ = s.container.Terminate(context.Background())
	}
}

func (s *PlayersPostgresSuite) seedMLB() []models.PlayerRecord {
	records := []models.PlayerRecord{
		{ID: "ruthba01", Name: "Babe Ruth", Sport: models.SportMLB, Team: "New York Yankees", Position: "RF", Number: "3", HallOfFame: true, Stats: map[string]float64{"hr": 714}},
		{ID: "ohtansh01", Name: "Shohei Ohtani", Sport: models.SportMLB, Team: "Los Angeles Dodgers", Position: "DH", Number: "17", PhotoURL: "https://img.example/ohtani.png"},
	}
	s.Require().NoError(s.players.ReplaceSport(context.Background(), models.SportMLB, records))
	return records
}

func (s *PlayersPostgresSuite) TestLoadSportKeepsOrder() {
	want := s.seedMLB()

	got, err := s.players.Dataset(models.SportMLB).Load(context.Background())
	s.Require().NoError(err)
	s.Equal(want, got)
}

func (s *PlayersPostgresSuite) TestReplaceSportIsScoped() {
	s.seedMLB()
	s.Require().NoError(s.players.ReplaceSport(context.Background(), models.SportNFL, []models.PlayerRecord{
		{ID: "RiceJe00", Name: "Jerry Rice", Sport: models.SportNFL},
	}))

	mlb, err := s.players.LoadSport(context.Background(), models.SportMLB)
	s.Require().NoError(err)
	s.Len(mlb, 2)

	none, err := s.players.LoadSport(context.Background(), models.SportNBA)
	s.Require().NoError(err)
	s.NotNil(none)
	s.Empty(none)
}

func (s *PlayersPostgresSuite) TestCatalogServesPostgresSource() {
	s.seedMLB()

	m, err := dataset.ParseManifest([]byte(`
legacy_sport: NBA
sports:
  - sport: NBA
  - sport: MLB
    source: postgres
`))
	s.Require().NoError(err)

	reg, err := registry.FromManifest(m, s.players)
	s.Require().NoError(err)

	sched := scheduler.New(nil)
	sched.Start(context.Background())
	defer sched.Close()

	c := catalog.New(reg, sched)
	s.Require().NoError(c.InitializeAll(context.Background()))

	r, ok := c.GetByID("ruthba01", models.SportMLB)
	s.Require().True(ok)
	s.True(r.HallOfFame)
	s.Equal([]models.PlayerRecord{r}, c.Search("babe", models.SportMLB))
}
