package catalog

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/registry"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/scheduler"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualScheduler queues tasks until the test runs them
type manualScheduler struct {
	mu    sync.Mutex
	tasks []func()
}

func (s *manualScheduler) RunAfterInteractions(task func()) {
	s.mu.Lock()
	s.tasks = append(s.tasks, task)
	s.mu.Unlock()
}

func (s *manualScheduler) pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.tasks)
}

func (s *manualScheduler) runAll() {
	s.mu.Lock()
	tasks := s.tasks
	s.tasks = nil
	s.mu.Unlock()
	for _, task := range tasks {
		task()
	}
}

// countingDataset counts Load calls and can fail or panic on demand
type countingDataset struct {
	contracts.SportDataset
	calls    atomic.Int32
	failures int32 // number of initial calls that fail
	panics   bool
}

func (d *countingDataset) Load(ctx context.Context) ([]models.PlayerRecord, error) {
	n := d.calls.Add(1)
	if d.panics {
		panic("corrupt data set")
	}
	if n <= d.failures {
		return nil, errors.New("data set unavailable")
	}
	return d.SportDataset.Load(ctx)
}

func nbaRecords() []models.PlayerRecord {
	return []models.PlayerRecord{
		{ID: "jamesle01", Name: "LeBron James", Team: "Los Angeles Lakers", Position: "SF", Number: "23", PhotoURL: "https://img.example/lebron.png"},
		{ID: "23", Name: "Numbered Guard", Team: "Chicago Bulls", Position: "SG"},
		{ID: "curryst01", Name: "Stephen Curry", Team: "Golden State Warriors", Position: "PG", Number: "30"},
		{ID: "bryanko01", Name: "Kobe Bryant", Team: "Los Angeles Lakers", Position: "SG", Number: "24"},
	}
}

func nflRecords() []models.PlayerRecord {
	return []models.PlayerRecord{
		{ID: "23", Name: "Numbered Back", Team: "Detroit Lions", Position: "RB"},
		{ID: "MahoPa00", Name: "Patrick Mahomes", Team: "Kansas City Chiefs", Position: "QB", Number: "15"},
	}
}

func newTestCatalog(t *testing.T, opts ...Option) (*Catalog, *manualScheduler) {
	t.Helper()

	reg := registry.New(models.SportNBA)
	require.NoError(t, reg.Register(dataset.NewStatic(models.SportNBA, nbaRecords())))
	require.NoError(t, reg.Register(dataset.NewStatic(models.SportNFL, nflRecords())))

	sched := &manualScheduler{}
	return New(reg, sched, opts...), sched
}

func loadAll(t *testing.T, c *Catalog, sched *manualScheduler, sports ...models.Sport) {
	t.Helper()
	for _, s := range sports {
		c.Initialize(s)
	}
	sched.runAll()
	for _, s := range sports {
		require.Equal(t, models.StateLoaded, c.State(s), s)
	}
}

func TestCatalog_LookupsNeverTriggerLoad(t *testing.T) {
	c, sched := newTestCatalog(t)

	assert.Equal(t, models.StateNotLoaded, c.State(models.SportNBA))

	_, ok := c.GetByID("jamesle01", "")
	assert.False(t, ok)
	_, ok = c.GetByID("jamesle01", models.SportNBA)
	assert.False(t, ok)
	assert.Empty(t, c.Search("lebron", models.SportNBA))
	assert.Empty(t, c.GetAll(models.SportNBA))

	assert.Zero(t, sched.pending())
	assert.Equal(t, models.StateNotLoaded, c.State(models.SportNBA))
}

func TestCatalog_InitializeDefersWork(t *testing.T) {
	c, sched := newTestCatalog(t)

	l := c.Initialize(models.SportNBA)
	assert.Equal(t, models.StateLoading, c.State(models.SportNBA))
	assert.Equal(t, models.SportNBA, l.Sport())
	assert.NoError(t, l.Err())

	_, ok := c.GetByID("jamesle01", models.SportNBA)
	assert.False(t, ok, "records must not be visible before the deferred load runs")

	select {
	case <-l.Done():
		t.Fatal("load finished before the scheduler ran it")
	default:
	}

	sched.runAll()

	require.NoError(t, l.Wait(context.Background()))
	assert.Equal(t, models.StateLoaded, c.State(models.SportNBA))

	r, ok := c.GetByID("jamesle01", models.SportNBA)
	require.True(t, ok)
	assert.Equal(t, "LeBron James", r.Name)
	assert.Equal(t, models.SportNBA, r.Sport)
}

func TestCatalog_InitializeIsIdempotent(t *testing.T) {
	reg := registry.New(models.SportNBA)
	ds := &countingDataset{SportDataset: dataset.NewStatic(models.SportNBA, nbaRecords())}
	require.NoError(t, reg.Register(ds))

	sched := &manualScheduler{}
	c := New(reg, sched)

	first := c.Initialize(models.SportNBA)
	second := c.Initialize(models.SportNBA)
	assert.Same(t, first, second)
	assert.Equal(t, 1, sched.pending())

	sched.runAll()
	require.NoError(t, first.Wait(context.Background()))

	third := c.Initialize(models.SportNBA)
	assert.Same(t, first, third)
	assert.Zero(t, sched.pending())
	assert.EqualValues(t, 1, ds.calls.Load())
}

func TestCatalog_UnknownSport(t *testing.T) {
	c, sched := newTestCatalog(t)

	l := c.Initialize(models.SportMLB)
	select {
	case <-l.Done():
	default:
		t.Fatal("unknown sport should resolve immediately")
	}
	assert.ErrorIs(t, l.Err(), ErrUnknownSport)
	assert.Zero(t, sched.pending())
	assert.Equal(t, models.StateNotLoaded, c.State(models.SportMLB))

	_, ok := c.GetByID("23", models.Sport("NHL"))
	assert.False(t, ok)
}

func TestCatalog_CrossSportCollision(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNBA, models.SportNFL)

	nfl, ok := c.GetByID("23", models.SportNFL)
	require.True(t, ok)
	assert.Equal(t, "Numbered Back", nfl.Name)
	assert.Equal(t, models.SportNFL, nfl.Sport)

	nba, ok := c.GetByID("23", models.SportNBA)
	require.True(t, ok)
	assert.Equal(t, "Numbered Guard", nba.Name)

	// Unscoped lookups follow declared order
	unscoped, ok := c.GetByID("23", "")
	require.True(t, ok)
	assert.Equal(t, models.SportNBA, unscoped.Sport)

	composite, ok := c.GetByID("NFL_23", "")
	require.True(t, ok)
	assert.Equal(t, "Numbered Back", composite.Name)
}

func TestCatalog_HintedSportNotLoaded(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNBA)

	_, ok := c.GetByID("23", models.SportNFL)
	assert.False(t, ok, "a sport that is not loaded never answers, even when another sport could")

	_, ok = c.GetByID("NBA_23", models.SportNFL)
	assert.False(t, ok)
}

func TestCatalog_HintMissFallsBack(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNBA, models.SportNFL)

	r, ok := c.GetByID("jamesle01", models.SportNFL)
	require.True(t, ok)
	assert.Equal(t, models.SportNBA, r.Sport)

	r, ok = c.GetByID("NBA_curryst01", models.SportNBA)
	require.True(t, ok)
	assert.Equal(t, "Stephen Curry", r.Name)

	_, ok = c.GetByID("nobody", models.SportNFL)
	assert.False(t, ok)
	_, ok = c.GetByID("", "")
	assert.False(t, ok)
}

func TestCatalog_LegacyBareIDs(t *testing.T) {
	sched := scheduler.New(nil)
	sched.Start(context.Background())
	defer sched.Close()

	c := New(registry.Default(), sched)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.InitializeAll(ctx))

	for _, r := range c.GetAll(models.SportNBA) {
		bare, ok := c.GetByID(r.ID, "")
		require.True(t, ok, r.ID)

		scoped, ok := c.GetByID(models.CompositeKey(models.SportNBA, r.ID), models.SportNBA)
		require.True(t, ok, r.ID)

		if diff := cmp.Diff(scoped, bare); diff != "" {
			t.Errorf("legacy lookup for %s mismatch (-scoped +bare):\n%s", r.ID, diff)
		}
	}
}

func TestCatalog_CompositeRoundTrip(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNBA, models.SportNFL)

	for _, r := range c.GetAll("") {
		got, ok := c.GetByID(r.Key(), r.Sport)
		require.True(t, ok, r.Key())
		if diff := cmp.Diff(r, got); diff != "" {
			t.Errorf("round trip for %s mismatch (-want +got):\n%s", r.Key(), diff)
		}
	}
}

func TestCatalog_GetAll(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNFL)

	nfl := c.GetAll(models.SportNFL)
	require.Len(t, nfl, 2)
	assert.Equal(t, "23", nfl[0].ID)
	assert.Equal(t, "MahoPa00", nfl[1].ID)

	assert.NotNil(t, c.GetAll(models.SportNBA))
	assert.Empty(t, c.GetAll(models.SportNBA))

	// Callers get a copy
	nfl[0].Name = "changed"
	assert.Equal(t, "Numbered Back", c.GetAll(models.SportNFL)[0].Name)
}

func TestCatalog_Search(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNBA, models.SportNFL)

	tests := []struct {
		name  string
		query string
		sport models.Sport
		want  []string
	}{
		{"name case-insensitive", "LEBRON", models.SportNBA, []string{"jamesle01"}},
		{"team keeps data order", "lakers", models.SportNBA, []string{"jamesle01", "bryanko01"}},
		{"position", "qb", models.SportNFL, []string{"MahoPa00"}},
		{"spans name and team", "james los", models.SportNBA, []string{"jamesle01"}},
		{"trimmed", "  curry  ", models.SportNBA, []string{"curryst01"}},
		{"scoped to sport", "mahomes", models.SportNBA, []string{}},
		{"no match", "zzz", models.SportNFL, []string{}},
		{"blank", "   ", models.SportNBA, []string{}},
		{"empty", "", models.SportNBA, []string{}},
		{"sport not loaded", "lebron", models.SportMLB, []string{}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			results := c.Search(tt.query, tt.sport)
			require.NotNil(t, results)

			ids := make([]string, 0, len(results))
			for _, r := range results {
				ids = append(ids, r.ID)
			}
			assert.Equal(t, tt.want, ids)
		})
	}
}

func TestCatalog_SearchIsSubsetOfGetAll(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNBA)

	all := c.GetAll(models.SportNBA)
	results := c.Search("s", models.SportNBA)
	require.NotEmpty(t, results)

	// Every result appears in GetAll, in the same relative order
	pos := 0
	for _, r := range results {
		for pos < len(all) && all[pos].ID != r.ID {
			pos++
		}
		require.Less(t, pos, len(all), "result %s out of order or missing", r.ID)
		assert.Equal(t, models.SportNBA, r.Sport)
	}
}

func TestCatalog_FailedLoadCanRetry(t *testing.T) {
	reg := registry.New(models.SportNBA)
	ds := &countingDataset{SportDataset: dataset.NewStatic(models.SportNBA, nbaRecords()), failures: 1}
	require.NoError(t, reg.Register(ds))

	sched := &manualScheduler{}
	c := New(reg, sched)

	first := c.Initialize(models.SportNBA)
	sched.runAll()
	require.Error(t, first.Wait(context.Background()))
	assert.Equal(t, models.StateFailed, c.State(models.SportNBA))
	assert.Contains(t, c.Statuses()[0].Error, "data set unavailable")

	_, ok := c.GetByID("jamesle01", models.SportNBA)
	assert.False(t, ok)

	second := c.Initialize(models.SportNBA)
	assert.NotSame(t, first, second)
	assert.Equal(t, models.StateLoading, c.State(models.SportNBA))

	sched.runAll()
	require.NoError(t, second.Wait(context.Background()))
	assert.Equal(t, models.StateLoaded, c.State(models.SportNBA))
	assert.Empty(t, c.Statuses()[0].Error)
	assert.EqualValues(t, 2, ds.calls.Load())
}

func TestCatalog_PanickingDataSetFails(t *testing.T) {
	reg := registry.New(models.SportNBA)
	require.NoError(t, reg.Register(&countingDataset{
		SportDataset: dataset.NewStatic(models.SportNBA, nil),
		panics:       true,
	}))

	sched := &manualScheduler{}
	c := New(reg, sched)

	l := c.Initialize(models.SportNBA)
	require.NotPanics(t, sched.runAll)

	err := l.Wait(context.Background())
	require.Error(t, err)
	assert.Contains(t, err.Error(), "corrupt data set")
	assert.Equal(t, models.StateFailed, c.State(models.SportNBA))
}

func TestCatalog_InvalidDataSetFails(t *testing.T) {
	reg := registry.New(models.SportNBA)
	require.NoError(t, reg.Register(dataset.NewStatic(models.SportNBA, []models.PlayerRecord{
		{ID: "a", Name: "One"},
		{ID: "a", Name: "Two"},
	})))

	sched := &manualScheduler{}
	c := New(reg, sched)

	l := c.Initialize(models.SportNBA)
	sched.runAll()

	var verr *dataset.ValidationError
	require.ErrorAs(t, l.Err(), &verr)
	assert.Equal(t, 1, verr.Index)
	assert.Equal(t, models.StateFailed, c.State(models.SportNBA))
}

func TestCatalog_ObserversAndMetrics(t *testing.T) {
	var (
		mu     sync.Mutex
		events []models.LoadEvent
	)
	m := metrics.New(prometheus.NewRegistry())

	c, sched := newTestCatalog(t,
		WithMetrics(m),
		WithObserver(func(e models.LoadEvent) {
			mu.Lock()
			events = append(events, e)
			mu.Unlock()
		}),
	)
	loadAll(t, c, sched, models.SportNFL)

	mu.Lock()
	require.Len(t, events, 2)
	assert.Equal(t, models.StateLoading, events[0].State)
	assert.Equal(t, models.StateLoaded, events[1].State)
	assert.Equal(t, 2, events[1].Records)
	mu.Unlock()

	assert.Equal(t, float64(1), testutil.ToFloat64(m.LoadsTotal.WithLabelValues("NFL", "success")))
	assert.Equal(t, float64(2), testutil.ToFloat64(m.Records.WithLabelValues("NFL")))

	c.Search("mahomes", models.SportNFL)
	assert.Equal(t, float64(1), testutil.ToFloat64(m.SearchesTotal.WithLabelValues("NFL", "catalog")))
}

func TestCatalog_Statuses(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNFL)

	statuses := c.Statuses()
	require.Len(t, statuses, 2)

	assert.Equal(t, models.SportNBA, statuses[0].Sport)
	assert.Equal(t, "NBA Basketball", statuses[0].DisplayName)
	assert.True(t, statuses[0].Legacy)
	assert.Equal(t, models.StateNotLoaded, statuses[0].State)

	assert.Equal(t, models.SportNFL, statuses[1].Sport)
	assert.False(t, statuses[1].Legacy)
	assert.Equal(t, models.StateLoaded, statuses[1].State)
	assert.Equal(t, 2, statuses[1].Records)
}

func TestCatalog_PhotoURLs(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNBA)

	photos := c.PhotoURLs(models.SportNBA, []string{"lebron james", "Kobe Bryant", "Nobody"})
	assert.Equal(t, map[string]string{"lebron james": "https://img.example/lebron.png"}, photos)

	assert.Empty(t, c.PhotoURLs(models.SportNFL, []string{"Patrick Mahomes"}))
}

func TestCatalog_Resolve(t *testing.T) {
	c, sched := newTestCatalog(t)
	loadAll(t, c, sched, models.SportNBA, models.SportNFL)

	result := c.Resolve([]models.PlayerRef{
		{PlayerID: "MahoPa00", Sport: models.SportNFL},
		{PlayerID: "23", Sport: models.SportNFL},
		{PlayerID: "jamesle01"},
		{PlayerID: "retired99"},
	})

	require.Len(t, result.Players, 3)
	assert.Equal(t, "Patrick Mahomes", result.Players[0].Name)
	assert.Equal(t, []models.PlayerRef{{PlayerID: "retired99"}}, result.Missing)
	require.NotNil(t, result.DominantSport)
	assert.Equal(t, models.SportNFL, *result.DominantSport)

	tie := c.Resolve([]models.PlayerRef{
		{PlayerID: "MahoPa00", Sport: models.SportNFL},
		{PlayerID: "curryst01", Sport: models.SportNBA},
	})
	require.NotNil(t, tie.DominantSport)
	assert.Equal(t, models.SportNBA, *tie.DominantSport, "ties go to the earlier declared sport")

	none := c.Resolve(nil)
	assert.Nil(t, none.DominantSport)
	assert.NotNil(t, none.Players)
	assert.NotNil(t, none.Missing)
}

func TestCatalog_InitializeAllReportsFailure(t *testing.T) {
	reg := registry.New(models.SportNBA)
	require.NoError(t, reg.Register(dataset.NewStatic(models.SportNBA, nbaRecords())))
	require.NoError(t, reg.Register(&countingDataset{
		SportDataset: dataset.NewStatic(models.SportNFL, nflRecords()),
		failures:     1,
	}))

	sched := scheduler.New(nil)
	sched.Start(context.Background())
	defer sched.Close()

	c := New(reg, sched)
	err := c.InitializeAll(context.Background())
	require.Error(t, err)

	// Other sports still finish loading
	require.NoError(t, c.Initialize(models.SportNBA).Wait(context.Background()))
	assert.Equal(t, models.StateLoaded, c.State(models.SportNBA))
}

func TestCatalog_InitializeAllHonorsContext(t *testing.T) {
	sched := scheduler.New(nil)
	sched.Start(context.Background())
	defer sched.Close()

	hold := sched.BeginInteraction()
	defer hold.End()

	c := New(registry.Default(), sched)
	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()

	err := c.InitializeAll(ctx)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Equal(t, models.StateLoading, c.State(models.SportNBA))
}

func TestCatalog_ConcurrentAccess(t *testing.T) {
	sched := scheduler.New(nil)
	sched.Start(context.Background())
	defer sched.Close()

	c := New(registry.Default(), sched)

	var wg sync.WaitGroup
	for i := 0; i < 16; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for _, s := range c.Sports() {
				c.Initialize(s)
				c.Search("a", s)
				c.GetByID("jamesle01", "")
				c.GetAll(s)
			}
		}()
	}
	wg.Wait()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	require.NoError(t, c.InitializeAll(ctx))

	r, ok := c.GetByID("jamesle01", "")
	require.True(t, ok)
	assert.Equal(t, "LeBron James", r.Name)
}

func TestCatalog_ReturnedRecordsAreCopies(t *testing.T) {
	reg := registry.New(models.SportNBA)
	require.NoError(t, reg.Register(dataset.NewStatic(models.SportNBA, []models.PlayerRecord{
		{ID: "jamesle01", Name: "LeBron James", Team: "Los Angeles Lakers", Position: "SF", Stats: map[string]float64{"pts": 27.1}},
	})))
	sched := &manualScheduler{}
	c := New(reg, sched)
	loadAll(t, c, sched, models.SportNBA)

	r, ok := c.GetByID("jamesle01", models.SportNBA)
	require.True(t, ok)
	r.Stats["pts"] = 0

	all := c.GetAll(models.SportNBA)
	require.Len(t, all, 1)
	all[0].Stats["pts"] = 1

	found := c.Search("lebron", models.SportNBA)
	require.Len(t, found, 1)
	found[0].Stats["pts"] = 2

	again, ok := c.GetByID("NBA_jamesle01", "")
	require.True(t, ok)
	assert.Equal(t, 27.1, again.Stats["pts"])
	assert.Equal(t, 27.1, c.GetAll(models.SportNBA)[0].Stats["pts"])
	assert.Equal(t, 27.1, c.Search("lakers", models.SportNBA)[0].Stats["pts"])
}
