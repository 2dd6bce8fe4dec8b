package db

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"

	_ "github.com/lib/pq"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// Schema creates the players table read by the postgres data set source
const Schema = `
CREATE TABLE IF NOT EXISTS players (
	sport                TEXT    NOT NULL,
	player_id            TEXT    NOT NULL,
	name                 TEXT    NOT NULL,
	team                 TEXT    NOT NULL DEFAULT '',
	position             TEXT    NOT NULL DEFAULT '',
	number               TEXT    NOT NULL DEFAULT '',
	photo_url            TEXT,
	sports_reference_url TEXT,
	stats                JSONB,
	hall_of_fame         BOOLEAN NOT NULL DEFAULT FALSE,
	ordinal              INTEGER NOT NULL,
	PRIMARY KEY (sport, player_id)
)`

// PlayersPostgres reads and writes player data sets in PostgreSQL
type PlayersPostgres struct {
	db *sql.DB
}

// NewPlayersPostgres opens a connection pool for dsn
func NewPlayersPostgres(dsn string) (*PlayersPostgres, error) {
	db, err := sql.Open("postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	// Configure connection pool
	db.SetMaxOpenConns(5)
	db.SetMaxIdleConns(2)
	db.SetConnMaxLifetime(5 * time.Minute)

	return &PlayersPostgres{db: db}, nil
}

// Ping checks database connectivity
func (p *PlayersPostgres) Ping(ctx context.Context) error {
	return p.db.PingContext(ctx)
}

// Close closes the connection pool
func (p *PlayersPostgres) Close() error {
	return p.db.Close()
}

// EnsureSchema creates the players table if it does not exist
func (p *PlayersPostgres) EnsureSchema(ctx context.Context) error {
	if _, err := p.db.ExecContext(ctx, Schema); err != nil {
		return fmt.Errorf("create players table: %w", err)
	}
	return nil
}

// Dataset returns a data set that reads sport's rows on Load
func (p *PlayersPostgres) Dataset(sport models.Sport) contracts.SportDataset {
	return &sportTable{players: p, sport: sport}
}

// LoadSport returns sport's rows in ordinal order
func (p *PlayersPostgres) LoadSport(ctx context.Context, sport models.Sport) ([]models.PlayerRecord, error) {
	query := `
		SELECT player_id, name, sport, team, position, number,
		       photo_url, sports_reference_url, stats, hall_of_fame
		FROM players
		WHERE sport = $1
		ORDER BY ordinal, player_id
	`

	rows, err := p.db.QueryContext(ctx, query, string(sport))
	if err != nil {
		return nil, fmt.Errorf("query players: %w", err)
	}
	defer rows.Close()

	records := []models.PlayerRecord{}
	for rows.Next() {
		var (
			r         models.PlayerRecord
			number    string
			photoURL  sql.NullString
			refURL    sql.NullString
			statsJSON []byte
		)
		if err := rows.Scan(&r.ID, &r.Name, &r.Sport, &r.Team, &r.Position, &number,
			&photoURL, &refURL, &statsJSON, &r.HallOfFame); err != nil {
			return nil, fmt.Errorf("scan player: %w", err)
		}

		r.Number = models.JerseyNumber(number)
		r.PhotoURL = photoURL.String
		r.SportsReferenceURL = refURL.String
		if len(statsJSON) > 0 {
			if err := json.Unmarshal(statsJSON, &r.Stats); err != nil {
				return nil, fmt.Errorf("parse stats for %s: %w", r.ID, err)
			}
		}
		records = append(records, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("iterate players: %w", err)
	}
	return records, nil
}

// ReplaceSport atomically replaces sport's rows with records, keeping their order
func (p *PlayersPostgres) ReplaceSport(ctx context.Context, sport models.Sport, records []models.PlayerRecord) error {
	tx, err := p.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `DELETE FROM players WHERE sport = $1`, string(sport)); err != nil {
		return fmt.Errorf("delete players: %w", err)
	}

	insert := `
		INSERT INTO players (
			sport, player_id, name, team, position, number,
			photo_url, sports_reference_url, stats, hall_of_fame, ordinal
		) VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11)
	`
	for i, r := range records {
		var stats interface{}
		if len(r.Stats) > 0 {
			data, err := json.Marshal(r.Stats)
			if err != nil {
				return fmt.Errorf("marshal stats for %s: %w", r.ID, err)
			}
			stats = string(data)
		}

		if _, err := tx.ExecContext(ctx, insert,
			string(sport),
			r.ID,
			r.Name,
			r.Team,
			r.Position,
			string(r.Number),
			nullString(r.PhotoURL),
			nullString(r.SportsReferenceURL),
			stats,
			r.HallOfFame,
			i,
		); err != nil {
			return fmt.Errorf("insert player %s: %w", r.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}

func nullString(s string) sql.NullString {
	return sql.NullString{String: s, Valid: s != ""}
}

// sportTable is one sport's slice of the players table
type sportTable struct {
	players *PlayersPostgres
	sport   models.Sport
}

func (t *sportTable) GetSport() models.Sport { return t.sport }

func (t *sportTable) GetDisplayName() string { return dataset.DisplayName(t.sport) }

func (t *sportTable) Load(ctx context.Context) ([]models.PlayerRecord, error) {
	return t.players.LoadSport(ctx, t.sport)
}
