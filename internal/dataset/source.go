package dataset

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// Decode parses a JSON array of player records. Validation is left to the
// catalog so every source goes through the same checks exactly once.
func Decode(r io.Reader, sport models.Sport) ([]models.PlayerRecord, error) {
	var records []models.PlayerRecord
	if err := json.NewDecoder(r).Decode(&records); err != nil {
		return nil, fmt.Errorf("decoding %s players: %w", sport, err)
	}
	return records, nil
}

// DisplayName returns the human readable league name
func DisplayName(sport models.Sport) string {
	switch sport {
	case models.SportNBA:
		return "NBA Basketball"
	case models.SportNFL:
		return "NFL Football"
	case models.SportMLB:
		return "MLB Baseball"
	default:
		return string(sport)
	}
}

// Embedded serves a data set compiled into the binary
type Embedded struct {
	sport models.Sport
	data  []byte
}

// NewEmbedded wraps raw JSON bytes for sport
func NewEmbedded(sport models.Sport, data []byte) *Embedded {
	return &Embedded{sport: sport, data: data}
}

func (d *Embedded) GetSport() models.Sport { return d.sport }

func (d *Embedded) GetDisplayName() string { return DisplayName(d.sport) }

// Load decodes the embedded bytes. Every call parses again; callers cache.
func (d *Embedded) Load(ctx context.Context) ([]models.PlayerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return Decode(bytes.NewReader(d.data), d.sport)
}

// File serves a data set from a JSON file on disk
type File struct {
	sport models.Sport
	path  string
}

// NewFile creates a file-backed data set
func NewFile(sport models.Sport, path string) *File {
	return &File{sport: sport, path: path}
}

func (d *File) GetSport() models.Sport { return d.sport }

func (d *File) GetDisplayName() string { return DisplayName(d.sport) }

// Path returns the backing file path
func (d *File) Path() string { return d.path }

// Load reads and decodes the file
func (d *File) Load(ctx context.Context) ([]models.PlayerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	f, err := os.Open(d.path)
	if err != nil {
		return nil, fmt.Errorf("opening %s data set: %w", d.sport, err)
	}
	defer f.Close()

	return Decode(f, d.sport)
}

// Static serves records already held in memory
type Static struct {
	sport   models.Sport
	records []models.PlayerRecord
}

// NewStatic creates an in-memory data set
func NewStatic(sport models.Sport, records []models.PlayerRecord) *Static {
	return &Static{sport: sport, records: records}
}

func (d *Static) GetSport() models.Sport { return d.sport }

func (d *Static) GetDisplayName() string { return DisplayName(d.sport) }

// Load returns a copy of the records
func (d *Static) Load(ctx context.Context) ([]models.PlayerRecord, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	records := make([]models.PlayerRecord, len(d.records))
	for i, r := range d.records {
		records[i] = r.Clone()
	}
	return records, nil
}
