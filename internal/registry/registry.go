package registry

import (
	"errors"
	"fmt"
	"sync"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/contracts"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
	"github.com/XavierBriggs/fortuna/services/player-catalog/sports/american_football_nfl"
	"github.com/XavierBriggs/fortuna/services/player-catalog/sports/baseball_mlb"
	"github.com/XavierBriggs/fortuna/services/player-catalog/sports/basketball_nba"
)

// ErrSportNotRegistered is returned for lookups of sports without a data set
var ErrSportNotRegistered = errors.New("sport not registered")

// Registry manages the sport data sets served by a catalog.
// Registration order is the declared order used by unscoped lookups.
type Registry struct {
	datasets map[models.Sport]contracts.SportDataset
	order    []models.Sport
	legacy   models.Sport
	mu       sync.RWMutex
}

// New creates an empty registry. legacy names the sport whose bare ids
// are resolved for references persisted before composite keys existed.
func New(legacy models.Sport) *Registry {
	return &Registry{
		datasets: make(map[models.Sport]contracts.SportDataset),
		legacy:   legacy,
	}
}

// Default creates a registry with every bundled data set, NBA as legacy sport
func Default() *Registry {
	r := New(models.SportNBA)
	r.mustRegister(basketball_nba.New())
	r.mustRegister(american_football_nfl.New())
	r.mustRegister(baseball_mlb.New())
	return r
}

// PostgresSource builds data sets backed by the players table
type PostgresSource interface {
	Dataset(sport models.Sport) contracts.SportDataset
}

// FromManifest builds a registry following a manifest's declared order.
// pg may be nil when no entry uses the postgres source.
func FromManifest(m *dataset.Manifest, pg PostgresSource) (*Registry, error) {
	r := New(m.LegacySport)

	for _, entry := range m.Enabled() {
		var ds contracts.SportDataset

		switch entry.Source {
		case dataset.SourceFile:
			ds = dataset.NewFile(entry.Sport, entry.File)
		case dataset.SourcePostgres:
			if pg == nil {
				return nil, fmt.Errorf("%s uses the postgres source but no database is configured", entry.Sport)
			}
			ds = pg.Dataset(entry.Sport)
		default:
			var err error
			if ds, err = bundled(entry.Sport); err != nil {
				return nil, err
			}
		}

		if err := r.Register(ds); err != nil {
			return nil, err
		}
	}

	if _, err := r.Get(r.legacy); err != nil {
		return nil, fmt.Errorf("legacy sport %s: %w", r.legacy, err)
	}

	return r, nil
}

// bundled returns the embedded data set for a sport
func bundled(sport models.Sport) (contracts.SportDataset, error) {
	switch sport {
	case models.SportNBA:
		return basketball_nba.New(), nil
	case models.SportNFL:
		return american_football_nfl.New(), nil
	case models.SportMLB:
		return baseball_mlb.New(), nil
	default:
		return nil, fmt.Errorf("no bundled data set for %s", sport)
	}
}

// Register adds a sport data set to the end of the declared order
func (r *Registry) Register(ds contracts.SportDataset) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	sport := ds.GetSport()
	if !sport.IsKnown() {
		return fmt.Errorf("cannot register unknown sport %q", sport)
	}
	if _, exists := r.datasets[sport]; exists {
		return fmt.Errorf("data set for sport %s is already registered", sport)
	}

	r.datasets[sport] = ds
	r.order = append(r.order, sport)
	return nil
}

func (r *Registry) mustRegister(ds contracts.SportDataset) {
	if err := r.Register(ds); err != nil {
		panic(err)
	}
}

// Get retrieves a data set by sport
func (r *Registry) Get(sport models.Sport) (contracts.SportDataset, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	ds, ok := r.datasets[sport]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrSportNotRegistered, sport)
	}
	return ds, nil
}

// Sports returns registered sports in declared order
func (r *Registry) Sports() []models.Sport {
	r.mu.RLock()
	defer r.mu.RUnlock()

	sports := make([]models.Sport, len(r.order))
	copy(sports, r.order)
	return sports
}

// Legacy returns the sport whose bare ids remain resolvable
func (r *Registry) Legacy() models.Sport {
	return r.legacy
}

// Count returns the number of registered data sets
func (r *Registry) Count() int {
	r.mu.RLock()
	defer r.mu.RUnlock()

	return len(r.datasets)
}
