package catalog

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"sync"
	"time"

	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/dataset"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/metrics"
	"github.com/XavierBriggs/fortuna/services/player-catalog/internal/registry"
	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// ErrUnknownSport is returned when a sport has no registered data set
var ErrUnknownSport = errors.New("unknown sport")

// Scheduler defers load work until no interaction is in progress
type Scheduler interface {
	RunAfterInteractions(task func())
}

// Observer receives every load state transition. Observers are called
// synchronously and must not block.
type Observer func(models.LoadEvent)

// Option configures a Catalog
type Option func(*Catalog)

// WithLogger sets the catalog logger
func WithLogger(logger *zap.Logger) Option {
	return func(c *Catalog) { c.logger = logger }
}

// WithMetrics records load and search metrics
func WithMetrics(m *metrics.Metrics) Option {
	return func(c *Catalog) { c.metrics = m }
}

// WithObserver subscribes fn to load state transitions
func WithObserver(fn Observer) Option {
	return func(c *Catalog) { c.observers = append(c.observers, fn) }
}

// sportEntry holds one sport's state and, once loaded, its indices.
// Indices are built once and never mutated after publication.
type sportEntry struct {
	state   models.LoadState
	load    *Load
	lastErr error

	records   []models.PlayerRecord
	haystacks []string          // lowercased search text, parallel to records
	photos    map[string]string // lowercased name -> photo url
}

// Catalog serves per-sport player data. Each sport is parsed and indexed at
// most once, lazily, on a deferred task; lookups never trigger a load.
type Catalog struct {
	registry  *registry.Registry
	sched     Scheduler
	logger    *zap.Logger
	metrics   *metrics.Metrics
	observers []Observer

	order  []models.Sport
	legacy models.Sport

	mu      sync.RWMutex
	entries map[models.Sport]*sportEntry
	byKey   map[string]*models.PlayerRecord // composite key -> record
	bareIDs map[string]*models.PlayerRecord // legacy sport bare id -> record
}

// New creates a catalog over the registry's data sets. Nothing is loaded
// until Initialize is called.
func New(reg *registry.Registry, sched Scheduler, opts ...Option) *Catalog {
	c := &Catalog{
		registry: reg,
		sched:    sched,
		logger:   zap.NewNop(),
		order:    reg.Sports(),
		legacy:   reg.Legacy(),
		entries:  make(map[models.Sport]*sportEntry),
		byKey:    make(map[string]*models.PlayerRecord),
		bareIDs:  make(map[string]*models.PlayerRecord),
	}
	for _, opt := range opts {
		opt(c)
	}
	for _, sport := range c.order {
		c.entries[sport] = &sportEntry{state: models.StateNotLoaded}
	}
	return c
}

// Sports returns the served sports in declared order
func (c *Catalog) Sports() []models.Sport {
	sports := make([]models.Sport, len(c.order))
	copy(sports, c.order)
	return sports
}

// Initialize ensures sport is loaded or loading and returns the shared load
// handle. A failed load is retried; a loading or loaded sport is left alone.
func (c *Catalog) Initialize(sport models.Sport) *Load {
	c.mu.Lock()
	entry, ok := c.entries[sport]
	if !ok {
		c.mu.Unlock()
		return resolvedLoad(sport, fmt.Errorf("%w: %q", ErrUnknownSport, sport))
	}

	if entry.state == models.StateLoading || entry.state == models.StateLoaded {
		l := entry.load
		c.mu.Unlock()
		return l
	}

	l := newLoad(sport)
	entry.state = models.StateLoading
	entry.load = l
	entry.lastErr = nil
	c.mu.Unlock()

	c.notify(models.LoadEvent{Sport: sport, State: models.StateLoading, At: time.Now()})
	c.sched.RunAfterInteractions(func() { c.runLoad(l) })
	return l
}

// InitializeAll initializes every sport and waits for all of them.
// It returns the first load error, or ctx.Err() if ctx ends first.
func (c *Catalog) InitializeAll(ctx context.Context) error {
	g, ctx := errgroup.WithContext(ctx)
	for _, sport := range c.order {
		l := c.Initialize(sport)
		g.Go(func() error { return l.Wait(ctx) })
	}
	return g.Wait()
}

func (c *Catalog) runLoad(l *Load) {
	sport := l.sport
	start := time.Now()

	records, err := c.fetch(sport)

	var (
		haystacks []string
		photos    map[string]string
	)
	if err == nil {
		haystacks = make([]string, len(records))
		photos = make(map[string]string)
		for i, r := range records {
			haystacks[i] = strings.ToLower(r.SearchText())
			if r.PhotoURL != "" {
				photos[strings.ToLower(r.Name)] = r.PhotoURL
			}
		}
	}

	c.mu.Lock()
	entry := c.entries[sport]
	if err != nil {
		entry.state = models.StateFailed
		entry.lastErr = err
	} else {
		entry.state = models.StateLoaded
		entry.records = records
		entry.haystacks = haystacks
		entry.photos = photos
		for i := range entry.records {
			r := &entry.records[i]
			c.byKey[r.Key()] = r
			if sport == c.legacy {
				c.bareIDs[r.ID] = r
			}
		}
	}
	c.mu.Unlock()

	l.resolve(err)

	elapsed := time.Since(start)
	if c.metrics != nil {
		c.metrics.ObserveLoad(sport, len(records), elapsed, err)
	}

	event := models.LoadEvent{
		Sport:      sport,
		DurationMs: elapsed.Milliseconds(),
		At:         time.Now(),
	}
	if err != nil {
		c.logger.Error("data set load failed",
			zap.String("sport", string(sport)),
			zap.Duration("elapsed", elapsed),
			zap.Error(err))
		event.State = models.StateFailed
		event.Error = err.Error()
	} else {
		c.logger.Info("data set loaded",
			zap.String("sport", string(sport)),
			zap.Int("records", len(records)),
			zap.Duration("elapsed", elapsed))
		event.State = models.StateLoaded
		event.Records = len(records)
	}
	c.notify(event)
}

// fetch reads and validates a sport's data set. A started load is never
// cancelled; a panicking data set is reported as a failed load.
func (c *Catalog) fetch(sport models.Sport) (records []models.PlayerRecord, err error) {
	defer func() {
		if r := recover(); r != nil {
			records = nil
			err = fmt.Errorf("loading %s: panic: %v", sport, r)
		}
	}()

	ds, err := c.registry.Get(sport)
	if err != nil {
		return nil, err
	}

	raw, err := ds.Load(context.Background())
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", sport, err)
	}
	return dataset.Validate(sport, raw)
}

func (c *Catalog) notify(event models.LoadEvent) {
	for _, fn := range c.observers {
		fn(event)
	}
}

// State returns sport's load state; unknown sports report not_loaded
func (c *Catalog) State(sport models.Sport) models.LoadState {
	c.mu.RLock()
	defer c.mu.RUnlock()

	if entry, ok := c.entries[sport]; ok {
		return entry.state
	}
	return models.StateNotLoaded
}

// Statuses describes every served sport in declared order
func (c *Catalog) Statuses() []models.SportStatus {
	c.mu.RLock()
	defer c.mu.RUnlock()

	statuses := make([]models.SportStatus, 0, len(c.order))
	for _, sport := range c.order {
		entry := c.entries[sport]
		status := models.SportStatus{
			Sport:       sport,
			DisplayName: dataset.DisplayName(sport),
			State:       entry.state,
			Records:     len(entry.records),
			Legacy:      sport == c.legacy,
		}
		if entry.lastErr != nil {
			status.Error = entry.lastErr.Error()
		}
		statuses = append(statuses, status)
	}
	return statuses
}

// GetByID resolves a player identifier. id may be a bare id or a composite
// key; hint, when set, names the sport to try first. A hinted sport that is
// not loaded yields no result. Lookups never trigger a load.
//
// Records handed out by the catalog are clones; changing one does not
// change catalog data.
func (c *Catalog) GetByID(id string, hint models.Sport) (models.PlayerRecord, bool) {
	if id == "" {
		return models.PlayerRecord{}, false
	}

	c.mu.RLock()
	defer c.mu.RUnlock()

	if hint != "" {
		entry, ok := c.entries[hint]
		if !ok || entry.state != models.StateLoaded {
			return models.PlayerRecord{}, false
		}
		if r, ok := c.byKey[models.CompositeKey(hint, id)]; ok {
			return r.Clone(), true
		}
	}

	// id may already be a composite key
	if r, ok := c.byKey[id]; ok {
		return r.Clone(), true
	}

	// Only loaded sports have entries in byKey
	for _, sport := range c.order {
		if r, ok := c.byKey[models.CompositeKey(sport, id)]; ok {
			return r.Clone(), true
		}
	}

	if r, ok := c.bareIDs[id]; ok {
		return r.Clone(), true
	}
	return models.PlayerRecord{}, false
}

// GetAll returns a copy of sport's records in data set order. An empty sport
// returns every loaded sport's records in declared order. Sports that are not
// loaded contribute nothing.
func (c *Catalog) GetAll(sport models.Sport) []models.PlayerRecord {
	c.mu.RLock()
	defer c.mu.RUnlock()

	sports := c.order
	if sport != "" {
		sports = []models.Sport{sport}
	}

	out := []models.PlayerRecord{}
	for _, s := range sports {
		entry, ok := c.entries[s]
		if !ok || entry.state != models.StateLoaded {
			continue
		}
		for _, r := range entry.records {
			out = append(out, r.Clone())
		}
	}
	return out
}

// Search returns sport's records whose name, team or position contain query,
// case-insensitively, in data set order. A blank query or a sport that is not
// loaded returns an empty slice.
func (c *Catalog) Search(query string, sport models.Sport) []models.PlayerRecord {
	results := []models.PlayerRecord{}

	needle := strings.ToLower(strings.TrimSpace(query))
	if needle == "" {
		return results
	}

	c.mu.RLock()
	entry, ok := c.entries[sport]
	if ok && entry.state == models.StateLoaded {
		for i, haystack := range entry.haystacks {
			if strings.Contains(haystack, needle) {
				results = append(results, entry.records[i].Clone())
			}
		}
	}
	c.mu.RUnlock()

	if c.metrics != nil {
		c.metrics.IncrementSearches(sport, "catalog")
	}
	return results
}

// PhotoURLs maps each requested name to its photo url within sport. Names are
// matched case-insensitively; names without a photo are omitted.
func (c *Catalog) PhotoURLs(sport models.Sport, names []string) map[string]string {
	out := make(map[string]string, len(names))

	c.mu.RLock()
	defer c.mu.RUnlock()

	entry, ok := c.entries[sport]
	if !ok || entry.state != models.StateLoaded {
		return out
	}
	for _, name := range names {
		if url, ok := entry.photos[strings.ToLower(strings.TrimSpace(name))]; ok {
			out[name] = url
		}
	}
	return out
}

// Resolve looks up persisted player references. The dominant sport is the
// sport with the most resolved players, ties going to the earlier declared
// sport; it is nil when nothing resolved.
func (c *Catalog) Resolve(refs []models.PlayerRef) models.ResolveResult {
	result := models.ResolveResult{
		Players: []models.PlayerRecord{},
		Missing: []models.PlayerRef{},
	}

	counts := make(map[models.Sport]int)
	for _, ref := range refs {
		r, ok := c.GetByID(ref.PlayerID, ref.Sport)
		if !ok {
			result.Missing = append(result.Missing, ref)
			continue
		}
		result.Players = append(result.Players, r)
		counts[r.Sport]++
	}

	best := 0
	for _, sport := range c.order {
		if n := counts[sport]; n > best {
			best = n
			dominant := sport
			result.DominantSport = &dominant
		}
	}
	return result
}
