package catalogclient

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// DefaultDelay is how long typing must pause before a search is issued
const DefaultDelay = 150 * time.Millisecond

// Searcher runs one remote search. *Client implements it.
type Searcher interface {
	SearchPlayers(ctx context.Context, query string, sport models.Sport) ([]models.PlayerRecord, error)
}

// Result is delivered for the most recent query only
type Result struct {
	Query   string
	Players []models.PlayerRecord
	Err     error
}

// Debouncer turns a stream of keystrokes into at most one search per pause.
// A response for a query that has since been replaced is dropped.
type Debouncer struct {
	searcher Searcher
	delay    time.Duration
	onResult func(Result)
	sport    models.Sport

	mu       sync.Mutex
	gen      uint64
	timer    *time.Timer
	inflight context.CancelFunc
	stopped  bool
	wg       sync.WaitGroup
}

// NewDebouncer creates a debouncer. delay <= 0 uses DefaultDelay.
// onResult is called from the search goroutine, or from Update for empty queries.
func NewDebouncer(searcher Searcher, delay time.Duration, onResult func(Result)) *Debouncer {
	if delay <= 0 {
		delay = DefaultDelay
	}
	return &Debouncer{
		searcher: searcher,
		delay:    delay,
		onResult: onResult,
	}
}

// ForSport scopes every search to sport
func (d *Debouncer) ForSport(sport models.Sport) *Debouncer {
	d.mu.Lock()
	d.sport = sport
	d.mu.Unlock()
	return d
}

// Update replaces the pending query and restarts the delay.
// A blank query resolves immediately with no results and no request.
func (d *Debouncer) Update(query string) {
	trimmed := strings.TrimSpace(query)

	d.mu.Lock()
	if d.stopped {
		d.mu.Unlock()
		return
	}
	d.gen++
	gen := d.gen
	d.resetLocked()

	if trimmed == "" {
		d.mu.Unlock()
		d.onResult(Result{Query: trimmed, Players: []models.PlayerRecord{}})
		return
	}

	sport := d.sport
	d.timer = time.AfterFunc(d.delay, func() { d.fire(gen, trimmed, sport) })
	d.mu.Unlock()
}

// Stop cancels any pending or in-flight search and waits for it to finish.
// No result is delivered after Stop returns.
func (d *Debouncer) Stop() {
	d.mu.Lock()
	d.stopped = true
	d.gen++
	d.resetLocked()
	d.mu.Unlock()

	d.wg.Wait()
}

// resetLocked drops the pending timer and cancels the in-flight request
func (d *Debouncer) resetLocked() {
	if d.timer != nil {
		d.timer.Stop()
		d.timer = nil
	}
	if d.inflight != nil {
		d.inflight()
		d.inflight = nil
	}
}

func (d *Debouncer) fire(gen uint64, query string, sport models.Sport) {
	d.mu.Lock()
	if d.stopped || gen != d.gen {
		d.mu.Unlock()
		return
	}
	ctx, cancel := context.WithCancel(context.Background())
	d.inflight = cancel
	d.wg.Add(1)
	d.mu.Unlock()

	defer d.wg.Done()
	defer cancel()

	players, err := d.searcher.SearchPlayers(ctx, query, sport)

	d.mu.Lock()
	current := !d.stopped && gen == d.gen
	if current {
		d.inflight = nil
	}
	d.mu.Unlock()

	if current {
		d.onResult(Result{Query: query, Players: players, Err: err})
	}
}
