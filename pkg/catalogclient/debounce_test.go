package catalogclient

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// recordingSearcher answers every query with one record named after it.
// Queries listed in block wait for release or cancellation.
type recordingSearcher struct {
	mu      sync.Mutex
	queries []string
	sports  []models.Sport

	block   map[string]bool
	started chan string
	release chan struct{}
}

func newRecordingSearcher(block ...string) *recordingSearcher {
	s := &recordingSearcher{
		block:   make(map[string]bool),
		started: make(chan string, 16),
		release: make(chan struct{}),
	}
	for _, q := range block {
		s.block[q] = true
	}
	return s
}

func (s *recordingSearcher) SearchPlayers(ctx context.Context, query string, sport models.Sport) ([]models.PlayerRecord, error) {
	s.mu.Lock()
	s.queries = append(s.queries, query)
	s.sports = append(s.sports, sport)
	s.mu.Unlock()
	s.started <- query

	if s.block[query] {
		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-s.release:
		}
	}
	return []models.PlayerRecord{{ID: query, Name: query}}, nil
}

func (s *recordingSearcher) calls() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.queries...)
}

func collect() (chan Result, func(Result)) {
	results := make(chan Result, 16)
	return results, func(r Result) { results <- r }
}

func waitResult(t *testing.T, results chan Result) Result {
	t.Helper()
	select {
	case r := <-results:
		return r
	case <-time.After(2 * time.Second):
		t.Fatal("no result delivered")
		return Result{}
	}
}

func TestDebouncer_OneRequestPerBurst(t *testing.T) {
	searcher := newRecordingSearcher()
	results, onResult := collect()
	d := NewDebouncer(searcher, 30*time.Millisecond, onResult)
	defer d.Stop()

	for _, q := range []string{"l", "le", "leb", "lebr"} {
		d.Update(q)
	}

	r := waitResult(t, results)
	assert.Equal(t, "lebr", r.Query)
	require.NoError(t, r.Err)
	require.Len(t, r.Players, 1)
	assert.Equal(t, []string{"lebr"}, searcher.calls())
}

func TestDebouncer_EmptyQueryResolvesImmediately(t *testing.T) {
	searcher := newRecordingSearcher()
	results, onResult := collect()
	d := NewDebouncer(searcher, time.Hour, onResult)
	defer d.Stop()

	d.Update("curry")
	d.Update("   ")

	// Delivered synchronously by Update
	require.Len(t, results, 1)
	r := <-results
	assert.Equal(t, "", r.Query)
	assert.Empty(t, r.Players)
	assert.NotNil(t, r.Players)
	assert.Empty(t, searcher.calls())
}

func TestDebouncer_DropsStaleResponses(t *testing.T) {
	searcher := newRecordingSearcher("first")
	results, onResult := collect()
	d := NewDebouncer(searcher, 10*time.Millisecond, onResult)
	defer d.Stop()

	d.Update("first")
	select {
	case <-searcher.started:
	case <-time.After(2 * time.Second):
		t.Fatal("first search never started")
	}

	d.Update("second")

	r := waitResult(t, results)
	assert.Equal(t, "second", r.Query)

	// Nothing more arrives for the superseded query
	select {
	case extra := <-results:
		t.Fatalf("unexpected result for %q", extra.Query)
	case <-time.After(50 * time.Millisecond):
	}
	assert.Equal(t, []string{"first", "second"}, searcher.calls())
}

func TestDebouncer_StopCancelsPending(t *testing.T) {
	searcher := newRecordingSearcher()
	results, onResult := collect()
	d := NewDebouncer(searcher, 20*time.Millisecond, onResult)

	d.Update("mahomes")
	d.Stop()
	d.Update("kelce")

	time.Sleep(60 * time.Millisecond)
	assert.Empty(t, results)
	assert.Empty(t, searcher.calls())
}

func TestDebouncer_ForSport(t *testing.T) {
	searcher := newRecordingSearcher()
	results, onResult := collect()
	d := NewDebouncer(searcher, 5*time.Millisecond, onResult).ForSport(models.SportNFL)
	defer d.Stop()

	d.Update("mahomes")
	waitResult(t, results)

	searcher.mu.Lock()
	defer searcher.mu.Unlock()
	assert.Equal(t, []models.Sport{models.SportNFL}, searcher.sports)
}

func TestNewDebouncer_DefaultDelay(t *testing.T) {
	d := NewDebouncer(newRecordingSearcher(), 0, func(Result) {})
	assert.Equal(t, 150*time.Millisecond, d.delay)
}
