package catalog

import (
	"context"

	"github.com/XavierBriggs/fortuna/services/player-catalog/pkg/models"
)

// Load tracks one in-flight or finished data set load. Every caller that
// triggers the same load shares the same *Load.
type Load struct {
	sport models.Sport
	done  chan struct{}
	err   error
}

func newLoad(sport models.Sport) *Load {
	return &Load{sport: sport, done: make(chan struct{})}
}

// resolvedLoad returns a Load that has already finished with err
func resolvedLoad(sport models.Sport, err error) *Load {
	l := newLoad(sport)
	l.resolve(err)
	return l
}

// resolve must be called exactly once
func (l *Load) resolve(err error) {
	l.err = err
	close(l.done)
}

// Sport returns the sport being loaded
func (l *Load) Sport() models.Sport { return l.sport }

// Done is closed once the load has finished, successfully or not
func (l *Load) Done() <-chan struct{} { return l.done }

// Wait blocks until the load finishes or ctx is done. It returns the load
// error, or ctx.Err() if the caller gave up first.
func (l *Load) Wait(ctx context.Context) error {
	select {
	case <-l.done:
		return l.err
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Err returns the load error, or nil while the load is still running
func (l *Load) Err() error {
	select {
	case <-l.done:
		return l.err
	default:
		return nil
	}
}
