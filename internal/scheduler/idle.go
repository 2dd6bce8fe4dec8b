package scheduler

import (
	"context"
	"sync"

	"go.uber.org/zap"
)

// IdleScheduler runs one-shot background tasks once no interaction is open.
// Tasks run one at a time, in submission order, on a single goroutine.
type IdleScheduler struct {
	logger *zap.Logger

	mu      sync.Mutex
	queue   []func()
	open    int // interactions currently in progress
	started bool
	closed  bool

	wake   chan struct{}
	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// Interaction marks work that deferred tasks must not interrupt.
// End releases it; calling End more than once is a no-op.
type Interaction struct {
	s    *IdleScheduler
	once sync.Once
}

// New creates a scheduler. Tasks queue until Start is called.
func New(logger *zap.Logger) *IdleScheduler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &IdleScheduler{
		logger: logger,
		wake:   make(chan struct{}, 1),
	}
}

// Start launches the worker goroutine. It stops when ctx is done or Close is called.
func (s *IdleScheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.started || s.closed {
		s.mu.Unlock()
		return
	}
	s.started = true
	ctx, s.cancel = context.WithCancel(ctx)
	s.mu.Unlock()

	s.wg.Add(1)
	go s.run(ctx)
}

// Close stops the worker after running every task still queued, so nothing
// waiting on a task is left hanging. Tasks submitted afterwards run on their
// own goroutine.
func (s *IdleScheduler) Close() {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return
	}
	s.closed = true
	cancel := s.cancel
	started := s.started
	s.mu.Unlock()

	if started {
		cancel()
		s.wg.Wait()
		return
	}
	s.drain()
}

// BeginInteraction opens an interaction; deferred tasks wait until it ends
func (s *IdleScheduler) BeginInteraction() *Interaction {
	s.mu.Lock()
	s.open++
	s.mu.Unlock()
	return &Interaction{s: s}
}

// End closes the interaction and wakes the worker if it was the last one
func (i *Interaction) End() {
	i.once.Do(func() {
		i.s.mu.Lock()
		i.s.open--
		i.s.mu.Unlock()
		i.s.signal()
	})
}

// RunAfterInteractions queues task to run once no interaction is open
func (s *IdleScheduler) RunAfterInteractions(task func()) {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		go task()
		return
	}
	s.queue = append(s.queue, task)
	s.mu.Unlock()
	s.signal()
}

// Pending returns the number of queued tasks
func (s *IdleScheduler) Pending() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.queue)
}

func (s *IdleScheduler) signal() {
	select {
	case s.wake <- struct{}{}:
	default:
	}
}

func (s *IdleScheduler) run(ctx context.Context) {
	defer s.wg.Done()

	for {
		select {
		case <-ctx.Done():
			s.mu.Lock()
			s.closed = true
			s.mu.Unlock()
			s.drain()
			return
		case <-s.wake:
			for {
				task, ok := s.next()
				if !ok {
					break
				}
				task()
			}
		}
	}
}

// next pops the oldest task when the scheduler is idle
func (s *IdleScheduler) next() (func(), bool) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.open > 0 || len(s.queue) == 0 {
		return nil, false
	}
	task := s.queue[0]
	s.queue[0] = nil
	s.queue = s.queue[1:]
	return task, true
}

// drain runs every queued task regardless of open interactions
func (s *IdleScheduler) drain() {
	s.mu.Lock()
	tasks := s.queue
	s.queue = nil
	s.mu.Unlock()

	if len(tasks) > 0 {
		s.logger.Debug("running deferred tasks on shutdown", zap.Int("tasks", len(tasks)))
	}
	for _, task := range tasks {
		task()
	}
}
