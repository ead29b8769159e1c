// Package loop provides the cooperative event loop every model component
// schedules its deferred work on: posted tasks, one-shot timers, the
// SignalTimer delay policies and the generic Coalescer.
//
// All deferred work runs on the goroutine that calls ProcessEvents or Run,
// strictly after the call stack that scheduled it has unwound. Post and
// Invoke are safe to call from other goroutines.
package loop

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"go.uber.org/zap"
)

// Handle refers to a posted task.
type Handle struct {
	cancelled atomic.Bool
}

// Cancel prevents the task from running if it has not run yet.
func (h *Handle) Cancel() {
	if h != nil {
		h.cancelled.Store(true)
	}
}

type task struct {
	name   string
	fn     func() error
	handle *Handle
}

// Loop is a single-goroutine scheduler for deferred work.
type Loop struct {
	mu     sync.Mutex
	queue  []task
	timers []*Timer
	seq    uint64

	clock  Clock
	logger *zap.Logger
	wake   chan struct{}

	processed atomic.Int64
	failed    atomic.Int64
}

// Option configures a Loop.
type Option func(*Loop)

// WithLogger sets the logger used for failed and panicking tasks.
func WithLogger(logger *zap.Logger) Option {
	return func(l *Loop) {
		if logger != nil {
			l.logger = logger
		}
	}
}

// WithClock sets the clock timers are measured against.
func WithClock(clock Clock) Option {
	return func(l *Loop) {
		if clock != nil {
			l.clock = clock
		}
	}
}

// New creates an event loop.
func New(opts ...Option) *Loop {
	l := &Loop{
		clock:  SystemClock,
		logger: zap.NewNop(),
		wake:   make(chan struct{}, 1),
	}
	for _, opt := range opts {
		opt(l)
	}
	return l
}

var (
	defaultLoop     *Loop
	defaultLoopOnce sync.Once
)

// Default returns the process-wide loop used by components created without
// an explicit loop.
func Default() *Loop {
	defaultLoopOnce.Do(func() {
		defaultLoop = New()
	})
	return defaultLoop
}

// Clock returns the loop's clock.
func (l *Loop) Clock() Clock {
	return l.clock
}

// Logger returns the loop's logger.
func (l *Loop) Logger() *zap.Logger {
	return l.logger
}

// Post schedules fn to run on the next pass of the loop.
func (l *Loop) Post(name string, fn func() error) *Handle {
	h := &Handle{}
	l.mu.Lock()
	l.seq++
	l.queue = append(l.queue, task{name: name, fn: fn, handle: h})
	l.mu.Unlock()
	l.notify()
	return h
}

// Invoke posts fn and waits until it has run on the loop goroutine. It must
// not be called from the loop goroutine itself.
func (l *Loop) Invoke(ctx context.Context, name string, fn func() error) error {
	done := make(chan error, 1)
	h := l.Post(name, func() (err error) {
		defer func() {
			if r := recover(); r != nil {
				err = fmt.Errorf("panic in task %s: %v", name, r)
			}
			done <- err
		}()
		return fn()
	})
	select {
	case err := <-done:
		return err
	case <-ctx.Done():
		h.Cancel()
		return ctx.Err()
	}
}

// Pending returns the number of queued tasks and armed timers.
func (l *Loop) Pending() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.queue) + len(l.timers)
}

// Processed returns how many tasks and timers have run.
func (l *Loop) Processed() int64 {
	return l.processed.Load()
}

// Failed returns how many tasks and timers returned an error or panicked.
func (l *Loop) Failed() int64 {
	return l.failed.Load()
}

// ProcessEvents runs one pass: every task posted before the call and every
// timer armed before the call whose deadline has passed. Work scheduled while
// the pass runs is left for the next pass. It returns the number of
// callbacks run.
func (l *Loop) ProcessEvents() int {
	l.mu.Lock()
	limit := l.seq
	tasks := l.queue
	l.queue = nil
	l.mu.Unlock()

	n := 0
	for _, t := range tasks {
		if t.handle.cancelled.Load() {
			continue
		}
		l.run(t.name, t.fn)
		n++
	}

	now := l.clock.Now()
	for {
		l.mu.Lock()
		t := l.popDue(now, limit)
		l.mu.Unlock()
		if t == nil {
			break
		}
		l.run(t.name, t.fn)
		n++
	}
	return n
}

// Run processes events until ctx is done.
func (l *Loop) Run(ctx context.Context) error {
	l.logger.Debug("Event loop started")
	defer l.logger.Debug("Event loop stopped")

	for {
		l.ProcessEvents()

		var timerC <-chan time.Time
		var t *time.Timer
		if wait, ok := l.nextWait(); ok {
			t = time.NewTimer(wait)
			timerC = t.C
		}

		select {
		case <-ctx.Done():
			if t != nil {
				t.Stop()
			}
			return ctx.Err()
		case <-l.wake:
		case <-timerC:
		}
		if t != nil {
			t.Stop()
		}
	}
}

func (l *Loop) run(name string, fn func() error) {
	defer func() {
		if r := recover(); r != nil {
			l.failed.Add(1)
			l.logger.Error("Deferred task panicked",
				zap.String("task", name),
				zap.Any("panic", r))
		}
	}()

	l.processed.Add(1)
	if err := fn(); err != nil {
		l.failed.Add(1)
		l.logger.Error("Deferred task failed",
			zap.String("task", name),
			zap.Error(err))
	}
}

func (l *Loop) notify() {
	select {
	case l.wake <- struct{}{}:
	default:
	}
}

// nextWait returns how long until the earliest timer is due.
func (l *Loop) nextWait() (time.Duration, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	if len(l.queue) > 0 {
		return 0, true
	}
	if len(l.timers) == 0 {
		return 0, false
	}
	earliest := l.timers[0].when
	for _, t := range l.timers[1:] {
		if t.when.Before(earliest) {
			earliest = t.when
		}
	}
	wait := earliest.Sub(l.clock.Now())
	if wait < 0 {
		wait = 0
	}
	return wait, true
}

// popDue removes and returns the earliest due timer armed at or before limit.
func (l *Loop) popDue(now time.Time, limit uint64) *Timer {
	best := -1
	for i, t := range l.timers {
		if t.seq > limit || t.when.After(now) {
			continue
		}
		if best < 0 || t.when.Before(l.timers[best].when) ||
			(t.when.Equal(l.timers[best].when) && t.seq < l.timers[best].seq) {
			best = i
		}
	}
	if best < 0 {
		return nil
	}
	t := l.timers[best]
	l.timers = append(l.timers[:best], l.timers[best+1:]...)
	t.armed = false
	return t
}

func (l *Loop) removeTimer(t *Timer) bool {
	for i, x := range l.timers {
		if x == t {
			l.timers = append(l.timers[:i], l.timers[i+1:]...)
			return true
		}
	}
	return false
}
