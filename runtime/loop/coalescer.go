package loop

import (
	"cmp"
	"slices"
)

// Coalescer accumulates keys and hands them to a callback in one batch per
// SignalTimer emission. Duplicate keys collapse.
type Coalescer[K cmp.Ordered] struct {
	timer   *SignalTimer
	pending map[K]struct{}
	emit    func([]K)
	stopped bool
}

// NewCoalescer creates a coalescer emitting through emit on l.
func NewCoalescer[K cmp.Ordered](l *Loop, name string, emit func([]K)) *Coalescer[K] {
	c := &Coalescer[K]{
		pending: make(map[K]struct{}),
		emit:    emit,
	}
	c.timer = NewSignalTimer(l, name, c.fire)
	return c
}

// Timer returns the underlying timer, for schedule configuration.
func (c *Coalescer[K]) Timer() *SignalTimer {
	return c.timer
}

// Add records keys and requests an emission.
func (c *Coalescer[K]) Add(keys ...K) {
	if c.stopped || len(keys) == 0 {
		return
	}
	for _, k := range keys {
		c.pending[k] = struct{}{}
	}
	c.timer.Start()
}

// Pending returns the keys waiting to be emitted, sorted.
func (c *Coalescer[K]) Pending() []K {
	out := make([]K, 0, len(c.pending))
	for k := range c.pending {
		out = append(out, k)
	}
	slices.Sort(out)
	return out
}

// Flush emits pending keys now.
func (c *Coalescer[K]) Flush() {
	c.fire()
}

// Close drops pending keys and cancels the timer. Later Adds are ignored.
func (c *Coalescer[K]) Close() {
	c.stopped = true
	c.timer.Stop()
	clear(c.pending)
}

func (c *Coalescer[K]) fire() bool {
	if c.stopped || len(c.pending) == 0 {
		return false
	}
	keys := c.Pending()
	clear(c.pending)
	c.emit(keys)
	return true
}
