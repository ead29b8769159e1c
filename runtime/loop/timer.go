package loop

import (
	"fmt"
	"strings"
	"time"
)

// Timer is a one-shot timer running its callback on the loop.
type Timer struct {
	loop  *Loop
	name  string
	fn    func() error
	when  time.Time
	seq   uint64
	armed bool
}

// AfterFunc arms a timer that runs fn on the loop once d has elapsed. A zero
// duration runs fn on the next pass.
func (l *Loop) AfterFunc(name string, d time.Duration, fn func() error) *Timer {
	t := &Timer{loop: l, name: name, fn: fn}
	t.Reset(d)
	return t
}

// Reset re-arms the timer to fire d from now.
func (t *Timer) Reset(d time.Duration) {
	l := t.loop
	l.mu.Lock()
	if t.armed {
		l.removeTimer(t)
	}
	l.seq++
	t.seq = l.seq
	t.when = l.clock.Now().Add(d)
	t.armed = true
	l.timers = append(l.timers, t)
	l.mu.Unlock()
	l.notify()
}

// Stop disarms the timer. It reports whether the timer was armed.
func (t *Timer) Stop() bool {
	l := t.loop
	l.mu.Lock()
	defer l.mu.Unlock()
	if !t.armed {
		return false
	}
	t.armed = false
	return l.removeTimer(t)
}

// Armed reports whether the timer is waiting to fire.
func (t *Timer) Armed() bool {
	t.loop.mu.Lock()
	defer t.loop.mu.Unlock()
	return t.armed
}

// DelayPolicy decides when a SignalTimer fires after Start.
type DelayPolicy int

const (
	// NextTick fires on the next loop pass.
	NextTick DelayPolicy = iota
	// Immediate emits synchronously inside Start, then keeps collecting
	// until the next pass.
	Immediate
	// FixedDelay fires after the configured delay.
	FixedDelay
	// EqualToInterval fires after the repeat interval.
	EqualToInterval
)

func (p DelayPolicy) String() string {
	switch p {
	case NextTick:
		return "next_tick"
	case Immediate:
		return "immediate"
	case FixedDelay:
		return "fixed_delay"
	case EqualToInterval:
		return "interval"
	}
	return "unknown"
}

// Schedule is the delay configuration of a SignalTimer.
type Schedule struct {
	Policy DelayPolicy
	// Delay is used by FixedDelay.
	Delay time.Duration
	// Interval is the repeat period while emissions keep happening. Zero
	// repeats on every pass.
	Interval time.Duration
}

// ParseDelay converts a configured delay: next_tick, immediate, interval
// or a duration such as 250ms.
func ParseDelay(s string) (DelayPolicy, time.Duration, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "next_tick":
		return NextTick, 0, nil
	case "immediate":
		return Immediate, 0, nil
	case "interval":
		return EqualToInterval, 0, nil
	}
	d, err := time.ParseDuration(s)
	if err != nil {
		return 0, 0, fmt.Errorf("invalid delay %q: %w", s, err)
	}
	if d < 0 {
		return 0, 0, fmt.Errorf("invalid delay %q: negative duration", s)
	}
	return FixedDelay, d, nil
}

// SignalTimer schedules an emission according to a Schedule. Start is
// ignored while the timer is active, so any number of requests before the
// timer fires collapse into one emission. After firing, the timer keeps
// running with the repeat interval until emit reports there was nothing to
// send.
type SignalTimer struct {
	loop     *Loop
	name     string
	emit     func() bool
	schedule Schedule
	timer    *Timer
}

// NewSignalTimer creates a timer. emit returns false when it had nothing to
// send, which stops the timer.
func NewSignalTimer(l *Loop, name string, emit func() bool) *SignalTimer {
	return &SignalTimer{loop: l, name: name, emit: emit}
}

// Schedule returns the delay configuration.
func (s *SignalTimer) Schedule() Schedule {
	return s.schedule
}

// SetSchedule changes the delay configuration. It applies from the next Start.
func (s *SignalTimer) SetSchedule(schedule Schedule) {
	s.schedule = schedule
}

// SetInterval changes the repeat interval.
func (s *SignalTimer) SetInterval(d time.Duration) {
	s.schedule.Interval = d
}

// Active reports whether an emission is scheduled.
func (s *SignalTimer) Active() bool {
	return s.timer != nil
}

// Start requests an emission.
func (s *SignalTimer) Start() {
	if s.Active() {
		return
	}
	switch s.schedule.Policy {
	case Immediate:
		s.emit()
		s.arm(s.schedule.Interval)
	case FixedDelay:
		s.arm(s.schedule.Delay)
	case EqualToInterval:
		s.arm(s.schedule.Interval)
	default:
		s.arm(0)
	}
}

// Stop cancels a scheduled emission.
func (s *SignalTimer) Stop() {
	if s.timer != nil {
		s.timer.Stop()
		s.timer = nil
	}
}

func (s *SignalTimer) arm(d time.Duration) {
	s.timer = s.loop.AfterFunc(s.name, d, s.timeout)
}

func (s *SignalTimer) timeout() error {
	s.timer = nil
	if !s.emit() {
		return nil
	}
	s.arm(s.schedule.Interval)
	return nil
}
