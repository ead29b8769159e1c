package loop

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"
)

func newManualLoop(t *testing.T, opts ...Option) (*Loop, *ManualClock) {
	t.Helper()
	clock := NewManualClock(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	return New(append([]Option{WithClock(clock)}, opts...)...), clock
}

func TestPost_RunsOnNextPass(t *testing.T) {
	l, _ := newManualLoop(t)

	var order []string
	l.Post("a", func() error {
		order = append(order, "a")
		l.Post("c", func() error {
			order = append(order, "c")
			return nil
		})
		return nil
	})
	l.Post("b", func() error {
		order = append(order, "b")
		return nil
	})
	assert.Empty(t, order)

	assert.Equal(t, 2, l.ProcessEvents())
	assert.Equal(t, []string{"a", "b"}, order)

	assert.Equal(t, 1, l.ProcessEvents())
	assert.Equal(t, []string{"a", "b", "c"}, order)
	assert.Equal(t, 0, l.Pending())
}

func TestPost_Cancel(t *testing.T) {
	l, _ := newManualLoop(t)

	ran := false
	h := l.Post("cancelled", func() error {
		ran = true
		return nil
	})
	h.Cancel()

	assert.Equal(t, 0, l.ProcessEvents())
	assert.False(t, ran)
}

func TestAfterFunc_WaitsForClock(t *testing.T) {
	l, clock := newManualLoop(t)

	fired := 0
	timer := l.AfterFunc("delayed", 100*time.Millisecond, func() error {
		fired++
		return nil
	})
	assert.True(t, timer.Armed())

	l.ProcessEvents()
	assert.Equal(t, 0, fired)

	clock.Advance(100 * time.Millisecond)
	l.ProcessEvents()
	assert.Equal(t, 1, fired)
	assert.False(t, timer.Armed())

	clock.Advance(time.Second)
	l.ProcessEvents()
	assert.Equal(t, 1, fired, "timers are one-shot")
}

func TestAfterFunc_Stop(t *testing.T) {
	l, _ := newManualLoop(t)

	fired := false
	timer := l.AfterFunc("stopped", 0, func() error {
		fired = true
		return nil
	})
	assert.True(t, timer.Stop())
	assert.False(t, timer.Stop())

	l.ProcessEvents()
	assert.False(t, fired)
}

func TestAfterFunc_ZeroDelayArmedDuringPass(t *testing.T) {
	l, _ := newManualLoop(t)

	count := 0
	var rearm func() error
	rearm = func() error {
		count++
		if count < 3 {
			l.AfterFunc("again", 0, rearm)
		}
		return nil
	}
	l.AfterFunc("first", 0, rearm)

	l.ProcessEvents()
	assert.Equal(t, 1, count)
	l.ProcessEvents()
	assert.Equal(t, 2, count)
	l.ProcessEvents()
	assert.Equal(t, 3, count)
}

func TestRun_LogsFailures(t *testing.T) {
	core, logs := observer.New(zapcore.ErrorLevel)
	l, _ := newManualLoop(t, WithLogger(zap.New(core)))

	l.Post("failing", func() error {
		return errors.New("boom")
	})
	l.Post("panicking", func() error {
		panic("kaboom")
	})
	l.Post("fine", func() error {
		return nil
	})

	assert.Equal(t, 3, l.ProcessEvents())
	assert.Equal(t, int64(3), l.Processed())
	assert.Equal(t, int64(2), l.Failed())

	entries := logs.All()
	require.Len(t, entries, 2)
	assert.Equal(t, "Deferred task failed", entries[0].Message)
	assert.Equal(t, "failing", entries[0].ContextMap()["task"])
	assert.Equal(t, "Deferred task panicked", entries[1].Message)
}

func TestInvoke_FromOtherGoroutine(t *testing.T) {
	l := New()
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	done := make(chan error, 1)
	go func() {
		done <- l.Run(ctx)
	}()

	value := 0
	err := l.Invoke(context.Background(), "set", func() error {
		value = 42
		return nil
	})
	require.NoError(t, err)
	assert.Equal(t, 42, value)

	err = l.Invoke(context.Background(), "fail", func() error {
		return errors.New("failed")
	})
	assert.EqualError(t, err, "failed")

	cancel()
	select {
	case err := <-done:
		assert.ErrorIs(t, err, context.Canceled)
	case <-time.After(5 * time.Second):
		t.Fatal("Run did not stop")
	}
}

func TestRun_FiresRealTimers(t *testing.T) {
	l := New()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	fired := make(chan struct{})
	l.AfterFunc("real", 10*time.Millisecond, func() error {
		close(fired)
		return nil
	})
	go l.Run(ctx)

	select {
	case <-fired:
	case <-ctx.Done():
		t.Fatal("timer did not fire")
	}
}

func TestDefault_IsShared(t *testing.T) {
	assert.Same(t, Default(), Default())
}
