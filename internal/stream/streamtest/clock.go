package streamtest

import (
	"context"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
)

// Clock is a clockwork fake that also counts live timers and tickers, so
// tests can assert how many reconnects are scheduled.
type Clock struct {
	*clockwork.FakeClock
	timers  atomic.Int32
	tickers atomic.Int32
}

// NewClock returns a fake clock set to start.
func NewClock(start time.Time) *Clock {
	return &Clock{FakeClock: clockwork.NewFakeClockAt(start)}
}

// AfterFunc schedules f like clockwork and tracks the timer until it fires or stops.
func (c *Clock) AfterFunc(d time.Duration, f func()) clockwork.Timer {
	t := &trackedTimer{clock: c}
	c.timers.Add(1)
	t.Timer = c.FakeClock.AfterFunc(d, func() {
		t.release()
		f()
	})
	return t
}

// NewTicker returns a clockwork ticker tracked until Stop.
func (c *Clock) NewTicker(d time.Duration) clockwork.Ticker {
	c.tickers.Add(1)
	return &trackedTicker{Ticker: c.FakeClock.NewTicker(d), clock: c}
}

// PendingTimers returns the number of AfterFunc timers that have neither fired nor stopped.
func (c *Clock) PendingTimers() int { return int(c.timers.Load()) }

// Pending returns live timers plus running tickers.
func (c *Clock) Pending() int { return int(c.timers.Load() + c.tickers.Load()) }

// WaitForWaiters blocks until at least n timers or tickers are registered.
func (c *Clock) WaitForWaiters(t *testing.T, n int) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := c.BlockUntilContext(ctx, n); err != nil {
		t.Fatalf("waiting for %d clock waiters: %v", n, err)
	}
}

type trackedTimer struct {
	clockwork.Timer
	clock *Clock
	done  atomic.Bool
}

func (t *trackedTimer) release() {
	if t.done.CompareAndSwap(false, true) {
		t.clock.timers.Add(-1)
	}
}

func (t *trackedTimer) Stop() bool {
	stopped := t.Timer.Stop()
	if stopped {
		t.release()
	}
	return stopped
}

type trackedTicker struct {
	clockwork.Ticker
	clock *Clock
	once  sync.Once
}

func (t *trackedTicker) Stop() {
	t.Ticker.Stop()
	t.once.Do(func() { t.clock.tickers.Add(-1) })
}
