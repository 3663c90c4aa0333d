// Package poller periodically pulls a value from a collaborator.
package poller

import (
	"context"
	"errors"
	"time"

	"rpctail/internal/logger"

	"github.com/jonboulle/clockwork"
)

// Poller pulls immediately and then every Interval until its context ends.
// Pulls run one at a time on the Run goroutine; ticks that arrive while a
// pull is in flight are dropped.
type Poller[T any] struct {
	Name     string
	Interval time.Duration
	// Timeout bounds a single pull. Zero means Interval.
	Timeout time.Duration
	Fetch   func(ctx context.Context) (T, error)

	OnSuccess func(T)
	OnError   func(error)

	Clock clockwork.Clock
	Log   *logger.Logger
}

// Run blocks until ctx is cancelled. A failed pull never stops the schedule.
func (p *Poller[T]) Run(ctx context.Context) error {
	if p.Fetch == nil {
		return errors.New("poller: nil Fetch")
	}
	if p.Interval <= 0 {
		return errors.New("poller: non-positive interval")
	}
	clk := p.Clock
	if clk == nil {
		clk = clockwork.NewRealClock()
	}

	p.pull(ctx)

	t := clk.NewTicker(p.Interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-t.Chan():
			p.pull(ctx)
		}
	}
}

func (p *Poller[T]) pull(ctx context.Context) {
	if ctx.Err() != nil {
		return
	}
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = p.Interval
	}
	pctx, cancel := context.WithTimeout(ctx, timeout)
	v, err := p.Fetch(pctx)
	cancel()

	if err != nil {
		// Cancellation during shutdown is not a pull failure.
		if ctx.Err() != nil {
			return
		}
		if p.Log != nil {
			p.Log.Warnw("poll_failed", "source", p.Name, "err", err)
		}
		if p.OnError != nil {
			p.OnError(err)
		}
		return
	}
	if p.OnSuccess != nil {
		p.OnSuccess(v)
	}
}
