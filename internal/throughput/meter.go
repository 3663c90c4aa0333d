// Package throughput estimates events per second over a sliding one-second window.
package throughput

import (
	"math"
	"time"
)

// Interval is the minimum span a sample must cover before the rate is
// recomputed.
const Interval = time.Second

// Meter counts recorded events and turns them into a per-second rate at
// sample points. Not safe for concurrent use.
type Meter struct {
	count       int64
	windowStart time.Time
	rate        int
}

// New starts the first measurement window at now.
func New(now time.Time) *Meter {
	return &Meter{windowStart: now}
}

// Record counts one accepted event.
func (m *Meter) Record() { m.count++ }

// Sample recomputes the rate as round(count / elapsed seconds) and opens a
// new window at now. While less than Interval has elapsed since the window
// opened, nothing is reset and the previous rate is returned with updated=false.
func (m *Meter) Sample(now time.Time) (rate int, updated bool) {
	elapsed := now.Sub(m.windowStart)
	if elapsed < Interval {
		return m.rate, false
	}
	m.rate = int(math.Round(float64(m.count) / elapsed.Seconds()))
	m.count = 0
	m.windowStart = now
	return m.rate, true
}

// Rate returns the rate computed at the last sample point.
func (m *Meter) Rate() int { return m.rate }

// Pending returns the number of events recorded in the open window.
func (m *Meter) Pending() int64 { return m.count }
