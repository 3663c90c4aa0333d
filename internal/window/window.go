// Package window holds the bounded, newest-first history of events shown by
// a live tail.
package window

import "rpctail/internal/models"

// DefaultCapacity is the number of events a tail keeps client-side.
const DefaultCapacity = 100

// Window is a fixed-capacity deque of events ordered newest-first.
// Prepending to a full window evicts the oldest event.
//
// Window is not safe for concurrent use; the tail engine owns it from a
// single goroutine.
type Window struct {
	buf   []models.Event
	head  int // index of the newest event
	count int
}

// New returns an empty window. A non-positive capacity selects DefaultCapacity.
func New(capacity int) *Window {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Window{buf: make([]models.Event, capacity)}
}

// Replace sets the window to events, which must already be newest-first.
// Input beyond capacity is truncated from the old end.
func (w *Window) Replace(events []models.Event) {
	clear(w.buf)
	n := min(len(events), len(w.buf))
	copy(w.buf, events[:n])
	w.head = 0
	w.count = n
}

// Prepend inserts e as the newest event and reports whether the oldest
// event was evicted to make room.
func (w *Window) Prepend(e models.Event) (evicted bool) {
	capacity := len(w.buf)
	// Stepping head back lands on the oldest slot when the window is full,
	// so the write itself performs the eviction.
	w.head = (w.head - 1 + capacity) % capacity
	w.buf[w.head] = e
	if w.count < capacity {
		w.count++
		return false
	}
	return true
}

// Clear empties the window.
func (w *Window) Clear() {
	clear(w.buf)
	w.head = 0
	w.count = 0
}

// Len returns the number of events held.
func (w *Window) Len() int { return w.count }

// Cap returns the fixed capacity.
func (w *Window) Cap() int { return len(w.buf) }

// Items returns a newest-first copy of the window.
func (w *Window) Items() []models.Event {
	out := make([]models.Event, w.count)
	for i := range out {
		out[i] = w.buf[(w.head+i)%len(w.buf)]
	}
	return out
}
