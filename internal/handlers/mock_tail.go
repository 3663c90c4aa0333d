package handlers

import (
	"sync"

	"rpctail/internal/filter"
	"rpctail/internal/tail"
)

// mockTail is an in-memory Tail for handler tests.
type mockTail struct {
	mu   sync.Mutex
	view tail.View
	err  error

	pauses, resumes, clears int
	subs                    []chan struct{}
}

func (m *mockTail) View() tail.View {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.view
}

func (m *mockTail) Pause() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.pauses++
	m.view.Paused = true
	return nil
}

func (m *mockTail) Resume() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.resumes++
	m.view.Paused = false
	return nil
}

func (m *mockTail) Clear() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.clears++
	m.view.Events = nil
	return nil
}

func (m *mockTail) SetFilter(c filter.Criteria) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.view.Criteria = c.Normalize()
	return nil
}

func (m *mockTail) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	m.mu.Lock()
	m.subs = append(m.subs, ch)
	m.mu.Unlock()
	return ch, func() {}
}

// update replaces the view and notifies subscribers.
func (m *mockTail) update(fn func(v *tail.View)) {
	m.mu.Lock()
	fn(&m.view)
	subs := append([]chan struct{}(nil), m.subs...)
	m.mu.Unlock()
	for _, ch := range subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
}

// shutdown closes every subscriber channel.
func (m *mockTail) shutdown() {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, ch := range m.subs {
		close(ch)
	}
	m.subs = nil
}
