package stream_test

import (
	"errors"
	"sync/atomic"
	"testing"
	"time"

	"rpctail/internal/stream"
	"rpctail/internal/stream/streamtest"

	"github.com/cenkalti/backoff/v4"
)

type harness struct {
	t      *testing.T
	m      *stream.Manager
	clk    *streamtest.Clock
	dialer *streamtest.Dialer
	sigs   chan stream.Signal
	paused atomic.Bool
}

func newHarness(t *testing.T, policy backoff.BackOff) *harness {
	t.Helper()
	h := &harness{
		t:      t,
		clk:    streamtest.NewClock(time.Unix(1_700_000_000, 0)),
		dialer: streamtest.NewDialer(),
		sigs:   make(chan stream.Signal, 64),
	}
	h.m = stream.NewManager(stream.Config{
		URL:        "ws://example.test/ws/logs",
		Header:     stream.BearerHeader("k"),
		Dialer:     h.dialer,
		Clock:      h.clk,
		Policy:     policy,
		Post:       func(s stream.Signal) { h.sigs <- s },
		Suppressed: h.paused.Load,
	})
	t.Cleanup(func() {
		h.m.Teardown()
		h.m.Wait()
	})
	return h
}

// pump handles the next posted signal on the test goroutine.
func (h *harness) pump() (stream.Signal, stream.Message, bool) {
	h.t.Helper()
	select {
	case s := <-h.sigs:
		msg, ok := h.m.Handle(s)
		return s, msg, ok
	case <-time.After(2 * time.Second):
		h.t.Fatal("timed out waiting for signal")
		return stream.Signal{}, stream.Message{}, false
	}
}

func (h *harness) noSignal() {
	h.t.Helper()
	select {
	case s := <-h.sigs:
		h.t.Fatalf("unexpected signal: malformed=%v", s.Malformed())
	case <-time.After(20 * time.Millisecond):
	}
}

func (h *harness) next() *streamtest.Conn {
	h.t.Helper()
	c, ok := h.dialer.Next(2 * time.Second)
	if !ok {
		h.t.Fatal("timed out waiting for dial")
	}
	return c
}

// open connects and consumes the opened signal.
func (h *harness) open() *streamtest.Conn {
	h.t.Helper()
	h.m.Connect()
	c := h.next()
	h.pump()
	if h.m.State() != stream.StateOpen {
		h.t.Fatalf("state = %v, want open", h.m.State())
	}
	return c
}

func TestManager_ConnectOpenReceive(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	if h.m.State() != stream.StateClosed {
		t.Fatalf("initial state = %v", h.m.State())
	}
	h.m.Connect()
	if h.m.State() != stream.StateConnecting {
		t.Fatalf("state after Connect = %v", h.m.State())
	}
	c := h.next()
	h.pump()
	if h.m.State() != stream.StateOpen {
		t.Fatalf("state = %v, want open", h.m.State())
	}
	if got := h.dialer.Header(0).Get("Authorization"); got != "Bearer k" {
		t.Fatalf("authorization header = %q", got)
	}

	c.Send([]byte(`{"type":"initial","logs":[{"requestId":"a"}]}`))
	_, msg, ok := h.pump()
	if !ok || msg.Kind != stream.KindSnapshot || len(msg.Events) != 1 {
		t.Fatalf("unexpected snapshot: ok=%v msg=%+v", ok, msg)
	}

	c.Send([]byte(`{"type":"log","log":{"requestId":"b"}}`))
	_, msg, ok = h.pump()
	if !ok || msg.Kind != stream.KindIncrement || msg.Event.RequestID != "b" {
		t.Fatalf("unexpected increment: ok=%v msg=%+v", ok, msg)
	}
}

func TestManager_ConnectIsNoopWhileOpenOrDialing(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)

	h.m.Connect()
	h.m.Connect()
	h.next()
	h.pump()
	h.m.Connect()

	if n := h.dialer.Dials(); n != 1 {
		t.Fatalf("dials = %d, want 1", n)
	}
	if h.m.Attempts() != 1 {
		t.Fatalf("attempts = %d, want 1", h.m.Attempts())
	}
}

func TestManager_CloseSchedulesExactlyOneReconnect(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	c := h.open()

	_ = c.Close()
	closeSig, _, _ := h.pump()
	if h.m.State() != stream.StateClosed {
		t.Fatalf("state = %v, want closed", h.m.State())
	}
	if !h.m.ReconnectPending() || h.clk.PendingTimers() != 1 {
		t.Fatalf("pending=%v timers=%d, want one", h.m.ReconnectPending(), h.clk.PendingTimers())
	}

	// A second close before the timer fires must not add another timer.
	h.m.Handle(closeSig)
	if h.clk.PendingTimers() != 1 {
		t.Fatalf("timers = %d after duplicate close, want 1", h.clk.PendingTimers())
	}

	h.clk.Advance(stream.DefaultReconnectDelay - time.Millisecond)
	h.noSignal()
	if h.dialer.Dials() != 1 {
		t.Fatal("reconnected before the delay elapsed")
	}

	h.clk.Advance(time.Millisecond)
	h.pump()
	h.next()
	if h.m.State() != stream.StateConnecting || h.m.ReconnectPending() {
		t.Fatalf("state=%v pending=%v after retry", h.m.State(), h.m.ReconnectPending())
	}
	if h.dialer.Dials() != 2 {
		t.Fatalf("dials = %d, want 2", h.dialer.Dials())
	}
}

func TestManager_NoReconnectWhileSuppressed(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	c := h.open()

	h.paused.Store(true)
	_ = c.Close()
	h.pump()

	if h.m.ReconnectPending() || h.clk.PendingTimers() != 0 {
		t.Fatal("reconnect scheduled while suppressed")
	}
	h.clk.Advance(time.Minute)
	h.noSignal()

	h.paused.Store(false)
	h.m.Connect()
	h.next()
	if h.m.State() != stream.StateConnecting {
		t.Fatalf("state = %v, want connecting", h.m.State())
	}
}

func TestManager_RetrySkippedWhenSuppressedBeforeFiring(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	c := h.open()

	_ = c.Close()
	h.pump()
	h.paused.Store(true)

	h.clk.Advance(stream.DefaultReconnectDelay)
	h.pump()
	if h.m.ReconnectPending() || h.m.State() != stream.StateClosed {
		t.Fatalf("pending=%v state=%v", h.m.ReconnectPending(), h.m.State())
	}
	if h.dialer.Dials() != 1 {
		t.Fatalf("dials = %d, want 1", h.dialer.Dials())
	}
}

func TestManager_ConnectCancelsPendingRetry(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	c := h.open()

	_ = c.Close()
	h.pump()
	h.m.Connect()
	h.next()

	if h.m.ReconnectPending() || h.clk.PendingTimers() != 0 {
		t.Fatal("retry left pending after explicit connect")
	}
	h.clk.Advance(stream.DefaultReconnectDelay)
	h.pump() // opened
	if h.dialer.Dials() != 2 {
		t.Fatalf("dials = %d, want 2", h.dialer.Dials())
	}
}

func TestManager_DialFailureSchedulesRetry(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	h.dialer.SetErr(errors.New("connection refused"))

	h.m.Connect()
	h.pump()
	if h.m.State() != stream.StateClosed || !h.m.ReconnectPending() {
		t.Fatalf("state=%v pending=%v", h.m.State(), h.m.ReconnectPending())
	}

	h.dialer.SetErr(nil)
	h.clk.Advance(stream.DefaultReconnectDelay)
	h.pump()
	h.next()
	h.pump()
	if h.m.State() != stream.StateOpen {
		t.Fatalf("state = %v, want open", h.m.State())
	}
}

func TestManager_MalformedFrameDropped(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	c := h.open()

	c.Send([]byte(`not json`))
	sig, _, ok := h.pump()
	if ok || !sig.Malformed() {
		t.Fatalf("ok=%v malformed=%v", ok, sig.Malformed())
	}
	if h.m.State() != stream.StateOpen {
		t.Fatal("malformed frame changed state")
	}

	c.Send([]byte(`{"type":"log","log":{"requestId":"x"}}`))
	if _, _, ok := h.pump(); !ok {
		t.Fatal("valid frame after malformed one was dropped")
	}
}

func TestManager_TeardownIgnoresLaterSignals(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	c := h.open()

	h.m.Teardown()
	h.m.Teardown()

	// The reader observes the closed conn and posts a close that must be ignored.
	h.pump()
	if !c.Closed() {
		t.Fatal("conn not closed by teardown")
	}
	if h.m.ReconnectPending() || h.clk.PendingTimers() != 0 {
		t.Fatal("reconnect scheduled after teardown")
	}
	h.m.Connect()
	if h.dialer.Dials() != 1 {
		t.Fatal("connect after teardown dialed")
	}
	h.m.Wait()
}

func TestManager_TeardownCancelsPendingRetry(t *testing.T) {
	t.Parallel()
	h := newHarness(t, nil)
	c := h.open()
	_ = c.Close()
	h.pump()

	h.m.Teardown()
	if h.clk.PendingTimers() != 0 {
		t.Fatal("retry timer survived teardown")
	}
	h.clk.Advance(time.Minute)
	h.noSignal()
}

func TestManager_ExponentialPolicyResetsOnOpen(t *testing.T) {
	t.Parallel()
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = time.Second
	b.RandomizationFactor = 0
	b.Multiplier = 2
	b.MaxInterval = 10 * time.Second
	b.MaxElapsedTime = 0
	b.Reset()

	h := newHarness(t, b)
	h.dialer.SetErr(errors.New("refused"))

	h.m.Connect()
	h.pump()
	// First retry after 1s.
	h.clk.Advance(time.Second)
	h.pump() // retry due
	h.pump() // closed again
	// Second retry after 2s.
	h.clk.Advance(time.Second)
	h.noSignal()
	h.dialer.SetErr(nil)
	h.clk.Advance(time.Second)
	h.pump()

	h.next()
	h.pump()
	if h.m.State() != stream.StateOpen {
		t.Fatalf("state = %v, want open", h.m.State())
	}
	if next := b.NextBackOff(); next != time.Second {
		t.Fatalf("policy not reset on open: next = %v", next)
	}
}
