package stream

import (
	"context"
	"errors"
	"net/http"
	"sync"

	"rpctail/internal/logger"

	"github.com/cenkalti/backoff/v4"
	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
)

type signalKind int

const (
	signalOpened signalKind = iota + 1
	signalClosed
	signalReceived
	signalMalformed
	signalRetryDue
)

// Signal is a connection event produced off-loop and handed back to the
// owning loop through Manager.Handle.
type Signal struct {
	kind signalKind
	gen  uint64
	msg  Message
	err  error
}

// Malformed reports whether the signal carries a payload that failed to decode.
func (s Signal) Malformed() bool { return s.kind == signalMalformed }

// Config configures a Manager.
type Config struct {
	URL    string
	Header http.Header
	Dialer Dialer
	Clock  clockwork.Clock
	// Policy yields reconnect delays. Defaults to a fixed DefaultReconnectDelay.
	Policy backoff.BackOff
	// Post delivers signals to the owning loop. It must not block forever.
	Post func(Signal)
	// Suppressed reports whether automatic reconnects are currently disabled.
	Suppressed func() bool
	Log        *logger.Logger
}

// Manager owns the push-channel connection. Every method except Wait must be
// called from the single loop that receives the posted signals.
type Manager struct {
	url        string
	header     http.Header
	dialer     Dialer
	clock      clockwork.Clock
	policy     backoff.BackOff
	post       func(Signal)
	suppressed func() bool
	log        *logger.Logger

	state    State
	gen      uint64
	cancel   context.CancelFunc
	retry    clockwork.Timer
	torn     bool
	attempts int

	wg sync.WaitGroup
}

// NewManager returns an idle manager in StateClosed.
func NewManager(cfg Config) *Manager {
	m := &Manager{
		url:        cfg.URL,
		header:     cfg.Header,
		dialer:     cfg.Dialer,
		clock:      cfg.Clock,
		policy:     cfg.Policy,
		post:       cfg.Post,
		suppressed: cfg.Suppressed,
		log:        cfg.Log,
		state:      StateClosed,
	}
	if m.dialer == nil {
		m.dialer = WebsocketDialer{}
	}
	if m.clock == nil {
		m.clock = clockwork.NewRealClock()
	}
	if m.policy == nil {
		m.policy = backoff.NewConstantBackOff(DefaultReconnectDelay)
	}
	if m.post == nil {
		m.post = func(Signal) {}
	}
	if m.suppressed == nil {
		m.suppressed = func() bool { return false }
	}
	if m.log == nil {
		m.log = logger.Nop()
	}
	return m
}

// State returns the current connection state.
func (m *Manager) State() State { return m.state }

// ReconnectPending reports whether a reconnect attempt is scheduled.
func (m *Manager) ReconnectPending() bool { return m.retry != nil }

// Attempts returns how many connections have been started.
func (m *Manager) Attempts() int { return m.attempts }

// Connect starts a dial unless the channel is open or a dial is in flight.
// It never blocks. A pending reconnect is cancelled.
func (m *Manager) Connect() {
	if m.torn || m.state == StateOpen || m.state == StateConnecting {
		return
	}
	m.stopRetry()

	m.gen++
	m.attempts++
	gen := m.gen
	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.state = StateConnecting

	m.log.Infow("stream_connecting", "url", m.url, "attempt", m.attempts)

	m.wg.Add(1)
	go m.run(ctx, gen)
}

// Handle applies a signal to the connection state. It returns the decoded
// message when the signal carries one from the current connection.
func (m *Manager) Handle(sig Signal) (Message, bool) {
	if m.torn || sig.gen != m.gen {
		return Message{}, false
	}

	switch sig.kind {
	case signalOpened:
		if m.state != StateConnecting {
			return Message{}, false
		}
		m.state = StateOpen
		m.policy.Reset()
		m.log.Infow("stream_open", "url", m.url)
	case signalReceived:
		if m.state == StateOpen {
			return sig.msg, true
		}
	case signalMalformed:
		m.log.Warnw("stream_message_dropped", "err", sig.err)
	case signalClosed:
		m.closed(sig.err)
	case signalRetryDue:
		m.retry = nil
		if m.suppressed() {
			m.log.Debugw("stream_reconnect_skipped")
			return Message{}, false
		}
		m.Connect()
	}
	return Message{}, false
}

func (m *Manager) closed(err error) {
	if m.state == StateClosed {
		return
	}
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateClosed
	m.log.Infow("stream_closed", "url", m.url, "err", err)

	if m.suppressed() || m.retry != nil {
		return
	}
	delay := m.policy.NextBackOff()
	if delay == backoff.Stop || delay < 0 {
		delay = DefaultReconnectDelay
	}
	gen := m.gen
	m.retry = m.clock.AfterFunc(delay, func() {
		m.post(Signal{kind: signalRetryDue, gen: gen})
	})
	m.log.Infow("stream_reconnect_scheduled", "delay", delay.String())
}

// Teardown closes the connection, aborts a dial in flight and cancels the
// pending reconnect. Later signals are ignored. Safe to call repeatedly.
func (m *Manager) Teardown() {
	if m.torn {
		return
	}
	m.torn = true
	m.stopRetry()
	if m.cancel != nil {
		m.cancel()
		m.cancel = nil
	}
	m.state = StateClosed
}

// Wait blocks until the dial and reader goroutines have exited. Call after
// Teardown; it may be called from any goroutine.
func (m *Manager) Wait() { m.wg.Wait() }

func (m *Manager) stopRetry() {
	if m.retry != nil {
		m.retry.Stop()
		m.retry = nil
	}
}

// run dials and then pumps frames until the connection ends. The connection
// is closed as soon as ctx is cancelled.
func (m *Manager) run(ctx context.Context, gen uint64) {
	defer m.wg.Done()

	conn, err := m.dialer.Dial(ctx, m.url, m.header)
	if err != nil {
		m.log.Warnw("stream_dial_failed", "url", m.url, "err", err)
		m.post(Signal{kind: signalClosed, gen: gen, err: err})
		return
	}
	stop := context.AfterFunc(ctx, func() { _ = conn.Close() })
	defer func() {
		if stop() {
			_ = conn.Close()
		}
	}()

	m.post(Signal{kind: signalOpened, gen: gen})

	for {
		data, err := conn.ReadMessage()
		if err != nil {
			if ctx.Err() == nil && !isNormalClose(err) {
				m.log.Warnw("stream_read_error", "err", err)
			}
			m.post(Signal{kind: signalClosed, gen: gen, err: err})
			return
		}
		msg, err := Decode(data)
		if err != nil {
			m.post(Signal{kind: signalMalformed, gen: gen, err: err})
			continue
		}
		m.post(Signal{kind: signalReceived, gen: gen, msg: msg})
	}
}

func isNormalClose(err error) bool {
	var ce *websocket.CloseError
	if errors.As(err, &ce) {
		return ce.Code == websocket.CloseNormalClosure || ce.Code == websocket.CloseGoingAway
	}
	return false
}
