// Package tail implements the live tail engine: one push-channel connection,
// a bounded newest-first window, a throughput meter and periodic pulls of
// aggregate stats and the network catalog.
//
// All state is owned by a single loop goroutine. Connection signals, timer
// ticks, pull results and user commands are posted to its inbox; readers see
// an immutable View published after every change.
package tail

import (
	"context"
	"errors"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"rpctail/internal/filter"
	"rpctail/internal/logger"
	"rpctail/internal/metrics"
	"rpctail/internal/models"
	"rpctail/internal/poller"
	"rpctail/internal/stream"
	"rpctail/internal/throughput"
	"rpctail/internal/window"

	"github.com/cenkalti/backoff/v4"
	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"
)

var (
	ErrClosed     = errors.New("tail: engine closed")
	ErrStarted    = errors.New("tail: engine already started")
	ErrNotStarted = errors.New("tail: engine not started")
)

// Defaults for Config fields left zero.
const (
	DefaultStatsInterval    = 5000 * time.Millisecond
	DefaultNetworksInterval = 60 * time.Second
	inboxSize               = 256
)

// Config holds engine-internal constants.
type Config struct {
	URL                string
	Header             http.Header
	Capacity           int
	ThroughputInterval time.Duration
	StatsInterval      time.Duration
	NetworksInterval   time.Duration
	// PullTimeout bounds one collaborator pull. Zero uses the poll interval.
	PullTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Capacity <= 0 {
		c.Capacity = window.DefaultCapacity
	}
	if c.ThroughputInterval <= 0 {
		c.ThroughputInterval = throughput.Interval
	}
	if c.StatsInterval <= 0 {
		c.StatsInterval = DefaultStatsInterval
	}
	if c.NetworksInterval <= 0 {
		c.NetworksInterval = DefaultNetworksInterval
	}
	return c
}

// Deps are the engine's collaborators. Only Dialer is required in practice;
// nil sources disable the matching poller.
type Deps struct {
	Dialer   stream.Dialer
	Policy   backoff.BackOff
	Stats    StatsSource
	Networks CatalogSource
	Clock    clockwork.Clock
	Log      *logger.Logger
	Metrics  *metrics.Engine
}

const (
	stateIdle = iota
	stateRunning
	stateClosed
)

// Engine is one live tail session. Create with New, run with Start and
// release with Close.
type Engine struct {
	cfg     Config
	clock   clockwork.Clock
	log     *logger.Logger
	metrics *metrics.Engine
	stats   StatsSource
	catalog CatalogSource
	session string

	inbox chan func()
	done  chan struct{}
	view  atomic.Pointer[View]

	mu     sync.Mutex
	state  int
	cancel context.CancelFunc
	wg     sync.WaitGroup
	subs   map[chan struct{}]struct{}

	// Loop-owned.
	mgr            *stream.Manager
	win            *window.Window
	meter          *throughput.Meter
	paused         bool
	criteria       filter.Criteria
	counters       Counters
	lastStats      *models.AggregateStats
	statsUpdatedAt time.Time
	statsErr       string
	networks       []models.Network
	networksErr    string
}

// New builds an idle engine.
func New(cfg Config, deps Deps) *Engine {
	cfg = cfg.withDefaults()
	e := &Engine{
		cfg:     cfg,
		clock:   deps.Clock,
		log:     deps.Log,
		metrics: deps.Metrics,
		stats:   deps.Stats,
		catalog: deps.Networks,
		session: uuid.NewString(),
		inbox:   make(chan func(), inboxSize),
		done:    make(chan struct{}),
		subs:    make(map[chan struct{}]struct{}),
		win:     window.New(cfg.Capacity),
	}
	if e.clock == nil {
		e.clock = clockwork.NewRealClock()
	}
	if e.log == nil {
		e.log = logger.Nop()
	}
	e.meter = throughput.New(e.clock.Now())
	e.mgr = stream.NewManager(stream.Config{
		URL:        cfg.URL,
		Header:     cfg.Header,
		Dialer:     deps.Dialer,
		Clock:      e.clock,
		Policy:     deps.Policy,
		Post:       func(s stream.Signal) { e.post(func() { e.onSignal(s) }) },
		Suppressed: func() bool { return e.paused },
		Log:        e.log,
	})
	e.publish()
	return e
}

// SessionID identifies this engine instance.
func (e *Engine) SessionID() string { return e.session }

// Start connects immediately and starts the throughput ticker and pollers.
// The engine stops when ctx is cancelled or Close is called.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	switch e.state {
	case stateRunning:
		e.mu.Unlock()
		return ErrStarted
	case stateClosed:
		e.mu.Unlock()
		return ErrClosed
	}
	e.state = stateRunning
	runCtx, cancel := context.WithCancel(ctx)
	e.cancel = cancel
	e.mu.Unlock()

	e.log.Infow("tail_start", "session", e.session, "url", e.cfg.URL, "capacity", e.cfg.Capacity)

	e.wg.Add(1)
	go e.loop(runCtx)

	if e.stats != nil {
		e.wg.Add(1)
		go e.pollStats(runCtx)
	}
	if e.catalog != nil {
		e.wg.Add(1)
		go e.pollNetworks(runCtx)
	}
	return nil
}

// Close tears down the connection, stops every timer and waits for all
// goroutines. It is safe in any state and idempotent.
func (e *Engine) Close() error {
	e.mu.Lock()
	prev := e.state
	e.state = stateClosed
	cancel := e.cancel
	e.mu.Unlock()

	if prev == stateClosed {
		return nil
	}
	if prev == stateIdle {
		e.mgr.Teardown()
		close(e.done)
	} else {
		cancel()
		e.wg.Wait()
	}
	e.mgr.Wait()

	e.mu.Lock()
	for ch := range e.subs {
		close(ch)
		delete(e.subs, ch)
	}
	e.mu.Unlock()

	e.log.Infow("tail_closed", "session", e.session)
	return nil
}

// Pause stops ingesting increments and suppresses automatic reconnects.
// The connection stays open.
func (e *Engine) Pause() error {
	return e.do(func() {
		if e.paused {
			return
		}
		e.paused = true
		e.log.Infow("tail_paused", "session", e.session)
	})
}

// Resume re-enables ingestion and connects immediately when the channel is
// not open. Events dropped while paused are not recovered.
func (e *Engine) Resume() error {
	return e.do(func() {
		if !e.paused {
			return
		}
		e.paused = false
		e.log.Infow("tail_resumed", "session", e.session, "connection", e.mgr.State().String())
		if e.mgr.State() != stream.StateOpen {
			e.mgr.Connect()
		}
	})
}

// Clear empties the window. Connection and pause state are untouched.
func (e *Engine) Clear() error {
	return e.do(func() {
		e.win.Clear()
	})
}

// SetFilter replaces the criteria used by View.Filtered.
func (e *Engine) SetFilter(c filter.Criteria) error {
	return e.do(func() {
		e.criteria = c.Normalize()
	})
}

// View returns the latest published read model.
func (e *Engine) View() View { return *e.view.Load() }

// Filtered returns the visible events of the latest view.
func (e *Engine) Filtered() []models.Event { return e.View().Filtered() }

// Subscribe returns a channel that receives after view changes. Notifications
// coalesce; the channel is closed by cancel or Close.
func (e *Engine) Subscribe() (<-chan struct{}, func()) {
	ch := make(chan struct{}, 1)
	e.mu.Lock()
	if e.state == stateClosed {
		e.mu.Unlock()
		close(ch)
		return ch, func() {}
	}
	e.subs[ch] = struct{}{}
	e.mu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			e.mu.Lock()
			if _, ok := e.subs[ch]; ok {
				delete(e.subs, ch)
				close(ch)
			}
			e.mu.Unlock()
		})
	}
}

// do runs fn on the loop and waits for it, then publishes.
func (e *Engine) do(fn func()) error {
	e.mu.Lock()
	st := e.state
	e.mu.Unlock()
	switch st {
	case stateIdle:
		return ErrNotStarted
	case stateClosed:
		return ErrClosed
	}

	ran := make(chan struct{})
	select {
	case e.inbox <- func() { fn(); e.publish(); close(ran) }:
	case <-e.done:
		return ErrClosed
	}
	select {
	case <-ran:
		return nil
	case <-e.done:
		select {
		case <-ran:
			return nil
		default:
			return ErrClosed
		}
	}
}

// post hands fn to the loop. It gives up once the loop has exited.
func (e *Engine) post(fn func()) {
	select {
	case e.inbox <- fn:
	case <-e.done:
	}
}

func (e *Engine) loop(ctx context.Context) {
	defer e.wg.Done()
	defer close(e.done)

	e.meter = throughput.New(e.clock.Now())
	ticker := e.clock.NewTicker(e.cfg.ThroughputInterval)
	defer ticker.Stop()

	e.mgr.Connect()
	e.publish()

	for {
		select {
		case <-ctx.Done():
			e.mgr.Teardown()
			e.publish()
			return
		case fn := <-e.inbox:
			fn()
		case now := <-ticker.Chan():
			e.sample(now)
		}
	}
}

func (e *Engine) sample(now time.Time) {
	prev := e.meter.Rate()
	rate, updated := e.meter.Sample(now)
	if !updated {
		return
	}
	e.metrics.Throughput(rate)
	if rate != prev {
		e.publish()
	}
}

func (e *Engine) onSignal(sig stream.Signal) {
	wasPending := e.mgr.ReconnectPending()
	msg, ok := e.mgr.Handle(sig)

	if sig.Malformed() {
		e.counters.Malformed++
		e.metrics.Event(metrics.ResultMalformed)
	}
	if !wasPending && e.mgr.ReconnectPending() {
		e.counters.Reconnects++
		e.metrics.ReconnectScheduled()
	}
	if ok {
		e.accept(msg)
	}
	e.publish()
}

func (e *Engine) accept(msg stream.Message) {
	switch msg.Kind {
	case stream.KindSnapshot:
		e.win.Replace(msg.Events)
		e.counters.Snapshots++
		e.metrics.Snapshot()
		e.log.Debugw("tail_snapshot", "events", len(msg.Events), "kept", e.win.Len())
	case stream.KindIncrement:
		if e.paused {
			e.counters.DroppedPaused++
			e.metrics.Event(metrics.ResultDroppedPaused)
			return
		}
		e.win.Prepend(msg.Event)
		e.meter.Record()
		e.counters.Accepted++
		e.metrics.Event(metrics.ResultAccepted)
	}
}

func (e *Engine) pollStats(ctx context.Context) {
	defer e.wg.Done()

	if c, ok := e.stats.(statsCache); ok {
		if v, at, found, err := c.Cached(ctx); err != nil {
			e.log.Warnw("tail_stats_cache_failed", "err", err)
		} else if found {
			e.post(func() {
				if e.lastStats == nil {
					e.lastStats = &v
					e.statsUpdatedAt = at
					e.publish()
				}
			})
		}
	}

	p := &poller.Poller[models.AggregateStats]{
		Name:     "stats",
		Interval: e.cfg.StatsInterval,
		Timeout:  e.cfg.PullTimeout,
		Fetch:    e.stats.Fetch,
		OnSuccess: func(v models.AggregateStats) {
			e.post(func() {
				e.lastStats = &v
				e.statsUpdatedAt = e.clock.Now()
				e.statsErr = ""
				e.publish()
			})
		},
		OnError: func(err error) {
			e.post(func() {
				e.statsErr = err.Error()
				e.metrics.PullFailure("stats")
				e.publish()
			})
		},
		Clock: e.clock,
		Log:   e.log,
	}
	_ = p.Run(ctx)
}

func (e *Engine) pollNetworks(ctx context.Context) {
	defer e.wg.Done()

	if c, ok := e.catalog.(catalogCache); ok {
		if v, _, found, err := c.Cached(ctx); err != nil {
			e.log.Warnw("tail_networks_cache_failed", "err", err)
		} else if found {
			e.post(func() {
				if e.networks == nil {
					e.networks = v
					e.publish()
				}
			})
		}
	}

	p := &poller.Poller[[]models.Network]{
		Name:     "networks",
		Interval: e.cfg.NetworksInterval,
		Timeout:  e.cfg.PullTimeout,
		Fetch:    e.catalog.Fetch,
		OnSuccess: func(v []models.Network) {
			e.post(func() {
				e.networks = v
				e.networksErr = ""
				e.publish()
			})
		},
		OnError: func(err error) {
			e.post(func() {
				e.networksErr = err.Error()
				e.metrics.PullFailure("networks")
				e.publish()
			})
		},
		Clock: e.clock,
		Log:   e.log,
	}
	_ = p.Run(ctx)
}

// publish stores a fresh View and wakes subscribers. Loop-only, except in New.
func (e *Engine) publish() {
	v := &View{
		SessionID:        e.session,
		Connection:       e.mgr.State(),
		ReconnectPending: e.mgr.ReconnectPending(),
		Paused:           e.paused,
		Throughput:       e.meter.Rate(),
		Stats:            e.lastStats,
		StatsUpdatedAt:   e.statsUpdatedAt,
		StatsError:       e.statsErr,
		Networks:         e.networks,
		NetworksError:    e.networksErr,
		Events:           e.win.Items(),
		Capacity:         e.win.Cap(),
		Criteria:         e.criteria,
		Counters:         e.counters,
		UpdatedAt:        e.clock.Now(),
	}
	e.view.Store(v)

	e.metrics.ConnectionState(int(v.Connection))
	e.metrics.WindowSize(len(v.Events))

	e.mu.Lock()
	for ch := range e.subs {
		select {
		case ch <- struct{}{}:
		default:
		}
	}
	e.mu.Unlock()
}
