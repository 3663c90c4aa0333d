// Package simulator stands in for the RPC gateway during development: it
// generates synthetic request logs and serves the push channel, the stats
// endpoint and the network catalog.
package simulator

import (
	"context"
	"encoding/json"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"rpctail/internal/logger"
	"rpctail/internal/models"
	"rpctail/internal/stream"

	"github.com/google/uuid"
)

// ----------- Generation defaults -----------
const (
	DefaultTick        = 250 * time.Millisecond
	DefaultRate        = 8.0  // mean events per second
	DefaultErrorRatio  = 0.05 // share of failed calls
	DefaultHistory     = 100  // events kept for new subscribers
	BaseLatencyMS      = 12.0
	LatencySpreadMS    = 180.0
	subscriberBuffer   = 256
	apiKeyPoolSize     = 4
	maxEventsPerTick   = 1000
	errorLatencyFactor = 2.5
)

var defaultNetworks = []models.Network{
	{Slug: "eth-mainnet", Name: "Ethereum Mainnet"},
	{Slug: "base", Name: "Base"},
	{Slug: "arbitrum", Name: "Arbitrum One"},
	{Slug: "optimism", Name: "OP Mainnet"},
	{Slug: "polygon", Name: "Polygon PoS"},
	{Slug: "sepolia", Name: "Sepolia"},
}

var defaultMethods = []string{
	"eth_blockNumber",
	"eth_call",
	"eth_chainId",
	"eth_getBalance",
	"eth_getLogs",
	"eth_getTransactionReceipt",
	"eth_sendRawTransaction",
}

// Config tunes the synthetic traffic.
type Config struct {
	Tick       time.Duration
	Rate       float64
	ErrorRatio float64
	History    int
	Seed       uint64
	Networks   []models.Network
	Methods    []string
}

func (c Config) withDefaults() Config {
	if c.Tick <= 0 {
		c.Tick = DefaultTick
	}
	if c.Rate <= 0 {
		c.Rate = DefaultRate
	}
	if c.ErrorRatio < 0 || c.ErrorRatio > 1 {
		c.ErrorRatio = DefaultErrorRatio
	}
	if c.History <= 0 {
		c.History = DefaultHistory
	}
	if len(c.Networks) == 0 {
		c.Networks = defaultNetworks
	}
	if len(c.Methods) == 0 {
		c.Methods = defaultMethods
	}
	return c
}

// Simulator generates events and fans them out to subscribers.
type Simulator struct {
	cfg Config
	log *logger.Logger

	mu      sync.Mutex
	rng     *rand.Rand
	nextID  int64
	carry   float64
	history []models.Event // newest first
	total   int64
	errors  int64
	latency float64 // running mean
	subs    map[chan []byte]struct{}
}

// New returns a Simulator with defaults applied.
func New(cfg Config, log *logger.Logger) *Simulator {
	cfg = cfg.withDefaults()
	seed := cfg.Seed
	if seed == 0 {
		seed = uint64(time.Now().UnixNano())
	}
	return &Simulator{
		cfg:  cfg,
		log:  log,
		rng:  rand.New(rand.NewPCG(seed, seed^0x9e3779b97f4a7c15)),
		subs: make(map[chan []byte]struct{}),
	}
}

// Run ticks at the configured interval until ctx is canceled.
func (s *Simulator) Run(ctx context.Context) {
	t := time.NewTicker(s.cfg.Tick)
	defer t.Stop()
	last := time.Now()
	for {
		select {
		case <-ctx.Done():
			s.closeSubscribers()
			return
		case now := <-t.C:
			elapsed := now.Sub(last)
			last = now
			for i, n := 0, s.due(elapsed); i < n; i++ {
				s.Emit(s.Generate(now))
			}
		}
	}
}

// due converts the elapsed time into a whole number of events, carrying
// the fraction over to the next tick.
func (s *Simulator) due(elapsed time.Duration) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	// Jitter the rate by up to ±50% so traffic looks bursty.
	jitter := 0.5 + s.rng.Float64()
	s.carry += s.cfg.Rate * elapsed.Seconds() * jitter
	n := int(s.carry)
	s.carry -= float64(n)
	if n > maxEventsPerTick {
		n = maxEventsPerTick
	}
	return n
}

// Generate builds one synthetic event stamped at now.
func (s *Simulator) Generate(now time.Time) models.Event {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.nextID++
	id := s.nextID
	keyID := int64(s.rng.IntN(apiKeyPoolSize) + 1)
	network := s.cfg.Networks[s.rng.IntN(len(s.cfg.Networks))]
	method := s.cfg.Methods[s.rng.IntN(len(s.cfg.Methods))]
	failed := s.rng.Float64() < s.cfg.ErrorRatio

	latency := BaseLatencyMS + s.rng.ExpFloat64()*LatencySpreadMS/3
	if failed {
		latency *= errorLatencyFactor
	}
	latency = float64(int(latency*100)) / 100

	ev := models.Event{
		ID:        &id,
		RequestID: uuid.NewString(),
		APIKeyID:  &keyID,
		KeyPrefix: fmt.Sprintf("rpc_%04x", keyID*0x1f3d),
		Network:   network.Slug,
		Method:    method,
		Status:    models.OutcomeSuccess,
		LatencyMS: latency,
		CreatedAt: now.UTC(),
	}
	ev.Request, _ = json.Marshal(map[string]any{
		"jsonrpc": "2.0", "id": id, "method": method, "params": []any{},
	})

	code := 200
	if failed {
		ev.Status = models.OutcomeError
		code, ev.ErrorMessage = s.failure()
		ev.Response, _ = json.Marshal(map[string]any{
			"jsonrpc": "2.0", "id": id,
			"error": map[string]any{"code": -32000, "message": ev.ErrorMessage},
		})
	} else {
		ev.Response, _ = json.Marshal(map[string]any{
			"jsonrpc": "2.0", "id": id, "result": fmt.Sprintf("0x%x", s.rng.Uint32()),
		})
	}
	ev.StatusCode = &code
	return ev
}

func (s *Simulator) failure() (int, string) {
	switch s.rng.IntN(3) {
	case 0:
		return 429, "rate limit exceeded"
	case 1:
		return 504, "upstream timeout"
	default:
		return 502, "execution reverted"
	}
}

// Emit records ev and pushes it to every subscriber. Subscribers that
// cannot keep up are disconnected.
func (s *Simulator) Emit(ev models.Event) {
	frame, err := stream.EncodeIncrement(ev)
	if err != nil {
		if s.log != nil {
			s.log.Errorw("sim_encode_failed", "err", err)
		}
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	s.history = append([]models.Event{ev}, s.history...)
	if len(s.history) > s.cfg.History {
		s.history = s.history[:s.cfg.History]
	}
	s.total++
	if ev.Failed() {
		s.errors++
	}
	s.latency += (ev.LatencyMS - s.latency) / float64(s.total)

	for ch := range s.subs {
		select {
		case ch <- frame:
		default:
			delete(s.subs, ch)
			close(ch)
			if s.log != nil {
				s.log.Warnw("sim_subscriber_dropped", "reason", "slow consumer")
			}
		}
	}
}

// Subscribe returns the current history, newest first, and a channel of
// encoded increments that follow it without gaps.
func (s *Simulator) Subscribe() ([]models.Event, <-chan []byte, func()) {
	ch := make(chan []byte, subscriberBuffer)
	s.mu.Lock()
	snapshot := append([]models.Event(nil), s.history...)
	s.subs[ch] = struct{}{}
	s.mu.Unlock()

	var once sync.Once
	return snapshot, ch, func() {
		once.Do(func() {
			s.mu.Lock()
			if _, ok := s.subs[ch]; ok {
				delete(s.subs, ch)
				close(ch)
			}
			s.mu.Unlock()
		})
	}
}

// Stats returns the aggregate over every emitted event.
func (s *Simulator) Stats() models.AggregateStats {
	s.mu.Lock()
	defer s.mu.Unlock()
	return models.AggregateStats{
		TotalRequests: s.total,
		ErrorCount:    s.errors,
		AvgLatency:    float64(int(s.latency*100)) / 100,
	}
}

// Networks returns the catalog.
func (s *Simulator) Networks() []models.Network {
	return append([]models.Network(nil), s.cfg.Networks...)
}

// Subscribers returns the number of live subscribers.
func (s *Simulator) Subscribers() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.subs)
}

func (s *Simulator) closeSubscribers() {
	s.mu.Lock()
	defer s.mu.Unlock()
	for ch := range s.subs {
		delete(s.subs, ch)
		close(ch)
	}
}
