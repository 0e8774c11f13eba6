// Package market provides the simulated market data feed: a polling
// simulator that rewrites an in-memory ticker set on a fixed interval, and a
// random-walk chart data generator. Nothing here touches the remote store.
package market

import (
	"context"
	"math/rand"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"tradedeck/internal/metrics"
	"tradedeck/internal/models"
)

// DefaultTickInterval is the simulator's production tick period
const DefaultTickInterval = 2 * time.Second

// DefaultTickers returns the seed ticker universe
func DefaultTickers() []models.MarketData {
	now := time.Now().UnixMilli()
	return []models.MarketData{
		{Symbol: "BTC/USD", Price: 45678.90, Change: 1234.56, ChangePercent: 2.78, Volume: 1234567890, High24h: 46890.12, Low24h: 44123.45, Timestamp: now},
		{Symbol: "ETH/USD", Price: 3456.78, Change: -89.12, ChangePercent: -2.51, Volume: 987654321, High24h: 3567.89, Low24h: 3345.67, Timestamp: now},
		{Symbol: "AAPL", Price: 185.43, Change: 2.87, ChangePercent: 1.57, Volume: 45678901, High24h: 187.21, Low24h: 182.45, Timestamp: now},
		{Symbol: "GOOGL", Price: 142.67, Change: -1.23, ChangePercent: -0.85, Volume: 23456789, High24h: 145.12, Low24h: 141.89, Timestamp: now},
		{Symbol: "TSLA", Price: 248.91, Change: 8.45, ChangePercent: 3.52, Volume: 67890123, High24h: 252.34, Low24h: 240.12, Timestamp: now},
	}
}

// Simulator replaces its whole ticker set with jittered values every tick.
// It is either Idle or Ticking; Start arms the timer, Stop (or context
// cancellation) disarms it. Prices can drift without bound; realism is a
// non-goal.
type Simulator struct {
	interval time.Duration
	log      zerolog.Logger

	mu      sync.RWMutex
	tickers []models.MarketData
	onTick  func([]models.MarketData)
	rng     *rand.Rand
	cancel  context.CancelFunc
	running bool
}

// NewSimulator creates a simulator seeded with the given tickers
func NewSimulator(interval time.Duration, seed []models.MarketData, log zerolog.Logger) *Simulator {
	if interval <= 0 {
		interval = DefaultTickInterval
	}
	tickers := make([]models.MarketData, len(seed))
	copy(tickers, seed)
	return &Simulator{
		interval: interval,
		log:      log.With().Str("component", "market-simulator").Logger(),
		tickers:  tickers,
		rng:      rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// OnTick registers a callback invoked with the fresh ticker set after every
// tick. Must be called before Start.
func (s *Simulator) OnTick(fn func([]models.MarketData)) {
	s.mu.Lock()
	s.onTick = fn
	s.mu.Unlock()
}

// Start moves the simulator from Idle to Ticking. Calling Start while
// already Ticking is a no-op.
func (s *Simulator) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return
	}
	ctx, s.cancel = context.WithCancel(ctx)
	s.running = true
	s.mu.Unlock()

	go s.loop(ctx)
}

// Stop returns the simulator to Idle; the pending tick is cancelled
func (s *Simulator) Stop() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.running {
		return
	}
	s.cancel()
	s.running = false
}

// Snapshot returns a copy of the current ticker set
func (s *Simulator) Snapshot() []models.MarketData {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]models.MarketData, len(s.tickers))
	copy(out, s.tickers)
	return out
}

func (s *Simulator) loop(ctx context.Context) {
	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()
	s.log.Info().Dur("interval", s.interval).Msg("market simulator ticking")

	for {
		select {
		case <-ctx.Done():
			s.log.Info().Msg("market simulator stopped")
			return
		case <-ticker.C:
			s.tick()
		}
	}
}

// tick builds a fresh ticker slice and swaps it in wholesale. Change and
// changePercent are redrawn independently of the price move; the displayed
// change does not reconcile with the price delta across ticks, matching the
// feed this simulates.
func (s *Simulator) tick() {
	now := time.Now().UnixMilli()

	s.mu.Lock()
	next := make([]models.MarketData, len(s.tickers))
	for i, t := range s.tickers {
		price := t.Price * (1 + (s.rng.Float64()-0.5)*0.01)
		next[i] = models.MarketData{
			Symbol:        t.Symbol,
			Price:         price,
			Change:        t.Price * (s.rng.Float64() - 0.5) * 0.02,
			ChangePercent: (s.rng.Float64() - 0.5) * 4,
			Volume:        t.Volume * (1 + (s.rng.Float64()-0.5)*0.1),
			High24h:       t.High24h,
			Low24h:        t.Low24h,
			Timestamp:     now,
		}
	}
	s.tickers = next
	fn := s.onTick
	s.mu.Unlock()

	metrics.MarketTicks.Inc()
	if fn != nil {
		snapshot := make([]models.MarketData, len(next))
		copy(snapshot, next)
		fn(snapshot)
	}
}
