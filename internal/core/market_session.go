package core

import (
	"MarketSimService/internal/logger"
	"MarketSimService/internal/metrics"
	"MarketSimService/internal/mock"
	"MarketSimService/internal/model"
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/zap"
)

// ErrSessionStopped is returned when selecting an instrument on a stopped session
var ErrSessionStopped = errors.New("market session stopped")

// Generator produces synthetic market data
type Generator interface {
	GenerateCandles(length int, basePrice float64) ([]model.Candle, error)
	GenerateTrades(symbol string, count int) ([]model.Trade, error)
}

// MarketStorage holds the snapshots served to readers
type MarketStorage interface {
	ReplaceTrades(symbol string, trades []model.Trade) error
	PrependTrade(symbol string, trade model.Trade) (int, error)
	ReplaceCandles(symbol string, candles []model.Candle) error
	Clear(symbol string)
}

// SessionConfig holds the refresh schedule of a market session
type SessionConfig struct {
	CandleCount   int
	InitialTrades int
	CandleRefresh time.Duration
	TradeInterval time.Duration
}

// DefaultSessionConfig returns the dashboard's refresh schedule
func DefaultSessionConfig() SessionConfig {
	return SessionConfig{
		CandleCount:   100,
		InitialTrades: 20,
		CandleRefresh: 60 * time.Second,
		TradeInterval: 5 * time.Second,
	}
}

// TradeUpdate is published to subscribers after every feed change.
// Trades is an immutable newest-first snapshot of the new ticks: the whole
// initial batch on reset, a single tick otherwise.
type TradeUpdate struct {
	Symbol string        `json:"symbol"`
	Reset  bool          `json:"reset"`
	Trades []model.Trade `json:"trades"`
}

// MarketSession drives the synthetic data of the currently selected instrument.
// Candles are regenerated every CandleRefresh and one trade tick is prepended every
// TradeInterval. Selecting another instrument stops the running timers before any
// state of the new instrument is written.
type MarketSession struct {
	generator   Generator
	storage     MarketStorage
	instruments *mock.InstrumentTable
	metrics     *metrics.Metrics
	config      SessionConfig
	logger      *zap.Logger

	mu      sync.RWMutex
	baseCtx context.Context
	current mock.Instrument
	cancel  context.CancelFunc
	done    chan struct{}
	stopped bool

	subMu       sync.RWMutex
	subscribers map[int]chan TradeUpdate
	nextSubID   int
	subsClosed  bool // set by Stop under subMu
}

// NewMarketSession creates an idle session; call Start to select the first instrument
func NewMarketSession(generator Generator, storage MarketStorage, instruments *mock.InstrumentTable,
	m *metrics.Metrics, config SessionConfig, log *zap.Logger) *MarketSession {
	if instruments == nil {
		instruments = mock.DefaultInstrumentTable()
	}
	if m == nil {
		m = metrics.NewMetrics()
	}

	return &MarketSession{
		generator:   generator,
		storage:     storage,
		instruments: instruments,
		metrics:     m,
		config:      config,
		logger:      logger.OrNop(log).Named("market_session"),
		subscribers: make(map[int]chan TradeUpdate),
	}
}

// Start binds the session to ctx and selects the initial instrument.
// Cancelling ctx stops the timers, as does Stop.
func (s *MarketSession) Start(ctx context.Context, symbol string) error {
	s.mu.Lock()
	if s.baseCtx != nil {
		s.mu.Unlock()
		return errors.New("market session already started")
	}
	s.baseCtx = ctx
	s.mu.Unlock()

	s.logger.Info("starting market session", zap.String("symbol", symbol))

	_, err := s.Select(ctx, symbol)
	return err
}

// Select switches the session to symbol: a fresh candle sequence and trade batch
// are generated, then the previous instrument's timers are cancelled and awaited
// and its state dropped before the new snapshots are stored.
// Unknown symbols fall back to the generic profile.
func (s *MarketSession) Select(ctx context.Context, symbol string) (mock.Instrument, error) {
	if err := ctx.Err(); err != nil {
		return mock.Instrument{}, err
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if s.stopped {
		return mock.Instrument{}, ErrSessionStopped
	}
	if s.baseCtx == nil {
		return mock.Instrument{}, errors.New("market session not started")
	}
	if err := s.baseCtx.Err(); err != nil {
		return mock.Instrument{}, ErrSessionStopped
	}

	inst := s.resolve(symbol)

	// A failed generation leaves the previous instrument running
	candles, err := s.generator.GenerateCandles(s.config.CandleCount, inst.DefaultPrice)
	if err != nil {
		return mock.Instrument{}, fmt.Errorf("failed to generate candles for %s: %w", inst.ID, err)
	}
	trades, err := s.generator.GenerateTrades(inst.ID, s.config.InitialTrades)
	if err != nil {
		return mock.Instrument{}, fmt.Errorf("failed to generate trades for %s: %w", inst.ID, err)
	}

	// No tick of the previous instrument may land after this point
	s.stopLoopLocked()
	if s.current.ID != "" {
		s.storage.Clear(s.current.ID)
	}

	if err := s.storage.ReplaceCandles(inst.ID, candles); err != nil {
		return mock.Instrument{}, fmt.Errorf("failed to store candles for %s: %w", inst.ID, err)
	}
	if err := s.storage.ReplaceTrades(inst.ID, trades); err != nil {
		return mock.Instrument{}, fmt.Errorf("failed to store trades for %s: %w", inst.ID, err)
	}

	s.metrics.CandlesGenerated.WithLabelValues(inst.ID).Add(float64(len(candles)))
	s.metrics.TradesGenerated.WithLabelValues(inst.ID).Add(float64(len(trades)))
	s.metrics.FeedLength.Set(float64(len(trades)))
	if s.current.ID != "" {
		s.metrics.InstrumentSwitches.Inc()
	}

	s.logger.Info("selected instrument",
		zap.String("previous", s.current.ID),
		zap.String("symbol", inst.ID),
		zap.Float64("base_price", inst.DefaultPrice),
		zap.Int("candles", len(candles)),
		zap.Int("trades", len(trades)))

	s.current = inst
	s.publish(TradeUpdate{Symbol: inst.ID, Reset: true, Trades: trades})

	loopCtx, cancel := context.WithCancel(s.baseCtx)
	done := make(chan struct{})
	s.cancel = cancel
	s.done = done
	go s.run(loopCtx, inst, done)

	return inst, nil
}

// Current returns the selected instrument; the zero value before Start
func (s *MarketSession) Current() mock.Instrument {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.current
}

// Stop cancels the timers and waits for the refresh loop to exit.
// Subscribers' channels are closed.
func (s *MarketSession) Stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.stopLoopLocked()
	s.mu.Unlock()

	s.subMu.Lock()
	s.subsClosed = true
	for id, ch := range s.subscribers {
		close(ch)
		delete(s.subscribers, id)
	}
	s.subMu.Unlock()

	s.logger.Info("market session stopped")
}

// Subscribe registers for feed updates. Slow subscribers miss updates rather than
// blocking the session. The returned func unsubscribes.
func (s *MarketSession) Subscribe(buffer int) (<-chan TradeUpdate, func()) {
	if buffer <= 0 {
		buffer = 1
	}
	ch := make(chan TradeUpdate, buffer)

	// Checked under subMu so a concurrent Stop either sees this channel or we see the flag
	s.subMu.Lock()
	if s.subsClosed {
		s.subMu.Unlock()
		close(ch)
		return ch, func() {}
	}
	id := s.nextSubID
	s.nextSubID++
	s.subscribers[id] = ch
	s.subMu.Unlock()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			s.subMu.Lock()
			defer s.subMu.Unlock()
			if c, ok := s.subscribers[id]; ok {
				close(c)
				delete(s.subscribers, id)
			}
		})
	}
}

func (s *MarketSession) publish(update TradeUpdate) {
	s.subMu.RLock()
	defer s.subMu.RUnlock()

	for id, ch := range s.subscribers {
		select {
		case ch <- update:
		default:
			s.logger.Debug("dropping update for slow subscriber", zap.Int("subscriber", id))
		}
	}
}

// resolve maps a requested symbol to a configured instrument, or a generic one
func (s *MarketSession) resolve(symbol string) mock.Instrument {
	if inst, ok := s.instruments.Get(symbol); ok {
		return inst
	}

	id := mock.NormalizeSymbol(symbol)
	quote := ""
	if base := mock.BaseAsset(id); len(id) > len(base)+1 {
		quote = id[len(base)+1:]
	}
	s.logger.Warn("unknown instrument, using generic profile", zap.String("symbol", id))

	return mock.Instrument{
		ID:                id,
		Name:              mock.BaseAsset(id) + "/" + quote,
		BaseAsset:         mock.BaseAsset(id),
		QuoteAsset:        quote,
		DefaultPrice:      mock.DefaultCandleBasePrice,
		PricePrecision:    2,
		QuantityPrecision: 2,
		Enabled:           true,
	}
}

func (s *MarketSession) stopLoopLocked() {
	if s.cancel == nil {
		return
	}
	s.cancel()
	<-s.done
	s.cancel = nil
	s.done = nil
}

// run owns both timers of one instrument and is the feed's only writer while it runs
func (s *MarketSession) run(ctx context.Context, inst mock.Instrument, done chan struct{}) {
	defer close(done)

	candleTicker := time.NewTicker(s.config.CandleRefresh)
	defer candleTicker.Stop()
	tradeTicker := time.NewTicker(s.config.TradeInterval)
	defer tradeTicker.Stop()

	for {
		select {
		case <-tradeTicker.C:
			if ctx.Err() != nil {
				return
			}
			s.tick(inst)

		case <-candleTicker.C:
			if ctx.Err() != nil {
				return
			}
			s.refreshCandles(inst)

		case <-ctx.Done():
			s.logger.Debug("refresh loop stopped", zap.String("symbol", inst.ID))
			return
		}
	}
}

func (s *MarketSession) tick(inst mock.Instrument) {
	trades, err := s.generator.GenerateTrades(inst.ID, 1)
	if err != nil || len(trades) == 0 {
		s.logger.Error("failed to generate trade tick", zap.String("symbol", inst.ID), zap.Error(err))
		return
	}

	n, err := s.storage.PrependTrade(inst.ID, trades[0])
	if err != nil {
		s.logger.Error("failed to store trade tick",
			zap.String("symbol", inst.ID),
			zap.String("trade_id", trades[0].TradeID),
			zap.Error(err))
		return
	}

	s.metrics.TradesGenerated.WithLabelValues(inst.ID).Inc()
	s.metrics.FeedLength.Set(float64(n))
	s.publish(TradeUpdate{Symbol: inst.ID, Trades: trades})
}

func (s *MarketSession) refreshCandles(inst mock.Instrument) {
	candles, err := s.generator.GenerateCandles(s.config.CandleCount, inst.DefaultPrice)
	if err != nil {
		s.logger.Error("failed to regenerate candles", zap.String("symbol", inst.ID), zap.Error(err))
		return
	}

	if err := s.storage.ReplaceCandles(inst.ID, candles); err != nil {
		s.logger.Error("failed to store candles", zap.String("symbol", inst.ID), zap.Error(err))
		return
	}

	s.metrics.CandlesGenerated.WithLabelValues(inst.ID).Add(float64(len(candles)))
	s.metrics.CandleRefreshes.Inc()
	s.logger.Debug("refreshed candles", zap.String("symbol", inst.ID), zap.Int("count", len(candles)))
}
