package data

import (
	"MarketSimService/internal/model"
	"context"
	"sync"
)

// StorageConfig holds configuration for the market storage
type StorageConfig struct {
	FeedLength          int
	MaxCandlesPerSymbol int
}

// DefaultStorageConfig returns sensible default configuration
func DefaultStorageConfig() StorageConfig {
	return StorageConfig{
		FeedLength:          DefaultFeedLength,
		MaxCandlesPerSymbol: 1000,
	}
}

// InMemoryMarketStorage keeps the current candle snapshot and trade feed per symbol.
// Nothing is persisted; Clear drops a symbol's state entirely.
type InMemoryMarketStorage struct {
	feeds   map[string]*TradeFeed
	candles map[string][]model.Candle
	config  StorageConfig
	mu      sync.RWMutex
}

// NewInMemoryMarketStorage creates a new in-memory storage with default config
func NewInMemoryMarketStorage() *InMemoryMarketStorage {
	return NewInMemoryMarketStorageWithConfig(DefaultStorageConfig())
}

// NewInMemoryMarketStorageWithConfig creates a new in-memory storage with custom config
func NewInMemoryMarketStorageWithConfig(config StorageConfig) *InMemoryMarketStorage {
	if config.FeedLength <= 0 {
		config.FeedLength = DefaultFeedLength
	}
	return &InMemoryMarketStorage{
		feeds:   make(map[string]*TradeFeed),
		candles: make(map[string][]model.Candle),
		config:  config,
	}
}

// Config returns the storage configuration
func (s *InMemoryMarketStorage) Config() StorageConfig {
	return s.config
}

func (s *InMemoryMarketStorage) feed(symbol string) *TradeFeed {
	s.mu.RLock()
	f, ok := s.feeds[symbol]
	s.mu.RUnlock()
	if ok {
		return f
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	if f, ok = s.feeds[symbol]; !ok {
		f = NewTradeFeed(s.config.FeedLength)
		s.feeds[symbol] = f
	}
	return f
}

// ReplaceTrades resets the symbol's feed to trades (newest first)
func (s *InMemoryMarketStorage) ReplaceTrades(symbol string, trades []model.Trade) error {
	s.feed(symbol).Reset(trades)
	return nil
}

// PrependTrade adds a new tick at the head of the symbol's feed and returns the feed length
func (s *InMemoryMarketStorage) PrependTrade(symbol string, trade model.Trade) (int, error) {
	return s.feed(symbol).Prepend(trade), nil
}

// GetLatestTrades returns up to limit trades for a symbol, newest first
func (s *InMemoryMarketStorage) GetLatestTrades(ctx context.Context, symbol string, limit int64) ([]model.Trade, error) {
	s.mu.RLock()
	f, exists := s.feeds[symbol]
	s.mu.RUnlock()
	if !exists {
		return []model.Trade{}, nil
	}

	return f.Snapshot(int(limit)), nil
}

// ReplaceCandles swaps the symbol's candle sequence (oldest first) for a new one
func (s *InMemoryMarketStorage) ReplaceCandles(symbol string, candles []model.Candle) error {
	// Keep only the newest MaxCandlesPerSymbol candles
	if maxCandles := s.config.MaxCandlesPerSymbol; maxCandles > 0 && len(candles) > maxCandles {
		candles = candles[len(candles)-maxCandles:]
	}

	stored := make([]model.Candle, len(candles))
	copy(stored, candles)

	s.mu.Lock()
	defer s.mu.Unlock()
	s.candles[symbol] = stored

	return nil
}

// GetLatestCandle returns the last candle for a symbol
func (s *InMemoryMarketStorage) GetLatestCandle(ctx context.Context, symbol string) (model.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candles, exists := s.candles[symbol]
	if !exists || len(candles) == 0 {
		return model.Candle{}, nil
	}

	return candles[len(candles)-1], nil
}

// GetCandles returns the newest limit candles for a symbol, oldest first; limit <= 0 returns all
func (s *InMemoryMarketStorage) GetCandles(ctx context.Context, symbol string, limit int64) ([]model.Candle, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	candles, exists := s.candles[symbol]
	if !exists {
		return []model.Candle{}, nil
	}

	// Limit the number of candles returned
	if limit > 0 && int64(len(candles)) > limit {
		candles = candles[len(candles)-int(limit):]
	}

	// Return a copy to prevent external modification
	result := make([]model.Candle, len(candles))
	copy(result, candles)

	return result, nil
}

// Clear drops all state held for a symbol
func (s *InMemoryMarketStorage) Clear(symbol string) {
	s.mu.Lock()
	defer s.mu.Unlock()

	delete(s.feeds, symbol)
	delete(s.candles, symbol)
}
