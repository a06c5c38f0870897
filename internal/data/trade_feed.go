package data

import (
	"MarketSimService/internal/model"
	"sync"
)

// DefaultFeedLength is the number of ticks kept in a recent-trades feed
const DefaultFeedLength = 50

// TradeFeed is a bounded, newest-first list of trade ticks
type TradeFeed struct {
	trades   []model.Trade
	capacity int
	mu       sync.RWMutex
}

// NewTradeFeed creates an empty feed holding at most capacity ticks.
// A non-positive capacity uses DefaultFeedLength.
func NewTradeFeed(capacity int) *TradeFeed {
	if capacity <= 0 {
		capacity = DefaultFeedLength
	}
	return &TradeFeed{
		trades:   make([]model.Trade, 0, capacity),
		capacity: capacity,
	}
}

// Capacity returns the maximum number of ticks the feed keeps
func (f *TradeFeed) Capacity() int {
	return f.capacity
}

// Prepend puts trade at the head of the feed and drops the oldest tick past capacity.
// It returns the new feed length.
func (f *TradeFeed) Prepend(trade model.Trade) int {
	f.mu.Lock()
	defer f.mu.Unlock()

	keep := len(f.trades)
	if keep >= f.capacity {
		keep = f.capacity - 1
	}

	// Build a fresh slice so snapshots handed out earlier are never mutated
	next := make([]model.Trade, 0, f.capacity)
	next = append(next, trade)
	next = append(next, f.trades[:keep]...)
	f.trades = next

	return len(f.trades)
}

// Reset replaces the feed content with trades (newest first), truncated to capacity
func (f *TradeFeed) Reset(trades []model.Trade) {
	f.mu.Lock()
	defer f.mu.Unlock()

	if len(trades) > f.capacity {
		trades = trades[:f.capacity]
	}
	next := make([]model.Trade, len(trades), f.capacity)
	copy(next, trades)
	f.trades = next
}

// Snapshot returns a copy of the newest limit ticks; limit <= 0 returns all
func (f *TradeFeed) Snapshot(limit int) []model.Trade {
	f.mu.RLock()
	defer f.mu.RUnlock()

	trades := f.trades
	if limit > 0 && len(trades) > limit {
		trades = trades[:limit]
	}

	result := make([]model.Trade, len(trades))
	copy(result, trades)
	return result
}

// Len returns the current number of ticks
func (f *TradeFeed) Len() int {
	f.mu.RLock()
	defer f.mu.RUnlock()
	return len(f.trades)
}
