package data

import (
	"MarketSimService/internal/model"
	"context"
	"fmt"
	"sync"
	"testing"
)

func createSequentialCandles(count int, startTime int64) []model.Candle {
	candles := make([]model.Candle, count)
	for i := 0; i < count; i++ {
		candles[i] = model.Candle{
			Timestamp: startTime + int64(i)*86400,
			Open:      100.0 + float64(i),
			High:      105.0 + float64(i),
			Low:       95.0 + float64(i),
			Close:     102.0 + float64(i),
		}
	}
	return candles
}

func TestDefaultStorageConfig(t *testing.T) {
	config := DefaultStorageConfig()

	if config.FeedLength != 50 {
		t.Errorf("Expected FeedLength to be 50, got %d", config.FeedLength)
	}
	if config.MaxCandlesPerSymbol != 1000 {
		t.Errorf("Expected MaxCandlesPerSymbol to be 1000, got %d", config.MaxCandlesPerSymbol)
	}
}

func TestNewInMemoryMarketStorage(t *testing.T) {
	storage := NewInMemoryMarketStorage()

	if storage.feeds == nil || storage.candles == nil {
		t.Fatal("maps not initialized")
	}

	storage = NewInMemoryMarketStorageWithConfig(StorageConfig{FeedLength: 0, MaxCandlesPerSymbol: 10})
	if storage.Config().FeedLength != DefaultFeedLength {
		t.Errorf("Expected zero feed length to default, got %d", storage.Config().FeedLength)
	}
}

func TestStorageTrades(t *testing.T) {
	ctx := context.Background()
	storage := NewInMemoryMarketStorageWithConfig(StorageConfig{FeedLength: 5, MaxCandlesPerSymbol: 10})

	trades, err := storage.GetLatestTrades(ctx, "BTC-USD", 0)
	if err != nil || len(trades) != 0 {
		t.Fatalf("Expected empty result for unknown symbol, got %v, %v", trades, err)
	}

	if err := storage.ReplaceTrades("BTC-USD", []model.Trade{createTestTrade("a", 2), createTestTrade("b", 1)}); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	for i := 0; i < 10; i++ {
		n, err := storage.PrependTrade("BTC-USD", createTestTrade(fmt.Sprintf("n%d", i), int64(10+i)))
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if n > 5 {
			t.Errorf("feed length %d exceeded configured length", n)
		}
	}

	trades, _ = storage.GetLatestTrades(ctx, "BTC-USD", 2)
	if len(trades) != 2 || trades[0].TradeID != "n9" || trades[1].TradeID != "n8" {
		t.Errorf("Expected [n9 n8], got %v", trades)
	}

	// Other symbols are isolated
	other, _ := storage.GetLatestTrades(ctx, "ETH-USD", 0)
	if len(other) != 0 {
		t.Errorf("Expected no ETH-USD trades, got %d", len(other))
	}
}

func TestStorageCandles(t *testing.T) {
	ctx := context.Background()
	storage := NewInMemoryMarketStorageWithConfig(StorageConfig{FeedLength: 5, MaxCandlesPerSymbol: 10})

	latest, err := storage.GetLatestCandle(ctx, "BTC-USD")
	if err != nil || latest.Timestamp != 0 {
		t.Fatalf("Expected zero candle for unknown symbol, got %v, %v", latest, err)
	}

	candles := createSequentialCandles(15, 1700000000)
	if err := storage.ReplaceCandles("BTC-USD", candles); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	stored, _ := storage.GetCandles(ctx, "BTC-USD", 0)
	if len(stored) != 10 {
		t.Fatalf("Expected candles capped at 10, got %d", len(stored))
	}
	if stored[0].Timestamp != candles[5].Timestamp {
		t.Error("Expected the newest candles to be kept")
	}

	limited, _ := storage.GetCandles(ctx, "BTC-USD", 3)
	if len(limited) != 3 || limited[2].Timestamp != candles[14].Timestamp {
		t.Errorf("Expected the newest 3 candles, got %v", limited)
	}

	latest, _ = storage.GetLatestCandle(ctx, "BTC-USD")
	if latest.Timestamp != candles[14].Timestamp {
		t.Errorf("Expected latest candle %d, got %d", candles[14].Timestamp, latest.Timestamp)
	}

	// Caller edits never leak into storage
	candles[14].Close = -1
	stored[9].Close = -1
	latest, _ = storage.GetLatestCandle(ctx, "BTC-USD")
	if latest.Close == -1 {
		t.Error("Expected stored candles to be a copy")
	}
}

func TestStorageClear(t *testing.T) {
	ctx := context.Background()
	storage := NewInMemoryMarketStorage()

	_ = storage.ReplaceCandles("BTC-USD", createSequentialCandles(3, 0))
	_, _ = storage.PrependTrade("BTC-USD", createTestTrade("a", 1))

	storage.Clear("BTC-USD")

	trades, _ := storage.GetLatestTrades(ctx, "BTC-USD", 0)
	candles, _ := storage.GetCandles(ctx, "BTC-USD", 0)
	if len(trades) != 0 || len(candles) != 0 {
		t.Errorf("Expected cleared symbol, got %d trades and %d candles", len(trades), len(candles))
	}
}

func TestStorageConcurrentReadWrite(t *testing.T) {
	ctx := context.Background()
	storage := NewInMemoryMarketStorage()
	var wg sync.WaitGroup

	wg.Add(1)
	go func() {
		defer wg.Done()
		for i := 0; i < 500; i++ {
			_, _ = storage.PrependTrade("BTC-USD", createTestTrade(fmt.Sprintf("t%d", i), int64(i)))
			if i%50 == 0 {
				_ = storage.ReplaceCandles("BTC-USD", createSequentialCandles(20, int64(i)))
			}
		}
	}()

	for r := 0; r < 4; r++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < 200; i++ {
				_, _ = storage.GetLatestTrades(ctx, "BTC-USD", 10)
				_, _ = storage.GetCandles(ctx, "BTC-USD", 10)
			}
		}()
	}

	wg.Wait()
}
