package service

import (
	"MarketSimService/internal/mock"
	"MarketSimService/internal/model"
	"context"
	"fmt"
	"time"
)

// Configuration constants
const (
	DefaultTradesLimit = 50
	DaySeconds         = 24 * 60 * 60
)

// intervalDays maps supported candle intervals to the number of daily candles per bucket
var intervalDays = map[string]int64{
	"1d": 1,
	"3d": 3,
	"1w": 7,
}

// MarketStorage is the read side of the snapshot store
type MarketStorage interface {
	GetLatestTrades(ctx context.Context, symbol string, limit int64) ([]model.Trade, error)
	GetCandles(ctx context.Context, symbol string, limit int64) ([]model.Candle, error)
}

// Session owns the selected instrument
type Session interface {
	Select(ctx context.Context, symbol string) (mock.Instrument, error)
	Current() mock.Instrument
}

// Generator produces one-shot synthetic sequences
type Generator interface {
	GenerateCandles(length int, basePrice float64) ([]model.Candle, error)
	GenerateTrades(symbol string, count int) ([]model.Trade, error)
}

// Ticker summarizes the latest price of the selected instrument
type Ticker struct {
	Symbol        string  `json:"symbol"`
	LastPrice     float64 `json:"last_price"`
	PrevClose     float64 `json:"prev_close"`
	ChangePercent float64 `json:"change_percent"`
	Time          string  `json:"time"`
}

// MarketService provides trade, candle and instrument data for the API
type MarketService struct {
	storage     MarketStorage
	session     Session
	generator   Generator
	instruments *mock.InstrumentTable
}

// NewMarketService creates a new market service
func NewMarketService(storage MarketStorage, session Session, generator Generator, instruments *mock.InstrumentTable) *MarketService {
	if instruments == nil {
		instruments = mock.DefaultInstrumentTable()
	}
	return &MarketService{
		storage:     storage,
		session:     session,
		generator:   generator,
		instruments: instruments,
	}
}

// GetTrades returns the recent-trades feed for a symbol, newest first.
// Only the selected instrument has a feed; other symbols yield an empty list.
func (ms *MarketService) GetTrades(ctx context.Context, symbol string) ([]model.Trade, error) {
	id := mock.NormalizeSymbol(symbol)
	if id != ms.session.Current().ID {
		return []model.Trade{}, nil
	}

	trades, err := ms.storage.GetLatestTrades(ctx, id, DefaultTradesLimit)
	if err != nil {
		return nil, fmt.Errorf("failed to get latest trades for symbol %s: %w", id, err)
	}

	return trades, nil
}

// GetCandles returns the candle sequence for a symbol, oldest first.
// Intervals longer than a day aggregate the stored daily candles.
func (ms *MarketService) GetCandles(ctx context.Context, symbol string, interval string, limit int64) ([]model.Candle, error) {
	days, ok := intervalDays[interval]
	if !ok {
		return nil, fmt.Errorf("%w: unsupported interval %q", mock.ErrInvalidArgument, interval)
	}

	id := mock.NormalizeSymbol(symbol)

	// Calculate the number of daily candles needed to build the requested candles
	dailyNeeded := ms.calculateDailyCandlesNeeded(days, limit)

	daily, err := ms.storage.GetCandles(ctx, id, dailyNeeded)
	if err != nil {
		return nil, fmt.Errorf("failed to get candles for symbol %s: %w", id, err)
	}

	if len(daily) == 0 {
		return []model.Candle{}, nil
	}

	if days == 1 {
		return daily, nil
	}

	aggregated := ms.aggregateCandles(daily, days)
	if limit > 0 && int64(len(aggregated)) > limit {
		aggregated = aggregated[len(aggregated)-int(limit):]
	}

	return aggregated, nil
}

// aggregateCandles merges daily candles into buckets of the given number of days,
// aligned to epoch day boundaries
func (ms *MarketService) aggregateCandles(daily []model.Candle, days int64) []model.Candle {
	bucketSec := days * DaySeconds

	var result []model.Candle
	var current *model.Candle

	for _, c := range daily {
		// Round timestamp down to the bucket boundary
		bucket := (c.Timestamp / bucketSec) * bucketSec

		if current == nil || current.Timestamp != bucket {
			if current != nil {
				result = append(result, *current)
			}
			current = &model.Candle{
				Time:      time.Unix(bucket, 0).UTC().Format(time.DateOnly),
				Timestamp: bucket,
				Open:      c.Open,
				High:      c.High,
				Low:       c.Low,
				Close:     c.Close,
			}
			continue
		}

		if c.High > current.High {
			current.High = c.High
		}
		if c.Low < current.Low {
			current.Low = c.Low
		}
		// Candles are ordered, the latest close wins
		current.Close = c.Close
	}

	if current != nil {
		result = append(result, *current)
	}

	return result
}

// calculateDailyCandlesNeeded returns how many daily candles cover limit buckets.
// One extra bucket's worth is fetched since the oldest bucket may be partial.
func (ms *MarketService) calculateDailyCandlesNeeded(days, limit int64) int64 {
	if limit <= 0 {
		return 0 // No limit specified, get all available candles
	}
	if days == 1 {
		return limit
	}
	return limit*days + days - 1
}

// GetInstruments returns the enabled instruments
func (ms *MarketService) GetInstruments(ctx context.Context) []mock.Instrument {
	return ms.instruments.Enabled()
}

// CurrentInstrument returns the selected instrument
func (ms *MarketService) CurrentInstrument(ctx context.Context) mock.Instrument {
	return ms.session.Current()
}

// SelectInstrument switches the session to symbol, resetting all generated data
func (ms *MarketService) SelectInstrument(ctx context.Context, symbol string) (mock.Instrument, error) {
	inst, err := ms.session.Select(ctx, symbol)
	if err != nil {
		return mock.Instrument{}, fmt.Errorf("failed to select instrument %s: %w", symbol, err)
	}
	return inst, nil
}

// GetTicker returns the last close and day-over-day change for the selected instrument
func (ms *MarketService) GetTicker(ctx context.Context) (Ticker, error) {
	inst := ms.session.Current()
	if inst.ID == "" {
		return Ticker{}, fmt.Errorf("%w: no instrument selected", mock.ErrInvalidArgument)
	}

	candles, err := ms.storage.GetCandles(ctx, inst.ID, 2)
	if err != nil {
		return Ticker{}, fmt.Errorf("failed to get candles for symbol %s: %w", inst.ID, err)
	}

	// Before any candle exists the instrument's default price stands in
	ticker := Ticker{Symbol: inst.ID, LastPrice: inst.DefaultPrice, PrevClose: inst.DefaultPrice}
	if n := len(candles); n > 0 {
		last := candles[n-1]
		ticker.LastPrice = last.Close
		ticker.Time = last.Time
		if n > 1 {
			ticker.PrevClose = candles[n-2].Close
		} else {
			ticker.PrevClose = last.Open
		}
	}

	if ticker.PrevClose > 0 {
		ticker.ChangePercent = inst.RoundPrice((ticker.LastPrice - ticker.PrevClose) / ticker.PrevClose * 100)
	}
	ticker.LastPrice = inst.RoundPrice(ticker.LastPrice)
	ticker.PrevClose = inst.RoundPrice(ticker.PrevClose)

	return ticker, nil
}

// GenerateCandles runs the candle generator once without touching the session
func (ms *MarketService) GenerateCandles(ctx context.Context, length int, basePrice float64) ([]model.Candle, error) {
	candles, err := ms.generator.GenerateCandles(length, basePrice)
	if err != nil {
		return nil, fmt.Errorf("failed to generate candles: %w", err)
	}
	return candles, nil
}

// GenerateTrades runs the trade generator once without touching the session
func (ms *MarketService) GenerateTrades(ctx context.Context, symbol string, count int) ([]model.Trade, error) {
	trades, err := ms.generator.GenerateTrades(mock.NormalizeSymbol(symbol), count)
	if err != nil {
		return nil, fmt.Errorf("failed to generate trades for symbol %s: %w", symbol, err)
	}
	return trades, nil
}
