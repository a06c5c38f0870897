package mock

import (
	"MarketSimService/internal/model"
	"errors"
	"fmt"
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// ErrInvalidArgument is returned for negative lengths/counts and non-positive base prices
var ErrInvalidArgument = errors.New("invalid argument")

// DefaultCandleBasePrice is used by callers that have no instrument price to anchor on
const DefaultCandleBasePrice = 52800.0

// CandleConfig holds the random-walk parameters for candle generation
type CandleConfig struct {
	Volatility   float64 // fraction of current price bounding each step
	WickFraction float64 // max distance of high/low from open, as a fraction of open
	PriceFloor   float64 // running price never drops below this
}

// TradeConfig holds the parameters for trade tick generation
type TradeConfig struct {
	PriceSpread  float64       // full width of the per-tick price band, as a fraction of base
	SizeSpread   float64       // size = scale * (1 + U*SizeSpread)
	SizeDecimals int32         // sizes are rounded to this many decimals
	TickStep     time.Duration // nominal spacing between consecutive ticks
}

// GeneratorConfig holds configuration for the market data generator
type GeneratorConfig struct {
	Candles CandleConfig
	Trades  TradeConfig
	Assets  *AssetTable
}

// DefaultGeneratorConfig returns the parameters used by the trading dashboard
func DefaultGeneratorConfig() GeneratorConfig {
	return GeneratorConfig{
		Candles: CandleConfig{
			Volatility:   0.03,  // 3% volatility
			WickFraction: 0.015, // high/low within 1.5% of open
			PriceFloor:   0.01,
		},
		Trades: TradeConfig{
			PriceSpread:  0.002, // ±0.1% around base
			SizeSpread:   2,
			SizeDecimals: 2,
			TickStep:     5 * time.Second,
		},
		Assets: DefaultAssetTable(),
	}
}

// MarketDataGenerator produces synthetic candles and trade ticks.
// It is safe for concurrent use; calls are serialized on the random source.
type MarketDataGenerator struct {
	config GeneratorConfig
	rng    *rand.Rand
	now    func() time.Time
	mu     sync.Mutex
}

// NewMarketDataGenerator creates a generator with default config, a time-seeded
// random source and the wall clock
func NewMarketDataGenerator() *MarketDataGenerator {
	return NewMarketDataGeneratorWithConfig(DefaultGeneratorConfig(), nil, nil)
}

// NewMarketDataGeneratorWithConfig creates a generator with custom config.
// A nil rng is seeded from the clock; a nil now uses time.Now.
func NewMarketDataGeneratorWithConfig(config GeneratorConfig, rng *rand.Rand, now func() time.Time) *MarketDataGenerator {
	if config.Assets == nil {
		config.Assets = DefaultAssetTable()
	}
	if rng == nil {
		rng = rand.New(rand.NewSource(time.Now().UnixNano()))
	}
	if now == nil {
		now = time.Now
	}

	return &MarketDataGenerator{
		config: config,
		rng:    rng,
		now:    now,
	}
}

// Config returns the generator configuration
func (g *MarketDataGenerator) Config() GeneratorConfig {
	return g.config
}

// GenerateCandles returns length daily candles, oldest first, the newest dated yesterday (UTC).
// The price follows a random walk starting at basePrice.
func (g *MarketDataGenerator) GenerateCandles(length int, basePrice float64) ([]model.Candle, error) {
	if length < 0 {
		return nil, fmt.Errorf("%w: candle length %d is negative", ErrInvalidArgument, length)
	}
	// An empty sequence never uses the base price
	if length == 0 {
		return []model.Candle{}, nil
	}
	if !validPrice(basePrice) {
		return nil, fmt.Errorf("%w: base price %v must be positive", ErrInvalidArgument, basePrice)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := g.config.Candles
	now := g.now().UTC()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)

	candles := make([]model.Candle, 0, length)
	price := basePrice

	for i := 0; i < length; i++ {
		// Step the walk by up to half the volatility bound either way
		volatility := price * cfg.Volatility
		change := (g.rng.Float64() - 0.5) * volatility
		price = math.Max(price+change, cfg.PriceFloor)

		open := price
		high := open * (1 + g.rng.Float64()*cfg.WickFraction)
		low := open * (1 - g.rng.Float64()*cfg.WickFraction)
		closePrice := low + g.rng.Float64()*(high-low)

		date := today.AddDate(0, 0, -(length - i))
		candles = append(candles, model.Candle{
			Time:      date.Format(time.DateOnly),
			Timestamp: date.Unix(),
			Open:      open,
			High:      high,
			Low:       low,
			Close:     closePrice,
		})
	}

	return candles, nil
}

// GenerateTrades returns count trades for symbol, newest first.
// Unknown base assets use the asset table's fallback profile.
func (g *MarketDataGenerator) GenerateTrades(symbol string, count int) ([]model.Trade, error) {
	if count < 0 {
		return nil, fmt.Errorf("%w: trade count %d is negative", ErrInvalidArgument, count)
	}

	g.mu.Lock()
	defer g.mu.Unlock()

	cfg := g.config.Trades
	profile, _ := g.config.Assets.Profile(symbol)

	// Anchor the whole batch on one jittered base price
	base := profile.BasePrice + (g.rng.Float64()-0.5)*2*profile.BaseJitter

	nowMs := g.now().UnixMilli()
	stepMs := cfg.TickStep.Milliseconds()
	if stepMs <= 0 {
		stepMs = 1
	}

	trades := make([]model.Trade, 0, count)
	prevTs := int64(math.MaxInt64)

	for i := 0; i < count; i++ {
		price := base + (g.rng.Float64()-0.5)*base*cfg.PriceSpread
		size := g.roundSize(profile.SizeScale + g.rng.Float64()*profile.SizeScale*cfg.SizeSpread)

		side := model.SideSell
		if g.rng.Float64() > 0.5 {
			side = model.SideBuy
		}

		// Older ticks sit further back by a jittered step
		ts := nowMs - int64(i)*stepMs - int64(g.rng.Float64()*float64(stepMs))
		if ts >= prevTs {
			ts = prevTs - 1
		}
		prevTs = ts

		id, err := uuid.NewRandomFromReader(g.rng)
		if err != nil {
			return nil, fmt.Errorf("failed to generate trade id: %w", err)
		}

		trades = append(trades, model.Trade{
			TradeID:   id.String(),
			Symbol:    symbol,
			Price:     price,
			Size:      size,
			Side:      side,
			Timestamp: ts,
		})
	}

	return trades, nil
}

// roundSize rounds to the configured decimals, never returning zero
func (g *MarketDataGenerator) roundSize(size float64) float64 {
	d := g.config.Trades.SizeDecimals
	rounded := decimal.NewFromFloat(size).Round(d)
	if !rounded.IsPositive() {
		rounded = decimal.New(1, -d)
	}
	return rounded.InexactFloat64()
}
