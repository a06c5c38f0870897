package mock

import (
	"fmt"
	"math"
	"sort"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultInstrumentID is the pair selected when nothing else is requested
const DefaultInstrumentID = "BTC-USD"

// Instrument describes a tradable pair shown in the dashboard
type Instrument struct {
	ID                string  `json:"id"`
	Name              string  `json:"name"`
	BaseAsset         string  `json:"base_asset"`
	QuoteAsset        string  `json:"quote_asset"`
	DefaultPrice      float64 `json:"default_price"`
	PricePrecision    int32   `json:"price_precision"`
	QuantityPrecision int32   `json:"quantity_precision"`
	MinQuantity       float64 `json:"min_quantity"`
	MaxLeverage       int     `json:"max_leverage"`
	FeeRate           float64 `json:"fee_rate"`
	Enabled           bool    `json:"enabled"`
}

// RoundPrice rounds a price to the instrument's display precision
func (i Instrument) RoundPrice(price float64) float64 {
	return decimal.NewFromFloat(price).Round(i.PricePrecision).InexactFloat64()
}

// RoundQuantity rounds a size to the instrument's quantity precision
func (i Instrument) RoundQuantity(size float64) float64 {
	return decimal.NewFromFloat(size).Round(i.QuantityPrecision).InexactFloat64()
}

// InstrumentTable is an immutable lookup of instruments by id
type InstrumentTable struct {
	byID  map[string]Instrument
	order []string
}

// NewInstrumentTable copies the given instruments into a new table.
// Ids must be unique and default prices positive.
func NewInstrumentTable(instruments []Instrument) (*InstrumentTable, error) {
	t := &InstrumentTable{
		byID:  make(map[string]Instrument, len(instruments)),
		order: make([]string, 0, len(instruments)),
	}
	for _, inst := range instruments {
		if inst.ID == "" {
			return nil, fmt.Errorf("%w: instrument id is empty", ErrInvalidArgument)
		}
		if _, dup := t.byID[inst.ID]; dup {
			return nil, fmt.Errorf("%w: duplicate instrument %s", ErrInvalidArgument, inst.ID)
		}
		if !validPrice(inst.DefaultPrice) {
			return nil, fmt.Errorf("%w: instrument %s default price %v", ErrInvalidArgument, inst.ID, inst.DefaultPrice)
		}
		t.byID[inst.ID] = inst
		t.order = append(t.order, inst.ID)
	}
	return t, nil
}

// DefaultInstrumentTable returns the pairs listed on the trading page
func DefaultInstrumentTable() *InstrumentTable {
	t, err := NewInstrumentTable([]Instrument{
		{
			ID: "BTC-USD", Name: "BTC/USD", BaseAsset: "BTC", QuoteAsset: "USD",
			DefaultPrice: 65000, PricePrecision: 2, QuantityPrecision: 2,
			MinQuantity: 10, MaxLeverage: 100, FeeRate: 0.0005, Enabled: true,
		},
		{
			ID: "AAPL-USD", Name: "AAPL/USD", BaseAsset: "AAPL", QuoteAsset: "USD",
			DefaultPrice: 195.5, PricePrecision: 2, QuantityPrecision: 2,
			MinQuantity: 1, MaxLeverage: 50, FeeRate: 0.0005, Enabled: true,
		},
		{
			ID: "SPX-USD", Name: "SPX/USD", BaseAsset: "SPX", QuoteAsset: "USD",
			DefaultPrice: 5200, PricePrecision: 2, QuantityPrecision: 2,
			MinQuantity: 1, MaxLeverage: 50, FeeRate: 0.0005, Enabled: true,
		},
	})
	if err != nil {
		panic(err)
	}
	return t
}

// Get returns the instrument with the given id.
// Lookups also accept the display form ("BTC/USD") and are case-insensitive.
func (t *InstrumentTable) Get(id string) (Instrument, bool) {
	inst, ok := t.byID[NormalizeSymbol(id)]
	return inst, ok
}

// Enabled returns the enabled instruments in table order
func (t *InstrumentTable) Enabled() []Instrument {
	result := make([]Instrument, 0, len(t.order))
	for _, id := range t.order {
		if inst := t.byID[id]; inst.Enabled {
			result = append(result, inst)
		}
	}
	return result
}

// AssetProfile drives trade generation for one base asset
type AssetProfile struct {
	BasePrice  float64 `json:"base_price"`
	BaseJitter float64 `json:"base_jitter"` // half-width of the per-batch jitter on BasePrice
	SizeScale  float64 `json:"size_scale"`
}

func (p AssetProfile) validate() error {
	if !validPrice(p.BasePrice) {
		return fmt.Errorf("%w: base price %v", ErrInvalidArgument, p.BasePrice)
	}
	if p.BaseJitter < 0 || p.BaseJitter >= p.BasePrice {
		return fmt.Errorf("%w: base jitter %v must be in [0, base price)", ErrInvalidArgument, p.BaseJitter)
	}
	if !validPrice(p.SizeScale) {
		return fmt.Errorf("%w: size scale %v", ErrInvalidArgument, p.SizeScale)
	}
	return nil
}

// AssetTable is an immutable map of base asset to trade profile with a fallback
// for unlisted assets
type AssetTable struct {
	profiles map[string]AssetProfile
	fallback AssetProfile
}

// NewAssetTable copies profiles into a new table. Keys are upper-cased.
func NewAssetTable(profiles map[string]AssetProfile, fallback AssetProfile) (*AssetTable, error) {
	if err := fallback.validate(); err != nil {
		return nil, fmt.Errorf("fallback profile: %w", err)
	}
	t := &AssetTable{
		profiles: make(map[string]AssetProfile, len(profiles)),
		fallback: fallback,
	}
	for asset, p := range profiles {
		if err := p.validate(); err != nil {
			return nil, fmt.Errorf("profile %s: %w", asset, err)
		}
		t.profiles[strings.ToUpper(asset)] = p
	}
	return t, nil
}

// DefaultAssetTable returns the recent-trades profiles for the supported base assets
func DefaultAssetTable() *AssetTable {
	t, err := NewAssetTable(map[string]AssetProfile{
		"BTC":  {BasePrice: 52000, BaseJitter: 500, SizeScale: 0.1},
		"ETH":  {BasePrice: 3200, BaseJitter: 50, SizeScale: 1.5},
		"SOL":  {BasePrice: 150, BaseJitter: 5, SizeScale: 20},
		"AVAX": {BasePrice: 35, BaseJitter: 2.5, SizeScale: 15},
		"LINK": {BasePrice: 15, BaseJitter: 1, SizeScale: 25},
	}, AssetProfile{BasePrice: 100, BaseJitter: 5, SizeScale: 10})
	if err != nil {
		panic(err)
	}
	return t
}

// Profile resolves the profile for a symbol's base asset.
// The boolean is false when the fallback profile was used.
func (t *AssetTable) Profile(symbol string) (AssetProfile, bool) {
	p, ok := t.profiles[BaseAsset(symbol)]
	if !ok {
		return t.fallback, false
	}
	return p, true
}

// Assets returns the listed base assets, sorted
func (t *AssetTable) Assets() []string {
	assets := make([]string, 0, len(t.profiles))
	for a := range t.profiles {
		assets = append(assets, a)
	}
	sort.Strings(assets)
	return assets
}

// BaseAsset extracts the upper-cased base asset from "BTC/USD", "btc-usd" or "BTC"
func BaseAsset(symbol string) string {
	symbol = strings.TrimSpace(symbol)
	if i := strings.IndexAny(symbol, "/-"); i >= 0 {
		symbol = symbol[:i]
	}
	return strings.ToUpper(symbol)
}

// NormalizeSymbol converts "btc/usd" to the "BTC-USD" id form
func NormalizeSymbol(symbol string) string {
	return strings.ToUpper(strings.ReplaceAll(strings.TrimSpace(symbol), "/", "-"))
}

func validPrice(p float64) bool {
	return p > 0 && !math.IsNaN(p) && !math.IsInf(p, 0)
}
