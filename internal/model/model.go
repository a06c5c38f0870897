package model

// Side is the aggressor side of a trade
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Valid reports whether s is one of the known sides
func (s Side) Valid() bool {
	return s == SideBuy || s == SideSell
}

// Trade represents a single synthetic trade tick
type Trade struct {
	TradeID   string  `json:"trade_id"`
	Symbol    string  `json:"symbol"`
	Price     float64 `json:"price"`
	Size      float64 `json:"size"`
	Side      Side    `json:"side"`
	Timestamp int64   `json:"timestamp"`
}

// Candle represents one daily OHLC bar.
// Time is the ISO calendar date (YYYY-MM-DD, UTC); Timestamp is the same instant in epoch seconds.
type Candle struct {
	Time      string  `json:"time"`
	Timestamp int64   `json:"timestamp"`
	Open      float64 `json:"open"`
	High      float64 `json:"high"`
	Low       float64 `json:"low"`
	Close     float64 `json:"close"`
}
