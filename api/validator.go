package api

import (
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"sync"

	sim "MarketSimService/internal/mock"
)

// Request bounds
const (
	MaxCandleLimit  = 1000
	MaxCandleLength = 1000
	MaxTradeCount   = 500
)

// Validator handles validation logic separate from HTTP concerns
type Validator struct {
	supportedIntervals map[string]bool
	symbolRegex        *regexp.Regexp
}

var (
	validatorInstance *Validator
	validatorOnce     sync.Once
)

// GetValidator returns the singleton validator instance
func GetValidator() *Validator {
	validatorOnce.Do(func() {
		validatorInstance = &Validator{
			supportedIntervals: map[string]bool{
				"1d": true,
				"3d": true,
				"1w": true,
			},
			// BTC-USD, btc/usd, AAPL-USD
			symbolRegex: regexp.MustCompile(`^[a-zA-Z]{2,6}[-/][a-zA-Z]{2,6}$`),
		}
	})
	return validatorInstance
}

// ValidateTradesRequest validates and sanitizes the symbol for trades
func (v *Validator) ValidateTradesRequest(symbol string) (string, error) {
	cleanSymbol := v.sanitizeInput(symbol)
	if err := v.validateSymbol(cleanSymbol); err != nil {
		return "", err
	}
	return cleanSymbol, nil
}

// ValidateCandlesRequest validates and sanitizes the symbol, interval, and limit for candles
func (v *Validator) ValidateCandlesRequest(symbol, interval, limitStr string) (string, string, int64, error) {
	cleanSymbol := v.sanitizeInput(symbol)
	if err := v.validateSymbol(cleanSymbol); err != nil {
		return "", "", 0, err
	}

	cleanInterval := v.sanitizeInput(interval)
	if cleanInterval == "" {
		cleanInterval = DefaultInterval
	}
	if err := v.validateInterval(cleanInterval); err != nil {
		return "", "", 0, err
	}

	limit, err := v.validateBoundedInt(limitStr, "limit", MaxCandleLimit)
	if err != nil {
		return "", "", 0, err
	}

	return cleanSymbol, cleanInterval, int64(limit), nil
}

// ValidateSelectRequest validates the symbol of an instrument switch
func (v *Validator) ValidateSelectRequest(symbol string) (string, error) {
	return v.ValidateTradesRequest(symbol)
}

// ValidateGenerateCandlesRequest validates a one-shot candle generation request.
// An empty base price means the generator default.
func (v *Validator) ValidateGenerateCandlesRequest(lengthStr, basePriceStr string) (int, float64, error) {
	length, err := v.validateBoundedInt(lengthStr, "length", MaxCandleLength)
	if err != nil {
		return 0, 0, err
	}

	basePriceStr = v.sanitizeInput(basePriceStr)
	if basePriceStr == "" {
		return length, sim.DefaultCandleBasePrice, nil
	}
	basePrice, err := strconv.ParseFloat(basePriceStr, 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: base_price must be a valid number", sim.ErrInvalidArgument)
	}
	if !(basePrice > 0) {
		return 0, 0, fmt.Errorf("%w: base_price must be positive", sim.ErrInvalidArgument)
	}

	return length, basePrice, nil
}

// ValidateGenerateTradesRequest validates a one-shot trade generation request
func (v *Validator) ValidateGenerateTradesRequest(symbol, countStr string) (string, int, error) {
	cleanSymbol := v.sanitizeInput(symbol)
	if err := v.validateSymbol(cleanSymbol); err != nil {
		return "", 0, err
	}

	count, err := v.validateBoundedInt(countStr, "count", MaxTradeCount)
	if err != nil {
		return "", 0, err
	}

	return cleanSymbol, count, nil
}

// sanitizeInput removes potentially dangerous characters and trims whitespace
func (v *Validator) sanitizeInput(input string) string {
	input = strings.TrimSpace(input)
	input = strings.ReplaceAll(input, "\x00", "")

	input = strings.Map(func(r rune) rune {
		// Keep printable ASCII and common symbols, remove control chars
		if r < 32 && r != 9 && r != 10 && r != 13 {
			return -1
		}
		return r
	}, input)

	// Limit length to prevent DoS
	if len(input) > 100 {
		input = input[:100]
	}

	return input
}

// validateSymbol validates a trading symbol
func (v *Validator) validateSymbol(symbol string) error {
	if symbol == "" {
		return fmt.Errorf("%w: symbol parameter is required", sim.ErrInvalidArgument)
	}

	if !v.symbolRegex.MatchString(symbol) {
		return fmt.Errorf("%w: symbol must look like BASE-QUOTE or BASE/QUOTE with 2-6 letters each", sim.ErrInvalidArgument)
	}

	return nil
}

// validateInterval validates a candle interval
func (v *Validator) validateInterval(interval string) error {
	if interval == "" {
		return fmt.Errorf("%w: interval cannot be empty", sim.ErrInvalidArgument)
	}

	if !v.supportedIntervals[interval] {
		return fmt.Errorf("%w: invalid interval '%s'. Supported values: 1d, 3d, 1w", sim.ErrInvalidArgument, interval)
	}

	return nil
}

// validateBoundedInt parses an optional non-negative integer no larger than upper.
// An empty value is 0.
func (v *Validator) validateBoundedInt(raw, name string, upper int) (int, error) {
	raw = v.sanitizeInput(raw)
	if raw == "" {
		return 0, nil
	}

	n, err := strconv.Atoi(raw)
	if err != nil {
		return 0, fmt.Errorf("%w: %s must be a valid number", sim.ErrInvalidArgument, name)
	}

	if n < 0 || n > upper {
		return 0, fmt.Errorf("%w: %s must be between 0 and %d", sim.ErrInvalidArgument, name, upper)
	}

	return n, nil
}
