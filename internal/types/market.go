package types

import (
	"strings"
	"time"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// Candle is one OHLCV bar. Candles for a (symbol, timeframe) are ordered by
// OpenTime ascending and never mutated once fetched.
type Candle struct {
	OpenTime time.Time `json:"open_time" csv:"open_time"`
	Open     float64   `json:"open" csv:"open"`
	High     float64   `json:"high" csv:"high"`
	Low      float64   `json:"low" csv:"low"`
	Close    float64   `json:"close" csv:"close"`
	Volume   float64   `json:"volume" csv:"volume"`
}

// Closes returns the close prices of the candles in order.
func Closes(candles []Candle) []float64 {
	out := make([]float64, len(candles))
	for i, c := range candles {
		out[i] = c.Close
	}

	return out
}

// Pair is a canonical BASE/QUOTE trading pair such as "BTC/USDC".
type Pair string

// ParsePair validates raw as BASE/QUOTE. When quote is non-empty the pair's
// quote currency must match it.
func ParsePair(raw, quote string) (Pair, error) {
	raw = strings.ToUpper(strings.TrimSpace(raw))

	base, q, ok := strings.Cut(raw, "/")
	if !ok || base == "" || q == "" || strings.Contains(q, "/") {
		return "", errors.Newf(errors.ErrCodeInvalidPair, "pair %q is not BASE/QUOTE", raw)
	}

	if quote != "" && q != strings.ToUpper(quote) {
		return "", errors.Newf(errors.ErrCodeInvalidPair, "pair %q does not use quote currency %s", raw, quote)
	}

	return Pair(raw), nil
}

// Base returns the base asset.
func (p Pair) Base() string {
	base, _, _ := strings.Cut(string(p), "/")

	return base
}

// Quote returns the quote asset.
func (p Pair) Quote() string {
	_, quote, _ := strings.Cut(string(p), "/")

	return quote
}

// ExchangeSymbol returns the pair without the separator, as exchanges spell it.
func (p Pair) ExchangeSymbol() string {
	return strings.ReplaceAll(string(p), "/", "")
}

// FileStem returns the pair as used in engine data file names (BTC_USDC).
func (p Pair) FileStem() string {
	return strings.ReplaceAll(string(p), "/", "_")
}

func (p Pair) String() string {
	return string(p)
}
