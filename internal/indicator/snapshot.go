package indicator

import (
	"math"

	"github.com/rxtech-lab/argo-monitor/internal/types"
)

// MinCandles is the smallest window that yields a non-stale snapshot.
const MinCandles = 30

const (
	SlotRSI     = "rsi"
	SlotRSIFast = "rsi_fast"
	SlotSMA     = "sma15"
	SlotTrend   = "trend"
)

const neutralRSI = 50.0

// Calculator computes snapshots from a fixed set of registered indicators.
type Calculator struct {
	registry IndicatorRegistry
}

// NewCalculator wires RSI(14), RSI(7), SMA(15) and the 20-close trend score.
func NewCalculator() *Calculator {
	registry := NewIndicatorRegistry()

	fast := NewRSI()
	_ = fast.Config(7)

	_ = registry.RegisterIndicator(SlotRSI, NewRSI())
	_ = registry.RegisterIndicator(SlotRSIFast, fast)
	_ = registry.RegisterIndicator(SlotSMA, NewMA())
	_ = registry.RegisterIndicator(SlotTrend, NewTrend())

	return &Calculator{registry: registry}
}

// Compute returns the snapshot of a candle window ordered oldest first. It
// performs no I/O and depends only on the candles.
func (c *Calculator) Compute(candles []types.Candle) types.IndicatorSnapshot {
	closes := types.Closes(candles)

	latest := 0.0
	snap := types.IndicatorSnapshot{
		CandleCount: len(candles),
	}

	if len(candles) > 0 {
		last := candles[len(candles)-1]
		latest = last.Close
		snap.OpenTime = last.OpenTime
	}

	snap.Close = types.Float(latest)

	if len(candles) < MinCandles {
		return neutral(snap, latest)
	}

	rsi := c.value(SlotRSI, closes, neutralRSI)
	prevRSI := c.value(SlotRSI, closes[:len(closes)-1], neutralRSI)
	rsiFast := c.value(SlotRSIFast, closes, neutralRSI)
	sma := c.value(SlotSMA, closes, latest)
	trend := c.value(SlotTrend, closes, 0)

	ratio := 1.0
	if sma != 0 {
		ratio = latest / sma
	}

	snap.RSI = types.Float(rsi)
	snap.PrevRSI = types.Float(prevRSI)
	snap.RSIFast = types.Float(rsiFast)
	snap.SMA15 = types.Float(sma)
	snap.CloseSMARatio = types.Float(ratio)
	snap.Trend = types.Float(trend)

	return snap
}

func (c *Calculator) value(slot string, closes []float64, fallback float64) float64 {
	ind, err := c.registry.GetIndicator(slot)
	if err != nil {
		return fallback
	}

	v, err := ind.Calculate(closes)
	if err != nil {
		return fallback
	}

	return types.Finite(v, fallback)
}

func neutral(snap types.IndicatorSnapshot, latest float64) types.IndicatorSnapshot {
	snap.Stale = true
	snap.RSI = neutralRSI
	snap.PrevRSI = neutralRSI
	snap.RSIFast = neutralRSI
	snap.SMA15 = types.Float(latest)
	snap.CloseSMARatio = 1
	snap.Trend = 0

	if math.IsNaN(latest) {
		snap.Close = 0
	}

	return snap
}
