package model

import (
	"math"

	"github.com/rxtech-lab/argo-monitor/internal/types"
)

// Risk thresholds, in percent.
const (
	highExposurePct   = 80
	mediumExposurePct = 50
	highDrawdownPct   = -10
	mediumDrawdownPct = -5
)

// Risk derives the risk view from the portfolio and the signal ring.
func (d *Dashboard) Risk() types.RiskMetrics {
	p := d.Portfolio

	var staked, unrealized, largest float64

	worst := 0.0

	for i, t := range p.OpenTrades {
		stake := types.Finite(float64(t.StakeAmount), 0)
		staked += stake
		unrealized += types.Finite(float64(t.ProfitAbs), 0)
		largest = math.Max(largest, stake)

		pct := types.Finite(float64(t.ProfitPct), 0)
		if i == 0 || pct < worst {
			worst = pct
		}
	}

	total := types.Finite(float64(p.TotalBalance), 0)

	exposure, largestPct := 0.0, 0.0
	if total > 0 {
		exposure = staked / total * 100
		largestPct = largest / total * 100
	}

	var buys, sells int

	for _, s := range d.Signals {
		switch s.Side {
		case types.SideBuy:
			buys++
		case types.SideSell:
			sells++
		}
	}

	level := types.RiskLow

	switch {
	case exposure >= highExposurePct || worst <= highDrawdownPct:
		level = types.RiskHigh
	case exposure >= mediumExposurePct || worst <= mediumDrawdownPct || p.Degraded:
		level = types.RiskMedium
	}

	return types.RiskMetrics{
		ExposurePct:     types.Float(types.Round(exposure, 2)),
		OpenTrades:      len(p.OpenTrades),
		UnrealizedPnL:   types.Float(types.Round(unrealized, 4)),
		WorstOpenPct:    types.Float(types.Round(worst, 2)),
		BuySignals:      buys,
		SellSignals:     sells,
		Level:           level,
		Degraded:        d.Degraded || p.Degraded,
		AutoTradingOn:   d.AutoTradingEnabled,
		LargestStakePct: types.Float(types.Round(largestPct, 2)),
	}
}
