package rules

import (
	"math"

	"github.com/rxtech-lab/argo-monitor/internal/indicator"
	"github.com/rxtech-lab/argo-monitor/internal/types"
)

// Evaluator scores candle windows against a validated rule set.
type Evaluator struct {
	rules RuleSet
	calc  *indicator.Calculator
}

// NewEvaluator validates rs and returns an evaluator for it.
func NewEvaluator(rs RuleSet) (*Evaluator, error) {
	if err := rs.Validate(); err != nil {
		return nil, err
	}

	return &Evaluator{
		rules: rs,
		calc:  indicator.NewCalculator(),
	}, nil
}

// Rules returns the rule set in use.
func (e *Evaluator) Rules() RuleSet {
	return e.rules
}

// Evaluate computes the snapshot and rule outcome of one symbol's window.
// UpdatedAt is left for the caller to stamp.
func (e *Evaluator) Evaluate(symbol string, candles []types.Candle) types.SymbolCondition {
	snap := e.calc.Compute(candles)

	return types.SymbolCondition{
		Symbol:     symbol,
		Snapshot:   snap,
		Evaluation: e.EvaluateSnapshot(snap),
	}
}

// EvaluateSnapshot runs every predicate against snap. Stale snapshots
// satisfy no predicate.
func (e *Evaluator) EvaluateSnapshot(snap types.IndicatorSnapshot) types.RuleEvaluation {
	ev := types.RuleEvaluation{
		Buy:       make(map[string]bool, len(e.rules.Buy)),
		Sell:      make(map[string]bool, len(e.rules.Sell)),
		BuyTotal:  len(e.rules.Buy),
		SellTotal: len(e.rules.Sell),
	}

	for _, r := range e.rules.Buy {
		ok := !snap.Stale && r.When.Eval(snap)
		ev.Buy[r.ID] = ok

		if ok {
			ev.BuyMet++
		}
	}

	for _, r := range e.rules.Sell {
		ok := !snap.Stale && r.When.Eval(snap)
		ev.Sell[r.ID] = ok

		if ok {
			ev.SellMet++
		}
	}

	ev.BuyPct = types.Float(pct(ev.BuyMet, ev.BuyTotal))
	ev.SellPct = types.Float(pct(ev.SellMet, ev.SellTotal))
	ev.ReadyToBuy = ev.BuyMet >= e.rules.KBuy
	ev.ReadyToSell = ev.SellMet >= e.rules.KSell

	return ev
}

// Confidence is met/k clamped to [0, 1].
func (e *Evaluator) Confidence(side types.Side, ev types.RuleEvaluation) float64 {
	if side == types.SideBuy {
		return math.Min(1, float64(ev.BuyMet)/float64(e.rules.KBuy))
	}

	return math.Min(1, float64(ev.SellMet)/float64(e.rules.KSell))
}

func pct(met, total int) float64 {
	if total == 0 {
		return 0
	}

	return types.Round(float64(met)*100/float64(total), 1)
}
