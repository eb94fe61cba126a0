package rules

import (
	"fmt"

	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

const (
	MaxBuyRules  = 21
	MaxSellRules = 8
)

// Rule is one named predicate.
type Rule struct {
	ID          string `json:"id" yaml:"id" jsonschema:"title=ID,description=Stable predicate identifier such as buy_condition_3" validate:"required"`
	Description string `json:"description,omitempty" yaml:"description,omitempty"`
	When        Expr   `json:"when" yaml:"when"`
}

// RuleSet holds the buy and sell predicates and their readiness thresholds.
type RuleSet struct {
	KBuy  int    `json:"k_buy" yaml:"k_buy" jsonschema:"title=K Buy,description=Buy predicates that must hold for ready_to_buy"`
	KSell int    `json:"k_sell" yaml:"k_sell" jsonschema:"title=K Sell,description=Sell predicates that must hold for ready_to_sell"`
	Buy   []Rule `json:"buy,omitempty" yaml:"buy,omitempty"`
	Sell  []Rule `json:"sell,omitempty" yaml:"sell,omitempty"`
}

// Validate reports a RuleConfigError for any malformed rule set.
func (rs RuleSet) Validate() error {
	if err := validateSide("buy", rs.Buy, MaxBuyRules, rs.KBuy); err != nil {
		return err
	}

	if err := validateSide("sell", rs.Sell, MaxSellRules, rs.KSell); err != nil {
		return err
	}

	seen := make(map[string]struct{}, len(rs.Buy)+len(rs.Sell))
	for _, r := range append(append([]Rule{}, rs.Buy...), rs.Sell...) {
		if _, dup := seen[r.ID]; dup {
			return errors.Newf(errors.ErrCodeRuleConfigError, "duplicate rule id %q", r.ID)
		}

		seen[r.ID] = struct{}{}
	}

	return nil
}

func validateSide(side string, list []Rule, max, k int) error {
	if len(list) == 0 || len(list) > max {
		return errors.Newf(errors.ErrCodeRuleConfigError, "%s rules: need 1..%d predicates, got %d", side, max, len(list))
	}

	if k < 1 || k > len(list) {
		return errors.Newf(errors.ErrCodeRuleConfigError, "k_%s must be within 1..%d, got %d", side, len(list), k)
	}

	for i, r := range list {
		if r.ID == "" {
			return errors.Newf(errors.ErrCodeRuleConfigError, "%s rule #%d has no id", side, i+1)
		}

		if err := r.When.Validate(); err != nil {
			return errors.Wrap(errors.ErrCodeRuleConfigError, fmt.Sprintf("%s rule %s", side, r.ID), err)
		}
	}

	return nil
}

func buyID(n int) string  { return fmt.Sprintf("buy_condition_%d", n) }
func sellID(n int) string { return fmt.Sprintf("sell_condition_%d", n) }

// DefaultRuleSet returns the predicate table the live deployment runs with.
func DefaultRuleSet() RuleSet {
	buy := []Expr{
		Leaf(FieldRSI, OpLT, 30),
		Leaf(FieldRSI, OpLT, 35),
		Leaf(FieldRSIFast, OpLT, 25),
		Leaf(FieldRSIFast, OpLT, 30),
		Leaf(FieldCloseSMARatio, OpLT, 0.98),
		Leaf(FieldCloseSMARatio, OpLT, 0.99),
		Leaf(FieldRSIDelta, OpGT, 0),
		All(Leaf(FieldRSI, OpLT, 40), Leaf(FieldRSIDelta, OpGT, 0)),
		All(Leaf(FieldPrevRSI, OpLT, 30), Leaf(FieldRSIDelta, OpGT, 0)),
		Leaf(FieldTrend, OpGT, -0.3),
		Leaf(FieldTrend, OpGT, 0),
		All(Leaf(FieldRSI, OpLT, 45), Leaf(FieldTrend, OpGT, 0.2)),
		All(Leaf(FieldCloseSMARatio, OpLT, 1.0), Leaf(FieldTrend, OpGT, 0)),
		Any(Leaf(FieldRSI, OpLT, 30), Leaf(FieldRSIFast, OpLT, 20)),
		All(Leaf(FieldRSIFast, OpLT, 35), Leaf(FieldRSIDelta, OpGT, 0)),
		Leaf(FieldRSI, OpGT, 20),
		All(Leaf(FieldCloseSMARatio, OpGT, 0.95), Leaf(FieldCloseSMARatio, OpLT, 1.0)),
		Leaf(FieldRSIFast, OpLT, 40),
		Leaf(FieldRSIDelta, OpGT, 2),
		All(Leaf(FieldTrend, OpGT, 0.5), Leaf(FieldRSI, OpLT, 60)),
		Any(All(Leaf(FieldRSI, OpLT, 35), Leaf(FieldTrend, OpGT, -0.5)), Leaf(FieldCloseSMARatio, OpLT, 0.97)),
	}

	sell := []Expr{
		Leaf(FieldRSI, OpGT, 70),
		Leaf(FieldRSIFast, OpGT, 75),
		Leaf(FieldCloseSMARatio, OpGT, 1.02),
		All(Leaf(FieldRSI, OpGT, 65), Leaf(FieldRSIDelta, OpLT, 0)),
		Leaf(FieldTrend, OpLT, -0.3),
		All(Leaf(FieldPrevRSI, OpGT, 70), Leaf(FieldRSIDelta, OpLT, 0)),
		Leaf(FieldRSI, OpGT, 60),
		Any(Leaf(FieldCloseSMARatio, OpGT, 1.04), Leaf(FieldRSIFast, OpGT, 85)),
	}

	rs := RuleSet{
		KBuy:  15,
		KSell: 5,
		Buy:   make([]Rule, len(buy)),
		Sell:  make([]Rule, len(sell)),
	}

	for i, e := range buy {
		rs.Buy[i] = Rule{ID: buyID(i + 1), Description: "", When: e}
	}

	for i, e := range sell {
		rs.Sell[i] = Rule{ID: sellID(i + 1), Description: "", When: e}
	}

	return rs
}
