// Package rules implements the predicate language the dashboard uses to score
// symbols. A predicate is a tree: leaves compare one snapshot field with a
// constant, nodes combine children with AND (all) or OR (any).
package rules

import (
	"fmt"

	"github.com/rxtech-lab/argo-monitor/internal/types"
)

type Field string

const (
	FieldClose         Field = "close"
	FieldRSI           Field = "rsi"
	FieldRSIFast       Field = "rsi_fast"
	FieldSMA15         Field = "sma15"
	FieldCloseSMARatio Field = "close_sma_ratio"
	FieldPrevRSI       Field = "prev_rsi"
	FieldRSIDelta      Field = "rsi_delta"
	FieldTrend         Field = "trend"
)

var knownFields = map[Field]struct{}{
	FieldClose: {}, FieldRSI: {}, FieldRSIFast: {}, FieldSMA15: {},
	FieldCloseSMARatio: {}, FieldPrevRSI: {}, FieldRSIDelta: {}, FieldTrend: {},
}

type Op string

const (
	OpLT  Op = "lt"
	OpLTE Op = "lte"
	OpGT  Op = "gt"
	OpGTE Op = "gte"
	OpEQ  Op = "eq"
	OpNEQ Op = "neq"
)

// Expr is either a leaf (Field, Op, Value) or a node (All or Any). Exactly
// one form must be set.
type Expr struct {
	Field Field   `json:"field,omitempty" yaml:"field,omitempty" jsonschema:"enum=close,enum=rsi,enum=rsi_fast,enum=sma15,enum=close_sma_ratio,enum=prev_rsi,enum=rsi_delta,enum=trend"`
	Op    Op      `json:"op,omitempty" yaml:"op,omitempty" jsonschema:"enum=lt,enum=lte,enum=gt,enum=gte,enum=eq,enum=neq"`
	Value float64 `json:"value,omitempty" yaml:"value,omitempty"`
	All   []Expr  `json:"all,omitempty" yaml:"all,omitempty"`
	Any   []Expr  `json:"any,omitempty" yaml:"any,omitempty"`
}

// Leaf builds a comparison.
func Leaf(field Field, op Op, value float64) Expr {
	return Expr{Field: field, Op: op, Value: value, All: nil, Any: nil}
}

// All builds an AND node.
func All(children ...Expr) Expr {
	return Expr{Field: "", Op: "", Value: 0, All: children, Any: nil}
}

// Any builds an OR node.
func Any(children ...Expr) Expr {
	return Expr{Field: "", Op: "", Value: 0, All: nil, Any: children}
}

func (e Expr) isLeaf() bool {
	return e.Field != ""
}

// Validate checks the tree shape and that every leaf names a known field and
// comparator.
func (e Expr) Validate() error {
	forms := 0
	if e.isLeaf() {
		forms++
	}

	if len(e.All) > 0 {
		forms++
	}

	if len(e.Any) > 0 {
		forms++
	}

	if forms != 1 {
		return fmt.Errorf("expression must have exactly one of field, all, any")
	}

	if e.isLeaf() {
		if _, ok := knownFields[e.Field]; !ok {
			return fmt.Errorf("unknown field %q", e.Field)
		}

		switch e.Op {
		case OpLT, OpLTE, OpGT, OpGTE, OpEQ, OpNEQ:
			return nil
		default:
			return fmt.Errorf("unknown comparator %q", e.Op)
		}
	}

	children := e.All
	if len(children) == 0 {
		children = e.Any
	}

	for _, child := range children {
		if err := child.Validate(); err != nil {
			return err
		}
	}

	return nil
}

// Eval evaluates the expression against a snapshot.
func (e Expr) Eval(s types.IndicatorSnapshot) bool {
	if e.isLeaf() {
		return compare(fieldValue(e.Field, s), e.Op, e.Value)
	}

	if len(e.All) > 0 {
		for _, child := range e.All {
			if !child.Eval(s) {
				return false
			}
		}

		return true
	}

	for _, child := range e.Any {
		if child.Eval(s) {
			return true
		}
	}

	return false
}

func fieldValue(f Field, s types.IndicatorSnapshot) float64 {
	switch f {
	case FieldClose:
		return float64(s.Close)
	case FieldRSI:
		return float64(s.RSI)
	case FieldRSIFast:
		return float64(s.RSIFast)
	case FieldSMA15:
		return float64(s.SMA15)
	case FieldCloseSMARatio:
		return float64(s.CloseSMARatio)
	case FieldPrevRSI:
		return float64(s.PrevRSI)
	case FieldRSIDelta:
		return float64(s.RSI - s.PrevRSI)
	case FieldTrend:
		return float64(s.Trend)
	default:
		return 0
	}
}

func compare(v float64, op Op, c float64) bool {
	switch op {
	case OpLT:
		return v < c
	case OpLTE:
		return v <= c
	case OpGT:
		return v > c
	case OpGTE:
		return v >= c
	case OpEQ:
		return v == c
	case OpNEQ:
		return v != c
	default:
		return false
	}
}
