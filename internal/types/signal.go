package types

import "time"

type Side string

const (
	// SideBuy is emitted when a symbol becomes ready to buy
	SideBuy Side = "BUY"
	// SideSell is emitted when a symbol becomes ready to sell
	SideSell Side = "SELL"
)

// Signal records a readiness transition observed by the scheduler.
type Signal struct {
	ID     string `json:"id"`
	Symbol string `json:"symbol"`
	Side   Side   `json:"side"`
	// Strength is the percentage of predicates met on the signal's side
	Strength Float     `json:"strength"`
	Price    Float     `json:"price"`
	TS       time.Time `json:"ts"`
	// Confidence is met/K clamped to [0, 1]
	Confidence Float `json:"confidence"`
}
