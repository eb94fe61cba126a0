package types

import "time"

// IndicatorSnapshot holds the indicator values computed for one symbol from
// its latest candle window.
type IndicatorSnapshot struct {
	Close         Float     `json:"close"`
	RSI           Float     `json:"rsi"`
	RSIFast       Float     `json:"rsi_fast"`
	SMA15         Float     `json:"sma15"`
	CloseSMARatio Float     `json:"close_sma_ratio"`
	PrevRSI       Float     `json:"prev_rsi"`
	Trend         Float     `json:"trend"`
	Stale         bool      `json:"stale"`
	CandleCount   int       `json:"candle_count"`
	OpenTime      time.Time `json:"open_time"`
}

// RuleEvaluation is the outcome of the buy and sell predicate sets for one
// symbol.
type RuleEvaluation struct {
	Buy         map[string]bool `json:"buy"`
	Sell        map[string]bool `json:"sell"`
	BuyMet      int             `json:"buy_met"`
	SellMet     int             `json:"sell_met"`
	BuyTotal    int             `json:"buy_total"`
	SellTotal   int             `json:"sell_total"`
	BuyPct      Float           `json:"buy_pct"`
	SellPct     Float           `json:"sell_pct"`
	ReadyToBuy  bool            `json:"ready_to_buy"`
	ReadyToSell bool            `json:"ready_to_sell"`
}

// SymbolCondition is the dashboard entry for one symbol.
type SymbolCondition struct {
	Symbol     string            `json:"symbol"`
	Snapshot   IndicatorSnapshot `json:"indicators"`
	Evaluation RuleEvaluation    `json:"evaluation"`
	UpdatedAt  time.Time         `json:"updated_at"`
}

// Ready reports whether either side is ready.
func (c SymbolCondition) Ready() bool {
	return c.Evaluation.ReadyToBuy || c.Evaluation.ReadyToSell
}
