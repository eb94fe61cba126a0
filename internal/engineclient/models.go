package engineclient

import (
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/types"
)

// Trade is the engine's trade record, shared by /status (open trades) and
// /trades (history).
type Trade struct {
	TradeID        int64    `json:"trade_id"`
	Pair           string   `json:"pair"`
	IsOpen         bool     `json:"is_open"`
	OpenRate       float64  `json:"open_rate"`
	CloseRate      *float64 `json:"close_rate"`
	CurrentRate    float64  `json:"current_rate"`
	Amount         float64  `json:"amount"`
	StakeAmount    float64  `json:"stake_amount"`
	ProfitRatio    float64  `json:"profit_ratio"`
	ProfitPct      float64  `json:"profit_pct"`
	ProfitAbs      float64  `json:"profit_abs"`
	OpenTimestamp  int64    `json:"open_timestamp"`
	CloseTimestamp *int64   `json:"close_timestamp"`
}

// OpenedAt returns the open time in UTC.
func (t Trade) OpenedAt() time.Time {
	return time.UnixMilli(t.OpenTimestamp).UTC()
}

// ClosedAt returns the close time, or nil for open trades.
func (t Trade) ClosedAt() *time.Time {
	if t.CloseTimestamp == nil || *t.CloseTimestamp == 0 {
		return nil
	}

	ts := time.UnixMilli(*t.CloseTimestamp).UTC()

	return &ts
}

// Summary converts the wire record to the dashboard view.
func (t Trade) Summary() types.TradeSummary {
	return types.TradeSummary{
		TradeID:     t.TradeID,
		Pair:        t.Pair,
		IsOpen:      t.IsOpen,
		OpenRate:    types.Float(t.OpenRate),
		CurrentRate: types.Float(t.CurrentRate),
		StakeAmount: types.Float(t.StakeAmount),
		ProfitPct:   types.Float(t.ProfitPct),
		ProfitAbs:   types.Float(t.ProfitAbs),
		OpenDate:    t.OpenedAt(),
		CloseDate:   t.ClosedAt(),
	}
}

type tradesResponse struct {
	Trades      []Trade `json:"trades"`
	TradesCount int     `json:"trades_count"`
	TotalTrades int     `json:"total_trades"`
}

type CurrencyBalance struct {
	Currency string  `json:"currency"`
	Free     float64 `json:"free"`
	Balance  float64 `json:"balance"`
	Used     float64 `json:"used"`
	EstStake float64 `json:"est_stake"`
}

// Balance is the /balance payload.
type Balance struct {
	Currencies      []CurrencyBalance `json:"currencies"`
	Total           float64           `json:"total"`
	Free            *float64          `json:"free"`
	Stake           string            `json:"stake"`
	StartingCapital float64           `json:"starting_capital"`
}

// Available returns the free amount of the stake currency.
func (b Balance) Available() float64 {
	if b.Free != nil {
		return *b.Free
	}

	for _, c := range b.Currencies {
		if c.Currency == b.Stake {
			return c.Free
		}
	}

	return 0
}

// Profit is the /profit aggregate.
type Profit struct {
	ProfitClosedCoin    float64 `json:"profit_closed_coin"`
	ProfitClosedPercent float64 `json:"profit_closed_percent"`
	ProfitAllCoin       float64 `json:"profit_all_coin"`
	ProfitAllPercent    float64 `json:"profit_all_percent"`
	TradeCount          int     `json:"trade_count"`
	ClosedTradeCount    int     `json:"closed_trade_count"`
	WinningTrades       int     `json:"winning_trades"`
	LosingTrades        int     `json:"losing_trades"`
	Winrate             float64 `json:"winrate"`
	BestPair            string  `json:"best_pair"`
	BestRate            float64 `json:"best_rate"`
}

// EngineConfig is the subset of /show_config the monitor reads.
type EngineConfig struct {
	APIVersion    float64 `json:"api_version"`
	Version       string  `json:"version"`
	Strategy      string  `json:"strategy"`
	DryRun        bool    `json:"dry_run"`
	StakeCurrency string  `json:"stake_currency"`
	Timeframe     string  `json:"timeframe"`
	State         string  `json:"state"`
	MaxOpenTrades int     `json:"max_open_trades"`
	Exchange      string  `json:"exchange"`
}

type whitelistResponse struct {
	Whitelist []string `json:"whitelist"`
	Length    int      `json:"length"`
	Method    []string `json:"method"`
}

type versionResponse struct {
	Version string `json:"version"`
}

type statusResponse struct {
	Status string `json:"status"`
}

type resultResponse struct {
	Result string `json:"result"`
}

// ForceEntryRequest asks the engine to open a trade.
type ForceEntryRequest struct {
	Pair        types.Pair
	Side        string
	StakeAmount float64
	OrderType   string
}

type forceEntryBody struct {
	Pair        string  `json:"pair"`
	Side        string  `json:"side"`
	OrderType   string  `json:"ordertype"`
	StakeAmount float64 `json:"stakeamount"`
}

// ForceEntryResult carries the opened trade.
type ForceEntryResult struct {
	TradeID int64   `json:"trade_id"`
	Pair    string  `json:"pair"`
	Stake   float64 `json:"stake_amount"`
}

// ForceExitRequest selects the trades to close: a trade id, "all", or every
// open trade on Pair when TradeID is empty.
type ForceExitRequest struct {
	TradeID string
	Pair    string
}

type forceExitBody struct {
	TradeID   string `json:"tradeid"`
	OrderType string `json:"ordertype,omitempty"`
}

// ForceExitResult lists the closed trade ids.
type ForceExitResult struct {
	Closed []int64 `json:"closed"`
}
