package types

import "time"

// TradeSummary is the dashboard view of one engine trade.
type TradeSummary struct {
	TradeID     int64      `json:"trade_id"`
	Pair        string     `json:"pair"`
	IsOpen      bool       `json:"is_open"`
	OpenRate    Float      `json:"open_rate"`
	CurrentRate Float      `json:"current_rate"`
	StakeAmount Float      `json:"stake_amount"`
	ProfitPct   Float      `json:"profit_pct"`
	ProfitAbs   Float      `json:"profit_abs"`
	OpenDate    time.Time  `json:"open_date"`
	CloseDate   *time.Time `json:"close_date"`
}

// Portfolio is the model's view of the engine account.
type Portfolio struct {
	TotalBalance      Float          `json:"total_balance"`
	FreeBalance       Float          `json:"free_balance"`
	Currency          string         `json:"currency"`
	TotalPnL          Float          `json:"total_pnl"`
	ClosedPnL         Float          `json:"closed_pnl"`
	DailyPnL          Float          `json:"daily_pnl"`
	WeeklyPnL         Float          `json:"weekly_pnl"`
	MonthlyPnL        Float          `json:"monthly_pnl"`
	TradeCount        int            `json:"trade_count"`
	ClosedTradeCount  int            `json:"closed_trade_count"`
	WinningTrades     int            `json:"winning_trades"`
	LosingTrades      int            `json:"losing_trades"`
	WinRate           Float          `json:"win_rate"`
	BestTradePct      Float          `json:"best_trade_pct"`
	WorstTradePct     Float          `json:"worst_trade_pct"`
	OpenTrades        []TradeSummary `json:"open_trades"`
	RecentTrades      []TradeSummary `json:"recent_trades"`
	Degraded          bool           `json:"degraded"`
	FromSnapshot      bool           `json:"from_snapshot"`
	UpdatedAt         *time.Time     `json:"updated_at"`
	LastEngineFailure string         `json:"last_engine_failure,omitempty"`
}

// ProcessStatus reports whether a named companion process is running.
type ProcessStatus struct {
	Name    string `json:"name"`
	Running bool   `json:"running"`
	PID     int32  `json:"pid,omitempty"`
}

// SystemStatus is the host and engine health view.
type SystemStatus struct {
	CPUPercent      Float           `json:"cpu_percent"`
	MemoryPercent   Float           `json:"memory_percent"`
	DiskPercent     Float           `json:"disk_percent"`
	Processes       []ProcessStatus `json:"processes"`
	EngineReachable bool            `json:"engine_reachable"`
	EngineVersion   string          `json:"engine_version"`
	EngineURL       string          `json:"engine_url"`
	UptimeSeconds   int64           `json:"uptime_seconds"`
	CollectedAt     time.Time       `json:"collected_at"`
}

type RiskLevel string

const (
	RiskLow    RiskLevel = "LOW"
	RiskMedium RiskLevel = "MEDIUM"
	RiskHigh   RiskLevel = "HIGH"
)

// RiskMetrics is derived on request from the portfolio and recent signals.
type RiskMetrics struct {
	ExposurePct     Float     `json:"exposure_pct"`
	OpenTrades      int       `json:"open_trades"`
	UnrealizedPnL   Float     `json:"unrealized_pnl"`
	WorstOpenPct    Float     `json:"worst_open_pct"`
	BuySignals      int       `json:"buy_signals"`
	SellSignals     int       `json:"sell_signals"`
	Level           RiskLevel `json:"risk_level"`
	Degraded        bool      `json:"degraded"`
	AutoTradingOn   bool      `json:"auto_trading_enabled"`
	LargestStakePct Float     `json:"largest_stake_pct"`
}
