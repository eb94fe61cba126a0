// Package config loads the monitor configuration from YAML, overlays secrets
// from the environment and validates the result.
package config

import (
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/rules"
	"github.com/rxtech-lab/argo-monitor/internal/types"
)

// Config is the single configuration object of the monitor.
type Config struct {
	Engine        EngineConfig        `json:"engine" yaml:"engine"`
	Universe      UniverseConfig      `json:"universe" yaml:"universe"`
	Scheduler     SchedulerConfig     `json:"scheduler" yaml:"scheduler"`
	Exchange      ExchangeConfig      `json:"exchange" yaml:"exchange"`
	Rules         rules.RuleSet       `json:"rules" yaml:"rules"`
	Alerts        AlertsConfig        `json:"alerts" yaml:"alerts"`
	Feeds         FeedsConfig         `json:"feeds" yaml:"feeds"`
	Sentiment     SentimentConfig     `json:"sentiment" yaml:"sentiment"`
	Trading       TradingConfig       `json:"trading" yaml:"trading"`
	Notifications NotificationsConfig `json:"notifications" yaml:"notifications"`
	Chat          ChatConfig          `json:"chat" yaml:"chat"`
	System        SystemConfig        `json:"system" yaml:"system"`
	Storage       StorageConfig       `json:"storage" yaml:"storage"`
	HTTP          HTTPConfig          `json:"http" yaml:"http"`
	Log           LogConfig           `json:"log" yaml:"log"`
}

type EngineConfig struct {
	BaseURLs      []string `json:"base_urls" yaml:"base_urls" jsonschema:"title=Base URLs,description=Ordered engine REST base URLs; the first is primary" validate:"required,min=1,dive,url"`
	Username      string   `json:"username" yaml:"username" jsonschema:"title=Username"`
	Password      string   `json:"-" yaml:"password" jsonschema:"title=Password"`
	TimeoutS      int      `json:"timeout_s" yaml:"timeout_s" jsonschema:"title=Timeout,description=Per-request timeout in seconds,default=10" validate:"gt=0"`
	MaxStake      float64  `json:"max_stake" yaml:"max_stake" jsonschema:"title=Max Stake,description=Hard cap for force-entry stake in the quote currency,default=50" validate:"gt=0"`
	MinAPIVersion string   `json:"min_api_version" yaml:"min_api_version" jsonschema:"title=Minimum API version,description=Semver constraint on the engine API version"`
}

type UniverseConfig struct {
	Symbols     []string `json:"symbols" yaml:"symbols" jsonschema:"title=Symbols,description=Canonical BASE/QUOTE pairs to monitor" validate:"required,min=1"`
	Quote       string   `json:"quote" yaml:"quote" jsonschema:"title=Quote currency,default=USDC" validate:"required"`
	Timeframe   string   `json:"timeframe" yaml:"timeframe" jsonschema:"title=Timeframe,default=5m,enum=1m,enum=3m,enum=5m,enum=15m,enum=30m,enum=1h,enum=2h,enum=4h,enum=6h,enum=8h,enum=12h,enum=1d" validate:"required,oneof=1m 3m 5m 15m 30m 1h 2h 4h 6h 8h 12h 1d"`
	CandleLimit int      `json:"candle_limit" yaml:"candle_limit" jsonschema:"title=Candle limit,default=100" validate:"gte=30,lte=1000"`
}

type SchedulerConfig struct {
	TickPeriodS          int `json:"tick_period_s" yaml:"tick_period_s" jsonschema:"default=5" validate:"gt=0"`
	PortfolioConcurrency int `json:"portfolio_concurrency" yaml:"portfolio_concurrency" jsonschema:"default=3" validate:"gt=0"`
	CandleConcurrency    int `json:"candle_concurrency" yaml:"candle_concurrency" jsonschema:"default=8" validate:"gt=0"`
	TradesLimit          int `json:"trades_limit" yaml:"trades_limit" jsonschema:"default=50" validate:"gt=0"`
}

// ExchangeConfig enables a market data provider as a candle source when the
// engine cannot serve pair candles.
type ExchangeConfig struct {
	FallbackEnabled bool   `json:"fallback_enabled" yaml:"fallback_enabled"`
	Provider        string `json:"provider" yaml:"provider" jsonschema:"default=binance,enum=binance,enum=polygon" validate:"omitempty,oneof=binance polygon"`
	BaseURL         string `json:"base_url" yaml:"base_url" validate:"omitempty,url"`
	APIKey          string `json:"-" yaml:"api_key" jsonschema:"description=Polygon API key"`
}

type QuietHours struct {
	Enabled bool   `json:"enabled" yaml:"enabled"`
	Start   string `json:"start" yaml:"start" jsonschema:"pattern=^[0-2][0-9]:[0-5][0-9]$" validate:"omitempty,datetime=15:04"`
	End     string `json:"end" yaml:"end" jsonschema:"pattern=^[0-2][0-9]:[0-5][0-9]$" validate:"omitempty,datetime=15:04"`
}

type AlertsConfig struct {
	Enabled                bool                            `json:"enabled" yaml:"enabled"`
	Kinds                  map[types.NotificationKind]bool `json:"kinds" yaml:"kinds"`
	QuietHours             QuietHours                      `json:"quiet_hours" yaml:"quiet_hours"`
	ImpactThresholds       map[string]float64              `json:"impact_thresholds" yaml:"impact_thresholds"`
	DefaultImpactThreshold float64                         `json:"default_impact_threshold" yaml:"default_impact_threshold" validate:"gte=0,lte=1"`
	SubjectWeights         map[string]float64              `json:"subject_weights" yaml:"subject_weights"`
	DefaultSubjectWeight   float64                         `json:"default_subject_weight" yaml:"default_subject_weight" validate:"gte=0,lte=1"`
	PositiveWords          []string                        `json:"positive_words" yaml:"positive_words"`
	NegativeWords          []string                        `json:"negative_words" yaml:"negative_words"`
	PowerWords             []string                        `json:"power_words" yaml:"power_words"`
	AssetAliases           map[string]string               `json:"asset_aliases" yaml:"asset_aliases" jsonschema:"description=Lowercase keyword to base asset (bitcoin: BTC)"`
	PnLChangeThreshold     float64                         `json:"pnl_change_threshold" yaml:"pnl_change_threshold" jsonschema:"description=Absolute total PnL change in quote currency that triggers a profit_loss notification" validate:"gte=0"`
}

// KindEnabled reports whether notifications of kind are switched on. Kinds
// missing from the map are on.
func (a AlertsConfig) KindEnabled(kind types.NotificationKind) bool {
	enabled, ok := a.Kinds[kind]

	return !ok || enabled
}

// ImpactThreshold returns τ for subject.
func (a AlertsConfig) ImpactThreshold(subject string) float64 {
	if v, ok := a.ImpactThresholds[subject]; ok {
		return v
	}

	return a.DefaultImpactThreshold
}

// SubjectWeight returns the base impact weight for subject.
func (a AlertsConfig) SubjectWeight(subject string) float64 {
	if v, ok := a.SubjectWeights[subject]; ok {
		return v
	}

	return a.DefaultSubjectWeight
}

type FeedSource struct {
	Name       string `json:"name" yaml:"name" validate:"required"`
	URL        string `json:"url" yaml:"url" validate:"required,url"`
	SubjectTag string `json:"subject_tag" yaml:"subject_tag" validate:"required"`
}

type FeedsConfig struct {
	Enabled       bool         `json:"enabled" yaml:"enabled"`
	PollIntervalS int          `json:"poll_interval_s" yaml:"poll_interval_s" jsonschema:"default=300" validate:"gt=0"`
	Sources       []FeedSource `json:"sources" yaml:"sources" validate:"dive"`
}

type SentimentConfig struct {
	SampleEveryTicks int    `json:"sample_every_ticks" yaml:"sample_every_ticks" jsonschema:"default=60" validate:"gt=0"`
	FearGreedURL     string `json:"fear_greed_url" yaml:"fear_greed_url" validate:"omitempty,url"`
}

type TradingConfig struct {
	StakeBase float64 `json:"stake_base" yaml:"stake_base" jsonschema:"default=20" validate:"gt=0"`
	StakeCap  float64 `json:"stake_cap" yaml:"stake_cap" jsonschema:"default=50" validate:"gt=0,gtefield=StakeBase"`
}

type EmailConfig struct {
	Enabled  bool     `json:"enabled" yaml:"enabled"`
	Host     string   `json:"host" yaml:"host" validate:"required_if=Enabled true"`
	Port     int      `json:"port" yaml:"port" jsonschema:"default=587"`
	Username string   `json:"username" yaml:"username"`
	Password string   `json:"-" yaml:"password"`
	From     string   `json:"from" yaml:"from" validate:"omitempty,email"`
	To       []string `json:"to" yaml:"to" validate:"dive,email"`
}

type WebhookConfig struct {
	Enabled  bool   `json:"enabled" yaml:"enabled"`
	URL      string `json:"url" yaml:"url" validate:"omitempty,url"`
	TimeoutS int    `json:"timeout_s" yaml:"timeout_s" jsonschema:"default=10"`
}

type NotificationsConfig struct {
	RateLimitPerMin int           `json:"rate_limit_per_min" yaml:"rate_limit_per_min" jsonschema:"default=30" validate:"gt=0"`
	DedupeWindowS   int           `json:"dedupe_window_s" yaml:"dedupe_window_s" jsonschema:"default=60" validate:"gte=0"`
	Email           EmailConfig   `json:"email" yaml:"email"`
	Webhook         WebhookConfig `json:"webhook" yaml:"webhook"`
}

type ChatConfig struct {
	Enabled          bool     `json:"enabled" yaml:"enabled"`
	Token            string   `json:"-" yaml:"token"`
	AuthorizedChatID int64    `json:"authorized_chat_id" yaml:"authorized_chat_id"`
	APIEndpoint      string   `json:"api_endpoint" yaml:"api_endpoint" jsonschema:"description=Bot API endpoint format string with token and method placeholders"`
	PollTimeoutS     int      `json:"poll_timeout_s" yaml:"poll_timeout_s" jsonschema:"default=30" validate:"gt=0"`
	BrandBlocklist   []string `json:"brand_blocklist" yaml:"brand_blocklist"`
	BrandReplacement string   `json:"brand_replacement" yaml:"brand_replacement" jsonschema:"default=exchange"`
	TopK             int      `json:"top_k" yaml:"top_k" jsonschema:"default=5" validate:"gt=0"`
}

type SystemConfig struct {
	DiskPath     string   `json:"disk_path" yaml:"disk_path" jsonschema:"default=/"`
	ProcessNames []string `json:"process_names" yaml:"process_names" jsonschema:"description=Process name fragments probed for the running flags"`
}

type StorageConfig struct {
	Dir string `json:"dir" yaml:"dir" jsonschema:"default=./data" validate:"required"`
}

type HTTPConfig struct {
	BindAddr         string `json:"bind_addr" yaml:"bind_addr" jsonschema:"default=0.0.0.0"`
	Port             int    `json:"port" yaml:"port" jsonschema:"default=8500" validate:"gt=0,lte=65535"`
	RequestTimeoutMs int    `json:"request_timeout_ms" yaml:"request_timeout_ms" jsonschema:"default=2000" validate:"gt=0"`
}

type LogConfig struct {
	Level string `json:"level" yaml:"level" jsonschema:"default=info,enum=debug,enum=info,enum=warn,enum=error" validate:"omitempty,oneof=debug info warn error"`
}

// StakeCeiling is the largest stake the engine client will send: the lower
// of engine.max_stake and trading.stake_cap.
func (c *Config) StakeCeiling() float64 {
	return min(c.Engine.MaxStake, c.Trading.StakeCap)
}

// TickPeriod returns the scheduler period.
func (c *Config) TickPeriod() time.Duration {
	return time.Duration(c.Scheduler.TickPeriodS) * time.Second
}

// EngineTimeout returns the per-request engine timeout.
func (c *Config) EngineTimeout() time.Duration {
	return time.Duration(c.Engine.TimeoutS) * time.Second
}

// DedupeWindow returns the duplicate suppression window.
func (c *Config) DedupeWindow() time.Duration {
	return time.Duration(c.Notifications.DedupeWindowS) * time.Second
}
