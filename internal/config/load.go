package config

import (
	"encoding/json"
	"os"
	"strconv"

	"github.com/go-playground/validator/v10"
	"github.com/invopop/jsonschema"
	"github.com/joho/godotenv"
	"github.com/rxtech-lab/argo-monitor/internal/rules"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"gopkg.in/yaml.v3"
)

// Environment variables that override secrets from the file.
const (
	EnvEngineUsername = "MONITOR_ENGINE_USERNAME"
	EnvEnginePassword = "MONITOR_ENGINE_PASSWORD"
	EnvChatToken      = "MONITOR_CHAT_TOKEN"
	EnvChatID         = "MONITOR_CHAT_ID"
	EnvSMTPPassword   = "MONITOR_SMTP_PASSWORD"
	EnvWebhookURL     = "MONITOR_WEBHOOK_URL"
	EnvPolygonAPIKey  = "MONITOR_POLYGON_API_KEY"
)

// Default returns the configuration used when a key is absent from the file.
func Default() Config {
	return Config{
		Engine: EngineConfig{
			BaseURLs:      []string{"http://127.0.0.1:8080", "http://127.0.0.1:8081"},
			Username:      "freqtrader",
			Password:      "",
			TimeoutS:      10,
			MaxStake:      50,
			MinAPIVersion: ">= 2.0",
		},
		Universe: UniverseConfig{
			Symbols: []string{
				"BTC/USDC", "ETH/USDC", "SOL/USDC", "BNB/USDC", "XRP/USDC", "ADA/USDC",
				"DOGE/USDC", "AVAX/USDC", "DOT/USDC", "LINK/USDC", "LTC/USDC",
			},
			Quote:       "USDC",
			Timeframe:   "5m",
			CandleLimit: 100,
		},
		Scheduler: SchedulerConfig{
			TickPeriodS:          5,
			PortfolioConcurrency: 3,
			CandleConcurrency:    8,
			TradesLimit:          50,
		},
		Exchange: ExchangeConfig{
			FallbackEnabled: false,
			Provider:        "binance",
			BaseURL:         "",
			APIKey:          "",
		},
		Rules: rules.DefaultRuleSet(),
		Alerts: AlertsConfig{
			Enabled: true,
			Kinds: map[types.NotificationKind]bool{
				types.KindTradingSignal:    true,
				types.KindProfitLoss:       true,
				types.KindSystemStatus:     true,
				types.KindError:            true,
				types.KindBacktestComplete: true,
				types.KindStrategyChange:   true,
				types.KindNewsAlert:        true,
			},
			QuietHours: QuietHours{Enabled: false, Start: "23:00", End: "07:00"},
			ImpactThresholds: map[string]float64{
				"listing":   0.7,
				"celebrity": 0.75,
			},
			DefaultImpactThreshold: 0.7,
			SubjectWeights: map[string]float64{
				"listing":     0.9,
				"celebrity":   0.8,
				"regulation":  0.7,
				"partnership": 0.6,
				"market":      0.5,
			},
			DefaultSubjectWeight: 0.5,
			PositiveWords: []string{
				"surge", "rally", "bullish", "adopt", "adoption", "approve", "approved", "approval",
				"launch", "partnership", "listing", "lists", "buy", "gain", "record", "upgrade",
			},
			NegativeWords: []string{
				"crash", "plunge", "bearish", "ban", "hack", "hacked", "lawsuit", "sell", "fraud",
				"delist", "delisting", "exploit", "drop", "fine", "investigation",
			},
			PowerWords: []string{"breaking", "massive", "historic", "official", "exclusive", "urgent"},
			AssetAliases: map[string]string{
				"bitcoin":  "BTC",
				"btc":      "BTC",
				"ethereum": "ETH",
				"eth":      "ETH",
				"ether":    "ETH",
				"solana":   "SOL",
				"sol":      "SOL",
				"dogecoin": "DOGE",
				"doge":     "DOGE",
				"ripple":   "XRP",
				"xrp":      "XRP",
			},
			PnLChangeThreshold: 5,
		},
		Feeds: FeedsConfig{
			Enabled:       false,
			PollIntervalS: 300,
			Sources:       nil,
		},
		Sentiment: SentimentConfig{
			SampleEveryTicks: 60,
			FearGreedURL:     "",
		},
		Trading: TradingConfig{
			StakeBase: 20,
			StakeCap:  50,
		},
		Notifications: NotificationsConfig{
			RateLimitPerMin: 30,
			DedupeWindowS:   60,
			Email:           EmailConfig{Enabled: false, Port: 587},
			Webhook:         WebhookConfig{Enabled: false, TimeoutS: 10},
		},
		Chat: ChatConfig{
			Enabled:          false,
			APIEndpoint:      "https://api.telegram.org/bot%s/%s",
			PollTimeoutS:     30,
			BrandBlocklist:   []string{"Binance", "Coinbase", "Kraken", "Bybit", "OKX", "KuCoin"},
			BrandReplacement: "exchange",
			TopK:             5,
		},
		System: SystemConfig{
			DiskPath:     "/",
			ProcessNames: []string{"freqtrade"},
		},
		Storage: StorageConfig{Dir: "./data"},
		HTTP: HTTPConfig{
			BindAddr:         "0.0.0.0",
			Port:             8500,
			RequestTimeoutMs: 2000,
		},
		Log: LogConfig{Level: "info"},
	}
}

// Load reads the YAML file at path over the defaults, applies environment
// overrides (a .env file next to the process is honored) and validates.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInvalidConfiguration, err, "failed to read config %s", path)
	}

	return Parse(b)
}

// Parse decodes YAML bytes over the defaults, applies environment overrides
// and validates.
func Parse(data []byte) (*Config, error) {
	cfg := Default()

	// sequences replace the defaults, mappings merge into them
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, errors.Wrap(errors.ErrCodeInvalidConfiguration, "failed to parse config", err)
	}

	_ = godotenv.Load()

	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func (c *Config) applyEnv() {
	if v := os.Getenv(EnvEngineUsername); v != "" {
		c.Engine.Username = v
	}

	if v := os.Getenv(EnvEnginePassword); v != "" {
		c.Engine.Password = v
	}

	if v := os.Getenv(EnvChatToken); v != "" {
		c.Chat.Token = v
	}

	if v := os.Getenv(EnvChatID); v != "" {
		if id, err := strconv.ParseInt(v, 10, 64); err == nil {
			c.Chat.AuthorizedChatID = id
		}
	}

	if v := os.Getenv(EnvSMTPPassword); v != "" {
		c.Notifications.Email.Password = v
	}

	if v := os.Getenv(EnvWebhookURL); v != "" {
		c.Notifications.Webhook.URL = v
	}

	if v := os.Getenv(EnvPolygonAPIKey); v != "" {
		c.Exchange.APIKey = v
	}
}

// Validate checks struct constraints, the symbol universe and the rule set.
func (c *Config) Validate() error {
	validate := validator.New()
	if err := validate.Struct(c); err != nil {
		return errors.Wrap(errors.ErrCodeInvalidConfiguration, "invalid monitor config", err)
	}

	if _, err := c.Pairs(); err != nil {
		return err
	}

	if err := c.Rules.Validate(); err != nil {
		return err
	}

	if c.Chat.Enabled && (c.Chat.Token == "" || c.Chat.AuthorizedChatID == 0) {
		return errors.New(errors.ErrCodeInvalidConfiguration, "chat is enabled but token or authorized_chat_id is missing")
	}

	if c.Exchange.FallbackEnabled && c.Exchange.Provider == "polygon" && c.Exchange.APIKey == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "polygon candle provider needs an api key")
	}

	if c.Notifications.Webhook.Enabled && c.Notifications.Webhook.URL == "" {
		return errors.New(errors.ErrCodeInvalidConfiguration, "webhook is enabled but url is missing")
	}

	return nil
}

// Pairs returns the validated symbol universe in configured order.
func (c *Config) Pairs() ([]types.Pair, error) {
	pairs := make([]types.Pair, 0, len(c.Universe.Symbols))
	seen := make(map[types.Pair]struct{}, len(c.Universe.Symbols))

	for _, raw := range c.Universe.Symbols {
		p, err := types.ParsePair(raw, c.Universe.Quote)
		if err != nil {
			return nil, err
		}

		if _, dup := seen[p]; dup {
			continue
		}

		seen[p] = struct{}{}
		pairs = append(pairs, p)
	}

	return pairs, nil
}

// Schema returns the JSON schema of the configuration file.
func Schema() (string, error) {
	schema := jsonschema.Reflect(&Config{})

	b, err := json.MarshalIndent(schema, "", "  ")
	if err != nil {
		return "", err
	}

	return string(b), nil
}
