// Package core assembles the monitor from its configuration: store, engine
// client, dashboard model, alert engine, scheduler, HTTP API and chat bot.
// A Core owns every long-lived component; nothing is held in package state.
package core

import (
	"context"
	"net"
	"net/http"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/alerts"
	"github.com/rxtech-lab/argo-monitor/internal/api"
	"github.com/rxtech-lab/argo-monitor/internal/chat"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/control"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/exchange"
	"github.com/rxtech-lab/argo-monitor/internal/feeds"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/metrics"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/rules"
	"github.com/rxtech-lab/argo-monitor/internal/scheduler"
	"github.com/rxtech-lab/argo-monitor/internal/sentiment"
	"github.com/rxtech-lab/argo-monitor/internal/store"
	"github.com/rxtech-lab/argo-monitor/internal/sysprobe"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/internal/version"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// newsMaxAge drops feed entries older than this.
const newsMaxAge = 24 * time.Hour

// Options configures New. Everything except Config may be left nil; the
// overrides exist so tests can replace the outside world.
type Options struct {
	Config *config.Config
	Logger *logger.Logger

	Engine    engineclient.Client
	Probe     sysprobe.Probe
	BotAPI    chat.BotAPI
	Candles   exchange.CandleSource
	Feeds     feeds.Fetcher
	FearGreed sentiment.FearGreedSource
	// Channels replaces the configured email and webhook channels.
	Channels []alerts.Channel
}

type Core struct {
	cfg       *config.Config
	logger    *logger.Logger
	store     *store.Store
	engine    engineclient.Client
	model     *model.Model
	metrics   *metrics.Metrics
	control   *control.Service
	alerts    *alerts.Engine
	scheduler *scheduler.Scheduler
	server    *api.Server
	bot       *chat.Bot
}

// relay forwards operator announcements to the alert engine. The engine is
// built after the chat bot it delivers through, which in turn needs the
// commands that announce.
type relay struct {
	engine *alerts.Engine
}

func (r *relay) Trigger(ctx context.Context, kind types.NotificationKind, title, body string) []types.NotificationRecord {
	if r.engine == nil {
		return nil
	}

	return r.engine.Trigger(ctx, kind, title, body)
}

// New builds every component. It opens the store, so a failing New leaves
// nothing behind and a successful one must be closed.
func New(ctx context.Context, opts Options) (*Core, error) {
	if opts.Config == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "config is required")
	}

	cfg := opts.Config
	log := opts.Logger
	if log == nil {
		log = logger.NewNopLogger()
	}

	pairs, err := cfg.Pairs()
	if err != nil {
		return nil, err
	}

	evaluator, err := rules.NewEvaluator(cfg.Rules)
	if err != nil {
		return nil, err
	}

	m := metrics.New()

	engine := opts.Engine
	if engine == nil {
		engine, err = engineclient.New(engineclient.Options{
			BaseURLs:   cfg.Engine.BaseURLs,
			Username:   cfg.Engine.Username,
			Password:   cfg.Engine.Password,
			Timeout:    cfg.EngineTimeout(),
			MaxStake:   cfg.StakeCeiling(),
			HTTPClient: nil,
			Logger:     log,
			Observer:   m.EngineObserver(),
		})
		if err != nil {
			return nil, err
		}
	}

	st, err := store.Open(cfg.Storage.Dir)
	if err != nil {
		return nil, err
	}

	c := &Core{
		cfg:     cfg,
		logger:  log,
		store:   st,
		engine:  engine,
		model:   model.New(),
		metrics: m,
	}

	if err := c.assemble(ctx, opts, pairs, evaluator); err != nil {
		_ = st.Close()

		return nil, err
	}

	return c, nil
}

func (c *Core) assemble(ctx context.Context, opts Options, pairs []types.Pair, evaluator *rules.Evaluator) error {
	cfg := c.cfg
	announcer := &relay{engine: nil}

	c.control = control.New(control.Options{
		Engine:    c.engine,
		Model:     c.model,
		Refresher: nil,
		Announcer: announcer,
		Trading:   cfg.Trading,
		Quote:     cfg.Universe.Quote,
		Metrics:   c.metrics,
		Logger:    c.logger,
	})

	channels, err := c.channels(opts, announcer)
	if err != nil {
		return err
	}

	c.alerts, err = alerts.New(alerts.Options{
		Alerts:        cfg.Alerts,
		Notifications: cfg.Notifications,
		Trading:       cfg.Trading,
		Universe:      pairs,
		Currency:      cfg.Universe.Quote,
		Store:         c.store,
		Engine:        c.engine,
		Model:         c.model,
		Metrics:       c.metrics,
		Channels:      channels,
		Logger:        c.logger,
		Location:      nil,
	})
	if err != nil {
		return err
	}

	announcer.engine = c.alerts

	c.scheduler, err = scheduler.New(scheduler.Options{
		Config:        cfg,
		Engine:        c.engine,
		Evaluator:     evaluator,
		Model:         c.model,
		Store:         c.store,
		Probe:         c.probe(opts),
		Notifier:      c.alerts,
		Metrics:       c.metrics,
		Logger:        c.logger,
		Candles:       c.candles(opts),
		Feeds:         c.feeds(opts),
		FearGreed:     c.fearGreed(opts),
		EngineVersion: c.checkEngine(ctx),
	})
	if err != nil {
		return err
	}

	c.control.SetRefresher(c.scheduler)

	c.server = api.New(api.Options{
		Config:  cfg,
		Model:   c.model,
		Control: c.control,
		Alerts:  c.store,
		Metrics: c.metrics,
		Logger:  c.logger,
	})

	return nil
}

// channels builds the delivery channels, chat first.
func (c *Core) channels(opts Options, announcer control.Announcer) ([]alerts.Channel, error) {
	cfg := c.cfg

	var channels []alerts.Channel

	if cfg.Chat.Enabled || opts.BotAPI != nil {
		botAPI := opts.BotAPI
		if botAPI == nil {
			var err error

			botAPI, err = chat.NewBotAPI(cfg.Chat)
			if err != nil {
				return nil, err
			}
		}

		c.bot = chat.New(chat.Options{
			Config:   cfg.Chat,
			API:      botAPI,
			Commands: chat.NewCommands(c.model, c.control, announcer, cfg.Chat.TopK),
			Metrics:  c.metrics,
			Logger:   c.logger,
		})

		channels = append(channels, c.bot)
	}

	if opts.Channels != nil {
		return append(channels, opts.Channels...), nil
	}

	if cfg.Notifications.Email.Enabled {
		channels = append(channels, alerts.NewEmailChannel(cfg.Notifications.Email))
	}

	if cfg.Notifications.Webhook.Enabled && cfg.Notifications.Webhook.URL != "" {
		timeout := time.Duration(cfg.Notifications.Webhook.TimeoutS) * time.Second
		channels = append(channels, alerts.NewWebhookChannel(cfg.Notifications.Webhook.URL, timeout))
	}

	return channels, nil
}

func (c *Core) probe(opts Options) sysprobe.Probe {
	if opts.Probe != nil {
		return opts.Probe
	}

	return sysprobe.NewHostProbe(c.cfg.System.DiskPath, c.cfg.System.ProcessNames, c.logger)
}

func (c *Core) candles(opts Options) exchange.CandleSource {
	if opts.Candles != nil {
		return opts.Candles
	}

	if !c.cfg.Exchange.FallbackEnabled {
		return nil
	}

	if c.cfg.Exchange.Provider == "polygon" {
		client, err := exchange.NewPolygonClient(c.cfg.Exchange.APIKey)
		if err != nil {
			c.logger.Warn("Candle fallback disabled", zap.Error(err))

			return nil
		}

		return client
	}

	return exchange.NewBinanceClient(c.cfg.Exchange.BaseURL)
}

func (c *Core) feeds(opts Options) feeds.Fetcher {
	if opts.Feeds != nil {
		return opts.Feeds
	}

	if !c.cfg.Feeds.Enabled || len(c.cfg.Feeds.Sources) == 0 {
		return nil
	}

	client := &http.Client{Timeout: c.cfg.EngineTimeout()}

	return feeds.NewPoller(c.cfg.Feeds.Sources, client, newsMaxAge, c.logger)
}

func (c *Core) fearGreed(opts Options) sentiment.FearGreedSource {
	if opts.FearGreed != nil {
		return opts.FearGreed
	}

	if c.cfg.Sentiment.FearGreedURL == "" {
		return nil
	}

	return sentiment.NewFearGreedClient(c.cfg.Sentiment.FearGreedURL, c.cfg.EngineTimeout())
}

// checkEngine reads the engine configuration once and compares its API
// version with the configured constraint. Failures only warn: the engine may
// come up after the monitor.
func (c *Core) checkEngine(ctx context.Context) string {
	checkCtx, cancel := context.WithTimeout(ctx, c.cfg.EngineTimeout())
	defer cancel()

	engineCfg, err := c.engine.ShowConfig(checkCtx)
	if err != nil {
		c.logger.Warn("Engine not reachable at startup", zap.String("kind", errors.Kind(err)), zap.Error(err))

		return ""
	}

	if err := version.CheckEngineAPI(engineCfg.APIVersion, c.cfg.Engine.MinAPIVersion); err != nil {
		c.logger.Warn("Engine API version check failed", zap.Error(err))
	}

	c.logger.Info("Engine connected",
		zap.String("version", engineCfg.Version),
		zap.Float64("api_version", engineCfg.APIVersion),
		zap.String("strategy", engineCfg.Strategy),
		zap.Bool("dry_run", engineCfg.DryRun),
	)

	return engineCfg.Version
}

func (c *Core) Model() *model.Model {
	return c.model
}

func (c *Core) Control() *control.Service {
	return c.control
}

func (c *Core) Alerts() *alerts.Engine {
	return c.alerts
}

func (c *Core) Store() *store.Store {
	return c.store
}

func (c *Core) Server() *api.Server {
	return c.server
}

func (c *Core) Scheduler() *scheduler.Scheduler {
	return c.scheduler
}

// Bot is nil when the chat plane is disabled.
func (c *Core) Bot() *chat.Bot {
	return c.bot
}

// Run serves on l and runs the scheduler and the chat bot until ctx is done.
// The scheduler finishes its tick in flight; call Abort to cut it short.
func (c *Core) Run(ctx context.Context, l net.Listener) error {
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		return c.scheduler.Run(gctx)
	})

	g.Go(func() error {
		return c.server.Serve(gctx, l)
	})

	if c.bot != nil {
		g.Go(func() error {
			return c.bot.Run(gctx)
		})
	}

	c.logger.Info("Monitor running",
		zap.String("addr", l.Addr().String()),
		zap.Bool("chat", c.bot != nil),
		zap.Strings("channels", channelNames(c.alerts.Channels())),
	)

	return g.Wait()
}

// Listen binds the configured HTTP address.
func (c *Core) Listen() (net.Listener, error) {
	l, err := net.Listen("tcp", c.server.Addr())
	if err != nil {
		return nil, errors.Wrapf(errors.ErrCodeInternal, err, "failed to bind %s", c.server.Addr())
	}

	return l, nil
}

// Abort cancels the scheduler's in-flight engine calls.
func (c *Core) Abort() {
	c.scheduler.Abort()
}

func (c *Core) Close() error {
	return c.store.Close()
}

func channelNames(kinds []types.ChannelKind) []string {
	names := make([]string, 0, len(kinds))
	for _, k := range kinds {
		names = append(names, string(k))
	}

	return names
}
