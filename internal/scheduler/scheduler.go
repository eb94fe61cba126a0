// Package scheduler runs the monitor's tick loop. Each tick reads the host,
// the engine portfolio and the candles of every symbol, evaluates the rules,
// publishes the dashboard and hands the tick diff to the alert engine.
//
// The loop is the only writer of tick state. Outbound calls fan out through
// bounded errgroups; everything else runs on the loop goroutine.
package scheduler

import (
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/alerts"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/exchange"
	"github.com/rxtech-lab/argo-monitor/internal/feeds"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/metrics"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/rules"
	"github.com/rxtech-lab/argo-monitor/internal/sentiment"
	"github.com/rxtech-lab/argo-monitor/internal/sysprobe"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"go.uber.org/zap"
)

// portfolioKeep is how many portfolio snapshots the store retains.
const portfolioKeep = 100

// Store is the persistence the scheduler writes to.
type Store interface {
	SavePortfolio(p types.Portfolio, ts time.Time, keep int) error
	LatestPortfolio() (optional.Option[types.Portfolio], time.Time, error)
	InsertSentiment(sample types.SentimentSample) (types.SentimentSample, error)
}

// Notifier receives what a tick observed.
type Notifier interface {
	HandleTick(ctx context.Context, diff alerts.TickDiff)
	HandleNews(ctx context.Context, items []feeds.Item) []types.NewsAlert
}

type Options struct {
	Config    *config.Config
	Engine    engineclient.Client
	Evaluator *rules.Evaluator
	Model     *model.Model
	Store     Store
	Probe     sysprobe.Probe
	Notifier  Notifier
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
	// Candles is the fallback source when the engine cannot serve candles.
	Candles exchange.CandleSource
	Feeds   feeds.Fetcher
	// FearGreed feeds the sentiment sample when set.
	FearGreed     sentiment.FearGreedSource
	EngineVersion string
}

type Scheduler struct {
	cfg       *config.Config
	engine    engineclient.Client
	evaluator *rules.Evaluator
	model     *model.Model
	store     Store
	probe     sysprobe.Probe
	notifier  Notifier
	metrics   *metrics.Metrics
	logger    *logger.Logger
	candles   exchange.CandleSource
	feeds     feeds.Fetcher
	fearGreed sentiment.FearGreedSource
	pairs     []types.Pair
	period    time.Duration
	now       func() time.Time

	refresh chan struct{}
	running atomic.Bool

	abortMu sync.Mutex
	abort   context.CancelFunc

	// loop-owned state
	ticks         uint64
	last          lastKnown
	reachable     optional.Option[bool]
	engineVersion string
	lastNewsPoll  time.Time
}

func New(opts Options) (*Scheduler, error) {
	if opts.Config == nil || opts.Engine == nil || opts.Evaluator == nil || opts.Model == nil {
		return nil, errors.New(errors.ErrCodeMissingParameter, "scheduler needs config, engine, evaluator and model")
	}

	pairs, err := opts.Config.Pairs()
	if err != nil {
		return nil, err
	}

	return &Scheduler{
		cfg:           opts.Config,
		engine:        opts.Engine,
		evaluator:     opts.Evaluator,
		model:         opts.Model,
		store:         opts.Store,
		probe:         opts.Probe,
		notifier:      opts.Notifier,
		metrics:       opts.Metrics,
		logger:        opts.Logger.Named("scheduler"),
		candles:       opts.Candles,
		feeds:         opts.Feeds,
		fearGreed:     opts.FearGreed,
		pairs:         pairs,
		period:        opts.Config.TickPeriod(),
		now:           time.Now,
		refresh:       make(chan struct{}, 1),
		running:       atomic.Bool{},
		abortMu:       sync.Mutex{},
		abort:         nil,
		ticks:         0,
		last:          lastKnown{},
		reachable:     optional.None[bool](),
		engineVersion: opts.EngineVersion,
		lastNewsPoll:  time.Time{},
	}, nil
}

// Run ticks until ctx is cancelled. The tick in flight when ctx is cancelled
// still completes; its engine calls keep their own timeouts unless Abort is
// called. On return the dashboard status is stopped.
func (s *Scheduler) Run(ctx context.Context) error {
	if !s.running.CompareAndSwap(false, true) {
		return errors.New(errors.ErrCodeInternal, "scheduler is already running")
	}
	defer s.running.Store(false)

	work, cancel := context.WithCancel(context.WithoutCancel(ctx))
	defer cancel()

	s.abortMu.Lock()
	s.abort = cancel
	s.abortMu.Unlock()

	defer s.markStopped()

	s.restore()

	ticker := time.NewTicker(s.period)
	defer ticker.Stop()

	s.logger.Info("Scheduler started",
		zap.Duration("period", s.period),
		zap.Int("symbols", len(s.pairs)),
	)

	for {
		if ctx.Err() != nil {
			s.logger.Info("Scheduler stopping", zap.Uint64("ticks", s.ticks))

			return nil
		}

		s.Tick(work)

		// time.Ticker drops ticks while the receiver is busy, so a slow tick
		// is followed by at most one immediate tick.
		select {
		case <-ctx.Done():
		case <-ticker.C:
		case <-s.refresh:
		}
	}
}

// RequestRefresh asks for an extra tick. Requests made while one is already
// pending are merged and reported as false.
func (s *Scheduler) RequestRefresh() bool {
	select {
	case s.refresh <- struct{}{}:
		return true
	default:
		return false
	}
}

// Abort cancels the engine calls of the tick in flight. It is the second
// stop: Run still returns once that tick unwinds.
func (s *Scheduler) Abort() {
	s.abortMu.Lock()
	defer s.abortMu.Unlock()

	if s.abort != nil {
		s.abort()
	}
}

func (s *Scheduler) markStopped() {
	s.model.Update(func(d *model.Dashboard) {
		d.Status = model.StatusStopped
	})
	s.logger.Info("Scheduler stopped")
}

// restore seeds the last-known portfolio from the store so a cold start with
// an unreachable engine still shows something.
func (s *Scheduler) restore() {
	if s.store == nil {
		return
	}

	p, ts, err := s.store.LatestPortfolio()
	if err != nil {
		s.metrics.AddStorageError()
		s.logger.Warn("Failed to load last portfolio snapshot", zap.Error(err))

		return
	}

	if p.IsNone() {
		return
	}

	snap := p.Unwrap()
	snap.FromSnapshot = true
	snap.UpdatedAt = &ts
	s.last.snapshot = optional.Some(snap)

	s.logger.Info("Restored portfolio snapshot", zap.Time("ts", ts))
}

// Tick runs one loop body. It never returns an error: failures degrade the
// published dashboard instead.
func (s *Scheduler) Tick(ctx context.Context) {
	started := s.now()
	s.ticks++

	system := s.collectSystem(ctx)

	read := s.readPortfolio(ctx)
	portfolio, diff := s.applyPortfolio(read, started)

	reachable := read.reachable()
	system.EngineReachable = reachable
	s.metrics.SetEngineReachable(reachable)

	if s.reachable.IsSome() && s.reachable.Unwrap() != reachable {
		diff.Reachability = optional.Some(reachable)
		diff.EngineError = read.failure()
	}

	s.reachable = optional.Some(reachable)

	fresh := s.readConditions(ctx, started)

	prev := s.model.Snapshot()
	signals := s.deriveSignals(prev, fresh, started)
	diff.Signals = signals

	var (
		view   optional.Option[types.MarketSentiment]
		sample optional.Option[types.SentimentSample]
	)

	if s.sampleDue() {
		smp, v := s.computeSentiment(ctx, prev, fresh, started)
		sample = optional.Some(smp)
		view = optional.Some(v)
	}

	published := s.model.Publish(func(d *model.Dashboard) {
		d.System = system
		d.Portfolio = portfolio
		d.EngineReachable = reachable
		d.Conditions = mergeConditions(d.Conditions, fresh)
		d.AppendSignals(signals...)
		d.Status = model.StatusRunning
		d.TickCount = s.ticks

		if view.IsSome() {
			d.Sentiment = view.Unwrap()
		}

		if len(fresh) > 0 {
			ts := started.UTC()
			if d.LastUpdate == nil || ts.After(*d.LastUpdate) {
				d.LastUpdate = &ts
			}
		}

		d.Degraded = portfolio.Degraded || d.StaleAt(started, s.period)
	})

	s.record(published, signals)
	s.persist(read, portfolio, sample, started)

	if s.notifier != nil {
		diff.TS = started.UTC()
		if !diff.Empty() {
			s.notifier.HandleTick(ctx, diff)
		}

		s.pollNews(ctx, started)
	}

	elapsed := s.now().Sub(started)
	s.metrics.ObserveTick(len(fresh) > 0, elapsed)

	s.logger.Debug("Tick finished",
		zap.Uint64("tick", s.ticks),
		zap.Int("snapshots", len(fresh)),
		zap.Int("signals", len(signals)),
		zap.Bool("degraded", portfolio.Degraded),
		zap.Duration("elapsed", elapsed),
	)

	if elapsed > s.period {
		s.logger.Warn("Tick overran its period, next tick is coalesced",
			zap.Duration("elapsed", elapsed),
			zap.Duration("period", s.period),
		)
	}
}

func (s *Scheduler) collectSystem(ctx context.Context) types.SystemStatus {
	var system types.SystemStatus
	if s.probe != nil {
		system = s.probe.Collect(ctx)
	}

	if system.Processes == nil {
		system.Processes = []types.ProcessStatus{}
	}

	system.EngineURL = s.engine.BaseURL()
	system.EngineVersion = s.engineVersion

	if system.CollectedAt.IsZero() {
		system.CollectedAt = s.now().UTC()
	}

	return system
}

func (s *Scheduler) record(d *model.Dashboard, signals []types.Signal) {
	buy, sell := 0, 0

	for _, c := range d.Conditions {
		if c.Evaluation.ReadyToBuy {
			buy++
		}

		if c.Evaluation.ReadyToSell {
			sell++
		}
	}

	s.metrics.SetReady(buy, sell)

	for _, sig := range signals {
		s.metrics.AddSignal(sig.Side)
		s.logger.Info("Signal",
			zap.String("symbol", sig.Symbol),
			zap.String("side", string(sig.Side)),
			zap.Float64("strength", float64(sig.Strength)),
			zap.Float64("price", float64(sig.Price)),
		)
	}
}

func (s *Scheduler) persist(read portfolioRead, p types.Portfolio, sample optional.Option[types.SentimentSample], ts time.Time) {
	if s.store == nil {
		return
	}

	if read.anySuccess() {
		if err := s.store.SavePortfolio(p, ts, portfolioKeep); err != nil {
			s.metrics.AddStorageError()
			s.logger.Warn("Failed to save portfolio snapshot", zap.Error(err))
		}
	}

	if sample.IsSome() {
		if _, err := s.store.InsertSentiment(sample.Unwrap()); err != nil {
			s.metrics.AddStorageError()
			s.logger.Warn("Failed to store sentiment sample", zap.Error(err))
		}
	}
}

func (s *Scheduler) sampleDue() bool {
	every := uint64(s.cfg.Sentiment.SampleEveryTicks)
	if every == 0 {
		every = 1
	}

	return (s.ticks-1)%every == 0
}

func (s *Scheduler) computeSentiment(ctx context.Context, prev *model.Dashboard, fresh []types.SymbolCondition, ts time.Time) (types.SentimentSample, types.MarketSentiment) {
	in := sentiment.Input{
		Conditions: mergeConditions(prev.Conditions, fresh),
		Alerts:     prev.AlertsRecent,
		FearGreed:  optional.None[float64](),
		TS:         ts,
	}

	if s.fearGreed != nil {
		v, err := s.fearGreed.FearGreed(ctx)
		if err != nil {
			s.logger.Debug("Fear and greed index unavailable", zap.Error(err))
		} else {
			in.FearGreed = optional.Some(v)
		}
	}

	return sentiment.Compute(in)
}

func (s *Scheduler) pollNews(ctx context.Context, now time.Time) {
	if s.feeds == nil || !s.cfg.Feeds.Enabled {
		return
	}

	interval := time.Duration(s.cfg.Feeds.PollIntervalS) * time.Second
	if !s.lastNewsPoll.IsZero() && now.Sub(s.lastNewsPoll) < interval {
		return
	}

	s.lastNewsPoll = now

	items, err := s.feeds.Fetch(ctx)
	if err != nil {
		s.logger.Warn("News poll failed", zap.Error(err))

		return
	}

	handled := s.notifier.HandleNews(ctx, items)

	s.logger.Debug("News polled",
		zap.Int("items", len(items)),
		zap.Int("alerts", len(handled)),
	)
}
