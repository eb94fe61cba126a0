// Package alerts classifies news, decides on automatic entries and routes
// notifications to the outbound channels.
//
// Every delivery attempt, whether sent or dropped by a gate, is recorded in
// the store. Failures inside the engine are logged and recorded; they never
// propagate to the caller.
package alerts

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/feeds"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/metrics"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/store"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"go.uber.org/zap"
	"golang.org/x/time/rate"
)

// seenWindow is how far back a headline counts as already processed.
const seenWindow = 24 * time.Hour

// Store is the persistence the engine needs.
type Store interface {
	InsertNotification(rec types.NotificationRecord) (types.NotificationRecord, error)
	DeliveredWithin(key store.DedupeKey, since time.Time) (bool, error)
	InsertAlert(alert types.NewsAlert) (types.NewsAlert, error)
	AlertSeen(source, headline string, since time.Time) (bool, error)
}

type Options struct {
	Alerts        config.AlertsConfig
	Notifications config.NotificationsConfig
	Trading       config.TradingConfig
	Universe      []types.Pair
	Currency      string
	Store         Store
	Engine        engineclient.Client
	Model         *model.Model
	Metrics       *metrics.Metrics
	Channels      []Channel
	Logger        *logger.Logger
	// Location of the quiet hours. Nil means local time.
	Location *time.Location
}

type Engine struct {
	cfg        config.AlertsConfig
	trading    config.TradingConfig
	currency   string
	window     time.Duration
	classifier *Classifier
	quiet      QuietHours
	store      Store
	engine     engineclient.Client
	model      *model.Model
	metrics    *metrics.Metrics
	logger     *logger.Logger
	now        func() time.Time

	channels []Channel
	limiters map[types.ChannelKind]*rate.Limiter
	// held across dedupe check, send and record so a key is delivered at
	// most once per window
	locks map[types.ChannelKind]*sync.Mutex
}

func New(opts Options) (*Engine, error) {
	quiet, err := ParseQuietHours(opts.Alerts.QuietHours, opts.Location)
	if err != nil {
		return nil, err
	}

	perMin := opts.Notifications.RateLimitPerMin
	if perMin <= 0 {
		perMin = 30
	}

	e := &Engine{
		cfg:        opts.Alerts,
		trading:    opts.Trading,
		currency:   opts.Currency,
		window:     time.Duration(opts.Notifications.DedupeWindowS) * time.Second,
		classifier: NewClassifier(opts.Alerts, opts.Universe),
		quiet:      quiet,
		store:      opts.Store,
		engine:     opts.Engine,
		model:      opts.Model,
		metrics:    opts.Metrics,
		logger:     opts.Logger.Named("alerts"),
		now:        time.Now,
		channels:   nil,
		limiters:   make(map[types.ChannelKind]*rate.Limiter),
		locks:      make(map[types.ChannelKind]*sync.Mutex),
	}

	for _, ch := range opts.Channels {
		kind := ch.Kind()
		if _, dup := e.limiters[kind]; dup {
			return nil, errors.Newf(errors.ErrCodeInvalidConfiguration, "channel %s registered twice", kind)
		}

		e.channels = append(e.channels, ch)
		e.limiters[kind] = rate.NewLimiter(rate.Limit(float64(perMin)/60), perMin)
		e.locks[kind] = &sync.Mutex{}
	}

	return e, nil
}

// Classifier returns the keyword classifier in use.
func (e *Engine) Classifier() *Classifier {
	return e.classifier
}

// Channels lists the registered channel kinds.
func (e *Engine) Channels() []types.ChannelKind {
	out := make([]types.ChannelKind, 0, len(e.channels))
	for _, ch := range e.channels {
		out = append(out, ch.Kind())
	}

	return out
}

// Notify routes n to every channel in parallel and returns one record per
// channel in registration order.
func (e *Engine) Notify(ctx context.Context, n types.Notification) []types.NotificationRecord {
	if n.TS.IsZero() {
		n.TS = e.now()
	}

	records := make([]types.NotificationRecord, len(e.channels))

	var wg sync.WaitGroup

	for i, ch := range e.channels {
		wg.Add(1)

		go func() {
			defer wg.Done()

			records[i] = e.deliver(ctx, ch, n)
		}()
	}

	wg.Wait()

	return records
}

// Trigger sends an operator-initiated notification.
func (e *Engine) Trigger(ctx context.Context, kind types.NotificationKind, title, body string) []types.NotificationRecord {
	return e.Notify(ctx, types.Notification{
		Kind:    kind,
		Action:  types.NotificationActionAlert,
		TradeID: optional.None[int64](),
		Title:   title,
		Body:    body,
		TS:      e.now(),
	})
}

func (e *Engine) deliver(ctx context.Context, ch Channel, n types.Notification) (rec types.NotificationRecord) {
	kind := ch.Kind()

	lock := e.locks[kind]
	lock.Lock()
	defer lock.Unlock()

	status := types.StatusFailed

	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Notification channel panicked",
				zap.String("channel", string(kind)),
				zap.Any("panic", r),
			)

			status = types.StatusFailed
		}

		rec = e.record(n, kind, status)
	}()

	status = e.attempt(ctx, ch, n)

	return rec
}

func (e *Engine) attempt(ctx context.Context, ch Channel, n types.Notification) types.DeliveryStatus {
	kind := ch.Kind()
	now := e.now()

	if !e.cfg.Enabled || !e.cfg.KindEnabled(n.Kind) {
		return types.StatusDisabled
	}

	if e.quiet.Contains(now) {
		return types.StatusQuietHours
	}

	if e.window > 0 {
		dup, err := e.store.DeliveredWithin(store.KeyFor(n, kind), now.Add(-e.window))
		if err != nil {
			e.metrics.AddStorageError()
			e.logger.Warn("Duplicate check failed, sending anyway", zap.String("channel", string(kind)), zap.Error(err))
		} else if dup {
			return types.StatusSuppressed
		}
	}

	if !e.limiters[kind].AllowN(now, 1) {
		return types.StatusRateLimited
	}

	msg := Message{Title: n.Title, Body: n.Body, Notification: n}
	if err := ch.Send(ctx, msg); err != nil {
		e.logger.Warn("Notification delivery failed",
			zap.String("channel", string(kind)),
			zap.String("kind", string(n.Kind)),
			zap.Error(err),
		)

		return types.StatusFailed
	}

	return types.StatusDelivered
}

func (e *Engine) record(n types.Notification, kind types.ChannelKind, status types.DeliveryStatus) types.NotificationRecord {
	rec := types.RecordFor(n, kind, status, e.now())
	e.metrics.AddNotification(kind, status)

	stored, err := e.store.InsertNotification(rec)
	if err != nil {
		e.metrics.AddStorageError()
		e.logger.Error("Failed to record notification", zap.String("channel", string(kind)), zap.Error(err))

		return rec
	}

	return stored
}

// TickDiff is what changed during one scheduler tick.
type TickDiff struct {
	Signals []types.Signal
	Opened  []types.TradeSummary
	Closed  []types.TradeSummary
	// PnLDelta is the change of total profit since the previous successful
	// portfolio read.
	PnLDelta float64
	TotalPnL float64
	// Reachability is set when the engine's reachability flipped.
	Reachability optional.Option[bool]
	EngineError  string
	TS           time.Time
}

// Empty reports whether the diff yields no notification.
func (d TickDiff) Empty() bool {
	return len(d.Signals) == 0 && len(d.Opened) == 0 && len(d.Closed) == 0 &&
		d.PnLDelta == 0 && d.Reachability.IsNone()
}

// HandleTick turns diff into notifications and sends them.
func (e *Engine) HandleTick(ctx context.Context, diff TickDiff) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("Tick notification handling panicked", zap.Any("panic", r))
		}
	}()

	for _, n := range e.Notifications(diff) {
		e.Notify(ctx, n)
	}
}

// Notifications builds the notifications for diff without sending them.
func (e *Engine) Notifications(diff TickDiff) []types.Notification {
	out := make([]types.Notification, 0)
	ts := diff.TS
	if ts.IsZero() {
		ts = e.now()
	}

	for _, s := range diff.Signals {
		action := types.NotificationActionBuy
		if s.Side == types.SideSell {
			action = types.NotificationActionSell
		}

		out = append(out, types.Notification{
			Kind:    types.KindTradingSignal,
			Action:  action,
			TradeID: optional.None[int64](),
			Symbol:  s.Symbol,
			Price:   float64(s.Price),
			Title:   fmt.Sprintf("%s signal %s", s.Side, s.Symbol),
			Body:    fmt.Sprintf("Strength %.1f%%, confidence %.2f, price %.6g", float64(s.Strength), float64(s.Confidence), float64(s.Price)),
			TS:      ts,
		})
	}

	for _, t := range diff.Opened {
		out = append(out, types.Notification{
			Kind:    types.KindTradingSignal,
			Action:  types.NotificationActionBuy,
			TradeID: optional.Some(t.TradeID),
			Symbol:  t.Pair,
			Amount:  float64(t.StakeAmount),
			Price:   float64(t.OpenRate),
			Title:   fmt.Sprintf("Trade #%d opened %s", t.TradeID, t.Pair),
			Body:    fmt.Sprintf("Stake %.2f %s at %.6g", float64(t.StakeAmount), e.currency, float64(t.OpenRate)),
			TS:      ts,
		})
	}

	for _, t := range diff.Closed {
		out = append(out, types.Notification{
			Kind:      types.KindProfitLoss,
			Action:    types.NotificationActionSell,
			TradeID:   optional.Some(t.TradeID),
			Symbol:    t.Pair,
			Amount:    float64(t.StakeAmount),
			Price:     float64(t.CurrentRate),
			ProfitPct: float64(t.ProfitPct),
			ProfitAbs: float64(t.ProfitAbs),
			Title:     fmt.Sprintf("Trade #%d closed %s", t.TradeID, t.Pair),
			Body:      fmt.Sprintf("Profit %+.2f%% (%+.2f %s)", float64(t.ProfitPct), float64(t.ProfitAbs), e.currency),
			TS:        ts,
		})
	}

	threshold := e.cfg.PnLChangeThreshold
	if threshold > 0 && (diff.PnLDelta >= threshold || diff.PnLDelta <= -threshold) {
		out = append(out, types.Notification{
			Kind:      types.KindProfitLoss,
			Action:    types.NotificationActionAlert,
			TradeID:   optional.None[int64](),
			ProfitAbs: diff.TotalPnL,
			Title:     fmt.Sprintf("Total PnL moved %+.2f %s", diff.PnLDelta, e.currency),
			Body:      fmt.Sprintf("Total PnL is now %.2f %s", diff.TotalPnL, e.currency),
			TS:        ts,
		})
	}

	if diff.Reachability.IsSome() {
		n := types.Notification{
			Kind:    types.KindSystemStatus,
			Action:  types.NotificationActionAlert,
			TradeID: optional.None[int64](),
			Title:   "Engine reachable again",
			TS:      ts,
		}

		if !diff.Reachability.Unwrap() {
			n.Title = "Engine unreachable"
			n.Body = diff.EngineError
		}

		out = append(out, n)
	}

	return out
}

// HandleNews classifies feed items, persists the new ones, runs automatic
// entries and notifies. It returns the alerts that were processed.
func (e *Engine) HandleNews(ctx context.Context, items []feeds.Item) []types.NewsAlert {
	out := make([]types.NewsAlert, 0, len(items))

	for _, item := range items {
		if alert, ok := e.processItem(ctx, item); ok {
			out = append(out, alert)
		}
	}

	return out
}

func (e *Engine) processItem(ctx context.Context, item feeds.Item) (alert types.NewsAlert, ok bool) {
	defer func() {
		if r := recover(); r != nil {
			e.logger.Error("News item handling panicked", zap.String("headline", item.Title), zap.Any("panic", r))

			ok = false
		}
	}()

	now := e.now()

	seen, err := e.store.AlertSeen(item.SourceName, item.Title, now.Add(-seenWindow))
	if err != nil {
		e.metrics.AddStorageError()
		e.logger.Warn("Seen check failed", zap.Error(err))
	} else if seen {
		return alert, false
	}

	alert = e.Classify(item, now)
	tradeID := optional.None[int64]()
	stake := 0.0

	autoTrading := e.model != nil && e.model.AutoTrading()
	threshold := e.cfg.ImpactThreshold(alert.SubjectTag)

	switch {
	case e.classifier.Eligible(alert, autoTrading):
		pair, _ := e.classifier.PairFor(alert.AssetSymbol)
		stake = AutoStake(e.trading.StakeBase, e.trading.StakeCap, float64(alert.ImpactScore))

		res, err := e.engine.ForceEntry(ctx, engineclient.ForceEntryRequest{
			Pair:        pair,
			Side:        "long",
			StakeAmount: stake,
			OrderType:   "market",
		})
		if err != nil {
			alert.ActionTaken = types.ActionAutoEntryFail

			e.logger.Warn("Automatic entry failed", zap.String("pair", pair.String()), zap.Error(err))
		} else {
			alert.ActionTaken = types.ActionAutoEntry
			alert.TradeWasExecuted = true
			alert.TradePair = optional.Some(pair)
			tradeID = optional.Some(res.TradeID)

			e.logger.Info("Automatic entry placed",
				zap.String("pair", pair.String()),
				zap.Float64("stake", stake),
				zap.Int64("trade_id", res.TradeID),
			)
		}
	case alert.Sentiment != types.SentimentNeutral && float64(alert.ImpactScore) >= threshold:
		alert.ActionTaken = types.ActionNotified
	}

	if stored, err := e.store.InsertAlert(alert); err != nil {
		e.metrics.AddStorageError()
		e.logger.Error("Failed to store news alert", zap.Error(err))
	} else {
		alert = stored
	}

	if e.model != nil {
		e.model.AddAlerts(alert)
	}

	e.metrics.AddNewsAlert(alert.Sentiment)

	if alert.ActionTaken != types.ActionNone {
		symbol := alert.AssetSymbol
		if alert.TradePair.IsSome() {
			symbol = alert.TradePair.Unwrap().String()
		}

		e.Notify(ctx, types.Notification{
			Kind:    types.KindNewsAlert,
			Action:  types.NotificationActionAlert,
			TradeID: tradeID,
			Symbol:  symbol,
			Amount:  stake,
			Title:   alert.Headline,
			Body: fmt.Sprintf("%s, %s, impact %.2f, action %s",
				alert.SourceName, alert.Sentiment, float64(alert.ImpactScore), alert.ActionTaken),
			TS: now,
		})
	}

	return alert, true
}

// Classify scores one feed item without side effects.
func (e *Engine) Classify(item feeds.Item, ts time.Time) types.NewsAlert {
	text := item.Text()
	sentiment, _ := e.classifier.Sentiment(text)

	return types.NewsAlert{
		TS:               ts,
		SourceName:       item.SourceName,
		SubjectTag:       item.SubjectTag,
		AssetSymbol:      e.classifier.Asset(text),
		Sentiment:        sentiment,
		ImpactScore:      types.Float(e.classifier.Impact(item.SubjectTag, sentiment, text)),
		Headline:         item.Title,
		ContentExcerpt:   types.TruncateExcerpt(item.Content),
		ActionTaken:      types.ActionNone,
		TradeWasExecuted: false,
		TradePair:        optional.None[types.Pair](),
	}
}
