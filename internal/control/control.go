// Package control implements the operator commands shared by the HTTP API
// and the chat bot. Every command reports a Result; engine failures are
// returned as errors carrying the engine error code.
package control

import (
	"context"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/metrics"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"go.uber.org/zap"
)

// Result is the answer to a write command.
type Result struct {
	Success bool   `json:"success"`
	Message string `json:"message"`
	Payload any    `json:"payload,omitempty"`
}

// Refresher schedules an extra scheduler tick.
type Refresher interface {
	RequestRefresh() bool
}

// Announcer sends an operator action through the notification pipeline.
type Announcer interface {
	Trigger(ctx context.Context, kind types.NotificationKind, title, body string) []types.NotificationRecord
}

type Options struct {
	Engine    engineclient.Client
	Model     *model.Model
	Refresher Refresher
	Announcer Announcer
	Trading   config.TradingConfig
	Quote     string
	Metrics   *metrics.Metrics
	Logger    *logger.Logger
}

type Service struct {
	engine    engineclient.Client
	model     *model.Model
	refresher Refresher
	announcer Announcer
	trading   config.TradingConfig
	quote     string
	metrics   *metrics.Metrics
	logger    *logger.Logger
	now       func() time.Time
}

func New(opts Options) *Service {
	return &Service{
		engine:    opts.Engine,
		model:     opts.Model,
		refresher: opts.Refresher,
		announcer: opts.Announcer,
		trading:   opts.Trading,
		quote:     opts.Quote,
		metrics:   opts.Metrics,
		logger:    opts.Logger.Named("control"),
		now:       time.Now,
	}
}

// SetRefresher attaches the scheduler once it exists.
func (s *Service) SetRefresher(r Refresher) {
	s.refresher = r
}

// ForceTrade opens a long market entry on rawPair with the base stake.
func (s *Service) ForceTrade(ctx context.Context, rawPair string) (Result, error) {
	if strings.TrimSpace(rawPair) == "" {
		return Result{}, errors.New(errors.ErrCodeMissingParameter, "pair is required")
	}

	pair, err := types.ParsePair(rawPair, s.quote)
	if err != nil {
		return Result{}, err
	}

	res, err := s.engine.ForceEntry(ctx, engineclient.ForceEntryRequest{
		Pair:        pair,
		Side:        "long",
		StakeAmount: s.trading.StakeBase,
		OrderType:   "market",
	})
	if err != nil {
		s.logger.Warn("Force trade failed", zap.String("pair", pair.String()), zap.Error(err))

		return Result{}, err
	}

	s.logger.Info("Force trade opened",
		zap.String("pair", pair.String()),
		zap.Int64("trade_id", res.TradeID),
		zap.Float64("stake", s.trading.StakeBase),
	)

	return Result{
		Success: true,
		Message: fmt.Sprintf("Opened trade #%d on %s with stake %.2f %s", res.TradeID, pair, s.trading.StakeBase, s.quote),
		Payload: res,
	}, nil
}

// ForceExit closes a trade by id, every trade ("all"), or every open trade
// on a pair.
func (s *Service) ForceExit(ctx context.Context, tradeID, rawPair string) (Result, error) {
	req := engineclient.ForceExitRequest{TradeID: strings.TrimSpace(tradeID), Pair: ""}

	if req.TradeID != "" && req.TradeID != "all" {
		if _, err := strconv.ParseInt(req.TradeID, 10, 64); err != nil {
			return Result{}, errors.Newf(errors.ErrCodeInvalidParameter, "invalid trade id %q", tradeID)
		}
	}

	if req.TradeID == "" && strings.TrimSpace(rawPair) != "" {
		pair, err := types.ParsePair(rawPair, s.quote)
		if err != nil {
			return Result{}, err
		}

		req.Pair = pair.String()
	}

	res, err := s.engine.ForceExit(ctx, req)
	if err != nil {
		s.logger.Warn("Force exit failed", zap.String("trade_id", req.TradeID), zap.String("pair", req.Pair), zap.Error(err))

		return Result{}, err
	}

	s.logger.Info("Force exit done", zap.Int64s("closed", res.Closed))

	return Result{
		Success: true,
		Message: fmt.Sprintf("Closed %d trade(s)", len(res.Closed)),
		Payload: res,
	}, nil
}

// EmergencyStop turns auto-trading off and stops the engine once. The flag
// is cleared even when the stop call fails.
func (s *Service) EmergencyStop(ctx context.Context) (Result, error) {
	s.model.SetAutoTrading(false)
	s.metrics.SetAutoTrading(false)

	status, err := s.engine.StopEngine(ctx)
	if err != nil {
		s.logger.Error("Emergency stop could not stop the engine", zap.Error(err))

		return Result{}, err
	}

	s.logger.Warn("Emergency stop executed", zap.String("engine_status", status))
	s.announce(ctx, types.KindSystemStatus, "Emergency stop", "Auto-trading disabled and engine stopped: "+status)

	return Result{
		Success: true,
		Message: "Emergency stop executed: auto-trading disabled, engine " + status,
		Payload: map[string]any{"auto_trading_enabled": false, "engine_status": status},
	}, nil
}

func (s *Service) StartEngine(ctx context.Context) (Result, error) {
	status, err := s.engine.StartEngine(ctx)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("Engine started", zap.String("engine_status", status))

	return Result{Success: true, Message: "Engine: " + status, Payload: map[string]string{"engine_status": status}}, nil
}

func (s *Service) StopEngine(ctx context.Context) (Result, error) {
	status, err := s.engine.StopEngine(ctx)
	if err != nil {
		return Result{}, err
	}

	s.logger.Info("Engine stopped", zap.String("engine_status", status))

	return Result{Success: true, Message: "Engine: " + status, Payload: map[string]string{"engine_status": status}}, nil
}

// ToggleAutoTrading flips the flag.
func (s *Service) ToggleAutoTrading(ctx context.Context) Result {
	on := s.model.ToggleAutoTrading()
	s.metrics.SetAutoTrading(on)

	state := "disabled"
	if on {
		state = "enabled"
	}

	s.logger.Info("Auto-trading toggled", zap.Bool("enabled", on))
	s.announce(ctx, types.KindStrategyChange, "Auto-trading "+state, "")

	return Result{
		Success: true,
		Message: "Auto-trading " + state,
		Payload: map[string]bool{"auto_trading_enabled": on},
	}
}

// Refresh requests an extra tick. Requests made while one is pending are
// merged.
func (s *Service) Refresh() Result {
	ts := s.now().UTC()

	if s.refresher == nil {
		return Result{Success: false, Message: "scheduler is not running", Payload: map[string]any{"ok": false, "ts": ts}}
	}

	queued := s.refresher.RequestRefresh()

	msg := "Refresh scheduled"
	if !queued {
		msg = "Refresh already pending"
	}

	return Result{Success: true, Message: msg, Payload: map[string]any{"ok": true, "ts": ts}}
}

func (s *Service) announce(ctx context.Context, kind types.NotificationKind, title, body string) {
	if s.announcer == nil {
		return
	}

	s.announcer.Trigger(ctx, kind, title, body)
}
