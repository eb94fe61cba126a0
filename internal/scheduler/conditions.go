package scheduler

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// readConditions fetches the candle window of every pair and evaluates it.
// Pairs whose candles could not be read from any source are left out.
func (s *Scheduler) readConditions(ctx context.Context, now time.Time) []types.SymbolCondition {
	results := make([]*types.SymbolCondition, len(s.pairs))

	g := new(errgroup.Group)
	g.SetLimit(max(1, s.cfg.Scheduler.CandleConcurrency))

	for i, pair := range s.pairs {
		g.Go(func() error {
			candles, ok := s.fetchCandles(ctx, pair)
			if !ok {
				return nil
			}

			cond := s.evaluator.Evaluate(pair.String(), candles)
			cond.UpdatedAt = now.UTC()
			results[i] = &cond

			return nil
		})
	}

	_ = g.Wait()

	out := make([]types.SymbolCondition, 0, len(results))
	for _, c := range results {
		if c != nil {
			out = append(out, *c)
		}
	}

	return out
}

func (s *Scheduler) fetchCandles(ctx context.Context, pair types.Pair) ([]types.Candle, bool) {
	timeframe := s.cfg.Universe.Timeframe
	limit := s.cfg.Universe.CandleLimit

	candles, err := s.engine.PairCandles(ctx, pair, timeframe, limit)
	if err == nil {
		return candles, true
	}

	if s.candles == nil || !s.cfg.Exchange.FallbackEnabled {
		s.logger.Debug("No candles for pair", zap.String("pair", pair.String()), zap.Error(err))

		return nil, false
	}

	fallback, ferr := s.candles.Candles(ctx, pair, timeframe, limit)
	if ferr != nil {
		s.logger.Debug("No candles for pair from engine or exchange",
			zap.String("pair", pair.String()),
			zap.Error(err),
			zap.NamedError("fallback", ferr),
		)

		return nil, false
	}

	return fallback, true
}

// deriveSignals emits one signal per side that became ready since prev. A
// symbol without a previous entry counts as not ready.
func (s *Scheduler) deriveSignals(prev *model.Dashboard, fresh []types.SymbolCondition, now time.Time) []types.Signal {
	var signals []types.Signal

	for _, cur := range fresh {
		before, _ := prev.Condition(cur.Symbol)
		ev := cur.Evaluation

		if ev.ReadyToBuy && !before.Evaluation.ReadyToBuy {
			signals = append(signals, s.signal(cur, types.SideBuy, ev.BuyPct, now))
		}

		if ev.ReadyToSell && !before.Evaluation.ReadyToSell {
			signals = append(signals, s.signal(cur, types.SideSell, ev.SellPct, now))
		}
	}

	return signals
}

func (s *Scheduler) signal(c types.SymbolCondition, side types.Side, strength types.Float, now time.Time) types.Signal {
	return types.Signal{
		ID:         uuid.NewString(),
		Symbol:     c.Symbol,
		Side:       side,
		Strength:   strength,
		Price:      c.Snapshot.Close,
		TS:         now.UTC(),
		Confidence: types.Float(s.evaluator.Confidence(side, c.Evaluation)),
	}
}

// mergeConditions replaces the entries of prev that were refreshed and
// returns the result in display order.
func mergeConditions(prev model.Conditions, fresh []types.SymbolCondition) model.Conditions {
	index := make(map[string]int, len(prev)+len(fresh))
	out := make(model.Conditions, 0, len(prev)+len(fresh))

	for _, c := range prev {
		index[c.Symbol] = len(out)
		out = append(out, c)
	}

	for _, c := range fresh {
		if i, ok := index[c.Symbol]; ok {
			out[i] = c

			continue
		}

		index[c.Symbol] = len(out)
		out = append(out, c)
	}

	out.Sort()

	return out
}
