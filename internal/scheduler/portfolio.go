package scheduler

import (
	"context"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/alerts"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// recentTrades bounds Portfolio.RecentTrades.
const recentTrades = 20

// lastKnown holds the newest successful read of each portfolio source.
type lastKnown struct {
	profit   optional.Option[engineclient.Profit]
	balance  optional.Option[engineclient.Balance]
	open     optional.Option[[]engineclient.Trade]
	trades   optional.Option[[]engineclient.Trade]
	snapshot optional.Option[types.Portfolio]
	updated  *time.Time
}

func (l lastKnown) live() bool {
	return l.profit.IsSome() || l.balance.IsSome() || l.open.IsSome() || l.trades.IsSome()
}

// portfolioRead is the outcome of one tick's portfolio calls.
type portfolioRead struct {
	profit  optional.Option[engineclient.Profit]
	balance optional.Option[engineclient.Balance]
	open    optional.Option[[]engineclient.Trade]
	trades  optional.Option[[]engineclient.Trade]
	errs    []error
}

func (r portfolioRead) anySuccess() bool {
	return r.profit.IsSome() || r.balance.IsSome() || r.open.IsSome() || r.trades.IsSome()
}

// reachable is false only when every call failed on transport.
func (r portfolioRead) reachable() bool {
	if r.anySuccess() {
		return true
	}

	for _, err := range r.errs {
		switch engineclient.KindOf(err) {
		case engineclient.KindUnreachable, engineclient.KindTimeout:
			continue
		default:
			return true
		}
	}

	return len(r.errs) == 0
}

func (r portfolioRead) failure() string {
	if len(r.errs) == 0 {
		return ""
	}

	return engineclient.Describe(r.errs[0])
}

// readPortfolio calls profit, balance, status and trades with at most
// PortfolioConcurrency requests in flight. Failures are collected, never
// returned: the caller keeps last-known values for whatever failed.
func (s *Scheduler) readPortfolio(ctx context.Context) portfolioRead {
	var (
		mu   sync.Mutex
		read = portfolioRead{
			profit:  optional.None[engineclient.Profit](),
			balance: optional.None[engineclient.Balance](),
			open:    optional.None[[]engineclient.Trade](),
			trades:  optional.None[[]engineclient.Trade](),
			errs:    nil,
		}
	)

	fail := func(endpoint string, err error) {
		mu.Lock()
		read.errs = append(read.errs, err)
		mu.Unlock()

		s.logger.Debug("Portfolio call failed", zap.String("endpoint", endpoint), zap.Error(err))
	}

	g := new(errgroup.Group)
	g.SetLimit(max(1, s.cfg.Scheduler.PortfolioConcurrency))

	g.Go(func() error {
		p, err := s.engine.Profit(ctx)
		if err != nil {
			fail("profit", err)

			return nil
		}

		mu.Lock()
		read.profit = optional.Some(p)
		mu.Unlock()

		return nil
	})

	g.Go(func() error {
		b, err := s.engine.Balance(ctx)
		if err != nil {
			fail("balance", err)

			return nil
		}

		mu.Lock()
		read.balance = optional.Some(b)
		mu.Unlock()

		return nil
	})

	g.Go(func() error {
		open, err := s.engine.Status(ctx)
		if err != nil {
			fail("status", err)

			return nil
		}

		mu.Lock()
		read.open = optional.Some(open)
		mu.Unlock()

		return nil
	})

	g.Go(func() error {
		trades, err := s.engine.Trades(ctx, s.cfg.Scheduler.TradesLimit)
		if err != nil {
			fail("trades", err)

			return nil
		}

		mu.Lock()
		read.trades = optional.Some(trades)
		mu.Unlock()

		return nil
	})

	_ = g.Wait()

	return read
}

// applyPortfolio folds read into the last-known state and returns the
// portfolio view plus the trade and PnL part of the tick diff.
func (s *Scheduler) applyPortfolio(read portfolioRead, now time.Time) (types.Portfolio, alerts.TickDiff) {
	diff := alerts.TickDiff{Reachability: optional.None[bool]()}
	prev := s.last

	if read.open.IsSome() && prev.open.IsSome() {
		diff.Opened, diff.Closed = tradeChanges(prev.open.Unwrap(), read.open.Unwrap(), or(read.trades, prev.trades).Unwrap())
	}

	if read.profit.IsSome() {
		total := read.profit.Unwrap().ProfitAllCoin
		diff.TotalPnL = total

		if prev.profit.IsSome() {
			diff.PnLDelta = total - prev.profit.Unwrap().ProfitAllCoin
		}
	}

	s.last.profit = or(read.profit, prev.profit)
	s.last.balance = or(read.balance, prev.balance)
	s.last.open = or(read.open, prev.open)
	s.last.trades = or(read.trades, prev.trades)

	if read.anySuccess() {
		ts := now.UTC()
		s.last.updated = &ts
	}

	var p types.Portfolio

	switch {
	case s.last.live():
		p = s.buildPortfolio(now)
	case s.last.snapshot.IsSome():
		p = s.last.snapshot.Unwrap()
	default:
		p = types.Portfolio{Currency: s.cfg.Universe.Quote}
	}

	if p.OpenTrades == nil {
		p.OpenTrades = []types.TradeSummary{}
	}

	if p.RecentTrades == nil {
		p.RecentTrades = []types.TradeSummary{}
	}

	p.Degraded = len(read.errs) > 0
	p.LastEngineFailure = read.failure()

	return p, diff
}

func (s *Scheduler) buildPortfolio(now time.Time) types.Portfolio {
	p := types.Portfolio{
		Currency:     s.cfg.Universe.Quote,
		OpenTrades:   []types.TradeSummary{},
		RecentTrades: []types.TradeSummary{},
		UpdatedAt:    s.last.updated,
	}

	if s.last.balance.IsSome() {
		b := s.last.balance.Unwrap()
		p.TotalBalance = types.Float(b.Total)
		p.FreeBalance = types.Float(b.Available())

		if b.Stake != "" {
			p.Currency = b.Stake
		}
	}

	if s.last.profit.IsSome() {
		pr := s.last.profit.Unwrap()
		p.TotalPnL = types.Float(pr.ProfitAllCoin)
		p.ClosedPnL = types.Float(pr.ProfitClosedCoin)
		p.TradeCount = pr.TradeCount
		p.ClosedTradeCount = pr.ClosedTradeCount
		p.WinningTrades = pr.WinningTrades
		p.LosingTrades = pr.LosingTrades
		p.WinRate = types.Float(types.Round(pr.Winrate*100, 2))
	}

	if s.last.open.IsSome() {
		for _, t := range s.last.open.Unwrap() {
			p.OpenTrades = append(p.OpenTrades, t.Summary())
		}
	}

	if s.last.trades.IsSome() {
		trades := s.last.trades.Unwrap()
		p.DailyPnL = types.Float(closedPnLSince(trades, now.Add(-24*time.Hour)))
		p.WeeklyPnL = types.Float(closedPnLSince(trades, now.AddDate(0, 0, -7)))
		p.MonthlyPnL = types.Float(closedPnLSince(trades, now.AddDate(0, -1, 0)))
		best, worst := extremes(trades)
		p.BestTradePct = types.Float(best)
		p.WorstTradePct = types.Float(worst)
		p.RecentTrades = recent(trades, recentTrades)
	}

	return p
}

// tradeChanges compares two reads of the open trades. Closed trades are
// looked up in history for their final numbers.
func tradeChanges(before, after, history []engineclient.Trade) (opened, closed []types.TradeSummary) {
	was := make(map[int64]engineclient.Trade, len(before))
	for _, t := range before {
		was[t.TradeID] = t
	}

	is := make(map[int64]struct{}, len(after))
	for _, t := range after {
		is[t.TradeID] = struct{}{}

		if _, ok := was[t.TradeID]; !ok {
			opened = append(opened, t.Summary())
		}
	}

	byID := make(map[int64]engineclient.Trade, len(history))
	for _, t := range history {
		byID[t.TradeID] = t
	}

	for _, t := range before {
		if _, ok := is[t.TradeID]; ok {
			continue
		}

		final, ok := byID[t.TradeID]
		if !ok {
			final = t
		}

		sum := final.Summary()
		sum.IsOpen = false
		closed = append(closed, sum)
	}

	return opened, closed
}

func closedPnLSince(trades []engineclient.Trade, since time.Time) float64 {
	var total float64

	for _, t := range trades {
		closedAt := t.ClosedAt()
		if t.IsOpen || closedAt == nil || closedAt.Before(since) {
			continue
		}

		total += t.ProfitAbs
	}

	return types.Round(total, 8)
}

func extremes(trades []engineclient.Trade) (best, worst float64) {
	best, worst = math.Inf(-1), math.Inf(1)

	for _, t := range trades {
		if t.IsOpen {
			continue
		}

		best = math.Max(best, t.ProfitPct)
		worst = math.Min(worst, t.ProfitPct)
	}

	if math.IsInf(best, -1) {
		return 0, 0
	}

	return best, worst
}

// or returns a when set, else b.
func or[T any](a, b optional.Option[T]) optional.Option[T] {
	if a.IsSome() {
		return a
	}

	return b
}

// recent returns up to n trades, newest first.
func recent(trades []engineclient.Trade, n int) []types.TradeSummary {
	sorted := append([]engineclient.Trade{}, trades...)
	sort.SliceStable(sorted, func(i, j int) bool {
		return sorted[i].OpenTimestamp > sorted[j].OpenTimestamp
	})

	if len(sorted) > n {
		sorted = sorted[:n]
	}

	out := make([]types.TradeSummary, 0, len(sorted))
	for _, t := range sorted {
		out = append(out, t.Summary())
	}

	return out
}
