package monitor_test

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net"
	"net/http"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/e2e/monitor/mockserver"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/control"
	"github.com/rxtech-lab/argo-monitor/internal/core"
	"github.com/rxtech-lab/argo-monitor/internal/feeds"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/rules"
	"github.com/rxtech-lab/argo-monitor/internal/store"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/mocks"
	"github.com/stretchr/testify/suite"
)

type fakeProbe struct{}

func (fakeProbe) Collect(context.Context) types.SystemStatus {
	return types.SystemStatus{CPUPercent: 10, MemoryPercent: 30, DiskPercent: 50}
}

var seriesStart = time.Date(2024, 6, 1, 0, 0, 0, 0, time.UTC)

// rising climbs steadily: overbought, few buy predicates hold.
func rising() []types.Candle {
	return mocks.Ramp(seriesStart, 5*time.Minute, 40, 100, 139)
}

// reboundCloses sells off hard and turns up on the last two candles.
func reboundCloses() []float64 {
	closes := make([]float64, 40)
	for i := range closes {
		closes[i] = 200 - 3*float64(i)
	}

	closes[38] = closes[37] + 1
	closes[39] = closes[38] + 1.5

	return closes
}

// MonitorE2ETestSuite runs the assembled monitor against an in-process
// engine and chat Bot API.
type MonitorE2ETestSuite struct {
	suite.Suite
	engine *mockserver.MockEngineServer
	bot    *mockserver.MockBotServer
	cfg    config.Config
}

func TestMonitorE2E(t *testing.T) {
	suite.Run(t, new(MonitorE2ETestSuite))
}

func (s *MonitorE2ETestSuite) SetupTest() {
	s.engine = mockserver.NewMockEngineServer(mockserver.ServerConfig{
		Username:  "freqtrader",
		Password:  "secret",
		Balance:   1000,
		Whitelist: []string{"BTC/USDC", "ETH/USDC"},
	})
	s.Require().NoError(s.engine.Start("127.0.0.1:0"))

	s.bot = mockserver.NewMockBotServer()

	s.engine.SetCandles("BTC/USDC", rising())
	s.engine.SetCandles("ETH/USDC", rising())

	s.cfg = config.Default()
	s.cfg.Engine.BaseURLs = []string{s.engine.BaseURL()}
	s.cfg.Engine.Username = "freqtrader"
	s.cfg.Engine.Password = "secret"
	s.cfg.Engine.TimeoutS = 2
	s.cfg.Universe.Symbols = []string{"BTC/USDC", "ETH/USDC"}
	s.cfg.Scheduler.TickPeriodS = 1
	s.cfg.Storage.Dir = s.T().TempDir()
	s.cfg.HTTP.BindAddr = "127.0.0.1"
	s.cfg.Chat.Enabled = true
	s.cfg.Chat.Token = "123456:test-token"
	s.cfg.Chat.AuthorizedChatID = 42
	s.cfg.Chat.APIEndpoint = s.bot.Endpoint()
	s.cfg.Chat.PollTimeoutS = 1
	s.cfg.Alerts.PositiveWords = []string{"bullish", "surge", "rally"}
	s.cfg.Alerts.NegativeWords = []string{"crash", "hack"}
	s.cfg.Alerts.PowerWords = nil
}

func (s *MonitorE2ETestSuite) TearDownTest() {
	if s.engine != nil {
		s.engine.Stop()
	}

	if s.bot != nil {
		s.bot.Close()
	}
}

func (s *MonitorE2ETestSuite) newCore() *core.Core {
	c, err := core.New(context.Background(), core.Options{
		Config: &s.cfg,
		Logger: logger.NewNopLogger(),
		Probe:  fakeProbe{},
	})
	s.Require().NoError(err)
	s.T().Cleanup(func() { _ = c.Close() })

	return c
}

// start runs c in the background and returns the HTTP base url of its API.
func (s *MonitorE2ETestSuite) start(c *core.Core) string {
	l, err := net.Listen("tcp", "127.0.0.1:0")
	s.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- c.Run(ctx, l) }()

	s.T().Cleanup(func() {
		cancel()

		select {
		case err := <-done:
			s.NoError(err)
		case <-time.After(10 * time.Second):
			s.Fail("monitor did not stop")
		}
	})

	return "http://" + l.Addr().String()
}

func (s *MonitorE2ETestSuite) waitPublished(c *core.Core) {
	s.Require().Eventually(func() bool {
		return c.Model().Published()
	}, 5*time.Second, 20*time.Millisecond)
}

// getJSON decodes a 200 answer into out. It is called from Eventually
// conditions, so it reports failures instead of asserting.
func (s *MonitorE2ETestSuite) getJSON(url string, out any) error {
	resp, err := http.Get(url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%s answered %d", url, resp.StatusCode)
	}

	return json.NewDecoder(resp.Body).Decode(out)
}

func (s *MonitorE2ETestSuite) postJSON(url string, body any) (int, control.Result) {
	var reader *bytes.Reader

	if body == nil {
		reader = bytes.NewReader(nil)
	} else {
		b, err := json.Marshal(body)
		s.Require().NoError(err)
		reader = bytes.NewReader(b)
	}

	resp, err := http.Post(url, "application/json", reader)
	s.Require().NoError(err)
	defer resp.Body.Close()

	var res control.Result
	s.Require().NoError(json.NewDecoder(resp.Body).Decode(&res))

	return resp.StatusCode, res
}

func (s *MonitorE2ETestSuite) TestColdStartEngineUnreachable() {
	s.cfg.Engine.BaseURLs = []string{"http://127.0.0.1:1"}
	s.cfg.Chat.Enabled = false

	c := s.newCore()
	base := s.start(c)

	var doc struct {
		Portfolio struct {
			Degraded bool `json:"degraded"`
		} `json:"portfolio"`
		Conditions map[string]any `json:"conditions"`
		LastUpdate *time.Time     `json:"last_update"`
	}

	s.Require().Eventually(func() bool {
		return s.getJSON(base+"/api/all-data", &doc) == nil
	}, 3*time.Second, 50*time.Millisecond)

	s.True(doc.Portfolio.Degraded)
	s.NotNil(doc.Conditions)
	s.Empty(doc.Conditions)
	s.Nil(doc.LastUpdate)

	records, err := c.Store().Notifications(store.NotificationFilter{})
	s.Require().NoError(err)
	s.Empty(records)
}

func (s *MonitorE2ETestSuite) TestReadyToBuyTransitionEmitsSignal() {
	evaluator, err := rules.NewEvaluator(s.cfg.Rules)
	s.Require().NoError(err)

	rebound := mockserver.Series(seriesStart, 5*time.Minute, reboundCloses())

	before := evaluator.Evaluate("BTC/USDC", rising()).Evaluation.BuyMet
	after := evaluator.Evaluate("BTC/USDC", rebound).Evaluation.BuyMet
	s.Require().Greater(after, before)

	s.cfg.Rules.KBuy = after

	c := s.newCore()
	base := s.start(c)
	s.waitPublished(c)

	cond, ok := c.Model().Snapshot().Condition("BTC/USDC")
	s.Require().True(ok)
	s.Equal(before, cond.Evaluation.BuyMet)
	s.False(cond.Evaluation.ReadyToBuy)

	s.engine.SetCandles("BTC/USDC", rebound)

	// a refresh merged into a pending one answers 503; either way a tick follows
	s.postJSON(base+"/api/refresh-data", nil)

	buys := func() []types.Signal {
		var signals []types.Signal
		if s.getJSON(base+"/api/trading-signals", &signals) != nil {
			return nil
		}

		out := make([]types.Signal, 0)
		for _, sig := range signals {
			if sig.Side == types.SideBuy {
				out = append(out, sig)
			}
		}

		return out
	}

	s.Require().Eventually(func() bool {
		return len(buys()) > 0
	}, 5*time.Second, 50*time.Millisecond)

	got := buys()
	s.Require().Len(got, 1)
	s.Equal("BTC/USDC", got[0].Symbol)
	s.InDelta(reboundCloses()[39], float64(got[0].Price), 1e-9)
}

func (s *MonitorE2ETestSuite) TestForceTradeHappyPath() {
	c := s.newCore()
	base := s.start(c)
	s.waitPublished(c)

	status, res := s.postJSON(base+"/api/force-trade", map[string]string{"pair": "ETH/USDC"})
	s.Equal(http.StatusOK, status)
	s.True(res.Success)

	entries := s.engine.ForceEntries()
	s.Require().Len(entries, 1)
	s.Equal("ETH/USDC", entries[0].Pair)
	s.InDelta(s.cfg.Trading.StakeBase, entries[0].StakeAmount, 1e-9)
}

func (s *MonitorE2ETestSuite) TestForceTradeAboveStakeCeilingIsRefused() {
	s.cfg.Engine.MaxStake = 30
	s.cfg.Trading.StakeBase = 40
	s.cfg.Trading.StakeCap = 40

	c := s.newCore()
	base := s.start(c)
	s.waitPublished(c)

	status, res := s.postJSON(base+"/api/force-trade", map[string]string{"pair": "ETH/USDC"})
	s.GreaterOrEqual(status, http.StatusBadRequest)
	s.False(res.Success)
	s.Empty(s.engine.ForceEntries())
}

func (s *MonitorE2ETestSuite) TestEmergencyStopBlocksAutoTrading() {
	c := s.newCore()
	base := s.start(c)
	s.waitPublished(c)

	status, res := s.postJSON(base+"/api/toggle-auto-trading", nil)
	s.Equal(http.StatusOK, status)
	s.True(res.Success)
	s.True(c.Model().AutoTrading())

	first := c.Alerts().HandleNews(context.Background(), []feeds.Item{{
		SourceName: "exchange-news",
		SubjectTag: "listing",
		Title:      "ETH listing sparks bullish surge",
		Published:  time.Now(),
	}})
	s.Require().Len(first, 1)
	s.Equal(types.ActionAutoEntry, first[0].ActionTaken)
	s.Require().Len(s.engine.ForceEntries(), 1)

	status, res = s.postJSON(base+"/api/emergency-stop", nil)
	s.Equal(http.StatusOK, status)
	s.True(res.Success)
	s.False(c.Model().AutoTrading())
	s.Equal(1, s.engine.Calls("/stop"))
	s.Equal("stopped", s.engine.State())

	second := c.Alerts().HandleNews(context.Background(), []feeds.Item{{
		SourceName: "exchange-news",
		SubjectTag: "listing",
		Title:      "ETH rally continues after listing, bullish",
		Published:  time.Now(),
	}})
	s.Require().Len(second, 1)
	s.NotEqual(types.ActionAutoEntry, second[0].ActionTaken)
	s.Len(s.engine.ForceEntries(), 1)

	s.Eventually(func() bool {
		for _, m := range s.bot.Sent() {
			if m.ChatID == 42 && bytes.Contains([]byte(m.Text), []byte("Emergency stop")) {
				return true
			}
		}

		return false
	}, 2*time.Second, 20*time.Millisecond)
}

func (s *MonitorE2ETestSuite) TestDuplicateSuppression() {
	c := s.newCore()

	n := types.Notification{
		Kind:    types.KindTradingSignal,
		Action:  types.NotificationActionBuy,
		TradeID: optional.Some(int64(42)),
		Symbol:  "BTC/USDC",
		Amount:  20,
		Price:   65000,
		Title:   "Bought BTC/USDC",
		Body:    "Trade #42 opened",
	}

	first := c.Alerts().Notify(context.Background(), n)
	second := c.Alerts().Notify(context.Background(), n)

	s.Require().Len(first, 1)
	s.Require().Len(second, 1)
	s.Equal(types.StatusDelivered, first[0].Status)
	s.Equal(types.StatusSuppressed, second[0].Status)

	records, err := c.Store().Notifications(store.NotificationFilter{Kind: types.KindTradingSignal, Channel: types.ChannelChat})
	s.Require().NoError(err)
	s.Require().Len(records, 2)

	delivered := 0
	suppressed := 0

	for _, r := range records {
		s.Equal(optional.Some(int64(42)), r.TradeID)

		if r.Delivered {
			delivered++
		}

		if r.Status == types.StatusSuppressed {
			suppressed++
		}
	}

	s.Equal(1, delivered)
	s.Equal(1, suppressed)
	s.Len(s.bot.Sent(), 1)
}

func (s *MonitorE2ETestSuite) TestChatOutboundIsSanitized() {
	c := s.newCore()

	records := c.Alerts().Trigger(context.Background(), types.KindSystemStatus,
		"See https://example.com/foo and visit example.org — buy on Binance", "")
	s.Require().Len(records, 1)
	s.True(records[0].Delivered)

	sent := s.bot.Sent()
	s.Require().Len(sent, 1)
	s.Equal(int64(42), sent[0].ChatID)
	s.Equal("See and visit — buy on exchange", sent[0].Text)
}

func (s *MonitorE2ETestSuite) TestChatOutboundEmptiedBySanitizerIsFailed() {
	c := s.newCore()

	records := c.Alerts().Trigger(context.Background(), types.KindSystemStatus, "https://example.com/foo", "")
	s.Require().Len(records, 1)
	s.False(records[0].Delivered)
	s.Equal(types.StatusFailed, records[0].Status)
	s.Empty(s.bot.Sent())
}
