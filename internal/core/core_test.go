package core

import (
	"context"
	"encoding/json"
	"net"
	"net/http"
	"testing"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/store"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/mocks"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type fakeProbe struct{}

func (fakeProbe) Collect(context.Context) types.SystemStatus {
	return types.SystemStatus{CPUPercent: 12, MemoryPercent: 40, DiskPercent: 55}
}

type CoreTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	engine *mocks.MockClient
	bot    *mocks.MockBotAPI
	cfg    config.Config
}

func TestCoreSuite(t *testing.T) {
	suite.Run(t, new(CoreTestSuite))
}

func (suite *CoreTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.engine = mocks.NewMockClient(suite.ctrl)
	suite.bot = mocks.NewMockBotAPI(suite.ctrl)

	suite.cfg = config.Default()
	suite.cfg.Storage.Dir = suite.T().TempDir()
	suite.cfg.Universe.Symbols = []string{"BTC/USDC", "ETH/USDC"}
	suite.cfg.Chat.AuthorizedChatID = 42
	suite.cfg.HTTP.BindAddr = "127.0.0.1"
}

func (suite *CoreTestSuite) newCore(withBot bool) *Core {
	opts := Options{
		Config: &suite.cfg,
		Logger: logger.NewNopLogger(),
		Engine: suite.engine,
		Probe:  fakeProbe{},
	}
	if withBot {
		opts.BotAPI = suite.bot
	}

	c, err := New(context.Background(), opts)
	suite.Require().NoError(err)
	suite.T().Cleanup(func() { _ = c.Close() })

	return c
}

func (suite *CoreTestSuite) TestNewChecksEngineVersion() {
	suite.engine.EXPECT().ShowConfig(gomock.Any()).Return(engineclient.EngineConfig{
		APIVersion: 2.34,
		Version:    "2024.3",
		Strategy:   "RsiStrategy",
	}, nil)

	c := suite.newCore(false)

	suite.Nil(c.Bot())
	suite.Empty(c.Alerts().Channels())
	suite.False(c.Model().Published())
	suite.NotNil(c.Server())
}

func (suite *CoreTestSuite) TestEngineDownAtStartupIsNotFatal() {
	suite.engine.EXPECT().ShowConfig(gomock.Any()).
		Return(engineclient.EngineConfig{}, errors.New(errors.ErrCodeUnreachable, "connection refused"))

	c := suite.newCore(false)
	suite.NotNil(c.Scheduler())
}

func (suite *CoreTestSuite) TestRejectsBadRules() {
	suite.cfg.Rules.KBuy = 99

	_, err := New(context.Background(), Options{Config: &suite.cfg, Engine: suite.engine})
	suite.True(errors.HasCode(err, errors.ErrCodeRuleConfigError))
}

func (suite *CoreTestSuite) TestEmergencyStopIsAnnouncedOnChat() {
	suite.engine.EXPECT().ShowConfig(gomock.Any()).Return(engineclient.EngineConfig{APIVersion: 2.34}, nil)
	suite.engine.EXPECT().StopEngine(gomock.Any()).Return("stopping", nil)

	var sent []string

	suite.bot.EXPECT().Send(gomock.Any()).DoAndReturn(func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		msg, ok := c.(tgbotapi.MessageConfig)
		suite.Require().True(ok)
		suite.Equal(int64(42), msg.ChatID)
		sent = append(sent, msg.Text)

		return tgbotapi.Message{}, nil
	})

	c := suite.newCore(true)
	suite.Require().NotNil(c.Bot())
	suite.Equal([]types.ChannelKind{types.ChannelChat}, c.Alerts().Channels())

	res, err := c.Control().EmergencyStop(context.Background())
	suite.Require().NoError(err)
	suite.True(res.Success)

	suite.Require().Len(sent, 1)
	suite.Contains(sent[0], "Emergency stop")

	records, err := c.Store().Notifications(store.NotificationFilter{Kind: types.KindSystemStatus})
	suite.Require().NoError(err)
	suite.Require().Len(records, 1)
	suite.Equal(types.ChannelChat, records[0].Channel)
	suite.True(records[0].Delivered)
}

func (suite *CoreTestSuite) TestRunServesUntilCancelled() {
	unreachable := errors.New(errors.ErrCodeUnreachable, "connection refused")

	suite.engine.EXPECT().ShowConfig(gomock.Any()).Return(engineclient.EngineConfig{}, unreachable).AnyTimes()
	suite.engine.EXPECT().Version(gomock.Any()).Return("", unreachable).AnyTimes()
	suite.engine.EXPECT().Ping(gomock.Any()).Return(unreachable).AnyTimes()
	suite.engine.EXPECT().Profit(gomock.Any()).Return(engineclient.Profit{}, unreachable).AnyTimes()
	suite.engine.EXPECT().Balance(gomock.Any()).Return(engineclient.Balance{}, unreachable).AnyTimes()
	suite.engine.EXPECT().Status(gomock.Any()).Return(nil, unreachable).AnyTimes()
	suite.engine.EXPECT().Trades(gomock.Any(), gomock.Any()).Return(nil, unreachable).AnyTimes()
	suite.engine.EXPECT().Whitelist(gomock.Any()).Return(nil, unreachable).AnyTimes()
	suite.engine.EXPECT().PairCandles(gomock.Any(), gomock.Any(), gomock.Any(), gomock.Any()).Return(nil, unreachable).AnyTimes()
	suite.engine.EXPECT().BaseURL().Return("http://127.0.0.1:8080").AnyTimes()

	suite.bot.EXPECT().GetUpdates(gomock.Any()).DoAndReturn(func(tgbotapi.UpdateConfig) ([]tgbotapi.Update, error) {
		time.Sleep(20 * time.Millisecond)

		return nil, nil
	}).AnyTimes()
	suite.bot.EXPECT().Send(gomock.Any()).Return(tgbotapi.Message{}, nil).AnyTimes()

	c := suite.newCore(true)

	l, err := net.Listen("tcp", "127.0.0.1:0")
	suite.Require().NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)

	go func() { done <- c.Run(ctx, l) }()

	url := "http://" + l.Addr().String() + "/healthz"

	suite.Eventually(func() bool {
		resp, err := http.Get(url)
		if err != nil {
			return false
		}
		defer resp.Body.Close()

		var body struct {
			Published bool `json:"published"`
		}

		return json.NewDecoder(resp.Body).Decode(&body) == nil && body.Published
	}, 5*time.Second, 50*time.Millisecond)

	d := c.Model().Snapshot()
	suite.False(d.EngineReachable)
	suite.True(d.Portfolio.Degraded)
	suite.InDelta(12.0, float64(d.System.CPUPercent), 1e-9)

	cancel()

	select {
	case err := <-done:
		suite.NoError(err)
	case <-time.After(10 * time.Second):
		suite.Fail("core did not stop")
	}

	suite.Equal("stopped", string(c.Model().Snapshot().Status))
}
