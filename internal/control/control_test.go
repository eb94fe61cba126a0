package control

import (
	"context"
	"sync"
	"testing"

	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/mocks"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

type countingRefresher struct {
	pending bool
}

func (c *countingRefresher) RequestRefresh() bool {
	if c.pending {
		return false
	}

	c.pending = true

	return true
}

type recordingAnnouncer struct {
	mu     sync.Mutex
	titles []string
}

func (r *recordingAnnouncer) Trigger(_ context.Context, _ types.NotificationKind, title, _ string) []types.NotificationRecord {
	r.mu.Lock()
	defer r.mu.Unlock()

	r.titles = append(r.titles, title)

	return nil
}

type ControlTestSuite struct {
	suite.Suite
	ctrl      *gomock.Controller
	client    *mocks.MockClient
	model     *model.Model
	announcer *recordingAnnouncer
	service   *Service
}

func TestControlSuite(t *testing.T) {
	suite.Run(t, new(ControlTestSuite))
}

func (suite *ControlTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.client = mocks.NewMockClient(suite.ctrl)
	suite.model = model.New()
	suite.announcer = &recordingAnnouncer{}
	suite.service = New(Options{
		Engine:    suite.client,
		Model:     suite.model,
		Announcer: suite.announcer,
		Trading:   config.TradingConfig{StakeBase: 20, StakeCap: 50},
		Quote:     "USDC",
		Logger:    logger.NewNopLogger(),
	})
}

func (suite *ControlTestSuite) TestForceTradeUsesBaseStake() {
	suite.client.EXPECT().ForceEntry(gomock.Any(), engineclient.ForceEntryRequest{
		Pair:        "ETH/USDC",
		Side:        "long",
		StakeAmount: 20,
		OrderType:   "market",
	}).Return(engineclient.ForceEntryResult{TradeID: 9, Pair: "ETH/USDC", Stake: 20}, nil).Times(1)

	res, err := suite.service.ForceTrade(context.Background(), "eth/usdc")
	suite.Require().NoError(err)
	suite.True(res.Success)
	suite.Contains(res.Message, "#9")
}

func (suite *ControlTestSuite) TestForceTradeRejectsBadPairWithoutCall() {
	_, err := suite.service.ForceTrade(context.Background(), "ETH/BTC")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidPair))

	_, err = suite.service.ForceTrade(context.Background(), " ")
	suite.True(errors.HasCode(err, errors.ErrCodeMissingParameter))
}

func (suite *ControlTestSuite) TestEmergencyStop() {
	suite.model.SetAutoTrading(true)
	suite.client.EXPECT().StopEngine(gomock.Any()).Return("stopped", nil).Times(1)

	res, err := suite.service.EmergencyStop(context.Background())
	suite.Require().NoError(err)
	suite.True(res.Success)
	suite.False(suite.model.AutoTrading())
	suite.Equal([]string{"Emergency stop"}, suite.announcer.titles)
}

func (suite *ControlTestSuite) TestEmergencyStopClearsFlagOnFailure() {
	suite.model.SetAutoTrading(true)
	suite.client.EXPECT().StopEngine(gomock.Any()).
		Return("", errors.New(errors.ErrCodeUnreachable, "engine unreachable")).Times(1)

	_, err := suite.service.EmergencyStop(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeUnreachable))
	suite.False(suite.model.AutoTrading())
}

func (suite *ControlTestSuite) TestToggleTwiceIsIdentity() {
	before := suite.model.AutoTrading()

	suite.service.ToggleAutoTrading(context.Background())
	res := suite.service.ToggleAutoTrading(context.Background())

	suite.Equal(before, suite.model.AutoTrading())
	suite.Equal(map[string]bool{"auto_trading_enabled": before}, res.Payload)
}

func (suite *ControlTestSuite) TestForceExit() {
	suite.client.EXPECT().ForceExit(gomock.Any(), engineclient.ForceExitRequest{TradeID: "", Pair: "BTC/USDC"}).
		Return(engineclient.ForceExitResult{Closed: []int64{3, 4}}, nil).Times(1)

	res, err := suite.service.ForceExit(context.Background(), "", "btc/usdc")
	suite.Require().NoError(err)
	suite.Equal("Closed 2 trade(s)", res.Message)

	_, err = suite.service.ForceExit(context.Background(), "abc", "")
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidParameter))
}

func (suite *ControlTestSuite) TestRefresh() {
	res := suite.service.Refresh()
	suite.False(res.Success)

	suite.service.SetRefresher(&countingRefresher{})

	first := suite.service.Refresh()
	second := suite.service.Refresh()
	suite.Equal("Refresh scheduled", first.Message)
	suite.Equal("Refresh already pending", second.Message)
	suite.True(second.Success)
}
