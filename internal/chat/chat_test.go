package chat

import (
	"context"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rxtech-lab/argo-monitor/internal/alerts"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/control"
	"github.com/rxtech-lab/argo-monitor/internal/engineclient"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/model"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/mocks"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/suite"
	"go.uber.org/mock/gomock"
)

const authorized = int64(4242)

type ChatTestSuite struct {
	suite.Suite
	ctrl   *gomock.Controller
	api    *mocks.MockBotAPI
	engine *mocks.MockClient
	model  *model.Model
	bot    *Bot
	sent   []tgbotapi.MessageConfig
}

func TestChatSuite(t *testing.T) {
	suite.Run(t, new(ChatTestSuite))
}

func (suite *ChatTestSuite) SetupTest() {
	suite.ctrl = gomock.NewController(suite.T())
	suite.api = mocks.NewMockBotAPI(suite.ctrl)
	suite.engine = mocks.NewMockClient(suite.ctrl)
	suite.model = model.New()
	suite.sent = nil

	ctrl := control.New(control.Options{
		Engine:  suite.engine,
		Model:   suite.model,
		Trading: config.TradingConfig{StakeBase: 20, StakeCap: 50},
		Quote:   "USDC",
		Logger:  logger.NewNopLogger(),
	})

	suite.bot = New(Options{
		Config: config.ChatConfig{
			Enabled:          true,
			AuthorizedChatID: authorized,
			PollTimeoutS:     1,
			BrandBlocklist:   []string{"Binance"},
			BrandReplacement: "exchange",
			TopK:             3,
		},
		API:      suite.api,
		Commands: NewCommands(suite.model, ctrl, nil, 3),
		Logger:   logger.NewNopLogger(),
	})
}

func (suite *ChatTestSuite) captureSends() {
	suite.api.EXPECT().Send(gomock.Any()).DoAndReturn(func(c tgbotapi.Chattable) (tgbotapi.Message, error) {
		suite.sent = append(suite.sent, c.(tgbotapi.MessageConfig))

		return tgbotapi.Message{}, nil
	}).AnyTimes()
}

func commandUpdate(chatID int64, text string) tgbotapi.Update {
	length := len(text)
	if i := strings.IndexByte(text, ' '); i > 0 {
		length = i
	}

	return tgbotapi.Update{
		UpdateID: 1,
		Message: &tgbotapi.Message{
			MessageID: 1,
			Chat:      &tgbotapi.Chat{ID: chatID},
			Text:      text,
			Entities:  []tgbotapi.MessageEntity{{Type: "bot_command", Offset: 0, Length: length}},
		},
	}
}

func callbackUpdate(chatID int64, data string) tgbotapi.Update {
	return tgbotapi.Update{
		UpdateID: 2,
		CallbackQuery: &tgbotapi.CallbackQuery{
			ID:      "cb-1",
			Data:    data,
			Message: &tgbotapi.Message{MessageID: 5, Chat: &tgbotapi.Chat{ID: chatID}},
		},
	}
}

func (suite *ChatTestSuite) TestUnauthorizedChatIsIgnored() {
	suite.api.EXPECT().Send(gomock.Any()).Times(0)

	suite.bot.Handle(context.Background(), commandUpdate(1, "/emergency_stop"))
}

func (suite *ChatTestSuite) TestForceTradeCommand() {
	suite.captureSends()
	suite.engine.EXPECT().ForceEntry(gomock.Any(), engineclient.ForceEntryRequest{
		Pair:        "ETH/USDC",
		Side:        "long",
		StakeAmount: 20,
		OrderType:   "market",
	}).Return(engineclient.ForceEntryResult{TradeID: 3, Pair: "ETH/USDC", Stake: 20}, nil).Times(1)

	suite.bot.Handle(context.Background(), commandUpdate(authorized, "/forcetrade ETH/USDC"))

	suite.Require().Len(suite.sent, 1)
	suite.Equal(authorized, suite.sent[0].ChatID)
	suite.True(strings.HasPrefix(suite.sent[0].Text, "✅"))
	suite.Contains(suite.sent[0].Text, "#3")
}

func (suite *ChatTestSuite) TestFailureRendersKind() {
	suite.captureSends()
	suite.engine.EXPECT().StopEngine(gomock.Any()).
		Return("", errors.New(errors.ErrCodeUnreachable, "connection refused")).Times(1)

	suite.bot.Handle(context.Background(), commandUpdate(authorized, "/stopbot"))

	suite.Require().Len(suite.sent, 1)
	suite.Equal("❌ unreachable: connection refused", suite.sent[0].Text)
}

func (suite *ChatTestSuite) TestEngineFailureNamesEndpoint() {
	suite.captureSends()
	suite.engine.EXPECT().StopEngine(gomock.Any()).
		Return("", errors.Wrap(errors.ErrCodeUnreachable, "engine request failed", &engineclient.EngineError{
			Kind:     engineclient.KindUnreachable,
			Endpoint: "/stop",
			Detail:   "connection refused",
		})).Times(1)
	suite.engine.EXPECT().StartEngine(gomock.Any()).
		Return("", errors.Wrap(errors.ErrCodeBadStatus, "engine request failed", &engineclient.EngineError{
			Kind:       engineclient.KindBadStatus,
			Endpoint:   "/start",
			StatusCode: 500,
			Detail:     "Internal Server Error",
		})).Times(1)

	suite.bot.Handle(context.Background(), commandUpdate(authorized, "/stopbot"))
	suite.bot.Handle(context.Background(), commandUpdate(authorized, "/startbot"))

	suite.Require().Len(suite.sent, 2)
	suite.Equal("❌ unreachable: /stop: connection refused", suite.sent[0].Text)
	suite.Equal("❌ bad_status: /start (500): Internal Server Error", suite.sent[1].Text)
}

func (suite *ChatTestSuite) TestTradeButtonCallback() {
	suite.captureSends()
	suite.api.EXPECT().Request(tgbotapi.NewCallback("cb-1", "")).Return(&tgbotapi.APIResponse{Ok: true}, nil).Times(1)
	suite.engine.EXPECT().ForceEntry(gomock.Any(), gomock.Any()).
		Return(engineclient.ForceEntryResult{TradeID: 8, Pair: "BTC/USDC", Stake: 20}, nil).Times(1)

	suite.bot.Handle(context.Background(), callbackUpdate(authorized, "trade:BTC/USDC"))

	suite.Require().Len(suite.sent, 1)
	suite.Contains(suite.sent[0].Text, "#8")
}

func (suite *ChatTestSuite) TestStartShowsMenu() {
	suite.captureSends()

	suite.bot.Handle(context.Background(), commandUpdate(authorized, "/start"))

	suite.Require().Len(suite.sent, 1)
	suite.IsType(tgbotapi.InlineKeyboardMarkup{}, suite.sent[0].ReplyMarkup)
}

func (suite *ChatTestSuite) TestConditionsRejectsBadK() {
	suite.captureSends()

	suite.bot.Handle(context.Background(), commandUpdate(authorized, "/conditions abc"))

	suite.Require().Len(suite.sent, 1)
	suite.True(strings.HasPrefix(suite.sent[0].Text, "❌ invalid_parameter"))
}

func (suite *ChatTestSuite) TestConditionsListsReadySymbolsWithButtons() {
	suite.captureSends()
	suite.model.Publish(func(d *model.Dashboard) {
		d.Conditions = model.Conditions{
			{Symbol: "BTC/USDC", Evaluation: types.RuleEvaluation{BuyMet: 16, BuyTotal: 21, ReadyToBuy: true}},
			{Symbol: "ETH/USDC", Evaluation: types.RuleEvaluation{BuyMet: 3, BuyTotal: 21}},
		}
	})

	suite.bot.Handle(context.Background(), commandUpdate(authorized, "/conditions"))

	suite.Require().Len(suite.sent, 1)
	suite.Contains(suite.sent[0].Text, "BTC/USDC")
	suite.Contains(suite.sent[0].Text, "✅ BUY")

	kb, ok := suite.sent[0].ReplyMarkup.(tgbotapi.InlineKeyboardMarkup)
	suite.Require().True(ok)
	suite.Require().Len(kb.InlineKeyboard, 1)
	suite.Equal("trade:BTC/USDC", *kb.InlineKeyboard[0][0].CallbackData)
}

func (suite *ChatTestSuite) TestChannelSendSanitizes() {
	suite.captureSends()

	err := suite.bot.Send(context.Background(), alerts.Message{
		Title: "Binance listing",
		Body:  "Details at https://example.com/news and [here](http://x.io).",
	})
	suite.Require().NoError(err)

	suite.Require().Len(suite.sent, 1)
	text := suite.sent[0].Text
	suite.NotContains(text, "http")
	suite.NotContains(text, "Binance")
	suite.Contains(text, "exchange listing")
	suite.Contains(text, "here")
}

func (suite *ChatTestSuite) TestLongMessagesAreSplit() {
	suite.captureSends()

	body := strings.Repeat(strings.Repeat("word ", 100)+"\n\n", 20)

	suite.Require().NoError(suite.bot.Send(context.Background(), alerts.Message{Title: "Report", Body: body}))
	suite.Greater(len(suite.sent), 1)

	for _, m := range suite.sent {
		suite.LessOrEqual(utf8.RuneCountInString(m.Text), MaxMessageLength)
	}
}

func (suite *ChatTestSuite) TestRunStopsOnCancel() {
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	suite.api.EXPECT().GetUpdates(gomock.Any()).
		Return([]tgbotapi.Update{commandUpdate(authorized, "/help")}, nil).Times(1)
	suite.api.EXPECT().Send(gomock.Any()).DoAndReturn(func(tgbotapi.Chattable) (tgbotapi.Message, error) {
		cancel()

		return tgbotapi.Message{}, nil
	}).Times(1)

	suite.NoError(suite.bot.Run(ctx))
	suite.Equal(2, suite.bot.offset)
}

func (suite *ChatTestSuite) TestSendWithoutChatIsDisabled() {
	bot := New(Options{Config: config.ChatConfig{}, API: suite.api, Logger: logger.NewNopLogger()})

	err := bot.Send(context.Background(), alerts.Message{Title: "x"})
	suite.True(errors.HasCode(err, errors.ErrCodeChannelDisabled))
}

func (suite *ChatTestSuite) TestSendOfOnlyLinksFails() {
	err := suite.bot.Send(context.Background(), alerts.Message{Title: "https://example.com/foo example.org"})
	suite.True(errors.HasCode(err, errors.ErrCodeChannelFailed))
	suite.Empty(suite.sent)
}

func TestSplit(t *testing.T) {
	t.Run("short text is one chunk", func(t *testing.T) {
		assert.Equal(t, []string{"hello"}, Split("hello", 10))
	})

	t.Run("prefers section boundaries", func(t *testing.T) {
		got := Split("aaaa\n\nbbbb\n\ncccc", 10)
		assert.Equal(t, []string{"aaaa\n\nbbbb", "cccc"}, got)
	})

	t.Run("falls back to lines", func(t *testing.T) {
		got := Split("aaaa\nbbbb\ncccc", 9)
		assert.Equal(t, []string{"aaaa\nbbbb", "cccc"}, got)
	})

	t.Run("hard cuts a long line", func(t *testing.T) {
		got := Split(strings.Repeat("x", 25), 10)
		assert.Equal(t, []string{strings.Repeat("x", 10), strings.Repeat("x", 10), strings.Repeat("x", 5)}, got)
	})

	t.Run("counts runes not bytes", func(t *testing.T) {
		got := Split(strings.Repeat("é", 12), 6)
		assert.Len(t, got, 2)
	})
}
