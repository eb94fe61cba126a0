package alerts

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"net/smtp"
	"strings"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type ClassifyTestSuite struct {
	suite.Suite
	classifier *Classifier
}

func TestClassifySuite(t *testing.T) {
	suite.Run(t, new(ClassifyTestSuite))
}

func (suite *ClassifyTestSuite) SetupTest() {
	suite.classifier = NewClassifier(config.Default().Alerts, []types.Pair{"BTC/USDC", "SOL/USDC", "LINK/USDC"})
}

func (suite *ClassifyTestSuite) TestSentiment() {
	tests := []struct {
		name       string
		text       string
		sentiment  types.Sentiment
		confidence float64
	}{
		{"positive", "Solana surge after listing", types.SentimentPositive, 1},
		{"negative", "Exchange hack causes crash", types.SentimentNegative, 1},
		{"mixed", "Rally fades as hack drop spreads", types.SentimentNegative, 1.0 / 3},
		{"tie", "surge then crash", types.SentimentNeutral, 0},
		{"none", "Bitcoin trades sideways", types.SentimentNeutral, 0},
	}

	for _, tt := range tests {
		suite.Run(tt.name, func() {
			s, c := suite.classifier.Sentiment(tt.text)
			suite.Equal(tt.sentiment, s)
			suite.InDelta(tt.confidence, c, 1e-9)
		})
	}
}

func (suite *ClassifyTestSuite) TestImpact() {
	suite.Equal(1.0, suite.classifier.Impact("listing", types.SentimentPositive, "BREAKING official listing"))
	suite.InDelta(0.15, suite.classifier.Impact("market", types.SentimentNegative, "crash"), 1e-9)
	suite.InDelta(0.3, suite.classifier.Impact("unknown", types.SentimentNeutral, "calm"), 1e-9)
	suite.InDelta(0.6, suite.classifier.Impact("partnership", types.SentimentPositive, "deal"), 1e-9)

	// six power words cap the content multiplier at 1.5
	suite.InDelta(0.75, suite.classifier.Impact("market", types.SentimentPositive,
		"breaking massive historic official exclusive urgent"), 1e-9)

	for _, s := range []types.Sentiment{types.SentimentPositive, types.SentimentNegative, types.SentimentNeutral} {
		v := suite.classifier.Impact("listing", s, strings.Repeat("massive ", 20))
		suite.GreaterOrEqual(v, 0.0)
		suite.LessOrEqual(v, 1.0)
	}
}

func (suite *ClassifyTestSuite) TestAsset() {
	suite.Equal("SOL", suite.classifier.Asset("Solana surges"))
	suite.Equal("BTC", suite.classifier.Asset("New BTC record"))
	suite.Equal("LINK", suite.classifier.Asset("link integrates oracle"))
	suite.Equal("", suite.classifier.Asset("Stocks rally"))

	pair, ok := suite.classifier.PairFor("sol")
	suite.True(ok)
	suite.Equal(types.Pair("SOL/USDC"), pair)

	_, ok = suite.classifier.PairFor("ETH")
	suite.False(ok)
}

func (suite *ClassifyTestSuite) TestEligible() {
	alert := types.NewsAlert{
		SubjectTag:  "listing",
		AssetSymbol: "SOL",
		Sentiment:   types.SentimentPositive,
		ImpactScore: 0.7,
		TradePair:   optional.None[types.Pair](),
	}

	suite.True(suite.classifier.Eligible(alert, true))
	suite.False(suite.classifier.Eligible(alert, false))

	low := alert
	low.ImpactScore = 0.69
	suite.False(suite.classifier.Eligible(low, true))

	negative := alert
	negative.Sentiment = types.SentimentNegative
	suite.False(suite.classifier.Eligible(negative, true))

	unmapped := alert
	unmapped.AssetSymbol = "ETH"
	suite.False(suite.classifier.Eligible(unmapped, true))
}

func (suite *ClassifyTestSuite) TestAutoStake() {
	suite.Equal(26.0, AutoStake(20, 50, 0.8))
	suite.Equal(24.0, AutoStake(20, 50, 0.7))
	suite.Equal(25.0, AutoStake(20, 25, 1.0))
	suite.Equal(10.0, AutoStake(20, 50, 0))
}

func (suite *ClassifyTestSuite) TestQuietHours() {
	at := func(h, m int) time.Time { return time.Date(2025, 6, 1, h, m, 0, 0, time.UTC) }

	overnight, err := ParseQuietHours(config.QuietHours{Enabled: true, Start: "23:00", End: "07:00"}, time.UTC)
	suite.Require().NoError(err)
	suite.True(overnight.Contains(at(2, 0)))
	suite.True(overnight.Contains(at(23, 0)))
	suite.False(overnight.Contains(at(8, 0)))
	suite.False(overnight.Contains(at(7, 0)))
	suite.False(overnight.Contains(at(22, 59)))

	lunch, err := ParseQuietHours(config.QuietHours{Enabled: true, Start: "12:00", End: "13:00"}, time.UTC)
	suite.Require().NoError(err)
	suite.True(lunch.Contains(at(12, 30)))
	suite.False(lunch.Contains(at(13, 0)))

	off, err := ParseQuietHours(config.QuietHours{Enabled: false, Start: "bogus"}, time.UTC)
	suite.Require().NoError(err)
	suite.False(off.Contains(at(2, 0)))

	_, err = ParseQuietHours(config.QuietHours{Enabled: true, Start: "25:99", End: "07:00"}, time.UTC)
	suite.True(errors.HasCode(err, errors.ErrCodeInvalidConfiguration))
}

func (suite *ClassifyTestSuite) TestWebhookChannel() {
	var got WebhookPayload

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Equal(http.MethodPost, r.Method)
		suite.NoError(json.NewDecoder(r.Body).Decode(&got))
		w.WriteHeader(http.StatusNoContent)
	}))
	defer server.Close()

	ch := NewWebhookChannel(server.URL, time.Second)
	suite.Equal(types.ChannelWebhook, ch.Kind())

	err := ch.Send(context.Background(), Message{
		Title: "Trade #42 opened BTC/USDC",
		Body:  "Stake 20",
		Notification: types.Notification{
			Kind:    types.KindTradingSignal,
			Action:  types.NotificationActionBuy,
			TradeID: optional.Some(int64(42)),
			Symbol:  "BTC/USDC",
		},
	})
	suite.Require().NoError(err)
	suite.Equal("Trade #42 opened BTC/USDC", got.Title)
	suite.Require().NotNil(got.TradeID)
	suite.Equal(int64(42), *got.TradeID)

	failing := NewWebhookChannel("http://127.0.0.1:1/hook", time.Second)
	suite.True(errors.HasCode(failing.Send(context.Background(), Message{Title: "x"}), errors.ErrCodeChannelFailed))
}

func (suite *ClassifyTestSuite) TestEmailChannel() {
	var (
		addr string
		to   []string
		body string
	)

	ch := NewEmailChannel(config.EmailConfig{
		Enabled:  true,
		Host:     "smtp.example.org",
		Port:     587,
		Username: "bot",
		Password: "secret",
		From:     "bot@example.org",
		To:       []string{"ops@example.org"},
	})
	ch.sendMail = func(a string, _ smtp.Auth, _ string, rcpt []string, msg []byte) error {
		addr, to, body = a, rcpt, string(msg)

		return nil
	}

	suite.Require().NoError(ch.Send(context.Background(), Message{Title: "Engine unreachable", Body: "line one\nline two"}))
	suite.Equal("smtp.example.org:587", addr)
	suite.Equal([]string{"ops@example.org"}, to)
	suite.Contains(body, "Subject: Engine unreachable\r\n")
	suite.Contains(body, "line one\r\nline two")

	empty := NewEmailChannel(config.EmailConfig{Host: "smtp.example.org", Port: 25})
	suite.True(errors.HasCode(empty.Send(context.Background(), Message{Title: "x"}), errors.ErrCodeChannelDisabled))
}
