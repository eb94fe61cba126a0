package sentiment

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"github.com/stretchr/testify/suite"
)

type SentimentTestSuite struct {
	suite.Suite
	now time.Time
}

func TestSentimentSuite(t *testing.T) {
	suite.Run(t, new(SentimentTestSuite))
}

func (suite *SentimentTestSuite) SetupTest() {
	suite.now = time.Date(2025, 6, 1, 12, 0, 0, 0, time.UTC)
}

func condition(symbol string, readyBuy, readySell bool, trend float64, stale bool) types.SymbolCondition {
	return types.SymbolCondition{
		Symbol:     symbol,
		Snapshot:   types.IndicatorSnapshot{Trend: types.Float(trend), Stale: stale},
		Evaluation: types.RuleEvaluation{ReadyToBuy: readyBuy, ReadyToSell: readySell},
	}
}

func (suite *SentimentTestSuite) TestComputeAllSources() {
	sample, view := Compute(Input{
		Conditions: []types.SymbolCondition{
			condition("BTC/USDC", true, false, 0, false),
			condition("ETH/USDC", false, true, 0, false),
			condition("SOL/USDC", false, false, 0.5, false),
			condition("ADA/USDC", true, false, 0.9, true),
			condition("DOT/USDC", false, false, 0.1, false),
		},
		Alerts: []types.NewsAlert{
			{Sentiment: types.SentimentPositive, ImpactScore: 0.8},
			{Sentiment: types.SentimentNegative, ImpactScore: 0.4},
		},
		FearGreed: optional.Some(30.0),
		TS:        suite.now,
	})

	suite.Equal(MarketSymbol, sample.Symbol)
	suite.Equal(types.Float(62.5), sample.TechnicalScore)
	suite.Equal(types.Float(60), sample.NewsScore)
	suite.Equal(types.Float(30), sample.FearGreed)
	suite.Equal(types.Float(55.25), sample.OverallScore)
	suite.Equal(types.Float(1), sample.Confidence)
	suite.Equal([]string{"technical", "news", "fear_greed"}, sample.SourcesUsed)

	suite.Equal(MoodNeutral, view.Mood)
	suite.Equal(2, view.BullishCount)
	suite.Equal(1, view.BearishCount)
	suite.Equal(1, view.NeutralCount)
	suite.Equal(sample, view.Latest)
}

func (suite *SentimentTestSuite) TestComputeWithoutInputsIsNeutral() {
	sample, view := Compute(Input{TS: suite.now})

	suite.Equal(types.Float(50), sample.OverallScore)
	suite.Equal(types.Float(0), sample.Confidence)
	suite.Empty(sample.SourcesUsed)
	suite.Equal(MoodNeutral, view.Mood)
}

func (suite *SentimentTestSuite) TestComputeIsDeterministic() {
	in := Input{
		Conditions: []types.SymbolCondition{condition("BTC/USDC", true, false, 0, false)},
		TS:         suite.now,
	}

	a, _ := Compute(in)
	b, _ := Compute(in)
	suite.Equal(a, b)
	suite.Equal(types.Float(100), a.OverallScore)
}

func (suite *SentimentTestSuite) TestMood() {
	suite.Equal(MoodBullish, Mood(60))
	suite.Equal(MoodNeutral, Mood(59.9))
	suite.Equal(MoodNeutral, Mood(40.1))
	suite.Equal(MoodBearish, Mood(40))
}

func (suite *SentimentTestSuite) TestFearGreedClient() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		suite.Equal("1", r.URL.Query().Get("limit"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"data":[{"value":"27","value_classification":"Fear"}]}`))
	}))
	defer server.Close()

	v, err := NewFearGreedClient(server.URL, time.Second).FearGreed(context.Background())
	suite.Require().NoError(err)
	suite.Equal(27.0, v)
}

func (suite *SentimentTestSuite) TestFearGreedClientErrors() {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path == "/empty" {
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"data":[]}`))

			return
		}

		w.WriteHeader(http.StatusBadGateway)
	}))
	defer server.Close()

	_, err := NewFearGreedClient(server.URL+"/empty", time.Second).FearGreed(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeDecodeError))

	_, err = NewFearGreedClient(server.URL+"/down", time.Second).FearGreed(context.Background())
	suite.True(errors.HasCode(err, errors.ErrCodeBadStatus))
}
