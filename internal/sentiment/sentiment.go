// Package sentiment derives the market mood from the current rule
// conditions, the recent news alerts and an optional fear and greed index.
package sentiment

import (
	"context"
	"math"
	"strconv"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// MarketSymbol is the symbol under which market-wide samples are stored.
const MarketSymbol = "MARKET"

const (
	MoodBullish = "BULLISH"
	MoodBearish = "BEARISH"
	MoodNeutral = "NEUTRAL"
)

// Source weights of the overall score. Missing sources are left out and the
// remaining weights renormalized.
const (
	weightTechnical = 0.5
	weightNews      = 0.3
	weightFearGreed = 0.2
)

// trendThreshold is the |trend| beyond which a symbol counts as bullish or
// bearish when neither side is ready.
const trendThreshold = 0.3

// Input is everything one sample is computed from.
type Input struct {
	Conditions []types.SymbolCondition
	Alerts     []types.NewsAlert
	FearGreed  optional.Option[float64]
	TS         time.Time
}

// Compute returns the persisted sample and the dashboard view for in. It is
// pure: the same input gives the same output.
func Compute(in Input) (types.SentimentSample, types.MarketSentiment) {
	sample := types.SentimentSample{
		Symbol:      MarketSymbol,
		SourcesUsed: []string{},
		TS:          in.TS.UTC(),
	}
	view := types.MarketSentiment{}

	var (
		weighted float64
		weights  float64
	)

	bull, bear, neutral := 0, 0, 0

	for _, c := range in.Conditions {
		if c.Snapshot.Stale {
			continue
		}

		switch {
		case c.Evaluation.ReadyToBuy && !c.Evaluation.ReadyToSell:
			bull++
		case c.Evaluation.ReadyToSell && !c.Evaluation.ReadyToBuy:
			bear++
		case float64(c.Snapshot.Trend) > trendThreshold:
			bull++
		case float64(c.Snapshot.Trend) < -trendThreshold:
			bear++
		default:
			neutral++
		}
	}

	view.BullishCount, view.BearishCount, view.NeutralCount = bull, bear, neutral

	if total := bull + bear + neutral; total > 0 {
		sample.TechnicalScore = types.Float(types.Round(50+50*float64(bull-bear)/float64(total), 2))
		sample.SourcesUsed = append(sample.SourcesUsed, "technical")
		weighted += weightTechnical * float64(sample.TechnicalScore)
		weights += weightTechnical
	}

	if score, ok := newsScore(in.Alerts); ok {
		sample.NewsScore = types.Float(score)
		sample.SourcesUsed = append(sample.SourcesUsed, "news")
		weighted += weightNews * score
		weights += weightNews
	}

	if in.FearGreed.IsSome() {
		fg := math.Max(0, math.Min(100, in.FearGreed.Unwrap()))
		sample.FearGreed = types.Float(fg)
		sample.SourcesUsed = append(sample.SourcesUsed, "fear_greed")
		weighted += weightFearGreed * fg
		weights += weightFearGreed
	}

	overall := 50.0
	if weights > 0 {
		overall = weighted / weights
	}

	sample.OverallScore = types.Float(types.Round(overall, 2))
	sample.Confidence = types.Float(types.Round(weights, 2))

	view.OverallScore = sample.OverallScore
	view.Mood = Mood(overall)
	view.Latest = sample

	return sample, view
}

// newsScore maps the signed impact of the alerts onto [0, 100].
func newsScore(alerts []types.NewsAlert) (float64, bool) {
	if len(alerts) == 0 {
		return 0, false
	}

	var sum float64

	for _, a := range alerts {
		impact := types.Finite(float64(a.ImpactScore), 0)

		switch a.Sentiment {
		case types.SentimentPositive:
			sum += impact
		case types.SentimentNegative:
			sum -= impact
		}
	}

	return types.Round(50+50*sum/float64(len(alerts)), 2), true
}

// Mood labels an overall score.
func Mood(score float64) string {
	switch {
	case score >= 60:
		return MoodBullish
	case score <= 40:
		return MoodBearish
	default:
		return MoodNeutral
	}
}

// FearGreedSource reads the crypto fear and greed index.
type FearGreedSource interface {
	FearGreed(ctx context.Context) (float64, error)
}

type fearGreedResponse struct {
	Data []struct {
		Value          string `json:"value"`
		Classification string `json:"value_classification"`
	} `json:"data"`
}

// FearGreedClient queries an alternative.me compatible endpoint.
type FearGreedClient struct {
	client *resty.Client
	url    string
}

func NewFearGreedClient(url string, timeout time.Duration) *FearGreedClient {
	return &FearGreedClient{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

func (c *FearGreedClient) FearGreed(ctx context.Context) (float64, error) {
	var out fearGreedResponse

	resp, err := c.client.R().
		SetContext(ctx).
		SetQueryParam("limit", "1").
		SetResult(&out).
		Get(c.url)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeUnreachable, "fear and greed request failed", err)
	}

	if resp.IsError() {
		return 0, errors.Newf(errors.ErrCodeBadStatus, "fear and greed index answered %d", resp.StatusCode())
	}

	if len(out.Data) == 0 {
		return 0, errors.New(errors.ErrCodeDecodeError, "fear and greed index returned no data")
	}

	v, err := strconv.ParseFloat(out.Data[0].Value, 64)
	if err != nil {
		return 0, errors.Wrap(errors.ErrCodeDecodeError, "fear and greed value is not a number", err)
	}

	return v, nil
}
