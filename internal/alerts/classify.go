package alerts

import (
	"math"
	"strings"
	"unicode"

	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/shopspring/decimal"
)

// Sentiment multipliers of the impact score.
var sentimentMultiplier = map[types.Sentiment]float64{
	types.SentimentPositive: 1.0,
	types.SentimentNegative: 0.3,
	types.SentimentNeutral:  0.6,
}

const (
	powerWordBonus = 0.1
	maxContentMult = 1.5
)

// Classifier scores news text with configured keyword lists. It holds no
// state besides its lookup tables and is safe for concurrent use.
type Classifier struct {
	cfg      config.AlertsConfig
	positive map[string]struct{}
	negative map[string]struct{}
	power    map[string]struct{}
	aliases  map[string]string
	universe map[string]types.Pair
}

func NewClassifier(cfg config.AlertsConfig, universe []types.Pair) *Classifier {
	aliases := make(map[string]string, len(cfg.AssetAliases))
	for k, v := range cfg.AssetAliases {
		aliases[strings.ToLower(k)] = strings.ToUpper(v)
	}

	byBase := make(map[string]types.Pair, len(universe))
	for _, p := range universe {
		byBase[p.Base()] = p
	}

	return &Classifier{
		cfg:      cfg,
		positive: wordSet(cfg.PositiveWords),
		negative: wordSet(cfg.NegativeWords),
		power:    wordSet(cfg.PowerWords),
		aliases:  aliases,
		universe: byBase,
	}
}

func wordSet(words []string) map[string]struct{} {
	out := make(map[string]struct{}, len(words))
	for _, w := range words {
		out[strings.ToLower(strings.TrimSpace(w))] = struct{}{}
	}

	return out
}

func tokens(text string) []string {
	return strings.FieldsFunc(strings.ToLower(text), func(r rune) bool {
		return !unicode.IsLetter(r) && !unicode.IsDigit(r)
	})
}

func count(words []string, set map[string]struct{}) int {
	n := 0

	for _, w := range words {
		if _, ok := set[w]; ok {
			n++
		}
	}

	return n
}

// Sentiment counts positive and negative keywords. Confidence is the margin
// of the winning side over all matches.
func (c *Classifier) Sentiment(text string) (types.Sentiment, float64) {
	words := tokens(text)
	pos := count(words, c.positive)
	neg := count(words, c.negative)

	if pos+neg == 0 {
		return types.SentimentNeutral, 0
	}

	confidence := math.Abs(float64(pos-neg)) / float64(pos+neg)

	switch {
	case pos > neg:
		return types.SentimentPositive, confidence
	case neg > pos:
		return types.SentimentNegative, confidence
	default:
		return types.SentimentNeutral, confidence
	}
}

// Impact is base_weight(subject) × sentiment multiplier × content multiplier,
// clamped to [0, 1].
func (c *Classifier) Impact(subject string, sentiment types.Sentiment, text string) float64 {
	content := math.Min(maxContentMult, 1+powerWordBonus*float64(count(tokens(text), c.power)))
	impact := c.cfg.SubjectWeight(subject) * sentimentMultiplier[sentiment] * content

	return types.Round(math.Max(0, math.Min(1, impact)), 4)
}

// Asset returns the first base asset named in text, through the alias table
// or by its ticker when the ticker is in the universe.
func (c *Classifier) Asset(text string) string {
	for _, w := range tokens(text) {
		if asset, ok := c.aliases[w]; ok {
			return asset
		}

		if _, ok := c.universe[strings.ToUpper(w)]; ok {
			return strings.ToUpper(w)
		}
	}

	return ""
}

// PairFor maps an asset onto the monitored pair trading it.
func (c *Classifier) PairFor(asset string) (types.Pair, bool) {
	p, ok := c.universe[strings.ToUpper(asset)]

	return p, ok
}

// Eligible reports whether an alert may trigger an automatic entry.
func (c *Classifier) Eligible(alert types.NewsAlert, autoTrading bool) bool {
	if alert.Sentiment != types.SentimentPositive || !autoTrading {
		return false
	}

	if float64(alert.ImpactScore) < c.cfg.ImpactThreshold(alert.SubjectTag) {
		return false
	}

	_, mapped := c.PairFor(alert.AssetSymbol)

	return mapped
}

// AutoStake is min(base × (1 + (impact − 0.5)), capAmount), rounded down to
// cents.
func AutoStake(base, capAmount, impact float64) float64 {
	v := decimal.NewFromFloat(base).Mul(decimal.NewFromFloat(0.5 + impact))
	if c := decimal.NewFromFloat(capAmount); v.GreaterThan(c) {
		v = c
	}

	return v.RoundDown(2).InexactFloat64()
}
