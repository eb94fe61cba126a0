package types

import (
	"time"

	"github.com/moznion/go-optional"
)

type Sentiment string

const (
	SentimentPositive Sentiment = "POSITIVE"
	SentimentNegative Sentiment = "NEGATIVE"
	SentimentNeutral  Sentiment = "NEUTRAL"
)

// ActionTaken describes what the alert engine did with a news alert.
type ActionTaken string

const (
	ActionNone          ActionTaken = "NONE"
	ActionNotified      ActionTaken = "NOTIFIED"
	ActionAutoEntry     ActionTaken = "AUTO_ENTRY"
	ActionAutoEntryFail ActionTaken = "AUTO_ENTRY_FAILED"
)

// MaxExcerptLength bounds NewsAlert.ContentExcerpt in characters.
const MaxExcerptLength = 500

// NewsAlert is an externally sourced news item after classification.
type NewsAlert struct {
	ID int64     `json:"id"`
	TS time.Time `json:"ts"`
	// SourceName is the feed's display name, never a URL.
	SourceName       string                `json:"source_name"`
	SubjectTag       string                `json:"subject_tag"`
	AssetSymbol      string                `json:"asset_symbol"`
	Sentiment        Sentiment             `json:"sentiment"`
	ImpactScore      Float                 `json:"impact_score"`
	Headline         string                `json:"headline"`
	ContentExcerpt   string                `json:"content_excerpt"`
	ActionTaken      ActionTaken           `json:"action_taken"`
	TradeWasExecuted bool                  `json:"trade_was_executed"`
	TradePair        optional.Option[Pair] `json:"trade_pair"`
}

// TruncateExcerpt cuts s to MaxExcerptLength runes.
func TruncateExcerpt(s string) string {
	r := []rune(s)
	if len(r) <= MaxExcerptLength {
		return s
	}

	return string(r[:MaxExcerptLength])
}

// SentimentSample is a persisted market-mood record.
type SentimentSample struct {
	ID             int64     `json:"id"`
	Symbol         string    `json:"symbol"`
	FearGreed      Float     `json:"fear_greed"`
	NewsScore      Float     `json:"news_score"`
	SocialScore    Float     `json:"social_score"`
	TechnicalScore Float     `json:"technical_score"`
	VolumeScore    Float     `json:"volume_score"`
	OverallScore   Float     `json:"overall_score"`
	Confidence     Float     `json:"confidence"`
	SourcesUsed    []string  `json:"sources_used"`
	TS             time.Time `json:"ts"`
}

// MarketSentiment is the model's market-mood view.
type MarketSentiment struct {
	Mood         string          `json:"mood"`
	OverallScore Float           `json:"overall_score"`
	BullishCount int             `json:"bullish_count"`
	BearishCount int             `json:"bearish_count"`
	NeutralCount int             `json:"neutral_count"`
	Latest       SentimentSample `json:"latest"`
}
