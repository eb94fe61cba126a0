package store

import (
	"database/sql"
	"encoding/json"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// InsertSentiment stores a market-mood sample.
func (s *Store) InsertSentiment(sample types.SentimentSample) (types.SentimentSample, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return sample, err
	}

	id, err := s.nextID("sentiment_id_seq")
	if err != nil {
		return sample, err
	}

	sample.ID = id
	sample.TS = sample.TS.UTC()

	_, err = s.sq.
		Insert("sentiment_samples").
		Columns("id", "symbol", "fear_greed", "news_score", "social_score", "technical_score",
			"volume_score", "overall_score", "confidence", "sources_used", "ts").
		Values(sample.ID, sample.Symbol,
			types.Finite(float64(sample.FearGreed), 0), types.Finite(float64(sample.NewsScore), 0),
			types.Finite(float64(sample.SocialScore), 0), types.Finite(float64(sample.TechnicalScore), 0),
			types.Finite(float64(sample.VolumeScore), 0), types.Finite(float64(sample.OverallScore), 0),
			types.Finite(float64(sample.Confidence), 0), strings.Join(sample.SourcesUsed, ","), sample.TS).
		RunWith(s.db).
		Exec()
	if err != nil {
		return sample, errors.Wrap(errors.ErrCodeStorageError, "failed to insert sentiment sample", err)
	}

	return sample, nil
}

// LatestSentiment returns the newest sample for symbol.
func (s *Store) LatestSentiment(symbol string) (optional.Option[types.SentimentSample], error) {
	if err := s.ready(); err != nil {
		return optional.None[types.SentimentSample](), err
	}

	var (
		out     types.SentimentSample
		sources sql.NullString
	)

	var fg, news, social, technical, volume, overall, confidence sql.NullFloat64

	err := s.sq.
		Select("id", "symbol", "fear_greed", "news_score", "social_score", "technical_score",
			"volume_score", "overall_score", "confidence", "sources_used", "ts").
		From("sentiment_samples").
		Where(squirrel.Eq{"symbol": symbol}).
		OrderBy("ts DESC", "id DESC").
		Limit(1).
		RunWith(s.db).
		QueryRow().
		Scan(&out.ID, &out.Symbol, &fg, &news, &social, &technical, &volume, &overall, &confidence, &sources, &out.TS)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[types.SentimentSample](), nil
	}

	if err != nil {
		return optional.None[types.SentimentSample](), errors.Wrap(errors.ErrCodeStorageError, "failed to query sentiment", err)
	}

	out.TS = out.TS.UTC()
	out.FearGreed = types.Float(fg.Float64)
	out.NewsScore = types.Float(news.Float64)
	out.SocialScore = types.Float(social.Float64)
	out.TechnicalScore = types.Float(technical.Float64)
	out.VolumeScore = types.Float(volume.Float64)
	out.OverallScore = types.Float(overall.Float64)
	out.Confidence = types.Float(confidence.Float64)
	out.SourcesUsed = []string{}

	if sources.String != "" {
		out.SourcesUsed = strings.Split(sources.String, ",")
	}

	return optional.Some(out), nil
}

// SavePortfolio stores the portfolio as the newest last-known snapshot and
// keeps only the most recent keep rows.
func (s *Store) SavePortfolio(p types.Portfolio, ts time.Time, keep int) error {
	payload, err := json.Marshal(p)
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageError, "failed to encode portfolio", err)
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return err
	}

	id, err := s.nextID("portfolio_id_seq")
	if err != nil {
		return err
	}

	_, err = s.sq.
		Insert("portfolio_snapshots").
		Columns("id", "ts", "payload").
		Values(id, ts.UTC(), string(payload)).
		RunWith(s.db).
		Exec()
	if err != nil {
		return errors.Wrap(errors.ErrCodeStorageError, "failed to insert portfolio snapshot", err)
	}

	if keep > 0 {
		_, err = s.sq.
			Delete("portfolio_snapshots").
			Where(squirrel.LtOrEq{"id": id - int64(keep)}).
			RunWith(s.db).
			Exec()
		if err != nil {
			return errors.Wrap(errors.ErrCodeStorageError, "failed to prune portfolio snapshots", err)
		}
	}

	return nil
}

// LatestPortfolio returns the newest stored portfolio and its timestamp.
func (s *Store) LatestPortfolio() (optional.Option[types.Portfolio], time.Time, error) {
	if err := s.ready(); err != nil {
		return optional.None[types.Portfolio](), time.Time{}, err
	}

	var (
		payload string
		ts      time.Time
	)

	err := s.sq.
		Select("payload", "ts").
		From("portfolio_snapshots").
		OrderBy("id DESC").
		Limit(1).
		RunWith(s.db).
		QueryRow().
		Scan(&payload, &ts)
	if errors.Is(err, sql.ErrNoRows) {
		return optional.None[types.Portfolio](), time.Time{}, nil
	}

	if err != nil {
		return optional.None[types.Portfolio](), time.Time{}, errors.Wrap(errors.ErrCodeStorageError, "failed to query portfolio snapshot", err)
	}

	var p types.Portfolio
	if err := json.Unmarshal([]byte(payload), &p); err != nil {
		return optional.None[types.Portfolio](), time.Time{}, errors.Wrap(errors.ErrCodeStorageError, "failed to decode portfolio snapshot", err)
	}

	return optional.Some(p), ts.UTC(), nil
}
