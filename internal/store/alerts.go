package store

import (
	"database/sql"
	"strings"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// InsertAlert stores a classified news alert and returns it with its id.
func (s *Store) InsertAlert(alert types.NewsAlert) (types.NewsAlert, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return alert, err
	}

	id, err := s.nextID("news_alert_id_seq")
	if err != nil {
		return alert, err
	}

	alert.ID = id
	alert.TS = alert.TS.UTC()
	alert.ContentExcerpt = types.TruncateExcerpt(alert.ContentExcerpt)

	var pair any
	if alert.TradePair.IsSome() {
		pair = alert.TradePair.Unwrap().String()
	}

	_, err = s.sq.
		Insert("news_alerts").
		Columns("id", "ts", "source", "subject_tag", "asset_symbol", "sentiment", "impact_score",
			"headline", "content_excerpt", "action_taken", "trade_executed", "trade_pair").
		Values(alert.ID, alert.TS, alert.SourceName, alert.SubjectTag, alert.AssetSymbol,
			string(alert.Sentiment), float64(alert.ImpactScore), alert.Headline, alert.ContentExcerpt,
			string(alert.ActionTaken), alert.TradeWasExecuted, pair).
		RunWith(s.db).
		Exec()
	if err != nil {
		return alert, errors.Wrap(errors.ErrCodeStorageError, "failed to insert news alert", err)
	}

	return alert, nil
}

// RecentAlerts returns up to n alerts, newest first.
func (s *Store) RecentAlerts(n int) ([]types.NewsAlert, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := s.sq.
		Select("id", "ts", "source", "subject_tag", "asset_symbol", "sentiment", "impact_score",
			"headline", "content_excerpt", "action_taken", "trade_executed", "trade_pair").
		From("news_alerts").
		OrderBy("ts DESC", "id DESC")

	if n > 0 {
		query = query.Limit(uint64(n))
	}

	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageError, "failed to query news alerts", err)
	}
	defer rows.Close()

	alerts := make([]types.NewsAlert, 0)

	for rows.Next() {
		var (
			a                      types.NewsAlert
			subject, asset, excerp sql.NullString
			pair                   sql.NullString
			sentiment, action      string
			impact                 float64
		)

		err := rows.Scan(&a.ID, &a.TS, &a.SourceName, &subject, &asset, &sentiment, &impact,
			&a.Headline, &excerp, &action, &a.TradeWasExecuted, &pair)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageError, "failed to scan news alert", err)
		}

		a.TS = a.TS.UTC()
		a.SubjectTag = subject.String
		a.AssetSymbol = asset.String
		a.ContentExcerpt = excerp.String
		a.Sentiment = types.Sentiment(sentiment)
		a.ActionTaken = types.ActionTaken(action)
		a.ImpactScore = types.Float(impact)
		a.TradePair = optional.None[types.Pair]()

		if pair.Valid && pair.String != "" {
			a.TradePair = optional.Some(types.Pair(pair.String))
		}

		alerts = append(alerts, a)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageError, "error iterating news alerts", err)
	}

	return alerts, nil
}

// AlertSeen reports whether an alert with the same source and headline was
// stored at or after since. Used to drop repeated feed items.
func (s *Store) AlertSeen(source, headline string, since time.Time) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	var count int

	err := s.sq.
		Select("COUNT(*)").
		From("news_alerts").
		Where(squirrel.Eq{"source": source}).
		Where(squirrel.Expr("lower(trim(headline)) = ?", strings.ToLower(strings.TrimSpace(headline)))).
		Where(squirrel.GtOrEq{"ts": since.UTC()}).
		RunWith(s.db).
		QueryRow().
		Scan(&count)
	if err != nil {
		return false, errors.Wrap(errors.ErrCodeStorageError, "failed to look up news alert", err)
	}

	return count > 0, nil
}
