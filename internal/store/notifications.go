package store

import (
	"database/sql"
	"time"

	"github.com/Masterminds/squirrel"
	"github.com/moznion/go-optional"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// DedupeKey identifies a notification for duplicate suppression. With a
// trade id the key is (trade_id, action, channel); without one it is
// (payload_hash, channel).
type DedupeKey struct {
	TradeID     optional.Option[int64]
	Action      types.NotificationAction
	Channel     types.ChannelKind
	PayloadHash string
}

// KeyFor builds the dedupe key of n on channel.
func KeyFor(n types.Notification, channel types.ChannelKind) DedupeKey {
	return DedupeKey{
		TradeID:     n.TradeID,
		Action:      n.Action,
		Channel:     channel,
		PayloadHash: n.PayloadHash(),
	}
}

// NotificationFilter narrows Notifications. Zero fields do not filter.
type NotificationFilter struct {
	Kind    types.NotificationKind
	Channel types.ChannelKind
	Status  types.DeliveryStatus
	Since   time.Time
	Limit   int
}

var notificationColumns = []string{
	"id", "trade_id", "symbol", "action", "amount", "price", "profit_pct", "profit_abs",
	"notification_kind", "channel", "success", "ts", "status", "payload_hash",
}

// InsertNotification records one delivery attempt.
func (s *Store) InsertNotification(rec types.NotificationRecord) (types.NotificationRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.ready(); err != nil {
		return rec, err
	}

	id, err := s.nextID("notification_id_seq")
	if err != nil {
		return rec, err
	}

	rec.ID = id
	rec.TS = rec.TS.UTC()

	var tradeID any
	if rec.TradeID.IsSome() {
		tradeID = rec.TradeID.Unwrap()
	}

	_, err = s.sq.
		Insert("notifications").
		Columns(notificationColumns...).
		Values(rec.ID, tradeID, rec.Symbol, string(rec.Action),
			types.Finite(float64(rec.Amount), 0), types.Finite(float64(rec.Price), 0),
			types.Finite(float64(rec.ProfitPct), 0), types.Finite(float64(rec.ProfitAbs), 0),
			string(rec.Kind), string(rec.Channel), rec.Delivered, rec.TS, string(rec.Status), rec.PayloadHash).
		RunWith(s.db).
		Exec()
	if err != nil {
		return rec, errors.Wrap(errors.ErrCodeStorageError, "failed to insert notification", err)
	}

	return rec, nil
}

// DeliveredWithin reports whether a delivered notification matching key was
// recorded at or after since.
func (s *Store) DeliveredWithin(key DedupeKey, since time.Time) (bool, error) {
	if err := s.ready(); err != nil {
		return false, err
	}

	query := s.sq.
		Select("COUNT(*)").
		From("notifications").
		Where(squirrel.Eq{"channel": string(key.Channel), "success": true}).
		Where(squirrel.GtOrEq{"ts": since.UTC()})

	if key.TradeID.IsSome() {
		query = query.Where(squirrel.Eq{"trade_id": key.TradeID.Unwrap(), "action": string(key.Action)})
	} else {
		query = query.Where(squirrel.Eq{"payload_hash": key.PayloadHash})
	}

	var count int
	if err := query.RunWith(s.db).QueryRow().Scan(&count); err != nil {
		return false, errors.Wrap(errors.ErrCodeStorageError, "failed to look up notification", err)
	}

	return count > 0, nil
}

// Notifications returns matching records, newest first.
func (s *Store) Notifications(filter NotificationFilter) ([]types.NotificationRecord, error) {
	if err := s.ready(); err != nil {
		return nil, err
	}

	query := s.sq.
		Select(notificationColumns...).
		From("notifications").
		OrderBy("ts DESC", "id DESC")

	if filter.Kind != "" {
		query = query.Where(squirrel.Eq{"notification_kind": string(filter.Kind)})
	}

	if filter.Channel != "" {
		query = query.Where(squirrel.Eq{"channel": string(filter.Channel)})
	}

	if filter.Status != "" {
		query = query.Where(squirrel.Eq{"status": string(filter.Status)})
	}

	if !filter.Since.IsZero() {
		query = query.Where(squirrel.GtOrEq{"ts": filter.Since.UTC()})
	}

	if filter.Limit > 0 {
		query = query.Limit(uint64(filter.Limit))
	}

	rows, err := query.RunWith(s.db).Query()
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageError, "failed to query notifications", err)
	}
	defer rows.Close()

	out := make([]types.NotificationRecord, 0)

	for rows.Next() {
		var (
			r                            types.NotificationRecord
			tradeID                      sql.NullInt64
			symbol, hash                 sql.NullString
			amount, price, pct, abs      sql.NullFloat64
			action, kind, channel, state string
		)

		err := rows.Scan(&r.ID, &tradeID, &symbol, &action, &amount, &price, &pct, &abs,
			&kind, &channel, &r.Delivered, &r.TS, &state, &hash)
		if err != nil {
			return nil, errors.Wrap(errors.ErrCodeStorageError, "failed to scan notification", err)
		}

		r.TS = r.TS.UTC()
		r.TradeID = optional.None[int64]()

		if tradeID.Valid {
			r.TradeID = optional.Some(tradeID.Int64)
		}

		r.Symbol = symbol.String
		r.Action = types.NotificationAction(action)
		r.Amount = types.Float(amount.Float64)
		r.Price = types.Float(price.Float64)
		r.ProfitPct = types.Float(pct.Float64)
		r.ProfitAbs = types.Float(abs.Float64)
		r.Kind = types.NotificationKind(kind)
		r.Channel = types.ChannelKind(channel)
		r.Status = types.DeliveryStatus(state)
		r.PayloadHash = hash.String

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(errors.ErrCodeStorageError, "error iterating notifications", err)
	}

	return out, nil
}
