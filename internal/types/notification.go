package types

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/moznion/go-optional"
)

type NotificationAction string

const (
	NotificationActionBuy   NotificationAction = "BUY"
	NotificationActionSell  NotificationAction = "SELL"
	NotificationActionAlert NotificationAction = "ALERT"
)

// NotificationKind is the alert category operators switch on and off.
type NotificationKind string

const (
	KindTradingSignal    NotificationKind = "trading_signal"
	KindProfitLoss       NotificationKind = "profit_loss"
	KindSystemStatus     NotificationKind = "system_status"
	KindError            NotificationKind = "error"
	KindBacktestComplete NotificationKind = "backtest_complete"
	KindStrategyChange   NotificationKind = "strategy_change"
	KindNewsAlert        NotificationKind = "news_alert"
)

// AllNotificationKinds lists every kind in display order.
var AllNotificationKinds = []NotificationKind{
	KindTradingSignal,
	KindProfitLoss,
	KindSystemStatus,
	KindError,
	KindBacktestComplete,
	KindStrategyChange,
	KindNewsAlert,
}

type ChannelKind string

const (
	ChannelChat    ChannelKind = "chat"
	ChannelEmail   ChannelKind = "email"
	ChannelWebhook ChannelKind = "webhook"
)

// DeliveryStatus is the outcome recorded for each delivery attempt.
type DeliveryStatus string

const (
	StatusDelivered   DeliveryStatus = "delivered"
	StatusFailed      DeliveryStatus = "failed"
	StatusSuppressed  DeliveryStatus = "suppressed"
	StatusQuietHours  DeliveryStatus = "quiet_hours"
	StatusRateLimited DeliveryStatus = "rate_limited"
	StatusDisabled    DeliveryStatus = "disabled"
)

// Notification is an outbound message before it is routed to channels.
type Notification struct {
	Kind      NotificationKind
	Action    NotificationAction
	TradeID   optional.Option[int64]
	Symbol    string
	Amount    float64
	Price     float64
	ProfitPct float64
	ProfitAbs float64
	Title     string
	Body      string
	TS        time.Time
}

// PayloadHash identifies the notification content for duplicate suppression
// when no trade id is available.
func (n Notification) PayloadHash() string {
	sum := sha256.Sum256([]byte(fmt.Sprintf("%s|%s|%s|%s", n.Kind, n.Action, n.Symbol, n.Title)))

	return hex.EncodeToString(sum[:8])
}

// NotificationRecord is one persisted delivery attempt.
type NotificationRecord struct {
	ID          int64                  `json:"id"`
	TS          time.Time              `json:"ts"`
	TradeID     optional.Option[int64] `json:"trade_id"`
	Symbol      string                 `json:"symbol"`
	Action      NotificationAction     `json:"action"`
	Amount      Float                  `json:"amount"`
	Price       Float                  `json:"price"`
	ProfitPct   Float                  `json:"profit_pct"`
	ProfitAbs   Float                  `json:"profit_abs"`
	Kind        NotificationKind       `json:"notification_kind"`
	Channel     ChannelKind            `json:"channel"`
	Delivered   bool                   `json:"success"`
	Status      DeliveryStatus         `json:"status"`
	PayloadHash string                 `json:"payload_hash"`
}

// RecordFor builds the record of a delivery attempt of n on channel.
func RecordFor(n Notification, channel ChannelKind, status DeliveryStatus, ts time.Time) NotificationRecord {
	return NotificationRecord{
		ID:          0,
		TS:          ts,
		TradeID:     n.TradeID,
		Symbol:      n.Symbol,
		Action:      n.Action,
		Amount:      Float(n.Amount),
		Price:       Float(n.Price),
		ProfitPct:   Float(n.ProfitPct),
		ProfitAbs:   Float(n.ProfitAbs),
		Kind:        n.Kind,
		Channel:     channel,
		Delivered:   status == StatusDelivered,
		Status:      status,
		PayloadHash: n.PayloadHash(),
	}
}
