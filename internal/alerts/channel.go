package alerts

import (
	"context"
	"fmt"
	"net"
	"net/smtp"
	"strconv"
	"strings"
	"time"

	"github.com/go-resty/resty/v2"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
)

// Message is what a channel delivers.
type Message struct {
	Title        string
	Body         string
	Notification types.Notification
}

// Text renders the message as plain text.
func (m Message) Text() string {
	if m.Body == "" {
		return m.Title
	}

	return m.Title + "\n\n" + m.Body
}

// Channel is one outbound notification medium.
type Channel interface {
	Kind() types.ChannelKind
	Send(ctx context.Context, msg Message) error
}

type sendMailFunc func(addr string, a smtp.Auth, from string, to []string, msg []byte) error

// EmailChannel sends plain text mail through an SMTP relay.
type EmailChannel struct {
	cfg      config.EmailConfig
	sendMail sendMailFunc
	now      func() time.Time
}

var _ Channel = (*EmailChannel)(nil)

func NewEmailChannel(cfg config.EmailConfig) *EmailChannel {
	return &EmailChannel{
		cfg:      cfg,
		sendMail: smtp.SendMail,
		now:      time.Now,
	}
}

func (c *EmailChannel) Kind() types.ChannelKind {
	return types.ChannelEmail
}

// Send hands the message to the relay. smtp.SendMail does not take a
// context, so a cancelled ctx only stops the wait.
func (c *EmailChannel) Send(ctx context.Context, msg Message) error {
	if len(c.cfg.To) == 0 {
		return errors.New(errors.ErrCodeChannelDisabled, "email channel has no recipients")
	}

	addr := net.JoinHostPort(c.cfg.Host, strconv.Itoa(c.cfg.Port))

	var auth smtp.Auth
	if c.cfg.Username != "" {
		auth = smtp.PlainAuth("", c.cfg.Username, c.cfg.Password, c.cfg.Host)
	}

	done := make(chan error, 1)

	go func() {
		done <- c.sendMail(addr, auth, c.cfg.From, c.cfg.To, c.compose(msg))
	}()

	select {
	case err := <-done:
		if err != nil {
			return errors.Wrap(errors.ErrCodeChannelFailed, "smtp delivery failed", err)
		}

		return nil
	case <-ctx.Done():
		return errors.Wrap(errors.ErrCodeTimeout, "smtp delivery interrupted", ctx.Err())
	}
}

func (c *EmailChannel) compose(msg Message) []byte {
	var b strings.Builder

	fmt.Fprintf(&b, "From: %s\r\n", c.cfg.From)
	fmt.Fprintf(&b, "To: %s\r\n", strings.Join(c.cfg.To, ", "))
	fmt.Fprintf(&b, "Subject: %s\r\n", strings.ReplaceAll(msg.Title, "\n", " "))
	fmt.Fprintf(&b, "Date: %s\r\n", c.now().Format(time.RFC1123Z))
	b.WriteString("MIME-Version: 1.0\r\n")
	b.WriteString("Content-Type: text/plain; charset=UTF-8\r\n\r\n")
	b.WriteString(strings.ReplaceAll(msg.Text(), "\n", "\r\n"))
	b.WriteString("\r\n")

	return []byte(b.String())
}

// WebhookPayload is the JSON body posted by WebhookChannel.
type WebhookPayload struct {
	Kind      types.NotificationKind   `json:"kind"`
	Action    types.NotificationAction `json:"action"`
	Title     string                   `json:"title"`
	Body      string                   `json:"body"`
	Symbol    string                   `json:"symbol,omitempty"`
	TradeID   *int64                   `json:"trade_id,omitempty"`
	Amount    types.Float              `json:"amount"`
	Price     types.Float              `json:"price"`
	ProfitPct types.Float              `json:"profit_pct"`
	ProfitAbs types.Float              `json:"profit_abs"`
	TS        time.Time                `json:"ts"`
}

// WebhookChannel posts messages as JSON.
type WebhookChannel struct {
	client *resty.Client
	url    string
}

var _ Channel = (*WebhookChannel)(nil)

func NewWebhookChannel(url string, timeout time.Duration) *WebhookChannel {
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &WebhookChannel{
		client: resty.New().SetTimeout(timeout),
		url:    url,
	}
}

func (c *WebhookChannel) Kind() types.ChannelKind {
	return types.ChannelWebhook
}

func (c *WebhookChannel) Send(ctx context.Context, msg Message) error {
	n := msg.Notification
	payload := WebhookPayload{
		Kind:      n.Kind,
		Action:    n.Action,
		Title:     msg.Title,
		Body:      msg.Body,
		Symbol:    n.Symbol,
		TradeID:   nil,
		Amount:    types.Float(n.Amount),
		Price:     types.Float(n.Price),
		ProfitPct: types.Float(n.ProfitPct),
		ProfitAbs: types.Float(n.ProfitAbs),
		TS:        n.TS.UTC(),
	}

	if n.TradeID.IsSome() {
		id := n.TradeID.Unwrap()
		payload.TradeID = &id
	}

	resp, err := c.client.R().
		SetContext(ctx).
		SetHeader("Content-Type", "application/json").
		SetBody(payload).
		Post(c.url)
	if err != nil {
		return errors.Wrap(errors.ErrCodeChannelFailed, "webhook request failed", err)
	}

	if resp.IsError() {
		return errors.Newf(errors.ErrCodeChannelFailed, "webhook answered %d", resp.StatusCode())
	}

	return nil
}
