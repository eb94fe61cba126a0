// Package chat is the operator chat bot: a long-poll loop over the Bot API
// that answers commands and inline buttons from one authorized chat, and the
// outbound chat channel of the notification engine.
//
// Every outbound message passes the sanitizer and is split to the platform
// limit.
package chat

import (
	"context"
	"time"

	"github.com/cenkalti/backoff/v4"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rxtech-lab/argo-monitor/internal/alerts"
	"github.com/rxtech-lab/argo-monitor/internal/config"
	"github.com/rxtech-lab/argo-monitor/internal/logger"
	"github.com/rxtech-lab/argo-monitor/internal/metrics"
	"github.com/rxtech-lab/argo-monitor/internal/sanitize"
	"github.com/rxtech-lab/argo-monitor/internal/types"
	"github.com/rxtech-lab/argo-monitor/pkg/errors"
	"go.uber.org/zap"
)

// BotAPI is the part of the Bot API client the bot uses.
type BotAPI interface {
	GetUpdates(config tgbotapi.UpdateConfig) ([]tgbotapi.Update, error)
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error)
}

// NewBotAPI connects to the Bot API with the configured token and endpoint.
func NewBotAPI(cfg config.ChatConfig) (BotAPI, error) {
	if cfg.Token == "" {
		return nil, errors.New(errors.ErrCodeMissingParameter, "chat token is required")
	}

	endpoint := cfg.APIEndpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}

	api, err := tgbotapi.NewBotAPIWithAPIEndpoint(cfg.Token, endpoint)
	if err != nil {
		return nil, errors.Wrap(errors.ErrCodeAuthFailed, "failed to connect the chat bot", err)
	}

	return api, nil
}

type Options struct {
	Config   config.ChatConfig
	API      BotAPI
	Commands *Commands
	Metrics  *metrics.Metrics
	Logger   *logger.Logger
}

type Bot struct {
	api         BotAPI
	chatID      int64
	pollTimeout int
	commands    *Commands
	sanitizer   *sanitize.Sanitizer
	metrics     *metrics.Metrics
	logger      *logger.Logger
	offset      int
	newBackOff  func() backoff.BackOff
}

var _ alerts.Channel = (*Bot)(nil)

func New(opts Options) *Bot {
	return &Bot{
		api:         opts.API,
		chatID:      opts.Config.AuthorizedChatID,
		pollTimeout: opts.Config.PollTimeoutS,
		commands:    opts.Commands,
		sanitizer:   sanitize.New(opts.Config.BrandBlocklist, opts.Config.BrandReplacement),
		metrics:     opts.Metrics,
		logger:      opts.Logger.Named("chat"),
		offset:      0,
		newBackOff: func() backoff.BackOff {
			b := backoff.NewExponentialBackOff()
			b.InitialInterval = time.Second
			b.MaxInterval = time.Minute
			b.MaxElapsedTime = 0

			return b
		},
	}
}

func (b *Bot) Kind() types.ChannelKind {
	return types.ChannelChat
}

// Send delivers a notification to the authorized chat.
func (b *Bot) Send(ctx context.Context, msg alerts.Message) error {
	if b.chatID == 0 {
		return errors.New(errors.ErrCodeChannelDisabled, "no authorized chat configured")
	}

	if err := ctx.Err(); err != nil {
		return errors.Wrap(errors.ErrCodeTimeout, "chat delivery interrupted", err)
	}

	return b.send(b.chatID, msg.Text(), nil)
}

// Run polls for updates until ctx is done. Poll failures are retried with
// exponential backoff; a failing command never stops the loop.
func (b *Bot) Run(ctx context.Context) error {
	if b.chatID == 0 {
		b.logger.Warn("Chat bot has no authorized chat, every update will be ignored")
	}

	retry := backoff.WithContext(b.newBackOff(), ctx)

	b.logger.Info("Chat bot polling", zap.Int64("chat_id", b.chatID))

	for {
		if ctx.Err() != nil {
			return nil
		}

		updates, err := b.poll(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil
			}

			wait := retry.NextBackOff()
			if wait == backoff.Stop {
				return nil
			}

			b.logger.Warn("Chat poll failed", zap.Error(err), zap.Duration("retry_in", wait))

			select {
			case <-ctx.Done():
				return nil
			case <-time.After(wait):
			}

			continue
		}

		retry.Reset()

		for _, u := range updates {
			if u.UpdateID >= b.offset {
				b.offset = u.UpdateID + 1
			}

			b.Handle(ctx, u)
		}
	}
}

type pollResult struct {
	updates []tgbotapi.Update
	err     error
}

// poll runs one long-poll request. The request itself cannot be cancelled,
// so a done ctx abandons it.
func (b *Bot) poll(ctx context.Context) ([]tgbotapi.Update, error) {
	cfg := tgbotapi.NewUpdate(b.offset)
	cfg.Timeout = b.pollTimeout
	cfg.AllowedUpdates = []string{"message", "callback_query"}

	done := make(chan pollResult, 1)

	go func() {
		updates, err := b.api.GetUpdates(cfg)
		done <- pollResult{updates: updates, err: err}
	}()

	select {
	case <-ctx.Done():
		return nil, ctx.Err()
	case res := <-done:
		return res.updates, res.err
	}
}

// Handle answers one update. Updates from any chat other than the
// authorized one are dropped without a reply.
func (b *Bot) Handle(ctx context.Context, u tgbotapi.Update) {
	chat := u.FromChat()
	if chat == nil {
		return
	}

	if b.chatID == 0 || chat.ID != b.chatID {
		b.logger.Warn("Ignoring update from unauthorized chat", zap.Int64("chat_id", chat.ID))
		b.metrics.AddChatCommand("unauthorized", false)

		return
	}

	var (
		name  string
		reply Reply
	)

	switch {
	case u.CallbackQuery != nil:
		if _, err := b.api.Request(tgbotapi.NewCallback(u.CallbackQuery.ID, "")); err != nil {
			b.logger.Debug("Failed to acknowledge callback", zap.Error(err))
		}

		name, reply = b.run(func() (string, Reply) {
			return b.commands.Callback(ctx, u.CallbackQuery.Data)
		})
	case u.Message != nil && u.Message.IsCommand():
		cmd, args := u.Message.Command(), u.Message.CommandArguments()
		name, reply = b.run(func() (string, Reply) {
			return cmd, b.commands.Execute(ctx, cmd, args)
		})
	default:
		return
	}

	b.metrics.AddChatCommand(name, reply.OK)

	if err := b.send(chat.ID, reply.Text, reply.Keyboard); err != nil {
		b.logger.Warn("Failed to send chat reply", zap.String("command", name), zap.Error(err))
	}
}

// run shields the loop from a panicking command.
func (b *Bot) run(fn func() (string, Reply)) (name string, reply Reply) {
	defer func() {
		if r := recover(); r != nil {
			b.logger.Error("Chat command panicked", zap.Any("panic", r))

			name = "panic"
			reply = failure(errors.Newf(errors.ErrCodeInternal, "command failed: %v", r))
		}
	}()

	return fn()
}

// send sanitizes text and sends it in chunks. The keyboard goes with the
// last chunk. Text that sanitizes to nothing is not sent and reported as a
// failed delivery.
func (b *Bot) send(chatID int64, text string, keyboard *tgbotapi.InlineKeyboardMarkup) error {
	text = b.sanitizer.Sanitize(text)
	if text == "" {
		return errors.New(errors.ErrCodeChannelFailed, "message is empty after sanitizing")
	}

	chunks := Split(text, MaxMessageLength)

	for i, chunk := range chunks {
		msg := tgbotapi.NewMessage(chatID, chunk)
		msg.DisableWebPagePreview = true

		if keyboard != nil && i == len(chunks)-1 {
			msg.ReplyMarkup = *keyboard
		}

		if _, err := b.api.Send(msg); err != nil {
			return errors.Wrap(errors.ErrCodeChannelFailed, "chat send failed", err)
		}
	}

	return nil
}
