package bot

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog"
)

const (
	webhookQueueSize = 100
	longPollSeconds  = 30

	// DefaultSendTimeout bounds an outgoing Bot API call whose context
	// carries no deadline.
	DefaultSendTimeout = 10 * time.Second
)

// Telegram connects a Handler to the Telegram Bot API, by long polling or
// by webhook when a webhook URL is set.
type Telegram struct {
	api        *tgbotapi.BotAPI
	handler    *Handler
	webhookURL string
	updates    chan tgbotapi.Update
	wg         sync.WaitGroup
	logger     zerolog.Logger
}

// NewTelegram authenticates against the Bot API. endpoint may be empty for
// the public API; otherwise it is a format string like tgbotapi.APIEndpoint.
func NewTelegram(token, endpoint, webhookURL string, handler *Handler, logger zerolog.Logger) (*Telegram, error) {
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	// Outlives a long poll; individual sends are bounded by their context.
	client := &http.Client{Timeout: (longPollSeconds + 10) * time.Second}
	api, err := tgbotapi.NewBotAPIWithClient(token, endpoint, client)
	if err != nil {
		return nil, fmt.Errorf("connect telegram: %w", err)
	}

	return &Telegram{
		api:        api,
		handler:    handler,
		webhookURL: webhookURL,
		updates:    make(chan tgbotapi.Update, webhookQueueSize),
		logger:     logger.With().Str("component", "telegram").Str("bot", api.Self.UserName).Logger(),
	}, nil
}

// Send pushes a Markdown message. It satisfies broadcast.Sender.
func (t *Telegram) Send(ctx context.Context, chatID int64, text string) error {
	_, err := t.send(ctx, chatID, text, true)
	return err
}

// Edit replaces the text of a previously sent message.
func (t *Telegram) Edit(ctx context.Context, chatID int64, messageID int, text string) error {
	edit := tgbotapi.NewEditMessageText(chatID, messageID, text)
	if _, err := t.call(ctx, edit); err != nil {
		return fmt.Errorf("edit message %d: %w", messageID, err)
	}
	return nil
}

func (t *Telegram) send(ctx context.Context, chatID int64, text string, markdown bool) (int, error) {
	msg := tgbotapi.NewMessage(chatID, text)
	if markdown {
		msg.ParseMode = tgbotapi.ModeMarkdown
	}
	sent, err := t.call(ctx, msg)
	if err != nil {
		return 0, fmt.Errorf("send message to chat %d: %w", chatID, err)
	}
	return sent.MessageID, nil
}

// call performs one Bot API request, returning when ctx ends even if the
// request is still in flight. The library takes no context, so the
// abandoned request finishes in the background under the client timeout.
func (t *Telegram) call(ctx context.Context, c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if _, ok := ctx.Deadline(); !ok {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, DefaultSendTimeout)
		defer cancel()
	}

	type result struct {
		msg tgbotapi.Message
		err error
	}
	done := make(chan result, 1)
	go func() {
		msg, err := t.api.Send(c)
		done <- result{msg: msg, err: err}
	}()

	select {
	case r := <-done:
		return r.msg, r.err
	case <-ctx.Done():
		return tgbotapi.Message{}, ctx.Err()
	}
}

// Run receives updates until ctx is done, then waits for in-flight replies.
func (t *Telegram) Run(ctx context.Context) error {
	var updates tgbotapi.UpdatesChannel
	if t.webhookURL != "" {
		wh, err := tgbotapi.NewWebhook(t.webhookURL)
		if err != nil {
			return fmt.Errorf("build webhook: %w", err)
		}
		if _, err := t.api.Request(wh); err != nil {
			return fmt.Errorf("set webhook: %w", err)
		}
		updates = t.updates
		t.logger.Info().Str("webhook_url", t.webhookURL).Msg("receiving updates by webhook")
	} else {
		if _, err := t.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
			return fmt.Errorf("delete webhook: %w", err)
		}
		u := tgbotapi.NewUpdate(0)
		u.Timeout = longPollSeconds
		updates = t.api.GetUpdatesChan(u)
		defer t.api.StopReceivingUpdates()
		t.logger.Info().Msg("receiving updates by long polling")
	}

	for {
		select {
		case <-ctx.Done():
			t.wg.Wait()
			return nil
		case update, ok := <-updates:
			if !ok {
				t.wg.Wait()
				return nil
			}
			t.dispatch(ctx, update)
		}
	}
}

// WebhookHandler accepts updates posted by Telegram.
func (t *Telegram) WebhookHandler() http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		update, err := t.api.HandleUpdate(r)
		if err != nil {
			t.logger.Warn().Err(err).Msg("bad webhook update")
			http.Error(w, `{"detail":"invalid update"}`, http.StatusBadRequest)
			return
		}
		select {
		case t.updates <- *update:
		default:
			t.logger.Warn().Int("update_id", update.UpdateID).Msg("update queue full, dropping")
		}
		w.WriteHeader(http.StatusOK)
	})
}

// dispatch handles one update in its own goroutine.
func (t *Telegram) dispatch(ctx context.Context, update tgbotapi.Update) {
	m := update.Message
	if m == nil || m.From == nil || m.Chat == nil {
		return
	}

	req := Request{
		UserID:   m.From.ID,
		ChatID:   m.Chat.ID,
		Username: m.From.UserName,
	}
	if m.IsCommand() {
		req.Command = m.Command()
		req.Args = strings.Fields(m.CommandArguments())
	} else {
		req.Text = m.Text
	}

	t.wg.Add(1)
	go func() {
		defer t.wg.Done()
		t.respond(ctx, req)
	}()
}

func (t *Telegram) respond(ctx context.Context, req Request) {
	reply := t.handler.Handle(ctx, req)

	msgID, err := t.send(ctx, req.ChatID, reply.Text, reply.Markdown)
	if err != nil {
		t.logger.Warn().Err(err).Int64("chat_id", req.ChatID).Str("command", req.Command).Msg("reply failed")
		return
	}
	if reply.FollowUp == nil {
		return
	}

	select {
	case text, ok := <-reply.FollowUp:
		if !ok {
			return
		}
		if err := t.Edit(ctx, req.ChatID, msgID, text); err != nil {
			t.logger.Warn().Err(err).Int64("chat_id", req.ChatID).Msg("follow-up edit failed")
		}
	case <-ctx.Done():
	}
}
