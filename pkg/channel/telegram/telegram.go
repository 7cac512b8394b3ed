package telegram

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"

	"comitebot/pkg/bus"
	"comitebot/pkg/channel"
	"comitebot/pkg/config"

	"github.com/mymmrac/telego"
	tu "github.com/mymmrac/telego/telegoutil"
)

const channelName = "telegram"
const messagePreviewLimit = 240

// botAPI is the part of *telego.Bot the adapter calls.
type botAPI interface {
	GetMe(ctx context.Context) (*telego.User, error)
	SendMessage(ctx context.Context, params *telego.SendMessageParams) (*telego.Message, error)
	AnswerCallbackQuery(ctx context.Context, params *telego.AnswerCallbackQueryParams) error
}

// Adapter receives Telegram updates by long polling and sends messages. It is
// both the inbound channel.Adapter and the outbound channel.Messenger.
type Adapter struct {
	cfg  config.TelegramConfig
	bot  botAPI
	poll func(ctx context.Context) (<-chan telego.Update, error)
	log  *slog.Logger
}

// NewAdapter validates the token and builds the bot client. No network call is
// made until Run.
func NewAdapter(cfg config.TelegramConfig, log *slog.Logger) (*Adapter, error) {
	token := strings.TrimSpace(cfg.Token)
	if token == "" {
		return nil, errors.New("TELEGRAM_TOKEN is required")
	}

	if log == nil {
		log = slog.Default()
	}

	var opts []telego.BotOption
	if proxy := strings.TrimSpace(cfg.Proxy); proxy != "" {
		proxyURL, err := url.Parse(proxy)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_PROXY %q: %w", proxy, err)
		}
		opts = append(opts, telego.WithHTTPClient(&http.Client{
			Transport: &http.Transport{Proxy: http.ProxyURL(proxyURL)},
		}))
	}

	bot, err := telego.NewBot(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("initialize telegram bot: %w", err)
	}

	return &Adapter{
		cfg: cfg,
		bot: bot,
		poll: func(ctx context.Context) (<-chan telego.Update, error) {
			return bot.UpdatesViaLongPolling(ctx, &telego.GetUpdatesParams{
				Timeout:        30,
				AllowedUpdates: []string{"message", "callback_query"},
			})
		},
		log: log.With("component", "channel.telegram"),
	}, nil
}

// Name returns the channel identifier used in events and logs.
func (a *Adapter) Name() string {
	return channelName
}

// Run long-polls Telegram and hands every update to handler. Updates of one
// user are handled in receipt order; different users run in parallel.
func (a *Adapter) Run(ctx context.Context, handler channel.Handler) error {
	if handler == nil {
		return errors.New("handler is required")
	}

	me, err := a.bot.GetMe(ctx)
	if err != nil {
		return fmt.Errorf("telegram getMe: %w", err)
	}
	if want := strings.TrimPrefix(a.cfg.BotUsername, "@"); want != "" && !strings.EqualFold(want, me.Username) {
		a.log.Warn("BOT_USERNAME does not match the token's bot", "configured", want, "actual", me.Username)
	}

	updates, err := a.poll(ctx)
	if err != nil {
		return fmt.Errorf("start long polling: %w", err)
	}

	dispatcher := channel.NewDispatcher(handler)
	defer dispatcher.Wait()

	a.log.Info("Telegram channel started", "username", me.Username)

	for {
		select {
		case <-ctx.Done():
			return nil
		case update, ok := <-updates:
			if !ok {
				if err := ctx.Err(); err != nil {
					return nil
				}
				return errors.New("telegram updates channel closed")
			}

			event, ok := toEvent(update, me.Username)
			if !ok {
				continue
			}
			a.log.Debug("Received update",
				"update_id", update.UpdateID,
				"kind", string(event.Kind),
				"user_id", event.UserID(),
				"chat_id", event.ChatID,
				"chat_type", event.ChatType,
				"content", previewText(event.Text),
			)
			dispatcher.Dispatch(ctx, event)
		}
	}
}

// SendMessage implements channel.Messenger.
func (a *Adapter) SendMessage(ctx context.Context, msg bus.OutboundMessage) (int, error) {
	params := tu.Message(tu.ID(msg.ChatID), msg.Text)
	if msg.TopicID > 0 {
		params.MessageThreadID = msg.TopicID
	}
	if msg.ParseMode != "" {
		params.ParseMode = msg.ParseMode
	}
	if markup := inlineKeyboard(msg.Buttons); markup != nil {
		params.ReplyMarkup = markup
	}
	params.LinkPreviewOptions = &telego.LinkPreviewOptions{IsDisabled: true}

	sent, err := a.bot.SendMessage(ctx, params)
	if err != nil {
		return 0, classifyError(err)
	}
	a.log.Debug("Sent message", "chat_id", msg.ChatID, "topic_id", msg.TopicID, "content", previewText(msg.Text))
	return sent.MessageID, nil
}

// AnswerCallback implements channel.Messenger. A non-empty alertText is shown
// as a modal alert.
func (a *Adapter) AnswerCallback(ctx context.Context, callbackID string, alertText string) error {
	params := &telego.AnswerCallbackQueryParams{CallbackQueryID: callbackID}
	if alertText != "" {
		params.Text = alertText
		params.ShowAlert = true
	}

	if err := a.bot.AnswerCallbackQuery(ctx, params); err != nil {
		return classifyError(err)
	}
	return nil
}

func inlineKeyboard(rows [][]bus.Button) *telego.InlineKeyboardMarkup {
	if len(rows) == 0 {
		return nil
	}

	keyboard := make([][]telego.InlineKeyboardButton, 0, len(rows))
	for _, row := range rows {
		buttons := make([]telego.InlineKeyboardButton, 0, len(row))
		for _, b := range row {
			button := telego.InlineKeyboardButton{Text: b.Text}
			if b.URL != "" {
				button.URL = b.URL
			} else {
				button.CallbackData = b.Data
			}
			buttons = append(buttons, button)
		}
		if len(buttons) > 0 {
			keyboard = append(keyboard, buttons)
		}
	}
	if len(keyboard) == 0 {
		return nil
	}

	return &telego.InlineKeyboardMarkup{InlineKeyboard: keyboard}
}

// previewText returns a bounded log-safe preview of message text.
func previewText(text string) string {
	trimmed := strings.TrimSpace(text)
	runes := []rune(trimmed)
	if len(runes) <= messagePreviewLimit {
		return trimmed
	}

	return string(runes[:messagePreviewLimit]) + "..."
}
