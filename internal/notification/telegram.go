package notification

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v3"
)

const defaultAPIURL = "https://api.telegram.org"

// TelegramConfig holds Bot API settings.
type TelegramConfig struct {
	Token   string
	APIURL  string
	Timeout time.Duration
}

// chatRecipient addresses a chat by numeric id or @username.
type chatRecipient string

func (r chatRecipient) Recipient() string { return string(r) }

// TelegramNotifier delivers messages through the Telegram Bot API.
type TelegramNotifier struct {
	bot *tele.Bot
}

// NewTelegramNotifier builds a notifier that does not poll for updates and
// does not contact the API until the first Send.
func NewTelegramNotifier(cfg TelegramConfig) (*TelegramNotifier, error) {
	if cfg.Token == "" {
		return nil, fmt.Errorf("telegram bot token is required")
	}
	apiURL := cfg.APIURL
	if apiURL == "" {
		apiURL = defaultAPIURL
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	bot, err := tele.NewBot(tele.Settings{
		URL:     strings.TrimRight(apiURL, "/"),
		Token:   cfg.Token,
		Client:  &http.Client{Timeout: timeout},
		Offline: true,
	})
	if err != nil {
		return nil, fmt.Errorf("telegram bot init: %w", err)
	}
	return &TelegramNotifier{bot: bot}, nil
}

// Send posts message as a chat message with an optional inline URL button.
func (n *TelegramNotifier) Send(ctx context.Context, message Message) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if message.Recipient == "" {
		return fmt.Errorf("recipient is required")
	}

	var opts []interface{}
	if message.ActionURL != "" {
		label := message.ActionLabel
		if label == "" {
			label = message.ActionURL
		}
		opts = append(opts, &tele.ReplyMarkup{
			InlineKeyboard: [][]tele.InlineButton{{{Text: label, URL: message.ActionURL}}},
		})
	}

	if _, err := n.bot.Send(chatRecipient(message.Recipient), message.Text, opts...); err != nil {
		return platformError(err)
	}
	return nil
}

func platformError(err error) error {
	var apiErr *tele.Error
	if errors.As(err, &apiErr) && apiErr.Description != "" {
		return &PlatformError{Description: apiErr.Description}
	}
	return &PlatformError{Description: strings.TrimPrefix(err.Error(), "telegram: ")}
}
