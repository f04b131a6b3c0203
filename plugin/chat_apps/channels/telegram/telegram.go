// Package telegram implements the Telegram Bot channel.
package telegram

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/dharmateja03/CalBot/plugin/chat_apps"
	"github.com/dharmateja03/CalBot/plugin/chat_apps/channels"
)

const secretTokenHeader = "X-Telegram-Bot-Api-Secret-Token"

// TelegramConfig holds configuration for the Telegram channel.
type TelegramConfig struct {
	BotToken string
	// WebhookSecret, when set, must match the secret token header
	// Telegram attaches to webhook deliveries.
	WebhookSecret string
}

// TelegramChannel implements ChatChannel for the Telegram Bot API.
// CalBot is text-only, so media updates are rejected during parsing.
type TelegramChannel struct {
	bot    *tgbotapi.BotAPI
	config *TelegramConfig
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(config *TelegramConfig) (*TelegramChannel, error) {
	bot, err := tgbotapi.NewBotAPI(config.BotToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	slog.Info("telegram channel ready", "bot", bot.Self.UserName)
	return &TelegramChannel{bot: bot, config: config}, nil
}

// Name returns the platform name.
func (t *TelegramChannel) Name() chat_apps.Platform {
	return chat_apps.PlatformTelegram
}

// ValidateWebhook checks the secret token header when one is
// configured.
func (t *TelegramChannel) ValidateWebhook(_ context.Context, headers map[string]string, _ []byte) error {
	if t.config.WebhookSecret == "" {
		return nil
	}
	if headers[secretTokenHeader] != t.config.WebhookSecret {
		return channels.ErrInvalidSignature
	}
	return nil
}

// ParseMessage parses the incoming webhook payload into an
// IncomingMessage.
func (t *TelegramChannel) ParseMessage(_ context.Context, payload []byte) (*chat_apps.IncomingMessage, error) {
	var update tgbotapi.Update
	if err := json.Unmarshal(payload, &update); err != nil {
		slog.Warn("telegram: failed to parse webhook payload", "error", err)
		return nil, channels.ErrInvalidPayload
	}

	var tgMsg *tgbotapi.Message
	switch {
	case update.Message != nil:
		tgMsg = update.Message
	case update.EditedMessage != nil:
		tgMsg = update.EditedMessage
	default:
		return nil, channels.ErrInvalidPayload
	}
	if tgMsg.From == nil {
		return nil, channels.ErrInvalidPayload
	}
	if tgMsg.Text == "" {
		return nil, channels.ErrUnsupportedMedia
	}

	msg := &chat_apps.IncomingMessage{
		Platform:       chat_apps.PlatformTelegram,
		PlatformUserID: strconv.FormatInt(tgMsg.From.ID, 10),
		PlatformChatID: strconv.FormatInt(tgMsg.Chat.ID, 10),
		Content:        tgMsg.Text,
		Timestamp:      time.Unix(int64(tgMsg.Date), 0).UTC(),
		Metadata: map[string]string{
			"update_id": strconv.Itoa(update.UpdateID),
			"username":  tgMsg.From.UserName,
		},
	}

	// Bot commands get a friendlier phrasing for the extractor.
	if msg.Content == "/start" {
		msg.Content = "what can you do"
	}
	return msg, nil
}

// SendMessage sends a text reply to Telegram.
func (t *TelegramChannel) SendMessage(_ context.Context, msg *chat_apps.OutgoingMessage) error {
	chatID, err := strconv.ParseInt(msg.PlatformChatID, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid chat ID: %w", err)
	}

	tgMsg := tgbotapi.NewMessage(chatID, msg.Content)
	if msg.ParseMode != "" {
		tgMsg.ParseMode = msg.ParseMode
	}
	if _, err := t.bot.Send(tgMsg); err != nil {
		return fmt.Errorf("failed to send telegram message: %w", err)
	}
	return nil
}

// Close closes the Telegram channel.
func (t *TelegramChannel) Close() error {
	return nil
}

// Ensure TelegramChannel implements ChatChannel.
var _ channels.ChatChannel = (*TelegramChannel)(nil)
