// Package channels provides the ChatChannel interface for chat
// platform integrations and the webhook router that feeds inbound
// messages into the scheduling engine.
package channels

import (
	"context"
	"io"
	"log/slog"
	"net/http"
	"sync"
	"time"

	"github.com/labstack/echo/v4"

	"github.com/dharmateja03/CalBot/plugin/chat_apps"
)

// ChatChannel defines the interface every chat platform integration
// implements.
type ChatChannel interface {
	// Name returns the platform name (e.g., "telegram").
	Name() chat_apps.Platform

	// ValidateWebhook verifies the incoming webhook request. Returns
	// an error if the request signature is invalid or malformed.
	ValidateWebhook(ctx context.Context, headers map[string]string, body []byte) error

	// ParseMessage parses the platform-specific webhook payload into
	// an IncomingMessage.
	ParseMessage(ctx context.Context, payload []byte) (*chat_apps.IncomingMessage, error)

	// SendMessage sends a reply to the chat platform.
	SendMessage(ctx context.Context, msg *chat_apps.OutgoingMessage) error

	// Close closes any open connections and releases resources.
	Close() error
}

// TurnHandler processes one user turn and returns the reply text. The
// router stays ignorant of scheduling semantics; the engine is wired
// in through this function.
type TurnHandler func(ctx context.Context, userID, text string) (string, error)

// ChannelRouter routes incoming webhook messages to the turn handler
// and replies through the originating channel. Concurrent-safe for
// Register and GetChannel.
type ChannelRouter struct {
	mu       sync.RWMutex
	registry map[chat_apps.Platform]ChatChannel
	handler  TurnHandler
	logger   *slog.Logger
}

// NewChannelRouter creates a new channel router.
func NewChannelRouter(handler TurnHandler, logger *slog.Logger) *ChannelRouter {
	if logger == nil {
		logger = slog.Default()
	}
	return &ChannelRouter{
		registry: make(map[chat_apps.Platform]ChatChannel),
		handler:  handler,
		logger:   logger,
	}
}

// Register registers a chat channel for a platform.
func (r *ChannelRouter) Register(channel ChatChannel) {
	r.mu.Lock()
	r.registry[channel.Name()] = channel
	r.mu.Unlock()
}

// GetChannel returns the channel for a platform, or nil if not
// registered.
func (r *ChannelRouter) GetChannel(platform chat_apps.Platform) ChatChannel {
	r.mu.RLock()
	ch := r.registry[platform]
	r.mu.RUnlock()
	return ch
}

// RegisterWebhooks attaches one webhook route per registered platform.
func (r *ChannelRouter) RegisterWebhooks(e *echo.Echo) {
	e.POST("/webhooks/:platform", r.handleWebhook)
}

// handleWebhook validates, parses, and processes one inbound webhook
// request. Platforms expect a prompt 200; the reply is sent through
// the channel, not the webhook response.
func (r *ChannelRouter) handleWebhook(c echo.Context) error {
	platform := chat_apps.Platform(c.Param("platform"))
	channel := r.GetChannel(platform)
	if channel == nil {
		return echo.NewHTTPError(http.StatusNotFound, "unknown platform")
	}

	body, err := io.ReadAll(c.Request().Body)
	if err != nil {
		return echo.NewHTTPError(http.StatusBadRequest, "failed to read body")
	}

	headers := make(map[string]string, len(c.Request().Header))
	for key := range c.Request().Header {
		headers[key] = c.Request().Header.Get(key)
	}

	ctx := c.Request().Context()
	if err := channel.ValidateWebhook(ctx, headers, body); err != nil {
		r.logger.Warn("webhook validation failed", "platform", platform, "err", err)
		return echo.NewHTTPError(http.StatusUnauthorized, "invalid webhook")
	}

	msg, err := channel.ParseMessage(ctx, body)
	if err != nil {
		r.logger.Warn("webhook payload unparseable", "platform", platform, "err", err)
		// Acknowledge so the platform does not redeliver garbage.
		return c.NoContent(http.StatusOK)
	}
	if msg.Content == "" {
		return c.NoContent(http.StatusOK)
	}

	// Process the turn detached from the webhook request so slow
	// resolutions do not trip platform delivery timeouts.
	go r.processTurn(channel, msg)

	return c.NoContent(http.StatusOK)
}

func (r *ChannelRouter) processTurn(channel ChatChannel, msg *chat_apps.IncomingMessage) {
	ctx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
	defer cancel()

	userID := string(msg.Platform) + ":" + msg.PlatformUserID
	reply, err := r.handler(ctx, userID, msg.Content)
	if err != nil {
		r.logger.Error("turn processing failed", "platform", msg.Platform, "user", userID, "err", err)
		reply = "Sorry, something went wrong handling that. Please try again."
	}

	if err := channel.SendMessage(ctx, &chat_apps.OutgoingMessage{
		PlatformChatID: msg.PlatformChatID,
		Content:        reply,
	}); err != nil {
		r.logger.Error("failed to send reply", "platform", msg.Platform, "chat", msg.PlatformChatID, "err", err)
	}
}

// Errors
var (
	ErrInvalidSignature = &ChannelError{Code: "INVALID_SIGNATURE", Message: "webhook signature validation failed"}
	ErrInvalidPayload   = &ChannelError{Code: "INVALID_PAYLOAD", Message: "could not parse webhook payload"}
	ErrUnsupportedMedia = &ChannelError{Code: "UNSUPPORTED_MEDIA", Message: "only text messages are supported"}
)

// ChannelError represents an error in channel operations.
type ChannelError struct {
	Code    string
	Message string
	Err     error
}

func (e *ChannelError) Error() string {
	if e.Err != nil {
		return e.Code + ": " + e.Message + ": " + e.Err.Error()
	}
	return e.Code + ": " + e.Message
}

func (e *ChannelError) Unwrap() error {
	return e.Err
}

var _ io.Closer = (*ChannelRouter)(nil)

// Close closes all registered channels.
func (r *ChannelRouter) Close() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	var firstErr error
	for _, channel := range r.registry {
		if err := channel.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}
