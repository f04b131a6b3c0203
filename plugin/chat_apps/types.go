// Package chat_apps provides chat platform integration for CalBot.
// Supported platforms: Telegram and the built-in web API.
package chat_apps

import "time"

// Platform represents a supported chat platform.
type Platform string

const (
	PlatformTelegram Platform = "telegram"
	PlatformWeb      Platform = "web"
)

// IsValid checks if the platform is valid.
func (p Platform) IsValid() bool {
	switch p {
	case PlatformTelegram, PlatformWeb:
		return true
	default:
		return false
	}
}

// IncomingMessage represents a message from a chat platform. CalBot is
// text-only: media messages are rejected at the channel boundary.
type IncomingMessage struct {
	Platform       Platform
	PlatformUserID string
	PlatformChatID string
	Content        string
	Metadata       map[string]string
	Timestamp      time.Time
}

// OutgoingMessage represents a reply to send back to a chat platform.
type OutgoingMessage struct {
	PlatformChatID string
	Content        string
	// ParseMode is the platform's rich-text mode (e.g. "Markdown").
	ParseMode string
}
