// Package store provides persistence for CalBot: locally-held calendar
// events, per-user scheduling preferences, and chat history.
package store

import (
	"context"

	"github.com/pkg/errors"

	"github.com/dharmateja03/CalBot/internal/profile"
)

// ErrNotFound is returned by deletes and lookups that target a row
// that does not exist.
var ErrNotFound = errors.New("not found")

// Store provides database access to all raw objects.
type Store struct {
	profile *profile.Profile
	driver  Driver
}

// Driver is the database driver interface implemented by sqlite and postgres.
type Driver interface {
	Migrate(ctx context.Context) error
	Close() error

	// Calendar events (backing the local calendar provider).
	CreateCalendarEvent(ctx context.Context, create *CalendarEvent) (*CalendarEvent, error)
	ListCalendarEvents(ctx context.Context, find *FindCalendarEvent) ([]*CalendarEvent, error)
	DeleteCalendarEvent(ctx context.Context, delete *DeleteCalendarEvent) error

	// Per-user scheduling preferences.
	UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error)
	GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferences, error)

	// Chat history.
	CreateChatMessage(ctx context.Context, create *ChatMessage) (*ChatMessage, error)
	ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error)
	DeleteChatMessages(ctx context.Context, delete *DeleteChatMessage) error
}

// New creates a new instance of Store.
func New(driver Driver, profile *profile.Profile) *Store {
	return &Store{
		driver:  driver,
		profile: profile,
	}
}

func (s *Store) Migrate(ctx context.Context) error {
	return s.driver.Migrate(ctx)
}

func (s *Store) Close() error {
	return s.driver.Close()
}

func (s *Store) CreateCalendarEvent(ctx context.Context, create *CalendarEvent) (*CalendarEvent, error) {
	return s.driver.CreateCalendarEvent(ctx, create)
}

func (s *Store) ListCalendarEvents(ctx context.Context, find *FindCalendarEvent) ([]*CalendarEvent, error) {
	return s.driver.ListCalendarEvents(ctx, find)
}

func (s *Store) DeleteCalendarEvent(ctx context.Context, delete *DeleteCalendarEvent) error {
	return s.driver.DeleteCalendarEvent(ctx, delete)
}

func (s *Store) UpsertUserPreferences(ctx context.Context, upsert *UpsertUserPreferences) (*UserPreferences, error) {
	return s.driver.UpsertUserPreferences(ctx, upsert)
}

func (s *Store) GetUserPreferences(ctx context.Context, find *FindUserPreferences) (*UserPreferences, error) {
	return s.driver.GetUserPreferences(ctx, find)
}

func (s *Store) CreateChatMessage(ctx context.Context, create *ChatMessage) (*ChatMessage, error) {
	return s.driver.CreateChatMessage(ctx, create)
}

func (s *Store) ListChatMessages(ctx context.Context, find *FindChatMessage) ([]*ChatMessage, error) {
	return s.driver.ListChatMessages(ctx, find)
}

func (s *Store) DeleteChatMessages(ctx context.Context, delete *DeleteChatMessage) error {
	return s.driver.DeleteChatMessages(ctx, delete)
}
