// Package calendar defines the calendar backend abstraction used by the
// scheduling engine. Two providers are available: a local store-backed
// provider and a Google Calendar provider.
package calendar

import (
	"context"
	"time"

	"github.com/pkg/errors"
)

// ErrNotFound is returned when an event lookup or deletion targets an
// event that does not exist in the backend.
var ErrNotFound = errors.New("calendar: event not found")

// Event is a committed calendar entry, normalized across providers.
// Times are always UTC.
type Event struct {
	// UID is the provider-assigned stable identifier.
	UID         string
	UserID      string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	// Source records who created the event: "user" for imported or
	// manually created entries, "system" for entries committed by the
	// assistant.
	Source string
}

// Duration returns the event length.
func (e *Event) Duration() time.Duration {
	return e.End.Sub(e.Start)
}

// Overlaps reports whether the event intersects the half-open
// interval [from, to).
func (e *Event) Overlaps(from, to time.Time) bool {
	return e.Start.Before(to) && e.End.After(from)
}

// CreateEventRequest carries the fields needed to commit a new event.
type CreateEventRequest struct {
	UserID      string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Source      string
}

// Provider is the calendar backend contract. All times passed in and
// returned are UTC; implementations convert as needed.
type Provider interface {
	// ListEvents returns events for userID overlapping [from, to),
	// ordered by start time ascending.
	ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*Event, error)
	// CreateEvent commits a new event and returns it with its UID set.
	CreateEvent(ctx context.Context, create *CreateEventRequest) (*Event, error)
	// DeleteEvent removes the event with the given UID. Returns
	// ErrNotFound if no such event exists for the user.
	DeleteEvent(ctx context.Context, userID, uid string) error
}
