package store

// EventSource records who created an event.
type EventSource string

const (
	// EventSourceUser marks events the user created directly.
	EventSourceUser EventSource = "user"
	// EventSourceSystem marks events the scheduler committed.
	EventSourceSystem EventSource = "system"
)

// CalendarEvent represents a calendar event held by the local provider.
type CalendarEvent struct {
	ID          int32
	UID         string
	UserID      string
	Title       string
	Description string
	StartTs     int64
	EndTs       int64
	Source      EventSource
	CreatedTs   int64
	UpdatedTs   int64
}

// FindCalendarEvent specifies the conditions for finding calendar events.
type FindCalendarEvent struct {
	UserID *string
	UID    *string
	// StartTsAfter/StartTsBefore bound the overlap window: events whose
	// [start, end) intersects [StartTsAfter, StartTsBefore) match.
	StartTsAfter  *int64
	StartTsBefore *int64
}

// DeleteCalendarEvent specifies the event to delete.
type DeleteCalendarEvent struct {
	UserID string
	UID    string
}
