// Package scheduler implements the scheduling core: it turns a
// structured intent plus the user's existing calendar state into a
// deterministic decision to commit an event, ask a clarifying
// question, or report a conflict.
package scheduler

import (
	"context"
	"time"
)

// Action is the scheduling operation requested by the user.
type Action string

const (
	ActionCreate Action = "create"
	ActionCancel Action = "cancel"
	ActionModify Action = "modify"
	ActionQuery  Action = "query"
)

// Confidence signals how certain the intent extractor is about its
// interpretation.
type Confidence string

const (
	ConfidenceHigh      Confidence = "high"
	ConfidenceAmbiguous Confidence = "ambiguous"
)

// Priority influences slot ranking: high and medium priority requests
// prefer the earliest fitting slot, low priority requests yield the
// earlier parts of the day to other work.
type Priority string

const (
	PriorityHigh   Priority = "high"
	PriorityMedium Priority = "medium"
	PriorityLow    Priority = "low"
)

// Recurrence patterns.
const (
	RecurDaily    = "daily"
	RecurWeekdays = "weekdays"
	RecurWeekly   = "weekly"
)

// Window is a half-open time range [Earliest, Latest) the user is
// willing to schedule into. Times are UTC.
type Window struct {
	Earliest time.Time
	Latest   time.Time
}

// Duration returns the window length.
func (w Window) Duration() time.Duration {
	return w.Latest.Sub(w.Earliest)
}

// Shift returns the window moved forward by d.
func (w Window) Shift(d time.Duration) Window {
	return Window{Earliest: w.Earliest.Add(d), Latest: w.Latest.Add(d)}
}

// Recurrence describes a repeating request. Count is the number of
// occurrences including the first; Pattern is one of RecurDaily,
// RecurWeekdays, or RecurWeekly.
type Recurrence struct {
	Count   int
	Pattern string
}

// Intent is the structured representation of one user request. It is
// created fresh per turn and never persisted beyond the current
// resolution cycle (a pending copy may be held in ConversationState
// while awaiting a follow-up turn).
type Intent struct {
	Action          Action
	Title           string
	Description     string
	DurationMinutes *int
	Windows         []Window
	Recurrence      *Recurrence
	// TargetReference names an existing event for cancel and modify.
	TargetReference string
	Priority        Priority
	Confidence      Confidence
}

// Duration returns the requested event length, or zero when the
// duration is still unknown.
func (i *Intent) Duration() time.Duration {
	if i.DurationMinutes == nil {
		return 0
	}
	return time.Duration(*i.DurationMinutes) * time.Minute
}

// CandidateSlot is a scored scheduling proposal. Its duration always
// equals the originating intent's duration.
type CandidateSlot struct {
	Start time.Time
	End   time.Time
	Rank  float64
}

// ConflictStatus classifies a candidate against existing calendar
// state.
type ConflictStatus string

const (
	// ConflictClear means no overlap and within work hours.
	ConflictClear ConflictStatus = "clear"
	// ConflictSoft means the candidate overlaps an existing event; the
	// user may confirm the overlap.
	ConflictSoft ConflictStatus = "soft"
	// ConflictHard means the candidate falls outside the user's work
	// hours. Hard conflicts are never offered for confirmation.
	ConflictHard ConflictStatus = "hard"
)

// ConflictResult is the outcome of checking one candidate slot.
type ConflictResult struct {
	Status ConflictStatus
	// ConflictingEvent is the first overlapping event by start time,
	// set only for soft conflicts.
	ConflictingEvent *Event
}

// Event is a calendar entry as seen by the scheduling core.
type Event struct {
	UID         string
	Title       string
	Description string
	Start       time.Time
	End         time.Time
	Source      string
}

// Overlaps reports whether the event intersects [from, to).
func (e *Event) Overlaps(from, to time.Time) bool {
	return e.Start.Before(to) && e.End.After(from)
}

// ClarificationNeeded is the resolver's distinct result variant for
// requests that cannot be resolved without more information. It is a
// result, not a failure.
type ClarificationNeeded struct {
	Questions []string
}

// CommitResult is returned by the commit pipeline on success.
type CommitResult struct {
	Event               *Event
	ConflictsOverridden bool
}

// TurnRequest is one inbound message from the messaging layer.
type TurnRequest struct {
	UserID    string
	Text      string
	Timestamp time.Time
}

// TurnResponse is the structured outcome of one turn.
type TurnResponse struct {
	Reply              string
	ScheduledEvents    []*Event
	NeedsClarification bool
	Questions          []string
	HasConflict        bool
	Conflict           *Event
}

// HistoryMessage is one prior conversation message handed to the
// intent extractor for context.
type HistoryMessage struct {
	Role    string
	Content string
}

// IntentExtractor converts free text into a structured intent. It must
// be pure with respect to scheduler state. Ambiguity is reported as an
// *AmbiguousIntentError, never as a nil intent.
type IntentExtractor interface {
	Extract(ctx context.Context, text string, history []HistoryMessage) (*Intent, error)
	// Merge folds a clarification answer into a pending intent,
	// filling missing fields. It is deterministic and local.
	Merge(intent *Intent, answer string) *Intent
}

// PreferencesSource provides per-user scheduling preferences, consumed
// read-only by the resolver and conflict detector.
type PreferencesSource interface {
	GetPreferences(ctx context.Context, userID string) (*Preferences, error)
}
