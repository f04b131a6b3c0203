package scheduler

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmateja03/CalBot/plugin/calendar"
	"github.com/dharmateja03/CalBot/store"
)

// fakeProvider is an in-memory calendar backend.
type fakeProvider struct {
	mu       sync.Mutex
	events   []*calendar.Event
	nextID   int
	failNext error
}

func (p *fakeProvider) ListEvents(_ context.Context, userID string, from, to time.Time) ([]*calendar.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	var out []*calendar.Event
	for _, event := range p.events {
		if event.UserID == userID && event.Overlaps(from, to) {
			out = append(out, event)
		}
	}
	return out, nil
}

func (p *fakeProvider) CreateEvent(_ context.Context, create *calendar.CreateEventRequest) (*calendar.Event, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.failNext != nil {
		err := p.failNext
		p.failNext = nil
		return nil, err
	}
	p.nextID++
	event := &calendar.Event{
		UID:         fmt.Sprintf("evt-%d", p.nextID),
		UserID:      create.UserID,
		Title:       create.Title,
		Description: create.Description,
		Start:       create.Start,
		End:         create.End,
		Source:      create.Source,
	}
	p.events = append(p.events, event)
	return event, nil
}

func (p *fakeProvider) DeleteEvent(_ context.Context, userID, uid string) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	for i, event := range p.events {
		if event.UserID == userID && event.UID == uid {
			p.events = append(p.events[:i], p.events[i+1:]...)
			return nil
		}
	}
	return calendar.ErrNotFound
}

func (p *fakeProvider) add(userID, title string, start, end time.Time) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.nextID++
	p.events = append(p.events, &calendar.Event{
		UID:    fmt.Sprintf("evt-%d", p.nextID),
		UserID: userID,
		Title:  title,
		Start:  start,
		End:    end,
		Source: "user",
	})
}

// fakeExtractor maps exact input text to canned intents.
type fakeExtractor struct {
	intents map[string]*Intent
}

func (f *fakeExtractor) Extract(_ context.Context, text string, _ []HistoryMessage) (*Intent, error) {
	if intent, ok := f.intents[text]; ok {
		copied := *intent
		return &copied, nil
	}
	return nil, &AmbiguousIntentError{
		Reason:    "unknown phrasing",
		Questions: []string{"What would you like to schedule?"},
	}
}

func (f *fakeExtractor) Merge(pending *Intent, answer string) *Intent {
	merged := *pending
	if fill, ok := f.intents[answer]; ok {
		if merged.DurationMinutes == nil {
			merged.DurationMinutes = fill.DurationMinutes
		}
		if len(merged.Windows) == 0 {
			merged.Windows = fill.Windows
		}
	}
	return &merged
}

type fakePrefs struct {
	prefs *Preferences
}

func (f *fakePrefs) GetPreferences(_ context.Context, _ string) (*Preferences, error) {
	return f.prefs, nil
}

func newTestEngine(t *testing.T, extractor IntentExtractor, provider calendar.Provider) *Engine {
	t.Helper()
	engine := NewEngine(extractor, provider, &fakePrefs{prefs: testPrefs()}, nil, nil, Config{
		LookaheadDays:         7,
		MaxClarifyRounds:      2,
		AvailabilityTTL:       time.Minute,
		SessionIdleTimeout:    time.Minute,
		TurnsPerMinutePerUser: 1000,
	})
	t.Cleanup(engine.Shutdown)
	return engine
}

func turnAt(userID, text string, at time.Time) *TurnRequest {
	return &TurnRequest{UserID: userID, Text: text, Timestamp: at}
}

func TestProcessTurnClearCommit(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book report time": createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)}),
	}}
	engine := newTestEngine(t, extractor, provider)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book report time", base))
	require.NoError(t, err)
	require.Len(t, response.ScheduledEvents, 1)

	event := response.ScheduledEvents[0]
	assert.Equal(t, day(t, 9, 0), event.Start)
	assert.Equal(t, 2*time.Hour, event.End.Sub(event.Start))
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
}

func TestProcessTurnRoundTripSeesCommittedEvent(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book report time": createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)}),
	}}
	engine := newTestEngine(t, extractor, provider)

	first, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book report time", base))
	require.NoError(t, err)
	require.Len(t, first.ScheduledEvents, 1)

	// The availability cache was invalidated, so the second request
	// must see the newly committed event and land after it.
	second, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book report time", base))
	require.NoError(t, err)
	require.Len(t, second.ScheduledEvents, 1)
	assert.False(t, second.ScheduledEvents[0].Start.Before(first.ScheduledEvents[0].End))
}

func TestProcessTurnClarificationFlow(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	noDuration := createIntent(0, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	noDuration.DurationMinutes = nil
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"schedule the report": noDuration,
		"2 hours":             createIntent(120),
	}}
	engine := newTestEngine(t, extractor, provider)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "schedule the report", base))
	require.NoError(t, err)
	assert.True(t, response.NeedsClarification)
	require.NotEmpty(t, response.Questions)
	assert.Contains(t, response.Questions[0], "How long")
	assert.Equal(t, PhaseAwaitingClarification, engine.States().Get("u1").Phase)

	// The answer fills the duration and resolution completes.
	response, err = engine.ProcessTurn(context.Background(), turnAt("u1", "2 hours", base))
	require.NoError(t, err)
	require.Len(t, response.ScheduledEvents, 1)
	assert.Equal(t, 2*time.Hour, response.ScheduledEvents[0].End.Sub(response.ScheduledEvents[0].Start))
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
}

func TestProcessTurnClarificationCapAbandons(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	noDuration := createIntent(0, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	noDuration.DurationMinutes = nil
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"schedule the report": noDuration,
	}}
	engine := newTestEngine(t, extractor, provider)

	_, err := engine.ProcessTurn(context.Background(), turnAt("u1", "schedule the report", base))
	require.NoError(t, err)

	// Unhelpful answers keep re-asking until the round cap hits.
	_, err = engine.ProcessTurn(context.Background(), turnAt("u1", "hmm", base))
	require.NoError(t, err)
	assert.Equal(t, PhaseAwaitingClarification, engine.States().Get("u1").Phase)

	_, err = engine.ProcessTurn(context.Background(), turnAt("u1", "not sure", base))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrMaxClarificationExceeded))
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
	assert.Empty(t, provider.events)
}

func TestProcessTurnNoAvailability(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Offsite", day(t, 8, 0), day(t, 11, 0))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book an hour mid-morning": createIntent(60, Window{Earliest: day(t, 9, 0), Latest: day(t, 10, 30)}),
	}}
	engine := newTestEngine(t, extractor, provider)

	_, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book an hour mid-morning", base))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrNoAvailability))
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
	require.Len(t, provider.events, 1)
}

func TestProcessTurnSoftConflictConfirmYes(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Standup", day(t, 9, 30), day(t, 10, 0))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book 9 to 11": createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 11, 0)}),
	}}
	engine := newTestEngine(t, extractor, provider)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book 9 to 11", base))
	require.NoError(t, err)
	assert.True(t, response.HasConflict)
	require.NotNil(t, response.Conflict)
	assert.Equal(t, "Standup", response.Conflict.Title)
	assert.Empty(t, response.ScheduledEvents)

	state := engine.States().Get("u1")
	assert.Equal(t, PhaseAwaitingConfirmation, state.Phase)
	require.NotNil(t, state.PendingSlot)

	response, err = engine.ProcessTurn(context.Background(), turnAt("u1", "yes", base))
	require.NoError(t, err)
	require.Len(t, response.ScheduledEvents, 1)
	assert.Equal(t, day(t, 9, 0), response.ScheduledEvents[0].Start)
	assert.Equal(t, day(t, 11, 0), response.ScheduledEvents[0].End)
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
}

func TestProcessTurnSoftConflictConfirmNoNeverCommits(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Standup", day(t, 9, 30), day(t, 10, 0))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book 9 to 11": createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 11, 0)}),
	}}
	engine := newTestEngine(t, extractor, provider)

	_, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book 9 to 11", base))
	require.NoError(t, err)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "no", base))
	require.NoError(t, err)
	assert.Empty(t, response.ScheduledEvents)

	state := engine.States().Get("u1")
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Nil(t, state.PendingSlot)

	// A later "yes" cannot resurrect the discarded slot.
	_, err = engine.ProcessTurn(context.Background(), turnAt("u1", "yes", base))
	require.NoError(t, err)
	require.Len(t, provider.events, 1)
	assert.Equal(t, "Standup", provider.events[0].Title)
}

func TestProcessTurnHardConflictNeverOffered(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book late night": createIntent(60, Window{Earliest: day(t, 22, 0), Latest: day(t, 23, 0)}),
	}}
	engine := newTestEngine(t, extractor, provider)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book late night", base))
	require.NoError(t, err)
	assert.True(t, response.HasConflict)
	assert.Contains(t, response.Reply, "outside your work hours")
	assert.Empty(t, response.ScheduledEvents)
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
	assert.Empty(t, provider.events)
}

func TestProcessTurnUnrelatedIntentAbandonsPending(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Standup", day(t, 9, 30), day(t, 10, 0))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book 9 to 11":   createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 11, 0)}),
		"book afternoon": createIntent(60, Window{Earliest: day(t, 13, 0), Latest: day(t, 17, 0)}),
	}}
	engine := newTestEngine(t, extractor, provider)

	_, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book 9 to 11", base))
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingConfirmation, engine.States().Get("u1").Phase)

	// A new request abandons the pending confirmation and is handled
	// from idle.
	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book afternoon", base))
	require.NoError(t, err)
	require.Len(t, response.ScheduledEvents, 1)
	assert.Equal(t, day(t, 13, 0), response.ScheduledEvents[0].Start)
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
}

func TestProcessTurnCommitFailurePreservesState(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{failNext: errors.New("calendar unavailable")}
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book report time": createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)}),
	}}
	engine := newTestEngine(t, extractor, provider)

	_, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book report time", base))
	require.Error(t, err)
	assert.True(t, errors.Is(err, ErrCollaboratorFailure))

	// The decision survived the failure; a bare "yes" retries it.
	state := engine.States().Get("u1")
	require.Equal(t, PhaseAwaitingConfirmation, state.Phase)
	require.NotNil(t, state.PendingSlot)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "yes", base))
	require.NoError(t, err)
	require.Len(t, response.ScheduledEvents, 1)
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
}

func TestProcessTurnBusySignal(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	extractor := &fakeExtractor{intents: map[string]*Intent{}}
	engine := newTestEngine(t, extractor, provider)

	state := engine.States().Get("u1")
	require.True(t, state.TryAcquire())
	defer state.Release()

	_, err := engine.ProcessTurn(context.Background(), turnAt("u1", "anything", base))
	assert.True(t, errors.Is(err, ErrBusy))

	// Other users are unaffected.
	response, err := engine.ProcessTurn(context.Background(), turnAt("u2", "anything", base))
	require.NoError(t, err)
	assert.True(t, response.NeedsClarification)
}

func TestProcessTurnRecurrenceIndependentOccurrences(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	// Fully occupy the second day's window so only that occurrence
	// fails.
	provider.add("u1", "Offsite", day(t, 9, 0).Add(24*time.Hour), day(t, 17, 0).Add(24*time.Hour))

	recurring := createIntent(60, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	recurring.Recurrence = &Recurrence{Count: 3, Pattern: RecurDaily}
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"book daily focus": recurring,
	}}
	engine := newTestEngine(t, extractor, provider)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "book daily focus", base))
	require.NoError(t, err)
	require.Len(t, response.ScheduledEvents, 2)
	assert.Contains(t, response.Reply, "could not be scheduled")
	assert.Equal(t, PhaseIdle, engine.States().Get("u1").Phase)
}

func TestProcessTurnCancel(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Dentist appointment", day(t, 14, 0), day(t, 15, 0))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"cancel the dentist": {Action: ActionCancel, TargetReference: "dentist", Confidence: ConfidenceHigh},
	}}
	engine := newTestEngine(t, extractor, provider)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "cancel the dentist", base))
	require.NoError(t, err)
	assert.Contains(t, response.Reply, "Cancelled")
	assert.Empty(t, provider.events)
}

func TestProcessTurnQuery(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Standup", day(t, 9, 30), day(t, 10, 0))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"what's on": {Action: ActionQuery, Confidence: ConfidenceHigh},
	}}
	engine := newTestEngine(t, extractor, provider)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "what's on", base))
	require.NoError(t, err)
	assert.Contains(t, response.Reply, "Standup")
}

func TestProcessTurnModifyMovesEvent(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Design review", day(t, 9, 0), day(t, 10, 0))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"move the design review": {
			Action:          ActionModify,
			TargetReference: "design review",
			Windows:         []Window{{Earliest: day(t, 14, 0), Latest: day(t, 17, 0)}},
			Confidence:      ConfidenceHigh,
		},
	}}
	engine := newTestEngine(t, extractor, provider)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "move the design review", base))
	require.NoError(t, err)
	assert.Contains(t, response.Reply, "Moved")
	require.Len(t, provider.events, 1)
	assert.Equal(t, day(t, 14, 0), provider.events[0].Start)
	// Duration inherited from the original event.
	assert.Equal(t, time.Hour, provider.events[0].End.Sub(provider.events[0].Start))
}

func TestProcessTurnModifyConflictConfirmDeletesOriginal(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Design review", day(t, 9, 0), day(t, 10, 0))
	provider.add("u1", "Team sync", day(t, 14, 15), day(t, 14, 45))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"move the design review to 2pm": {
			Action:          ActionModify,
			TargetReference: "design review",
			Windows:         []Window{{Earliest: day(t, 14, 0), Latest: day(t, 15, 0)}},
			Confidence:      ConfidenceHigh,
		},
	}}
	engine := newTestEngine(t, extractor, provider)

	// The replacement slot overlaps Team sync, so the reschedule is
	// parked for confirmation with the original still on the calendar.
	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "move the design review to 2pm", base))
	require.NoError(t, err)
	assert.True(t, response.HasConflict)
	assert.Empty(t, response.ScheduledEvents)

	state := engine.States().Get("u1")
	require.Equal(t, PhaseAwaitingConfirmation, state.Phase)
	assert.Equal(t, "evt-1", state.PendingReplaceUID)

	// Confirming commits the replacement and removes the original, so
	// the meeting is never double-booked.
	response, err = engine.ProcessTurn(context.Background(), turnAt("u1", "yes", base))
	require.NoError(t, err)
	assert.Contains(t, response.Reply, "Moved")
	require.Len(t, response.ScheduledEvents, 1)
	assert.Equal(t, day(t, 14, 0), response.ScheduledEvents[0].Start)

	require.Len(t, provider.events, 2)
	for _, event := range provider.events {
		assert.NotEqual(t, "evt-1", event.UID)
	}
	assert.Equal(t, "", engine.States().Get("u1").PendingReplaceUID)
}

func TestProcessTurnConfirmDeclinedKeepsOriginalEvent(t *testing.T) {
	base := day(t, 8, 0)
	provider := &fakeProvider{}
	provider.add("u1", "Design review", day(t, 9, 0), day(t, 10, 0))
	provider.add("u1", "Team sync", day(t, 14, 15), day(t, 14, 45))
	extractor := &fakeExtractor{intents: map[string]*Intent{
		"move the design review to 2pm": {
			Action:          ActionModify,
			TargetReference: "design review",
			Windows:         []Window{{Earliest: day(t, 14, 0), Latest: day(t, 15, 0)}},
			Confidence:      ConfidenceHigh,
		},
	}}
	engine := newTestEngine(t, extractor, provider)

	_, err := engine.ProcessTurn(context.Background(), turnAt("u1", "move the design review to 2pm", base))
	require.NoError(t, err)
	require.Equal(t, PhaseAwaitingConfirmation, engine.States().Get("u1").Phase)

	response, err := engine.ProcessTurn(context.Background(), turnAt("u1", "no", base))
	require.NoError(t, err)
	assert.Empty(t, response.ScheduledEvents)

	// Declining leaves the calendar untouched.
	require.Len(t, provider.events, 2)
	assert.Equal(t, "evt-1", provider.events[0].UID)
	assert.Equal(t, "", engine.States().Get("u1").PendingReplaceUID)
}

func TestProcessTurnEmptyTextRejected(t *testing.T) {
	engine := newTestEngine(t, &fakeExtractor{}, &fakeProvider{})

	_, err := engine.ProcessTurn(context.Background(), turnAt("u1", "   ", time.Now()))
	var validation *ValidationError
	assert.True(t, errors.As(err, &validation))
}

func TestLimiterEvictedWithState(t *testing.T) {
	engine := newTestEngine(t, &fakeExtractor{}, &fakeProvider{})

	first := engine.States().Get("u1")
	require.Same(t, engine.limiter(first), engine.limiter(first))

	first.LastActive = time.Now().Add(-2 * time.Minute)
	engine.States().evictIdle()

	second := engine.States().Get("u1")
	require.NotSame(t, first, second)
	assert.NotSame(t, engine.limiter(first), engine.limiter(second))
}

func TestUserFacingReply(t *testing.T) {
	reply, ok := UserFacingReply(errors.Wrap(ErrNoAvailability, "deep work"))
	require.True(t, ok)
	assert.Contains(t, reply, "free time")

	reply, ok = UserFacingReply(ErrMaxClarificationExceeded)
	require.True(t, ok)
	assert.Contains(t, reply, "set that request aside")

	_, ok = UserFacingReply(errors.New("boom"))
	assert.False(t, ok)
}

// chatStoreDriver is a store.Driver stub backing only chat history.
// Calls to any other store method panic via the embedded nil Driver.
type chatStoreDriver struct {
	store.Driver
	mu       sync.Mutex
	nextID   int64
	messages []*store.ChatMessage
}

func (d *chatStoreDriver) CreateChatMessage(_ context.Context, create *store.ChatMessage) (*store.ChatMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.nextID++
	create.ID = d.nextID
	d.messages = append(d.messages, create)
	return create, nil
}

func (d *chatStoreDriver) ListChatMessages(_ context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	var out []*store.ChatMessage
	for _, message := range d.messages {
		if find.UserID != nil && message.UserID != *find.UserID {
			continue
		}
		if find.CreatedTsAfter != nil && message.CreatedTs < *find.CreatedTsAfter {
			continue
		}
		out = append(out, message)
	}
	sort.Slice(out, func(i, j int) bool {
		if find.OrderByCreatedTsDesc {
			return out[i].CreatedTs > out[j].CreatedTs
		}
		return out[i].CreatedTs < out[j].CreatedTs
	})
	if find.Limit != nil && len(out) > *find.Limit {
		out = out[:*find.Limit]
	}
	return out, nil
}

func TestLoadHistoryKeepsMostRecentMessages(t *testing.T) {
	driver := &chatStoreDriver{}
	engine := NewEngine(&fakeExtractor{}, &fakeProvider{}, &fakePrefs{prefs: testPrefs()}, store.New(driver, nil), nil, Config{
		LookaheadDays:         7,
		MaxClarifyRounds:      2,
		AvailabilityTTL:       time.Minute,
		SessionIdleTimeout:    time.Minute,
		TurnsPerMinutePerUser: 1000,
	})
	t.Cleanup(engine.Shutdown)

	now := time.Now().Unix()
	for i := 1; i <= 25; i++ {
		_, err := driver.CreateChatMessage(context.Background(), &store.ChatMessage{
			UserID:    "u1",
			Role:      "user",
			Content:   fmt.Sprintf("msg-%d", i),
			CreatedTs: now - int64(30-i),
		})
		require.NoError(t, err)
	}

	// A busy window must keep the latest messages, chronological for
	// the extractor.
	history, err := engine.loadHistory(context.Background(), "u1")
	require.NoError(t, err)
	require.Len(t, history, 20)
	assert.Equal(t, "msg-6", history[0].Content)
	assert.Equal(t, "msg-25", history[19].Content)
}
