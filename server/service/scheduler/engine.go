package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/pkg/errors"
	"golang.org/x/sync/semaphore"
	"golang.org/x/time/rate"

	"github.com/dharmateja03/CalBot/plugin/calendar"
	"github.com/dharmateja03/CalBot/store"
)

// maxConcurrentTurns caps resolutions in flight across all users.
// Individual users are additionally serialized by their conversation
// state lock.
const maxConcurrentTurns = 64

// historyWindow bounds how much chat history is handed to the intent
// extractor.
const historyWindow = time.Hour

// Config carries the engine's tunables.
type Config struct {
	// LookaheadDays bounds how far ahead the availability index looks.
	LookaheadDays int
	// MaxClarifyRounds caps clarification loops before a request is
	// abandoned.
	MaxClarifyRounds int
	// AvailabilityTTL bounds staleness of the cached availability view.
	AvailabilityTTL time.Duration
	// SessionIdleTimeout evicts conversation state after inactivity.
	SessionIdleTimeout time.Duration
	// TurnsPerMinutePerUser is the per-user turn rate cap.
	TurnsPerMinutePerUser int
}

func (c *Config) applyDefaults() {
	if c.LookaheadDays <= 0 {
		c.LookaheadDays = 7
	}
	if c.MaxClarifyRounds <= 0 {
		c.MaxClarifyRounds = 3
	}
	if c.AvailabilityTTL <= 0 {
		c.AvailabilityTTL = 2 * time.Minute
	}
	if c.SessionIdleTimeout <= 0 {
		c.SessionIdleTimeout = 30 * time.Minute
	}
	if c.TurnsPerMinutePerUser <= 0 {
		c.TurnsPerMinutePerUser = 20
	}
}

// Engine wires the intent extractor, availability index, slot
// resolver, conflict detector, conversation state machine, and commit
// pipeline into one turn processor.
type Engine struct {
	extractor    IntentExtractor
	provider     calendar.Provider
	preferences  PreferencesSource
	availability *Availability
	states       *StateManager
	store        *store.Store
	logger       *slog.Logger
	config       Config

	sem *semaphore.Weighted

	// limiterMu guards lazy creation of per-state rate limiters.
	limiterMu sync.Mutex
}

// NewEngine creates the scheduling engine.
func NewEngine(
	extractor IntentExtractor,
	provider calendar.Provider,
	preferences PreferencesSource,
	st *store.Store,
	logger *slog.Logger,
	config Config,
) *Engine {
	if logger == nil {
		logger = slog.Default()
	}
	config.applyDefaults()
	lookahead := time.Duration(config.LookaheadDays) * 24 * time.Hour
	return &Engine{
		extractor:    extractor,
		provider:     provider,
		preferences:  preferences,
		availability: NewAvailability(provider, lookahead, config.AvailabilityTTL, logger),
		states:       NewStateManager(logger, config.SessionIdleTimeout),
		store:        st,
		logger:       logger,
		config:       config,
		sem:          semaphore.NewWeighted(maxConcurrentTurns),
	}
}

// Availability exposes the engine's availability index, used by the
// query API and tests.
func (e *Engine) Availability() *Availability {
	return e.availability
}

// States exposes the conversation state manager.
func (e *Engine) States() *StateManager {
	return e.states
}

// Shutdown stops background loops.
func (e *Engine) Shutdown() {
	e.states.Shutdown()
}

// ProcessTurn handles one inbound user turn end to end. Failures are
// scoped to this user's turn and never corrupt other users' state.
func (e *Engine) ProcessTurn(ctx context.Context, turn *TurnRequest) (*TurnResponse, error) {
	if turn.UserID == "" || strings.TrimSpace(turn.Text) == "" {
		return nil, &ValidationError{Field: "text", Reason: "empty turn"}
	}
	if turn.Timestamp.IsZero() {
		turn.Timestamp = time.Now()
	}

	state := e.states.Get(turn.UserID)
	if !e.limiter(state).Allow() {
		turnCounter.WithLabelValues("rate_limited").Inc()
		return nil, ErrRateLimited
	}

	if !state.TryAcquire() {
		turnCounter.WithLabelValues("busy").Inc()
		return nil, ErrBusy
	}
	defer state.Release()

	if err := e.sem.Acquire(ctx, 1); err != nil {
		return nil, wrapCollaboratorError(err, "acquire turn slot")
	}
	defer e.sem.Release(1)

	turnID := uuid.NewString()
	started := time.Now()
	defer func() {
		turnDuration.Observe(time.Since(started).Seconds())
	}()
	e.logger.Debug("processing turn", "turn", turnID, "user", turn.UserID, "phase", state.Phase)

	e.recordMessage(ctx, turn.UserID, "user", turn.Text)
	response, err := e.processLocked(ctx, state, turn)
	if err != nil {
		turnCounter.WithLabelValues("error").Inc()
		e.logger.Warn("turn failed", "turn", turnID, "user", turn.UserID, "err", err)
		return nil, err
	}
	e.recordMessage(ctx, turn.UserID, "assistant", response.Reply)
	return response, nil
}

// processLocked runs the state machine for one turn. The caller holds
// the per-user turn lock.
func (e *Engine) processLocked(ctx context.Context, state *ConversationState, turn *TurnRequest) (*TurnResponse, error) {
	switch state.Phase {
	case PhaseAwaitingConfirmation:
		return e.handleConfirmation(ctx, state, turn)
	case PhaseAwaitingClarification:
		return e.handleClarification(ctx, state, turn)
	default:
		return e.handleNewRequest(ctx, state, turn)
	}
}

// handleConfirmation resolves a pending yes/no decision. Any reply
// that is neither affirmative nor negative abandons the pending
// decision and is processed as a new request.
func (e *Engine) handleConfirmation(ctx context.Context, state *ConversationState, turn *TurnRequest) (*TurnResponse, error) {
	switch {
	case isAffirmative(turn.Text):
		result, err := e.Commit(ctx, turn.UserID, state.PendingIntent, state.PendingSlot, state.PendingOverride)
		if err != nil {
			// State stays in awaiting_confirmation so the user can
			// retry without re-stating the request.
			e.logger.Warn("commit failed, state preserved", "user", turn.UserID, "err", err)
			return nil, err
		}
		replaceUID := state.PendingReplaceUID
		state.Reset()
		turnCounter.WithLabelValues("committed").Inc()
		reply := fmt.Sprintf("Done. %q is scheduled for %s.", result.Event.Title, formatSlot(result.Event.Start, result.Event.End))
		if replaceUID != "" {
			// The confirmed commit was a reschedule; retire the
			// original now that the replacement exists.
			if err := e.deleteEvent(ctx, turn.UserID, replaceUID); err != nil {
				e.logger.Error("rescheduled but failed to remove original event",
					"user", turn.UserID, "uid", replaceUID, "err", err)
				reply += " (I couldn't remove the original event; please delete it manually.)"
			} else {
				reply = fmt.Sprintf("Moved %q to %s.", result.Event.Title, formatSlot(result.Event.Start, result.Event.End))
			}
		}
		return &TurnResponse{
			Reply:           reply,
			ScheduledEvents: []*Event{result.Event},
		}, nil

	case isNegative(turn.Text):
		state.Reset()
		turnCounter.WithLabelValues("declined").Inc()
		return &TurnResponse{Reply: "Okay, I won't schedule it."}, nil

	default:
		// Unrelated new intent abandons the pending decision.
		state.Reset()
		turnCounter.WithLabelValues("abandoned").Inc()
		return e.handleNewRequest(ctx, state, turn)
	}
}

// handleClarification merges the user's answer into the pending
// intent and re-runs resolution, bounded by the clarification round
// cap.
func (e *Engine) handleClarification(ctx context.Context, state *ConversationState, turn *TurnRequest) (*TurnResponse, error) {
	merged := e.extractor.Merge(state.PendingIntent, turn.Text)
	if state.ClarifyRounds >= e.config.MaxClarifyRounds && len(missingFieldQuestions(merged)) > 0 {
		state.Reset()
		turnCounter.WithLabelValues("abandoned").Inc()
		return nil, ErrMaxClarificationExceeded
	}
	return e.resolveIntent(ctx, state, turn, merged)
}

// handleNewRequest extracts an intent from free text and dispatches by
// action.
func (e *Engine) handleNewRequest(ctx context.Context, state *ConversationState, turn *TurnRequest) (*TurnResponse, error) {
	history, err := e.loadHistory(ctx, turn.UserID)
	if err != nil {
		e.logger.Warn("failed to load chat history", "user", turn.UserID, "err", err)
	}

	extractCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()
	intent, err := e.extractor.Extract(extractCtx, turn.Text, history)
	if err != nil {
		var ambiguous *AmbiguousIntentError
		if errors.As(err, &ambiguous) {
			state.AwaitClarification(&Intent{Action: ActionCreate, Confidence: ConfidenceAmbiguous}, ambiguous.Questions)
			turnCounter.WithLabelValues("clarification").Inc()
			return &TurnResponse{
				Reply:              clarificationReply(ambiguous.Questions),
				NeedsClarification: true,
				Questions:          ambiguous.Questions,
			}, nil
		}
		return nil, wrapCollaboratorError(err, "extract intent")
	}

	switch intent.Action {
	case ActionQuery:
		return e.handleQuery(ctx, turn, intent)
	case ActionCancel:
		return e.handleCancel(ctx, turn, intent)
	case ActionModify:
		return e.handleModify(ctx, state, turn, intent)
	default:
		return e.resolveIntent(ctx, state, turn, intent)
	}
}

// resolveIntent runs slot resolution, conflict checks, and commits for
// a create intent, honoring recurrence.
func (e *Engine) resolveIntent(ctx context.Context, state *ConversationState, turn *TurnRequest, intent *Intent) (*TurnResponse, error) {
	prefs, err := e.loadPreferences(ctx, turn.UserID)
	if err != nil {
		return nil, err
	}
	snap, err := e.availability.Snapshot(ctx, turn.UserID, turn.Timestamp)
	if err != nil {
		return nil, err
	}

	occurrences := 1
	if intent.Recurrence != nil && intent.Recurrence.Count > 1 {
		occurrences = intent.Recurrence.Count
	}

	response := &TurnResponse{}
	var committed []*Event
	var skipped []string

	for i := 0; i < occurrences; i++ {
		occurrence := *intent
		occurrence.Windows = occurrenceWindows(intent, i)

		candidates, clarification := Resolve(&occurrence, snap, prefs)
		if clarification != nil {
			state.AwaitClarification(intent, clarification.Questions)
			turnCounter.WithLabelValues("clarification").Inc()
			return &TurnResponse{
				Reply:              clarificationReply(clarification.Questions),
				NeedsClarification: true,
				Questions:          clarification.Questions,
			}, nil
		}
		if len(candidates) == 0 {
			if occurrences == 1 {
				state.Reset()
				turnCounter.WithLabelValues("no_availability").Inc()
				return nil, ErrNoAvailability
			}
			skipped = append(skipped, fmt.Sprintf("occurrence %d: no availability", i+1))
			continue
		}

		best, check := pickCandidate(candidates, snap, prefs)
		conflictCounter.WithLabelValues(string(check.Status)).Inc()

		switch check.Status {
		case ConflictHard:
			// Never offered for confirmation.
			if occurrences == 1 {
				state.Reset()
				turnCounter.WithLabelValues("conflict").Inc()
				return &TurnResponse{
					Reply: fmt.Sprintf("That time (%s) is outside your work hours (%s-%s), so I can't schedule it.",
						formatSlot(best.Start, best.End), prefs.WorkHoursStart, prefs.WorkHoursEnd),
					HasConflict: true,
				}, nil
			}
			skipped = append(skipped, fmt.Sprintf("occurrence %d: outside work hours", i+1))

		case ConflictSoft:
			if occurrences == 1 {
				state.AwaitConfirmation(intent, best)
				state.PendingOverride = true
				turnCounter.WithLabelValues("confirmation").Inc()
				return &TurnResponse{
					Reply: fmt.Sprintf("That time overlaps %q (%s). Schedule %q anyway? (yes/no)",
						check.ConflictingEvent.Title,
						formatSlot(check.ConflictingEvent.Start, check.ConflictingEvent.End),
						intent.Title),
					HasConflict: true,
					Conflict:    check.ConflictingEvent,
				}, nil
			}
			skipped = append(skipped, fmt.Sprintf("occurrence %d: overlaps %q", i+1, check.ConflictingEvent.Title))

		default:
			result, err := e.Commit(ctx, turn.UserID, &occurrence, best, false)
			if err != nil {
				if occurrences == 1 {
					// Preserve the decision so a follow-up "yes"
					// retries the commit.
					state.AwaitConfirmation(intent, best)
					state.PendingOverride = false
					return nil, err
				}
				skipped = append(skipped, fmt.Sprintf("occurrence %d: %v", i+1, err))
				continue
			}
			committed = append(committed, result.Event)
		}
	}

	state.Reset()
	response.ScheduledEvents = committed
	response.Reply = summarizeOutcome(intent, committed, skipped)
	if len(committed) > 0 {
		turnCounter.WithLabelValues("committed").Inc()
	} else {
		turnCounter.WithLabelValues("conflict").Inc()
	}
	return response, nil
}

// pickCandidate walks candidates in rank order and prefers the first
// clear slot; failing that, the first soft conflict; failing that, the
// top-ranked hard conflict.
func pickCandidate(candidates []*CandidateSlot, snap *Snapshot, prefs *Preferences) (*CandidateSlot, *ConflictResult) {
	var firstSoft *CandidateSlot
	var firstSoftResult *ConflictResult
	for _, candidate := range candidates {
		result := Check(candidate, snap, prefs)
		switch result.Status {
		case ConflictClear:
			return candidate, result
		case ConflictSoft:
			if firstSoft == nil {
				firstSoft, firstSoftResult = candidate, result
			}
		}
	}
	if firstSoft != nil {
		return firstSoft, firstSoftResult
	}
	return candidates[0], Check(candidates[0], snap, prefs)
}

// handleQuery summarizes upcoming events.
func (e *Engine) handleQuery(ctx context.Context, turn *TurnRequest, intent *Intent) (*TurnResponse, error) {
	snap, err := e.availability.Snapshot(ctx, turn.UserID, turn.Timestamp)
	if err != nil {
		return nil, err
	}
	turnCounter.WithLabelValues("query").Inc()

	if len(snap.Events) == 0 {
		return &TurnResponse{Reply: "Your calendar is clear for the next few days."}, nil
	}

	var b strings.Builder
	b.WriteString("Here's what you have coming up:\n")
	for _, event := range snap.Events {
		fmt.Fprintf(&b, "- %s: %s\n", formatSlot(event.Start, event.End), event.Title)
	}
	return &TurnResponse{Reply: strings.TrimRight(b.String(), "\n")}, nil
}

// handleCancel locates the referenced event and deletes it.
func (e *Engine) handleCancel(ctx context.Context, turn *TurnRequest, intent *Intent) (*TurnResponse, error) {
	snap, err := e.availability.Snapshot(ctx, turn.UserID, turn.Timestamp)
	if err != nil {
		return nil, err
	}

	reference := intent.TargetReference
	if reference == "" {
		reference = intent.Title
	}
	target := snap.FindByTitle(reference)
	if target == nil {
		turnCounter.WithLabelValues("not_found").Inc()
		return &TurnResponse{Reply: fmt.Sprintf("I couldn't find an upcoming event matching %q.", reference)}, nil
	}

	if err := e.deleteEvent(ctx, turn.UserID, target.UID); err != nil {
		return nil, err
	}
	turnCounter.WithLabelValues("cancelled").Inc()
	return &TurnResponse{
		Reply: fmt.Sprintf("Cancelled %q (%s).", target.Title, formatSlot(target.Start, target.End)),
	}, nil
}

// handleModify reschedules an existing event: resolve a new slot,
// commit it, then delete the original. The original is only removed
// after the replacement exists.
func (e *Engine) handleModify(ctx context.Context, state *ConversationState, turn *TurnRequest, intent *Intent) (*TurnResponse, error) {
	snap, err := e.availability.Snapshot(ctx, turn.UserID, turn.Timestamp)
	if err != nil {
		return nil, err
	}

	reference := intent.TargetReference
	if reference == "" {
		reference = intent.Title
	}
	target := snap.FindByTitle(reference)
	if target == nil {
		turnCounter.WithLabelValues("not_found").Inc()
		return &TurnResponse{Reply: fmt.Sprintf("I couldn't find an upcoming event matching %q.", reference)}, nil
	}

	// Inherit missing details from the event being moved.
	moved := *intent
	moved.Action = ActionCreate
	if moved.Title == "" || moved.Title == reference {
		moved.Title = target.Title
	}
	if moved.Description == "" {
		moved.Description = target.Description
	}
	if moved.DurationMinutes == nil {
		minutes := int(target.End.Sub(target.Start).Minutes())
		moved.DurationMinutes = &minutes
	}

	response, err := e.resolveIntent(ctx, state, turn, &moved)
	if state.Phase == PhaseAwaitingConfirmation {
		// The replacement is parked for a yes/no follow-up (soft
		// conflict or failed commit). Carry the original's UID so a
		// confirmed commit still retires it.
		state.PendingReplaceUID = target.UID
	}
	if err != nil {
		return nil, err
	}
	if len(response.ScheduledEvents) == 0 {
		// Nothing committed (clarification or conflict); the
		// original event stays put.
		return response, nil
	}

	if err := e.deleteEvent(ctx, turn.UserID, target.UID); err != nil {
		e.logger.Error("rescheduled but failed to remove original event",
			"user", turn.UserID, "uid", target.UID, "err", err)
		response.Reply += " (I couldn't remove the original event; please delete it manually.)"
		return response, nil
	}
	response.Reply = fmt.Sprintf("Moved %q to %s.", moved.Title,
		formatSlot(response.ScheduledEvents[0].Start, response.ScheduledEvents[0].End))
	return response, nil
}

func (e *Engine) loadPreferences(ctx context.Context, userID string) (*Preferences, error) {
	prefs, err := e.preferences.GetPreferences(ctx, userID)
	if err != nil {
		return nil, wrapCollaboratorError(err, "load preferences")
	}
	if prefs == nil {
		return DefaultPreferences(), nil
	}
	return prefs, nil
}

func (e *Engine) loadHistory(ctx context.Context, userID string) ([]HistoryMessage, error) {
	if e.store == nil {
		return nil, nil
	}
	after := time.Now().Add(-historyWindow).Unix()
	limit := 20
	// Newest first so the limit keeps the most recent messages, then
	// reversed so the extractor reads them in conversation order.
	messages, err := e.store.ListChatMessages(ctx, &store.FindChatMessage{
		UserID:               &userID,
		CreatedTsAfter:       &after,
		Limit:                &limit,
		OrderByCreatedTsDesc: true,
	})
	if err != nil {
		return nil, err
	}
	history := make([]HistoryMessage, 0, len(messages))
	for i := len(messages) - 1; i >= 0; i-- {
		history = append(history, HistoryMessage{Role: messages[i].Role, Content: messages[i].Content})
	}
	return history, nil
}

func (e *Engine) recordMessage(ctx context.Context, userID, role, content string) {
	if e.store == nil || content == "" {
		return
	}
	if _, err := e.store.CreateChatMessage(ctx, &store.ChatMessage{
		UserID:  userID,
		Role:    role,
		Content: content,
	}); err != nil {
		e.logger.Warn("failed to record chat message", "user", userID, "role", role, "err", err)
	}
}

// limiter lazily creates the per-user rate limiter on the
// conversation state, so idle eviction reclaims both together.
func (e *Engine) limiter(state *ConversationState) *rate.Limiter {
	e.limiterMu.Lock()
	defer e.limiterMu.Unlock()
	if state.limiter == nil {
		perMinute := e.config.TurnsPerMinutePerUser
		state.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	}
	return state.limiter
}

func clarificationReply(questions []string) string {
	if len(questions) == 0 {
		return "Could you share a bit more detail?"
	}
	return strings.Join(questions, " ")
}

func summarizeOutcome(intent *Intent, committed []*Event, skipped []string) string {
	var b strings.Builder
	switch len(committed) {
	case 0:
		b.WriteString("I couldn't schedule anything.")
	case 1:
		fmt.Fprintf(&b, "Scheduled %q for %s.", committed[0].Title, formatSlot(committed[0].Start, committed[0].End))
	default:
		fmt.Fprintf(&b, "Scheduled %q %d times:\n", intent.Title, len(committed))
		for _, event := range committed {
			fmt.Fprintf(&b, "- %s\n", formatSlot(event.Start, event.End))
		}
	}
	if len(skipped) > 0 {
		b.WriteString("\nSome occurrences could not be scheduled:\n")
		for _, reason := range skipped {
			fmt.Fprintf(&b, "- %s\n", reason)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

func formatSlot(start, end time.Time) string {
	return fmt.Sprintf("%s to %s", start.Format("Mon Jan 2 15:04"), end.Format("15:04 MST"))
}
