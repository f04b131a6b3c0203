package scheduler

import (
	"log/slog"
	"strings"
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// Phase is the per-user conversation phase.
type Phase string

const (
	PhaseIdle                  Phase = "idle"
	PhaseAwaitingClarification Phase = "awaiting_clarification"
	PhaseAwaitingConfirmation  Phase = "awaiting_confirmation"
)

// ConversationState is the per-user pending-decision state carried
// across turns. PhaseAwaitingConfirmation implies PendingSlot is set.
type ConversationState struct {
	Phase         Phase
	PendingIntent *Intent
	PendingSlot   *CandidateSlot
	// PendingOverride is true when the pending slot overlaps an
	// existing event, so a confirmed commit records the override.
	PendingOverride bool
	// PendingReplaceUID is the event a confirmed commit replaces.
	// Set while a reschedule is parked for confirmation so the
	// original is deleted once the replacement exists.
	PendingReplaceUID string
	Questions         []string
	ClarifyRounds     int
	LastActive        time.Time

	// mu serializes turns for this user: at most one in-flight
	// resolution per user at a time.
	mu sync.Mutex

	// limiter is this user's turn rate limiter. It lives on the
	// state so idle eviction reclaims it together with the
	// conversation. Not cleared by Reset.
	limiter *rate.Limiter
}

// TryAcquire attempts to take the per-user turn lock without blocking.
func (s *ConversationState) TryAcquire() bool {
	return s.mu.TryLock()
}

// Release gives up the per-user turn lock.
func (s *ConversationState) Release() {
	s.mu.Unlock()
}

// Reset returns the state to idle, clearing any pending decision.
func (s *ConversationState) Reset() {
	s.Phase = PhaseIdle
	s.PendingIntent = nil
	s.PendingSlot = nil
	s.PendingOverride = false
	s.PendingReplaceUID = ""
	s.Questions = nil
	s.ClarifyRounds = 0
}

// AwaitClarification records a pending intent and its open questions.
func (s *ConversationState) AwaitClarification(intent *Intent, questions []string) {
	s.Phase = PhaseAwaitingClarification
	s.PendingIntent = intent
	s.PendingSlot = nil
	s.Questions = questions
	s.ClarifyRounds++
}

// AwaitConfirmation records a pending intent and slot for a yes/no
// follow-up.
func (s *ConversationState) AwaitConfirmation(intent *Intent, slot *CandidateSlot) {
	s.Phase = PhaseAwaitingConfirmation
	s.PendingIntent = intent
	s.PendingSlot = slot
	s.PendingReplaceUID = ""
	s.Questions = nil
}

const stateCleanupInterval = time.Minute

// StateManager holds conversation state keyed by user id, with idle
// eviction so abandoned conversations do not accumulate.
type StateManager struct {
	states      map[string]*ConversationState
	mu          sync.RWMutex
	logger      *slog.Logger
	idleTimeout time.Duration
	done        chan struct{}
}

// NewStateManager creates a state manager and starts its idle cleanup
// loop.
func NewStateManager(logger *slog.Logger, idleTimeout time.Duration) *StateManager {
	if logger == nil {
		logger = slog.Default()
	}
	m := &StateManager{
		states:      make(map[string]*ConversationState),
		logger:      logger,
		idleTimeout: idleTimeout,
		done:        make(chan struct{}),
	}
	go m.cleanupLoop()
	return m
}

// Get returns the conversation state for a user, creating an idle one
// on first contact, and marks it active.
func (m *StateManager) Get(userID string) *ConversationState {
	m.mu.Lock()
	defer m.mu.Unlock()

	state, ok := m.states[userID]
	if !ok {
		state = &ConversationState{Phase: PhaseIdle}
		m.states[userID] = state
	}
	state.LastActive = time.Now()
	return state
}

// Size returns the number of live conversation states.
func (m *StateManager) Size() int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return len(m.states)
}

// Shutdown stops the cleanup loop.
func (m *StateManager) Shutdown() {
	close(m.done)
}

func (m *StateManager) cleanupLoop() {
	ticker := time.NewTicker(stateCleanupInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ticker.C:
			m.evictIdle()
		case <-m.done:
			return
		}
	}
}

// evictIdle drops states idle longer than the timeout. A state whose
// turn lock is held is mid-resolution and is skipped.
func (m *StateManager) evictIdle() {
	m.mu.Lock()
	defer m.mu.Unlock()

	now := time.Now()
	for userID, state := range m.states {
		idle := now.Sub(state.LastActive)
		if idle <= m.idleTimeout {
			continue
		}
		if !state.TryAcquire() {
			continue
		}
		state.Release()
		delete(m.states, userID)
		m.logger.Info("evicted idle conversation state", "user", userID, "idle", idle)
	}
}

// Affirmative and negative reply words recognized while awaiting
// confirmation. Anything else is treated as a new request.
var (
	affirmativeReplies = []string{"yes", "y", "yeah", "yep", "sure", "ok", "okay", "confirm", "go ahead", "do it"}
	negativeReplies    = []string{"no", "n", "nope", "nah", "cancel", "don't", "dont", "stop", "never mind", "nevermind"}
)

func isAffirmative(text string) bool {
	return matchesReply(text, affirmativeReplies)
}

func isNegative(text string) bool {
	return matchesReply(text, negativeReplies)
}

func matchesReply(text string, replies []string) bool {
	normalized := strings.ToLower(strings.TrimRight(strings.TrimSpace(text), ".!"))
	for _, reply := range replies {
		if normalized == reply {
			return true
		}
	}
	return false
}

func containsFold(haystack, needle string) bool {
	return strings.Contains(strings.ToLower(haystack), strings.ToLower(needle))
}
