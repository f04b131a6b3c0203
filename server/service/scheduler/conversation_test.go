package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestConversationStateTransitions(t *testing.T) {
	state := &ConversationState{Phase: PhaseIdle}
	intent := createIntent(60, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})

	state.AwaitClarification(intent, []string{"How long should this take?"})
	assert.Equal(t, PhaseAwaitingClarification, state.Phase)
	assert.Same(t, intent, state.PendingIntent)
	assert.Nil(t, state.PendingSlot)
	assert.Equal(t, 1, state.ClarifyRounds)

	state.AwaitClarification(intent, []string{"When should it happen?"})
	assert.Equal(t, 2, state.ClarifyRounds)

	slot := &CandidateSlot{Start: day(t, 9, 0), End: day(t, 10, 0)}
	state.AwaitConfirmation(intent, slot)
	assert.Equal(t, PhaseAwaitingConfirmation, state.Phase)
	assert.Same(t, slot, state.PendingSlot)
	assert.Empty(t, state.Questions)

	state.PendingOverride = true
	state.Reset()
	assert.Equal(t, PhaseIdle, state.Phase)
	assert.Nil(t, state.PendingIntent)
	assert.Nil(t, state.PendingSlot)
	assert.False(t, state.PendingOverride)
	assert.Zero(t, state.ClarifyRounds)
}

func TestConversationStateTurnLock(t *testing.T) {
	state := &ConversationState{Phase: PhaseIdle}

	require.True(t, state.TryAcquire())
	assert.False(t, state.TryAcquire())
	state.Release()
	assert.True(t, state.TryAcquire())
	state.Release()
}

func TestStateManagerGetCreatesOnce(t *testing.T) {
	manager := NewStateManager(nil, time.Minute)
	defer manager.Shutdown()

	first := manager.Get("u1")
	second := manager.Get("u1")
	assert.Same(t, first, second)
	assert.Equal(t, 1, manager.Size())

	manager.Get("u2")
	assert.Equal(t, 2, manager.Size())
}

func TestStateManagerEvictsIdle(t *testing.T) {
	manager := NewStateManager(nil, 10*time.Millisecond)
	defer manager.Shutdown()

	manager.Get("stale")
	time.Sleep(20 * time.Millisecond)
	manager.evictIdle()
	assert.Equal(t, 0, manager.Size())
}

func TestStateManagerSkipsLockedStates(t *testing.T) {
	manager := NewStateManager(nil, 10*time.Millisecond)
	defer manager.Shutdown()

	state := manager.Get("active")
	require.True(t, state.TryAcquire())
	time.Sleep(20 * time.Millisecond)

	manager.evictIdle()
	assert.Equal(t, 1, manager.Size())

	state.Release()
	manager.evictIdle()
	assert.Equal(t, 0, manager.Size())
}

func TestMatchesReply(t *testing.T) {
	tests := []struct {
		text        string
		affirmative bool
		negative    bool
	}{
		{"yes", true, false},
		{"Yes", true, false},
		{" yep! ", true, false},
		{"go ahead", true, false},
		{"ok.", true, false},
		{"no", false, true},
		{"Nope", false, true},
		{"never mind", false, true},
		{"yes please book it", false, false},
		{"maybe", false, false},
		{"", false, false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.affirmative, isAffirmative(tt.text), "affirmative %q", tt.text)
		assert.Equal(t, tt.negative, isNegative(tt.text), "negative %q", tt.text)
	}
}
