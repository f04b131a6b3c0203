package scheduler

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testPrefs() *Preferences {
	return &Preferences{
		WorkHoursStart: "09:00",
		WorkHoursEnd:   "17:00",
		BreakStart:     "12:00",
		BreakEnd:       "13:00",
		Timezone:       "UTC",
	}
}

func day(t *testing.T, hour, minute int) time.Time {
	t.Helper()
	return time.Date(2026, 9, 1, hour, minute, 0, 0, time.UTC)
}

func intPtr(v int) *int {
	return &v
}

func createIntent(durationMinutes int, windows ...Window) *Intent {
	return &Intent{
		Action:          ActionCreate,
		Title:           "deep work",
		DurationMinutes: intPtr(durationMinutes),
		Windows:         windows,
		Priority:        PriorityMedium,
		Confidence:      ConfidenceHigh,
	}
}

func TestResolveEmptyCalendar(t *testing.T) {
	intent := createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	snap := &Snapshot{UserID: "u1"}

	candidates, clarification := Resolve(intent, snap, testPrefs())
	require.Nil(t, clarification)
	require.Len(t, candidates, 1)
	assert.Equal(t, day(t, 9, 0), candidates[0].Start)
	assert.Equal(t, day(t, 11, 0), candidates[0].End)
}

func TestResolveSkipsBusyInterval(t *testing.T) {
	intent := createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	snap := &Snapshot{UserID: "u1", Events: []*Event{
		{UID: "e1", Title: "Standup", Start: day(t, 9, 0), End: day(t, 10, 30)},
	}}

	candidates, clarification := Resolve(intent, snap, testPrefs())
	require.Nil(t, clarification)
	require.NotEmpty(t, candidates)
	for _, candidate := range candidates {
		assert.False(t, candidate.Start.Before(day(t, 10, 30)),
			"candidate %v starts before the busy interval ends", candidate.Start)
	}
}

func TestResolveMissingDuration(t *testing.T) {
	intent := createIntent(0, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	intent.DurationMinutes = nil

	candidates, clarification := Resolve(intent, &Snapshot{}, testPrefs())
	assert.Nil(t, candidates)
	require.NotNil(t, clarification)
	require.NotEmpty(t, clarification.Questions)
	assert.Contains(t, clarification.Questions[0], "How long")
}

func TestResolveMissingWindows(t *testing.T) {
	intent := createIntent(60)

	candidates, clarification := Resolve(intent, &Snapshot{}, testPrefs())
	assert.Nil(t, candidates)
	require.NotNil(t, clarification)
}

func TestResolveAmbiguousConfidence(t *testing.T) {
	intent := createIntent(60, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	intent.Confidence = ConfidenceAmbiguous

	_, clarification := Resolve(intent, &Snapshot{}, testPrefs())
	require.NotNil(t, clarification)
}

func TestResolveNoRoomReturnsEmpty(t *testing.T) {
	intent := createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	snap := &Snapshot{UserID: "u1", Events: []*Event{
		{UID: "e1", Title: "All day workshop", Start: day(t, 8, 0), End: day(t, 18, 0)},
	}}

	candidates, clarification := Resolve(intent, snap, testPrefs())
	assert.Nil(t, clarification)
	assert.Empty(t, candidates)
}

func TestResolveExactWindowKeptDespiteOverlap(t *testing.T) {
	// A window exactly matching the duration is an explicit time
	// request; overlap handling is the conflict detector's job.
	intent := createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 11, 0)})
	snap := &Snapshot{UserID: "u1", Events: []*Event{
		{UID: "e1", Title: "Standup", Start: day(t, 9, 30), End: day(t, 10, 0)},
	}}

	candidates, clarification := Resolve(intent, snap, testPrefs())
	require.Nil(t, clarification)
	require.Len(t, candidates, 1)
	assert.Equal(t, day(t, 9, 0), candidates[0].Start)
	assert.Equal(t, day(t, 11, 0), candidates[0].End)
}

func TestResolveOffersPostBreakAlternative(t *testing.T) {
	intent := createIntent(120, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	snap := &Snapshot{UserID: "u1", Events: []*Event{
		{UID: "e1", Title: "Sync", Start: day(t, 9, 0), End: day(t, 10, 30)},
	}}

	candidates, clarification := Resolve(intent, snap, testPrefs())
	require.Nil(t, clarification)
	require.Len(t, candidates, 2)

	// The break-avoiding slot outranks the one cutting into lunch.
	assert.Equal(t, day(t, 13, 0), candidates[0].Start)
	assert.Equal(t, day(t, 10, 30), candidates[1].Start)
}

func TestResolveCandidateDurationMatchesIntent(t *testing.T) {
	for _, minutes := range []int{30, 60, 90, 240} {
		intent := createIntent(minutes, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
		candidates, _ := Resolve(intent, &Snapshot{}, testPrefs())
		require.NotEmpty(t, candidates)
		for _, candidate := range candidates {
			assert.Equal(t, time.Duration(minutes)*time.Minute, candidate.End.Sub(candidate.Start))
		}
	}
}

func TestResolveDeterministic(t *testing.T) {
	intent := createIntent(60, Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)})
	snap := &Snapshot{UserID: "u1", Events: []*Event{
		{UID: "e1", Title: "A", Start: day(t, 10, 0), End: day(t, 11, 0)},
		{UID: "e2", Title: "B", Start: day(t, 14, 0), End: day(t, 15, 0)},
	}}

	first, _ := Resolve(intent, snap, testPrefs())
	second, _ := Resolve(intent, snap, testPrefs())
	require.Equal(t, len(first), len(second))
	for i := range first {
		assert.Equal(t, first[i].Start, second[i].Start)
		assert.Equal(t, first[i].Rank, second[i].Rank)
	}
}

func TestResolveLowPriorityPrefersLaterSlot(t *testing.T) {
	window := Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)}
	snap := &Snapshot{UserID: "u1", Events: []*Event{
		{UID: "e1", Title: "A", Start: day(t, 10, 0), End: day(t, 11, 0)},
	}}

	normal := createIntent(60, window)
	low := createIntent(60, window)
	low.Priority = PriorityLow

	normalCandidates, _ := Resolve(normal, snap, testPrefs())
	lowCandidates, _ := Resolve(low, snap, testPrefs())
	require.NotEmpty(t, normalCandidates)
	require.NotEmpty(t, lowCandidates)
	assert.True(t, lowCandidates[0].Start.After(normalCandidates[0].Start),
		"low priority should yield a later slot than the default ranking")
}

func TestSubtractBusyMergesAndClamps(t *testing.T) {
	window := Window{Earliest: day(t, 9, 0), Latest: day(t, 17, 0)}
	busy := []*Event{
		{Start: day(t, 8, 0), End: day(t, 9, 30)},
		{Start: day(t, 9, 15), End: day(t, 10, 0)},
		{Start: day(t, 16, 30), End: day(t, 18, 0)},
	}

	free := subtractBusy(window, busy)
	require.Len(t, free, 1)
	assert.Equal(t, day(t, 10, 0), free[0].Earliest)
	assert.Equal(t, day(t, 16, 30), free[0].Latest)
}

func TestOccurrenceOffsetPatterns(t *testing.T) {
	// A Friday, so weekday recurrence must skip the weekend.
	friday := time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC)
	require.Equal(t, time.Friday, friday.Weekday())

	tests := []struct {
		pattern    string
		occurrence int
		wantDays   int
	}{
		{RecurDaily, 1, 1},
		{RecurDaily, 3, 3},
		{RecurWeekly, 1, 7},
		{RecurWeekly, 2, 14},
		{RecurWeekdays, 1, 3}, // Friday -> Monday
		{RecurWeekdays, 2, 4}, // Friday -> Tuesday
	}
	for _, tt := range tests {
		offset := occurrenceOffset(friday, tt.pattern, tt.occurrence)
		assert.Equal(t, time.Duration(tt.wantDays)*24*time.Hour, offset,
			"pattern %s occurrence %d", tt.pattern, tt.occurrence)
	}
}
