package intent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmateja03/CalBot/server/service/scheduler"
)

func pendingIntent() *scheduler.Intent {
	return &scheduler.Intent{
		Action:     scheduler.ActionCreate,
		Title:      "deep work",
		Priority:   scheduler.PriorityMedium,
		Confidence: scheduler.ConfidenceHigh,
	}
}

func TestParseDurationAnswer(t *testing.T) {
	tests := []struct {
		answer  string
		minutes int
		ok      bool
	}{
		{"2 hours", 120, true},
		{"1 hour", 60, true},
		{"1.5 hours", 90, true},
		{"90 minutes", 90, true},
		{"45 min", 45, true},
		{"2h", 120, true},
		{"30m", 30, true},
		{"90", 90, true},
		{"0", 0, false},
		{"all day", 0, false},
		{"5000", 0, false},
	}
	for _, tt := range tests {
		minutes, ok := parseDurationAnswer(tt.answer)
		assert.Equal(t, tt.ok, ok, tt.answer)
		if tt.ok {
			assert.Equal(t, tt.minutes, minutes, tt.answer)
		}
	}
}

func TestMergeFillsDuration(t *testing.T) {
	pending := pendingIntent()
	merged := mergeAnswer(pending, "about 2 hours")

	require.NotNil(t, merged.DurationMinutes)
	assert.Equal(t, 120, *merged.DurationMinutes)
	// The pending intent is left untouched.
	assert.Nil(t, pending.DurationMinutes)
}

func TestMergeKeepsExistingDuration(t *testing.T) {
	pending := pendingIntent()
	sixty := 60
	pending.DurationMinutes = &sixty

	merged := mergeAnswer(pending, "90 minutes")
	assert.Equal(t, 60, *merged.DurationMinutes)
}

func TestParseWindowAnswerTomorrowMorning(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	windows := parseWindowAnswer("tomorrow morning", now)

	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2026, 9, 2, 9, 0, 0, 0, time.UTC), windows[0].Earliest)
	assert.Equal(t, time.Date(2026, 9, 2, 12, 0, 0, 0, time.UTC), windows[0].Latest)
}

func TestParseWindowAnswerTimeOfDayOnly(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	windows := parseWindowAnswer("in the afternoon", now)
	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2026, 9, 1, 13, 0, 0, 0, time.UTC), windows[0].Earliest)
	assert.Equal(t, time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC), windows[0].Latest)

	windows = parseWindowAnswer("evening works", now)
	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2026, 9, 1, 17, 0, 0, 0, time.UTC), windows[0].Earliest)
	assert.Equal(t, time.Date(2026, 9, 1, 20, 0, 0, 0, time.UTC), windows[0].Latest)
}

func TestParseWindowAnswerWeekday(t *testing.T) {
	// 2026-09-01 is a Tuesday.
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	windows := parseWindowAnswer("friday", now)
	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2026, 9, 4, 9, 0, 0, 0, time.UTC), windows[0].Earliest)

	// The same weekday as today means next week, not today.
	windows = parseWindowAnswer("tuesday", now)
	require.Len(t, windows, 1)
	assert.Equal(t, time.Date(2026, 9, 8, 9, 0, 0, 0, time.UTC), windows[0].Earliest)
}

func TestParseWindowAnswerUnrecognized(t *testing.T) {
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)
	assert.Nil(t, parseWindowAnswer("whenever suits", now))
}

func TestMergeFillsTitleForAmbiguousIntent(t *testing.T) {
	pending := &scheduler.Intent{
		Action:     scheduler.ActionCreate,
		Confidence: scheduler.ConfidenceAmbiguous,
	}

	merged := mergeAnswer(pending, "Quarterly planning session")
	assert.Equal(t, "Quarterly planning session", merged.Title)
	assert.Equal(t, scheduler.ConfidenceHigh, merged.Confidence)
}

func TestNextWeekday(t *testing.T) {
	// Tuesday.
	now := time.Date(2026, 9, 1, 8, 0, 0, 0, time.UTC)

	assert.Equal(t, time.Date(2026, 9, 2, 8, 0, 0, 0, time.UTC), nextWeekday(now, time.Wednesday))
	assert.Equal(t, time.Date(2026, 9, 7, 8, 0, 0, 0, time.UTC), nextWeekday(now, time.Monday))
	assert.Equal(t, time.Date(2026, 9, 8, 8, 0, 0, 0, time.UTC), nextWeekday(now, time.Tuesday))
}
