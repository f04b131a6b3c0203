package intent

import (
	"context"
	"testing"

	"github.com/pkg/errors"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dharmateja03/CalBot/server/service/scheduler"
)

func TestDemoExtractCreate(t *testing.T) {
	extractor := NewDemoExtractor(nil)

	intent, err := extractor.Extract(context.Background(), "schedule 2 hours for the quarterly report tomorrow morning", nil)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ActionCreate, intent.Action)
	require.NotNil(t, intent.DurationMinutes)
	assert.Equal(t, 120, *intent.DurationMinutes)
	require.Len(t, intent.Windows, 1)
	assert.Contains(t, intent.Title, "quarterly report")
	assert.Equal(t, scheduler.ConfidenceHigh, intent.Confidence)
}

func TestDemoExtractCreateNoDuration(t *testing.T) {
	extractor := NewDemoExtractor(nil)

	intent, err := extractor.Extract(context.Background(), "book time for a dentist visit tomorrow", nil)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ActionCreate, intent.Action)
	assert.Nil(t, intent.DurationMinutes)
}

func TestDemoExtractQuery(t *testing.T) {
	extractor := NewDemoExtractor(nil)

	for _, text := range []string{"what's on today?", "show my calendar", "list my schedule"} {
		intent, err := extractor.Extract(context.Background(), text, nil)
		require.NoError(t, err, text)
		assert.Equal(t, scheduler.ActionQuery, intent.Action, text)
	}
}

func TestDemoExtractCancel(t *testing.T) {
	extractor := NewDemoExtractor(nil)

	intent, err := extractor.Extract(context.Background(), "cancel the standup", nil)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ActionCancel, intent.Action)
	assert.Equal(t, "standup", intent.TargetReference)
}

func TestDemoExtractModify(t *testing.T) {
	extractor := NewDemoExtractor(nil)

	intent, err := extractor.Extract(context.Background(), "move the design review to tomorrow afternoon", nil)
	require.NoError(t, err)
	assert.Equal(t, scheduler.ActionModify, intent.Action)
	assert.Contains(t, intent.TargetReference, "design review")
	require.Len(t, intent.Windows, 1)
}

func TestDemoExtractPriority(t *testing.T) {
	extractor := NewDemoExtractor(nil)

	intent, err := extractor.Extract(context.Background(), "schedule an urgent call with legal tomorrow", nil)
	require.NoError(t, err)
	assert.Equal(t, scheduler.PriorityHigh, intent.Priority)

	intent, err = extractor.Extract(context.Background(), "block an hour for reading, no rush", nil)
	require.NoError(t, err)
	assert.Equal(t, scheduler.PriorityLow, intent.Priority)
}

func TestDemoExtractRecurrence(t *testing.T) {
	extractor := NewDemoExtractor(nil)

	intent, err := extractor.Extract(context.Background(), "schedule 30 minutes of review every weekday", nil)
	require.NoError(t, err)
	require.NotNil(t, intent.Recurrence)
	assert.Equal(t, scheduler.RecurWeekdays, intent.Recurrence.Pattern)

	intent, err = extractor.Extract(context.Background(), "book a weekly sync with the team tomorrow", nil)
	require.NoError(t, err)
	require.NotNil(t, intent.Recurrence)
	assert.Equal(t, scheduler.RecurWeekly, intent.Recurrence.Pattern)
	assert.Equal(t, 4, intent.Recurrence.Count)
}

func TestDemoExtractAmbiguous(t *testing.T) {
	extractor := NewDemoExtractor(nil)

	_, err := extractor.Extract(context.Background(), "hello there", nil)
	var ambiguous *scheduler.AmbiguousIntentError
	require.True(t, errors.As(err, &ambiguous))
	assert.NotEmpty(t, ambiguous.Questions)
}
