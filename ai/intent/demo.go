package intent

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"github.com/dharmateja03/CalBot/server/service/scheduler"
)

// DemoExtractor interprets requests with deterministic keyword rules.
// It exists so the assistant runs end to end without an LLM API key;
// it understands the same phrasing the clarification merger does.
type DemoExtractor struct {
	logger *slog.Logger
}

// NewDemoExtractor creates the keyword-based extractor.
func NewDemoExtractor(logger *slog.Logger) *DemoExtractor {
	if logger == nil {
		logger = slog.Default()
	}
	return &DemoExtractor{logger: logger}
}

func (e *DemoExtractor) Extract(_ context.Context, text string, _ []scheduler.HistoryMessage) (*scheduler.Intent, error) {
	normalized := strings.ToLower(text)

	switch {
	case containsAny(normalized, "what's on", "whats on", "show my", "list my", "my schedule", "my calendar", "free time"):
		return &scheduler.Intent{Action: scheduler.ActionQuery, Confidence: scheduler.ConfidenceHigh}, nil

	case containsAny(normalized, "cancel", "delete", "remove"):
		return &scheduler.Intent{
			Action:          scheduler.ActionCancel,
			TargetReference: trimActionWords(text, "cancel", "delete", "remove"),
			Confidence:      scheduler.ConfidenceHigh,
		}, nil

	case containsAny(normalized, "move", "reschedule"):
		intent := &scheduler.Intent{
			Action:          scheduler.ActionModify,
			TargetReference: trimActionWords(text, "move", "reschedule"),
			Confidence:      scheduler.ConfidenceHigh,
		}
		intent.Windows = parseWindowAnswer(normalized, time.Now().UTC())
		return intent, nil

	case containsAny(normalized, "schedule", "book", "block", "set up", "plan"):
		intent := &scheduler.Intent{
			Action:     scheduler.ActionCreate,
			Title:      demoTitle(text),
			Priority:   demoPriority(normalized),
			Confidence: scheduler.ConfidenceHigh,
		}
		if minutes, ok := parseDurationAnswer(normalized); ok {
			intent.DurationMinutes = &minutes
		}
		intent.Windows = parseWindowAnswer(normalized, time.Now().UTC())
		intent.Recurrence = demoRecurrence(normalized)
		return intent, nil

	default:
		return nil, &scheduler.AmbiguousIntentError{
			Reason: "no scheduling verb recognized",
			Questions: []string{
				"I can schedule, cancel, move, or list events. What would you like to do?",
			},
		}
	}
}

func demoTitle(text string) string {
	normalized := text
	for _, word := range []string{"schedule", "book", "block", "set up", "plan", "for", "a ", "an "} {
		normalized = strings.ReplaceAll(strings.ToLower(normalized), word, " ")
	}
	// Strip duration and day phrasing so only the subject remains.
	normalized = hoursPattern.ReplaceAllString(normalized, " ")
	normalized = minutesPattern.ReplaceAllString(normalized, " ")
	for _, word := range []string{"tomorrow", "today", "morning", "afternoon", "evening", "every day", "daily"} {
		normalized = strings.ReplaceAll(normalized, word, " ")
	}
	title := strings.Join(strings.Fields(normalized), " ")
	if title == "" {
		return fallbackTitle(text)
	}
	return title
}

func demoPriority(normalized string) scheduler.Priority {
	switch {
	case containsAny(normalized, "urgent", "important", "high priority", "asap"):
		return scheduler.PriorityHigh
	case containsAny(normalized, "low priority", "whenever", "no rush"):
		return scheduler.PriorityLow
	default:
		return scheduler.PriorityMedium
	}
}

func demoRecurrence(normalized string) *scheduler.Recurrence {
	count := 5
	switch {
	case containsAny(normalized, "every weekday", "each weekday"):
		return &scheduler.Recurrence{Count: count, Pattern: scheduler.RecurWeekdays}
	case containsAny(normalized, "every week", "weekly"):
		return &scheduler.Recurrence{Count: 4, Pattern: scheduler.RecurWeekly}
	case containsAny(normalized, "every day", "daily"):
		return &scheduler.Recurrence{Count: count, Pattern: scheduler.RecurDaily}
	default:
		return nil
	}
}

func trimActionWords(text string, words ...string) string {
	normalized := strings.ToLower(strings.TrimSpace(text))
	for _, word := range words {
		normalized = strings.TrimPrefix(normalized, word)
	}
	for _, filler := range []string{"the", "my", "meeting", "event"} {
		normalized = strings.TrimSpace(strings.TrimPrefix(strings.TrimSpace(normalized), filler))
	}
	return strings.TrimSpace(normalized)
}

func containsAny(haystack string, needles ...string) bool {
	for _, needle := range needles {
		if strings.Contains(haystack, needle) {
			return true
		}
	}
	return false
}
