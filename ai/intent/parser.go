package intent

import (
	"encoding/json"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dharmateja03/CalBot/server/service/scheduler"
)

// rawIntent is the JSON shape the model is asked to produce.
type rawIntent struct {
	Action          string      `json:"action"`
	Title           string      `json:"title"`
	Description     string      `json:"description"`
	DurationMinutes *int        `json:"duration_minutes"`
	Windows         []rawWindow `json:"windows"`
	Recurrence      *rawRecur   `json:"recurrence"`
	Target          string      `json:"target"`
	Priority        string      `json:"priority"`
	Confidence      string      `json:"confidence"`
	NeedsClarify    bool        `json:"needs_clarification"`
	Questions       []string    `json:"questions"`
	Reason          string      `json:"reason"`
}

type rawWindow struct {
	Earliest string `json:"earliest"`
	Latest   string `json:"latest"`
}

type rawRecur struct {
	Count   int    `json:"count"`
	Pattern string `json:"pattern"`
}

// parseIntent decodes a model completion into a structured intent.
// Models frequently wrap JSON in markdown fences, so those are
// stripped first. An explicit ambiguity signal from the model becomes
// an *scheduler.AmbiguousIntentError rather than a degenerate intent.
func parseIntent(completion string) (*scheduler.Intent, error) {
	payload := stripFences(completion)

	var raw rawIntent
	if err := json.Unmarshal([]byte(payload), &raw); err != nil {
		return nil, errors.Wrap(err, "failed to decode intent JSON")
	}

	if raw.NeedsClarify || raw.Confidence == "ambiguous" {
		return nil, &scheduler.AmbiguousIntentError{
			Reason:    firstNonEmpty(raw.Reason, "request was ambiguous"),
			Questions: raw.Questions,
		}
	}

	parsed := &scheduler.Intent{
		Action:          parseAction(raw.Action),
		Title:           strings.TrimSpace(raw.Title),
		Description:     strings.TrimSpace(raw.Description),
		DurationMinutes: raw.DurationMinutes,
		TargetReference: strings.TrimSpace(raw.Target),
		Priority:        parsePriority(raw.Priority),
		Confidence:      scheduler.ConfidenceHigh,
	}

	for _, window := range raw.Windows {
		earliest, err := parseWhen(window.Earliest)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid window earliest %q", window.Earliest)
		}
		latest, err := parseWhen(window.Latest)
		if err != nil {
			return nil, errors.Wrapf(err, "invalid window latest %q", window.Latest)
		}
		if !earliest.Before(latest) {
			continue
		}
		parsed.Windows = append(parsed.Windows, scheduler.Window{Earliest: earliest, Latest: latest})
	}

	if raw.Recurrence != nil && raw.Recurrence.Count > 1 {
		parsed.Recurrence = &scheduler.Recurrence{
			Count:   raw.Recurrence.Count,
			Pattern: parsePattern(raw.Recurrence.Pattern),
		}
	}

	return parsed, nil
}

// stripFences removes a surrounding markdown code fence, with or
// without a language tag.
func stripFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```")
	if idx := strings.Index(s, "\n"); idx >= 0 {
		// Drop the language tag line ("json" etc).
		if !strings.Contains(s[:idx], "{") {
			s = s[idx+1:]
		}
	}
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func parseWhen(value string) (time.Time, error) {
	for _, layout := range []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02 15:04"} {
		if t, err := time.Parse(layout, value); err == nil {
			return t.UTC(), nil
		}
	}
	return time.Time{}, errors.Errorf("unrecognized time %q", value)
}

func parseAction(value string) scheduler.Action {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "cancel", "delete":
		return scheduler.ActionCancel
	case "modify", "reschedule", "move":
		return scheduler.ActionModify
	case "query", "list", "show":
		return scheduler.ActionQuery
	default:
		return scheduler.ActionCreate
	}
}

func parsePriority(value string) scheduler.Priority {
	switch strings.ToLower(strings.TrimSpace(value)) {
	case "high":
		return scheduler.PriorityHigh
	case "low":
		return scheduler.PriorityLow
	default:
		return scheduler.PriorityMedium
	}
}

func parsePattern(value string) string {
	value = strings.ToLower(strings.TrimSpace(value))
	switch {
	case value == "weekdays":
		return scheduler.RecurWeekdays
	case strings.HasPrefix(value, "weekly"):
		return scheduler.RecurWeekly
	default:
		return scheduler.RecurDaily
	}
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
