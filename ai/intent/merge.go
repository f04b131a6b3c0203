package intent

import (
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/dharmateja03/CalBot/server/service/scheduler"
)

var (
	hoursPattern   = regexp.MustCompile(`(\d+(?:\.\d+)?)\s*(?:hours?|hrs?|h)\b`)
	minutesPattern = regexp.MustCompile(`(\d+)\s*(?:minutes?|mins?|m)\b`)
)

// Merge folds a clarification answer into a pending intent, filling
// fields the user was asked about. It is deterministic and performs no
// external calls, so clarification turns never depend on the model.
func (e *Extractor) Merge(pending *scheduler.Intent, answer string) *scheduler.Intent {
	return mergeAnswer(pending, answer)
}

// Merge for the demo extractor uses the same deterministic rules.
func (e *DemoExtractor) Merge(pending *scheduler.Intent, answer string) *scheduler.Intent {
	return mergeAnswer(pending, answer)
}

func mergeAnswer(pending *scheduler.Intent, answer string) *scheduler.Intent {
	merged := *pending
	normalized := strings.ToLower(answer)

	if merged.DurationMinutes == nil {
		if minutes, ok := parseDurationAnswer(normalized); ok {
			merged.DurationMinutes = &minutes
		}
	}
	if len(merged.Windows) == 0 {
		merged.Windows = parseWindowAnswer(normalized, time.Now().UTC())
	}
	if merged.Confidence == scheduler.ConfidenceAmbiguous && merged.Title == "" {
		merged.Title = fallbackTitle(answer)
		merged.Confidence = scheduler.ConfidenceHigh
	}
	return &merged
}

// parseDurationAnswer recognizes answers like "2 hours", "90 minutes",
// "1.5h", or a bare number (interpreted as minutes when small enough
// to be plausible).
func parseDurationAnswer(answer string) (int, bool) {
	if m := hoursPattern.FindStringSubmatch(answer); m != nil {
		hours, err := strconv.ParseFloat(m[1], 64)
		if err == nil && hours > 0 {
			return int(hours * 60), true
		}
	}
	if m := minutesPattern.FindStringSubmatch(answer); m != nil {
		minutes, err := strconv.Atoi(m[1])
		if err == nil && minutes > 0 {
			return minutes, true
		}
	}
	if minutes, err := strconv.Atoi(strings.TrimSpace(answer)); err == nil && minutes > 0 && minutes <= 600 {
		return minutes, true
	}
	return 0, false
}

// parseWindowAnswer recognizes day and time-of-day words in a
// clarification answer and builds preferred windows from them.
func parseWindowAnswer(answer string, now time.Time) []scheduler.Window {
	day := now
	switch {
	case strings.Contains(answer, "tomorrow"):
		day = now.Add(24 * time.Hour)
	case strings.Contains(answer, "today"):
		day = now
	default:
		if weekday, ok := parseWeekday(answer); ok {
			day = nextWeekday(now, weekday)
		} else if !hasTimeOfDay(answer) {
			return nil
		}
	}

	startHour, endHour := 9, 17
	switch {
	case strings.Contains(answer, "morning"):
		startHour, endHour = 9, 12
	case strings.Contains(answer, "afternoon"):
		startHour, endHour = 13, 17
	case strings.Contains(answer, "evening"):
		startHour, endHour = 17, 20
	}

	midnight := time.Date(day.Year(), day.Month(), day.Day(), 0, 0, 0, 0, time.UTC)
	return []scheduler.Window{{
		Earliest: midnight.Add(time.Duration(startHour) * time.Hour),
		Latest:   midnight.Add(time.Duration(endHour) * time.Hour),
	}}
}

func hasTimeOfDay(answer string) bool {
	for _, word := range []string{"morning", "afternoon", "evening"} {
		if strings.Contains(answer, word) {
			return true
		}
	}
	return false
}

var weekdays = map[string]time.Weekday{
	"monday":    time.Monday,
	"tuesday":   time.Tuesday,
	"wednesday": time.Wednesday,
	"thursday":  time.Thursday,
	"friday":    time.Friday,
	"saturday":  time.Saturday,
	"sunday":    time.Sunday,
}

func parseWeekday(answer string) (time.Weekday, bool) {
	for name, weekday := range weekdays {
		if strings.Contains(answer, name) {
			return weekday, true
		}
	}
	return time.Sunday, false
}

// nextWeekday returns the next occurrence of the weekday strictly
// after today.
func nextWeekday(now time.Time, weekday time.Weekday) time.Time {
	days := (int(weekday) - int(now.Weekday()) + 7) % 7
	if days == 0 {
		days = 7
	}
	return now.Add(time.Duration(days) * 24 * time.Hour)
}
