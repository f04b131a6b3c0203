package scheduler

import (
	"sort"
	"time"
)

// Resolve computes candidate slots for an intent against a consistent
// availability snapshot. It returns either ranked candidates or a
// ClarificationNeeded variant when the intent cannot be resolved
// without more information. An empty candidate list with a nil
// clarification means no availability exists in any preferred window.
func Resolve(intent *Intent, snap *Snapshot, prefs *Preferences) ([]*CandidateSlot, *ClarificationNeeded) {
	if questions := missingFieldQuestions(intent); len(questions) > 0 {
		return nil, &ClarificationNeeded{Questions: questions}
	}

	duration := intent.Duration()
	var candidates []*CandidateSlot
	for _, window := range intent.Windows {
		candidates = append(candidates, candidatesInWindow(window, duration, snap, prefs, intent.Priority)...)
	}

	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].Rank != candidates[j].Rank {
			return candidates[i].Rank > candidates[j].Rank
		}
		return candidates[i].Start.Before(candidates[j].Start)
	})
	return candidates, nil
}

// missingFieldQuestions generates the clarification question list for
// an intent that cannot be resolved yet.
func missingFieldQuestions(intent *Intent) []string {
	var questions []string
	if intent.Confidence == ConfidenceAmbiguous {
		questions = append(questions, "Could you rephrase what you would like to schedule?")
	}
	if intent.DurationMinutes == nil {
		questions = append(questions, "How long should this take?")
	}
	if len(intent.Windows) == 0 {
		questions = append(questions, "When would you like this scheduled? For example: tomorrow morning.")
	}
	return questions
}

// candidatesInWindow yields ranked candidates for one preferred
// window.
//
// When the window length equals the requested duration exactly the
// user has asked for a specific time, so the window itself is the only
// candidate and overlap classification is left to the conflict
// detector. Otherwise busy intervals are subtracted and one candidate
// is generated at the start of each free sub-interval that fits, plus
// a post-break alternative when the primary candidate would cut into
// the break.
func candidatesInWindow(window Window, duration time.Duration, snap *Snapshot, prefs *Preferences, priority Priority) []*CandidateSlot {
	if duration <= 0 || window.Duration() < duration {
		return nil
	}

	if window.Duration() == duration {
		slot := &CandidateSlot{Start: window.Earliest, End: window.Latest}
		slot.Rank = rankSlot(slot, window, prefs, priority)
		return []*CandidateSlot{slot}
	}

	var slots []*CandidateSlot
	breakStart, breakEnd := prefs.breakBounds(window.Earliest)
	for _, free := range subtractBusy(window, snap.Busy(window.Earliest, window.Latest)) {
		if free.Duration() < duration {
			continue
		}
		primary := &CandidateSlot{Start: free.Earliest, End: free.Earliest.Add(duration)}
		primary.Rank = rankSlot(primary, window, prefs, priority)
		slots = append(slots, primary)

		// If the earliest fit cuts into the break, also offer the
		// first slot after the break ends.
		if overlaps(primary.Start, primary.End, breakStart, breakEnd) && breakEnd.After(free.Earliest) {
			afterBreak := &CandidateSlot{Start: breakEnd, End: breakEnd.Add(duration)}
			if !afterBreak.End.After(free.Latest) {
				afterBreak.Rank = rankSlot(afterBreak, window, prefs, priority)
				slots = append(slots, afterBreak)
			}
		}
	}
	return slots
}

// subtractBusy removes busy intervals from a window, returning the
// free sub-intervals in chronological order. Busy events must be
// sorted by start time.
func subtractBusy(window Window, busy []*Event) []Window {
	var free []Window
	cursor := window.Earliest
	for _, event := range busy {
		if event.Start.After(cursor) {
			free = append(free, Window{Earliest: cursor, Latest: minTime(event.Start, window.Latest)})
		}
		if event.End.After(cursor) {
			cursor = event.End
		}
		if !cursor.Before(window.Latest) {
			return free
		}
	}
	if cursor.Before(window.Latest) {
		free = append(free, Window{Earliest: cursor, Latest: window.Latest})
	}
	return free
}

// rankSlot scores a candidate. Slots fully inside work hours score
// higher, slots clear of the break window higher still, and earlier
// slots within the preferred window beat later ones. Low priority
// requests invert the lateness term so they yield early slots to more
// important work.
func rankSlot(slot *CandidateSlot, window Window, prefs *Preferences, priority Priority) float64 {
	rank := 0.0
	workStart, workEnd := prefs.workBounds(slot.Start)
	if !slot.Start.Before(workStart) && !slot.End.After(workEnd) {
		rank += 2.0
	}
	breakStart, breakEnd := prefs.breakBounds(slot.Start)
	if !overlaps(slot.Start, slot.End, breakStart, breakEnd) {
		rank += 1.0
	}

	total := window.Duration().Minutes()
	if total > 0 {
		lateness := slot.Start.Sub(window.Earliest).Minutes() / total
		if priority == PriorityLow {
			lateness = 1.0 - lateness
		}
		rank -= lateness
	}
	return rank
}

// occurrenceWindows expands an intent's preferred windows for the i-th
// occurrence of its recurrence pattern. Occurrence 0 is the original
// request.
func occurrenceWindows(intent *Intent, occurrence int) []Window {
	if occurrence == 0 || intent.Recurrence == nil || len(intent.Windows) == 0 {
		return intent.Windows
	}
	offset := occurrenceOffset(intent.Windows[0].Earliest, intent.Recurrence.Pattern, occurrence)
	shifted := make([]Window, 0, len(intent.Windows))
	for _, window := range intent.Windows {
		shifted = append(shifted, window.Shift(offset))
	}
	return shifted
}

// occurrenceOffset computes the time offset of the i-th occurrence
// from the first, honoring the recurrence pattern. Weekday recurrence
// skips Saturdays and Sundays.
func occurrenceOffset(base time.Time, pattern string, occurrence int) time.Duration {
	const day = 24 * time.Hour
	switch pattern {
	case RecurWeekly:
		return time.Duration(occurrence) * 7 * day
	case RecurWeekdays:
		offset := time.Duration(0)
		remaining := occurrence
		cursor := base
		for remaining > 0 {
			cursor = cursor.Add(day)
			offset += day
			if wd := cursor.Weekday(); wd != time.Saturday && wd != time.Sunday {
				remaining--
			}
		}
		return offset
	default:
		return time.Duration(occurrence) * day
	}
}

func overlaps(aStart, aEnd, bStart, bEnd time.Time) bool {
	return aStart.Before(bEnd) && aEnd.After(bStart)
}

func minTime(a, b time.Time) time.Time {
	if a.Before(b) {
		return a
	}
	return b
}
