package scheduler

// Check classifies a candidate slot against the availability snapshot
// and the user's work-hours boundary. Classification is deterministic:
// identical snapshot contents and candidate window always yield the
// same status.
//
// Work-hours violations dominate: a candidate outside the boundary is
// hard regardless of overlap, because hard conflicts are never offered
// for confirmation.
func Check(candidate *CandidateSlot, snap *Snapshot, prefs *Preferences) *ConflictResult {
	workStart, workEnd := prefs.workBounds(candidate.Start)
	if candidate.Start.Before(workStart) || candidate.End.After(workEnd) {
		return &ConflictResult{Status: ConflictHard}
	}

	// Snapshot events are ordered by start time, so the first overlap
	// found is the earliest conflicting event.
	for _, event := range snap.Events {
		if event.Overlaps(candidate.Start, candidate.End) {
			return &ConflictResult{Status: ConflictSoft, ConflictingEvent: event}
		}
	}

	return &ConflictResult{Status: ConflictClear}
}
