package scheduler

import (
	"context"
	"time"

	"github.com/dharmateja03/CalBot/plugin/calendar"
)

// collaboratorTimeout bounds every external calendar call. Mutating
// writes are never retried automatically so a timeout cannot produce
// duplicate events.
const collaboratorTimeout = 10 * time.Second

// Commit issues the event-creation request for an accepted slot and
// invalidates the availability index on success so subsequent
// resolutions in the same session see the new event.
//
// On failure the caller's conversation state must not be reset; the
// error is retryable and the user can confirm again without
// re-stating the request.
func (e *Engine) Commit(ctx context.Context, userID string, intent *Intent, slot *CandidateSlot, overridden bool) (*CommitResult, error) {
	callCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	description := intent.Description
	if description == "" {
		description = "Scheduled by CalBot"
	}
	created, err := e.provider.CreateEvent(callCtx, &calendar.CreateEventRequest{
		UserID:      userID,
		Title:       intent.Title,
		Description: description,
		Start:       slot.Start,
		End:         slot.End,
		Source:      "system",
	})
	if err != nil {
		return nil, wrapCollaboratorError(err, "create calendar event")
	}

	e.availability.Invalidate(userID)
	commitCounter.Inc()
	e.logger.Info("committed event",
		"user", userID,
		"title", intent.Title,
		"start", slot.Start,
		"end", slot.End,
		"overridden", overridden)

	return &CommitResult{
		Event:               convertProviderEvent(created),
		ConflictsOverridden: overridden,
	}, nil
}

// deleteEvent removes an existing event and invalidates the user's
// availability view.
func (e *Engine) deleteEvent(ctx context.Context, userID, uid string) error {
	callCtx, cancel := context.WithTimeout(ctx, collaboratorTimeout)
	defer cancel()

	if err := e.provider.DeleteEvent(callCtx, userID, uid); err != nil {
		return wrapCollaboratorError(err, "delete calendar event")
	}
	e.availability.Invalidate(userID)
	return nil
}
