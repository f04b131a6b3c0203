package scheduler

import (
	"context"
	"fmt"

	"github.com/pkg/errors"
)

// Failure taxonomy. Every failure is scoped to a single user's turn;
// nothing here is fatal to the process.
var (
	// ErrBusy signals that another turn for the same user is still
	// resolving. The caller should ask the user to retry.
	ErrBusy = errors.New("a previous request is still being processed, please retry")

	// ErrRateLimited signals the per-user turn rate cap was hit.
	ErrRateLimited = errors.New("too many requests, please slow down")

	// ErrNoAvailability signals the resolver found zero candidates in
	// every preferred window.
	ErrNoAvailability = errors.New("no availability in the requested windows")

	// ErrMaxClarificationExceeded signals the clarification round cap
	// was reached and the pending request was abandoned.
	ErrMaxClarificationExceeded = errors.New("too many clarification rounds, request abandoned")

	// ErrCollaboratorTimeout signals an external call exceeded its
	// deadline. Retryable; conversation state is preserved.
	ErrCollaboratorTimeout = errors.New("external service timed out")

	// ErrCollaboratorFailure signals a non-timeout error from the
	// calendar or intent services. Retryable; no partial commit.
	ErrCollaboratorFailure = errors.New("external service failed")
)

// ValidationError reports malformed intent fields. It is recovered
// locally by re-requesting clarification.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("invalid intent field %s: %s", e.Field, e.Reason)
}

// AmbiguousIntentError is the extractor's distinct ambiguity variant.
// Callers must not treat it as "no intent".
type AmbiguousIntentError struct {
	Reason    string
	Questions []string
}

func (e *AmbiguousIntentError) Error() string {
	return fmt.Sprintf("ambiguous intent: %s", e.Reason)
}

// UserFacingReply maps turn-scoped failures onto conversational reply
// text. The second return is false for errors that should surface as
// failures rather than replies.
func UserFacingReply(err error) (string, bool) {
	switch {
	case errors.Is(err, ErrNoAvailability):
		return "I couldn't find any free time in the windows you gave me. Try a different day or a shorter duration.", true
	case errors.Is(err, ErrMaxClarificationExceeded):
		return "I still couldn't pin down the details, so I've set that request aside. Feel free to start over with the full details.", true
	case errors.Is(err, ErrBusy):
		return "I'm still working on your previous request. Give me a moment and try again.", true
	case errors.Is(err, ErrRateLimited):
		return "You're sending messages faster than I can keep up with. Please slow down a little.", true
	}
	return "", false
}

// wrapCollaboratorError maps an external call failure onto the
// taxonomy: deadline overruns become ErrCollaboratorTimeout, anything
// else ErrCollaboratorFailure. Both are retryable.
func wrapCollaboratorError(err error, operation string) error {
	if errors.Is(err, context.DeadlineExceeded) {
		return errors.Wrapf(ErrCollaboratorTimeout, "%s: %v", operation, err)
	}
	return errors.Wrapf(ErrCollaboratorFailure, "%s: %v", operation, err)
}
