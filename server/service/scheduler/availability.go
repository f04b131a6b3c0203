package scheduler

import (
	"context"
	"log/slog"
	"sort"
	"time"

	"github.com/dharmateja03/CalBot/internal/cache"
	"github.com/dharmateja03/CalBot/plugin/calendar"
)

// Availability is the per-user view of existing calendar events over a
// bounded lookahead window. It is a read-through cache over the
// calendar provider with a bounded TTL and explicit invalidation after
// every commit.
type Availability struct {
	provider  calendar.Provider
	cache     *cache.LRU[string, []*Event]
	lookahead time.Duration
	logger    *slog.Logger
}

// NewAvailability creates an availability index. ttl bounds how stale
// a cached user view may be; lookahead bounds how far ahead events are
// fetched.
func NewAvailability(provider calendar.Provider, lookahead, ttl time.Duration, logger *slog.Logger) *Availability {
	if logger == nil {
		logger = slog.Default()
	}
	return &Availability{
		provider:  provider,
		cache:     cache.NewLRU[string, []*Event](1024, ttl),
		lookahead: lookahead,
		logger:    logger,
	}
}

// Snapshot returns a consistent view of the user's busy intervals for
// one resolution cycle. All conflict checks and the subsequent commit
// decision within a cycle must use the same snapshot.
func (a *Availability) Snapshot(ctx context.Context, userID string, now time.Time) (*Snapshot, error) {
	if events, ok := a.cache.Get(userID); ok {
		return &Snapshot{UserID: userID, Events: events}, nil
	}

	from := now.UTC()
	to := from.Add(a.lookahead)
	raw, err := a.provider.ListEvents(ctx, userID, from, to)
	if err != nil {
		// Reads are safe to retry once; writes never are.
		a.logger.Warn("calendar list failed, retrying once", "user", userID, "err", err)
		raw, err = a.provider.ListEvents(ctx, userID, from, to)
		if err != nil {
			return nil, wrapCollaboratorError(err, "list calendar events")
		}
	}

	events := make([]*Event, 0, len(raw))
	for _, item := range raw {
		events = append(events, convertProviderEvent(item))
	}
	sort.Slice(events, func(i, j int) bool {
		return events[i].Start.Before(events[j].Start)
	})

	a.cache.Set(userID, events, 0)
	a.logger.Debug("refreshed availability index", "user", userID, "events", len(events))
	return &Snapshot{UserID: userID, Events: events}, nil
}

// Invalidate drops the cached view for a user. Called after every
// commit so subsequent resolutions see the newly created event.
func (a *Availability) Invalidate(userID string) {
	a.cache.Remove(userID)
}

// Snapshot is an immutable per-cycle view of a user's busy intervals,
// ordered by start time.
type Snapshot struct {
	UserID string
	Events []*Event
}

// Busy returns the events overlapping [from, to), in start order.
func (s *Snapshot) Busy(from, to time.Time) []*Event {
	var busy []*Event
	for _, event := range s.Events {
		if event.Overlaps(from, to) {
			busy = append(busy, event)
		}
	}
	return busy
}

// FindByTitle returns the first event whose title contains the given
// reference, case-insensitively. Used to locate targets of cancel and
// modify requests.
func (s *Snapshot) FindByTitle(reference string) *Event {
	if reference == "" {
		return nil
	}
	for _, event := range s.Events {
		if containsFold(event.Title, reference) {
			return event
		}
	}
	return nil
}

func convertProviderEvent(raw *calendar.Event) *Event {
	return &Event{
		UID:         raw.UID,
		Title:       raw.Title,
		Description: raw.Description,
		Start:       raw.Start,
		End:         raw.End,
		Source:      raw.Source,
	}
}
