package calendar

import (
	"context"
	"time"

	"github.com/lithammer/shortuuid/v4"
	"github.com/pkg/errors"

	"github.com/dharmateja03/CalBot/store"
)

// LocalProvider persists events in the application store. It is the
// default backend and requires no external credentials.
type LocalProvider struct {
	store *store.Store
}

// NewLocalProvider creates a store-backed calendar provider.
func NewLocalProvider(store *store.Store) *LocalProvider {
	return &LocalProvider{store: store}
}

func (p *LocalProvider) ListEvents(ctx context.Context, userID string, from, to time.Time) ([]*Event, error) {
	fromTs := from.Unix()
	toTs := to.Unix()
	list, err := p.store.ListCalendarEvents(ctx, &store.FindCalendarEvent{
		UserID:        &userID,
		StartTsAfter:  &fromTs,
		StartTsBefore: &toTs,
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to list calendar events")
	}

	events := make([]*Event, 0, len(list))
	for _, raw := range list {
		events = append(events, convertEventFromStore(raw))
	}
	return events, nil
}

func (p *LocalProvider) CreateEvent(ctx context.Context, create *CreateEventRequest) (*Event, error) {
	raw, err := p.store.CreateCalendarEvent(ctx, &store.CalendarEvent{
		UID:         shortuuid.New(),
		UserID:      create.UserID,
		Title:       create.Title,
		Description: create.Description,
		StartTs:     create.Start.Unix(),
		EndTs:       create.End.Unix(),
		Source:      store.EventSource(create.Source),
	})
	if err != nil {
		return nil, errors.Wrap(err, "failed to create calendar event")
	}
	return convertEventFromStore(raw), nil
}

func (p *LocalProvider) DeleteEvent(ctx context.Context, userID, uid string) error {
	err := p.store.DeleteCalendarEvent(ctx, &store.DeleteCalendarEvent{
		UserID: userID,
		UID:    uid,
	})
	if errors.Is(err, store.ErrNotFound) {
		return ErrNotFound
	}
	return err
}

func convertEventFromStore(raw *store.CalendarEvent) *Event {
	return &Event{
		UID:         raw.UID,
		UserID:      raw.UserID,
		Title:       raw.Title,
		Description: raw.Description,
		Start:       time.Unix(raw.StartTs, 0).UTC(),
		End:         time.Unix(raw.EndTs, 0).UTC(),
		Source:      string(raw.Source),
	}
}
