package scheduler

import (
	"context"

	"github.com/dharmateja03/CalBot/store"
)

// StorePreferences reads per-user preferences from the application
// store. A user with no saved row yields nil, which callers map to the
// built-in defaults.
type StorePreferences struct {
	store *store.Store
}

// NewStorePreferences creates a store-backed preferences source.
func NewStorePreferences(st *store.Store) *StorePreferences {
	return &StorePreferences{store: st}
}

func (p *StorePreferences) GetPreferences(ctx context.Context, userID string) (*Preferences, error) {
	row, err := p.store.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: &userID})
	if err != nil {
		return nil, err
	}
	if row == nil {
		return nil, nil
	}
	return &Preferences{
		WorkHoursStart: row.WorkHoursStart,
		WorkHoursEnd:   row.WorkHoursEnd,
		BreakStart:     row.BreakStart,
		BreakEnd:       row.BreakEnd,
		Timezone:       row.Timezone,
	}, nil
}
