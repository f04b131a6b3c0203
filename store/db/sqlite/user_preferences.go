package sqlite

import (
	"context"
	"database/sql"
	"time"

	"github.com/pkg/errors"

	"github.com/dharmateja03/CalBot/store"
)

func (d *DB) UpsertUserPreferences(ctx context.Context, upsert *store.UpsertUserPreferences) (*store.UserPreferences, error) {
	now := time.Now().Unix()
	query := `
		INSERT INTO user_preferences (user_id, work_hours_start, work_hours_end, break_start, break_end, timezone, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT (user_id) DO UPDATE SET
			work_hours_start = EXCLUDED.work_hours_start,
			work_hours_end = EXCLUDED.work_hours_end,
			break_start = EXCLUDED.break_start,
			break_end = EXCLUDED.break_end,
			timezone = EXCLUDED.timezone,
			updated_ts = EXCLUDED.updated_ts
	`
	if _, err := d.db.ExecContext(ctx, query,
		upsert.UserID,
		upsert.WorkHoursStart,
		upsert.WorkHoursEnd,
		upsert.BreakStart,
		upsert.BreakEnd,
		upsert.Timezone,
		now,
		now,
	); err != nil {
		return nil, errors.Wrap(err, "failed to upsert user preferences")
	}

	return d.GetUserPreferences(ctx, &store.FindUserPreferences{UserID: &upsert.UserID})
}

func (d *DB) GetUserPreferences(ctx context.Context, find *store.FindUserPreferences) (*store.UserPreferences, error) {
	if find.UserID == nil {
		return nil, errors.New("user id required")
	}

	prefs := &store.UserPreferences{}
	err := d.db.QueryRowContext(ctx, `
		SELECT user_id, work_hours_start, work_hours_end, break_start, break_end, timezone, created_ts, updated_ts
		FROM user_preferences
		WHERE user_id = ?
	`, *find.UserID).Scan(
		&prefs.UserID,
		&prefs.WorkHoursStart,
		&prefs.WorkHoursEnd,
		&prefs.BreakStart,
		&prefs.BreakEnd,
		&prefs.Timezone,
		&prefs.CreatedTs,
		&prefs.UpdatedTs,
	)
	if errors.Is(err, sql.ErrNoRows) {
		// Absent row means defaults; callers fall back to the built-in preferences.
		return nil, nil
	}
	if err != nil {
		return nil, errors.Wrap(err, "failed to get user preferences")
	}
	return prefs, nil
}
