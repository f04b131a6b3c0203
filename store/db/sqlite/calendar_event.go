package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dharmateja03/CalBot/store"
)

func (d *DB) CreateCalendarEvent(ctx context.Context, create *store.CalendarEvent) (*store.CalendarEvent, error) {
	now := time.Now().Unix()
	query := `
		INSERT INTO calendar_event (uid, user_id, title, description, start_ts, end_ts, source, created_ts, updated_ts)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`
	if err := d.db.QueryRowContext(ctx, query,
		create.UID,
		create.UserID,
		create.Title,
		create.Description,
		create.StartTs,
		create.EndTs,
		string(create.Source),
		now,
		now,
	).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create calendar event")
	}

	create.CreatedTs = now
	create.UpdatedTs = now
	return create, nil
}

func (d *DB) ListCalendarEvents(ctx context.Context, find *store.FindCalendarEvent) ([]*store.CalendarEvent, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.UID; v != nil {
		where, args = append(where, "uid = ?"), append(args, *v)
	}
	// Overlap test: event intersects [StartTsAfter, StartTsBefore).
	if v := find.StartTsAfter; v != nil {
		where, args = append(where, "end_ts > ?"), append(args, *v)
	}
	if v := find.StartTsBefore; v != nil {
		where, args = append(where, "start_ts < ?"), append(args, *v)
	}

	query := `
		SELECT id, uid, user_id, title, description, start_ts, end_ts, source, created_ts, updated_ts
		FROM calendar_event
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY start_ts ASC
	`
	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list calendar events")
	}
	defer rows.Close()

	list := []*store.CalendarEvent{}
	for rows.Next() {
		event := &store.CalendarEvent{}
		var source string
		if err := rows.Scan(
			&event.ID,
			&event.UID,
			&event.UserID,
			&event.Title,
			&event.Description,
			&event.StartTs,
			&event.EndTs,
			&source,
			&event.CreatedTs,
			&event.UpdatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan calendar event")
		}
		event.Source = store.EventSource(source)
		list = append(list, event)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return list, nil
}

func (d *DB) DeleteCalendarEvent(ctx context.Context, delete *store.DeleteCalendarEvent) error {
	result, err := d.db.ExecContext(ctx,
		"DELETE FROM calendar_event WHERE user_id = ? AND uid = ?",
		delete.UserID, delete.UID,
	)
	if err != nil {
		return errors.Wrap(err, "failed to delete calendar event")
	}
	if affected, _ := result.RowsAffected(); affected == 0 {
		return errors.Wrapf(store.ErrNotFound, "calendar event %s", delete.UID)
	}
	return nil
}
