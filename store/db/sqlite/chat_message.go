package sqlite

import (
	"context"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dharmateja03/CalBot/store"
)

func (d *DB) CreateChatMessage(ctx context.Context, create *store.ChatMessage) (*store.ChatMessage, error) {
	now := time.Now().Unix()
	if err := d.db.QueryRowContext(ctx, `
		INSERT INTO chat_message (user_id, role, content, created_ts)
		VALUES (?, ?, ?, ?)
		RETURNING id
	`, create.UserID, create.Role, create.Content, now).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create chat message")
	}
	create.CreatedTs = now
	return create, nil
}

func (d *DB) ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	where, args := []string{"1 = 1"}, []any{}

	if v := find.UserID; v != nil {
		where, args = append(where, "user_id = ?"), append(args, *v)
	}
	if v := find.CreatedTsAfter; v != nil {
		where, args = append(where, "created_ts >= ?"), append(args, *v)
	}

	order := "ASC"
	if find.OrderByCreatedTsDesc {
		order = "DESC"
	}
	query := `
		SELECT id, user_id, role, content, created_ts
		FROM chat_message
		WHERE ` + strings.Join(where, " AND ") + `
		ORDER BY created_ts ` + order + `, id ` + order + `
	`
	if find.Limit != nil {
		query += " LIMIT ?"
		args = append(args, *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat messages")
	}
	defer rows.Close()

	list := []*store.ChatMessage{}
	for rows.Next() {
		msg := &store.ChatMessage{}
		if err := rows.Scan(&msg.ID, &msg.UserID, &msg.Role, &msg.Content, &msg.CreatedTs); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat message")
		}
		list = append(list, msg)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "rows error")
	}
	return list, nil
}

func (d *DB) DeleteChatMessages(ctx context.Context, delete *store.DeleteChatMessage) error {
	if _, err := d.db.ExecContext(ctx,
		"DELETE FROM chat_message WHERE user_id = ?", delete.UserID,
	); err != nil {
		return errors.Wrap(err, "failed to delete chat messages")
	}
	return nil
}
