package postgres

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/pkg/errors"

	"github.com/dharmateja03/CalBot/store"
)

func (d *DB) CreateChatMessage(ctx context.Context, create *store.ChatMessage) (*store.ChatMessage, error) {
	if create.CreatedTs == 0 {
		create.CreatedTs = time.Now().Unix()
	}
	if err := d.db.QueryRowContext(ctx, `
		INSERT INTO chat_message (user_id, role, content, created_ts)
		VALUES ($1, $2, $3, $4)
		RETURNING id
	`, create.UserID, create.Role, create.Content, create.CreatedTs).Scan(&create.ID); err != nil {
		return nil, errors.Wrap(err, "failed to create chat message")
	}
	return create, nil
}

func (d *DB) ListChatMessages(ctx context.Context, find *store.FindChatMessage) ([]*store.ChatMessage, error) {
	where, args := []string{"1 = 1"}, []any{}
	if find.UserID != nil {
		args = append(args, *find.UserID)
		where = append(where, fmt.Sprintf("user_id = $%d", len(args)))
	}
	if find.CreatedTsAfter != nil {
		args = append(args, *find.CreatedTsAfter)
		where = append(where, fmt.Sprintf("created_ts >= $%d", len(args)))
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
		query += fmt.Sprintf(" LIMIT %d", *find.Limit)
	}

	rows, err := d.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, errors.Wrap(err, "failed to list chat messages")
	}
	defer rows.Close()

	list := []*store.ChatMessage{}
	for rows.Next() {
		message := &store.ChatMessage{}
		if err := rows.Scan(
			&message.ID,
			&message.UserID,
			&message.Role,
			&message.Content,
			&message.CreatedTs,
		); err != nil {
			return nil, errors.Wrap(err, "failed to scan chat message")
		}
		list = append(list, message)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Wrap(err, "failed to iterate chat messages")
	}
	return list, nil
}

func (d *DB) DeleteChatMessages(ctx context.Context, delete *store.DeleteChatMessage) error {
	if _, err := d.db.ExecContext(ctx, `DELETE FROM chat_message WHERE user_id = $1`, delete.UserID); err != nil {
		return errors.Wrap(err, "failed to delete chat messages")
	}
	return nil
}
