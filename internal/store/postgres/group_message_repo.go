package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"securechat/internal/domain"
)

type GroupMessageRepo struct {
	db *sql.DB
}

func NewGroupMessageRepo(db *sql.DB) *GroupMessageRepo {
	return &GroupMessageRepo{db: db}
}

var _ domain.GroupMessageRepository = (*GroupMessageRepo)(nil)

func (r *GroupMessageRepo) Create(ctx context.Context, m *domain.GroupMessage) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO group_messages (group_id, sender_id, content, created_at)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, created_at
	`, m.GroupID, m.SenderID, m.Content).Scan(&m.ID, &m.CreatedAt)
	if isForeignKeyViolation(err) {
		return domain.ErrGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("insert group message: %w", err)
	}
	return nil
}

func (r *GroupMessageRepo) ListForGroup(ctx context.Context, groupID int64) ([]*domain.GroupMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, group_id, sender_id, content, created_at
		FROM group_messages
		WHERE group_id = $1
		ORDER BY created_at ASC, id ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list group messages: %w", err)
	}
	defer rows.Close()

	res := []*domain.GroupMessage{}
	for rows.Next() {
		m := &domain.GroupMessage{}
		if err := rows.Scan(&m.ID, &m.GroupID, &m.SenderID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
