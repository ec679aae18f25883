package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"securechat/internal/domain"
)

type MessageRepo struct {
	db *sql.DB
}

func NewMessageRepo(db *sql.DB) *MessageRepo {
	return &MessageRepo{db: db}
}

var _ domain.MessageRepository = (*MessageRepo)(nil)

func (r *MessageRepo) Create(ctx context.Context, m *domain.DirectMessage) error {
	m.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO direct_messages (sender_id, receiver_id, content, created_at)
		VALUES (?, ?, ?, ?)
	`, m.SenderID, m.ReceiverID, m.Content, m.CreatedAt)
	if isForeignKeyViolation(err) {
		return domain.ErrParticipantNotFound
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	m.ID = id
	return nil
}

// ListBetween returns the conversation between two users in either direction,
// oldest first. Equal timestamps keep insertion order.
func (r *MessageRepo) ListBetween(ctx context.Context, userA, userB string) ([]*domain.DirectMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM direct_messages
		WHERE (sender_id = ? AND receiver_id = ?)
		   OR (sender_id = ? AND receiver_id = ?)
		ORDER BY created_at ASC, id ASC
	`, userA, userB, userB, userA)
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	defer rows.Close()

	res := []*domain.DirectMessage{}
	for rows.Next() {
		m := &domain.DirectMessage{}
		if err := rows.Scan(
			&m.ID,
			&m.SenderID,
			&m.ReceiverID,
			&m.Content,
			&m.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
