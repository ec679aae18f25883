package postgres

import (
	"context"
	"database/sql"
	"fmt"

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
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO direct_messages (sender_id, receiver_id, content, created_at)
		VALUES ($1, $2, $3, clock_timestamp())
		RETURNING id, created_at
	`, m.SenderID, m.ReceiverID, m.Content).Scan(&m.ID, &m.CreatedAt)
	if isForeignKeyViolation(err) || isBadUUID(err) {
		return domain.ErrParticipantNotFound
	}
	if err != nil {
		return fmt.Errorf("insert message: %w", err)
	}
	return nil
}

func (r *MessageRepo) ListBetween(ctx context.Context, userA, userB string) ([]*domain.DirectMessage, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, sender_id, receiver_id, content, created_at
		FROM direct_messages
		WHERE (sender_id = $1 AND receiver_id = $2)
		   OR (sender_id = $2 AND receiver_id = $1)
		ORDER BY created_at ASC, id ASC
	`, userA, userB)
	if isBadUUID(err) {
		return []*domain.DirectMessage{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list messages: %w", err)
	}
	return r.scanMessages(rows)
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *MessageRepo) scanMessages(rows *sql.Rows) ([]*domain.DirectMessage, error) {
	defer rows.Close()
	res := []*domain.DirectMessage{}
	for rows.Next() {
		m := &domain.DirectMessage{}
		if err := rows.Scan(&m.ID, &m.SenderID, &m.ReceiverID, &m.Content, &m.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}
