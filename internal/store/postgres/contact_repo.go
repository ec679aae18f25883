package postgres

import (
	"context"
	"database/sql"
	"fmt"

	"securechat/internal/domain"
)

type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

var _ domain.ContactRepository = (*ContactRepo)(nil)

func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO contacts (owner_id, target_id, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, created_at
	`, c.OwnerID, c.TargetID).Scan(&c.ID, &c.CreatedAt)
	switch {
	case isUniqueViolation(err):
		return domain.ErrDuplicateEdge
	case isForeignKeyViolation(err), isBadUUID(err):
		return domain.ErrTargetNotFound
	case err != nil:
		return fmt.Errorf("insert contact: %w", err)
	}
	return nil
}

func (r *ContactRepo) ListForOwner(ctx context.Context, ownerID string) ([]*domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.owner_id, c.target_id, u.username, c.created_at
		FROM contacts c
		JOIN users u ON u.id = c.target_id
		WHERE c.owner_id = $1
		ORDER BY u.username ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	res := []*domain.Contact{}
	for rows.Next() {
		c := &domain.Contact{}
		if err := rows.Scan(&c.ID, &c.OwnerID, &c.TargetID, &c.TargetUsername, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ContactRepo) Delete(ctx context.Context, ownerID, targetID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM contacts WHERE owner_id = $1 AND target_id = $2`, ownerID, targetID)
	if isBadUUID(err) {
		return domain.ErrEdgeNotFound
	}
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrEdgeNotFound
	}
	return nil
}
