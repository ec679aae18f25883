package sqlite

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"securechat/internal/domain"
)

type ContactRepo struct {
	db *sql.DB
}

func NewContactRepo(db *sql.DB) *ContactRepo {
	return &ContactRepo{db: db}
}

var _ domain.ContactRepository = (*ContactRepo)(nil)

// Create inserts the edge. Uniqueness of (owner, target) is enforced by the
// table constraint, so concurrent duplicates yield exactly one row.
func (r *ContactRepo) Create(ctx context.Context, c *domain.Contact) error {
	c.CreatedAt = time.Now().UTC()
	res, err := r.db.ExecContext(ctx, `
		INSERT INTO contacts (owner_id, target_id, created_at)
		VALUES (?, ?, ?)
	`, c.OwnerID, c.TargetID, c.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateEdge
	}
	if isForeignKeyViolation(err) {
		return domain.ErrTargetNotFound
	}
	if err != nil {
		return fmt.Errorf("insert contact: %w", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return fmt.Errorf("last insert id: %w", err)
	}
	c.ID = id
	return nil
}

func (r *ContactRepo) ListForOwner(ctx context.Context, ownerID string) ([]*domain.Contact, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT c.id, c.owner_id, c.target_id, u.username, c.created_at
		FROM contacts c
		JOIN users u ON u.id = c.target_id
		WHERE c.owner_id = ?
		ORDER BY u.username ASC
	`, ownerID)
	if err != nil {
		return nil, fmt.Errorf("list contacts: %w", err)
	}
	defer rows.Close()

	res := []*domain.Contact{}
	for rows.Next() {
		c := &domain.Contact{}
		if err := rows.Scan(
			&c.ID,
			&c.OwnerID,
			&c.TargetID,
			&c.TargetUsername,
			&c.CreatedAt,
		); err != nil {
			return nil, fmt.Errorf("scan contact: %w", err)
		}
		res = append(res, c)
	}
	return res, rows.Err()
}

func (r *ContactRepo) Delete(ctx context.Context, ownerID, targetID string) error {
	res, err := r.db.ExecContext(ctx, `
		DELETE FROM contacts WHERE owner_id = ? AND target_id = ?
	`, ownerID, targetID)
	if err != nil {
		return fmt.Errorf("delete contact: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrEdgeNotFound
	}
	return nil
}
