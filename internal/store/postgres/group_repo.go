package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"securechat/internal/domain"
)

type GroupRepo struct {
	db *sql.DB
}

func NewGroupRepo(db *sql.DB) *GroupRepo {
	return &GroupRepo{db: db}
}

var _ domain.GroupRepository = (*GroupRepo)(nil)

func (r *GroupRepo) Create(ctx context.Context, g *domain.Group, memberIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	err = tx.QueryRowContext(ctx, `
		INSERT INTO chat_groups (name, description, created_at)
		VALUES ($1, $2, NOW())
		RETURNING id, created_at
	`, g.Name, g.Description).Scan(&g.ID, &g.CreatedAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateName
	}
	if err != nil {
		return fmt.Errorf("insert group: %w", err)
	}

	if err := insertMembers(ctx, tx, g.ID, memberIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func (r *GroupRepo) GetByID(ctx context.Context, id int64) (*domain.Group, error) {
	g := &domain.Group{}
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, description, created_at FROM chat_groups WHERE id = $1
	`, id).Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrGroupNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("get group: %w", err)
	}
	return g, nil
}

func (r *GroupRepo) AddMembers(ctx context.Context, groupID int64, userIDs []string) error {
	tx, err := r.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback()

	// Lock the group row so membership changes for one group are serialized.
	var id int64
	err = tx.QueryRowContext(ctx, `SELECT id FROM chat_groups WHERE id = $1 FOR SHARE`, groupID).Scan(&id)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.ErrGroupNotFound
	}
	if err != nil {
		return fmt.Errorf("check group: %w", err)
	}

	if err := insertMembers(ctx, tx, groupID, userIDs); err != nil {
		return err
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("commit: %w", err)
	}
	return nil
}

func insertMembers(ctx context.Context, tx *sql.Tx, groupID int64, userIDs []string) error {
	for _, uid := range userIDs {
		_, err := tx.ExecContext(ctx, `
			INSERT INTO group_members (group_id, user_id, joined_at)
			VALUES ($1, $2, NOW())
			ON CONFLICT (group_id, user_id) DO NOTHING
		`, groupID, uid)
		if isForeignKeyViolation(err) || isBadUUID(err) {
			return domain.ErrParticipantNotFound
		}
		if err != nil {
			return fmt.Errorf("insert member: %w", err)
		}
	}
	return nil
}

func (r *GroupRepo) IsMember(ctx context.Context, groupID int64, userID string) (bool, error) {
	var exists bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (SELECT 1 FROM group_members WHERE group_id = $1 AND user_id = $2)
	`, groupID, userID).Scan(&exists)
	if isBadUUID(err) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("is member: %w", err)
	}
	return exists, nil
}

func (r *GroupRepo) ListMembers(ctx context.Context, groupID int64) ([]*domain.GroupMember, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT gm.group_id, gm.user_id, u.username, gm.joined_at
		FROM group_members gm
		JOIN users u ON u.id = gm.user_id
		WHERE gm.group_id = $1
		ORDER BY u.username ASC
	`, groupID)
	if err != nil {
		return nil, fmt.Errorf("list members: %w", err)
	}
	defer rows.Close()

	res := []*domain.GroupMember{}
	for rows.Next() {
		m := &domain.GroupMember{}
		if err := rows.Scan(&m.GroupID, &m.UserID, &m.Username, &m.JoinedAt); err != nil {
			return nil, fmt.Errorf("scan member: %w", err)
		}
		res = append(res, m)
	}
	return res, rows.Err()
}

func (r *GroupRepo) ListForUser(ctx context.Context, userID string) ([]*domain.Group, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT g.id, g.name, g.description, g.created_at
		FROM chat_groups g
		JOIN group_members gm ON gm.group_id = g.id
		WHERE gm.user_id = $1
		ORDER BY g.name ASC
	`, userID)
	if isBadUUID(err) {
		return []*domain.Group{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("list groups: %w", err)
	}
	defer rows.Close()

	res := []*domain.Group{}
	for rows.Next() {
		g := &domain.Group{}
		if err := rows.Scan(&g.ID, &g.Name, &g.Description, &g.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan group: %w", err)
		}
		res = append(res, g)
	}
	return res, rows.Err()
}
