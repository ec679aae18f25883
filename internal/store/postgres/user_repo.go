package postgres

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"securechat/internal/domain"
)

const userColumns = `id, username, email, hashed_password, registered_at, last_login, address_hash, user_agent, platform`

type UserRepo struct {
	db *sql.DB
}

func NewUserRepo(db *sql.DB) *UserRepo {
	return &UserRepo{db: db}
}

var _ domain.UserRepository = (*UserRepo)(nil)

func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO users (id, username, email, hashed_password, registered_at, address_hash, user_agent, platform)
		VALUES ($1, $2, $3, $4, NOW(), $5, $6, $7)
		RETURNING registered_at
	`, u.ID, u.Username, u.Email, u.HashedPassword, u.AddressHash, u.UserAgent, u.Platform,
	).Scan(&u.RegisteredAt)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateIdentity
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = $1`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = $1`, username)
}

func (r *UserRepo) RecordLogin(ctx context.Context, id string, at time.Time, addressHash *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users SET last_login = $1, address_hash = COALESCE($2, address_hash)
		WHERE id = $3
	`, at, addressHash, id)
	if isBadUUID(err) {
		return domain.ErrNotFound
	}
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	if n, err := res.RowsAffected(); err != nil {
		return fmt.Errorf("rows affected: %w", err)
	} else if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// ── helpers ──────────────────────────────────────────────────────────────────

func (r *UserRepo) scanUser(ctx context.Context, query string, args ...any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, args...).Scan(
		&u.ID, &u.Username, &u.Email, &u.HashedPassword,
		&u.RegisteredAt, &u.LastLogin, &u.AddressHash, &u.UserAgent, &u.Platform,
	)
	if errors.Is(err, sql.ErrNoRows) || isBadUUID(err) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
