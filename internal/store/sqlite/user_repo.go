package sqlite

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

// Create inserts u. The caller assigns u.ID; RegisteredAt is set here when zero.
func (r *UserRepo) Create(ctx context.Context, u *domain.User) error {
	if u.RegisteredAt.IsZero() {
		u.RegisteredAt = time.Now().UTC()
	}
	query := `
		INSERT INTO users (` + userColumns + `)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)
	`
	_, err := r.db.ExecContext(ctx, query,
		u.ID,
		u.Username,
		u.Email,
		u.HashedPassword,
		u.RegisteredAt,
		u.LastLogin,
		u.AddressHash,
		u.UserAgent,
		u.Platform,
	)
	if isUniqueViolation(err) {
		return domain.ErrDuplicateIdentity
	}
	if err != nil {
		return fmt.Errorf("insert user: %w", err)
	}
	return nil
}

func (r *UserRepo) GetByID(ctx context.Context, id string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE id = ?`, id)
}

func (r *UserRepo) GetByUsername(ctx context.Context, username string) (*domain.User, error) {
	return r.scanUser(ctx, `SELECT `+userColumns+` FROM users WHERE username = ?`, username)
}

func (r *UserRepo) RecordLogin(ctx context.Context, id string, at time.Time, addressHash *string) error {
	res, err := r.db.ExecContext(ctx, `
		UPDATE users
		SET last_login = ?, address_hash = COALESCE(?, address_hash)
		WHERE id = ?
	`, at.UTC(), addressHash, id)
	if err != nil {
		return fmt.Errorf("record login: %w", err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return fmt.Errorf("rows affected: %w", err)
	}
	if n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

func (r *UserRepo) scanUser(ctx context.Context, query string, arg any) (*domain.User, error) {
	u := &domain.User{}
	err := r.db.QueryRowContext(ctx, query, arg).Scan(
		&u.ID,
		&u.Username,
		&u.Email,
		&u.HashedPassword,
		&u.RegisteredAt,
		&u.LastLogin,
		&u.AddressHash,
		&u.UserAgent,
		&u.Platform,
	)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, domain.ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("scan user: %w", err)
	}
	return u, nil
}
