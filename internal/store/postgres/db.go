package postgres

import (
	"database/sql"
	"fmt"
	"time"

	_ "github.com/jackc/pgx/v5/stdlib"
)

// Open opens a PostgreSQL database using the pgx stdlib driver.
func Open(dsn string) (*sql.DB, error) {
	db, err := sql.Open("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open postgres: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping postgres: %w", err)
	}
	return db, nil
}

// Migrate runs idempotent DDL migrations for the chat schema on PostgreSQL.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id               UUID         PRIMARY KEY,
			username         VARCHAR(50)  UNIQUE NOT NULL,
			email            VARCHAR(100) UNIQUE NOT NULL,
			hashed_password  VARCHAR(255) NOT NULL,
			registered_at    TIMESTAMPTZ  NOT NULL DEFAULT NOW(),
			last_login       TIMESTAMPTZ,
			address_hash     VARCHAR(64),
			user_agent       TEXT,
			platform         TEXT
		)`,

		`CREATE TABLE IF NOT EXISTS contacts (
			id         BIGSERIAL   PRIMARY KEY,
			owner_id   UUID        NOT NULL REFERENCES users(id),
			target_id  UUID        NOT NULL REFERENCES users(id),
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			UNIQUE (owner_id, target_id)
		)`,

		`CREATE TABLE IF NOT EXISTS direct_messages (
			id          BIGSERIAL   PRIMARY KEY,
			sender_id   UUID        NOT NULL REFERENCES users(id),
			receiver_id UUID        NOT NULL REFERENCES users(id),
			content     TEXT        NOT NULL,
			created_at  TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS chat_groups (
			id          BIGSERIAL    PRIMARY KEY,
			name        VARCHAR(100) UNIQUE NOT NULL,
			description TEXT,
			created_at  TIMESTAMPTZ  NOT NULL DEFAULT NOW()
		)`,

		`CREATE TABLE IF NOT EXISTS group_members (
			group_id  BIGINT      NOT NULL REFERENCES chat_groups(id),
			user_id   UUID        NOT NULL REFERENCES users(id),
			joined_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
			PRIMARY KEY (group_id, user_id)
		)`,

		`CREATE TABLE IF NOT EXISTS group_messages (
			id         BIGSERIAL   PRIMARY KEY,
			group_id   BIGINT      NOT NULL REFERENCES chat_groups(id),
			sender_id  UUID        NOT NULL REFERENCES users(id),
			content    TEXT        NOT NULL,
			created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
		)`,

		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_lower ON users (lower(email))`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_owner ON contacts(owner_id)`,
		`CREATE INDEX IF NOT EXISTS idx_dm_pair_created ON direct_messages(sender_id, receiver_id, created_at)`,
		`CREATE INDEX IF NOT EXISTS idx_dm_receiver ON direct_messages(receiver_id)`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id)`,
		`CREATE INDEX IF NOT EXISTS idx_group_messages_group_created ON group_messages(group_id, created_at)`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w\nSQL: %s", err, stmt)
		}
	}
	return nil
}
