package sqlite

import (
	"database/sql"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// Open opens a SQLite database at path. Foreign keys and a busy timeout are
// set through the DSN so every pooled connection gets them.
func Open(path string) (*sql.DB, error) {
	dsn := path
	sep := "?"
	if strings.Contains(dsn, "?") {
		sep = "&"
	}
	dsn += sep + "_pragma=foreign_keys(1)&_pragma=busy_timeout(5000)&_pragma=journal_mode(WAL)"

	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}
	// SQLite allows a single writer; one connection avoids SQLITE_BUSY churn.
	db.SetMaxOpenConns(1)
	if err := db.Ping(); err != nil {
		db.Close()
		return nil, fmt.Errorf("ping sqlite: %w", err)
	}
	return db, nil
}

// Migrate creates the schema. Every statement is idempotent.
func Migrate(db *sql.DB) error {
	stmts := []string{
		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			username VARCHAR(50) UNIQUE NOT NULL,
			email VARCHAR(100) UNIQUE NOT NULL,
			hashed_password VARCHAR(255) NOT NULL,
			registered_at DATETIME NOT NULL,
			last_login DATETIME DEFAULT NULL,
			address_hash VARCHAR(64) DEFAULT NULL,
			user_agent TEXT DEFAULT NULL,
			platform TEXT DEFAULT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS contacts (
			id INTEGER PRIMARY KEY,
			owner_id TEXT NOT NULL,
			target_id TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			UNIQUE (owner_id, target_id),
			FOREIGN KEY (owner_id) REFERENCES users(id),
			FOREIGN KEY (target_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS direct_messages (
			id INTEGER PRIMARY KEY,
			sender_id TEXT NOT NULL,
			receiver_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (sender_id) REFERENCES users(id),
			FOREIGN KEY (receiver_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS chat_groups (
			id INTEGER PRIMARY KEY,
			name VARCHAR(100) UNIQUE NOT NULL,
			description TEXT DEFAULT NULL,
			created_at DATETIME NOT NULL
		);`,
		`CREATE TABLE IF NOT EXISTS group_members (
			group_id INTEGER NOT NULL,
			user_id TEXT NOT NULL,
			joined_at DATETIME NOT NULL,
			PRIMARY KEY (group_id, user_id),
			FOREIGN KEY (group_id) REFERENCES chat_groups(id),
			FOREIGN KEY (user_id) REFERENCES users(id)
		);`,
		`CREATE TABLE IF NOT EXISTS group_messages (
			id INTEGER PRIMARY KEY,
			group_id INTEGER NOT NULL,
			sender_id TEXT NOT NULL,
			content TEXT NOT NULL,
			created_at DATETIME NOT NULL,
			FOREIGN KEY (group_id) REFERENCES chat_groups(id),
			FOREIGN KEY (sender_id) REFERENCES users(id)
		);`,
		`CREATE UNIQUE INDEX IF NOT EXISTS idx_users_email_nocase ON users(email COLLATE NOCASE);`,
		`CREATE INDEX IF NOT EXISTS idx_contacts_owner ON contacts(owner_id);`,
		`CREATE INDEX IF NOT EXISTS idx_dm_pair_created ON direct_messages(sender_id, receiver_id, created_at);`,
		`CREATE INDEX IF NOT EXISTS idx_dm_receiver ON direct_messages(receiver_id);`,
		`CREATE INDEX IF NOT EXISTS idx_group_members_user ON group_members(user_id);`,
		`CREATE INDEX IF NOT EXISTS idx_group_messages_group_created ON group_messages(group_id, created_at);`,
	}

	for _, stmt := range stmts {
		if _, err := db.Exec(stmt); err != nil {
			return fmt.Errorf("migrate: %w", err)
		}
	}
	return nil
}
