// Package store selects and opens the relational backend.
package store

import (
	"database/sql"
	"fmt"

	"securechat/internal/config"
	"securechat/internal/domain"
	"securechat/internal/store/postgres"
	"securechat/internal/store/sqlite"
)

// Repositories bundles every repository over one shared *sql.DB.
type Repositories struct {
	DB            *sql.DB
	Users         domain.UserRepository
	Contacts      domain.ContactRepository
	Messages      domain.MessageRepository
	Groups        domain.GroupRepository
	GroupMessages domain.GroupMessageRepository
}

// Open connects to the configured driver and applies migrations.
func Open(cfg *config.Config) (*Repositories, error) {
	switch cfg.DBDriver {
	case config.DriverSQLite:
		db, err := sqlite.Open(cfg.SQLitePath)
		if err != nil {
			return nil, err
		}
		if err := sqlite.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate sqlite: %w", err)
		}
		return NewSQLite(db), nil
	case config.DriverPostgres:
		db, err := postgres.Open(cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		if err := postgres.Migrate(db); err != nil {
			db.Close()
			return nil, fmt.Errorf("migrate postgres: %w", err)
		}
		return NewPostgres(db), nil
	}
	return nil, fmt.Errorf("unsupported db driver %q", cfg.DBDriver)
}

func NewSQLite(db *sql.DB) *Repositories {
	return &Repositories{
		DB:            db,
		Users:         sqlite.NewUserRepo(db),
		Contacts:      sqlite.NewContactRepo(db),
		Messages:      sqlite.NewMessageRepo(db),
		Groups:        sqlite.NewGroupRepo(db),
		GroupMessages: sqlite.NewGroupMessageRepo(db),
	}
}

func NewPostgres(db *sql.DB) *Repositories {
	return &Repositories{
		DB:            db,
		Users:         postgres.NewUserRepo(db),
		Contacts:      postgres.NewContactRepo(db),
		Messages:      postgres.NewMessageRepo(db),
		Groups:        postgres.NewGroupRepo(db),
		GroupMessages: postgres.NewGroupMessageRepo(db),
	}
}

func (r *Repositories) Close() error {
	return r.DB.Close()
}
