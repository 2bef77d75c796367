package store

import (
	"fmt"
	"os"
	"path/filepath"
	"sync"

	"github.com/jmoiron/sqlx"

	_ "github.com/jackc/pgx/v5/stdlib"
	_ "modernc.org/sqlite"
)

// Store persists the control server's resources: teams, users, remotecis,
// feeders, roles, and permissions. Production deployments run on Postgres;
// development and tests use SQLite.
type Store struct {
	db *sqlx.DB

	roleMu    sync.RWMutex
	roleCache map[string]string // label -> role id
}

// New opens a SQLite-backed store rooted at dataDir. Pass empty string for
// an in-memory database (used by tests).
func New(dataDir string) (*Store, error) {
	var dsn string
	if dataDir == "" {
		dsn = ":memory:?_journal_mode=WAL"
	} else {
		if err := os.MkdirAll(dataDir, 0755); err != nil {
			return nil, fmt.Errorf("create data dir: %w", err)
		}
		dsn = filepath.Join(dataDir, "dci.db") + "?_journal_mode=WAL&_busy_timeout=5000"
	}

	db, err := sqlx.Connect("sqlite", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}

	db.SetMaxOpenConns(1) // SQLite doesn't support concurrent writes

	if _, err := db.Exec("PRAGMA foreign_keys = ON"); err != nil {
		return nil, fmt.Errorf("enable foreign keys: %w", err)
	}

	return setup(db)
}

// NewPostgres opens a Postgres-backed store through the pgx stdlib driver.
func NewPostgres(dsn string) (*Store, error) {
	db, err := sqlx.Connect("pgx", dsn)
	if err != nil {
		return nil, fmt.Errorf("open database: %w", err)
	}
	return setup(db)
}

func setup(db *sqlx.DB) (*Store, error) {
	s := &Store{db: db, roleCache: map[string]string{}}
	if err := s.migrate(); err != nil {
		return nil, fmt.Errorf("migrate database: %w", err)
	}
	if err := s.seedRoles(); err != nil {
		return nil, fmt.Errorf("seed roles: %w", err)
	}
	if err := s.reloadRoleCache(); err != nil {
		return nil, fmt.Errorf("load role cache: %w", err)
	}
	return s, nil
}

// Close closes the underlying database connection.
func (s *Store) Close() error {
	return s.db.Close()
}
