package store

import (
	"fmt"
	"strings"
)

// The DDL below sticks to the SQL subset both SQLite and Postgres accept, so
// the same migration list runs against either backend.
func (s *Store) migrate() error {
	migrations := []string{
		`CREATE TABLE IF NOT EXISTS teams (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			country TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'active',
			etag TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS roles (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			label TEXT UNIQUE NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'active',
			etag TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS permissions (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			label TEXT NOT NULL,
			description TEXT NOT NULL DEFAULT '',
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS roles_permissions (
			role_id TEXT NOT NULL REFERENCES roles(id) ON DELETE CASCADE,
			permission_id TEXT NOT NULL REFERENCES permissions(id) ON DELETE CASCADE,
			PRIMARY KEY (role_id, permission_id)
		)`,

		`CREATE TABLE IF NOT EXISTS users (
			id TEXT PRIMARY KEY,
			name TEXT UNIQUE NOT NULL,
			sso_username TEXT UNIQUE,
			email TEXT NOT NULL DEFAULT '',
			password_hash TEXT NOT NULL DEFAULT '',
			role_id TEXT NOT NULL REFERENCES roles(id),
			team_id TEXT REFERENCES teams(id),
			state TEXT NOT NULL DEFAULT 'active',
			etag TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE TABLE IF NOT EXISTS users_teams (
			user_id TEXT NOT NULL REFERENCES users(id) ON DELETE CASCADE,
			team_id TEXT NOT NULL REFERENCES teams(id) ON DELETE CASCADE,
			PRIMARY KEY (user_id, team_id)
		)`,

		`CREATE TABLE IF NOT EXISTS remotecis (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			team_id TEXT NOT NULL REFERENCES teams(id),
			api_secret TEXT NOT NULL,
			public BOOLEAN NOT NULL DEFAULT FALSE,
			state TEXT NOT NULL DEFAULT 'active',
			etag TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (name, team_id)
		)`,

		`CREATE TABLE IF NOT EXISTS feeders (
			id TEXT PRIMARY KEY,
			name TEXT NOT NULL,
			team_id TEXT NOT NULL REFERENCES teams(id),
			api_secret TEXT NOT NULL,
			state TEXT NOT NULL DEFAULT 'active',
			etag TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			updated_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP,
			UNIQUE (name, team_id)
		)`,

		`CREATE TABLE IF NOT EXISTS rconfigurations (
			id TEXT PRIMARY KEY,
			remoteci_id TEXT NOT NULL REFERENCES remotecis(id) ON DELETE CASCADE,
			name TEXT NOT NULL,
			topic TEXT NOT NULL DEFAULT '',
			component_types TEXT NOT NULL DEFAULT '',
			state TEXT NOT NULL DEFAULT 'active',
			etag TEXT NOT NULL,
			created_at TIMESTAMP NOT NULL DEFAULT CURRENT_TIMESTAMP
		)`,

		`CREATE INDEX IF NOT EXISTS idx_users_sso_username ON users(sso_username)`,
		`CREATE INDEX IF NOT EXISTS idx_remotecis_team ON remotecis(team_id)`,
		`CREATE INDEX IF NOT EXISTS idx_rconfigurations_remoteci ON rconfigurations(remoteci_id)`,
	}

	for _, m := range migrations {
		if _, err := s.db.Exec(m); err != nil {
			// SQLite ALTER TABLE ADD COLUMN fails if column already exists;
			// treat "duplicate column" as a no-op for idempotent migrations.
			if strings.Contains(err.Error(), "duplicate column") {
				continue
			}
			return fmt.Errorf("migration failed: %w\nSQL: %s", err, m)
		}
	}
	return nil
}
