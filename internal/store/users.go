package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/distributed-ci/dci-server/internal/model"
)

const userSelect = `SELECT u.id, u.name, COALESCE(u.sso_username, '') AS sso_username,
	u.email, u.password_hash, u.role_id, u.team_id, u.state, u.etag,
	u.created_at, u.updated_at, r.label AS role_label
	FROM users u JOIN roles r ON r.id = u.role_id`

// CreateUser inserts a new user. Name uniqueness violations yield a
// ConflictError.
func (s *Store) CreateUser(ctx context.Context, user *model.User) error {
	now := time.Now().UTC()
	user.ID = uuid.NewString()
	user.Etag = uuid.NewString()
	user.State = model.StateActive
	user.CreatedAt = now
	user.UpdatedAt = now

	const q = `INSERT INTO users (id, name, sso_username, email, password_hash, role_id, team_id, state, etag, created_at, updated_at)
		VALUES (:id, :name, :sso_username, :email, :password_hash, :role_id, :team_id, :state, :etag, :created_at, :updated_at)`
	row := struct {
		model.User
		SSOUsername *string `db:"sso_username"`
	}{User: *user}
	if user.SSOUsername != "" {
		row.SSOUsername = &user.SSOUsername
	}
	if _, err := s.db.NamedExecContext(ctx, q, row); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "users", Field: "name"}
		}
		return err
	}
	return nil
}

// GetUser returns a user by id.
func (s *Store) GetUser(ctx context.Context, id string) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user, s.db.Rebind(userSelect+` WHERE u.id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserByName returns an active user by login name, for basic auth.
func (s *Store) GetUserByName(ctx context.Context, name string) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind(userSelect+` WHERE u.name = ? AND u.state = 'active'`), name)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// GetUserBySSOUsername returns an active user by SSO subject.
func (s *Store) GetUserBySSOUsername(ctx context.Context, ssoUsername string) (*model.User, error) {
	var user model.User
	err := s.db.GetContext(ctx, &user,
		s.db.Rebind(userSelect+` WHERE u.sso_username = ? AND u.state = 'active'`), ssoUsername)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &user, nil
}

// ListUsers returns every non-archived user.
func (s *Store) ListUsers(ctx context.Context) ([]model.User, error) {
	users := []model.User{}
	err := s.db.SelectContext(ctx, &users,
		userSelect+` WHERE u.state != 'archived' ORDER BY u.created_at`)
	return users, err
}

// UserTeams returns every team the user belongs to: the primary team plus
// any extra memberships from the join table.
func (s *Store) UserTeams(ctx context.Context, userID string) ([]string, error) {
	teams := []string{}
	const q = `SELECT team_id FROM users_teams WHERE user_id = ?`
	if err := s.db.SelectContext(ctx, &teams, s.db.Rebind(q), userID); err != nil {
		return nil, err
	}
	var primary *string
	if err := s.db.GetContext(ctx, &primary,
		s.db.Rebind(`SELECT team_id FROM users WHERE id = ?`), userID); err != nil {
		return nil, err
	}
	if primary != nil {
		found := false
		for _, t := range teams {
			if t == *primary {
				found = true
				break
			}
		}
		if !found {
			teams = append(teams, *primary)
		}
	}
	return teams, nil
}

// AddUserToTeam records an extra team membership.
func (s *Store) AddUserToTeam(ctx context.Context, userID, teamID string) error {
	const q = `INSERT INTO users_teams (user_id, team_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), userID, teamID); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "users_teams", Field: "user_id, team_id"}
		}
		return err
	}
	return nil
}

// ProvisionSSOUser creates a user record for a first-seen SSO subject and
// returns it. The insert rides on the sso_username uniqueness constraint:
// when two first-logins race, the loser's insert is a no-op and both callers
// read back the single provisioned row. Idempotent by construction.
func (s *Store) ProvisionSSOUser(ctx context.Context, ssoUsername, email string) (*model.User, error) {
	roleID, err := s.RoleID(model.RoleUser)
	if err != nil {
		return nil, err
	}

	now := time.Now().UTC()
	const q = `INSERT INTO users (id, name, sso_username, email, password_hash, role_id, team_id, state, etag, created_at, updated_at)
		VALUES (?, ?, ?, ?, '', ?, NULL, 'active', ?, ?, ?)
		ON CONFLICT (sso_username) DO NOTHING`
	_, err = s.db.ExecContext(ctx, s.db.Rebind(q),
		uuid.NewString(), ssoUsername, ssoUsername, email, roleID, uuid.NewString(), now, now)
	if err != nil && !isUniqueViolation(err) {
		return nil, err
	}

	return s.GetUserBySSOUsername(ctx, ssoUsername)
}
