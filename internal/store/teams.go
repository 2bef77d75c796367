package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/distributed-ci/dci-server/internal/model"
)

// CreateTeam inserts a new team.
func (s *Store) CreateTeam(ctx context.Context, team *model.Team) error {
	now := time.Now().UTC()
	team.ID = uuid.NewString()
	team.Etag = uuid.NewString()
	team.State = model.StateActive
	team.CreatedAt = now
	team.UpdatedAt = now

	const q = `INSERT INTO teams (id, name, country, state, etag, created_at, updated_at)
		VALUES (:id, :name, :country, :state, :etag, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, q, team); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "teams", Field: "name"}
		}
		return err
	}
	return nil
}

// GetTeam returns a team by id.
func (s *Store) GetTeam(ctx context.Context, id string) (*model.Team, error) {
	var team model.Team
	err := s.db.GetContext(ctx, &team, s.db.Rebind(`SELECT * FROM teams WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &team, nil
}

// ListTeams returns every non-archived team.
func (s *Store) ListTeams(ctx context.Context) ([]model.Team, error) {
	teams := []model.Team{}
	err := s.db.SelectContext(ctx, &teams,
		`SELECT * FROM teams WHERE state != 'archived' ORDER BY created_at`)
	return teams, err
}

// ArchiveTeam soft-deletes a team under etag protection.
func (s *Store) ArchiveTeam(ctx context.Context, id, etag string) error {
	const q = `UPDATE teams SET state = 'archived', updated_at = ? WHERE id = ? AND etag = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), time.Now().UTC(), id, etag)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrEtagMismatch
	}
	return nil
}
