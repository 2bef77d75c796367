package store

import (
	"context"
	"database/sql"
	"errors"
	"time"

	"github.com/google/uuid"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/signature"
)

// CreateRemoteCI inserts a new remoteci with a freshly generated api_secret.
// The secret is returned on the struct; it is never exposed again outside of
// an explicit rotation.
func (s *Store) CreateRemoteCI(ctx context.Context, r *model.RemoteCI) error {
	now := time.Now().UTC()
	r.ID = uuid.NewString()
	r.Etag = uuid.NewString()
	r.State = model.StateActive
	r.CreatedAt = now
	r.UpdatedAt = now

	secret, err := signature.GenSecret()
	if err != nil {
		return err
	}
	r.APISecret = secret

	const q = `INSERT INTO remotecis (id, name, team_id, api_secret, public, state, etag, created_at, updated_at)
		VALUES (:id, :name, :team_id, :api_secret, :public, :state, :etag, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, q, r); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "remotecis", Field: "name"}
		}
		return err
	}
	return nil
}

// GetRemoteCI returns a remoteci by id.
func (s *Store) GetRemoteCI(ctx context.Context, id string) (*model.RemoteCI, error) {
	var r model.RemoteCI
	err := s.db.GetContext(ctx, &r, s.db.Rebind(`SELECT * FROM remotecis WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &r, nil
}

// ListRemoteCIs returns non-archived remotecis, optionally limited to one
// team. Non-admin callers are scoped to their own team by the handler.
func (s *Store) ListRemoteCIs(ctx context.Context, teamID string) ([]model.RemoteCI, error) {
	rcis := []model.RemoteCI{}
	if teamID == "" {
		err := s.db.SelectContext(ctx, &rcis,
			`SELECT * FROM remotecis WHERE state != 'archived' ORDER BY created_at`)
		return rcis, err
	}
	err := s.db.SelectContext(ctx, &rcis,
		s.db.Rebind(`SELECT * FROM remotecis WHERE state != 'archived' AND team_id = ? ORDER BY created_at`),
		teamID)
	return rcis, err
}

// UpdateRemoteCI applies values under etag protection and returns the new etag.
func (s *Store) UpdateRemoteCI(ctx context.Context, id, etag string, r *model.RemoteCI) (string, error) {
	newEtag := uuid.NewString()
	const q = `UPDATE remotecis SET name = ?, public = ?, etag = ?, updated_at = ?
		WHERE id = ? AND etag = ? AND state != 'archived'`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		r.Name, r.Public, newEtag, time.Now().UTC(), id, etag)
	if err != nil {
		return "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", err
	}
	if n == 0 {
		return "", ErrEtagMismatch
	}
	return newEtag, nil
}

// ArchiveRemoteCI soft-deletes a remoteci under etag protection.
func (s *Store) ArchiveRemoteCI(ctx context.Context, id, etag string) error {
	const q = `UPDATE remotecis SET state = 'archived', updated_at = ? WHERE id = ? AND etag = ?`
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

// ListArchivedRemoteCIs returns archived remotecis awaiting purge.
func (s *Store) ListArchivedRemoteCIs(ctx context.Context) ([]model.RemoteCI, error) {
	rcis := []model.RemoteCI{}
	err := s.db.SelectContext(ctx, &rcis, `SELECT * FROM remotecis WHERE state = 'archived'`)
	return rcis, err
}

// PurgeArchivedRemoteCIs permanently removes archived remotecis.
func (s *Store) PurgeArchivedRemoteCIs(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM remotecis WHERE state = 'archived'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// RotateAPISecret replaces a remoteci's api_secret under etag protection.
// The old secret stops verifying the instant the update commits; the new
// secret and etag are returned together.
func (s *Store) RotateAPISecret(ctx context.Context, id, etag string) (secret, newEtag string, err error) {
	secret, err = signature.GenSecret()
	if err != nil {
		return "", "", err
	}
	newEtag = uuid.NewString()

	const q = `UPDATE remotecis SET api_secret = ?, etag = ?, updated_at = ?
		WHERE id = ? AND etag = ? AND state != 'archived'`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), secret, newEtag, time.Now().UTC(), id, etag)
	if err != nil {
		return "", "", err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return "", "", err
	}
	if n == 0 {
		return "", "", ErrEtagMismatch
	}
	return secret, newEtag, nil
}

// Signer is the principal behind a signature-authenticated request: a
// remoteci or feeder row reduced to what verification needs.
type Signer struct {
	ID        string `db:"id"`
	Name      string `db:"name"`
	TeamID    string `db:"team_id"`
	APISecret string `db:"api_secret"`
}

// GetSigner resolves a (client_type, client_id) pair from a signed request to
// the stored principal and its secret. Only remotecis and feeders can sign
// requests; any other client type resolves to nil without error so the guard
// can reject it distinctly from a malformed header.
func (s *Store) GetSigner(ctx context.Context, clientType, clientID string) (*Signer, error) {
	var table string
	switch clientType {
	case "remoteci":
		table = "remotecis"
	case "feeder":
		table = "feeders"
	default:
		return nil, nil
	}

	var signer Signer
	q := `SELECT id, name, team_id, api_secret FROM ` + table + ` WHERE id = ? AND state = 'active'`
	err := s.db.GetContext(ctx, &signer, s.db.Rebind(q), clientID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &signer, nil
}

// CreateFeeder inserts a new feeder with a generated api_secret.
func (s *Store) CreateFeeder(ctx context.Context, f *model.Feeder) error {
	now := time.Now().UTC()
	f.ID = uuid.NewString()
	f.Etag = uuid.NewString()
	f.State = model.StateActive
	f.CreatedAt = now
	f.UpdatedAt = now

	secret, err := signature.GenSecret()
	if err != nil {
		return err
	}
	f.APISecret = secret

	const q = `INSERT INTO feeders (id, name, team_id, api_secret, state, etag, created_at, updated_at)
		VALUES (:id, :name, :team_id, :api_secret, :state, :etag, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, q, f); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "feeders", Field: "name"}
		}
		return err
	}
	return nil
}

// CreateRConfiguration attaches a configuration to a remoteci.
func (s *Store) CreateRConfiguration(ctx context.Context, remoteciID string, c *model.RConfiguration) error {
	c.ID = uuid.NewString()
	c.Etag = uuid.NewString()
	c.State = model.StateActive
	c.CreatedAt = time.Now().UTC()

	const q = `INSERT INTO rconfigurations (id, remoteci_id, name, topic, component_types, state, etag, created_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?)`
	_, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		c.ID, remoteciID, c.Name, c.Topic, c.Component, c.State, c.Etag, c.CreatedAt)
	return err
}

// ListRConfigurations returns a remoteci's non-archived configurations.
func (s *Store) ListRConfigurations(ctx context.Context, remoteciID string) ([]model.RConfiguration, error) {
	configs := []model.RConfiguration{}
	const q = `SELECT id, name, topic, component_types, state, etag, created_at
		FROM rconfigurations WHERE remoteci_id = ? AND state != 'archived' ORDER BY created_at`
	err := s.db.SelectContext(ctx, &configs, s.db.Rebind(q), remoteciID)
	return configs, err
}

// GetRConfiguration returns one configuration of a remoteci.
func (s *Store) GetRConfiguration(ctx context.Context, remoteciID, configID string) (*model.RConfiguration, error) {
	var c model.RConfiguration
	const q = `SELECT id, name, topic, component_types, state, etag, created_at
		FROM rconfigurations WHERE remoteci_id = ? AND id = ?`
	err := s.db.GetContext(ctx, &c, s.db.Rebind(q), remoteciID, configID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &c, nil
}

// ArchiveRConfiguration soft-deletes a configuration.
func (s *Store) ArchiveRConfiguration(ctx context.Context, remoteciID, configID string) error {
	const q = `UPDATE rconfigurations SET state = 'archived' WHERE remoteci_id = ? AND id = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), remoteciID, configID)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
