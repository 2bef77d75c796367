package store

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/distributed-ci/dci-server/internal/model"
)

// seedRoles inserts the five canonical roles if they are missing. Runs on
// every startup; existing labels are left untouched.
func (s *Store) seedRoles() error {
	seed := []struct{ name, label, description string }{
		{"Super Admin", model.RoleSuperAdmin, "Administrator of the platform"},
		{"Product Owner", model.RoleProductOwner, "Owner of a product"},
		{"Admin", model.RoleAdmin, "Administrator of a team"},
		{"User", model.RoleUser, "Regular user"},
		{"RemoteCI", model.RoleRemoteCI, "Machine agent reporting job results"},
	}

	for _, r := range seed {
		var n int
		if err := s.db.Get(&n, s.db.Rebind(`SELECT COUNT(*) FROM roles WHERE label = ?`), r.label); err != nil {
			return err
		}
		if n > 0 {
			continue
		}
		role := model.Role{
			ID:          uuid.NewString(),
			Name:        r.name,
			Label:       r.label,
			Description: r.description,
			State:       model.StateActive,
			Etag:        uuid.NewString(),
			CreatedAt:   time.Now().UTC(),
			UpdatedAt:   time.Now().UTC(),
		}
		const q = `INSERT INTO roles (id, name, label, description, state, etag, created_at, updated_at)
			VALUES (:id, :name, :label, :description, :state, :etag, :created_at, :updated_at)`
		if _, err := s.db.NamedExec(q, role); err != nil {
			return err
		}
	}
	return nil
}

// CreateRole inserts a new role. When no label is supplied it defaults to the
// uppercased name. A label collision yields a ConflictError on the name field.
func (s *Store) CreateRole(ctx context.Context, role *model.Role) error {
	now := time.Now().UTC()
	role.ID = uuid.NewString()
	role.Etag = uuid.NewString()
	role.State = model.StateActive
	role.CreatedAt = now
	role.UpdatedAt = now
	if role.Label == "" {
		role.Label = strings.ToUpper(role.Name)
	}

	const q = `INSERT INTO roles (id, name, label, description, state, etag, created_at, updated_at)
		VALUES (:id, :name, :label, :description, :state, :etag, :created_at, :updated_at)`
	if _, err := s.db.NamedExecContext(ctx, q, role); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "roles", Field: "name"}
		}
		return err
	}
	s.invalidateRoleCache()
	return nil
}

// GetRole returns a role by id, archived or not.
func (s *Store) GetRole(ctx context.Context, id string) (*model.Role, error) {
	var role model.Role
	err := s.db.GetContext(ctx, &role, s.db.Rebind(`SELECT * FROM roles WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &role, nil
}

// ListRoles returns every non-archived role. Caller-visibility filtering is
// applied by the handler before pagination.
func (s *Store) ListRoles(ctx context.Context) ([]model.Role, error) {
	roles := []model.Role{}
	err := s.db.SelectContext(ctx, &roles,
		`SELECT * FROM roles WHERE state != 'archived' ORDER BY created_at`)
	return roles, err
}

// UpdateRole applies values to a role iff the stored etag matches. A fresh
// etag is generated; ErrEtagMismatch is returned when the row moved under us.
func (s *Store) UpdateRole(ctx context.Context, id, etag string, role *model.Role) (string, error) {
	newEtag := uuid.NewString()
	const q = `UPDATE roles SET name = ?, description = ?, etag = ?, updated_at = ?
		WHERE id = ? AND etag = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q),
		role.Name, role.Description, newEtag, time.Now().UTC(), id, etag)
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
	s.invalidateRoleCache()
	return newEtag, nil
}

// ArchiveRole soft-deletes a role under etag protection.
func (s *Store) ArchiveRole(ctx context.Context, id, etag string) error {
	const q = `UPDATE roles SET state = 'archived', updated_at = ? WHERE id = ? AND etag = ?`
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
	s.invalidateRoleCache()
	return nil
}

// ListArchivedRoles returns archived roles awaiting purge.
func (s *Store) ListArchivedRoles(ctx context.Context) ([]model.Role, error) {
	roles := []model.Role{}
	err := s.db.SelectContext(ctx, &roles, `SELECT * FROM roles WHERE state = 'archived'`)
	return roles, err
}

// PurgeArchivedRoles permanently removes archived roles.
func (s *Store) PurgeArchivedRoles(ctx context.Context) (int64, error) {
	res, err := s.db.ExecContext(ctx, `DELETE FROM roles WHERE state = 'archived'`)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

// CreatePermission inserts a new permission. When no label is supplied it
// defaults to the uppercased name, same as roles.
func (s *Store) CreatePermission(ctx context.Context, perm *model.Permission) error {
	perm.ID = uuid.NewString()
	perm.CreatedAt = time.Now().UTC()
	if perm.Label == "" {
		perm.Label = strings.ToUpper(strings.ReplaceAll(perm.Name, " ", "_"))
	}

	const q = `INSERT INTO permissions (id, name, label, description, created_at)
		VALUES (:id, :name, :label, :description, :created_at)`
	if _, err := s.db.NamedExecContext(ctx, q, perm); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "permissions", Field: "name"}
		}
		return err
	}
	return nil
}

// GetPermission returns a permission by id.
func (s *Store) GetPermission(ctx context.Context, id string) (*model.Permission, error) {
	var perm model.Permission
	err := s.db.GetContext(ctx, &perm, s.db.Rebind(`SELECT * FROM permissions WHERE id = ?`), id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &perm, nil
}

// ListPermissions returns every permission.
func (s *Store) ListPermissions(ctx context.Context) ([]model.Permission, error) {
	perms := []model.Permission{}
	err := s.db.SelectContext(ctx, &perms, `SELECT * FROM permissions ORDER BY created_at`)
	return perms, err
}

// AddPermissionToRole attaches a permission to a role through the join table.
func (s *Store) AddPermissionToRole(ctx context.Context, roleID, permissionID string) error {
	const q = `INSERT INTO roles_permissions (role_id, permission_id) VALUES (?, ?)`
	if _, err := s.db.ExecContext(ctx, s.db.Rebind(q), roleID, permissionID); err != nil {
		if isUniqueViolation(err) {
			return &ConflictError{Resource: "roles", Field: "role_id, permission_id"}
		}
		return err
	}
	return nil
}

// RemovePermissionFromRole detaches a permission from a role.
func (s *Store) RemovePermissionFromRole(ctx context.Context, roleID, permissionID string) error {
	const q = `DELETE FROM roles_permissions WHERE role_id = ? AND permission_id = ?`
	res, err := s.db.ExecContext(ctx, s.db.Rebind(q), roleID, permissionID)
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

// ListRolePermissions returns the permissions attached to a role.
func (s *Store) ListRolePermissions(ctx context.Context, roleID string) ([]model.Permission, error) {
	perms := []model.Permission{}
	const q = `SELECT p.* FROM permissions p
		JOIN roles_permissions rp ON rp.permission_id = p.id
		WHERE rp.role_id = ?`
	err := s.db.SelectContext(ctx, &perms, s.db.Rebind(q), roleID)
	return perms, err
}
