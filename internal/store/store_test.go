package store

import (
	"context"
	"errors"
	"testing"

	"github.com/distributed-ci/dci-server/internal/model"
)

func newTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := New("") // in-memory
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	t.Cleanup(func() { s.Close() })
	return s
}

// ---------- roles ----------

func TestSeededRoles(t *testing.T) {
	s := newTestStore(t)

	for _, label := range []string{
		model.RoleSuperAdmin, model.RoleProductOwner, model.RoleAdmin,
		model.RoleUser, model.RoleRemoteCI,
	} {
		id, err := s.RoleID(label)
		if err != nil {
			t.Errorf("RoleID(%s): %v", label, err)
		}
		if id == "" {
			t.Errorf("RoleID(%s): empty id", label)
		}
	}
}

func TestRoleIDUnknownLabel(t *testing.T) {
	s := newTestStore(t)

	if _, err := s.RoleID("NOT_A_ROLE"); !errors.Is(err, ErrRoleNotFound) {
		t.Fatalf("got %v, want ErrRoleNotFound", err)
	}
}

func TestCreateRoleDefaultLabel(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := &model.Role{Name: "openstack"}
	if err := s.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if role.Label != "OPENSTACK" {
		t.Errorf("got label %q, want %q", role.Label, "OPENSTACK")
	}
	if role.ID == "" || role.Etag == "" {
		t.Error("expected id and etag to be set")
	}

	// The registry sees the new role without a restart.
	id, err := s.RoleID("OPENSTACK")
	if err != nil {
		t.Fatalf("RoleID after create: %v", err)
	}
	if id != role.ID {
		t.Errorf("registry resolved %q, want %q", id, role.ID)
	}
}

func TestCreateRoleDuplicate(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	if err := s.CreateRole(ctx, &model.Role{Name: "openstack"}); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	err := s.CreateRole(ctx, &model.Role{Name: "openstack"})
	var conflict *ConflictError
	if !errors.As(err, &conflict) {
		t.Fatalf("got %v, want *ConflictError", err)
	}
	if conflict.Resource != "roles" {
		t.Errorf("got resource %q, want %q", conflict.Resource, "roles")
	}
}

func TestUpdateRoleEtag(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := &model.Role{Name: "openstack"}
	if err := s.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	role.Description = "updated"
	newEtag, err := s.UpdateRole(ctx, role.ID, role.Etag, role)
	if err != nil {
		t.Fatalf("UpdateRole: %v", err)
	}
	if newEtag == role.Etag {
		t.Error("expected a fresh etag after update")
	}

	// The old etag no longer matches.
	if _, err := s.UpdateRole(ctx, role.ID, role.Etag, role); !errors.Is(err, ErrEtagMismatch) {
		t.Fatalf("got %v, want ErrEtagMismatch", err)
	}
}

func TestArchiveAndPurgeRoles(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := &model.Role{Name: "openstack"}
	if err := s.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	if err := s.ArchiveRole(ctx, role.ID, role.Etag); err != nil {
		t.Fatalf("ArchiveRole: %v", err)
	}

	// Archived roles drop out of listings and out of the registry.
	roles, err := s.ListRoles(ctx)
	if err != nil {
		t.Fatalf("ListRoles: %v", err)
	}
	for _, r := range roles {
		if r.ID == role.ID {
			t.Error("archived role still listed")
		}
	}
	if _, err := s.RoleID("OPENSTACK"); !errors.Is(err, ErrRoleNotFound) {
		t.Errorf("got %v, want ErrRoleNotFound after archive", err)
	}

	// But they stay retrievable until purged.
	if _, err := s.GetRole(ctx, role.ID); err != nil {
		t.Fatalf("GetRole after archive: %v", err)
	}

	archived, err := s.ListArchivedRoles(ctx)
	if err != nil {
		t.Fatalf("ListArchivedRoles: %v", err)
	}
	if len(archived) != 1 {
		t.Fatalf("got %d archived roles, want 1", len(archived))
	}

	n, err := s.PurgeArchivedRoles(ctx)
	if err != nil {
		t.Fatalf("PurgeArchivedRoles: %v", err)
	}
	if n != 1 {
		t.Errorf("purged %d roles, want 1", n)
	}
	if _, err := s.GetRole(ctx, role.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound after purge", err)
	}
}

func TestRegistrySeesRoleRename(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := &model.Role{Name: "openstack"}
	if err := s.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}

	label, err := s.RoleLabel(role.ID)
	if err != nil {
		t.Fatalf("RoleLabel: %v", err)
	}
	if label != "OPENSTACK" {
		t.Errorf("got label %q, want %q", label, "OPENSTACK")
	}
}

// ---------- permissions ----------

func TestRolePermissions(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	role := &model.Role{Name: "openstack"}
	if err := s.CreateRole(ctx, role); err != nil {
		t.Fatalf("CreateRole: %v", err)
	}
	perm := &model.Permission{Name: "create jobs", Label: "CREATE_JOBS"}
	if err := s.CreatePermission(ctx, perm); err != nil {
		t.Fatalf("CreatePermission: %v", err)
	}

	if err := s.AddPermissionToRole(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("AddPermissionToRole: %v", err)
	}

	perms, err := s.ListRolePermissions(ctx, role.ID)
	if err != nil {
		t.Fatalf("ListRolePermissions: %v", err)
	}
	if len(perms) != 1 || perms[0].ID != perm.ID {
		t.Fatalf("got %+v, want the attached permission", perms)
	}

	if err := s.RemovePermissionFromRole(ctx, role.ID, perm.ID); err != nil {
		t.Fatalf("RemovePermissionFromRole: %v", err)
	}
	if err := s.RemovePermissionFromRole(ctx, role.ID, perm.ID); !errors.Is(err, ErrNotFound) {
		t.Errorf("got %v, want ErrNotFound on second removal", err)
	}
}

// ---------- teams ----------

func TestTeamLifecycle(t *testing.T) {
	s := newTestStore(t)
	ctx := context.Background()

	team := &model.Team{Name: "partner", Country: "FR"}
	if err := s.CreateTeam(ctx, team); err != nil {
		t.Fatalf("CreateTeam: %v", err)
	}

	got, err := s.GetTeam(ctx, team.ID)
	if err != nil {
		t.Fatalf("GetTeam: %v", err)
	}
	if got.Name != "partner" || got.Country != "FR" {
		t.Errorf("got %+v", got)
	}

	if err := s.ArchiveTeam(ctx, team.ID, "stale-etag"); !errors.Is(err, ErrEtagMismatch) {
		t.Fatalf("got %v, want ErrEtagMismatch", err)
	}
	if err := s.ArchiveTeam(ctx, team.ID, team.Etag); err != nil {
		t.Fatalf("ArchiveTeam: %v", err)
	}

	teams, err := s.ListTeams(ctx)
	if err != nil {
		t.Fatalf("ListTeams: %v", err)
	}
	if len(teams) != 0 {
		t.Errorf("got %d teams after archive, want 0", len(teams))
	}
}
