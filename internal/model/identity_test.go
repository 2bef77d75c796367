package model

import "testing"

func TestIdentityRolePredicates(t *testing.T) {
	cases := []struct {
		label        string
		superAdmin   bool
		productOwner bool
		admin        bool
		regularUser  bool
		remoteCI     bool
	}{
		{RoleSuperAdmin, true, false, false, false, false},
		{RoleProductOwner, false, true, false, false, false},
		{RoleAdmin, false, false, true, false, false},
		{RoleUser, false, false, false, true, false},
		{RoleRemoteCI, false, false, false, false, true},
	}
	for _, tc := range cases {
		t.Run(tc.label, func(t *testing.T) {
			i := &Identity{RoleLabel: tc.label}
			if got := i.IsSuperAdmin(); got != tc.superAdmin {
				t.Errorf("IsSuperAdmin() = %v, want %v", got, tc.superAdmin)
			}
			if got := i.IsProductOwner(); got != tc.productOwner {
				t.Errorf("IsProductOwner() = %v, want %v", got, tc.productOwner)
			}
			if got := i.IsAdmin(); got != tc.admin {
				t.Errorf("IsAdmin() = %v, want %v", got, tc.admin)
			}
			if got := i.IsRegularUser(); got != tc.regularUser {
				t.Errorf("IsRegularUser() = %v, want %v", got, tc.regularUser)
			}
			if got := i.IsRemoteCI(); got != tc.remoteCI {
				t.Errorf("IsRemoteCI() = %v, want %v", got, tc.remoteCI)
			}
		})
	}
}

func TestIsInTeamMembership(t *testing.T) {
	i := &Identity{RoleLabel: RoleUser, Teams: []string{"t1", "t2"}}

	if !i.IsInTeam("t1") {
		t.Error("member should be in t1")
	}
	if !i.IsInTeam("t2") {
		t.Error("member should be in t2")
	}
	if i.IsInTeam("t3") {
		t.Error("non-member should not be in t3")
	}
}

func TestIsInTeamSuperAdminOverride(t *testing.T) {
	i := &Identity{RoleLabel: RoleSuperAdmin, Teams: nil}

	// Super admins pass the team check everywhere, memberships or not.
	for _, team := range []string{"t1", "t2", "anything"} {
		if !i.IsInTeam(team) {
			t.Errorf("super admin should be in team %q", team)
		}
	}
}

func TestTeamScopedRolePredicates(t *testing.T) {
	po := &Identity{RoleLabel: RoleProductOwner, Teams: []string{"t1"}}
	if !po.IsTeamProductOwner("t1") {
		t.Error("product owner of t1 should pass for t1")
	}
	if po.IsTeamProductOwner("t2") {
		t.Error("product owner of t1 should fail for t2")
	}
	if po.IsTeamAdmin("t1") {
		t.Error("product owner is not a team admin")
	}

	admin := &Identity{RoleLabel: RoleAdmin, Teams: []string{"t1"}}
	if !admin.IsTeamAdmin("t1") {
		t.Error("admin of t1 should pass for t1")
	}
	if admin.IsTeamAdmin("t2") {
		t.Error("admin of t1 should fail for t2")
	}
}
