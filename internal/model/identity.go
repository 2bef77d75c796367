package model

import "slices"

// Identity is the request-scoped view of the authenticated principal. It is
// built once by an authentication mechanism and handed to handlers; it is
// never persisted and never mutated after construction. Handlers answer all
// authorization questions through its predicate methods instead of going back
// to the store.
type Identity struct {
	ID          string
	Name        string
	SSOUsername string
	Email       string
	RoleID      string
	RoleLabel   string
	TeamID      *string  // nil for global roles (SUPER_ADMIN, SSO first-logins)
	Teams       []string // every team the principal belongs to
}

// IsSuperAdmin reports whether the principal holds the SUPER_ADMIN role.
func (i *Identity) IsSuperAdmin() bool {
	return i.RoleLabel == RoleSuperAdmin
}

// IsProductOwner reports whether the principal holds the PRODUCT_OWNER role.
func (i *Identity) IsProductOwner() bool {
	return i.RoleLabel == RoleProductOwner
}

// IsAdmin reports whether the principal holds the ADMIN role.
func (i *Identity) IsAdmin() bool {
	return i.RoleLabel == RoleAdmin
}

// IsRegularUser reports whether the principal holds the USER role.
func (i *Identity) IsRegularUser() bool {
	return i.RoleLabel == RoleUser
}

// IsRemoteCI reports whether the principal is a machine agent rather than a
// human user.
func (i *Identity) IsRemoteCI() bool {
	return i.RoleLabel == RoleRemoteCI
}

// IsInTeam reports whether the principal may act on resources owned by the
// given team. Super admins pass for every team.
func (i *Identity) IsInTeam(teamID string) bool {
	if i.IsSuperAdmin() {
		return true
	}
	return slices.Contains(i.Teams, teamID)
}

// IsTeamProductOwner reports whether the principal is a product owner of the
// given team.
func (i *Identity) IsTeamProductOwner(teamID string) bool {
	return i.RoleLabel == RoleProductOwner && i.IsInTeam(teamID)
}

// IsTeamAdmin reports whether the principal is an admin of the given team.
func (i *Identity) IsTeamAdmin(teamID string) bool {
	return i.RoleLabel == RoleAdmin && i.IsInTeam(teamID)
}
