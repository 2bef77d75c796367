package model

import "time"

// Canonical role labels. Every principal carries exactly one of these; the
// set is closed and consumed throughout the authorization layer.
const (
	RoleSuperAdmin   = "SUPER_ADMIN"
	RoleProductOwner = "PRODUCT_OWNER"
	RoleAdmin        = "ADMIN"
	RoleUser         = "USER"
	RoleRemoteCI     = "REMOTECI"
)

// Resource lifecycle states. Deleting a resource archives it; archived rows
// are hidden from listings but kept for audit until purged.
const (
	StateActive   = "active"
	StateArchived = "archived"
)

// Role is a persisted authorization level. The label is the canonical
// uppercase form; when a role is created without an explicit label it
// defaults to the uppercased name.
type Role struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Label       string    `json:"label" db:"label"`
	Description string    `json:"description" db:"description"`
	State       string    `json:"state" db:"state"`
	Etag        string    `json:"etag" db:"etag"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
	UpdatedAt   time.Time `json:"updated_at" db:"updated_at"`
}

// Permission is an atomic grantable capability. Roles aggregate permissions
// through a join table.
type Permission struct {
	ID          string    `json:"id" db:"id"`
	Name        string    `json:"name" db:"name"`
	Label       string    `json:"label" db:"label"`
	Description string    `json:"description" db:"description"`
	CreatedAt   time.Time `json:"created_at" db:"created_at"`
}
