package model

import "time"

// User is a human principal. Passwords are stored as bcrypt hashes; users
// provisioned through SSO have no password hash and no team until one is
// assigned.
type User struct {
	ID           string    `json:"id" db:"id"`
	Name         string    `json:"name" db:"name"`
	SSOUsername  string    `json:"sso_username" db:"sso_username"`
	Email        string    `json:"email" db:"email"`
	PasswordHash string    `json:"-" db:"password_hash"` // bcrypt hash, never expose
	RoleID       string    `json:"role_id" db:"role_id"`
	RoleLabel    string    `json:"role_label" db:"role_label"`
	TeamID       *string   `json:"team_id" db:"team_id"`
	State        string    `json:"state" db:"state"`
	Etag         string    `json:"etag" db:"etag"`
	CreatedAt    time.Time `json:"created_at" db:"created_at"`
	UpdatedAt    time.Time `json:"updated_at" db:"updated_at"`
}

// Team groups users and remotecis for multi-tenant isolation.
type Team struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Country   string    `json:"country" db:"country"`
	State     string    `json:"state" db:"state"`
	Etag      string    `json:"etag" db:"etag"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}
