package model

import "time"

// RemoteCI is a registered machine agent that runs jobs and reports results.
// Its api_secret is the HMAC key for signature-authenticated requests; it is
// generated server-side and rotating it invalidates every previously signed
// request.
type RemoteCI struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	TeamID    string    `json:"team_id" db:"team_id"`
	APISecret string    `json:"-" db:"api_secret"` // HMAC key, only returned on create/rotate
	Public    bool      `json:"public" db:"public"`
	State     string    `json:"state" db:"state"`
	Etag      string    `json:"etag" db:"etag"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// Feeder is a machine agent that injects components into the system. It
// authenticates exactly like a remoteci, with its own api_secret.
type Feeder struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	TeamID    string    `json:"team_id" db:"team_id"`
	APISecret string    `json:"-" db:"api_secret"`
	State     string    `json:"state" db:"state"`
	Etag      string    `json:"etag" db:"etag"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
	UpdatedAt time.Time `json:"updated_at" db:"updated_at"`
}

// RConfiguration is a named job configuration attached to a remoteci.
type RConfiguration struct {
	ID        string    `json:"id" db:"id"`
	Name      string    `json:"name" db:"name"`
	Topic     string    `json:"topic" db:"topic"`
	Component string    `json:"component_types" db:"component_types"`
	State     string    `json:"state" db:"state"`
	Etag      string    `json:"etag" db:"etag"`
	CreatedAt time.Time `json:"created_at" db:"created_at"`
}
