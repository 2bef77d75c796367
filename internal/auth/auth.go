// Package auth implements the three request-authentication mechanisms of the
// control server: basic auth for humans, HMAC request signing for machine
// agents, and SSO bearer tokens. Each mechanism turns an incoming request
// into a model.Identity or fails; the server's guard middleware picks the
// mechanism matching the credentials present on the request.
package auth

import (
	"net/http"

	"github.com/distributed-ci/dci-server/internal/model"
)

// Mechanism authenticates one request and produces the acting Identity.
// Implementations must not mutate any state on failure.
type Mechanism interface {
	Authenticate(r *http.Request) (*model.Identity, error)
}

// Error is a terminal authentication failure. The reason is logged and
// returned to the caller as-is; mechanisms keep it generic enough that a
// caller cannot distinguish "unknown user" from "wrong password".
type Error struct {
	Reason string
}

func (e *Error) Error() string {
	return "authentication failed: " + e.Reason
}
