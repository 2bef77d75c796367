package auth

import (
	"context"
	"errors"
	"net/http"

	"golang.org/x/crypto/bcrypt"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/store"
)

// BasicAuth authenticates requests carrying a standard Authorization: Basic
// header against the user table.
type BasicAuth struct {
	// CheckAuth looks up the user and verifies the password, returning the
	// candidate identity and whether authentication succeeded. Overridable
	// in tests; defaults to a store-backed bcrypt check.
	CheckAuth func(ctx context.Context, username, password string) (*model.Identity, bool, error)
}

// NewBasicAuth returns a BasicAuth backed by the given store.
func NewBasicAuth(st *store.Store) *BasicAuth {
	return &BasicAuth{CheckAuth: storeCheckAuth(st)}
}

// Authenticate implements Mechanism.
func (b *BasicAuth) Authenticate(r *http.Request) (*model.Identity, error) {
	username, password, ok := r.BasicAuth()
	if !ok {
		return nil, &Error{Reason: "missing or malformed authorization header"}
	}

	identity, authenticated, err := b.CheckAuth(r.Context(), username, password)
	if err != nil {
		return nil, err
	}
	if !authenticated {
		// One message for unknown user and wrong password alike.
		return nil, &Error{Reason: "invalid username or password"}
	}
	return identity, nil
}

func storeCheckAuth(st *store.Store) func(context.Context, string, string) (*model.Identity, bool, error) {
	return func(ctx context.Context, username, password string) (*model.Identity, bool, error) {
		user, err := st.GetUserByName(ctx, username)
		if errors.Is(err, store.ErrNotFound) {
			return nil, false, nil
		}
		if err != nil {
			return nil, false, err
		}
		if bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(password)) != nil {
			return nil, false, nil
		}

		teams, err := st.UserTeams(ctx, user.ID)
		if err != nil {
			return nil, false, err
		}
		return &model.Identity{
			ID:          user.ID,
			Name:        user.Name,
			SSOUsername: user.SSOUsername,
			Email:       user.Email,
			RoleID:      user.RoleID,
			RoleLabel:   user.RoleLabel,
			TeamID:      user.TeamID,
			Teams:       teams,
		}, true, nil
	}
}
