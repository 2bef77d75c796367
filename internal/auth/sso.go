package auth

import (
	"context"
	"crypto/rsa"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/store"
)

// ssoClaims are the verified claims the mechanism maps onto an Identity.
type ssoClaims struct {
	Username string `json:"username"`
	Email    string `json:"email"`
	jwt.RegisteredClaims
}

// UserDirectory is the slice of the store the SSO mechanism needs: resolving
// a verified subject to a local user, provisioning one on first sight, and
// loading team memberships.
type UserDirectory interface {
	GetUserBySSOUsername(ctx context.Context, ssoUsername string) (*model.User, error)
	ProvisionSSOUser(ctx context.Context, ssoUsername, email string) (*model.User, error)
	UserTeams(ctx context.Context, userID string) ([]string, error)
}

// SSOAuth authenticates Authorization: Bearer tokens issued by the SSO
// server. Tokens are verified against the SSO public key; first-seen
// subjects are provisioned as local users with no team assigned.
type SSOAuth struct {
	users     UserDirectory
	publicKey *rsa.PublicKey

	// Now supplies the verification time. Injected so tests can pin the
	// clock instead of racing token expiry.
	Now func() time.Time
}

// NewSSOAuth returns an SSOAuth verifying against publicKey.
func NewSSOAuth(users UserDirectory, publicKey *rsa.PublicKey) *SSOAuth {
	return &SSOAuth{users: users, publicKey: publicKey, Now: time.Now}
}

// Authenticate implements Mechanism. Signature or claim failures leave no
// identity bound and create no user.
func (m *SSOAuth) Authenticate(r *http.Request) (*model.Identity, error) {
	raw, err := extractBearerToken(r.Header.Get("Authorization"))
	if err != nil {
		return nil, err
	}

	claims := &ssoClaims{}
	token, err := jwt.ParseWithClaims(raw, claims,
		func(token *jwt.Token) (interface{}, error) {
			if _, ok := token.Method.(*jwt.SigningMethodRSA); !ok {
				return nil, errors.New("unexpected signing method")
			}
			return m.publicKey, nil
		},
		jwt.WithTimeFunc(m.Now),
		jwt.WithIssuedAt(),
	)
	if err != nil || !token.Valid {
		return nil, &Error{Reason: "invalid or expired token"}
	}

	username := claims.Username
	if username == "" {
		username = claims.Subject
	}
	if username == "" {
		return nil, &Error{Reason: "token carries no subject"}
	}

	user, err := m.users.GetUserBySSOUsername(r.Context(), username)
	if errors.Is(err, store.ErrNotFound) {
		user, err = m.users.ProvisionSSOUser(r.Context(), username, claims.Email)
	}
	if err != nil {
		return nil, err
	}

	teams, err := m.users.UserTeams(r.Context(), user.ID)
	if err != nil {
		return nil, err
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
	}, nil
}

// extractBearerToken pulls the token out of an Authorization header.
func extractBearerToken(header string) (string, error) {
	if header == "" {
		return "", &Error{Reason: "missing authorization header"}
	}
	if !strings.HasPrefix(header, "Bearer ") {
		return "", &Error{Reason: "invalid authorization header format"}
	}
	token := strings.TrimPrefix(header, "Bearer ")
	if token == "" {
		return "", &Error{Reason: "empty token"}
	}
	return token, nil
}
