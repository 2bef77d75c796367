package middleware

import (
	"context"
	"net/http"
	"slices"
	"strings"

	"github.com/distributed-ci/dci-server/internal/auth"
	"github.com/distributed-ci/dci-server/internal/model"
)

type contextKeyAuth string

// IdentityKey is the context key for the authenticated identity.
const IdentityKey contextKeyAuth = "identity"

// Mechanisms bundles the configured authentication mechanisms the guard can
// dispatch to. SSO is optional; when no SSO key is configured bearer tokens
// are rejected.
type Mechanisms struct {
	Basic     auth.Mechanism
	Signature auth.Mechanism
	SSO       auth.Mechanism
}

// Authenticate returns the guard middleware that authenticates every request
// before its handler runs. The mechanism is selected by the credentials
// present, in fixed priority order: signature headers, then basic auth, then
// a bearer token. The first mechanism whose credentials are present decides;
// on failure the request is rejected with 401 and the handler never runs.
func Authenticate(m Mechanisms) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			mech := selectMechanism(m, r)
			if mech == nil {
				writeAuthError(w, http.StatusUnauthorized,
					"Authentication required. Provide basic auth, signature headers, or a bearer token.")
				return
			}

			identity, err := mech.Authenticate(r)
			if err != nil {
				writeAuthError(w, http.StatusUnauthorized, err.Error())
				return
			}

			ctx := context.WithValue(r.Context(), IdentityKey, identity)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

func selectMechanism(m Mechanisms, r *http.Request) auth.Mechanism {
	if r.Header.Get(auth.ClientInfoHeader) != "" || r.Header.Get(auth.AuthSignatureHeader) != "" {
		return m.Signature
	}
	authz := r.Header.Get("Authorization")
	switch {
	case strings.HasPrefix(authz, "Basic "):
		return m.Basic
	case strings.HasPrefix(authz, "Bearer "):
		return m.SSO
	}
	return nil
}

// RequireRole returns a middleware enforcing an explicit role allow-list on
// an operation. Must run after Authenticate. Team-scoped checks are not done
// here: they depend on the loaded resource and live in the handlers.
func RequireRole(labels ...string) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			identity := GetIdentity(r.Context())
			if identity == nil || !slices.Contains(labels, identity.RoleLabel) {
				writeAuthError(w, http.StatusUnauthorized, "Operation not authorized.")
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// GetIdentity extracts the authenticated identity from the context. Returns
// nil for unauthenticated requests.
func GetIdentity(ctx context.Context) *model.Identity {
	if id, ok := ctx.Value(IdentityKey).(*model.Identity); ok {
		return id
	}
	return nil
}

func writeAuthError(w http.ResponseWriter, status int, message string) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	// Manually construct JSON to avoid an import cycle with the handler package.
	w.Write([]byte(`{"error":{"code":` + httpStatusString(status) + `,"message":` + jsonString(message) + `}}`))
}

func httpStatusString(code int) string {
	switch code {
	case 401:
		return "401"
	case 403:
		return "403"
	default:
		return "500"
	}
}

func jsonString(s string) string {
	var b strings.Builder
	b.WriteByte('"')
	for _, r := range s {
		switch r {
		case '"':
			b.WriteString(`\"`)
		case '\\':
			b.WriteString(`\\`)
		case '\n':
			b.WriteString(`\n`)
		default:
			b.WriteRune(r)
		}
	}
	b.WriteByte('"')
	return b.String()
}
