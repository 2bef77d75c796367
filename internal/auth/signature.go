package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/signature"
	"github.com/distributed-ci/dci-server/internal/store"
)

// signerClientTypes is the closed set of client types allowed to sign
// requests. Anything else resolves to no identity, which the guard rejects
// distinctly from a malformed header.
var signerClientTypes = map[string]string{
	"remoteci": model.RoleRemoteCI,
	"feeder":   model.RoleRemoteCI,
}

// SignatureAuth authenticates HMAC-signed requests from machine agents. The
// request carries the signer's coordinates in DCI-Client-Info and the digest
// in DCI-Auth-Signature; verification recomputes the digest over the
// canonical request with the agent's stored api_secret.
type SignatureAuth struct {
	// Lookup fetches the stored principal and secret for an allowed client
	// type. Overridable in tests; defaults to the store.
	Lookup func(ctx context.Context, clientType, clientID string) (*store.Signer, error)

	// Verify checks the supplied signature over the request. Overridable in
	// tests; defaults to HMAC-SHA256 over the canonical request.
	Verify func(r *http.Request, body []byte, info ClientInfo, secret, provided string) bool
}

// NewSignatureAuth returns a SignatureAuth backed by the given store.
func NewSignatureAuth(st *store.Store) *SignatureAuth {
	return &SignatureAuth{
		Lookup: st.GetSigner,
		Verify: func(r *http.Request, body []byte, info ClientInfo, secret, provided string) bool {
			return signature.Verify(secret, provided,
				r.Method, r.URL.Path, r.URL.RawQuery, info.Timestamp, body)
		},
	}
}

// Authenticate implements Mechanism.
func (m *SignatureAuth) Authenticate(r *http.Request) (*model.Identity, error) {
	clientInfoValue := r.Header.Get(ClientInfoHeader)
	providedSig := r.Header.Get(AuthSignatureHeader)
	if clientInfoValue == "" || providedSig == "" {
		return nil, &Error{Reason: "missing DCI-Client-Info or DCI-Auth-Signature header"}
	}

	info, err := ParseClientInfo(clientInfoValue)
	if err != nil {
		return nil, err
	}

	identity, secret, err := m.GetIdentity(r.Context(), info.Type, info.ID)
	if err != nil {
		return nil, err
	}
	if identity == nil {
		return nil, &Error{Reason: "unknown client: " + info.Type + "/" + info.ID}
	}

	// The body feeds the digest; hand the handler a fresh reader afterwards.
	body, err := io.ReadAll(r.Body)
	if err != nil {
		return nil, err
	}
	r.Body = io.NopCloser(bytes.NewReader(body))

	if !m.Verify(r, body, info, secret, providedSig) {
		return nil, &Error{Reason: "invalid signature"}
	}
	return identity, nil
}

// GetIdentity resolves a (client_type, client_id) pair to an Identity and
// the secret that signed the request. Client types outside the allow-list
// yield (nil, "", nil): not found, not an error.
func (m *SignatureAuth) GetIdentity(ctx context.Context, clientType, clientID string) (*model.Identity, string, error) {
	roleLabel, allowed := signerClientTypes[clientType]
	if !allowed {
		return nil, "", nil
	}

	signer, err := m.Lookup(ctx, clientType, clientID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, "", &Error{Reason: "unknown client: " + clientType + "/" + clientID}
	}
	if err != nil {
		return nil, "", err
	}

	teamID := signer.TeamID
	return &model.Identity{
		ID:        signer.ID,
		Name:      signer.Name,
		RoleLabel: roleLabel,
		TeamID:    &teamID,
		Teams:     []string{signer.TeamID},
	}, signer.APISecret, nil
}
