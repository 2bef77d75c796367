package auth

import (
	"bytes"
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/signature"
	"github.com/distributed-ci/dci-server/internal/store"
)

func staticLookup(signer *store.Signer) func(context.Context, string, string) (*store.Signer, error) {
	return func(ctx context.Context, clientType, clientID string) (*store.Signer, error) {
		if signer == nil {
			return nil, store.ErrNotFound
		}
		return signer, nil
	}
}

func signedRequest(t *testing.T, secret, clientType, clientID string, body []byte) *http.Request {
	t.Helper()
	ts := time.Now().UTC().Truncate(time.Second)
	r := httptest.NewRequest("POST", "/api/v1/jobs?limit=5", bytes.NewReader(body))
	r.Header.Set(ClientInfoHeader,
		ts.Format("2006-01-02 15:04:05")+"Z/"+clientType+"/"+clientID)
	r.Header.Set(AuthSignatureHeader,
		signature.Sign(secret, r.Method, r.URL.Path, r.URL.RawQuery, ts, body))
	return r
}

func TestSignatureAuthMissingHeaders(t *testing.T) {
	m := &SignatureAuth{Lookup: staticLookup(nil)}

	cases := []struct {
		name    string
		headers map[string]string
	}{
		{"no headers", nil},
		{"client info only", map[string]string{ClientInfoHeader: "2016-03-21 15:37:59Z/remoteci/r1"}},
		{"signature only", map[string]string{AuthSignatureHeader: "deadbeef"}},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			r := httptest.NewRequest("GET", "/api/v1/jobs", nil)
			for k, v := range tc.headers {
				r.Header.Set(k, v)
			}
			identity, err := m.Authenticate(r)
			if identity != nil {
				t.Error("expected no identity")
			}
			var authErr *Error
			if !errors.As(err, &authErr) {
				t.Fatalf("got %v, want *auth.Error", err)
			}
		})
	}
}

func TestSignatureAuthMalformedClientInfo(t *testing.T) {
	m := &SignatureAuth{Lookup: staticLookup(nil)}

	r := httptest.NewRequest("GET", "/api/v1/jobs", nil)
	r.Header.Set(ClientInfoHeader, "pif/paf")
	r.Header.Set(AuthSignatureHeader, "deadbeef")

	if _, err := m.Authenticate(r); !errors.Is(err, ErrMalformedClientInfo) {
		t.Fatalf("got %v, want ErrMalformedClientInfo", err)
	}
}

func TestSignatureAuthBadSignature(t *testing.T) {
	signer := &store.Signer{ID: "r1", Name: "rci", TeamID: "t1", APISecret: "the-secret"}
	m := &SignatureAuth{
		Lookup: staticLookup(signer),
		Verify: func(r *http.Request, body []byte, info ClientInfo, secret, provided string) bool {
			return false
		},
	}

	r := signedRequest(t, "the-secret", "remoteci", "r1", []byte(`{}`))
	identity, err := m.Authenticate(r)
	if identity != nil {
		t.Error("expected no identity when verification fails")
	}
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want *auth.Error", err)
	}
}

func TestSignatureAuthAccepted(t *testing.T) {
	signer := &store.Signer{ID: "r1", Name: "rci", TeamID: "t1", APISecret: "the-secret"}
	m := &SignatureAuth{
		Lookup: staticLookup(signer),
		Verify: func(r *http.Request, body []byte, info ClientInfo, secret, provided string) bool {
			return signature.Verify(secret, provided,
				r.Method, r.URL.Path, r.URL.RawQuery, info.Timestamp, body)
		},
	}

	body := []byte(`{"status": "success"}`)
	r := signedRequest(t, "the-secret", "remoteci", "r1", body)

	identity, err := m.Authenticate(r)
	if err != nil {
		t.Fatalf("Authenticate: %v", err)
	}
	if identity.ID != "r1" {
		t.Errorf("got id %q, want %q", identity.ID, "r1")
	}
	if identity.RoleLabel != model.RoleRemoteCI {
		t.Errorf("got role %q, want %q", identity.RoleLabel, model.RoleRemoteCI)
	}
	if !identity.IsInTeam("t1") {
		t.Error("signer should be in its own team")
	}

	// The body must still be readable by the handler.
	got, err := io.ReadAll(r.Body)
	if err != nil {
		t.Fatalf("read body after auth: %v", err)
	}
	if !bytes.Equal(got, body) {
		t.Errorf("body after auth %q, want %q", got, body)
	}
}

func TestGetIdentityAllowedTypes(t *testing.T) {
	signer := &store.Signer{ID: "s1", Name: "agent", TeamID: "t1", APISecret: "sec"}
	m := &SignatureAuth{Lookup: staticLookup(signer)}
	ctx := context.Background()

	for _, clientType := range []string{"remoteci", "feeder"} {
		identity, secret, err := m.GetIdentity(ctx, clientType, "s1")
		if err != nil {
			t.Fatalf("GetIdentity(%s): %v", clientType, err)
		}
		if identity == nil {
			t.Fatalf("GetIdentity(%s): expected an identity", clientType)
		}
		if identity.RoleLabel != model.RoleRemoteCI {
			t.Errorf("GetIdentity(%s): got role %q, want %q", clientType, identity.RoleLabel, model.RoleRemoteCI)
		}
		if secret != "sec" {
			t.Errorf("GetIdentity(%s): got secret %q, want %q", clientType, secret, "sec")
		}
	}
}

func TestGetIdentityDisallowedType(t *testing.T) {
	m := &SignatureAuth{Lookup: func(ctx context.Context, clientType, clientID string) (*store.Signer, error) {
		t.Fatal("Lookup should not be reached for a disallowed client type")
		return nil, nil
	}}

	identity, secret, err := m.GetIdentity(context.Background(), "telltale", "s1")
	if identity != nil || secret != "" || err != nil {
		t.Fatalf("got (%v, %q, %v), want (nil, \"\", nil)", identity, secret, err)
	}
}

func TestGetIdentityUnknownSigner(t *testing.T) {
	m := &SignatureAuth{Lookup: staticLookup(nil)}

	identity, _, err := m.GetIdentity(context.Background(), "remoteci", "ghost")
	if identity != nil {
		t.Error("expected no identity")
	}
	var authErr *Error
	if !errors.As(err, &authErr) {
		t.Fatalf("got %v, want *auth.Error", err)
	}
}
