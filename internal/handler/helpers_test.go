package handler

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/distributed-ci/dci-server/internal/store"
)

func TestWriteStoreErrorMapping(t *testing.T) {
	cases := []struct {
		name string
		err  error
		want int
	}{
		{"not found", store.ErrNotFound, http.StatusNotFound},
		{"etag mismatch", store.ErrEtagMismatch, http.StatusConflict},
		{"conflict", &store.ConflictError{Resource: "roles", Field: "name"}, http.StatusConflict},
		{"wrapped not found", errors.Join(errors.New("load role"), store.ErrNotFound), http.StatusNotFound},
		{"other", errors.New("disk on fire"), http.StatusInternalServerError},
	}
	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			w := httptest.NewRecorder()
			writeStoreError(w, tc.err, "op")
			if w.Code != tc.want {
				t.Fatalf("got status %d, want %d", w.Code, tc.want)
			}
			if ct := w.Header().Get("Content-Type"); ct != "application/json" {
				t.Errorf("got content type %q", ct)
			}
		})
	}
}

func TestWriteStoreErrorConflictContext(t *testing.T) {
	w := httptest.NewRecorder()
	writeStoreError(w, &store.ConflictError{Resource: "teams", Field: "name"}, "create team")

	body := w.Body.String()
	if !strings.Contains(body, `"resource":"teams"`) || !strings.Contains(body, `"field":"name"`) {
		t.Errorf("conflict context missing from body %q", body)
	}
}

func TestIfMatch(t *testing.T) {
	r := httptest.NewRequest("PUT", "/api/v1/roles/r1", nil)
	w := httptest.NewRecorder()

	if _, ok := ifMatch(w, r); ok {
		t.Fatal("expected failure without If-Match")
	}
	if w.Code != http.StatusPreconditionFailed {
		t.Fatalf("got status %d, want 412", w.Code)
	}

	r.Header.Set("If-Match", "some-etag")
	w = httptest.NewRecorder()
	etag, ok := ifMatch(w, r)
	if !ok || etag != "some-etag" {
		t.Fatalf("got (%q, %v), want (some-etag, true)", etag, ok)
	}
}
