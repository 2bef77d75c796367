package handler

import (
	"encoding/json"
	"errors"
	"net/http"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/store"
)

// writeJSON serializes v as JSON and writes it to the response with the given
// HTTP status code. The Content-Type header is set to application/json.
func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

// writeError writes a structured error response using the standard error
// envelope.
func writeError(w http.ResponseWriter, code int, message string, ctx ...map[string]interface{}) {
	var ctxMap map[string]interface{}
	if len(ctx) > 0 {
		ctxMap = ctx[0]
	}
	writeJSON(w, code, model.ErrorResponse{
		Error: model.ErrorDetail{
			Code:    code,
			Message: message,
			Context: ctxMap,
		},
	})
}

// readJSON decodes the request body as JSON into v. The body is closed after
// decoding regardless of success or failure.
func readJSON(r *http.Request, v interface{}) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

// ifMatch extracts the If-Match etag required by conditional mutations.
// Returns false (and writes the error) when the header is absent.
func ifMatch(w http.ResponseWriter, r *http.Request) (string, bool) {
	etag := r.Header.Get("If-Match")
	if etag == "" {
		writeError(w, http.StatusPreconditionFailed, "If-Match header required")
		return "", false
	}
	return etag, true
}

// writeStoreError maps store errors to the proper HTTP response: missing
// rows to 404, etag races to 409, creation conflicts to 409 with the
// offending resource and field in context.
func writeStoreError(w http.ResponseWriter, err error, fallback string) {
	var conflict *store.ConflictError
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, fallback+": not found")
	case errors.Is(err, store.ErrEtagMismatch):
		writeError(w, http.StatusConflict, fallback+": etag mismatch")
	case errors.As(err, &conflict):
		writeError(w, http.StatusConflict, conflict.Error(), map[string]interface{}{
			"resource": conflict.Resource,
			"field":    conflict.Field,
		})
	default:
		writeError(w, http.StatusInternalServerError, fallback+": "+err.Error())
	}
}
