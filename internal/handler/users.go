package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/server/middleware"
	"github.com/distributed-ci/dci-server/internal/store"
)

// UserHandler serves the user endpoints.
type UserHandler struct {
	store *store.Store
}

// NewUserHandler creates a UserHandler.
func NewUserHandler(st *store.Store) *UserHandler {
	return &UserHandler{store: st}
}

// Me handles GET /users/me: the acting principal as seen by the server.
func (h *UserHandler) Me(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	user, err := h.store.GetUser(r.Context(), identity.ID)
	if err != nil {
		writeStoreError(w, err, "get current user")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"user":  user,
		"teams": identity.Teams,
	})
}

// List handles GET /users.
func (h *UserHandler) List(w http.ResponseWriter, r *http.Request) {
	users, err := h.store.ListUsers(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list users: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"users": users,
		"_meta": model.ListMeta{Count: len(users)},
	})
}

// Get handles GET /users/{userID}. A regular user may only look at
// themselves.
func (h *UserHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	userID := chi.URLParam(r, "userID")

	if identity.IsRegularUser() && identity.ID != userID {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	user, err := h.store.GetUser(r.Context(), userID)
	if err != nil {
		writeStoreError(w, err, "get user")
		return
	}
	w.Header().Set("ETag", user.Etag)
	writeJSON(w, http.StatusOK, map[string]interface{}{"user": user})
}
