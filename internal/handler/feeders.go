package handler

import (
	"net/http"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/server/middleware"
	"github.com/distributed-ci/dci-server/internal/store"
)

// FeederHandler serves the feeder endpoints. Feeders are machine agents like
// remotecis; they sign requests the same way with their own api_secret.
type FeederHandler struct {
	store *store.Store
}

// NewFeederHandler creates a FeederHandler.
func NewFeederHandler(st *store.Store) *FeederHandler {
	return &FeederHandler{store: st}
}

type feederWithSecret struct {
	model.Feeder
	APISecret string `json:"api_secret"`
}

// Create handles POST /feeders.
func (h *FeederHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req struct {
		Name   string `json:"name"`
		TeamID string `json:"team_id"`
	}
	if err := readJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}
	if req.TeamID == "" && identity.TeamID != nil {
		req.TeamID = *identity.TeamID
	}
	if !canManageTeam(identity, req.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	feeder := model.Feeder{Name: req.Name, TeamID: req.TeamID}
	if err := h.store.CreateFeeder(r.Context(), &feeder); err != nil {
		writeStoreError(w, err, "create feeder")
		return
	}

	w.Header().Set("ETag", feeder.Etag)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"feeder": feederWithSecret{Feeder: feeder, APISecret: feeder.APISecret},
	})
}
