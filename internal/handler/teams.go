package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/server/middleware"
	"github.com/distributed-ci/dci-server/internal/store"
)

// TeamHandler serves the team endpoints.
type TeamHandler struct {
	store *store.Store
}

// NewTeamHandler creates a TeamHandler.
func NewTeamHandler(st *store.Store) *TeamHandler {
	return &TeamHandler{store: st}
}

// Create handles POST /teams. Restricted by the router to SUPER_ADMIN and
// PRODUCT_OWNER.
func (h *TeamHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name    string `json:"name"`
		Country string `json:"country"`
	}
	if err := readJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	team := model.Team{Name: req.Name, Country: req.Country}
	if err := h.store.CreateTeam(r.Context(), &team); err != nil {
		writeStoreError(w, err, "create team")
		return
	}

	w.Header().Set("ETag", team.Etag)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"team": team})
}

// List handles GET /teams. Non-admins only see teams they belong to.
func (h *TeamHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	teams, err := h.store.ListTeams(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list teams: "+err.Error())
		return
	}

	if !(identity.IsSuperAdmin() || identity.IsAdmin()) {
		visible := make([]model.Team, 0, len(teams))
		for _, t := range teams {
			if identity.IsInTeam(t.ID) {
				visible = append(visible, t)
			}
		}
		teams = visible
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"teams": teams,
		"_meta": model.ListMeta{Count: len(teams)},
	})
}

// Get handles GET /teams/{teamID}.
func (h *TeamHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	teamID := chi.URLParam(r, "teamID")

	team, err := h.store.GetTeam(r.Context(), teamID)
	if err != nil {
		writeStoreError(w, err, "get team")
		return
	}
	if !(identity.IsSuperAdmin() || identity.IsAdmin() || identity.IsInTeam(team.ID)) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	w.Header().Set("ETag", team.Etag)
	writeJSON(w, http.StatusOK, map[string]interface{}{"team": team})
}

// Delete handles DELETE /teams/{teamID}: archives the team. Restricted by
// the router to SUPER_ADMIN.
func (h *TeamHandler) Delete(w http.ResponseWriter, r *http.Request) {
	teamID := chi.URLParam(r, "teamID")
	etag, ok := ifMatch(w, r)
	if !ok {
		return
	}

	if _, err := h.store.GetTeam(r.Context(), teamID); err != nil {
		writeStoreError(w, err, "delete team")
		return
	}

	if err := h.store.ArchiveTeam(r.Context(), teamID, etag); err != nil {
		writeStoreError(w, err, "delete team")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
