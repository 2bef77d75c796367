package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/server/middleware"
	"github.com/distributed-ci/dci-server/internal/store"
)

// RemoteCIHandler serves the remoteci endpoints. Every team-scoped check
// happens here, after the resource row is loaded: the guard has already
// authenticated the caller but does not know which team owns the resource.
type RemoteCIHandler struct {
	store *store.Store
}

// NewRemoteCIHandler creates a RemoteCIHandler.
func NewRemoteCIHandler(st *store.Store) *RemoteCIHandler {
	return &RemoteCIHandler{store: st}
}

// remoteciWithSecret is the create/rotate response shape: the only two
// moments the api_secret leaves the server.
type remoteciWithSecret struct {
	model.RemoteCI
	APISecret string `json:"api_secret"`
}

func canManageTeam(identity *model.Identity, teamID string) bool {
	return identity.IsSuperAdmin() || identity.IsAdmin() || identity.IsInTeam(teamID)
}

// Create handles POST /remotecis. The caller must be an admin or belong to
// the target team.
func (h *RemoteCIHandler) Create(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	var req struct {
		Name   string `json:"name"`
		TeamID string `json:"team_id"`
		Public bool   `json:"public"`
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

	rci := model.RemoteCI{Name: req.Name, TeamID: req.TeamID, Public: req.Public}
	if err := h.store.CreateRemoteCI(r.Context(), &rci); err != nil {
		writeStoreError(w, err, "create remoteci")
		return
	}

	w.Header().Set("ETag", rci.Etag)
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"remoteci": remoteciWithSecret{RemoteCI: rci, APISecret: rci.APISecret},
	})
}

// List handles GET /remotecis. Non-admins only see their own team's agents.
func (h *RemoteCIHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	teamFilter := ""
	if !(identity.IsSuperAdmin() || identity.IsAdmin()) {
		if identity.TeamID == nil {
			writeJSON(w, http.StatusOK, map[string]interface{}{
				"remotecis": []model.RemoteCI{},
				"_meta":     model.ListMeta{Count: 0},
			})
			return
		}
		teamFilter = *identity.TeamID
	}

	rcis, err := h.store.ListRemoteCIs(r.Context(), teamFilter)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list remotecis: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"remotecis": rcis,
		"_meta":     model.ListMeta{Count: len(rcis)},
	})
}

// Get handles GET /remotecis/{remoteciID}.
func (h *RemoteCIHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	rci, err := h.store.GetRemoteCI(r.Context(), chi.URLParam(r, "remoteciID"))
	if err != nil {
		writeStoreError(w, err, "get remoteci")
		return
	}
	if !rci.Public && !canManageTeam(identity, rci.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	w.Header().Set("ETag", rci.Etag)
	writeJSON(w, http.StatusOK, map[string]interface{}{"remoteci": rci})
}

// Update handles PUT /remotecis/{remoteciID} under If-Match protection.
func (h *RemoteCIHandler) Update(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	remoteciID := chi.URLParam(r, "remoteciID")

	etag, ok := ifMatch(w, r)
	if !ok {
		return
	}

	rci, err := h.store.GetRemoteCI(r.Context(), remoteciID)
	if err != nil {
		writeStoreError(w, err, "update remoteci")
		return
	}
	if !canManageTeam(identity, rci.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	var req struct {
		Name   *string `json:"name"`
		Public *bool   `json:"public"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name != nil {
		rci.Name = *req.Name
	}
	if req.Public != nil {
		rci.Public = *req.Public
	}

	newEtag, err := h.store.UpdateRemoteCI(r.Context(), remoteciID, etag, rci)
	if err != nil {
		writeStoreError(w, err, "update remoteci")
		return
	}

	w.Header().Set("ETag", newEtag)
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /remotecis/{remoteciID}: archives the agent.
func (h *RemoteCIHandler) Delete(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	remoteciID := chi.URLParam(r, "remoteciID")

	etag, ok := ifMatch(w, r)
	if !ok {
		return
	}

	rci, err := h.store.GetRemoteCI(r.Context(), remoteciID)
	if err != nil {
		writeStoreError(w, err, "delete remoteci")
		return
	}
	if !canManageTeam(identity, rci.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	if err := h.store.ArchiveRemoteCI(r.Context(), remoteciID, etag); err != nil {
		writeStoreError(w, err, "delete remoteci")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// RotateSecret handles PUT /remotecis/{remoteciID}/api_secret. The previous
// secret stops verifying atomically with the new one's issuance.
func (h *RemoteCIHandler) RotateSecret(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	remoteciID := chi.URLParam(r, "remoteciID")

	etag, ok := ifMatch(w, r)
	if !ok {
		return
	}

	rci, err := h.store.GetRemoteCI(r.Context(), remoteciID)
	if err != nil {
		writeStoreError(w, err, "rotate api secret")
		return
	}
	if !canManageTeam(identity, rci.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	secret, newEtag, err := h.store.RotateAPISecret(r.Context(), remoteciID, etag)
	if err != nil {
		writeStoreError(w, err, "rotate api secret")
		return
	}

	w.Header().Set("ETag", newEtag)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"id":         remoteciID,
		"etag":       newEtag,
		"api_secret": secret,
	})
}

// ListPurge handles GET /remotecis/purge.
func (h *RemoteCIHandler) ListPurge(w http.ResponseWriter, r *http.Request) {
	rcis, err := h.store.ListArchivedRemoteCIs(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list archived remotecis: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"remotecis": rcis,
		"_meta":     model.ListMeta{Count: len(rcis)},
	})
}

// Purge handles POST /remotecis/purge.
func (h *RemoteCIHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.PurgeArchivedRemoteCIs(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "purge remotecis: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreateConfiguration handles POST /remotecis/{remoteciID}/rconfigurations.
func (h *RemoteCIHandler) CreateConfiguration(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	remoteciID := chi.URLParam(r, "remoteciID")

	rci, err := h.store.GetRemoteCI(r.Context(), remoteciID)
	if err != nil {
		writeStoreError(w, err, "create configuration")
		return
	}
	if !canManageTeam(identity, rci.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	var req struct {
		Name      string `json:"name"`
		Topic     string `json:"topic"`
		Component string `json:"component_types"`
	}
	if err := readJSON(r, &req); err != nil || req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	cfg := model.RConfiguration{Name: req.Name, Topic: req.Topic, Component: req.Component}
	if err := h.store.CreateRConfiguration(r.Context(), remoteciID, &cfg); err != nil {
		writeStoreError(w, err, "create configuration")
		return
	}

	w.Header().Set("ETag", cfg.Etag)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"rconfiguration": cfg})
}

// ListConfigurations handles GET /remotecis/{remoteciID}/rconfigurations.
func (h *RemoteCIHandler) ListConfigurations(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	remoteciID := chi.URLParam(r, "remoteciID")

	rci, err := h.store.GetRemoteCI(r.Context(), remoteciID)
	if err != nil {
		writeStoreError(w, err, "list configurations")
		return
	}
	if !canManageTeam(identity, rci.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	configs, err := h.store.ListRConfigurations(r.Context(), remoteciID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list configurations: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"rconfigurations": configs,
		"_meta":           model.ListMeta{Count: len(configs)},
	})
}

// GetConfiguration handles GET /remotecis/{remoteciID}/rconfigurations/{configID}.
func (h *RemoteCIHandler) GetConfiguration(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	remoteciID := chi.URLParam(r, "remoteciID")

	rci, err := h.store.GetRemoteCI(r.Context(), remoteciID)
	if err != nil {
		writeStoreError(w, err, "get configuration")
		return
	}
	if !canManageTeam(identity, rci.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	cfg, err := h.store.GetRConfiguration(r.Context(), remoteciID, chi.URLParam(r, "configID"))
	if err != nil {
		writeStoreError(w, err, "get configuration")
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{"rconfiguration": cfg})
}

// DeleteConfiguration handles DELETE /remotecis/{remoteciID}/rconfigurations/{configID}.
func (h *RemoteCIHandler) DeleteConfiguration(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	remoteciID := chi.URLParam(r, "remoteciID")

	rci, err := h.store.GetRemoteCI(r.Context(), remoteciID)
	if err != nil {
		writeStoreError(w, err, "delete configuration")
		return
	}
	if !canManageTeam(identity, rci.TeamID) {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	if err := h.store.ArchiveRConfiguration(r.Context(), remoteciID, chi.URLParam(r, "configID")); err != nil {
		writeStoreError(w, err, "delete configuration")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
