package handler

import (
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/distributed-ci/dci-server/internal/model"
	"github.com/distributed-ci/dci-server/internal/server/middleware"
	"github.com/distributed-ci/dci-server/internal/store"
)

// RoleHandler serves the role and permission management endpoints.
type RoleHandler struct {
	store *store.Store
}

// NewRoleHandler creates a RoleHandler.
func NewRoleHandler(st *store.Store) *RoleHandler {
	return &RoleHandler{store: st}
}

type roleRequest struct {
	Name        string `json:"name"`
	Label       string `json:"label"`
	Description string `json:"description"`
}

// Create handles POST /roles. Restricted to SUPER_ADMIN by the router.
func (h *RoleHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	role := model.Role{
		Name:        req.Name,
		Label:       req.Label,
		Description: req.Description,
	}
	if err := h.store.CreateRole(r.Context(), &role); err != nil {
		writeStoreError(w, err, "create role")
		return
	}

	w.Header().Set("ETag", role.Etag)
	writeJSON(w, http.StatusCreated, map[string]interface{}{"role": role})
}

// List handles GET /roles. Row-level visibility is applied before the
// response: SUPER_ADMIN is invisible to non-admins, PRODUCT_OWNER is hidden
// unless the caller is an admin or a product owner, and a regular USER sees
// only their own role.
func (h *RoleHandler) List(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())

	roles, err := h.store.ListRoles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list roles: "+err.Error())
		return
	}

	isAdmin := identity.IsSuperAdmin() || identity.IsAdmin()
	visible := make([]model.Role, 0, len(roles))
	for _, role := range roles {
		if role.Label == model.RoleSuperAdmin && !isAdmin {
			continue
		}
		if role.Label == model.RoleProductOwner && !(isAdmin || identity.IsProductOwner()) {
			continue
		}
		if identity.IsRegularUser() && role.ID != identity.RoleID {
			continue
		}
		visible = append(visible, role)
	}

	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roles": visible,
		"_meta": model.ListMeta{Count: len(visible)},
	})
}

// Get handles GET /roles/{roleID}.
func (h *RoleHandler) Get(w http.ResponseWriter, r *http.Request) {
	identity := middleware.GetIdentity(r.Context())
	roleID := chi.URLParam(r, "roleID")

	role, err := h.store.GetRole(r.Context(), roleID)
	if err != nil {
		writeStoreError(w, err, "get role")
		return
	}

	if identity.IsRegularUser() && identity.RoleID != role.ID {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}
	if role.Label == model.RoleSuperAdmin && !identity.IsSuperAdmin() {
		writeError(w, http.StatusUnauthorized, "Operation not authorized.")
		return
	}

	perms, err := h.store.ListRolePermissions(r.Context(), role.ID)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "get role permissions: "+err.Error())
		return
	}

	w.Header().Set("ETag", role.Etag)
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"role":        role,
		"permissions": perms,
	})
}

// Update handles PUT /roles/{roleID}. Requires If-Match; restricted to
// SUPER_ADMIN by the router.
func (h *RoleHandler) Update(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	etag, ok := ifMatch(w, r)
	if !ok {
		return
	}

	var req roleRequest
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}

	if _, err := h.store.GetRole(r.Context(), roleID); err != nil {
		writeStoreError(w, err, "update role")
		return
	}

	newEtag, err := h.store.UpdateRole(r.Context(), roleID, etag, &model.Role{
		Name:        req.Name,
		Description: req.Description,
	})
	if err != nil {
		writeStoreError(w, err, "update role")
		return
	}

	w.Header().Set("ETag", newEtag)
	w.WriteHeader(http.StatusNoContent)
}

// Delete handles DELETE /roles/{roleID}: archives the role. Requires
// If-Match; restricted to SUPER_ADMIN by the router.
func (h *RoleHandler) Delete(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	etag, ok := ifMatch(w, r)
	if !ok {
		return
	}

	if _, err := h.store.GetRole(r.Context(), roleID); err != nil {
		writeStoreError(w, err, "delete role")
		return
	}

	if err := h.store.ArchiveRole(r.Context(), roleID, etag); err != nil {
		writeStoreError(w, err, "delete role")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// ListPurge handles GET /roles/purge: archived roles awaiting removal.
func (h *RoleHandler) ListPurge(w http.ResponseWriter, r *http.Request) {
	roles, err := h.store.ListArchivedRoles(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list archived roles: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"roles": roles,
		"_meta": model.ListMeta{Count: len(roles)},
	})
}

// Purge handles POST /roles/purge: permanently removes archived roles.
func (h *RoleHandler) Purge(w http.ResponseWriter, r *http.Request) {
	if _, err := h.store.PurgeArchivedRoles(r.Context()); err != nil {
		writeError(w, http.StatusInternalServerError, "purge roles: "+err.Error())
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

// CreatePermission handles POST /permissions. Restricted to SUPER_ADMIN by
// the router.
func (h *RoleHandler) CreatePermission(w http.ResponseWriter, r *http.Request) {
	var req struct {
		Name        string `json:"name"`
		Label       string `json:"label"`
		Description string `json:"description"`
	}
	if err := readJSON(r, &req); err != nil {
		writeError(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.Name == "" {
		writeError(w, http.StatusBadRequest, "name is required")
		return
	}

	perm := model.Permission{
		Name:        req.Name,
		Label:       req.Label,
		Description: req.Description,
	}
	if err := h.store.CreatePermission(r.Context(), &perm); err != nil {
		writeStoreError(w, err, "create permission")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{"permission": perm})
}

// ListPermissions handles GET /permissions.
func (h *RoleHandler) ListPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.store.ListPermissions(r.Context())
	if err != nil {
		writeError(w, http.StatusInternalServerError, "list permissions: "+err.Error())
		return
	}
	writeJSON(w, http.StatusOK, map[string]interface{}{
		"permissions": perms,
		"_meta":       model.ListMeta{Count: len(perms)},
	})
}

// AddPermission handles POST /roles/{roleID}/permissions.
func (h *RoleHandler) AddPermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")

	var req struct {
		PermissionID string `json:"permission_id"`
	}
	if err := readJSON(r, &req); err != nil || req.PermissionID == "" {
		writeError(w, http.StatusBadRequest, "permission_id is required")
		return
	}

	if _, err := h.store.GetRole(r.Context(), roleID); err != nil {
		writeStoreError(w, err, "add permission")
		return
	}
	if _, err := h.store.GetPermission(r.Context(), req.PermissionID); err != nil {
		writeStoreError(w, err, "add permission")
		return
	}

	if err := h.store.AddPermissionToRole(r.Context(), roleID, req.PermissionID); err != nil {
		writeStoreError(w, err, "add permission")
		return
	}
	writeJSON(w, http.StatusCreated, map[string]interface{}{
		"role_id":       roleID,
		"permission_id": req.PermissionID,
	})
}

// RemovePermission handles DELETE /roles/{roleID}/permissions/{permissionID}.
func (h *RoleHandler) RemovePermission(w http.ResponseWriter, r *http.Request) {
	roleID := chi.URLParam(r, "roleID")
	permissionID := chi.URLParam(r, "permissionID")

	if _, err := h.store.GetRole(r.Context(), roleID); err != nil {
		writeStoreError(w, err, "remove permission")
		return
	}

	if err := h.store.RemovePermissionFromRole(r.Context(), roleID, permissionID); err != nil {
		writeStoreError(w, err, "remove permission")
		return
	}
	w.WriteHeader(http.StatusNoContent)
}
