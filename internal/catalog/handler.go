package catalog

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agridesk/agridesk/internal/platform/httpx"
)

// Guard builds permission-checking middleware for a set of keys. Owned here
// so handler packages need not depend on the resolver.
type Guard func(keys ...PermissionKey) func(http.Handler) http.Handler

func passGuard(keys ...PermissionKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler { return next }
}

// Handler manages the catalog admin surface.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	validator  *validator.Validate
	requireAny Guard
	requireAll Guard
}

// NewHandler builds a Handler instance. Nil guards leave routes open; the
// router always wires real ones.
func NewHandler(logger *slog.Logger, service *Service, requireAny, requireAll Guard) *Handler {
	if requireAny == nil {
		requireAny = passGuard
	}
	if requireAll == nil {
		requireAll = passGuard
	}
	return &Handler{logger: logger, service: service, validator: validator.New(), requireAny: requireAny, requireAll: requireAll}
}

// MountRoutes registers catalog routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAny(PermRolesView, PermRolesEdit))
		r.Get("/roles", h.listRoles)
		r.Get("/roles/{roleID}", h.getRole)
		r.Get("/roles/{roleID}/permissions", h.rolePermissions)
		r.Get("/roles/{roleID}/actions", h.roleActions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.requireAll(PermRolesEdit))
		r.Post("/roles", h.createRole)
		r.Put("/roles/{roleID}", h.updateRole)
		r.Delete("/roles/{roleID}", h.deleteRole)
		r.Put("/roles/{roleID}/permissions", h.syncPermissions)
		r.Put("/roles/{roleID}/actions", h.syncActions)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.requireAny(PermPermissionsView))
		r.Get("/permissions", h.listPermissions)
		r.Get("/actions", h.listActions)
		r.Get("/categories", h.listCategories)
	})
}

type roleRequest struct {
	Key         string `json:"key" validate:"required"`
	Name        string `json:"name"`
	Description string `json:"description"`
	Priority    int    `json:"priority"`
}

type roleResponse struct {
	ID           int64  `json:"id"`
	Key          string `json:"key"`
	Name         string `json:"name"`
	Description  string `json:"description"`
	IsSystemRole bool   `json:"is_system_role"`
	Priority     int    `json:"priority"`
}

func toRoleResponse(role Role) roleResponse {
	return roleResponse{
		ID:           role.ID,
		Key:          role.Key,
		Name:         role.Name,
		Description:  role.Description,
		IsSystemRole: role.IsSystemRole,
		Priority:     role.Priority,
	}
}

func (h *Handler) listRoles(w http.ResponseWriter, r *http.Request) {
	roles, err := h.service.ListRoles(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]roleResponse, len(roles))
	for i, role := range roles {
		out[i] = toRoleResponse(role)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	role, err := h.service.GetRole(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) createRole(w http.ResponseWriter, r *http.Request) {
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	role, err := h.service.CreateRole(r.Context(), req.Key, req.Name, req.Description, req.Priority)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusCreated, toRoleResponse(role))
}

func (h *Handler) updateRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req roleRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	role, err := h.service.UpdateRole(r.Context(), id, req.Name, req.Description, req.Priority)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toRoleResponse(role))
}

func (h *Handler) deleteRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	if err := h.service.DeleteRole(r.Context(), id); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

type syncRequest struct {
	Keys []string `json:"keys"`
}

func (h *Handler) syncPermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	keys := make([]PermissionKey, 0, len(req.Keys))
	for _, raw := range req.Keys {
		key, err := ParsePermissionKey(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		keys = append(keys, key)
	}
	if err := h.service.SyncRolePermissions(r.Context(), id, keys); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) syncActions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	var req syncRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	keys := make([]ActionKey, 0, len(req.Keys))
	for _, raw := range req.Keys {
		key, err := ParseActionKey(raw)
		if err != nil {
			httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
			return
		}
		keys = append(keys, key)
	}
	if err := h.service.SyncRoleActions(r.Context(), id, keys); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) rolePermissions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	keys, err := h.service.RolePermissionKeys(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role_id": id, "permissions": out})
}

func (h *Handler) roleActions(w http.ResponseWriter, r *http.Request) {
	id, ok := h.roleID(w, r)
	if !ok {
		return
	}
	actions, err := h.service.RoleActions(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"role_id": id, "actions": toActionResponses(actions)})
}

type actionResponse struct {
	Key              string `json:"key"`
	Name             string `json:"name"`
	ScopeLevel       string `json:"scope_level"`
	IsDangerous      bool   `json:"is_dangerous"`
	RequiresApproval bool   `json:"requires_approval"`
}

func toActionResponses(actions []Action) []actionResponse {
	out := make([]actionResponse, len(actions))
	for i, action := range actions {
		out[i] = actionResponse{
			Key:              action.Key.String(),
			Name:             action.Name,
			ScopeLevel:       string(action.ScopeLevel),
			IsDangerous:      action.IsDangerous,
			RequiresApproval: action.RequiresApproval,
		}
	}
	return out
}

func (h *Handler) listPermissions(w http.ResponseWriter, r *http.Request) {
	perms, err := h.service.ListPermissions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, perms)
}

func (h *Handler) listActions(w http.ResponseWriter, r *http.Request) {
	actions, err := h.service.ListActions(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toActionResponses(actions))
}

func (h *Handler) listCategories(w http.ResponseWriter, r *http.Request) {
	cats, err := h.service.ListCategories(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, cats)
}

func (h *Handler) roleID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "roleID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid role id")
		return 0, false
	}
	return id, true
}
