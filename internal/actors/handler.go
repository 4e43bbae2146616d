package actors

import (
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agridesk/agridesk/internal/catalog"
	"github.com/agridesk/agridesk/internal/platform/httpx"
	"github.com/agridesk/agridesk/internal/shared"
)

// Handler manages the actor directory admin surface.
type Handler struct {
	logger     *slog.Logger
	service    *Service
	validator  *validator.Validate
	requireAny catalog.Guard
	requireAll catalog.Guard
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, service *Service, requireAny, requireAll catalog.Guard) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New(), requireAny: requireAny, requireAll: requireAll}
}

// MountRoutes registers actor routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Group(func(r chi.Router) {
		r.Use(h.requireAny(catalog.PermActorsView, catalog.PermActorsEdit))
		r.Get("/", h.listActors)
		r.Get("/{actorID}", h.getActor)
		r.Get("/{actorID}/farms", h.listFarms)
	})
	r.Group(func(r chi.Router) {
		r.Use(h.requireAll(catalog.PermActorsEdit))
		r.Put("/{actorID}/role", h.setRole)
		r.Put("/{actorID}/active", h.setActive)
		r.Put("/{actorID}/scope", h.setScope)
		r.Post("/{actorID}/farms", h.assignFarm)
		r.Delete("/{actorID}/farms/{farmID}", h.revokeFarm)
	})
}

type actorView struct {
	ID       int64    `json:"id"`
	Email    string   `json:"email"`
	Name     string   `json:"name"`
	RoleID   int64    `json:"role_id"`
	IsActive bool     `json:"is_active"`
	Scope    string   `json:"scope_type"`
	Values   []string `json:"scope_values,omitempty"`
}

func toActorView(actor AdminActor) actorView {
	return actorView{
		ID:       actor.ID,
		Email:    actor.Email,
		Name:     actor.Name,
		RoleID:   actor.RoleID,
		IsActive: actor.IsActive,
		Scope:    string(actor.Scope.Type),
		Values:   actor.Scope.Values,
	}
}

func (h *Handler) listActors(w http.ResponseWriter, r *http.Request) {
	list, err := h.service.ListActors(r.Context())
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]actorView, len(list))
	for i, actor := range list {
		out[i] = toActorView(actor)
	}
	httpx.JSON(w, http.StatusOK, out)
}

func (h *Handler) getActor(w http.ResponseWriter, r *http.Request) {
	id, ok := h.actorID(w, r)
	if !ok {
		return
	}
	actor, err := h.service.GetActor(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, toActorView(actor))
}

func (h *Handler) setRole(w http.ResponseWriter, r *http.Request) {
	id, ok := h.actorID(w, r)
	if !ok {
		return
	}
	var req struct {
		RoleID int64 `json:"role_id" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	if err := h.service.SetRole(r.Context(), id, req.RoleID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setActive(w http.ResponseWriter, r *http.Request) {
	id, ok := h.actorID(w, r)
	if !ok {
		return
	}
	var req struct {
		Active bool `json:"active"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.service.SetActive(r.Context(), id, req.Active); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) setScope(w http.ResponseWriter, r *http.Request) {
	id, ok := h.actorID(w, r)
	if !ok {
		return
	}
	var req struct {
		Type   string   `json:"type"`
		Values []string `json:"values"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.service.SetScope(r.Context(), id, Scope{Type: ScopeType(req.Type), Values: req.Values}); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) listFarms(w http.ResponseWriter, r *http.Request) {
	id, ok := h.actorID(w, r)
	if !ok {
		return
	}
	farms, err := h.service.EffectiveFarmSet(r.Context(), id)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	out := make([]string, 0, len(farms))
	for farm := range farms {
		out = append(out, farm)
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actor_id": id, "farms": out})
}

func (h *Handler) assignFarm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.actorID(w, r)
	if !ok {
		return
	}
	var req struct {
		FarmID string `json:"farm_id" validate:"required"`
	}
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	grantedBy, _ := shared.ActorIDFromContext(r.Context())
	if err := h.service.AssignFarm(r.Context(), id, req.FarmID, grantedBy); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) revokeFarm(w http.ResponseWriter, r *http.Request) {
	id, ok := h.actorID(w, r)
	if !ok {
		return
	}
	farmID := chi.URLParam(r, "farmID")
	if farmID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid farm id")
		return
	}
	if err := h.service.RevokeFarm(r.Context(), id, farmID); err != nil {
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) actorID(w http.ResponseWriter, r *http.Request) (int64, bool) {
	id, err := strconv.ParseInt(chi.URLParam(r, "actorID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid actor id")
		return 0, false
	}
	return id, true
}
