package authz

import (
	"context"
	"log/slog"
	"net/http"
	"strconv"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agridesk/agridesk/internal/catalog"
	"github.com/agridesk/agridesk/internal/platform/httpx"
)

// DecisionService is the decision surface the HTTP layer consumes. Checks go
// through it rather than the evaluator directly so a successful check also
// extends the caller's session window.
type DecisionService interface {
	CanPerformAction(ctx context.Context, actorID int64, key catalog.ActionKey, resource ResourceRef) Decision
	EffectivePermissions(ctx context.Context, actorID int64) []catalog.PermissionKey
}

// Handler exposes decision checks to the application layer over HTTP.
type Handler struct {
	logger    *slog.Logger
	decisions DecisionService
	validator *validator.Validate
	mw        Middleware
}

// NewHandler builds a Handler instance.
func NewHandler(logger *slog.Logger, decisions DecisionService, mw Middleware) *Handler {
	return &Handler{logger: logger, decisions: decisions, validator: validator.New(), mw: mw}
}

// MountRoutes registers authorization routes.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/check", h.check)
	r.Group(func(r chi.Router) {
		r.Use(h.mw.RequireAny(catalog.PermActorsView))
		r.Get("/actors/{actorID}/permissions", h.actorPermissions)
	})
}

type checkRequest struct {
	ActorID   int64  `json:"actor_id" validate:"required"`
	ActionKey string `json:"action_key" validate:"required"`
	Resource  struct {
		Type    string `json:"type"`
		ID      string `json:"id"`
		OwnerID int64  `json:"owner_id"`
	} `json:"resource"`
}

type decisionResponse struct {
	Effect    string `json:"effect"`
	Reason    string `json:"reason,omitempty"`
	Dangerous bool   `json:"dangerous"`
}

func (h *Handler) check(w http.ResponseWriter, r *http.Request) {
	var req checkRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	key, err := catalog.ParseActionKey(req.ActionKey)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
		return
	}
	decision := h.decisions.CanPerformAction(r.Context(), req.ActorID, key, ResourceRef{
		Type:    req.Resource.Type,
		ID:      req.Resource.ID,
		OwnerID: req.Resource.OwnerID,
	})
	httpx.JSON(w, http.StatusOK, decisionResponse{
		Effect:    string(decision.Effect),
		Reason:    string(decision.Reason),
		Dangerous: decision.Dangerous,
	})
}

func (h *Handler) actorPermissions(w http.ResponseWriter, r *http.Request) {
	actorID, err := strconv.ParseInt(chi.URLParam(r, "actorID"), 10, 64)
	if err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "invalid actor id")
		return
	}
	keys := h.decisions.EffectivePermissions(r.Context(), actorID)
	out := make([]string, len(keys))
	for i, key := range keys {
		out[i] = key.String()
	}
	httpx.JSON(w, http.StatusOK, map[string]any{"actor_id": actorID, "permissions": out})
}
