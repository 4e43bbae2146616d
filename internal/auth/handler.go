package auth

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-playground/validator/v10"

	"github.com/agridesk/agridesk/internal/platform/httpx"
	"github.com/agridesk/agridesk/internal/shared"
)

// SessionHeader carries the session token on API requests.
const SessionHeader = "X-Session-Token"

// Handler wires HTTP endpoints for authentication flows.
type Handler struct {
	logger    *slog.Logger
	service   *Service
	validator *validator.Validate
}

// NewHandler constructs a Handler instance.
func NewHandler(logger *slog.Logger, service *Service) *Handler {
	return &Handler{logger: logger, service: service, validator: validator.New()}
}

// MountRoutes registers auth routes on the provided router.
func (h *Handler) MountRoutes(r chi.Router) {
	r.Post("/login", h.handleLogin)
	r.Post("/logout", h.handleLogout)
	r.Get("/session", h.handleSession)
}

type loginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required,min=8"`
}

type actorResponse struct {
	ID       int64  `json:"id"`
	Email    string `json:"email"`
	Name     string `json:"name"`
	RoleID   int64  `json:"role_id"`
	IsActive bool   `json:"is_active"`
}

type loginResponse struct {
	SessionID string        `json:"session_id"`
	ExpiresAt string        `json:"expires_at"`
	Actor     actorResponse `json:"actor"`
}

func (h *Handler) handleLogin(w http.ResponseWriter, r *http.Request) {
	var req loginRequest
	if err := httpx.DecodeJSON(r, &req); err != nil {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "malformed JSON body")
		return
	}
	if err := h.validator.Struct(req); err != nil {
		// Same shape as a credential failure so field errors do not
		// reveal which accounts exist.
		httpx.RespondError(w, shared.ErrInvalidCredentials)
		return
	}
	sess, actor, err := h.service.Authenticate(r.Context(), req.Email, req.Password)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, loginResponse{
		SessionID: sess.ID,
		ExpiresAt: sess.ExpiresAt.Format("2006-01-02T15:04:05Z07:00"),
		Actor: actorResponse{
			ID:       actor.ID,
			Email:    actor.Email,
			Name:     actor.Name,
			RoleID:   actor.RoleID,
			IsActive: actor.IsActive,
		},
	})
}

func (h *Handler) handleLogout(w http.ResponseWriter, r *http.Request) {
	sessionID := shared.SessionIDFromContext(r.Context())
	if sessionID == "" {
		sessionID = r.Header.Get(SessionHeader)
	}
	if sessionID == "" {
		httpx.Problem(w, http.StatusBadRequest, "Bad Request", "no session token")
		return
	}
	if err := h.service.SignOut(r.Context(), sessionID); err != nil {
		h.logger.Error("sign out", slog.Any("error", err))
		httpx.RespondError(w, err)
		return
	}
	w.WriteHeader(http.StatusNoContent)
}

func (h *Handler) handleSession(w http.ResponseWriter, r *http.Request) {
	sessionID := r.Header.Get(SessionHeader)
	if sessionID == "" {
		httpx.RespondError(w, shared.ErrSessionInvalid)
		return
	}
	actor, err := h.service.ValidateSession(r.Context(), sessionID)
	if err != nil {
		httpx.RespondError(w, err)
		return
	}
	httpx.JSON(w, http.StatusOK, actorResponse{
		ID:       actor.ID,
		Email:    actor.Email,
		Name:     actor.Name,
		RoleID:   actor.RoleID,
		IsActive: actor.IsActive,
	})
}
