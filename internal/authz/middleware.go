package authz

import (
	"log/slog"
	"net/http"

	"github.com/agridesk/agridesk/internal/catalog"
	"github.com/agridesk/agridesk/internal/shared"
)

// Middleware wires authorization helpers for HTTP handlers.
type Middleware struct {
	Resolver *Resolver
	Logger   *slog.Logger
}

// RequireAny ensures the current actor has at least one of the permissions.
func (m Middleware) RequireAny(keys ...catalog.PermissionKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actorID, ok := shared.ActorIDFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if m.Resolver.HasAnyPermission(r.Context(), actorID, keys) {
				next.ServeHTTP(w, r)
				return
			}
			m.logDenied(actorID, r)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

// RequireAll ensures the current actor has every listed permission.
func (m Middleware) RequireAll(keys ...catalog.PermissionKey) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if len(keys) == 0 {
				next.ServeHTTP(w, r)
				return
			}
			actorID, ok := shared.ActorIDFromContext(r.Context())
			if !ok {
				http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
				return
			}
			if m.Resolver.HasAllPermissions(r.Context(), actorID, keys) {
				next.ServeHTTP(w, r)
				return
			}
			m.logDenied(actorID, r)
			http.Error(w, http.StatusText(http.StatusForbidden), http.StatusForbidden)
		})
	}
}

func (m Middleware) logDenied(actorID int64, r *http.Request) {
	if m.Logger != nil {
		m.Logger.Info("permission denied",
			slog.Int64("actor_id", actorID),
			slog.String("path", r.URL.Path))
	}
}
