package httpx

import (
	"errors"
	"net/http"

	"github.com/agridesk/agridesk/internal/shared"
)

// ErrValidation marks malformed request payloads.
var ErrValidation = errors.New("validation failed")

// RespondError maps engine errors to HTTP responses using RFC7807.
// Credential failures stay generic so callers cannot enumerate accounts.
func RespondError(w http.ResponseWriter, err error) {
	switch {
	case errors.Is(err, shared.ErrNotFound):
		Problem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, shared.ErrInvalidCredentials):
		Problem(w, http.StatusUnauthorized, "Unauthorized", "invalid credentials")
	case errors.Is(err, shared.ErrSessionExpired):
		Problem(w, http.StatusUnauthorized, "Session Expired", err.Error())
	case errors.Is(err, shared.ErrSessionInvalid):
		Problem(w, http.StatusUnauthorized, "Session Invalid", err.Error())
	case errors.Is(err, shared.ErrImmutableResource):
		Problem(w, http.StatusConflict, "Immutable Resource", err.Error())
	case errors.Is(err, shared.ErrResourceInUse):
		Problem(w, http.StatusConflict, "Resource In Use", err.Error())
	case errors.Is(err, shared.ErrStoreUnavailable):
		Problem(w, http.StatusServiceUnavailable, "Store Unavailable", "")
	case errors.Is(err, ErrValidation):
		Problem(w, http.StatusBadRequest, "Validation Failed", err.Error())
	default:
		Problem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}
