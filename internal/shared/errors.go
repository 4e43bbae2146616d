package shared

import "errors"

var (
	// ErrNotFound indicates resource not found.
	ErrNotFound = errors.New("not found")
	// ErrInvalidCredentials indicates login failure. Deliberately generic:
	// unknown email, wrong password and ineligible account all map here.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrImmutableResource occurs on mutation attempts against system-protected rows.
	ErrImmutableResource = errors.New("resource is immutable")
	// ErrResourceInUse occurs when deleting a row still referenced elsewhere.
	ErrResourceInUse = errors.New("resource still referenced")
	// ErrSessionExpired indicates the session outlived its activity window.
	ErrSessionExpired = errors.New("session expired")
	// ErrSessionInvalid indicates an unknown or malformed session token.
	ErrSessionInvalid = errors.New("session invalid")
	// ErrStoreUnavailable indicates the backing store could not be reached.
	// Authorization paths treat it as deny, never as allow.
	ErrStoreUnavailable = errors.New("store unavailable")
)
