package tenauth

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidCredentials is returned on unknown email or wrong password.
	// Callers must not distinguish the two cases.
	ErrInvalidCredentials = errors.New("invalid credentials")
	// ErrAccountLocked is returned when a login hits an active lockout window.
	ErrAccountLocked = errors.New("account locked")
	// ErrAccountDisabled is returned for deactivated accounts.
	ErrAccountDisabled = errors.New("account disabled")
	// ErrEmailExists is returned by Register when the email is already taken.
	ErrEmailExists = errors.New("email already registered")

	// ErrTokenExpired is returned when an access or action token is
	// structurally valid but past its expiry.
	ErrTokenExpired = errors.New("token expired")
	// ErrTokenInvalid is returned for malformed, revoked, consumed, or
	// otherwise unusable tokens, and for expired refresh tokens.
	ErrTokenInvalid = errors.New("token invalid")
	// ErrTokenNotFound is returned when a refresh token has no stored record.
	ErrTokenNotFound = errors.New("token not found")

	// ErrMissingTenant is returned when an operation requires an
	// organization context and none was supplied.
	ErrMissingTenant = errors.New("missing tenant")
	// ErrTenantAccessDenied is returned when the user has no active
	// membership in the requested organization.
	ErrTenantAccessDenied = errors.New("tenant access denied")
	// ErrTenantInactive is returned when the requested organization exists
	// but is deactivated.
	ErrTenantInactive = errors.New("tenant inactive")
	// ErrPermissionDenied is returned by permission-guarded operations.
	ErrPermissionDenied = errors.New("permission denied")

	// ErrNotFound is returned by stores for absent records.
	ErrNotFound = errors.New("not found")
	// ErrDuplicate is returned by stores on unique constraint conflicts.
	ErrDuplicate = errors.New("duplicate record")
	// ErrStoreUnavailable wraps storage transport failures.
	ErrStoreUnavailable = errors.New("store unavailable")
	// ErrCacheUnavailable wraps permission cache transport failures.
	ErrCacheUnavailable = errors.New("cache unavailable")

	// ErrEngineNotReady is returned when an Engine method is called before
	// Build completed or after Close.
	ErrEngineNotReady = errors.New("engine not ready")
)

// ValidationError reports a rejected input field. It is safe to show to end
// users.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation failed: %s: %s", e.Field, e.Reason)
}

func validationErr(field, reason string) error {
	return &ValidationError{Field: field, Reason: reason}
}
