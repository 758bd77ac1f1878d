// internal/apperr/apperr.go
package apperr

import (
	"context"
	"errors"
	"net/http"

	"gorm.io/gorm"
)

// Domain sentinels. Services return these (possibly wrapped); the HTTP layer
// converts them with Status.
var (
	// ErrNotFound means the referenced user is absent from the Directory.
	ErrNotFound = errors.New("user not found")

	// ErrForbidden is an authorization failure on an admin operation.
	ErrForbidden = errors.New("forbidden")

	// ErrBlocked marks a blocked user attempting search or relay.
	ErrBlocked = errors.New("account is blocked")

	// ErrNoPartner is informational: relay or stop without an active dialog.
	ErrNoPartner = errors.New("no active partner")

	// ErrContactRequired gates searching on a filled-in contact attribute.
	ErrContactRequired = errors.New("contact attribute required before searching")

	// ErrDeliveryFailed is a transport-level relay failure. Pairing state is
	// left untouched by the caller.
	ErrDeliveryFailed = errors.New("delivery failed")

	// ErrPersistenceUnavailable means the backing store rejected a write.
	ErrPersistenceUnavailable = errors.New("persistence unavailable")
)

// Status converts service errors into HTTP status codes.
// Keeps handlers clean by centralizing the mapping.
func Status(err error) int {
	switch {
	case err == nil:
		return http.StatusOK

	case errors.Is(err, ErrNotFound), errors.Is(err, gorm.ErrRecordNotFound):
		return http.StatusNotFound

	case errors.Is(err, ErrForbidden), errors.Is(err, ErrBlocked):
		return http.StatusForbidden

	case errors.Is(err, ErrContactRequired):
		return http.StatusPreconditionFailed

	case errors.Is(err, ErrDeliveryFailed):
		return http.StatusBadGateway

	case errors.Is(err, ErrPersistenceUnavailable):
		return http.StatusServiceUnavailable

	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout

	case errors.Is(err, context.Canceled):
		return http.StatusRequestTimeout

	default:
		return http.StatusInternalServerError
	}
}
