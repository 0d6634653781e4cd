package rpc

import (
	"errors"
	"net/http"

	"github.com/jason-s-yu/shootingstars/internal/auth"
	"github.com/jason-s-yu/shootingstars/internal/ratelimit"
	"github.com/jason-s-yu/shootingstars/internal/schema"
	"github.com/jason-s-yu/shootingstars/internal/store"
)

// Kind is the machine-readable error class sent to callers.
type Kind string

const (
	KindUnauthorized   Kind = "unauthorized"
	KindInvalidPayload Kind = "invalid-payload"
	KindNotFound       Kind = "not-found"
	KindRateLimited    Kind = "too-many-requests"
	KindUnknownMethod  Kind = "method-not-found"
	KindInternal       Kind = "internal-error"
)

// ErrUnknownMethod is returned when no method or publication has the requested name.
var ErrUnknownMethod = errors.New("unknown method")

// Error is the wire form of a failed call.
type Error struct {
	Kind   Kind   `json:"error"`
	Reason string `json:"reason"`
}

func (e *Error) Error() string { return string(e.Kind) + ": " + e.Reason }

// WireError classifies err for the caller. Internal failures are reported
// without their details.
func WireError(err error) *Error {
	if err == nil {
		return nil
	}
	var we *Error
	if errors.As(err, &we) {
		return we
	}
	var v *schema.Violation
	switch {
	case errors.As(err, &v):
		return &Error{Kind: KindInvalidPayload, Reason: v.Error()}
	case errors.Is(err, auth.ErrUnauthorized):
		return &Error{Kind: KindUnauthorized, Reason: auth.ErrUnauthorized.Error()}
	case errors.Is(err, store.ErrNotFound):
		return &Error{Kind: KindNotFound, Reason: err.Error()}
	case errors.Is(err, ratelimit.ErrLimited):
		return &Error{Kind: KindRateLimited, Reason: err.Error()}
	case errors.Is(err, ErrUnknownMethod):
		return &Error{Kind: KindUnknownMethod, Reason: err.Error()}
	default:
		return &Error{Kind: KindInternal, Reason: "internal server error"}
	}
}

// HTTPStatus maps an error kind to the status used by the HTTP method endpoint.
func (k Kind) HTTPStatus() int {
	switch k {
	case KindUnauthorized:
		return http.StatusUnauthorized
	case KindInvalidPayload:
		return http.StatusBadRequest
	case KindNotFound, KindUnknownMethod:
		return http.StatusNotFound
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}
