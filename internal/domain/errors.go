package domain

import (
	"errors"
	"fmt"
)

// ErrNotFound is returned by repo and service functions when the requested
// resource does not exist in the database.
// Handlers should map this to HTTP 404.
var ErrNotFound = errors.New("not found")

// ErrValidation is returned by service functions when input fails business
// rule validation (e.g. missing destination, end date before start date).
// Handlers should map this to HTTP 422 Unprocessable Entity.
var ErrValidation = errors.New("validation error")

// ErrStorage wraps any I/O failure talking to the document store.
// Handlers should map this to HTTP 503 with a generic retry message.
var ErrStorage = errors.New("storage error")

// ErrEntitlementRequired is returned when a user without premium access or
// consumable credit tries to create a trip.
// Handlers should map this to HTTP 402 Payment Required.
var ErrEntitlementRequired = errors.New("entitlement required")

// ErrUpstream is the sentinel every *UpstreamError unwraps to.
var ErrUpstream = errors.New("upstream error")

// UpstreamKind classifies a failed call to an external collaborator.
type UpstreamKind string

const (
	UpstreamRateLimited  UpstreamKind = "rate_limited"
	UpstreamUnauthorized UpstreamKind = "unauthorized"
	UpstreamUnavailable  UpstreamKind = "unavailable"
)

// UpstreamError describes a failed weather, advice, or billing call.
type UpstreamError struct {
	Service string
	Kind    UpstreamKind
	Err     error
}

func (e *UpstreamError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s: %s", ErrUpstream, e.Service, e.Kind)
	}
	return fmt.Sprintf("%s: %s: %s: %v", ErrUpstream, e.Service, e.Kind, e.Err)
}

// Unwrap exposes both the ErrUpstream sentinel and the underlying cause.
func (e *UpstreamError) Unwrap() []error {
	if e.Err == nil {
		return []error{ErrUpstream}
	}
	return []error{ErrUpstream, e.Err}
}

// UpstreamKindOf returns the kind of the first *UpstreamError in err's chain,
// or UpstreamUnavailable when err carries none.
func UpstreamKindOf(err error) UpstreamKind {
	var ue *UpstreamError
	if errors.As(err, &ue) {
		return ue.Kind
	}
	return UpstreamUnavailable
}
