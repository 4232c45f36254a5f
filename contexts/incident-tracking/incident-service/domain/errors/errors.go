package errors

import "errors"

var (
	ErrIncidentNotFound     = errors.New("incident not found")
	ErrIncidentExists       = errors.New("incident already exists")
	ErrInvalidIncidentInput = errors.New("invalid incident input")

	// ErrStoreTimeout is surfaced distinctly: a timed-out write does not
	// confirm failure, so callers decide whether to retry the command.
	ErrStoreTimeout     = errors.New("incident store timeout")
	ErrStoreUnavailable = errors.New("incident store unavailable")

	ErrUnauthorized = errors.New("unauthorized")
	ErrForbidden    = errors.New("missing required role")
)
