package domain

import "errors"

var (
	// ErrInvalidCoordinate is returned for out-of-range, non-finite or unparseable coordinates.
	ErrInvalidCoordinate = errors.New("invalid coordinate")

	// ErrMissingField is returned when a required request field is absent.
	ErrMissingField = errors.New("missing required field")

	// ErrTargetNotFound is returned when the registry cannot resolve a target id.
	ErrTargetNotFound = errors.New("target not found")

	// ErrGeolocationPermissionDenied is returned when the user refused location access.
	ErrGeolocationPermissionDenied = errors.New("geolocation permission denied")

	// ErrGeolocationTimeout is returned when a position was not produced in time.
	ErrGeolocationTimeout = errors.New("geolocation timed out")

	// ErrGeolocationUnavailable is returned when no position source could produce a fix.
	ErrGeolocationUnavailable = errors.New("geolocation unavailable")

	// ErrInternalComputation is returned for unexpected faults while evaluating proximity.
	ErrInternalComputation = errors.New("internal computation error")
)
