package locator

import (
	"errors"
	"fmt"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// AcquisitionError is the terminal failure of an acquisition or a tracking session.
// Kind is one of the domain geolocation sentinels and matches with errors.Is.
type AcquisitionError struct {
	Kind error
	Tier State
	Err  error
}

func (e *AcquisitionError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %v", e.Tier, e.Kind)
	}
	if errors.Is(e.Err, e.Kind) {
		return fmt.Sprintf("%s: %v", e.Tier, e.Err)
	}
	return fmt.Sprintf("%s: %v: %v", e.Tier, e.Kind, e.Err)
}

func (e *AcquisitionError) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Kind}
	}
	return []error{e.Kind, e.Err}
}

func kindFor(ev Event) error {
	switch ev {
	case EventPermissionDenied:
		return domain.ErrGeolocationPermissionDenied
	case EventTimedOut:
		return domain.ErrGeolocationTimeout
	default:
		return domain.ErrGeolocationUnavailable
	}
}

// terminalKind is the sentinel UserMessage keys on. For an AcquisitionError
// only Kind counts, except that an exhausted fallback caused by a timeout is
// reported as a timeout.
func terminalKind(err error) error {
	var ae *AcquisitionError
	if !errors.As(err, &ae) {
		return err
	}
	if errors.Is(ae.Kind, domain.ErrGeolocationUnavailable) && errors.Is(ae.Err, domain.ErrGeolocationTimeout) {
		return domain.ErrGeolocationTimeout
	}
	return ae.Kind
}

// UserMessage returns the text to show a user for an acquisition failure.
func UserMessage(err error) string {
	if err == nil {
		return ""
	}
	kind := terminalKind(err)
	switch {
	case errors.Is(kind, domain.ErrGeolocationPermissionDenied):
		return "Location access was denied. Enable location permission for this app in your device settings and try again."
	case errors.Is(kind, domain.ErrGeolocationTimeout):
		return "Getting your location took too long. Move somewhere with a clearer view of the sky and try again."
	case errors.Is(kind, domain.ErrGeolocationUnavailable):
		return "Your location is currently unavailable. Check that location services are on and try again."
	default:
		return "Something went wrong while getting your location. Please try again."
	}
}
