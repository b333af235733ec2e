package locator

import (
	"context"
	"errors"
	"fmt"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// State is a step of the tiered acquisition.
type State int

const (
	StateIdle State = iota
	StateAcquiringPrecise
	StateAcquiringImprecise
	StateAcquiringNetwork
	StateResolved
	StateFailed
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateAcquiringPrecise:
		return "acquiring_precise"
	case StateAcquiringImprecise:
		return "acquiring_imprecise"
	case StateAcquiringNetwork:
		return "acquiring_network"
	case StateResolved:
		return "resolved"
	case StateFailed:
		return "failed"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// Terminal reports whether no further transitions are possible.
func (s State) Terminal() bool {
	return s == StateResolved || s == StateFailed
}

// Method is the acquisition method a fix obtained in s is tagged with.
func (s State) Method() domain.AcquisitionMethod {
	switch s {
	case StateAcquiringPrecise:
		return domain.MethodPrecise
	case StateAcquiringImprecise:
		return domain.MethodImprecise
	case StateAcquiringNetwork:
		return domain.MethodNetworkInferred
	default:
		return ""
	}
}

// Event is the outcome of one acquisition attempt.
type Event int

const (
	EventStart Event = iota
	EventSucceeded
	EventPermissionDenied
	EventTimedOut
	EventUnavailable
)

func (e Event) String() string {
	switch e {
	case EventStart:
		return "start"
	case EventSucceeded:
		return "succeeded"
	case EventPermissionDenied:
		return "permission_denied"
	case EventTimedOut:
		return "timed_out"
	case EventUnavailable:
		return "unavailable"
	default:
		return fmt.Sprintf("event(%d)", int(e))
	}
}

// transitions is the complete acquisition state machine. A permission denial on
// the precise tier is final; the imprecise tier falls through to the network on
// any failure.
var transitions = map[State]map[Event]State{
	StateIdle: {
		EventStart: StateAcquiringPrecise,
	},
	StateAcquiringPrecise: {
		EventSucceeded:        StateResolved,
		EventPermissionDenied: StateFailed,
		EventTimedOut:         StateAcquiringImprecise,
		EventUnavailable:      StateAcquiringImprecise,
	},
	StateAcquiringImprecise: {
		EventSucceeded:        StateResolved,
		EventPermissionDenied: StateAcquiringNetwork,
		EventTimedOut:         StateAcquiringNetwork,
		EventUnavailable:      StateAcquiringNetwork,
	},
	StateAcquiringNetwork: {
		EventSucceeded:        StateResolved,
		EventPermissionDenied: StateFailed,
		EventTimedOut:         StateFailed,
		EventUnavailable:      StateFailed,
	},
}

// ErrInvalidTransition is returned by Next for an event the state does not accept.
var ErrInvalidTransition = errors.New("invalid acquisition transition")

// Next returns the state reached from s on e.
func Next(s State, e Event) (State, error) {
	if to, ok := transitions[s][e]; ok {
		return to, nil
	}
	return s, fmt.Errorf("%w: %s on %s", ErrInvalidTransition, e, s)
}

// Classify maps an acquisition error to its event. Deadlines count as timeouts
// and anything unrecognised as unavailable.
func Classify(err error) Event {
	switch {
	case err == nil:
		return EventSucceeded
	case errors.Is(err, domain.ErrGeolocationPermissionDenied):
		return EventPermissionDenied
	case errors.Is(err, domain.ErrGeolocationTimeout), errors.Is(err, context.DeadlineExceeded):
		return EventTimedOut
	default:
		return EventUnavailable
	}
}
