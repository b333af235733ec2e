package locator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/samirrijal/geofence/internal/core/domain"
)

func TestNext_TransitionTable(t *testing.T) {
	tests := []struct {
		from State
		ev   Event
		want State
	}{
		{StateIdle, EventStart, StateAcquiringPrecise},

		{StateAcquiringPrecise, EventSucceeded, StateResolved},
		{StateAcquiringPrecise, EventPermissionDenied, StateFailed},
		{StateAcquiringPrecise, EventTimedOut, StateAcquiringImprecise},
		{StateAcquiringPrecise, EventUnavailable, StateAcquiringImprecise},

		{StateAcquiringImprecise, EventSucceeded, StateResolved},
		{StateAcquiringImprecise, EventPermissionDenied, StateAcquiringNetwork},
		{StateAcquiringImprecise, EventTimedOut, StateAcquiringNetwork},
		{StateAcquiringImprecise, EventUnavailable, StateAcquiringNetwork},

		{StateAcquiringNetwork, EventSucceeded, StateResolved},
		{StateAcquiringNetwork, EventPermissionDenied, StateFailed},
		{StateAcquiringNetwork, EventTimedOut, StateFailed},
		{StateAcquiringNetwork, EventUnavailable, StateFailed},
	}

	for _, tt := range tests {
		t.Run(fmt.Sprintf("%s/%s", tt.from, tt.ev), func(t *testing.T) {
			got, err := Next(tt.from, tt.ev)
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
			if got != tt.want {
				t.Errorf("expected %s, got %s", tt.want, got)
			}
		})
	}
}

func TestNext_RejectsUndefinedTransitions(t *testing.T) {
	cases := []struct {
		from State
		ev   Event
	}{
		{StateIdle, EventSucceeded},
		{StateAcquiringPrecise, EventStart},
		{StateResolved, EventStart},
		{StateFailed, EventSucceeded},
	}
	for _, c := range cases {
		got, err := Next(c.from, c.ev)
		if !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("%s on %s: expected ErrInvalidTransition, got %v", c.ev, c.from, err)
		}
		if got != c.from {
			t.Errorf("%s on %s: state should not change, got %s", c.ev, c.from, got)
		}
	}
}

func TestState_Terminal(t *testing.T) {
	for _, s := range []State{StateIdle, StateAcquiringPrecise, StateAcquiringImprecise, StateAcquiringNetwork} {
		if s.Terminal() {
			t.Errorf("%s should not be terminal", s)
		}
	}
	if !StateResolved.Terminal() || !StateFailed.Terminal() {
		t.Error("resolved and failed must be terminal")
	}
}

func TestState_Method(t *testing.T) {
	if StateAcquiringPrecise.Method() != domain.MethodPrecise ||
		StateAcquiringImprecise.Method() != domain.MethodImprecise ||
		StateAcquiringNetwork.Method() != domain.MethodNetworkInferred {
		t.Error("unexpected tier method mapping")
	}
}

func TestClassify(t *testing.T) {
	cases := []struct {
		err  error
		want Event
	}{
		{nil, EventSucceeded},
		{domain.ErrGeolocationPermissionDenied, EventPermissionDenied},
		{fmt.Errorf("wrapped: %w", domain.ErrGeolocationTimeout), EventTimedOut},
		{context.DeadlineExceeded, EventTimedOut},
		{domain.ErrGeolocationUnavailable, EventUnavailable},
		{errors.New("gps chip on fire"), EventUnavailable},
	}
	for _, c := range cases {
		if got := Classify(c.err); got != c.want {
			t.Errorf("Classify(%v) = %s, want %s", c.err, got, c.want)
		}
	}
}

func TestUserMessage(t *testing.T) {
	perm := UserMessage(&AcquisitionError{Kind: domain.ErrGeolocationPermissionDenied, Tier: StateAcquiringPrecise})
	timeout := UserMessage(&AcquisitionError{Kind: domain.ErrGeolocationTimeout, Tier: StateAcquiringNetwork})
	unavailable := UserMessage(&AcquisitionError{Kind: domain.ErrGeolocationUnavailable, Tier: StateAcquiringNetwork})

	if perm == timeout || timeout == unavailable || perm == unavailable {
		t.Fatal("each failure kind needs its own message")
	}
	if UserMessage(nil) != "" {
		t.Error("nil error should have no message")
	}
}

func TestAcquisitionError_Is(t *testing.T) {
	cause := errors.New("provider said no")
	err := error(&AcquisitionError{Kind: domain.ErrGeolocationUnavailable, Tier: StateAcquiringNetwork, Err: cause})

	if !errors.Is(err, domain.ErrGeolocationUnavailable) || !errors.Is(err, cause) {
		t.Fatal("expected both the kind and the cause to match")
	}
	var ae *AcquisitionError
	if !errors.As(err, &ae) || ae.Tier != StateAcquiringNetwork {
		t.Fatal("expected errors.As to expose the tier")
	}
}

func TestAcquisitionError_KindPrintedOnce(t *testing.T) {
	cause := fmt.Errorf("%w: no fix within 30ms", domain.ErrGeolocationTimeout)
	err := &AcquisitionError{Kind: domain.ErrGeolocationTimeout, Tier: StateAcquiringImprecise, Err: cause}
	if n := strings.Count(err.Error(), domain.ErrGeolocationTimeout.Error()); n != 1 {
		t.Errorf("kind appears %d times in %q", n, err.Error())
	}

	exhausted := &AcquisitionError{Kind: domain.ErrGeolocationUnavailable, Tier: StateAcquiringNetwork, Err: cause}
	msg := exhausted.Error()
	if !strings.Contains(msg, domain.ErrGeolocationUnavailable.Error()) || !strings.Contains(msg, "no fix within 30ms") {
		t.Errorf("expected both kind and cause in %q", msg)
	}
}
