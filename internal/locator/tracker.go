package locator

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"

	"github.com/google/uuid"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// SessionState is the lifecycle of a tracking session.
type SessionState int

const (
	SessionIdle SessionState = iota
	SessionWatching
	SessionStopped
)

func (s SessionState) String() string {
	switch s {
	case SessionIdle:
		return "idle"
	case SessionWatching:
		return "watching"
	case SessionStopped:
		return "stopped"
	default:
		return fmt.Sprintf("session_state(%d)", int(s))
	}
}

// Session owns one platform watch. It is released exactly once, either by Stop,
// by a non-timeout platform error, or by its Tracker starting another session.
type Session struct {
	ID string

	tier     State
	onUpdate func(domain.Coordinate)
	onError  func(error)
	logger   *slog.Logger

	mu      sync.Mutex
	state   SessionState
	handle  WatchHandle
	last    domain.Coordinate
	hasLast bool
}

// State returns the current session state.
func (s *Session) State() SessionState {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// LastKnown returns the most recent fix delivered to the session.
func (s *Session) LastKnown() (domain.Coordinate, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.last, s.hasLast
}

// Stop releases the platform watch before returning. Calling Stop more than
// once, or on a session that already ended, does nothing.
func (s *Session) Stop() {
	s.mu.Lock()
	if s.state == SessionStopped {
		s.mu.Unlock()
		return
	}
	s.state = SessionStopped
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h != nil {
		h.Clear()
	}
}

func (s *Session) deliver(c domain.Coordinate) {
	if err := c.Validate(); err != nil {
		s.logger.Warn("dropping invalid position update", "session_id", s.ID, "error", err)
		return
	}
	c.Method = s.tier.Method()

	s.mu.Lock()
	if s.state != SessionWatching {
		s.mu.Unlock()
		return
	}
	s.last = c
	s.hasLast = true
	s.mu.Unlock()

	if s.onUpdate != nil {
		s.onUpdate(c)
	}
}

// fail reports err. A timeout leaves the session running; anything else ends it
// before the error is reported.
func (s *Session) fail(err error) {
	ev := Classify(err)
	wrapped := &AcquisitionError{Kind: kindFor(ev), Tier: s.tier, Err: err}

	if ev == EventTimedOut {
		if s.State() == SessionWatching && s.onError != nil {
			s.onError(wrapped)
		}
		return
	}

	s.mu.Lock()
	if s.state == SessionStopped {
		s.mu.Unlock()
		return
	}
	s.state = SessionStopped
	h := s.handle
	s.handle = nil
	s.mu.Unlock()

	if h != nil {
		h.Clear()
	}
	s.logger.Info("tracking session ended by platform error", "session_id", s.ID, "error", err)
	if s.onError != nil {
		s.onError(wrapped)
	}
}

// Tracker hands out tracking sessions over one PositionSource.
// At most one session is active; starting a new one stops the previous one.
type Tracker struct {
	source PositionSource
	logger *slog.Logger

	mu     sync.Mutex
	active *Session
}

// NewTracker creates a new Tracker. A nil logger uses slog.Default().
func NewTracker(source PositionSource, logger *slog.Logger) *Tracker {
	if logger == nil {
		logger = slog.Default()
	}
	return &Tracker{source: source, logger: logger}
}

// Start stops any active session and begins watching with opts.
func (t *Tracker) Start(opts PositionOptions, onUpdate func(domain.Coordinate), onError func(error)) (*Session, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	if t.active != nil {
		t.active.Stop()
		t.active = nil
	}

	tier := StateAcquiringImprecise
	if opts.HighAccuracy {
		tier = StateAcquiringPrecise
	}

	if t.source == nil {
		return nil, &AcquisitionError{Kind: domain.ErrGeolocationUnavailable, Tier: tier, Err: errors.New("no position source")}
	}

	s := &Session{
		ID:       uuid.NewString(),
		tier:     tier,
		onUpdate: onUpdate,
		onError:  onError,
		logger:   t.logger,
		state:    SessionIdle,
	}
	s.state = SessionWatching

	handle, err := t.source.Watch(opts, s.deliver, s.fail)
	if err != nil {
		s.mu.Lock()
		s.state = SessionStopped
		s.mu.Unlock()
		return nil, &AcquisitionError{Kind: kindFor(Classify(err)), Tier: tier, Err: err}
	}

	s.mu.Lock()
	if s.state == SessionStopped {
		// a fatal error arrived before Watch returned
		s.mu.Unlock()
		handle.Clear()
		return s, nil
	}
	s.handle = handle
	s.mu.Unlock()

	t.active = s
	t.logger.Debug("tracking session started", "session_id", s.ID, "high_accuracy", opts.HighAccuracy)
	return s, nil
}

// Active returns the running session, or nil.
func (t *Tracker) Active() *Session {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil && t.active.State() != SessionWatching {
		t.active = nil
	}
	return t.active
}

// Close stops the active session, if any.
func (t *Tracker) Close() {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.active != nil {
		t.active.Stop()
		t.active = nil
	}
}
