package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// Option customises an Acquirer.
type Option func(*Acquirer)

// WithLogger sets the logger used for tier fallbacks and plausibility decisions.
func WithLogger(l *slog.Logger) Option {
	return func(a *Acquirer) { a.logger = l }
}

// WithTransitionObserver registers fn to be called on every state change.
func WithTransitionObserver(fn func(from State, ev Event, to State)) Option {
	return func(a *Acquirer) { a.observe = fn }
}

// WithClock replaces time.Now for fixes that arrive without a capture time.
func WithClock(now func() time.Time) Option {
	return func(a *Acquirer) { a.now = now }
}

// Acquirer runs the precise, imprecise, network fallback chain.
// Either source may be nil, in which case its tiers report unavailable.
type Acquirer struct {
	position PositionSource
	network  NetworkSource
	cfg      Config
	logger   *slog.Logger
	observe  func(from State, ev Event, to State)
	now      func() time.Time
}

// NewAcquirer creates a new Acquirer.
func NewAcquirer(position PositionSource, network NetworkSource, cfg Config, opts ...Option) *Acquirer {
	a := &Acquirer{
		position: position,
		network:  network,
		cfg:      cfg,
		logger:   slog.Default(),
		now:      time.Now,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a
}

// Acquire walks the state machine until it resolves a fix or fails.
// Failures are returned as *AcquisitionError: PermissionDenied when the precise
// tier is refused, Unavailable once the network tier fails too. Cancellation of
// ctx is returned as is.
func (a *Acquirer) Acquire(ctx context.Context) (domain.Coordinate, error) {
	state, err := a.step(StateIdle, EventStart)
	if err != nil {
		return domain.Coordinate{}, err
	}

	for {
		fix, attemptErr := a.attempt(ctx, state)
		if attemptErr != nil && ctx.Err() != nil {
			return domain.Coordinate{}, ctx.Err()
		}

		ev := Classify(attemptErr)
		if ev == EventSucceeded && state == StateAcquiringPrecise && !a.plausible(fix) {
			fix = a.resolveImplausible(ctx, fix)
		}

		next, err := a.step(state, ev)
		if err != nil {
			return domain.Coordinate{}, err
		}

		switch next {
		case StateResolved:
			return fix, nil
		case StateFailed:
			kind := kindFor(ev)
			if state == StateAcquiringNetwork {
				// every tier is exhausted; the network event is only the cause
				kind = domain.ErrGeolocationUnavailable
			}
			return domain.Coordinate{}, &AcquisitionError{Kind: kind, Tier: state, Err: attemptErr}
		}

		a.logger.Debug("location tier failed, falling back",
			"tier", state.String(),
			"next", next.String(),
			"error", attemptErr,
		)
		state = next
	}
}

func (a *Acquirer) step(from State, ev Event) (State, error) {
	to, err := Next(from, ev)
	if err != nil {
		return from, err
	}
	if a.observe != nil {
		a.observe(from, ev, to)
	}
	return to, nil
}

type outcome struct {
	fix domain.Coordinate
	err error
}

// attempt runs one tier under its own deadline. A source that ignores ctx is
// abandoned when the deadline passes.
func (a *Acquirer) attempt(ctx context.Context, state State) (domain.Coordinate, error) {
	opts := a.cfg.options(state)

	var fetch func(context.Context) (domain.Coordinate, error)
	switch state {
	case StateAcquiringNetwork:
		if a.network == nil {
			return domain.Coordinate{}, fmt.Errorf("%w: no network source", domain.ErrGeolocationUnavailable)
		}
		fetch = a.network.Locate
	default:
		if a.position == nil {
			return domain.Coordinate{}, fmt.Errorf("%w: no position source", domain.ErrGeolocationUnavailable)
		}
		fetch = func(ctx context.Context) (domain.Coordinate, error) {
			return a.position.CurrentPosition(ctx, opts)
		}
	}

	var (
		tctx   context.Context
		cancel context.CancelFunc
	)
	if opts.Timeout > 0 {
		tctx, cancel = context.WithTimeout(ctx, opts.Timeout)
	} else {
		tctx, cancel = context.WithCancel(ctx)
	}
	defer cancel()

	done := make(chan outcome, 1)
	go func() {
		fix, err := fetch(tctx)
		done <- outcome{fix: fix, err: err}
	}()

	select {
	case o := <-done:
		if o.err != nil {
			if errors.Is(o.err, context.DeadlineExceeded) && ctx.Err() == nil {
				return domain.Coordinate{}, fmt.Errorf("%w: no fix within %s", domain.ErrGeolocationTimeout, opts.Timeout)
			}
			return domain.Coordinate{}, o.err
		}
		if err := o.fix.Validate(); err != nil {
			return domain.Coordinate{}, fmt.Errorf("%w: source returned %v", domain.ErrGeolocationUnavailable, err)
		}
		fix := o.fix
		fix.Method = state.Method()
		if fix.CapturedAt.IsZero() {
			fix.CapturedAt = a.now().UTC()
		}
		return fix, nil
	case <-tctx.Done():
		if ctx.Err() != nil {
			return domain.Coordinate{}, ctx.Err()
		}
		return domain.Coordinate{}, fmt.Errorf("%w: no fix within %s", domain.ErrGeolocationTimeout, opts.Timeout)
	}
}

func (a *Acquirer) plausible(fix domain.Coordinate) bool {
	return a.cfg.Region.IsZero() || a.cfg.Region.Contains(fix.Point())
}

type candidate struct {
	fix  domain.Coordinate
	err  error
	tier State
}

// better reports whether c should replace cur when both are plausible.
func (c candidate) better(cur candidate) bool {
	if c.fix.PrecisionMeters != cur.fix.PrecisionMeters {
		return c.fix.PrecisionMeters < cur.fix.PrecisionMeters
	}
	return c.tier == StateAcquiringPrecise && cur.tier != StateAcquiringPrecise
}

// resolveImplausible races a fresh precise fix against a network-inferred one.
// The first plausible result wins and the other attempt is cancelled. If the
// loser has already delivered a plausible fix too, the more precise of the two
// is kept, precise winning on equal precision. With no plausible result the
// original fix is returned.
func (a *Acquirer) resolveImplausible(ctx context.Context, original domain.Coordinate) domain.Coordinate {
	raceCtx, cancel := context.WithCancel(ctx)
	defer cancel()

	racers := []State{StateAcquiringPrecise, StateAcquiringNetwork}
	results := make(chan candidate, len(racers))
	for _, tier := range racers {
		go func(tier State) {
			fix, err := a.attempt(raceCtx, tier)
			results <- candidate{fix: fix, err: err, tier: tier}
		}(tier)
	}

	log := a.logger.With(
		"original_latitude", original.Latitude,
		"original_longitude", original.Longitude,
	)

	for pending := len(racers); pending > 0; {
		c := <-results
		pending--
		if c.err != nil || !a.plausible(c.fix) {
			continue
		}

		best := c
		if pending > 0 {
			select {
			case other := <-results:
				if other.err == nil && a.plausible(other.fix) && other.better(best) {
					best = other
				}
			default:
			}
		}

		log.Info("replaced out-of-region precise fix",
			"method", string(best.fix.Method),
			"precision_meters", best.fix.PrecisionMeters,
		)
		return best.fix
	}

	log.Warn("no plausible fix found, keeping out-of-region precise fix")
	return original
}
