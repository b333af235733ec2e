package usecases

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/ports"
	"github.com/samirrijal/geofence/internal/pkg/logging"
	"github.com/samirrijal/geofence/internal/pkg/metrics"
	"github.com/samirrijal/geofence/internal/pkg/telemetry"
)

// ValidateRequest is the input of a single-target check.
// Pointer fields distinguish "absent" from zero.
type ValidateRequest struct {
	Latitude     *float64 `json:"latitude"`
	Longitude    *float64 `json:"longitude"`
	TargetID     string   `json:"target_id"`
	RadiusMeters *float64 `json:"radius_meters,omitempty"`
}

// ValidationOption customises a ValidationService.
type ValidationOption func(*ValidationService)

// WithDistanceFunc replaces the haversine distance.
func WithDistanceFunc(fn DistanceFunc) ValidationOption {
	return func(s *ValidationService) { s.distance = fn }
}

// WithClock replaces time.Now for EvaluatedAt.
func WithClock(now func() time.Time) ValidationOption {
	return func(s *ValidationService) { s.now = now }
}

// ValidationService decides whether a coordinate is within range of one target.
type ValidationService struct {
	targets   ports.TargetRegistry
	publisher ports.ValidationPublisher
	distance  DistanceFunc
	now       func() time.Time
}

// NewValidationService creates a new ValidationService. publisher may be nil.
func NewValidationService(targets ports.TargetRegistry, publisher ports.ValidationPublisher, opts ...ValidationOption) *ValidationService {
	s := &ValidationService{
		targets:   targets,
		publisher: publisher,
		distance:  domain.Distance,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(s)
	}
	return s
}

// Validate checks req against the registered target.
// Input errors are returned before the registry is consulted.
func (s *ValidationService) Validate(ctx context.Context, req ValidateRequest) (*domain.ValidationResult, error) {
	var missing []string
	if req.Latitude == nil {
		missing = append(missing, "latitude")
	}
	if req.Longitude == nil {
		missing = append(missing, "longitude")
	}
	if strings.TrimSpace(req.TargetID) == "" {
		missing = append(missing, "target_id")
	}
	if len(missing) > 0 {
		return nil, fmt.Errorf("%w: %s", domain.ErrMissingField, strings.Join(missing, ", "))
	}

	if err := domain.ValidateCoordinates(*req.Latitude, *req.Longitude); err != nil {
		return nil, err
	}

	radius := DefaultRadiusMeters
	if req.RadiusMeters != nil {
		radius = *req.RadiusMeters
		if err := domain.ValidateRadius(radius); err != nil {
			return nil, err
		}
	}

	ctx, span := tracer.Start(ctx, "ValidationService.Validate")
	defer span.End()
	span.SetAttributes(
		attribute.String(telemetry.AttrTargetID, req.TargetID),
		attribute.Float64(telemetry.AttrRadiusMeters, radius),
	)

	log := logging.FromContext(ctx).With("target_id", req.TargetID)

	target, err := s.targets.GetByID(ctx, req.TargetID)
	if err != nil {
		if !errors.Is(err, domain.ErrTargetNotFound) {
			log.Error("target lookup failed", "error", err)
			span.SetStatus(codes.Error, err.Error())
			metrics.ProximityValidations.WithLabelValues("error").Inc()
		}
		return nil, fmt.Errorf("lookup target %q: %w", req.TargetID, err)
	}
	if target == nil {
		return nil, fmt.Errorf("lookup target %q: %w", req.TargetID, domain.ErrTargetNotFound)
	}

	origin := domain.GeoPoint{Lat: *req.Latitude, Lon: *req.Longitude}
	result, err := s.evaluate(origin, *target, radius)
	if err != nil {
		log.Error("proximity evaluation failed",
			"error", err,
			"latitude", origin.Lat,
			"longitude", origin.Lon,
			"radius_meters", radius,
		)
		span.SetStatus(codes.Error, err.Error())
		metrics.ProximityValidations.WithLabelValues("error").Inc()
		return nil, err
	}

	span.SetAttributes(attribute.Bool(telemetry.AttrValid, result.Valid))
	if result.Valid {
		metrics.ProximityValidations.WithLabelValues("valid").Inc()
	} else {
		metrics.ProximityValidations.WithLabelValues("invalid").Inc()
	}

	if s.publisher != nil {
		if err := s.publisher.PublishValidation(ctx, result); err != nil {
			log.Warn("failed to publish validation", "error", err)
		}
	}

	return result, nil
}

// evaluate converts panics and non-finite distances into ErrInternalComputation.
func (s *ValidationService) evaluate(origin domain.GeoPoint, target domain.TargetPoint, radius float64) (result *domain.ValidationResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			result = nil
			err = fmt.Errorf("%w: %v", domain.ErrInternalComputation, r)
		}
	}()

	d, err := measure(s.distance, origin, target)
	if err != nil {
		return nil, err
	}

	return &domain.ValidationResult{
		Valid:          d <= radius,
		DistanceMeters: d,
		RadiusMeters:   radius,
		Target:         target,
		EvaluatedAt:    s.now().UTC(),
	}, nil
}
