package usecases

import (
	"context"
	"fmt"
	"time"

	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/ports"
	"github.com/samirrijal/geofence/internal/pkg/metrics"
	"github.com/samirrijal/geofence/internal/pkg/telemetry"
)

// BruteForceSearcher scans the full registry snapshot on every call.
type BruteForceSearcher struct {
	targets  ports.TargetRegistry
	distance DistanceFunc
}

// NewBruteForceSearcher creates a new BruteForceSearcher.
func NewBruteForceSearcher(targets ports.TargetRegistry) *BruteForceSearcher {
	return &BruteForceSearcher{targets: targets, distance: domain.Distance}
}

// FindNearest computes the distance to every target once. The nearest target is
// the running minimum (first seen wins ties) and is only reported when it lies
// within the radius. A zero radius means DefaultRadiusMeters.
func (s *BruteForceSearcher) FindNearest(ctx context.Context, coord domain.Coordinate, radiusMeters float64, limit int) (*domain.NearestResult, error) {
	if err := domain.ValidateCoordinates(coord.Latitude, coord.Longitude); err != nil {
		return nil, err
	}
	radius, err := resolveRadius(radiusMeters)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "BruteForceSearcher.FindNearest")
	defer span.End()
	span.SetAttributes(
		attribute.Float64(telemetry.AttrRadiusMeters, radius),
		attribute.String(telemetry.AttrStrategy, string(ports.StrategyBruteForce)),
	)

	start := time.Now()
	defer func() {
		metrics.ProximitySearchDuration.WithLabelValues(string(ports.StrategyBruteForce)).Observe(time.Since(start).Seconds())
	}()

	snapshot, err := s.targets.List(ctx)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("list targets: %w", err)
	}

	origin := coord.Point()
	result := &domain.NearestResult{
		WithinRadius: []domain.TargetMatch{},
		TotalScanned: len(snapshot),
	}

	var best *domain.TargetMatch
	for i := range snapshot {
		d, err := measure(s.distance, origin, snapshot[i])
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		if best == nil || d < best.DistanceMeters {
			best = &domain.TargetMatch{Target: snapshot[i], DistanceMeters: d}
		}
		if d <= radius {
			result.WithinRadius = append(result.WithinRadius, domain.TargetMatch{Target: snapshot[i], DistanceMeters: d})
		}
	}

	if best != nil && best.DistanceMeters <= radius {
		nearest := best.Target
		result.Nearest = &nearest
	}

	sortMatches(result.WithinRadius)
	result.WithinRadius = truncate(result.WithinRadius, limit)

	metrics.ProximityCandidates.WithLabelValues(string(ports.StrategyBruteForce)).Observe(float64(len(snapshot)))
	span.SetAttributes(attribute.Int(telemetry.AttrCandidates, len(snapshot)))

	return result, nil
}

// Strategy implements ports.ProximitySearcher.
func (s *BruteForceSearcher) Strategy() ports.Strategy { return ports.StrategyBruteForce }

// Search implements ports.ProximitySearcher.
func (s *BruteForceSearcher) Search(ctx context.Context, coord domain.Coordinate, radiusMeters float64, limit int) (*ports.SearchResult, error) {
	res, err := s.FindNearest(ctx, coord, radiusMeters, limit)
	if err != nil {
		return nil, err
	}
	out := &ports.SearchResult{
		Strategy:     ports.StrategyBruteForce,
		WithinRadius: res.WithinRadius,
		Examined:     res.TotalScanned,
	}
	if len(res.WithinRadius) > 0 {
		out.Nearest = &res.WithinRadius[0]
	}
	return out, nil
}
