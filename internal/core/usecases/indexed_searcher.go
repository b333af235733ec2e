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

// IndexedSearcher delegates candidate selection to the registry's spatial
// index and re-verifies every candidate with the exact distance.
type IndexedSearcher struct {
	targets  ports.TargetRegistry
	distance DistanceFunc
}

// NewIndexedSearcher creates a new IndexedSearcher.
func NewIndexedSearcher(targets ports.TargetRegistry) *IndexedSearcher {
	return &IndexedSearcher{targets: targets, distance: domain.Distance}
}

// QueryIndexed returns the targets within radiusMeters of coord, sorted by distance.
// A zero radius means DefaultRadiusMeters.
func (s *IndexedSearcher) QueryIndexed(ctx context.Context, coord domain.Coordinate, radiusMeters float64) (*domain.IndexedResult, error) {
	if err := domain.ValidateCoordinates(coord.Latitude, coord.Longitude); err != nil {
		return nil, err
	}
	radius, err := resolveRadius(radiusMeters)
	if err != nil {
		return nil, err
	}

	ctx, span := tracer.Start(ctx, "IndexedSearcher.QueryIndexed")
	defer span.End()
	span.SetAttributes(
		attribute.Float64(telemetry.AttrRadiusMeters, radius),
		attribute.String(telemetry.AttrStrategy, string(ports.StrategyIndexed)),
	)

	start := time.Now()
	defer func() {
		metrics.ProximitySearchDuration.WithLabelValues(string(ports.StrategyIndexed)).Observe(time.Since(start).Seconds())
	}()

	origin := coord.Point()
	candidates, err := s.targets.FindWithinRadius(ctx, origin, radius)
	if err != nil {
		span.SetStatus(codes.Error, err.Error())
		return nil, fmt.Errorf("find candidates: %w", err)
	}

	result := &domain.IndexedResult{
		WithinRadius:    []domain.TargetMatch{},
		TotalCandidates: len(candidates),
	}
	for i := range candidates {
		d, err := measure(s.distance, origin, candidates[i])
		if err != nil {
			span.SetStatus(codes.Error, err.Error())
			return nil, err
		}
		// the prefilter is approximate
		if d <= radius {
			result.WithinRadius = append(result.WithinRadius, domain.TargetMatch{Target: candidates[i], DistanceMeters: d})
		}
	}
	sortMatches(result.WithinRadius)

	metrics.ProximityCandidates.WithLabelValues(string(ports.StrategyIndexed)).Observe(float64(len(candidates)))
	span.SetAttributes(attribute.Int(telemetry.AttrCandidates, len(candidates)))

	return result, nil
}

// Strategy implements ports.ProximitySearcher.
func (s *IndexedSearcher) Strategy() ports.Strategy { return ports.StrategyIndexed }

// Search implements ports.ProximitySearcher.
func (s *IndexedSearcher) Search(ctx context.Context, coord domain.Coordinate, radiusMeters float64, limit int) (*ports.SearchResult, error) {
	res, err := s.QueryIndexed(ctx, coord, radiusMeters)
	if err != nil {
		return nil, err
	}
	out := &ports.SearchResult{
		Strategy:     ports.StrategyIndexed,
		WithinRadius: truncate(res.WithinRadius, limit),
		Examined:     res.TotalCandidates,
	}
	if len(out.WithinRadius) > 0 {
		out.Nearest = &out.WithinRadius[0]
	}
	return out, nil
}
