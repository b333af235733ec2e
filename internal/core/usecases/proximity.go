package usecases

import (
	"fmt"
	"math"
	"sort"

	"go.opentelemetry.io/otel"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// DefaultRadiusMeters is used when a caller does not supply a radius.
const DefaultRadiusMeters = 100.0

var tracer = otel.Tracer("github.com/samirrijal/geofence/internal/core/usecases")

// DistanceFunc computes the distance in meters between two points.
type DistanceFunc func(a, b domain.GeoPoint) float64

// resolveRadius maps 0 to the default and rejects anything else that is not a positive finite number.
func resolveRadius(radiusMeters float64) (float64, error) {
	if radiusMeters == 0 {
		return DefaultRadiusMeters, nil
	}
	if err := domain.ValidateRadius(radiusMeters); err != nil {
		return 0, err
	}
	return radiusMeters, nil
}

// measure returns the distance from origin to target, failing on a non-finite result.
func measure(distance DistanceFunc, origin domain.GeoPoint, target domain.TargetPoint) (float64, error) {
	d := distance(origin, target.Position)
	if math.IsNaN(d) || math.IsInf(d, 0) {
		return 0, fmt.Errorf("%w: distance to target %s is not finite", domain.ErrInternalComputation, target.ID)
	}
	return d, nil
}

// sortMatches orders matches by ascending distance; ties keep registry order.
func sortMatches(matches []domain.TargetMatch) {
	sort.SliceStable(matches, func(i, j int) bool {
		return matches[i].DistanceMeters < matches[j].DistanceMeters
	})
}

func truncate(matches []domain.TargetMatch, limit int) []domain.TargetMatch {
	if limit > 0 && len(matches) > limit {
		return matches[:limit]
	}
	return matches
}
