package ports

import (
	"context"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// TargetRegistry serves read-only snapshots of registered targets.
type TargetRegistry interface {
	// GetByID returns domain.ErrTargetNotFound (possibly wrapped) when the id is unknown.
	GetByID(ctx context.Context, id string) (*domain.TargetPoint, error)
	// List returns every target, in a stable registry order.
	List(ctx context.Context) ([]domain.TargetPoint, error)
	// FindWithinRadius is an approximate prefilter. It may return targets outside
	// the radius but must not omit any target within it.
	FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusMeters float64) ([]domain.TargetPoint, error)
}
