package usecases_test

import (
	"context"
	"fmt"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// --- Mock TargetRegistry ---

type mockRegistry struct {
	getByIDFn          func(ctx context.Context, id string) (*domain.TargetPoint, error)
	listFn             func(ctx context.Context) ([]domain.TargetPoint, error)
	findWithinRadiusFn func(ctx context.Context, center domain.GeoPoint, radius float64) ([]domain.TargetPoint, error)

	getByIDCalls int
	listCalls    int
}

func (m *mockRegistry) GetByID(ctx context.Context, id string) (*domain.TargetPoint, error) {
	m.getByIDCalls++
	if m.getByIDFn != nil {
		return m.getByIDFn(ctx, id)
	}
	return nil, fmt.Errorf("target %q: %w", id, domain.ErrTargetNotFound)
}

func (m *mockRegistry) List(ctx context.Context) ([]domain.TargetPoint, error) {
	m.listCalls++
	if m.listFn != nil {
		return m.listFn(ctx)
	}
	return nil, nil
}

func (m *mockRegistry) FindWithinRadius(ctx context.Context, center domain.GeoPoint, radius float64) ([]domain.TargetPoint, error) {
	if m.findWithinRadiusFn != nil {
		return m.findWithinRadiusFn(ctx, center, radius)
	}
	return nil, nil
}

// staticRegistry serves a fixed slice through the mock.
func staticRegistry(targets ...domain.TargetPoint) *mockRegistry {
	byID := make(map[string]domain.TargetPoint, len(targets))
	for _, t := range targets {
		byID[t.ID] = t
	}
	return &mockRegistry{
		getByIDFn: func(ctx context.Context, id string) (*domain.TargetPoint, error) {
			t, ok := byID[id]
			if !ok {
				return nil, fmt.Errorf("target %q: %w", id, domain.ErrTargetNotFound)
			}
			return &t, nil
		},
		listFn: func(ctx context.Context) ([]domain.TargetPoint, error) {
			return targets, nil
		},
		findWithinRadiusFn: func(ctx context.Context, center domain.GeoPoint, radius float64) ([]domain.TargetPoint, error) {
			return targets, nil
		},
	}
}

// --- Mock ValidationPublisher ---

type mockPublisher struct {
	published []*domain.ValidationResult
	err       error
}

func (m *mockPublisher) PublishValidation(ctx context.Context, result *domain.ValidationResult) error {
	m.published = append(m.published, result)
	return m.err
}

func ptr(f float64) *float64 { return &f }

func target(id string, lat, lon float64) domain.TargetPoint {
	return domain.TargetPoint{ID: id, Name: "Target " + id, Position: domain.GeoPoint{Lat: lat, Lon: lon}}
}
