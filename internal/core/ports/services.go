package ports

import (
	"context"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// ValidationPublisher hands validation results to downstream game logic.
type ValidationPublisher interface {
	PublishValidation(ctx context.Context, result *domain.ValidationResult) error
}

// EventSubscriber subscribes to proximity events from a message broker.
type EventSubscriber interface {
	SubscribeValidations(ctx context.Context, handler func(ctx context.Context, result *domain.ValidationResult) error) error
	SubscribeTargetChanges(ctx context.Context, handler func(ctx context.Context, targetID string) error) error
}

// CacheService provides read-through caching.
type CacheService interface {
	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, ttlSeconds int) error
	Delete(ctx context.Context, key string) error
}

// Strategy names a proximity search implementation.
type Strategy string

const (
	StrategyBruteForce Strategy = "brute_force"
	StrategyIndexed    Strategy = "indexed"
)

// SearchResult is the strategy-independent view of a proximity search.
type SearchResult struct {
	Strategy     Strategy             `json:"strategy"`
	Nearest      *domain.TargetMatch  `json:"nearest"`
	WithinRadius []domain.TargetMatch `json:"within_radius"`
	// Examined is the number of targets whose distance was computed.
	Examined int `json:"examined"`
}

// ProximitySearcher finds the targets within a radius of a coordinate.
// Every implementation must return the same set of targets for the same registry state.
type ProximitySearcher interface {
	Strategy() Strategy
	Search(ctx context.Context, coord domain.Coordinate, radiusMeters float64, limit int) (*SearchResult, error)
}
