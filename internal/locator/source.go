package locator

import (
	"context"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// PositionSource is the device positioning API.
type PositionSource interface {
	// CurrentPosition returns a single fix. It should honour ctx cancellation.
	CurrentPosition(ctx context.Context, opts PositionOptions) (domain.Coordinate, error)
	// Watch delivers fixes until the returned handle is cleared.
	Watch(opts PositionOptions, onPosition func(domain.Coordinate), onError func(error)) (WatchHandle, error)
}

// WatchHandle releases a platform watch. After Clear returns the source starts
// no further callbacks. Clear must be safe to call from inside a callback.
type WatchHandle interface {
	Clear()
}

// NetworkSource infers a coarse position from the network.
type NetworkSource interface {
	Locate(ctx context.Context) (domain.Coordinate, error)
}
