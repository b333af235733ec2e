package valkey

import (
	"context"
	"encoding/json"
	"log/slog"
	"maps"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/ports"
	"github.com/samirrijal/geofence/internal/pkg/logging"
	"github.com/samirrijal/geofence/internal/pkg/metrics"
)

const targetKeyPrefix = "targets:id:"

// loadTimeout bounds a shared registry load, which outlives the caller that started it.
const loadTimeout = 5 * time.Second

// TargetKey is the cache key of a single target snapshot.
func TargetKey(id string) string {
	return targetKeyPrefix + id
}

// CachedRegistry is a read-through cache in front of a ports.TargetRegistry.
//
// Only GetByID is cached. List and FindWithinRadius always reach the
// underlying registry so searches see targets that exist at query time.
// Not-found results are never cached.
type CachedRegistry struct {
	next  ports.TargetRegistry
	cache ports.CacheService
	ttl   time.Duration
	sf    singleflight.Group
}

var _ ports.TargetRegistry = (*CachedRegistry)(nil)

// NewCachedRegistry wraps next. A nil cache disables caching.
func NewCachedRegistry(next ports.TargetRegistry, cache ports.CacheService, ttl time.Duration) *CachedRegistry {
	if ttl < time.Second {
		ttl = time.Second
	}
	return &CachedRegistry{next: next, cache: cache, ttl: ttl}
}

func (r *CachedRegistry) GetByID(ctx context.Context, id string) (*domain.TargetPoint, error) {
	if r.cache == nil {
		return r.next.GetByID(ctx, id)
	}

	key := TargetKey(id)
	if data, err := r.cache.Get(ctx, key); err == nil {
		var t domain.TargetPoint
		if err := json.Unmarshal(data, &t); err == nil {
			metrics.CacheHits.WithLabelValues("target_by_id").Inc()
			return &t, nil
		}
		logging.FromContext(ctx).Warn("dropping undecodable cached target", slog.String("key", key))
		_ = r.cache.Delete(ctx, key)
	}
	metrics.CacheMisses.WithLabelValues("target_by_id").Inc()

	// the load is shared by every waiter, so it must not die with the first caller
	ch := r.sf.DoChan(key, func() (any, error) {
		lctx, cancel := context.WithTimeout(context.WithoutCancel(ctx), loadTimeout)
		defer cancel()

		t, err := r.next.GetByID(lctx, id)
		if err != nil {
			return nil, err
		}
		if t == nil {
			return nil, nil
		}
		if data, err := json.Marshal(t); err == nil {
			if err := r.cache.Set(lctx, key, data, int(r.ttl/time.Second)); err != nil {
				logging.FromContext(ctx).Warn("cache set failed", slog.String("key", key), slog.Any("error", err))
			}
		}
		return t, nil
	})

	var res singleflight.Result
	select {
	case res = <-ch:
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	if res.Err != nil {
		return nil, res.Err
	}
	t, _ := res.Val.(*domain.TargetPoint)
	if t == nil {
		return nil, nil
	}
	return copyTarget(t), nil
}

// copyTarget gives each caller its own snapshot, attributes included.
func copyTarget(t *domain.TargetPoint) *domain.TargetPoint {
	cp := *t
	cp.Attributes = maps.Clone(t.Attributes)
	return &cp
}

func (r *CachedRegistry) List(ctx context.Context) ([]domain.TargetPoint, error) {
	return r.next.List(ctx)
}

func (r *CachedRegistry) FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusMeters float64) ([]domain.TargetPoint, error) {
	return r.next.FindWithinRadius(ctx, center, radiusMeters)
}

// Invalidate drops the cached snapshot of a target.
func (r *CachedRegistry) Invalidate(ctx context.Context, id string) error {
	if r.cache == nil {
		return nil
	}
	r.sf.Forget(TargetKey(id))
	return r.cache.Delete(ctx, TargetKey(id))
}
