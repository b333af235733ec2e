package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"sync"

	geohash "github.com/TomiHiltunen/geohash-golang"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/ports"
	"github.com/samirrijal/geofence/internal/pkg/geospatial"
)

const (
	// maxPrecision is the finest geohash level indexed (~153m x 153m cells).
	maxPrecision = 7
	// maxQueryCells bounds how many cells a single query may visit.
	maxQueryCells = 512
)

// Registry is an in-memory TargetRegistry backed by a multi-level geohash index.
// Every target is bucketed under each prefix of its geohash, so a query can pick
// the finest level whose cells cover the search box with few lookups.
type Registry struct {
	mu      sync.RWMutex
	targets map[string]entry
	seq     uint64
	cells   [maxPrecision + 1]map[string]map[string]struct{}
}

var _ ports.TargetRegistry = (*Registry)(nil)

type entry struct {
	target domain.TargetPoint
	hash   string
	seq    uint64
}

// NewRegistry creates a registry holding targets, in the given order.
func NewRegistry(targets ...domain.TargetPoint) (*Registry, error) {
	r := &Registry{targets: make(map[string]entry, len(targets))}
	for p := 1; p <= maxPrecision; p++ {
		r.cells[p] = make(map[string]map[string]struct{})
	}
	for _, t := range targets {
		if err := r.Put(t); err != nil {
			return nil, err
		}
	}
	return r, nil
}

// Put inserts or replaces a target. A replaced target keeps its registry position.
func (r *Registry) Put(t domain.TargetPoint) error {
	if t.ID == "" {
		return fmt.Errorf("%w: target id", domain.ErrMissingField)
	}
	if err := domain.ValidateCoordinates(t.Position.Lat, t.Position.Lon); err != nil {
		return fmt.Errorf("target %s: %w", t.ID, err)
	}

	hash := geohash.Encode(t.Position.Lat, geospatial.NormalizeLon(t.Position.Lon))

	r.mu.Lock()
	defer r.mu.Unlock()

	seq := r.seq
	if old, ok := r.targets[t.ID]; ok {
		r.unindex(t.ID, old.hash)
		seq = old.seq
	} else {
		r.seq++
	}

	r.targets[t.ID] = entry{target: cloneTarget(t), hash: hash, seq: seq}
	for p := 1; p <= maxPrecision; p++ {
		bucket := r.cells[p][hash[:p]]
		if bucket == nil {
			bucket = make(map[string]struct{})
			r.cells[p][hash[:p]] = bucket
		}
		bucket[t.ID] = struct{}{}
	}
	return nil
}

// Remove deletes a target. Removing an unknown id is a no-op.
func (r *Registry) Remove(id string) {
	r.mu.Lock()
	defer r.mu.Unlock()

	old, ok := r.targets[id]
	if !ok {
		return
	}
	r.unindex(id, old.hash)
	delete(r.targets, id)
}

func (r *Registry) unindex(id, hash string) {
	for p := 1; p <= maxPrecision; p++ {
		bucket := r.cells[p][hash[:p]]
		delete(bucket, id)
		if len(bucket) == 0 {
			delete(r.cells[p], hash[:p])
		}
	}
}

// Len returns the number of registered targets.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.targets)
}

// GetByID implements ports.TargetRegistry.
func (r *Registry) GetByID(_ context.Context, id string) (*domain.TargetPoint, error) {
	r.mu.RLock()
	e, ok := r.targets[id]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("target %q: %w", id, domain.ErrTargetNotFound)
	}
	t := cloneTarget(e.target)
	return &t, nil
}

// List implements ports.TargetRegistry. Targets come back in insertion order.
func (r *Registry) List(_ context.Context) ([]domain.TargetPoint, error) {
	r.mu.RLock()
	entries := make([]entry, 0, len(r.targets))
	for _, e := range r.targets {
		entries = append(entries, e)
	}
	r.mu.RUnlock()

	return sortedTargets(entries), nil
}

// FindWithinRadius implements ports.TargetRegistry. It returns every target in
// the geohash cells overlapping the conservative bounding box of the circle.
func (r *Registry) FindWithinRadius(_ context.Context, center domain.GeoPoint, radiusMeters float64) ([]domain.TargetPoint, error) {
	if err := domain.ValidateCoordinates(center.Lat, center.Lon); err != nil {
		return nil, err
	}

	minLat, minLon, maxLat, maxLon := geospatial.BoundingBox(center.Lat, center.Lon, radiusMeters)
	precision := queryPrecision(maxLat-minLat, maxLon-minLon)
	prefixes := coveringCells(minLat, minLon, maxLat, maxLon, precision)

	r.mu.RLock()
	seen := make(map[string]struct{})
	var entries []entry
	for prefix := range prefixes {
		for id := range r.cells[precision][prefix] {
			if _, dup := seen[id]; dup {
				continue
			}
			seen[id] = struct{}{}
			entries = append(entries, r.targets[id])
		}
	}
	r.mu.RUnlock()

	return sortedTargets(entries), nil
}

// cellSize returns the height and width in degrees of a geohash cell.
// Longitude takes the extra bit on odd bit counts.
func cellSize(precision int) (latDeg, lonDeg float64) {
	bits := 5 * precision
	lonBits := (bits + 1) / 2
	latBits := bits / 2
	return 180 / math.Exp2(float64(latBits)), 360 / math.Exp2(float64(lonBits))
}

// queryPrecision picks the finest level whose cell grid over the box stays under maxQueryCells.
func queryPrecision(latSpan, lonSpan float64) int {
	for p := maxPrecision; p > 1; p-- {
		cellLat, cellLon := cellSize(p)
		rows := math.Ceil(latSpan/cellLat) + 1
		cols := math.Ceil(lonSpan/cellLon) + 1
		if rows*cols <= maxQueryCells {
			return p
		}
	}
	return 1
}

// coveringCells returns the geohash prefixes of every cell intersecting the box.
// The box is sampled at half-cell steps with both edges always included, so no
// intersecting cell can be skipped.
func coveringCells(minLat, minLon, maxLat, maxLon float64, precision int) map[string]struct{} {
	cellLat, cellLon := cellSize(precision)
	latStep, lonStep := cellLat/2, cellLon/2

	out := make(map[string]struct{})
	for lat := minLat; ; lat += latStep {
		if lat > maxLat {
			lat = maxLat
		}
		for lon := minLon; ; lon += lonStep {
			if lon > maxLon {
				lon = maxLon
			}
			out[geohash.Encode(lat, geospatial.NormalizeLon(lon))[:precision]] = struct{}{}
			if lon >= maxLon {
				break
			}
		}
		if lat >= maxLat {
			break
		}
	}
	return out
}

func sortedTargets(entries []entry) []domain.TargetPoint {
	sort.Slice(entries, func(i, j int) bool { return entries[i].seq < entries[j].seq })
	out := make([]domain.TargetPoint, len(entries))
	for i, e := range entries {
		out[i] = cloneTarget(e.target)
	}
	return out
}

func cloneTarget(t domain.TargetPoint) domain.TargetPoint {
	if t.Attributes != nil {
		attrs := make(map[string]any, len(t.Attributes))
		for k, v := range t.Attributes {
			attrs[k] = v
		}
		t.Attributes = attrs
	}
	return t
}
