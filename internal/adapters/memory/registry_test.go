package memory

import (
	"context"
	"errors"
	"math/rand"
	"sort"
	"testing"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/pkg/geospatial"
)

func mustRegistry(t *testing.T, targets ...domain.TargetPoint) *Registry {
	t.Helper()
	r, err := NewRegistry(targets...)
	if err != nil {
		t.Fatalf("NewRegistry: %v", err)
	}
	return r
}

func TestRegistry_GetByID(t *testing.T) {
	r := mustRegistry(t, domain.TargetPoint{ID: "a", Name: "Alpha", Position: domain.GeoPoint{Lat: 1, Lon: 1}})

	got, err := r.GetByID(context.Background(), "a")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if got.Name != "Alpha" {
		t.Errorf("expected Alpha, got %s", got.Name)
	}

	_, err = r.GetByID(context.Background(), "missing")
	if !errors.Is(err, domain.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestRegistry_PutRejectsInvalid(t *testing.T) {
	r := mustRegistry(t)
	if err := r.Put(domain.TargetPoint{ID: "x", Position: domain.GeoPoint{Lat: 95}}); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
	}
	if err := r.Put(domain.TargetPoint{Position: domain.GeoPoint{Lat: 1}}); !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestRegistry_ListKeepsInsertionOrder(t *testing.T) {
	r := mustRegistry(t,
		domain.TargetPoint{ID: "c", Position: domain.GeoPoint{Lat: 3, Lon: 3}},
		domain.TargetPoint{ID: "a", Position: domain.GeoPoint{Lat: 1, Lon: 1}},
		domain.TargetPoint{ID: "b", Position: domain.GeoPoint{Lat: 2, Lon: 2}},
	)
	// moving a target keeps its position in the order
	if err := r.Put(domain.TargetPoint{ID: "c", Position: domain.GeoPoint{Lat: -3, Lon: -3}}); err != nil {
		t.Fatal(err)
	}
	r.Remove("a")

	list, _ := r.List(context.Background())
	if len(list) != 2 || list[0].ID != "c" || list[1].ID != "b" {
		t.Fatalf("unexpected order: %+v", list)
	}
	if list[0].Position.Lat != -3 {
		t.Errorf("expected moved position, got %+v", list[0].Position)
	}
}

func TestRegistry_SnapshotsAreCopies(t *testing.T) {
	r := mustRegistry(t, domain.TargetPoint{ID: "a", Attributes: map[string]any{"reward": 10}})

	got, _ := r.GetByID(context.Background(), "a")
	got.Attributes["reward"] = 99

	again, _ := r.GetByID(context.Background(), "a")
	if again.Attributes["reward"] != 10 {
		t.Fatalf("registry state was mutated through a snapshot")
	}
}

func TestRegistry_FindWithinRadius_MovedTarget(t *testing.T) {
	r := mustRegistry(t, domain.TargetPoint{ID: "a", Position: domain.GeoPoint{Lat: 10, Lon: 10}})
	if err := r.Put(domain.TargetPoint{ID: "a", Position: domain.GeoPoint{Lat: -10, Lon: -10}}); err != nil {
		t.Fatal(err)
	}

	got, _ := r.FindWithinRadius(context.Background(), domain.GeoPoint{Lat: 10, Lon: 10}, 1000)
	if len(got) != 0 {
		t.Fatalf("stale index entry returned: %+v", got)
	}
	got, _ = r.FindWithinRadius(context.Background(), domain.GeoPoint{Lat: -10, Lon: -10}, 1000)
	if len(got) != 1 {
		t.Fatalf("expected moved target, got %+v", got)
	}
}

// No target within the radius may be missing from the candidates.
func TestRegistry_FindWithinRadius_NoFalseNegatives(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	type region struct{ lat, lon, spread float64 }
	regions := []region{
		{-8.06, -34.87, 0.05}, // city scale
		{43.26, -2.93, 0.5},   // metro scale
		{0, 179.99, 0.05},     // antimeridian
		{89.95, 0, 0.1},       // near the pole
		{0, 0, 60},            // continental
		{-89.9, -120, 0.2},    // south pole
	}
	radii := []float64{1, 50, 100, 250, 1000, 15000, 250000, 3000000}

	for _, reg := range regions {
		var targets []domain.TargetPoint
		for i := 0; i < 200; i++ {
			lat := reg.lat + (rng.Float64()*2-1)*reg.spread
			if lat > 90 {
				lat = 90
			}
			if lat < -90 {
				lat = -90
			}
			lon := geospatial.NormalizeLon(reg.lon + (rng.Float64()*2-1)*reg.spread)
			targets = append(targets, domain.TargetPoint{ID: randID(rng), Position: domain.GeoPoint{Lat: lat, Lon: lon}})
		}
		r := mustRegistry(t, targets...)

		for q := 0; q < 10; q++ {
			center := targets[rng.Intn(len(targets))].Position
			for _, radius := range radii {
				candidates, err := r.FindWithinRadius(context.Background(), center, radius)
				if err != nil {
					t.Fatalf("FindWithinRadius: %v", err)
				}
				got := map[string]bool{}
				for _, c := range candidates {
					got[c.ID] = true
				}
				for _, tp := range targets {
					if domain.Distance(center, tp.Position) <= radius && !got[tp.ID] {
						t.Fatalf("target %s at %.1fm missing for center %+v radius %v", tp.ID, domain.Distance(center, tp.Position), center, radius)
					}
				}
			}
		}
	}
}

func TestRegistry_FindWithinRadius_ExactBoundary(t *testing.T) {
	center := domain.GeoPoint{Lat: -8.0631, Lon: -34.8711}
	edge := domain.GeoPoint{Lat: -8.0631, Lon: -34.8711 + 0.00091}
	r := mustRegistry(t, domain.TargetPoint{ID: "edge", Position: edge})

	d := domain.Distance(center, edge)
	got, _ := r.FindWithinRadius(context.Background(), center, d)
	if len(got) != 1 {
		t.Fatalf("target exactly on the radius must be a candidate")
	}
}

func TestCoveringCells_IncludesEdges(t *testing.T) {
	cells := coveringCells(10, 20, 10.5, 20.5, 5)
	ids := make([]string, 0, len(cells))
	for c := range cells {
		ids = append(ids, c)
		if len(c) != 5 {
			t.Fatalf("expected precision 5 prefixes, got %q", c)
		}
	}
	sort.Strings(ids)
	if len(ids) < 4 {
		t.Fatalf("expected several cells for a half-degree box, got %v", ids)
	}
}

func TestQueryPrecision(t *testing.T) {
	if p := queryPrecision(0.001, 0.001); p != maxPrecision {
		t.Errorf("small box: expected precision %d, got %d", maxPrecision, p)
	}
	if p := queryPrecision(180, 360); p > 2 {
		t.Errorf("whole world: expected coarse precision, got %d", p)
	}
}

func randID(r *rand.Rand) string {
	const alphabet = "abcdefghijklmnopqrstuvwxyz0123456789"
	b := make([]byte, 12)
	for i := range b {
		b[i] = alphabet[r.Intn(len(alphabet))]
	}
	return string(b)
}

func TestRegistry_IndexesEveryPrecision(t *testing.T) {
	r := mustRegistry(t, domain.TargetPoint{ID: "a", Name: "A", Position: domain.GeoPoint{Lat: -8.0522, Lon: -34.9286}})

	if maxPrecision != 7 {
		t.Fatalf("maxPrecision = %d, want 7", maxPrecision)
	}
	hash := r.targets["a"].hash
	if len(hash) < maxPrecision {
		t.Fatalf("geohash %q shorter than %d", hash, maxPrecision)
	}
	for p := 1; p <= maxPrecision; p++ {
		if _, ok := r.cells[p][hash[:p]]["a"]; !ok {
			t.Errorf("target missing from precision %d cell %q", p, hash[:p])
		}
	}
}
