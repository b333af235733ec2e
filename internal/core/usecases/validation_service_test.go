package usecases_test

import (
	"context"
	"errors"
	"math"
	"testing"
	"time"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/usecases"
)

func TestValidationService_SamePoint(t *testing.T) {
	repo := staticRegistry(target("a", -8.0522, -34.9286))
	svc := usecases.NewValidationService(repo, nil)

	res, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(-8.0522), Longitude: ptr(-34.9286), TargetID: "a", RadiusMeters: ptr(50),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid {
		t.Error("expected valid")
	}
	if res.DistanceMeters != 0 {
		t.Errorf("expected distance 0, got %v", res.DistanceMeters)
	}
	if res.RadiusMeters != 50 {
		t.Errorf("expected radius 50, got %v", res.RadiusMeters)
	}
	if res.Target.ID != "a" {
		t.Errorf("expected target a, got %s", res.Target.ID)
	}
}

func TestValidationService_OutOfRange(t *testing.T) {
	repo := staticRegistry(target("b", -8.0622, -34.9386))
	svc := usecases.NewValidationService(repo, nil)

	res, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(-8.0522), Longitude: ptr(-34.9286), TargetID: "b", RadiusMeters: ptr(50),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.Valid {
		t.Error("expected invalid")
	}
	if res.DistanceMeters < 1400 || res.DistanceMeters > 1700 {
		t.Errorf("expected ~1.5 km, got %.1f m", res.DistanceMeters)
	}
}

func TestValidationService_UnknownTarget(t *testing.T) {
	svc := usecases.NewValidationService(staticRegistry(), nil)

	_, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(0), Longitude: ptr(0), TargetID: "ghost",
	})
	if !errors.Is(err, domain.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestValidationService_NilTargetIsNotFound(t *testing.T) {
	repo := &mockRegistry{
		getByIDFn: func(ctx context.Context, id string) (*domain.TargetPoint, error) { return nil, nil },
	}
	svc := usecases.NewValidationService(repo, nil)

	_, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(0), Longitude: ptr(0), TargetID: "gone",
	})
	if !errors.Is(err, domain.ErrTargetNotFound) {
		t.Fatalf("expected ErrTargetNotFound, got %v", err)
	}
}

func TestValidationService_InputErrorsSkipRegistry(t *testing.T) {
	tests := []struct {
		name string
		req  usecases.ValidateRequest
		want error
	}{
		{"missing latitude", usecases.ValidateRequest{Longitude: ptr(0), TargetID: "a"}, domain.ErrMissingField},
		{"missing longitude", usecases.ValidateRequest{Latitude: ptr(0), TargetID: "a"}, domain.ErrMissingField},
		{"missing target", usecases.ValidateRequest{Latitude: ptr(0), Longitude: ptr(0)}, domain.ErrMissingField},
		{"blank target", usecases.ValidateRequest{Latitude: ptr(0), Longitude: ptr(0), TargetID: "  "}, domain.ErrMissingField},
		{"latitude 91", usecases.ValidateRequest{Latitude: ptr(91), Longitude: ptr(0), TargetID: "a"}, domain.ErrInvalidCoordinate},
		{"longitude 181", usecases.ValidateRequest{Latitude: ptr(0), Longitude: ptr(181), TargetID: "a"}, domain.ErrInvalidCoordinate},
		{"nan latitude", usecases.ValidateRequest{Latitude: ptr(math.NaN()), Longitude: ptr(0), TargetID: "a"}, domain.ErrInvalidCoordinate},
		{"zero radius", usecases.ValidateRequest{Latitude: ptr(0), Longitude: ptr(0), TargetID: "a", RadiusMeters: ptr(0)}, domain.ErrInvalidCoordinate},
		{"negative radius", usecases.ValidateRequest{Latitude: ptr(0), Longitude: ptr(0), TargetID: "a", RadiusMeters: ptr(-5)}, domain.ErrInvalidCoordinate},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			repo := staticRegistry(target("a", 0, 0))
			svc := usecases.NewValidationService(repo, nil)

			_, err := svc.Validate(context.Background(), tt.req)
			if !errors.Is(err, tt.want) {
				t.Fatalf("expected %v, got %v", tt.want, err)
			}
			if repo.getByIDCalls != 0 {
				t.Errorf("registry should not be consulted on input errors")
			}
		})
	}
}

func TestValidationService_MissingFieldWinsOverInvalid(t *testing.T) {
	svc := usecases.NewValidationService(staticRegistry(), nil)
	_, err := svc.Validate(context.Background(), usecases.ValidateRequest{Latitude: ptr(500)})
	if !errors.Is(err, domain.ErrMissingField) {
		t.Fatalf("expected ErrMissingField, got %v", err)
	}
}

func TestValidationService_DefaultRadius(t *testing.T) {
	repo := staticRegistry(target("a", 0, 0))
	svc := usecases.NewValidationService(repo, nil)

	res, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(0), Longitude: ptr(0), TargetID: "a",
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if res.RadiusMeters != usecases.DefaultRadiusMeters {
		t.Errorf("expected default radius %v, got %v", usecases.DefaultRadiusMeters, res.RadiusMeters)
	}
}

func TestValidationService_BoundaryIsInclusive(t *testing.T) {
	tp := target("a", -8.0522, -34.9286)
	user := domain.GeoPoint{Lat: -8.0530, Lon: -34.9290}
	d := domain.Distance(user, tp.Position)

	svc := usecases.NewValidationService(staticRegistry(tp), nil)
	res, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(user.Lat), Longitude: ptr(user.Lon), TargetID: "a", RadiusMeters: ptr(d),
	})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !res.Valid {
		t.Fatalf("distance == radius must be valid (d=%v)", d)
	}
}

func TestValidationService_RadiusMonotonicity(t *testing.T) {
	tp := target("a", -8.0622, -34.9386)
	svc := usecases.NewValidationService(staticRegistry(tp), nil)

	wasValid := false
	for _, r := range []float64{10, 100, 1000, 1500, 1600, 2000, 10000} {
		res, err := svc.Validate(context.Background(), usecases.ValidateRequest{
			Latitude: ptr(-8.0522), Longitude: ptr(-34.9286), TargetID: "a", RadiusMeters: ptr(r),
		})
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
		if wasValid && !res.Valid {
			t.Fatalf("valid at a smaller radius but invalid at %v", r)
		}
		wasValid = res.Valid
	}
	if !wasValid {
		t.Fatal("expected valid at the largest radius")
	}
}

func TestValidationService_NonFiniteDistanceIsInternal(t *testing.T) {
	svc := usecases.NewValidationService(staticRegistry(target("a", 0, 0)), nil,
		usecases.WithDistanceFunc(func(a, b domain.GeoPoint) float64 { return math.NaN() }),
	)

	res, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(0), Longitude: ptr(0), TargetID: "a",
	})
	if !errors.Is(err, domain.ErrInternalComputation) {
		t.Fatalf("expected ErrInternalComputation, got %v", err)
	}
	if res != nil {
		t.Error("no partial result expected")
	}
}

func TestValidationService_PanicIsInternal(t *testing.T) {
	svc := usecases.NewValidationService(staticRegistry(target("a", 0, 0)), nil,
		usecases.WithDistanceFunc(func(a, b domain.GeoPoint) float64 { panic("boom") }),
	)

	_, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(0), Longitude: ptr(0), TargetID: "a",
	})
	if !errors.Is(err, domain.ErrInternalComputation) {
		t.Fatalf("expected ErrInternalComputation, got %v", err)
	}
}

func TestValidationService_RegistryFailureSurfaces(t *testing.T) {
	outage := errors.New("connection refused")
	repo := &mockRegistry{
		getByIDFn: func(ctx context.Context, id string) (*domain.TargetPoint, error) { return nil, outage },
	}
	svc := usecases.NewValidationService(repo, nil)

	_, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(0), Longitude: ptr(0), TargetID: "a",
	})
	if !errors.Is(err, outage) {
		t.Fatalf("expected registry error to surface, got %v", err)
	}
}

func TestValidationService_PublishesResult(t *testing.T) {
	pub := &mockPublisher{err: errors.New("nats down")}
	fixed := time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)
	svc := usecases.NewValidationService(staticRegistry(target("a", 0, 0)), pub,
		usecases.WithClock(func() time.Time { return fixed }),
	)

	res, err := svc.Validate(context.Background(), usecases.ValidateRequest{
		Latitude: ptr(0), Longitude: ptr(0), TargetID: "a",
	})
	if err != nil {
		t.Fatalf("publish failures must not fail validation: %v", err)
	}
	if len(pub.published) != 1 || pub.published[0] != res {
		t.Fatalf("expected result to be published once")
	}
	if !res.EvaluatedAt.Equal(fixed) {
		t.Errorf("expected EvaluatedAt %v, got %v", fixed, res.EvaluatedAt)
	}
}
