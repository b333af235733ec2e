package domain_test

import (
	"errors"
	"math"
	"testing"

	"github.com/samirrijal/geofence/internal/core/domain"
)

func TestValidateCoordinates(t *testing.T) {
	tests := []struct {
		name    string
		lat     float64
		lng     float64
		wantErr bool
	}{
		{"origin", 0, 0, false},
		{"recife", -8.0631, -34.8711, false},
		{"north pole", 90, 0, false},
		{"south pole", -90, 180, false},
		{"antimeridian west", 0, -180, false},
		{"lat too high", 91, 0, true},
		{"lat too low", -91, 0, true},
		{"lng too high", 0, 181, true},
		{"lng too low", 0, -181, true},
		{"lat nan", math.NaN(), 0, true},
		{"lng inf", 0, math.Inf(1), true},
		{"lng -inf", 0, math.Inf(-1), true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := domain.ValidateCoordinates(tt.lat, tt.lng)
			if tt.wantErr {
				if !errors.Is(err, domain.ErrInvalidCoordinate) {
					t.Fatalf("expected ErrInvalidCoordinate, got %v", err)
				}
				return
			}
			if err != nil {
				t.Fatalf("unexpected error: %v", err)
			}
		})
	}
}

func TestParseCoordinates(t *testing.T) {
	lat, lng, err := domain.ParseCoordinates(" -8.0631", "-34.8711 ")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if lat != -8.0631 || lng != -34.8711 {
		t.Errorf("got (%v, %v)", lat, lng)
	}

	for _, raw := range [][2]string{{"abc", "0"}, {"0", ""}, {"91", "0"}, {"NaN", "0"}} {
		if _, _, err := domain.ParseCoordinates(raw[0], raw[1]); !errors.Is(err, domain.ErrInvalidCoordinate) {
			t.Errorf("ParseCoordinates(%q, %q): expected ErrInvalidCoordinate, got %v", raw[0], raw[1], err)
		}
	}
}

func TestValidateRadius(t *testing.T) {
	if err := domain.ValidateRadius(100); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	for _, r := range []float64{0, -1, math.NaN(), math.Inf(1)} {
		if err := domain.ValidateRadius(r); !errors.Is(err, domain.ErrInvalidCoordinate) {
			t.Errorf("ValidateRadius(%v): expected ErrInvalidCoordinate, got %v", r, err)
		}
	}
}

func TestCoordinateValidate_Precision(t *testing.T) {
	c := domain.Coordinate{Latitude: 1, Longitude: 1, PrecisionMeters: -5}
	if err := c.Validate(); !errors.Is(err, domain.ErrInvalidCoordinate) {
		t.Fatalf("expected ErrInvalidCoordinate for negative precision, got %v", err)
	}
	c.PrecisionMeters = 12
	if err := c.Validate(); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
}

func TestBoundsContains(t *testing.T) {
	brazil := domain.Bounds{MinLat: -34, MinLon: -74, MaxLat: 6, MaxLon: -34}
	if !brazil.Contains(domain.GeoPoint{Lat: -8.06, Lon: -34.87}) {
		t.Error("recife should be inside")
	}
	if brazil.Contains(domain.GeoPoint{Lat: 40.4, Lon: -3.7}) {
		t.Error("madrid should be outside")
	}

	fiji := domain.Bounds{MinLat: -21, MinLon: 176, MaxLat: -12, MaxLon: -178}
	if !fiji.Contains(domain.GeoPoint{Lat: -17, Lon: 179.5}) || !fiji.Contains(domain.GeoPoint{Lat: -17, Lon: -179}) {
		t.Error("wrapped box should contain points on both sides of the antimeridian")
	}
	if fiji.Contains(domain.GeoPoint{Lat: -17, Lon: 0}) {
		t.Error("wrapped box should not contain greenwich")
	}
}
