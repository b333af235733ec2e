package domain

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/samirrijal/geofence/internal/pkg/geospatial"
)

// AcquisitionMethod records how a coordinate was obtained.
type AcquisitionMethod string

const (
	MethodPrecise         AcquisitionMethod = "precise"
	MethodImprecise       AcquisitionMethod = "imprecise"
	MethodNetworkInferred AcquisitionMethod = "network-inferred"
)

// Coordinate is a position fix. It is a value type and is never mutated once captured.
type Coordinate struct {
	Latitude        float64           `json:"latitude"`
	Longitude       float64           `json:"longitude"`
	PrecisionMeters float64           `json:"precision_meters"`
	CapturedAt      time.Time         `json:"captured_at"`
	Method          AcquisitionMethod `json:"acquisition_method,omitempty"`
}

// Point returns the coordinate as a GeoPoint.
func (c Coordinate) Point() GeoPoint {
	return GeoPoint{Lat: c.Latitude, Lon: c.Longitude}
}

// Validate checks the position and the reported precision.
func (c Coordinate) Validate() error {
	if err := ValidateCoordinates(c.Latitude, c.Longitude); err != nil {
		return err
	}
	if math.IsNaN(c.PrecisionMeters) || math.IsInf(c.PrecisionMeters, 0) || c.PrecisionMeters < 0 {
		return fmt.Errorf("%w: precision must be a non-negative number of meters", ErrInvalidCoordinate)
	}
	return nil
}

// ValidateCoordinates rejects non-finite values and values outside the WGS 84 ranges.
func ValidateCoordinates(lat, lng float64) error {
	if math.IsNaN(lat) || math.IsInf(lat, 0) {
		return fmt.Errorf("%w: latitude must be a finite number", ErrInvalidCoordinate)
	}
	if math.IsNaN(lng) || math.IsInf(lng, 0) {
		return fmt.Errorf("%w: longitude must be a finite number", ErrInvalidCoordinate)
	}
	if lat < -90 || lat > 90 {
		return fmt.Errorf("%w: latitude must be between -90 and 90", ErrInvalidCoordinate)
	}
	if lng < -180 || lng > 180 {
		return fmt.Errorf("%w: longitude must be between -180 and 180", ErrInvalidCoordinate)
	}
	return nil
}

// ParseCoordinates parses raw latitude/longitude strings and validates the result.
// Parse failures are reported as ErrInvalidCoordinate, never as a separate kind.
func ParseCoordinates(latRaw, lngRaw string) (float64, float64, error) {
	lat, err := strconv.ParseFloat(strings.TrimSpace(latRaw), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: latitude %q is not a number", ErrInvalidCoordinate, latRaw)
	}
	lng, err := strconv.ParseFloat(strings.TrimSpace(lngRaw), 64)
	if err != nil {
		return 0, 0, fmt.Errorf("%w: longitude %q is not a number", ErrInvalidCoordinate, lngRaw)
	}
	if err := ValidateCoordinates(lat, lng); err != nil {
		return 0, 0, err
	}
	return lat, lng, nil
}

// ValidateRadius rejects zero, negative and non-finite radii.
func ValidateRadius(radiusMeters float64) error {
	if math.IsNaN(radiusMeters) || math.IsInf(radiusMeters, 0) || radiusMeters <= 0 {
		return fmt.Errorf("%w: radius must be a positive number of meters", ErrInvalidCoordinate)
	}
	return nil
}

// Distance returns the great-circle distance in meters between a and b.
func Distance(a, b GeoPoint) float64 {
	return geospatial.Haversine(a.Lat, a.Lon, b.Lat, b.Lon)
}
