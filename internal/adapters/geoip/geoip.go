// Package geoip infers a coarse coordinate for a client IP address from an
// MMDB city database (MaxMind GeoLite2, DB-IP Lite or IP2Location LITE).
//
// A missing database is not an error: NewReader returns a nil *Reader and
// every method on a nil *Reader behaves as "no data".
package geoip

import (
	"errors"
	"fmt"
	"io/fs"
	"net"
	"os"
	"time"

	"github.com/oschwald/geoip2-golang"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/pkg/metrics"
)

var (
	// ErrNoDatabase is returned when no MMDB file is loaded.
	ErrNoDatabase = errors.New("geoip database not loaded")
	// ErrUnresolvable is returned for private, malformed or unknown addresses.
	ErrUnresolvable = errors.New("ip address cannot be located")
)

// defaultPrecisionMeters is used when the database carries no accuracy radius.
const defaultPrecisionMeters = 50_000

// Reader resolves IP addresses to network-inferred coordinates.
type Reader struct {
	db   *geoip2.Reader
	path string
	now  func() time.Time
}

// NewReader opens an MMDB file.
//
// Returns nil, nil if the path is empty or the file doesn't exist.
// Returns nil, error if the file exists but can't be opened.
func NewReader(mmdbPath string) (*Reader, error) {
	if mmdbPath == "" {
		return nil, nil
	}
	if _, err := os.Stat(mmdbPath); errors.Is(err, fs.ErrNotExist) {
		return nil, nil
	}

	db, err := geoip2.Open(mmdbPath)
	if err != nil {
		return nil, fmt.Errorf("open mmdb %s: %w", mmdbPath, err)
	}
	return &Reader{db: db, path: mmdbPath, now: time.Now}, nil
}

// Lookup returns the network-inferred coordinate of ipStr, which may carry a port.
func (r *Reader) Lookup(ipStr string) (*domain.Coordinate, error) {
	if r == nil || r.db == nil {
		return nil, ErrNoDatabase
	}

	ip := parseIP(ipStr)
	if ip == nil || isPrivateIP(ip) {
		metrics.GeoIPLookups.WithLabelValues("skipped").Inc()
		return nil, fmt.Errorf("%q: %w", ipStr, ErrUnresolvable)
	}

	record, err := r.db.City(ip)
	if err != nil {
		metrics.GeoIPLookups.WithLabelValues("error").Inc()
		return nil, fmt.Errorf("lookup %s: %w", ip, err)
	}

	loc := record.Location
	// 0,0 is the MMDB default for "no location"
	if loc.Latitude == 0 && loc.Longitude == 0 {
		metrics.GeoIPLookups.WithLabelValues("miss").Inc()
		return nil, fmt.Errorf("%s: %w", ip, ErrUnresolvable)
	}

	coord, err := toCoordinate(loc.Latitude, loc.Longitude, loc.AccuracyRadius, r.now())
	if err != nil {
		metrics.GeoIPLookups.WithLabelValues("miss").Inc()
		return nil, fmt.Errorf("%s: %w", ip, ErrUnresolvable)
	}
	metrics.GeoIPLookups.WithLabelValues("hit").Inc()
	return coord, nil
}

func toCoordinate(lat, lon float64, accuracyKm uint16, at time.Time) (*domain.Coordinate, error) {
	if err := domain.ValidateCoordinates(lat, lon); err != nil {
		return nil, err
	}
	precision := float64(accuracyKm) * 1000
	if precision == 0 {
		precision = defaultPrecisionMeters
	}
	return &domain.Coordinate{
		Latitude:        lat,
		Longitude:       lon,
		PrecisionMeters: precision,
		CapturedAt:      at,
		Method:          domain.MethodNetworkInferred,
	}, nil
}

func parseIP(s string) net.IP {
	// Handle "ip:port" format by extracting just the IP
	host, _, err := net.SplitHostPort(s)
	if err != nil {
		host = s
	}
	return net.ParseIP(host)
}

func isPrivateIP(ip net.IP) bool {
	return ip.IsLoopback() || ip.IsLinkLocalUnicast() || ip.IsLinkLocalMulticast() ||
		ip.IsPrivate() || ip.IsUnspecified()
}

// Path returns the loaded database path, or "" when none is loaded.
func (r *Reader) Path() string {
	if r == nil {
		return ""
	}
	return r.path
}

// Close closes the underlying database.
func (r *Reader) Close() error {
	if r == nil || r.db == nil {
		return nil
	}
	return r.db.Close()
}
