package http

import (
	"github.com/nats-io/nats.go"

	"github.com/samirrijal/geofence/internal/adapters/postgres"
	"github.com/samirrijal/geofence/internal/adapters/valkey"
	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/ports"
	"github.com/samirrijal/geofence/internal/core/usecases"
)

// IPLocator infers a coarse coordinate from a client IP address.
type IPLocator interface {
	Lookup(ip string) (*domain.Coordinate, error)
}

// Limits bound the proximity query parameters accepted over HTTP.
type Limits struct {
	DefaultRadiusMeters float64
	MaxRadiusMeters     float64
	MaxLimit            int
}

// DefaultLimits returns the limits used when none are configured.
func DefaultLimits() Limits {
	return Limits{
		DefaultRadiusMeters: usecases.DefaultRadiusMeters,
		MaxRadiusMeters:     50_000,
		MaxLimit:            100,
	}
}

// Dependencies holds all services needed by HTTP handlers.
type Dependencies struct {
	Validator *usecases.ValidationService
	Nearest   *usecases.BruteForceSearcher
	Indexed   *usecases.IndexedSearcher
	Targets   ports.TargetRegistry
	Locator   IPLocator
	Limits    Limits
	NATS      *nats.Conn
	DB        *postgres.DB
	Cache     *valkey.Cache

	// OpenAPIPath locates the document served under /docs.
	OpenAPIPath string
}

func (d *Dependencies) limits() Limits {
	l := d.Limits
	def := DefaultLimits()
	if !(l.DefaultRadiusMeters > 0) {
		l.DefaultRadiusMeters = def.DefaultRadiusMeters
	}
	if l.MaxRadiusMeters < l.DefaultRadiusMeters {
		l.MaxRadiusMeters = def.MaxRadiusMeters
	}
	if l.MaxLimit <= 0 {
		l.MaxLimit = def.MaxLimit
	}
	return l
}
