package locator

import (
	"time"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// PositionOptions are passed to the platform position source.
type PositionOptions struct {
	HighAccuracy bool
	Timeout      time.Duration
	// MaximumAge is the oldest cached fix the source may return; zero forces a fresh fix.
	MaximumAge time.Duration
}

// Config holds the per-tier options of the acquirer.
type Config struct {
	Precise        PositionOptions
	Imprecise      PositionOptions
	NetworkTimeout time.Duration
	// Region, when set, is the area precise fixes are expected in.
	Region domain.Bounds
}

// DefaultConfig returns the standard tier options.
func DefaultConfig() Config {
	return Config{
		Precise:        PositionOptions{HighAccuracy: true, Timeout: 15 * time.Second, MaximumAge: 0},
		Imprecise:      PositionOptions{HighAccuracy: false, Timeout: 30 * time.Second, MaximumAge: 5 * time.Minute},
		NetworkTimeout: 10 * time.Second,
	}
}

// options returns the position options used in state s.
func (c Config) options(s State) PositionOptions {
	switch s {
	case StateAcquiringPrecise:
		return c.Precise
	case StateAcquiringImprecise:
		return c.Imprecise
	default:
		return PositionOptions{Timeout: c.NetworkTimeout}
	}
}
