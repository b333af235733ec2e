package config

import (
	"strings"
	"testing"
	"time"
)

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("GEOFENCE_PROXIMITY_REGISTRY_BACKEND", "memory")

	cfg, err := Load("geofence-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Proximity.DefaultRadiusMeters != 100 {
		t.Errorf("default radius = %v, want 100", cfg.Proximity.DefaultRadiusMeters)
	}
	if cfg.Proximity.RegistryBackend != BackendMemory {
		t.Errorf("env override not applied: %q", cfg.Proximity.RegistryBackend)
	}
	if cfg.Locator.PreciseTimeout != 15*time.Second || cfg.Locator.ImpreciseMaxAge != 5*time.Minute {
		t.Errorf("unexpected locator defaults %+v", cfg.Locator)
	}
	if cfg.Telemetry.ServiceName != "geofence-test" {
		t.Errorf("service name = %q", cfg.Telemetry.ServiceName)
	}
}

func TestLoad_EnvDuration(t *testing.T) {
	t.Setenv("GEOFENCE_LOCATOR_NETWORK_TIMEOUT", "3s")

	cfg, err := Load("geofence-test")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if cfg.Locator.NetworkTimeout != 3*time.Second {
		t.Errorf("network timeout = %v, want 3s", cfg.Locator.NetworkTimeout)
	}
}

func validConfig() Config {
	return Config{
		Server:   ServerConfig{Port: 8080, ReadTimeout: 10, WriteTimeout: 10},
		Database: DatabaseConfig{Host: "localhost", Port: 5432, User: "geofence", DBName: "geofence"},
		NATS:     NATSConfig{URL: "nats://localhost:4222"},
		Valkey:   ValkeyConfig{Addr: "localhost:6379", TargetTTL: time.Minute},
		Proximity: ProximityConfig{
			DefaultRadiusMeters: 100,
			MaxRadiusMeters:     1000,
			RegistryBackend:     BackendPostgres,
			MaxLimit:            10,
		},
		Locator: LocatorConfig{
			PreciseTimeout:   time.Second,
			ImpreciseTimeout: time.Second,
			NetworkTimeout:   time.Second,
		},
	}
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name    string
		mutate  func(c *Config)
		wantErr string
	}{
		{"valid", func(c *Config) {}, ""},
		{"memory backend needs no database", func(c *Config) {
			c.Proximity.RegistryBackend = BackendMemory
			c.Database = DatabaseConfig{}
		}, ""},
		{"bad port", func(c *Config) { c.Server.Port = 70000 }, "server.port"},
		{"unknown backend", func(c *Config) { c.Proximity.RegistryBackend = "redis" }, "registry_backend"},
		{"zero radius", func(c *Config) { c.Proximity.DefaultRadiusMeters = 0 }, "default_radius_meters"},
		{"max below default", func(c *Config) { c.Proximity.MaxRadiusMeters = 50 }, "max_radius_meters"},
		{"region inverted", func(c *Config) {
			c.Locator.PlausibilityRegion = BoundsConfig{MinLat: 10, MaxLat: 5, MinLon: 0, MaxLon: 1}
		}, "plausibility_region"},
		{"missing db host", func(c *Config) { c.Database.Host = "" }, "database.host"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			c := validConfig()
			tt.mutate(&c)
			err := c.Validate()
			if tt.wantErr == "" {
				if err != nil {
					t.Fatalf("unexpected error: %v", err)
				}
				return
			}
			if err == nil || !strings.Contains(err.Error(), tt.wantErr) {
				t.Fatalf("expected error containing %q, got %v", tt.wantErr, err)
			}
		})
	}
}
