package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config holds all application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Database  DatabaseConfig  `mapstructure:"database"`
	NATS      NATSConfig      `mapstructure:"nats"`
	Valkey    ValkeyConfig    `mapstructure:"valkey"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
	Proximity ProximityConfig `mapstructure:"proximity"`
	GeoIP     GeoIPConfig     `mapstructure:"geoip"`
	Locator   LocatorConfig   `mapstructure:"locator"`
}

type ServerConfig struct {
	Port         int    `mapstructure:"port"`
	ReadTimeout  int    `mapstructure:"read_timeout"`
	WriteTimeout int    `mapstructure:"write_timeout"`
	OpenAPIPath  string `mapstructure:"openapi_path"`
}

type DatabaseConfig struct {
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	DBName   string `mapstructure:"dbname"`
	SSLMode  string `mapstructure:"sslmode"`
	MaxConns int32  `mapstructure:"max_conns"`
}

func (d DatabaseConfig) DSN() string {
	return fmt.Sprintf(
		"postgres://%s:%s@%s:%d/%s?sslmode=%s",
		d.User, d.Password, d.Host, d.Port, d.DBName, d.SSLMode,
	)
}

type NATSConfig struct {
	URL string `mapstructure:"url"`
}

type ValkeyConfig struct {
	Addr string `mapstructure:"addr"`
	// TargetTTL bounds how long a cached target snapshot may be served.
	TargetTTL time.Duration `mapstructure:"target_ttl"`
}

type TelemetryConfig struct {
	ServiceName string `mapstructure:"service_name"`
	TempoAddr   string `mapstructure:"tempo_addr"`
	Enabled     bool   `mapstructure:"enabled"`
}

// Registry backends.
const (
	BackendPostgres = "postgres"
	BackendMemory   = "memory"
)

type ProximityConfig struct {
	DefaultRadiusMeters float64 `mapstructure:"default_radius_meters"`
	MaxRadiusMeters     float64 `mapstructure:"max_radius_meters"`
	IndexPadRatio       float64 `mapstructure:"index_pad_ratio"`
	RegistryBackend     string  `mapstructure:"registry_backend"`
	SeedFile            string  `mapstructure:"seed_file"`
	MaxLimit            int     `mapstructure:"max_limit"`
}

type GeoIPConfig struct {
	MMDBPath string `mapstructure:"mmdb_path"`
}

// BoundsConfig is a lat/lon box. The zero value means "no bounds".
type BoundsConfig struct {
	MinLat float64 `mapstructure:"min_lat"`
	MinLon float64 `mapstructure:"min_lon"`
	MaxLat float64 `mapstructure:"max_lat"`
	MaxLon float64 `mapstructure:"max_lon"`
}

type LocatorConfig struct {
	PreciseTimeout     time.Duration `mapstructure:"precise_timeout"`
	ImpreciseTimeout   time.Duration `mapstructure:"imprecise_timeout"`
	ImpreciseMaxAge    time.Duration `mapstructure:"imprecise_max_age"`
	NetworkTimeout     time.Duration `mapstructure:"network_timeout"`
	PlausibilityRegion BoundsConfig  `mapstructure:"plausibility_region"`
	APIURL             string        `mapstructure:"api_url"`
}

// Load reads configuration from file and environment variables.
func Load(service string) (*Config, error) {
	v := viper.New()
	setDefaults(v, service)

	// Config file (optional)
	v.SetConfigName("config")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath("./configs")
	_ = v.ReadInConfig() // OK if missing

	// Environment variables: GEOFENCE_DATABASE_HOST → database.host
	v.SetEnvPrefix("GEOFENCE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return &cfg, nil
}

func setDefaults(v *viper.Viper, service string) {
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", 10)
	v.SetDefault("server.write_timeout", 10)
	v.SetDefault("server.openapi_path", "api/openapi.yaml")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.user", "geofence")
	v.SetDefault("database.password", "")
	v.SetDefault("database.dbname", "geofence")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.max_conns", 50)
	v.SetDefault("nats.url", "nats://localhost:4222")
	v.SetDefault("valkey.addr", "localhost:6379")
	v.SetDefault("valkey.target_ttl", 5*time.Minute)
	v.SetDefault("telemetry.service_name", service)
	v.SetDefault("telemetry.tempo_addr", "tempo:4317")
	v.SetDefault("telemetry.enabled", true)
	v.SetDefault("proximity.default_radius_meters", 100.0)
	v.SetDefault("proximity.max_radius_meters", 50000.0)
	v.SetDefault("proximity.index_pad_ratio", 0.005)
	v.SetDefault("proximity.registry_backend", BackendPostgres)
	v.SetDefault("proximity.seed_file", "")
	v.SetDefault("proximity.max_limit", 100)
	v.SetDefault("geoip.mmdb_path", "")
	v.SetDefault("locator.precise_timeout", 15*time.Second)
	v.SetDefault("locator.imprecise_timeout", 30*time.Second)
	v.SetDefault("locator.imprecise_max_age", 5*time.Minute)
	v.SetDefault("locator.network_timeout", 10*time.Second)
	v.SetDefault("locator.api_url", "http://localhost:8080")
}

// Validate checks that required configuration fields are present and sane.
func (c *Config) Validate() error {
	var errs []string

	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		errs = append(errs, fmt.Sprintf("server.port must be 1-65535, got %d", c.Server.Port))
	}
	if c.Server.ReadTimeout <= 0 {
		errs = append(errs, "server.read_timeout must be positive")
	}
	if c.Server.WriteTimeout <= 0 {
		errs = append(errs, "server.write_timeout must be positive")
	}

	switch c.Proximity.RegistryBackend {
	case BackendPostgres:
		if c.Database.Host == "" {
			errs = append(errs, "database.host is required")
		}
		if c.Database.Port <= 0 || c.Database.Port > 65535 {
			errs = append(errs, fmt.Sprintf("database.port must be 1-65535, got %d", c.Database.Port))
		}
		if c.Database.User == "" {
			errs = append(errs, "database.user is required")
		}
		if c.Database.DBName == "" {
			errs = append(errs, "database.dbname is required")
		}
	case BackendMemory:
	default:
		errs = append(errs, fmt.Sprintf("proximity.registry_backend must be %q or %q, got %q",
			BackendPostgres, BackendMemory, c.Proximity.RegistryBackend))
	}

	if c.NATS.URL == "" {
		errs = append(errs, "nats.url is required")
	}
	if c.Valkey.Addr == "" {
		errs = append(errs, "valkey.addr is required")
	}
	if c.Valkey.TargetTTL <= 0 {
		errs = append(errs, "valkey.target_ttl must be positive")
	}

	p := c.Proximity
	if !(p.DefaultRadiusMeters > 0) {
		errs = append(errs, "proximity.default_radius_meters must be positive")
	}
	if p.MaxRadiusMeters < p.DefaultRadiusMeters {
		errs = append(errs, "proximity.max_radius_meters must be >= default_radius_meters")
	}
	if p.IndexPadRatio < 0 {
		errs = append(errs, "proximity.index_pad_ratio must not be negative")
	}
	if p.MaxLimit <= 0 {
		errs = append(errs, "proximity.max_limit must be positive")
	}

	l := c.Locator
	if l.PreciseTimeout <= 0 || l.ImpreciseTimeout <= 0 || l.NetworkTimeout <= 0 {
		errs = append(errs, "locator timeouts must be positive")
	}
	if l.ImpreciseMaxAge < 0 {
		errs = append(errs, "locator.imprecise_max_age must not be negative")
	}
	if r := l.PlausibilityRegion; r != (BoundsConfig{}) {
		if r.MinLat > r.MaxLat || r.MinLat < -90 || r.MaxLat > 90 {
			errs = append(errs, "locator.plausibility_region latitudes are invalid")
		}
		if r.MinLon < -180 || r.MinLon > 180 || r.MaxLon < -180 || r.MaxLon > 180 {
			errs = append(errs, "locator.plausibility_region longitudes are invalid")
		}
	}

	if len(errs) > 0 {
		return fmt.Errorf("config validation failed:\n  - %s", strings.Join(errs, "\n  - "))
	}
	return nil
}
