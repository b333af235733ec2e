package main

import (
	"context"
	"fmt"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
	"github.com/gofiber/fiber/v2/middleware/recover"

	"github.com/samirrijal/geofence/internal/adapters/geoip"
	"github.com/samirrijal/geofence/internal/adapters/http"
	"github.com/samirrijal/geofence/internal/adapters/memory"
	natsadapter "github.com/samirrijal/geofence/internal/adapters/nats"
	"github.com/samirrijal/geofence/internal/adapters/postgres"
	"github.com/samirrijal/geofence/internal/adapters/valkey"
	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/ports"
	"github.com/samirrijal/geofence/internal/core/usecases"
	"github.com/samirrijal/geofence/internal/pkg/config"
	"github.com/samirrijal/geofence/internal/pkg/logging"
	"github.com/samirrijal/geofence/internal/pkg/metrics"
	"github.com/samirrijal/geofence/internal/pkg/telemetry"
)

func main() {
	cfg, err := config.Load("geofence-api")
	if err != nil {
		log.Fatalf("load config: %v", err)
	}

	// Structured logging
	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Telemetry
	if cfg.Telemetry.Enabled {
		shutdown, err := telemetry.InitTracer(ctx, cfg.Telemetry.ServiceName, cfg.Telemetry.TempoAddr)
		if err != nil {
			slog.Warn("telemetry init failed", "error", err)
		} else {
			defer shutdown()
		}
	}

	// Target registry
	var (
		registry ports.TargetRegistry
		db       *postgres.DB
	)
	switch cfg.Proximity.RegistryBackend {
	case config.BackendMemory:
		var seed []domain.TargetPoint
		if cfg.Proximity.SeedFile != "" {
			if seed, err = memory.LoadSeedFile(cfg.Proximity.SeedFile); err != nil {
				log.Fatalf("seed targets: %v", err)
			}
		}
		reg, err := memory.NewRegistry(seed...)
		if err != nil {
			log.Fatalf("memory registry: %v", err)
		}
		slog.Info("using in-memory registry", "targets", reg.Len(), "seed_file", cfg.Proximity.SeedFile)
		registry = reg
	default:
		db, err = postgres.New(ctx, cfg.Database.DSN(), cfg.Database.MaxConns)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		registry = postgres.NewTargetRepo(db, cfg.Proximity.IndexPadRatio)
	}

	// Cache
	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable", "error", err)
	} else {
		defer cache.Close()
		// the memory registry is already process-local
		if db != nil {
			registry = valkey.NewCachedRegistry(registry, cache, cfg.Valkey.TargetTTL)
		}
	}

	// NATS
	var publisher ports.ValidationPublisher
	nc, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats unavailable", "error", err)
	} else {
		defer nc.Close()
		publisher = nc
	}

	natsConn, err := natsadapter.RawConn(cfg.NATS.URL)
	if err != nil {
		slog.Warn("nats health conn unavailable", "error", err)
	} else {
		defer natsConn.Close()
	}

	// GeoIP
	geo, err := geoip.NewReader(cfg.GeoIP.MMDBPath)
	if err != nil {
		slog.Warn("geoip unavailable", "error", err)
	}
	if geo == nil {
		slog.Info("geoip disabled, /v1/locate will answer 503")
	} else {
		defer geo.Close()
	}

	// Use cases
	deps := &http.Dependencies{
		Validator: usecases.NewValidationService(registry, publisher),
		Nearest:   usecases.NewBruteForceSearcher(registry),
		Indexed:   usecases.NewIndexedSearcher(registry),
		Targets:   registry,
		Limits: http.Limits{
			DefaultRadiusMeters: cfg.Proximity.DefaultRadiusMeters,
			MaxRadiusMeters:     cfg.Proximity.MaxRadiusMeters,
			MaxLimit:            cfg.Proximity.MaxLimit,
		},
		NATS:  natsConn,
		DB:    db,
		Cache: cache,

		OpenAPIPath: cfg.Server.OpenAPIPath,
	}
	if geo != nil {
		deps.Locator = geo
	}

	// DB pool metrics
	if db != nil {
		go func() {
			ticker := time.NewTicker(15 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					metrics.UpdateDBPoolMetrics(db.Pool.Stat())
				}
			}
		}()
	}

	// Fiber
	app := fiber.New(fiber.Config{
		ReadTimeout:  time.Duration(cfg.Server.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(cfg.Server.WriteTimeout) * time.Second,
		BodyLimit:    64 * 1024,
		AppName:      "Geofence API",
	})
	app.Use(recover.New())
	app.Use(cors.New(cors.Config{
		AllowOrigins:     "*",
		AllowMethods:     "GET,POST,OPTIONS",
		AllowHeaders:     "Origin, Content-Type, Accept",
		AllowCredentials: false,
		MaxAge:           3600,
	}))

	http.SetupRoutes(app, deps)

	// Graceful shutdown
	go func() {
		addr := fmt.Sprintf(":%d", cfg.Server.Port)
		slog.Info("API server starting", "addr", addr, "registry", cfg.Proximity.RegistryBackend)
		if err := app.Listen(addr); err != nil {
			log.Fatalf("listen: %v", err)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit

	slog.Info("shutdown signal received, draining connections...", "signal", sig.String())

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()

	if err := app.ShutdownWithContext(shutdownCtx); err != nil {
		slog.Error("forced shutdown", "error", err)
	}

	slog.Info("server stopped")
}
