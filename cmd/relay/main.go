package main

import (
	"context"
	"log"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	natsadapter "github.com/samirrijal/geofence/internal/adapters/nats"
	"github.com/samirrijal/geofence/internal/adapters/postgres"
	"github.com/samirrijal/geofence/internal/adapters/valkey"
	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/pkg/config"
	"github.com/samirrijal/geofence/internal/pkg/logging"
)

// relay is the local stand-in for the downstream consumer of validation
// events. It also keeps the target cache coherent: database changes are
// republished to NATS and every change event drops the cached snapshot.
func main() {
	cfg, err := config.Load("geofence-relay")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	logLevel := os.Getenv("LOG_LEVEL")
	if logLevel == "" {
		logLevel = "info"
	}
	logging.Setup(logLevel, "json")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sub, err := natsadapter.NewSubscriber(cfg.NATS.URL, "geofence-relay")
	if err != nil {
		log.Fatalf("nats: %v", err)
	}
	defer sub.Close()

	pub, err := natsadapter.NewPublisher(cfg.NATS.URL)
	if err != nil {
		log.Fatalf("nats publisher: %v", err)
	}
	defer pub.Close()

	cache, err := valkey.New(cfg.Valkey.Addr)
	if err != nil {
		slog.Warn("valkey unavailable, cache invalidation disabled", "error", err)
	} else {
		defer cache.Close()
	}

	if err := sub.SubscribeValidations(ctx, logValidation); err != nil {
		log.Fatalf("subscribe validations: %v", err)
	}

	if err := sub.SubscribeTargetChanges(ctx, func(ctx context.Context, targetID string) error {
		if cache == nil {
			return nil
		}
		if err := cache.Delete(ctx, valkey.TargetKey(targetID)); err != nil {
			return err
		}
		slog.Debug("target cache invalidated", "target_id", targetID)
		return nil
	}); err != nil {
		log.Fatalf("subscribe target changes: %v", err)
	}

	if cfg.Proximity.RegistryBackend == config.BackendPostgres {
		db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
		if err != nil {
			log.Fatalf("database: %v", err)
		}
		defer db.Close()
		go listenTargetChanges(ctx, db, pub)
	}

	slog.Info("relay running", "nats", cfg.NATS.URL, "registry", cfg.Proximity.RegistryBackend)

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	sig := <-quit
	slog.Info("received signal, shutting down relay", "signal", sig.String())
	cancel()
}

func logValidation(_ context.Context, r *domain.ValidationResult) error {
	slog.Info("proximity validation",
		"target_id", r.Target.ID,
		"valid", r.Valid,
		"distance_meters", r.DistanceMeters,
		"radius_meters", r.RadiusMeters,
		"evaluated_at", r.EvaluatedAt,
	)
	return nil
}

// listenTargetChanges forwards database notifications to NATS, reconnecting
// with backoff until ctx is cancelled.
func listenTargetChanges(ctx context.Context, db *postgres.DB, pub *natsadapter.Publisher) {
	retry := retrypolicy.NewBuilder[any]().
		WithBackoff(time.Second, 30*time.Second).
		WithMaxRetries(-1).
		OnRetry(func(e failsafe.ExecutionEvent[any]) {
			slog.Warn("target listener restarting", "attempt", e.Attempts(), "error", e.LastError())
		}).
		Build()

	err := failsafe.With[any](retry).WithContext(ctx).Run(func() error {
		return db.ListenTargetChanges(ctx, func(ctx context.Context, targetID string) error {
			return pub.PublishTargetChanged(ctx, targetID)
		})
	})
	if err != nil && ctx.Err() == nil {
		slog.Error("target listener stopped", "error", err)
	}
}
