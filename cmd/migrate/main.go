package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"path/filepath"

	"github.com/samirrijal/geofence/internal/adapters/postgres"
	"github.com/samirrijal/geofence/internal/pkg/config"
)

// applied in order by "up"; every file is idempotent
var upFiles = []string{
	"001_init_extensions.sql",
	"002_targets.sql",
	"003_seed_targets.sql",
}

func main() {
	if len(os.Args) < 2 {
		log.Fatal("usage: migrate <up|down|status> [migrations dir]")
	}
	dir := "migrations"
	if len(os.Args) > 2 {
		dir = os.Args[2]
	}

	cfg, err := config.Load("geofence-migrate")
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx := context.Background()
	db, err := postgres.New(ctx, cfg.Database.DSN(), 2)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()

	switch os.Args[1] {
	case "up":
		runMigrations(ctx, db, dir, upFiles)
	case "down":
		runMigrations(ctx, db, dir, []string{"down.sql"})
	case "status":
		if err := status(ctx, db); err != nil {
			log.Fatalf("status: %v", err)
		}
	default:
		log.Fatalf("unknown command: %s", os.Args[1])
	}
}

func runMigrations(ctx context.Context, db *postgres.DB, dir string, files []string) {
	for _, name := range files {
		f := filepath.Join(dir, name)
		data, err := os.ReadFile(f)
		if err != nil {
			log.Fatalf("read %s: %v", f, err)
		}

		if _, err := db.Pool.Exec(ctx, string(data)); err != nil {
			log.Fatalf("exec %s: %v", f, err)
		}

		fmt.Printf("OK  %s\n", f)
	}

	log.Println("migrations applied")
}

func status(ctx context.Context, db *postgres.DB) error {
	var postgis string
	if err := db.Pool.QueryRow(ctx, `SELECT extversion FROM pg_extension WHERE extname = 'postgis'`).Scan(&postgis); err != nil {
		return fmt.Errorf("postgis not installed: %w", err)
	}
	var targets int
	if err := db.Pool.QueryRow(ctx, `SELECT count(*) FROM targets`).Scan(&targets); err != nil {
		return fmt.Errorf("targets table missing: %w", err)
	}
	fmt.Printf("postgis %s\ntargets %d\n", postgis, targets)
	return nil
}
