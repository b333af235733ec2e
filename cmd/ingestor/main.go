package main

import (
	"archive/zip"
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"log/slog"
	"net/http"
	"os"
	"strings"
	"sync"
	"time"

	"github.com/samirrijal/geofence/internal/adapters/memory"
	"github.com/samirrijal/geofence/internal/adapters/postgres"
	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/pkg/config"
	"github.com/samirrijal/geofence/internal/pkg/logging"
)

// ---------------------------------------------------------------------------
// Manifest types
// ---------------------------------------------------------------------------

// Manifest lists the target sources to load into the registry.
type Manifest struct {
	Source  string        `json:"source"`
	Sources []SourceEntry `json:"sources"`
}

// SourceEntry is one target file. Location is an http(s) URL or a local path.
// Format is yaml, csv or gtfs (a GTFS zip whose stops become targets); when
// empty it is inferred from the file extension.
type SourceEntry struct {
	Name     string `json:"name"`
	Location string `json:"location"`
	Format   string `json:"format,omitempty"`
	// IDPrefix namespaces ids from feeds that reuse short identifiers.
	IDPrefix string `json:"id_prefix,omitempty"`
}

const batchSize = 500

// ---------------------------------------------------------------------------
// Main
// ---------------------------------------------------------------------------

func main() {
	cfg, err := config.Load("geofence-ingestor")
	if err != nil {
		log.Fatalf("config: %v", err)
	}
	logging.Setup("info", "json")

	ctx := context.Background()

	db, err := postgres.New(ctx, cfg.Database.DSN(), 8)
	if err != nil {
		log.Fatalf("db: %v", err)
	}
	defer db.Close()
	repo := postgres.NewTargetRepo(db, cfg.Proximity.IndexPadRatio)

	manifestPath := "manifest.json"
	if len(os.Args) > 1 {
		manifestPath = os.Args[1]
	}

	data, err := os.ReadFile(manifestPath)
	if err != nil {
		log.Fatalf("read manifest: %v", err)
	}

	var manifest Manifest
	if err := json.Unmarshal(data, &manifest); err != nil {
		log.Fatalf("parse manifest: %v", err)
	}

	slog.Info("target ingestion starting", "sources", len(manifest.Sources), "manifest", manifest.Source)

	// Filter sources (optional CLI arg: name list)
	nameFilter := map[string]bool{}
	if len(os.Args) > 2 {
		for _, s := range strings.Split(os.Args[2], ",") {
			nameFilter[strings.TrimSpace(s)] = true
		}
	}

	client := &http.Client{Timeout: 120 * time.Second}

	var wg sync.WaitGroup
	sem := make(chan struct{}, 4) // max 4 concurrent downloads

	for _, src := range manifest.Sources {
		if len(nameFilter) > 0 && !nameFilter[src.Name] {
			continue
		}

		wg.Add(1)
		go func(s SourceEntry) {
			defer wg.Done()
			sem <- struct{}{}
			defer func() { <-sem }()

			n, err := ingestSource(ctx, repo, client, s)
			if err != nil {
				slog.Error("source failed", "source", s.Name, "error", err)
				return
			}
			slog.Info("source ingested", "source", s.Name, "targets", n)
		}(src)
	}

	wg.Wait()
	slog.Info("ingestion complete")
}

// ---------------------------------------------------------------------------
// Per-source ingestion
// ---------------------------------------------------------------------------

type targetWriter interface {
	Upsert(ctx context.Context, targets ...domain.TargetPoint) error
}

func ingestSource(ctx context.Context, repo targetWriter, client *http.Client, src SourceEntry) (int, error) {
	body, err := fetch(ctx, client, src.Location)
	if err != nil {
		return 0, err
	}

	targets, err := decodeTargets(body, sourceFormat(src))
	if err != nil {
		return 0, err
	}
	if src.IDPrefix != "" {
		for i := range targets {
			targets[i].ID = src.IDPrefix + targets[i].ID
		}
	}

	for start := 0; start < len(targets); start += batchSize {
		end := min(start+batchSize, len(targets))
		if err := repo.Upsert(ctx, targets[start:end]...); err != nil {
			return start, fmt.Errorf("upsert batch at %d: %w", start, err)
		}
	}
	return len(targets), nil
}

func fetch(ctx context.Context, client *http.Client, location string) ([]byte, error) {
	if !strings.HasPrefix(location, "http://") && !strings.HasPrefix(location, "https://") {
		return os.ReadFile(location)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, location, nil)
	if err != nil {
		return nil, err
	}
	resp, err := client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("download: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("HTTP %d for %s", resp.StatusCode, location)
	}
	return io.ReadAll(resp.Body)
}

func sourceFormat(src SourceEntry) string {
	if src.Format != "" {
		return strings.ToLower(src.Format)
	}
	loc := strings.ToLower(src.Location)
	switch {
	case strings.HasSuffix(loc, ".zip"):
		return "gtfs"
	case strings.HasSuffix(loc, ".csv"), strings.HasSuffix(loc, ".txt"):
		return "csv"
	default:
		return "yaml"
	}
}

func decodeTargets(body []byte, format string) ([]domain.TargetPoint, error) {
	switch format {
	case "yaml", "yml":
		return memory.ParseSeed(body)
	case "csv":
		return parseCSV(bytes.NewReader(body))
	case "gtfs":
		zr, err := zip.NewReader(bytes.NewReader(body), int64(len(body)))
		if err != nil {
			return nil, fmt.Errorf("open zip: %w", err)
		}
		f, err := openCSV(zr, "stops.txt")
		if err != nil {
			return nil, err
		}
		defer f.Close()
		return parseCSV(f)
	default:
		return nil, fmt.Errorf("unknown source format %q", format)
	}
}

func openCSV(zr *zip.Reader, name string) (io.ReadCloser, error) {
	for _, f := range zr.File {
		if strings.EqualFold(f.Name, name) {
			return f.Open()
		}
	}
	return nil, fmt.Errorf("file %s not found in zip", name)
}
