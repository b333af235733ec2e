package postgres

import (
	"context"
	"errors"
	"fmt"

	"github.com/jackc/pgx/v5"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/ports"
)

// TargetRepo implements ports.TargetRegistry on a PostGIS targets table.
type TargetRepo struct {
	db       *DB
	padRatio float64
}

var _ ports.TargetRegistry = (*TargetRepo)(nil)

// NewTargetRepo creates a new TargetRepo. padRatio widens the ST_DWithin
// radius so the spherical prefilter never drops a target the haversine check
// would accept.
func NewTargetRepo(db *DB, padRatio float64) *TargetRepo {
	if padRatio < 0 {
		padRatio = 0
	}
	return &TargetRepo{db: db, padRatio: padRatio}
}

const targetColumns = `
	id, name,
	ST_Y(location::geometry) AS lat,
	ST_X(location::geometry) AS lon,
	COALESCE(attributes, '{}')`

func scanTarget(row pgx.Row) (domain.TargetPoint, error) {
	var t domain.TargetPoint
	err := row.Scan(&t.ID, &t.Name, &t.Position.Lat, &t.Position.Lon, &t.Attributes)
	return t, err
}

func collectTargets(rows pgx.Rows) ([]domain.TargetPoint, error) {
	defer rows.Close()

	targets := []domain.TargetPoint{}
	for rows.Next() {
		t, err := scanTarget(rows)
		if err != nil {
			return nil, err
		}
		targets = append(targets, t)
	}
	return targets, rows.Err()
}

// GetByID returns a target by id.
func (r *TargetRepo) GetByID(ctx context.Context, id string) (*domain.TargetPoint, error) {
	t, err := scanTarget(r.db.Pool.QueryRow(ctx, `SELECT`+targetColumns+` FROM targets WHERE id = $1`, id))
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return nil, fmt.Errorf("target %q: %w", id, domain.ErrTargetNotFound)
		}
		return nil, fmt.Errorf("get target: %w", err)
	}
	return &t, nil
}

// List returns all targets in creation order.
func (r *TargetRepo) List(ctx context.Context) ([]domain.TargetPoint, error) {
	rows, err := r.db.Pool.Query(ctx, `SELECT`+targetColumns+` FROM targets ORDER BY created_at, id`)
	if err != nil {
		return nil, fmt.Errorf("list targets: %w", err)
	}
	return collectTargets(rows)
}

// FindWithinRadius returns targets within the padded radius using the GiST
// index on location. Distances are spherical, matching the haversine check.
func (r *TargetRepo) FindWithinRadius(ctx context.Context, center domain.GeoPoint, radiusMeters float64) ([]domain.TargetPoint, error) {
	padded := radiusMeters*(1+r.padRatio) + 1

	rows, err := r.db.Pool.Query(ctx, `SELECT`+targetColumns+`
		FROM targets
		WHERE ST_DWithin(location, ST_SetSRID(ST_MakePoint($1, $2), 4326)::geography, $3, false)
		ORDER BY created_at, id
	`, center.Lon, center.Lat, padded)
	if err != nil {
		return nil, fmt.Errorf("find targets within radius: %w", err)
	}
	return collectTargets(rows)
}

// Upsert inserts or updates targets in one batch. Used by seeding tools and tests.
func (r *TargetRepo) Upsert(ctx context.Context, targets ...domain.TargetPoint) error {
	batch := &pgx.Batch{}
	for _, t := range targets {
		attrs := t.Attributes
		if attrs == nil {
			attrs = map[string]any{}
		}
		batch.Queue(`
			INSERT INTO targets (id, name, location, attributes)
			VALUES ($1, $2, ST_SetSRID(ST_MakePoint($3, $4), 4326)::geography, $5)
			ON CONFLICT (id) DO UPDATE
			SET name = EXCLUDED.name, location = EXCLUDED.location,
			    attributes = EXCLUDED.attributes, updated_at = now()
		`, t.ID, t.Name, t.Position.Lon, t.Position.Lat, attrs)
	}
	br := r.db.Pool.SendBatch(ctx, batch)
	defer br.Close()
	for range targets {
		if _, err := br.Exec(); err != nil {
			return fmt.Errorf("batch exec: %w", err)
		}
	}
	return nil
}

// Delete removes a target. Deleting an unknown id is not an error.
func (r *TargetRepo) Delete(ctx context.Context, id string) error {
	if _, err := r.db.Pool.Exec(ctx, `DELETE FROM targets WHERE id = $1`, id); err != nil {
		return fmt.Errorf("delete target: %w", err)
	}
	return nil
}
