package domain

import (
	"time"
)

// TargetPoint is a registered location that a coordinate can be validated against.
// Values handed out by a registry are snapshots and must not be mutated.
type TargetPoint struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Position   GeoPoint       `json:"position"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// TargetMatch pairs a target with its distance from the queried coordinate.
type TargetMatch struct {
	Target         TargetPoint `json:"target"`
	DistanceMeters float64     `json:"distance_meters"`
}

// ValidationResult is the outcome of a single-target proximity check.
// It is produced fresh for every call and never persisted.
type ValidationResult struct {
	Valid          bool        `json:"valid"`
	DistanceMeters float64     `json:"distance_meters"`
	RadiusMeters   float64     `json:"radius_meters"`
	Target         TargetPoint `json:"target"`
	EvaluatedAt    time.Time   `json:"evaluated_at"`
}

// NearestResult is the outcome of a brute-force scan over the full registry.
// Nearest is nil when nothing lies within the radius.
type NearestResult struct {
	Nearest      *TargetPoint  `json:"nearest"`
	WithinRadius []TargetMatch `json:"within_radius"`
	TotalScanned int           `json:"total_scanned"`
}

// IndexedResult is the outcome of an index-assisted query.
type IndexedResult struct {
	WithinRadius    []TargetMatch `json:"within_radius"`
	TotalCandidates int           `json:"total_candidates"`
}
