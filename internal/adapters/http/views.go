package http

import (
	"bytes"
	"encoding/json"
	"time"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// TargetView is the wire shape of a target point.
type TargetView struct {
	ID         string         `json:"id"`
	Name       string         `json:"name"`
	Latitude   float64        `json:"latitude"`
	Longitude  float64        `json:"longitude"`
	Attributes map[string]any `json:"attributes,omitempty"`
}

// MatchView is a target together with its distance from the queried point.
type MatchView struct {
	TargetView
	DistanceMeters float64 `json:"distance_meters"`
}

// ValidationView is the response of POST /v1/proximity/validate.
type ValidationView struct {
	Valid          bool       `json:"valid"`
	DistanceMeters float64    `json:"distance_meters"`
	RadiusMeters   float64    `json:"radius_meters"`
	Target         TargetView `json:"target"`
	EvaluatedAt    string     `json:"evaluated_at"`
}

// NearestView is the response of GET /v1/proximity/nearest.
type NearestView struct {
	Nearest      *TargetView `json:"nearest"`
	WithinRadius []MatchView `json:"within_radius"`
	TotalScanned int         `json:"total_scanned"`
}

// IndexedView is the response of GET /v1/proximity/indexed.
type IndexedView struct {
	WithinRadius    []MatchView `json:"within_radius"`
	TotalCandidates int         `json:"total_candidates"`
}

func targetView(t domain.TargetPoint) TargetView {
	return TargetView{
		ID:         t.ID,
		Name:       t.Name,
		Latitude:   t.Position.Lat,
		Longitude:  t.Position.Lon,
		Attributes: t.Attributes,
	}
}

func matchViews(matches []domain.TargetMatch) []MatchView {
	out := make([]MatchView, 0, len(matches))
	for _, m := range matches {
		out = append(out, MatchView{TargetView: targetView(m.Target), DistanceMeters: m.DistanceMeters})
	}
	return out
}

func validationView(r *domain.ValidationResult) ValidationView {
	return ValidationView{
		Valid:          r.Valid,
		DistanceMeters: r.DistanceMeters,
		RadiusMeters:   r.RadiusMeters,
		Target:         targetView(r.Target),
		EvaluatedAt:    r.EvaluatedAt.UTC().Format(time.RFC3339Nano),
	}
}

func nearestView(r *domain.NearestResult) NearestView {
	v := NearestView{WithinRadius: matchViews(r.WithinRadius), TotalScanned: r.TotalScanned}
	if r.Nearest != nil {
		tv := targetView(*r.Nearest)
		v.Nearest = &tv
	}
	return v
}

func indexedView(r *domain.IndexedResult) IndexedView {
	return IndexedView{WithinRadius: matchViews(r.WithinRadius), TotalCandidates: r.TotalCandidates}
}

// flexNumber accepts a JSON number or a numeric string and keeps the raw text,
// so malformed values surface as invalid coordinates instead of decode errors.
type flexNumber struct {
	raw string
	set bool
}

func (f *flexNumber) UnmarshalJSON(b []byte) error {
	b = bytes.TrimSpace(b)
	if bytes.Equal(b, []byte("null")) {
		return nil
	}
	f.set = true
	if len(b) > 0 && b[0] == '"' {
		return json.Unmarshal(b, &f.raw)
	}
	f.raw = string(b)
	return nil
}

// validateBody is the request body of POST /v1/proximity/validate.
type validateBody struct {
	Latitude     flexNumber `json:"latitude"`
	Longitude    flexNumber `json:"longitude"`
	TargetID     string     `json:"target_id"`
	RadiusMeters flexNumber `json:"radius_meters"`
}
