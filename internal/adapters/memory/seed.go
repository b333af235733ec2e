package memory

import (
	"fmt"
	"os"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// seedFile is the on-disk layout of a target seed file:
//
//	targets:
//	  - id: marco-zero
//	    name: Marco Zero
//	    latitude: -8.0631
//	    longitude: -34.8711
//	    attributes:
//	      reward: 50
type seedFile struct {
	Targets []seedTarget `yaml:"targets"`
}

type seedTarget struct {
	ID         string         `yaml:"id"`
	Name       string         `yaml:"name"`
	Latitude   *float64       `yaml:"latitude"`
	Longitude  *float64       `yaml:"longitude"`
	Attributes map[string]any `yaml:"attributes"`
}

// LoadSeedFile reads targets from a YAML seed file.
func LoadSeedFile(path string) ([]domain.TargetPoint, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read seed file: %w", err)
	}
	return ParseSeed(data)
}

// ParseSeed decodes the YAML seed format. Duplicate ids are rejected.
func ParseSeed(data []byte) ([]domain.TargetPoint, error) {
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("parse seed file: %w", err)
	}

	seen := make(map[string]bool, len(f.Targets))
	out := make([]domain.TargetPoint, 0, len(f.Targets))
	for i, t := range f.Targets {
		if t.ID == "" {
			return nil, fmt.Errorf("seed target #%d: %w: id", i, domain.ErrMissingField)
		}
		if t.Latitude == nil || t.Longitude == nil {
			return nil, fmt.Errorf("seed target %s: %w: latitude, longitude", t.ID, domain.ErrMissingField)
		}
		if err := domain.ValidateCoordinates(*t.Latitude, *t.Longitude); err != nil {
			return nil, fmt.Errorf("seed target %s: %w", t.ID, err)
		}
		if seen[t.ID] {
			return nil, fmt.Errorf("seed target %s: duplicate id", t.ID)
		}
		seen[t.ID] = true

		out = append(out, domain.TargetPoint{
			ID:         t.ID,
			Name:       t.Name,
			Position:   domain.GeoPoint{Lat: *t.Latitude, Lon: *t.Longitude},
			Attributes: t.Attributes,
		})
	}
	return out, nil
}
