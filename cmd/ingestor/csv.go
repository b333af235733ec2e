package main

import (
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// column aliases; the second name of each pair is the GTFS stops.txt header
var (
	idColumns   = []string{"id", "stop_id"}
	nameColumns = []string{"name", "stop_name"}
	latColumns  = []string{"latitude", "stop_lat"}
	lonColumns  = []string{"longitude", "stop_lon"}
)

// parseCSV reads targets from a headered CSV. Columns other than id, name,
// latitude and longitude become attributes. Rows without an id or with an
// invalid position are skipped; duplicate ids keep the last row.
func parseCSV(r io.Reader) ([]domain.TargetPoint, error) {
	reader := csv.NewReader(r)
	reader.LazyQuotes = true
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return nil, fmt.Errorf("read header: %w", err)
	}
	cols := indexColumns(header)

	idCol, ok := firstColumn(cols, idColumns)
	if !ok {
		return nil, fmt.Errorf("%w: id column", domain.ErrMissingField)
	}
	latCol, okLat := firstColumn(cols, latColumns)
	lonCol, okLon := firstColumn(cols, lonColumns)
	if !okLat || !okLon {
		return nil, fmt.Errorf("%w: latitude and longitude columns", domain.ErrMissingField)
	}
	nameCol, _ := firstColumn(cols, nameColumns)

	known := map[string]bool{idCol: true, nameCol: true, latCol: true, lonCol: true}

	index := map[string]int{}
	var out []domain.TargetPoint
	for {
		record, err := reader.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			continue
		}

		id := getField(record, cols, idCol)
		if id == "" {
			continue
		}
		lat, lon, err := domain.ParseCoordinates(getField(record, cols, latCol), getField(record, cols, lonCol))
		if err != nil {
			continue
		}

		t := domain.TargetPoint{
			ID:       id,
			Name:     getField(record, cols, nameCol),
			Position: domain.GeoPoint{Lat: lat, Lon: lon},
		}
		for col := range cols {
			if known[col] {
				continue
			}
			if v := getField(record, cols, col); v != "" {
				if t.Attributes == nil {
					t.Attributes = map[string]any{}
				}
				t.Attributes[col] = attributeValue(v)
			}
		}

		if i, dup := index[id]; dup {
			out[i] = t
			continue
		}
		index[id] = len(out)
		out = append(out, t)
	}
	return out, nil
}

func indexColumns(header []string) map[string]int {
	m := make(map[string]int, len(header))
	for i, col := range header {
		// Strip BOM from first column
		col = strings.TrimPrefix(col, "\xef\xbb\xbf")
		m[strings.TrimSpace(col)] = i
	}
	return m
}

func firstColumn(cols map[string]int, names []string) (string, bool) {
	for _, n := range names {
		if _, ok := cols[n]; ok {
			return n, true
		}
	}
	return "", false
}

func getField(record []string, cols map[string]int, name string) string {
	idx, ok := cols[name]
	if !ok || idx >= len(record) {
		return ""
	}
	return strings.TrimSpace(record[idx])
}

// attributeValue keeps numbers numeric so they round-trip through JSONB.
func attributeValue(s string) any {
	if f, err := strconv.ParseFloat(s, 64); err == nil {
		return f
	}
	return s
}
