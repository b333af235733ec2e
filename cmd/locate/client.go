package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// apiClient calls the proximity endpoints of a running API server.
type apiClient struct {
	base string
	http *http.Client
}

func newAPIClient(base string, client *http.Client) *apiClient {
	return &apiClient{base: strings.TrimRight(base, "/"), http: client}
}

func (c *apiClient) validate(ctx context.Context, fix domain.Coordinate, targetID string, radius float64) (json.RawMessage, error) {
	body := map[string]any{
		"latitude":  fix.Latitude,
		"longitude": fix.Longitude,
		"target_id": targetID,
	}
	if radius > 0 {
		body["radius_meters"] = radius
	}
	payload, err := json.Marshal(body)
	if err != nil {
		return nil, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+"/v1/proximity/validate", bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req)
}

func (c *apiClient) nearest(ctx context.Context, fix domain.Coordinate, radius float64, limit int) (json.RawMessage, error) {
	q := url.Values{}
	q.Set("lat", strconv.FormatFloat(fix.Latitude, 'f', -1, 64))
	q.Set("lon", strconv.FormatFloat(fix.Longitude, 'f', -1, 64))
	if radius > 0 {
		q.Set("radius", strconv.FormatFloat(radius, 'f', -1, 64))
	}
	if limit > 0 {
		q.Set("limit", strconv.Itoa(limit))
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.base+"/v1/proximity/nearest?"+q.Encode(), nil)
	if err != nil {
		return nil, err
	}
	return c.do(req)
}

func (c *apiClient) do(req *http.Request) (json.RawMessage, error) {
	req.Header.Set("Accept", "application/json")
	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, fmt.Errorf("read response: %w", err)
	}
	// proximity errors are JSON too; surface them as results
	if resp.StatusCode >= 500 || !json.Valid(data) {
		return nil, fmt.Errorf("%s %s: HTTP %d: %s", req.Method, req.URL.Path, resp.StatusCode, bytes.TrimSpace(data))
	}
	return data, nil
}
