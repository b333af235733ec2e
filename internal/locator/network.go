package locator

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// NetworkOptions configures retries of the network lookup.
type NetworkOptions struct {
	MaxRetries int
	BaseDelay  time.Duration
	MaxDelay   time.Duration
}

// DefaultNetworkOptions returns the retry settings used by the CLI.
func DefaultNetworkOptions() NetworkOptions {
	return NetworkOptions{
		MaxRetries: 2,
		BaseDelay:  200 * time.Millisecond,
		MaxDelay:   2 * time.Second,
	}
}

// HTTPNetworkSource resolves a network-inferred position through the
// server's GET /v1/locate endpoint.
type HTTPNetworkSource struct {
	endpoint string
	client   *http.Client
	executor failsafe.Executor[*http.Response]
}

// NewHTTPNetworkSource creates a source for the API at baseURL.
// A nil client uses http.DefaultClient.
//
//nolint:bodyclose // [*http.Response] is a type parameter here
func NewHTTPNetworkSource(baseURL string, client *http.Client, opts NetworkOptions) *HTTPNetworkSource {
	if client == nil {
		client = http.DefaultClient
	}
	if opts.MaxRetries < 0 {
		opts.MaxRetries = 0
	}
	if opts.BaseDelay <= 0 {
		opts.BaseDelay = 100 * time.Millisecond
	}
	if opts.MaxDelay < opts.BaseDelay {
		opts.MaxDelay = opts.BaseDelay
	}

	retry := retrypolicy.NewBuilder[*http.Response]().
		WithBackoff(opts.BaseDelay, opts.MaxDelay).
		WithMaxRetries(opts.MaxRetries).
		WithJitterFactor(0.1).
		HandleIf(func(resp *http.Response, err error) bool {
			if err != nil {
				return true
			}
			return resp != nil && (resp.StatusCode >= 500 && resp.StatusCode != http.StatusServiceUnavailable)
		}).
		Build()

	return &HTTPNetworkSource{
		endpoint: strings.TrimRight(baseURL, "/") + "/v1/locate",
		client:   client,
		executor: failsafe.With(retry),
	}
}

// Locate implements NetworkSource.
func (s *HTTPNetworkSource) Locate(ctx context.Context) (domain.Coordinate, error) {
	resp, err := s.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, s.endpoint, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		resp, err := s.client.Do(req)
		if err != nil {
			return nil, err
		}
		if resp.StatusCode >= 500 {
			// only the status is inspected on retried responses
			_, _ = io.Copy(io.Discard, resp.Body)
			resp.Body.Close()
		}
		return resp, nil
	})
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) {
			return domain.Coordinate{}, fmt.Errorf("%w: network lookup: %v", domain.ErrGeolocationTimeout, err)
		}
		return domain.Coordinate{}, fmt.Errorf("%w: network lookup: %v", domain.ErrGeolocationUnavailable, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return domain.Coordinate{}, fmt.Errorf("%w: network lookup returned %d", domain.ErrGeolocationUnavailable, resp.StatusCode)
	}

	var fix domain.Coordinate
	if err := json.NewDecoder(io.LimitReader(resp.Body, 1<<16)).Decode(&fix); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: decode network fix: %v", domain.ErrGeolocationUnavailable, err)
	}
	if err := fix.Validate(); err != nil {
		return domain.Coordinate{}, fmt.Errorf("%w: %v", domain.ErrGeolocationUnavailable, err)
	}
	return fix, nil
}
