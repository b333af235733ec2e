package locator

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/samirrijal/geofence/internal/core/domain"
)

// TrackPoint is one step of a recorded track. A point with Error set replays a
// platform failure instead of a fix.
type TrackPoint struct {
	Latitude        float64       `yaml:"latitude"`
	Longitude       float64       `yaml:"longitude"`
	PrecisionMeters float64       `yaml:"precision_meters"`
	Delay           time.Duration `yaml:"delay"`
	Error           string        `yaml:"error,omitempty"`
}

// Track is a recorded sequence of position fixes.
type Track struct {
	Points []TrackPoint `yaml:"points"`
}

// Track error names accepted in TrackPoint.Error.
const (
	TrackErrPermissionDenied = "permission_denied"
	TrackErrTimeout          = "timeout"
	TrackErrUnavailable      = "unavailable"
)

// LoadTrack reads a YAML track file.
func LoadTrack(path string) (*Track, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read track: %w", err)
	}
	return ParseTrack(data)
}

// ParseTrack decodes a YAML track.
func ParseTrack(data []byte) (*Track, error) {
	var tr Track
	if err := yaml.Unmarshal(data, &tr); err != nil {
		return nil, fmt.Errorf("parse track: %w", err)
	}
	for i, p := range tr.Points {
		if p.Error != "" {
			if trackError(p.Error) == nil {
				return nil, fmt.Errorf("track point #%d: unknown error %q", i, p.Error)
			}
			continue
		}
		if err := domain.ValidateCoordinates(p.Latitude, p.Longitude); err != nil {
			return nil, fmt.Errorf("track point #%d: %w", i, err)
		}
	}
	return &tr, nil
}

func trackError(name string) error {
	switch name {
	case TrackErrPermissionDenied:
		return domain.ErrGeolocationPermissionDenied
	case TrackErrTimeout:
		return domain.ErrGeolocationTimeout
	case TrackErrUnavailable:
		return domain.ErrGeolocationUnavailable
	default:
		return nil
	}
}

// ReplaySource is a PositionSource that plays a Track back in real time.
// Single fixes and watches consume the same cursor.
type ReplaySource struct {
	now func() time.Time

	mu     sync.Mutex
	points []TrackPoint
	next   int
}

// NewReplaySource creates a source replaying tr from its first point.
func NewReplaySource(tr *Track) *ReplaySource {
	var points []TrackPoint
	if tr != nil {
		points = tr.Points
	}
	return &ReplaySource{points: points, now: time.Now}
}

func (r *ReplaySource) take() (TrackPoint, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.next >= len(r.points) {
		return TrackPoint{}, false
	}
	p := r.points[r.next]
	r.next++
	return p, true
}

func (r *ReplaySource) fix(p TrackPoint) domain.Coordinate {
	return domain.Coordinate{
		Latitude:        p.Latitude,
		Longitude:       p.Longitude,
		PrecisionMeters: p.PrecisionMeters,
		CapturedAt:      r.now().UTC(),
	}
}

// CurrentPosition implements PositionSource.
func (r *ReplaySource) CurrentPosition(ctx context.Context, _ PositionOptions) (domain.Coordinate, error) {
	p, ok := r.take()
	if !ok {
		return domain.Coordinate{}, fmt.Errorf("%w: track exhausted", domain.ErrGeolocationUnavailable)
	}
	if err := sleep(ctx, p.Delay); err != nil {
		return domain.Coordinate{}, err
	}
	if p.Error != "" {
		return domain.Coordinate{}, trackError(p.Error)
	}
	return r.fix(p), nil
}

// Watch implements PositionSource. A point whose delay exceeds opts.Timeout
// first reports a timeout and is then delivered late. The watch ends after a
// non-timeout error or when the track runs out.
func (r *ReplaySource) Watch(opts PositionOptions, onPosition func(domain.Coordinate), onError func(error)) (WatchHandle, error) {
	ctx, cancel := context.WithCancel(context.Background())
	w := &replayWatch{cancel: cancel, done: make(chan struct{})}
	go r.run(ctx, w, opts, onPosition, onError)
	return w, nil
}

func (r *ReplaySource) run(ctx context.Context, w *replayWatch, opts PositionOptions, onPosition func(domain.Coordinate), onError func(error)) {
	defer close(w.done)
	for {
		p, ok := r.take()
		if !ok {
			return
		}

		delay := p.Delay
		if opts.Timeout > 0 && delay > opts.Timeout {
			if sleep(ctx, opts.Timeout) != nil || !w.active() {
				return
			}
			onError(fmt.Errorf("%w: no fix within %s", domain.ErrGeolocationTimeout, opts.Timeout))
			delay -= opts.Timeout
		}
		if sleep(ctx, delay) != nil || !w.active() {
			return
		}

		if p.Error != "" {
			err := trackError(p.Error)
			onError(err)
			if !errors.Is(err, domain.ErrGeolocationTimeout) {
				return
			}
			continue
		}
		onPosition(r.fix(p))
	}
}

type replayWatch struct {
	cancel context.CancelFunc
	done   chan struct{}

	mu      sync.Mutex
	cleared bool
}

// Clear implements WatchHandle.
func (w *replayWatch) Clear() {
	w.mu.Lock()
	w.cleared = true
	w.mu.Unlock()
	w.cancel()
}

// Done is closed when the replay goroutine exits.
func (w *replayWatch) Done() <-chan struct{} {
	return w.done
}

func (w *replayWatch) active() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return !w.cleared
}

func sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}
