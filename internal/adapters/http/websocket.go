package http

import (
	"context"
	"encoding/json"
	"strconv"
	"sync"
	"time"

	"github.com/gofiber/websocket/v2"
	"github.com/google/uuid"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/pkg/logging"
	"github.com/samirrijal/geofence/internal/pkg/metrics"
)

// wsContextLocal carries the upgrade request's context (request-scoped logger,
// trace) into the websocket handler, which only sees Locals.
const wsContextLocal = "geofence.request_ctx"

// connContext returns a context scoped to the websocket connection. It keeps
// the values of the upgrade request but not its cancellation.
func connContext(c *websocket.Conn) (context.Context, context.CancelFunc) {
	parent := context.Background()
	if rc, ok := c.Locals(wsContextLocal).(context.Context); ok && rc != nil {
		parent = context.WithoutCancel(rc)
	}
	return context.WithCancel(parent)
}

// trackFrame is a position report sent by the client.
type trackFrame struct {
	Latitude        *float64 `json:"latitude"`
	Longitude       *float64 `json:"longitude"`
	PrecisionMeters float64  `json:"precision_meters"`
}

// trackUpdate is sent back for every accepted frame.
type trackUpdate struct {
	SessionID    string            `json:"session_id"`
	LastKnown    domain.Coordinate `json:"last_known"`
	Nearest      *TargetView       `json:"nearest"`
	WithinRadius []MatchView       `json:"within_radius"`
	TotalScanned int               `json:"total_scanned"`
}

type trackError struct {
	SessionID string `json:"session_id"`
	ErrorKind string `json:"error_kind"`
	Message   string `json:"message"`
}

// TrackHandler returns a handler that keeps a server-side tracking session per
// connection. Clients send {"latitude":..,"longitude":..,"precision_meters":..}
// frames and receive the nearest targets within ?radius= for each of them.
func TrackHandler(deps *Dependencies) func(*websocket.Conn) {
	return func(c *websocket.Conn) {
		defer c.Close()

		metrics.ActiveWebSockets.Inc()
		defer metrics.ActiveWebSockets.Dec()

		ctx, cancel := connContext(c)
		defer cancel()

		sessionID := uuid.NewString()
		log := logging.FromContext(ctx).With("session_id", sessionID, "remote_addr", c.RemoteAddr().String())
		ctx = logging.WithLogger(ctx, log)

		limits := deps.limits()
		radius := limits.DefaultRadiusMeters
		if raw := c.Query("radius"); raw != "" {
			r, err := parseRadius(raw, limits)
			if err != nil {
				_, _, kind, msg := classify(err)
				writeWS(c, nil, trackError{SessionID: sessionID, ErrorKind: kind, Message: msg})
				return
			}
			radius = r
		}
		limit, _ := strconv.Atoi(c.Query("limit"))
		limit = clampLimit(limit, limits)

		log.Info("tracking session started", "radius_meters", radius)

		var mu sync.Mutex

		// Keep-alive ping
		done := make(chan struct{})
		defer close(done)
		go func() {
			ticker := time.NewTicker(30 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ticker.C:
					mu.Lock()
					err := c.WriteMessage(websocket.PingMessage, nil)
					mu.Unlock()
					if err != nil {
						return
					}
				case <-done:
					return
				}
			}
		}()

		frames := 0
		for {
			_, msg, err := c.ReadMessage()
			if err != nil {
				break
			}

			var f trackFrame
			if err := json.Unmarshal(msg, &f); err != nil {
				writeWS(c, &mu, trackError{SessionID: sessionID, ErrorKind: KindMalformedRequest, Message: "invalid JSON"})
				continue
			}
			if f.Latitude == nil || f.Longitude == nil {
				writeWS(c, &mu, trackError{SessionID: sessionID, ErrorKind: KindMissingField, Message: "latitude and longitude are required"})
				continue
			}

			coord := domain.Coordinate{
				Latitude:        *f.Latitude,
				Longitude:       *f.Longitude,
				PrecisionMeters: f.PrecisionMeters,
				CapturedAt:      time.Now().UTC(),
			}
			if err := coord.Validate(); err != nil {
				writeWS(c, &mu, trackError{SessionID: sessionID, ErrorKind: KindInvalidCoordinate, Message: err.Error()})
				continue
			}

			res, err := deps.Nearest.FindNearest(ctx, coord, radius, limit)
			if err != nil {
				_, _, kind, m := classify(err)
				if kind == KindInternalComputation {
					log.Error("tracking search failed", "error", err)
				}
				writeWS(c, &mu, trackError{SessionID: sessionID, ErrorKind: kind, Message: m})
				continue
			}

			frames++
			v := nearestView(res)
			writeWS(c, &mu, trackUpdate{
				SessionID:    sessionID,
				LastKnown:    coord,
				Nearest:      v.Nearest,
				WithinRadius: v.WithinRadius,
				TotalScanned: v.TotalScanned,
			})
		}

		log.Info("tracking session stopped", "frames", frames)
	}
}

// writeWS serialises v and writes it as a text frame. mu may be nil before
// the ping goroutine starts.
func writeWS(c *websocket.Conn, mu *sync.Mutex, v interface{}) {
	data, err := json.Marshal(v)
	if err != nil {
		return
	}
	if mu != nil {
		mu.Lock()
		defer mu.Unlock()
	}
	_ = c.WriteMessage(websocket.TextMessage, data)
}
