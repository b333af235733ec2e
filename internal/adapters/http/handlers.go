package http

import (
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geofence/internal/adapters/geoip"
	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/core/usecases"
	"github.com/samirrijal/geofence/internal/pkg/logging"
)

// ValidateHandler checks a position against a single target.
func ValidateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		var body validateBody
		if err := json.Unmarshal(c.Body(), &body); err != nil {
			return errMalformed(c, "request body must be a JSON object")
		}

		// missing fields win over malformed ones
		var missing []string
		if !body.Latitude.set {
			missing = append(missing, "latitude")
		}
		if !body.Longitude.set {
			missing = append(missing, "longitude")
		}
		if strings.TrimSpace(body.TargetID) == "" {
			missing = append(missing, "target_id")
		}
		if len(missing) > 0 {
			return errProximity(c, fmt.Errorf("%w: %s", domain.ErrMissingField, strings.Join(missing, ", ")))
		}

		lat, lon, err := domain.ParseCoordinates(body.Latitude.raw, body.Longitude.raw)
		if err != nil {
			return errProximity(c, err)
		}

		limits := deps.limits()
		radius := limits.DefaultRadiusMeters
		if body.RadiusMeters.set {
			if radius, err = parseRadius(body.RadiusMeters.raw, limits); err != nil {
				return errProximity(c, err)
			}
		}

		result, err := deps.Validator.Validate(c.UserContext(), usecases.ValidateRequest{
			Latitude:     &lat,
			Longitude:    &lon,
			TargetID:     body.TargetID,
			RadiusMeters: &radius,
		})
		if err != nil {
			return errProximity(c, err)
		}

		return c.JSON(validationView(result))
	}
}

// NearestHandler scans every target and returns those within the radius.
func NearestHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseProximityQuery(c, deps.limits())
		if err != nil {
			return errProximity(c, err)
		}

		result, err := deps.Nearest.FindNearest(c.UserContext(), q.coord, q.radius, q.limit)
		if err != nil {
			return errProximity(c, err)
		}

		return c.JSON(nearestView(result))
	}
}

// IndexedHandler answers a radius query through the registry's spatial index.
func IndexedHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		q, err := parseProximityQuery(c, deps.limits())
		if err != nil {
			return errProximity(c, err)
		}

		result, err := deps.Indexed.QueryIndexed(c.UserContext(), q.coord, q.radius)
		if err != nil {
			return errProximity(c, err)
		}
		if q.limit > 0 && len(result.WithinRadius) > q.limit {
			result.WithinRadius = result.WithinRadius[:q.limit]
		}

		return c.JSON(indexedView(result))
	}
}

// GetTargetHandler returns a single target snapshot.
func GetTargetHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		id := c.Params("id")
		if id == "" {
			return errBadRequest(c, "target id is required")
		}

		t, err := deps.Targets.GetByID(c.UserContext(), id)
		if err != nil || t == nil {
			if err == nil || errors.Is(err, domain.ErrTargetNotFound) {
				return errNotFound(c, "target not found")
			}
			logging.FromContext(c.UserContext()).Error("get target failed", "target_id", id, "error", err)
			return errInternal(c, "failed to load target")
		}

		return c.JSON(targetView(*t))
	}
}

// ListTargetsHandler returns all targets, paginated.
func ListTargetsHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		targets, err := deps.Targets.List(c.UserContext())
		if err != nil {
			logging.FromContext(c.UserContext()).Error("list targets failed", "error", err)
			return errInternal(c, "failed to list targets")
		}

		offset, limit := pageParams(c)
		targets, pg := paginate(targets, offset, limit)

		views := make([]TargetView, 0, len(targets))
		for _, t := range targets {
			views = append(views, targetView(t))
		}

		SetLinkHeaders(c, pg)
		return c.JSON(PaginatedResponse{Data: views, Pagination: pg})
	}
}

// LocateHandler returns a network-inferred coordinate for the caller.
// The ip query parameter overrides the connection address.
func LocateHandler(deps *Dependencies) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if deps.Locator == nil {
			return errProximity(c, fmt.Errorf("%w: no geoip database loaded", domain.ErrGeolocationUnavailable))
		}

		ip := c.Query("ip", c.IP())
		coord, err := deps.Locator.Lookup(ip)
		switch {
		case err == nil:
			return c.JSON(coord)
		case errors.Is(err, geoip.ErrNoDatabase):
			return errProximity(c, fmt.Errorf("%w: %v", domain.ErrGeolocationUnavailable, err))
		case errors.Is(err, geoip.ErrUnresolvable):
			return c.Status(404).JSON(ProximityError{
				ErrorKind: KindLocationUnavailable,
				APIError: APIError{
					Status:    404,
					Code:      "not_found",
					Message:   "no location is known for this address",
					RequestID: requestID(c),
				},
			})
		default:
			logging.FromContext(c.UserContext()).Error("geoip lookup failed", "ip", ip, "error", err)
			return errInternal(c, "location lookup failed")
		}
	}
}

type proximityQuery struct {
	coord  domain.Coordinate
	radius float64
	limit  int
}

func parseProximityQuery(c *fiber.Ctx, limits Limits) (proximityQuery, error) {
	latRaw, lonRaw := c.Query("lat"), c.Query("lon")
	var missing []string
	if latRaw == "" {
		missing = append(missing, "lat")
	}
	if lonRaw == "" {
		missing = append(missing, "lon")
	}
	if len(missing) > 0 {
		return proximityQuery{}, fmt.Errorf("%w: %s", domain.ErrMissingField, strings.Join(missing, ", "))
	}

	lat, lon, err := domain.ParseCoordinates(latRaw, lonRaw)
	if err != nil {
		return proximityQuery{}, err
	}

	radius := limits.DefaultRadiusMeters
	if raw := c.Query("radius"); raw != "" {
		if radius, err = parseRadius(raw, limits); err != nil {
			return proximityQuery{}, err
		}
	}

	limit := clampLimit(c.QueryInt("limit", 0), limits)

	return proximityQuery{
		coord: domain.Coordinate{
			Latitude:   lat,
			Longitude:  lon,
			CapturedAt: time.Now().UTC(),
		},
		radius: radius,
		limit:  limit,
	}, nil
}

// clampLimit caps an explicit limit at MaxLimit. Zero or less means every
// match within the radius is returned.
func clampLimit(limit int, limits Limits) int {
	if limit <= 0 {
		return 0
	}
	return min(limit, limits.MaxLimit)
}

func parseRadius(raw string, limits Limits) (float64, error) {
	r, err := strconv.ParseFloat(strings.TrimSpace(raw), 64)
	if err != nil {
		return 0, fmt.Errorf("%w: radius %q is not a number", domain.ErrInvalidCoordinate, raw)
	}
	return checkRadius(r, limits)
}

func checkRadius(r float64, limits Limits) (float64, error) {
	if err := domain.ValidateRadius(r); err != nil {
		return 0, err
	}
	if r > limits.MaxRadiusMeters {
		return 0, fmt.Errorf("%w: radius must not exceed %.0f meters", domain.ErrInvalidCoordinate, limits.MaxRadiusMeters)
	}
	return r, nil
}
