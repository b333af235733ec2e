package http

import (
	"errors"

	"github.com/gofiber/fiber/v2"

	"github.com/samirrijal/geofence/internal/core/domain"
	"github.com/samirrijal/geofence/internal/locator"
)

// APIError is a structured error response.
type APIError struct {
	Status    int    `json:"status"`
	Code      string `json:"code"`    // Error code: bad_request, not_found, internal_error, etc.
	Message   string `json:"message"` // Human-readable message
	RequestID string `json:"request_id,omitempty"`
}

// ProximityError is returned by the proximity endpoints. Valid is always false
// so clients can branch on it without looking at the status code.
type ProximityError struct {
	Valid     bool   `json:"valid"`
	ErrorKind string `json:"error_kind"`
	APIError
}

// Error kinds reported by the proximity endpoints.
const (
	KindInvalidCoordinate   = "invalid_coordinate"
	KindMissingField        = "missing_field"
	KindTargetNotFound      = "target_not_found"
	KindInternalComputation = "internal_computation"
	KindMalformedRequest    = "malformed_request"
	KindLocationUnavailable = "geolocation_unavailable"
)

// newError builds a JSON error response with a request ID.
func newError(c *fiber.Ctx, status int, code string, message string) error {
	return c.Status(status).JSON(APIError{
		Status:    status,
		Code:      code,
		Message:   message,
		RequestID: requestID(c),
	})
}

func requestID(c *fiber.Ctx) string {
	reqID, _ := c.Locals("requestid").(string)
	return reqID
}

// errBadRequest returns a 400 error.
func errBadRequest(c *fiber.Ctx, msg string) error {
	return newError(c, 400, "bad_request", msg)
}

// errNotFound returns a 404 error.
func errNotFound(c *fiber.Ctx, msg string) error {
	return newError(c, 404, "not_found", msg)
}

// errInternal returns a 500 error.
func errInternal(c *fiber.Ctx, msg string) error {
	return newError(c, 500, "internal_error", msg)
}

// classify maps an error to its HTTP status, APIError code and error kind.
// Unknown errors are reported as internal without exposing their text.
func classify(err error) (status int, code, kind, message string) {
	switch {
	case errors.Is(err, domain.ErrMissingField):
		return 400, "bad_request", KindMissingField, err.Error()
	case errors.Is(err, domain.ErrInvalidCoordinate):
		return 400, "bad_request", KindInvalidCoordinate, err.Error()
	case errors.Is(err, domain.ErrTargetNotFound):
		return 404, "not_found", KindTargetNotFound, "target not found"
	case errors.Is(err, domain.ErrGeolocationUnavailable):
		return 503, "unavailable", KindLocationUnavailable, locator.UserMessage(err)
	default:
		return 500, "internal_error", KindInternalComputation, "proximity could not be computed"
	}
}

// errProximity writes err as a ProximityError.
func errProximity(c *fiber.Ctx, err error) error {
	status, code, kind, msg := classify(err)
	return c.Status(status).JSON(ProximityError{
		Valid:     false,
		ErrorKind: kind,
		APIError: APIError{
			Status:    status,
			Code:      code,
			Message:   msg,
			RequestID: requestID(c),
		},
	})
}

// errMalformed reports a body that could not be decoded.
func errMalformed(c *fiber.Ctx, msg string) error {
	return c.Status(400).JSON(ProximityError{
		ErrorKind: KindMalformedRequest,
		APIError: APIError{
			Status:    400,
			Code:      "bad_request",
			Message:   msg,
			RequestID: requestID(c),
		},
	})
}
