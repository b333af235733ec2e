package http

import (
	"strings"

	"github.com/gofiber/fiber/v2"
)

// CachingMiddleware sets Cache-Control headers on GET responses based on endpoint.
// Adds sensible defaults if not already set by the handler.
func CachingMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		err := c.Next()

		// Only set on GET requests
		if c.Method() != fiber.MethodGet {
			return err
		}

		// Don't override if already set
		if existing := string(c.Response().Header.Peek(fiber.HeaderCacheControl)); existing != "" {
			return err
		}

		if ttl := cacheControlFor(c.Path()); ttl != "" {
			c.Set(fiber.HeaderCacheControl, ttl)
		}
		return err
	}
}

func cacheControlFor(path string) string {
	switch {
	case path == "/v1/health" || path == "/v1/ready":
		return "public, max-age=10"

	case path == "/metrics":
		return "no-cache"

	// results depend on the caller's position and the registry at query time
	case strings.HasPrefix(path, "/v1/proximity/"), path == "/v1/locate":
		return "no-store"

	case strings.HasPrefix(path, "/v1/targets"):
		return "public, max-age=60"

	case strings.HasPrefix(path, "/docs"):
		return "public, max-age=3600"
	}
	return ""
}
