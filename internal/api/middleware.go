package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/happydiving/pricing-engine/internal/rate"
)

// RateLimit rejects clients that exceed their per-IP token bucket.
func RateLimit(mgr *rate.Manager) fiber.Handler {
	return func(c *fiber.Ctx) error {
		if mgr.Allow(c.IP()) {
			return c.Next()
		}
		return c.Status(fiber.StatusTooManyRequests).JSON(ErrorResponse{
			ErrorType: "rate_limited",
			Message:   "Too many requests",
		})
	}
}
