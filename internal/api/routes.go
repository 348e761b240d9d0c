package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/nats-io/nats.go"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/happydiving/pricing-engine/internal/rate"
)

// HealthChecker is any dependency that can report its health.
type HealthChecker interface {
	HealthCheck(ctx context.Context) error
}

// Deps groups what RegisterRoutes wires. Redis, NC and Limiter are optional.
type Deps struct {
	Store   HealthChecker
	Redis   HealthChecker
	NC      *nats.Conn
	Limiter *rate.Manager
	Pricing *PricingHandler
	Cache   *CacheHandler
}

func RegisterRoutes(app *fiber.App, d Deps) {
	app.Get("/metrics", adaptor.HTTPHandler(promhttp.Handler()))
	app.Get("/health", healthHandler(d))

	api := app.Group("/api/pricing", timed)
	if d.Limiter != nil {
		api.Use(RateLimit(d.Limiter))
	}

	api.Post("/boat-cost", d.Pricing.BoatCost)
	api.Post("/gas-fills", d.Pricing.GasFills)
	api.Post("/resolve", d.Pricing.Resolve)
	api.Post("/allocate", d.Pricing.Allocate)
	api.Post("/totals", d.Pricing.Totals)

	api.Get("/cache/stats", d.Cache.Stats)
	api.Post("/cache/invalidate", d.Cache.Invalidate)
	api.Get("/cache/warmup", d.Cache.LastWarmup)
	api.Post("/cache/warmup", d.Cache.TriggerWarmup)
}

func healthHandler(d Deps) fiber.Handler {
	return func(c *fiber.Ctx) error {
		checks := map[string]string{"store": "ok"}
		status := "ok"
		code := fiber.StatusOK
		degrade := func(name, reason string) {
			checks[name] = reason
			status = "degraded"
			code = fiber.StatusServiceUnavailable
		}

		healthCtx, cancel := context.WithTimeout(c.UserContext(), 2*time.Second)
		defer cancel()

		if err := d.Store.HealthCheck(healthCtx); err != nil {
			degrade("store", err.Error())
		}
		if d.Redis != nil {
			checks["redis"] = "ok"
			if err := d.Redis.HealthCheck(healthCtx); err != nil {
				degrade("redis", err.Error())
			}
		}
		if d.NC != nil {
			checks["nats"] = "ok"
			if !d.NC.IsConnected() {
				degrade("nats", "disconnected")
			} else if err := d.NC.FlushTimeout(time.Second); err != nil {
				degrade("nats", err.Error())
			}
		}

		return c.Status(code).JSON(fiber.Map{
			"status": status,
			"checks": checks,
		})
	}
}
