package api

import (
	"context"
	"errors"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/invalidation"
	"github.com/happydiving/pricing-engine/internal/jobs"
	"github.com/happydiving/pricing-engine/internal/store"
	"github.com/happydiving/pricing-engine/pkg/model"
)

// StatsProvider reports cache sizes.
type StatsProvider interface {
	CacheStats() model.CacheStats
}

// Warmer triggers and reports cache warm-up runs.
type Warmer interface {
	RunOnce(ctx context.Context, trigger string) (model.WarmupReport, bool)
	LastReport() (model.WarmupReport, bool)
}

// StatusReader reads the last warm-up report written by any instance.
type StatusReader interface {
	GetJSON(ctx context.Context, key string, dest any) error
}

// CacheHandler serves the cache administration endpoints. warmer and
// status may be nil.
type CacheHandler struct {
	logger      *zap.Logger
	stats       StatsProvider
	invalidator *invalidation.Handler
	warmer      Warmer
	status      StatusReader
}

func NewCacheHandler(logger *zap.Logger, stats StatsProvider, invalidator *invalidation.Handler, warmer Warmer, status StatusReader) *CacheHandler {
	return &CacheHandler{
		logger:      logger,
		stats:       stats,
		invalidator: invalidator,
		warmer:      warmer,
		status:      status,
	}
}

// Stats handles GET /cache/stats.
func (h *CacheHandler) Stats(c *fiber.Ctx) error {
	return c.JSON(h.stats.CacheStats())
}

// Invalidate handles POST /cache/invalidate. An empty body clears everything.
func (h *CacheHandler) Invalidate(c *fiber.Ctx) error {
	var req InvalidateRequest
	if len(c.Body()) > 0 {
		if err := c.BodyParser(&req); err != nil {
			return badRequest(c, err)
		}
	}

	inv := model.InvalidationRequest{Namespace: req.Namespace, Key: req.Key}
	if err := h.invalidator.Apply(invalidation.SourceAPI, inv); err != nil {
		status, resp := errorResponse(err)
		return c.Status(status).JSON(resp)
	}
	return c.JSON(fiber.Map{
		"invalidated": inv,
		"stats":       h.stats.CacheStats(),
	})
}

// LastWarmup handles GET /cache/warmup. The shared status store is
// preferred so any instance can report the latest run.
func (h *CacheHandler) LastWarmup(c *fiber.Ctx) error {
	if h.status != nil {
		var report model.WarmupReport
		err := h.status.GetJSON(c.UserContext(), jobs.WarmupStatusKey, &report)
		if err == nil {
			return c.JSON(report)
		}
		if !errors.Is(err, store.ErrNotFound) {
			h.logger.Warn("cache.warmup_status_read_failed", zap.Error(err))
		}
	}
	if h.warmer != nil {
		if report, ok := h.warmer.LastReport(); ok {
			return c.JSON(report)
		}
	}
	return c.Status(fiber.StatusNotFound).JSON(ErrorResponse{
		ErrorType: "not_found",
		Message:   "No warm-up has completed yet",
	})
}

// TriggerWarmup handles POST /cache/warmup.
func (h *CacheHandler) TriggerWarmup(c *fiber.Ctx) error {
	if h.warmer == nil {
		return c.Status(fiber.StatusServiceUnavailable).JSON(ErrorResponse{
			ErrorType: "unavailable",
			Message:   "Cache warmer is not running",
		})
	}
	report, ok := h.warmer.RunOnce(c.UserContext(), "api")
	if !ok {
		return c.Status(fiber.StatusConflict).JSON(ErrorResponse{
			ErrorType: "conflict",
			Message:   "A warm-up is already in progress",
		})
	}
	return c.JSON(report)
}
