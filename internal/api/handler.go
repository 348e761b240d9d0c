package api

import (
	"context"
	"time"

	"github.com/gofiber/fiber/v2"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/metrics"
	"github.com/happydiving/pricing-engine/internal/pricing"
	"github.com/happydiving/pricing-engine/pkg/model"
	"github.com/happydiving/pricing-engine/pkg/money"
)

// PricingService is what the calculation endpoints need.
type PricingService interface {
	BoatCost(ctx context.Context, req pricing.BoatCostRequest) (*pricing.BoatCost, error)
	GasFills(ctx context.Context, req pricing.GasFillRequest) (*pricing.GasFills, error)
	ResolvePrice(ctx context.Context, q pricing.PriceQuery) (*pricing.ComponentPrice, error)
	CatalogItemByName(ctx context.Context, name string) (*model.CatalogItem, error)
	Allocate(total decimal.Decimal, participants int, currency string) money.Allocation
	Totals(lines []money.Line, participants int, currency string, rentals []money.Rental) money.Totals
}

// PricingHandler serves the calculation endpoints.
type PricingHandler struct {
	logger  *zap.Logger
	service PricingService
}

func NewPricingHandler(logger *zap.Logger, service PricingService) *PricingHandler {
	return &PricingHandler{logger: logger, service: service}
}

// BoatCost handles POST /boat-cost.
func (h *PricingHandler) BoatCost(c *fiber.Ctx) error {
	var req BoatCostRequest
	if err := c.BodyParser(&req); err != nil {
		return h.invalid(c, "boat_cost", err)
	}
	if err := req.Validate(); err != nil {
		return h.invalid(c, "boat_cost", err)
	}

	res, err := h.service.BoatCost(c.UserContext(), pricing.BoatCostRequest{
		SiteID:     req.site(),
		DiverCount: *req.DiverCount,
		At:         asOf(req.AsOf),
	})
	if err != nil {
		return h.fail(c, "boat_cost", err, zap.String("site_id", req.site()), zap.Int("diver_count", *req.DiverCount))
	}
	return c.JSON(res)
}

// GasFills handles POST /gas-fills.
func (h *PricingHandler) GasFills(c *fiber.Ctx) error {
	var req GasFillRequest
	if err := c.BodyParser(&req); err != nil {
		return h.invalid(c, "gas_fills", err)
	}
	if err := req.Validate(); err != nil {
		return h.invalid(c, "gas_fills", err)
	}

	res, err := h.service.GasFills(c.UserContext(), pricing.GasFillRequest{
		ShopID:         req.shop(),
		GasType:        req.GasType,
		FillsCount:     *req.FillsCount,
		ChargeOverride: req.override(),
		At:             asOf(req.AsOf),
	})
	if err != nil {
		return h.fail(c, "gas_fills", err, zap.String("shop_id", req.shop()), zap.String("gas_type", req.GasType))
	}
	return c.JSON(res)
}

// Resolve handles POST /resolve.
func (h *PricingHandler) Resolve(c *fiber.Ctx) error {
	var req ResolveRequest
	if err := c.BodyParser(&req); err != nil {
		return h.invalid(c, "resolve", err)
	}
	if err := req.Validate(); err != nil {
		return h.invalid(c, "resolve", err)
	}

	ctx := c.UserContext()
	q := pricing.PriceQuery{
		OrganizationID: req.organization(),
		PartyID:        req.PartyID,
		AgreementID:    req.AgreementID,
		At:             asOf(req.AsOf),
	}
	if req.CatalogItemID != nil {
		q.CatalogItemID = *req.CatalogItemID
	} else {
		item, err := h.service.CatalogItemByName(ctx, req.CatalogItemName)
		if err != nil {
			return h.fail(c, "resolve", err, zap.String("catalog_item_name", req.CatalogItemName))
		}
		q.CatalogItemID = item.ID
	}

	res, err := h.service.ResolvePrice(ctx, q)
	if err != nil {
		return h.fail(c, "resolve", err, zap.String("catalog_item_id", q.CatalogItemID.String()))
	}
	return c.JSON(res)
}

// Allocate handles POST /allocate.
func (h *PricingHandler) Allocate(c *fiber.Ctx) error {
	var req AllocateRequest
	if err := c.BodyParser(&req); err != nil {
		return h.invalid(c, "allocate", err)
	}
	if err := req.Validate(); err != nil {
		return h.invalid(c, "allocate", err)
	}
	return c.JSON(h.service.Allocate(*req.SharedTotal, req.participants(), req.Currency))
}

// Totals handles POST /totals.
func (h *PricingHandler) Totals(c *fiber.Ctx) error {
	var req TotalsRequest
	if err := c.BodyParser(&req); err != nil {
		return h.invalid(c, "totals", err)
	}
	if err := req.Validate(); err != nil {
		return h.invalid(c, "totals", err)
	}
	return c.JSON(h.service.Totals(req.toLines(), req.participants(), req.Currency, req.toRentals()))
}

func (h *PricingHandler) invalid(c *fiber.Ctx, endpoint string, err error) error {
	metrics.IncCalculationError(endpoint, pricing.ErrTypeInvalidRequest)
	return badRequest(c, err)
}

func (h *PricingHandler) fail(c *fiber.Ctx, endpoint string, err error, fields ...zap.Field) error {
	status, resp := errorResponse(err)
	metrics.IncCalculationError(endpoint, resp.ErrorType)

	fields = append(fields, zap.String("error_type", resp.ErrorType), zap.Error(err))
	if status >= fiber.StatusInternalServerError {
		h.logger.Error("pricing."+endpoint+".failed", fields...)
	} else {
		h.logger.Info("pricing."+endpoint+".rejected", fields...)
	}
	return c.Status(status).JSON(resp)
}

// timed records request latency by route and status.
func timed(c *fiber.Ctx) error {
	start := time.Now()
	err := c.Next()
	status := c.Response().StatusCode()
	if err != nil {
		if fe, ok := err.(*fiber.Error); ok {
			status = fe.Code
		} else {
			status = fiber.StatusInternalServerError
		}
	}
	metrics.ObserveDuration(metrics.APIRequestDuration, start, c.Route().Path, statusClass(status))
	return err
}

func statusClass(code int) string {
	switch {
	case code >= 500:
		return "5xx"
	case code >= 400:
		return "4xx"
	default:
		return "2xx"
	}
}
