package api

import (
	"github.com/gofiber/fiber/v2"

	"github.com/happydiving/pricing-engine/internal/pricing"
)

// ErrorResponse is the wire shape of every failed request.
type ErrorResponse struct {
	ErrorType string         `json:"error_type"`
	Message   string         `json:"message"`
	Details   map[string]any `json:"details,omitempty"`
}

// statusFor maps an error type to its HTTP status.
func statusFor(errType string) int {
	switch errType {
	case pricing.ErrTypeMissingVendorAgreement, pricing.ErrTypeMissingPrice:
		return fiber.StatusNotFound
	case pricing.ErrTypeConfiguration:
		return fiber.StatusUnprocessableEntity
	case pricing.ErrTypeInvalidRequest:
		return fiber.StatusBadRequest
	default:
		return fiber.StatusInternalServerError
	}
}

func errorResponse(err error) (int, ErrorResponse) {
	errType := pricing.ErrorType(err)
	resp := ErrorResponse{
		ErrorType: errType,
		Message:   err.Error(),
		Details:   pricing.ErrorDetails(err),
	}
	if errType == pricing.ErrTypeInternal {
		resp.Message = "Internal error"
	}
	return statusFor(errType), resp
}

func badRequest(c *fiber.Ctx, err error) error {
	return c.Status(fiber.StatusBadRequest).JSON(ErrorResponse{
		ErrorType: pricing.ErrTypeInvalidRequest,
		Message:   err.Error(),
	})
}
