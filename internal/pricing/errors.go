package pricing

import (
	"errors"
	"fmt"

	"github.com/happydiving/pricing-engine/internal/cache"
)

// Wire-level error types.
const (
	ErrTypeMissingVendorAgreement = "missing_vendor_agreement"
	ErrTypeMissingPrice           = "missing_price"
	ErrTypeConfiguration          = "configuration_error"
	ErrTypeInvalidRequest         = "invalid_request"
	ErrTypeInternal               = "internal_error"
)

// MissingVendorAgreementError means no active agreement governs the
// requested scope. A store failure during the lookup is reported the same
// way and kept as Cause.
type MissingVendorAgreementError struct {
	ScopeType string
	ScopeRef  string
	Cause     error
}

func (e *MissingVendorAgreementError) Error() string {
	return fmt.Sprintf("No vendor agreement found for %s:%s", e.ScopeType, e.ScopeRef)
}

func (e *MissingVendorAgreementError) Unwrap() error { return e.Cause }

// MissingPriceError means every applicable price level came up empty, or
// the catalog item could not be looked up.
type MissingPriceError struct {
	CatalogItemID string
	Context       string
	Cause         error
}

func (e *MissingPriceError) Error() string {
	return fmt.Sprintf("No price found for catalog item %s (%s)", e.CatalogItemID, e.Context)
}

func (e *MissingPriceError) Unwrap() error { return e.Cause }

// ConfigurationError reports malformed agreement terms or invalid input.
type ConfigurationError struct {
	Message    string
	Violations []string
}

func (e *ConfigurationError) Error() string {
	return "Configuration error: " + e.Message
}

func configErr(violation, format string, args ...any) *ConfigurationError {
	return &ConfigurationError{Message: fmt.Sprintf(format, args...), Violations: []string{violation}}
}

// RequestError is an invalid caller payload, rejected before any pricing runs.
type RequestError struct {
	Message string
	Cause   error
}

func (e *RequestError) Error() string { return e.Message }

func (e *RequestError) Unwrap() error { return e.Cause }

// ErrorType maps err to its wire type.
func ErrorType(err error) string {
	var (
		mva *MissingVendorAgreementError
		mp  *MissingPriceError
		ce  *ConfigurationError
		re  *RequestError
	)
	switch {
	case errors.As(err, &mva):
		return ErrTypeMissingVendorAgreement
	case errors.As(err, &mp):
		return ErrTypeMissingPrice
	case errors.As(err, &ce):
		return ErrTypeConfiguration
	case errors.As(err, &re), errors.Is(err, cache.ErrUnknownNamespace):
		return ErrTypeInvalidRequest
	default:
		return ErrTypeInternal
	}
}

// ErrorDetails returns the structured details carried by err, if any.
func ErrorDetails(err error) map[string]any {
	var (
		mva *MissingVendorAgreementError
		mp  *MissingPriceError
		ce  *ConfigurationError
	)
	switch {
	case errors.As(err, &mva):
		return map[string]any{"scope_type": mva.ScopeType, "scope_ref": mva.ScopeRef}
	case errors.As(err, &mp):
		return map[string]any{"catalog_item_id": mp.CatalogItemID, "context": mp.Context}
	case errors.As(err, &ce):
		violations := ce.Violations
		if violations == nil {
			violations = []string{}
		}
		return map[string]any{"errors": violations}
	default:
		return nil
	}
}
