package model

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// Price is a pricing_price rule for a catalog item. At most one of
// OrganizationID, PartyID, AgreementID is set; none means a global rule.
type Price struct {
	ID             uuid.UUID
	CatalogItemID  uuid.UUID
	Amount         decimal.Decimal
	Currency       string
	CostAmount     decimal.NullDecimal
	CostCurrency   *string
	OrganizationID *uuid.UUID
	PartyID        *uuid.UUID
	AgreementID    *uuid.UUID
	ValidFrom      time.Time
	ValidTo        *time.Time
	Priority       int32
}

// IsActiveAt applies the same half-open window as agreements.
func (p *Price) IsActiveAt(t time.Time) bool {
	if p.ValidFrom.After(t) {
		return false
	}
	if p.ValidTo != nil {
		return t.Before(*p.ValidTo)
	}
	return true
}

// EffectiveCostCurrency falls back to the charge currency.
func (p *Price) EffectiveCostCurrency() string {
	if p.CostCurrency != nil && *p.CostCurrency != "" {
		return *p.CostCurrency
	}
	return p.Currency
}
