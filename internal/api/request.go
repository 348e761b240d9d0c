package api

import (
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"github.com/happydiving/pricing-engine/pkg/money"
)

// Decimal fields accept JSON strings or numbers.

// BoatCostRequest prices a boat charter. dive_site_id is accepted as an alias of site_id.
type BoatCostRequest struct {
	SiteID     string     `json:"site_id"`
	DiveSiteID string     `json:"dive_site_id"`
	DiverCount *int       `json:"diver_count"`
	AsOf       *time.Time `json:"as_of"`
}

func (r BoatCostRequest) site() string {
	return firstNonEmpty(r.SiteID, r.DiveSiteID)
}

// GasFillRequest prices tank fills.
type GasFillRequest struct {
	ShopID                 string           `json:"shop_id"`
	DiveShopID             string           `json:"dive_shop_id"`
	GasType                string           `json:"gas_type"`
	FillsCount             *int             `json:"fills_count"`
	ChargeOverride         *decimal.Decimal `json:"charge_override"`
	CustomerChargeOverride *decimal.Decimal `json:"customer_charge_override"`
	AsOf                   *time.Time       `json:"as_of"`
}

func (r GasFillRequest) shop() string {
	return firstNonEmpty(r.ShopID, r.DiveShopID)
}

func (r GasFillRequest) override() *decimal.Decimal {
	if r.ChargeOverride != nil {
		return r.ChargeOverride
	}
	return r.CustomerChargeOverride
}

// ResolveRequest resolves a catalog item price. The item is given by id or,
// failing that, by display name.
type ResolveRequest struct {
	CatalogItemID   *uuid.UUID `json:"catalog_item_id"`
	CatalogItemName string     `json:"catalog_item_name"`
	OrganizationID  *uuid.UUID `json:"organization_id"`
	DiveShopID      *uuid.UUID `json:"dive_shop_id"`
	PartyID         *uuid.UUID `json:"party_id"`
	AgreementID     *uuid.UUID `json:"agreement_id"`
	AsOf            *time.Time `json:"as_of"`
}

func (r ResolveRequest) organization() *uuid.UUID {
	if r.OrganizationID != nil {
		return r.OrganizationID
	}
	return r.DiveShopID
}

// AllocateRequest splits a shared total.
type AllocateRequest struct {
	SharedTotal      *decimal.Decimal `json:"shared_total"`
	ParticipantCount *int             `json:"participant_count"`
	DiverCount       *int             `json:"diver_count"`
	Currency         string           `json:"currency"`
}

func (r AllocateRequest) participants() int {
	return firstCount(r.ParticipantCount, r.DiverCount)
}

// LineRequest is one excursion cost/charge line.
type LineRequest struct {
	Key                  string           `json:"key"`
	Allocation           string           `json:"allocation"`
	Cost                 *decimal.Decimal `json:"cost"`
	ShopCostAmount       *decimal.Decimal `json:"shop_cost_amount"`
	CostCurrency         string           `json:"cost_currency"`
	Charge               *decimal.Decimal `json:"charge"`
	CustomerChargeAmount *decimal.Decimal `json:"customer_charge_amount"`
	ChargeCurrency       string           `json:"charge_currency"`
}

// RentalRequest is a per-diver equipment rental.
type RentalRequest struct {
	UnitCost   *decimal.Decimal `json:"unit_cost"`
	UnitCharge *decimal.Decimal `json:"unit_charge"`
	Quantity   *int64           `json:"quantity"`
}

// TotalsRequest aggregates lines into the per-diver breakdown.
type TotalsRequest struct {
	Lines            []LineRequest   `json:"lines"`
	ParticipantCount *int            `json:"participant_count"`
	DiverCount       *int            `json:"diver_count"`
	Currency         string          `json:"currency"`
	EquipmentRentals []RentalRequest `json:"equipment_rentals"`
}

func (r TotalsRequest) participants() int {
	return firstCount(r.ParticipantCount, r.DiverCount)
}

func (r TotalsRequest) toLines() []money.Line {
	lines := make([]money.Line, 0, len(r.Lines))
	for _, l := range r.Lines {
		lines = append(lines, money.Line{
			Key:        l.Key,
			Allocation: l.Allocation,
			Cost:       firstDecimal(l.Cost, l.ShopCostAmount),
			Charge:     firstDecimal(l.Charge, l.CustomerChargeAmount),
		})
	}
	return lines
}

func (r TotalsRequest) toRentals() []money.Rental {
	rentals := make([]money.Rental, 0, len(r.EquipmentRentals))
	for _, e := range r.EquipmentRentals {
		qty := int64(1)
		if e.Quantity != nil {
			qty = *e.Quantity
		}
		rentals = append(rentals, money.Rental{
			UnitCost:   firstDecimal(e.UnitCost),
			UnitCharge: firstDecimal(e.UnitCharge),
			Quantity:   qty,
		})
	}
	return rentals
}

// InvalidateRequest drops cache entries. Both fields are optional.
type InvalidateRequest struct {
	Namespace string `json:"namespace"`
	Key       string `json:"key"`
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}

func firstCount(vals ...*int) int {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return 0
}

func firstDecimal(vals ...*decimal.Decimal) decimal.Decimal {
	for _, v := range vals {
		if v != nil {
			return *v
		}
	}
	return decimal.Zero
}

func asOf(t *time.Time) time.Time {
	if t == nil {
		return time.Time{}
	}
	return *t
}
