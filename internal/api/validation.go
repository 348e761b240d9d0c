package api

import (
	"fmt"
	"strings"
)

func (r BoatCostRequest) Validate() error {
	if strings.TrimSpace(r.site()) == "" {
		return fmt.Errorf("site_id is required")
	}
	if r.DiverCount == nil {
		return fmt.Errorf("diver_count is required")
	}
	return nil
}

func (r GasFillRequest) Validate() error {
	if strings.TrimSpace(r.shop()) == "" {
		return fmt.Errorf("shop_id is required")
	}
	if strings.TrimSpace(r.GasType) == "" {
		return fmt.Errorf("gas_type is required")
	}
	if r.FillsCount == nil {
		return fmt.Errorf("fills_count is required")
	}
	if o := r.override(); o != nil && o.IsNegative() {
		return fmt.Errorf("charge_override must not be negative")
	}
	return nil
}

func (r ResolveRequest) Validate() error {
	if r.CatalogItemID == nil && strings.TrimSpace(r.CatalogItemName) == "" {
		return fmt.Errorf("catalog_item_id or catalog_item_name is required")
	}
	return nil
}

func (r AllocateRequest) Validate() error {
	if r.SharedTotal == nil {
		return fmt.Errorf("shared_total is required")
	}
	if r.ParticipantCount == nil && r.DiverCount == nil {
		return fmt.Errorf("participant_count is required")
	}
	return nil
}

func (r TotalsRequest) Validate() error {
	if r.ParticipantCount == nil && r.DiverCount == nil {
		return fmt.Errorf("participant_count is required")
	}
	for i, l := range r.Lines {
		if strings.TrimSpace(l.Allocation) == "" {
			return fmt.Errorf("lines[%d].allocation is required", i)
		}
	}
	for i, e := range r.EquipmentRentals {
		if e.Quantity != nil && *e.Quantity < 0 {
			return fmt.Errorf("equipment_rentals[%d].quantity must not be negative", i)
		}
	}
	return nil
}
