package money

import (
	"strings"

	"github.com/shopspring/decimal"
)

// Allocation tags for pricing lines.
const (
	AllocationShared   = "shared"
	AllocationPerDiver = "per_diver"
)

// Line is one cost/charge line of an excursion.
type Line struct {
	Key        string
	Allocation string
	Cost       decimal.Decimal
	Charge     decimal.Decimal
}

// Rental is an add-on rented per diver.
type Rental struct {
	UnitCost   decimal.Decimal
	UnitCharge decimal.Decimal
	Quantity   int64
}

// Totals is the per-diver breakdown of a set of lines.
type Totals struct {
	SharedCost           Money `json:"shared_cost"`
	SharedCharge         Money `json:"shared_charge"`
	PerDiverCost         Money `json:"per_diver_cost"`
	PerDiverCharge       Money `json:"per_diver_charge"`
	SharedCostPerDiver   Money `json:"shared_cost_per_diver"`
	SharedChargePerDiver Money `json:"shared_charge_per_diver"`
	TotalCostPerDiver    Money `json:"total_cost_per_diver"`
	TotalChargePerDiver  Money `json:"total_charge_per_diver"`
	MarginPerDiver       Money `json:"margin_per_diver"`
	DiverCount           int   `json:"diver_count"`
}

// normalizeAllocation folds the accepted spellings of the per-diver tag.
func normalizeAllocation(tag string) string {
	switch strings.ToLower(strings.TrimSpace(tag)) {
	case AllocationShared:
		return AllocationShared
	case AllocationPerDiver, "per_participant", "per-diver", "per-participant":
		return AllocationPerDiver
	default:
		return ""
	}
}

// AggregateTotals sums shared and per-diver lines, folds rentals into the
// per-diver sums and converts shared sums to a rounded per-diver share.
// Lines with an unrecognised allocation tag are ignored. A non-positive
// diverCount yields zero shares rather than an error.
func AggregateTotals(lines []Line, diverCount int, currency string, rentals []Rental) Totals {
	sharedCost, sharedCharge := decimal.Zero, decimal.Zero
	perDiverCost, perDiverCharge := decimal.Zero, decimal.Zero

	for _, line := range lines {
		switch normalizeAllocation(line.Allocation) {
		case AllocationShared:
			sharedCost = sharedCost.Add(line.Cost)
			sharedCharge = sharedCharge.Add(line.Charge)
		case AllocationPerDiver:
			perDiverCost = perDiverCost.Add(line.Cost)
			perDiverCharge = perDiverCharge.Add(line.Charge)
		}
	}

	for _, r := range rentals {
		qty := decimal.NewFromInt(r.Quantity)
		perDiverCost = perDiverCost.Add(r.UnitCost.Mul(qty))
		perDiverCharge = perDiverCharge.Add(r.UnitCharge.Mul(qty))
	}

	sharedCostShare, sharedChargeShare := decimal.Zero, decimal.Zero
	if diverCount > 0 {
		sharedCostShare = Round(Divide(sharedCost, int64(diverCount)), 2)
		sharedChargeShare = Round(Divide(sharedCharge, int64(diverCount)), 2)
	}

	totalCost := sharedCostShare.Add(perDiverCost)
	totalCharge := sharedChargeShare.Add(perDiverCharge)

	return Totals{
		SharedCost:           New(sharedCost, currency),
		SharedCharge:         New(sharedCharge, currency),
		PerDiverCost:         New(perDiverCost, currency),
		PerDiverCharge:       New(perDiverCharge, currency),
		SharedCostPerDiver:   New(sharedCostShare, currency),
		SharedChargePerDiver: New(sharedChargeShare, currency),
		TotalCostPerDiver:    New(totalCost, currency),
		TotalChargePerDiver:  New(totalCharge, currency),
		MarginPerDiver:       New(totalCharge.Sub(totalCost), currency),
		DiverCount:           diverCount,
	}
}
