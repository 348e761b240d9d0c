package pricing

import (
	"time"

	"github.com/shopspring/decimal"

	"github.com/happydiving/pricing-engine/pkg/model"
	"github.com/happydiving/pricing-engine/pkg/money"
)

const defaultIncludedDivers = 4

// BoatCostRequest prices a boat charter to a dive site.
type BoatCostRequest struct {
	SiteID     string
	DiverCount int
	At         time.Time
}

// BoatCost is the tiered boat charter breakdown.
type BoatCost struct {
	Total           money.Money `json:"total"`
	PerDiver        money.Money `json:"per_diver"`
	BaseCost        money.Money `json:"base_cost"`
	OverageCount    int64       `json:"overage_count"`
	OveragePerDiver money.Money `json:"overage_per_diver"`
	IncludedDivers  int64       `json:"included_divers"`
	DiverCount      int         `json:"diver_count"`
	AgreementID     string      `json:"agreement_id,omitempty"`
}

// computeBoatCost applies the boat_charter tier of a vendor agreement.
func computeBoatCost(a *model.Agreement, diverCount int) (*BoatCost, error) {
	tier, ok := a.Terms.Section("boat_charter")
	if !ok {
		return nil, configErr("boat_charter not in agreement.terms",
			"Agreement %s missing 'boat_charter' in terms", a.ID)
	}

	base, ok, err := tier.Decimal("base_cost")
	if err != nil {
		return nil, configErr("boat_charter.base_cost is not numeric",
			"Agreement %s has invalid boat_charter.base_cost: %v", a.ID, err)
	}
	if !ok {
		return nil, configErr("boat_charter.base_cost not in agreement.terms",
			"Agreement %s missing 'base_cost' in boat_charter", a.ID)
	}

	included := int64(defaultIncludedDivers)
	if n, ok, err := tier.Count("included_divers"); err != nil {
		return nil, configErr("boat_charter.included_divers is not a whole number",
			"Agreement %s has invalid boat_charter.included_divers: %v", a.ID, err)
	} else if ok {
		if n < 0 {
			return nil, configErr("boat_charter.included_divers < 0",
				"Agreement %s has negative included_divers", a.ID)
		}
		included = n
	}

	overage := int64(diverCount) - included
	if overage < 0 {
		overage = 0
	}

	overagePer, ok, err := tier.Decimal("overage_per_diver")
	if err != nil {
		return nil, configErr("boat_charter.overage_per_diver is not numeric",
			"Agreement %s has invalid boat_charter.overage_per_diver: %v", a.ID, err)
	}
	if !ok {
		if overage > 0 {
			return nil, configErr("boat_charter.overage_per_diver not in agreement.terms",
				"Agreement %s missing 'overage_per_diver' for %d divers over the included %d",
				a.ID, overage, included)
		}
		overagePer = decimal.Zero
	}

	currency, ok := tier.String("currency")
	if !ok {
		currency = money.DefaultCurrency
	}

	total := base.Add(overagePer.Mul(decimal.NewFromInt(overage)))
	perDiver := money.Round(money.Divide(total, int64(diverCount)), 2)

	return &BoatCost{
		Total:           money.New(total, currency),
		PerDiver:        money.New(perDiver, currency),
		BaseCost:        money.New(base, currency),
		OverageCount:    overage,
		OveragePerDiver: money.New(overagePer, currency),
		IncludedDivers:  included,
		DiverCount:      diverCount,
		AgreementID:     a.ID.String(),
	}, nil
}
