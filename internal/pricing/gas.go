package pricing

import (
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"github.com/happydiving/pricing-engine/pkg/model"
	"github.com/happydiving/pricing-engine/pkg/money"
)

// GasFillRequest prices tank fills bought from a dive shop.
type GasFillRequest struct {
	ShopID         string
	GasType        string
	FillsCount     int
	ChargeOverride *decimal.Decimal
	At             time.Time
}

// GasFills is the per-fill and total breakdown of a gas purchase.
type GasFills struct {
	CostPerFill   money.Money `json:"cost_per_fill"`
	ChargePerFill money.Money `json:"charge_per_fill"`
	TotalCost     money.Money `json:"total_cost"`
	TotalCharge   money.Money `json:"total_charge"`
	FillsCount    int         `json:"fills_count"`
	GasType       string      `json:"gas_type"`
	AgreementID   string      `json:"agreement_id,omitempty"`
}

// computeGasFills applies the gas_fills section of a gas vendor agreement.
// A charge override replaces the agreement charge outright.
func computeGasFills(a *model.Agreement, gasType string, fills int, override *decimal.Decimal) (*GasFills, error) {
	section, ok := a.Terms.Section("gas_fills")
	if !ok {
		return nil, configErr("gas_fills not in agreement.terms",
			"Agreement %s missing 'gas_fills' in terms", a.ID)
	}

	key := strings.ToLower(gasType)
	rates, ok := section.SectionFold(key)
	if !ok {
		return nil, configErr("gas_fills."+key+" not in agreement.terms",
			"Agreement %s missing pricing for gas type '%s'", a.ID, gasType)
	}

	cost, _, err := rates.Decimal("cost")
	if err != nil {
		return nil, configErr("gas_fills."+key+".cost is not numeric",
			"Agreement %s has invalid gas_fills.%s.cost: %v", a.ID, key, err)
	}

	var charge decimal.Decimal
	if override != nil {
		charge = *override
	} else {
		charge, _, err = rates.Decimal("charge")
		if err != nil {
			return nil, configErr("gas_fills."+key+".charge is not numeric",
				"Agreement %s has invalid gas_fills.%s.charge: %v", a.ID, key, err)
		}
	}

	currency, ok := rates.String("currency")
	if !ok {
		currency = money.DefaultCurrency
	}

	n := decimal.NewFromInt(int64(fills))
	return &GasFills{
		CostPerFill:   money.New(cost, currency),
		ChargePerFill: money.New(charge, currency),
		TotalCost:     money.New(cost.Mul(n), currency),
		TotalCharge:   money.New(charge.Mul(n), currency),
		FillsCount:    fills,
		GasType:       gasType,
		AgreementID:   a.ID.String(),
	}, nil
}
