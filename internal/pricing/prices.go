package pricing

import (
	"context"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/metrics"
	"github.com/happydiving/pricing-engine/pkg/model"
)

// PriceStore is the read side the price resolver needs.
type PriceStore interface {
	FindPriceByAgreement(ctx context.Context, catalogItemID, agreementID uuid.UUID, at time.Time) (*model.Price, error)
	FindPriceByParty(ctx context.Context, catalogItemID, partyID uuid.UUID, at time.Time) (*model.Price, error)
	FindPriceByOrganization(ctx context.Context, catalogItemID, organizationID uuid.UUID, at time.Time) (*model.Price, error)
	FindGlobalPrice(ctx context.Context, catalogItemID uuid.UUID, at time.Time) (*model.Price, error)
}

// PriceQuery selects the scopes a catalog item is priced against.
type PriceQuery struct {
	CatalogItemID  uuid.UUID
	OrganizationID *uuid.UUID
	PartyID        *uuid.UUID
	AgreementID    *uuid.UUID
	At             time.Time
}

// ComponentPrice is a resolved charge and optional cost for a catalog item.
type ComponentPrice struct {
	ChargeAmount   decimal.Decimal  `json:"charge_amount"`
	ChargeCurrency string           `json:"charge_currency"`
	CostAmount     *decimal.Decimal `json:"cost_amount,omitempty"`
	CostCurrency   string           `json:"cost_currency"`
	PriceRuleID    string           `json:"price_rule_id"`
	HasCost        bool             `json:"has_cost"`
	Scope          string           `json:"scope"`
}

// Price scope levels, most specific first.
const (
	LevelAgreement    = "agreement"
	LevelParty        = "party"
	LevelOrganization = "organization"
	LevelGlobal       = "global"
)

type priceLevel struct {
	name    string
	applies func(q PriceQuery) bool
	find    func(ctx context.Context, s PriceStore, q PriceQuery) (*model.Price, error)
}

var priceLevels = []priceLevel{
	{
		name:    LevelAgreement,
		applies: func(q PriceQuery) bool { return q.AgreementID != nil },
		find: func(ctx context.Context, s PriceStore, q PriceQuery) (*model.Price, error) {
			return s.FindPriceByAgreement(ctx, q.CatalogItemID, *q.AgreementID, q.At)
		},
	},
	{
		name:    LevelParty,
		applies: func(q PriceQuery) bool { return q.PartyID != nil },
		find: func(ctx context.Context, s PriceStore, q PriceQuery) (*model.Price, error) {
			return s.FindPriceByParty(ctx, q.CatalogItemID, *q.PartyID, q.At)
		},
	},
	{
		name:    LevelOrganization,
		applies: func(q PriceQuery) bool { return q.OrganizationID != nil },
		find: func(ctx context.Context, s PriceStore, q PriceQuery) (*model.Price, error) {
			return s.FindPriceByOrganization(ctx, q.CatalogItemID, *q.OrganizationID, q.At)
		},
	},
	{
		name:    LevelGlobal,
		applies: func(PriceQuery) bool { return true },
		find: func(ctx context.Context, s PriceStore, q PriceQuery) (*model.Price, error) {
			return s.FindGlobalPrice(ctx, q.CatalogItemID, q.At)
		},
	},
}

// PriceResolver walks the scope levels in order and returns the first hit.
type PriceResolver struct {
	store  PriceStore
	levels []priceLevel
	logger *zap.Logger
	now    func() time.Time
}

func NewPriceResolver(store PriceStore, logger *zap.Logger) *PriceResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &PriceResolver{store: store, levels: priceLevels, logger: logger, now: time.Now}
}

// Resolve prices q. A store failure at one level is logged and treated as
// no row at that level.
func (r *PriceResolver) Resolve(ctx context.Context, q PriceQuery) (*ComponentPrice, error) {
	if q.At.IsZero() {
		q.At = r.now()
	}

	tried := make([]string, 0, len(r.levels))
	for _, lvl := range r.levels {
		if !lvl.applies(q) {
			continue
		}
		tried = append(tried, lvl.name)

		p, err := lvl.find(ctx, r.store, q)
		if err != nil {
			metrics.IncResolverStoreError(lvl.name)
			r.logger.Warn("price_resolver.level_failed",
				zap.String("level", lvl.name),
				zap.String("catalog_item_id", q.CatalogItemID.String()),
				zap.Error(err))
			continue
		}
		if p != nil {
			return toComponentPrice(p, lvl.name), nil
		}
	}

	return nil, &MissingPriceError{
		CatalogItemID: q.CatalogItemID.String(),
		Context:       "No price found at any scope level (tried " + strings.Join(tried, ", ") + ")",
	}
}

func toComponentPrice(p *model.Price, scope string) *ComponentPrice {
	out := &ComponentPrice{
		ChargeAmount:   p.Amount,
		ChargeCurrency: p.Currency,
		CostCurrency:   p.EffectiveCostCurrency(),
		PriceRuleID:    p.ID.String(),
		Scope:          scope,
	}
	if p.CostAmount.Valid {
		cost := p.CostAmount.Decimal
		out.CostAmount = &cost
		out.HasCost = true
	}
	return out
}
