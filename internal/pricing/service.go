package pricing

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/cache"
	"github.com/happydiving/pricing-engine/pkg/model"
	"github.com/happydiving/pricing-engine/pkg/money"
)

// Store is everything the pricing service reads.
type Store interface {
	AgreementStore
	PriceStore
	GetContentType(ctx context.Context, appLabel, modelName string) (*model.ContentType, error)
	FindCatalogItemByName(ctx context.Context, displayName string) (*model.CatalogItem, error)
}

// ContentTypeRef names a content type by its natural pair.
type ContentTypeRef struct {
	AppLabel string
	Model    string
}

// ParseContentTypeRef parses "app_label.model".
func ParseContentTypeRef(s string) (ContentTypeRef, error) {
	app, mdl, ok := strings.Cut(s, ".")
	if !ok || app == "" || mdl == "" {
		return ContentTypeRef{}, fmt.Errorf("content type %q is not app_label.model", s)
	}
	return ContentTypeRef{AppLabel: app, Model: mdl}, nil
}

func (r ContentTypeRef) String() string { return cache.ContentTypeKey(r.AppLabel, r.Model) }

// Config selects the content types polymorphic references resolve against.
type Config struct {
	DiveSiteContentType     ContentTypeRef
	OrganizationContentType ContentTypeRef
}

func DefaultConfig() Config {
	return Config{
		DiveSiteContentType:     ContentTypeRef{AppLabel: "operations", Model: "divesite"},
		OrganizationContentType: ContentTypeRef{AppLabel: "django_parties", Model: "organization"},
	}
}

// Service is the calculation facade used by the API.
type Service struct {
	store      Store
	cache      *cache.AppCache
	agreements *AgreementResolver
	prices     *PriceResolver
	cfg        Config
	logger     *zap.Logger
	now        func() time.Time
}

func NewService(store Store, c *cache.AppCache, cfg Config, logger *zap.Logger) *Service {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Service{
		store:      store,
		cache:      c,
		agreements: NewAgreementResolver(store, c, logger),
		prices:     NewPriceResolver(store, logger),
		cfg:        cfg,
		logger:     logger,
		now:        time.Now,
	}
}

// ContentTypeID resolves an (app label, model) pair through the
// content_types cache namespace.
func (s *Service) ContentTypeID(ctx context.Context, ref ContentTypeRef) (int32, error) {
	key := ref.String()
	if ct, ok := s.cache.ContentTypes.Get(key); ok {
		return ct.ID, nil
	}

	ct, err := s.store.GetContentType(ctx, ref.AppLabel, ref.Model)
	if err != nil {
		return 0, fmt.Errorf("resolve content type %s: %w", key, err)
	}
	if ct == nil {
		return 0, configErr("content type "+key+" not registered",
			"Content type %s is not registered", key)
	}
	s.cache.ContentTypes.Insert(key, ct)
	return ct.ID, nil
}

// BoatCost prices a boat charter for the site's vendor agreement.
func (s *Service) BoatCost(ctx context.Context, req BoatCostRequest) (*BoatCost, error) {
	if req.DiverCount <= 0 {
		return nil, configErr("diver_count <= 0", "Diver count must be positive")
	}
	ctID, err := s.ContentTypeID(ctx, s.cfg.DiveSiteContentType)
	if err != nil {
		return nil, scopeLookupErr(model.ScopeVendorPricing, req.SiteID, err)
	}

	a, err := s.agreements.Resolve(ctx, model.ScopeVendorPricing,
		model.ScopeRef{ContentTypeID: ctID, ID: req.SiteID}, req.At)
	if err != nil {
		return nil, err
	}
	return computeBoatCost(a, req.DiverCount)
}

// GasFills prices tank fills against the shop's gas vendor agreement.
func (s *Service) GasFills(ctx context.Context, req GasFillRequest) (*GasFills, error) {
	if req.FillsCount <= 0 {
		return nil, configErr("fills_count <= 0", "Fills count must be positive")
	}
	ctID, err := s.ContentTypeID(ctx, s.cfg.OrganizationContentType)
	if err != nil {
		return nil, scopeLookupErr(model.ScopeGasVendorPricing, req.ShopID, err)
	}

	a, err := s.agreements.ResolveGasVendor(ctx,
		model.ScopeRef{ContentTypeID: ctID, ID: req.ShopID}, req.At)
	if err != nil {
		return nil, err
	}
	return computeGasFills(a, req.GasType, req.FillsCount, req.ChargeOverride)
}

// scopeLookupErr reports a failed content type lookup as a missing
// agreement for the scope. An unregistered content type stays a
// configuration error.
func scopeLookupErr(scopeType, id string, err error) error {
	var ce *ConfigurationError
	if errors.As(err, &ce) {
		return err
	}
	return &MissingVendorAgreementError{ScopeType: scopeType, ScopeRef: id, Cause: err}
}

// ResolvePrice runs the scope fallback for a catalog item.
func (s *Service) ResolvePrice(ctx context.Context, q PriceQuery) (*ComponentPrice, error) {
	return s.prices.Resolve(ctx, q)
}

// CatalogItemByName looks up an active catalog item.
func (s *Service) CatalogItemByName(ctx context.Context, name string) (*model.CatalogItem, error) {
	item, err := s.store.FindCatalogItemByName(ctx, name)
	if err != nil {
		return nil, &MissingPriceError{CatalogItemID: name, Context: "Catalog lookup failed", Cause: err}
	}
	if item == nil {
		return nil, &MissingPriceError{CatalogItemID: name, Context: "No active catalog item with this name"}
	}
	return item, nil
}

// Allocate splits a shared total across participants.
func (s *Service) Allocate(total decimal.Decimal, participants int, currency string) money.Allocation {
	if currency == "" {
		currency = money.DefaultCurrency
	}
	return money.Allocate(total, participants, currency)
}

// Totals aggregates lines and rentals into the per-diver breakdown.
func (s *Service) Totals(lines []money.Line, participants int, currency string, rentals []money.Rental) money.Totals {
	if currency == "" {
		currency = money.DefaultCurrency
	}
	return money.AggregateTotals(lines, participants, currency, rentals)
}

// CacheStats exposes the cache size report.
func (s *Service) CacheStats() model.CacheStats {
	return s.cache.Stats()
}
