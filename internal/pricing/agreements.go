package pricing

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/cache"
	"github.com/happydiving/pricing-engine/pkg/model"
)

// AgreementStore is the read side the agreement resolver needs.
type AgreementStore interface {
	FindVendorAgreement(ctx context.Context, scopeType string, ref model.ScopeRef, at time.Time) (*model.Agreement, error)
	FindGasVendorAgreement(ctx context.Context, partyA model.ScopeRef, at time.Time) (*model.Agreement, error)
}

// AgreementResolver finds the agreement governing a scope at a point in
// time, reading through the agreements cache namespace.
type AgreementResolver struct {
	store  AgreementStore
	cache  *cache.AppCache
	logger *zap.Logger
	now    func() time.Time
}

func NewAgreementResolver(store AgreementStore, c *cache.AppCache, logger *zap.Logger) *AgreementResolver {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AgreementResolver{store: store, cache: c, logger: logger, now: time.Now}
}

// Resolve returns the active agreement of scopeType for ref at the given
// time (zero means now). A cached agreement whose window no longer covers
// the time is bypassed for this call but left in place.
func (r *AgreementResolver) Resolve(ctx context.Context, scopeType string, ref model.ScopeRef, at time.Time) (*model.Agreement, error) {
	if at.IsZero() {
		at = r.now()
	}
	key := cache.AgreementKey(scopeType, ref)

	if a, ok := r.cache.Agreements.Get(key); ok {
		if a.IsActiveAt(at) {
			return a, nil
		}
		r.logger.Debug("agreement_resolver.cache_stale",
			zap.String("key", key),
			zap.Time("as_of", at))
	}

	a, err := r.store.FindVendorAgreement(ctx, scopeType, ref, at)
	if err != nil {
		r.logger.Warn("agreement_resolver.store_failed",
			zap.String("scope_type", scopeType),
			zap.String("scope_ref", ref.String()),
			zap.Error(err))
		return nil, &MissingVendorAgreementError{ScopeType: scopeType, ScopeRef: ref.String(), Cause: err}
	}
	if a == nil {
		return nil, &MissingVendorAgreementError{ScopeType: scopeType, ScopeRef: ref.String()}
	}

	r.cache.Agreements.Insert(key, a)
	return a, nil
}

// ResolveGasVendor looks up the gas vendor agreement whose party A is the
// given shop. It always goes to the store.
func (r *AgreementResolver) ResolveGasVendor(ctx context.Context, partyA model.ScopeRef, at time.Time) (*model.Agreement, error) {
	if at.IsZero() {
		at = r.now()
	}
	a, err := r.store.FindGasVendorAgreement(ctx, partyA, at)
	if err != nil {
		r.logger.Warn("agreement_resolver.store_failed",
			zap.String("scope_type", model.ScopeGasVendorPricing),
			zap.String("party_a", partyA.String()),
			zap.Error(err))
		return nil, &MissingVendorAgreementError{ScopeType: model.ScopeGasVendorPricing, ScopeRef: partyA.String(), Cause: err}
	}
	if a == nil {
		return nil, &MissingVendorAgreementError{ScopeType: model.ScopeGasVendorPricing, ScopeRef: partyA.String()}
	}
	return a, nil
}
