package pricing

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/internal/cache"
	"github.com/happydiving/pricing-engine/pkg/model"
	"github.com/happydiving/pricing-engine/pkg/money"
)

func termsFrom(t *testing.T, raw string) model.Terms {
	t.Helper()
	terms, err := model.ParseTerms([]byte(raw))
	require.NoError(t, err)
	return terms
}

func newTestService(fs *fakeStore) *Service {
	return NewService(fs, cache.New(cache.DefaultConfig(), zap.NewNop()), DefaultConfig(), zap.NewNop())
}

func withBoatTerms(t *testing.T, fs *fakeStore, raw string) *model.Agreement {
	a := agreementWindow(jan1, nil)
	a.Terms = termsFrom(t, raw)
	fs.vendorAgreement = func(scopeType string, ref model.ScopeRef, _ time.Time) (*model.Agreement, error) {
		if scopeType != model.ScopeVendorPricing || ref.ContentTypeID != 12 {
			return nil, nil
		}
		return a, nil
	}
	return a
}

// ─── Boat cost ───────────────────────────────────────────────────────────────

func TestBoatCost_UnderIncludedDivers(t *testing.T) {
	fs := newFakeStore()
	a := withBoatTerms(t, fs, `{"boat_charter":{"base_cost":"1500.00","included_divers":6,"overage_per_diver":"200"}}`)
	svc := newTestService(fs)

	res, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: 4, At: jan1})
	require.NoError(t, err)

	assert.Equal(t, int64(0), res.OverageCount)
	assertDecimal(t, "1500", res.Total.Amount)
	assertDecimal(t, "375", res.PerDiver.Amount)
	assert.Equal(t, "MXN", res.Total.Currency)
	assert.Equal(t, int64(6), res.IncludedDivers)
	assert.Equal(t, a.ID.String(), res.AgreementID)
}

func TestBoatCost_Overage(t *testing.T) {
	fs := newFakeStore()
	withBoatTerms(t, fs, `{"boat_charter":{"base_cost":1000,"overage_per_diver":150.5,"currency":"USD"}}`)
	svc := newTestService(fs)

	res, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: 7, At: jan1})
	require.NoError(t, err)

	assert.Equal(t, int64(4), res.IncludedDivers, "default included divers")
	assert.Equal(t, int64(3), res.OverageCount)
	assertDecimal(t, "1451.5", res.Total.Amount)
	assertDecimal(t, "207.36", res.PerDiver.Amount)
	assertDecimal(t, "150.5", res.OveragePerDiver.Amount)
	assert.Equal(t, "USD", res.PerDiver.Currency)
	assert.Equal(t, 7, res.DiverCount)
}

func TestBoatCost_OverageRateOptionalWithoutOverage(t *testing.T) {
	fs := newFakeStore()
	withBoatTerms(t, fs, `{"boat_charter":{"base_cost":"900"}}`)
	svc := newTestService(fs)

	res, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: 3, At: jan1})
	require.NoError(t, err)
	assertDecimal(t, "0", res.OveragePerDiver.Amount)
	assertDecimal(t, "300", res.PerDiver.Amount)

	_, err = svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: 5, At: jan1})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Contains(t, ce.Violations[0], "overage_per_diver")
}

func TestBoatCost_ConfigurationErrors(t *testing.T) {
	cases := map[string]string{
		"boat_charter":    `{"other":{}}`,
		"base_cost":       `{"boat_charter":{"included_divers":4}}`,
		"not numeric":     `{"boat_charter":{"base_cost":"lots"}}`,
		"included_divers": `{"boat_charter":{"base_cost":"1","included_divers":2.5}}`,
	}
	for want, raw := range cases {
		t.Run(want, func(t *testing.T) {
			fs := newFakeStore()
			withBoatTerms(t, fs, raw)
			svc := newTestService(fs)

			_, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: 2, At: jan1})
			var ce *ConfigurationError
			require.ErrorAs(t, err, &ce)
			assert.Contains(t, ce.Violations[0], want)
			assert.Equal(t, ErrTypeConfiguration, ErrorType(err))
		})
	}
}

func TestBoatCost_NonPositiveDiversFailBeforeLookup(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	for _, n := range []int{0, -3} {
		_, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: n})
		var ce *ConfigurationError
		require.ErrorAs(t, err, &ce)
		assert.Equal(t, []string{"diver_count <= 0"}, ce.Violations)
	}
	assert.Empty(t, fs.Calls())
}

func TestBoatCost_MissingAgreement(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	_, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-9", DiverCount: 2, At: jan1})
	assert.Equal(t, ErrTypeMissingVendorAgreement, ErrorType(err))
	assert.Contains(t, err.Error(), "vendor_pricing:12:site-9")
}

func TestBoatCost_ContentTypeResolvedOnceThroughCache(t *testing.T) {
	fs := newFakeStore()
	withBoatTerms(t, fs, `{"boat_charter":{"base_cost":"100"}}`)
	svc := newTestService(fs)

	for i := 0; i < 3; i++ {
		_, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: 2, At: jan1})
		require.NoError(t, err)
	}
	assert.Equal(t, 1, fs.count("content_type"))
	assert.Equal(t, 1, fs.count("vendor_agreement"))
}

func TestContentTypeID_Unregistered(t *testing.T) {
	fs := newFakeStore()
	svc := newTestService(fs)

	_, err := svc.ContentTypeID(context.Background(), ContentTypeRef{AppLabel: "nope", Model: "thing"})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, 0, svc.cache.ContentTypes.Len())
}

func TestBoatCost_ResultJSON(t *testing.T) {
	fs := newFakeStore()
	withBoatTerms(t, fs, `{"boat_charter":{"base_cost":"1000.00"}}`)
	svc := newTestService(fs)

	res, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: 3, At: jan1})
	require.NoError(t, err)

	raw, err := json.Marshal(res)
	require.NoError(t, err)
	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	assert.Equal(t, map[string]any{"amount": "333.33", "currency": "MXN"}, out["per_diver"])
	assert.Equal(t, float64(0), out["overage_count"])
}

// ─── Gas fills ───────────────────────────────────────────────────────────────

func withGasTerms(t *testing.T, fs *fakeStore, raw string) *model.Agreement {
	a := agreementWindow(jan1, nil)
	a.ScopeType = model.ScopeGasVendorPricing
	a.Terms = termsFrom(t, raw)
	fs.gasAgreement = func(partyA model.ScopeRef, _ time.Time) (*model.Agreement, error) {
		if partyA.ContentTypeID != 7 {
			return nil, nil
		}
		return a, nil
	}
	return a
}

const gasTerms = `{"gas_fills":{"air":{"cost":"45","charge":"80"},"ean32":{"cost":60.25,"charge":"110","currency":"USD"}}}`

func TestGasFills_FromTerms(t *testing.T) {
	fs := newFakeStore()
	a := withGasTerms(t, fs, gasTerms)
	svc := newTestService(fs)

	res, err := svc.GasFills(context.Background(), GasFillRequest{ShopID: "shop-1", GasType: "EAN32", FillsCount: 4, At: jan1})
	require.NoError(t, err)

	assertDecimal(t, "60.25", res.CostPerFill.Amount)
	assertDecimal(t, "110", res.ChargePerFill.Amount)
	assertDecimal(t, "241", res.TotalCost.Amount)
	assertDecimal(t, "440", res.TotalCharge.Amount)
	assert.Equal(t, "USD", res.TotalCost.Currency)
	assert.Equal(t, "EAN32", res.GasType)
	assert.Equal(t, a.ID.String(), res.AgreementID)
}

func TestGasFills_OverrideReplacesCharge(t *testing.T) {
	fs := newFakeStore()
	withGasTerms(t, fs, gasTerms)
	svc := newTestService(fs)

	override := decimal.RequireFromString("0")
	res, err := svc.GasFills(context.Background(), GasFillRequest{
		ShopID: "shop-1", GasType: "air", FillsCount: 2, ChargeOverride: &override, At: jan1,
	})
	require.NoError(t, err)
	assertDecimal(t, "0", res.ChargePerFill.Amount)
	assertDecimal(t, "0", res.TotalCharge.Amount)
	assertDecimal(t, "90", res.TotalCost.Amount)
	assert.Equal(t, "MXN", res.TotalCost.Currency)
}

func TestGasFills_Errors(t *testing.T) {
	fs := newFakeStore()
	withGasTerms(t, fs, gasTerms)
	svc := newTestService(fs)

	_, err := svc.GasFills(context.Background(), GasFillRequest{ShopID: "shop-1", GasType: "trimix", FillsCount: 1, At: jan1})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"gas_fills.trimix not in agreement.terms"}, ce.Violations)

	before := len(fs.Calls())
	_, err = svc.GasFills(context.Background(), GasFillRequest{ShopID: "shop-1", GasType: "air", FillsCount: 0})
	require.ErrorAs(t, err, &ce)
	assert.Len(t, fs.Calls(), before, "no lookup for non-positive fills")

	fs.gasAgreement = func(model.ScopeRef, time.Time) (*model.Agreement, error) { return nil, errors.New("down") }
	_, err = svc.GasFills(context.Background(), GasFillRequest{ShopID: "shop-1", GasType: "air", FillsCount: 1})
	assert.Equal(t, ErrTypeMissingVendorAgreement, ErrorType(err))
}

func TestGasFills_MissingSection(t *testing.T) {
	fs := newFakeStore()
	withGasTerms(t, fs, `{"boat_charter":{}}`)
	svc := newTestService(fs)

	_, err := svc.GasFills(context.Background(), GasFillRequest{ShopID: "shop-1", GasType: "air", FillsCount: 1, At: jan1})
	var ce *ConfigurationError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, []string{"gas_fills not in agreement.terms"}, ce.Violations)
}

// ─── Allocation and totals ───────────────────────────────────────────────────

func TestService_AllocateDefaultsCurrency(t *testing.T) {
	svc := newTestService(newFakeStore())
	res := svc.Allocate(decimal.NewFromInt(100), 3, "")
	assert.Equal(t, "MXN", res.PerShare.Currency)
	assert.Len(t, res.Amounts, 3)
}

func TestService_Totals(t *testing.T) {
	svc := newTestService(newFakeStore())
	res := svc.Totals([]money.Line{{Key: "boat", Allocation: "shared", Cost: decimal.NewFromInt(1000), Charge: decimal.NewFromInt(1200)}}, 4, "", nil)
	assertDecimal(t, "50", res.MarginPerDiver.Amount)
	assert.Equal(t, "MXN", res.MarginPerDiver.Currency)
}

func TestService_CatalogItemByName(t *testing.T) {
	fs := newFakeStore()
	fs.catalog["Nitrox fill"] = &model.CatalogItem{DisplayName: "Nitrox fill", Active: true}
	svc := newTestService(fs)

	item, err := svc.CatalogItemByName(context.Background(), "Nitrox fill")
	require.NoError(t, err)
	assert.True(t, item.Active)

	_, err = svc.CatalogItemByName(context.Background(), "Unknown")
	assert.Equal(t, ErrTypeMissingPrice, ErrorType(err))
}

func TestContentTypeStoreFailure_ReportedAsMissingAgreement(t *testing.T) {
	refused := errors.New("connection refused")
	fs := newFakeStore()
	fs.contentTypeErr = refused
	svc := newTestService(fs)

	_, err := svc.BoatCost(context.Background(), BoatCostRequest{SiteID: "site-1", DiverCount: 4, At: jan1})
	var mva *MissingVendorAgreementError
	require.ErrorAs(t, err, &mva)
	assert.Equal(t, model.ScopeVendorPricing, mva.ScopeType)
	assert.Equal(t, "site-1", mva.ScopeRef)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, ErrTypeMissingVendorAgreement, ErrorType(err))

	_, err = svc.GasFills(context.Background(), GasFillRequest{ShopID: "shop-1", GasType: "air", FillsCount: 1, At: jan1})
	require.ErrorAs(t, err, &mva)
	assert.Equal(t, model.ScopeGasVendorPricing, mva.ScopeType)
	assert.Equal(t, "shop-1", mva.ScopeRef)
	assert.ErrorIs(t, err, refused)

	assert.Zero(t, fs.count("vendor_agreement"))
	assert.Zero(t, fs.count("gas_agreement"))
}

func TestCatalogStoreFailure_ReportedAsMissingPrice(t *testing.T) {
	refused := errors.New("connection refused")
	fs := newFakeStore()
	fs.catalogErr = refused
	svc := newTestService(fs)

	_, err := svc.CatalogItemByName(context.Background(), "Nitrox fill")
	var mp *MissingPriceError
	require.ErrorAs(t, err, &mp)
	assert.Equal(t, "Nitrox fill", mp.CatalogItemID)
	assert.ErrorIs(t, err, refused)
	assert.Equal(t, ErrTypeMissingPrice, ErrorType(err))
}

// ─── Error taxonomy ──────────────────────────────────────────────────────────

func TestErrorTypeAndDetails(t *testing.T) {
	mva := &MissingVendorAgreementError{ScopeType: "vendor_pricing", ScopeRef: "12:abc"}
	assert.Equal(t, ErrTypeMissingVendorAgreement, ErrorType(mva))
	assert.Contains(t, mva.Error(), "vendor_pricing")
	assert.Equal(t, map[string]any{"scope_type": "vendor_pricing", "scope_ref": "12:abc"}, ErrorDetails(mva))

	mp := &MissingPriceError{CatalogItemID: "123", Context: "test"}
	assert.Contains(t, mp.Error(), "123")

	ce := &ConfigurationError{Message: "test error"}
	assert.Contains(t, ce.Error(), "test error")
	assert.Equal(t, map[string]any{"errors": []string{}}, ErrorDetails(ce))

	wrapped := errors.Join(errors.New("outer"), ce)
	assert.Equal(t, ErrTypeConfiguration, ErrorType(wrapped))

	assert.Equal(t, ErrTypeInvalidRequest, ErrorType(&RequestError{Message: "bad"}))
	assert.Equal(t, ErrTypeInvalidRequest, ErrorType(cache.ErrUnknownNamespace))
	assert.Equal(t, ErrTypeInternal, ErrorType(errors.New("boom")))
	assert.Nil(t, ErrorDetails(errors.New("boom")))
}

func TestParseContentTypeRef(t *testing.T) {
	ref, err := ParseContentTypeRef("operations.divesite")
	require.NoError(t, err)
	assert.Equal(t, ContentTypeRef{AppLabel: "operations", Model: "divesite"}, ref)

	for _, bad := range []string{"", "operations", ".divesite", "operations."} {
		_, err := ParseContentTypeRef(bad)
		assert.Error(t, err, bad)
	}
}
