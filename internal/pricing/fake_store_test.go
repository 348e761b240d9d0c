package pricing

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/happydiving/pricing-engine/pkg/model"
)

// fakeStore answers from in-memory fixtures and records every call.
type fakeStore struct {
	mu    sync.Mutex
	calls []string

	vendorAgreement func(scopeType string, ref model.ScopeRef, at time.Time) (*model.Agreement, error)
	gasAgreement    func(partyA model.ScopeRef, at time.Time) (*model.Agreement, error)

	byAgreement    map[uuid.UUID]*model.Price
	byParty        map[uuid.UUID]*model.Price
	byOrganization map[uuid.UUID]*model.Price
	global         *model.Price
	levelErr       map[string]error

	contentTypes   map[string]*model.ContentType
	contentTypeErr error
	catalog        map[string]*model.CatalogItem
	catalogErr     error
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		byAgreement:    map[uuid.UUID]*model.Price{},
		byParty:        map[uuid.UUID]*model.Price{},
		byOrganization: map[uuid.UUID]*model.Price{},
		levelErr:       map[string]error{},
		contentTypes: map[string]*model.ContentType{
			"operations.divesite":         {ID: 12, AppLabel: "operations", Model: "divesite"},
			"django_parties.organization": {ID: 7, AppLabel: "django_parties", Model: "organization"},
		},
		catalog: map[string]*model.CatalogItem{},
	}
}

func (f *fakeStore) record(call string) {
	f.mu.Lock()
	f.calls = append(f.calls, call)
	f.mu.Unlock()
}

func (f *fakeStore) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

func (f *fakeStore) count(call string) int {
	n := 0
	for _, c := range f.Calls() {
		if c == call {
			n++
		}
	}
	return n
}

func (f *fakeStore) FindVendorAgreement(_ context.Context, scopeType string, ref model.ScopeRef, at time.Time) (*model.Agreement, error) {
	f.record("vendor_agreement")
	if f.vendorAgreement == nil {
		return nil, nil
	}
	return f.vendorAgreement(scopeType, ref, at)
}

func (f *fakeStore) FindGasVendorAgreement(_ context.Context, partyA model.ScopeRef, at time.Time) (*model.Agreement, error) {
	f.record("gas_agreement")
	if f.gasAgreement == nil {
		return nil, nil
	}
	return f.gasAgreement(partyA, at)
}

func (f *fakeStore) FindPriceByAgreement(_ context.Context, _, agreementID uuid.UUID, _ time.Time) (*model.Price, error) {
	f.record(LevelAgreement)
	if err := f.levelErr[LevelAgreement]; err != nil {
		return nil, err
	}
	return f.byAgreement[agreementID], nil
}

func (f *fakeStore) FindPriceByParty(_ context.Context, _, partyID uuid.UUID, _ time.Time) (*model.Price, error) {
	f.record(LevelParty)
	if err := f.levelErr[LevelParty]; err != nil {
		return nil, err
	}
	return f.byParty[partyID], nil
}

func (f *fakeStore) FindPriceByOrganization(_ context.Context, _, organizationID uuid.UUID, _ time.Time) (*model.Price, error) {
	f.record(LevelOrganization)
	if err := f.levelErr[LevelOrganization]; err != nil {
		return nil, err
	}
	return f.byOrganization[organizationID], nil
}

func (f *fakeStore) FindGlobalPrice(_ context.Context, _ uuid.UUID, _ time.Time) (*model.Price, error) {
	f.record(LevelGlobal)
	if err := f.levelErr[LevelGlobal]; err != nil {
		return nil, err
	}
	return f.global, nil
}

func (f *fakeStore) GetContentType(_ context.Context, appLabel, modelName string) (*model.ContentType, error) {
	f.record("content_type")
	if f.contentTypeErr != nil {
		return nil, f.contentTypeErr
	}
	return f.contentTypes[appLabel+"."+modelName], nil
}

func (f *fakeStore) FindCatalogItemByName(_ context.Context, name string) (*model.CatalogItem, error) {
	f.record("catalog_item")
	if f.catalogErr != nil {
		return nil, f.catalogErr
	}
	return f.catalog[name], nil
}
