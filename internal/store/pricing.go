package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"go.uber.org/zap"

	"github.com/happydiving/pricing-engine/pkg/model"
)

const agreementColumns = `
	id, party_a_content_type_id, party_a_id,
	party_b_content_type_id, party_b_id,
	scope_type, scope_ref_content_type_id, scope_ref_id,
	terms, valid_from, valid_to, current_version, deleted_at`

const priceColumns = `
	id, catalog_item_id, amount, currency,
	cost_amount, cost_currency,
	organization_id, party_id, agreement_id,
	valid_from, valid_to, priority`

// GetContentType looks up a content type by its natural pair.
func (s *PGStore) GetContentType(ctx context.Context, appLabel, modelName string) (*model.ContentType, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	var ct model.ContentType
	err := s.PG.QueryRow(ctx, `
		SELECT id, app_label, model
		FROM django_content_type
		WHERE app_label = $1 AND model = $2
	`, appLabel, modelName).Scan(&ct.ID, &ct.AppLabel, &ct.Model)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("GetContentType %s.%s: %w", appLabel, modelName, err)
	}
	return &ct, nil
}

// ListContentTypes returns every registered content type.
func (s *PGStore) ListContentTypes(ctx context.Context) ([]model.ContentType, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	rows, err := s.PG.Query(ctx, `SELECT id, app_label, model FROM django_content_type`)
	if err != nil {
		return nil, fmt.Errorf("ListContentTypes: %w", err)
	}
	defer rows.Close()

	var out []model.ContentType
	for rows.Next() {
		var ct model.ContentType
		if err := rows.Scan(&ct.ID, &ct.AppLabel, &ct.Model); err != nil {
			return nil, fmt.Errorf("ListContentTypes scan failed: %w", err)
		}
		out = append(out, ct)
	}
	return out, rows.Err()
}

// FindVendorAgreement returns the most recently started agreement of
// scopeType governing ref at t.
func (s *PGStore) FindVendorAgreement(ctx context.Context, scopeType string, ref model.ScopeRef, at time.Time) (*model.Agreement, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	row := s.PG.QueryRow(ctx, `
		SELECT`+agreementColumns+`
		FROM django_agreements_agreement
		WHERE scope_type = $1
		  AND scope_ref_content_type_id = $2
		  AND scope_ref_id = $3
		  AND valid_from <= $4
		  AND (valid_to IS NULL OR valid_to > $4)
		  AND deleted_at IS NULL
		ORDER BY valid_from DESC
		LIMIT 1
	`, scopeType, ref.ContentTypeID, ref.ID, at)

	a, err := scanAgreement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindVendorAgreement %s %s: %w", scopeType, ref, err)
	}
	return a, nil
}

// FindGasVendorAgreement returns the gas vendor agreement whose party A is
// the given dive shop.
func (s *PGStore) FindGasVendorAgreement(ctx context.Context, partyA model.ScopeRef, at time.Time) (*model.Agreement, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	row := s.PG.QueryRow(ctx, `
		SELECT`+agreementColumns+`
		FROM django_agreements_agreement
		WHERE scope_type = $1
		  AND party_a_content_type_id = $2
		  AND party_a_id = $3
		  AND valid_from <= $4
		  AND (valid_to IS NULL OR valid_to > $4)
		  AND deleted_at IS NULL
		ORDER BY valid_from DESC
		LIMIT 1
	`, model.ScopeGasVendorPricing, partyA.ContentTypeID, partyA.ID, at)

	a, err := scanAgreement(row)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindGasVendorAgreement %s: %w", partyA, err)
	}
	return a, nil
}

// ListActiveVendorAgreements returns every vendor and gas vendor agreement
// active at t.
func (s *PGStore) ListActiveVendorAgreements(ctx context.Context, at time.Time) ([]*model.Agreement, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	rows, err := s.PG.Query(ctx, `
		SELECT`+agreementColumns+`
		FROM django_agreements_agreement
		WHERE scope_type IN ($1, $2)
		  AND valid_from <= $3
		  AND (valid_to IS NULL OR valid_to > $3)
		  AND deleted_at IS NULL
	`, model.ScopeVendorPricing, model.ScopeGasVendorPricing, at)
	if err != nil {
		return nil, fmt.Errorf("ListActiveVendorAgreements: %w", err)
	}
	defer rows.Close()

	var out []*model.Agreement
	for rows.Next() {
		a, err := scanAgreement(rows)
		if err != nil {
			// One unreadable terms document should not hide the rest.
			s.logger.Warn("store.pg.agreement_skipped", zap.Error(err))
			continue
		}
		out = append(out, a)
	}
	return out, rows.Err()
}

func (s *PGStore) FindPriceByAgreement(ctx context.Context, catalogItemID, agreementID uuid.UUID, at time.Time) (*model.Price, error) {
	return s.findPrice(ctx, "FindPriceByAgreement", `
		SELECT`+priceColumns+`
		FROM pricing_price
		WHERE catalog_item_id = $1
		  AND agreement_id = $2
		  AND valid_from <= $3
		  AND (valid_to IS NULL OR valid_to > $3)
		ORDER BY priority DESC, valid_from DESC
		LIMIT 1
	`, catalogItemID, agreementID, at)
}

func (s *PGStore) FindPriceByParty(ctx context.Context, catalogItemID, partyID uuid.UUID, at time.Time) (*model.Price, error) {
	return s.findPrice(ctx, "FindPriceByParty", `
		SELECT`+priceColumns+`
		FROM pricing_price
		WHERE catalog_item_id = $1
		  AND party_id = $2
		  AND agreement_id IS NULL
		  AND valid_from <= $3
		  AND (valid_to IS NULL OR valid_to > $3)
		ORDER BY priority DESC, valid_from DESC
		LIMIT 1
	`, catalogItemID, partyID, at)
}

func (s *PGStore) FindPriceByOrganization(ctx context.Context, catalogItemID, organizationID uuid.UUID, at time.Time) (*model.Price, error) {
	return s.findPrice(ctx, "FindPriceByOrganization", `
		SELECT`+priceColumns+`
		FROM pricing_price
		WHERE catalog_item_id = $1
		  AND organization_id = $2
		  AND party_id IS NULL
		  AND agreement_id IS NULL
		  AND valid_from <= $3
		  AND (valid_to IS NULL OR valid_to > $3)
		ORDER BY priority DESC, valid_from DESC
		LIMIT 1
	`, catalogItemID, organizationID, at)
}

func (s *PGStore) FindGlobalPrice(ctx context.Context, catalogItemID uuid.UUID, at time.Time) (*model.Price, error) {
	return s.findPrice(ctx, "FindGlobalPrice", `
		SELECT`+priceColumns+`
		FROM pricing_price
		WHERE catalog_item_id = $1
		  AND organization_id IS NULL
		  AND party_id IS NULL
		  AND agreement_id IS NULL
		  AND valid_from <= $2
		  AND (valid_to IS NULL OR valid_to > $2)
		ORDER BY priority DESC, valid_from DESC
		LIMIT 1
	`, catalogItemID, at)
}

// FindCatalogItemByName looks up an active catalog item by display name.
func (s *PGStore) FindCatalogItemByName(ctx context.Context, displayName string) (*model.CatalogItem, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	var item model.CatalogItem
	err := s.PG.QueryRow(ctx, `
		SELECT id, display_name, active
		FROM django_catalog_catalogitem
		WHERE display_name = $1
		  AND active = true
		  AND deleted_at IS NULL
		LIMIT 1
	`, displayName).Scan(&item.ID, &item.DisplayName, &item.Active)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("FindCatalogItemByName %q: %w", displayName, err)
	}
	return &item, nil
}

func (s *PGStore) findPrice(ctx context.Context, op, query string, args ...any) (*model.Price, error) {
	if s.PG == nil {
		return nil, ErrPostgresUnavailable
	}
	var p model.Price
	err := s.PG.QueryRow(ctx, query, args...).Scan(
		&p.ID, &p.CatalogItemID, &p.Amount, &p.Currency,
		&p.CostAmount, &p.CostCurrency,
		&p.OrganizationID, &p.PartyID, &p.AgreementID,
		&p.ValidFrom, &p.ValidTo, &p.Priority,
	)
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("%s scan failed: %w", op, err)
	}
	return &p, nil
}

func scanAgreement(row pgx.Row) (*model.Agreement, error) {
	var (
		a     model.Agreement
		terms []byte
	)
	if err := row.Scan(
		&a.ID, &a.PartyAContentTypeID, &a.PartyAID,
		&a.PartyBContentTypeID, &a.PartyBID,
		&a.ScopeType, &a.ScopeRefContentTypeID, &a.ScopeRefID,
		&terms, &a.ValidFrom, &a.ValidTo, &a.CurrentVersion, &a.DeletedAt,
	); err != nil {
		return nil, err
	}
	t, err := model.ParseTerms(terms)
	if err != nil {
		return nil, fmt.Errorf("agreement %s: %w", a.ID, err)
	}
	a.Terms = t
	return &a, nil
}
