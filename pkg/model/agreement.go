package model

import (
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Scope types understood by the calculators.
const (
	ScopeVendorPricing    = "vendor_pricing"
	ScopeGasVendorPricing = "gas_vendor_pricing"
)

// ScopeRef is a polymorphic reference: a content type id plus an opaque id.
type ScopeRef struct {
	ContentTypeID int32  `json:"content_type_id"`
	ID            string `json:"id"`
}

func (r ScopeRef) String() string {
	return fmt.Sprintf("%d:%s", r.ContentTypeID, r.ID)
}

// Agreement mirrors a row of django_agreements_agreement. Values handed out
// by the cache are shared snapshots and must not be mutated.
type Agreement struct {
	ID                    uuid.UUID  `json:"id"`
	PartyAContentTypeID   *int32     `json:"party_a_content_type_id,omitempty"`
	PartyAID              string     `json:"party_a_id"`
	PartyBContentTypeID   *int32     `json:"party_b_content_type_id,omitempty"`
	PartyBID              string     `json:"party_b_id"`
	ScopeType             string     `json:"scope_type"`
	ScopeRefContentTypeID *int32     `json:"scope_ref_content_type_id,omitempty"`
	ScopeRefID            string     `json:"scope_ref_id"`
	Terms                 Terms      `json:"terms"`
	ValidFrom             time.Time  `json:"valid_from"`
	ValidTo               *time.Time `json:"valid_to,omitempty"`
	CurrentVersion        int32      `json:"current_version"`
	DeletedAt             *time.Time `json:"deleted_at,omitempty"`
}

// IsActiveAt reports whether the agreement governs at t: not soft-deleted,
// started at or before t, and t before the (exclusive) end of the window.
func (a *Agreement) IsActiveAt(t time.Time) bool {
	if a.DeletedAt != nil {
		return false
	}
	if a.ValidFrom.After(t) {
		return false
	}
	if a.ValidTo != nil {
		return t.Before(*a.ValidTo)
	}
	return true
}

// ScopeRef returns the agreement's governed reference. A missing content
// type id is reported as zero.
func (a *Agreement) ScopeRef() ScopeRef {
	var ct int32
	if a.ScopeRefContentTypeID != nil {
		ct = *a.ScopeRefContentTypeID
	}
	return ScopeRef{ContentTypeID: ct, ID: a.ScopeRefID}
}

// ContentType maps an (app label, model) pair to its integer id.
type ContentType struct {
	ID       int32  `json:"id"`
	AppLabel string `json:"app_label"`
	Model    string `json:"model"`
}

// Key is the canonical "app_label.model" form.
func (c ContentType) Key() string {
	return c.AppLabel + "." + c.Model
}
