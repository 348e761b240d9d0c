package model

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/shopspring/decimal"

	"github.com/happydiving/pricing-engine/pkg/money"
)

// Terms is an agreement's semi-structured terms document. Accessors return
// an explicit presence flag so callers apply their own documented defaults.
type Terms map[string]any

// ParseTerms decodes a JSON terms document keeping numeric literals as
// json.Number, so "1500.50" survives without a float round trip.
func ParseTerms(raw []byte) (Terms, error) {
	if len(bytes.TrimSpace(raw)) == 0 {
		return Terms{}, nil
	}
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()

	var t Terms
	if err := dec.Decode(&t); err != nil {
		return nil, fmt.Errorf("decode terms: %w", err)
	}
	if t == nil {
		t = Terms{}
	}
	return t, nil
}

// Section returns the nested object stored under key.
func (t Terms) Section(key string) (Terms, bool) {
	return asTerms(t[key])
}

// SectionFold is Section with a case-insensitive key match. An exact
// lower-case key wins over other spellings.
func (t Terms) SectionFold(key string) (Terms, bool) {
	lower := strings.ToLower(key)
	if v, ok := t[lower]; ok {
		return asTerms(v)
	}
	for k, v := range t {
		if strings.EqualFold(k, key) {
			return asTerms(v)
		}
	}
	return nil, false
}

// Decimal reads a numeric field encoded as a decimal string or a number.
// ok is false when the key is absent or null.
func (t Terms) Decimal(key string) (d decimal.Decimal, ok bool, err error) {
	v, present := t[key]
	if !present || v == nil {
		return decimal.Zero, false, nil
	}
	d, err = money.ParseAmount(v)
	if err != nil {
		return decimal.Zero, true, fmt.Errorf("%s: %w", key, err)
	}
	return d, true, nil
}

// Count reads a whole-number field.
func (t Terms) Count(key string) (n int64, ok bool, err error) {
	v, present := t[key]
	if !present || v == nil {
		return 0, false, nil
	}
	n, err = money.ParseCount(v)
	if err != nil {
		return 0, true, fmt.Errorf("%s: %w", key, err)
	}
	return n, true, nil
}

// String reads a non-empty string field.
func (t Terms) String(key string) (string, bool) {
	s, ok := t[key].(string)
	if !ok || s == "" {
		return "", false
	}
	return s, true
}

func asTerms(v any) (Terms, bool) {
	switch m := v.(type) {
	case Terms:
		return m, true
	case map[string]any:
		return Terms(m), true
	default:
		return nil, false
	}
}
