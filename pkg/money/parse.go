package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"math"
	"strings"

	"github.com/shopspring/decimal"
)

// ErrNotNumeric is returned by ParseAmount for values that carry no number.
var ErrNotNumeric = errors.New("value is not numeric")

// ParseAmount converts a numeric literal taken from a semi-structured
// document into a decimal. Decimal strings and json.Number are parsed
// exactly; binary floats convert through their shortest representation so
// no precision is invented beyond what the float itself carries.
func ParseAmount(v any) (decimal.Decimal, error) {
	switch n := v.(type) {
	case decimal.Decimal:
		return n, nil
	case *decimal.Decimal:
		if n == nil {
			return decimal.Zero, ErrNotNumeric
		}
		return *n, nil
	case string:
		s := strings.TrimSpace(n)
		if s == "" {
			return decimal.Zero, ErrNotNumeric
		}
		d, err := decimal.NewFromString(s)
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, n)
		}
		return d, nil
	case json.Number:
		d, err := decimal.NewFromString(n.String())
		if err != nil {
			return decimal.Zero, fmt.Errorf("%w: %q", ErrNotNumeric, n.String())
		}
		return d, nil
	case float64:
		if math.IsNaN(n) || math.IsInf(n, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrNotNumeric, n)
		}
		return decimal.NewFromFloat(n), nil
	case float32:
		f := float64(n)
		if math.IsNaN(f) || math.IsInf(f, 0) {
			return decimal.Zero, fmt.Errorf("%w: %v", ErrNotNumeric, n)
		}
		return decimal.NewFromFloat32(n), nil
	case int:
		return decimal.NewFromInt(int64(n)), nil
	case int32:
		return decimal.NewFromInt32(n), nil
	case int64:
		return decimal.NewFromInt(n), nil
	default:
		return decimal.Zero, fmt.Errorf("%w: %T", ErrNotNumeric, v)
	}
}

// ParseCount converts an integer literal from a semi-structured document.
// Integral floats and numeric strings are accepted; fractional values are not.
func ParseCount(v any) (int64, error) {
	d, err := ParseAmount(v)
	if err != nil {
		return 0, err
	}
	if !d.Equal(d.Truncate(0)) {
		return 0, fmt.Errorf("%w: %s is not a whole number", ErrNotNumeric, d.String())
	}
	return d.IntPart(), nil
}
