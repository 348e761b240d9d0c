package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func assertAmount(t *testing.T, want string, got decimal.Decimal) {
	t.Helper()
	assert.Truef(t, dec(want).Equal(got), "want %s, got %s", want, got.String())
}

// ─── Round ───────────────────────────────────────────────────────────────────

func TestRound_HalfToEven(t *testing.T) {
	cases := []struct {
		in     string
		places int32
		want   string
	}{
		{"2.5", 0, "2"},
		{"3.5", 0, "4"},
		{"4.5", 0, "4"},
		{"5.5", 0, "6"},
		{"2.25", 1, "2.2"},
		{"2.35", 1, "2.4"},
		{"2.45", 1, "2.4"},
		{"2.55", 1, "2.6"},
		{"-2.5", 0, "-2"},
		{"-3.5", 0, "-4"},
		{"0.125", 2, "0.12"},
		{"0.135", 2, "0.14"},
	}
	for _, tc := range cases {
		assertAmount(t, tc.want, Round(dec(tc.in), tc.places))
	}
}

func TestRound_NonMidpoint(t *testing.T) {
	assertAmount(t, "1.23", Round(dec("1.234"), 2))
	assertAmount(t, "1.24", Round(dec("1.236"), 2))
	assertAmount(t, "1.23", Round(dec("1.2349"), 2))
	assertAmount(t, "1.24", Round(dec("1.2351"), 2))
	assertAmount(t, "-1.23", Round(dec("-1.234"), 2))
}

func TestRound_ZeroAndLarge(t *testing.T) {
	assertAmount(t, "0", Round(decimal.Zero, 2))
	assertAmount(t, "123456.79", Round(dec("123456.789"), 2))
	assertAmount(t, "1000000.00", Round(dec("999999.995"), 2))
}

// ─── Allocate ────────────────────────────────────────────────────────────────

func TestAllocate_EvenSplit(t *testing.T) {
	res := Allocate(dec("100"), 4, "MXN")

	assertAmount(t, "25", res.PerShare.Amount)
	require.Len(t, res.Amounts, 4)
	for _, m := range res.Amounts {
		assertAmount(t, "25", m.Amount)
		assert.Equal(t, "MXN", m.Currency)
	}
}

func TestAllocate_RemainderGoesToFirstShares(t *testing.T) {
	res := Allocate(dec("100"), 3, "MXN")

	assertAmount(t, "33.33", res.PerShare.Amount)
	require.Len(t, res.Amounts, 3)
	assertAmount(t, "33.34", res.Amounts[0].Amount)
	assertAmount(t, "33.33", res.Amounts[1].Amount)
	assertAmount(t, "33.33", res.Amounts[2].Amount)
}

func TestAllocate_NegativeRemainder(t *testing.T) {
	// 100/7 rounds to 14.29; 14.29*7 = 100.03 so three shares lose a cent.
	res := Allocate(dec("100"), 7, "MXN")

	assertAmount(t, "14.29", res.PerShare.Amount)
	assertAmount(t, "14.28", res.Amounts[0].Amount)
	assertAmount(t, "14.28", res.Amounts[2].Amount)
	assertAmount(t, "14.29", res.Amounts[3].Amount)
}

func TestAllocate_SumEqualsTotal(t *testing.T) {
	totals := []string{"100", "0.01", "0.05", "999.99", "1234.56", "-100", "7", "33.333", "0"}
	for _, total := range totals {
		for n := 1; n <= 13; n++ {
			res := Allocate(dec(total), n, "MXN")
			sum := decimal.Zero
			for _, m := range res.Amounts {
				sum = sum.Add(m.Amount)
			}
			if dec(total).Equal(Round(dec(total), 2)) {
				assert.Truef(t, sum.Equal(dec(total)), "total=%s n=%d sum=%s", total, n, sum)
			}
			assert.Len(t, res.Amounts, n)
		}
	}
}

func TestAllocate_NonPositiveCount(t *testing.T) {
	for _, n := range []int{0, -1} {
		res := Allocate(dec("100"), n, "MXN")
		assertAmount(t, "0", res.PerShare.Amount)
		assert.Equal(t, "MXN", res.PerShare.Currency)
		assert.Empty(t, res.Amounts)
	}
}

func TestAllocate_SingleShare(t *testing.T) {
	res := Allocate(dec("100"), 1, "USD")
	require.Len(t, res.Amounts, 1)
	assertAmount(t, "100", res.Amounts[0].Amount)
	assert.Equal(t, "USD", res.Amounts[0].Currency)
}

// ─── AggregateTotals ─────────────────────────────────────────────────────────

func boatLine() Line {
	return Line{Key: "boat", Allocation: AllocationShared, Cost: dec("1000"), Charge: dec("1200")}
}

func TestAggregateTotals_SharedOnly(t *testing.T) {
	totals := AggregateTotals([]Line{boatLine()}, 4, "MXN", nil)

	assertAmount(t, "1000", totals.SharedCost.Amount)
	assertAmount(t, "1200", totals.SharedCharge.Amount)
	assertAmount(t, "250", totals.SharedCostPerDiver.Amount)
	assertAmount(t, "300", totals.SharedChargePerDiver.Amount)
	assertAmount(t, "0", totals.PerDiverCost.Amount)
	assertAmount(t, "0", totals.PerDiverCharge.Amount)
	assertAmount(t, "250", totals.TotalCostPerDiver.Amount)
	assertAmount(t, "300", totals.TotalChargePerDiver.Amount)
	assertAmount(t, "50", totals.MarginPerDiver.Amount)
	assert.Equal(t, 4, totals.DiverCount)
}

func TestAggregateTotals_PerDiverOnlyNegativeMargin(t *testing.T) {
	lines := []Line{{Key: "gas", Allocation: AllocationPerDiver, Cost: dec("50"), Charge: decimal.Zero}}
	totals := AggregateTotals(lines, 4, "MXN", nil)

	assertAmount(t, "0", totals.SharedCost.Amount)
	assertAmount(t, "50", totals.PerDiverCost.Amount)
	assertAmount(t, "50", totals.TotalCostPerDiver.Amount)
	assertAmount(t, "-50", totals.MarginPerDiver.Amount)
}

func TestAggregateTotals_MixedWithRentals(t *testing.T) {
	lines := []Line{
		boatLine(),
		{Key: "gas", Allocation: "per_participant", Cost: dec("50"), Charge: decimal.Zero},
	}
	rentals := []Rental{{UnitCost: dec("10"), UnitCharge: dec("25"), Quantity: 2}}

	totals := AggregateTotals(lines, 4, "MXN", rentals)

	assertAmount(t, "70", totals.PerDiverCost.Amount)
	assertAmount(t, "50", totals.PerDiverCharge.Amount)
	assertAmount(t, "320", totals.TotalCostPerDiver.Amount)
	assertAmount(t, "350", totals.TotalChargePerDiver.Amount)
	assertAmount(t, "30", totals.MarginPerDiver.Amount)
}

func TestAggregateTotals_ZeroDivers(t *testing.T) {
	totals := AggregateTotals([]Line{boatLine()}, 0, "MXN", nil)

	assertAmount(t, "0", totals.SharedCostPerDiver.Amount)
	assertAmount(t, "0", totals.SharedChargePerDiver.Amount)
	assert.Equal(t, 0, totals.DiverCount)
	assert.Equal(t, "MXN", totals.MarginPerDiver.Currency)
}

func TestAggregateTotals_UnknownAllocationIgnored(t *testing.T) {
	lines := []Line{{Key: "mystery", Allocation: "per_boat", Cost: dec("999"), Charge: dec("999")}}
	totals := AggregateTotals(lines, 2, "MXN", nil)

	assertAmount(t, "0", totals.SharedCost.Amount)
	assertAmount(t, "0", totals.PerDiverCost.Amount)
}

func TestAggregateTotals_AllFieldsSerialized(t *testing.T) {
	raw, err := json.Marshal(AggregateTotals(nil, 0, "MXN", nil))
	require.NoError(t, err)

	var out map[string]any
	require.NoError(t, json.Unmarshal(raw, &out))
	for _, field := range []string{
		"shared_cost", "shared_charge", "per_diver_cost", "per_diver_charge",
		"shared_cost_per_diver", "shared_charge_per_diver", "total_cost_per_diver",
		"total_charge_per_diver", "margin_per_diver", "diver_count",
	} {
		assert.Contains(t, out, field)
	}
	assert.Equal(t, map[string]any{"amount": "0", "currency": "MXN"}, out["margin_per_diver"])
}

// ─── ParseAmount ─────────────────────────────────────────────────────────────

func TestParseAmount_Encodings(t *testing.T) {
	d, err := ParseAmount("1500.50")
	require.NoError(t, err)
	assertAmount(t, "1500.50", d)

	d, err = ParseAmount(json.Number("0.1"))
	require.NoError(t, err)
	assertAmount(t, "0.1", d)

	d, err = ParseAmount(0.1)
	require.NoError(t, err)
	assertAmount(t, "0.1", d)

	d, err = ParseAmount(250)
	require.NoError(t, err)
	assertAmount(t, "250", d)
}

func TestParseAmount_Rejects(t *testing.T) {
	for _, v := range []any{"", "abc", nil, true, map[string]any{}} {
		_, err := ParseAmount(v)
		assert.ErrorIs(t, err, ErrNotNumeric)
	}
}

func TestParseCount(t *testing.T) {
	n, err := ParseCount(float64(6))
	require.NoError(t, err)
	assert.Equal(t, int64(6), n)

	n, err = ParseCount("4")
	require.NoError(t, err)
	assert.Equal(t, int64(4), n)

	_, err = ParseCount(4.5)
	assert.ErrorIs(t, err, ErrNotNumeric)
}
