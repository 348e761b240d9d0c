// Package money implements exact decimal arithmetic for pricing: banker's
// rounding, shared-cost allocation and per-diver totals. Amounts are
// decimals end to end.
package money

import (
	"fmt"

	"github.com/shopspring/decimal"
)

// DefaultCurrency is used when a request or agreement omits a currency.
const DefaultCurrency = "MXN"

// divisionPrecision is the number of fractional digits kept in
// intermediate quotients.
const divisionPrecision int32 = 28

// Cent is the minimal currency unit used when distributing remainders.
var Cent = decimal.New(1, -2)

// Money pairs an amount with an opaque currency code.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency string          `json:"currency"`
}

// New builds a Money value.
func New(amount decimal.Decimal, currency string) Money {
	return Money{Amount: amount, Currency: currency}
}

// Zero returns a zero amount in currency.
func Zero(currency string) Money {
	return Money{Amount: decimal.Zero, Currency: currency}
}

// Add returns m + other. Currencies are carried opaquely; m's code wins.
func (m Money) Add(other Money) Money {
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}
}

// Mul returns m multiplied by an integer quantity.
func (m Money) Mul(qty int64) Money {
	return Money{Amount: m.Amount.Mul(decimal.NewFromInt(qty)), Currency: m.Currency}
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.String(), m.Currency)
}

// Round rounds amount to places decimal places with round-half-to-even.
//
//	Round(2.5, 0)  == 2
//	Round(3.5, 0)  == 4
//	Round(-2.5, 0) == -2
func Round(amount decimal.Decimal, places int32) decimal.Decimal {
	return amount.RoundBank(places)
}

// Divide returns a/n with enough precision that Round never sees a
// truncation artefact at money scale.
func Divide(a decimal.Decimal, n int64) decimal.Decimal {
	return a.DivRound(decimal.NewFromInt(n), divisionPrecision)
}

// Allocation is the result of splitting a shared amount.
type Allocation struct {
	PerShare Money   `json:"per_participant"`
	Amounts  []Money `json:"amounts"`
}

// Allocate splits total across n participants. Every share starts at the
// rounded quotient; the rounding remainder is spread one cent at a time
// over the first shares so the shares sum back to total.
func Allocate(total decimal.Decimal, n int, currency string) Allocation {
	if n <= 0 {
		return Allocation{PerShare: Zero(currency), Amounts: []Money{}}
	}

	base := Round(Divide(total, int64(n)), 2)
	remainder := total.Sub(base.Mul(decimal.NewFromInt(int64(n))))

	amounts := make([]Money, n)
	for i := range amounts {
		amounts[i] = New(base, currency)
	}

	if !remainder.IsZero() {
		step := Cent
		if remainder.Sign() < 0 {
			step = Cent.Neg()
		}
		k := int(remainder.Abs().Div(Cent).Floor().IntPart())
		if k > n {
			k = n
		}
		for i := 0; i < k; i++ {
			amounts[i].Amount = amounts[i].Amount.Add(step)
		}
	}

	return Allocation{PerShare: New(base, currency), Amounts: amounts}
}
