// Package moneyx holds the ledger value objects: a decimal Money type with
// 2-digit precision and the transaction reference generator. Monetary values
// never touch binary floats internally; the only approximate comparison is
// EqualsApprox with a 0.01 epsilon, used where callers may echo an amount
// back across the API boundary.
package moneyx

import (
	"database/sql/driver"
	"fmt"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

// epsilon is the tolerance for cross-boundary amount comparisons,
// 0.01 currency units.
var epsilon = decimal.New(1, -2)

// Money is an immutable amount with 2-digit precision.
type Money struct {
	d decimal.Decimal
}

// Zero returns the zero amount.
func Zero() Money {
	return Money{}
}

// FromFloat builds a Money from a float64, rounding to 2 decimal places.
func FromFloat(v float64) Money {
	return Money{d: decimal.NewFromFloat(v).Round(2)}
}

// FromString parses a decimal string ("1000.00") into a Money.
func FromString(s string) (Money, error) {
	d, err := decimal.NewFromString(s)
	if err != nil {
		return Money{}, fmt.Errorf("invalid amount %q: %w", s, err)
	}
	return Money{d: d.Round(2)}, nil
}

// FromDecimal wraps an existing decimal, rounding to 2 decimal places.
func FromDecimal(d decimal.Decimal) Money {
	return Money{d: d.Round(2)}
}

func (m Money) Add(o Money) Money { return Money{d: m.d.Add(o.d)} }
func (m Money) Sub(o Money) Money { return Money{d: m.d.Sub(o.d)} }

func (m Money) IsPositive() bool         { return m.d.IsPositive() }
func (m Money) IsZero() bool             { return m.d.IsZero() }
func (m Money) GreaterThan(o Money) bool { return m.d.GreaterThan(o.d) }
func (m Money) LessThan(o Money) bool    { return m.d.LessThan(o.d) }

// Equal reports exact equality.
func (m Money) Equal(o Money) bool { return m.d.Equal(o.d) }

// EqualsApprox reports equality within 0.01 currency units.
func (m Money) EqualsApprox(o Money) bool {
	return m.d.Sub(o.d).Abs().LessThanOrEqual(epsilon)
}

// ClampNonNegative returns the amount, or zero if it is negative.
func (m Money) ClampNonNegative() Money {
	if m.d.IsNegative() {
		return Money{}
	}
	return m
}

// Float64 returns the amount as a float64 for presentation only.
func (m Money) Float64() float64 {
	f, _ := m.d.Float64()
	return f
}

// String renders the amount with exactly two decimal places.
func (m Money) String() string {
	return m.d.StringFixed(2)
}

// Decimal exposes the underlying decimal value.
func (m Money) Decimal() decimal.Decimal { return m.d }

// Value implements driver.Valuer for numeric columns.
func (m Money) Value() (driver.Value, error) {
	return m.d.StringFixed(2), nil
}

// Scan implements sql.Scanner.
func (m *Money) Scan(src any) error {
	var d decimal.Decimal
	if err := d.Scan(src); err != nil {
		return err
	}
	m.d = d.Round(2)
	return nil
}

// MarshalJSON renders the amount as a plain 2dp number.
func (m Money) MarshalJSON() ([]byte, error) {
	return []byte(m.d.StringFixed(2)), nil
}

// UnmarshalJSON accepts both numbers and quoted decimal strings.
func (m *Money) UnmarshalJSON(b []byte) error {
	var d decimal.Decimal
	if err := d.UnmarshalJSON(b); err != nil {
		return err
	}
	m.d = d.Round(2)
	return nil
}

// NewTxRef generates a unique external transaction reference.
func NewTxRef() string {
	return "TXN-" + uuid.NewString()
}
