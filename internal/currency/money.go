package currency

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/kwachalink/corridor_compliance/pkg/errors"
)

// Money is a fixed-point amount in a single currency. Amounts are normally
// non-negative; negative values are reserved for explicit adjustments and are
// never produced by normalization of upstream payloads.
type Money struct {
	Amount   decimal.Decimal `json:"amount"`
	Currency Code            `json:"currency"`
}

// New builds a Money value without rounding.
func New(amount decimal.Decimal, code Code) Money {
	return Money{Amount: amount, Currency: code}
}

// Zero returns the zero amount in the given currency.
func Zero(code Code) Money {
	return Money{Amount: decimal.Zero, Currency: code}
}

// Round applies banker's rounding (half-even) to the currency's minor unit.
func (m Money) Round() Money {
	m.Amount = m.Amount.RoundBank(m.Currency.MinorUnits())
	return m
}

// Add returns m + other. Both operands must share a currency.
func (m Money) Add(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, errors.Validation("cannot add %s to %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount.Add(other.Amount), Currency: m.Currency}, nil
}

// Sub returns m - other. Both operands must share a currency.
func (m Money) Sub(other Money) (Money, error) {
	if m.Currency != other.Currency {
		return Money{}, errors.Validation("cannot subtract %s from %s", other.Currency, m.Currency)
	}
	return Money{Amount: m.Amount.Sub(other.Amount), Currency: m.Currency}, nil
}

// Equal reports amount and currency equality.
func (m Money) Equal(other Money) bool {
	return m.Currency == other.Currency && m.Amount.Equal(other.Amount)
}

// IsZero reports a zero amount.
func (m Money) IsZero() bool { return m.Amount.IsZero() }

// IsNegative reports an explicit adjustment amount.
func (m Money) IsNegative() bool { return m.Amount.IsNegative() }

// GreaterThanOrEqual compares amounts; currencies must match for the result to
// be meaningful, mismatches compare false.
func (m Money) GreaterThanOrEqual(other Money) bool {
	if m.Currency != other.Currency {
		return false
	}
	return m.Amount.GreaterThanOrEqual(other.Amount)
}

func (m Money) String() string {
	return fmt.Sprintf("%s %s", m.Amount.StringFixed(m.Currency.MinorUnits()), m.Currency)
}
