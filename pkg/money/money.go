package money

import (
	"fmt"
	"strings"

	pkgerrors "github.com/tbraams/barkeep-backend/pkg/errors"
)

// Money is an exact amount in integer minor units tagged with its currency
// and decimal precision. It is never derived from or converted to binary
// floating point.
type Money struct {
	Amount    int64  `json:"amount" gorm:"column:amount;not null"`
	Currency  string `json:"currency" gorm:"column:currency;not null"`
	Precision int    `json:"precision" gorm:"column:precision;not null"`
}

// New builds a Money value from minor units and currency metadata.
func New(amount int64, currency string, precision int) (Money, error) {
	currency = strings.ToUpper(strings.TrimSpace(currency))
	if currency == "" {
		return Money{}, pkgerrors.New(pkgerrors.CodeValidation, "currency is required")
	}
	if precision < 0 {
		return Money{}, pkgerrors.New(pkgerrors.CodeValidation, "precision must be non-negative")
	}
	return Money{Amount: amount, Currency: currency, Precision: precision}, nil
}

// MustNew is New for trusted construction sites such as tests and config defaults.
func MustNew(amount int64, currency string, precision int) Money {
	m, err := New(amount, currency, precision)
	if err != nil {
		panic(err)
	}
	return m
}

func (m Money) compatibleWith(other Money) error {
	if m.Currency != other.Currency || m.Precision != other.Precision {
		return pkgerrors.New(pkgerrors.CodeValidation, fmt.Sprintf(
			"currency mismatch: %s/%d vs %s/%d",
			m.Currency, m.Precision, other.Currency, other.Precision,
		))
	}
	return nil
}

// Add returns m + other, failing on currency/precision mismatch.
func (m Money) Add(other Money) (Money, error) {
	if err := m.compatibleWith(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount + other.Amount, Currency: m.Currency, Precision: m.Precision}, nil
}

// Sub returns m - other, failing on currency/precision mismatch.
func (m Money) Sub(other Money) (Money, error) {
	if err := m.compatibleWith(other); err != nil {
		return Money{}, err
	}
	return Money{Amount: m.Amount - other.Amount, Currency: m.Currency, Precision: m.Precision}, nil
}

// MulQty scales the amount by an integer quantity. Quantities are unitless so
// no compatibility check applies.
func (m Money) MulQty(qty int) Money {
	return Money{Amount: m.Amount * int64(qty), Currency: m.Currency, Precision: m.Precision}
}

// Negate flips the sign of the amount.
func (m Money) Negate() Money {
	return Money{Amount: -m.Amount, Currency: m.Currency, Precision: m.Precision}
}

// Cmp returns -1, 0, or 1, failing on currency/precision mismatch.
func (m Money) Cmp(other Money) (int, error) {
	if err := m.compatibleWith(other); err != nil {
		return 0, err
	}
	switch {
	case m.Amount < other.Amount:
		return -1, nil
	case m.Amount > other.Amount:
		return 1, nil
	default:
		return 0, nil
	}
}

// IsNegative reports whether the amount is below zero.
func (m Money) IsNegative() bool {
	return m.Amount < 0
}

// IsZero reports whether the amount is exactly zero.
func (m Money) IsZero() bool {
	return m.Amount == 0
}

// String renders the amount with its precision applied, e.g. -1250 EUR/2 as
// "EUR -12.50".
func (m Money) String() string {
	minor := m.Amount
	sign := ""
	if minor < 0 {
		sign = "-"
		minor = -minor
	}
	if m.Precision == 0 {
		return fmt.Sprintf("%s %s%d", m.Currency, sign, minor)
	}
	div := int64(1)
	for i := 0; i < m.Precision; i++ {
		div *= 10
	}
	return fmt.Sprintf("%s %s%d.%0*d", m.Currency, sign, minor/div, m.Precision, minor%div)
}
