// Package money provides currency-safe arithmetic for subscription prices using
// integer minor units. Prices are stored as decimals on records and converted to
// Money whenever they are summed or displayed.
package money

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"

	"github.com/Rhymond/go-money"
	"github.com/shopspring/decimal"
)

// Common currency codes (ISO-4217)
const (
	BRL = "BRL" // Brazilian Real
	USD = "USD" // US Dollar
	EUR = "EUR" // Euro
	GBP = "GBP" // British Pound
)

// DefaultCurrency is used when a caller passes an unknown currency code.
const DefaultCurrency = BRL

var (
	// ErrInvalidAmount is returned when a textual amount cannot be parsed.
	ErrInvalidAmount = errors.New("invalid amount")

	// ErrAmountTooLarge is returned for amounts above MaxAmount.
	ErrAmountTooLarge = errors.New("amount too large")
)

// MaxAmount is the largest single amount, in major units, accepted as a price.
// Totals of millions of such amounts, and their yearly multiple, stay inside
// int64 minor units.
var MaxAmount = decimal.New(1, 9)

// Money represents a monetary value with currency.
type Money struct {
	m *money.Money
}

// New creates a new Money value from minor units and a currency code.
func New(amountCents int64, currencyCode string) *Money {
	return &Money{m: money.New(amountCents, normalize(currencyCode))}
}

// Zero returns a zero Money value for the given currency
func Zero(currencyCode string) *Money {
	return New(0, currencyCode)
}

// NewFromDecimal creates Money from a decimal.Decimal value, rounding half away
// from zero to the currency's minor unit.
func NewFromDecimal(amount decimal.Decimal, currencyCode string) *Money {
	code := normalize(currencyCode)
	currency := money.GetCurrency(code)

	multiplier := decimal.New(1, int32(currency.Fraction))
	cents := amount.Mul(multiplier).Round(0).IntPart()

	return New(cents, code)
}

// ParseDecimal parses user input such as "45.90", "45,90", "R$ 1.234,56" or
// "1,234.56" into a decimal. A lone comma is treated as the decimal separator.
func ParseDecimal(amount string) (decimal.Decimal, error) {
	amount = strings.TrimSpace(amount)
	amount = strings.ReplaceAll(amount, " ", "")

	for _, sym := range []string{"R$", "$", "€", "£"} {
		amount = strings.ReplaceAll(amount, sym, "")
	}
	if amount == "" {
		return decimal.Zero, fmt.Errorf("%w: empty", ErrInvalidAmount)
	}

	hasComma := strings.Contains(amount, ",")
	hasDot := strings.Contains(amount, ".")
	switch {
	case hasComma && hasDot && strings.LastIndex(amount, ",") > strings.LastIndex(amount, "."):
		// European: 1.234,56 -> 1234.56
		amount = strings.ReplaceAll(amount, ".", "")
		amount = strings.ReplaceAll(amount, ",", ".")
	case hasComma && hasDot:
		// American: 1,234.56 -> 1234.56
		amount = strings.ReplaceAll(amount, ",", "")
	case hasComma:
		amount = strings.ReplaceAll(amount, ",", ".")
	}

	d, err := decimal.NewFromString(amount)
	if err != nil {
		return decimal.Zero, fmt.Errorf("%w: %q", ErrInvalidAmount, amount)
	}
	return d, nil
}

// RoundToCurrency rounds amount half away from zero to the currency's minor
// digits, so stored amounts and their Money totals agree to the cent.
func RoundToCurrency(amount decimal.Decimal, currencyCode string) (decimal.Decimal, error) {
	if amount.Abs().GreaterThan(MaxAmount) {
		return decimal.Zero, fmt.Errorf("%w: %s exceeds %s", ErrAmountTooLarge, amount.String(), MaxAmount.String())
	}
	currency := money.GetCurrency(normalize(currencyCode))
	return amount.Round(int32(currency.Fraction)), nil
}

// IsKnownCurrency reports whether code is an ISO-4217 code go-money knows about.
func IsKnownCurrency(code string) bool {
	return code != "" && money.GetCurrency(strings.ToUpper(code)) != nil
}

// Amount returns the amount in minor units (cents)
func (m *Money) Amount() int64 {
	if m == nil || m.m == nil {
		return 0
	}
	return m.m.Amount()
}

// Currency returns the ISO-4217 currency code
func (m *Money) Currency() string {
	if m == nil || m.m == nil {
		return ""
	}
	return m.m.Currency().Code
}

// IsZero returns true if the amount is zero
func (m *Money) IsZero() bool {
	return m == nil || m.m == nil || m.m.IsZero()
}

// IsNegative returns true if the amount is less than zero
func (m *Money) IsNegative() bool {
	return m != nil && m.m != nil && m.m.IsNegative()
}

// Add adds two Money values. Returns error if currencies don't match.
func (m *Money) Add(other *Money) (*Money, error) {
	if m == nil || m.m == nil {
		return other, nil
	}
	if other == nil || other.m == nil {
		return m, nil
	}

	result, err := m.m.Add(other.m)
	if err != nil {
		return nil, err
	}
	return &Money{m: result}, nil
}

// MustAdd adds two Money values, panics if currencies don't match.
func (m *Money) MustAdd(other *Money) *Money {
	result, err := m.Add(other)
	if err != nil {
		panic(err)
	}
	return result
}

// Multiply multiplies by an integer factor
func (m *Money) Multiply(factor int64) *Money {
	if m == nil || m.m == nil {
		return Zero(DefaultCurrency)
	}
	return &Money{m: m.m.Multiply(factor)}
}

// Equals returns true if both values are equal
func (m *Money) Equals(other *Money) bool {
	if m == nil || m.m == nil {
		return other.IsZero()
	}
	if other == nil || other.m == nil {
		return m.IsZero()
	}
	eq, _ := m.m.Equals(other.m)
	return eq
}

// Display returns a formatted string for display (e.g., "R$45,90")
func (m *Money) Display() string {
	if m == nil || m.m == nil {
		return Zero(DefaultCurrency).Display()
	}
	return m.m.Display()
}

// String returns the amount with exactly the currency's minor digits (e.g., "45.90")
func (m *Money) String() string {
	if m == nil || m.m == nil {
		return "0.00"
	}
	return m.ToDecimal().StringFixed(int32(m.m.Currency().Fraction))
}

// ToDecimal converts to decimal.Decimal for precise calculations
func (m *Money) ToDecimal() decimal.Decimal {
	if m == nil || m.m == nil {
		return decimal.Zero
	}
	d := decimal.NewFromInt(m.m.Amount())
	return d.Div(decimal.New(1, int32(m.m.Currency().Fraction)))
}

// Sum adds every decimal amount in currencyCode.
func Sum(currencyCode string, amounts ...decimal.Decimal) *Money {
	total := Zero(currencyCode)
	for _, a := range amounts {
		total = total.MustAdd(NewFromDecimal(a, currencyCode))
	}
	return total
}

// MarshalJSON renders the amount alongside its currency and display form.
func (m *Money) MarshalJSON() ([]byte, error) {
	if m == nil || m.m == nil {
		return json.Marshal(nil)
	}
	return json.Marshal(map[string]interface{}{
		"amount":   m.Amount(),
		"currency": m.Currency(),
		"display":  m.Display(),
	})
}

func normalize(code string) string {
	code = strings.ToUpper(strings.TrimSpace(code))
	if money.GetCurrency(code) == nil {
		return DefaultCurrency
	}
	return code
}
