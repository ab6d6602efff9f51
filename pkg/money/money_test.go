package money

import (
	"encoding/json"
	"testing"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew(t *testing.T) {
	tests := []struct {
		name         string
		cents        int64
		currency     string
		want         int64
		wantCurrency string
	}{
		{"positive cents", 4590, BRL, 4590, BRL},
		{"zero", 0, BRL, 0, BRL},
		{"euro", 1000, EUR, 1000, EUR},
		{"lowercase code", 1490, "brl", 1490, BRL},
		{"unknown falls back to default", 100, "XYZ1", 100, DefaultCurrency},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			m := New(tt.cents, tt.currency)
			assert.Equal(t, tt.want, m.Amount())
			assert.Equal(t, tt.wantCurrency, m.Currency())
		})
	}
}

func TestNewFromDecimal(t *testing.T) {
	tests := []struct {
		name   string
		amount string
		want   int64
	}{
		{"precise decimal", "45.90", 4590},
		{"many decimals", "99.999", 10000},
		{"whole number", "500", 50000},
		{"half rounds away from zero", "12.345", 1235},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			d, err := decimal.NewFromString(tt.amount)
			require.NoError(t, err)
			assert.Equal(t, tt.want, NewFromDecimal(d, BRL).Amount())
		})
	}
}

func TestParseDecimal(t *testing.T) {
	tests := []struct {
		name    string
		input   string
		want    string
		wantErr bool
	}{
		{"dot decimal", "45.90", "45.9", false},
		{"comma decimal", "45,90", "45.9", false},
		{"brazilian with thousands", "R$ 1.234,56", "1234.56", false},
		{"american with thousands", "1,234.56", "1234.56", false},
		{"surrounding spaces", "  14.90 ", "14.9", false},
		{"negative", "-3.50", "-3.5", false},
		{"letters", "abc", "", true},
		{"empty", "   ", "", true},
		{"not a number", "NaN", "", true},
		{"infinity", "Inf", "", true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := ParseDecimal(tt.input)
			if tt.wantErr {
				require.Error(t, err)
				assert.ErrorIs(t, err, ErrInvalidAmount)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestRoundToCurrency(t *testing.T) {
	tests := []struct {
		name     string
		input    string
		currency string
		want     string
		wantErr  error
	}{
		{"already two digits", "21.90", BRL, "21.9", nil},
		{"half rounds up", "10.005", BRL, "10.01", nil},
		{"below half rounds down", "10.004", USD, "10", nil},
		{"zero-fraction currency", "1234.5", "JPY", "1235", nil},
		{"at the limit", "1000000000", BRL, "1000000000", nil},
		{"above the limit", "1000000000.01", BRL, "", ErrAmountTooLarge},
		{"exponent overflow", "1e30", BRL, "", ErrAmountTooLarge},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := RoundToCurrency(decimal.RequireFromString(tt.input), tt.currency)
			if tt.wantErr != nil {
				assert.ErrorIs(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got.String())
		})
	}
}

func TestSumOfRoundedAmountsMatchesStoredTotal(t *testing.T) {
	var stored []decimal.Decimal
	for _, raw := range []string{"0.005", "0.005", "0.005"} {
		d, err := RoundToCurrency(decimal.RequireFromString(raw), BRL)
		require.NoError(t, err)
		stored = append(stored, d)
	}

	total := Sum(BRL, stored...)
	want := decimal.Sum(stored[0], stored[1:]...)
	assert.Equal(t, want.StringFixed(2), total.String())
}

func TestAddAndSum(t *testing.T) {
	a := New(4590, BRL)
	b := New(1490, BRL)

	total, err := a.Add(b)
	require.NoError(t, err)
	assert.Equal(t, int64(6080), total.Amount())

	_, err = a.Add(New(100, USD))
	assert.Error(t, err, "mismatched currencies must not add")

	sum := Sum(BRL,
		decimal.RequireFromString("45.90"),
		decimal.RequireFromString("21.90"),
		decimal.RequireFromString("89.90"),
	)
	assert.Equal(t, "157.70", sum.String())
}

func TestMultiply(t *testing.T) {
	monthly := New(6080, BRL)
	assert.Equal(t, int64(72960), monthly.Multiply(12).Amount())
}

func TestNilSafety(t *testing.T) {
	var m *Money
	assert.True(t, m.IsZero())
	assert.False(t, m.IsNegative())
	assert.Equal(t, int64(0), m.Amount())
	assert.Equal(t, "0.00", m.String())
	assert.True(t, m.Equals(Zero(BRL)))

	got, err := m.Add(New(100, BRL))
	require.NoError(t, err)
	assert.Equal(t, int64(100), got.Amount())
}

func TestIsKnownCurrency(t *testing.T) {
	assert.True(t, IsKnownCurrency("BRL"))
	assert.True(t, IsKnownCurrency("eur"))
	assert.False(t, IsKnownCurrency(""))
	assert.False(t, IsKnownCurrency("NOPE"))
}

func TestMarshalJSON(t *testing.T) {
	data, err := json.Marshal(New(4590, BRL))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, float64(4590), decoded["amount"])
	assert.Equal(t, BRL, decoded["currency"])
	assert.NotEmpty(t, decoded["display"])
}
