package decimal

import (
	"testing"

	stddec "github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
)

func m(s string) Money { return NewMoneyFromDecimal(stddec.RequireFromString(s)) }

func TestConstructors(t *testing.T) {
	d := stddec.NewFromFloat(10.125)
	assert.True(t, NewMoneyFromDecimal(d).Decimal.Equal(d))
	assert.Equal(t, "10.13", NewMoneyFromDecimal(d).String())
}

func TestRounding(t *testing.T) {
	cases := []struct{ in, out string }{
		{"2.344", "2.34"},
		{"2.345", "2.35"},
		{"2.355", "2.36"},
		{"2.365", "2.37"},
		{"-2.345", "-2.35"},
	}
	for _, c := range cases {
		assert.Equal(t, c.out, m(c.in).Round().String(), "round(%s)", c.in)
	}
}

func TestArithmetic(t *testing.T) {
	a := m("10.10")
	b := m("5.05")

	assert.Equal(t, "15.15", a.Add(b).String())
	assert.Equal(t, "25.30", Sum(a, b, b, b).String())
	assert.True(t, Sum().IsZero())
}

func TestMinMax(t *testing.T) {
	a := m("10")
	b := m("20")

	assert.True(t, Min(a, b).Equal(a.Decimal))
	assert.True(t, Max(a, b).Equal(b.Decimal))
	assert.True(t, Min(b, a).Equal(a.Decimal))
	assert.True(t, Zero().IsZero())
}

func TestFormat(t *testing.T) {
	cases := []struct {
		in   string
		want string
	}{
		{"0", "$0.00"},
		{"12", "$12.00"},
		{"999.999", "$1,000.00"},
		{"1234.5", "$1,234.50"},
		{"1234567.891", "$1,234,567.89"},
		{"-12", "-$12.00"},
		{"-0.001", "$0.00"},
		{"-1500000", "-$1,500,000.00"},
	}
	for _, c := range cases {
		assert.Equal(t, c.want, m(c.in).Format(), "Format(%s)", c.in)
	}
}
