package output

import (
	"strconv"

	"github.com/shopspring/decimal"

	money "github.com/rpgo/lifetime-planner/pkg/decimal"
)

var hundred = decimal.NewFromInt(100)

// FormatCurrency formats a decimal as USD with thousands separators.
func FormatCurrency(amount decimal.Decimal) string {
	return money.NewMoneyFromDecimal(amount).Format()
}

// FormatPercentage formats a decimal already expressed in percent with 2 decimals.
func FormatPercentage(amount decimal.Decimal) string { return amount.StringFixed(2) + "%" }

// FormatProbability formats a fraction in [0,1] as a percentage.
func FormatProbability(p decimal.Decimal) string { return FormatPercentage(p.Mul(hundred)) }

// cents renders an amount for CSV cells.
func cents(amount decimal.Decimal) string { return money.NewMoneyFromDecimal(amount).String() }

func intToString(i int) string { return strconv.Itoa(i) }

func boolToString(b bool) string { return strconv.FormatBool(b) }

func int64ToString(i int64) string { return strconv.FormatInt(i, 10) }
