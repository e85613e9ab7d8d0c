package calculation

import "github.com/shopspring/decimal"

// TaxYear accumulates one year of taxable activity.
type TaxYear struct {
	OrdinaryIncome        decimal.Decimal
	CapitalGains          decimal.Decimal
	SocialSecurity        decimal.Decimal
	EarlyWithdrawals      decimal.Decimal
	AfterTaxContributions decimal.Decimal
}

// FederalTaxableIncome counts 85% of Social Security benefits.
func (y TaxYear) FederalTaxableIncome() decimal.Decimal {
	return y.OrdinaryIncome.Add(y.SocialSecurity.Mul(ssTaxableShare))
}

// UserTaxData is the two-slot tax ledger of one trajectory. Taxes paid in a
// year are computed from Previous; activity of the year lands in Current.
// It is a value: the step function takes one and returns the next.
type UserTaxData struct {
	Current  TaxYear
	Previous TaxYear
}

func (l *UserTaxData) AddOrdinaryIncome(v decimal.Decimal) {
	l.Current.OrdinaryIncome = l.Current.OrdinaryIncome.Add(v)
}

func (l *UserTaxData) AddCapitalGains(v decimal.Decimal) {
	l.Current.CapitalGains = l.Current.CapitalGains.Add(v)
}

func (l *UserTaxData) AddSocialSecurity(v decimal.Decimal) {
	l.Current.SocialSecurity = l.Current.SocialSecurity.Add(v)
}

func (l *UserTaxData) AddEarlyWithdrawal(v decimal.Decimal) {
	l.Current.EarlyWithdrawals = l.Current.EarlyWithdrawals.Add(v)
}

func (l *UserTaxData) AddAfterTaxContribution(v decimal.Decimal) {
	l.Current.AfterTaxContributions = l.Current.AfterTaxContributions.Add(v)
}

// CurrentFederalTaxableIncome is the running federal income of this year.
func (l UserTaxData) CurrentFederalTaxableIncome() decimal.Decimal {
	return l.Current.FederalTaxableIncome()
}

// AdvanceYear archives Current into Previous and starts an empty year.
func (l UserTaxData) AdvanceYear() UserTaxData {
	return UserTaxData{Previous: l.Current}
}
