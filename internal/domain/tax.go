package domain

import (
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// FilingStatus selects the bracket partition used for a tax computation.
type FilingStatus string

const (
	FilingSingle  FilingStatus = "single"
	FilingMarried FilingStatus = "married"
)

// FilingStatuses lists every partition a complete table must carry.
var FilingStatuses = []FilingStatus{FilingSingle, FilingMarried}

// TaxBracket taxes income in [Min, Max] at Rate. A nil Max is unbounded.
type TaxBracket struct {
	Min          decimal.Decimal  `yaml:"min" json:"min"`
	Max          *decimal.Decimal `yaml:"max" json:"max"`
	Rate         decimal.Decimal  `yaml:"rate" json:"rate"`
	FilingStatus FilingStatus     `yaml:"filing_status" json:"filing_status"`
}

// UnmarshalYAML treats a missing or null max as an unbounded bracket.
func (b *TaxBracket) UnmarshalYAML(value *yaml.Node) error {
	type Alias struct {
		Min          decimal.Decimal `yaml:"min"`
		Max          *string         `yaml:"max"`
		Rate         decimal.Decimal `yaml:"rate"`
		FilingStatus FilingStatus    `yaml:"filing_status"`
	}

	var aux Alias
	if err := value.Decode(&aux); err != nil {
		return err
	}

	b.Min = aux.Min
	b.Rate = aux.Rate
	b.FilingStatus = aux.FilingStatus
	b.Max = nil
	if aux.Max != nil && *aux.Max != "" {
		max, err := decimal.NewFromString(*aux.Max)
		if err != nil {
			return err
		}
		b.Max = &max
	}
	return nil
}

// Bounded reports whether the bracket has an upper limit.
func (b TaxBracket) Bounded() bool {
	return b.Max != nil
}

// TaxBracketTable is an ordered sequence of brackets across filing statuses.
type TaxBracketTable []TaxBracket

// ForStatus returns the brackets of one filing status in table order.
func (t TaxBracketTable) ForStatus(status FilingStatus) []TaxBracket {
	var out []TaxBracket
	for _, b := range t {
		if b.FilingStatus == status {
			out = append(out, b)
		}
	}
	return out
}

// TaxData is the bracket data for one base year. States is keyed by
// jurisdiction code (e.g. "NY").
type TaxData struct {
	Year              int                              `yaml:"year" json:"year"`
	Federal           TaxBracketTable                  `yaml:"federal" json:"federal"`
	CapitalGains      TaxBracketTable                  `yaml:"capital_gains" json:"capital_gains"`
	StandardDeduction map[FilingStatus]decimal.Decimal `yaml:"standard_deduction" json:"standard_deduction"`
	States            map[string]TaxBracketTable       `yaml:"states" json:"states"`
}
