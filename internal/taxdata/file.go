// Package taxdata loads tax bracket tables from YAML files and keeps them in
// a SQLite store.
package taxdata

import (
	"embed"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/domain"
)

//go:embed data/*.yaml
var bundled embed.FS

// DefaultYear is the year of the bundled tables.
const DefaultYear = 2024

// LoadFile reads and validates a tax data YAML file.
func LoadFile(path string) (*domain.TaxData, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read tax data %s: %w", path, err)
	}
	td, err := Parse(data)
	if err != nil {
		return nil, fmt.Errorf("%s: %w", path, err)
	}
	return td, nil
}

// Parse decodes a tax data document and checks every bracket table.
func Parse(data []byte) (*domain.TaxData, error) {
	var td domain.TaxData
	if err := yaml.Unmarshal(data, &td); err != nil {
		return nil, fmt.Errorf("failed to parse tax data: %w", err)
	}
	if err := Validate(&td); err != nil {
		return nil, err
	}
	return &td, nil
}

// Default returns the bundled tables.
func Default() (*domain.TaxData, error) {
	data, err := bundled.ReadFile(fmt.Sprintf("data/tax_%d.yaml", DefaultYear))
	if err != nil {
		return nil, fmt.Errorf("read bundled tax data: %w", err)
	}
	return Parse(data)
}

// Validate checks the year, the deductions and the federal, capital gains
// and every state table. Problems are reported together.
func Validate(td *domain.TaxData) error {
	verr := &calculation.ValidationError{}
	if td.Year <= 0 {
		verr.Add("year", "must be positive")
	}
	for _, status := range domain.FilingStatuses {
		ded, ok := td.StandardDeduction[status]
		switch {
		case !ok:
			verr.Add("standard_deduction."+string(status), "is required")
		case ded.IsNegative():
			verr.Add("standard_deduction."+string(status), "must not be negative")
		}
	}
	merge := func(err error) {
		if err != nil {
			verr.Merge(err.(*calculation.ValidationError))
		}
	}
	merge(calculation.ValidateBrackets(calculation.FamilyFederal, "", td.Federal))
	merge(calculation.ValidateBrackets(calculation.FamilyCapitalGains, "", td.CapitalGains))
	for _, state := range States(td) {
		merge(calculation.ValidateBrackets(calculation.FamilyState, state, td.States[state]))
	}
	return verr.OrNil()
}

// States lists the jurisdictions of td in sorted order.
func States(td *domain.TaxData) []string {
	out := make([]string, 0, len(td.States))
	for s := range td.States {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
