package output

import (
	"bytes"
	"encoding/csv"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// CSVDetailedExporter provides raw yearly detail, one row per trajectory and year.
// It needs a result that kept its trajectories.
type CSVDetailedExporter struct{}

func (c CSVDetailedExporter) Name() string { return "detailed-csv" }

func (c CSVDetailedExporter) Format(result *domain.SimulationResult) ([]byte, error) {
	if len(result.Trajectories) == 0 {
		return nil, ErrNoTrajectories
	}
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{
		"Trajectory", "Seed", "Year", "UserAge", "SpouseAge",
		"TotalInvestments", "NonRetirement", "PreTax", "AfterTax", "Cash",
		"TotalIncome", "MandatoryExpenses", "DiscretionaryExpenses", "DiscretionaryPercent",
		"Taxes", "EarlyWithdrawalTax", "TotalExpenses", "Shortfall",
		"RMD", "RothConversion", "CapitalGains", "EarlyWithdrawals", "AfterTaxContributions", "GoalMet",
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, tr := range result.Trajectories {
		for _, yr := range tr.Years {
			row := []string{
				intToString(tr.Index),
				int64ToString(tr.Seed),
				intToString(yr.Year),
				intToString(yr.UserAge),
				intToString(yr.SpouseAge),
				cents(yr.TotalInvestments),
				cents(yr.ByTaxStatus.NonRetirement),
				cents(yr.ByTaxStatus.PreTax),
				cents(yr.ByTaxStatus.AfterTax),
				cents(yr.Cash),
				cents(yr.TotalIncome),
				cents(yr.MandatoryExpenses),
				cents(yr.DiscretionaryExpenses),
				yr.DiscretionaryPercent.StringFixed(2),
				cents(yr.Taxes),
				cents(yr.EarlyWithdrawalTax),
				cents(yr.TotalExpenses),
				cents(yr.Shortfall),
				cents(yr.RMD),
				cents(yr.RothConversion),
				cents(yr.CapitalGains),
				cents(yr.EarlyWithdrawals),
				cents(yr.AfterTaxContributions),
				boolToString(yr.GoalMet),
			}
			if err := w.Write(row); err != nil {
				return nil, err
			}
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
