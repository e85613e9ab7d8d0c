package output

import (
	"bytes"
	"fmt"

	"github.com/rpgo/lifetime-planner/internal/domain"
	money "github.com/rpgo/lifetime-planner/pkg/decimal"
)

// ConsoleFormatter provides a concise per-year console summary.
type ConsoleFormatter struct{}

func (c ConsoleFormatter) Name() string { return "console" }

func (c ConsoleFormatter) Format(result *domain.SimulationResult) ([]byte, error) {
	var buf bytes.Buffer
	agg := result.Aggregated
	fmt.Fprintln(&buf, "LIFETIME FINANCIAL PLAN SIMULATION")
	fmt.Fprintln(&buf, "==================================")
	if result.Scenario != "" {
		fmt.Fprintf(&buf, "Scenario:     %s\n", result.Scenario)
	}
	fmt.Fprintf(&buf, "Run:          %s\n", result.RunID)
	fmt.Fprintf(&buf, "Trajectories: %d (seed %d)\n", result.NumTrajectories, result.Seed)
	if result.Duration > 0 {
		fmt.Fprintf(&buf, "Elapsed:      %s\n", result.Duration)
	}
	if len(agg.Years) == 0 {
		fmt.Fprintln(&buf, "\nNo simulated years.")
		return buf.Bytes(), nil
	}
	fmt.Fprintf(&buf, "Horizon:      %d-%d\n\n", agg.StartYear, agg.EndYear)

	fmt.Fprintf(&buf, "%-6s %6s %9s %18s %18s %18s %16s %16s\n",
		"Year", "Alive", "Success", "Median assets", "P10 assets", "P90 assets", "Median income", "Median spend")
	for _, y := range agg.Years {
		fmt.Fprintf(&buf, "%-6d %6d %9s %18s %18s %18s %16s %16s\n",
			y.Year,
			y.Trajectories,
			FormatProbability(y.SuccessProbability),
			FormatCurrency(y.TotalInvestments.Median),
			FormatCurrency(y.TotalInvestments.P10),
			FormatCurrency(y.TotalInvestments.P90),
			FormatCurrency(y.TotalIncome.Median),
			FormatCurrency(y.TotalExpenses.Median),
		)
	}

	low := money.NewMoneyFromDecimal(agg.Years[0].TotalInvestments.Median)
	peak, lowYear, peakYear := low, agg.StartYear, agg.StartYear
	spending := make([]money.Money, 0, len(agg.Years))
	for _, y := range agg.Years {
		median := money.NewMoneyFromDecimal(y.TotalInvestments.Median)
		if next := money.Min(low, median); next.LessThan(low.Decimal) {
			low, lowYear = next, y.Year
		}
		if next := money.Max(peak, median); next.GreaterThan(peak.Decimal) {
			peak, peakYear = next, y.Year
		}
		spending = append(spending, money.NewMoneyFromDecimal(y.TotalExpenses.Median))
	}

	last := agg.Years[len(agg.Years)-1]
	fmt.Fprintln(&buf)
	fmt.Fprintf(&buf, "Lowest median investments: %s (%d)\n", low.Format(), lowYear)
	fmt.Fprintf(&buf, "Peak median investments: %s (%d)\n", peak.Format(), peakYear)
	fmt.Fprintf(&buf, "Cumulative median spending: %s\n", money.Sum(spending...).Format())
	fmt.Fprintf(&buf, "Final-year success probability: %s\n", FormatProbability(last.SuccessProbability))
	fmt.Fprintf(&buf, "Final-year median discretionary spending: %s\n", FormatPercentage(last.DiscretionaryPercent.Median))
	return buf.Bytes(), nil
}
