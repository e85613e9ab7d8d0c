package output

import (
	"bytes"
	"encoding/csv"

	"github.com/shopspring/decimal"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// CSVSummarizer writes the aggregated bands, one row per simulated year.
type CSVSummarizer struct{}

func (c CSVSummarizer) Name() string { return "csv" }

type summaryQuantity struct {
	prefix string
	pick   func(domain.YearAggregate) domain.QuantityStats
}

var summaryQuantities = []summaryQuantity{
	{"TotalInvestments", func(y domain.YearAggregate) domain.QuantityStats { return y.TotalInvestments }},
	{"TotalIncome", func(y domain.YearAggregate) domain.QuantityStats { return y.TotalIncome }},
	{"TotalExpenses", func(y domain.YearAggregate) domain.QuantityStats { return y.TotalExpenses }},
	{"EarlyWithdrawalTax", func(y domain.YearAggregate) domain.QuantityStats { return y.EarlyWithdrawalTax }},
	{"DiscretionaryPercent", func(y domain.YearAggregate) domain.QuantityStats { return y.DiscretionaryPercent }},
}

var statColumns = []string{"Median", "Average", "P10", "P20", "P30", "P40", "P60", "P70", "P80", "P90"}

func statValues(s domain.QuantityStats) []decimal.Decimal {
	return []decimal.Decimal{s.Median, s.Average, s.P10, s.P20, s.P30, s.P40, s.P60, s.P70, s.P80, s.P90}
}

func (c CSVSummarizer) Format(result *domain.SimulationResult) ([]byte, error) {
	buf := &bytes.Buffer{}
	w := csv.NewWriter(buf)
	header := []string{"Year", "Trajectories", "SuccessProbability"}
	for _, q := range summaryQuantities {
		for _, col := range statColumns {
			header = append(header, q.prefix+col)
		}
	}
	if err := w.Write(header); err != nil {
		return nil, err
	}
	for _, y := range result.Aggregated.Years {
		row := []string{
			intToString(y.Year),
			intToString(y.Trajectories),
			y.SuccessProbability.StringFixed(4),
		}
		for _, q := range summaryQuantities {
			for _, v := range statValues(q.pick(y)) {
				row = append(row, cents(v))
			}
		}
		if err := w.Write(row); err != nil {
			return nil, err
		}
	}
	w.Flush()
	return buf.Bytes(), w.Error()
}
