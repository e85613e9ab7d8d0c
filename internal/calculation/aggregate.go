package calculation

import (
	"sort"

	"github.com/shopspring/decimal"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// Aggregate reduces trajectories into per-year statistics. A year counts
// every trajectory still simulated in it; trajectories that ended earlier
// are excluded rather than carried forward.
func Aggregate(trajectories []domain.TrajectoryResult) domain.AggregatedResult {
	var out domain.AggregatedResult
	first, last, found := 0, 0, false
	for _, t := range trajectories {
		if len(t.Years) == 0 {
			continue
		}
		lo, hi := t.Years[0].Year, t.Years[len(t.Years)-1].Year
		if !found || lo < first {
			first = lo
		}
		if !found || hi > last {
			last = hi
		}
		found = true
	}
	if !found {
		return out
	}
	out.StartYear, out.EndYear = first, last

	span := last - first + 1
	buckets := make([][]*domain.YearResult, span)
	for ti := range trajectories {
		for yi := range trajectories[ti].Years {
			yr := &trajectories[ti].Years[yi]
			buckets[yr.Year-first] = append(buckets[yr.Year-first], yr)
		}
	}

	for i, years := range buckets {
		if len(years) == 0 {
			continue
		}
		out.Years = append(out.Years, aggregateYear(first+i, years))
	}
	return out
}

func aggregateYear(year int, years []*domain.YearResult) domain.YearAggregate {
	n := len(years)
	met := 0
	pick := func(f func(*domain.YearResult) decimal.Decimal) []decimal.Decimal {
		vals := make([]decimal.Decimal, n)
		for i, y := range years {
			vals[i] = f(y)
		}
		return vals
	}
	for _, y := range years {
		if y.GoalMet {
			met++
		}
	}

	return domain.YearAggregate{
		Year:                 year,
		Trajectories:         n,
		SuccessProbability:   decimal.NewFromInt(int64(met)).Div(decimal.NewFromInt(int64(n))),
		TotalInvestments:     Summarize(pick(func(y *domain.YearResult) decimal.Decimal { return y.TotalInvestments })),
		TotalIncome:          Summarize(pick(func(y *domain.YearResult) decimal.Decimal { return y.TotalIncome })),
		TotalExpenses:        Summarize(pick(func(y *domain.YearResult) decimal.Decimal { return y.TotalExpenses })),
		EarlyWithdrawalTax:   Summarize(pick(func(y *domain.YearResult) decimal.Decimal { return y.EarlyWithdrawalTax })),
		DiscretionaryPercent: Summarize(pick(func(y *domain.YearResult) decimal.Decimal { return y.DiscretionaryPercent })),
	}
}

// Summarize computes median, mean and band percentiles of values. values is
// sorted in place.
func Summarize(values []decimal.Decimal) domain.QuantityStats {
	if len(values) == 0 {
		return domain.QuantityStats{}
	}
	sort.Slice(values, func(i, j int) bool { return values[i].LessThan(values[j]) })

	sum := decimal.Zero
	for _, v := range values {
		sum = sum.Add(v)
	}
	return domain.QuantityStats{
		Median:  Percentile(values, 50),
		Average: sum.Div(decimal.NewFromInt(int64(len(values)))),
		P10:     Percentile(values, 10),
		P20:     Percentile(values, 20),
		P30:     Percentile(values, 30),
		P40:     Percentile(values, 40),
		P60:     Percentile(values, 60),
		P70:     Percentile(values, 70),
		P80:     Percentile(values, 80),
		P90:     Percentile(values, 90),
	}
}

// Percentile interpolates linearly between order statistics at rank
// p/100 * (n-1). sorted must be ascending.
func Percentile(sorted []decimal.Decimal, p int) decimal.Decimal {
	n := len(sorted)
	if n == 0 {
		return decimal.Zero
	}
	if n == 1 || p <= 0 {
		return sorted[0]
	}
	if p >= 100 {
		return sorted[n-1]
	}
	rank := decimal.NewFromInt(int64(p * (n - 1))).Div(hundred)
	lo := int(rank.IntPart())
	frac := rank.Sub(decimal.NewFromInt(int64(lo)))
	if frac.IsZero() || lo+1 >= n {
		return sorted[lo]
	}
	return sorted[lo].Add(sorted[lo+1].Sub(sorted[lo]).Mul(frac))
}
