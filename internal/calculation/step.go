package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// StepConfig holds the engine parameters the yearly step depends on.
type StepConfig struct {
	RMDStartAge        int
	EarlyWithdrawalAge int
}

// Stepper advances one trajectory a year at a time. The tax calculator and
// RMD table are shared read-only; the sampler belongs to the trajectory.
type Stepper struct {
	tax     *TaxCalculator
	rmd     *RMDTable
	cfg     StepConfig
	sampler *Sampler
}

// NewStepper wires a stepper for one trajectory.
func NewStepper(tax *TaxCalculator, rmd *RMDTable, cfg StepConfig, sampler *Sampler) *Stepper {
	return &Stepper{tax: tax, rmd: rmd, cfg: cfg, sampler: sampler}
}

// yearTotals collects the flows of the year being stepped.
type yearTotals struct {
	income        []domain.NamedAmount
	expenses      []domain.NamedAmount
	totalIncome   decimal.Decimal
	mandatory     decimal.Decimal
	discretionary decimal.Decimal
	planned       decimal.Decimal
	taxes         decimal.Decimal
	earlyTax      decimal.Decimal
	rmd           decimal.Decimal
	roth          decimal.Decimal
	shortfall     decimal.Decimal
	curtailed     bool
}

// Step runs the phases of one calendar year on st: income, required
// distributions, growth, Roth conversion, last year's taxes with this year's
// mandatory expenses, discretionary expenses, investing, rebalancing and
// close-out. It returns the ledger for the next year and the year snapshot.
func (s *Stepper) Step(st *SimulationState, ledger UserTaxData) (UserTaxData, domain.YearResult, error) {
	if !st.AnyAlive() {
		return ledger, domain.YearResult{}, fmt.Errorf("step year %d: no household member alive", st.Year)
	}

	var y yearTotals
	s.advanceSeriesAmounts(st)
	s.receiveIncome(st, &ledger, &y)
	s.takeRequiredDistributions(st, &ledger, &y)
	s.growInvestments(st, &ledger)
	s.convertToRoth(st, &ledger, &y)
	s.payTaxesAndMandatory(st, &ledger, &y)
	s.payDiscretionary(st, &ledger, &y)
	s.investExcessCash(st, &ledger)
	s.rebalance(st, &ledger)

	result := s.snapshot(st, ledger, &y)
	next := ledger.AdvanceYear()
	s.closeOut(st)
	return next, result, nil
}

// advanceSeriesAmounts applies each active cash-flow series' annual change.
// A series uses its initial amount in its first active year.
func (s *Stepper) advanceSeriesAmounts(st *SimulationState) {
	for _, ss := range st.series {
		es := ss.Series
		if !es.IsCashFlow() || !ss.Active(st.Year) {
			continue
		}
		if !ss.started {
			ss.amount = es.InitialAmount
			ss.started = true
			continue
		}
		change := s.sampler.Sample(es.Change)
		if es.ChangeMode == domain.ModePercent {
			ss.amount = ss.amount.Mul(one.Add(change))
		} else {
			ss.amount = ss.amount.Add(change)
		}
		if es.InflationAdjusted {
			ss.amount = ss.amount.Mul(one.Add(st.lastInflationRate))
		}
		if ss.amount.IsNegative() {
			ss.amount = decimal.Zero
		}
	}
}

func (s *Stepper) receiveIncome(st *SimulationState, ledger *UserTaxData, y *yearTotals) {
	for _, ss := range st.series {
		es := ss.Series
		if es.Type != domain.EventIncome || !ss.Active(st.Year) {
			continue
		}
		amt := ss.amount.Mul(st.householdShare(es))
		if !amt.IsPositive() {
			continue
		}
		st.Cash = st.Cash.Add(amt)
		if es.SocialSecurity {
			ledger.AddSocialSecurity(amt)
		} else {
			ledger.AddOrdinaryIncome(amt)
		}
		y.income = append(y.income, domain.NamedAmount{Name: es.Name, Amount: amt})
		y.totalIncome = y.totalIncome.Add(amt)
	}
}

// takeRequiredDistributions moves balance/factor out of every pre-tax
// holding into a non-retirement holding of the same type.
func (s *Stepper) takeRequiredDistributions(st *SimulationState, ledger *UserTaxData, y *yearTotals) {
	if s.rmd == nil || st.OldestAliveAge() < s.cfg.RMDStartAge {
		return
	}
	factor := s.rmd.Factor(st.OldestAliveAge())
	if !factor.IsPositive() {
		return
	}
	for _, h := range s.rmdOrder(st) {
		if !h.Value.IsPositive() {
			continue
		}
		amt := h.Value.Div(factor)
		if amt.GreaterThan(h.Value) {
			amt = h.Value
		}
		h.Value = h.Value.Sub(amt)

		dest := st.holdingFor(h.Type, domain.TaxStatusNonRetirement)
		dest.Value = dest.Value.Add(amt)
		dest.CostBasis = dest.CostBasis.Add(amt)

		ledger.AddOrdinaryIncome(amt)
		y.rmd = y.rmd.Add(amt)
	}
}

// rmdOrder lists pre-tax holdings: the RMD strategy first, then any others.
func (s *Stepper) rmdOrder(st *SimulationState) []*Holding {
	seen := make(map[string]bool)
	var out []*Holding
	for _, id := range st.Scenario.RMDStrategy {
		if h, ok := st.Holding(id); ok && h.TaxStatus == domain.TaxStatusPreTax && !seen[id] {
			out = append(out, h)
			seen[id] = true
		}
	}
	for _, h := range st.Holdings() {
		if h.TaxStatus == domain.TaxStatusPreTax && !seen[h.ID] {
			out = append(out, h)
		}
	}
	return out
}

// growInvestments applies return, reinvested income and expense-ratio drag.
func (s *Stepper) growInvestments(st *SimulationState, ledger *UserTaxData) {
	for _, h := range st.Holdings() {
		it := h.Type
		start := h.Value
		growth := modeAmount(it.ReturnMode, s.sampler.Sample(it.Return), start)
		income := modeAmount(it.IncomeMode, s.sampler.Sample(it.Income), start)

		end := start.Add(growth).Add(income)
		fee := it.ExpenseRatio.Mul(start.Add(end)).Div(decimal.NewFromInt(2))
		end = end.Sub(fee)
		if end.IsNegative() {
			end = decimal.Zero
		}
		h.Value = end

		if income.IsPositive() && h.TaxStatus == domain.TaxStatusNonRetirement {
			h.CostBasis = h.CostBasis.Add(income)
			if it.Taxable {
				ledger.AddOrdinaryIncome(income)
			}
		}
	}
}

func modeAmount(mode domain.AmountMode, v, base decimal.Decimal) decimal.Decimal {
	if mode == domain.ModeAmount {
		return v
	}
	return base.Mul(v)
}

// convertToRoth fills the current federal bracket with pre-tax money moved
// into after-tax holdings of the same type.
func (s *Stepper) convertToRoth(st *SimulationState, ledger *UserTaxData, y *yearTotals) {
	rc := st.Scenario.RothConversion
	if !rc.Enabled || st.Year < rc.StartYear || st.Year > rc.EndYear || !st.User.Alive {
		return
	}
	room := s.tax.BracketHeadroom(ledger.CurrentFederalTaxableIncome(), st.FilingStatus(), st.InflationFactor)
	for _, id := range rc.Strategy {
		if !room.IsPositive() {
			break
		}
		h, ok := st.Holding(id)
		if !ok || !h.Value.IsPositive() {
			continue
		}
		amt := decimal.Min(room, h.Value)
		h.Value = h.Value.Sub(amt)

		dest := st.holdingFor(h.Type, domain.TaxStatusAfterTax)
		dest.Value = dest.Value.Add(amt)
		dest.CostBasis = dest.CostBasis.Add(amt)

		ledger.AddOrdinaryIncome(amt)
		room = room.Sub(amt)
		y.roth = y.roth.Add(amt)
	}
}

// payTaxesAndMandatory pays last year's tax bill and this year's
// non-discretionary expenses as one combined draw: cash first, then
// investments in withdrawal-strategy order. Anything left unpaid is recorded
// as a shortfall.
func (s *Stepper) payTaxesAndMandatory(st *SimulationState, ledger *UserTaxData, y *yearTotals) {
	bill := s.tax.Compute(ledger.Previous, st.PrevFilingStatus, st.PrevInflationFactor)
	y.earlyTax = bill.EarlyWithdrawal
	y.taxes = bill.Total().Sub(bill.EarlyWithdrawal)

	for _, ss := range st.series {
		es := ss.Series
		if es.Type != domain.EventExpense || es.Discretionary || !ss.Active(st.Year) {
			continue
		}
		amt := ss.amount.Mul(st.householdShare(es))
		if !amt.IsPositive() {
			continue
		}
		y.mandatory = y.mandatory.Add(amt)
		y.expenses = append(y.expenses, domain.NamedAmount{Name: es.Name, Amount: amt})
	}

	need := bill.Total().Add(y.mandatory)
	if paid := s.pay(st, ledger, need); paid.LessThan(need) {
		y.shortfall = need.Sub(paid)
	}
}

// payDiscretionary pays discretionary expenses in spending-strategy order
// while total investments stay at or above the financial goal. The expense that
// would cross the goal is paid only up to it and the rest are skipped.
func (s *Stepper) payDiscretionary(st *SimulationState, ledger *UserTaxData, y *yearTotals) {
	headroom := st.discretionaryHeadroom()
	for _, ss := range s.discretionaryOrder(st) {
		es := ss.Series
		amt := ss.amount.Mul(st.householdShare(es))
		if !amt.IsPositive() {
			continue
		}
		y.planned = y.planned.Add(amt)
		if y.curtailed {
			continue
		}

		want := amt
		if want.GreaterThan(headroom) {
			want = decimal.Max(headroom, decimal.Zero)
			y.curtailed = true
		}
		if !want.IsPositive() {
			continue
		}
		paid := s.pay(st, ledger, want)
		if paid.LessThan(want) {
			y.curtailed = true
		}
		headroom = headroom.Sub(paid)
		y.discretionary = y.discretionary.Add(paid)
		y.expenses = append(y.expenses, domain.NamedAmount{Name: es.Name, Amount: paid})
	}
}

// discretionaryOrder lists active discretionary expenses: spending strategy
// first, then unlisted ones in scenario order.
func (s *Stepper) discretionaryOrder(st *SimulationState) []*seriesState {
	active := make(map[string]*seriesState)
	var unlisted []*seriesState
	listed := make(map[string]bool, len(st.Scenario.SpendingStrategy))
	for _, name := range st.Scenario.SpendingStrategy {
		listed[name] = true
	}
	for _, ss := range st.series {
		es := ss.Series
		if es.Type != domain.EventExpense || !es.Discretionary || !ss.Active(st.Year) {
			continue
		}
		active[es.Name] = ss
		if !listed[es.Name] {
			unlisted = append(unlisted, ss)
		}
	}

	var out []*seriesState
	for _, name := range st.Scenario.SpendingStrategy {
		if ss, ok := active[name]; ok {
			out = append(out, ss)
			delete(active, name)
		}
	}
	return append(out, unlisted...)
}

// pay spends amount from cash, selling investments for the remainder, and
// returns how much was actually paid.
func (s *Stepper) pay(st *SimulationState, ledger *UserTaxData, amount decimal.Decimal) decimal.Decimal {
	if !amount.IsPositive() {
		return decimal.Zero
	}
	fromCash := decimal.Min(st.Cash, amount)
	if fromCash.IsNegative() {
		fromCash = decimal.Zero
	}
	st.Cash = st.Cash.Sub(fromCash)
	remaining := amount.Sub(fromCash)

	for _, h := range s.withdrawalOrder(st) {
		if !remaining.IsPositive() {
			break
		}
		remaining = remaining.Sub(s.sell(st, ledger, h, remaining, true))
	}
	return amount.Sub(remaining)
}

// withdrawalOrder is the withdrawal strategy followed by non-retirement
// holdings it does not name, such as those opened by required distributions.
func (s *Stepper) withdrawalOrder(st *SimulationState) []*Holding {
	seen := make(map[string]bool)
	var out []*Holding
	for _, id := range st.Scenario.WithdrawalStrategy {
		if h, ok := st.Holding(id); ok && !seen[id] {
			out = append(out, h)
			seen[id] = true
		}
	}
	for _, h := range st.Holdings() {
		if h.TaxStatus == domain.TaxStatusNonRetirement && !seen[h.ID] {
			out = append(out, h)
		}
	}
	return out
}

// sell removes up to amount from h and returns the amount removed. Gains on
// non-retirement holdings are realized pro rata to cost basis. A withdrawal
// (money leaving the accounts) from a pre-tax holding is ordinary income, and
// from any retirement holding before the early-withdrawal age it is an early
// withdrawal.
func (s *Stepper) sell(st *SimulationState, ledger *UserTaxData, h *Holding, amount decimal.Decimal, withdrawal bool) decimal.Decimal {
	take := decimal.Min(amount, h.Value)
	if !take.IsPositive() {
		return decimal.Zero
	}

	basis := h.CostBasis.Mul(take).Div(h.Value)
	if take.Equal(h.Value) {
		basis = h.CostBasis
	}
	switch h.TaxStatus {
	case domain.TaxStatusNonRetirement:
		ledger.AddCapitalGains(take.Sub(basis))
	case domain.TaxStatusPreTax:
		if withdrawal {
			ledger.AddOrdinaryIncome(take)
		}
	}
	if withdrawal && h.TaxStatus != domain.TaxStatusNonRetirement && st.withdrawerAge() < s.cfg.EarlyWithdrawalAge {
		ledger.AddEarlyWithdrawal(take)
	}

	h.CostBasis = h.CostBasis.Sub(basis)
	h.Value = h.Value.Sub(take)
	return take
}

// allocationAt returns the series allocation for year, interpolating a glide
// path linearly from the first to the last active year.
func allocationAt(ss *seriesState, year int) domain.Allocation {
	es := ss.Series
	if !es.GlidePath {
		return es.Allocation
	}
	t := decimal.Zero
	if ss.Duration > 1 {
		t = decimal.NewFromInt(int64(year - ss.Start)).Div(decimal.NewFromInt(int64(ss.Duration - 1)))
	}

	out := make(domain.Allocation, 0, len(es.Allocation)+len(es.FinalAllocation))
	seen := make(map[string]bool)
	for _, e := range es.Allocation {
		final := es.FinalAllocation.Percent(e.Investment)
		out = append(out, domain.AllocationEntry{Investment: e.Investment, Percent: e.Percent.Add(final.Sub(e.Percent).Mul(t))})
		seen[e.Investment] = true
	}
	for _, e := range es.FinalAllocation {
		if !seen[e.Investment] {
			out = append(out, domain.AllocationEntry{Investment: e.Investment, Percent: e.Percent.Mul(t)})
		}
	}
	return out
}

// investExcessCash buys investments with cash above each active invest
// series' threshold. After-tax purchases are capped by the remaining
// inflation-indexed contribution limit; the overflow goes to the other
// holdings of the allocation, or stays in cash if there are none.
func (s *Stepper) investExcessCash(st *SimulationState, ledger *UserTaxData) {
	for _, ss := range st.series {
		es := ss.Series
		if es.Type != domain.EventInvest || !ss.Active(st.Year) {
			continue
		}
		maxCash := es.MaxCash
		if es.InflationAdjusted {
			maxCash = maxCash.Mul(st.InflationFactor)
		}
		excess := st.Cash.Sub(maxCash)
		if !excess.IsPositive() {
			continue
		}

		type purchase struct {
			h   *Holding
			pct decimal.Decimal
			amt decimal.Decimal
		}
		var buys []purchase
		afterTax, otherPct := decimal.Zero, decimal.Zero
		for _, e := range allocationAt(ss, st.Year) {
			h, ok := st.Holding(e.Investment)
			if !ok {
				continue
			}
			amt := excess.Mul(e.Percent).Div(hundred)
			buys = append(buys, purchase{h: h, pct: e.Percent, amt: amt})
			if h.TaxStatus == domain.TaxStatusAfterTax {
				afterTax = afterTax.Add(amt)
			} else {
				otherPct = otherPct.Add(e.Percent)
			}
		}

		room := st.Scenario.AfterTaxContributionLimit.Mul(st.InflationFactor).Sub(ledger.Current.AfterTaxContributions)
		room = decimal.Max(room, decimal.Zero)
		if afterTax.GreaterThan(room) {
			overflow := afterTax.Sub(room)
			for i := range buys {
				if buys[i].h.TaxStatus == domain.TaxStatusAfterTax {
					buys[i].amt = buys[i].amt.Mul(room).Div(afterTax)
				} else if otherPct.IsPositive() {
					buys[i].amt = buys[i].amt.Add(overflow.Mul(buys[i].pct).Div(otherPct))
				}
			}
		}

		invested := decimal.Zero
		for _, b := range buys {
			if !b.amt.IsPositive() {
				continue
			}
			b.h.Value = b.h.Value.Add(b.amt)
			b.h.CostBasis = b.h.CostBasis.Add(b.amt)
			if b.h.TaxStatus == domain.TaxStatusAfterTax {
				ledger.AddAfterTaxContribution(b.amt)
			}
			invested = invested.Add(b.amt)
		}
		st.Cash = st.Cash.Sub(invested)
	}
}

// rebalance moves value between the holdings of each active rebalance series
// to match its target allocation, selling first and then buying.
func (s *Stepper) rebalance(st *SimulationState, ledger *UserTaxData) {
	for _, ss := range st.series {
		if ss.Series.Type != domain.EventRebalance || !ss.Active(st.Year) {
			continue
		}
		alloc := allocationAt(ss, st.Year)

		total := decimal.Zero
		for _, e := range alloc {
			if h, ok := st.Holding(e.Investment); ok {
				total = total.Add(h.Value)
			}
		}
		if !total.IsPositive() {
			continue
		}

		for _, e := range alloc {
			h, ok := st.Holding(e.Investment)
			if !ok {
				continue
			}
			if target := total.Mul(e.Percent).Div(hundred); h.Value.GreaterThan(target) {
				s.sell(st, ledger, h, h.Value.Sub(target), false)
			}
		}
		for _, e := range alloc {
			h, ok := st.Holding(e.Investment)
			if !ok {
				continue
			}
			if target := total.Mul(e.Percent).Div(hundred); h.Value.LessThan(target) {
				diff := target.Sub(h.Value)
				h.Value = target
				h.CostBasis = h.CostBasis.Add(diff)
			}
		}
	}
}

func (s *Stepper) snapshot(st *SimulationState, ledger UserTaxData, y *yearTotals) domain.YearResult {
	r := domain.YearResult{
		Year:    st.Year,
		UserAge: st.User.Age(st.Year),
		Cash:    st.Cash,

		Income:      y.income,
		TotalIncome: y.totalIncome,

		Expenses:              y.expenses,
		MandatoryExpenses:     y.mandatory,
		DiscretionaryExpenses: y.discretionary,
		DiscretionaryPercent:  hundred,
		Taxes:                 y.taxes,
		EarlyWithdrawalTax:    y.earlyTax,
		TotalExpenses:         y.mandatory.Add(y.discretionary).Add(y.taxes).Add(y.earlyTax),
		Shortfall:             y.shortfall,

		RMD:                   y.rmd,
		RothConversion:        y.roth,
		CapitalGains:          ledger.Current.CapitalGains,
		EarlyWithdrawals:      ledger.Current.EarlyWithdrawals,
		AfterTaxContributions: ledger.Current.AfterTaxContributions,
	}
	if st.Spouse != nil {
		r.SpouseAge = st.Spouse.Age(st.Year)
	}
	if y.planned.IsPositive() {
		r.DiscretionaryPercent = y.discretionary.Div(y.planned).Mul(hundred)
	}
	if tax := y.taxes.Add(y.earlyTax); tax.IsPositive() {
		r.Expenses = append(r.Expenses, domain.NamedAmount{Name: "taxes", Amount: tax})
	}

	r.Investments = make([]domain.InvestmentBalance, 0, len(st.Holdings()))
	for _, h := range st.Holdings() {
		r.Investments = append(r.Investments, domain.InvestmentBalance{ID: h.ID, Type: h.Type.Name, TaxStatus: h.TaxStatus, Value: h.Value})
		r.ByTaxStatus.Add(h.TaxStatus, h.Value)
	}
	r.TotalInvestments = st.TotalInvestments()

	r.GoalMet = !y.curtailed && !y.shortfall.IsPositive() && st.GoalMet()
	return r
}

// closeOut samples this year's inflation, moves to the next year and updates
// who is alive against the life expectancies sampled at trajectory start.
func (s *Stepper) closeOut(st *SimulationState) {
	st.PrevFilingStatus = st.FilingStatus()

	rate := s.sampler.Sample(st.Scenario.Inflation)
	st.lastInflationRate = rate
	st.PrevInflationFactor = st.InflationFactor
	st.InflationFactor = st.InflationFactor.Mul(one.Add(rate))

	st.Year++
	if st.User.Alive && st.User.Age(st.Year) >= st.User.LifeExpectancy {
		st.User.Alive = false
	}
	if st.Spouse != nil && st.Spouse.Alive && st.Spouse.Age(st.Year) >= st.Spouse.LifeExpectancy {
		st.Spouse.Alive = false
	}
}
