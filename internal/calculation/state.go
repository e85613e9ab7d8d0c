package calculation

import (
	"fmt"

	"github.com/shopspring/decimal"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// maxLifeExpectancy caps sampled lifespans so a wide distribution cannot
// produce an unbounded trajectory.
const maxLifeExpectancy = 120

// Holding is a live investment balance within one trajectory.
type Holding struct {
	ID        string
	Type      *domain.InvestmentType
	TaxStatus domain.TaxStatus
	Value     decimal.Decimal
	CostBasis decimal.Decimal
}

// Member is one household member's trajectory-specific facts.
type Member struct {
	BirthYear      int
	LifeExpectancy int
	Alive          bool
}

// Age returns the member's age during year.
func (m Member) Age(year int) int { return year - m.BirthYear }

// seriesState tracks the running amount of an income or expense series.
type seriesState struct {
	ResolvedSeries
	amount  decimal.Decimal
	started bool
}

// SimulationState is the mutable snapshot of one trajectory. It is never
// shared between goroutines.
type SimulationState struct {
	Scenario *domain.ScenarioDefinition
	Year     int
	User     Member
	Spouse   *Member
	Cash     decimal.Decimal

	// PrevFilingStatus is the status under which last year's income was earned.
	PrevFilingStatus domain.FilingStatus

	holdings []*Holding
	byID     map[string]*Holding
	series   []*seriesState

	// InflationFactor is the cumulative price level of Year relative to the
	// start year; PrevInflationFactor is that of Year-1.
	InflationFactor     decimal.Decimal
	PrevInflationFactor decimal.Decimal
	lastInflationRate   decimal.Decimal
}

// NewSimulationState samples the per-trajectory facts of sc: one life
// expectancy per member and concrete series timing.
func NewSimulationState(sc *domain.ScenarioDefinition, plan *SeriesPlan, s *Sampler) *SimulationState {
	st := &SimulationState{
		Scenario:            sc,
		Year:                sc.StartYear,
		Cash:                decimal.Zero,
		byID:                make(map[string]*Holding, len(sc.Investments)),
		InflationFactor:     one,
		PrevInflationFactor: one,
		lastInflationRate:   decimal.Zero,
	}
	st.User = newMember(sc.User, sc.StartYear, s)
	if sc.IsCouple() {
		m := newMember(*sc.Spouse, sc.StartYear, s)
		st.Spouse = &m
	}
	st.PrevFilingStatus = st.FilingStatus()

	for _, inv := range sc.Investments {
		it, _ := sc.InvestmentType(inv.Type)
		st.addHolding(&Holding{ID: inv.ID, Type: it, TaxStatus: inv.TaxStatus, Value: inv.Value, CostBasis: inv.Value})
	}
	for _, r := range plan.Resolve(s) {
		st.series = append(st.series, &seriesState{ResolvedSeries: r})
	}
	return st
}

func newMember(p domain.Person, startYear int, s *Sampler) Member {
	le := s.SampleYears(p.LifeExpectancy)
	if le > maxLifeExpectancy {
		le = maxLifeExpectancy
	}
	m := Member{BirthYear: p.BirthYear, LifeExpectancy: le}
	m.Alive = m.Age(startYear) < le
	return m
}

func (st *SimulationState) addHolding(h *Holding) {
	st.holdings = append(st.holdings, h)
	st.byID[h.ID] = h
}

// Holding returns the holding with id.
func (st *SimulationState) Holding(id string) (*Holding, bool) {
	h, ok := st.byID[id]
	return h, ok
}

// Holdings returns the holdings in creation order.
func (st *SimulationState) Holdings() []*Holding { return st.holdings }

// holdingFor returns the first holding of the type and status, creating an
// empty one if none exists.
func (st *SimulationState) holdingFor(it *domain.InvestmentType, status domain.TaxStatus) *Holding {
	for _, h := range st.holdings {
		if h.Type == it && h.TaxStatus == status {
			return h
		}
	}
	h := &Holding{ID: it.Name + " " + string(status), Type: it, TaxStatus: status, Value: decimal.Zero, CostBasis: decimal.Zero}
	for n := 2; ; n++ {
		if _, taken := st.byID[h.ID]; !taken {
			break
		}
		h.ID = fmt.Sprintf("%s %s %d", it.Name, status, n)
	}
	st.addHolding(h)
	return h
}

// AnyAlive reports whether the trajectory continues.
func (st *SimulationState) AnyAlive() bool {
	return st.User.Alive || (st.Spouse != nil && st.Spouse.Alive)
}

// BothAlive reports whether a couple is still intact.
func (st *SimulationState) BothAlive() bool {
	return st.User.Alive && st.Spouse != nil && st.Spouse.Alive
}

// FilingStatus is married while both spouses live and single otherwise.
func (st *SimulationState) FilingStatus() domain.FilingStatus {
	if st.BothAlive() {
		return domain.FilingMarried
	}
	return domain.FilingSingle
}

// OldestAliveAge returns the highest age among living members.
func (st *SimulationState) OldestAliveAge() int {
	age := -1
	if st.User.Alive {
		age = st.User.Age(st.Year)
	}
	if st.Spouse != nil && st.Spouse.Alive && st.Spouse.Age(st.Year) > age {
		age = st.Spouse.Age(st.Year)
	}
	return age
}

// withdrawerAge is the age of the member treated as making withdrawals:
// the user while alive, otherwise the surviving spouse.
func (st *SimulationState) withdrawerAge() int {
	if st.User.Alive || st.Spouse == nil {
		return st.User.Age(st.Year)
	}
	return st.Spouse.Age(st.Year)
}

// TotalInvestments sums every holding.
func (st *SimulationState) TotalInvestments() decimal.Decimal {
	total := decimal.Zero
	for _, h := range st.holdings {
		total = total.Add(h.Value)
	}
	return total
}

// GoalMet reports whether total investments are at or above the financial
// goal. Cash does not count toward the goal.
func (st *SimulationState) GoalMet() bool {
	return st.TotalInvestments().GreaterThanOrEqual(st.Scenario.FinancialGoal)
}

// discretionaryHeadroom is how much discretionary spending the household
// can afford before total investments would fall below the goal. Spending
// comes out of cash first, so cash is headroom only while the goal holds.
func (st *SimulationState) discretionaryHeadroom() decimal.Decimal {
	above := st.TotalInvestments().Sub(st.Scenario.FinancialGoal)
	if above.IsNegative() {
		return decimal.Zero
	}
	return above.Add(decimal.Max(st.Cash, decimal.Zero))
}

// householdShare returns the fraction of a cash-flow series that applies
// given who is alive.
func (st *SimulationState) householdShare(es *domain.EventSeries) decimal.Decimal {
	pct := decimal.Zero
	if st.User.Alive {
		pct = pct.Add(es.UserPercent)
	}
	if st.Spouse != nil && st.Spouse.Alive {
		pct = pct.Add(es.SpousePercent)
	}
	return pct.Div(hundred)
}
