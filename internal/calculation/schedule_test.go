package calculation

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

func refSeries(name string, kind domain.DistributionType, ref string, duration int64) domain.EventSeries {
	s := fixedSeries(name, domain.EventExpense, 0, duration)
	s.Start = domain.StartRule{Distribution: domain.Distribution{Type: kind}, Series: ref}
	return s
}

func TestPlanSeries_ResolvesReferences(t *testing.T) {
	series := []domain.EventSeries{
		refSeries("travel", domain.StartAfter, "work", 5),
		refSeries("commute", domain.StartWith, "work", 10),
		fixedSeries("work", domain.EventIncome, 2025, 10),
	}
	plan, err := PlanSeries(series)
	require.NoError(t, err)

	resolved := plan.Resolve(NewSampler(1))
	require.Len(t, resolved, 3)
	assert.Equal(t, "travel", resolved[0].Series.Name)
	assert.Equal(t, 2035, resolved[0].Start)
	assert.Equal(t, 2025, resolved[1].Start)
	assert.Equal(t, 2025, resolved[2].Start)
	assert.Equal(t, 2034, resolved[2].End())

	assert.True(t, resolved[2].Active(2034))
	assert.False(t, resolved[2].Active(2035))
	assert.True(t, resolved[0].Active(2035))
}

func TestPlanSeries_StochasticReferenceFollowsSample(t *testing.T) {
	work := fixedSeries("work", domain.EventIncome, 0, 0)
	work.Start = domain.StartRule{Distribution: domain.Uniform(d("2025"), d("2030"))}
	work.Duration = domain.Uniform(d("5"), d("15"))
	series := []domain.EventSeries{work, refSeries("retired", domain.StartAfter, "work", 20)}

	plan, err := PlanSeries(series)
	require.NoError(t, err)
	for seed := int64(0); seed < 20; seed++ {
		r := plan.Resolve(NewSampler(seed))
		assert.Equal(t, r[0].Start+r[0].Duration, r[1].Start)
	}
}

func TestPlanSeries_Errors(t *testing.T) {
	tests := []struct {
		name   string
		series []domain.EventSeries
		msg    string
	}{
		{
			name:   "dangling",
			series: []domain.EventSeries{refSeries("a", domain.StartWith, "ghost", 1)},
			msg:    "unknown series",
		},
		{
			name: "cycle",
			series: []domain.EventSeries{
				refSeries("a", domain.StartAfter, "b", 1),
				refSeries("b", domain.StartAfter, "c", 1),
				refSeries("c", domain.StartWith, "a", 1),
			},
			msg: "cycle",
		},
		{
			name:   "self",
			series: []domain.EventSeries{refSeries("a", domain.StartAfter, "a", 1)},
			msg:    "itself",
		},
		{
			name: "duplicate",
			series: []domain.EventSeries{
				fixedSeries("a", domain.EventIncome, 2025, 1),
				fixedSeries("a", domain.EventIncome, 2025, 1),
			},
			msg: "duplicate",
		},
	}
	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			_, err := PlanSeries(tc.series)
			require.Error(t, err)
			var verr *ValidationError
			require.True(t, errors.As(err, &verr))
			assert.Contains(t, err.Error(), tc.msg)
		})
	}
}

func TestResolve_ZeroDurationNeverActive(t *testing.T) {
	s := fixedSeries("blip", domain.EventExpense, 2025, 0)
	plan, err := PlanSeries([]domain.EventSeries{s})
	require.NoError(t, err)
	r := plan.Resolve(NewSampler(1))
	assert.False(t, r[0].Active(2025))
}
