package calculation

import (
	"fmt"
	"strings"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// SeriesPlan is the dependency order of a scenario's event series, built once
// per run. Series that start with or after another series come after it.
type SeriesPlan struct {
	series []domain.EventSeries
	order  []int
	deps   []int // index of the referenced series, or -1
}

// PlanSeries resolves start references into a DAG and orders it
// topologically. Dangling references and cycles are validation errors.
func PlanSeries(series []domain.EventSeries) (*SeriesPlan, error) {
	verr := &ValidationError{}
	index := make(map[string]int, len(series))
	for i, s := range series {
		if _, dup := index[s.Name]; dup {
			verr.Add(fmt.Sprintf("event_series[%d].name", i), "duplicate series name %q", s.Name)
			continue
		}
		index[s.Name] = i
	}

	deps := make([]int, len(series))
	for i, s := range series {
		deps[i] = -1
		if !s.Start.References() {
			continue
		}
		j, ok := index[s.Start.Series]
		switch {
		case s.Start.Series == "":
			verr.Add(fmt.Sprintf("event_series[%s].start.series", s.Name), "%s requires a series name", s.Start.Type)
		case !ok:
			verr.Add(fmt.Sprintf("event_series[%s].start.series", s.Name), "references unknown series %q", s.Start.Series)
		case j == i:
			verr.Add(fmt.Sprintf("event_series[%s].start.series", s.Name), "series cannot reference itself")
		default:
			deps[i] = j
		}
	}
	if err := verr.OrNil(); err != nil {
		return nil, err
	}

	// Each node has at most one outgoing reference, so a DFS with colours
	// yields the order and finds cycles.
	const (
		unvisited = iota
		visiting
		done
	)
	state := make([]int, len(series))
	order := make([]int, 0, len(series))
	var visit func(i int, path []string) error
	visit = func(i int, path []string) error {
		switch state[i] {
		case done:
			return nil
		case visiting:
			return fmt.Errorf("cycle %s -> %s", strings.Join(path, " -> "), series[i].Name)
		}
		state[i] = visiting
		if d := deps[i]; d >= 0 {
			if err := visit(d, append(path, series[i].Name)); err != nil {
				return err
			}
		}
		state[i] = done
		order = append(order, i)
		return nil
	}
	for i := range series {
		if err := visit(i, nil); err != nil {
			verr.Add(fmt.Sprintf("event_series[%s].start", series[i].Name), "%v", err)
			return nil, verr
		}
	}

	return &SeriesPlan{series: series, order: order, deps: deps}, nil
}

// ResolvedSeries is a series with its sampled first year and duration.
type ResolvedSeries struct {
	Series   *domain.EventSeries
	Start    int
	Duration int
}

// End is the last active year; it precedes Start when Duration is zero.
func (r ResolvedSeries) End() int { return r.Start + r.Duration - 1 }

// Active reports whether year falls within the series.
func (r ResolvedSeries) Active(year int) bool {
	return r.Duration > 0 && year >= r.Start && year <= r.End()
}

// Resolve samples start and duration for every series in dependency order.
// The result is indexed like the scenario's series.
func (p *SeriesPlan) Resolve(s *Sampler) []ResolvedSeries {
	out := make([]ResolvedSeries, len(p.series))
	for _, i := range p.order {
		es := &p.series[i]
		r := ResolvedSeries{Series: es}
		switch es.Start.Type {
		case domain.StartWith:
			r.Start = out[p.deps[i]].Start
		case domain.StartAfter:
			ref := out[p.deps[i]]
			r.Start = ref.Start + ref.Duration
		default:
			r.Start = s.SampleYears(es.Start.Distribution)
		}
		r.Duration = s.SampleYears(es.Duration)
		out[i] = r
	}
	return out
}
