package calculation

import (
	"context"
	"errors"
	"fmt"
	"runtime"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"
	"golang.org/x/sync/errgroup"

	"github.com/rpgo/lifetime-planner/internal/domain"
)

// Default engine parameters.
const (
	DefaultEarlyWithdrawalAge = 59
)

// DefaultEarlyWithdrawalPenalty is the flat penalty on early withdrawals.
var DefaultEarlyWithdrawalPenalty = decimal.NewFromFloat(0.10)

// EngineOptions configures a Monte Carlo run.
type EngineOptions struct {
	// Workers bounds parallel trajectories; zero means runtime.NumCPU().
	Workers int
	// Seed fixes the base random seed; zero draws one.
	Seed        int64
	RMDStartAge int
	// EarlyWithdrawalAge defaults to DefaultEarlyWithdrawalAge when nil.
	// Zero disables the early-withdrawal penalty.
	EarlyWithdrawalAge *int
	// EarlyWithdrawalPenalty defaults to DefaultEarlyWithdrawalPenalty when unset.
	EarlyWithdrawalPenalty decimal.NullDecimal
	// KeepTrajectories attaches every trajectory's year series to the result.
	KeepTrajectories bool
}

// validate rejects option values the step function cannot honour.
func (o EngineOptions) validate() error {
	verr := &ValidationError{}
	if o.Workers < 0 {
		verr.Add("options.workers", "must not be negative, got %d", o.Workers)
	}
	if *o.EarlyWithdrawalAge < 0 {
		verr.Add("options.early_withdrawal_age", "must not be negative, got %d", *o.EarlyWithdrawalAge)
	}
	if p := o.EarlyWithdrawalPenalty.Decimal; p.IsNegative() || p.GreaterThan(decimal.NewFromInt(1)) {
		verr.Add("options.early_withdrawal_penalty", "must be within [0,1], got %s", p)
	}
	return verr.OrNil()
}

// Engine runs independent trajectories of a scenario and aggregates them.
// An Engine is safe for concurrent runs.
type Engine struct {
	taxData *domain.TaxData
	rmd     *RMDTableProvider
	opts    EngineOptions
	logger  Logger
}

// NewEngine returns an engine over the given tax data. A nil provider uses
// the built-in RMD table.
func NewEngine(taxData *domain.TaxData, rmd *RMDTableProvider, opts EngineOptions, logger Logger) *Engine {
	if opts.RMDStartAge <= 0 {
		opts.RMDStartAge = DefaultRMDStartAge
	}
	if opts.EarlyWithdrawalAge == nil {
		age := DefaultEarlyWithdrawalAge
		opts.EarlyWithdrawalAge = &age
	}
	if !opts.EarlyWithdrawalPenalty.Valid {
		opts.EarlyWithdrawalPenalty = decimal.NewNullDecimal(DefaultEarlyWithdrawalPenalty)
	}
	logger = orNop(logger)
	if rmd == nil {
		rmd = NewRMDTableProvider(nil, opts.RMDStartAge, DefaultRMDTableTTL, logger)
	}
	return &Engine{taxData: taxData, rmd: rmd, opts: opts, logger: logger}
}

// Options returns the engine's effective options.
func (e *Engine) Options() EngineOptions { return e.opts }

// WithOptions returns an engine sharing e's tax data, RMD provider and
// logger but running with opts.
func (e *Engine) WithOptions(opts EngineOptions) *Engine {
	return NewEngine(e.taxData, e.rmd, opts, e.logger)
}

// runPlan is everything resolved once before trajectories start.
type runPlan struct {
	scenario *domain.ScenarioDefinition
	plan     *SeriesPlan
	tax      *TaxCalculator
	rmd      *RMDTable
	cfg      StepConfig
}

func (e *Engine) prepare(ctx context.Context, sc *domain.ScenarioDefinition) (*runPlan, error) {
	if err := e.opts.validate(); err != nil {
		return nil, err
	}
	if err := ValidateScenario(sc); err != nil {
		return nil, err
	}
	plan, err := PlanSeries(sc.EventSeries)
	if err != nil {
		return nil, err
	}
	tax, err := NewTaxCalculator(e.taxData, sc.ResidenceState, e.opts.EarlyWithdrawalPenalty.Decimal)
	if err != nil {
		return nil, err
	}
	table, err := e.rmd.Table(ctx)
	if err != nil {
		return nil, fmt.Errorf("resolve RMD table: %w", err)
	}
	return &runPlan{
		scenario: sc,
		plan:     plan,
		tax:      tax,
		rmd:      table,
		cfg:      StepConfig{RMDStartAge: e.opts.RMDStartAge, EarlyWithdrawalAge: *e.opts.EarlyWithdrawalAge},
	}, nil
}

// Validate checks the scenario and the data it needs without simulating.
func (e *Engine) Validate(ctx context.Context, sc *domain.ScenarioDefinition) error {
	_, err := e.prepare(ctx, sc)
	return err
}

// Run simulates n trajectories and aggregates them. A cancelled context
// yields ErrCancelled and no result.
func (e *Engine) Run(ctx context.Context, sc *domain.ScenarioDefinition, n int) (*domain.SimulationResult, error) {
	started := nowFunc()
	runID := uuid.NewString()

	trajectories, seed, err := e.run(ctx, sc, n, runID)
	if err != nil {
		return nil, err
	}

	result := &domain.SimulationResult{
		RunID:           runID,
		Scenario:        sc.Name,
		Seed:            seed,
		NumTrajectories: n,
		StartedAt:       started,
		Aggregated:      Aggregate(trajectories),
	}
	if e.opts.KeepTrajectories {
		result.Trajectories = trajectories
	}
	result.Duration = nowFunc().Sub(started)
	e.logger.Infof("run %s complete: %d trajectories, years %d-%d in %s",
		runID, n, result.Aggregated.StartYear, result.Aggregated.EndYear, result.Duration)
	return result, nil
}

// RunTrajectories simulates n trajectories and returns their raw series.
func (e *Engine) RunTrajectories(ctx context.Context, sc *domain.ScenarioDefinition, n int) ([]domain.TrajectoryResult, error) {
	trajectories, _, err := e.run(ctx, sc, n, uuid.NewString())
	return trajectories, err
}

func (e *Engine) run(ctx context.Context, sc *domain.ScenarioDefinition, n int, runID string) ([]domain.TrajectoryResult, int64, error) {
	if n <= 0 {
		return nil, 0, &ValidationError{Errors: []FieldError{{Field: "num_trajectories", Message: fmt.Sprintf("must be positive, got %d", n)}}}
	}
	rp, err := e.prepare(ctx, sc)
	if err != nil {
		e.logger.Warnf("run %s rejected: %v", runID, err)
		return nil, 0, err
	}

	seed := e.opts.Seed
	if seed == 0 {
		seed = seedFunc()
	}
	workers := e.opts.Workers
	if workers <= 0 {
		workers = runtime.NumCPU()
	}
	if workers > n {
		workers = n
	}
	e.logger.Infof("run %s: scenario %q, %d trajectories, %d workers, seed %d, inflation %s",
		runID, sc.Name, n, workers, seed, describeDistribution(sc.Inflation))

	results := make([]domain.TrajectoryResult, n)
	jobs := make(chan int)
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		defer close(jobs)
		for i := 0; i < n; i++ {
			select {
			case jobs <- i:
			case <-gctx.Done():
				return gctx.Err()
			}
		}
		return nil
	})
	for w := 0; w < workers; w++ {
		g.Go(func() error {
			for i := range jobs {
				r, err := rp.simulate(gctx, i, trajectorySeed(seed, i))
				if err != nil {
					return err
				}
				results[i] = r
			}
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		if ctx.Err() != nil {
			e.logger.Warnf("run %s cancelled: %v", runID, ctx.Err())
			return nil, seed, fmt.Errorf("%w: %w", ErrCancelled, ctx.Err())
		}
		e.logger.Errorf("run %s failed: %v", runID, err)
		return nil, seed, err
	}
	return results, seed, nil
}

// simulate runs one trajectory to termination. Panics become errors so one
// bad trajectory fails the run instead of the process.
func (rp *runPlan) simulate(ctx context.Context, idx int, seed int64) (res domain.TrajectoryResult, err error) {
	defer func() {
		if r := recover(); r != nil {
			res = domain.TrajectoryResult{}
			err = fmt.Errorf("trajectory %d panicked: %v", idx, r)
		}
	}()

	sampler := NewSampler(seed)
	st := NewSimulationState(rp.scenario, rp.plan, sampler)
	stepper := NewStepper(rp.tax, rp.rmd, rp.cfg, sampler)
	ledger := UserTaxData{}

	res = domain.TrajectoryResult{Index: idx, Seed: seed}
	for st.AnyAlive() {
		if err := ctx.Err(); err != nil {
			return domain.TrajectoryResult{}, err
		}
		var year domain.YearResult
		ledger, year, err = stepper.Step(st, ledger)
		if err != nil {
			return domain.TrajectoryResult{}, fmt.Errorf("trajectory %d: %w", idx, err)
		}
		res.Years = append(res.Years, year)
	}
	return res, nil
}

// IsCancelled reports whether err means the run was cancelled.
func IsCancelled(err error) bool {
	return errors.Is(err, ErrCancelled)
}
