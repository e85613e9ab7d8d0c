package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/config"
	"github.com/rpgo/lifetime-planner/internal/output"
)

type simulateOptions struct {
	trajectories int
	seed         int64
	workers      int
	format       string
	outputDir    string
	keep         bool
}

// newSimulateCmd creates the simulate command
func newSimulateCmd(a *app) *cobra.Command {
	opts := &simulateOptions{}
	cmd := &cobra.Command{
		Use:   "simulate SCENARIO",
		Short: "Run a Monte Carlo simulation of a scenario file",
		Long: `Run many independent trajectories of a YAML scenario and print the
aggregated per-year results. Interrupting the command cancels the run.
Example: rpsim simulate plan.yaml --trajectories=5000 --format=csv --output-dir=reports`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return a.runSimulate(ctx, cmd, args[0], opts)
		},
	}

	cmd.Flags().IntVarP(&opts.trajectories, "trajectories", "n", 0, "Number of trajectories (default from simulation.trajectories)")
	cmd.Flags().Int64Var(&opts.seed, "seed", 0, "Base random seed; 0 uses simulation.seed or a fresh one")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Parallel workers (default from simulation.workers, 0 = all CPUs)")
	cmd.Flags().StringVarP(&opts.format, "format", "f", "console", "Output format ("+strings.Join(output.AvailableFormatterNames(), ", ")+", or all with --output-dir)")
	cmd.Flags().StringVarP(&opts.outputDir, "output-dir", "o", "", "Write timestamped report files here instead of stdout")
	cmd.Flags().BoolVar(&opts.keep, "keep-trajectories", false, "Include every trajectory's yearly detail in the result")

	return cmd
}

func (a *app) runSimulate(ctx context.Context, cmd *cobra.Command, path string, opts *simulateOptions) error {
	sc, err := config.NewScenarioParser().LoadFromFile(path)
	if err != nil {
		return err
	}

	format := output.NormalizeFormatName(opts.format)
	var formatter output.Formatter
	if format != "all" {
		if formatter = output.GetFormatterByName(format); formatter == nil {
			return output.UnsupportedFormatError(opts.format)
		}
	} else if opts.outputDir == "" {
		return fmt.Errorf("format all needs --output-dir")
	}

	engine, _, err := a.buildEngine(ctx)
	if err != nil {
		return err
	}
	eo := engine.Options()
	if opts.seed != 0 {
		eo.Seed = opts.seed
	}
	if opts.workers != 0 {
		eo.Workers = opts.workers
	}
	eo.KeepTrajectories = opts.keep || format == "detailed-csv" || format == "all"

	n := opts.trajectories
	if n == 0 {
		n = a.cfg.Simulation.Trajectories
	}

	result, err := engine.WithOptions(eo).Run(ctx, sc, n)
	if err != nil {
		if calculation.IsCancelled(err) {
			a.logger.Warn("simulation interrupted", zap.Error(err))
		}
		return err
	}

	if opts.outputDir != "" {
		if err := os.MkdirAll(opts.outputDir, 0o755); err != nil {
			return fmt.Errorf("failed to create output dir: %w", err)
		}
		files, err := output.GenerateReport(result, format, opts.outputDir)
		for _, f := range files {
			fmt.Fprintf(cmd.OutOrStdout(), "wrote %s\n", f)
		}
		return err
	}

	data, err := formatter.Format(result)
	if err != nil {
		return err
	}
	_, err = cmd.OutOrStdout().Write(data)
	return err
}
