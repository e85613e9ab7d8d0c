package cli

import (
	"context"
	"fmt"

	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/rpgo/lifetime-planner/internal/calculation"
	"github.com/rpgo/lifetime-planner/internal/config"
	"github.com/rpgo/lifetime-planner/internal/domain"
	"github.com/rpgo/lifetime-planner/internal/logging"
	"github.com/rpgo/lifetime-planner/internal/taxdata"
)

// loadTaxData resolves bracket data: an explicit file, then the SQLite
// store (a fixed year or the latest), then the bundled tables.
func loadTaxData(ctx context.Context, cfg config.TaxConfig, logger *zap.Logger) (*domain.TaxData, error) {
	switch {
	case cfg.DataFile != "":
		logger.Debug("loading tax data file", zap.String("path", cfg.DataFile))
		return taxdata.LoadFile(cfg.DataFile)
	case cfg.DBPath != "":
		store, err := taxdata.Open(cfg.DBPath)
		if err != nil {
			return nil, err
		}
		defer store.Close()
		logger.Debug("loading tax data store", zap.String("path", cfg.DBPath), zap.Int("year", cfg.Year))
		if cfg.Year > 0 {
			return store.Load(ctx, cfg.Year)
		}
		return store.Latest(ctx)
	default:
		return taxdata.Default()
	}
}

// newRMDProvider reads the table from rmd.table_url when set, otherwise the
// built-in IRS table.
func newRMDProvider(cfg config.RMDConfig, logger *zap.Logger) *calculation.RMDTableProvider {
	var source calculation.RMDSource
	if cfg.TableURL != "" {
		source = calculation.NewHTTPRMDSource(cfg.TableURL, cfg.Timeout)
	}
	return calculation.NewRMDTableProvider(source, cfg.StartAge, cfg.TableTTL, logging.Engine(logger))
}

// engineOptions maps configuration onto engine options.
func engineOptions(cfg config.EngineConfig) calculation.EngineOptions {
	earlyAge := cfg.Withdrawal.EarlyAge
	return calculation.EngineOptions{
		Workers:                cfg.Simulation.Workers,
		Seed:                   cfg.Simulation.Seed,
		RMDStartAge:            cfg.RMD.StartAge,
		EarlyWithdrawalAge:     &earlyAge,
		EarlyWithdrawalPenalty: decimal.NewNullDecimal(decimal.NewFromFloat(cfg.Withdrawal.EarlyPenaltyRate)),
	}
}

// buildEngine assembles the engine and its RMD provider from configuration.
func (a *app) buildEngine(ctx context.Context) (*calculation.Engine, *calculation.RMDTableProvider, error) {
	td, err := loadTaxData(ctx, a.cfg.Tax, a.logger)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load tax data: %w", err)
	}
	a.logger.Info("tax data loaded", zap.Int("year", td.Year), zap.Strings("states", taxdata.States(td)))

	rmd := newRMDProvider(a.cfg.RMD, a.logger)
	engine := calculation.NewEngine(td, rmd, engineOptions(a.cfg), logging.Engine(a.logger))
	return engine, rmd, nil
}
