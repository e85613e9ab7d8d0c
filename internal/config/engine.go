package config

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// EngineConfig is the process-level configuration shared by the CLI and the
// HTTP server.
type EngineConfig struct {
	Simulation SimulationConfig `mapstructure:"simulation"`
	RMD        RMDConfig        `mapstructure:"rmd"`
	Withdrawal WithdrawalConfig `mapstructure:"withdrawal"`
	Tax        TaxConfig        `mapstructure:"tax"`
	Server     ServerConfig     `mapstructure:"server"`
	Log        LogConfig        `mapstructure:"log"`
}

type SimulationConfig struct {
	Trajectories int   `mapstructure:"trajectories"`
	Workers      int   `mapstructure:"workers"`
	Seed         int64 `mapstructure:"seed"`
}

type RMDConfig struct {
	StartAge int           `mapstructure:"start_age"`
	TableTTL time.Duration `mapstructure:"table_ttl"`
	TableURL string        `mapstructure:"table_url"`
	Timeout  time.Duration `mapstructure:"timeout"`
}

type WithdrawalConfig struct {
	EarlyAge         int     `mapstructure:"early_age"`
	EarlyPenaltyRate float64 `mapstructure:"early_penalty_rate"`
}

// TaxConfig locates bracket data. DataFile wins over DBPath; with neither
// the bundled tables are used.
type TaxConfig struct {
	DataFile string `mapstructure:"data_file"`
	DBPath   string `mapstructure:"db_path"`
	Year     int    `mapstructure:"year"`
}

type ServerConfig struct {
	HTTPAddr        string        `mapstructure:"http_addr"`
	MaxTrajectories int           `mapstructure:"max_trajectories"`
	RequestTimeout  time.Duration `mapstructure:"request_timeout"`
}

type LogConfig struct {
	Level             string `mapstructure:"level"`
	Encoding          string `mapstructure:"encoding"`
	Development       bool   `mapstructure:"development"`
	Sampling          bool   `mapstructure:"sampling"`
	DisableCaller     bool   `mapstructure:"disable_caller"`
	DisableStacktrace bool   `mapstructure:"disable_stacktrace"`
}

// Load reads path (unless envOnly) over the defaults, then applies RPSIM_
// environment overrides such as RPSIM_SIMULATION_TRAJECTORIES.
func Load(path string, envOnly bool) (EngineConfig, error) {
	v := viper.New()
	v.SetEnvPrefix("RPSIM")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.SetConfigType("yaml")
	if path != "" {
		v.SetConfigFile(path)
	}
	v.AutomaticEnv()

	v.SetDefault("simulation.trajectories", 1000)
	v.SetDefault("simulation.workers", 0)
	v.SetDefault("simulation.seed", 0)
	v.SetDefault("rmd.start_age", 73)
	v.SetDefault("rmd.table_ttl", "24h")
	v.SetDefault("rmd.table_url", "")
	v.SetDefault("rmd.timeout", "10s")
	v.SetDefault("withdrawal.early_age", 59)
	v.SetDefault("withdrawal.early_penalty_rate", 0.10)
	v.SetDefault("tax.data_file", "")
	v.SetDefault("tax.db_path", "")
	v.SetDefault("tax.year", 0)
	v.SetDefault("server.http_addr", ":8080")
	v.SetDefault("server.max_trajectories", 100000)
	v.SetDefault("server.request_timeout", "5m")
	v.SetDefault("log.level", "info")
	v.SetDefault("log.encoding", "console")
	v.SetDefault("log.development", false)
	v.SetDefault("log.sampling", false)
	v.SetDefault("log.disable_caller", false)
	v.SetDefault("log.disable_stacktrace", true)

	if !envOnly && path != "" {
		if err := v.ReadInConfig(); err != nil {
			return EngineConfig{}, fmt.Errorf("failed to read config %s: %w", path, err)
		}
	}

	var cfg EngineConfig
	if err := v.Unmarshal(&cfg); err != nil {
		return EngineConfig{}, fmt.Errorf("failed to decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return EngineConfig{}, err
	}
	return cfg, nil
}

// Validate checks the ranges the engine relies on.
func (c EngineConfig) Validate() error {
	var errs []error
	if c.Simulation.Trajectories <= 0 {
		errs = append(errs, fmt.Errorf("simulation.trajectories must be positive, got %d", c.Simulation.Trajectories))
	}
	if c.Simulation.Workers < 0 {
		errs = append(errs, fmt.Errorf("simulation.workers must not be negative, got %d", c.Simulation.Workers))
	}
	if c.RMD.StartAge <= 0 {
		errs = append(errs, fmt.Errorf("rmd.start_age must be positive, got %d", c.RMD.StartAge))
	}
	if c.RMD.TableTTL <= 0 {
		errs = append(errs, fmt.Errorf("rmd.table_ttl must be positive, got %s", c.RMD.TableTTL))
	}
	if c.Withdrawal.EarlyAge < 0 {
		errs = append(errs, fmt.Errorf("withdrawal.early_age must not be negative, got %d", c.Withdrawal.EarlyAge))
	}
	if c.Withdrawal.EarlyPenaltyRate < 0 || c.Withdrawal.EarlyPenaltyRate > 1 {
		errs = append(errs, fmt.Errorf("withdrawal.early_penalty_rate must be within [0,1], got %v", c.Withdrawal.EarlyPenaltyRate))
	}
	if c.Server.MaxTrajectories < 0 {
		errs = append(errs, fmt.Errorf("server.max_trajectories must not be negative, got %d", c.Server.MaxTrajectories))
	}
	if len(errs) > 0 {
		return fmt.Errorf("invalid configuration: %w", errors.Join(errs...))
	}
	return nil
}
