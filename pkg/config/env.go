package config

import (
	"errors"
	"fmt"
	"io/fs"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

// EnvPrefix prefixes every environment override.
const EnvPrefix = "WFSIM_"

// Env holds runtime overrides read from the environment. Unset fields leave
// the file untouched.
type Env struct {
	ConfigPath        string `env:"CONFIG"`
	StoreDriver       string `env:"STORE_DRIVER"`
	StorePath         string `env:"STORE_PATH"`
	StoreDSN          string `env:"STORE_DSN"`
	CensusPath        string `env:"CENSUS_PATH"`
	IRSLimitsPath     string `env:"IRS_LIMITS_PATH"`
	Threads           int    `env:"THREADS"`
	OptimizationLevel string `env:"OPTIMIZATION_LEVEL"`
	FailFast          *bool  `env:"FAIL_FAST"`
	RandomSeed        *int64 `env:"RANDOM_SEED"`
	LogLevel          string `env:"LOG_LEVEL"`
	MetricsFile       string `env:"METRICS_FILE"`
}

// LoadEnv loads the given dotenv files, skipping missing ones, then parses
// WFSIM_ variables. Variables already set take precedence over dotenv files.
func LoadEnv(dotenvFiles ...string) (*Env, error) {
	for _, path := range dotenvFiles {
		if err := godotenv.Load(path); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	var e Env
	if err := env.ParseWithOptions(&e, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	return &e, nil
}

// Apply copies the set overrides into f.
func (e *Env) Apply(f *File) {
	if e.StoreDriver != "" {
		f.Storage.Driver = e.StoreDriver
	}
	if e.StorePath != "" {
		f.Storage.Path = e.StorePath
	}
	if e.StoreDSN != "" {
		f.Storage.DSN = e.StoreDSN
	}
	if e.CensusPath != "" {
		f.Census.Path = e.CensusPath
	}
	if e.IRSLimitsPath != "" {
		f.IRS.LimitsPath = e.IRSLimitsPath
	}
	if e.Threads > 0 {
		f.Runtime.Threads = e.Threads
	}
	if e.OptimizationLevel != "" {
		f.Runtime.OptimizationLevel = e.OptimizationLevel
	}
	if e.FailFast != nil {
		f.Simulation.FailFast = *e.FailFast
	}
	if e.RandomSeed != nil {
		f.Simulation.RandomSeed = *e.RandomSeed
	}
	if e.MetricsFile != "" {
		f.Runtime.MetricsFile = e.MetricsFile
	}
}
