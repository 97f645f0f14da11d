package commands

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/workforcesim/workforcesim/pkg/census"
	"github.com/workforcesim/workforcesim/pkg/config"
	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/irs"
	"github.com/workforcesim/workforcesim/pkg/policy"
	"github.com/workforcesim/workforcesim/pkg/stores"
	"github.com/workforcesim/workforcesim/pkg/stores/postgres"
	"github.com/workforcesim/workforcesim/pkg/telemetry"
)

// loadSettings reads the environment overrides and the configuration file.
// --config wins over WFSIM_CONFIG.
func loadSettings(cmd *cobra.Command) (*config.File, string, *config.Env, error) {
	env, err := config.LoadEnv(envFile)
	if err != nil {
		return nil, "", nil, err
	}
	if env.LogLevel != "" {
		level, err := zerolog.ParseLevel(env.LogLevel)
		if err != nil {
			return nil, "", nil, engine.NewConfigurationError(fmt.Sprintf("WFSIM_LOG_LEVEL: %v", err))
		}
		zerolog.SetGlobalLevel(level)
	}

	path := configPath
	if f := cmd.Flag("config"); (f == nil || !f.Changed) && env.ConfigPath != "" {
		path = env.ConfigPath
	}

	file, err := config.NewLoader().Load(path, env)
	if err != nil {
		return nil, path, env, err
	}

	log.Debug().
		Str("config", path).
		Str("digest", file.Digest()).
		Msg("Configuration loaded")

	return file, path, env, nil
}

// parseYears parses "2025-2029" or a single "2025".
func parseYears(s string) (int, int, error) {
	startStr, endStr, isRange := strings.Cut(strings.TrimSpace(s), "-")
	start, err := strconv.Atoi(strings.TrimSpace(startStr))
	if err != nil {
		return 0, 0, engine.NewConfigurationError(fmt.Sprintf("invalid year range %q", s))
	}
	end := start
	if isRange {
		if end, err = strconv.Atoi(strings.TrimSpace(endStr)); err != nil {
			return 0, 0, engine.NewConfigurationError(fmt.Sprintf("invalid year range %q", s))
		}
	}
	if end < start {
		return 0, 0, engine.NewConfigurationError(fmt.Sprintf("year range %q ends before it starts", s))
	}
	return start, end, nil
}

type store interface {
	engine.Store
	HealthCheck(ctx context.Context) error
}

// openStore opens and initializes the configured store.
func openStore(ctx context.Context, f *config.File) (store, error) {
	var s store
	switch f.Storage.Driver {
	case "postgres":
		pg, err := postgres.Open(ctx, postgres.Config{
			DSN:      f.Storage.DSN,
			MaxConns: int(f.Storage.MaxConns),
		}, log.Logger)
		if err != nil {
			return nil, err
		}
		s = pg
	default:
		lite, err := stores.NewSQLiteStore(stores.Config{
			Path:      f.Storage.Path,
			BatchSize: f.BatchSize(),
		}, log.Logger)
		if err != nil {
			return nil, err
		}
		s = lite
	}

	if err := s.Init(ctx); err != nil {
		_ = s.Close()
		return nil, fmt.Errorf("failed to initialize %s store: %w", f.Storage.Driver, err)
	}
	return s, nil
}

func loadLimits(f *config.File) (*irs.Table, error) {
	limits, err := irs.Load(f.IRS.LimitsPath)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("irs limits: %v", err))
	}
	return limits, nil
}

func censusSource(f *config.File, cfg *engine.SimulationConfig) engine.CensusSource {
	if f.Census.Path != "" {
		return census.NewCSVSource(f.Census.Path, log.Logger)
	}
	return census.NewSyntheticSource(f.Census.SyntheticSize, cfg.RandomSeed, cfg.Levels)
}

// newPolicyEngine returns nil when policies are disabled.
func newPolicyEngine(ctx context.Context, f *config.File) (*policy.Engine, error) {
	if !f.Policy.Enabled {
		return nil, nil
	}
	eng, err := policy.NewEngine(log.Logger, policy.DefaultParams(), f.Policy.Builtins)
	if err != nil {
		return nil, err
	}
	if len(f.Policy.Paths) > 0 {
		if err := eng.LoadPolicies(ctx, f.Policy.Paths); err != nil {
			return nil, engine.NewConfigurationError(err.Error())
		}
	}
	return eng, nil
}

type telemetryOptions struct {
	metricsFile   string
	metricsAddr   string
	traceExporter string
	otlpEndpoint  string
}

func newTelemetry(opts telemetryOptions) (*telemetry.Telemetry, error) {
	cfg := telemetry.DefaultConfig()
	cfg.ServiceVersion = buildVersion
	if zerolog.GlobalLevel() <= zerolog.DebugLevel {
		cfg.Logging.Level = "debug"
	}
	cfg.Metrics.TextfilePath = opts.metricsFile
	cfg.Metrics.ListenAddress = opts.metricsAddr
	if opts.traceExporter != "" && opts.traceExporter != "none" {
		cfg.Tracing.Enabled = true
		cfg.Tracing.Exporter = opts.traceExporter
		cfg.Tracing.Endpoint = opts.otlpEndpoint
	}

	tel, err := telemetry.NewTelemetry(cfg)
	if err != nil {
		return nil, engine.NewConfigurationError(fmt.Sprintf("telemetry: %v", err))
	}
	if err := tel.StartMetricsServer(); err != nil {
		return nil, err
	}

	// Lifecycle warnings reach the log even when the summary goes to JSON.
	events := tel.Logger.NewComponentLogger("notifications")
	tel.Events.Subscribe(func(n telemetry.Notification) {
		l := events.WithField("type", n.Type)
		if n.RunID != "" {
			l = l.WithRunID(n.RunID)
		}
		if n.Year != 0 {
			l = l.WithYear(n.Year)
		}
		if n.Level == telemetry.LevelError {
			l.Error(n.Message)
			return
		}
		l.Warn(n.Message)
	}, telemetry.FilterByLevel(telemetry.LevelWarning))
	tel.Events.Subscribe(func(n telemetry.Notification) {
		events.WithField("type", n.Type).WithYear(n.Year).Debug(n.Message)
	}, telemetry.FilterByType(telemetry.NotifyYearCompleted))

	return tel, nil
}
