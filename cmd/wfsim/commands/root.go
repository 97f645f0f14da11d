package commands

import (
	"context"
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

var (
	// Global flags
	configPath string
	envFile    string
	jsonOutput bool

	buildVersion = "dev"
)

// Exit codes returned by ExitCode.
const (
	ExitFailure       = 1
	ExitConfiguration = 2
)

// Execute runs the root command
func Execute(ctx context.Context, version, commit, buildDate string) error {
	buildVersion = version
	rootCmd := newRootCommand(version, commit, buildDate)
	return rootCmd.ExecuteContext(ctx)
}

// ExitCode maps a command error to a process exit code. Configuration
// problems exit with 2, everything else, including failed years, with 1.
func ExitCode(err error) int {
	if errors.Is(err, engine.ErrConfiguration) {
		return ExitConfiguration
	}
	return ExitFailure
}

func newRootCommand(version, commit, buildDate string) *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "wfsim",
		Short: "wfsim - multi-year workforce simulation engine",
		Long: `wfsim projects a workforce forward year by year: terminations, hiring,
promotions, merit raises, retirement plan enrollment and IRS-capped
contributions. Every year is validated against the previous one before it is
persisted, and a rerun with the same seed reproduces the same events.

Features:
  - Deterministic, seeded event generation
  - Year transition validation with structured failing checks
  - SQLite or PostgreSQL storage
  - OPA/Rego policies over yearly metrics
  - Prometheus metrics and OpenTelemetry tracing`,
		Version:      fmt.Sprintf("%s (commit: %s, built: %s)", version, commit, buildDate),
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().StringVarP(&configPath, "config", "c", "wfsim.yaml", "config file path")
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file with WFSIM_ overrides")
	rootCmd.PersistentFlags().BoolVar(&jsonOutput, "json", false, "output in JSON format")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newValidateCommand())
	rootCmd.AddCommand(newRunCommand())
	rootCmd.AddCommand(newStatusCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newCleanCommand())
	rootCmd.AddCommand(newLimitsCommand())

	return rootCmd
}
