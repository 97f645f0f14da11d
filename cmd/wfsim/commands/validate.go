package commands

import (
	"errors"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workforcesim/workforcesim/pkg/config"
	"github.com/workforcesim/workforcesim/pkg/engine"
	"github.com/workforcesim/workforcesim/pkg/generators"
)

func newValidateCommand() *cobra.Command {
	var graph bool

	cmd := &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration",
		Long: `Validate the configuration file, the IRS limit table and any policy
files without running anything. Every problem found is listed with its
location.`,
		Example: `  # Validate wfsim.yaml
  wfsim validate

  # Validate another file
  wfsim validate --config sims/high-growth.yaml

  # Render the stage graph with Graphviz
  wfsim validate --graph | dot -Tsvg > stages.svg`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			out := cmd.OutOrStdout()

			f, path, _, err := loadSettings(cmd)
			if err != nil {
				var verrs config.ValidationErrors
				if errors.As(err, &verrs) && !jsonOutput {
					fmt.Fprintf(out, "✗ %s is invalid\n", path)
					for _, e := range verrs {
						fmt.Fprintf(out, "  - %s\n", e.Error())
					}
				}
				return err
			}

			cfg, err := f.ToEngineConfig()
			if err != nil {
				return err
			}
			limits, err := loadLimits(f)
			if err != nil {
				return err
			}
			eng, err := newPolicyEngine(ctx, f)
			if err != nil {
				return err
			}
			policies := 0
			if eng != nil {
				policies = len(eng.ListPolicies())
			}
			pipeline, err := generators.NewPipeline(engine.StageHooks{})
			if err != nil {
				return err
			}
			if graph {
				fmt.Fprint(out, pipeline.Graph().ToDOT())
				return nil
			}

			if jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"config":     path,
					"valid":      true,
					"digest":     f.Digest(),
					"start_year": cfg.StartYear,
					"end_year":   cfg.EndYear,
					"levels":     len(cfg.Levels),
					"irs_limits": limits.Version(),
					"policies":   policies,
				})
			}

			fmt.Fprintf(out, "✓ Configuration: %s (%d-%d, %d levels)\n", path, cfg.StartYear, cfg.EndYear, len(cfg.Levels))
			fmt.Fprintf(out, "✓ IRS limits: %s\n", limits.Version())
			if eng != nil {
				fmt.Fprintf(out, "✓ Policies: %d compiled\n", policies)
			}
			fmt.Fprintf(out, "\nDigest: %s\n", f.Digest())
			return nil
		},
	}

	cmd.Flags().BoolVar(&graph, "graph", false, "Print the event stage graph in DOT format")

	return cmd
}
