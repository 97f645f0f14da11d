package commands

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/workforcesim/workforcesim/pkg/engine"
)

func newStatusCommand() *cobra.Command {
	var (
		limit int
		runID string
	)

	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show recent runs and stored years",
		Long: `List recent simulation runs with their outcome, and the years that have a
stored snapshot. With --run, show the transition checks of one run.`,
		Example: `  # Recent runs
  wfsim status

  # Year-by-year checks of a run
  wfsim status --run 6f1c...`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			f, _, _, err := loadSettings(cmd)
			if err != nil {
				return err
			}
			s, err := openStore(ctx, f)
			if err != nil {
				return err
			}
			defer s.Close()

			if err := s.HealthCheck(ctx); err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if runID != "" {
				run, err := s.GetRun(ctx, runID)
				if err != nil {
					return err
				}
				transitions, err := s.ListTransitions(ctx, runID)
				if err != nil {
					return err
				}
				if jsonOutput {
					return writeJSON(out, map[string]interface{}{"run": run, "transitions": transitions})
				}
				return printRun(out, run, transitions)
			}

			runs, err := s.ListRuns(ctx, limit)
			if err != nil {
				return err
			}
			years, err := s.Years(ctx)
			if err != nil {
				return err
			}
			if jsonOutput {
				return writeJSON(out, map[string]interface{}{"runs": runs, "years": years})
			}
			return printRuns(out, runs, years)
		},
	}

	cmd.Flags().IntVar(&limit, "limit", 10, "number of runs to list")
	cmd.Flags().StringVar(&runID, "run", "", "show one run in detail")

	return cmd
}

func printRuns(w io.Writer, runs []*engine.Run, years []int) error {
	tw := newTable(w)
	fmt.Fprintln(tw, "RUN\tSTATUS\tYEARS\tSEED\tSTARTED\tDURATION\tFAILED YEARS")
	for _, r := range runs {
		fmt.Fprintf(tw, "%s\t%s\t%d-%d\t%d\t%s\t%s\t%s\n",
			r.ID, r.Status, r.StartYear, r.EndYear, r.RandomSeed,
			r.StartedAt.Format(time.DateTime), r.Duration.Round(time.Millisecond), joinYears(r.FailedYears))
	}
	if err := tw.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(w, "\nStored years: %s\n", joinYears(years))
	return nil
}

func printRun(w io.Writer, run *engine.Run, transitions []*engine.TransitionResult) error {
	fmt.Fprintf(w, "Run %s: %s (%d-%d, seed %d, config %s)\n", run.ID, run.Status, run.StartYear, run.EndYear, run.RandomSeed, run.ConfigDigest)
	if run.Error != "" {
		fmt.Fprintf(w, "Error: %s\n", run.Error)
	}
	fmt.Fprintln(w)
	if err := printTransitions(w, transitions); err != nil {
		return err
	}

	for _, t := range transitions {
		fmt.Fprintf(w, "\n%d checks\n", t.Year)
		tw := newTable(w)
		for _, c := range t.Checks {
			mark := "✓"
			if !c.Passed {
				mark = "✗"
			}
			fmt.Fprintf(tw, "  %s\t%s\t%s\texpected %s\tactual %s\n", mark, c.Name, c.Severity, c.Expected, c.Actual)
		}
		if err := tw.Flush(); err != nil {
			return err
		}
	}
	return nil
}

func joinYears(years []int) string {
	if len(years) == 0 {
		return "-"
	}
	parts := make([]string, len(years))
	for i, y := range years {
		parts[i] = fmt.Sprint(y)
	}
	return strings.Join(parts, ",")
}
