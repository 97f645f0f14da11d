package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/workforcesim/workforcesim/pkg/irs"
)

func newLimitsCommand() *cobra.Command {
	var path string

	cmd := &cobra.Command{
		Use:   "limits",
		Short: "Print the IRS contribution limit table",
		Long: `Print the elective deferral limits used to cap contributions. Without
--file, the embedded table is shown.`,
		Example: `  # Embedded table
  wfsim limits

  # A replacement table
  wfsim limits --file irs_limits.yaml`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			table, err := irs.Load(path)
			if err != nil {
				return err
			}

			out := cmd.OutOrStdout()
			if jsonOutput {
				return writeJSON(out, map[string]interface{}{
					"version": table.Version(),
					"source":  table.Source(),
					"entries": table.Entries(),
				})
			}

			fmt.Fprintf(out, "IRS limits %s (%s)\n\n", table.Version(), table.Source())
			tw := newTable(out)
			fmt.Fprintln(tw, "PLAN YEAR\tBASE LIMIT\tCATCH-UP LIMIT\tCATCH-UP AGE")
			for _, e := range table.Entries() {
				fmt.Fprintf(tw, "%d\t%s\t%s\t%d\n", e.PlanYear, e.BaseLimit.StringFixed(2), e.CatchUpLimit.StringFixed(2), e.CatchUpAgeThreshold)
			}
			return tw.Flush()
		},
	}

	cmd.Flags().StringVar(&path, "file", "", "limit table YAML file")

	return cmd
}
