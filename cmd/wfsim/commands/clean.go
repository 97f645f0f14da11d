package commands

import (
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

func newCleanCommand() *cobra.Command {
	var (
		years   string
		all     bool
		compact bool
	)

	cmd := &cobra.Command{
		Use:   "clean",
		Short: "Delete stored simulation years",
		Long: `Delete stored events, snapshots and contributions.

With --years, years outside the range are removed. The year before the range
is kept because a rerun of the range starts from it. With --all, every year
is removed. Run history is always kept.`,
		Example: `  # Keep only 2025-2027 (and the 2024 baseline)
  wfsim clean --years 2025-2027

  # Remove everything and reclaim space
  wfsim clean --all --compact`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if all == (years != "") {
				return fmt.Errorf("exactly one of --years or --all is required")
			}

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

			if all {
				if err := s.DeleteAll(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Removed all simulation years")
			} else {
				start, end, err := parseYears(years)
				if err != nil {
					return err
				}
				removed, err := s.DeleteOutsideRange(ctx, start-1, end)
				if err != nil {
					return err
				}
				log.Info().Int("start_year", start).Int("end_year", end).Int("removed", removed).Msg("Orphaned years removed")
				fmt.Fprintf(cmd.OutOrStdout(), "✓ Removed %d year(s) outside %d-%d\n", removed, start-1, end)
			}

			if compact {
				if err := s.Compact(ctx); err != nil {
					return err
				}
				fmt.Fprintln(cmd.OutOrStdout(), "✓ Compacted store")
			}
			return nil
		},
	}

	cmd.Flags().StringVar(&years, "years", "", "year range to keep, e.g. 2025-2029")
	cmd.Flags().BoolVar(&all, "all", false, "remove every stored year")
	cmd.Flags().BoolVar(&compact, "compact", false, "reclaim storage afterwards")

	return cmd
}
