package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"

	"github.com/workforcesim/workforcesim/pkg/config"
)

func newInitCommand() *cobra.Command {
	var (
		force     bool
		withStore bool
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Write a starter configuration",
		Long: `Write a commented starter configuration to the --config path.

The --with-store flag also creates the configured database and its schema.`,
		Example: `  # Create wfsim.yaml in the current directory
  wfsim init

  # Create the config and the SQLite database
  wfsim init --config sims/base.yaml --with-store`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			log.Info().
				Str("config", configPath).
				Bool("with_store", withStore).
				Msg("Initializing workspace")

			if _, err := os.Stat(configPath); err == nil && !force {
				return fmt.Errorf("%s already exists, use --force to overwrite", configPath)
			}

			if dir := filepath.Dir(configPath); dir != "." {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					return fmt.Errorf("failed to create directory %s: %w", dir, err)
				}
			}
			if err := os.WriteFile(configPath, config.Sample(), 0o644); err != nil {
				return fmt.Errorf("failed to write %s: %w", configPath, err)
			}
			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ Wrote configuration: %s\n", configPath)

			if withStore {
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
				fmt.Fprintf(out, "✓ Initialized %s store\n", f.Storage.Driver)
			}

			fmt.Fprintln(out, "\nNext steps:")
			fmt.Fprintf(out, "  1. Edit %s\n", configPath)
			fmt.Fprintln(out, "  2. Run 'wfsim validate' to check it")
			fmt.Fprintln(out, "  3. Run 'wfsim run' to simulate")
			return nil
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config file")
	cmd.Flags().BoolVar(&withStore, "with-store", false, "also create the store schema")

	return cmd
}
