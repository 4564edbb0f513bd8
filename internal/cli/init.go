package cli

import (
	"errors"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/config"
	"github.com/example/filedupe/internal/wire"
)

// InitCmd returns the init command
func InitCmd() *cobra.Command {
	var writeConfig string

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the filedupe database",
		Long: `Create the filedupe database with the required schema and, when the
configured schema file exists, register its record types.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := wire.Config()

			if writeConfig != "" {
				if _, err := os.Stat(writeConfig); err == nil {
					fmt.Fprintf(out, "Config %s already exists, leaving it untouched\n", writeConfig)
				} else {
					if err := config.Save(writeConfig, cfg); err != nil {
						return err
					}
					fmt.Fprintf(out, "✓ Config written to %s\n", writeConfig)
				}
			}

			fmt.Fprintf(out, "Initializing filedupe database at %s\n", cfg.Database)
			if _, err := wire.Get(); err != nil {
				return err
			}
			fmt.Fprintln(out, "✓ Database initialized successfully")

			if _, err := os.Stat(cfg.SchemaFile); err == nil {
				if err := syncSchema(cmd, cfg.SchemaFile); err != nil {
					return err
				}
			} else if !errors.Is(err, os.ErrNotExist) {
				return fmt.Errorf("failed to check schema file: %w", err)
			}

			fmt.Fprintln(out)
			fmt.Fprintln(out, "Next steps:")
			fmt.Fprintln(out, "  filedupe schema sync <schema.yaml>")
			fmt.Fprintln(out, "  filedupe import")
			fmt.Fprintln(out, "  filedupe find")
			return nil
		},
	}

	cmd.Flags().StringVar(&writeConfig, "write-config", "", "also write the effective config to this path")
	return cmd
}
