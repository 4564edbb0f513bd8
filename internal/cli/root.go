// Package cli implements the filedupe cobra commands.
package cli

import (
	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/config"
	"github.com/example/filedupe/internal/logging"
	"github.com/example/filedupe/internal/version"
	"github.com/example/filedupe/internal/wire"
)

// NewRootCmd returns the filedupe root command with every subcommand attached.
func NewRootCmd() *cobra.Command {
	var cfgFile string
	var verbosity int

	rootCmd := &cobra.Command{
		Use:     "filedupe",
		Short:   "filedupe - find duplicate files and consolidate references onto originals",
		Version: version.String(),
		Long: `filedupe finds managed files whose content is identical, records them in a
duplicate ledger, and rewrites every record that references a duplicate so it
points at the original instead. Duplicates are then removed from the catalog.

Both operations run in resumable batches; progress is kept in a state file.`,
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(cfgFile)
			if err != nil {
				return err
			}
			logging.Setup(verbosity, cfg.LogFile)
			wire.Configure(cfg)
			return nil
		},
	}

	rootCmd.PersistentFlags().StringVar(&cfgFile, "config", "", "config file (default ./filedupe.yaml or ~/.filedupe/filedupe.yaml)")
	rootCmd.PersistentFlags().CountVarP(&verbosity, "verbose", "v", "increase log verbosity (-v info, -vv debug, -vvv trace)")

	rootCmd.AddCommand(InitCmd())
	rootCmd.AddCommand(SchemaCmd())
	rootCmd.AddCommand(ImportCmd())
	rootCmd.AddCommand(FindCmd())
	rootCmd.AddCommand(ReplaceCmd())
	rootCmd.AddCommand(ResetCmd())
	rootCmd.AddCommand(StatusCmd())
	rootCmd.AddCommand(ListCmd())
	rootCmd.AddCommand(ExemptCmd())

	return rootCmd
}
