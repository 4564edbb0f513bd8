package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/wire"
)

// ImportCmd returns the import command
func ImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "import [dir]",
		Short: "Register files under the files root as managed files",
		Long: `Walk a directory under the files root and register every file that is not
yet managed. Defaults to the whole files root.`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			c, err := wire.Get()
			if err != nil {
				return err
			}
			dir := c.Content.Root()
			if len(args) == 1 {
				dir = args[0]
			}

			result, err := c.Importer.Import(cmd.Context(), dir)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ Registered %d files (%d already managed)\n", result.Added, result.Existing)
			return nil
		},
	}
}
