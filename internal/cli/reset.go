package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/wire"
)

// ResetCmd returns the reset command
func ResetCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "reset",
		Short: "Clear the duplicate ledger and saved progress",
		Long:  "Delete every ledger row and the batch state file so the next find starts from scratch.",
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := wire.DedupeService()
			if err != nil {
				return err
			}
			if err := svc.ResetFindings(cmd.Context()); err != nil {
				return fmt.Errorf("failed to reset findings: %w", err)
			}
			if err := clearState(wire.Config().StateFile); err != nil {
				return err
			}
			fmt.Fprintln(cmd.OutOrStdout(), "✓ Ledger and progress cleared")
			return nil
		},
	}
}
