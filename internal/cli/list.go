package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/ports/primary"
	"github.com/example/filedupe/internal/wire"
)

// ListCmd returns the list command
func ListCmd() *cobra.Command {
	var unresolved, exact bool
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List duplicate ledger rows",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			svc, err := wire.DedupeService()
			if err != nil {
				return err
			}
			findings, err := svc.ListFindings(cmd.Context(), primary.ListFindingsRequest{
				UnresolvedOnly: unresolved,
				ExactOnly:      exact,
				Limit:          limit,
			})
			if err != nil {
				return err
			}
			if len(findings) == 0 {
				fmt.Fprintln(out, "No duplicates found.")
				return nil
			}

			fmt.Fprintf(out, "%-10s %-10s %-10s %s\n", "DUPLICATE", "ORIGINAL", "KIND", "REPLACED")
			for _, f := range findings {
				replaced := "-"
				if f.ReplacedAt != nil {
					replaced = f.ReplacedAt.Format("2006-01-02 15:04")
				}
				fmt.Fprintf(out, "%-10d %-10d %-10s %s\n", f.DuplicateID, f.OriginalID, kindLabel(f.Exact), replaced)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&unresolved, "unresolved", false, "only rows not yet replaced")
	cmd.Flags().BoolVar(&exact, "exact", false, "only exact duplicates")
	cmd.Flags().IntVarP(&limit, "limit", "n", 0, "maximum rows (0 = all)")
	return cmd
}
