package cli

import (
	"fmt"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/wire"
)

// ExemptCmd returns the exempt command
func ExemptCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "exempt",
		Short: "Manage files that must never be treated as duplicates",
	}

	var reason string
	addCmd := &cobra.Command{
		Use:   "add [file-id]",
		Short: "Exempt a file from duplicate detection",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			c, err := wire.Get()
			if err != nil {
				return err
			}
			if err := c.Exemptions.Add(cmd.Context(), id, reason); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ File %d exempted\n", id)
			return nil
		},
	}
	addCmd.Flags().StringVarP(&reason, "reason", "r", "", "why the file is exempt")

	removeCmd := &cobra.Command{
		Use:   "remove [file-id]",
		Short: "Remove a file's exemption",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			id, err := parseFileID(args[0])
			if err != nil {
				return err
			}
			c, err := wire.Get()
			if err != nil {
				return err
			}
			if err := c.Exemptions.Remove(cmd.Context(), id); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "✓ File %d no longer exempt\n", id)
			return nil
		},
	}

	cmd.AddCommand(addCmd, removeCmd)
	return cmd
}

func parseFileID(s string) (int64, error) {
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("invalid file id %q", s)
	}
	return id, nil
}
