package cli

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/ports/primary"
	"github.com/example/filedupe/internal/wire"
)

// StatusCmd returns the status command
func StatusCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "status",
		Short: "Show ledger totals and batch progress",
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			svc, err := wire.DedupeService()
			if err != nil {
				return err
			}
			status, err := svc.Status(cmd.Context())
			if err != nil {
				return err
			}

			fmt.Fprintln(out, "filedupe status")
			fmt.Fprintln(out)
			fmt.Fprintf(out, "Managed files:   %d\n", status.Items)
			fmt.Fprintf(out, "Ledger rows:     %d (%d exact, %d possible)\n", status.Total, status.Exact, status.Possible)
			fmt.Fprintf(out, "Resolved:        %d\n", status.Resolved)
			fmt.Fprintf(out, "Unresolved:      %d\n", status.Unresolved)
			if len(status.RecordTypes) > 0 {
				fmt.Fprintf(out, "Record types:    %s (%d reference fields)\n", strings.Join(status.RecordTypes, ", "), status.ReferenceFields)
			} else {
				fmt.Fprintln(out, "Record types:    (none registered)")
			}

			state, err := loadState(wire.Config().StateFile)
			if err != nil {
				return err
			}
			fmt.Fprintln(out)
			printSavedProgress(out, "Find", state.Find)
			printSavedProgress(out, "Replace", state.Replace)
			return nil
		},
	}
}

func printSavedProgress(w io.Writer, label string, p *primary.Progress) {
	if p == nil || !p.Started {
		fmt.Fprintf(w, "%s: not started\n", label)
		return
	}
	state := "in progress"
	if p.Finished {
		state = "finished"
	}
	fmt.Fprintf(w, "%s: %s, %d/%d (run %s)\n", label, state, p.Processed, p.Total, p.RunID)
	if p.Message != "" {
		fmt.Fprintf(w, "  %s\n", p.Message)
	}
}
