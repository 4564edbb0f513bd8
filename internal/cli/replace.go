package cli

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/ports/primary"
	"github.com/example/filedupe/internal/wire"
)

// ReplaceCmd returns the replace command
func ReplaceCmd() *cobra.Command {
	var steps int
	var restart bool

	cmd := &cobra.Command{
		Use:   "replace [duplicate-id original-id]",
		Short: "Consolidate duplicates onto their originals",
		Long: `Rewrite every reference to a duplicate so it points at the original, then
delete the duplicate.

With two IDs, consolidates that single pair. Without arguments, works through
the unresolved ledger rows one at a time, saving progress after each.`,
		Args: func(cmd *cobra.Command, args []string) error {
			if len(args) != 0 && len(args) != 2 {
				return fmt.Errorf("accepts 0 or 2 arg(s), received %d", len(args))
			}
			return nil
		},
		RunE: func(cmd *cobra.Command, args []string) error {
			svc, err := wire.DedupeService()
			if err != nil {
				return err
			}
			if len(args) == 2 {
				return replacePair(cmd, svc, args[0], args[1])
			}
			return replaceBatch(cmd, svc, steps, restart)
		},
	}

	cmd.Flags().IntVar(&steps, "steps", 0, "stop after this many ledger rows (0 = until done)")
	cmd.Flags().BoolVar(&restart, "restart", false, "discard saved progress counters")
	return cmd
}

func replacePair(cmd *cobra.Command, svc primary.DedupeService, dupArg, origArg string) error {
	dup, err := strconv.ParseInt(dupArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid duplicate id %q", dupArg)
	}
	orig, err := strconv.ParseInt(origArg, 10, 64)
	if err != nil {
		return fmt.Errorf("invalid original id %q", origArg)
	}

	result, err := svc.Replace(cmd.Context(), dup, orig)
	if err != nil {
		return fmt.Errorf("failed to replace file %d: %w", dup, err)
	}
	printReplaceResult(cmd.OutOrStdout(), result)
	return nil
}

func replaceBatch(cmd *cobra.Command, svc primary.DedupeService, steps int, restart bool) error {
	out := cmd.OutOrStdout()
	cfg := wire.Config()

	state, err := loadState(cfg.StateFile)
	if err != nil {
		return err
	}
	progress := resumable(state.Replace, restart)
	state.Replace = progress

	runErr := svc.RunReplace(cmd.Context(), progress, primary.BatchOptions{
		MaxSteps: steps,
		OnStep: func(p *primary.Progress) error {
			printProgress(out, p)
			return saveState(cfg.StateFile, state)
		},
	})
	if runErr != nil {
		return fmt.Errorf("replace stopped at file %d: %w", progress.CurrentDuplicateID, runErr)
	}

	fmt.Fprintf(out, "Deleted %d, skipped %d, failed %d\n", progress.Deleted, progress.Skipped, progress.Failures)
	switch {
	case progress.Finished && progress.Failures > 0:
		fmt.Fprintf(out, "%s %s (ledger rows %s); run replace again to retry them\n",
			color.New(color.FgYellow).Sprint("!"), progress.Message, joinIDs(progress.FailedRows))
	case progress.Finished:
		fmt.Fprintf(out, "✓ %s\n", progress.Message)
	default:
		fmt.Fprintln(out, "Replace paused; run replace again to continue")
	}
	return nil
}

func joinIDs(ids []int64) string {
	parts := make([]string, len(ids))
	for i, id := range ids {
		parts[i] = strconv.FormatInt(id, 10)
	}
	return strings.Join(parts, ", ")
}
