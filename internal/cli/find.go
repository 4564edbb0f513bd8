package cli

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/example/filedupe/internal/ports/primary"
	"github.com/example/filedupe/internal/wire"
)

// FindCmd returns the find command
func FindCmd() *cobra.Command {
	var chunk, steps int
	var restart bool

	cmd := &cobra.Command{
		Use:   "find",
		Short: "Scan managed files for duplicates",
		Long: `Scan managed files in ascending ID order and record duplicate candidates
in the ledger. The scan runs in chunks and saves its progress after every
chunk, so an interrupted scan resumes where it stopped.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			out := cmd.OutOrStdout()
			cfg := wire.Config()
			if chunk == 0 {
				chunk = cfg.ChunkSize
			}

			svc, err := wire.DedupeService()
			if err != nil {
				return err
			}
			state, err := loadState(cfg.StateFile)
			if err != nil {
				return err
			}
			progress := resumable(state.Find, restart)
			state.Find = progress
			if progress.Started {
				fmt.Fprintf(out, "Resuming scan after file %d\n", progress.Cursor)
			}

			runErr := svc.RunFind(cmd.Context(), progress, primary.BatchOptions{
				ChunkSize: chunk,
				MaxSteps:  steps,
				OnStep: func(p *primary.Progress) error {
					printProgress(out, p)
					return saveState(cfg.StateFile, state)
				},
			})
			if runErr != nil {
				return fmt.Errorf("scan stopped: %w", runErr)
			}

			if progress.Finished {
				fmt.Fprintln(out, "✓ Finished looking for duplicates")
			} else {
				fmt.Fprintln(out, "Scan paused; run find again to continue")
			}
			return nil
		},
	}

	cmd.Flags().IntVar(&chunk, "chunk", 0, "files per step (default chunk_size from config)")
	cmd.Flags().IntVar(&steps, "steps", 0, "stop after this many steps (0 = until done)")
	cmd.Flags().BoolVar(&restart, "restart", false, "discard saved progress and scan from the first file")
	return cmd
}
