package app

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"

	"github.com/example/filedupe/internal/ctxutil"
	"github.com/example/filedupe/internal/logging"
	"github.com/example/filedupe/internal/ports/primary"
	"github.com/example/filedupe/internal/ports/secondary"
)

type finder interface {
	Find(ctx context.Context, cursor int64, limit int) (int64, error)
}

type replacer interface {
	Replace(ctx context.Context, duplicateID, originalID int64) (*primary.ReplaceResult, error)
}

// BatchOrchestrator drives find and replace in bounded steps. All state
// lives in the Progress handed to each step.
type BatchOrchestrator struct {
	finder   finder
	replacer replacer
	ledger   secondary.DuplicateLedger
	items    secondary.ItemCatalog
	now      func() time.Time
}

// NewBatchOrchestrator creates a new BatchOrchestrator.
func NewBatchOrchestrator(f finder, r replacer, ledger secondary.DuplicateLedger, items secondary.ItemCatalog) *BatchOrchestrator {
	return &BatchOrchestrator{
		finder:   f,
		replacer: r,
		ledger:   ledger,
		items:    items,
		now:      time.Now,
	}
}

func (o *BatchOrchestrator) start(ctx context.Context, p *primary.Progress, op primary.Operation) error {
	if p.Started {
		if p.Operation != op {
			return fmt.Errorf("progress belongs to a %s operation, not %s", p.Operation, op)
		}
		return nil
	}

	*p = primary.Progress{
		RunID:     uuid.NewString(),
		Operation: op,
		Started:   true,
	}

	switch op {
	case primary.OperationFind:
		total, err := o.items.Count(ctx)
		if err != nil {
			return err
		}
		p.Total = total
	case primary.OperationReplace:
		counts, err := o.ledger.Counts(ctx)
		if err != nil {
			return err
		}
		p.Total = counts.Unresolved
	}
	return nil
}

// FindStep scans one chunk. The operation finishes when the cursor stops
// advancing.
func (o *BatchOrchestrator) FindStep(ctx context.Context, p *primary.Progress, chunkSize int) error {
	if chunkSize < 1 {
		return fmt.Errorf("chunk size must be positive, got %d", chunkSize)
	}
	if err := o.start(ctx, p, primary.OperationFind); err != nil {
		return err
	}
	if p.Finished {
		return nil
	}

	ctx = ctxutil.WithRunID(ctx, p.RunID)
	logger := logging.ForContext(ctx, "batch")

	next, err := o.finder.Find(ctx, p.Cursor, chunkSize)
	p.Updated = o.now()
	if err != nil {
		p.Failures++
		p.Message = fmt.Sprintf("Scan failed after file %d", p.Cursor)
		return err
	}

	if next == p.Cursor {
		p.Finished = true
		p.Processed = p.Total
		p.Message = "Finished looking for duplicates"
		logger.Info().Int("total", p.Total).Msg("Find finished")
		return nil
	}

	p.Cursor = next
	p.Processed = min(p.Processed+chunkSize, p.Total)
	p.Message = fmt.Sprintf("Checked files up to %d", next)
	logger.Debug().Int64("cursor", next).Int("processed", p.Processed).Msg("Find step")
	return nil
}

// ReplaceStep consolidates the next unresolved ledger row after the cursor.
// A failed replace leaves its row unresolved, records it in FailedRows and
// moves on; only cancellation and ledger errors are returned.
func (o *BatchOrchestrator) ReplaceStep(ctx context.Context, p *primary.Progress) error {
	if err := o.start(ctx, p, primary.OperationReplace); err != nil {
		return err
	}
	if p.Finished {
		return nil
	}

	ctx = ctxutil.WithRunID(ctx, p.RunID)
	logger := logging.ForContext(ctx, "batch")

	row, err := o.ledger.NextUnresolvedAfter(ctx, p.Cursor)
	p.Updated = o.now()
	if err != nil {
		return err
	}
	if row == nil {
		p.Finished = true
		p.CurrentDuplicateID, p.CurrentOriginalID = 0, 0
		if p.Failures > 0 {
			p.Message = "Some files could not be fully processed"
		} else {
			p.Message = "Finished replacing duplicates"
		}
		logger.Info().Int("processed", p.Processed).Int("deleted", p.Deleted).Msg("Replace finished")
		return nil
	}

	p.CurrentDuplicateID = row.DuplicateID
	p.CurrentOriginalID = row.OriginalID

	result, err := o.replacer.Replace(ctx, row.DuplicateID, row.OriginalID)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}
		p.Cursor = row.ID
		p.Processed++
		p.Failures++
		p.FailedRows = append(p.FailedRows, row.ID)
		p.Message = fmt.Sprintf("Could not replace file %d with %d", row.DuplicateID, row.OriginalID)
		logger.Error().Err(err).Int64("fid", row.DuplicateID).Int64("original_fid", row.OriginalID).Msg("Replace failed")
		return nil
	}

	p.Cursor = row.ID
	p.Processed++
	switch result.Outcome {
	case primary.OutcomeDeleted:
		p.Deleted++
	case primary.OutcomeSkipped:
		p.Skipped++
	}
	p.Message = fmt.Sprintf("Replaced file %d with %d", row.DuplicateID, row.OriginalID)
	return nil
}

// RunFind repeats FindStep until finished, out of steps or cancelled.
func (o *BatchOrchestrator) RunFind(ctx context.Context, p *primary.Progress, opts primary.BatchOptions) error {
	return o.run(ctx, p, opts, func(ctx context.Context) error {
		return o.FindStep(ctx, p, opts.ChunkSize)
	})
}

// RunReplace repeats ReplaceStep until finished, out of steps or cancelled.
// Failed rows do not stop the run.
func (o *BatchOrchestrator) RunReplace(ctx context.Context, p *primary.Progress, opts primary.BatchOptions) error {
	return o.run(ctx, p, opts, func(ctx context.Context) error {
		return o.ReplaceStep(ctx, p)
	})
}

func (o *BatchOrchestrator) run(ctx context.Context, p *primary.Progress, opts primary.BatchOptions, step func(context.Context) error) error {
	for steps := 0; opts.MaxSteps == 0 || steps < opts.MaxSteps; steps++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		stepErr := step(ctx)
		if opts.OnStep != nil {
			if err := opts.OnStep(p); err != nil {
				return err
			}
		}
		if stepErr != nil {
			return stepErr
		}
		if p.Finished {
			return nil
		}
	}
	return nil
}
