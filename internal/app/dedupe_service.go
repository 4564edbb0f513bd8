package app

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/avast/retry-go/v4"

	"github.com/example/filedupe/internal/core/duplicate"
	"github.com/example/filedupe/internal/core/effects"
	"github.com/example/filedupe/internal/logging"
	"github.com/example/filedupe/internal/ports/primary"
	"github.com/example/filedupe/internal/ports/secondary"
)

// DedupeOptions holds the policies a DedupeService runs with.
type DedupeOptions struct {
	// UsagePolicy is duplicate.UsageZero or duplicate.UsageDecrement.
	UsagePolicy string
	// PossiblePolicy is one of the duplicate.Possible* policies.
	PossiblePolicy   string
	DeleteDuplicates bool
	RemoveContent    bool
	// BusyRetries bounds the attempts of a replace transaction that fails
	// with a retryable error.
	BusyRetries int
	// RetryIf reports whether a replace error is retryable. Nil disables retries.
	RetryIf func(error) bool
}

// DedupeServiceImpl implements the DedupeService interface.
type DedupeServiceImpl struct {
	items      secondary.ItemCatalog
	ledger     secondary.DuplicateLedger
	catalog    secondary.ReferenceCatalog
	content    secondary.ContentStore
	tx         secondary.Transactor
	scanner    *Scanner
	classifier *HashClassifier
	rewriter   *ReferenceRewriter
	executor   EffectExecutor
	batch      *BatchOrchestrator
	opts       DedupeOptions
	now        func() time.Time
}

// NewDedupeService creates a new DedupeService with injected dependencies.
func NewDedupeService(
	items secondary.ItemCatalog,
	ledger secondary.DuplicateLedger,
	catalog secondary.ReferenceCatalog,
	content secondary.ContentStore,
	tx secondary.Transactor,
	scanner *Scanner,
	classifier *HashClassifier,
	rewriter *ReferenceRewriter,
	executor EffectExecutor,
	opts DedupeOptions,
) *DedupeServiceImpl {
	s := &DedupeServiceImpl{
		items:      items,
		ledger:     ledger,
		catalog:    catalog,
		content:    content,
		tx:         tx,
		scanner:    scanner,
		classifier: classifier,
		rewriter:   rewriter,
		executor:   executor,
		opts:       opts,
		now:        time.Now,
	}
	s.batch = NewBatchOrchestrator(s, s, ledger, items)
	return s
}

// Find scans up to limit unclassified items after cursor.
func (s *DedupeServiceImpl) Find(ctx context.Context, cursor int64, limit int) (int64, error) {
	if limit < 1 {
		return cursor, fmt.Errorf("limit must be positive, got %d", limit)
	}
	return s.scanner.Scan(ctx, cursor, limit)
}

// Replace consolidates one duplicate onto its original.
func (s *DedupeServiceImpl) Replace(ctx context.Context, duplicateID, originalID int64) (*primary.ReplaceResult, error) {
	logger := logging.ForContext(ctx, "replace").With().
		Int64("fid", duplicateID).
		Int64("original_fid", originalID).
		Logger()

	// 1. Validate the pair
	if result := duplicate.CanRecordPair(duplicate.RecordPairContext{
		DuplicateID: duplicateID,
		OriginalID:  originalID,
	}); !result.Allowed {
		return nil, result.Error()
	}

	// 2. Load both items; a vanished item leaves nothing to consolidate
	dupItem, err := s.loadItem(ctx, duplicateID)
	if err != nil {
		return nil, err
	}
	origItem, err := s.loadItem(ctx, originalID)
	if err != nil {
		return nil, err
	}
	if dupItem == nil || origItem == nil {
		missing := duplicateID
		if origItem == nil {
			missing = originalID
		}
		reason := fmt.Sprintf("file %d no longer exists", missing)
		logger.Warn().Msg(reason)
		return s.skip(ctx, duplicateID, originalID, reason)
	}

	// 3. Consolidation guard
	row, err := s.ledger.Lookup(ctx, duplicateID, originalID)
	if err != nil {
		return nil, err
	}
	guardCtx := duplicate.ConsolidateContext{
		DuplicateID:    duplicateID,
		OriginalID:     originalID,
		Exact:          row != nil && row.Exact,
		PossiblePolicy: s.opts.PossiblePolicy,
	}
	if duplicate.NeedsVerification(guardCtx) {
		verdict, err := s.classifier.Classify(ctx, origItem, dupItem)
		if err != nil {
			return nil, fmt.Errorf("failed to verify pair: %w", err)
		}
		guardCtx.Reverified = &verdict
	}
	if result := duplicate.CanConsolidate(guardCtx); !result.Allowed {
		logger.Info().Str("reason", result.Reason).Msg("Pair not consolidated")
		return s.skip(ctx, duplicateID, originalID, result.Reason)
	}

	// 4. Rewrite, gate and resolve in one transaction
	var (
		report   *RewriteReport
		outcome  primary.ReplaceOutcome
		reason   string
		removals []string
	)
	err = s.withRetry(ctx, func(ctx context.Context) error {
		var err error
		report, err = s.rewriter.Rewrite(ctx, duplicateID, originalID)
		if err != nil {
			return err
		}

		outcome, reason, removals = primary.OutcomeKept, "", nil
		gate := duplicate.CanDeleteDuplicate(duplicate.DeleteDuplicateContext{
			DuplicateID:      duplicateID,
			UnresolvedOwners: report.UnresolvedOwnerList(),
			DeleteEnabled:    s.opts.DeleteDuplicates,
		})
		if gate.Allowed {
			deletion := duplicate.PlanDuplicateDeletion(duplicateID, dupItem.Locator, s.opts.RemoveContent)
			result, err := s.executor.Execute(ctx, []effects.Effect{deletion})
			if err != nil {
				return err
			}
			outcome = primary.OutcomeDeleted
			removals = result.PendingRemovals
		} else {
			reason = gate.Reason
		}

		return s.ledger.MarkResolved(ctx, duplicateID, originalID, s.now())
	})
	if err != nil {
		return nil, fmt.Errorf("failed to replace %d with %d: %w", duplicateID, originalID, err)
	}

	// 5. Content goes only after the catalog row is gone for good
	for _, locator := range removals {
		if err := s.content.Remove(ctx, locator); err != nil {
			logger.Warn().Err(err).Str("locator", locator).Msg("Failed to remove content")
		}
	}

	result := &primary.ReplaceResult{
		DuplicateID:      duplicateID,
		OriginalID:       originalID,
		Outcome:          outcome,
		UnresolvedOwners: report.UnresolvedOwnerList(),
		Reason:           reason,
	}
	for _, ref := range report.Order {
		result.Records = append(result.Records, primary.RewrittenRecord{
			OwnerModule: ref.OwnerModule,
			RecordType:  ref.RecordType,
			RecordID:    ref.RecordID,
			Occurrences: report.PerRecord[ref],
		})
	}

	logger.Info().
		Str("outcome", string(outcome)).
		Int("records", len(result.Records)).
		Int("occurrences", result.Occurrences()).
		Msg("Pair replaced")
	return result, nil
}

func (s *DedupeServiceImpl) loadItem(ctx context.Context, id int64) (*secondary.ManagedItem, error) {
	item, err := s.items.Load(ctx, id)
	if errors.Is(err, secondary.ErrItemNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}
	return item, nil
}

// skip resolves the pair without touching references.
func (s *DedupeServiceImpl) skip(ctx context.Context, duplicateID, originalID int64, reason string) (*primary.ReplaceResult, error) {
	if err := s.ledger.MarkResolved(ctx, duplicateID, originalID, s.now()); err != nil {
		return nil, err
	}
	return &primary.ReplaceResult{
		DuplicateID: duplicateID,
		OriginalID:  originalID,
		Outcome:     primary.OutcomeSkipped,
		Reason:      reason,
	}, nil
}

// withRetry runs fn in a transaction, retrying while opts.RetryIf accepts
// the error.
func (s *DedupeServiceImpl) withRetry(ctx context.Context, fn func(ctx context.Context) error) error {
	run := func() error {
		return s.tx.WithinTx(ctx, fn)
	}
	if s.opts.RetryIf == nil || s.opts.BusyRetries < 1 {
		return run()
	}

	logger := logging.ForContext(ctx, "replace")
	return retry.Do(
		run,
		retry.Context(ctx),
		retry.Attempts(uint(s.opts.BusyRetries)),
		retry.Delay(50*time.Millisecond),
		retry.DelayType(retry.BackOffDelay),
		retry.RetryIf(s.opts.RetryIf),
		retry.LastErrorOnly(true),
		retry.OnRetry(func(n uint, err error) {
			logger.Debug().Uint("attempt", n+1).Err(err).Msg("Database busy, retrying")
		}),
	)
}

// ResetFindings deletes every ledger row.
func (s *DedupeServiceImpl) ResetFindings(ctx context.Context) error {
	if err := s.ledger.Reset(ctx); err != nil {
		return err
	}
	logger := logging.ForContext(ctx, "ledger")
	logger.Info().Msg("Findings reset")
	return nil
}

// FindBatch advances a find operation by one chunk.
func (s *DedupeServiceImpl) FindBatch(ctx context.Context, progress *primary.Progress, chunkSize int) error {
	return s.batch.FindStep(ctx, progress, chunkSize)
}

// ReplaceBatch advances a replace operation by one ledger row.
func (s *DedupeServiceImpl) ReplaceBatch(ctx context.Context, progress *primary.Progress) error {
	return s.batch.ReplaceStep(ctx, progress)
}

// RunFind drives FindBatch until done.
func (s *DedupeServiceImpl) RunFind(ctx context.Context, progress *primary.Progress, opts primary.BatchOptions) error {
	return s.batch.RunFind(ctx, progress, opts)
}

// RunReplace drives ReplaceBatch until done.
func (s *DedupeServiceImpl) RunReplace(ctx context.Context, progress *primary.Progress, opts primary.BatchOptions) error {
	return s.batch.RunReplace(ctx, progress, opts)
}

// Status summarises the ledger and the registry.
func (s *DedupeServiceImpl) Status(ctx context.Context) (*primary.LedgerStatus, error) {
	counts, err := s.ledger.Counts(ctx)
	if err != nil {
		return nil, err
	}
	items, err := s.items.Count(ctx)
	if err != nil {
		return nil, err
	}
	recordTypes, err := s.catalog.RecordTypes(ctx)
	if err != nil {
		return nil, err
	}
	fields, err := s.catalog.AllReferenceFields(ctx)
	if err != nil {
		return nil, err
	}

	return &primary.LedgerStatus{
		Total:           counts.Total,
		Exact:           counts.Exact,
		Possible:        counts.Possible,
		Resolved:        counts.Resolved,
		Unresolved:      counts.Unresolved,
		Items:           items,
		RecordTypes:     recordTypes,
		ReferenceFields: len(fields),
	}, nil
}

// ListFindings lists ledger rows.
func (s *DedupeServiceImpl) ListFindings(ctx context.Context, req primary.ListFindingsRequest) ([]*primary.Finding, error) {
	records, err := s.ledger.List(ctx, secondary.LedgerFilters{
		UnresolvedOnly: req.UnresolvedOnly,
		ExactOnly:      req.ExactOnly,
		Limit:          req.Limit,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to list findings: %w", err)
	}

	findings := make([]*primary.Finding, len(records))
	for i, r := range records {
		findings[i] = &primary.Finding{
			DuplicateID: r.DuplicateID,
			OriginalID:  r.OriginalID,
			Exact:       r.Exact,
			ReplacedAt:  r.ReplacedAt,
		}
	}
	return findings, nil
}

// Ensure DedupeServiceImpl implements the interface.
var _ primary.DedupeService = (*DedupeServiceImpl)(nil)
