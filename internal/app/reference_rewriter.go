package app

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/example/filedupe/internal/core/duplicate"
	"github.com/example/filedupe/internal/core/effects"
	"github.com/example/filedupe/internal/logging"
	"github.com/example/filedupe/internal/ports/secondary"
)

// RewriteReport is the outcome of rewriting every reference to one duplicate.
type RewriteReport struct {
	// PerRecord maps each rewritten record to its occurrence count.
	PerRecord map[secondary.ReferencingRecord]int
	// Order lists PerRecord's keys in the order they were processed.
	Order []secondary.ReferencingRecord
	// UnresolvedOwners holds owner modules whose records could not be loaded.
	UnresolvedOwners map[string]struct{}
	// Execution aggregates what the executed effects touched.
	Execution ExecutionResult
}

func newRewriteReport() *RewriteReport {
	return &RewriteReport{
		PerRecord:        make(map[secondary.ReferencingRecord]int),
		UnresolvedOwners: make(map[string]struct{}),
	}
}

// Occurrences returns the total number of rewritten occurrences.
func (r *RewriteReport) Occurrences() int {
	total := 0
	for _, n := range r.PerRecord {
		total += n
	}
	return total
}

// UnresolvedOwnerList returns the unresolved owners sorted by name.
func (r *RewriteReport) UnresolvedOwnerList() []string {
	out := make([]string, 0, len(r.UnresolvedOwners))
	for owner := range r.UnresolvedOwners {
		out = append(out, owner)
	}
	sort.Strings(out)
	return out
}

// ReferenceRewriter points every record citing a duplicate at its original.
type ReferenceRewriter struct {
	usage       secondary.UsageIndex
	catalog     secondary.ReferenceCatalog
	records     secondary.RecordStore
	executor    EffectExecutor
	usagePolicy string
}

// NewReferenceRewriter creates a new ReferenceRewriter. usagePolicy is
// duplicate.UsageZero or duplicate.UsageDecrement.
func NewReferenceRewriter(
	usage secondary.UsageIndex,
	catalog secondary.ReferenceCatalog,
	records secondary.RecordStore,
	executor EffectExecutor,
	usagePolicy string,
) *ReferenceRewriter {
	return &ReferenceRewriter{
		usage:       usage,
		catalog:     catalog,
		records:     records,
		executor:    executor,
		usagePolicy: usagePolicy,
	}
}

// Rewrite rewrites every reference to duplicateID. Callers run it inside a
// transaction; a returned error means nothing should be committed.
func (w *ReferenceRewriter) Rewrite(ctx context.Context, duplicateID, originalID int64) (*RewriteReport, error) {
	logger := logging.ForContext(ctx, "rewriter")
	report := newRewriteReport()

	refs, err := w.usage.ListUsage(ctx, duplicateID)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage of %d: %w", duplicateID, err)
	}

	for _, ref := range refs {
		src := duplicate.ReferenceSource{
			OwnerModule: ref.OwnerModule,
			RecordType:  ref.RecordType,
			RecordID:    ref.RecordID,
			DuplicateID: duplicateID,
		}

		handled, err := w.catalog.HasStorage(ctx, ref.RecordType)
		if err != nil {
			return nil, fmt.Errorf("failed to check storage of %s: %w", ref.RecordType, err)
		}
		if !handled {
			report.UnresolvedOwners[ref.OwnerModule] = struct{}{}
			if err := w.apply(ctx, report, []effects.Effect{duplicate.PlanUnresolvedOwner(src)}); err != nil {
				return nil, err
			}
			continue
		}

		record, err := w.records.Load(ctx, ref.RecordType, ref.RecordID)
		switch {
		case errors.Is(err, secondary.ErrRecordNotFound):
			// The usage row outlived its record; nothing to rewrite.
			if err := w.apply(ctx, report, []effects.Effect{duplicate.PlanStaleUsageCleanup(src)}); err != nil {
				return nil, err
			}
			continue
		case err != nil:
			return nil, fmt.Errorf("failed to load %s %s: %w", ref.RecordType, ref.RecordID, err)
		}

		occurrences, err := w.rewriteRecord(ctx, report, record, duplicateID, originalID)
		if err != nil {
			return nil, fmt.Errorf("failed to rewrite %s %s: %w", ref.RecordType, ref.RecordID, err)
		}

		usageOps := duplicate.PlanUsageAdjustment(duplicate.UsageAdjustmentInput{
			Policy:      w.usagePolicy,
			OwnerModule: ref.OwnerModule,
			RecordType:  ref.RecordType,
			RecordID:    ref.RecordID,
			DuplicateID: duplicateID,
			OriginalID:  originalID,
			Occurrences: occurrences,
		})
		effs := make([]effects.Effect, len(usageOps))
		for i, op := range usageOps {
			effs[i] = op
		}
		if err := w.apply(ctx, report, effs); err != nil {
			return nil, fmt.Errorf("failed to adjust usage for %s %s: %w", ref.RecordType, ref.RecordID, err)
		}

		if _, seen := report.PerRecord[ref]; !seen {
			report.Order = append(report.Order, ref)
		}
		report.PerRecord[ref] += occurrences

		logger.Debug().
			Str("record_type", ref.RecordType).
			Str("record_id", ref.RecordID).
			Int("occurrences", occurrences).
			Msg("Record rewritten")
	}

	return report, nil
}

func (w *ReferenceRewriter) rewriteRecord(ctx context.Context, report *RewriteReport, record *secondary.LiveRecord, duplicateID, originalID int64) (int, error) {
	fields, err := w.catalog.FieldsFor(ctx, record.RecordType)
	if err != nil {
		return 0, err
	}

	storage := make([]duplicate.FieldStorage, 0, len(fields))
	for _, f := range fields {
		fs := duplicate.FieldStorage{
			FieldName: f.FieldName,
			Column:    f.Column,
			IDColumn:  f.IDColumn,
		}
		if f.HasHistory() {
			fs.HistoryTable = *f.HistoryTable
			fs.VersionColumn = *f.HistoryVersionColumn
		}
		storage = append(storage, fs)
	}

	plan := duplicate.GenerateRecordRewritePlan(duplicate.RecordRewriteInput{
		RecordType:  record.RecordType,
		RecordID:    record.RecordID,
		RevisionID:  record.RevisionID,
		Fields:      record.Fields,
		Storage:     storage,
		DuplicateID: duplicateID,
		OriginalID:  originalID,
	})

	before := report.Execution.HistoryRows
	if err := w.apply(ctx, report, plan.Effects()); err != nil {
		return 0, err
	}
	return plan.LiveOccurrences + int(report.Execution.HistoryRows-before), nil
}

func (w *ReferenceRewriter) apply(ctx context.Context, report *RewriteReport, effs []effects.Effect) error {
	if len(effs) == 0 {
		return nil
	}
	result, err := w.executor.Execute(ctx, effs)
	if result != nil {
		report.Execution.merge(result)
	}
	return err
}
