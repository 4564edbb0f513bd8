package app

import (
	"context"
	"fmt"

	"github.com/example/filedupe/internal/core/duplicate"
	"github.com/example/filedupe/internal/logging"
	"github.com/example/filedupe/internal/ports/secondary"
)

// Scanner walks the item catalog in ascending ID order and records every
// size/mime-matching candidate of each unclassified item in the ledger.
type Scanner struct {
	items      secondary.ItemCatalog
	ledger     secondary.DuplicateLedger
	exemptions secondary.ExemptionPredicate
	classifier *HashClassifier
	tx         secondary.Transactor
}

// NewScanner creates a new Scanner.
func NewScanner(
	items secondary.ItemCatalog,
	ledger secondary.DuplicateLedger,
	exemptions secondary.ExemptionPredicate,
	classifier *HashClassifier,
	tx secondary.Transactor,
) *Scanner {
	return &Scanner{
		items:      items,
		ledger:     ledger,
		exemptions: exemptions,
		classifier: classifier,
		tx:         tx,
	}
}

// Scan visits up to limit unclassified items with an ID above cursor and
// returns the ID of the last one visited. The cursor comes back unchanged
// when nothing is left.
func (s *Scanner) Scan(ctx context.Context, cursor int64, limit int) (int64, error) {
	logger := logging.ForContext(ctx, "scanner")
	done := logging.LogOperationStart(logger, "scan")
	defer done()

	for i := 0; i < limit; i++ {
		if err := ctx.Err(); err != nil {
			return cursor, err
		}

		item, err := s.ledger.NextUnclassifiedAfter(ctx, cursor)
		if err != nil {
			return cursor, err
		}
		if item == nil {
			break
		}
		cursor = item.ID

		recorded, err := s.scanItem(ctx, item)
		if err != nil {
			return cursor, fmt.Errorf("failed to scan file %d: %w", item.ID, err)
		}
		if recorded > 0 {
			logger.Info().Int64("fid", item.ID).Int("duplicates", recorded).Msg("Recorded duplicates")
		}
	}
	return cursor, nil
}

func (s *Scanner) scanItem(ctx context.Context, original *secondary.ManagedItem) (int, error) {
	matches, err := s.items.Query(ctx, original.Size, original.MimeType, original.ID)
	if err != nil {
		return 0, err
	}

	var candidates []*secondary.ManagedItem
	for _, b := range matches {
		exempt, err := s.exemptions.IsExempt(ctx, b.ID)
		if err != nil {
			return 0, err
		}
		if exempt {
			continue
		}
		classified, err := s.ledger.IsClassified(ctx, b.ID)
		if err != nil {
			return 0, err
		}
		if classified {
			continue
		}
		if result := duplicate.CanRecordPair(duplicate.RecordPairContext{
			DuplicateID: b.ID,
			OriginalID:  original.ID,
		}); !result.Allowed {
			continue
		}
		candidates = append(candidates, b)
	}

	verdicts, err := s.classifier.ClassifyAll(ctx, original, candidates)
	if err != nil {
		return 0, err
	}

	// Rows for one original land together or not at all.
	err = s.tx.WithinTx(ctx, func(ctx context.Context) error {
		for i, b := range candidates {
			if err := s.ledger.Record(ctx, b.ID, original.ID, verdicts[i].Exact); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		return 0, err
	}
	return len(candidates), nil
}
