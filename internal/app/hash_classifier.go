package app

import (
	"context"
	"crypto/sha256"
	"fmt"
	"io"

	"golang.org/x/sync/errgroup"

	"github.com/example/filedupe/internal/core/duplicate"
	"github.com/example/filedupe/internal/logging"
	"github.com/example/filedupe/internal/ports/secondary"
)

// HashClassifier decides whether size/mime-matching items are exact
// duplicates by comparing SHA-256 digests of their content.
type HashClassifier struct {
	content secondary.ContentStore
	workers int
}

// NewHashClassifier creates a classifier that hashes up to workers items at once.
func NewHashClassifier(content secondary.ContentStore, workers int) *HashClassifier {
	if workers < 1 {
		workers = 1
	}
	return &HashClassifier{content: content, workers: workers}
}

// Digest hashes one item. Unreadable content yields an unreadable digest,
// never an error; only context cancellation is reported.
func (h *HashClassifier) Digest(ctx context.Context, item *secondary.ManagedItem) (duplicate.Digest, error) {
	if err := ctx.Err(); err != nil {
		return duplicate.Digest{}, err
	}

	logger := logging.ForContext(ctx, "classifier")

	rc, err := h.content.Open(ctx, item.Locator)
	if err != nil {
		logger.Warn().Err(err).Int64("fid", item.ID).Str("locator", item.Locator).Msg("Content unreadable")
		return duplicate.Digest{}, nil
	}
	defer rc.Close()

	sum := sha256.New()
	if _, err := io.Copy(sum, rc); err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return duplicate.Digest{}, ctxErr
		}
		logger.Warn().Err(err).Int64("fid", item.ID).Str("locator", item.Locator).Msg("Content read failed")
		return duplicate.Digest{}, nil
	}
	return duplicate.Digest{Sum: sum.Sum(nil), Readable: true}, nil
}

// Classify compares two items.
func (h *HashClassifier) Classify(ctx context.Context, a, b *secondary.ManagedItem) (duplicate.Classification, error) {
	da, err := h.Digest(ctx, a)
	if err != nil {
		return duplicate.Classification{}, err
	}
	db, err := h.Digest(ctx, b)
	if err != nil {
		return duplicate.Classification{}, err
	}
	return duplicate.Classify(da, db), nil
}

// ClassifyAll compares a against every candidate, hashing a once and the
// candidates in parallel. Results are in candidate order.
func (h *HashClassifier) ClassifyAll(ctx context.Context, a *secondary.ManagedItem, candidates []*secondary.ManagedItem) ([]duplicate.Classification, error) {
	if len(candidates) == 0 {
		return nil, nil
	}

	da, err := h.Digest(ctx, a)
	if err != nil {
		return nil, err
	}

	results := make([]duplicate.Classification, len(candidates))
	if !da.Readable {
		return results, nil
	}

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(h.workers)
	for i, b := range candidates {
		g.Go(func() error {
			db, err := h.Digest(gctx, b)
			if err != nil {
				return fmt.Errorf("failed to hash file %d: %w", b.ID, err)
			}
			results[i] = duplicate.Classify(da, db)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}
