package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/filedupe/internal/ports/secondary"
)

// ExemptionRepository implements secondary.ExemptionPredicate over exempt_files.
type ExemptionRepository struct {
	db *sql.DB
}

// NewExemptionRepository creates a new SQLite exemption repository.
func NewExemptionRepository(db *sql.DB) *ExemptionRepository {
	return &ExemptionRepository{db: db}
}

// IsExempt reports whether itemID is excluded from duplicate detection.
func (r *ExemptionRepository) IsExempt(ctx context.Context, itemID int64) (bool, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT COUNT(*) FROM exempt_files WHERE fid = ?",
		itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check exemption of file %d: %w", itemID, err)
	}
	return n > 0, nil
}

// Add exempts itemID. Adding an exempt item again updates the reason.
func (r *ExemptionRepository) Add(ctx context.Context, itemID int64, reason string) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO exempt_files (fid, reason) VALUES (?, ?)
		ON CONFLICT (fid) DO UPDATE SET reason = excluded.reason`,
		itemID, reason,
	)
	if err != nil {
		return fmt.Errorf("failed to exempt file %d: %w", itemID, err)
	}
	return nil
}

// Remove lifts the exemption of itemID.
func (r *ExemptionRepository) Remove(ctx context.Context, itemID int64) error {
	if _, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM exempt_files WHERE fid = ?", itemID); err != nil {
		return fmt.Errorf("failed to remove exemption of file %d: %w", itemID, err)
	}
	return nil
}

// Ensure ExemptionRepository implements the interface.
var _ secondary.ExemptionPredicate = (*ExemptionRepository)(nil)
