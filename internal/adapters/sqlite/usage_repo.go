package sqlite

import (
	"context"
	"database/sql"
	"fmt"

	"github.com/example/filedupe/internal/ports/secondary"
)

// UsageRepository implements secondary.UsageIndex and
// secondary.UsageAdjuster over the file_usage table.
type UsageRepository struct {
	db *sql.DB
}

// NewUsageRepository creates a new SQLite usage repository.
func NewUsageRepository(db *sql.DB) *UsageRepository {
	return &UsageRepository{db: db}
}

// ListUsage returns every record with a positive usage count for itemID.
func (r *UsageRepository) ListUsage(ctx context.Context, itemID int64) ([]secondary.ReferencingRecord, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT module, type, id FROM file_usage
		WHERE fid = ? AND count > 0
		ORDER BY module, type, id`,
		itemID,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to list usage of file %d: %w", itemID, err)
	}
	defer rows.Close()

	var refs []secondary.ReferencingRecord
	for rows.Next() {
		var ref secondary.ReferencingRecord
		if err := rows.Scan(&ref.OwnerModule, &ref.RecordType, &ref.RecordID); err != nil {
			return nil, fmt.Errorf("failed to scan usage: %w", err)
		}
		refs = append(refs, ref)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate usage: %w", err)
	}
	return refs, nil
}

// Count returns the usage count of itemID for one record, zero when absent.
func (r *UsageRepository) Count(ctx context.Context, ref secondary.ReferencingRecord, itemID int64) (int, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT COALESCE(SUM(count), 0) FROM file_usage
		WHERE fid = ? AND module = ? AND type = ? AND id = ?`,
		itemID, ref.OwnerModule, ref.RecordType, ref.RecordID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("failed to read usage of file %d: %w", itemID, err)
	}
	return n, nil
}

// Zero removes the usage row of itemID for the record.
func (r *UsageRepository) Zero(ctx context.Context, ref secondary.ReferencingRecord, itemID int64) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		"DELETE FROM file_usage WHERE fid = ? AND module = ? AND type = ? AND id = ?",
		itemID, ref.OwnerModule, ref.RecordType, ref.RecordID,
	)
	if err != nil {
		return fmt.Errorf("failed to clear usage of file %d: %w", itemID, err)
	}
	return nil
}

// Decrement lowers the usage count by n and drops rows that reach zero.
func (r *UsageRepository) Decrement(ctx context.Context, ref secondary.ReferencingRecord, itemID int64, n int) error {
	q := conn(ctx, r.db)
	_, err := q.ExecContext(ctx,
		`UPDATE file_usage SET count = MAX(count - ?, 0)
		WHERE fid = ? AND module = ? AND type = ? AND id = ?`,
		n, itemID, ref.OwnerModule, ref.RecordType, ref.RecordID,
	)
	if err != nil {
		return fmt.Errorf("failed to decrement usage of file %d: %w", itemID, err)
	}
	_, err = q.ExecContext(ctx,
		"DELETE FROM file_usage WHERE fid = ? AND module = ? AND type = ? AND id = ? AND count <= 0",
		itemID, ref.OwnerModule, ref.RecordType, ref.RecordID,
	)
	if err != nil {
		return fmt.Errorf("failed to prune usage of file %d: %w", itemID, err)
	}
	return nil
}

// Increment raises the usage count by n, creating the row when needed.
func (r *UsageRepository) Increment(ctx context.Context, ref secondary.ReferencingRecord, itemID int64, n int) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`INSERT INTO file_usage (fid, module, type, id, count) VALUES (?, ?, ?, ?, ?)
		ON CONFLICT (fid, module, type, id) DO UPDATE SET count = count + excluded.count`,
		itemID, ref.OwnerModule, ref.RecordType, ref.RecordID, n,
	)
	if err != nil {
		return fmt.Errorf("failed to increment usage of file %d: %w", itemID, err)
	}
	return nil
}

// Ensure UsageRepository implements the interfaces.
var (
	_ secondary.UsageIndex    = (*UsageRepository)(nil)
	_ secondary.UsageAdjuster = (*UsageRepository)(nil)
)
