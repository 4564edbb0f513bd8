package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/example/filedupe/internal/ports/secondary"
)

// LedgerRepository implements secondary.DuplicateLedger over duplicate_files.
type LedgerRepository struct {
	db *sql.DB
}

// NewLedgerRepository creates a new SQLite ledger repository.
func NewLedgerRepository(db *sql.DB) *LedgerRepository {
	return &LedgerRepository{db: db}
}

// Record appends a ledger row.
func (r *LedgerRepository) Record(ctx context.Context, duplicateID, originalID int64, exact bool) error {
	if duplicateID == originalID {
		return fmt.Errorf("file %d: %w", duplicateID, secondary.ErrSelfReference)
	}

	_, err := conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO duplicate_files (fid, original_fid, exact) VALUES (?, ?, ?)",
		duplicateID, originalID, boolToInt(exact),
	)
	if err != nil {
		return fmt.Errorf("failed to record duplicate %d of %d: %w", duplicateID, originalID, err)
	}
	return nil
}

// NextUnresolved returns the oldest unresolved row, or nil.
func (r *LedgerRepository) NextUnresolved(ctx context.Context) (*secondary.DuplicateRecord, error) {
	return r.NextUnresolvedAfter(ctx, 0)
}

// NextUnresolvedAfter returns the oldest unresolved row with id above rowID, or nil.
func (r *LedgerRepository) NextUnresolvedAfter(ctx context.Context, rowID int64) (*secondary.DuplicateRecord, error) {
	var (
		record secondary.DuplicateRecord
		exact  int
	)
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, fid, original_fid, exact FROM duplicate_files
		WHERE replaced_timestamp IS NULL AND id > ?
		ORDER BY id ASC LIMIT 1`,
		rowID,
	).Scan(&record.ID, &record.DuplicateID, &record.OriginalID, &exact)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get next unresolved duplicate: %w", err)
	}
	record.Exact = exact != 0
	return &record, nil
}

// Lookup returns the oldest unresolved row for the pair, or nil.
func (r *LedgerRepository) Lookup(ctx context.Context, duplicateID, originalID int64) (*secondary.DuplicateRecord, error) {
	var exact int
	record := &secondary.DuplicateRecord{DuplicateID: duplicateID, OriginalID: originalID}
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT id, exact FROM duplicate_files
		WHERE fid = ? AND original_fid = ? AND replaced_timestamp IS NULL
		ORDER BY id ASC LIMIT 1`,
		duplicateID, originalID,
	).Scan(&record.ID, &exact)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to look up duplicate %d of %d: %w", duplicateID, originalID, err)
	}
	record.Exact = exact != 0
	return record, nil
}

// MarkResolved stamps every unresolved row for the pair.
func (r *LedgerRepository) MarkResolved(ctx context.Context, duplicateID, originalID int64, at time.Time) error {
	_, err := conn(ctx, r.db).ExecContext(ctx,
		`UPDATE duplicate_files SET replaced_timestamp = ?
		WHERE fid = ? AND original_fid = ? AND replaced_timestamp IS NULL`,
		at.Unix(), duplicateID, originalID,
	)
	if err != nil {
		return fmt.Errorf("failed to mark duplicate %d resolved: %w", duplicateID, err)
	}
	return nil
}

// Reset deletes every ledger row.
func (r *LedgerRepository) Reset(ctx context.Context) error {
	if _, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM duplicate_files"); err != nil {
		return fmt.Errorf("failed to reset duplicate ledger: %w", err)
	}
	return nil
}

// IsClassified reports whether the item appears in any ledger row.
func (r *LedgerRepository) IsClassified(ctx context.Context, itemID int64) (bool, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM duplicate_files WHERE fid = ?)
			OR EXISTS (SELECT 1 FROM duplicate_files WHERE original_fid = ?)`,
		itemID, itemID,
	).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to check classification of %d: %w", itemID, err)
	}
	return n != 0, nil
}

// NextUnclassifiedAfter returns the first catalog item above cursor that no
// ledger row mentions.
func (r *LedgerRepository) NextUnclassifiedAfter(ctx context.Context, cursor int64) (*secondary.ManagedItem, error) {
	item := &secondary.ManagedItem{}
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT f.fid, f.filesize, f.filemime, f.uri FROM managed_files f
		WHERE f.fid > ?
		  AND NOT EXISTS (SELECT 1 FROM duplicate_files d WHERE d.fid = f.fid)
		  AND NOT EXISTS (SELECT 1 FROM duplicate_files d WHERE d.original_fid = f.fid)
		ORDER BY f.fid ASC LIMIT 1`,
		cursor,
	).Scan(&item.ID, &item.Size, &item.MimeType, &item.Locator)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to find next unclassified file: %w", err)
	}
	return item, nil
}

// Counts summarises the ledger.
func (r *LedgerRepository) Counts(ctx context.Context) (*secondary.LedgerCounts, error) {
	counts := &secondary.LedgerCounts{}
	err := conn(ctx, r.db).QueryRowContext(ctx,
		`SELECT
			COUNT(*),
			COALESCE(SUM(CASE WHEN exact <> 0 THEN 1 ELSE 0 END), 0),
			COALESCE(SUM(CASE WHEN replaced_timestamp IS NOT NULL THEN 1 ELSE 0 END), 0)
		FROM duplicate_files`,
	).Scan(&counts.Total, &counts.Exact, &counts.Resolved)
	if err != nil {
		return nil, fmt.Errorf("failed to count duplicates: %w", err)
	}
	counts.Possible = counts.Total - counts.Exact
	counts.Unresolved = counts.Total - counts.Resolved
	return counts, nil
}

// List retrieves ledger rows in insertion order.
func (r *LedgerRepository) List(ctx context.Context, filters secondary.LedgerFilters) ([]*secondary.DuplicateRecord, error) {
	query := "SELECT id, fid, original_fid, exact, replaced_timestamp FROM duplicate_files"
	var where []string
	if filters.UnresolvedOnly {
		where = append(where, "replaced_timestamp IS NULL")
	}
	if filters.ExactOnly {
		where = append(where, "exact <> 0")
	}
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY id ASC"

	var args []any
	if filters.Limit > 0 {
		query += " LIMIT ?"
		args = append(args, filters.Limit)
	}

	rows, err := conn(ctx, r.db).QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("failed to list duplicates: %w", err)
	}
	defer rows.Close()

	var records []*secondary.DuplicateRecord
	for rows.Next() {
		var (
			exact    int
			replaced sql.NullInt64
		)
		record := &secondary.DuplicateRecord{}
		if err := rows.Scan(&record.ID, &record.DuplicateID, &record.OriginalID, &exact, &replaced); err != nil {
			return nil, fmt.Errorf("failed to scan duplicate: %w", err)
		}
		record.Exact = exact != 0
		if replaced.Valid {
			at := time.Unix(replaced.Int64, 0)
			record.ReplacedAt = &at
		}
		records = append(records, record)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate duplicates: %w", err)
	}
	return records, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}

// Ensure LedgerRepository implements the interface.
var _ secondary.DuplicateLedger = (*LedgerRepository)(nil)
