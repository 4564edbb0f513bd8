package sqlite

import (
	"context"
	"database/sql"
	"errors"
	"fmt"

	"github.com/example/filedupe/internal/ports/secondary"
)

// ItemRepository implements secondary.ItemCatalog over the managed_files table.
type ItemRepository struct {
	db *sql.DB
}

// NewItemRepository creates a new SQLite item repository.
func NewItemRepository(db *sql.DB) *ItemRepository {
	return &ItemRepository{db: db}
}

// Create registers a managed item. A zero ID lets SQLite assign one, which is
// written back to item.
func (r *ItemRepository) Create(ctx context.Context, item *secondary.ManagedItem, filename string) error {
	var id any
	if item.ID > 0 {
		id = item.ID
	}
	result, err := conn(ctx, r.db).ExecContext(ctx,
		"INSERT INTO managed_files (fid, filename, uri, filemime, filesize) VALUES (?, ?, ?, ?, ?)",
		id, filename, item.Locator, item.MimeType, item.Size,
	)
	if err != nil {
		return fmt.Errorf("failed to create managed file: %w", err)
	}
	if item.ID == 0 {
		newID, err := result.LastInsertId()
		if err != nil {
			return fmt.Errorf("failed to read managed file id: %w", err)
		}
		item.ID = newID
	}
	return nil
}

// Load retrieves an item by ID.
func (r *ItemRepository) Load(ctx context.Context, id int64) (*secondary.ManagedItem, error) {
	item := &secondary.ManagedItem{}
	err := conn(ctx, r.db).QueryRowContext(ctx,
		"SELECT fid, filesize, filemime, uri FROM managed_files WHERE fid = ?",
		id,
	).Scan(&item.ID, &item.Size, &item.MimeType, &item.Locator)

	if errors.Is(err, sql.ErrNoRows) {
		return nil, fmt.Errorf("file %d: %w", id, secondary.ErrItemNotFound)
	}
	if err != nil {
		return nil, fmt.Errorf("failed to load file %d: %w", id, err)
	}
	return item, nil
}

// Query returns size/mime matches above idGreaterThan in ascending ID order.
func (r *ItemRepository) Query(ctx context.Context, size int64, mimeType string, idGreaterThan int64) ([]*secondary.ManagedItem, error) {
	rows, err := conn(ctx, r.db).QueryContext(ctx,
		`SELECT fid, filesize, filemime, uri FROM managed_files
		WHERE filesize = ? AND filemime = ? AND fid > ?
		ORDER BY fid ASC`,
		size, mimeType, idGreaterThan,
	)
	if err != nil {
		return nil, fmt.Errorf("failed to query files: %w", err)
	}
	defer rows.Close()

	var items []*secondary.ManagedItem
	for rows.Next() {
		item := &secondary.ManagedItem{}
		if err := rows.Scan(&item.ID, &item.Size, &item.MimeType, &item.Locator); err != nil {
			return nil, fmt.Errorf("failed to scan file: %w", err)
		}
		items = append(items, item)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate files: %w", err)
	}
	return items, nil
}

// Delete removes an item from the catalog.
func (r *ItemRepository) Delete(ctx context.Context, id int64) error {
	result, err := conn(ctx, r.db).ExecContext(ctx, "DELETE FROM managed_files WHERE fid = ?", id)
	if err != nil {
		return fmt.Errorf("failed to delete file %d: %w", id, err)
	}

	rowsAffected, _ := result.RowsAffected()
	if rowsAffected == 0 {
		return fmt.Errorf("file %d: %w", id, secondary.ErrItemNotFound)
	}
	return nil
}

// ExistsByLocator reports whether an item with the given locator is registered.
func (r *ItemRepository) ExistsByLocator(ctx context.Context, locator string) (bool, error) {
	var n int
	err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM managed_files WHERE uri = ?", locator).Scan(&n)
	if err != nil {
		return false, fmt.Errorf("failed to look up %s: %w", locator, err)
	}
	return n > 0, nil
}

// Count returns the number of managed items.
func (r *ItemRepository) Count(ctx context.Context) (int, error) {
	var n int
	if err := conn(ctx, r.db).QueryRowContext(ctx, "SELECT COUNT(*) FROM managed_files").Scan(&n); err != nil {
		return 0, fmt.Errorf("failed to count files: %w", err)
	}
	return n, nil
}

// Ensure ItemRepository implements the interface.
var _ secondary.ItemCatalog = (*ItemRepository)(nil)
