// Package secondary defines the secondary ports (driven adapters) for the application.
// These are the interfaces through which the application drives external systems.
package secondary

import (
	"context"
	"errors"
	"io"
)

// Sentinel errors shared by adapters. Callers test with errors.Is.
var (
	// ErrItemNotFound is returned when a managed item does not exist.
	ErrItemNotFound = errors.New("managed item not found")

	// ErrRecordNotFound is returned when a referencing record cannot be loaded.
	ErrRecordNotFound = errors.New("record not found")

	// ErrNoStorage is returned when a record type has no registered storage handler.
	ErrNoStorage = errors.New("no storage handler for record type")

	// ErrSelfReference is returned when a ledger row would pair an item with itself.
	ErrSelfReference = errors.New("duplicate and original must differ")
)

// ManagedItem is a stored binary object tracked by the item catalog.
type ManagedItem struct {
	ID       int64
	Size     int64
	MimeType string
	Locator  string
}

// ItemCatalog defines the secondary port over managed items.
type ItemCatalog interface {
	// Load retrieves an item by ID. Returns ErrItemNotFound if absent.
	Load(ctx context.Context, id int64) (*ManagedItem, error)

	// Query returns items with the given size and mime type whose ID is
	// greater than idGreaterThan, in ascending ID order.
	Query(ctx context.Context, size int64, mimeType string, idGreaterThan int64) ([]*ManagedItem, error)

	// Delete removes an item from the catalog.
	Delete(ctx context.Context, id int64) error

	// Count returns the number of items in the catalog.
	Count(ctx context.Context) (int, error)

	// ExistsByLocator reports whether any item still uses locator.
	ExistsByLocator(ctx context.Context, locator string) (bool, error)
}

// ContentStore resolves item locators to their bytes.
type ContentStore interface {
	// Open returns a reader over the item's content. An error means the
	// content is unreadable.
	Open(ctx context.Context, locator string) (io.ReadCloser, error)

	// Remove deletes the content behind a locator.
	Remove(ctx context.Context, locator string) error
}

// ExemptionPredicate reports items that must never be treated as duplicates.
type ExemptionPredicate interface {
	IsExempt(ctx context.Context, itemID int64) (bool, error)
}
