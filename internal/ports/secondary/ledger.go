package secondary

import (
	"context"
	"time"
)

// DuplicateRecord is one ledger row pairing a duplicate with its original.
type DuplicateRecord struct {
	// ID orders rows by insertion.
	ID          int64
	DuplicateID int64
	OriginalID  int64
	Exact       bool
	ReplacedAt  *time.Time
}

// Resolved reports whether consolidation has been recorded for this row.
func (r *DuplicateRecord) Resolved() bool {
	return r.ReplacedAt != nil
}

// LedgerFilters contains filter options for listing ledger rows.
type LedgerFilters struct {
	UnresolvedOnly bool
	ExactOnly      bool
	Limit          int
}

// LedgerCounts summarises the ledger.
type LedgerCounts struct {
	Total      int
	Exact      int
	Possible   int
	Resolved   int
	Unresolved int
}

// DuplicateLedger defines the secondary port for the durable duplicate ledger.
type DuplicateLedger interface {
	// Record appends a row. No dedup check is performed here.
	Record(ctx context.Context, duplicateID, originalID int64, exact bool) error

	// NextUnresolved returns the oldest unresolved row, or nil when none remain.
	NextUnresolved(ctx context.Context) (*DuplicateRecord, error)

	// NextUnresolvedAfter returns the oldest unresolved row whose ID is above
	// rowID, or nil when none remain.
	NextUnresolvedAfter(ctx context.Context, rowID int64) (*DuplicateRecord, error)

	// Lookup returns the oldest unresolved row for the pair, or nil.
	Lookup(ctx context.Context, duplicateID, originalID int64) (*DuplicateRecord, error)

	// MarkResolved stamps every matching unresolved row. No-op when none match.
	MarkResolved(ctx context.Context, duplicateID, originalID int64, at time.Time) error

	// Reset deletes all rows.
	Reset(ctx context.Context) error

	// IsClassified reports whether the item appears in any row, as duplicate or original.
	IsClassified(ctx context.Context, itemID int64) (bool, error)

	// NextUnclassifiedAfter returns the lowest-ID catalog item above cursor
	// that is not classified, or nil when none remain.
	NextUnclassifiedAfter(ctx context.Context, cursor int64) (*ManagedItem, error)

	// Counts summarises the ledger.
	Counts(ctx context.Context) (*LedgerCounts, error)

	// List retrieves rows in insertion order.
	List(ctx context.Context, filters LedgerFilters) ([]*DuplicateRecord, error)
}

// Transactor runs fn inside a single database transaction. Adapters invoked
// with the ctx passed to fn take part in that transaction.
type Transactor interface {
	WithinTx(ctx context.Context, fn func(ctx context.Context) error) error
}
