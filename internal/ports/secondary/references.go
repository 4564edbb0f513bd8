package secondary

import "context"

// RewriteStrategy names how a reference column is rewritten.
type RewriteStrategy string

const (
	// StrategyHeadViaObjectSave rewrites the live record in memory and saves
	// it through the record store, which also refreshes the head revision.
	StrategyHeadViaObjectSave RewriteStrategy = "head-via-object-save"

	// StrategyHistoryViaDirectUpdate updates historical revision rows with a
	// direct table update that skips the head revision.
	StrategyHistoryViaDirectUpdate RewriteStrategy = "history-via-direct-update"
)

// ReferenceFieldDescriptor locates the physical storage of one file-like
// field of one record type.
type ReferenceFieldDescriptor struct {
	RecordType           string
	FieldName            string
	CurrentTable         string
	Column               string
	IDColumn             string
	HistoryTable         *string
	HistoryVersionColumn *string
}

// Strategies returns the rewrite strategies this field needs.
func (d ReferenceFieldDescriptor) Strategies() []RewriteStrategy {
	if d.HasHistory() {
		return []RewriteStrategy{StrategyHeadViaObjectSave, StrategyHistoryViaDirectUpdate}
	}
	return []RewriteStrategy{StrategyHeadViaObjectSave}
}

// HasHistory reports whether the field keeps per-revision rows.
func (d ReferenceFieldDescriptor) HasHistory() bool {
	return d.HistoryTable != nil && *d.HistoryTable != "" &&
		d.HistoryVersionColumn != nil && *d.HistoryVersionColumn != ""
}

// ReferenceCatalog discovers file-like fields from the schema registry. It
// never caches: every call reflects the registry as it is now.
type ReferenceCatalog interface {
	// FieldsFor returns the file-like fields of one record type.
	FieldsFor(ctx context.Context, recordType string) ([]ReferenceFieldDescriptor, error)

	// AllReferenceFields returns the file-like fields of every record type.
	AllReferenceFields(ctx context.Context) ([]ReferenceFieldDescriptor, error)

	// HasStorage reports whether the record type has a storage handler.
	HasStorage(ctx context.Context, recordType string) (bool, error)

	// RecordTypes lists the record types with at least one file-like field.
	RecordTypes(ctx context.Context) ([]string, error)
}

// ReferencingRecord identifies a record citing an item, and the module
// that owns the usage.
type ReferencingRecord struct {
	OwnerModule string
	RecordType  string
	RecordID    string
}

// LiveRecord is the in-memory state of a record's reference fields.
// Fields maps field name to its values in delta order.
type LiveRecord struct {
	RecordType string
	RecordID   string
	RevisionID *int64
	Fields     map[string][]int64
}

// RecordStore loads and saves live records through their normal path.
type RecordStore interface {
	// Load returns the live record. Returns ErrNoStorage when the record type
	// has no storage handler and ErrRecordNotFound when the record is gone.
	Load(ctx context.Context, recordType, recordID string) (*LiveRecord, error)

	// Save writes the record's reference fields to the current tables and
	// refreshes the head revision's history rows.
	Save(ctx context.Context, record *LiveRecord) error
}

// HistoryUpdate describes one direct update of a history table.
type HistoryUpdate struct {
	Table           string
	Column          string
	IDColumn        string
	VersionColumn   string
	RecordID        string
	ExcludeRevision *int64
	From            int64
	To              int64
}

// HistoryWriter applies direct updates to history tables.
type HistoryWriter interface {
	// RewriteHistory applies the update and returns the rows affected.
	RewriteHistory(ctx context.Context, update HistoryUpdate) (int64, error)
}

// UsageIndex lists the records citing an item.
type UsageIndex interface {
	ListUsage(ctx context.Context, itemID int64) ([]ReferencingRecord, error)
}

// UsageAdjuster keeps the usage ledger in sync after a rewrite.
type UsageAdjuster interface {
	// Zero clears the item's usage count attributed to the record.
	Zero(ctx context.Context, ref ReferencingRecord, itemID int64) error

	// Decrement lowers the item's usage count by n, never below zero.
	Decrement(ctx context.Context, ref ReferencingRecord, itemID int64, n int) error

	// Increment raises the item's usage count by n, creating the row if needed.
	Increment(ctx context.Context, ref ReferencingRecord, itemID int64, n int) error
}
