// Package primary defines the primary ports (driving adapters) of the application.
package primary

import (
	"context"
	"time"
)

// DedupeService defines the primary port for duplicate detection and consolidation.
type DedupeService interface {
	// Find scans up to limit unclassified items after cursor and returns the
	// next cursor. The cursor is returned unchanged when nothing remains.
	Find(ctx context.Context, cursor int64, limit int) (int64, error)

	// Replace consolidates one duplicate onto its original.
	Replace(ctx context.Context, duplicateID, originalID int64) (*ReplaceResult, error)

	// ResetFindings deletes every ledger row.
	ResetFindings(ctx context.Context) error

	// FindBatch advances a find operation by one chunk.
	FindBatch(ctx context.Context, progress *Progress, chunkSize int) error

	// ReplaceBatch advances a replace operation by one ledger row.
	ReplaceBatch(ctx context.Context, progress *Progress) error

	// RunFind repeats FindBatch until the operation finishes, the step
	// budget is spent or ctx is cancelled.
	RunFind(ctx context.Context, progress *Progress, opts BatchOptions) error

	// RunReplace repeats ReplaceBatch under the same rules as RunFind.
	RunReplace(ctx context.Context, progress *Progress, opts BatchOptions) error

	// Status summarises the ledger.
	Status(ctx context.Context) (*LedgerStatus, error)

	// ListFindings lists ledger rows.
	ListFindings(ctx context.Context, req ListFindingsRequest) ([]*Finding, error)
}

// Operation names a resumable batch operation.
type Operation string

const (
	OperationFind    Operation = "find"
	OperationReplace Operation = "replace"
)

// Progress is the externally owned state of a resumable batch operation.
// It is passed into every step and serialised by the caller between
// invocations; nothing else survives across steps.
type Progress struct {
	RunID     string    `json:"run_id" yaml:"run_id"`
	Operation Operation `json:"operation" yaml:"operation"`
	Processed int       `json:"processed" yaml:"processed"`
	Total     int       `json:"total" yaml:"total"`
	// Cursor is the last scanned item ID for find and the last attempted
	// ledger row ID for replace.
	Cursor int64 `json:"cursor" yaml:"cursor"`

	CurrentDuplicateID int64 `json:"current_duplicate_id,omitempty" yaml:"current_duplicate_id,omitempty"`
	CurrentOriginalID  int64 `json:"current_original_id,omitempty" yaml:"current_original_id,omitempty"`

	Deleted  int `json:"deleted" yaml:"deleted"`
	Skipped  int `json:"skipped" yaml:"skipped"`
	Failures int `json:"failures" yaml:"failures"`
	// FailedRows lists ledger rows left unresolved by a failed replace.
	// A fresh replace run retries them.
	FailedRows []int64 `json:"failed_rows,omitempty" yaml:"failed_rows,omitempty"`

	Started  bool      `json:"started" yaml:"started"`
	Finished bool      `json:"finished" yaml:"finished"`
	Message  string    `json:"message,omitempty" yaml:"message,omitempty"`
	Updated  time.Time `json:"updated" yaml:"updated"`
}

// BatchOptions bounds a batch run.
type BatchOptions struct {
	// ChunkSize is the number of items scanned per find step.
	ChunkSize int
	// MaxSteps stops the run after this many steps; zero means no limit.
	MaxSteps int
	// OnStep is called with the progress after every step. An error stops the run.
	OnStep func(*Progress) error
}

// ReplaceOutcome describes what a replace did.
type ReplaceOutcome string

const (
	// OutcomeDeleted: references rewritten and the duplicate deleted.
	OutcomeDeleted ReplaceOutcome = "deleted"
	// OutcomeKept: references rewritten but deletion gated.
	OutcomeKept ReplaceOutcome = "kept"
	// OutcomeSkipped: not consolidated because of the possible-pair policy.
	OutcomeSkipped ReplaceOutcome = "skipped"
)

// ReplaceResult contains the result of consolidating one pair.
type ReplaceResult struct {
	DuplicateID      int64
	OriginalID       int64
	Outcome          ReplaceOutcome
	Records          []RewrittenRecord
	UnresolvedOwners []string
	Reason           string
}

// Occurrences returns the total rewritten occurrences.
func (r *ReplaceResult) Occurrences() int {
	total := 0
	for _, rec := range r.Records {
		total += rec.Occurrences
	}
	return total
}

// RewrittenRecord reports how many references of one record were rewritten.
type RewrittenRecord struct {
	OwnerModule string
	RecordType  string
	RecordID    string
	Occurrences int
}

// LedgerStatus summarises the ledger at the port boundary.
type LedgerStatus struct {
	Total      int
	Exact      int
	Possible   int
	Resolved   int
	Unresolved int
	Items      int

	RecordTypes     []string
	ReferenceFields int
}

// ListFindingsRequest contains filters for listing ledger rows.
type ListFindingsRequest struct {
	UnresolvedOnly bool
	ExactOnly      bool
	Limit          int
}

// Finding represents a ledger row at the port boundary.
type Finding struct {
	DuplicateID int64
	OriginalID  int64
	Exact       bool
	ReplacedAt  *time.Time
}
