// Package effects defines effect types as data structures representing I/O operations.
// This is the foundation of the Functional Core / Imperative Shell pattern.
// Effects are pure data - they describe what should happen, not how.
package effects

// Effect is the base interface for all effects.
// Effects represent I/O operations as data that can be interpreted by the shell.
type Effect interface {
	// EffectType returns a string identifier for the effect type.
	EffectType() string
}

// LogEffect represents a logging operation.
type LogEffect struct {
	Level   string
	Message string
	Fields  map[string]any
}

func (e LogEffect) EffectType() string { return "log" }

// SaveRecordEffect saves a live record through its own save path.
type SaveRecordEffect struct {
	RecordType string
	RecordID   string
	RevisionID *int64
	Fields     map[string][]int64
}

func (e SaveRecordEffect) EffectType() string { return "save_record" }

// HistoryUpdateEffect rewrites one value in a history table for one record,
// leaving ExcludeRevision untouched.
type HistoryUpdateEffect struct {
	Table           string
	Column          string
	IDColumn        string
	VersionColumn   string
	RecordID        string
	ExcludeRevision *int64
	From            int64
	To              int64
}

func (e HistoryUpdateEffect) EffectType() string { return "history_update" }

// Usage operations.
const (
	UsageZero      = "zero"
	UsageDecrement = "decrement"
	UsageIncrement = "increment"
)

// UsageEffect adjusts the usage counter of one item for one record.
type UsageEffect struct {
	Operation   string
	OwnerModule string
	RecordType  string
	RecordID    string
	ItemID      int64
	Count       int
}

func (e UsageEffect) EffectType() string { return "usage" }

// DeleteItemEffect removes an item from the catalog and, optionally, its content.
type DeleteItemEffect struct {
	ItemID        int64
	Locator       string
	RemoveContent bool
}

func (e DeleteItemEffect) EffectType() string { return "delete_item" }

// CompositeEffect holds multiple effects to be executed in sequence.
type CompositeEffect struct {
	Effects []Effect
}

func (e CompositeEffect) EffectType() string { return "composite" }
