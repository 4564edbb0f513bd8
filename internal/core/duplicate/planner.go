package duplicate

import (
	"sort"

	"github.com/example/filedupe/internal/core/effects"
)

// Usage policies.
const (
	UsageZero      = "zero"
	UsageDecrement = "decrement"
)

// FieldStorage is the pre-fetched storage layout of one reference field.
type FieldStorage struct {
	FieldName     string
	HistoryTable  string
	Column        string
	IDColumn      string
	VersionColumn string
}

// HasHistory reports whether the field keeps per-revision rows.
func (f FieldStorage) HasHistory() bool {
	return f.HistoryTable != "" && f.VersionColumn != ""
}

// RecordRewriteInput contains pre-fetched data for rewriting one record.
type RecordRewriteInput struct {
	RecordType  string
	RecordID    string
	RevisionID  *int64
	Fields      map[string][]int64
	Storage     []FieldStorage
	DuplicateID int64
	OriginalID  int64
}

// RecordRewritePlan represents the planned effects for one record.
type RecordRewritePlan struct {
	RecordType string
	RecordID   string
	// Dirty is true when the live record changed and must be saved.
	Dirty bool
	// LiveOccurrences counts values rewritten in the live record.
	LiveOccurrences int
	SaveOps         []effects.SaveRecordEffect
	HistoryOps      []effects.HistoryUpdateEffect
}

// Effects returns all effects as a flat slice for execution. The save comes
// first so the head revision is written before older revisions are touched.
func (p RecordRewritePlan) Effects() []effects.Effect {
	result := make([]effects.Effect, 0, len(p.SaveOps)+len(p.HistoryOps))
	for _, e := range p.SaveOps {
		result = append(result, e)
	}
	for _, e := range p.HistoryOps {
		result = append(result, e)
	}
	return result
}

// RewriteValues replaces every occurrence of from with to. It returns a new
// slice and the number of values replaced; values is never modified.
func RewriteValues(values []int64, from, to int64) ([]int64, int) {
	out := make([]int64, len(values))
	replaced := 0
	for i, v := range values {
		if v == from {
			out[i] = to
			replaced++
			continue
		}
		out[i] = v
	}
	return out, replaced
}

// GenerateRecordRewritePlan plans the rewrite of one record.
// This is a pure function - all input data must be pre-fetched.
func GenerateRecordRewritePlan(input RecordRewriteInput) RecordRewritePlan {
	plan := RecordRewritePlan{
		RecordType: input.RecordType,
		RecordID:   input.RecordID,
	}

	fields := make(map[string][]int64, len(input.Fields))
	names := make([]string, 0, len(input.Fields))
	for name := range input.Fields {
		names = append(names, name)
	}
	sort.Strings(names)

	known := make(map[string]bool, len(input.Storage))
	for _, fs := range input.Storage {
		known[fs.FieldName] = true
	}

	for _, name := range names {
		values := input.Fields[name]
		if !known[name] {
			fields[name] = values
			continue
		}
		rewritten, n := RewriteValues(values, input.DuplicateID, input.OriginalID)
		fields[name] = rewritten
		plan.LiveOccurrences += n
	}

	if plan.LiveOccurrences > 0 {
		plan.Dirty = true
		plan.SaveOps = append(plan.SaveOps, effects.SaveRecordEffect{
			RecordType: input.RecordType,
			RecordID:   input.RecordID,
			RevisionID: input.RevisionID,
			Fields:     fields,
		})
	}

	for _, fs := range input.Storage {
		if !fs.HasHistory() {
			continue
		}
		plan.HistoryOps = append(plan.HistoryOps, effects.HistoryUpdateEffect{
			Table:           fs.HistoryTable,
			Column:          fs.Column,
			IDColumn:        fs.IDColumn,
			VersionColumn:   fs.VersionColumn,
			RecordID:        input.RecordID,
			ExcludeRevision: input.RevisionID,
			From:            input.DuplicateID,
			To:              input.OriginalID,
		})
	}

	return plan
}

// UsageAdjustmentInput contains the data needed to adjust usage for one record.
type UsageAdjustmentInput struct {
	Policy      string
	OwnerModule string
	RecordType  string
	RecordID    string
	DuplicateID int64
	OriginalID  int64
	Occurrences int
}

// PlanUsageAdjustment plans the usage ledger changes after a record was
// rewritten. Under the zero policy the duplicate's counter is cleared
// outright; under decrement it is lowered by the counted occurrences. The
// original gains the counted occurrences either way.
func PlanUsageAdjustment(input UsageAdjustmentInput) []effects.UsageEffect {
	var ops []effects.UsageEffect

	dup := effects.UsageEffect{
		OwnerModule: input.OwnerModule,
		RecordType:  input.RecordType,
		RecordID:    input.RecordID,
		ItemID:      input.DuplicateID,
	}
	if input.Policy == UsageDecrement {
		if input.Occurrences > 0 {
			dup.Operation = effects.UsageDecrement
			dup.Count = input.Occurrences
			ops = append(ops, dup)
		}
	} else {
		dup.Operation = effects.UsageZero
		ops = append(ops, dup)
	}

	if input.Occurrences > 0 {
		ops = append(ops, effects.UsageEffect{
			Operation:   effects.UsageIncrement,
			OwnerModule: input.OwnerModule,
			RecordType:  input.RecordType,
			RecordID:    input.RecordID,
			ItemID:      input.OriginalID,
			Count:       input.Occurrences,
		})
	}

	return ops
}

// PlanDuplicateDeletion plans the removal of a duplicate that passed the gate.
func PlanDuplicateDeletion(itemID int64, locator string, removeContent bool) effects.DeleteItemEffect {
	return effects.DeleteItemEffect{
		ItemID:        itemID,
		Locator:       locator,
		RemoveContent: removeContent,
	}
}

// ReferenceSource identifies the record behind a usage row.
type ReferenceSource struct {
	OwnerModule string
	RecordType  string
	RecordID    string
	DuplicateID int64
}

func (r ReferenceSource) logFields() map[string]any {
	return map[string]any{
		"owner":       r.OwnerModule,
		"record_type": r.RecordType,
		"record_id":   r.RecordID,
		"fid":         r.DuplicateID,
	}
}

// PlanUnresolvedOwner plans the warning for a record whose type has no
// storage handler. Its references and usage are left alone.
func PlanUnresolvedOwner(src ReferenceSource) effects.LogEffect {
	return effects.LogEffect{
		Level:   "warn",
		Message: "No storage handler, references left in place",
		Fields:  src.logFields(),
	}
}

// PlanStaleUsageCleanup plans clearing a usage row whose record no longer
// exists.
func PlanStaleUsageCleanup(src ReferenceSource) effects.CompositeEffect {
	return effects.CompositeEffect{Effects: []effects.Effect{
		effects.LogEffect{
			Level:   "warn",
			Message: "Clearing usage of missing record",
			Fields:  src.logFields(),
		},
		effects.UsageEffect{
			Operation:   effects.UsageZero,
			OwnerModule: src.OwnerModule,
			RecordType:  src.RecordType,
			RecordID:    src.RecordID,
			ItemID:      src.DuplicateID,
		},
	}}
}
