package duplicate

import (
	"fmt"
	"strings"
)

// GuardResult represents the outcome of a guard evaluation.
type GuardResult struct {
	Allowed bool
	Reason  string
}

// Error converts the guard result to an error if not allowed.
func (r GuardResult) Error() error {
	if r.Allowed {
		return nil
	}
	return fmt.Errorf("%s", r.Reason)
}

// Policies for pairs recorded as possible.
const (
	PossibleConsolidate = "consolidate"
	PossibleVerify      = "verify"
	PossibleSkip        = "skip"
)

// RecordPairContext provides context for recording a ledger row.
type RecordPairContext struct {
	DuplicateID int64
	OriginalID  int64
}

// CanRecordPair evaluates whether a ledger row may be written.
// Rules:
// - An item cannot duplicate itself
// - IDs must be positive
func CanRecordPair(ctx RecordPairContext) GuardResult {
	if ctx.DuplicateID <= 0 || ctx.OriginalID <= 0 {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("invalid pair %d/%d: ids must be positive", ctx.DuplicateID, ctx.OriginalID),
		}
	}
	if ctx.DuplicateID == ctx.OriginalID {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("item %d cannot be a duplicate of itself", ctx.DuplicateID),
		}
	}
	return GuardResult{Allowed: true}
}

// ConsolidateContext provides context for deciding whether to rewrite references.
type ConsolidateContext struct {
	DuplicateID    int64
	OriginalID     int64
	Exact          bool
	PossiblePolicy string
	// Reverified holds the result of rehashing a possible pair under the
	// verify policy; nil when no rehash was done.
	Reverified *Classification
}

// NeedsVerification reports whether the caller must rehash the pair before
// calling CanConsolidate.
func NeedsVerification(ctx ConsolidateContext) bool {
	return !ctx.Exact && ctx.PossiblePolicy == PossibleVerify && ctx.Reverified == nil
}

// CanConsolidate evaluates whether references may be rewritten for a pair.
// Rules:
// - Exact pairs always consolidate
// - Possible pairs follow the policy: consolidate, skip, or verify (rehash must now match)
func CanConsolidate(ctx ConsolidateContext) GuardResult {
	if ctx.Exact {
		return GuardResult{Allowed: true}
	}

	switch ctx.PossiblePolicy {
	case PossibleConsolidate, "":
		return GuardResult{Allowed: true}
	case PossibleSkip:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("pair %d/%d is unverified and possible pairs are skipped", ctx.DuplicateID, ctx.OriginalID),
		}
	case PossibleVerify:
		if ctx.Reverified == nil {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("pair %d/%d must be verified before consolidation", ctx.DuplicateID, ctx.OriginalID),
			}
		}
		if !ctx.Reverified.Exact {
			return GuardResult{
				Allowed: false,
				Reason:  fmt.Sprintf("content of %d differs from %d or is unreadable", ctx.DuplicateID, ctx.OriginalID),
			}
		}
		return GuardResult{Allowed: true}
	default:
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("unknown possible-pair policy %q", ctx.PossiblePolicy),
		}
	}
}

// DeleteDuplicateContext provides context for the deletion gate.
type DeleteDuplicateContext struct {
	DuplicateID      int64
	UnresolvedOwners []string
	DeleteEnabled    bool
}

// CanDeleteDuplicate evaluates whether the duplicate item may be deleted.
// Rules:
// - Deletion must be enabled
// - No referencing owner may be unresolved
func CanDeleteDuplicate(ctx DeleteDuplicateContext) GuardResult {
	if !ctx.DeleteEnabled {
		return GuardResult{
			Allowed: false,
			Reason:  fmt.Sprintf("deletion of %d disabled by configuration", ctx.DuplicateID),
		}
	}
	if len(ctx.UnresolvedOwners) > 0 {
		return GuardResult{
			Allowed: false,
			Reason: fmt.Sprintf("item %d still referenced by unresolved owners (%s)",
				ctx.DuplicateID, strings.Join(ctx.UnresolvedOwners, ", ")),
		}
	}
	return GuardResult{Allowed: true}
}
