package cli

import (
	"fmt"
	"io"

	"github.com/fatih/color"

	"github.com/example/filedupe/internal/ports/primary"
)

func outcomeLabel(o primary.ReplaceOutcome) string {
	switch o {
	case primary.OutcomeDeleted:
		return color.New(color.FgGreen).Sprint("DELETED")
	case primary.OutcomeKept:
		return color.New(color.FgBlue).Sprint("KEPT")
	case primary.OutcomeSkipped:
		return color.New(color.FgYellow).Sprint("SKIPPED")
	default:
		return string(o)
	}
}

func kindLabel(exact bool) string {
	if exact {
		return color.New(color.FgGreen).Sprint("exact")
	}
	return color.New(color.FgYellow).Sprint("possible")
}

func percent(p *primary.Progress) int {
	if p.Total == 0 {
		if p.Finished {
			return 100
		}
		return 0
	}
	return p.Processed * 100 / p.Total
}

func printProgress(w io.Writer, p *primary.Progress) {
	fmt.Fprintf(w, "  [%3d%%] %d/%d  %s\n", percent(p), p.Processed, p.Total, p.Message)
}

func printReplaceResult(w io.Writer, r *primary.ReplaceResult) {
	fmt.Fprintf(w, "%s file %d -> %d (%d occurrences)\n", outcomeLabel(r.Outcome), r.DuplicateID, r.OriginalID, r.Occurrences())
	if r.Reason != "" {
		fmt.Fprintf(w, "  Reason: %s\n", r.Reason)
	}
	for _, rec := range r.Records {
		fmt.Fprintf(w, "  %s/%s %s: %d\n", rec.OwnerModule, rec.RecordType, rec.RecordID, rec.Occurrences)
	}
	for _, owner := range r.UnresolvedOwners {
		fmt.Fprintf(w, "  %s records owned by %s have no storage handler; references left in place\n", color.New(color.FgRed).Sprint("!"), owner)
	}
}
