// Package version reports build metadata injected with -ldflags.
package version

import "fmt"

// Set at build time, e.g.
// -ldflags "-X github.com/example/filedupe/internal/version.Version=v0.3.0"
var (
	Version   = "dev"
	Commit    = "unknown"
	BuildTime = "unknown"
)

// String returns the human-readable version line.
func String() string {
	commit := Commit
	if len(commit) > 7 {
		commit = commit[:7]
	}
	return fmt.Sprintf("filedupe %s (commit: %s, built: %s)", Version, commit, BuildTime)
}
