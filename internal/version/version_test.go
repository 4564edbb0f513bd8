package version

import "testing"

func TestString_ShortensCommit(t *testing.T) {
	oldVersion, oldCommit, oldBuild := Version, Commit, BuildTime
	t.Cleanup(func() { Version, Commit, BuildTime = oldVersion, oldCommit, oldBuild })

	Version, Commit, BuildTime = "v1.2.0", "0123456789abcdef", "2024-05-01"
	want := "filedupe v1.2.0 (commit: 0123456, built: 2024-05-01)"
	if got := String(); got != want {
		t.Errorf("String() = %q, want %q", got, want)
	}
}
