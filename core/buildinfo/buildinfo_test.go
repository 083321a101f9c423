package buildinfo

import "testing"

func TestString(t *testing.T) {
	defer func(v, c, d string) { Version, Commit, Date = v, c, d }(Version, Commit, Date)

	Version, Commit, Date = "dev", "local", ""
	if got := String(); got != "dev (local)" {
		t.Fatalf("String() = %q", got)
	}
	Version, Commit, Date = "v0.4.0", "abc1234", "2025-01-02T15:04:05Z"
	if got := String(); got != "v0.4.0 (abc1234, 2025-01-02T15:04:05Z)" {
		t.Fatalf("String() = %q", got)
	}
}
