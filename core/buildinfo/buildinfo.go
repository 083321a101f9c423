// Package buildinfo carries version stamps set at link time, e.g.
//
//	go build -ldflags "-X github.com/m3rciful/schoolbot/core/buildinfo.Version=v0.4.0 \
//	  -X github.com/m3rciful/schoolbot/core/buildinfo.Commit=$(git rev-parse --short HEAD)"
package buildinfo

import "strings"

var (
	Version = "dev"
	Commit  = "local"
	// Date is the build time in RFC3339, empty for local builds.
	Date = ""
)

// String renders the stamps as "v0.4.0 (abc1234, 2025-01-02T15:04:05Z)".
func String() string {
	var b strings.Builder
	b.WriteString(Version)
	b.WriteString(" (")
	b.WriteString(Commit)
	if Date != "" {
		b.WriteString(", ")
		b.WriteString(Date)
	}
	b.WriteString(")")
	return b.String()
}
