// Package version holds build metadata injected with -ldflags.
package version

import "fmt"

// Set at build time via -ldflags "-X galleyprobe/internal/version.Version=..."
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

// Info returns a one-line summary of the build.
func Info() string {
	return fmt.Sprintf("galleyprobe %s (commit %s, built %s)", Version, Commit, Date)
}
