// Package version holds build-time version metadata. The variables are
// overridden at link time via -ldflags.
package version

import "fmt"

var (
	// Version is the semantic version of this build.
	Version = "0.1.0-dev"
	// Commit is the git commit hash the build was produced from.
	Commit = "unknown"
	// Date is the build timestamp.
	Date = "unknown"
)

// Short returns just the semantic version.
func Short() string {
	return Version
}

// Info returns a single-line human-readable version string.
func Info() string {
	return fmt.Sprintf("frostline %s (commit %s, built %s)", Version, Commit, Date)
}

// Map returns the version fields as a map for JSON payloads.
func Map() map[string]string {
	return map[string]string{
		"version": Version,
		"commit":  Commit,
		"date":    Date,
	}
}
