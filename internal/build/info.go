// Package build carries version metadata stamped in at build time.
package build

import "fmt"

// Set via -ldflags, e.g.
// -X github.com/proxlab/pvebridge/internal/build.Version=v1.2.0
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildDate = "unknown"
)

// String returns a single human-readable build info string.
func String() string {
	return fmt.Sprintf("pvebridge %s (commit %s, built %s)", Version, CommitSHA, BuildDate)
}
