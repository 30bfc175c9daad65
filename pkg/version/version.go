// Package version carries the build metadata stamped into the relkit binary
// with -ldflags at release time.
package version

import "fmt"

// Populated by the linker; an unstamped build is a plain dev binary.
var (
	Version    = "dev"
	CommitHash = "unknown"
	BuildDate  = "unknown"
)

// Summary returns the one-line string printed by `relkit version`, for
// example "relkit v1.2.0 (commit 3f2a91c, built 2026-08-01)".
func Summary() string {
	if CommitHash == "unknown" && BuildDate == "unknown" {
		return fmt.Sprintf("relkit %s", Version)
	}
	return fmt.Sprintf("relkit %s (commit %s, built %s)", Version, CommitHash, BuildDate)
}
