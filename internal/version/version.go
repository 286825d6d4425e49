// Package version carries build metadata injected with -ldflags, e.g.
//
//	go build -ldflags "-X hyperliquid-watch/internal/version.Version=v0.3.0" ./cmd/hlwatch
package version

import "fmt"

var (
	Version   = "dev"
	Commit    = "unknown"
	BuildDate = "unknown"
)

// String renders the build information printed by `hlwatch version`.
func String() string {
	return fmt.Sprintf("version: %s\ncommit: %s\nbuilt: %s\n", Version, Commit, BuildDate)
}
