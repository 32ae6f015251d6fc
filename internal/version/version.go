// Package version holds build information set with -ldflags.
package version

import (
	"fmt"
	"runtime"
)

// Set at build time:
//
//	go build -ldflags "-X github.com/longkey1/chatline/internal/version.Version=v1.0.0"
var (
	Version   = "dev"
	CommitSHA = "unknown"
	BuildTime = "unknown"
)

// Short returns the version number
func Short() string {
	return Version
}

// Info returns the full version information
func Info() string {
	return fmt.Sprintf("chatline %s\n  commit: %s\n  built:  %s\n  go:     %s",
		Version, CommitSHA, BuildTime, runtime.Version())
}
