package version

import (
	"fmt"
	"runtime/debug"
)

// Set with -ldflags "-X kevfeed/internal/version.Version=... -X kevfeed/internal/version.Revision=...".
var (
	Version  string
	Revision string
)

func String() string {
	if Version != "" && Revision != "" {
		return fmt.Sprintf("kevfeed %s %s", Version, Revision)
	}

	if info, ok := debug.ReadBuildInfo(); ok {
		return fmt.Sprintf("kevfeed %s", info.Main.Version)
	}

	return fmt.Sprintf("kevfeed %s", "(unknown)")
}
