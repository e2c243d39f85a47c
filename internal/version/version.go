// Package version holds build metadata stamped in with -ldflags -X.
package version

import (
	"fmt"
	"runtime/debug"
)

var (
	// Version is the release tag, or "dev" for local builds.
	Version = "dev"
	// GitSHA is the commit the binary was built from.
	GitSHA = "unknown"
	// BuildTime is the build timestamp.
	BuildTime = "unknown"
)

// Revision returns GitSHA, falling back to the VCS revision the Go
// toolchain embeds when the binary was not built with -ldflags.
func Revision() string {
	if GitSHA != "unknown" {
		return GitSHA
	}
	info, ok := debug.ReadBuildInfo()
	if !ok {
		return GitSHA
	}
	for _, s := range info.Settings {
		if s.Key == "vcs.revision" && s.Value != "" {
			if len(s.Value) > 12 {
				return s.Value[:12]
			}
			return s.Value
		}
	}
	return GitSHA
}

// String formats the build metadata for a program named name.
func String(name string) string {
	return fmt.Sprintf("%s %s (%s, built %s)", name, Version, Revision(), BuildTime)
}
