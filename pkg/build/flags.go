// SPDX-License-Identifier: MIT
//
// Package build holds build information embedded at link time:
//
//	go build -ldflags "-X listener/pkg/build.buildVersion=0.3.0 \
//	  -X listener/pkg/build.buildCommit=$(git rev-parse --short HEAD) \
//	  -X listener/pkg/build.buildTime=$(date -u +%FT%TZ)"
//
// Development builds carry no flags and report "dev".
package build

import "fmt"

type ldFlags struct {
	Name        string
	Description string
	Time        string
	Commit      string
	Version     string
}

// Package-level variables for build information. These are populated by -ldflags
// during compilation.
var (
	buildTime    string
	buildCommit  string
	buildVersion string
	buildFlags   = &ldFlags{
		Name:        "listener",
		Description: "Serve live audio spectrum bars to a pull client",
		Time:        "unknown",
		Commit:      "unknown",
		Version:     "dev",
	}
)

// Initialize validates and copies build information from ldflags variables
// into the buildFlags struct. It returns an error naming the first missing
// flag; the defaults stay in place for anything not copied.
func Initialize() error {
	if buildTime == "" {
		return fmt.Errorf("BuildTime is required")
	}
	if buildCommit == "" {
		return fmt.Errorf("BuildCommit is required")
	}
	if buildVersion == "" {
		return fmt.Errorf("BuildVersion is required")
	}

	buildFlags.Time = buildTime
	buildFlags.Commit = buildCommit
	buildFlags.Version = buildVersion

	return nil
}

// GetBuildFlags returns the current build information.
func GetBuildFlags() *ldFlags {
	return buildFlags
}

// VersionString renders the version, commit and build time for --version.
func (f *ldFlags) VersionString() string {
	return fmt.Sprintf("%s (commit %s, built %s)", f.Version, f.Commit, f.Time)
}
