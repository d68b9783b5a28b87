// Package version records versioning information about this module.
package version

import (
	"fmt"
	"runtime/debug"
)

// These constants determine the version of this module when it is not
// built from a tagged release.
const (
	Major      = 0
	Minor      = 1
	Patch      = 0
	PreRelease = "devel"
)

// String returns the module version recorded by the Go toolchain for
// binaries installed from a tagged release, and otherwise the version given
// by the constants above in semver format.
//
// Examples:
//
//	v0.1.0
//	v0.2.0-rc.1
func String() string {
	if info, ok := debug.ReadBuildInfo(); ok && info.Main.Version != "" && info.Main.Version != "(devel)" {
		return info.Main.Version
	}
	v := fmt.Sprintf("v%d.%d.%d", Major, Minor, Patch)
	if PreRelease != "" {
		v += "-" + PreRelease
	}
	return v
}
