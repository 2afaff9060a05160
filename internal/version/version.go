// Package version holds the application version string.
package version

import (
	"strings"
)

// Version is the application version, set at build time.
var Version = "1.4.2"

// legacyBuildMarker is the suffix carried by the version string of builds that
// keep their registration code across a factory reset.
const legacyBuildMarker = "o"

// PreservesRegistration reports whether a build with the given version string
// keeps its registration code across a factory reset.
func PreservesRegistration(v string) bool {
	return strings.HasSuffix(v, legacyBuildMarker)
}
