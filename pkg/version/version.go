// Package version holds the firmware version and parses configuration
// format versions.
package version

import (
	"fmt"
	"runtime"
	"strconv"
	"strings"
)

// Current is the configuration format version understood by this build.
const Current = "1.0"

// Firmware is the build version, set with -ldflags "-X".
var Firmware = "dev"

// Format is a parsed "major.minor" format version.
type Format struct {
	Major uint16
	Minor uint16
}

// Parse parses a "major.minor" version string.
func Parse(s string) (Format, error) {
	parts := strings.Split(s, ".")
	if len(parts) != 2 {
		return Format{}, fmt.Errorf("invalid version %q: expected major.minor", s)
	}

	major, err := strconv.ParseUint(parts[0], 10, 16)
	if err != nil || parts[0] == "" {
		return Format{}, fmt.Errorf("invalid version %q: bad major component", s)
	}

	minor, err := strconv.ParseUint(parts[1], 10, 16)
	if err != nil || parts[1] == "" {
		return Format{}, fmt.Errorf("invalid version %q: bad minor component", s)
	}

	return Format{Major: uint16(major), Minor: uint16(minor)}, nil
}

// String returns the version as "major.minor".
func (v Format) String() string {
	return fmt.Sprintf("%d.%d", v.Major, v.Minor)
}

// Compatible returns true if the other version has the same major version.
func (v Format) Compatible(other Format) bool {
	return v.Major == other.Major
}

// Info describes the build for logs and the console.
func Info() string {
	return fmt.Sprintf("farmhub %s (config %s, %s %s/%s)",
		Firmware, Current, runtime.Version(), runtime.GOOS, runtime.GOARCH)
}
