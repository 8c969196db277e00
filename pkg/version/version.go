// Package version holds the tool version stamped into backup artifacts.
package version

import (
	"fmt"

	"github.com/Masterminds/semver/v3"
)

// Version is overridden at build time with -ldflags "-X .../pkg/version.Version=x.y.z".
var Version = "1.1.0"

// Current returns the parsed tool version.
func Current() (*semver.Version, error) {
	v, err := semver.NewVersion(Version)
	if err != nil {
		return nil, fmt.Errorf("invalid tool version %q: %w", Version, err)
	}
	return v, nil
}

// Compatible reports whether an artifact written by tool version other can be
// replayed by this build. Artifacts are compatible within one major version.
func Compatible(other string) (bool, error) {
	current, err := Current()
	if err != nil {
		return false, err
	}

	v, err := semver.NewVersion(other)
	if err != nil {
		return false, fmt.Errorf("invalid artifact version %q: %w", other, err)
	}

	return v.Major() == current.Major(), nil
}
