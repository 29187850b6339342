package torchext

import (
	"fmt"
	"strconv"
	"strings"
)

// CMake build configurations.
const (
	BuildTypeDebug   = "Debug"
	BuildTypeRelease = "Release"
)

// debugEnvVar selects a Debug build when the caller leaves Debug unset.
const debugEnvVar = "REL_WITH_DEB_INFO"

// ResolveBuildType returns Debug or Release.
//
// An explicit debug value wins. Otherwise REL_WITH_DEB_INFO is read through
// lookup and parsed as an integer after trimming whitespace; unset or blank
// means 0, nonzero means Debug.
func ResolveBuildType(debug *bool, lookup func(string) (string, bool)) (string, error) {
	if debug != nil {
		if *debug {
			return BuildTypeDebug, nil
		}
		return BuildTypeRelease, nil
	}

	raw, ok := lookup(debugEnvVar)
	if !ok || strings.TrimSpace(raw) == "" {
		return BuildTypeRelease, nil
	}

	level, err := strconv.Atoi(strings.TrimSpace(raw))
	if err != nil {
		return "", fmt.Errorf("%w: %s=%q is not an integer", ErrInvalidBuildType, debugEnvVar, raw)
	}

	if level != 0 {
		return BuildTypeDebug, nil
	}
	return BuildTypeRelease, nil
}
