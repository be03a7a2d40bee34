package runner

import (
	"fmt"

	"github.com/bft-labs/webrun/pkg/lifecycle"
	"github.com/bft-labs/webrun/pkg/log"
)

// validateModuleVersions checks that all module versions are compatible, and
// that every listener declaring a lifecycle version was built against one
// this lifecycle module supports.
func validateModuleVersions(listeners []lifecycle.NamedListener) error {
	modules := map[string]struct {
		version    string
		minVersion string
	}{
		"lifecycle": {lifecycle.Version, lifecycle.MinCompatibleVersion},
		"log":       {log.Version, log.MinCompatibleVersion},
	}

	for name, m := range modules {
		if !isVersionCompatible(m.version, m.minVersion) {
			return fmt.Errorf("module %s version %s is below minimum compatible version %s",
				name, m.version, m.minVersion)
		}
	}

	for _, nl := range listeners {
		v, ok := nl.Listener.(lifecycle.Versioned)
		if !ok {
			continue
		}
		want := v.LifecycleVersion()
		if !isVersionCompatible(want, lifecycle.MinCompatibleVersion) {
			return fmt.Errorf("listener %s built for lifecycle %s, minimum supported is %s",
				nl.Name, want, lifecycle.MinCompatibleVersion)
		}
		if !isVersionCompatible(lifecycle.Version, want) {
			return fmt.Errorf("listener %s requires lifecycle %s, have %s",
				nl.Name, want, lifecycle.Version)
		}
	}

	return nil
}

// isVersionCompatible checks if version >= minVersion using semantic versioning.
// Assumes versions are in format "major.minor.patch".
func isVersionCompatible(version, minVersion string) bool {
	var vMajor, vMinor, vPatch int
	var mMajor, mMinor, mPatch int

	_, _ = fmt.Sscanf(version, "%d.%d.%d", &vMajor, &vMinor, &vPatch)
	_, _ = fmt.Sscanf(minVersion, "%d.%d.%d", &mMajor, &mMinor, &mPatch)

	if vMajor != mMajor {
		return vMajor > mMajor
	}
	if vMinor != mMinor {
		return vMinor > mMinor
	}
	return vPatch >= mPatch
}
