package lifecycle

// Version information for the lifecycle module.
const (
	// Version is the current version of the lifecycle module.
	Version = "2.0.0"

	// MinCompatibleVersion is the minimum version that is compatible with this version.
	MinCompatibleVersion = "2.0.0"
)

// Versioned is implemented by listeners that declare the lifecycle version
// they were built against. The runner refuses listeners whose version is
// outside [MinCompatibleVersion, Version].
type Versioned interface {
	LifecycleVersion() string
}
