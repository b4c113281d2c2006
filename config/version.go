package config

// Build-time variables, set via -ldflags.
var (
	Version   = "1.0.0"
	BuildTime = "unknown"
	GitCommit = "unknown"
)

// GetVersion returns the running build's version string.
func GetVersion() string {
	return Version
}
