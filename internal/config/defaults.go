package config

// Default values for configuration options. These represent the "layer 0"
// of the four-layer override chain and are chosen to be safe, reasonable
// starting points that work for most users without any config file.
const (
	defaultLogLevel  = "info"
	defaultLogFormat = "auto"

	defaultCompare          = "hash"
	defaultRenameDetection  = "mtime"
	defaultMinReferenceSize = "1MiB"
	defaultKeepVersions     = 0
	defaultWorkers          = 8
)

// DefaultConfiguration returns a Configuration populated with all default
// global values. This is used both as the starting point for TOML
// decoding (so unset global fields retain defaults) and as the fallback
// when no config file exists.
func DefaultConfiguration() *Configuration {
	return &Configuration{
		LogLevel:  defaultLogLevel,
		LogFormat: defaultLogFormat,
		Targets:   make(map[string]Target),
	}
}

// DefaultTarget returns a Target populated with all default per-target
// values. Pass 2 of Load (see load.go) decodes each target section on top
// of this, so unset keys in a `[name]` table retain these defaults.
func DefaultTarget() Target {
	return Target{
		Compare:             defaultCompare,
		RenameDetection:     defaultRenameDetection,
		ServerSideCopyMoves: true,
		EmptyDirMarkers:     true,
		MinReferenceSize:    defaultMinReferenceSize,
		KeepVersions:        defaultKeepVersions,
		Workers:             defaultWorkers,
	}
}
