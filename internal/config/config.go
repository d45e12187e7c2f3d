// Package config implements TOML configuration loading, validation, and
// platform-specific path resolution for dfb.
package config

import (
	"path/filepath"

	"github.com/Jwink3101/dfb/internal/core"
)

// Configuration is the top-level configuration structure. Global fields
// apply to every run unless a target section overrides them; target
// sections hold the source/destination handles and the per-target
// attributes spec.md §3 assigns to the "Configuration object" (compare,
// rename_detection, subdir, feature flags, config_id, minimum-reference-
// size threshold).
type Configuration struct {
	LogLevel  string `toml:"log_level"`
	LogFormat string `toml:"log_format"`
	CacheDir  string `toml:"cache_dir"`

	// Targets holds every named backup target found in the config file's
	// non-global table sections. It is populated by the second decode
	// pass in load.go, not by the TOML library's direct struct decode,
	// since target section names are user-chosen and cannot be declared
	// as a struct tag ahead of time.
	Targets map[string]Target `toml:"-"`
}

// Target is one named source-to-destination backup configuration, per
// spec.md §3's "Configuration object". A single config file may define
// several targets (e.g. "home", "photos"), each independently resolvable
// by name.
type Target struct {
	Source      string `toml:"source"`      // endpoint handle, e.g. "local:/home/me/docs"
	Destination string `toml:"destination"` // endpoint handle, e.g. "local:/mnt/backup/home"

	Compare         string `toml:"compare"`          // "hash", "mtime", or "size"
	RenameDetection string `toml:"rename_detection"` // "hash", "mtime", or "false"

	Subdir string `toml:"subdir"`

	TrackMoves          bool `toml:"track_moves"`
	ServerSideCopyMoves bool `toml:"server_side_copy_moves"`
	EmptyDirMarkers     bool `toml:"empty_dir_markers"`
	DisablePrune        bool `toml:"disable_prune"`

	MinReferenceSize string `toml:"min_reference_size"`
	KeepVersions     int    `toml:"keep_versions"`
	Workers          int    `toml:"workers"`

	// ConfigID is the stable identifier spec.md §3 and §6 key the local
	// index and lease file by. Defaults to the target's section name
	// when left blank (see buildResolvedTarget in target.go).
	ConfigID string `toml:"config_id"`
}

// ResolvedTarget is a Target after the four-layer override chain
// (defaults -> file -> env -> CLI flags) and endpoint-handle parsing have
// been applied. It is what the CLI hands to core.Planner, core.Executor,
// core.Pruner, and core.Refresher.
type ResolvedTarget struct {
	Name string

	Source      Endpoint
	Destination Endpoint

	Compare             core.CompareAttribute
	RenameDetection     core.RenameDetection
	CompareName         string // raw config value, e.g. "hash" — kept for display
	RenameDetectionName string // raw config value, e.g. "mtime" — kept for display

	Subdir string

	TrackMoves          bool
	ServerSideCopyMoves bool
	EmptyDirMarkers     bool
	DisablePrune        bool

	MinReferenceSize int64
	KeepVersions     int
	Workers          int

	ConfigID string
	CacheDir string
}

// PlannerConfig projects the resolved target down to the narrow view
// core.Planner.Plan consults.
func (rt *ResolvedTarget) PlannerConfig() core.PlannerConfig {
	return core.PlannerConfig{
		Compare:             rt.Compare,
		RenameDetection:     rt.RenameDetection,
		ServerSideCopyMoves: rt.ServerSideCopyMoves,
		EmptyDirMarkers:     rt.EmptyDirMarkers,
		ReferenceMinSize:    rt.MinReferenceSize,
	}
}

// IndexPath returns the local index database path, per spec.md §6's
// local-cache layout (`<cache_dir>/<config_id>.db`).
func (rt *ResolvedTarget) IndexPath() string {
	return filepath.Join(rt.CacheDir, rt.ConfigID+".db")
}

// PruneConfig projects the resolved target down to the narrow view
// core.Pruner.Plan consults. cutoffUnix is supplied by the caller (the
// instant a prune run is evaluated against), not stored on the target.
func (rt *ResolvedTarget) PruneConfig(cutoffUnix int64) core.PruneConfig {
	return core.PruneConfig{
		CutoffUnix:   cutoffUnix,
		KeepVersions: rt.KeepVersions,
		Subdir:       rt.Subdir,
		DisablePrune: rt.DisablePrune,
	}
}
