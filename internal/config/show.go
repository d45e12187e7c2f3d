package config

import (
	"fmt"
	"io"
)

// RenderEffective writes the resolved target as a human-readable annotated
// summary to w. This powers `dfb config show`, giving users visibility
// into the effective values after all four override layers
// (defaults -> file -> env -> CLI) have been applied.
func RenderEffective(rt *ResolvedTarget, w io.Writer) error {
	ew := &errWriter{w: w}

	ew.printf("# Effective configuration for target %q\n\n", rt.Name)

	ew.printf("  source                 = %q\n", rt.Source.String())
	ew.printf("  destination            = %q\n", rt.Destination.String())
	ew.printf("  compare                = %s\n", rt.CompareName)
	ew.printf("  rename_detection       = %s\n", rt.RenameDetectionName)

	if rt.Subdir != "" {
		ew.printf("  subdir                 = %q\n", rt.Subdir)
	}

	ew.printf("  track_moves            = %t\n", rt.TrackMoves)
	ew.printf("  server_side_copy_moves = %t\n", rt.ServerSideCopyMoves)
	ew.printf("  empty_dir_markers      = %t\n", rt.EmptyDirMarkers)
	ew.printf("  disable_prune          = %t\n", rt.DisablePrune)
	ew.printf("  min_reference_size     = %d bytes\n", rt.MinReferenceSize)
	ew.printf("  keep_versions          = %d\n", rt.KeepVersions)
	ew.printf("  workers                = %d\n", rt.Workers)
	ew.printf("  config_id              = %q\n", rt.ConfigID)
	ew.printf("  cache_dir              = %q\n", rt.CacheDir)
	ew.printf("  index_path             = %q\n", rt.IndexPath())

	return ew.err
}

// errWriter wraps an io.Writer and captures the first write error.
// Subsequent writes after an error are no-ops, so callers can chain
// printf calls without checking each one individually.
type errWriter struct {
	w   io.Writer
	err error
}

func (ew *errWriter) printf(format string, args ...any) {
	if ew.err != nil {
		return
	}

	_, ew.err = fmt.Fprintf(ew.w, format, args...)
}
