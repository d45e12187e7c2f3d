package config

import (
	"cmp"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"slices"
	"strings"

	"github.com/Jwink3101/dfb/internal/core"
)

// compareAttributes maps the TOML `compare` string to core.CompareAttribute.
var compareAttributes = map[string]core.CompareAttribute{
	"hash":  core.CompareHash,
	"mtime": core.CompareMtime,
	"size":  core.CompareSize,
}

// renameDetections maps the TOML `rename_detection` string to
// core.RenameDetection. "false" disables rename tracking entirely.
var renameDetections = map[string]core.RenameDetection{
	"hash":  core.RenameByHash,
	"mtime": core.RenameByMtime,
	"false": core.RenameDisabled,
}

// SelectTarget picks one target from the config by name. If name is
// empty, it auto-selects when the config defines exactly one target —
// mirroring the teacher's single-drive auto-selection convenience for the
// common single-target setup.
func SelectTarget(cfg *Configuration, name string, logger *slog.Logger) (string, Target, error) {
	if len(cfg.Targets) == 0 {
		return "", Target{}, fmt.Errorf("no targets configured")
	}

	if name == "" {
		return selectSingleTarget(cfg, logger)
	}

	t, ok := cfg.Targets[name]
	if !ok {
		return "", Target{}, fmt.Errorf("no target named %q (known: %s)", name, targetNames(cfg))
	}

	return name, t, nil
}

func selectSingleTarget(cfg *Configuration, logger *slog.Logger) (string, Target, error) {
	if len(cfg.Targets) == 1 {
		for name, t := range cfg.Targets {
			logger.Debug("auto-selected single target", "target", name)

			return name, t, nil
		}
	}

	return "", Target{}, fmt.Errorf("multiple targets configured — specify one with --target: %s", targetNames(cfg))
}

func targetNames(cfg *Configuration) string {
	names := make([]string, 0, len(cfg.Targets))
	for name := range cfg.Targets {
		names = append(names, name)
	}

	slices.Sort(names)

	return strings.Join(names, ", ")
}

// buildResolvedTarget merges global defaults with a target's file/env/CLI
// layers into a ResolvedTarget, per spec.md §3.
func buildResolvedTarget(cfg *Configuration, name string, t *Target, logger *slog.Logger) (*ResolvedTarget, error) {
	src, err := ParseEndpoint(t.Source)
	if err != nil {
		return nil, fmt.Errorf("target %q: source: %w", name, err)
	}

	dst, err := ParseEndpoint(t.Destination)
	if err != nil {
		return nil, fmt.Errorf("target %q: destination: %w", name, err)
	}

	compare, ok := compareAttributes[t.Compare]
	if !ok {
		return nil, fmt.Errorf("target %q: compare: unrecognized value %q", name, t.Compare)
	}

	renameDetection, ok := renameDetections[t.RenameDetection]
	if !ok {
		return nil, fmt.Errorf("target %q: rename_detection: unrecognized value %q", name, t.RenameDetection)
	}

	minRefSize, err := ParseSize(t.MinReferenceSize)
	if err != nil {
		return nil, fmt.Errorf("target %q: min_reference_size: %w", name, err)
	}

	configID := t.ConfigID
	if configID == "" {
		configID = name
	}

	cacheDir := expandTilde(cfg.CacheDir)
	if cacheDir == "" {
		cacheDir = DefaultCacheDir()
	}

	return &ResolvedTarget{
		Name:                name,
		Source:              src,
		Destination:         dst,
		Compare:             compare,
		RenameDetection:     renameDetection,
		CompareName:         t.Compare,
		RenameDetectionName: t.RenameDetection,
		Subdir:              t.Subdir,
		TrackMoves:          t.TrackMoves,
		ServerSideCopyMoves: t.ServerSideCopyMoves,
		EmptyDirMarkers:     t.EmptyDirMarkers,
		DisablePrune:        t.DisablePrune,
		MinReferenceSize:    minRefSize,
		KeepVersions:        t.KeepVersions,
		Workers:             t.Workers,
		ConfigID:            configID,
		CacheDir:            cacheDir,
	}, nil
}

// expandTilde replaces a leading "~/" with the user's home directory. If
// os.UserHomeDir fails the path is returned unexpanded; Validate catches
// any resulting relative path downstream.
func expandTilde(path string) string {
	if !strings.HasPrefix(path, "~/") {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		slog.Debug("expandTilde: could not determine home directory", "error", err)

		return path
	}

	return filepath.Join(home, path[2:])
}

// sortedTargetNames returns every configured target name in sorted,
// deterministic order.
func sortedTargetNames(cfg *Configuration) []string {
	names := make([]string, 0, len(cfg.Targets))
	for name := range cfg.Targets {
		names = append(names, name)
	}

	slices.SortFunc(names, cmp.Compare)

	return names
}
