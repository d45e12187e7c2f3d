package config

import (
	"errors"
	"fmt"
	"path/filepath"
)

const (
	minWorkers = 1
	maxWorkers = 256
)

var validCompareValues = map[string]bool{
	"hash": true, "mtime": true, "size": true,
}

var validRenameDetectionValues = map[string]bool{
	"hash": true, "mtime": true, "false": true,
}

var validLogLevels = map[string]bool{
	"debug": true, "info": true, "warn": true, "error": true,
}

var validLogFormats = map[string]bool{
	"auto": true, "text": true, "json": true,
}

// Validate checks all configuration values and returns all errors found.
// It accumulates every error rather than stopping at the first, so users
// see a complete report and can fix every issue in one pass.
func Validate(cfg *Configuration) error {
	var errs []error

	if !validLogLevels[cfg.LogLevel] {
		errs = append(errs, fmt.Errorf("log_level: must be one of debug, info, warn, error; got %q", cfg.LogLevel))
	}

	if !validLogFormats[cfg.LogFormat] {
		errs = append(errs, fmt.Errorf("log_format: must be one of auto, text, json; got %q", cfg.LogFormat))
	}

	for name, t := range cfg.Targets {
		errs = append(errs, validateTarget(name, &t)...)
	}

	return errors.Join(errs...)
}

func validateTarget(name string, t *Target) []error {
	var errs []error

	if t.Source == "" {
		errs = append(errs, fmt.Errorf("target %q: source: must not be empty", name))
	}

	if t.Destination == "" {
		errs = append(errs, fmt.Errorf("target %q: destination: must not be empty", name))
	}

	if !validCompareValues[t.Compare] {
		errs = append(errs, fmt.Errorf("target %q: compare: must be one of hash, mtime, size; got %q", name, t.Compare))
	}

	if !validRenameDetectionValues[t.RenameDetection] {
		errs = append(errs, fmt.Errorf(
			"target %q: rename_detection: must be one of hash, mtime, false; got %q", name, t.RenameDetection))
	}

	if t.MinReferenceSize != "" {
		if _, err := ParseSize(t.MinReferenceSize); err != nil {
			errs = append(errs, fmt.Errorf("target %q: min_reference_size: %w", name, err))
		}
	}

	if t.Workers != 0 && (t.Workers < minWorkers || t.Workers > maxWorkers) {
		errs = append(errs, fmt.Errorf("target %q: workers: must be between %d and %d, got %d",
			name, minWorkers, maxWorkers, t.Workers))
	}

	if t.Subdir != "" && filepath.IsAbs(t.Subdir) {
		errs = append(errs, fmt.Errorf("target %q: subdir: must be relative, got %q", name, t.Subdir))
	}

	return errs
}

// ValidateResolved checks cross-field constraints on a fully resolved
// target. Unlike Validate, which checks raw config file values, this runs
// after the four-layer override chain (defaults -> file -> env -> CLI)
// has been applied, catching constraints only meaningful on the merged
// result.
func ValidateResolved(rt *ResolvedTarget) error {
	var errs []error

	if rt.ConfigID == "" {
		errs = append(errs, errors.New("config_id: must not be empty"))
	}

	if rt.CacheDir == "" {
		errs = append(errs, errors.New("cache_dir: could not determine a default; set cache_dir explicitly"))
	} else if !filepath.IsAbs(rt.CacheDir) {
		errs = append(errs, fmt.Errorf("cache_dir: must be absolute after expansion, got %q", rt.CacheDir))
	}

	if rt.MinReferenceSize < 0 {
		errs = append(errs, fmt.Errorf("min_reference_size: must be non-negative, got %d", rt.MinReferenceSize))
	}

	return errors.Join(errs...)
}
