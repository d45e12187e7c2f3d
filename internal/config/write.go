package config

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
)

// configFilePermissions is the standard permission mode for config files.
// Owner read/write, group and others read-only.
const configFilePermissions = 0o644

// configDirPermissions is the standard permission mode for config directories.
const configDirPermissions = 0o755

// configTemplate is the content written by `dfb config init` when no config
// file exists yet. Global settings are present as commented-out defaults so
// users can discover every option without reading docs. The template is
// written once; subsequent edits are the user's own.
const configTemplate = `# dfb configuration
# A target defines one source -> destination backup relationship.

# ── Global settings ──
# Uncomment and modify to override defaults.

# Logging verbosity: debug, info, warn, error
# log_level = "info"

# Logging format: auto, text, json
# log_format = "auto"

# Local cache directory for the index database and run lease file
# (default: platform standard location, e.g. ~/.cache/dfb)
# cache_dir = ""

# ── Targets ──
`

// targetSection generates the TOML text for a new target section, with
// every per-target attribute spec.md §3 names present, either set to its
// default or as a commented-out default line, so a freshly generated
// config documents itself.
func targetSection(name string, t Target) string {
	var b strings.Builder

	fmt.Fprintf(&b, "\n[%q]\n", name)
	fmt.Fprintf(&b, "source      = %q\n", t.Source)
	fmt.Fprintf(&b, "destination = %q\n", t.Destination)
	fmt.Fprintf(&b, "\n# compare: hash, mtime, or size\ncompare = %q\n", t.Compare)
	fmt.Fprintf(&b, "\n# rename_detection: hash, mtime, or false\nrename_detection = %q\n", t.RenameDetection)
	fmt.Fprintf(&b, "\n# subdir = \"\"\n")
	fmt.Fprintf(&b, "# track_moves = false\n")
	fmt.Fprintf(&b, "server_side_copy_moves = %t\n", t.ServerSideCopyMoves)
	fmt.Fprintf(&b, "empty_dir_markers      = %t\n", t.EmptyDirMarkers)
	fmt.Fprintf(&b, "# disable_prune = false\n")
	fmt.Fprintf(&b, "min_reference_size = %q\n", t.MinReferenceSize)
	fmt.Fprintf(&b, "# keep_versions = 0\n")
	fmt.Fprintf(&b, "workers = %d\n", t.Workers)
	fmt.Fprintf(&b, "# config_id = %q\n", name)

	return b.String()
}

// WriteInitialConfig creates a new config file from the default template
// plus a single target section. Used by `dfb config init` when no config
// file exists yet. The write is atomic (temp file + rename) and parent
// directories are created as needed.
func WriteInitialConfig(path, name, source, destination string, logger *slog.Logger) error {
	logger.Info("creating config file", "path", path, "target", name)

	target := DefaultTarget()
	target.Source = source
	target.Destination = destination

	content := configTemplate + targetSection(name, target)

	return atomicWriteFile(path, []byte(content))
}

// AppendTargetSection appends a new target section to an existing config
// file. Used by `dfb config init --target` against an already-initialized
// config. The write is atomic to avoid partial writes on crash.
func AppendTargetSection(path, name, source, destination string, logger *slog.Logger) error {
	logger.Info("appending target section to config", "path", path, "target", name)

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("reading config file: %w", err)
	}

	content := string(data)

	// Ensure the file ends with a newline before appending, so the new
	// section header starts on its own line.
	if content != "" && !strings.HasSuffix(content, "\n") {
		content += "\n"
	}

	target := DefaultTarget()
	target.Source = source
	target.Destination = destination

	content += targetSection(name, target)

	return atomicWriteFile(path, []byte(content))
}

// atomicWriteFile writes data to a temporary file in the same directory as
// path, then renames it to the target path. This prevents partial writes
// from corrupting the config file on crash. Parent directories are created
// as needed. Files are created with configFilePermissions (0644).
func atomicWriteFile(path string, data []byte) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, configDirPermissions); err != nil {
		return fmt.Errorf("creating config directory: %w", err)
	}

	f, err := os.CreateTemp(dir, ".config-*.tmp")
	if err != nil {
		return fmt.Errorf("creating temp file: %w", err)
	}

	tempPath := f.Name()

	// Clean up the temp file on any error path.
	succeeded := false
	defer func() {
		if !succeeded {
			os.Remove(tempPath)
		}
	}()

	if _, err := f.Write(data); err != nil {
		f.Close()

		return fmt.Errorf("writing temp file: %w", err)
	}

	// Flush data to disk before rename. Without fsync, a power loss after
	// rename could leave the file empty (rename is metadata-only on POSIX).
	if err := f.Sync(); err != nil {
		f.Close()

		return fmt.Errorf("syncing temp file: %w", err)
	}

	if err := f.Close(); err != nil {
		return fmt.Errorf("closing temp file: %w", err)
	}

	if err := os.Chmod(tempPath, configFilePermissions); err != nil {
		return fmt.Errorf("setting file permissions: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		return fmt.Errorf("renaming temp file: %w", err)
	}

	succeeded = true

	return nil
}
