package config

import (
	"bytes"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/BurntSushi/toml"
)

// Load reads and parses a TOML config file using a two-pass decode,
// validates it, and returns the resulting Configuration. Pass 1 decodes
// flat global settings. Pass 2 extracts target sections (every top-level
// table key that isn't a known global key) from the raw map.
func Load(path string, logger *slog.Logger) (*Configuration, error) {
	logger.Debug("loading config file", "path", path)

	cfg := DefaultConfiguration()

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading config file %s: %w", path, err)
	}

	if _, err := toml.Decode(string(data), cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := decodeTargetSections(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config file %s: %w", path, err)
	}

	if err := Validate(cfg); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}

	logger.Debug("config file parsed successfully", "path", path, "target_count", len(cfg.Targets))

	return cfg, nil
}

// decodeTargetSections performs the second TOML decode pass to extract
// target sections: every top-level table key other than a known global
// key names a target.
func decodeTargetSections(data []byte, cfg *Configuration) error {
	var rawMap map[string]any
	if _, err := toml.Decode(string(data), &rawMap); err != nil {
		return fmt.Errorf("target sections: %w", err)
	}

	for key, val := range rawMap {
		if knownGlobalKeys[key] {
			continue
		}

		targetMap, ok := val.(map[string]any)
		if !ok {
			return fmt.Errorf("top-level key %q must be a target table or a recognized global setting", key)
		}

		if err := checkTargetUnknownKeys(targetMap, key); err != nil {
			return err
		}

		target := DefaultTarget()
		if err := mapToTarget(targetMap, &target); err != nil {
			return fmt.Errorf("target [%q]: %w", key, err)
		}

		cfg.Targets[key] = target
	}

	return nil
}

// mapToTarget converts a raw map to a Target struct by re-encoding as
// TOML and decoding into the typed struct on top of its current (default)
// values. This reuses the TOML library's own type coercion rather than
// hand-writing map extraction for each field.
func mapToTarget(m map[string]any, t *Target) error {
	var buf bytes.Buffer

	enc := toml.NewEncoder(&buf)
	if err := enc.Encode(m); err != nil {
		return fmt.Errorf("encoding target data: %w", err)
	}

	if _, err := toml.Decode(buf.String(), t); err != nil {
		return fmt.Errorf("decoding target data: %w", err)
	}

	return nil
}

// LoadOrDefault reads a TOML config file if it exists, otherwise returns a
// Configuration populated with defaults and no targets. This supports a
// zero-config `dfb config init` experience.
func LoadOrDefault(path string, logger *slog.Logger) (*Configuration, error) {
	if _, err := os.Stat(path); errors.Is(err, os.ErrNotExist) {
		logger.Debug("config file not found, using defaults", "path", path)

		return DefaultConfiguration(), nil
	}

	return Load(path, logger)
}

// CLIOverrides holds values supplied directly via CLI flags, the final
// (highest-priority) layer of the four-layer override chain.
type CLIOverrides struct {
	ConfigPath string
	Target     string
	Subdir     string
}

// ResolveTarget loads configuration and applies the four-layer override
// chain: defaults -> config file -> environment variables -> CLI flags.
// It returns the fully resolved target and the raw parsed configuration
// (needed by callers that list or display all targets).
func ResolveTarget(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) (*ResolvedTarget, *Configuration, error) {
	cfgPath := ResolveConfigPath(env, cli, logger)

	cfg, err := LoadOrDefault(cfgPath, logger)
	if err != nil {
		return nil, nil, fmt.Errorf("loading config: %w", err)
	}

	name := env.Target
	if cli.Target != "" {
		name = cli.Target
	}

	logger.Debug("target selector resolved", "target", name, "source_env", env.Target, "source_cli", cli.Target)

	targetName, target, err := SelectTarget(cfg, name, logger)
	if err != nil {
		return nil, nil, err
	}

	resolved, err := buildResolvedTarget(cfg, targetName, &target, logger)
	if err != nil {
		return nil, nil, err
	}

	if cli.Subdir != "" {
		resolved.Subdir = cli.Subdir
		logger.Debug("CLI override applied", "field", "subdir", "value", cli.Subdir)
	}

	if err := ValidateResolved(resolved); err != nil {
		return nil, nil, fmt.Errorf("config validation: %w", err)
	}

	return resolved, cfg, nil
}

// ResolveConfigPath determines the config file path using the three-layer
// priority: CLI flag > environment variable > platform default.
func ResolveConfigPath(env EnvOverrides, cli CLIOverrides, logger *slog.Logger) string {
	cfgPath := DefaultConfigPath()
	source := "default"

	if env.ConfigPath != "" {
		cfgPath = env.ConfigPath
		source = "env"
	}

	if cli.ConfigPath != "" {
		cfgPath = cli.ConfigPath
		source = "cli"
	}

	logger.Debug("config path resolved", "path", cfgPath, "source", source)

	return cfgPath
}
