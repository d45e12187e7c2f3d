package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/config"
)

// version is set at build time via ldflags.
var version = "dev"

// Global persistent flags, bound in newRootCmd().
var (
	flagConfigPath     string
	flagTarget         string
	flagSubdir         string
	flagJSON           bool
	flagVerbose        bool
	flagDebug          bool
	flagQuiet          bool
	flagBandwidthLimit string
)

// skipConfigAnnotation marks commands that handle config loading
// themselves (the `config` subcommands, which must work before a config
// file exists).
const skipConfigAnnotation = "skipConfig"

// CLIContext bundles the resolved target, the raw configuration (needed
// by commands that list or display every target), and a logger. Built
// once in PersistentPreRunE and threaded through cmd.Context(), mirroring
// the teacher's CLIContext-in-context pattern.
type CLIContext struct {
	Target *config.ResolvedTarget
	Cfg    *config.Configuration
	Logger *slog.Logger
}

type cliContextKey struct{}

func cliContextFrom(ctx context.Context) *CLIContext {
	cc, ok := ctx.Value(cliContextKey{}).(*CLIContext)
	if !ok {
		return nil
	}

	return cc
}

// mustCLIContext extracts the CLIContext or panics with an actionable
// message. RunE handlers for commands without skipConfigAnnotation may
// rely on PersistentPreRunE having populated it.
func mustCLIContext(ctx context.Context) *CLIContext {
	cc := cliContextFrom(ctx)
	if cc == nil {
		panic("BUG: CLIContext not found in context — ensure the command " +
			"does not carry skipConfigAnnotation, or loads config explicitly in its RunE")
	}

	return cc
}

// newRootCmd builds and returns the fully-assembled root command with all
// subcommands registered. Called once from main().
func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:     "dfb",
		Short:   "Dated file backup — an append-only, versioned backup engine",
		Long:    "dfb stores every version of every source file as its own timestamped destination artifact, never overwriting or deleting in place.",
		Version: version,
		// Silence Cobra's default error/usage printing — we handle it ourselves.
		SilenceErrors: true,
		SilenceUsage:  true,
		PersistentPreRunE: func(cmd *cobra.Command, _ []string) error {
			if cmd.Annotations[skipConfigAnnotation] == "true" {
				return nil
			}

			return loadConfig(cmd)
		},
	}

	cmd.PersistentFlags().StringVar(&flagConfigPath, "config", "", "config file path")
	cmd.PersistentFlags().StringVar(&flagTarget, "target", "", "target name (auto-selected if the config defines exactly one)")
	cmd.PersistentFlags().StringVar(&flagSubdir, "subdir", "", "restrict the run to this subdirectory of the target")
	cmd.PersistentFlags().BoolVar(&flagJSON, "json", false, "output in JSON format")
	cmd.PersistentFlags().BoolVarP(&flagVerbose, "verbose", "v", false, "show detailed output")
	cmd.PersistentFlags().BoolVar(&flagDebug, "debug", false, "enable debug logging")
	cmd.PersistentFlags().BoolVarP(&flagQuiet, "quiet", "q", false, "suppress informational output")
	cmd.PersistentFlags().StringVar(&flagBandwidthLimit, "bandwidth-limit", "", "throttle destination transfers, e.g. \"5MB/s\" (0 or empty disables)")

	cmd.MarkFlagsMutuallyExclusive("verbose", "debug", "quiet")

	cmd.AddCommand(newBackupCmd())
	cmd.AddCommand(newAtCmd())
	cmd.AddCommand(newVersionsCmd())
	cmd.AddCommand(newTreeCmd())
	cmd.AddCommand(newPruneCmd())
	cmd.AddCommand(newRefreshCmd())
	cmd.AddCommand(newDBImportCmd())
	cmd.AddCommand(newDumpCmd())
	cmd.AddCommand(newLoadDumpCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newConfigCmd())

	return cmd
}

// loadConfig resolves the effective target from the four-layer override
// chain and stores the result in the command's context for use by
// subcommands.
func loadConfig(cmd *cobra.Command) error {
	logger := buildLogger(nil)

	cli := config.CLIOverrides{ConfigPath: flagConfigPath}

	if cmd.Flags().Changed("target") {
		cli.Target = flagTarget
	}

	if cmd.Flags().Changed("subdir") {
		cli.Subdir = flagSubdir
	}

	env := config.ReadEnvOverrides()

	logger.Debug("resolving config",
		slog.String("config_path", cli.ConfigPath),
		slog.String("cli_target", cli.Target),
		slog.String("env_config", env.ConfigPath),
		slog.String("env_target", env.Target),
	)

	resolved, cfg, err := config.ResolveTarget(env, cli, logger)
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger.Debug("config resolved",
		slog.String("target", resolved.Name),
		slog.String("config_id", resolved.ConfigID),
		slog.String("destination", resolved.Destination.String()),
	)

	finalLogger := buildLogger(cfg)
	cc := &CLIContext{Target: resolved, Cfg: cfg, Logger: finalLogger}

	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	cmd.SetContext(context.WithValue(ctx, cliContextKey{}, cc))

	return nil
}

// buildLogger creates an slog.Logger configured by the config file's
// log level and the CLI's verbosity flags. Pass nil for pre-config
// bootstrap logging. CLI flags always win over the config file, and are
// mutually exclusive (enforced by Cobra).
func buildLogger(cfg *config.Configuration) *slog.Logger {
	level := slog.LevelWarn

	if cfg != nil {
		switch cfg.LogLevel {
		case "debug":
			level = slog.LevelDebug
		case "info":
			level = slog.LevelInfo
		case "error":
			level = slog.LevelError
		}
	}

	if flagVerbose {
		level = slog.LevelInfo
	}

	if flagDebug {
		level = slog.LevelDebug
	}

	if flagQuiet {
		level = slog.LevelError
	}

	return slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level}))
}

// exitOnError prints a user-friendly error message to stderr and exits.
func exitOnError(err error) {
	fmt.Fprintf(os.Stderr, "Error: %v\n", err)
	os.Exit(1)
}
