package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/config"
)

// newConfigCmd groups the configuration-management subcommands. Every
// child carries skipConfigAnnotation since each handles its own config
// loading (show/validate read the raw file; init must work before one
// exists at all).
func newConfigCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "config",
		Short: "Show, validate, or create the dfb configuration file",
	}

	cmd.AddCommand(newConfigShowCmd(), newConfigValidateCmd(), newConfigInitCmd())

	for _, sub := range cmd.Commands() {
		if sub.Annotations == nil {
			sub.Annotations = map[string]string{}
		}

		sub.Annotations[skipConfigAnnotation] = "true"
	}

	return cmd
}

func newConfigShowCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "show",
		Short: "Print the effective configuration for the active target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger(nil)

			cli := config.CLIOverrides{ConfigPath: flagConfigPath, Target: flagTarget, Subdir: flagSubdir}

			resolved, _, err := config.ResolveTarget(config.ReadEnvOverrides(), cli, logger)
			if err != nil {
				return fmt.Errorf("resolving configuration: %w", err)
			}

			return config.RenderEffective(resolved, cmd.OutOrStdout())
		},
	}
}

func newConfigValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate",
		Short: "Validate the configuration file without resolving a target",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger(nil)

			path := config.ResolveConfigPath(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: flagConfigPath}, logger)

			cfg, err := config.Load(path, logger)
			if err != nil {
				return fmt.Errorf("%s: %w", path, err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "%s: valid (%d target(s))\n", path, len(cfg.Targets))

			return nil
		},
	}
}

func newConfigInitCmd() *cobra.Command {
	var (
		targetName  string
		source      string
		destination string
	)

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Create a new configuration file, or append a target to an existing one",
		RunE: func(cmd *cobra.Command, _ []string) error {
			logger := buildLogger(nil)

			if targetName == "" || source == "" || destination == "" {
				return fmt.Errorf("--target, --source, and --destination are all required")
			}

			path := config.ResolveConfigPath(config.ReadEnvOverrides(), config.CLIOverrides{ConfigPath: flagConfigPath}, logger)

			if _, err := os.Stat(path); err == nil {
				if err := config.AppendTargetSection(path, targetName, source, destination, logger); err != nil {
					return fmt.Errorf("appending target: %w", err)
				}
			} else {
				if err := config.WriteInitialConfig(path, targetName, source, destination, logger); err != nil {
					return fmt.Errorf("creating config: %w", err)
				}
			}

			fmt.Fprintf(cmd.OutOrStdout(), "wrote target %q to %s\n", targetName, path)

			return nil
		},
	}

	cmd.Flags().StringVar(&targetName, "target", "", "name of the target section to write")
	cmd.Flags().StringVar(&source, "source", "", `source endpoint handle, e.g. "local:/home/me/docs"`)
	cmd.Flags().StringVar(&destination, "destination", "", `destination endpoint handle, e.g. "local:/mnt/backup/home"`)

	return cmd
}
