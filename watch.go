package main

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/config"
)

const watchDebounce = 2 * time.Second

// newWatchCmd implements `dfb watch`, a continuous-backup workflow
// supplementing spec.md's on-demand model (SPEC_FULL.md's CLI section):
// it watches the source tree for changes and triggers a debounced backup
// run on activity, reloading configuration on SIGHUP via a
// config.Holder so a running watch picks up edited target settings
// without a restart.
func newWatchCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "watch",
		Short: "Continuously back up the source tree as it changes",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())

			if err := requireLocalSource(cc.Target); err != nil {
				return err
			}

			return runWatch(cmd.Context(), cc)
		},
	}
}

func runWatch(ctx context.Context, cc *CLIContext) error {
	holder := config.NewHolder(cc.Target, flagConfigPath)

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("creating filesystem watcher: %w", err)
	}
	defer watcher.Close()

	if err := addRecursive(watcher, holder.Target().Source.Location); err != nil {
		return fmt.Errorf("watching source tree: %w", err)
	}

	sighup := make(chan os.Signal, 1)
	signal.Notify(sighup, syscall.SIGHUP)
	defer signal.Stop(sighup)

	cc.Logger.Info("watch: started", "source", holder.Target().Source.Location)

	var debounce *time.Timer
	trigger := make(chan struct{}, 1)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()

		case sig, ok := <-watcher.Events:
			if !ok {
				return nil
			}

			cc.Logger.Debug("watch: event", "name", sig.Name, "op", sig.Op.String())

			if sig.Op&fsnotify.Create != 0 {
				if info, statErr := os.Stat(sig.Name); statErr == nil && info.IsDir() {
					if addErr := watcher.Add(sig.Name); addErr != nil {
						cc.Logger.Warn("watch: failed to add new directory", "path", sig.Name, "error", addErr)
					}
				}
			}

			if debounce != nil {
				debounce.Stop()
			}

			debounce = time.AfterFunc(watchDebounce, func() {
				select {
				case trigger <- struct{}{}:
				default:
				}
			})

		case err, ok := <-watcher.Errors:
			if !ok {
				return nil
			}

			cc.Logger.Warn("watch: watcher error", "error", err)

		case <-sighup:
			cc.Logger.Info("watch: SIGHUP received, reloading configuration")

			reloaded, reloadErr := reloadTarget(holder.Path(), cc.Target.Name)
			if reloadErr != nil {
				cc.Logger.Error("watch: config reload failed, keeping previous target", "error", reloadErr)

				continue
			}

			holder.Update(reloaded)

		case <-trigger:
			runCC := &CLIContext{Target: holder.Target(), Cfg: cc.Cfg, Logger: cc.Logger}

			report, runErr := performBackup(ctx, runCC)
			if runErr != nil {
				cc.Logger.Error("watch: triggered backup failed", "error", runErr)

				continue
			}

			cc.Logger.Info("watch: triggered backup finished",
				"succeeded", report.Succeeded, "errors", len(report.Errors))
		}
	}
}

// reloadTarget re-resolves targetName from the config file at path,
// picking up any edits made since the watch started.
func reloadTarget(path, targetName string) (*config.ResolvedTarget, error) {
	cli := config.CLIOverrides{ConfigPath: path, Target: targetName}
	resolved, _, err := config.ResolveTarget(config.EnvOverrides{}, cli, buildLogger(nil))

	return resolved, err
}

// addRecursive adds root and every subdirectory beneath it to watcher,
// since fsnotify watches are not recursive on their own.
func addRecursive(watcher *fsnotify.Watcher, root string) error {
	return filepath.WalkDir(root, func(p string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}

		if d.IsDir() {
			return watcher.Add(p)
		}

		return nil
	})
}
