package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/core"
)

func newRefreshCmd() *cobra.Command {
	var sidecarPath string

	cmd := &cobra.Command{
		Use:   "refresh",
		Short: "Rebuild the index from the destination's authoritative listing",
		Long: `refresh resets the index and reconstructs it entirely by listing the
destination and decoding every object's real path (spec.md §4.8). Use
this to recover a lost or corrupted index, or after restoring a
destination from its own backup. --sidecar optionally enriches the
rebuilt rows with a previously written snapshot sidecar's modtime data.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()
			rt := cc.Target

			st, err := openIndex(ctx, rt, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer st.Close()

			drv, err := openDestination(rt, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening destination: %w", err)
			}

			var sidecars *core.SidecarReader

			if sidecarPath != "" {
				f, openErr := os.Open(sidecarPath)
				if openErr != nil {
					return fmt.Errorf("opening sidecar: %w", openErr)
				}
				defer f.Close()

				sidecars, err = core.OpenSidecar(f, sidecarPath)
				if err != nil {
					return fmt.Errorf("reading sidecar: %w", err)
				}
			}

			if err := core.NewRefresher(st, drv, rt.Workers, cc.Logger).Refresh(ctx, "", sidecars); err != nil {
				return fmt.Errorf("refreshing index: %w", err)
			}

			fmt.Fprintln(cmd.OutOrStdout(), "index rebuilt from destination listing")

			return nil
		},
	}

	cmd.Flags().StringVar(&sidecarPath, "sidecar", "", "enrich the rebuilt index with this snapshot sidecar file")

	return cmd
}
