package main

import (
	"errors"
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/core"
)

func newPruneCmd() *cobra.Command {
	var (
		dryRun bool
		at     string
	)

	cmd := &cobra.Command{
		Use:   "prune",
		Short: "Remove versions made obsolete by keep_versions and the cutoff time",
		Long: `prune computes the candidate set described in spec.md §4.7 — every
row no longer needed to reconstruct any state at or after the cutoff,
after reference and delete-marker protection are propagated to a fixed
point — and, unless --dry-run is given, deletes those objects from the
destination and removes their rows from the index.`,
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()
			rt := cc.Target

			cutoff := time.Now().UTC()

			if at != "" {
				t, err := parseTimeExpr(at)
				if err != nil {
					return fmt.Errorf("parsing --at: %w", err)
				}

				cutoff = t
			}

			st, err := openIndex(ctx, rt, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer st.Close()

			pruner := core.NewPruner(st, cc.Logger)

			plan, err := pruner.Plan(ctx, rt.PruneConfig(cutoff.Unix()))
			if err != nil {
				if errors.Is(err, core.ErrPruneDisabled) {
					fmt.Fprintln(cmd.OutOrStdout(), "prune is disabled for this target (disable_prune = true)")

					return nil
				}

				return fmt.Errorf("planning prune: %w", err)
			}

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "candidates: %d  protected: %d  to delete: %d\n", plan.Candidate, plan.Protected, len(plan.ToDelete))

			if dryRun {
				for _, rec := range plan.ToDelete {
					fmt.Fprintf(out, "  would delete  %s  (%s)\n", rec.RealPath, rec.ApparentPath)
				}

				return nil
			}

			drv, err := openDestination(rt, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening destination: %w", err)
			}

			report, err := pruner.Execute(ctx, plan, drv)
			if err != nil {
				return fmt.Errorf("executing prune: %w", err)
			}

			fmt.Fprintf(out, "pruned: %d  errors: %d\n", report.Succeeded, len(report.Errors))

			if writeErr := writePruneSidecar(ctx, drv, plan, cutoff.Unix()); writeErr != nil {
				cc.Logger.Warn("prune: sidecar write failed", "error", writeErr)
			}

			if len(report.Errors) > 0 {
				return fmt.Errorf("prune completed with %d error(s)", len(report.Errors))
			}

			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report the candidate set without deleting anything")
	cmd.Flags().StringVar(&at, "at", "", "prune as of this time expression instead of now")

	return cmd
}
