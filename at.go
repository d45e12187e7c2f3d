package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/core"
)

func newAtCmd() *cobra.Command {
	var deref bool

	cmd := &cobra.Command{
		Use:   "at <time> [subpath]",
		Short: "Show the logical tree state at a point in time",
		Long: `at resolves the index's logical state as of the given time expression
(spec.md §4.6): "now", "u<unix-seconds>", a relative expression like
"3days12hours", or an ISO-8601 timestamp. An optional subpath restricts
the result to one file or directory.`,
		Args: cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			t, err := parseTimeExpr(args[0])
			if err != nil {
				return fmt.Errorf("parsing time expression: %w", err)
			}

			subpath := ""
			if len(args) == 2 {
				subpath = args[1]
			}

			st, err := openIndex(cmd.Context(), cc.Target, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer st.Close()

			entries, err := core.NewResolver(st).StateAt(cmd.Context(), t.Unix(), subpath, deref)
			if err != nil {
				return fmt.Errorf("resolving state: %w", err)
			}

			printResolvedEntries(cmd, entries)

			return nil
		},
	}

	cmd.Flags().BoolVar(&deref, "deref", false, "dereference REFERENCE rows to their resolved content")

	return cmd
}

func printResolvedEntries(cmd *cobra.Command, entries []core.ResolvedEntry) {
	out := cmd.OutOrStdout()

	for _, e := range entries {
		if e.IsDeleteMarker() {
			continue
		}

		marker := ""
		if e.Broken {
			marker = " (broken reference)"
		}

		fmt.Fprintf(out, "%-10s %12d  %s%s\n", e.Kind, e.Size, e.ApparentPath, marker)
	}
}
