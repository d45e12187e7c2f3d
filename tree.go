package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/core"
)

func newTreeCmd() *cobra.Command {
	var deref bool

	cmd := &cobra.Command{
		Use:   "tree <time> [subpath]",
		Short: "List the directory tree as it existed at a point in time",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			t, err := parseTimeExpr(args[0])
			if err != nil {
				return fmt.Errorf("parsing time expression: %w", err)
			}

			dir := ""
			if len(args) == 2 {
				dir = args[1]
			}

			st, err := openIndex(cmd.Context(), cc.Target, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer st.Close()

			entries, err := core.NewResolver(st).Tree(cmd.Context(), t.Unix(), dir, deref)
			if err != nil {
				return fmt.Errorf("resolving tree: %w", err)
			}

			printResolvedEntries(cmd, entries)

			return nil
		},
	}

	cmd.Flags().BoolVar(&deref, "deref", false, "dereference REFERENCE rows to their resolved content")

	return cmd
}
