package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/core"
)

func newVersionsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "versions <path>",
		Short: "List every recorded version of an apparent path, newest first",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())

			st, err := openIndex(cmd.Context(), cc.Target, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer st.Close()

			rows, err := core.NewResolver(st).Versions(cmd.Context(), args[0])
			if err != nil {
				return fmt.Errorf("listing versions: %w", err)
			}

			out := cmd.OutOrStdout()

			for _, r := range rows {
				stamp := time.Unix(r.Timestamp, 0).UTC().Format(time.RFC3339)
				fmt.Fprintf(out, "%-10s %s %12d  %s\n", r.Kind, stamp, r.Size, r.RealPath)
			}

			return nil
		},
	}
}
