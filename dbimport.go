package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/core"
)

func newDBImportCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "dbimport <dump-file>",
		Short: "Import an action-dump file into the index without touching the destination",
		Long: `dbimport reads a line-delimited action-dump file (uncompressed, the
same record shapes a snapshot sidecar uses) and applies its rows to the
index directly, for cold-storage workflows where the destination itself
cannot be listed (spec.md §4.8). Records are applied in file order,
oldest first, since a PRUNE record may remove a row an earlier record in
the same file inserted.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("opening dump file: %w", err)
			}
			defer f.Close()

			dumpRecords, err := core.NewDumpReader(f).ReadAll(ctx)
			if err != nil {
				return fmt.Errorf("reading dump file: %w", err)
			}

			records := make([]core.ImportRecord, 0, len(dumpRecords))
			for _, dr := range dumpRecords {
				records = append(records, importRecordFromDump(dr))
			}

			st, err := openIndex(ctx, cc.Target, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer st.Close()

			if err := core.NewRefresher(st, nil, cc.Target.Workers, cc.Logger).Import(ctx, records); err != nil {
				return fmt.Errorf("importing records: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "imported %d record(s)\n", len(records))

			return nil
		},
	}
}
