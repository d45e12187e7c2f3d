package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/core"
	"github.com/Jwink3101/dfb/internal/store"
)

// newDumpCmd implements `dfb dump`: export the full index history as an
// uncompressed action-dump file (spec.md §4.9/§6), independent of the
// gzip/xz snapshot sidecars backup/prune write automatically. This is
// the advanced export/archival workflow SPEC_FULL.md supplements beyond
// spec.md's prose (see C10).
func newDumpCmd() *cobra.Command {
	var out string

	cmd := &cobra.Command{
		Use:   "dump",
		Short: "Export the full index history as an action-dump file",
		RunE: func(cmd *cobra.Command, _ []string) error {
			cc := mustCLIContext(cmd.Context())
			ctx := cmd.Context()

			st, err := openIndex(ctx, cc.Target, cc.Logger)
			if err != nil {
				return fmt.Errorf("opening index: %w", err)
			}
			defer st.Close()

			rows, err := st.AllRows(ctx)
			if err != nil {
				return fmt.Errorf("reading index: %w", err)
			}

			w := cmd.OutOrStdout()

			if out != "" {
				f, createErr := os.Create(out)
				if createErr != nil {
					return fmt.Errorf("creating dump file: %w", createErr)
				}
				defer f.Close()

				w = f
			}

			dw := core.NewDumpWriter(w)

			for _, r := range rows {
				if err := dw.Write(dumpRecordFromArtifact(r)); err != nil {
					return fmt.Errorf("writing dump record: %w", err)
				}
			}

			if err := dw.Flush(); err != nil {
				return fmt.Errorf("flushing dump: %w", err)
			}

			return nil
		},
	}

	cmd.Flags().StringVar(&out, "out", "", "write to this file instead of stdout")

	return cmd
}

// newLoadDumpCmd implements `dfb load-dump`, the inverse of `dfb dump`:
// apply a previously exported action-dump file to the index. It shares
// dbimport's record translation and ordering guarantees (oldest record
// first, so an embedded PRUNE can remove an earlier insert in the same
// file).
func newLoadDumpCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "load-dump <dump-file>",
		Short: "Apply a previously exported action-dump file to the index",
		Args:  cobra.ExactArgs(1),
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
				return fmt.Errorf("loading dump: %w", err)
			}

			fmt.Fprintf(cmd.OutOrStdout(), "loaded %d record(s)\n", len(records))

			return nil
		},
	}
}

// dumpRecordFromArtifact is importRecordFromDump's inverse direction: it
// translates a stored ArtifactRecord back into the wire DumpRecord shape
// for `dfb dump`'s full-history export.
func dumpRecordFromArtifact(r store.ArtifactRecord) core.DumpRecord {
	rec := core.DumpRecord{
		ApparentPath: r.ApparentPath,
		RealPath:     r.RealPath,
		Timestamp:    r.Timestamp,
		Size:         r.Size,
		ModTime:      r.ModTime,
	}

	switch r.Kind {
	case store.KindReference:
		rec.Kind = core.DumpMoveByReference
		if r.ReferentRealPath != nil {
			rec.ReferentPath = *r.ReferentRealPath
		}
	case store.KindDeleteMarker:
		rec.Kind = core.DumpDelete
	default: // KindRegular, KindEmptyDirMarker
		rec.Kind = core.DumpUpload
	}

	return rec
}
