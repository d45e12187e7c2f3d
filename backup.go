package main

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"time"

	"github.com/mattn/go-isatty"
	"github.com/spf13/cobra"

	"github.com/Jwink3101/dfb/internal/core"
	"github.com/Jwink3101/dfb/internal/driver"
	"github.com/Jwink3101/dfb/internal/store"
)

func newBackupCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backup",
		Short: "Scan the source tree and back up every new or changed file",
		Long: `backup performs one full backup cycle (spec.md §4.5):

1. Acquire the destination's run lease, refusing to run alongside another
   concurrent backup against the same target.
2. Scan the source tree, applying the target's subdir filter.
3. Diff the scan against the index's current logical state and plan the
   resulting upload/reference/server-side-copy/delete actions.
4. Execute the plan against the destination driver, committing each
   action to the index as soon as the driver confirms it.
5. Write a snapshot sidecar recording every action taken this run.`,
		RunE: runBackup,
	}
}

func runBackup(cmd *cobra.Command, _ []string) error {
	cc := mustCLIContext(cmd.Context())

	report, err := performBackup(cmd.Context(), cc)
	if err != nil {
		return err
	}

	printRunReport(cmd, report)

	if len(report.Errors) > 0 {
		return fmt.Errorf("backup completed with %d error(s), worst tier %s", len(report.Errors), report.WorstTier())
	}

	return nil
}

// performBackup runs one full backup cycle against cc.Target and returns
// the resulting RunReport. It is the shared entry point for `dfb backup`
// and the triggered runs `dfb watch` performs on every debounced change.
func performBackup(ctx context.Context, cc *CLIContext) (*core.RunReport, error) {
	rt := cc.Target

	if err := requireLocalSource(rt); err != nil {
		return nil, err
	}

	lease, err := core.AcquireLease(rt.CacheDir, rt.ConfigID)
	if err != nil {
		return nil, fmt.Errorf("acquiring run lease: %w", err)
	}
	defer lease.Release()

	st, err := openIndex(ctx, rt, cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening index: %w", err)
	}
	defer st.Close()

	drv, err := openDestination(rt, cc.Logger)
	if err != nil {
		return nil, fmt.Errorf("opening destination: %w", err)
	}

	runTimestamp := time.Now().UTC().Unix()

	entries, err := core.ScanSource(ctx, rt.Source.Location, core.ScanConfig{
		Subdir:          rt.Subdir,
		EmptyDirMarkers: rt.EmptyDirMarkers,
		ComputeHash:     needsContentHash(rt),
	})
	if err != nil {
		return nil, fmt.Errorf("scanning source: %w", err)
	}

	current, err := st.StateAt(ctx, runTimestamp, rt.Subdir)
	if err != nil {
		return nil, fmt.Errorf("reading current index state: %w", err)
	}

	plan, err := core.Planner{}.Plan(entries, core.NewStateView(current), rt.PlannerConfig(), runTimestamp)
	if err != nil {
		return nil, fmt.Errorf("planning: %w", err)
	}

	cc.Logger.Info("backup: plan computed",
		"uploads", len(plan.UploadLike), "references", len(plan.References), "deletes", len(plan.Deletes), "skipped", plan.Skipped)

	executor := core.NewExecutor(st, drv, rt.Workers, cc.Logger)

	report, err := executor.Execute(ctx, plan)
	if err != nil {
		return report, fmt.Errorf("executing plan: %w", err)
	}

	if writeErr := writeBackupSidecar(ctx, drv, plan, runTimestamp); writeErr != nil {
		cc.Logger.Warn("backup: sidecar write failed", "error", writeErr)
	}

	if recordErr := recordRun(ctx, st, rt.ConfigID, report); recordErr != nil {
		cc.Logger.Warn("backup: run history record failed", "error", recordErr)
	}

	return report, nil
}

// recordRun appends report's aggregate counts to the run-history table
// (spec.md §4.5's run accounting), keyed by the local hostname so a
// shared index can distinguish which machine performed each run.
func recordRun(ctx context.Context, st *store.Store, configID string, report *core.RunReport) error {
	host, err := os.Hostname()
	if err != nil {
		host = "unknown"
	}

	return st.InsertRun(ctx, store.RunRecord{
		Timestamp:     report.RunTimestamp,
		HostID:        host,
		ConfigID:      configID,
		CountsByKind:  report.CountsByKind,
		ElapsedMillis: report.ElapsedTime.Milliseconds(),
	})
}

// writeBackupSidecar records every action in plan as a gzip-compressed
// snapshot sidecar at the destination, per spec.md §6's sidecar layout
// (internal/core/sidecar.go). A sidecar write failure degrades gracefully
// (logged, not fatal) since the index itself is already durable by the
// time this runs.
func writeBackupSidecar(ctx context.Context, drv driver.Driver, plan *core.ActionPlan, runTimestamp int64) error {
	var buf bytes.Buffer

	sw, err := core.NewSidecarWriter(&buf, core.CodecGzip)
	if err != nil {
		return fmt.Errorf("opening sidecar writer: %w", err)
	}

	for _, rec := range dumpRecordsFromPlan(plan) {
		if err := sw.Write(rec); err != nil {
			return fmt.Errorf("writing sidecar record: %w", err)
		}
	}

	if err := sw.Close(); err != nil {
		return fmt.Errorf("closing sidecar: %w", err)
	}

	path := core.SidecarPath(time.Unix(runTimestamp, 0).UTC(), core.SidecarBackup, core.CodecGzip)

	return drv.PutSmall(ctx, path, buf.Bytes())
}

// dumpRecordsFromPlan translates an ActionPlan into the action-dump
// record stream spec.md §6 defines, in execution order (upload-like,
// then references, then deletes), mirroring the order Executor.Execute
// commits them.
func dumpRecordsFromPlan(plan *core.ActionPlan) []core.DumpRecord {
	var recs []core.DumpRecord

	for _, a := range plan.UploadLike {
		switch a.Type {
		case core.ActionUpload:
			recs = append(recs, core.DumpRecord{
				Kind: core.DumpUpload, ApparentPath: a.ApparentPath, RealPath: a.RealPath,
				Timestamp: a.Timestamp, Size: a.Size, ModTime: a.ModTime,
			})
		case core.ActionServerSideCopy:
			recs = append(recs, core.DumpRecord{
				Kind: core.DumpMoveByCopy, ApparentPath: a.ApparentPath, RealPath: a.RealPath,
				Timestamp: a.Timestamp, Size: a.Size, SourcePath: a.ReferentRealPath,
			})
		}
	}

	for _, a := range plan.References {
		recs = append(recs, core.DumpRecord{
			Kind: core.DumpMoveByReference, ApparentPath: a.ApparentPath, RealPath: a.RealPath,
			Timestamp: a.Timestamp, Size: a.Size, ReferentPath: a.ReferentRealPath,
		})
	}

	for _, a := range plan.Deletes {
		recs = append(recs, core.DumpRecord{
			Kind: core.DumpDelete, ApparentPath: a.ApparentPath, RealPath: a.RealPath, Timestamp: a.Timestamp,
		})
	}

	return recs
}

// printRunReport prints a summary of a RunReport to stdout. When stdout is
// not an interactive terminal (piped to a file or log collector) the
// padded columns collapse to single key=value lines, easier for a
// downstream parser to scan than aligned whitespace.
func printRunReport(cmd *cobra.Command, report *core.RunReport) {
	out := cmd.OutOrStdout()

	if isatty.IsTerminal(os.Stdout.Fd()) {
		fmt.Fprintf(out, "run id:        %s\n", report.RunID)
		fmt.Fprintf(out, "run timestamp: %d\n", report.RunTimestamp)
		fmt.Fprintf(out, "succeeded:     %d\n", report.Succeeded)
		fmt.Fprintf(out, "skipped:       %d\n", report.Skipped)
		fmt.Fprintf(out, "errors:        %d\n", len(report.Errors))
		fmt.Fprintf(out, "elapsed:       %s\n", report.ElapsedTime)

		for kind, count := range report.CountsByKind {
			fmt.Fprintf(out, "  %-10s %d\n", kind, count)
		}
	} else {
		fmt.Fprintf(out, "run_id=%s run_timestamp=%d succeeded=%d skipped=%d errors=%d elapsed=%s\n",
			report.RunID, report.RunTimestamp, report.Succeeded, report.Skipped, len(report.Errors), report.ElapsedTime)

		for kind, count := range report.CountsByKind {
			fmt.Fprintf(out, "count kind=%s n=%d\n", kind, count)
		}
	}

	for _, e := range report.Errors {
		fmt.Fprintf(out, "  error: %s: %v (%s)\n", e.Action.ApparentPath, e.Err, e.Tier)
	}
}
