package core

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/Jwink3101/dfb/internal/driver"
	"github.com/Jwink3101/dfb/internal/reference"
	"github.com/Jwink3101/dfb/internal/store"
)

// deleteMarkerPayload is the fixed three-byte payload written for every
// DELETE_MARKER artifact (spec.md §6): only existence is checked on
// read, but a stable, recognizable payload keeps destination listings
// readable during manual inspection.
var deleteMarkerPayload = []byte("DEL")

// emptyDirMarkerPayload is written for EMPTY_DIR_MARKER artifacts. Like
// the delete marker, its content carries no meaning.
var emptyDirMarkerPayload = []byte{}

// Executor dispatches a planned ActionPlan against a destination driver,
// phase by phase, committing each action's outcome to the index
// immediately after the driver confirms it. It processes phases
// sequentially — UploadLike, then References, then Deletes — per
// spec.md §4.5 step 4, so that a REFERENCE can never point at an
// artifact not yet known to exist, and a DELETE is never recorded ahead
// of the upload that superseded it.
type Executor struct {
	store   *store.Store
	drv     driver.Driver
	workers int
	logger  *slog.Logger
}

// NewExecutor creates an Executor. workers is the desired per-phase
// concurrency; it is raised to WorkerPool's floor if lower.
func NewExecutor(st *store.Store, drv driver.Driver, workers int, logger *slog.Logger) *Executor {
	if logger == nil {
		logger = slog.Default()
	}

	return &Executor{store: st, drv: drv, workers: workers, logger: logger}
}

// Execute runs plan to completion and returns a RunReport. A fatal-tier
// error aborts the remaining phases; everything committed before the
// abort stays committed, since dfb's destination is append-only and
// every successful action is its own durable fact.
func (e *Executor) Execute(ctx context.Context, plan *ActionPlan) (*RunReport, error) {
	start := time.Now()

	report := &RunReport{
		RunID:        uuid.New().String(),
		RunTimestamp: runTimestampOf(plan),
		Skipped:      plan.Skipped,
		CountsByKind: map[string]int64{},
	}

	e.logger.Info("executor: starting", slog.String("run_id", report.RunID), slog.Int("total_actions", plan.TotalActions()))

	phases := []struct {
		name    string
		actions []Action
		fn      ActionFunc
	}{
		{"upload", plan.UploadLike, e.executeUploadLike},
		{"reference", plan.References, e.executeReference},
		{"delete", plan.Deletes, e.executeDelete},
	}

	for _, phase := range phases {
		if err := ctx.Err(); err != nil {
			report.ElapsedTime = time.Since(start)

			return report, err
		}

		e.logger.Debug("executor: phase starting", slog.String("phase", phase.name), slog.Int("count", len(phase.actions)))

		pool := NewWorkerPool(e.logger, phase.fn)
		errs := pool.Run(ctx, phase.actions, e.workers)

		succeeded, _, dropped := pool.Stats()

		report.Succeeded += succeeded
		report.CountsByKind[phase.name] += int64(succeeded)
		report.Errors = append(report.Errors, errs...)

		if dropped > 0 {
			e.logger.Warn("executor: error list truncated", slog.String("phase", phase.name), slog.Int64("dropped", dropped))
		}

		for _, e2 := range errs {
			if e2.Tier == ErrorFatal {
				report.ElapsedTime = time.Since(start)

				return report, fmt.Errorf("core: phase %q aborted: %w", phase.name, e2.Err)
			}
		}
	}

	if err := e.store.Checkpoint(ctx); err != nil {
		// Checkpoint failure is non-fatal: every action already committed
		// its own row. A skipped WAL flush recovers on the next open.
		e.logger.Warn("executor: checkpoint failed", slog.String("error", err.Error()))
	}

	report.ElapsedTime = time.Since(start)

	e.logger.Info("executor: done",
		slog.Int("succeeded", report.Succeeded),
		slog.Int("skipped", report.Skipped),
		slog.Int("errors", len(report.Errors)),
	)

	return report, nil
}

func runTimestampOf(plan *ActionPlan) int64 {
	for _, a := range plan.UploadLike {
		return a.Timestamp
	}

	for _, a := range plan.References {
		return a.Timestamp
	}

	for _, a := range plan.Deletes {
		return a.Timestamp
	}

	return 0
}

// executeUploadLike handles both ActionUpload and ActionServerSideCopy:
// transfer the bytes (or synthesize an empty-dir marker), then commit
// the resulting ArtifactRecord.
func (e *Executor) executeUploadLike(ctx context.Context, a Action) error {
	if a.IsEmptyDirMarker {
		if err := e.drv.PutSmall(ctx, a.RealPath, emptyDirMarkerPayload); err != nil {
			return wrapAction(a.ApparentPath, classifyDriverErr(err))
		}

		return e.store.InsertArtifact(ctx, store.ArtifactRecord{
			ApparentPath: a.ApparentPath,
			RealPath:     a.RealPath,
			Timestamp:    a.Timestamp,
			Kind:         store.KindEmptyDirMarker,
		})
	}

	rec := store.ArtifactRecord{
		ApparentPath: a.ApparentPath,
		RealPath:     a.RealPath,
		Timestamp:    a.Timestamp,
		Kind:         store.KindRegular,
		Size:         a.Size,
		ModTime:      a.ModTime,
		Hash:         a.Hash,
	}

	switch a.Type {
	case ActionUpload:
		mtime, hash, err := e.drv.CopyTo(ctx, a.SourcePath, a.RealPath)
		if err != nil {
			return wrapAction(a.ApparentPath, classifyDriverErr(err))
		}

		if mtime != nil {
			sec := mtime.UTC().Unix()
			rec.ModTime = &sec
		}

		if hash != nil {
			rec.Hash = hash
		}

		rec.DstMetadataPresent = mtime != nil || hash != nil
	case ActionServerSideCopy:
		if err := e.drv.CopyBetween(ctx, a.ReferentRealPath, a.RealPath); err != nil {
			return wrapAction(a.ApparentPath, classifyDriverErr(err))
		}
	default:
		return wrapAction(a.ApparentPath, fmt.Errorf("core: executor: unexpected action type %s in upload phase", a.Type))
	}

	return e.store.InsertArtifact(ctx, rec)
}

// executeReference writes a REFERENCE artifact's payload and commits its
// record. The referent must already exist at the destination — true by
// construction since REFERENCE actions always run after UploadLike.
func (e *Executor) executeReference(ctx context.Context, a Action) error {
	payload := reference.Marshal(reference.Rel(a.RealPath, a.ReferentRealPath))

	if err := e.drv.PutSmall(ctx, a.RealPath, payload); err != nil {
		return wrapAction(a.ApparentPath, classifyDriverErr(err))
	}

	referent := a.ReferentRealPath

	return e.store.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath:     a.ApparentPath,
		RealPath:         a.RealPath,
		Timestamp:        a.Timestamp,
		Kind:             store.KindReference,
		Size:             a.Size,
		ReferentRealPath: &referent,
	})
}

// executeDelete writes a DELETE_MARKER artifact and commits its record.
// dfb never removes bytes already written to the destination; a delete
// is purely the addition of a new, later row whose kind makes the path
// logically absent from that timestamp forward.
func (e *Executor) executeDelete(ctx context.Context, a Action) error {
	if err := e.drv.PutSmall(ctx, a.RealPath, deleteMarkerPayload); err != nil {
		return wrapAction(a.ApparentPath, classifyDriverErr(err))
	}

	return e.store.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: a.ApparentPath,
		RealPath:     a.RealPath,
		Timestamp:    a.Timestamp,
		Kind:         store.KindDeleteMarker,
		Size:         store.DeletedSizeSentinel,
	})
}

// classifyDriverErr passes a transfer-driver error through unchanged so
// classifyError can inspect its driver.Err* sentinels directly — wrapping
// it here would mask those sentinels behind a blanket tier.
func classifyDriverErr(err error) error {
	return err
}
