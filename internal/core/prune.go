package core

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Jwink3101/dfb/internal/driver"
	"github.com/Jwink3101/dfb/internal/store"
)

// PruneConfig carries the prune planner's inputs (spec.md §4.7).
type PruneConfig struct {
	CutoffUnix int64

	// KeepVersions retains this many rows immediately preceding each
	// path's anchor, in addition to the anchor itself. Negative values
	// are not supported by this implementation — the spec's "negative K
	// shifts forward" clause is left as a documented open question (see
	// DESIGN.md) and clamped to 0 here.
	KeepVersions int

	// Subdir restricts which prunable rows are actually deleted. Rows
	// outside Subdir still participate in protection analysis (a
	// reference from outside Subdir still protects its referent) but are
	// never themselves removed this run.
	Subdir string

	DisablePrune bool
}

// PrunePlan is the set of rows Plan decided are safe to delete, plus
// reporting counters.
type PrunePlan struct {
	ToDelete  []store.ArtifactRecord
	Protected int
	Candidate int
}

// Pruner computes and executes the prune algorithm described in
// spec.md §4.7 against the index (C4) and a destination driver.
type Pruner struct {
	store  *store.Store
	logger *slog.Logger
}

// NewPruner creates a Pruner over st.
func NewPruner(st *store.Store, logger *slog.Logger) *Pruner {
	if logger == nil {
		logger = slog.Default()
	}

	return &Pruner{store: st, logger: logger}
}

// Plan computes the prune candidate set without touching the index or
// the destination. It returns ErrPruneDisabled without side effects if
// cfg.DisablePrune is set.
func (p *Pruner) Plan(ctx context.Context, cfg PruneConfig) (*PrunePlan, error) {
	if cfg.DisablePrune {
		return nil, ErrPruneDisabled
	}

	keepVersions := cfg.KeepVersions
	if keepVersions < 0 {
		keepVersions = 0
	}

	all, err := p.store.AllRows(ctx)
	if err != nil {
		return nil, fmt.Errorf("core: prune: loading index: %w", err)
	}

	byPath := groupByApparentPath(all)

	retained := make(map[string]bool, len(all))  // real_path -> retained
	candidate := make(map[string]store.ArtifactRecord)
	predecessorOf := make(map[string]string) // real_path -> predecessor's real_path, delete markers only

	for _, versions := range byPath {
		anchorIdx := -1

		for i, v := range versions {
			if v.Timestamp <= cfg.CutoffUnix {
				anchorIdx = i
			} else {
				break
			}
		}

		if anchorIdx == -1 {
			// No version exists at or before the cutoff; nothing in this
			// path's history is eligible for this run.
			continue
		}

		retained[versions[anchorIdx].RealPath] = true

		keepFrom := anchorIdx - keepVersions
		if keepFrom < 0 {
			keepFrom = 0
		}

		for i := keepFrom; i < anchorIdx; i++ {
			retained[versions[i].RealPath] = true
		}

		for i := 0; i < keepFrom; i++ {
			v := versions[i]
			candidate[v.RealPath] = v

			if i > 0 && v.Kind == store.KindDeleteMarker {
				predecessorOf[v.RealPath] = versions[i-1].RealPath
			}
		}
	}

	refs, err := p.store.AllReferences(ctx)
	if err != nil {
		return nil, fmt.Errorf("core: prune: loading references: %w", err)
	}

	propagateProtection(refs, retained, candidate, predecessorOf)

	var (
		toDelete  []store.ArtifactRecord
		protected int
	)

	for realPath, rec := range candidate {
		if retained[realPath] {
			protected++

			continue
		}

		if cfg.Subdir != "" && !underSubdir(rec.ApparentPath, cfg.Subdir) {
			protected++ // analyzed but out of scope this run

			continue
		}

		toDelete = append(toDelete, rec)
	}

	return &PrunePlan{ToDelete: toDelete, Protected: protected, Candidate: len(candidate)}, nil
}

// groupByApparentPath groups rows (already ordered by apparent_path,
// timestamp ascending, per sqlAllRows) into per-path slices.
func groupByApparentPath(rows []store.ArtifactRecord) map[string][]store.ArtifactRecord {
	out := make(map[string][]store.ArtifactRecord)

	for _, r := range rows {
		out[r.ApparentPath] = append(out[r.ApparentPath], r)
	}

	return out
}

func underSubdir(apparentPath, subdir string) bool {
	prefix := strings.TrimSuffix(subdir, "/") + "/"

	return apparentPath == subdir || strings.HasPrefix(apparentPath, prefix)
}

// propagateProtection runs reference protection (rule 4) and
// delete-marker protection (rule 5) to a fixed point: any candidate row
// reachable from a retained REFERENCE row, or any delete-marker candidate
// whose predecessor is retained, is moved from candidate into retained.
// Repeats until no candidate changes state, since protection chains.
func propagateProtection(
	refs []store.ArtifactRecord,
	retained map[string]bool,
	candidate map[string]store.ArtifactRecord,
	predecessorOf map[string]string,
) {
	refByPath := make(map[string]store.ArtifactRecord, len(refs))
	for _, r := range refs {
		refByPath[r.RealPath] = r
	}

	for {
		changed := false

		for realPath := range retained {
			ref, ok := refByPath[realPath]
			if !ok || ref.ReferentRealPath == nil {
				continue
			}

			target := *ref.ReferentRealPath
			if _, isCandidate := candidate[target]; isCandidate && !retained[target] {
				retained[target] = true
				changed = true
			}
		}

		for realPath, predRealPath := range predecessorOf {
			if retained[realPath] {
				continue
			}

			if retained[predRealPath] {
				retained[realPath] = true
				changed = true
			}
		}

		if !changed {
			break
		}
	}
}

// Execute runs the two-phase deletion described in spec.md §4.7: first
// annotate every candidate row pending-prune in the index, then ask the
// driver to delete it, removing the row from the index on success (or on
// ErrNotFound, since the object being already gone is an equally valid
// outcome of a delete).
func (p *Pruner) Execute(ctx context.Context, plan *PrunePlan, drv driver.Driver) (*RunReport, error) {
	report := &RunReport{CountsByKind: map[string]int64{}}

	for _, rec := range plan.ToDelete {
		if err := p.store.MarkPendingPrune(ctx, rec.RealPath); err != nil {
			return report, fmt.Errorf("core: prune: annotate %s: %w", rec.RealPath, err)
		}
	}

	for _, rec := range plan.ToDelete {
		if err := ctx.Err(); err != nil {
			return report, err
		}

		err := drv.Delete(ctx, rec.RealPath)
		if err != nil && !errors.Is(err, driver.ErrNotFound) {
			report.Errors = append(report.Errors, ActionError{
				Action: Action{Type: ActionDelete, ApparentPath: rec.ApparentPath, RealPath: rec.RealPath},
				Err:    err,
				Tier:   classifyError(err),
			})

			continue
		}

		if delErr := p.store.DeleteArtifact(ctx, rec.RealPath); delErr != nil {
			return report, fmt.Errorf("core: prune: remove row %s: %w", rec.RealPath, delErr)
		}

		report.Succeeded++
		report.CountsByKind["PRUNE"]++
	}

	return report, nil
}
