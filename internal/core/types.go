// Package core implements the backup planner and executor, the
// point-in-time resolver, the prune planner and executor, refresh/import,
// and the snapshot sidecar and action-dump codecs — the decision and
// orchestration layer that sits between internal/store (the index) and
// internal/driver (the destination).
package core

import (
	"time"

	"github.com/Jwink3101/dfb/internal/store"
)

// SourceEntry is one file (or synthesized empty-dir marker) observed in
// the current source listing.
type SourceEntry struct {
	ApparentPath string
	Size         int64
	ModTime      *int64 // UTC seconds, if known
	Hash         *string
	IsEmptyDir   bool
}

// CompareAttribute names the configured compare setting. The planner's
// change test does not consult it: for every existing path it compares
// hashes when both sides have one, else modtimes when both have one,
// else sizes.
type CompareAttribute int

const (
	CompareHash CompareAttribute = iota
	CompareMtime
	CompareSize
)

// RenameDetection selects how the planner correlates a disappeared path
// with a newly appeared one as a candidate MOVE.
type RenameDetection int

const (
	RenameByHash RenameDetection = iota
	RenameByMtime
	RenameDisabled
)

// ActionType enumerates the kinds of action the planner can emit.
type ActionType int

const (
	ActionUpload ActionType = iota
	ActionServerSideCopy
	ActionReference
	ActionDelete
)

func (a ActionType) String() string {
	switch a {
	case ActionUpload:
		return "UPLOAD"
	case ActionServerSideCopy:
		return "SERVER_SIDE_COPY"
	case ActionReference:
		return "REFERENCE"
	case ActionDelete:
		return "DELETE"
	default:
		return "UNKNOWN"
	}
}

// Action is one unit of planned work against the destination.
type Action struct {
	Type         ActionType
	ApparentPath string
	Timestamp    int64 // UTC seconds, the run timestamp

	// Source-side fields, set for UPLOAD.
	SourcePath string
	Size       int64
	ModTime    *int64
	Hash       *string

	// Reference/copy fields, set for REFERENCE and SERVER_SIDE_COPY.
	ReferentRealPath string

	// RealPath is computed by the planner (via internal/naming) so the
	// executor never re-derives it.
	RealPath string

	// IsEmptyDirMarker marks an action synthesized for an empty source
	// directory.
	IsEmptyDirMarker bool
}

// ActionPlan is the planner's pure output: an ordered set of phases. The
// executor dispatches UploadLike (UPLOAD + SERVER_SIDE_COPY) first,
// then References, then Deletes, per spec.md §4.5 step 4.
type ActionPlan struct {
	UploadLike []Action
	References []Action
	Deletes    []Action

	// Skipped counts pathological sub-second-rerun no-ops (§4.5 tie-break
	// rule 2) that were silently collapsed rather than emitted.
	Skipped int
}

// TotalActions returns the number of actions across all phases.
func (p *ActionPlan) TotalActions() int {
	return len(p.UploadLike) + len(p.References) + len(p.Deletes)
}

// ActionError pairs a failed action with its classified error tier.
type ActionError struct {
	Action Action
	Err    error
	Tier   ErrorTier
}

// RunReport aggregates the outcome of Executor.Execute.
type RunReport struct {
	RunID        string
	RunTimestamp int64
	Succeeded    int
	Skipped      int
	Errors       []ActionError
	ElapsedTime  time.Duration
	CountsByKind map[string]int64
}

// WorstTier returns the most severe ErrorTier observed in the report, or
// ErrorTierNone if there were no errors.
func (r *RunReport) WorstTier() ErrorTier {
	worst := ErrorTierNone

	for _, e := range r.Errors {
		if e.Tier > worst {
			worst = e.Tier
		}
	}

	return worst
}

// StateView is the subset of store.Store the planner needs to compute a
// diff: the logical state of the tree as of "now", before this run's
// timestamp is assigned.
type StateView interface {
	// Current returns the most recent non-deleted row for every apparent
	// path, keyed by apparent path.
	Current() map[string]store.ArtifactRecord
}

// mapStateView is the simplest StateView implementation: a precomputed
// snapshot built by NewStateView from the rows store.StateAt returns, used
// by `dfb backup` and by the planner tests.
type mapStateView struct {
	m map[string]store.ArtifactRecord
}

func (v mapStateView) Current() map[string]store.ArtifactRecord { return v.m }

// NewStateView builds a StateView from a flat list of current rows (as
// returned by store.Store.StateAt), skipping DELETE_MARKER rows since
// those represent logical absence.
func NewStateView(rows []store.ArtifactRecord) StateView {
	m := make(map[string]store.ArtifactRecord, len(rows))

	for _, r := range rows {
		if r.Kind == store.KindDeleteMarker {
			continue
		}

		m[r.ApparentPath] = r
	}

	return mapStateView{m: m}
}
