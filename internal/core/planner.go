package core

import (
	"fmt"
	"sort"
	"time"

	"github.com/Jwink3101/dfb/internal/naming"
	"github.com/Jwink3101/dfb/internal/store"
)

// PlannerConfig carries the subset of the configuration object (spec.md
// §3) the planner consults. The full configuration lives in
// internal/config; this is the narrow view Plan needs so planner.go has
// no import-time dependency on the config package.
type PlannerConfig struct {
	Compare             CompareAttribute
	RenameDetection     RenameDetection
	ServerSideCopyMoves bool
	EmptyDirMarkers     bool
	ReferenceMinSize    int64
}

// Planner computes the set of actions needed to bring the destination's
// logical state in line with a source listing. Plan is a pure function:
// it performs no I/O and consults only its arguments.
type Planner struct{}

// Plan is the pure decision function described in spec.md §4.5: diff the
// source listing against the current logical state, classify each
// change, detect moves, and order the resulting actions into phases.
func (Planner) Plan(entries []SourceEntry, state StateView, cfg PlannerConfig, runTimestamp int64) (*ActionPlan, error) {
	current := state.Current()

	bySource := make(map[string]SourceEntry, len(entries))
	for _, e := range entries {
		if _, dup := bySource[e.ApparentPath]; dup {
			return nil, fmt.Errorf("core: planner: duplicate apparent path %q in source listing", e.ApparentPath)
		}

		bySource[e.ApparentPath] = e
	}

	plan := &ActionPlan{}

	appeared, changed := diffNew(bySource, current)
	disappeared := diffDeleted(bySource, current)

	moved, stillAppeared, stillDisappeared := detectMoves(bySource, appeared, disappeared, current, cfg.RenameDetection)

	for _, path := range stillAppeared {
		appendUpload(plan, bySource[path], runTimestamp)
	}

	for _, path := range changed {
		appendUpload(plan, bySource[path], runTimestamp)
	}

	for _, m := range moved {
		appendMove(plan, m, cfg, runTimestamp, current)
	}

	for _, path := range stillDisappeared {
		appendDelete(plan, path, runTimestamp)
	}

	dedupeSubSecondReruns(plan, current, runTimestamp)

	return plan, nil
}

// diffNew splits source entries into brand-new apparent paths and paths
// whose comparison attribute changed. Paths that are unchanged are
// simply omitted from both slices.
func diffNew(bySource map[string]SourceEntry, current map[string]store.ArtifactRecord) (appeared, changed []string) {
	for path, e := range bySource {
		old, existed := current[path]
		if !existed {
			appeared = append(appeared, path)

			continue
		}

		if hasChanged(old, e) {
			changed = append(changed, path)
		}
	}

	sort.Strings(appeared)
	sort.Strings(changed)

	return appeared, changed
}

// diffDeleted returns apparent paths present in the current state but
// absent from this run's source listing.
func diffDeleted(bySource map[string]SourceEntry, current map[string]store.ArtifactRecord) []string {
	var out []string

	for path := range current {
		if _, ok := bySource[path]; !ok {
			out = append(out, path)
		}
	}

	sort.Strings(out)

	return out
}

// hasChanged applies the compare fallback chain: hash, if both sides
// have one; else mtime, if both sides have one; else size. Per spec.md
// §7 MissingHash, a requested hash comparison silently falls back rather
// than erroring — the caller never sees ErrMissingHash for an individual
// entry, since falling back IS the documented behavior.
func hasChanged(old store.ArtifactRecord, e SourceEntry) bool {
	if old.Hash != nil && e.Hash != nil {
		return *old.Hash != *e.Hash
	}

	if old.ModTime != nil && e.ModTime != nil {
		return *old.ModTime != *e.ModTime
	}

	return old.Size != e.Size
}

// moveCandidate pairs a newly-appeared source entry with the disappeared
// apparent path it was matched to by content.
type moveCandidate struct {
	newPath string
	oldPath string
}

// detectMoves correlates disappeared paths with appeared paths by
// content, per spec.md §4.5's rename clause: when rename detection is
// enabled, a disappeared path and an appeared path sharing the same
// content key (hash, or size+mtime) become a MOVE instead of an
// independent delete and upload.
//
// Ambiguous matches — a content key shared by more than one disappeared
// path — are left unmatched; those paths fall back to plain
// upload/delete. When more than one appeared path matches the same
// disappeared path, the lexicographically first wins the move; the
// rest remain plain uploads.
func detectMoves(
	bySource map[string]SourceEntry,
	appeared, disappeared []string,
	current map[string]store.ArtifactRecord,
	mode RenameDetection,
) (moved []moveCandidate, stillAppeared, stillDisappeared []string) {
	if mode == RenameDisabled {
		return nil, appeared, disappeared
	}

	oldByKey := make(map[string][]string, len(disappeared))

	for _, path := range disappeared {
		key, ok := oldContentKey(current[path], mode)
		if !ok {
			continue
		}

		oldByKey[key] = append(oldByKey[key], path)
	}

	// newByOld collects, for each disappeared path unambiguously keyed,
	// every appeared path whose content matches it.
	newByOld := make(map[string][]string)

	unmatchedAppeared := make(map[string]bool, len(appeared))
	for _, p := range appeared {
		unmatchedAppeared[p] = true
	}

	for _, newPath := range appeared {
		key, ok := newContentKey(bySource[newPath], mode)
		if !ok {
			continue
		}

		candidates := oldByKey[key]
		if len(candidates) != 1 {
			continue // no match, or ambiguous among several old paths
		}

		newByOld[candidates[0]] = append(newByOld[candidates[0]], newPath)
	}

	matchedOldSet := make(map[string]bool, len(newByOld))

	for oldPath, newPaths := range newByOld {
		sort.Strings(newPaths)
		winner := newPaths[0]

		moved = append(moved, moveCandidate{newPath: winner, oldPath: oldPath})
		matchedOldSet[oldPath] = true
		delete(unmatchedAppeared, winner)
	}

	sort.Slice(moved, func(i, j int) bool { return moved[i].newPath < moved[j].newPath })

	for _, p := range appeared {
		if unmatchedAppeared[p] {
			stillAppeared = append(stillAppeared, p)
		}
	}

	for _, p := range disappeared {
		if !matchedOldSet[p] {
			stillDisappeared = append(stillDisappeared, p)
		}
	}

	return moved, stillAppeared, stillDisappeared
}

// oldContentKey computes a matching key for a stored artifact record, or
// ok=false if mode's required attribute is absent.
func oldContentKey(r store.ArtifactRecord, mode RenameDetection) (string, bool) {
	switch mode {
	case RenameByHash:
		if r.Hash == nil {
			return "", false
		}

		return "h:" + *r.Hash, true
	case RenameByMtime:
		if r.ModTime == nil {
			return "", false
		}

		return fmt.Sprintf("m:%d:%d", r.Size, *r.ModTime), true
	default:
		return "", false
	}
}

// newContentKey is oldContentKey's counterpart for a freshly observed
// source entry.
func newContentKey(e SourceEntry, mode RenameDetection) (string, bool) {
	switch mode {
	case RenameByHash:
		if e.Hash == nil {
			return "", false
		}

		return "h:" + *e.Hash, true
	case RenameByMtime:
		if e.ModTime == nil {
			return "", false
		}

		return fmt.Sprintf("m:%d:%d", e.Size, *e.ModTime), true
	default:
		return "", false
	}
}

func unixToTime(sec int64) time.Time {
	return time.Unix(sec, 0).UTC()
}

func appendUpload(plan *ActionPlan, e SourceEntry, runTimestamp int64) {
	real := naming.Encode(e.ApparentPath, unixToTime(runTimestamp), naming.FlagNone)

	plan.UploadLike = append(plan.UploadLike, Action{
		Type:             ActionUpload,
		ApparentPath:     e.ApparentPath,
		Timestamp:        runTimestamp,
		SourcePath:       e.ApparentPath,
		Size:             e.Size,
		ModTime:          e.ModTime,
		Hash:             e.Hash,
		RealPath:         real,
		IsEmptyDirMarker: e.IsEmptyDir,
	})
}

func appendMove(plan *ActionPlan, m moveCandidate, cfg PlannerConfig, runTimestamp int64, current map[string]store.ArtifactRecord) {
	old := current[m.oldPath]

	flag := naming.FlagReference
	actionType := ActionReference

	if cfg.ServerSideCopyMoves && old.Size >= cfg.ReferenceMinSize {
		flag = naming.FlagNone
		actionType = ActionServerSideCopy
	}

	real := naming.Encode(m.newPath, unixToTime(runTimestamp), flag)

	action := Action{
		Type:             actionType,
		ApparentPath:     m.newPath,
		Timestamp:        runTimestamp,
		Size:             old.Size,
		ReferentRealPath: old.RealPath,
		RealPath:         real,
	}

	// SERVER_SIDE_COPY dispatches through the executor's upload-like
	// phase (it calls drv.CopyBetween, like an upload calls drv.CopyTo);
	// only a true REFERENCE belongs in the references phase, since it is
	// the only move kind whose payload must point at an already-written
	// referent.
	if actionType == ActionServerSideCopy {
		plan.UploadLike = append(plan.UploadLike, action)
	} else {
		plan.References = append(plan.References, action)
	}

	appendDelete(plan, m.oldPath, runTimestamp)
}

func appendDelete(plan *ActionPlan, apparentPath string, runTimestamp int64) {
	real := naming.Encode(apparentPath, unixToTime(runTimestamp), naming.FlagDelete)

	plan.Deletes = append(plan.Deletes, Action{
		Type:         ActionDelete,
		ApparentPath: apparentPath,
		Timestamp:    runTimestamp,
		RealPath:     real,
	})
}

// dedupeSubSecondReruns drops any action whose (ApparentPath, Timestamp)
// already exists in the index — a pathological rerun within the same
// UTC second — per spec.md §4.5 tie-break rule 2 and §9's sub-second-run
// note. The planner must never produce two rows sharing a primary key.
func dedupeSubSecondReruns(plan *ActionPlan, current map[string]store.ArtifactRecord, runTimestamp int64) {
	filterFn := func(actions []Action) []Action {
		out := actions[:0]

		for _, a := range actions {
			if existing, ok := current[a.ApparentPath]; ok && existing.Timestamp == runTimestamp {
				plan.Skipped++

				continue
			}

			out = append(out, a)
		}

		return out
	}

	plan.UploadLike = filterFn(plan.UploadLike)
	plan.References = filterFn(plan.References)
	plan.Deletes = filterFn(plan.Deletes)
}
