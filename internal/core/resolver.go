package core

import (
	"context"
	"fmt"

	"github.com/Jwink3101/dfb/internal/store"
)

// maxReferenceHops bounds reference-chain dereferencing (spec.md §9): a
// chain longer than this is treated as a cycle, never as a legitimately
// deep rename history.
const maxReferenceHops = 64

// ResolvedEntry is a logical path's state at a point in time, optionally
// dereferenced through its REFERENCE chain to the REGULAR artifact that
// actually holds the bytes.
type ResolvedEntry struct {
	store.ArtifactRecord

	// Broken is set when deref was requested and the chain exceeded
	// maxReferenceHops or terminated at a DELETE_MARKER (spec.md §4.6):
	// the logical path is reported as not existing, flagged for the
	// caller rather than silently dropped.
	Broken bool
}

// Resolver answers point-in-time queries against the index (C6). It
// performs no mutation.
type Resolver struct {
	store *store.Store
}

// NewResolver creates a Resolver over st.
func NewResolver(st *store.Store) *Resolver {
	return &Resolver{store: st}
}

// StateAt returns the logical state of the tree at or before cutoffUnix,
// restricted to subpath when non-empty. DELETE_MARKER rows are included
// in the result (the resolver doesn't hide them — callers that want "what
// exists" should filter IsDeleteMarker) so tooling can distinguish
// "never existed" from "existed, then deleted". When deref is true, each
// REFERENCE row's metadata is replaced with its resolved referent's.
func (r *Resolver) StateAt(ctx context.Context, cutoffUnix int64, subpath string, deref bool) ([]ResolvedEntry, error) {
	rows, err := r.store.StateAt(ctx, cutoffUnix, subpath)
	if err != nil {
		return nil, fmt.Errorf("core: resolver: state at %d: %w", cutoffUnix, err)
	}

	return r.resolveRows(ctx, rows, deref)
}

// Tree is StateAt scoped to directory enumeration; see StateAt for
// semantics.
func (r *Resolver) Tree(ctx context.Context, cutoffUnix int64, dir string, deref bool) ([]ResolvedEntry, error) {
	rows, err := r.store.Tree(ctx, cutoffUnix, dir)
	if err != nil {
		return nil, fmt.Errorf("core: resolver: tree at %d: %w", cutoffUnix, err)
	}

	return r.resolveRows(ctx, rows, deref)
}

// Versions returns every recorded version of apparentPath, newest first.
func (r *Resolver) Versions(ctx context.Context, apparentPath string) ([]store.ArtifactRecord, error) {
	rows, err := r.store.Versions(ctx, apparentPath)
	if err != nil {
		return nil, fmt.Errorf("core: resolver: versions %s: %w", apparentPath, err)
	}

	return rows, nil
}

// Timestamps returns every distinct run timestamp in the index,
// ascending.
func (r *Resolver) Timestamps(ctx context.Context) ([]int64, error) {
	ts, err := r.store.Timestamps(ctx)
	if err != nil {
		return nil, fmt.Errorf("core: resolver: timestamps: %w", err)
	}

	return ts, nil
}

// Stats summarizes the index as of the most recent run timestamp.
type Stats struct {
	RunCount      int
	LogicalPaths  int
	TotalSize     int64
	BrokenRefs    int
	LatestRunUnix int64
}

// Stats aggregates index-wide counters. It resolves the full current
// tree (dereferencing REFERENCE rows) to compute TotalSize and flag
// broken chains.
func (r *Resolver) Stats(ctx context.Context) (Stats, error) {
	timestamps, err := r.Timestamps(ctx)
	if err != nil {
		return Stats{}, err
	}

	var latest int64

	for _, ts := range timestamps {
		if ts > latest {
			latest = ts
		}
	}

	entries, err := r.StateAt(ctx, latest, "", true)
	if err != nil {
		return Stats{}, err
	}

	stats := Stats{RunCount: len(timestamps), LatestRunUnix: latest}

	for _, e := range entries {
		if e.Kind == store.KindDeleteMarker {
			continue
		}

		if e.Broken {
			stats.BrokenRefs++

			continue
		}

		stats.LogicalPaths++
		stats.TotalSize += e.Size
	}

	return stats, nil
}

// resolveRows optionally dereferences each REFERENCE row in rows to the
// REGULAR artifact holding its bytes.
func (r *Resolver) resolveRows(ctx context.Context, rows []store.ArtifactRecord, deref bool) ([]ResolvedEntry, error) {
	out := make([]ResolvedEntry, len(rows))

	for i, row := range rows {
		resolved := ResolvedEntry{ArtifactRecord: row}

		if deref && row.Kind == store.KindReference {
			target, broken, err := r.dereference(ctx, row)
			if err != nil {
				return nil, err
			}

			if broken {
				resolved.Broken = true
			} else {
				resolved.Size = target.Size
				resolved.ModTime = target.ModTime
				resolved.Hash = target.Hash
			}
		}

		out[i] = resolved
	}

	return out, nil
}

// dereference follows ref's referent chain up to maxReferenceHops,
// returning the terminal REGULAR row. A chain that exceeds the bound or
// terminates at a DELETE_MARKER is reported broken rather than erroring,
// per spec.md §4.6.
func (r *Resolver) dereference(ctx context.Context, ref store.ArtifactRecord) (store.ArtifactRecord, bool, error) {
	current := ref
	seen := make(map[string]bool, maxReferenceHops)

	for hop := 0; hop < maxReferenceHops; hop++ {
		if current.Kind != store.KindReference {
			return current, false, nil
		}

		if current.ReferentRealPath == nil {
			return store.ArtifactRecord{}, true, nil
		}

		if seen[current.RealPath] {
			return store.ArtifactRecord{}, true, nil // cycle
		}

		seen[current.RealPath] = true

		next, ok, err := r.store.GetByRealPath(ctx, *current.ReferentRealPath)
		if err != nil {
			return store.ArtifactRecord{}, false, fmt.Errorf("core: resolver: dereference %s: %w", ref.ApparentPath, err)
		}

		if !ok || next.Kind == store.KindDeleteMarker {
			return store.ArtifactRecord{}, true, nil
		}

		current = next
	}

	return store.ArtifactRecord{}, true, nil // exceeded bound, treat as cycle
}
