package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
)

// scanArtifact scans one full artifact row.
func scanArtifact(row interface{ Scan(...any) error }) (ArtifactRecord, error) {
	var (
		r        ArtifactRecord
		kind     string
		metaPres int64
		pending  int64
	)

	err := row.Scan(
		&r.ApparentPath, &r.RealPath, &r.Timestamp, &kind, &r.Size,
		&r.ModTime, &r.Hash, &r.ReferentRealPath, &metaPres, &pending,
	)
	if err != nil {
		return ArtifactRecord{}, err
	}

	r.Kind = Kind(kind)
	r.DstMetadataPresent = metaPres != 0
	r.PendingPrune = pending != 0

	return r, nil
}

func scanArtifactRows(rows *sql.Rows) ([]ArtifactRecord, error) {
	defer rows.Close()

	var out []ArtifactRecord

	for rows.Next() {
		r, err := scanArtifact(rows)
		if err != nil {
			return nil, fmt.Errorf("store: scan artifact row: %w", err)
		}

		out = append(out, r)
	}

	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("store: iterate artifact rows: %w", err)
	}

	return out, nil
}

// GetByRealPath returns the single row identified by its real path, or
// (zero, false, nil) if no such row exists.
func (s *Store) GetByRealPath(ctx context.Context, realPath string) (ArtifactRecord, bool, error) {
	r, err := scanArtifact(s.artifactStmts.get.QueryRowContext(ctx, realPath))
	if errors.Is(err, sql.ErrNoRows) {
		return ArtifactRecord{}, false, nil
	}

	if err != nil {
		return ArtifactRecord{}, false, fmt.Errorf("store: get %s: %w", realPath, err)
	}

	return r, true, nil
}

// Versions returns every row recorded for apparentPath, newest first.
func (s *Store) Versions(ctx context.Context, apparentPath string) ([]ArtifactRecord, error) {
	rows, err := s.artifactStmts.versions.QueryContext(ctx, apparentPath)
	if err != nil {
		return nil, fmt.Errorf("store: versions %s: %w", apparentPath, err)
	}

	return scanArtifactRows(rows)
}

// StateAt returns the logical state of the tree at or before cutoffUnix:
// the single most-recent row for each apparent path, restricted to
// subpath when non-empty (an exact path or a "dir/" prefix).
func (s *Store) StateAt(ctx context.Context, cutoffUnix int64, subpath string) ([]ArtifactRecord, error) {
	rows, err := s.artifactStmts.stateAt.QueryContext(ctx, cutoffUnix, cutoffUnix)
	if err != nil {
		return nil, fmt.Errorf("store: state at %d: %w", cutoffUnix, err)
	}

	all, err := scanArtifactRows(rows)
	if err != nil {
		return nil, err
	}

	if subpath == "" {
		return all, nil
	}

	prefix := strings.TrimSuffix(subpath, "/") + "/"

	filtered := all[:0]

	for _, r := range all {
		if r.ApparentPath == subpath || strings.HasPrefix(r.ApparentPath, prefix) {
			filtered = append(filtered, r)
		}
	}

	return filtered, nil
}

// Tree is StateAt restricted to a directory listing; it shares the same
// query but is kept as a distinct entry point so callers express intent
// (point-in-time resolution vs. directory enumeration) at the call site.
func (s *Store) Tree(ctx context.Context, cutoffUnix int64, dir string) ([]ArtifactRecord, error) {
	return s.StateAt(ctx, cutoffUnix, dir)
}

// Timestamps returns every distinct run timestamp present in the index,
// ascending.
func (s *Store) Timestamps(ctx context.Context) ([]int64, error) {
	rows, err := s.artifactStmts.timestamps.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: timestamps: %w", err)
	}
	defer rows.Close()

	var out []int64

	for rows.Next() {
		var ts int64
		if err := rows.Scan(&ts); err != nil {
			return nil, fmt.Errorf("store: scan timestamp: %w", err)
		}

		out = append(out, ts)
	}

	return out, rows.Err()
}

// RefCount returns how many REFERENCE rows point at realPath. Used by the
// prune planner to decide whether a row is protected by a live reference
// chain.
func (s *Store) RefCount(ctx context.Context, realPath string) (int, error) {
	var n int

	if err := s.artifactStmts.refCount.QueryRowContext(ctx, realPath).Scan(&n); err != nil {
		return 0, fmt.Errorf("store: ref count %s: %w", realPath, err)
	}

	return n, nil
}

// AllRows returns every row in the index, ordered by apparent path then
// timestamp ascending. Used by the prune planner, which needs the full
// version history rather than a point-in-time slice.
func (s *Store) AllRows(ctx context.Context) ([]ArtifactRecord, error) {
	rows, err := s.artifactStmts.allRows.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: all rows: %w", err)
	}

	return scanArtifactRows(rows)
}

// AllReferences returns every REFERENCE row in the index.
func (s *Store) AllReferences(ctx context.Context) ([]ArtifactRecord, error) {
	rows, err := s.artifactStmts.allReferences.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: all references: %w", err)
	}

	return scanArtifactRows(rows)
}

// GetConfigSnapshot returns the last-recorded fingerprint for configID,
// or ok=false if none is recorded yet.
func (s *Store) GetConfigSnapshot(ctx context.Context, configID string) (fingerprint string, ok bool, err error) {
	var updatedUnix int64

	err = s.configStmts.get.QueryRowContext(ctx, configID).Scan(&fingerprint, &updatedUnix)
	if errors.Is(err, sql.ErrNoRows) {
		return "", false, nil
	}

	if err != nil {
		return "", false, fmt.Errorf("store: get config snapshot %s: %w", configID, err)
	}

	return fingerprint, true, nil
}
