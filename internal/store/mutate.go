package store

import (
	"context"
	"encoding/json"
	"fmt"
)

func artifactArgs(r ArtifactRecord) []any {
	return []any{
		r.ApparentPath, r.RealPath, r.Timestamp, string(r.Kind), r.Size,
		r.ModTime, r.Hash, r.ReferentRealPath, boolToInt(r.DstMetadataPresent), boolToInt(r.PendingPrune),
	}
}

func boolToInt(b bool) int64 {
	if b {
		return 1
	}

	return 0
}

// InsertArtifact inserts or replaces the row for (ApparentPath,
// Timestamp). Called by the executor immediately after the driver
// confirms the corresponding destination change, and by refresh's Import
// for each imported record.
func (s *Store) InsertArtifact(ctx context.Context, r ArtifactRecord) error {
	if _, err := s.artifactStmts.insert.ExecContext(ctx, artifactArgs(r)...); err != nil {
		return fmt.Errorf("store: insert artifact %s: %w", r.ApparentPath, err)
	}

	return nil
}

// BatchInsert inserts many rows within a single transaction, used by
// refresh/import for throughput when reconstructing the index from a
// full destination listing.
func (s *Store) BatchInsert(ctx context.Context, records []ArtifactRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("store: begin batch insert: %w", err)
	}
	defer tx.Rollback() //nolint:errcheck

	stmt := tx.StmtContext(ctx, s.artifactStmts.insert)

	for _, r := range records {
		if _, err := stmt.ExecContext(ctx, artifactArgs(r)...); err != nil {
			return fmt.Errorf("store: batch insert %s: %w", r.ApparentPath, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("store: commit batch insert: %w", err)
	}

	return nil
}

// MarkPendingPrune annotates the row identified by realPath as a prune
// candidate, without removing it. This is phase one of C7's two-phase
// execution: annotate, then delete-and-commit once the driver confirms
// removal.
func (s *Store) MarkPendingPrune(ctx context.Context, realPath string) error {
	if _, err := s.artifactStmts.markPendingPrune.ExecContext(ctx, realPath); err != nil {
		return fmt.Errorf("store: mark pending prune %s: %w", realPath, err)
	}

	return nil
}

// DeleteArtifact removes the row identified by realPath. Idempotent: a
// row absent from the destination is removed from the index even if the
// driver reports the object was already gone.
func (s *Store) DeleteArtifact(ctx context.Context, realPath string) error {
	if _, err := s.artifactStmts.deleteByKey.ExecContext(ctx, realPath); err != nil {
		return fmt.Errorf("store: delete artifact %s: %w", realPath, err)
	}

	return nil
}

// ResetAll wipes every artifact row. Used by refresh to rebuild the
// index from scratch off an authoritative destination listing.
func (s *Store) ResetAll(ctx context.Context) error {
	if _, err := s.db.ExecContext(ctx, "DELETE FROM artifacts"); err != nil {
		return fmt.Errorf("store: reset all: %w", err)
	}

	return nil
}

// InsertRun records one backup run's aggregate counts.
func (s *Store) InsertRun(ctx context.Context, r RunRecord) error {
	counts, err := json.Marshal(r.CountsByKind)
	if err != nil {
		return fmt.Errorf("store: marshal run counts: %w", err)
	}

	_, err = s.runStmts.insert.ExecContext(ctx, r.Timestamp, r.HostID, r.ConfigID, string(counts), r.ElapsedMillis)
	if err != nil {
		return fmt.Errorf("store: insert run %d: %w", r.Timestamp, err)
	}

	return nil
}

// ListRuns returns every recorded run, most recent first.
func (s *Store) ListRuns(ctx context.Context) ([]RunRecord, error) {
	rows, err := s.runStmts.list.QueryContext(ctx)
	if err != nil {
		return nil, fmt.Errorf("store: list runs: %w", err)
	}
	defer rows.Close()

	var out []RunRecord

	for rows.Next() {
		var (
			r      RunRecord
			counts string
		)

		if err := rows.Scan(&r.Timestamp, &r.HostID, &r.ConfigID, &counts, &r.ElapsedMillis); err != nil {
			return nil, fmt.Errorf("store: scan run: %w", err)
		}

		if err := json.Unmarshal([]byte(counts), &r.CountsByKind); err != nil {
			return nil, fmt.Errorf("store: unmarshal run counts: %w", err)
		}

		out = append(out, r)
	}

	return out, rows.Err()
}

// SaveConfigSnapshot records the current fingerprint for configID,
// overwriting any prior value.
func (s *Store) SaveConfigSnapshot(ctx context.Context, configID, fingerprint string, updatedUnix int64) error {
	_, err := s.configStmts.save.ExecContext(ctx, configID, fingerprint, updatedUnix)
	if err != nil {
		return fmt.Errorf("store: save config snapshot %s: %w", configID, err)
	}

	return nil
}
