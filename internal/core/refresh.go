package core

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"golang.org/x/sync/errgroup"

	"github.com/Jwink3101/dfb/internal/driver"
	"github.com/Jwink3101/dfb/internal/naming"
	"github.com/Jwink3101/dfb/internal/reference"
	"github.com/Jwink3101/dfb/internal/store"
)

// Refresher authoritatively rebuilds the index (C4) from a destination's
// raw object listing, per spec.md §4.8.
type Refresher struct {
	store   *store.Store
	drv     driver.Driver
	workers int
	logger  *slog.Logger
}

// NewRefresher creates a Refresher over st and drv. workers bounds how
// many listed objects are decoded (REFERENCE payloads fetched) at once
// after List returns; values below 1 are raised to 1.
func NewRefresher(st *store.Store, drv driver.Driver, workers int, logger *slog.Logger) *Refresher {
	if workers < 1 {
		workers = 1
	}

	if logger == nil {
		logger = slog.Default()
	}

	return &Refresher{store: st, drv: drv, workers: workers, logger: logger}
}

// Refresh resets the index and reconstructs it entirely from the
// destination's authoritative listing under remoteRoot, then enriches
// the result with any sidecars a SidecarReader yields (optional; pass
// nil to skip enrichment).
func (r *Refresher) Refresh(ctx context.Context, remoteRoot string, sidecars *SidecarReader) error {
	r.logger.Info("refresh: resetting index")

	if err := r.store.ResetAll(ctx); err != nil {
		return fmt.Errorf("core: refresh: reset index: %w", err)
	}

	entries, err := r.drv.List(ctx, remoteRoot)
	if err != nil {
		return fmt.Errorf("core: refresh: list destination: %w", err)
	}

	r.logger.Info("refresh: listed destination objects", "count", len(entries))

	records, err := r.decodeEntries(ctx, entries)
	if err != nil {
		return err
	}

	if sidecars != nil {
		enriched, sidecarErr := sidecars.ReadAll(ctx)
		if sidecarErr != nil {
			// Sidecars are advisory (spec.md §4.8 step 3); a read failure
			// degrades refresh to listing-only rather than aborting it.
			r.logger.Warn("refresh: sidecar read failed, continuing without enrichment", "error", sidecarErr)
		} else {
			enrichFromSidecars(records, enriched)
		}
	}

	if err := r.store.BatchInsert(ctx, records); err != nil {
		return fmt.Errorf("core: refresh: commit rebuilt index: %w", err)
	}

	r.logger.Info("refresh: index rebuilt", "rows", len(records))

	return nil
}

// decodeEntries translates each destination Entry into an ArtifactRecord
// by decoding its real path (C2) and, for REFERENCE artifacts, fetching
// and parsing the payload. REFERENCE payload fetches run concurrently,
// bounded by r.workers, since each is an independent round trip to the
// driver.
func (r *Refresher) decodeEntries(ctx context.Context, entries []driver.Entry) ([]store.ArtifactRecord, error) {
	records := make([]store.ArtifactRecord, len(entries))

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(r.workers)

	var mu sync.Mutex // guards r.logger.Warn below; records[i] writes are index-disjoint

	for i, entry := range entries {
		i, entry := i, entry

		g.Go(func() error {
			rec, skip, err := r.decodeOne(gctx, entry)
			if err != nil {
				return err
			}

			if skip {
				mu.Lock()
				r.logger.Warn("refresh: skipping unparseable destination object", "name", entry.Name)
				mu.Unlock()

				return nil
			}

			records[i] = rec

			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, fmt.Errorf("core: refresh: decoding destination listing: %w", err)
	}

	out := records[:0]

	for _, rec := range records {
		if rec.RealPath == "" {
			continue // slot left empty by a skipped entry
		}

		out = append(out, rec)
	}

	return out, nil
}

// decodeOne classifies a single destination object. skip is true for
// entries naming.Decode cannot place a timestamp in — these are foreign
// objects under the destination root that refresh leaves untouched and
// unindexed.
func (r *Refresher) decodeOne(ctx context.Context, entry driver.Entry) (store.ArtifactRecord, bool, error) {
	apparent, t, flag, hasTS := naming.Decode(entry.Name)
	if !hasTS {
		return store.ArtifactRecord{}, true, nil
	}

	if naming.IsEmptyMarker(apparent) {
		return store.ArtifactRecord{
			ApparentPath: apparent,
			RealPath:     entry.Name,
			Timestamp:    t.Unix(),
			Kind:         store.KindEmptyDirMarker,
			Size:         0,
		}, false, nil
	}

	rec := store.ArtifactRecord{
		ApparentPath: apparent,
		RealPath:     entry.Name,
		Timestamp:    t.Unix(),
		Size:         entry.Size,
	}

	if entry.ModTime != nil {
		mt := entry.ModTime.Unix()
		rec.ModTime = &mt
	}

	rec.Hash = entry.Hash

	switch flag {
	case naming.FlagDelete:
		rec.Kind = store.KindDeleteMarker
		rec.Size = store.DeletedSizeSentinel
	case naming.FlagReference:
		rec.Kind = store.KindReference

		payload, err := r.drv.GetSmall(ctx, entry.Name)
		if err != nil {
			return store.ArtifactRecord{}, false, fmt.Errorf("core: refresh: reading reference payload %s: %w", entry.Name, err)
		}

		rel, _, err := reference.Parse(payload)
		if err != nil {
			return store.ArtifactRecord{}, false, fmt.Errorf("core: refresh: parsing reference payload %s: %w", entry.Name, err)
		}

		referent := reference.Resolve(entry.Name, rel)
		rec.ReferentRealPath = &referent
	default:
		rec.Kind = store.KindRegular
	}

	return rec, false, nil
}

// enrichFromSidecars fills in the modtime field on records from matching
// sidecar entries. Sidecars are secondary: they never add or remove
// rows, only fill in fields the authoritative listing left empty
// (spec.md §4.8 step 3). The action-dump wire format (§6) carries no
// hash field, so modtime is the only attribute sidecars can enrich.
func enrichFromSidecars(records []store.ArtifactRecord, sidecarRecords []DumpRecord) {
	byRealPath := make(map[string]DumpRecord, len(sidecarRecords))
	for _, sr := range sidecarRecords {
		byRealPath[sr.RealPath] = sr
	}

	for i := range records {
		sr, ok := byRealPath[records[i].RealPath]
		if !ok {
			continue
		}

		if records[i].ModTime == nil && sr.ModTime != nil {
			records[i].ModTime = sr.ModTime
		}
	}
}

// Import adds records to the index without requiring a corresponding
// destination object, for cold-storage `dbimport` workflows (spec.md
// §4.8). records must already be in application order — oldest first —
// since a PRUNE record removes a row that an earlier record in the same
// batch may have inserted.
func (r *Refresher) Import(ctx context.Context, records []ImportRecord) error {
	for _, rec := range records {
		if rec.Prune {
			if err := r.store.DeleteArtifact(ctx, rec.Artifact.RealPath); err != nil {
				return fmt.Errorf("core: import: prune row %s: %w", rec.Artifact.RealPath, err)
			}

			continue
		}

		if err := r.store.InsertArtifact(ctx, rec.Artifact); err != nil {
			return fmt.Errorf("core: import: insert row %s: %w", rec.Artifact.RealPath, err)
		}
	}

	return nil
}

// ImportRecord is one line of a dbimport batch: either an artifact row to
// insert, or a standalone instruction to remove a previously-imported row
// (mirroring an action-dump PRUNE record).
type ImportRecord struct {
	Artifact store.ArtifactRecord
	Prune    bool
}
