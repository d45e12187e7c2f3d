package main

import (
	"bytes"
	"context"
	"fmt"
	"time"

	"github.com/Jwink3101/dfb/internal/core"
	"github.com/Jwink3101/dfb/internal/driver"
	"github.com/Jwink3101/dfb/internal/store"
)

// importRecordFromDump translates one decoded action-dump record into the
// ImportRecord shape core.Refresher.Import consumes (spec.md §4.8's
// dbimport workflow). A PRUNE record carries no artifact fields beyond
// the real path being removed.
func importRecordFromDump(dr core.DumpRecord) core.ImportRecord {
	if dr.Kind == core.DumpPrune {
		return core.ImportRecord{Prune: true, Artifact: store.ArtifactRecord{RealPath: dr.RealPath}}
	}

	rec := store.ArtifactRecord{
		ApparentPath: dr.ApparentPath,
		RealPath:     dr.RealPath,
		Timestamp:    dr.Timestamp,
		Size:         dr.Size,
		ModTime:      dr.ModTime,
	}

	switch dr.Kind {
	case core.DumpUpload, core.DumpMoveByCopy:
		rec.Kind = store.KindRegular
	case core.DumpMoveByReference:
		rec.Kind = store.KindReference
		referent := dr.ReferentPath
		rec.ReferentRealPath = &referent
	case core.DumpDelete:
		rec.Kind = store.KindDeleteMarker
		rec.Size = store.DeletedSizeSentinel
	}

	return core.ImportRecord{Artifact: rec}
}

// writePruneSidecar records a prune run's deleted real paths as a
// gzip-compressed sidecar, mirroring writeBackupSidecar but with the
// narrower PRUNE record kind (spec.md §6).
func writePruneSidecar(ctx context.Context, drv driver.Driver, plan *core.PrunePlan, runTimestamp int64) error {
	var buf bytes.Buffer

	sw, err := core.NewSidecarWriter(&buf, core.CodecGzip)
	if err != nil {
		return fmt.Errorf("opening sidecar writer: %w", err)
	}

	for _, rec := range plan.ToDelete {
		if err := sw.Write(core.DumpRecord{Kind: core.DumpPrune, RealPath: rec.RealPath}); err != nil {
			return fmt.Errorf("writing sidecar record: %w", err)
		}
	}

	if err := sw.Close(); err != nil {
		return fmt.Errorf("closing sidecar: %w", err)
	}

	path := core.SidecarPath(time.Unix(runTimestamp, 0).UTC(), core.SidecarPrune, core.CodecGzip)

	return drv.PutSmall(ctx, path, buf.Bytes())
}
