package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jwink3101/dfb/internal/store"
)

func insertRow(t *testing.T, st *store.Store, r store.ArtifactRecord) {
	t.Helper()
	require.NoError(t, st.InsertArtifact(context.Background(), r))
}

func TestPruneRetainsAnchorAlways(t *testing.T) {
	st := newTestStoreForExecutor(t)
	ctx := context.Background()

	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.100", Timestamp: 100, Kind: store.KindRegular, Size: 1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.200", Timestamp: 200, Kind: store.KindRegular, Size: 2})

	pruner := NewPruner(st, discardLogger())
	plan, err := pruner.Plan(ctx, PruneConfig{CutoffUnix: 250, KeepVersions: 0})
	require.NoError(t, err)

	require.Len(t, plan.ToDelete, 1)
	assert.Equal(t, "a.100", plan.ToDelete[0].RealPath)
}

func TestPruneKeepVersionsRetainsExtraHistory(t *testing.T) {
	st := newTestStoreForExecutor(t)
	ctx := context.Background()

	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.100", Timestamp: 100, Kind: store.KindRegular, Size: 1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.200", Timestamp: 200, Kind: store.KindRegular, Size: 2})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.300", Timestamp: 300, Kind: store.KindRegular, Size: 3})

	pruner := NewPruner(st, discardLogger())
	// anchor is a.300; keep_versions=1 retains one row immediately
	// preceding it (a.200) in addition to the anchor, leaving only a.100
	// as a prune candidate.
	plan, err := pruner.Plan(ctx, PruneConfig{CutoffUnix: 350, KeepVersions: 1})
	require.NoError(t, err)

	require.Len(t, plan.ToDelete, 1)
	assert.Equal(t, "a.100", plan.ToDelete[0].RealPath)
}

func TestPruneKeepVersionsPrunesOnlyBeyondWindow(t *testing.T) {
	st := newTestStoreForExecutor(t)
	ctx := context.Background()

	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.100", Timestamp: 100, Kind: store.KindRegular, Size: 1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.200", Timestamp: 200, Kind: store.KindRegular, Size: 2})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.300", Timestamp: 300, Kind: store.KindRegular, Size: 3})

	pruner := NewPruner(st, discardLogger())
	plan, err := pruner.Plan(ctx, PruneConfig{CutoffUnix: 350, KeepVersions: 0})
	require.NoError(t, err)

	require.Len(t, plan.ToDelete, 2)
}

func TestPruneReferenceProtectionKeepsReferent(t *testing.T) {
	st := newTestStoreForExecutor(t)
	ctx := context.Background()

	insertRow(t, st, store.ArtifactRecord{ApparentPath: "old.txt", RealPath: "old.100", Timestamp: 100, Kind: store.KindRegular, Size: 1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "old.txt", RealPath: "old.200", Timestamp: 200, Kind: store.KindDeleteMarker, Size: -1})

	referent := "old.100"
	insertRow(t, st, store.ArtifactRecord{
		ApparentPath: "new.txt", RealPath: "new.150R", Timestamp: 150, Kind: store.KindReference,
		ReferentRealPath: &referent,
	})

	pruner := NewPruner(st, discardLogger())
	plan, err := pruner.Plan(ctx, PruneConfig{CutoffUnix: 500, KeepVersions: 0})
	require.NoError(t, err)

	for _, rec := range plan.ToDelete {
		assert.NotEqual(t, "old.100", rec.RealPath, "referenced row must be protected")
	}
}

func TestPruneOrphanedDeleteMarkerPrunedWithPredecessor(t *testing.T) {
	st := newTestStoreForExecutor(t)
	ctx := context.Background()

	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.100", Timestamp: 100, Kind: store.KindRegular, Size: 1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.200", Timestamp: 200, Kind: store.KindDeleteMarker, Size: -1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.300", Timestamp: 300, Kind: store.KindRegular, Size: 3})

	pruner := NewPruner(st, discardLogger())
	plan, err := pruner.Plan(ctx, PruneConfig{CutoffUnix: 350, KeepVersions: 0})
	require.NoError(t, err)

	// Anchor is a.300. Candidates (before anchor): a.100, a.200. Neither
	// is kept by the window (keep_versions=0). a.200's predecessor is
	// a.100, which is itself pruned, so a.200 may also be pruned
	// (orphaned marker) — both should appear in ToDelete.
	var names []string
	for _, rec := range plan.ToDelete {
		names = append(names, rec.RealPath)
	}

	assert.ElementsMatch(t, []string{"a.100", "a.200"}, names)
}

func TestPruneDisabledRefusesWithoutSideEffects(t *testing.T) {
	st := newTestStoreForExecutor(t)

	pruner := NewPruner(st, discardLogger())
	_, err := pruner.Plan(context.Background(), PruneConfig{DisablePrune: true})
	assert.ErrorIs(t, err, ErrPruneDisabled)
}

func TestPruneSubdirFiltersDeletionScope(t *testing.T) {
	st := newTestStoreForExecutor(t)
	ctx := context.Background()

	insertRow(t, st, store.ArtifactRecord{ApparentPath: "dir/a.txt", RealPath: "dir/a.100", Timestamp: 100, Kind: store.KindRegular, Size: 1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "dir/a.txt", RealPath: "dir/a.200", Timestamp: 200, Kind: store.KindRegular, Size: 2})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "other/b.txt", RealPath: "other/b.100", Timestamp: 100, Kind: store.KindRegular, Size: 1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "other/b.txt", RealPath: "other/b.200", Timestamp: 200, Kind: store.KindRegular, Size: 2})

	pruner := NewPruner(st, discardLogger())
	plan, err := pruner.Plan(ctx, PruneConfig{CutoffUnix: 250, KeepVersions: 0, Subdir: "dir"})
	require.NoError(t, err)

	require.Len(t, plan.ToDelete, 1)
	assert.Equal(t, "dir/a.100", plan.ToDelete[0].RealPath)
}

func TestPruneExecuteRemovesFromDriverAndIndex(t *testing.T) {
	st := newTestStoreForExecutor(t)
	ctx := context.Background()
	drv := newFakeDriver()

	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.100", Timestamp: 100, Kind: store.KindRegular, Size: 1})
	insertRow(t, st, store.ArtifactRecord{ApparentPath: "a.txt", RealPath: "a.200", Timestamp: 200, Kind: store.KindRegular, Size: 2})
	require.NoError(t, drv.PutSmall(ctx, "a.100", []byte("x")))

	pruner := NewPruner(st, discardLogger())
	plan, err := pruner.Plan(ctx, PruneConfig{CutoffUnix: 250, KeepVersions: 0})
	require.NoError(t, err)
	require.Len(t, plan.ToDelete, 1)

	report, err := pruner.Execute(ctx, plan, drv)
	require.NoError(t, err)
	assert.Equal(t, 1, report.Succeeded)

	_, ok, err := st.GetByRealPath(ctx, "a.100")
	require.NoError(t, err)
	assert.False(t, ok)

	_, ok = drv.objects["a.100"]
	assert.False(t, ok)
}
