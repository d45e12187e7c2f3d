package core

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Jwink3101/dfb/internal/store"
)

func newTestResolver(t *testing.T) (*Resolver, *store.Store) {
	t.Helper()

	st := newTestStoreForExecutor(t)

	return NewResolver(st), st
}

func TestResolverStateAtReflectsLatestVersion(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "a.txt", RealPath: "a.20240101000000.txt", Timestamp: 100, Kind: store.KindRegular, Size: 5,
	}))
	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "a.txt", RealPath: "a.20240102000000.txt", Timestamp: 200, Kind: store.KindRegular, Size: 9,
	}))

	entries, err := r.StateAt(ctx, 150, "", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(5), entries[0].Size)

	entries, err = r.StateAt(ctx, 250, "", false)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, int64(9), entries[0].Size)
}

func TestResolverDereferenceResolvesToReferent(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "old.txt", RealPath: "old.20240101000000.txt", Timestamp: 100, Kind: store.KindRegular, Size: 42,
		Hash: strp("h1"),
	}))

	referent := "old.20240101000000.txt"
	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "new.txt", RealPath: "new.20240102000000R.txt", Timestamp: 200, Kind: store.KindReference,
		Size: 42, ReferentRealPath: &referent,
	}))

	entries, err := r.StateAt(ctx, 300, "", true)
	require.NoError(t, err)
	require.Len(t, entries, 2)

	var newEntry *ResolvedEntry

	for i := range entries {
		if entries[i].ApparentPath == "new.txt" {
			newEntry = &entries[i]
		}
	}

	require.NotNil(t, newEntry)
	assert.False(t, newEntry.Broken)
	require.NotNil(t, newEntry.Hash)
	assert.Equal(t, "h1", *newEntry.Hash)
}

func TestResolverDereferenceFlagsBrokenChainAtDeleteMarker(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "old.txt", RealPath: "old.20240101000000D.txt", Timestamp: 100, Kind: store.KindDeleteMarker,
		Size: store.DeletedSizeSentinel,
	}))

	referent := "old.20240101000000D.txt"
	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "new.txt", RealPath: "new.20240102000000R.txt", Timestamp: 200, Kind: store.KindReference,
		ReferentRealPath: &referent,
	}))

	entries, err := r.StateAt(ctx, 300, "", true)
	require.NoError(t, err)

	var newEntry *ResolvedEntry

	for i := range entries {
		if entries[i].ApparentPath == "new.txt" {
			newEntry = &entries[i]
		}
	}

	require.NotNil(t, newEntry)
	assert.True(t, newEntry.Broken)
}

func TestResolverDereferenceDetectsCycle(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	refA := "b.20240101000000R.txt"
	refB := "a.20240101000000R.txt"

	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "a.txt", RealPath: "a.20240101000000R.txt", Timestamp: 100, Kind: store.KindReference,
		ReferentRealPath: &refA,
	}))
	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "b.txt", RealPath: "b.20240101000000R.txt", Timestamp: 100, Kind: store.KindReference,
		ReferentRealPath: &refB,
	}))

	entries, err := r.StateAt(ctx, 200, "", true)
	require.NoError(t, err)

	for _, e := range entries {
		assert.True(t, e.Broken)
	}
}

func TestResolverVersionsAndTimestamps(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "a.txt", RealPath: "a.1.txt", Timestamp: 100, Kind: store.KindRegular, Size: 1,
	}))
	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "a.txt", RealPath: "a.2.txt", Timestamp: 200, Kind: store.KindRegular, Size: 2,
	}))

	versions, err := r.Versions(ctx, "a.txt")
	require.NoError(t, err)
	require.Len(t, versions, 2)
	assert.Equal(t, int64(200), versions[0].Timestamp)

	timestamps, err := r.Timestamps(ctx)
	require.NoError(t, err)
	assert.Equal(t, []int64{100, 200}, timestamps)
}

func TestResolverStats(t *testing.T) {
	r, st := newTestResolver(t)
	ctx := context.Background()

	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "a.txt", RealPath: "a.1.txt", Timestamp: 100, Kind: store.KindRegular, Size: 10,
	}))
	require.NoError(t, st.InsertArtifact(ctx, store.ArtifactRecord{
		ApparentPath: "b.txt", RealPath: "b.1.txt", Timestamp: 100, Kind: store.KindRegular, Size: 20,
	}))

	stats, err := r.Stats(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, stats.LogicalPaths)
	assert.Equal(t, int64(30), stats.TotalSize)
	assert.Equal(t, int64(100), stats.LatestRunUnix)
}
