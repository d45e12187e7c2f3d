package core

import (
	"bytes"
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDumpWriteReadRoundTripsUpload(t *testing.T) {
	var buf bytes.Buffer

	mt := int64(1704060000)
	w := NewDumpWriter(&buf)
	require.NoError(t, w.Write(DumpRecord{
		Kind: DumpUpload, ApparentPath: "a.txt", RealPath: "a.20240101000000", Timestamp: 1704067200, Size: 42, ModTime: &mt,
	}))
	require.NoError(t, w.Flush())

	recs, err := NewDumpReader(&buf).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)

	got := recs[0]
	assert.Equal(t, DumpUpload, got.Kind)
	assert.Equal(t, "a.txt", got.ApparentPath)
	assert.Equal(t, int64(42), got.Size)
	require.NotNil(t, got.ModTime)
	assert.Equal(t, mt, *got.ModTime)
}

func TestDumpDeleteRecordHasSentinelSize(t *testing.T) {
	var buf bytes.Buffer

	w := NewDumpWriter(&buf)
	require.NoError(t, w.Write(DumpRecord{Kind: DumpDelete, ApparentPath: "a.txt", RealPath: "a.20240101000000D", Timestamp: 1704067200}))
	require.NoError(t, w.Flush())

	recs, err := NewDumpReader(&buf).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, int64(-1), recs[0].Size)
}

func TestDumpMoveByReferenceCarriesReferentAndOriginal(t *testing.T) {
	var buf bytes.Buffer

	w := NewDumpWriter(&buf)
	require.NoError(t, w.Write(DumpRecord{
		Kind: DumpMoveByReference, ApparentPath: "new.txt", RealPath: "new.20240101000000R",
		Timestamp: 1704067200, ReferentPath: "old.20240101000000", Original: "old.txt",
	}))
	require.NoError(t, w.Flush())

	recs, err := NewDumpReader(&buf).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.True(t, recs[0].IsReference)
	assert.Equal(t, "old.20240101000000", recs[0].ReferentPath)
	assert.Equal(t, "old.txt", recs[0].Original)
}

func TestDumpMoveByCopyCarriesSourceRealPath(t *testing.T) {
	var buf bytes.Buffer

	w := NewDumpWriter(&buf)
	require.NoError(t, w.Write(DumpRecord{
		Kind: DumpMoveByCopy, ApparentPath: "new.txt", RealPath: "new.20240101000000",
		Timestamp: 1704067200, SourcePath: "old.20240101000000", Original: "old.txt",
	}))
	require.NoError(t, w.Flush())

	recs, err := NewDumpReader(&buf).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.False(t, recs[0].IsReference)
	assert.Equal(t, "old.20240101000000", recs[0].SourcePath)
}

func TestDumpPruneRecordOnlyCarriesRealPath(t *testing.T) {
	var buf bytes.Buffer

	w := NewDumpWriter(&buf)
	require.NoError(t, w.Write(DumpRecord{Kind: DumpPrune, RealPath: "old.20240101000000"}))
	require.NoError(t, w.Flush())

	recs, err := NewDumpReader(&buf).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, DumpPrune, recs[0].Kind)
	assert.Equal(t, "old.20240101000000", recs[0].RealPath)
}

func TestDumpCommentRecordsAreIgnoredOnRead(t *testing.T) {
	var buf bytes.Buffer

	w := NewDumpWriter(&buf)
	require.NoError(t, w.Write(DumpRecord{Kind: DumpComment, Comment: map[string]any{"note": "manual edit"}}))
	require.NoError(t, w.Write(DumpRecord{Kind: DumpUpload, ApparentPath: "a.txt", RealPath: "a.1", Timestamp: 1, Size: 1}))
	require.NoError(t, w.Flush())

	recs, err := NewDumpReader(&buf).ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, DumpUpload, recs[0].Kind)
}

func TestDumpReaderSkipsBlankLines(t *testing.T) {
	buf := bytes.NewBufferString("\n\n")

	recs, err := NewDumpReader(buf).ReadAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, recs)
}
