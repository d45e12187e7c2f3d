package core

import (
	"bytes"
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestSidecarPathLayout(t *testing.T) {
	ts := time.Date(2024, 3, 5, 14, 30, 0, 0, time.UTC)

	got := SidecarPath(ts, SidecarBackup, CodecGzip)
	assert.Equal(t, ".dfb/snapshots/2024/2024-03-05/143000.backup.jsonl.gz", got)

	got = SidecarPath(ts, SidecarPrune, CodecXZ)
	assert.Equal(t, ".dfb/snapshots/2024/2024-03-05/143000.prune.jsonl.xz", got)
}

func TestSidecarGzipRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w, err := NewSidecarWriter(&buf, CodecGzip)
	require.NoError(t, err)
	require.NoError(t, w.Write(DumpRecord{Kind: DumpUpload, ApparentPath: "a.txt", RealPath: "a.1", Timestamp: 1, Size: 10}))
	require.NoError(t, w.Close())

	path := SidecarPath(time.Now().UTC(), SidecarBackup, CodecGzip)
	r, err := OpenSidecar(&buf, path)
	require.NoError(t, err)

	recs, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "a.txt", recs[0].ApparentPath)
}

func TestSidecarXZRoundTrip(t *testing.T) {
	var buf bytes.Buffer

	w, err := NewSidecarWriter(&buf, CodecXZ)
	require.NoError(t, err)
	require.NoError(t, w.Write(DumpRecord{Kind: DumpPrune, RealPath: "old.1"}))
	require.NoError(t, w.Close())

	path := SidecarPath(time.Now().UTC(), SidecarPrune, CodecXZ)
	r, err := OpenSidecar(&buf, path)
	require.NoError(t, err)

	recs, err := r.ReadAll(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, DumpPrune, recs[0].Kind)
}

func TestOpenSidecarRejectsUnrecognizedSuffix(t *testing.T) {
	var buf bytes.Buffer

	_, err := OpenSidecar(&buf, "weird.jsonl.zip")
	assert.Error(t, err)
}
