package config

import (
	"bytes"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testRenderTarget(t *testing.T) *ResolvedTarget {
	t.Helper()

	return &ResolvedTarget{
		Name:                "home",
		Source:              Endpoint{Type: EndpointLocal, Location: "/home/me/docs"},
		Destination:         Endpoint{Type: EndpointLocal, Location: "/mnt/backup/home"},
		Compare:             compareAttributes["hash"],
		RenameDetection:     renameDetections["mtime"],
		CompareName:         "hash",
		RenameDetectionName: "mtime",
		ServerSideCopyMoves: true,
		EmptyDirMarkers:     true,
		MinReferenceSize:    1048576,
		Workers:             8,
		ConfigID:            "home",
		CacheDir:            "/home/me/.cache/dfb",
	}
}

func TestRenderEffective_CoreFieldsShown(t *testing.T) {
	rt := testRenderTarget(t)

	var buf bytes.Buffer
	err := RenderEffective(rt, &buf)
	require.NoError(t, err)

	output := buf.String()
	assert.Contains(t, output, `target "home"`)
	assert.Contains(t, output, "local:/home/me/docs")
	assert.Contains(t, output, "local:/mnt/backup/home")
	assert.Contains(t, output, "compare")
	assert.Contains(t, output, "hash")
	assert.Contains(t, output, "rename_detection")
	assert.Contains(t, output, "mtime")
	assert.Contains(t, output, "config_id")
	assert.Contains(t, output, "index_path")
}

func TestRenderEffective_SubdirOmittedWhenEmpty(t *testing.T) {
	rt := testRenderTarget(t)
	rt.Subdir = ""

	var buf bytes.Buffer
	err := RenderEffective(rt, &buf)
	require.NoError(t, err)
	assert.NotContains(t, buf.String(), "subdir")
}

func TestRenderEffective_SubdirShownWhenSet(t *testing.T) {
	rt := testRenderTarget(t)
	rt.Subdir = "Documents"

	var buf bytes.Buffer
	err := RenderEffective(rt, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), "Documents")
}

func TestRenderEffective_IndexPathDerived(t *testing.T) {
	rt := testRenderTarget(t)

	var buf bytes.Buffer
	err := RenderEffective(rt, &buf)
	require.NoError(t, err)
	assert.Contains(t, buf.String(), rt.IndexPath())
}

// failWriter is a writer that always fails, used to exercise error paths
// in the errWriter pattern.
type failWriter struct{}

var errWriteFailed = errors.New("write failed")

func (failWriter) Write([]byte) (int, error) {
	return 0, errWriteFailed
}

func TestRenderEffective_WriteError(t *testing.T) {
	rt := testRenderTarget(t)

	err := RenderEffective(rt, failWriter{})
	require.Error(t, err)
	assert.ErrorIs(t, err, errWriteFailed)
}
