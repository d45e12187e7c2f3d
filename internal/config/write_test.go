package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- WriteInitialConfig tests ---

func TestWriteInitialConfig_CreatesFileWithTemplate(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	err := WriteInitialConfig(path, "home", "local:/home/me/docs", "local:/mnt/backup/home", testLogger(t))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, "# dfb configuration")
	assert.Contains(t, content, `["home"]`)
	assert.Contains(t, content, `source      = "local:/home/me/docs"`)
	assert.Contains(t, content, `destination = "local:/mnt/backup/home"`)
}

func TestWriteInitialConfig_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	err := WriteInitialConfig(path, "home", "local:/home/me/docs", "local:/mnt/backup/home", testLogger(t))
	require.NoError(t, err)

	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 1)

	target := cfg.Targets["home"]
	assert.Equal(t, "local:/home/me/docs", target.Source)
	assert.Equal(t, "local:/mnt/backup/home", target.Destination)
	assert.Equal(t, "hash", target.Compare)
}

func TestWriteInitialConfig_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "deep", "config.toml")

	err := WriteInitialConfig(path, "home", "local:/home/me/docs", "local:/mnt/backup/home", testLogger(t))
	require.NoError(t, err)

	_, err = os.Stat(path)
	assert.NoError(t, err)
}

func TestWriteInitialConfig_FilePermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	err := WriteInitialConfig(path, "home", "local:/home/me/docs", "local:/mnt/backup/home", testLogger(t))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFilePermissions), info.Mode().Perm())
}

// --- AppendTargetSection tests ---

func TestAppendTargetSection_AppendsToExistingFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	err := WriteInitialConfig(path, "home", "local:/home/me/docs", "local:/mnt/backup/home", testLogger(t))
	require.NoError(t, err)

	err = AppendTargetSection(path, "photos", "local:/home/me/photos", "local:/mnt/backup/photos", testLogger(t))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	content := string(data)

	assert.Contains(t, content, `["home"]`)
	assert.Contains(t, content, `["photos"]`)
	assert.Contains(t, content, `source      = "local:/home/me/photos"`)
}

func TestAppendTargetSection_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	err := WriteInitialConfig(path, "home", "local:/home/me/docs", "local:/mnt/backup/home", testLogger(t))
	require.NoError(t, err)

	err = AppendTargetSection(path, "photos", "local:/home/me/photos", "local:/mnt/backup/photos", testLogger(t))
	require.NoError(t, err)

	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 2)

	assert.Equal(t, "local:/home/me/docs", cfg.Targets["home"].Source)
	assert.Equal(t, "local:/home/me/photos", cfg.Targets["photos"].Source)
}

func TestAppendTargetSection_FileWithoutTrailingNewline(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	err := os.WriteFile(path, []byte(`["home"]
source = "local:/home/me/docs"
destination = "local:/mnt/backup/home"
compare = "hash"
rename_detection = "mtime"`), configFilePermissions)
	require.NoError(t, err)

	err = AppendTargetSection(path, "photos", "local:/home/me/photos", "local:/mnt/backup/photos", testLogger(t))
	require.NoError(t, err)

	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, "local:/mnt/backup/photos", cfg.Targets["photos"].Destination)
}

func TestAppendTargetSection_FileNotFound(t *testing.T) {
	err := AppendTargetSection("/nonexistent/config.toml", "home", "local:/a", "local:/b", testLogger(t))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "reading config file")
}

// --- atomicWriteFile tests ---

func TestAtomicWriteFile_WritesFile(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")

	err := atomicWriteFile(path, []byte("hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestAtomicWriteFile_CreatesParentDirectory(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "sub", "dir", "test.txt")

	err := atomicWriteFile(path, []byte("hello"))
	require.NoError(t, err)

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "hello", string(data))
}

func TestAtomicWriteFile_SetsPermissions(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "test.txt")

	err := atomicWriteFile(path, []byte("hello"))
	require.NoError(t, err)

	info, err := os.Stat(path)
	require.NoError(t, err)
	assert.Equal(t, os.FileMode(configFilePermissions), info.Mode().Perm())
}

func TestAtomicWriteFile_InvalidDirectory(t *testing.T) {
	// Use a path under a file (not a directory) to trigger MkdirAll failure.
	dir := t.TempDir()
	blocker := filepath.Join(dir, "blocker")
	err := os.WriteFile(blocker, []byte("I'm a file"), configFilePermissions)
	require.NoError(t, err)

	path := filepath.Join(blocker, "sub", "test.txt")
	err = atomicWriteFile(path, []byte("hello"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "creating config directory")
}

// --- Integration scenario ---

func TestScenario_InitThenAddSecondTarget(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "config.toml")

	err := WriteInitialConfig(path, "home", "local:/home/me/docs", "local:/mnt/backup/home", testLogger(t))
	require.NoError(t, err)

	err = AppendTargetSection(path, "photos", "local:/home/me/photos", "local:/mnt/backup/photos", testLogger(t))
	require.NoError(t, err)

	cfg, err := Load(path, testLogger(t))
	require.NoError(t, err)
	require.Len(t, cfg.Targets, 2)
	assert.Equal(t, "info", cfg.LogLevel)
}
