// ABOUTME: Tests for the JSON checkpoint file
// ABOUTME: Covers load/merge semantics, atomic flush, and corrupt-file handling

package checkpoint

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestOpen_MissingFileIsEmpty(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 0, f.Len())
	assert.Equal(t, path, f.Path())
}

func TestOpen_LoadsExistingEntries(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")
	content := `{"az01s009": {"os_caption": "Windows Server 2022"}, "az01s010": {"os_caption": "Windows Server 2019"}}`
	require.NoError(t, os.WriteFile(path, []byte(content), 0644))

	f, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, 2, f.Len())
	assert.True(t, f.Has("az01s009"))
	assert.False(t, f.Has("az01s011"))

	payload, ok := f.Get("az01s010")
	require.True(t, ok)
	assert.JSONEq(t, `{"os_caption": "Windows Server 2019"}`, string(payload))
}

func TestOpen_CorruptFileFails(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")
	require.NoError(t, os.WriteFile(path, []byte(`{"az01s009": {`), 0644))

	_, err := Open(path)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "decoding checkpoint")
}

func TestFlush_RoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")

	f, err := Open(path)
	require.NoError(t, err)

	f.Put("az01s009", json.RawMessage(`{"memory_gb": 16}`))
	f.Put("az01s010", json.RawMessage(`{"memory_gb": 32}`))
	require.NoError(t, f.Flush())

	// The on-disk file is valid JSON with exactly the flushed entries.
	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var onDisk map[string]json.RawMessage
	require.NoError(t, json.Unmarshal(data, &onDisk))
	assert.Len(t, onDisk, 2)

	reloaded, err := Open(path)
	require.NoError(t, err)
	assert.Equal(t, []string{"az01s009", "az01s010"}, reloaded.Hostnames())
}

func TestFlush_OverwriteKeepsSingleEntry(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")

	f, err := Open(path)
	require.NoError(t, err)

	f.Put("az01s009", json.RawMessage(`{"rev": 1}`))
	f.Put("az01s009", json.RawMessage(`{"rev": 2}`))
	require.NoError(t, f.Flush())

	reloaded, err := Open(path)
	require.NoError(t, err)
	require.Equal(t, 1, reloaded.Len())

	payload, _ := reloaded.Get("az01s009")
	assert.JSONEq(t, `{"rev": 2}`, string(payload))
}

func TestFlush_LeavesNoTempFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "assets.json")

	f, err := Open(path)
	require.NoError(t, err)
	f.Put("az01s009", json.RawMessage(`{}`))
	require.NoError(t, f.Flush())
	require.NoError(t, f.Flush())

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	for _, e := range entries {
		assert.False(t, strings.Contains(e.Name(), ".tmp-"), "leftover temp file %s", e.Name())
	}
}

func TestFlush_HumanInspectable(t *testing.T) {
	path := filepath.Join(t.TempDir(), "assets.json")

	f, err := Open(path)
	require.NoError(t, err)
	f.Put("az01s009", json.RawMessage(`{"memory_gb": 16}`))
	require.NoError(t, f.Flush())

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Contains(t, string(data), "\n  ", "expected indented JSON")
}
