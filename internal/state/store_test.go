package state

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type payload struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

func TestSaveLoadRoundTrip(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state"))

	require.NoError(t, s.Save(FileDiff, payload{Name: "diff", Count: 3}))

	var got payload
	require.NoError(t, s.Load(FileDiff, &got))
	assert.Equal(t, payload{Name: "diff", Count: 3}, got)

	// Saved files are indented JSON, readable in an editor.
	raw, err := s.LoadRaw(FileDiff)
	require.NoError(t, err)
	assert.Contains(t, string(raw), "\n  \"name\"")
}

func TestLoadMissing(t *testing.T) {
	s := New(t.TempDir())

	var got payload
	err := s.Load(FilePatches, &got)
	assert.True(t, errors.Is(err, ErrNotFound))

	_, err = s.LoadRaw(FilePatches)
	assert.True(t, errors.Is(err, ErrNotFound))
}

func TestStatusProgression(t *testing.T) {
	s := New(filepath.Join(t.TempDir(), "state"))

	st := s.Status()
	assert.False(t, st.HasBefore)
	assert.False(t, st.HasDiff)

	require.NoError(t, s.Save(FileMapBefore, payload{}))
	require.NoError(t, s.Save(FileMapAfter, payload{}))
	require.NoError(t, s.Save(FileDiff, payload{}))

	st = s.Status()
	assert.True(t, st.HasBefore)
	assert.True(t, st.HasAfter)
	assert.True(t, st.HasDiff)
	assert.False(t, st.HasPatches)
}

func TestSaveLeavesNoTempFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "state")
	s := New(dir)
	require.NoError(t, s.Save(FileDiff, payload{}))

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.Equal(t, FileDiff, entries[0].Name())
}
