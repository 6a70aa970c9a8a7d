package store

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/scottcm/aiwf-engine/internal/model"
)

func newTestState(id string) *model.WorkflowState {
	return model.NewWorkflowState(id, "generic", time.Now().UTC())
}

func TestSaveAndLoad_RoundTrips(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	state := newTestState("sess-1")
	path, err := s.Save(state)
	require.NoError(t, err)
	assert.FileExists(t, path)

	loaded, err := s.Load("sess-1")
	require.NoError(t, err)
	assert.Equal(t, state.SessionID, loaded.SessionID)
	assert.Equal(t, state.Phase, loaded.Phase)
}

func TestSave_WritesAtomicallyViaTempAndRename(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	state := newTestState("sess-2")
	_, err = s.Save(state)
	require.NoError(t, err)

	tmpPath := filepath.Join(root, "sess-2", "session.json.tmp")
	_, statErr := os.Stat(tmpPath)
	assert.True(t, os.IsNotExist(statErr), "temp file should not survive a successful save")
}

func TestExists(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	assert.False(t, s.Exists("ghost"))

	_, err = s.Save(newTestState("real"))
	require.NoError(t, err)
	assert.True(t, s.Exists("real"))
}

func TestLoad_MissingSessionReturnsError(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	_, err = s.Load("does-not-exist")
	assert.Error(t, err)
}

func TestLoad_InvalidJSONReturnsInvalidSessionData(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	sessionDir := filepath.Join(root, "broken")
	require.NoError(t, os.MkdirAll(sessionDir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(sessionDir, "session.json"), []byte("{not json"), 0o644))

	_, err = s.Load("broken")
	require.Error(t, err)
	var invalidErr *InvalidSessionData
	assert.ErrorAs(t, err, &invalidErr)
}

func TestList_ReturnsSortedSessionsWithSnapshots(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	_, err = s.Save(newTestState("bravo"))
	require.NoError(t, err)
	_, err = s.Save(newTestState("alpha"))
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Join(root, "no-session-file"), 0o755))

	ids, err := s.List()
	require.NoError(t, err)
	assert.Equal(t, []string{"alpha", "bravo"}, ids)
}

func TestDelete_RemovesSessionDirectory(t *testing.T) {
	root := t.TempDir()
	s, err := New(root)
	require.NoError(t, err)

	_, err = s.Save(newTestState("doomed"))
	require.NoError(t, err)
	require.True(t, s.Exists("doomed"))

	require.NoError(t, s.Delete("doomed"))
	assert.False(t, s.Exists("doomed"))
}
