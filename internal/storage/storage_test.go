package storage

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubefeed/internal/models"
)

func newTestLocal(t *testing.T) *Local {
	dir := t.TempDir()
	return NewLocal(
		filepath.Join(dir, "audio"),
		filepath.Join(dir, "thumbnails"),
		filepath.Join(dir, "uploads"),
	)
}

func TestSaveUpload(t *testing.T) {
	l := newTestLocal(t)

	path, size, err := l.SaveUpload(strings.NewReader("audio content"), "ep-1.wav")
	require.NoError(t, err)
	assert.Equal(t, filepath.Join(l.UploadDir, "ep-1.wav"), path)
	assert.Equal(t, int64(len("audio content")), size)

	got, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t, "audio content", string(got))

	// No temporary file survives a completed save.
	_, statErr := os.Stat(path + ".part")
	assert.True(t, os.IsNotExist(statErr))
}

func TestRemoveEpisodeFilesIsIdempotent(t *testing.T) {
	l := newTestLocal(t)

	require.NoError(t, os.MkdirAll(l.AudioDir, 0o755))
	audioPath := l.AudioPath("ep-1")
	require.NoError(t, os.WriteFile(audioPath, []byte("x"), 0o644))

	ep := &models.Episode{ID: "ep-1", AudioPath: &audioPath}
	require.NoError(t, l.RemoveEpisodeFiles(ep))
	_, statErr := os.Stat(audioPath)
	assert.True(t, os.IsNotExist(statErr))

	// A second delete of the same files succeeds.
	assert.NoError(t, l.RemoveEpisodeFiles(ep))
}

func TestRemoveMissingFile(t *testing.T) {
	l := newTestLocal(t)
	assert.NoError(t, l.Remove(filepath.Join(l.AudioDir, "never-existed.mp3")))
}
