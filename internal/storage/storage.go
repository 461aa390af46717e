package storage

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"tubefeed/internal/models"
)

// Local stores media and thumbnail files on the local filesystem.
type Local struct {
	AudioDir     string
	ThumbnailDir string
	UploadDir    string
}

func NewLocal(audioDir, thumbnailDir, uploadDir string) *Local {
	return &Local{AudioDir: audioDir, ThumbnailDir: thumbnailDir, UploadDir: uploadDir}
}

// SaveUpload streams an uploaded file into the upload directory, writing
// to a temporary path and renaming so a failed write leaves nothing at
// the final name. Returns the stored path and byte count.
func (l *Local) SaveUpload(r io.Reader, name string) (string, int64, error) {
	if err := os.MkdirAll(l.UploadDir, 0o755); err != nil {
		return "", 0, fmt.Errorf("failed to create upload dir: %w", err)
	}

	dest := filepath.Join(l.UploadDir, name)
	tmp := dest + ".part"
	f, err := os.Create(tmp)
	if err != nil {
		return "", 0, fmt.Errorf("failed to create upload file: %w", err)
	}
	size, err := io.Copy(f, r)
	if cerr := f.Close(); err == nil {
		err = cerr
	}
	if err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to write upload: %w", err)
	}
	if err := os.Rename(tmp, dest); err != nil {
		os.Remove(tmp)
		return "", 0, fmt.Errorf("failed to finalize upload: %w", err)
	}
	return dest, size, nil
}

// AudioPath returns where the normalized audio for an episode lives.
func (l *Local) AudioPath(episodeID string) string {
	return filepath.Join(l.AudioDir, episodeID+".mp3")
}

// RemoveEpisodeFiles deletes the local files owned by an episode. Missing
// files are not an error; deletion is idempotent.
func (l *Local) RemoveEpisodeFiles(ep *models.Episode) error {
	paths := []string{}
	if ep.AudioPath != nil {
		paths = append(paths, *ep.AudioPath)
	}
	if ep.ThumbnailPath != nil {
		paths = append(paths, *ep.ThumbnailPath)
	}
	for _, p := range paths {
		if err := os.Remove(p); err != nil && !os.IsNotExist(err) {
			return fmt.Errorf("failed to remove %s: %w", p, err)
		}
	}
	return nil
}

// Remove deletes a single file, tolerating its absence.
func (l *Local) Remove(path string) error {
	if err := os.Remove(path); err != nil && !os.IsNotExist(err) {
		return err
	}
	return nil
}
