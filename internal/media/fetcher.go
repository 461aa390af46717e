package media

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"time"
)

// YtDlpFetcher streams the best available audio for a video to local
// storage. It writes to a temporary path and renames on completion so a
// failed download never leaves a partial file at the destination.
type YtDlpFetcher struct {
	Timeout time.Duration
}

func NewFetcher(timeout time.Duration) *YtDlpFetcher {
	return &YtDlpFetcher{Timeout: timeout}
}

// Fetch downloads the raw audio for videoID into destDir and returns the
// final local path.
func (f *YtDlpFetcher) Fetch(ctx context.Context, videoID, destDir string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, f.Timeout)
	defer cancel()

	if err := os.MkdirAll(destDir, 0o755); err != nil {
		return "", fmt.Errorf("failed to create destination dir: %w", err)
	}

	dest := filepath.Join(destDir, videoID+".audio")
	tmp := dest + ".part"
	defer os.Remove(tmp)

	cmd := command(ctx, "yt-dlp",
		"-f", "bestaudio",
		"--no-playlist",
		"--no-part",
		"-o", tmp,
		WatchURL(videoID),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", classifyYtDlpError(ctx, err, output)
	}

	if fi, err := os.Stat(tmp); err != nil || fi.Size() == 0 {
		return "", fmt.Errorf("yt-dlp produced no file for %s: %w", videoID, ErrTransient)
	}
	if err := os.Rename(tmp, dest); err != nil {
		return "", fmt.Errorf("failed to move downloaded file: %w", err)
	}
	return dest, nil
}
