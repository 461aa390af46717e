package media

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"time"
)

// ItemInfo is the canonical metadata for one video.
type ItemInfo struct {
	SourceID     string
	Title        string
	Description  string
	ThumbnailURL string
	Duration     int // seconds
	PublishedAt  *time.Time
}

// CollectionInfo is the result of enumerating a playlist. FailedEntries
// counts members that could not be listed; a partial enumeration is not
// an error.
type CollectionInfo struct {
	CollectionID  string
	Title         string
	MemberIDs     []string
	FailedEntries int
}

// Playlists are enumerated flat and capped; anything past the cap is
// picked up by later refreshes of large collections.
const playlistEnumerationLimit = 500

// YtDlpResolver resolves video and playlist metadata by shelling out to
// yt-dlp, the same way downloads are performed.
type YtDlpResolver struct {
	Timeout time.Duration
}

func NewResolver(timeout time.Duration) *YtDlpResolver {
	return &YtDlpResolver{Timeout: timeout}
}

type ytDlpVideo struct {
	ID          string  `json:"id"`
	Title       string  `json:"title"`
	Description string  `json:"description"`
	Thumbnail   string  `json:"thumbnail"`
	Duration    float64 `json:"duration"`
	UploadDate  string  `json:"upload_date"`
}

// ResolveItem fetches metadata for a single video.
func (r *YtDlpResolver) ResolveItem(ctx context.Context, videoID string) (*ItemInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := command(ctx, "yt-dlp",
		"-j",
		"--no-warnings",
		"--skip-download",
		WatchURL(videoID),
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, classifyYtDlpError(ctx, err, output)
	}

	// yt-dlp occasionally prints notices before the JSON document.
	jsonStart := strings.Index(string(output), "{")
	if jsonStart == -1 {
		return nil, fmt.Errorf("no JSON in yt-dlp output: %w", ErrTransient)
	}

	var v ytDlpVideo
	if err := json.Unmarshal(output[jsonStart:], &v); err != nil {
		return nil, fmt.Errorf("failed to parse yt-dlp output: %w", ErrTransient)
	}

	info := &ItemInfo{
		SourceID:     v.ID,
		Title:        v.Title,
		Description:  v.Description,
		ThumbnailURL: v.Thumbnail,
		Duration:     int(v.Duration),
	}
	if info.Title == "" {
		info.Title = "Unknown Title"
	}
	if v.UploadDate != "" {
		if t, err := time.Parse("20060102", v.UploadDate); err == nil {
			info.PublishedAt = &t
		}
	}
	return info, nil
}

// ResolveCollection enumerates a playlist. Entries that fail to parse are
// counted, not fatal, so a partially broken playlist still refreshes.
func (r *YtDlpResolver) ResolveCollection(ctx context.Context, playlistURL string) (*CollectionInfo, error) {
	ctx, cancel := context.WithTimeout(ctx, r.Timeout)
	defer cancel()

	cmd := command(ctx, "yt-dlp",
		"--flat-playlist",
		"-j",
		"--no-warnings",
		"--playlist-end", fmt.Sprint(playlistEnumerationLimit),
		playlistURL,
	)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return nil, classifyYtDlpError(ctx, err, output)
	}

	info := &CollectionInfo{}
	if id, ok := ExtractPlaylistID(playlistURL); ok {
		info.CollectionID = id
	}

	// Output is one JSON object per line, one per playlist entry.
	for _, line := range strings.Split(strings.TrimSpace(string(output)), "\n") {
		if line == "" {
			continue
		}
		var entry struct {
			ID            string `json:"id"`
			PlaylistID    string `json:"playlist_id"`
			PlaylistTitle string `json:"playlist_title"`
		}
		if err := json.Unmarshal([]byte(line), &entry); err != nil || entry.ID == "" {
			info.FailedEntries++
			continue
		}
		info.MemberIDs = append(info.MemberIDs, entry.ID)
		if entry.PlaylistID != "" {
			info.CollectionID = entry.PlaylistID
		}
		if entry.PlaylistTitle != "" {
			info.Title = entry.PlaylistTitle
		}
	}

	if info.CollectionID == "" {
		return nil, fmt.Errorf("no playlist id in %q: %w", playlistURL, ErrUnsupported)
	}
	if info.Title == "" {
		info.Title = "Unknown Playlist"
	}
	return info, nil
}

// classifyYtDlpError maps a yt-dlp failure onto the error taxonomy.
// Timeouts are transient; recognizable upstream messages are permanent.
func classifyYtDlpError(ctx context.Context, err error, output []byte) error {
	if errors.Is(ctx.Err(), context.DeadlineExceeded) {
		return fmt.Errorf("yt-dlp timed out: %w", ErrTransient)
	}

	msg := strings.ToLower(string(output))
	switch {
	case strings.Contains(msg, "http error 429") || strings.Contains(msg, "rate-limit") || strings.Contains(msg, "too many requests"):
		return fmt.Errorf("yt-dlp: %w", ErrRateLimited)
	case strings.Contains(msg, "video unavailable") || strings.Contains(msg, "private video") || strings.Contains(msg, "has been removed"):
		return fmt.Errorf("yt-dlp: %w", ErrContentUnavailable)
	case strings.Contains(msg, "http error 404") || strings.Contains(msg, "does not exist"):
		return fmt.Errorf("yt-dlp: %w", ErrNotFound)
	case strings.Contains(msg, "unsupported url") || strings.Contains(msg, "is not a valid url"):
		return fmt.Errorf("yt-dlp: %w", ErrUnsupported)
	default:
		return fmt.Errorf("yt-dlp failed: %v: %w", err, ErrTransient)
	}
}
