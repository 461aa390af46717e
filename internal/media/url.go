package media

import "regexp"

var (
	videoIDPatterns = []*regexp.Regexp{
		regexp.MustCompile(`(?:youtube\.com/watch\?v=|youtu\.be/|youtube\.com/embed/)([a-zA-Z0-9_-]{11})`),
		regexp.MustCompile(`youtube\.com/shorts/([a-zA-Z0-9_-]{11})`),
	}
	playlistIDPattern = regexp.MustCompile(`[?&]list=([a-zA-Z0-9_-]+)`)
	bareVideoID       = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)
)

// IsCollectionURL reports whether the reference points at a playlist
// rather than a single video.
func IsCollectionURL(ref string) bool {
	return playlistIDPattern.MatchString(ref)
}

// ExtractVideoID pulls the 11-character video ID out of the known
// YouTube URL shapes. A bare ID is accepted as-is.
func ExtractVideoID(ref string) (string, bool) {
	for _, p := range videoIDPatterns {
		if m := p.FindStringSubmatch(ref); m != nil {
			return m[1], true
		}
	}
	if bareVideoID.MatchString(ref) {
		return ref, true
	}
	return "", false
}

// ExtractPlaylistID pulls the playlist ID out of a playlist URL.
func ExtractPlaylistID(ref string) (string, bool) {
	if m := playlistIDPattern.FindStringSubmatch(ref); m != nil {
		return m[1], true
	}
	return "", false
}

// WatchURL builds the canonical watch URL for a video ID.
func WatchURL(videoID string) string {
	return "https://www.youtube.com/watch?v=" + videoID
}

// PlaylistURL builds the canonical playlist URL for a playlist ID.
func PlaylistURL(playlistID string) string {
	return "https://www.youtube.com/playlist?list=" + playlistID
}
