package media

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestExtractVideoID(t *testing.T) {
	tests := []struct {
		ref    string
		wantID string
		wantOK bool
	}{
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/watch?v=dQw4w9WgXcQ&t=42s", "dQw4w9WgXcQ", true},
		{"https://youtu.be/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/embed/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://www.youtube.com/shorts/dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"dQw4w9WgXcQ", "dQw4w9WgXcQ", true},
		{"https://example.com/watch?v=dQw4w9WgXcQ", "", false},
		{"too-short", "", false},
		{"", "", false},
	}
	for _, tt := range tests {
		id, ok := ExtractVideoID(tt.ref)
		assert.Equal(t, tt.wantOK, ok, tt.ref)
		assert.Equal(t, tt.wantID, id, tt.ref)
	}
}

func TestIsCollectionURL(t *testing.T) {
	assert.True(t, IsCollectionURL("https://www.youtube.com/playlist?list=PLxyz123"))
	// A watch URL carrying a list parameter is treated as the playlist.
	assert.True(t, IsCollectionURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ&list=PLxyz123"))
	assert.False(t, IsCollectionURL("https://www.youtube.com/watch?v=dQw4w9WgXcQ"))
	assert.False(t, IsCollectionURL("dQw4w9WgXcQ"))
}

func TestExtractPlaylistID(t *testing.T) {
	id, ok := ExtractPlaylistID("https://www.youtube.com/playlist?list=PLxyz123")
	assert.True(t, ok)
	assert.Equal(t, "PLxyz123", id)

	_, ok = ExtractPlaylistID("https://www.youtube.com/watch?v=dQw4w9WgXcQ")
	assert.False(t, ok)
}

func TestCanonicalURLs(t *testing.T) {
	assert.Equal(t, "https://www.youtube.com/watch?v=dQw4w9WgXcQ", WatchURL("dQw4w9WgXcQ"))

	id, ok := ExtractPlaylistID(PlaylistURL("PLxyz123"))
	assert.True(t, ok)
	assert.Equal(t, "PLxyz123", id)
}
