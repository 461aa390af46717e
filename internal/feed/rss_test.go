package feed

import (
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubefeed/internal/models"
)

func strPtr(s string) *string { return &s }

func TestGenerateRSS(t *testing.T) {
	now := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	f := &models.Feed{
		ID:          "feed-1",
		Title:       "Tech Talks",
		Author:      strPtr("Alex"),
		Description: strPtr("Conference recordings"),
		CreatedAt:   now,
		UpdatedAt:   now,
	}

	published := now.Add(-24 * time.Hour)
	size := int64(7680000)
	duration := 320
	episodes := []models.Episode{
		{
			ID:              "ep-ready",
			FeedID:          "feed-1",
			Title:           "A Great Video",
			Description:     strPtr("About things"),
			Status:          models.StatusReady,
			AudioPath:       strPtr("/data/audio/ep-ready.mp3"),
			FileSizeBytes:   &size,
			DurationSeconds: &duration,
			PublishedAt:     &published,
			CreatedAt:       now,
		},
		{
			ID:     "ep-pending",
			FeedID: "feed-1",
			Title:  "Still downloading",
			Status: models.StatusPending,
		},
		{
			ID:           "ep-failed",
			FeedID:       "feed-1",
			Title:        "Broken",
			Status:       models.StatusFailed,
			ErrorMessage: strPtr("Download failed after repeated attempts."),
		},
	}

	xml, err := GenerateRSS(f, episodes, "http://example.com")
	require.NoError(t, err)

	assert.Contains(t, xml, "<title>Tech Talks</title>")
	assert.Contains(t, xml, "A Great Video")
	assert.Contains(t, xml, `url="http://example.com/audio/ep-ready.mp3"`)
	assert.Contains(t, xml, `length="7680000"`)
	assert.Contains(t, xml, `type="audio/mpeg"`)

	// Only ready episodes are published.
	assert.NotContains(t, xml, "Still downloading")
	assert.NotContains(t, xml, "Broken")
	assert.Equal(t, 1, strings.Count(xml, "<item>"))
}

func TestGenerateRSSPubDateFallsBackToCreation(t *testing.T) {
	created := time.Date(2024, 2, 10, 8, 30, 0, 0, time.UTC)
	f := &models.Feed{ID: "feed-1", Title: "Feed", CreatedAt: created, UpdatedAt: created}
	size := int64(100)
	episodes := []models.Episode{
		{
			ID:            "ep-1",
			Title:         "No publish date",
			Status:        models.StatusReady,
			AudioPath:     strPtr("/data/audio/ep-1.mp3"),
			FileSizeBytes: &size,
			CreatedAt:     created,
		},
	}

	xml, err := GenerateRSS(f, episodes, "http://example.com")
	require.NoError(t, err)
	assert.Contains(t, xml, created.Format("Mon, 02 Jan 2006"))
}

func TestGenerateRSSEmptyFeed(t *testing.T) {
	now := time.Now()
	f := &models.Feed{ID: "feed-1", Title: "Empty", CreatedAt: now, UpdatedAt: now}

	xml, err := GenerateRSS(f, nil, "http://example.com")
	require.NoError(t, err)
	assert.Contains(t, xml, "<title>Empty</title>")
	assert.NotContains(t, xml, "<item>")
}
