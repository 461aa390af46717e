package handlers

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"tubefeed/internal/config"
	"tubefeed/internal/ingest"
	"tubefeed/internal/media"
	"tubefeed/internal/middleware"
	"tubefeed/internal/models"
	"tubefeed/internal/test"
	"tubefeed/pkg/tasks"
)

type noopFiles struct{ dir string }

func (n *noopFiles) SaveUpload(r io.Reader, name string) (string, int64, error) {
	size, err := io.Copy(io.Discard, r)
	return filepath.Join(n.dir, name), size, err
}
func (n *noopFiles) AudioPath(episodeID string) string {
	return filepath.Join(n.dir, episodeID+".mp3")
}
func (n *noopFiles) RemoveEpisodeFiles(ep *models.Episode) error { return nil }
func (n *noopFiles) Remove(path string) error                    { return nil }

type noopNormalizer struct{}

func (noopNormalizer) Normalize(ctx context.Context, inputPath, outputPath string) (*media.AudioInfo, error) {
	return &media.AudioInfo{Path: outputPath, DurationSeconds: 10, FileSizeBytes: 100}, nil
}

func newTestRouter(t *testing.T, apiKey string) (http.Handler, *test.FakeStore, *test.MockTaskEnqueuer) {
	t.Helper()
	st := test.NewFakeStore()
	queue := &test.MockTaskEnqueuer{}
	cfg := &config.Config{
		BaseURL:        "http://example.com",
		APIKey:         apiKey,
		AudioDir:       t.TempDir(),
		MaxUploadBytes: 1 << 20,
	}
	svc := ingest.New(st, queue, noopNormalizer{}, &noopFiles{dir: t.TempDir()}, 3, 10<<20)
	h := New(svc, st, cfg)
	rl := middleware.NewRateLimiterMiddleware(rate.Limit(1000), 1000)
	return h.Router(rl), st, queue
}

func TestSubmitIngestEndpoint(t *testing.T) {
	router, st, queue := newTestRouter(t, "")
	feedID := st.SeedFeed("Feed")

	body := `{"urls": ["https://www.youtube.com/watch?v=dQw4w9WgXcQ"]}`
	req := httptest.NewRequest(http.MethodPost, "/api/feeds/"+feedID+"/items", strings.NewReader(body))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusAccepted, rr.Code)
	var resp struct {
		AcceptedItems int `json:"accepted_items"`
		Skipped       int `json:"skipped"`
	}
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &resp))
	assert.Equal(t, 1, resp.AcceptedItems)
	assert.Len(t, queue.TasksOfType(tasks.TypeIngestItem), 1)
}

func TestSubmitIngestEndpointRequiresURLs(t *testing.T) {
	router, st, _ := newTestRouter(t, "")
	feedID := st.SeedFeed("Feed")

	req := httptest.NewRequest(http.MethodPost, "/api/feeds/"+feedID+"/items", strings.NewReader(`{"urls": []}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusBadRequest, rr.Code)
}

func TestRetryEndpoint(t *testing.T) {
	router, st, queue := newTestRouter(t, "")
	feedID := st.SeedFeed("Feed")
	videoID := "dQw4w9WgXcQ"
	ep, err := st.CreateEpisode(context.Background(), &models.Episode{
		FeedID:     feedID,
		SourceType: models.SourceYouTube,
		SourceID:   &videoID,
		Status:     models.StatusPending,
	})
	require.NoError(t, err)

	// Retrying a pending episode is a state conflict.
	req := httptest.NewRequest(http.MethodPost, "/api/episodes/"+ep.ID+"/retry", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusConflict, rr.Code)
	assert.Empty(t, queue.EnqueuedTasks)

	require.NoError(t, st.MarkEpisodeFailed(context.Background(), ep.ID, "Download failed after repeated attempts."))

	req = httptest.NewRequest(http.MethodPost, "/api/episodes/"+ep.ID+"/retry", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusAccepted, rr.Code)
	assert.Len(t, queue.TasksOfType(tasks.TypeIngestItem), 1)
}

func TestCreateFeedEndpoint(t *testing.T) {
	router, _, _ := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodPost, "/api/feeds", strings.NewReader(`{"title": "My Feed"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)

	require.Equal(t, http.StatusCreated, rr.Code)
	var feed models.Feed
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &feed))
	assert.Equal(t, "My Feed", feed.Title)
	assert.NotEmpty(t, feed.ID)
}

func TestAPIRequiresKeyButRSSIsPublic(t *testing.T) {
	router, st, _ := newTestRouter(t, "secret")
	feedID := st.SeedFeed("Feed")

	req := httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusUnauthorized, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/api/feeds", nil)
	req.Header.Set("Authorization", "Bearer secret")
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)

	req = httptest.NewRequest(http.MethodGet, "/rss/"+feedID, nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusOK, rr.Code)
	assert.Equal(t, "application/rss+xml", rr.Header().Get("Content-Type"))
}

func TestServeAudioFileRejectsTraversal(t *testing.T) {
	router, _, _ := newTestRouter(t, "")

	req := httptest.NewRequest(http.MethodGet, "/audio/..%2Fsecrets.txt", nil)
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	assert.Equal(t, http.StatusNotFound, rr.Code)
}

func TestUpdateAndRevertEpisodeEndpoints(t *testing.T) {
	router, st, _ := newTestRouter(t, "")
	feedID := st.SeedFeed("Feed")
	videoID := "dQw4w9WgXcQ"
	ep, err := st.CreateEpisode(context.Background(), &models.Episode{
		FeedID:     feedID,
		SourceType: models.SourceYouTube,
		SourceID:   &videoID,
		Status:     models.StatusPending,
	})
	require.NoError(t, err)
	require.NoError(t, st.UpdateEpisodeMetadata(context.Background(), ep.ID,
		"Resolved Title", "Resolved description", "", nil))

	req := httptest.NewRequest(http.MethodPatch, "/api/episodes/"+ep.ID,
		strings.NewReader(`{"title": "My Better Title"}`))
	rr := httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)

	var got models.Episode
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "My Better Title", got.Title)

	req = httptest.NewRequest(http.MethodPost, "/api/episodes/"+ep.ID+"/revert", nil)
	rr = httptest.NewRecorder()
	router.ServeHTTP(rr, req)
	require.Equal(t, http.StatusOK, rr.Code)
	require.NoError(t, json.Unmarshal(rr.Body.Bytes(), &got))
	assert.Equal(t, "Resolved Title", got.Title)
}
