package test

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/hibiken/asynq"

	"tubefeed/internal/models"
	"tubefeed/internal/store"
)

// MockTaskEnqueuer is a mock implementation of tasks.TaskEnqueuer for testing.
type MockTaskEnqueuer struct {
	mu            sync.Mutex
	EnqueuedTasks []*asynq.Task
}

func (m *MockTaskEnqueuer) Enqueue(task *asynq.Task, opts ...asynq.Option) (*asynq.TaskInfo, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.EnqueuedTasks = append(m.EnqueuedTasks, task)
	return &asynq.TaskInfo{ID: "test-task-id", Queue: "default"}, nil
}

// TasksOfType returns the enqueued tasks matching a type string.
func (m *MockTaskEnqueuer) TasksOfType(taskType string) []*asynq.Task {
	m.mu.Lock()
	defer m.mu.Unlock()
	var out []*asynq.Task
	for _, t := range m.EnqueuedTasks {
		if t.Type() == taskType {
			out = append(out, t)
		}
	}
	return out
}

// FakeStore is an in-memory store.Store for service, worker and
// scheduler tests. It mirrors the Postgres implementation's semantics,
// including the original_* shadow capture and state-machine guards.
type FakeStore struct {
	mu          sync.Mutex
	Feeds       map[string]*models.Feed
	Episodes    map[string]*models.Episode
	Collections map[string]*models.CollectionSource
}

var _ store.Store = (*FakeStore)(nil)

func NewFakeStore() *FakeStore {
	return &FakeStore{
		Feeds:       make(map[string]*models.Feed),
		Episodes:    make(map[string]*models.Episode),
		Collections: make(map[string]*models.CollectionSource),
	}
}

// SeedFeed inserts a feed and returns its id.
func (f *FakeStore) SeedFeed(title string) string {
	feed, _ := f.CreateFeed(context.Background(), &models.Feed{Title: title})
	return feed.ID
}

func (f *FakeStore) CreateFeed(_ context.Context, feed *models.Feed) (*models.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *feed
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = time.Now()
	cp.UpdatedAt = cp.CreatedAt
	f.Feeds[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *FakeStore) GetFeed(_ context.Context, id string) (*models.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	feed, ok := f.Feeds[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *feed
	return &out, nil
}

func (f *FakeStore) ListFeeds(_ context.Context) ([]models.Feed, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Feed
	for _, feed := range f.Feeds {
		out = append(out, *feed)
	}
	return out, nil
}

func (f *FakeStore) DeleteFeed(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Feeds[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.Feeds, id)
	for epID, ep := range f.Episodes {
		if ep.FeedID == id {
			delete(f.Episodes, epID)
		}
	}
	return nil
}

func (f *FakeStore) CreateEpisode(_ context.Context, ep *models.Episode) (*models.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if ep.SourceID != nil {
		for _, existing := range f.Episodes {
			if existing.FeedID == ep.FeedID && existing.SourceID != nil && *existing.SourceID == *ep.SourceID {
				return nil, store.ErrConflict
			}
		}
	}
	cp := *ep
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	if cp.Status == "" {
		cp.Status = models.StatusPending
	}
	cp.CreatedAt = time.Now()
	f.Episodes[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *FakeStore) GetEpisode(_ context.Context, id string) (*models.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.Episodes[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *ep
	return &out, nil
}

func (f *FakeStore) GetEpisodeBySourceID(_ context.Context, feedID, sourceID string) (*models.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, ep := range f.Episodes {
		if ep.FeedID == feedID && ep.SourceID != nil && *ep.SourceID == sourceID {
			out := *ep
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *FakeStore) ListFeedEpisodes(_ context.Context, feedID string) ([]models.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Episode
	for _, ep := range f.Episodes {
		if ep.FeedID == feedID {
			out = append(out, *ep)
		}
	}
	return out, nil
}

func (f *FakeStore) ListReadyEpisodes(_ context.Context, feedID string) ([]models.Episode, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.Episode
	for _, ep := range f.Episodes {
		if ep.FeedID == feedID && ep.Status == models.StatusReady {
			out = append(out, *ep)
		}
	}
	return out, nil
}

func (f *FakeStore) ListFeedSourceIDs(_ context.Context, feedID string) (map[string]struct{}, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	set := make(map[string]struct{})
	for _, ep := range f.Episodes {
		if ep.FeedID == feedID && ep.SourceID != nil {
			set[*ep.SourceID] = struct{}{}
		}
	}
	return set, nil
}

func (f *FakeStore) DeleteEpisode(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Episodes[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.Episodes, id)
	return nil
}

func (f *FakeStore) UpdateEpisodeStatus(_ context.Context, id, status string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.Episodes[id]
	if !ok {
		return store.ErrNotFound
	}
	ep.Status = status
	return nil
}

func (f *FakeStore) UpdateEpisodeMetadata(_ context.Context, id string, title, description, thumbnailURL string, publishedAt *time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.Episodes[id]
	if !ok {
		return store.ErrNotFound
	}
	if ep.OriginalTitle == nil {
		ep.Title = title
		ep.OriginalTitle = &title
	}
	if ep.OriginalDescription == nil {
		ep.Description = &description
		ep.OriginalDescription = &description
	}
	if ep.ThumbnailURL == nil && thumbnailURL != "" {
		ep.ThumbnailURL = &thumbnailURL
	}
	if ep.OriginalPublishedAt == nil && publishedAt != nil {
		ep.PublishedAt = publishedAt
		ep.OriginalPublishedAt = publishedAt
	}
	return nil
}

func (f *FakeStore) MarkEpisodeReady(_ context.Context, id, audioPath string, fileSize int64, durationSeconds int) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.Episodes[id]
	if !ok {
		return store.ErrNotFound
	}
	ep.Status = models.StatusReady
	ep.AudioPath = &audioPath
	ep.FileSizeBytes = &fileSize
	ep.DurationSeconds = &durationSeconds
	ep.ErrorMessage = nil
	return nil
}

func (f *FakeStore) MarkEpisodeFailed(_ context.Context, id, message string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.Episodes[id]
	if !ok {
		return store.ErrNotFound
	}
	ep.Status = models.StatusFailed
	ep.ErrorMessage = &message
	ep.AudioPath = nil
	ep.FileSizeBytes = nil
	ep.DurationSeconds = nil
	return nil
}

func (f *FakeStore) MarkEpisodeRetried(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.Episodes[id]
	if !ok || ep.Status != models.StatusFailed {
		return store.ErrNotFound
	}
	ep.Status = models.StatusPending
	ep.ErrorMessage = nil
	return nil
}

func (f *FakeStore) UpdateEpisodeFields(_ context.Context, id string, update store.EpisodeUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.Episodes[id]
	if !ok {
		return store.ErrNotFound
	}
	if update.Title != nil {
		ep.Title = *update.Title
	}
	if update.Description != nil {
		ep.Description = update.Description
	}
	if update.PublishedAt != nil {
		ep.PublishedAt = update.PublishedAt
	}
	return nil
}

func (f *FakeStore) RevertEpisodeFields(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	ep, ok := f.Episodes[id]
	if !ok {
		return store.ErrNotFound
	}
	if ep.OriginalTitle != nil {
		ep.Title = *ep.OriginalTitle
	}
	ep.Description = ep.OriginalDescription
	ep.PublishedAt = ep.OriginalPublishedAt
	return nil
}

func (f *FakeStore) CreateCollectionSource(_ context.Context, src *models.CollectionSource) (*models.CollectionSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, existing := range f.Collections {
		if existing.FeedID == src.FeedID && existing.CollectionID == src.CollectionID {
			return nil, store.ErrConflict
		}
	}
	cp := *src
	if cp.ID == "" {
		cp.ID = uuid.New().String()
	}
	cp.CreatedAt = time.Now()
	f.Collections[cp.ID] = &cp
	out := cp
	return &out, nil
}

func (f *FakeStore) GetCollectionSource(_ context.Context, id string) (*models.CollectionSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.Collections[id]
	if !ok {
		return nil, store.ErrNotFound
	}
	out := *src
	return &out, nil
}

func (f *FakeStore) GetCollectionSourceByCollectionID(_ context.Context, feedID, collectionID string) (*models.CollectionSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, src := range f.Collections {
		if src.FeedID == feedID && src.CollectionID == collectionID {
			out := *src
			return &out, nil
		}
	}
	return nil, store.ErrNotFound
}

func (f *FakeStore) ListEnabledCollectionSources(_ context.Context) ([]models.CollectionSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CollectionSource
	for _, src := range f.Collections {
		if src.Enabled {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (f *FakeStore) ListFeedCollectionSources(_ context.Context, feedID string) ([]models.CollectionSource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []models.CollectionSource
	for _, src := range f.Collections {
		if src.FeedID == feedID {
			out = append(out, *src)
		}
	}
	return out, nil
}

func (f *FakeStore) UpdateCollectionSource(_ context.Context, id string, update store.CollectionUpdate) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.Collections[id]
	if !ok {
		return store.ErrNotFound
	}
	if update.Enabled != nil {
		src.Enabled = *update.Enabled
	}
	if update.ClearInterval {
		src.RefreshIntervalSec = nil
	} else if update.RefreshIntervalSec != nil {
		src.RefreshIntervalSec = update.RefreshIntervalSec
	}
	return nil
}

func (f *FakeStore) MarkCollectionRefreshRequested(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.Collections[id]
	if !ok {
		return store.ErrNotFound
	}
	src.RefreshRequestedAt = &at
	return nil
}

func (f *FakeStore) TouchCollectionRefreshed(_ context.Context, id string, at time.Time) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	src, ok := f.Collections[id]
	if !ok {
		return store.ErrNotFound
	}
	src.LastRefreshedAt = &at
	return nil
}

func (f *FakeStore) DeleteCollectionSource(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.Collections[id]; !ok {
		return store.ErrNotFound
	}
	delete(f.Collections, id)
	return nil
}
