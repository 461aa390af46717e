package store

import (
	"context"
	"errors"
	"time"

	"tubefeed/internal/models"
)

var (
	// ErrNotFound is returned when the requested row does not exist.
	ErrNotFound = errors.New("not found")
	// ErrConflict is returned when a uniqueness constraint would be
	// violated, e.g. tracking the same playlist twice for one feed.
	ErrConflict = errors.New("already exists")
)

// EpisodeUpdate carries user-editable episode fields. Nil means "leave
// unchanged". Status and media fields are deliberately absent: only the
// worker executing an episode's job may touch those.
type EpisodeUpdate struct {
	Title       *string
	Description *string
	PublishedAt *time.Time
}

// CollectionUpdate carries the mutable collection source settings.
// ClearInterval resets the override back to the global default.
type CollectionUpdate struct {
	Enabled            *bool
	RefreshIntervalSec *int
	ClearInterval      bool
}

// Store is the persistence interface the core consumes. The Postgres
// implementation lives in this package; tests substitute mocks.
type Store interface {
	CreateFeed(ctx context.Context, feed *models.Feed) (*models.Feed, error)
	GetFeed(ctx context.Context, id string) (*models.Feed, error)
	ListFeeds(ctx context.Context) ([]models.Feed, error)
	DeleteFeed(ctx context.Context, id string) error

	CreateEpisode(ctx context.Context, ep *models.Episode) (*models.Episode, error)
	GetEpisode(ctx context.Context, id string) (*models.Episode, error)
	GetEpisodeBySourceID(ctx context.Context, feedID, sourceID string) (*models.Episode, error)
	ListFeedEpisodes(ctx context.Context, feedID string) ([]models.Episode, error)
	ListReadyEpisodes(ctx context.Context, feedID string) ([]models.Episode, error)
	ListFeedSourceIDs(ctx context.Context, feedID string) (map[string]struct{}, error)
	DeleteEpisode(ctx context.Context, id string) error

	UpdateEpisodeStatus(ctx context.Context, id, status string) error
	UpdateEpisodeMetadata(ctx context.Context, id string, title, description, thumbnailURL string, publishedAt *time.Time) error
	MarkEpisodeReady(ctx context.Context, id, audioPath string, fileSize int64, durationSeconds int) error
	MarkEpisodeFailed(ctx context.Context, id, message string) error
	MarkEpisodeRetried(ctx context.Context, id string) error
	UpdateEpisodeFields(ctx context.Context, id string, update EpisodeUpdate) error
	RevertEpisodeFields(ctx context.Context, id string) error

	CreateCollectionSource(ctx context.Context, src *models.CollectionSource) (*models.CollectionSource, error)
	GetCollectionSource(ctx context.Context, id string) (*models.CollectionSource, error)
	GetCollectionSourceByCollectionID(ctx context.Context, feedID, collectionID string) (*models.CollectionSource, error)
	ListEnabledCollectionSources(ctx context.Context) ([]models.CollectionSource, error)
	ListFeedCollectionSources(ctx context.Context, feedID string) ([]models.CollectionSource, error)
	UpdateCollectionSource(ctx context.Context, id string, update CollectionUpdate) error
	MarkCollectionRefreshRequested(ctx context.Context, id string, at time.Time) error
	TouchCollectionRefreshed(ctx context.Context, id string, at time.Time) error
	DeleteCollectionSource(ctx context.Context, id string) error
}
