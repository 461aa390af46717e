package ingest

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"path/filepath"
	"strings"
	"time"

	"github.com/hibiken/asynq"

	"tubefeed/internal/media"
	"tubefeed/internal/models"
	"tubefeed/internal/store"
	"tubefeed/pkg/tasks"
)

// ErrInvalidState is returned on caller misuse, e.g. retrying an episode
// that is not failed. Surfaced synchronously, never swallowed.
var ErrInvalidState = errors.New("invalid episode state")

// ErrUnsupportedFile is returned for uploads with an extension outside
// the accepted set.
var ErrUnsupportedFile = errors.New("unsupported file format")

var allowedUploadExtensions = map[string]bool{
	".mp3": true, ".m4a": true, ".wav": true, ".flac": true, ".ogg": true,
}

// Normalizer converts and validates a local audio file. Implemented by
// media.FFmpegNormalizer.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string) (*media.AudioInfo, error)
}

// Storage is the slice of local file storage the service needs.
type Storage interface {
	SaveUpload(r io.Reader, name string) (string, int64, error)
	AudioPath(episodeID string) string
	RemoveEpisodeFiles(ep *models.Episode) error
	Remove(path string) error
}

// IngestResult reports what a batch of submitted references turned into.
type IngestResult struct {
	AcceptedItems       int
	AcceptedCollections int
	Skipped             int
}

// UploadMetadata carries user-provided fields for an uploaded episode.
type UploadMetadata struct {
	Title       string
	Description string
	PublishedAt *time.Time
}

// Service is the core's external interface: it accepts ingestion
// requests, owns the failed->pending retry transition, and manages
// tracked collections. All media work happens in worker jobs; the
// service only creates rows and enqueues.
type Service struct {
	store      store.Store
	queue      tasks.TaskEnqueuer
	normalizer Normalizer
	storage    Storage

	maxRetry       int
	inlineMaxBytes int64
	now            func() time.Time
}

func New(st store.Store, queue tasks.TaskEnqueuer, normalizer Normalizer, storage Storage, maxRetry int, inlineMaxBytes int64) *Service {
	return &Service{
		store:          st,
		queue:          queue,
		normalizer:     normalizer,
		storage:        storage,
		maxRetry:       maxRetry,
		inlineMaxBytes: inlineMaxBytes,
		now:            time.Now,
	}
}

// SubmitIngest classifies each reference and enqueues accordingly:
// playlists become collection-ingest jobs, single videos become episodes
// with one ingest job each. A reference whose episode already exists in
// the feed is skipped, which also guarantees at most one outstanding job
// per episode.
func (s *Service) SubmitIngest(ctx context.Context, feedID string, references []string) (*IngestResult, error) {
	if _, err := s.store.GetFeed(ctx, feedID); err != nil {
		return nil, err
	}

	result := &IngestResult{}
	for _, ref := range references {
		ref = strings.TrimSpace(ref)
		if ref == "" {
			continue
		}

		if media.IsCollectionURL(ref) {
			task, err := tasks.NewIngestCollectionTask(feedID, ref)
			if err != nil {
				return nil, err
			}
			if _, err := s.queue.Enqueue(task, asynq.MaxRetry(s.maxRetry)); err != nil {
				return nil, fmt.Errorf("failed to enqueue collection ingest: %w", err)
			}
			result.AcceptedCollections++
			continue
		}

		videoID, ok := media.ExtractVideoID(ref)
		if !ok {
			log.Printf("Skipping unrecognized reference: %s", ref)
			result.Skipped++
			continue
		}

		created, err := s.createAndEnqueueItem(ctx, feedID, videoID)
		if err != nil {
			return nil, err
		}
		if created {
			result.AcceptedItems++
		} else {
			result.Skipped++
		}
	}
	return result, nil
}

// createAndEnqueueItem creates a pending episode for a video and
// enqueues its ingest job. Returns false when the feed already has an
// episode for this video.
func (s *Service) createAndEnqueueItem(ctx context.Context, feedID, videoID string) (bool, error) {
	if _, err := s.store.GetEpisodeBySourceID(ctx, feedID, videoID); err == nil {
		return false, nil
	} else if !errors.Is(err, store.ErrNotFound) {
		return false, err
	}

	ep, err := s.store.CreateEpisode(ctx, &models.Episode{
		FeedID:     feedID,
		SourceType: models.SourceYouTube,
		SourceID:   &videoID,
		Title:      fmt.Sprintf("Loading... (%s)", videoID),
		Status:     models.StatusPending,
	})
	if errors.Is(err, store.ErrConflict) {
		// Lost a race with a concurrent submit; the other job owns it.
		return false, nil
	}
	if err != nil {
		return false, err
	}

	task, err := tasks.NewIngestItemTask(ep.ID)
	if err != nil {
		return false, err
	}
	if _, err := s.queue.Enqueue(task, asynq.MaxRetry(s.maxRetry)); err != nil {
		return false, fmt.Errorf("failed to enqueue episode ingest: %w", err)
	}
	return true, nil
}

// SubmitUpload stores an uploaded audio file and creates its episode.
// Small files are converted inline so the caller sees a terminal status
// immediately; larger files go through a convert job and come back
// pending.
func (s *Service) SubmitUpload(ctx context.Context, feedID, filename string, file io.Reader, meta UploadMetadata) (*models.Episode, error) {
	if _, err := s.store.GetFeed(ctx, feedID); err != nil {
		return nil, err
	}

	ext := strings.ToLower(filepath.Ext(filename))
	if !allowedUploadExtensions[ext] {
		return nil, fmt.Errorf("%w: %s", ErrUnsupportedFile, ext)
	}

	title := meta.Title
	if title == "" {
		title = strings.TrimSuffix(filepath.Base(filename), filepath.Ext(filename))
	}

	ep, err := s.store.CreateEpisode(ctx, &models.Episode{
		FeedID:           feedID,
		SourceType:       models.SourceUpload,
		Title:            title,
		OriginalFilename: &filename,
		Status:           models.StatusPending,
	})
	if err != nil {
		return nil, err
	}

	inputPath, size, err := s.storage.SaveUpload(file, ep.ID+ext)
	if err != nil {
		return nil, err
	}

	publishedAt := meta.PublishedAt
	if publishedAt == nil {
		now := s.now()
		publishedAt = &now
	}
	if err := s.store.UpdateEpisodeMetadata(ctx, ep.ID, title, meta.Description, "", publishedAt); err != nil {
		return nil, err
	}

	if size > s.inlineMaxBytes {
		task, err := tasks.NewConvertUploadTask(ep.ID, inputPath)
		if err != nil {
			return nil, err
		}
		if _, err := s.queue.Enqueue(task, asynq.MaxRetry(s.maxRetry)); err != nil {
			return nil, fmt.Errorf("failed to enqueue upload conversion: %w", err)
		}
		return s.store.GetEpisode(ctx, ep.ID)
	}

	// Inline path for small files: the request blocks on conversion but
	// returns a terminal status.
	if err := s.store.UpdateEpisodeStatus(ctx, ep.ID, models.StatusDownloading); err != nil {
		return nil, err
	}
	info, err := s.normalizer.Normalize(ctx, inputPath, s.storage.AudioPath(ep.ID))
	if err != nil {
		log.Printf("Inline conversion failed for episode %s: %v", ep.ID, err)
		if ferr := s.store.MarkEpisodeFailed(ctx, ep.ID, media.UserMessage(err)); ferr != nil {
			return nil, ferr
		}
		return s.store.GetEpisode(ctx, ep.ID)
	}
	if err := s.store.MarkEpisodeReady(ctx, ep.ID, info.Path, info.FileSizeBytes, info.DurationSeconds); err != nil {
		return nil, err
	}
	if err := s.storage.Remove(inputPath); err != nil {
		log.Printf("Failed to remove upload temp file %s: %v", inputPath, err)
	}
	return s.store.GetEpisode(ctx, ep.ID)
}

// Retry moves a failed episode back to pending and enqueues exactly one
// new ingest job for it. Failures are never retried automatically; this
// is the only re-entry point.
func (s *Service) Retry(ctx context.Context, episodeID string) error {
	ep, err := s.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if ep.Status != models.StatusFailed {
		return fmt.Errorf("%w: episode %s is %s, not failed", ErrInvalidState, episodeID, ep.Status)
	}
	if ep.SourceType == models.SourceUpload {
		// The original upload file is gone once conversion was attempted;
		// a failed upload needs a fresh submit, not a retry.
		return fmt.Errorf("%w: uploaded episodes cannot be retried", ErrInvalidState)
	}

	if err := s.store.MarkEpisodeRetried(ctx, episodeID); err != nil {
		return err
	}
	task, err := tasks.NewIngestItemTask(episodeID)
	if err != nil {
		return err
	}
	if _, err := s.queue.Enqueue(task, asynq.MaxRetry(s.maxRetry)); err != nil {
		return fmt.Errorf("failed to enqueue retry: %w", err)
	}
	return nil
}

// UpdateEpisode applies a user edit to the descriptive fields only.
func (s *Service) UpdateEpisode(ctx context.Context, episodeID string, update store.EpisodeUpdate) (*models.Episode, error) {
	if err := s.store.UpdateEpisodeFields(ctx, episodeID, update); err != nil {
		return nil, err
	}
	return s.store.GetEpisode(ctx, episodeID)
}

// RevertEpisode restores title/description/published_at from the
// original_* shadow copies captured at ingestion.
func (s *Service) RevertEpisode(ctx context.Context, episodeID string) (*models.Episode, error) {
	if err := s.store.RevertEpisodeFields(ctx, episodeID); err != nil {
		return nil, err
	}
	return s.store.GetEpisode(ctx, episodeID)
}

// DeleteEpisode removes the row and any owned local files.
func (s *Service) DeleteEpisode(ctx context.Context, episodeID string) error {
	ep, err := s.store.GetEpisode(ctx, episodeID)
	if err != nil {
		return err
	}
	if err := s.store.DeleteEpisode(ctx, episodeID); err != nil {
		return err
	}
	if err := s.storage.RemoveEpisodeFiles(ep); err != nil {
		log.Printf("Failed to remove files for episode %s: %v", episodeID, err)
	}
	return nil
}

// RemoveEpisodeFiles deletes the local files an episode owns. Used when
// rows are removed by a feed cascade rather than one at a time.
func (s *Service) RemoveEpisodeFiles(ep *models.Episode) error {
	return s.storage.RemoveEpisodeFiles(ep)
}

// RemoveCollection detaches tracking without deleting member episodes.
func (s *Service) RemoveCollection(ctx context.Context, collectionSourceID string) error {
	return s.store.DeleteCollectionSource(ctx, collectionSourceID)
}

// UpdateCollection changes the enabled flag and/or interval override.
func (s *Service) UpdateCollection(ctx context.Context, collectionSourceID string, update store.CollectionUpdate) (*models.CollectionSource, error) {
	if err := s.store.UpdateCollectionSource(ctx, collectionSourceID, update); err != nil {
		return nil, err
	}
	return s.store.GetCollectionSource(ctx, collectionSourceID)
}

// ForceRefresh enqueues refresh jobs for all enabled collections of a
// feed immediately, ignoring due-time. Collections with a refresh still
// in flight are skipped so the one-outstanding-refresh rule holds.
func (s *Service) ForceRefresh(ctx context.Context, feedID string) (int, error) {
	sources, err := s.store.ListFeedCollectionSources(ctx, feedID)
	if err != nil {
		return 0, err
	}

	enqueued := 0
	for _, src := range sources {
		if !src.Enabled {
			continue
		}
		if refreshInFlight(&src) {
			continue
		}
		task, err := tasks.NewRefreshCollectionTask(src.ID)
		if err != nil {
			return enqueued, err
		}
		if _, err := s.queue.Enqueue(task, asynq.MaxRetry(s.maxRetry)); err != nil {
			return enqueued, fmt.Errorf("failed to enqueue refresh: %w", err)
		}
		if err := s.store.MarkCollectionRefreshRequested(ctx, src.ID, s.now()); err != nil {
			return enqueued, err
		}
		enqueued++
	}
	return enqueued, nil
}

// refreshInFlight reports whether a refresh job has been enqueued for the
// collection and has not yet completed (completion always advances
// last_refreshed_at).
func refreshInFlight(src *models.CollectionSource) bool {
	if src.RefreshRequestedAt == nil {
		return false
	}
	if src.LastRefreshedAt == nil {
		return true
	}
	return src.RefreshRequestedAt.After(*src.LastRefreshedAt)
}
