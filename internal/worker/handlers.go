package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/hibiken/asynq"

	"tubefeed/internal/media"
	"tubefeed/internal/models"
	"tubefeed/internal/store"
	"tubefeed/pkg/tasks"
)

// Resolver fetches canonical metadata from the external provider.
type Resolver interface {
	ResolveItem(ctx context.Context, videoID string) (*media.ItemInfo, error)
	ResolveCollection(ctx context.Context, playlistURL string) (*media.CollectionInfo, error)
}

// Fetcher retrieves the raw media stream for one item.
type Fetcher interface {
	Fetch(ctx context.Context, videoID, destDir string) (string, error)
}

// Normalizer converts a local file to the delivery codec.
type Normalizer interface {
	Normalize(ctx context.Context, inputPath, outputPath string) (*media.AudioInfo, error)
}

// Storage is the slice of local file storage the worker needs.
type Storage interface {
	AudioPath(episodeID string) string
	Remove(path string) error
}

// TaskHandler executes the queued jobs. Each handler runs one job to a
// terminal outcome within a single worker slot; retry-vs-terminal is
// decided in exactly one place (episodeOutcome / refreshOutcome) from
// the error type and the current retry count.
type TaskHandler struct {
	store      store.Store
	queue      tasks.TaskEnqueuer
	resolver   Resolver
	fetcher    Fetcher
	normalizer Normalizer
	storage    Storage

	workDir          string
	maxRetry         int
	maxNewPerRefresh int
	now              func() time.Time
}

func NewTaskHandler(st store.Store, queue tasks.TaskEnqueuer, resolver Resolver, fetcher Fetcher, normalizer Normalizer, storage Storage, workDir string, maxRetry, maxNewPerRefresh int) *TaskHandler {
	return &TaskHandler{
		store:            st,
		queue:            queue,
		resolver:         resolver,
		fetcher:          fetcher,
		normalizer:       normalizer,
		storage:          storage,
		workDir:          workDir,
		maxRetry:         maxRetry,
		maxNewPerRefresh: maxNewPerRefresh,
		now:              time.Now,
	}
}

// HandleIngestItemTask downloads and normalizes one episode, driving it
// pending -> downloading -> ready|failed. Re-running it for an episode
// that is already ready is a safe no-op.
func (h *TaskHandler) HandleIngestItemTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.IngestItemPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	ep, err := h.store.GetEpisode(ctx, p.EpisodeID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Episode %s no longer exists, dropping job", p.EpisodeID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load episode %s: %w", p.EpisodeID, err)
	}

	if ep.Status == models.StatusReady {
		log.Printf("Episode %s is already ready, nothing to do", ep.ID)
		return nil
	}
	if ep.SourceID == nil {
		return h.episodeOutcome(ctx, ep.ID, fmt.Errorf("episode has no source id: %w", media.ErrUnsupported))
	}

	if err := h.store.UpdateEpisodeStatus(ctx, ep.ID, models.StatusDownloading); err != nil {
		return fmt.Errorf("failed to mark episode %s downloading: %w", ep.ID, err)
	}

	log.Printf("Ingesting episode %s (video %s)", ep.ID, *ep.SourceID)

	info, err := h.resolver.ResolveItem(ctx, *ep.SourceID)
	if err != nil {
		return h.episodeOutcome(ctx, ep.ID, err)
	}
	if err := h.store.UpdateEpisodeMetadata(ctx, ep.ID, info.Title, info.Description, info.ThumbnailURL, info.PublishedAt); err != nil {
		return fmt.Errorf("failed to update metadata for episode %s: %w", ep.ID, err)
	}

	rawPath, err := h.fetcher.Fetch(ctx, *ep.SourceID, h.workDir)
	if err != nil {
		return h.episodeOutcome(ctx, ep.ID, err)
	}
	defer func() {
		if err := h.storage.Remove(rawPath); err != nil {
			log.Printf("Failed to remove raw download %s: %v", rawPath, err)
		}
	}()

	audio, err := h.normalizer.Normalize(ctx, rawPath, h.storage.AudioPath(ep.ID))
	if err != nil {
		return h.episodeOutcome(ctx, ep.ID, err)
	}

	duration := audio.DurationSeconds
	if duration == 0 {
		duration = info.Duration
	}
	if err := h.store.MarkEpisodeReady(ctx, ep.ID, audio.Path, audio.FileSizeBytes, duration); err != nil {
		return fmt.Errorf("failed to mark episode %s ready: %w", ep.ID, err)
	}

	log.Printf("Episode %s is ready (%d bytes, %ds)", ep.ID, audio.FileSizeBytes, duration)
	return nil
}

// HandleConvertUploadTask normalizes an uploaded file that was too large
// to convert inline.
func (h *TaskHandler) HandleConvertUploadTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.ConvertUploadPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	ep, err := h.store.GetEpisode(ctx, p.EpisodeID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Episode %s no longer exists, dropping conversion", p.EpisodeID)
		if err := h.storage.Remove(p.InputPath); err != nil {
			log.Printf("Failed to remove orphaned upload %s: %v", p.InputPath, err)
		}
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load episode %s: %w", p.EpisodeID, err)
	}

	if ep.Status == models.StatusReady {
		log.Printf("Episode %s is already ready, nothing to do", ep.ID)
		return nil
	}

	if err := h.store.UpdateEpisodeStatus(ctx, ep.ID, models.StatusDownloading); err != nil {
		return fmt.Errorf("failed to mark episode %s downloading: %w", ep.ID, err)
	}

	audio, err := h.normalizer.Normalize(ctx, p.InputPath, h.storage.AudioPath(ep.ID))
	if err != nil {
		return h.episodeOutcome(ctx, ep.ID, err)
	}

	if err := h.store.MarkEpisodeReady(ctx, ep.ID, audio.Path, audio.FileSizeBytes, audio.DurationSeconds); err != nil {
		return fmt.Errorf("failed to mark episode %s ready: %w", ep.ID, err)
	}
	if err := h.storage.Remove(p.InputPath); err != nil {
		log.Printf("Failed to remove upload temp file %s: %v", p.InputPath, err)
	}

	log.Printf("Converted upload for episode %s (%d bytes, %ds)", ep.ID, audio.FileSizeBytes, audio.DurationSeconds)
	return nil
}

// HandleIngestCollectionTask resolves a playlist, records it as a
// tracked collection source, and enqueues an ingest job for every member
// the feed does not already have.
func (h *TaskHandler) HandleIngestCollectionTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.IngestCollectionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	log.Printf("Resolving collection %s for feed %s", p.Reference, p.FeedID)

	info, err := h.resolver.ResolveCollection(ctx, p.Reference)
	if err != nil {
		return h.jobOutcome(ctx, fmt.Sprintf("collection ingest %s", p.Reference), err)
	}
	if info.FailedEntries > 0 {
		log.Printf("Collection %s: %d entries could not be listed", info.CollectionID, info.FailedEntries)
	}

	src, err := h.trackCollection(ctx, p.FeedID, info)
	if err != nil {
		return err
	}

	added, err := h.enqueueNewMembers(ctx, p.FeedID, info.MemberIDs, 0)
	if err != nil {
		return err
	}
	if err := h.store.TouchCollectionRefreshed(ctx, src.ID, h.now()); err != nil {
		return fmt.Errorf("failed to touch collection %s: %w", src.ID, err)
	}

	log.Printf("Tracked collection %s: %d episodes enqueued", info.CollectionID, added)
	return nil
}

// trackCollection creates the collection source, deduplicating by
// (feed, collection id): tracking the same playlist twice is a no-op.
func (h *TaskHandler) trackCollection(ctx context.Context, feedID string, info *media.CollectionInfo) (*models.CollectionSource, error) {
	existing, err := h.store.GetCollectionSourceByCollectionID(ctx, feedID, info.CollectionID)
	if err == nil {
		return existing, nil
	}
	if !errors.Is(err, store.ErrNotFound) {
		return nil, err
	}

	src, err := h.store.CreateCollectionSource(ctx, &models.CollectionSource{
		FeedID:       feedID,
		CollectionID: info.CollectionID,
		URL:          media.PlaylistURL(info.CollectionID),
		Title:        info.Title,
		Enabled:      true,
	})
	if errors.Is(err, store.ErrConflict) {
		return h.store.GetCollectionSourceByCollectionID(ctx, feedID, info.CollectionID)
	}
	return src, err
}

// HandleRefreshCollectionTask re-resolves a tracked collection and
// enqueues ingest jobs for newly discovered members only, up to the
// per-refresh cap. last_refreshed_at advances at the end of the attempt
// regardless of outcome so the schedule always makes forward progress.
func (h *TaskHandler) HandleRefreshCollectionTask(ctx context.Context, t *asynq.Task) error {
	var p tasks.RefreshCollectionPayload
	if err := json.Unmarshal(t.Payload(), &p); err != nil {
		return fmt.Errorf("failed to unmarshal task payload: %v: %w", err, asynq.SkipRetry)
	}

	src, err := h.store.GetCollectionSource(ctx, p.CollectionSourceID)
	if errors.Is(err, store.ErrNotFound) {
		log.Printf("Collection source %s no longer exists, dropping refresh", p.CollectionSourceID)
		return nil
	}
	if err != nil {
		return fmt.Errorf("failed to load collection source %s: %w", p.CollectionSourceID, err)
	}

	if !src.Enabled {
		log.Printf("Collection source %s is disabled, skipping refresh", src.ID)
		return h.finishRefresh(ctx, src.ID, nil)
	}

	info, err := h.resolver.ResolveCollection(ctx, src.URL)
	if err != nil {
		if media.Retryable(err) && h.retriesLeft(ctx) {
			return err
		}
		// Terminal resolve failure: record the attempt so a perpetually
		// failing collection is not retried every scheduler tick.
		log.Printf("Refresh of collection %s failed permanently: %v", src.CollectionID, err)
		return h.finishRefresh(ctx, src.ID, fmt.Errorf("%v: %w", err, asynq.SkipRetry))
	}
	if info.FailedEntries > 0 {
		log.Printf("Collection %s: %d entries could not be listed, refreshing with the rest", src.CollectionID, info.FailedEntries)
	}

	added, err := h.enqueueNewMembers(ctx, src.FeedID, info.MemberIDs, h.maxNewPerRefresh)
	if err != nil {
		return err
	}

	log.Printf("Refreshed collection %s: %d new episodes", src.CollectionID, added)
	return h.finishRefresh(ctx, src.ID, nil)
}

// enqueueNewMembers creates episodes and ingest jobs for members the
// feed does not already have. A limit of 0 means unbounded; excess new
// members beyond the limit are picked up by the next due refresh.
func (h *TaskHandler) enqueueNewMembers(ctx context.Context, feedID string, memberIDs []string, limit int) (int, error) {
	existing, err := h.store.ListFeedSourceIDs(ctx, feedID)
	if err != nil {
		return 0, fmt.Errorf("failed to list feed source ids: %w", err)
	}

	added := 0
	for _, videoID := range memberIDs {
		if _, ok := existing[videoID]; ok {
			continue
		}
		if limit > 0 && added >= limit {
			log.Printf("Hit per-refresh cap (%d) for feed %s, remaining members deferred", limit, feedID)
			break
		}

		vid := videoID
		ep, err := h.store.CreateEpisode(ctx, &models.Episode{
			FeedID:     feedID,
			SourceType: models.SourceYouTube,
			SourceID:   &vid,
			Title:      fmt.Sprintf("Loading... (%s)", vid),
			Status:     models.StatusPending,
		})
		if errors.Is(err, store.ErrConflict) {
			continue
		}
		if err != nil {
			return added, fmt.Errorf("failed to create episode for %s: %w", vid, err)
		}

		task, err := tasks.NewIngestItemTask(ep.ID)
		if err != nil {
			return added, err
		}
		if _, err := h.queue.Enqueue(task, asynq.MaxRetry(h.maxRetry)); err != nil {
			return added, fmt.Errorf("failed to enqueue ingest for %s: %w", vid, err)
		}
		existing[vid] = struct{}{}
		added++
	}
	return added, nil
}

// finishRefresh advances last_refreshed_at unconditionally and returns
// the attempt's terminal error, if any.
func (h *TaskHandler) finishRefresh(ctx context.Context, sourceID string, result error) error {
	if err := h.store.TouchCollectionRefreshed(ctx, sourceID, h.now()); err != nil {
		return fmt.Errorf("failed to touch collection %s: %w", sourceID, err)
	}
	return result
}

// episodeOutcome is the single decision point between re-enqueue and
// terminal failure for episode jobs. Retryable errors propagate to the
// queue while attempts remain; everything else marks the episode failed
// with a sanitized message and stops the job.
func (h *TaskHandler) episodeOutcome(ctx context.Context, episodeID string, jobErr error) error {
	if media.Retryable(jobErr) && h.retriesLeft(ctx) {
		log.Printf("Episode %s hit a retryable error, re-enqueueing: %v", episodeID, jobErr)
		return jobErr
	}

	// Full diagnostic for operators; the episode row gets the short form.
	log.Printf("Episode %s failed permanently: %v", episodeID, jobErr)
	if err := h.store.MarkEpisodeFailed(ctx, episodeID, media.UserMessage(jobErr)); err != nil {
		return fmt.Errorf("failed to mark episode %s failed: %w", episodeID, err)
	}
	return fmt.Errorf("episode %s: %v: %w", episodeID, jobErr, asynq.SkipRetry)
}

// jobOutcome handles jobs with no owning episode to fail against.
func (h *TaskHandler) jobOutcome(ctx context.Context, what string, jobErr error) error {
	if media.Retryable(jobErr) && h.retriesLeft(ctx) {
		log.Printf("%s hit a retryable error, re-enqueueing: %v", what, jobErr)
		return jobErr
	}
	log.Printf("%s failed permanently: %v", what, jobErr)
	return fmt.Errorf("%s: %v: %w", what, jobErr, asynq.SkipRetry)
}

// retryState reads the retry counters asynq attaches to handler
// contexts. Indirect so tests can simulate exhausted retries.
var retryState = func(ctx context.Context) (retried, maxRetry int, ok bool) {
	retried, ok = asynq.GetRetryCount(ctx)
	if !ok {
		return 0, 0, false
	}
	maxRetry, ok = asynq.GetMaxRetry(ctx)
	if !ok {
		return 0, 0, false
	}
	return retried, maxRetry, true
}

func (h *TaskHandler) retriesLeft(ctx context.Context) bool {
	retried, maxRetry, ok := retryState(ctx)
	if !ok {
		return false
	}
	return retried < maxRetry
}
