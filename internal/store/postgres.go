package store

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq" // The database driver

	"tubefeed/internal/models"
)

// Postgres implements Store on top of sqlx.
type Postgres struct {
	db *sqlx.DB
}

func NewPostgres(db *sqlx.DB) *Postgres {
	return &Postgres{db: db}
}

// Connect opens and pings a Postgres connection.
func Connect(databaseURL string) (*Postgres, error) {
	db, err := sqlx.Connect("postgres", databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to database: %w", err)
	}
	return &Postgres{db: db}, nil
}

func (p *Postgres) Close() error {
	return p.db.Close()
}

// region feeds

func (p *Postgres) CreateFeed(ctx context.Context, feed *models.Feed) (*models.Feed, error) {
	if feed.ID == "" {
		feed.ID = uuid.New().String()
	}
	created := &models.Feed{}
	err := p.db.GetContext(ctx, created, `
		INSERT INTO feeds (id, title, author, description, artwork_path)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING *`,
		feed.ID, feed.Title, feed.Author, feed.Description, feed.ArtworkPath)
	if err != nil {
		return nil, err
	}
	return created, nil
}

func (p *Postgres) GetFeed(ctx context.Context, id string) (*models.Feed, error) {
	feed := &models.Feed{}
	err := p.db.GetContext(ctx, feed, "SELECT * FROM feeds WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return feed, err
}

func (p *Postgres) ListFeeds(ctx context.Context) ([]models.Feed, error) {
	var feeds []models.Feed
	err := p.db.SelectContext(ctx, &feeds, "SELECT * FROM feeds ORDER BY created_at DESC")
	return feeds, err
}

func (p *Postgres) DeleteFeed(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, "DELETE FROM feeds WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// endregion

// region episodes

func (p *Postgres) CreateEpisode(ctx context.Context, ep *models.Episode) (*models.Episode, error) {
	if ep.ID == "" {
		ep.ID = uuid.New().String()
	}
	if ep.Status == "" {
		ep.Status = models.StatusPending
	}
	created := &models.Episode{}
	err := p.db.GetContext(ctx, created, `
		INSERT INTO episodes (id, feed_id, source_type, source_id, title, original_filename, status)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		ep.ID, ep.FeedID, ep.SourceType, ep.SourceID, ep.Title, ep.OriginalFilename, ep.Status)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (p *Postgres) GetEpisode(ctx context.Context, id string) (*models.Episode, error) {
	ep := &models.Episode{}
	err := p.db.GetContext(ctx, ep, "SELECT * FROM episodes WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ep, err
}

func (p *Postgres) GetEpisodeBySourceID(ctx context.Context, feedID, sourceID string) (*models.Episode, error) {
	ep := &models.Episode{}
	err := p.db.GetContext(ctx, ep,
		"SELECT * FROM episodes WHERE feed_id = $1 AND source_id = $2", feedID, sourceID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return ep, err
}

func (p *Postgres) ListFeedEpisodes(ctx context.Context, feedID string) ([]models.Episode, error) {
	var episodes []models.Episode
	err := p.db.SelectContext(ctx, &episodes, `
		SELECT * FROM episodes
		WHERE feed_id = $1
		ORDER BY published_at DESC NULLS LAST, created_at DESC`, feedID)
	return episodes, err
}

func (p *Postgres) ListReadyEpisodes(ctx context.Context, feedID string) ([]models.Episode, error) {
	var episodes []models.Episode
	err := p.db.SelectContext(ctx, &episodes, `
		SELECT * FROM episodes
		WHERE feed_id = $1 AND status = 'ready'
		ORDER BY published_at DESC NULLS LAST, created_at DESC`, feedID)
	return episodes, err
}

func (p *Postgres) ListFeedSourceIDs(ctx context.Context, feedID string) (map[string]struct{}, error) {
	var ids []string
	err := p.db.SelectContext(ctx, &ids,
		"SELECT source_id FROM episodes WHERE feed_id = $1 AND source_id IS NOT NULL", feedID)
	if err != nil {
		return nil, err
	}
	set := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		set[id] = struct{}{}
	}
	return set, nil
}

func (p *Postgres) DeleteEpisode(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, "DELETE FROM episodes WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) UpdateEpisodeStatus(ctx context.Context, id, status string) error {
	res, err := p.db.ExecContext(ctx, "UPDATE episodes SET status = $1 WHERE id = $2", status, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// UpdateEpisodeMetadata writes resolved metadata. The original_* shadow
// columns are captured on first resolution and never mutated afterwards;
// user-edited fields survive a retry because the shadow already exists.
func (p *Postgres) UpdateEpisodeMetadata(ctx context.Context, id string, title, description, thumbnailURL string, publishedAt *time.Time) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE episodes SET
			title = CASE WHEN original_title IS NULL THEN $2 ELSE title END,
			description = CASE WHEN original_description IS NULL THEN $3 ELSE description END,
			thumbnail_url = COALESCE(thumbnail_url, $4),
			published_at = CASE WHEN original_published_at IS NULL THEN $5 ELSE published_at END,
			original_title = COALESCE(original_title, $2),
			original_description = COALESCE(original_description, $3),
			original_published_at = COALESCE(original_published_at, $5)
		WHERE id = $1`,
		id, title, description, thumbnailURL, publishedAt)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkEpisodeReady persists the terminal success state atomically with
// the media fields, holding the status/media invariant.
func (p *Postgres) MarkEpisodeReady(ctx context.Context, id, audioPath string, fileSize int64, durationSeconds int) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE episodes
		SET status = 'ready', audio_path = $1, file_size_bytes = $2, duration_seconds = $3, error_message = NULL
		WHERE id = $4`,
		audioPath, fileSize, durationSeconds, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkEpisodeFailed clears media fields so that a failed episode never
// claims a deliverable file.
func (p *Postgres) MarkEpisodeFailed(ctx context.Context, id, message string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE episodes
		SET status = 'failed', error_message = $1, audio_path = NULL, file_size_bytes = NULL, duration_seconds = NULL
		WHERE id = $2`,
		message, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// MarkEpisodeRetried performs the failed -> pending transition. The WHERE
// clause guards the state machine at the database level.
func (p *Postgres) MarkEpisodeRetried(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE episodes
		SET status = 'pending', error_message = NULL
		WHERE id = $1 AND status = 'failed'`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) UpdateEpisodeFields(ctx context.Context, id string, update EpisodeUpdate) error {
	sets := []string{}
	args := []interface{}{id}
	n := 2
	if update.Title != nil {
		sets = append(sets, fmt.Sprintf("title = $%d", n))
		args = append(args, *update.Title)
		n++
	}
	if update.Description != nil {
		sets = append(sets, fmt.Sprintf("description = $%d", n))
		args = append(args, *update.Description)
		n++
	}
	if update.PublishedAt != nil {
		sets = append(sets, fmt.Sprintf("published_at = $%d", n))
		args = append(args, *update.PublishedAt)
		n++
	}
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE episodes SET %s WHERE id = $1", strings.Join(sets, ", "))
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) RevertEpisodeFields(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, `
		UPDATE episodes SET
			title = COALESCE(original_title, title),
			description = original_description,
			published_at = original_published_at
		WHERE id = $1`, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// endregion

// region collection sources

func (p *Postgres) CreateCollectionSource(ctx context.Context, src *models.CollectionSource) (*models.CollectionSource, error) {
	if src.ID == "" {
		src.ID = uuid.New().String()
	}
	created := &models.CollectionSource{}
	err := p.db.GetContext(ctx, created, `
		INSERT INTO collection_sources (id, feed_id, collection_id, url, title, enabled, refresh_interval_sec)
		VALUES ($1, $2, $3, $4, $5, $6, $7)
		RETURNING *`,
		src.ID, src.FeedID, src.CollectionID, src.URL, src.Title, src.Enabled, src.RefreshIntervalSec)
	if err != nil {
		if isUniqueViolation(err) {
			return nil, ErrConflict
		}
		return nil, err
	}
	return created, nil
}

func (p *Postgres) GetCollectionSource(ctx context.Context, id string) (*models.CollectionSource, error) {
	src := &models.CollectionSource{}
	err := p.db.GetContext(ctx, src, "SELECT * FROM collection_sources WHERE id = $1", id)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return src, err
}

func (p *Postgres) GetCollectionSourceByCollectionID(ctx context.Context, feedID, collectionID string) (*models.CollectionSource, error) {
	src := &models.CollectionSource{}
	err := p.db.GetContext(ctx, src,
		"SELECT * FROM collection_sources WHERE feed_id = $1 AND collection_id = $2", feedID, collectionID)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrNotFound
	}
	return src, err
}

func (p *Postgres) ListEnabledCollectionSources(ctx context.Context) ([]models.CollectionSource, error) {
	var sources []models.CollectionSource
	err := p.db.SelectContext(ctx, &sources,
		"SELECT * FROM collection_sources WHERE enabled = TRUE ORDER BY created_at")
	return sources, err
}

func (p *Postgres) ListFeedCollectionSources(ctx context.Context, feedID string) ([]models.CollectionSource, error) {
	var sources []models.CollectionSource
	err := p.db.SelectContext(ctx, &sources,
		"SELECT * FROM collection_sources WHERE feed_id = $1 ORDER BY created_at", feedID)
	return sources, err
}

func (p *Postgres) UpdateCollectionSource(ctx context.Context, id string, update CollectionUpdate) error {
	sets := []string{}
	args := []interface{}{id}
	n := 2
	if update.Enabled != nil {
		sets = append(sets, fmt.Sprintf("enabled = $%d", n))
		args = append(args, *update.Enabled)
		n++
	}
	if update.ClearInterval {
		sets = append(sets, "refresh_interval_sec = NULL")
	} else if update.RefreshIntervalSec != nil {
		sets = append(sets, fmt.Sprintf("refresh_interval_sec = $%d", n))
		args = append(args, *update.RefreshIntervalSec)
		n++
	}
	if len(sets) == 0 {
		return nil
	}
	query := fmt.Sprintf("UPDATE collection_sources SET %s WHERE id = $1", strings.Join(sets, ", "))
	res, err := p.db.ExecContext(ctx, query, args...)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) MarkCollectionRefreshRequested(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx,
		"UPDATE collection_sources SET refresh_requested_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) TouchCollectionRefreshed(ctx context.Context, id string, at time.Time) error {
	res, err := p.db.ExecContext(ctx,
		"UPDATE collection_sources SET last_refreshed_at = $1 WHERE id = $2", at, id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

func (p *Postgres) DeleteCollectionSource(ctx context.Context, id string) error {
	res, err := p.db.ExecContext(ctx, "DELETE FROM collection_sources WHERE id = $1", id)
	if err != nil {
		return err
	}
	return requireRow(res)
}

// endregion

func requireRow(res sql.Result) error {
	affected, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if affected == 0 {
		return ErrNotFound
	}
	return nil
}

func isUniqueViolation(err error) bool {
	return err != nil && strings.Contains(err.Error(), "duplicate key value")
}
