package store

import (
	"context"
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/jmoiron/sqlx"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tubefeed/internal/models"
)

func newMockStore(t *testing.T) (*Postgres, sqlmock.Sqlmock) {
	t.Helper()
	mockDb, mock, err := sqlmock.New()
	if err != nil {
		t.Fatalf("an error '%s' was not expected when opening a stub database connection", err)
	}
	t.Cleanup(func() { mockDb.Close() })
	return NewPostgres(sqlx.NewDb(mockDb, "sqlmock")), mock
}

func TestCreateEpisode(t *testing.T) {
	p, mock := newMockStore(t)

	videoID := "dQw4w9WgXcQ"
	rows := sqlmock.NewRows([]string{"id", "feed_id", "source_type", "source_id", "title", "status", "created_at"}).
		AddRow("ep-1", "feed-1", models.SourceYouTube, videoID, "Loading... (dQw4w9WgXcQ)", models.StatusPending, time.Now())
	mock.ExpectQuery(`INSERT INTO episodes`).
		WithArgs(sqlmock.AnyArg(), "feed-1", models.SourceYouTube, &videoID, "Loading... (dQw4w9WgXcQ)", nil, models.StatusPending).
		WillReturnRows(rows)

	created, err := p.CreateEpisode(context.Background(), &models.Episode{
		FeedID:     "feed-1",
		SourceType: models.SourceYouTube,
		SourceID:   &videoID,
		Title:      "Loading... (dQw4w9WgXcQ)",
	})
	require.NoError(t, err)
	assert.Equal(t, "ep-1", created.ID)
	assert.Equal(t, models.StatusPending, created.Status)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestCreateEpisodeDuplicateSourceIsConflict(t *testing.T) {
	p, mock := newMockStore(t)

	videoID := "dQw4w9WgXcQ"
	mock.ExpectQuery(`INSERT INTO episodes`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "episodes_feed_source_key"`))

	_, err := p.CreateEpisode(context.Background(), &models.Episode{
		FeedID:     "feed-1",
		SourceType: models.SourceYouTube,
		SourceID:   &videoID,
	})
	assert.ErrorIs(t, err, ErrConflict)

	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestGetEpisodeNotFound(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`SELECT \* FROM episodes WHERE id = \$1`).
		WithArgs("missing").
		WillReturnError(sql.ErrNoRows)

	_, err := p.GetEpisode(context.Background(), "missing")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestMarkEpisodeReady(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE episodes\s+SET status = 'ready', audio_path = \$1, file_size_bytes = \$2, duration_seconds = \$3, error_message = NULL\s+WHERE id = \$4`).
		WithArgs("/data/audio/ep-1.mp3", int64(7680000), 320, "ep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.MarkEpisodeReady(context.Background(), "ep-1", "/data/audio/ep-1.mp3", 7680000, 320)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkEpisodeFailedClearsMediaFields(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE episodes\s+SET status = 'failed', error_message = \$1, audio_path = NULL, file_size_bytes = NULL, duration_seconds = NULL\s+WHERE id = \$2`).
		WithArgs("Download failed after repeated attempts.", "ep-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.MarkEpisodeFailed(context.Background(), "ep-1", "Download failed after repeated attempts.")
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestMarkEpisodeRetriedRequiresFailedState(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectExec(`UPDATE episodes\s+SET status = 'pending', error_message = NULL\s+WHERE id = \$1 AND status = 'failed'`).
		WithArgs("ep-1").
		WillReturnResult(sqlmock.NewResult(0, 0))

	// Zero rows means the episode was not failed; the state guard lives in
	// the WHERE clause.
	err := p.MarkEpisodeRetried(context.Background(), "ep-1")
	assert.ErrorIs(t, err, ErrNotFound)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEpisodeMetadataPreservesEdits(t *testing.T) {
	p, mock := newMockStore(t)

	published := time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE episodes SET\s+title = CASE WHEN original_title IS NULL THEN \$2 ELSE title END`).
		WithArgs("ep-1", "Resolved Title", "Resolved description", "https://i.ytimg.com/t.jpg", &published).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.UpdateEpisodeMetadata(context.Background(), "ep-1",
		"Resolved Title", "Resolved description", "https://i.ytimg.com/t.jpg", &published)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEpisodeFieldsBuildsPartialSet(t *testing.T) {
	p, mock := newMockStore(t)

	title := "My Better Title"
	mock.ExpectExec(`UPDATE episodes SET title = \$2 WHERE id = \$1`).
		WithArgs("ep-1", title).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.UpdateEpisodeFields(context.Background(), "ep-1", EpisodeUpdate{Title: &title})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestUpdateEpisodeFieldsEmptyUpdateIsNoOp(t *testing.T) {
	p, mock := newMockStore(t)

	err := p.UpdateEpisodeFields(context.Background(), "ep-1", EpisodeUpdate{})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestListFeedSourceIDs(t *testing.T) {
	p, mock := newMockStore(t)

	rows := sqlmock.NewRows([]string{"source_id"}).
		AddRow("aaaaaaaaaaa").
		AddRow("bbbbbbbbbbb")
	mock.ExpectQuery(`SELECT source_id FROM episodes WHERE feed_id = \$1 AND source_id IS NOT NULL`).
		WithArgs("feed-1").
		WillReturnRows(rows)

	set, err := p.ListFeedSourceIDs(context.Background(), "feed-1")
	require.NoError(t, err)
	assert.Len(t, set, 2)
	assert.Contains(t, set, "aaaaaaaaaaa")
	assert.Contains(t, set, "bbbbbbbbbbb")
}

func TestCreateCollectionSourceConflict(t *testing.T) {
	p, mock := newMockStore(t)

	mock.ExpectQuery(`INSERT INTO collection_sources`).
		WillReturnError(errors.New(`pq: duplicate key value violates unique constraint "collection_sources_feed_id_collection_id_key"`))

	_, err := p.CreateCollectionSource(context.Background(), &models.CollectionSource{
		FeedID:       "feed-1",
		CollectionID: "PLxyz",
		URL:          "https://www.youtube.com/playlist?list=PLxyz",
	})
	assert.ErrorIs(t, err, ErrConflict)
}

func TestUpdateCollectionSourceClearInterval(t *testing.T) {
	p, mock := newMockStore(t)

	enabled := false
	mock.ExpectExec(`UPDATE collection_sources SET enabled = \$2, refresh_interval_sec = NULL WHERE id = \$1`).
		WithArgs("src-1", false).
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.UpdateCollectionSource(context.Background(), "src-1", CollectionUpdate{
		Enabled:       &enabled,
		ClearInterval: true,
	})
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}

func TestTouchCollectionRefreshed(t *testing.T) {
	p, mock := newMockStore(t)

	at := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mock.ExpectExec(`UPDATE collection_sources SET last_refreshed_at = \$1 WHERE id = \$2`).
		WithArgs(at, "src-1").
		WillReturnResult(sqlmock.NewResult(0, 1))

	err := p.TouchCollectionRefreshed(context.Background(), "src-1", at)
	assert.NoError(t, err)
	assert.NoError(t, mock.ExpectationsWereMet())
}
