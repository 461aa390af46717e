package models

import "time"

const (
	StatusPending     = "pending"
	StatusDownloading = "downloading"
	StatusReady       = "ready"
	StatusFailed      = "failed"
)

const (
	SourceYouTube = "youtube"
	SourceUpload  = "upload"
)

type Episode struct {
	ID                  string     `db:"id" json:"id"`
	FeedID              string     `db:"feed_id" json:"feed_id"`
	SourceType          string     `db:"source_type" json:"source_type"`
	SourceID            *string    `db:"source_id" json:"source_id,omitempty"`
	Title               string     `db:"title" json:"title"`
	Description         *string    `db:"description" json:"description,omitempty"`
	ThumbnailURL        *string    `db:"thumbnail_url" json:"thumbnail_url,omitempty"`
	ThumbnailPath       *string    `db:"thumbnail_path" json:"-"`
	AudioPath           *string    `db:"audio_path" json:"-"`
	FileSizeBytes       *int64     `db:"file_size_bytes" json:"file_size_bytes,omitempty"`
	DurationSeconds     *int       `db:"duration_seconds" json:"duration_seconds,omitempty"`
	PublishedAt         *time.Time `db:"published_at" json:"published_at,omitempty"`
	OriginalTitle       *string    `db:"original_title" json:"original_title,omitempty"`
	OriginalDescription *string    `db:"original_description" json:"original_description,omitempty"`
	OriginalPublishedAt *time.Time `db:"original_published_at" json:"original_published_at,omitempty"`
	OriginalFilename    *string    `db:"original_filename" json:"original_filename,omitempty"`
	Status              string     `db:"status" json:"status"`
	ErrorMessage        *string    `db:"error_message" json:"error_message,omitempty"`
	CreatedAt           time.Time  `db:"created_at" json:"created_at"`
}

// IsTerminal reports whether no further automatic transition will happen
// without external action.
func (e *Episode) IsTerminal() bool {
	return e.Status == StatusReady || e.Status == StatusFailed
}
