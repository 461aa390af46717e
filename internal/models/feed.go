package models

import "time"

// Feed is a podcast feed owning episodes and tracked collection sources.
type Feed struct {
	ID          string    `db:"id" json:"id"`
	Title       string    `db:"title" json:"title"`
	Author      *string   `db:"author" json:"author,omitempty"`
	Description *string   `db:"description" json:"description,omitempty"`
	ArtworkPath *string   `db:"artwork_path" json:"-"`
	CreatedAt   time.Time `db:"created_at" json:"created_at"`
	UpdatedAt   time.Time `db:"updated_at" json:"updated_at"`
}
