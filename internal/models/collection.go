package models

import "time"

// CollectionSource is a tracked external playlist, polled periodically
// for new member videos. (feed_id, collection_id) is unique: tracking the
// same playlist twice for one feed is a conflict, not a second row.
type CollectionSource struct {
	ID                 string     `db:"id" json:"id"`
	FeedID             string     `db:"feed_id" json:"feed_id"`
	CollectionID       string     `db:"collection_id" json:"collection_id"`
	URL                string     `db:"url" json:"url"`
	Title              string     `db:"title" json:"title"`
	Enabled            bool       `db:"enabled" json:"enabled"`
	RefreshIntervalSec *int       `db:"refresh_interval_sec" json:"refresh_interval_sec,omitempty"`
	LastRefreshedAt    *time.Time `db:"last_refreshed_at" json:"last_refreshed_at,omitempty"`
	RefreshRequestedAt *time.Time `db:"refresh_requested_at" json:"refresh_requested_at,omitempty"`
	CreatedAt          time.Time  `db:"created_at" json:"created_at"`
}

// RefreshInterval returns the effective interval, falling back to the
// global default when no per-collection override is set.
func (c *CollectionSource) RefreshInterval(globalDefault time.Duration) time.Duration {
	if c.RefreshIntervalSec != nil {
		return time.Duration(*c.RefreshIntervalSec) * time.Second
	}
	return globalDefault
}
