package feed

import (
	"fmt"
	"time"

	"github.com/eduncan911/podcast"

	"tubefeed/internal/models"
)

// GenerateRSS renders a feed document from its ready episodes. Episode
// fields are readable at any time, so this never blocks on ingestion.
func GenerateRSS(f *models.Feed, episodes []models.Episode, baseURL string) (string, error) {
	p := podcast.New(
		f.Title,
		fmt.Sprintf("%s/rss/%s", baseURL, f.ID),
		deref(f.Description),
		&f.CreatedAt, &f.UpdatedAt,
	)
	if f.Author != nil {
		p.IAuthor = *f.Author
	}
	if f.ArtworkPath != nil {
		p.AddImage(fmt.Sprintf("%s/artwork/%s", baseURL, f.ID))
	}

	for _, ep := range episodes {
		if ep.Status != models.StatusReady || ep.AudioPath == nil {
			continue
		}
		item := podcast.Item{
			Title:       ep.Title,
			Description: deref(ep.Description),
			PubDate:     pubDate(&ep),
		}
		if item.Description == "" {
			item.Description = ep.Title
		}
		if ep.DurationSeconds != nil {
			item.AddDuration(int64(*ep.DurationSeconds))
		}
		if ep.ThumbnailURL != nil && *ep.ThumbnailURL != "" {
			item.AddImage(*ep.ThumbnailURL)
		}
		item.AddEnclosure(
			fmt.Sprintf("%s/audio/%s.mp3", baseURL, ep.ID),
			podcast.MP3,
			derefInt64(ep.FileSizeBytes),
		)
		if _, err := p.AddItem(item); err != nil {
			return "", err
		}
	}

	return p.String(), nil
}

func pubDate(ep *models.Episode) *time.Time {
	if ep.PublishedAt != nil {
		return ep.PublishedAt
	}
	return &ep.CreatedAt
}

func deref(s *string) string {
	if s == nil {
		return ""
	}
	return *s
}

func derefInt64(n *int64) int64 {
	if n == nil {
		return 0
	}
	return *n
}
