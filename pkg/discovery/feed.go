package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/mmcdole/gofeed"

	"podarchive/pkg/domain"
)

// FeedSource lists episodes from the publishing platform's RSS/Atom feed.
type FeedSource struct {
	feedURL    string
	feedParser *gofeed.Parser
}

// NewFeedSource creates a feed source for the given feed URL.
func NewFeedSource(feedURL string) *FeedSource {
	return &FeedSource{
		feedURL:    feedURL,
		feedParser: gofeed.NewParser(),
	}
}

func (s *FeedSource) Name() string {
	return "feed"
}

// Discover fetches and parses the feed into raw episode references. Item
// GUIDs key the references; items without one fall back to the link.
func (s *FeedSource) Discover(ctx context.Context) ([]domain.RawEpisodeRef, error) {
	feed, err := s.feedParser.ParseURLWithContext(s.feedURL, ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to parse feed: %w", err)
	}

	if feed == nil || len(feed.Items) == 0 {
		return nil, fmt.Errorf("feed contains no items")
	}

	refs := make([]domain.RawEpisodeRef, 0, len(feed.Items))
	for _, item := range feed.Items {
		if item.Link == "" {
			continue
		}

		externalID := strings.TrimSpace(item.GUID)
		if externalID == "" {
			externalID = item.Link
		}

		var published string
		if item.PublishedParsed != nil {
			published = item.PublishedParsed.Format(time.RFC3339)
		} else {
			published = item.Published
		}

		refs = append(refs, domain.RawEpisodeRef{
			ExternalID:  externalID,
			Source:      domain.FeedSource,
			Title:       item.Title,
			Link:        item.Link,
			PublishedAt: published,
		})
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("no valid references found in feed items")
	}
	return refs, nil
}
