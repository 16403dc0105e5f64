package discovery

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"

	"podarchive/pkg/domain"
	"podarchive/pkg/fetch"
)

// ChannelSource lists episodes from the video channel's uploads page. The
// page lazy-loads, so the renderer scrolls it out before extraction.
type ChannelSource struct {
	channelURL string
	renderer   fetch.Renderer
}

// NewChannelSource creates a channel source for the given uploads page URL.
func NewChannelSource(channelURL string, renderer fetch.Renderer) *ChannelSource {
	return &ChannelSource{
		channelURL: channelURL,
		renderer:   renderer,
	}
}

func (s *ChannelSource) Name() string {
	return "channel"
}

// Discover renders the uploads page and extracts one reference per video
// tile. The video id keys the reference; it is the stable id other sources
// are resolved against.
func (s *ChannelSource) Discover(ctx context.Context) ([]domain.RawEpisodeRef, error) {
	rendered, err := s.renderer.Render(ctx, s.channelURL, fetch.Instructions{
		WaitSelector: "ytd-rich-grid-media, ytd-grid-video-renderer",
		ScrollSteps:  10,
		Settle:       2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render channel page: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse channel page: %w", err)
	}

	var refs []domain.RawEpisodeRef
	seen := make(map[string]bool)

	doc.Find(`a#video-title-link, a#video-title`).Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}

		videoID := fetch.VideoIDFromURL(href)
		if videoID == "" || seen[videoID] {
			return
		}
		seen[videoID] = true

		title := strings.TrimSpace(sel.AttrOr("title", ""))
		if title == "" {
			title = strings.TrimSpace(sel.Text())
		}

		refs = append(refs, domain.RawEpisodeRef{
			ExternalID: videoID,
			Source:     domain.VideoSource,
			Title:      title,
			Link:       "https://www.youtube.com/watch?v=" + videoID,
		})
	})

	if len(refs) == 0 {
		return nil, fmt.Errorf("channel page has no video tiles")
	}
	return refs, nil
}
