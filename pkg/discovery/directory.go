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

// DirectoryConfig is the extraction recipe for one podcast directory's
// listing page. Directories differ only in markup, not in shape.
type DirectoryConfig struct {
	// ListingURL is the show's episode listing page.
	ListingURL string

	// RowSelector matches one episode row.
	RowSelector string

	// TitleSelector matches the episode title inside a row. Empty means
	// the row's own text.
	TitleSelector string

	// LinkSelector matches the episode page anchor inside a row. Empty
	// means the row itself is the anchor.
	LinkSelector string

	// DateSelector matches the published date inside a row, if shown.
	DateSelector string

	// ScrollSteps scrolls the listing to trigger lazy loading.
	ScrollSteps int
}

// DirectorySource lists episodes from a podcast directory's show page.
type DirectorySource struct {
	cfg      DirectoryConfig
	renderer fetch.Renderer
}

// NewDirectorySource creates a directory source with the given recipe.
func NewDirectorySource(cfg DirectoryConfig, renderer fetch.Renderer) *DirectorySource {
	return &DirectorySource{cfg: cfg, renderer: renderer}
}

func (s *DirectorySource) Name() string {
	return "directory"
}

// Discover renders the listing page and extracts one reference per episode
// row. The episode page URL keys the reference.
func (s *DirectorySource) Discover(ctx context.Context) ([]domain.RawEpisodeRef, error) {
	rendered, err := s.renderer.Render(ctx, s.cfg.ListingURL, fetch.Instructions{
		WaitSelector: s.cfg.RowSelector,
		ScrollSteps:  s.cfg.ScrollSteps,
		Settle:       2 * time.Second,
	})
	if err != nil {
		return nil, fmt.Errorf("render directory listing: %w", err)
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(rendered.HTML))
	if err != nil {
		return nil, fmt.Errorf("parse directory listing: %w", err)
	}

	var refs []domain.RawEpisodeRef
	seen := make(map[string]bool)

	doc.Find(s.cfg.RowSelector).Each(func(_ int, row *goquery.Selection) {
		link := s.rowLink(row)
		if link == "" || seen[link] {
			return
		}
		seen[link] = true

		refs = append(refs, domain.RawEpisodeRef{
			ExternalID:  link,
			Source:      domain.DirectorySource,
			Title:       s.rowText(row, s.cfg.TitleSelector),
			Link:        link,
			PublishedAt: s.rowText(row, s.cfg.DateSelector),
		})
	})

	if len(refs) == 0 {
		return nil, fmt.Errorf("directory listing has no episode rows")
	}
	return refs, nil
}

func (s *DirectorySource) rowLink(row *goquery.Selection) string {
	anchor := row
	if s.cfg.LinkSelector != "" {
		anchor = row.Find(s.cfg.LinkSelector).First()
	}
	href := strings.TrimSpace(anchor.AttrOr("href", ""))
	if href == "" || strings.HasPrefix(href, "#") {
		return ""
	}
	return href
}

func (s *DirectorySource) rowText(row *goquery.Selection, selector string) string {
	sel := row
	if selector != "" {
		sel = row.Find(selector).First()
	}
	return strings.Join(strings.Fields(sel.Text()), " ")
}
