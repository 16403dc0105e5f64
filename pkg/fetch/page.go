package fetch

import (
	"encoding/json"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	readability "github.com/go-shiori/go-readability"

	"podarchive/pkg/document"
)

var (
	errEmptyHTML     = errors.New("empty HTML content")
	errNoDescription = errors.New("no description content found")
)

// videoIDLen is the fixed length of platform video ids.
const videoIDLen = 11

var embedIDPattern = regexp.MustCompile(`embed/([a-zA-Z0-9_-]{11})`)

// PageOptions are the page-specific extraction recipes.
type PageOptions struct {
	// DescriptionSelector is the container holding the episode
	// description on the publishing platform.
	DescriptionSelector string

	// TranscriptSelector is the native transcript panel, visible after
	// the transcript toggle has been clicked.
	TranscriptSelector string

	// StreamLinkPrefix identifies links pointing at the streaming
	// service's episode page.
	StreamLinkPrefix string
}

// EpisodePage is everything extracted from one rendered episode page.
type EpisodePage struct {
	Description      string
	Links            []document.Link
	VideoID          string
	StreamLink       string
	NativeTranscript string
}

// ExtractEpisodePage pulls the episode attributes out of rendered HTML.
// Missing pieces are left empty rather than failing: expected structure
// absent on a page means "data not available this run".
func ExtractEpisodePage(html string, opts PageOptions) (*EpisodePage, error) {
	html = strings.TrimSpace(html)
	if html == "" {
		return nil, errEmptyHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse episode page: %w", err)
	}

	page := &EpisodePage{}

	container := doc.Find(opts.DescriptionSelector).First()
	if container.Length() > 0 {
		page.Description = strings.TrimSpace(container.Text())
		page.Links, page.StreamLink = extractLinks(container, opts.StreamLinkPrefix)
	}
	if page.Description == "" {
		// Selector missing or empty: fall back to readability over the
		// whole page.
		if text, err := extractReadableText(html); err == nil {
			page.Description = text
		}
	}

	if opts.TranscriptSelector != "" {
		page.NativeTranscript = strings.TrimSpace(doc.Find(opts.TranscriptSelector).First().Text())
	}

	page.VideoID = findVideoID(doc, html)

	return page, nil
}

// extractLinks collects reference links with their surrounding line of
// context (the parent element's text), falling back to the anchor text when
// the parent is empty. The streaming-service episode link is picked out by
// prefix along the way.
func extractLinks(container *goquery.Selection, streamPrefix string) ([]document.Link, string) {
	var links []document.Link
	var streamLink string

	container.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" || strings.HasPrefix(href, "#") {
			return
		}

		label := collapseWhitespace(sel.Parent().Text())
		if label == "" {
			label = collapseWhitespace(sel.Text())
		}
		if label == "" {
			label = href
		}

		links = append(links, document.Link{Label: label, URL: href})

		if streamPrefix != "" && strings.HasPrefix(href, streamPrefix) {
			streamLink = href
		}
	})

	return links, streamLink
}

// findVideoID recovers the video-platform id for the episode, trying the
// strategies in order of reliability: the platform's embed component
// attributes, embed iframes, direct watch links, and finally preloaded page
// JSON left in the raw HTML.
func findVideoID(doc *goquery.Document, html string) string {
	if id := videoIDFromComponent(doc); id != "" {
		return id
	}
	if id := videoIDFromIframe(doc); id != "" {
		return id
	}
	if id := videoIDFromDirectLink(doc); id != "" {
		return id
	}
	if m := embedIDPattern.FindStringSubmatch(html); m != nil {
		return m[1]
	}
	return ""
}

func videoIDFromComponent(doc *goquery.Document) string {
	sel := doc.Find(`div[data-component-name="Youtube2ToDOM"]`).First()
	if sel.Length() == 0 {
		return ""
	}
	raw, ok := sel.Attr("data-attrs")
	if !ok {
		return ""
	}

	var attrs struct {
		VideoID string `json:"videoId"`
	}
	if err := json.Unmarshal([]byte(raw), &attrs); err != nil {
		return ""
	}
	return attrs.VideoID
}

func videoIDFromIframe(doc *goquery.Document) string {
	src, ok := doc.Find(`iframe[src*="youtube"]`).First().Attr("src")
	if !ok {
		return ""
	}
	return VideoIDFromURL(src)
}

func videoIDFromDirectLink(doc *goquery.Document) string {
	href, ok := doc.Find(`a[href*="youtube.com/watch"], a[href*="youtu.be"]`).First().Attr("href")
	if !ok {
		return ""
	}
	return VideoIDFromURL(href)
}

// VideoIDFromURL extracts the 11-character id from embed, watch, and short
// URL shapes.
func VideoIDFromURL(raw string) string {
	var candidate string
	switch {
	case strings.Contains(raw, "embed/"):
		candidate = after(raw, "embed/")
	case strings.Contains(raw, "v="):
		candidate = after(raw, "v=")
	case strings.Contains(raw, "youtu.be/"):
		candidate = after(raw, "youtu.be/")
	default:
		return ""
	}

	parts := strings.FieldsFunc(candidate, func(r rune) bool {
		return r == '?' || r == '&' || r == '/'
	})
	if len(parts) == 0 || len(parts[0]) != videoIDLen {
		return ""
	}
	return parts[0]
}

func after(s, marker string) string {
	i := strings.Index(s, marker)
	return s[i+len(marker):]
}

func extractReadableText(html string) (string, error) {
	article, err := readability.FromReader(strings.NewReader(html), nil)
	if err != nil {
		return "", fmt.Errorf("readability fallback: %w", err)
	}
	text := strings.TrimSpace(article.TextContent)
	if text == "" {
		return "", errNoDescription
	}
	return text, nil
}

func collapseWhitespace(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
