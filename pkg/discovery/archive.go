package discovery

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"

	"podarchive/pkg/domain"
	"podarchive/pkg/httpclient"
)

const (
	defaultArchivePageSize = 50
	maxArchivePages        = 100
)

// archivePost is one entry of the publishing platform's archive API payload.
type archivePost struct {
	ID           int64  `json:"id"`
	Title        string `json:"title"`
	CanonicalURL string `json:"canonical_url"`
	PostDate     string `json:"post_date"`
}

// ArchiveSource pages through the publishing platform's JSON archive API.
// The archive lists everything the RSS feed has truncated away, so together
// they cover the full back catalog.
type ArchiveSource struct {
	archiveURL string
	pageSize   int
	client     *httpclient.HTTPClient
}

// NewArchiveSource creates an archive source for the given API URL
// (e.g. https://example.substack.com/api/v1/archive). The endpoint sits
// behind Cloudflare, which blocks browser-like User-Agents.
func NewArchiveSource(archiveURL string) *ArchiveSource {
	return &ArchiveSource{
		archiveURL: archiveURL,
		pageSize:   defaultArchivePageSize,
		client:     httpclient.NewClient(httpclient.CloudflareClient),
	}
}

func (s *ArchiveSource) Name() string {
	return "archive"
}

// Discover pages through the archive until a page comes back empty.
func (s *ArchiveSource) Discover(ctx context.Context) ([]domain.RawEpisodeRef, error) {
	var refs []domain.RawEpisodeRef

	for page := 0; page < maxArchivePages; page++ {
		posts, err := s.fetchPage(ctx, page*s.pageSize)
		if err != nil {
			return nil, fmt.Errorf("archive page at offset %d: %w", page*s.pageSize, err)
		}
		if len(posts) == 0 {
			break
		}

		for _, post := range posts {
			if post.CanonicalURL == "" {
				continue
			}
			refs = append(refs, domain.RawEpisodeRef{
				ExternalID:  fmt.Sprintf("substack:post:%d", post.ID),
				Source:      domain.FeedSource,
				Title:       post.Title,
				Link:        post.CanonicalURL,
				PublishedAt: post.PostDate,
			})
		}

		if len(posts) < s.pageSize {
			break
		}
	}

	if len(refs) == 0 {
		return nil, fmt.Errorf("archive contains no posts")
	}
	return refs, nil
}

func (s *ArchiveSource) fetchPage(ctx context.Context, offset int) ([]archivePost, error) {
	url := fmt.Sprintf("%s?sort=new&search=&offset=%d&limit=%d", s.archiveURL, offset, s.pageSize)

	resp, err := s.client.Get(ctx, url)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("read archive page: %w", err)
	}

	var posts []archivePost
	if err := json.Unmarshal(body, &posts); err != nil {
		return nil, fmt.Errorf("decode archive page: %w", err)
	}
	return posts, nil
}
