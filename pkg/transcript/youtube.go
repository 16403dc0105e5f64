package transcript

import (
	"context"
	"encoding/xml"
	"fmt"
	"html"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"podarchive/pkg/httpclient"
)

const defaultTimedTextBaseURL = "https://www.youtube.com/api/timedtext"

// YouTubeClient fetches captions from the video platform's timedtext
// endpoint.
type YouTubeClient struct {
	client  *httpclient.HTTPClient
	baseURL string
	timeout time.Duration
}

// NewYouTubeClient creates a transcript client against the real endpoint.
func NewYouTubeClient() *YouTubeClient {
	return &YouTubeClient{
		client:  httpclient.NewClient(httpclient.BrowserClient),
		baseURL: defaultTimedTextBaseURL,
		timeout: 30 * time.Second,
	}
}

// NewYouTubeClientWithBaseURL creates a client against a custom endpoint.
// Used by tests.
func NewYouTubeClientWithBaseURL(baseURL string) *YouTubeClient {
	c := NewYouTubeClient()
	c.baseURL = baseURL
	return c
}

// timedText is the caption payload shape.
type timedText struct {
	XMLName xml.Name       `xml:"transcript"`
	Lines   []timedTextCue `xml:"text"`
}

type timedTextCue struct {
	Start string `xml:"start,attr"`
	Dur   string `xml:"dur,attr"`
	Text  string `xml:",chardata"`
}

// Fetch tries each language in order and returns the first non-empty
// transcript, decoded to plain text with one caption line per row.
func (c *YouTubeClient) Fetch(ctx context.Context, videoID string, languages []string) (string, error) {
	if videoID == "" {
		return "", fmt.Errorf("video id is empty")
	}

	for _, lang := range languages {
		text, err := c.fetchLanguage(ctx, videoID, lang)
		if err != nil {
			log.Printf("YouTubeClient: transcript %s lang=%s: %v", videoID, lang, err)
			continue
		}
		if text != "" {
			return text, nil
		}
	}
	return "", ErrNotFound
}

func (c *YouTubeClient) fetchLanguage(ctx context.Context, videoID, lang string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	params := url.Values{}
	params.Set("v", videoID)
	params.Set("lang", lang)

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"?"+params.Encode(), nil)
	if err != nil {
		return "", err
	}

	resp, err := c.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch timedtext: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read timedtext body: %w", err)
	}
	// The endpoint answers 200 with an empty body when the language has
	// no track.
	if len(strings.TrimSpace(string(body))) == 0 {
		return "", nil
	}

	var tt timedText
	if err := xml.Unmarshal(body, &tt); err != nil {
		return "", fmt.Errorf("decode timedtext: %w", err)
	}

	lines := make([]string, 0, len(tt.Lines))
	for _, cue := range tt.Lines {
		text := strings.TrimSpace(html.UnescapeString(cue.Text))
		if text != "" {
			lines = append(lines, text)
		}
	}
	return strings.Join(lines, "\n"), nil
}
