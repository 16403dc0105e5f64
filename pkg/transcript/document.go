package transcript

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/PuerkitoBio/goquery"
	"github.com/ledongthuc/pdf"
)

var (
	ErrNoDocumentLink        = errors.New("no transcript document link found")
	ErrUnsupportedTranscript = errors.New("unsupported transcript document type")
)

// DocumentFetcher downloads transcript documents (.pdf/.txt) that directory
// episode pages sometimes link directly.
type DocumentFetcher struct {
	client *http.Client
}

// NewDocumentFetcher creates a transcript document fetcher.
func NewDocumentFetcher() *DocumentFetcher {
	return &DocumentFetcher{
		client: &http.Client{Timeout: 30 * time.Second},
	}
}

// FindDocumentURL locates a transcript document link in episode page HTML,
// ranked by how much it looks like one: anchor text mentioning "transcript"
// with a document-like href beats a document-like href alone, which beats
// transcript-mentioning text alone.
func FindDocumentURL(html string) (string, error) {
	html = strings.TrimSpace(html)
	if html == "" {
		return "", ErrNoDocumentLink
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return "", fmt.Errorf("parse page for transcript link: %w", err)
	}

	type candidate struct {
		href string
	}
	var high, med, low []candidate

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, ok := sel.Attr("href")
		if !ok {
			return
		}
		href = strings.TrimSpace(href)
		if href == "" {
			return
		}

		text := strings.ToLower(strings.TrimSpace(sel.Text()))
		docLike := isDocumentHref(href)
		textLike := strings.Contains(text, "transcript")

		c := candidate{href: href}
		switch {
		case docLike && textLike:
			high = append(high, c)
		case docLike:
			med = append(med, c)
		case textLike:
			low = append(low, c)
		}
	})

	switch {
	case len(high) > 0:
		return high[0].href, nil
	case len(med) > 0:
		return med[0].href, nil
	case len(low) > 0:
		return low[0].href, nil
	default:
		return "", ErrNoDocumentLink
	}
}

// FromDocument downloads a transcript document and extracts its plain text.
func (f *DocumentFetcher) FromDocument(ctx context.Context, docURL string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, docURL, nil)
	if err != nil {
		return "", err
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return "", fmt.Errorf("fetch transcript document: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", fmt.Errorf("unexpected status code: %d", resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return "", fmt.Errorf("read transcript document: %w", err)
	}

	switch strings.ToLower(path.Ext(urlPath(docURL))) {
	case ".txt":
		return string(body), nil
	case ".pdf":
		return textFromPDF(body)
	}

	switch ct := strings.ToLower(resp.Header.Get("Content-Type")); {
	case strings.Contains(ct, "text/plain"):
		return string(body), nil
	case strings.Contains(ct, "application/pdf"):
		return textFromPDF(body)
	default:
		return "", ErrUnsupportedTranscript
	}
}

func isDocumentHref(href string) bool {
	u, err := url.Parse(href)
	if err != nil {
		return hasDocumentExt(href)
	}
	return hasDocumentExt(u.Path)
}

func hasDocumentExt(p string) bool {
	switch strings.ToLower(path.Ext(p)) {
	case ".pdf", ".txt":
		return true
	default:
		return false
	}
}

func urlPath(raw string) string {
	u, err := url.Parse(raw)
	if err != nil {
		return raw
	}
	return u.Path
}

func textFromPDF(data []byte) (string, error) {
	if len(data) == 0 {
		return "", errors.New("empty pdf bytes")
	}

	r := bytes.NewReader(data)
	doc, err := pdf.NewReader(r, int64(len(data)))
	if err != nil {
		return "", fmt.Errorf("open pdf: %w", err)
	}

	textReader, err := doc.GetPlainText()
	if err != nil {
		return "", fmt.Errorf("extract pdf text: %w", err)
	}

	var buf bytes.Buffer
	if _, err := io.Copy(&buf, textReader); err != nil {
		return "", fmt.Errorf("read pdf text: %w", err)
	}
	return buf.String(), nil
}
