// Package orchestrator drives incremental episode synchronization: it
// decides per canonical episode what still needs fetching, runs bounded
// concurrent fetch tasks against the external platforms, and commits results
// to the manifest and the episode documents.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"
	"time"

	"podarchive/pkg/document"
	"podarchive/pkg/domain"
	"podarchive/pkg/fetch"
	"podarchive/pkg/manifest"
	"podarchive/pkg/resolver"
	"podarchive/pkg/transcript"
)

const (
	defaultConcurrency        = 3
	defaultMinDocumentBytes   = 200
	defaultMinTranscriptChars = 100
	defaultRenderTimeout      = 60 * time.Second
)

// errNothingFetched marks a task where every needed part failed and nothing
// was written.
var errNothingFetched = errors.New("no needed section could be fetched")

// transcriptDocumentFetcher downloads linked transcript files (.pdf/.txt).
type transcriptDocumentFetcher interface {
	FromDocument(ctx context.Context, url string) (string, error)
}

// Config tunes a sync run.
type Config struct {
	// Concurrency bounds how many episode tasks are in active page and
	// network work at once. Each active task holds an expensive browsing
	// context, so this stays in the single digits. Zero means 3.
	Concurrency int

	// Page holds the extraction recipe for the publishing platform's
	// episode pages.
	Page fetch.PageOptions

	// TranscriptToggle is the selector of the transcript panel button on
	// the episode page, clicked before extraction.
	TranscriptToggle string

	// Markers bound the usable transcript text.
	Markers transcript.Markers

	// Languages is the transcript API language preference order.
	// Zero means he, en, iw.
	Languages []string

	// MinDocumentBytes is the size below which an on-disk document counts
	// as a truncated earlier fetch. Zero means 200.
	MinDocumentBytes int64

	// MinTranscriptChars is the length below which native transcript text
	// is implausible. Zero means 100.
	MinTranscriptChars int

	// RenderTimeout bounds one page render. Zero means 60s.
	RenderTimeout time.Duration
}

func (c Config) withDefaults() Config {
	if c.Concurrency <= 0 {
		c.Concurrency = defaultConcurrency
	}
	if len(c.Languages) == 0 {
		c.Languages = []string{"he", "en", "iw"}
	}
	if c.MinDocumentBytes == 0 {
		c.MinDocumentBytes = defaultMinDocumentBytes
	}
	if c.MinTranscriptChars == 0 {
		c.MinTranscriptChars = defaultMinTranscriptChars
	}
	if c.RenderTimeout == 0 {
		c.RenderTimeout = defaultRenderTimeout
	}
	return c
}

// Runner executes sync tasks for resolved episode clusters.
type Runner struct {
	cfg         Config
	store       manifest.Store
	docs        *DocumentStore
	renderer    fetch.Renderer
	transcripts transcript.Client
	files       transcriptDocumentFetcher
	resolver    *resolver.Resolver
}

// New creates a runner. The transcript file fetcher may be nil; linked
// transcript documents are then skipped as a source.
func New(cfg Config, store manifest.Store, docs *DocumentStore, renderer fetch.Renderer,
	transcripts transcript.Client, files transcriptDocumentFetcher, res *resolver.Resolver) *Runner {
	return &Runner{
		cfg:         cfg.withDefaults(),
		store:       store,
		docs:        docs,
		renderer:    renderer,
		transcripts: transcripts,
		files:       files,
		resolver:    res,
	}
}

// Summary is the user-visible result of a run.
type Summary struct {
	Updated int
	Skipped int
	Partial int
	Failed  int

	Results []domain.SyncResult
}

// Run syncs every cluster with a bounded worker pool and returns the
// summary. Episode tasks are independent failure domains: one task's error
// never aborts a sibling or the run.
func (r *Runner) Run(ctx context.Context, clusters []domain.Cluster) (*Summary, error) {
	known, err := r.store.Snapshot(ctx)
	if err != nil {
		return nil, fmt.Errorf("snapshot manifest: %w", err)
	}

	jobs := make(chan domain.Cluster, len(clusters))
	results := make(chan domain.SyncResult, len(clusters))

	var wg sync.WaitGroup
	for w := 0; w < r.cfg.Concurrency; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for c := range jobs {
				results <- r.syncEpisode(ctx, c, known)
			}
		}()
	}

	for _, c := range clusters {
		jobs <- c
	}
	close(jobs)

	wg.Wait()
	close(results)

	summary := &Summary{}
	for res := range results {
		summary.Results = append(summary.Results, res)
		switch res.Outcome {
		case domain.OutcomeUpdated:
			summary.Updated++
		case domain.OutcomeSkipped:
			summary.Skipped++
		case domain.OutcomePartial:
			summary.Partial++
		case domain.OutcomeFailed:
			summary.Failed++
		}
		if res.Err != nil {
			log.Printf("Runner: episode %s %s: %v", res.CanonicalID, res.Outcome, res.Err)
		}
	}

	log.Printf("Runner: run complete: %d updated, %d skipped, %d partial, %d failed",
		summary.Updated, summary.Skipped, summary.Partial, summary.Failed)
	return summary, nil
}

// syncEpisode is the per-episode state machine. Every error is caught here
// and converted to a terminal outcome.
func (r *Runner) syncEpisode(ctx context.Context, c domain.Cluster, known map[string]manifest.Episode) domain.SyncResult {
	id := c.CanonicalID
	fail := func(err error) domain.SyncResult {
		return domain.SyncResult{CanonicalID: id, Outcome: domain.OutcomeFailed, Err: err}
	}

	// Seed the manifest entry from what any member id already recorded, so
	// a cluster re-keyed to a new canonical id inherits its history. A seed
	// that changes nothing is not committed; an up-to-date episode must
	// leave the manifest untouched.
	seed := r.resolver.Seed(c, known)
	cur, ok := known[id]
	if !ok || !seedIsNoOp(seed, cur) {
		var err error
		cur, err = r.store.Merge(ctx, id, seed)
		if err != nil {
			return fail(fmt.Errorf("seed manifest entry: %w", err))
		}
	}

	prior, size, err := r.docs.Read(cur.Title, id)
	if err != nil {
		return fail(err)
	}

	needsDesc, needsTrans := r.needs(cur, prior, size)
	if !needsDesc && !needsTrans {
		return domain.SyncResult{CanonicalID: id, Outcome: domain.OutcomeSkipped}
	}

	page, html := r.renderEpisodePage(ctx, c)

	var description string
	var links []document.Link
	if needsDesc && page != nil {
		description = page.Description
		links = page.Links
		if page.StreamLink != "" {
			links = append(links, document.Link{Label: "Listen on streaming", URL: page.StreamLink})
		}
	}
	gotDesc := description != ""

	var transcriptText string
	if needsTrans {
		transcriptText = r.fetchTranscript(ctx, c, page, html)
	}
	gotTrans := transcriptText != ""

	if (!needsDesc || !gotDesc) && (!needsTrans || !gotTrans) {
		// Nothing obtained this run. Prior state is untouched.
		return fail(errNothingFetched)
	}

	doc := prior
	if doc == nil {
		doc = document.New(document.Meta{})
	}
	doc.Meta.Title = cur.Title
	if published := r.publishedAt(c); published != "" {
		doc.Meta.PublishedAt = published
	}
	if gotDesc {
		doc.Set(document.SectionDescription, description)
		doc.Set(document.SectionLinks, document.RenderLinks(links))
	}
	if gotTrans {
		doc.Set(document.SectionTranscript, transcriptText)
	}

	// Document first, then the manifest delta for this id only. A failed
	// document write leaves the manifest unchanged.
	if err := r.docs.Write(cur.Title, id, doc); err != nil {
		return fail(err)
	}
	if _, err := r.store.Merge(ctx, id, manifest.Delta{
		HasDescription: gotDesc,
		HasTranscript:  gotTrans,
		LastUpdated:    time.Now().UTC(),
	}); err != nil {
		return fail(fmt.Errorf("commit manifest entry: %w", err))
	}

	res := domain.SyncResult{CanonicalID: id, Outcome: domain.OutcomeUpdated}
	if (needsDesc && !gotDesc) || (needsTrans && !gotTrans) {
		res.Outcome = domain.OutcomePartial
		res.MissingDescription = needsDesc && !gotDesc
		res.MissingTranscript = needsTrans && !gotTrans
	}
	return res
}

// seedIsNoOp reports whether merging the delta would leave the episode
// exactly as it is.
func seedIsNoOp(d manifest.Delta, cur manifest.Episode) bool {
	return (d.Title == "" || d.Title == cur.Title) &&
		(!d.HasDescription || cur.HasDescription) &&
		(!d.HasTranscript || cur.HasTranscript) &&
		!d.LastUpdated.After(cur.LastUpdated)
}

// needs applies the fetch decision rules, re-checking the manifest's claims
// against the on-disk document. A document missing a section the manifest
// claims exists, or one below the plausible size, means the earlier fetch
// was truncated and the part is needed again.
func (r *Runner) needs(cur manifest.Episode, prior *document.Document, size int64) (needsDesc, needsTrans bool) {
	needsDesc = !cur.HasDescription
	needsTrans = !cur.HasTranscript

	if cur.HasDescription {
		if prior == nil || !prior.Has(document.SectionDescription) || size < r.cfg.MinDocumentBytes {
			needsDesc = true
		}
	}
	if cur.HasTranscript {
		if prior == nil || !prior.Has(document.SectionTranscript) {
			needsTrans = true
		}
	}
	return needsDesc, needsTrans
}

// renderEpisodePage renders the episode's page on the publishing platform.
// A render failure is a soft failure of the page-derived sources only; the
// transcript API path can still proceed on a known video id.
func (r *Runner) renderEpisodePage(ctx context.Context, c domain.Cluster) (*fetch.EpisodePage, string) {
	link := r.episodePageLink(c)
	if link == "" {
		return nil, ""
	}

	rendered, err := r.renderer.Render(ctx, link, fetch.Instructions{
		WaitSelector:  r.cfg.Page.DescriptionSelector,
		ClickSelector: r.cfg.TranscriptToggle,
		Timeout:       r.cfg.RenderTimeout,
	})
	if err != nil {
		log.Printf("Runner: episode %s: render %s: %v", c.CanonicalID, link, err)
		return nil, ""
	}

	page, err := fetch.ExtractEpisodePage(rendered.HTML, r.cfg.Page)
	if err != nil {
		log.Printf("Runner: episode %s: extract %s: %v", c.CanonicalID, link, err)
		return nil, rendered.HTML
	}
	return page, rendered.HTML
}

// episodePageLink picks the member page worth rendering: the publishing
// platform's post page carries the description, the reference links, and
// usually the video embed, so feed members win.
func (r *Runner) episodePageLink(c domain.Cluster) string {
	for _, m := range c.Members {
		if m.Source == domain.FeedSource && m.Link != "" {
			return m.Link
		}
	}
	for _, m := range c.Members {
		if m.Source == domain.DirectorySource && m.Link != "" {
			return m.Link
		}
	}
	for _, m := range c.Members {
		if m.Link != "" {
			return m.Link
		}
	}
	return ""
}

// fetchTranscript tries the transcript sources in order, stopping at the
// first usable text: the page's native transcript panel, the video
// platform's caption API, then a transcript file linked from the page.
func (r *Runner) fetchTranscript(ctx context.Context, c domain.Cluster, page *fetch.EpisodePage, html string) string {
	if page != nil {
		if text := r.usableTranscript(page.NativeTranscript); text != "" {
			return text
		}
	}

	if videoID := r.videoID(c, page); videoID != "" && r.transcripts != nil {
		raw, err := r.transcripts.Fetch(ctx, videoID, r.cfg.Languages)
		if err != nil {
			log.Printf("Runner: episode %s: caption api: %v", c.CanonicalID, err)
		} else if text := cleanedOrRaw(raw, r.cfg.Markers); text != "" {
			return text
		}
	}

	if r.files != nil && html != "" {
		docURL, err := transcript.FindDocumentURL(html)
		if err == nil {
			text, err := r.files.FromDocument(ctx, docURL)
			if err != nil {
				log.Printf("Runner: episode %s: transcript document %s: %v", c.CanonicalID, docURL, err)
			} else if text = strings.TrimSpace(text); text != "" {
				return text
			}
		}
	}

	return ""
}

// usableTranscript cleans native panel text and applies the plausibility
// threshold. Panels render a stub before the real transcript loads; short
// text means no usable transcript, not a short episode.
func (r *Runner) usableTranscript(native string) string {
	text := cleanedOrRaw(native, r.cfg.Markers)
	if len([]rune(text)) < r.cfg.MinTranscriptChars {
		return ""
	}
	return text
}

// cleanedOrRaw applies marker extraction when markers are configured; a
// payload without the marker pair then yields "", no usable transcript.
// Raw text passes through only when no markers are configured at all.
func cleanedOrRaw(raw string, m transcript.Markers) string {
	if m.Start != "" && m.End != "" {
		return transcript.Clean(raw, m)
	}
	return strings.TrimSpace(raw)
}

// videoID recovers the platform video id: the page embed when present,
// otherwise a primary-source member's external id.
func (r *Runner) videoID(c domain.Cluster, page *fetch.EpisodePage) string {
	if page != nil && page.VideoID != "" {
		return page.VideoID
	}
	if primary, ok := c.Primary(); ok {
		return primary.ExternalID
	}
	return ""
}

// publishedAt picks the first member that knows the publish date.
func (r *Runner) publishedAt(c domain.Cluster) string {
	for _, m := range c.Members {
		if m.PublishedAt != "" {
			return m.PublishedAt
		}
	}
	return ""
}
