package orchestrator

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"testing"

	"podarchive/pkg/document"
	"podarchive/pkg/domain"
	"podarchive/pkg/fetch"
	"podarchive/pkg/manifest"
	"podarchive/pkg/resolver"
	"podarchive/pkg/transcript"
)

var testPage = fetch.PageOptions{
	DescriptionSelector: ".available-content",
	TranscriptSelector:  ".transcription-body",
	StreamLinkPrefix:    "https://open.spotify.com/episode/",
}

// countingRenderer serves canned HTML per URL and counts renders.
type countingRenderer struct {
	mu      sync.Mutex
	pages   map[string]string
	renders int
}

func (r *countingRenderer) Render(_ context.Context, url string, _ fetch.Instructions) (*fetch.RenderedDocument, error) {
	r.mu.Lock()
	r.renders++
	r.mu.Unlock()

	html, ok := r.pages[url]
	if !ok {
		return nil, fmt.Errorf("navigation failed: %s", url)
	}
	return &fetch.RenderedDocument{URL: url, HTML: html}, nil
}

func (r *countingRenderer) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.renders
}

// recordingTranscripts returns canned caption text per video id.
type recordingTranscripts struct {
	mu     sync.Mutex
	texts  map[string]string
	calls  []string
	wanted []string
}

func (c *recordingTranscripts) Fetch(_ context.Context, videoID string, languages []string) (string, error) {
	c.mu.Lock()
	c.calls = append(c.calls, videoID)
	c.wanted = languages
	c.mu.Unlock()

	text, ok := c.texts[videoID]
	if !ok {
		return "", transcript.ErrNotFound
	}
	return text, nil
}

func newTestRunner(t *testing.T, r fetch.Renderer, tc transcript.Client) (*Runner, manifest.Store, *DocumentStore) {
	t.Helper()
	dir := t.TempDir()

	store := manifest.NewFileStore(filepath.Join(dir, "manifest.json"))
	if err := store.Load(context.Background()); err != nil {
		t.Fatalf("load manifest: %v", err)
	}
	docs := NewDocumentStore(filepath.Join(dir, "episodes"))

	runner := New(Config{Page: testPage}, store, docs, r, tc, nil, resolver.New(resolver.Options{}))
	return runner, store, docs
}

func episodeHTML(description, nativeTranscript string) string {
	return fmt.Sprintf(`<html><body>
		<div class="available-content">
			<p>%s</p>
			<p>Guest: <a href="https://guest.example">site</a></p>
		</div>
		<div data-component-name="Youtube2ToDOM" data-attrs='{"videoId":"b8d-g3VT9aE"}'></div>
		<div class="transcription-body">%s</div>
	</body></html>`, description, nativeTranscript)
}

func TestRun_FullSyncThenSkip(t *testing.T) {
	longDesc := strings.Repeat("An episode about identity and incremental sync. ", 8)
	longTranscript := strings.Repeat("spoken words from the episode ", 10)

	r := &countingRenderer{pages: map[string]string{
		"https://show.example/p/12": episodeHTML(longDesc, longTranscript),
	}}

	sb := domain.RawEpisodeRef{ExternalID: "substack:post:12", Source: domain.FeedSource,
		Title: "Episode 12: Design", Link: "https://show.example/p/12", PublishedAt: "2025-01-06"}
	yt := domain.RawEpisodeRef{ExternalID: "b8d-g3VT9aE", Source: domain.VideoSource,
		Title: "Episode 12: Design"}

	runner, store, docs := newTestRunner(t, r, &recordingTranscripts{})
	clusters := resolver.New(resolver.Options{}).Resolve([]domain.RawEpisodeRef{sb, yt})
	if len(clusters) != 1 || clusters[0].CanonicalID != "b8d-g3VT9aE" {
		t.Fatalf("clusters = %+v", clusters)
	}

	summary, err := runner.Run(context.Background(), clusters)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 1 || summary.Failed != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	ep, ok, err := store.Get(context.Background(), "b8d-g3VT9aE")
	if err != nil || !ok {
		t.Fatalf("manifest entry missing: ok=%v err=%v", ok, err)
	}
	if !ep.HasDescription || !ep.HasTranscript {
		t.Errorf("flags = %+v", ep)
	}

	doc, size, err := docs.Read(ep.Title, "b8d-g3VT9aE")
	if err != nil || doc == nil {
		t.Fatalf("document missing: %v", err)
	}
	if size < 200 {
		t.Errorf("document size = %d", size)
	}
	if !doc.Has(document.SectionDescription) || !doc.Has(document.SectionLinks) || !doc.Has(document.SectionTranscript) {
		t.Errorf("sections = %v", doc.Sections)
	}
	if doc.Meta.PublishedAt != "2025-01-06" {
		t.Errorf("published = %q", doc.Meta.PublishedAt)
	}

	// Second run: manifest satisfied, document intact, no network activity.
	before := r.count()
	summary, err = runner.Run(context.Background(), clusters)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("second run summary = %+v", summary)
	}
	if r.count() != before {
		t.Errorf("renders = %d, want %d (skip must not touch the network)", r.count(), before)
	}
}

func TestRun_PartialFailureKeepsDescription(t *testing.T) {
	longDesc := strings.Repeat("A long enough description for a plausible document. ", 8)
	// Native panel too short, no caption track, no linked file.
	r := &countingRenderer{pages: map[string]string{
		"https://show.example/p/13": episodeHTML(longDesc, "loading"),
	}}

	sb := domain.RawEpisodeRef{ExternalID: "substack:post:13", Source: domain.FeedSource,
		Title: "Episode 13: Errors", Link: "https://show.example/p/13"}

	runner, store, _ := newTestRunner(t, r, &recordingTranscripts{})
	summary, err := runner.Run(context.Background(), []domain.Cluster{
		{CanonicalID: "substack:post:13", Members: []domain.RawEpisodeRef{sb}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Partial != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	res := summary.Results[0]
	if !res.MissingTranscript || res.MissingDescription {
		t.Errorf("result = %+v", res)
	}

	ep, _, _ := store.Get(context.Background(), "substack:post:13")
	if !ep.HasDescription {
		t.Error("description fetch should be recorded")
	}
	if ep.HasTranscript {
		t.Error("transcript flag must stay false after a failed attempt")
	}
}

func TestRun_FlagsNeverRegress(t *testing.T) {
	// Manifest already records a transcript; this run only refreshes the
	// description and must not erase that record.
	r := &countingRenderer{pages: map[string]string{
		"https://show.example/p/14": episodeHTML(strings.Repeat("description text ", 20), ""),
	}}

	runner, store, docs := newTestRunner(t, r, &recordingTranscripts{})
	seed := manifest.Episode{Title: "Episode 14: State", HasTranscript: true}
	if err := store.Put(context.Background(), "substack:post:14", seed); err != nil {
		t.Fatal(err)
	}
	// The transcript section exists on disk, so only the description is
	// re-fetched.
	prior := document.New(document.Meta{Title: "Episode 14: State"})
	prior.Set(document.SectionTranscript, "kept transcript text")
	if err := docs.Write("Episode 14: State", "substack:post:14", prior); err != nil {
		t.Fatal(err)
	}

	sb := domain.RawEpisodeRef{ExternalID: "substack:post:14", Source: domain.FeedSource,
		Title: "Episode 14: State", Link: "https://show.example/p/14"}
	summary, err := runner.Run(context.Background(), []domain.Cluster{
		{CanonicalID: "substack:post:14", Members: []domain.RawEpisodeRef{sb}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	ep, _, _ := store.Get(context.Background(), "substack:post:14")
	if !ep.HasTranscript || !ep.HasDescription {
		t.Errorf("flags regressed: %+v", ep)
	}

	doc, _, _ := docs.Read("Episode 14: State", "substack:post:14")
	if doc.Get(document.SectionTranscript) != "kept transcript text" {
		t.Errorf("unrefreshed transcript section was not preserved: %q", doc.Get(document.SectionTranscript))
	}
	if !doc.Has(document.SectionDescription) {
		t.Error("description section missing after refresh")
	}
}

func TestRun_TruncatedDocumentTriggersRefetch(t *testing.T) {
	// The manifest claims a description but the on-disk document is a stub.
	r := &countingRenderer{pages: map[string]string{
		"https://show.example/p/15": episodeHTML(strings.Repeat("recovered description ", 20), ""),
	}}

	runner, store, docs := newTestRunner(t, r, &recordingTranscripts{})
	if err := store.Put(context.Background(), "substack:post:15", manifest.Episode{
		Title: "Episode 15: Recovery", HasDescription: true, HasTranscript: true,
	}); err != nil {
		t.Fatal(err)
	}
	stub := document.New(document.Meta{Title: "Episode 15: Recovery"})
	stub.Set(document.SectionDescription, "x")
	stub.Set(document.SectionTranscript, "y")
	if err := docs.Write("Episode 15: Recovery", "substack:post:15", stub); err != nil {
		t.Fatal(err)
	}

	sb := domain.RawEpisodeRef{ExternalID: "substack:post:15", Source: domain.FeedSource,
		Title: "Episode 15: Recovery", Link: "https://show.example/p/15"}
	summary, err := runner.Run(context.Background(), []domain.Cluster{
		{CanonicalID: "substack:post:15", Members: []domain.RawEpisodeRef{sb}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if r.count() == 0 {
		t.Fatal("truncated document should force a re-fetch")
	}
	if summary.Skipped != 0 {
		t.Fatalf("summary = %+v", summary)
	}

	doc, size, _ := docs.Read("Episode 15: Recovery", "substack:post:15")
	if size < 200 {
		t.Errorf("document still truncated: %d bytes", size)
	}
	if !strings.Contains(doc.Get(document.SectionDescription), "recovered description") {
		t.Error("description was not refreshed")
	}
}

func TestRun_UnloadablePageIsFailure(t *testing.T) {
	r := &countingRenderer{pages: map[string]string{}}

	dir := domain.RawEpisodeRef{ExternalID: "https://dir.example/ep/9", Source: domain.DirectorySource,
		Title: "Episode 9: Gone", Link: "https://dir.example/ep/9"}

	runner, _, docs := newTestRunner(t, r, &recordingTranscripts{})
	summary, err := runner.Run(context.Background(), []domain.Cluster{
		{CanonicalID: "https://dir.example/ep/9", Members: []domain.RawEpisodeRef{dir}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Failed != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if docs.Exists("Episode 9: Gone", "https://dir.example/ep/9") {
		t.Error("failed task must not write a document")
	}
}

func TestRun_CaptionAPIFallback(t *testing.T) {
	// Native panel too short; the caption API has the transcript.
	r := &countingRenderer{pages: map[string]string{
		"https://show.example/p/16": episodeHTML(strings.Repeat("description ", 20), "stub"),
	}}
	tc := &recordingTranscripts{texts: map[string]string{
		"b8d-g3VT9aE": strings.Repeat("caption line\n", 20),
	}}

	sb := domain.RawEpisodeRef{ExternalID: "substack:post:16", Source: domain.FeedSource,
		Title: "Episode 16: Captions", Link: "https://show.example/p/16"}

	runner, store, _ := newTestRunner(t, r, tc)
	summary, err := runner.Run(context.Background(), []domain.Cluster{
		{CanonicalID: "substack:post:16", Members: []domain.RawEpisodeRef{sb}},
	})
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != 1 {
		t.Fatalf("summary = %+v", summary)
	}

	if len(tc.calls) != 1 || tc.calls[0] != "b8d-g3VT9aE" {
		t.Errorf("caption api calls = %v (video id comes from the page embed)", tc.calls)
	}
	if want := []string{"he", "en", "iw"}; strings.Join(tc.wanted, ",") != strings.Join(want, ",") {
		t.Errorf("languages = %v, want %v", tc.wanted, want)
	}

	ep, _, _ := store.Get(context.Background(), "substack:post:16")
	if !ep.HasTranscript {
		t.Error("transcript flag not set after caption fallback")
	}
}

func TestRun_ConcurrentMergesLoseNothing(t *testing.T) {
	const n = 12

	pages := make(map[string]string, n)
	var clusters []domain.Cluster
	for i := 0; i < n; i++ {
		link := fmt.Sprintf("https://show.example/p/ep-%02d", i)
		pages[link] = episodeHTML(
			strings.Repeat(fmt.Sprintf("description for episode %d ", i), 10),
			strings.Repeat("spoken words ", 20))
		clusters = append(clusters, domain.Cluster{
			CanonicalID: fmt.Sprintf("substack:post:%d", 100+i),
			Members: []domain.RawEpisodeRef{{
				ExternalID: fmt.Sprintf("substack:post:%d", 100+i),
				Source:     domain.FeedSource,
				Title:      fmt.Sprintf("Episode %d", i),
				Link:       link,
			}},
		})
	}

	runner, store, _ := newTestRunner(t, &countingRenderer{pages: pages}, &recordingTranscripts{})
	summary, err := runner.Run(context.Background(), clusters)
	if err != nil {
		t.Fatalf("Run: %v", err)
	}
	if summary.Updated != n {
		t.Fatalf("summary = %+v, want %d updated", summary, n)
	}

	snap, err := store.Snapshot(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if len(snap) != n {
		t.Fatalf("manifest entries = %d, want %d (concurrent merge lost updates)", len(snap), n)
	}
	for id, ep := range snap {
		if !ep.HasDescription || !ep.HasTranscript {
			t.Errorf("entry %s lost flags: %+v", id, ep)
		}
	}
}

func TestUsableTranscript_MarkerPairRequiredWhenConfigured(t *testing.T) {
	runner := New(Config{
		Markers: transcript.Markers{Start: "START", End: "END"},
	}, nil, nil, nil, nil, nil, resolver.New(resolver.Options{}))

	// Long boilerplate without the marker pair is not a transcript.
	raw := strings.Repeat("panel boilerplate text ", 16)
	if got := runner.usableTranscript(raw); got != "" {
		t.Errorf("markerless payload accepted: %q", got)
	}

	bounded := "noise START " + strings.Repeat("real spoken words ", 12) + "END noise"
	got := runner.usableTranscript(bounded)
	if !strings.Contains(got, "real spoken words") || strings.Contains(got, "noise") {
		t.Errorf("bounded payload mis-extracted: %q", got)
	}
}

func TestUsableTranscript_RawAllowedWithoutMarkers(t *testing.T) {
	runner := New(Config{}, nil, nil, nil, nil, nil, resolver.New(resolver.Options{}))

	raw := strings.Repeat("spoken words ", 20)
	if got := runner.usableTranscript(raw); got == "" {
		t.Error("unconfigured markers must pass plausible raw text through")
	}
}

// mergeCountingStore counts manifest writes.
type mergeCountingStore struct {
	manifest.Store

	mu     sync.Mutex
	merges int
}

func (s *mergeCountingStore) Merge(ctx context.Context, id string, d manifest.Delta) (manifest.Episode, error) {
	s.mu.Lock()
	s.merges++
	s.mu.Unlock()
	return s.Store.Merge(ctx, id, d)
}

func (s *mergeCountingStore) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.merges
}

func TestRun_SkipWritesNothing(t *testing.T) {
	longDesc := strings.Repeat("Description text for a plausible document size. ", 8)
	r := &countingRenderer{pages: map[string]string{
		"https://show.example/p/17": episodeHTML(longDesc, strings.Repeat("spoken words ", 20)),
	}}

	dir := t.TempDir()
	base := manifest.NewFileStore(filepath.Join(dir, "manifest.json"))
	if err := base.Load(context.Background()); err != nil {
		t.Fatal(err)
	}
	store := &mergeCountingStore{Store: base}
	docs := NewDocumentStore(filepath.Join(dir, "episodes"))
	runner := New(Config{Page: testPage}, store, docs, r, &recordingTranscripts{}, nil, resolver.New(resolver.Options{}))

	sb := domain.RawEpisodeRef{ExternalID: "substack:post:17", Source: domain.FeedSource,
		Title: "Episode 17: Quiet", Link: "https://show.example/p/17"}
	clusters := []domain.Cluster{{CanonicalID: "substack:post:17", Members: []domain.RawEpisodeRef{sb}}}

	if _, err := runner.Run(context.Background(), clusters); err != nil {
		t.Fatalf("first Run: %v", err)
	}

	// Up to date now: the second run must not touch the manifest at all.
	before := store.count()
	summary, err := runner.Run(context.Background(), clusters)
	if err != nil {
		t.Fatalf("second Run: %v", err)
	}
	if summary.Skipped != 1 {
		t.Fatalf("summary = %+v", summary)
	}
	if store.count() != before {
		t.Errorf("skipped episode still merged the manifest: %d writes", store.count()-before)
	}
}

func TestDocumentStore_FileName(t *testing.T) {
	s := NewDocumentStore(t.TempDir())

	if got := s.FileName(`Episode 5: a/b?`, "id"); got != "Episode 5 ab.md" {
		t.Errorf("FileName = %q", got)
	}
	if got := s.FileName("", "b8d-g3VT9aE"); got != "b8d-g3VT9aE.md" {
		t.Errorf("empty title FileName = %q", got)
	}
}

func TestDocumentStore_RoundTrip(t *testing.T) {
	s := NewDocumentStore(filepath.Join(t.TempDir(), "episodes"))

	doc := document.New(document.Meta{Title: "Episode 1", PublishedAt: "2025-01-01"})
	doc.Set(document.SectionDescription, "body")
	if err := s.Write("Episode 1", "id1", doc); err != nil {
		t.Fatalf("Write: %v", err)
	}

	got, size, err := s.Read("Episode 1", "id1")
	if err != nil {
		t.Fatalf("Read: %v", err)
	}
	if size == 0 || got.Meta.Title != "Episode 1" || got.Get(document.SectionDescription) != "body" {
		t.Errorf("round trip = %+v size=%d", got, size)
	}

	// Temp files never linger next to the documents.
	entries, _ := os.ReadDir(filepath.Dir(s.Path("Episode 1", "id1")))
	for _, e := range entries {
		if strings.HasSuffix(e.Name(), ".tmp") {
			t.Errorf("leftover temp file %s", e.Name())
		}
	}
}
