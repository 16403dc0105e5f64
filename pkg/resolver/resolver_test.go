package resolver

import (
	"testing"
	"time"

	"podarchive/pkg/domain"
	"podarchive/pkg/manifest"
)

func TestResolve_CrossPlatformDuplicates(t *testing.T) {
	refs := []domain.RawEpisodeRef{
		{ExternalID: "sb1", Source: domain.DirectorySource, Title: "כשעיצוב פוגש קוד עם חן"},
		{ExternalID: "yt1", Source: domain.VideoSource, Title: "כשעיצוב פוגש קוד"},
	}

	clusters := New(Options{}).Resolve(refs)
	if len(clusters) != 1 {
		t.Fatalf("expected 1 cluster, got %d", len(clusters))
	}
	if clusters[0].CanonicalID != "yt1" {
		t.Errorf("canonical id = %q, want yt1 (primary source wins regardless of order)", clusters[0].CanonicalID)
	}
	if len(clusters[0].Members) != 2 {
		t.Errorf("members = %d, want 2", len(clusters[0].Members))
	}
}

func TestResolve_CanonicalIDStableUnderOrder(t *testing.T) {
	a := domain.RawEpisodeRef{ExternalID: "yt1", Source: domain.VideoSource, Title: "הפרק הראשון שלנו"}
	b := domain.RawEpisodeRef{ExternalID: "feed:1", Source: domain.FeedSource, Title: "הפרק הראשון שלנו ברשת"}

	r := New(Options{})
	for _, refs := range [][]domain.RawEpisodeRef{{a, b}, {b, a}} {
		clusters := r.Resolve(refs)
		if len(clusters) != 1 {
			t.Fatalf("expected 1 cluster, got %d", len(clusters))
		}
		if clusters[0].CanonicalID != "yt1" {
			t.Errorf("canonical id = %q, want yt1", clusters[0].CanonicalID)
		}
	}
}

func TestResolve_BelowThresholdStaysSeparate(t *testing.T) {
	refs := []domain.RawEpisodeRef{
		{ExternalID: "a", Source: domain.FeedSource, Title: "מה יש פה בעצם"},
		{ExternalID: "b", Source: domain.FeedSource, Title: "כשעיצוב פוגש קוד"},
	}

	clusters := New(Options{}).Resolve(refs)
	if len(clusters) != 2 {
		t.Fatalf("expected 2 clusters, got %d", len(clusters))
	}
}

func TestResolve_SingletonClusterIsValid(t *testing.T) {
	refs := []domain.RawEpisodeRef{
		{ExternalID: "only", Source: domain.StreamSource, Title: "episode on one platform"},
	}
	clusters := New(Options{}).Resolve(refs)
	if len(clusters) != 1 || clusters[0].CanonicalID != "only" {
		t.Fatalf("unexpected clusters: %+v", clusters)
	}
}

func TestResolve_EmptyTitleNeverMatches(t *testing.T) {
	refs := []domain.RawEpisodeRef{
		{ExternalID: "e1", Source: domain.FeedSource, Title: "   "},
		{ExternalID: "e2", Source: domain.FeedSource, Title: ""},
		{ExternalID: "e3", Source: domain.FeedSource, Title: "real title"},
	}

	clusters := New(Options{}).Resolve(refs)
	if len(clusters) != 3 {
		t.Fatalf("expected 3 singleton clusters, got %d", len(clusters))
	}
}

func TestSeed_ORsKnownFlagsAcrossMembers(t *testing.T) {
	cluster := domain.Cluster{
		CanonicalID: "yt1",
		Members: []domain.RawEpisodeRef{
			{ExternalID: "yt1", Source: domain.VideoSource, Title: "short"},
			{ExternalID: "feed:9", Source: domain.FeedSource, Title: "a much longer display title"},
		},
	}

	older := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	newer := time.Date(2026, 2, 1, 0, 0, 0, 0, time.UTC)
	known := map[string]manifest.Episode{
		"yt1":    {HasTranscript: true, LastUpdated: older},
		"feed:9": {HasDescription: true, LastUpdated: newer},
	}

	delta := New(Options{}).Seed(cluster, known)
	if !delta.HasDescription || !delta.HasTranscript {
		t.Errorf("flags not OR'd: %+v", delta)
	}
	if !delta.LastUpdated.Equal(newer) {
		t.Errorf("last updated = %v, want %v", delta.LastUpdated, newer)
	}
	if delta.Title != "a much longer display title" {
		t.Errorf("title = %q", delta.Title)
	}
}

func TestSeed_DecoratedTitlesLose(t *testing.T) {
	cluster := domain.Cluster{
		Members: []domain.RawEpisodeRef{
			{ExternalID: "a", Title: "🧠 פרק חדש עם אורח מדהים ומיוחד"},
			{ExternalID: "b", Title: "פרק חדש עם אורח"},
		},
	}

	delta := New(Options{}).Seed(cluster, nil)
	if delta.Title != "פרק חדש עם אורח" {
		t.Errorf("title = %q, want undecorated one", delta.Title)
	}
}

func TestSeed_AllDecoratedFallsBackToFirst(t *testing.T) {
	cluster := domain.Cluster{
		Members: []domain.RawEpisodeRef{
			{ExternalID: "a", Title: "🧠 first"},
			{ExternalID: "b", Title: "🧠 second and longer"},
		},
	}

	delta := New(Options{}).Seed(cluster, nil)
	if delta.Title != "🧠 first" {
		t.Errorf("title = %q, want first member's title", delta.Title)
	}
}
