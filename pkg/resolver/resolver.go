// Package resolver decides which raw episode references, discovered on
// different platforms, represent the same real-world episode, and picks one
// canonical identity per group.
package resolver

import (
	"log"
	"strings"

	"podarchive/pkg/domain"
	"podarchive/pkg/manifest"
	"podarchive/pkg/titles"
)

// Options tunes identity resolution.
type Options struct {
	// Threshold is the similarity above which two references are clustered.
	// Zero means 0.5: majority word overlap.
	Threshold float64

	// DecorativeMarker is a title prefix that loses the best-title vote.
	DecorativeMarker string
}

func (o Options) withDefaults() Options {
	if o.Threshold == 0 {
		o.Threshold = 0.5
	}
	if o.DecorativeMarker == "" {
		o.DecorativeMarker = "🧠"
	}
	return o
}

// Resolver groups raw references into canonical episode clusters.
type Resolver struct {
	opts Options
}

// New creates a resolver.
func New(opts Options) *Resolver {
	return &Resolver{opts: opts.withDefaults()}
}

// Resolve clusters the references with single-linkage greedy clustering:
// each unclaimed reference starts a cluster and claims every later
// unclaimed reference whose title similarity exceeds the threshold. O(n²)
// in the reference count, which is bounded by one podcast's episode list.
//
// A reference whose title normalizes to the empty string cannot be compared
// and always forms its own singleton cluster.
func (r *Resolver) Resolve(refs []domain.RawEpisodeRef) []domain.Cluster {
	normalized := make([]string, len(refs))
	for i, ref := range refs {
		normalized[i] = titles.Normalize(ref.Title)
	}

	claimed := make([]bool, len(refs))
	var clusters []domain.Cluster

	for i := range refs {
		if claimed[i] {
			continue
		}
		claimed[i] = true
		members := []domain.RawEpisodeRef{refs[i]}

		if normalized[i] != "" {
			for j := i + 1; j < len(refs); j++ {
				if claimed[j] || normalized[j] == "" {
					continue
				}
				if titles.Score(normalized[i], normalized[j]) > r.opts.Threshold {
					members = append(members, refs[j])
					claimed[j] = true
				}
			}
		}

		cluster := domain.Cluster{
			CanonicalID: canonicalID(members),
			Members:     members,
		}
		clusters = append(clusters, cluster)

		if len(members) > 1 {
			log.Printf("Resolver: clustered %d references under %s (%q)",
				len(members), cluster.CanonicalID, refs[i].Title)
		}
	}

	return clusters
}

// Seed computes the initial manifest delta for a cluster: flags are the OR
// of what the manifest already knows about any member id, the title is the
// best display title across members, and last-updated is the max across
// already-known entries.
func (r *Resolver) Seed(c domain.Cluster, known map[string]manifest.Episode) manifest.Delta {
	delta := manifest.Delta{Title: r.bestTitle(c.Members)}

	for _, m := range c.Members {
		ep, ok := known[m.ExternalID]
		if !ok {
			continue
		}
		delta.HasDescription = delta.HasDescription || ep.HasDescription
		delta.HasTranscript = delta.HasTranscript || ep.HasTranscript
		if ep.LastUpdated.After(delta.LastUpdated) {
			delta.LastUpdated = ep.LastUpdated
		}
	}

	return delta
}

// canonicalID prefers a primary-source member id; these are stable and
// directly reusable for transcript lookup. Otherwise the first member
// encountered wins.
func canonicalID(members []domain.RawEpisodeRef) string {
	for _, m := range members {
		if m.Source.IsPrimary() {
			return m.ExternalID
		}
	}
	return members[0].ExternalID
}

// bestTitle returns the longest member title that does not start with the
// decorative marker, falling back to the first member's title when every
// title carries the marker. Ties keep the earlier-discovered title, so the
// choice is stable for a fixed source ordering.
func (r *Resolver) bestTitle(members []domain.RawEpisodeRef) string {
	best := ""
	for _, m := range members {
		if strings.HasPrefix(m.Title, r.opts.DecorativeMarker) {
			continue
		}
		if len(m.Title) > len(best) {
			best = m.Title
		}
	}
	if best == "" {
		best = members[0].Title
	}
	return best
}
