package manifest

import (
	"context"
	"log"
	"sort"
	"strings"

	"podarchive/pkg/titles"
)

// RepairOptions tunes the explicit duplicate-merge pass.
type RepairOptions struct {
	// Threshold is the similarity above which two entries are merged.
	// Zero means the standard clustering threshold (0.5).
	Threshold float64

	// DecorativeMarker is a prefix that marks a title as decorated; the
	// longest undecorated title wins during a merge.
	DecorativeMarker string

	// IsPrimaryID reports whether a manifest key is a primary-source id.
	// The default treats keys without a source prefix (no ':') as primary,
	// matching how video ids are recorded.
	IsPrimaryID func(id string) bool
}

func (o RepairOptions) withDefaults() RepairOptions {
	if o.Threshold == 0 {
		o.Threshold = 0.5
	}
	if o.DecorativeMarker == "" {
		o.DecorativeMarker = "🧠"
	}
	if o.IsPrimaryID == nil {
		o.IsPrimaryID = func(id string) bool { return !strings.Contains(id, ":") }
	}
	return o
}

// Repair is the explicit merge operation: it re-clusters existing manifest
// entries by title similarity and collapses duplicates onto one key per
// real-world episode. This is the only path allowed to move an episode to a
// different canonical id.
//
// Within a merged group: flags are OR'd, the newest last-updated wins, the
// surviving key is a primary-source id when the group has one, and the
// title is the longest one not starting with the decorative marker.
// Returns the number of entries removed.
func Repair(ctx context.Context, store Store, opts RepairOptions) (int, error) {
	opts = opts.withDefaults()

	episodes, err := store.Snapshot(ctx)
	if err != nil {
		return 0, err
	}

	// Deterministic iteration so repeated repairs converge to the same
	// manifest.
	ids := make([]string, 0, len(episodes))
	for id := range episodes {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	claimed := make(map[string]bool, len(ids))
	removed := 0

	for i, id1 := range ids {
		if claimed[id1] {
			continue
		}
		claimed[id1] = true

		group := []string{id1}
		norm1 := titles.Normalize(episodes[id1].Title)

		for _, id2 := range ids[i+1:] {
			if claimed[id2] {
				continue
			}
			norm2 := titles.Normalize(episodes[id2].Title)
			if norm1 == "" || norm2 == "" {
				continue
			}
			if titles.Score(norm1, norm2) > opts.Threshold {
				group = append(group, id2)
				claimed[id2] = true
			}
		}

		if len(group) == 1 {
			continue
		}

		keep := chooseSurvivor(group, opts.IsPrimaryID)
		merged := mergeGroup(group, episodes, opts.DecorativeMarker)

		log.Printf("Repair: merging %d entries into %s (%q)", len(group), keep, merged.Title)

		if err := store.Put(ctx, keep, merged); err != nil {
			return removed, err
		}
		for _, id := range group {
			if id == keep {
				continue
			}
			if err := store.Delete(ctx, id); err != nil {
				return removed, err
			}
			removed++
		}
	}

	return removed, nil
}

// Prune removes entries whose backing documents no longer exist.
// Returns the removed ids.
func Prune(ctx context.Context, store Store, exists func(id string, ep Episode) bool) ([]string, error) {
	episodes, err := store.Snapshot(ctx)
	if err != nil {
		return nil, err
	}

	var removed []string
	for id, ep := range episodes {
		if exists(id, ep) {
			continue
		}
		if err := store.Delete(ctx, id); err != nil {
			return removed, err
		}
		removed = append(removed, id)
	}

	if len(removed) > 0 {
		log.Printf("Prune: removed %d entries without backing documents", len(removed))
	}
	return removed, nil
}

func chooseSurvivor(group []string, isPrimary func(string) bool) string {
	for _, id := range group {
		if isPrimary(id) {
			return id
		}
	}
	return group[0]
}

func mergeGroup(group []string, episodes map[string]Episode, marker string) Episode {
	merged := episodes[group[0]]

	for _, id := range group[1:] {
		ep := episodes[id]
		merged.HasDescription = merged.HasDescription || ep.HasDescription
		merged.HasTranscript = merged.HasTranscript || ep.HasTranscript
		if ep.LastUpdated.After(merged.LastUpdated) {
			merged.LastUpdated = ep.LastUpdated
		}
	}

	bestTitle := ""
	for _, id := range group {
		t := episodes[id].Title
		if !strings.HasPrefix(t, marker) && len(t) > len(bestTitle) {
			bestTitle = t
		}
	}
	if bestTitle == "" {
		bestTitle = episodes[group[0]].Title
	}
	merged.Title = bestTitle
	return merged
}
