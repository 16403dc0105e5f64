// Package manifest holds the persisted record of what has already been
// fetched for every canonical episode. It is the single source of truth for
// incremental fetch decisions; episode documents are a derived projection.
package manifest

import (
	"context"
	"errors"
	"time"
)

var (
	// ErrCorruptManifest means the persisted manifest exists but cannot be
	// decoded. Starting from empty over a corrupt file would silently
	// re-scrape everything, so this is surfaced instead.
	ErrCorruptManifest = errors.New("manifest exists but cannot be decoded")

	// ErrNotLoaded means a store was used before Load.
	ErrNotLoaded = errors.New("manifest store not loaded")
)

// Episode is the durable state of one canonical episode.
type Episode struct {
	Title          string    `json:"title" bson:"title"`
	HasDescription bool      `json:"has_description" bson:"has_description"`
	HasTranscript  bool      `json:"has_transcript" bson:"has_transcript"`
	LastUpdated    time.Time `json:"last_updated" bson:"last_updated"`
}

// Delta is one episode task's contribution to the manifest. Flags only move
// from false to true through a Delta; regressing a flag requires the
// explicit repair path (Put).
type Delta struct {
	Title          string
	HasDescription bool
	HasTranscript  bool
	LastUpdated    time.Time
}

// apply merges a delta into the current episode state. Flags are OR'd so a
// run that did not re-fetch a part never erases the record of a previous
// fetch; the newest LastUpdated wins.
func (d Delta) apply(cur Episode) Episode {
	if d.Title != "" {
		cur.Title = d.Title
	}
	cur.HasDescription = cur.HasDescription || d.HasDescription
	cur.HasTranscript = cur.HasTranscript || d.HasTranscript
	if d.LastUpdated.After(cur.LastUpdated) {
		cur.LastUpdated = d.LastUpdated
	}
	return cur
}

// Store is a durable mapping from canonical episode id to episode state.
//
// Merge is the only write path sync tasks use. Implementations must make it
// a mutually exclusive reload / apply / write-back critical section so
// concurrent tasks never overwrite each other's committed updates.
type Store interface {
	// Load initializes the store. A missing manifest starts empty; a
	// present but undecodable one returns ErrCorruptManifest.
	Load(ctx context.Context) error

	// Get returns the state for one canonical id.
	Get(ctx context.Context, id string) (Episode, bool, error)

	// Merge commits one episode's delta and returns the merged state.
	Merge(ctx context.Context, id string, delta Delta) (Episode, error)

	// Put replaces an entry wholesale. Reserved for repair and migration;
	// it may regress flags, Merge may not.
	Put(ctx context.Context, id string, ep Episode) error

	// Delete removes an entry. Reserved for repair and pruning.
	Delete(ctx context.Context, id string) error

	// Snapshot returns a copy of all entries.
	Snapshot(ctx context.Context) (map[string]Episode, error)

	Close(ctx context.Context) error
}
