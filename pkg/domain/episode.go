package domain

// SourceKind identifies which distribution platform a raw episode reference
// was discovered on. Downstream code switches on this explicitly instead of
// probing for attribute presence.
type SourceKind string

const (
	// FeedSource is the syndication feed (and its archive API) of the
	// publishing platform.
	FeedSource SourceKind = "feed"

	// VideoSource is the video channel. Video ids are stable and directly
	// reusable for transcript lookup, so this is the primary identity source.
	VideoSource SourceKind = "video"

	// StreamSource is the streaming service listing.
	StreamSource SourceKind = "stream"

	// DirectorySource is the podcast directory listing.
	DirectorySource SourceKind = "directory"
)

// IsPrimary reports whether ids from this source are preferred as canonical
// episode ids.
func (k SourceKind) IsPrimary() bool {
	return k == VideoSource
}

// RawEpisodeRef is one episode as seen by a single discovery source.
// Produced fresh on every discovery call and never persisted directly.
type RawEpisodeRef struct {
	ExternalID  string
	Source      SourceKind
	Title       string
	Link        string
	PublishedAt string
}

// Cluster groups raw references judged to represent the same real-world
// episode, with the identity chosen for it.
type Cluster struct {
	CanonicalID string
	Members     []RawEpisodeRef
}

// Primary returns the first member discovered on a primary identity source,
// or false if the cluster only has fallback-source members.
func (c Cluster) Primary() (RawEpisodeRef, bool) {
	for _, m := range c.Members {
		if m.Source.IsPrimary() {
			return m, true
		}
	}
	return RawEpisodeRef{}, false
}
