// Package discovery lists episodes from the distribution platforms that
// mirror the podcast. Each source yields raw references; identity across
// sources is resolved downstream.
package discovery

import (
	"context"
	"log"

	"podarchive/pkg/domain"
)

// Source lists the episodes one platform knows about.
type Source interface {
	// Name identifies the source in logs.
	Name() string

	// Discover returns an ordered sequence of raw episode references.
	Discover(ctx context.Context) ([]domain.RawEpisodeRef, error)
}

// All runs every source and concatenates their references in source order.
// A failing source contributes zero references and is logged; the other
// sources proceed unaffected.
func All(ctx context.Context, sources []Source) []domain.RawEpisodeRef {
	var refs []domain.RawEpisodeRef
	for _, src := range sources {
		found, err := src.Discover(ctx)
		if err != nil {
			log.Printf("discovery: source %s failed: %v", src.Name(), err)
			continue
		}
		log.Printf("discovery: source %s yielded %d references", src.Name(), len(found))
		refs = append(refs, found...)
	}
	return refs
}
