package manifest

import (
	"context"
	"fmt"
	"log"
)

// Migrate copies all manifest entries from src into dst, skipping keys dst
// already has. Used to move a manifest between backends (e.g. file to SQL)
// without losing fetch history. Returns the number of entries copied.
func Migrate(ctx context.Context, src, dst Store) (int, error) {
	entries, err := src.Snapshot(ctx)
	if err != nil {
		return 0, fmt.Errorf("snapshot source manifest: %w", err)
	}

	copied := 0
	for id, ep := range entries {
		if _, exists, err := dst.Get(ctx, id); err != nil {
			return copied, fmt.Errorf("check %s in destination: %w", id, err)
		} else if exists {
			continue
		}

		if err := dst.Put(ctx, id, ep); err != nil {
			return copied, fmt.Errorf("copy %s: %w", id, err)
		}
		copied++
	}

	log.Printf("Migrate: copied %d of %d manifest entries", copied, len(entries))
	return copied, nil
}
