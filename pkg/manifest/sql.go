package manifest

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"time"

	"podarchive/pkg/db"
)

// SQLStore keeps the manifest in a Postgres table, one row per canonical
// episode. It runs on any db.DBProvider (direct Postgres or Supabase).
type SQLStore struct {
	provider db.DBProvider

	mu sync.Mutex
}

// NewSQLStore creates a SQL-backed manifest store. The provider must be
// connected before Load.
func NewSQLStore(provider db.DBProvider) *SQLStore {
	return &SQLStore{provider: provider}
}

// Load ensures the episode table exists.
func (s *SQLStore) Load(ctx context.Context) error {
	handle := s.provider.DB()
	if handle == nil {
		return fmt.Errorf("sql manifest: database not connected")
	}

	const ddl = `
CREATE TABLE IF NOT EXISTS episode (
  canonical_id TEXT PRIMARY KEY,
  title TEXT NOT NULL DEFAULT '',
  has_description BOOLEAN NOT NULL DEFAULT FALSE,
  has_transcript BOOLEAN NOT NULL DEFAULT FALSE,
  last_updated TIMESTAMPTZ NOT NULL DEFAULT now()
);`

	if _, err := handle.ExecContext(ctx, ddl); err != nil {
		return fmt.Errorf("create episode table: %w", err)
	}
	return nil
}

func (s *SQLStore) Get(ctx context.Context, id string) (Episode, bool, error) {
	handle := s.provider.DB()
	if handle == nil {
		return Episode{}, false, ErrNotLoaded
	}

	const q = `SELECT title, has_description, has_transcript, last_updated FROM episode WHERE canonical_id = $1`

	var ep Episode
	var updated time.Time
	err := handle.QueryRowContext(ctx, q, id).Scan(&ep.Title, &ep.HasDescription, &ep.HasTranscript, &updated)
	if errors.Is(err, sql.ErrNoRows) {
		return Episode{}, false, nil
	}
	if err != nil {
		return Episode{}, false, fmt.Errorf("select episode %s: %w", id, err)
	}
	ep.LastUpdated = updated
	return ep, true, nil
}

func (s *SQLStore) Merge(ctx context.Context, id string, delta Delta) (Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	cur, _, err := s.Get(ctx, id)
	if err != nil {
		return Episode{}, err
	}

	merged := delta.apply(cur)
	if err := s.upsert(ctx, id, merged); err != nil {
		return Episode{}, err
	}
	return merged, nil
}

func (s *SQLStore) Put(ctx context.Context, id string, ep Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.upsert(ctx, id, ep)
}

func (s *SQLStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	handle := s.provider.DB()
	if handle == nil {
		return ErrNotLoaded
	}
	if _, err := handle.ExecContext(ctx, `DELETE FROM episode WHERE canonical_id = $1`, id); err != nil {
		return fmt.Errorf("delete episode %s: %w", id, err)
	}
	return nil
}

func (s *SQLStore) Snapshot(ctx context.Context) (map[string]Episode, error) {
	handle := s.provider.DB()
	if handle == nil {
		return nil, ErrNotLoaded
	}

	const q = `SELECT canonical_id, title, has_description, has_transcript, last_updated FROM episode`
	rows, err := handle.QueryContext(ctx, q)
	if err != nil {
		return nil, fmt.Errorf("list episodes: %w", err)
	}
	defer rows.Close()

	out := make(map[string]Episode)
	for rows.Next() {
		var id string
		var ep Episode
		if err := rows.Scan(&id, &ep.Title, &ep.HasDescription, &ep.HasTranscript, &ep.LastUpdated); err != nil {
			return nil, fmt.Errorf("scan episode: %w", err)
		}
		out[id] = ep
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("rows error: %w", err)
	}
	return out, nil
}

func (s *SQLStore) Close(ctx context.Context) error {
	return nil
}

func (s *SQLStore) upsert(ctx context.Context, id string, ep Episode) error {
	handle := s.provider.DB()
	if handle == nil {
		return ErrNotLoaded
	}

	const q = `
INSERT INTO episode (canonical_id, title, has_description, has_transcript, last_updated)
VALUES ($1, $2, $3, $4, $5)
ON CONFLICT (canonical_id) DO UPDATE SET
  title = EXCLUDED.title,
  has_description = EXCLUDED.has_description,
  has_transcript = EXCLUDED.has_transcript,
  last_updated = EXCLUDED.last_updated`

	if _, err := handle.ExecContext(ctx, q, id, ep.Title, ep.HasDescription, ep.HasTranscript, ep.LastUpdated); err != nil {
		return fmt.Errorf("upsert episode %s: %w", id, err)
	}
	return nil
}
