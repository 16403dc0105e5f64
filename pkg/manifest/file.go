package manifest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"sync"
)

// fileManifest is the on-disk JSON shape. Keys not touched in a run must
// round-trip losslessly through load/merge/save.
type fileManifest struct {
	Episodes map[string]Episode `json:"episodes"`
}

// FileStore persists the manifest as a single JSON file next to the episode
// documents.
type FileStore struct {
	path string

	mu       sync.Mutex
	episodes map[string]Episode
}

// NewFileStore creates a file-backed manifest store at path.
func NewFileStore(path string) *FileStore {
	return &FileStore{path: path}
}

// Load reads the manifest from disk. A missing file starts an empty
// manifest; an unreadable or undecodable file is an error, never silently
// treated as empty.
func (s *FileStore) Load(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		s.episodes = make(map[string]Episode)
		return nil
	}
	if err != nil {
		return fmt.Errorf("read manifest: %w", err)
	}

	var m fileManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptManifest, s.path, err)
	}
	if m.Episodes == nil {
		m.Episodes = make(map[string]Episode)
	}
	s.episodes = m.Episodes
	return nil
}

func (s *FileStore) Get(ctx context.Context, id string) (Episode, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.episodes == nil {
		return Episode{}, false, ErrNotLoaded
	}
	ep, ok := s.episodes[id]
	return ep, ok, nil
}

// Merge is a scoped critical section: reload from disk, apply this
// episode's delta, write back. Reloading first means a delta committed by a
// concurrent task between our Load and now is never lost.
func (s *FileStore) Merge(ctx context.Context, id string, delta Delta) (Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.episodes == nil {
		return Episode{}, ErrNotLoaded
	}
	if err := s.reloadLocked(); err != nil {
		return Episode{}, err
	}

	merged := delta.apply(s.episodes[id])
	s.episodes[id] = merged

	if err := s.writeLocked(); err != nil {
		return Episode{}, err
	}
	return merged, nil
}

func (s *FileStore) Put(ctx context.Context, id string, ep Episode) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.episodes == nil {
		return ErrNotLoaded
	}
	if err := s.reloadLocked(); err != nil {
		return err
	}
	s.episodes[id] = ep
	return s.writeLocked()
}

func (s *FileStore) Delete(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.episodes == nil {
		return ErrNotLoaded
	}
	if err := s.reloadLocked(); err != nil {
		return err
	}
	delete(s.episodes, id)
	return s.writeLocked()
}

func (s *FileStore) Snapshot(ctx context.Context) (map[string]Episode, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.episodes == nil {
		return nil, ErrNotLoaded
	}
	out := make(map[string]Episode, len(s.episodes))
	for id, ep := range s.episodes {
		out[id] = ep
	}
	return out, nil
}

func (s *FileStore) Close(ctx context.Context) error {
	return nil
}

// reloadLocked refreshes the in-memory map from disk. Called with the lock
// held, at the top of every write path.
func (s *FileStore) reloadLocked() error {
	data, err := os.ReadFile(s.path)
	if errors.Is(err, fs.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("reload manifest: %w", err)
	}

	var m fileManifest
	if err := json.Unmarshal(data, &m); err != nil {
		return fmt.Errorf("%w: %s: %v", ErrCorruptManifest, s.path, err)
	}
	if m.Episodes != nil {
		s.episodes = m.Episodes
	}
	return nil
}

// writeLocked writes the manifest via a temp file and rename so a crash
// mid-write never leaves a truncated manifest behind.
func (s *FileStore) writeLocked() error {
	if err := os.MkdirAll(filepath.Dir(s.path), 0o755); err != nil {
		return fmt.Errorf("create manifest dir: %w", err)
	}

	data, err := json.MarshalIndent(fileManifest{Episodes: s.episodes}, "", "  ")
	if err != nil {
		return fmt.Errorf("encode manifest: %w", err)
	}

	tmp := s.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write manifest: %w", err)
	}
	if err := os.Rename(tmp, s.path); err != nil {
		return fmt.Errorf("replace manifest: %w", err)
	}
	return nil
}
