package orchestrator

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"podarchive/pkg/document"
)

// filenameUnsafe are characters stripped from titles before they become
// document filenames.
const filenameUnsafe = `\/*?:"<>|`

// DocumentStore reads and writes episode documents in one output directory,
// one markdown file per canonical episode, named after its display title.
type DocumentStore struct {
	dir string
}

// NewDocumentStore creates a document store rooted at dir.
func NewDocumentStore(dir string) *DocumentStore {
	return &DocumentStore{dir: dir}
}

// FileName maps an episode title to its document filename. The canonical id
// backstops titles that strip down to nothing.
func (s *DocumentStore) FileName(title, canonicalID string) string {
	var b strings.Builder
	for _, r := range title {
		if strings.ContainsRune(filenameUnsafe, r) {
			continue
		}
		b.WriteRune(r)
	}

	name := strings.Join(strings.Fields(b.String()), " ")
	if name == "" {
		name = canonicalID
	}
	return name + ".md"
}

// Path returns the absolute document path for an episode.
func (s *DocumentStore) Path(title, canonicalID string) string {
	return filepath.Join(s.dir, s.FileName(title, canonicalID))
}

// Read loads an episode's document from disk. A missing file returns a nil
// document with size 0, not an error.
func (s *DocumentStore) Read(title, canonicalID string) (*document.Document, int64, error) {
	data, err := os.ReadFile(s.Path(title, canonicalID))
	if os.IsNotExist(err) {
		return nil, 0, nil
	}
	if err != nil {
		return nil, 0, fmt.Errorf("read episode document: %w", err)
	}
	return document.Parse(string(data)), int64(len(data)), nil
}

// Write persists an episode's document via a temp file and rename, so a
// crash mid-write never leaves a truncated document behind.
func (s *DocumentStore) Write(title, canonicalID string, doc *document.Document) error {
	if err := os.MkdirAll(s.dir, 0o755); err != nil {
		return fmt.Errorf("create output dir: %w", err)
	}

	path := s.Path(title, canonicalID)
	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, []byte(doc.Render()), 0o644); err != nil {
		return fmt.Errorf("write episode document: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		return fmt.Errorf("replace episode document: %w", err)
	}
	return nil
}

// Exists reports whether an episode's document is on disk. Pruning uses it
// to drop manifest entries whose backing files are gone.
func (s *DocumentStore) Exists(title, canonicalID string) bool {
	_, err := os.Stat(s.Path(title, canonicalID))
	return err == nil
}
