package pipeline

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"docqa/internal/models"
)

// Manifest remembers which document fingerprints were indexed so unchanged
// files can be skipped on re-ingest. It lives as a JSON file next to the
// vector store; an empty path keeps it in memory only.
type Manifest struct {
	path string

	mu      sync.Mutex
	entries map[string]manifestEntry
}

type manifestEntry struct {
	Filename    string `json:"filename"`
	Fingerprint string `json:"fingerprint"`
	Chunks      int    `json:"chunks"`
}

func LoadManifest(path string) (*Manifest, error) {
	m := &Manifest{path: path, entries: map[string]manifestEntry{}}
	if path == "" {
		return m, nil
	}
	data, err := os.ReadFile(path)
	if os.IsNotExist(err) {
		return m, nil
	}
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	if err := json.Unmarshal(data, &m.entries); err != nil {
		return nil, fmt.Errorf("parse manifest %s: %w", path, err)
	}
	return m, nil
}

// Fingerprint hashes the full extracted content of a document. Two documents
// with the same id but changed text fingerprint differently, which is what
// forces re-indexing after an edit.
func Fingerprint(doc models.Document) string {
	h := sha256.New()
	fmt.Fprintf(h, "%s\x00", doc.Filename)
	pages := append([]models.PageText(nil), doc.Pages...)
	sort.Slice(pages, func(i, j int) bool { return pages[i].PageNumber < pages[j].PageNumber })
	for _, p := range pages {
		fmt.Fprintf(h, "%d\x00%s\x00", p.PageNumber, p.Text)
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Seen reports whether the document id is already recorded with this exact
// fingerprint, and if so how many chunks it produced last time.
func (m *Manifest) Seen(docID, fingerprint string) (int, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[docID]
	if !ok || e.Fingerprint != fingerprint {
		return 0, false
	}
	return e.Chunks, true
}

func (m *Manifest) Record(docID, filename, fingerprint string, chunks int) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries[docID] = manifestEntry{Filename: filename, Fingerprint: fingerprint, Chunks: chunks}
}

func (m *Manifest) Clear() {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.entries = map[string]manifestEntry{}
}

// Save writes the manifest atomically via a temp file rename.
func (m *Manifest) Save() error {
	if m.path == "" {
		return nil
	}
	m.mu.Lock()
	data, err := json.MarshalIndent(m.entries, "", "  ")
	m.mu.Unlock()
	if err != nil {
		return err
	}
	if dir := filepath.Dir(m.path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return err
		}
	}
	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return err
	}
	return os.Rename(tmp, m.path)
}
