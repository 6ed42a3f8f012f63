package symbolcache

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// Compile-time interface assertion.
var _ Mirror = (*FileMirror)(nil)

// FileMirror persists the cache as a flat JSON object keyed by cache key in a
// single file, typically one file per user session. A missing file reads back
// as an empty cache.
type FileMirror struct {
	path string
}

// NewFileMirror creates a mirror writing to path. Parent directories are
// created on first store.
func NewFileMirror(path string) *FileMirror {
	return &FileMirror{path: path}
}

// Load implements [Mirror].
func (m *FileMirror) Load(_ context.Context) (map[string]Entry, error) {
	data, err := os.ReadFile(m.path)
	if errors.Is(err, fs.ErrNotExist) {
		return map[string]Entry{}, nil
	}
	if err != nil {
		return nil, fmt.Errorf("symbolcache: read mirror %q: %w", m.path, err)
	}

	entries := map[string]Entry{}
	if err := json.Unmarshal(data, &entries); err != nil {
		return nil, fmt.Errorf("symbolcache: parse mirror %q: %w", m.path, err)
	}
	return entries, nil
}

// Store implements [Mirror]. The file is replaced atomically so a crash
// mid-write leaves the previous snapshot intact.
func (m *FileMirror) Store(_ context.Context, entries map[string]Entry) error {
	data, err := json.Marshal(entries)
	if err != nil {
		return fmt.Errorf("symbolcache: encode mirror: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(m.path), 0o755); err != nil {
		return fmt.Errorf("symbolcache: create mirror dir: %w", err)
	}

	tmp := m.path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("symbolcache: write mirror: %w", err)
	}
	if err := os.Rename(tmp, m.path); err != nil {
		return fmt.Errorf("symbolcache: replace mirror: %w", err)
	}
	return nil
}
