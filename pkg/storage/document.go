// Package storage provides the JSON document persistence primitive shared by
// every store in the memory subsystem.
//
// Each on-disk store (memory archive, active store, vectors, notes, diary,
// persona, vault index log) is owned by exactly one Document handle for the
// lifetime of the process. All writes go through that handle, which serializes
// them behind a mutex and persists atomically via a temporary file and rename.
// This is what prevents a foreground commit and a background consolidation
// from interleaving their read-modify-write cycles.
package storage

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// Document is a mutex-guarded JSON document on disk.
type Document struct {
	path string
	mu   sync.Mutex
}

// NewDocument creates a handle for the document at path, creating the parent
// directory if needed. The file itself is created lazily on first Save.
func NewDocument(path string) (*Document, error) {
	if path == "" {
		return nil, fmt.Errorf("storage: empty document path")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o750); err != nil {
		return nil, fmt.Errorf("storage: init directory for %s: %w", path, err)
	}
	return &Document{path: path}, nil
}

// Path returns the on-disk location of the document.
func (d *Document) Path() string {
	return d.path
}

// Load decodes the document into v. A missing file is not an error: v is left
// untouched so callers start from their zero value, per the resource-absence
// policy (empty collections instead of null checks).
func (d *Document) Load(v interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.loadLocked(v)
}

func (d *Document) loadLocked(v interface{}) error {
	b, err := os.ReadFile(d.path)
	if errors.Is(err, os.ErrNotExist) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("storage: read %s: %w", d.path, err)
	}
	if len(b) == 0 {
		return nil
	}
	if err := json.Unmarshal(b, v); err != nil {
		return fmt.Errorf("storage: decode %s: %w", d.path, err)
	}
	return nil
}

// Save encodes v and writes it atomically: the bytes land in a temporary file
// first and replace the document with a rename, so readers never observe a
// partial write.
func (d *Document) Save(v interface{}) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.saveLocked(v)
}

func (d *Document) saveLocked(v interface{}) error {
	b, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("storage: encode %s: %w", d.path, err)
	}
	tmp := d.path + ".tmp"
	if err := os.WriteFile(tmp, b, 0o600); err != nil {
		return fmt.Errorf("storage: write temp file: %w", err)
	}
	if err := os.Rename(tmp, d.path); err != nil {
		_ = os.Remove(tmp) // best-effort cleanup
		return fmt.Errorf("storage: atomic rename %s: %w", d.path, err)
	}
	return nil
}

// Update runs a full read-modify-write cycle under the document lock: the
// current contents are decoded into v, fn mutates v, and the result is written
// back. Returning an error from fn abandons the write.
func (d *Document) Update(v interface{}, fn func() error) error {
	d.mu.Lock()
	defer d.mu.Unlock()

	if err := d.loadLocked(v); err != nil {
		return err
	}
	if err := fn(); err != nil {
		return err
	}
	return d.saveLocked(v)
}
