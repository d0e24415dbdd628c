// Package vault indexes an external markdown folder (an Obsidian vault or any
// plain notes directory) for semantic retrieval. Files are chunked, embedded
// with their path as context, and tracked by modification time so unchanged
// files are never re-embedded.
package vault

import (
	"context"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/gobwas/glob"

	"github.com/kuumin/mimi/pkg/llm"
	"github.com/kuumin/mimi/pkg/logging"
	"github.com/kuumin/mimi/pkg/storage"
)

// Files are flushed to disk in batches so a long first index run survives
// interruption without losing all progress.
const flushEvery = 5

// Chunk is one embedded passage of a vault file. AssistantAuthored is decided
// once at index time from the file's location and signing markers, and stored
// so search never re-derives it.
type Chunk struct {
	Index             int       `json:"chunk_index"`
	Text              string    `json:"text"`
	Embedding         []float64 `json:"embedding"`
	AssistantAuthored bool      `json:"assistant_authored"`
}

// logEntry records when a file was last indexed and at what mtime.
type logEntry struct {
	MTime     int64  `json:"mtime"`
	IndexedAt string `json:"indexed_at"`
}

// Config configures an Indexer.
type Config struct {
	// Path is the vault root directory.
	Path string

	// Include lists glob patterns a file name must match to be indexed.
	Include []string

	// SessionDir is the vault-relative directory whose files are
	// assistant-authored session transcripts.
	SessionDir string

	// SemanticThreshold is the minimum cosine similarity for search hits.
	SemanticThreshold float64

	// MaxChunkChars bounds chunk size; zero uses the default.
	MaxChunkChars int
}

// Indexer owns the vault's vector store and index log and keeps them in sync
// with the files on disk. At most one index run is active at a time; a
// trigger arriving mid-run sets a rerun flag the worker drains before
// exiting, so a change landing during a run is never missed.
type Indexer struct {
	cfg      Config
	include  []glob.Glob
	embedder llm.Embedder
	log      *logging.Logger

	vectorsDoc *storage.Document
	logDoc     *storage.Document

	mu       sync.Mutex
	vectors  map[string][]Chunk
	indexLog map[string]logEntry

	workerMu     sync.Mutex
	indexing     bool
	rerunRequest bool
	rerunForce   bool
}

// NewIndexer loads (or creates) the vault index stored under dataDir. The
// vault path must exist before indexing runs, but not before construction.
func NewIndexer(dataDir string, embedder llm.Embedder, cfg Config, log *logging.Logger) (*Indexer, error) {
	if cfg.MaxChunkChars <= 0 {
		cfg.MaxChunkChars = DefaultMaxChunkChars
	}
	if cfg.SemanticThreshold <= 0 {
		cfg.SemanticThreshold = 0.4
	}
	if len(cfg.Include) == 0 {
		cfg.Include = []string{"*.md"}
	}

	include := make([]glob.Glob, 0, len(cfg.Include))
	for _, pattern := range cfg.Include {
		g, err := glob.Compile(pattern)
		if err != nil {
			return nil, fmt.Errorf("vault: compile include pattern %q: %w", pattern, err)
		}
		include = append(include, g)
	}

	vectorsDoc, err := storage.NewDocument(filepath.Join(dataDir, "vault.vectors.json"))
	if err != nil {
		return nil, err
	}
	logDoc, err := storage.NewDocument(filepath.Join(dataDir, "vault.index.log.json"))
	if err != nil {
		return nil, err
	}

	ix := &Indexer{
		cfg:        cfg,
		include:    include,
		embedder:   embedder,
		log:        log,
		vectorsDoc: vectorsDoc,
		logDoc:     logDoc,
		vectors:    map[string][]Chunk{},
		indexLog:   map[string]logEntry{},
	}
	if err := vectorsDoc.Load(&ix.vectors); err != nil {
		return nil, fmt.Errorf("vault: load vectors: %w", err)
	}
	if err := logDoc.Load(&ix.indexLog); err != nil {
		return nil, fmt.Errorf("vault: load index log: %w", err)
	}
	if ix.vectors == nil {
		ix.vectors = map[string][]Chunk{}
	}
	if ix.indexLog == nil {
		ix.indexLog = map[string]logEntry{}
	}
	return ix, nil
}

// Trigger requests an index run without blocking. When a run is already
// active the request is coalesced into a rerun after the current run
// finishes; force requests are sticky across the coalesce.
func (ix *Indexer) Trigger(ctx context.Context, force bool) {
	ix.workerMu.Lock()
	defer ix.workerMu.Unlock()

	if ix.indexing {
		ix.rerunRequest = true
		ix.rerunForce = ix.rerunForce || force
		return
	}
	ix.indexing = true
	go ix.worker(ctx, force)
}

// worker runs index passes until no rerun is pending.
func (ix *Indexer) worker(ctx context.Context, force bool) {
	for {
		if _, err := ix.RunOnce(ctx, force); err != nil && ix.log != nil {
			ix.log.Errorf("vault index run failed: %v", err)
		}

		ix.workerMu.Lock()
		if !ix.rerunRequest {
			ix.indexing = false
			ix.workerMu.Unlock()
			return
		}
		force = ix.rerunForce
		ix.rerunRequest = false
		ix.rerunForce = false
		ix.workerMu.Unlock()
	}
}

// RunOnce synchronously indexes every new or modified vault file and returns
// how many files were (re)indexed. With force set, every file is reindexed
// regardless of mtime. Per-file failures are logged and skipped.
func (ix *Indexer) RunOnce(ctx context.Context, force bool) (int, error) {
	if ix.cfg.Path == "" {
		return 0, nil
	}

	files, err := ix.vaultFiles()
	if err != nil {
		return 0, err
	}

	updated := 0
	for _, f := range files {
		if err := ctx.Err(); err != nil {
			return updated, err
		}

		changed, err := ix.indexFile(ctx, f.relPath, f.absPath, f.mtime, force)
		if err != nil {
			if ix.log != nil {
				ix.log.Warnf("vault: index %s failed: %v", f.relPath, err)
			}
			continue
		}
		if !changed {
			continue
		}
		updated++
		if updated%flushEvery == 0 {
			if err := ix.flush(); err != nil {
				return updated, err
			}
		}
	}

	if updated > 0 {
		if err := ix.flush(); err != nil {
			return updated, err
		}
		if ix.log != nil {
			ix.log.Infof("vault: indexed %d new/updated files, %d tracked", updated, ix.trackedCount())
		}
	}
	return updated, nil
}

type vaultFile struct {
	relPath string
	absPath string
	mtime   int64
}

// vaultFiles walks the vault collecting eligible files, skipping hidden
// directories and files.
func (ix *Indexer) vaultFiles() ([]vaultFile, error) {
	var files []vaultFile
	err := filepath.WalkDir(ix.cfg.Path, func(path string, d fs.DirEntry, err error) error {
		if err != nil {
			return err
		}
		name := d.Name()
		if d.IsDir() {
			if strings.HasPrefix(name, ".") && path != ix.cfg.Path {
				return filepath.SkipDir
			}
			return nil
		}
		if strings.HasPrefix(name, ".") || !ix.included(name) {
			return nil
		}

		info, err := d.Info()
		if err != nil {
			return nil
		}
		rel, err := filepath.Rel(ix.cfg.Path, path)
		if err != nil {
			return nil
		}
		files = append(files, vaultFile{
			relPath: filepath.ToSlash(rel),
			absPath: path,
			mtime:   info.ModTime().UnixNano(),
		})
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("vault: walk %s: %w", ix.cfg.Path, err)
	}
	return files, nil
}

func (ix *Indexer) included(name string) bool {
	for _, g := range ix.include {
		if g.Match(name) {
			return true
		}
	}
	return false
}

// indexFile chunks and embeds one file if its mtime changed. It reports
// whether any work was done.
func (ix *Indexer) indexFile(ctx context.Context, relPath, absPath string, mtime int64, force bool) (bool, error) {
	ix.mu.Lock()
	entry, known := ix.indexLog[relPath]
	ix.mu.Unlock()
	if !force && known && entry.MTime == mtime {
		return false, nil
	}

	raw, err := os.ReadFile(absPath)
	if err != nil {
		return false, err
	}
	content := string(raw)

	// Empty files still get a log entry so they are not rescanned forever,
	// and any stale vectors for them are dropped.
	if strings.TrimSpace(content) == "" {
		ix.mu.Lock()
		delete(ix.vectors, relPath)
		ix.indexLog[relPath] = logEntry{MTime: mtime, IndexedAt: time.Now().Format("2006-01-02 15:04")}
		ix.mu.Unlock()
		return true, nil
	}

	authored := ix.assistantAuthored(relPath, content)

	var chunks []Chunk
	for i, text := range ChunkText(content, ix.cfg.MaxChunkChars) {
		// Prefix the path so the embedding carries document context.
		embedding, err := ix.embedder.Embed(ctx, fmt.Sprintf("File: %s\nContent: %s", relPath, text))
		if err != nil {
			return false, err
		}
		chunks = append(chunks, Chunk{
			Index:             i,
			Text:              text,
			Embedding:         embedding,
			AssistantAuthored: authored,
		})
	}

	ix.mu.Lock()
	ix.vectors[relPath] = chunks
	ix.indexLog[relPath] = logEntry{MTime: mtime, IndexedAt: time.Now().Format("2006-01-02 15:04")}
	ix.mu.Unlock()
	return true, nil
}

// assistantAuthored decides whether a vault file was written by the assistant
// rather than the user: session transcripts live under SessionDir, and other
// assistant-exported documents carry an explicit signing marker.
func (ix *Indexer) assistantAuthored(relPath, content string) bool {
	if ix.cfg.SessionDir != "" && strings.HasPrefix(relPath, filepath.ToSlash(ix.cfg.SessionDir)) {
		return true
	}
	return strings.Contains(content, "mimi_signed: true") || strings.Contains(content, "Signed by Mimi")
}

func (ix *Indexer) flush() error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if err := ix.vectorsDoc.Save(ix.vectors); err != nil {
		return fmt.Errorf("vault: save vectors: %w", err)
	}
	if err := ix.logDoc.Save(ix.indexLog); err != nil {
		return fmt.Errorf("vault: save index log: %w", err)
	}
	return nil
}

func (ix *Indexer) trackedCount() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.indexLog)
}
