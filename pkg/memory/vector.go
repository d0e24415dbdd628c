package memory

import (
	"context"
	"fmt"
	"math"
	"sort"
	"strconv"
	"sync"

	"github.com/kuumin/mimi/pkg/llm"
	"github.com/kuumin/mimi/pkg/storage"
)

// VectorIndex owns the flat id-to-vector mapping used for semantic search
// over session memory. Vectors are produced by an external embedder, never
// inspected by other components, and replaced wholesale when the source text
// changes.
//
// Queries are a brute-force scan. A single user's personal memory never grows
// to a size where an approximate index would pay for its complexity.
type VectorIndex struct {
	mu       sync.Mutex
	doc      *storage.Document
	vectors  map[string][]float64
	embedder llm.Embedder
}

// OpenVectorIndex loads (or creates) the vector document at path.
func OpenVectorIndex(path string, embedder llm.Embedder) (*VectorIndex, error) {
	doc, err := storage.NewDocument(path)
	if err != nil {
		return nil, err
	}
	ix := &VectorIndex{doc: doc, vectors: map[string][]float64{}, embedder: embedder}
	if err := doc.Load(&ix.vectors); err != nil {
		return nil, fmt.Errorf("memory: load vectors: %w", err)
	}
	if ix.vectors == nil {
		ix.vectors = map[string][]float64{}
	}
	return ix, nil
}

// Add embeds text and stores the vector under id, replacing any previous
// vector for that id.
func (ix *VectorIndex) Add(ctx context.Context, id, text string) error {
	vec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return fmt.Errorf("memory: embed %q: %w", id, err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()
	ix.vectors[id] = vec
	return ix.doc.Save(ix.vectors)
}

// Remove drops the vector stored under id, if any.
func (ix *VectorIndex) Remove(id string) error {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	if _, ok := ix.vectors[id]; !ok {
		return nil
	}
	delete(ix.vectors, id)
	return ix.doc.Save(ix.vectors)
}

// Has reports whether a vector is stored under id.
func (ix *VectorIndex) Has(id string) bool {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	_, ok := ix.vectors[id]
	return ok
}

// Len returns the number of stored vectors.
func (ix *VectorIndex) Len() int {
	ix.mu.Lock()
	defer ix.mu.Unlock()
	return len(ix.vectors)
}

// Match is a ranked query hit.
type Match struct {
	ID    string
	Score float64
}

// Query embeds text and returns up to topK stored ids whose vectors score
// strictly above threshold, ranked by descending cosine similarity. An
// embedding failure is returned to the caller, which treats it as "no
// semantic signal available" rather than a hard error.
func (ix *VectorIndex) Query(ctx context.Context, text string, topK int, threshold float64) ([]Match, error) {
	queryVec, err := ix.embedder.Embed(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("memory: embed query: %w", err)
	}

	ix.mu.Lock()
	defer ix.mu.Unlock()

	var matches []Match
	for id, vec := range ix.vectors {
		if sim := CosineSimilarity(queryVec, vec); sim > threshold {
			matches = append(matches, Match{ID: id, Score: sim})
		}
	}
	sort.Slice(matches, func(i, j int) bool {
		if matches[i].Score != matches[j].Score {
			return matches[i].Score > matches[j].Score
		}
		return matches[i].ID < matches[j].ID
	})
	if len(matches) > topK {
		matches = matches[:topK]
	}
	return matches, nil
}

// ReindexMissing embeds every archive item that has no stored vector yet,
// backfilling facts whose embedding failed at commit time. It returns the
// number of vectors added; per-item embedding failures are skipped so one bad
// call does not abort the sweep.
func (ix *VectorIndex) ReindexMissing(ctx context.Context, items []Item) (int, error) {
	added := 0
	for _, it := range items {
		if ctx.Err() != nil {
			return added, ctx.Err()
		}
		id := VectorID(it.ID)
		if ix.Has(id) {
			continue
		}
		if err := ix.Add(ctx, id, it.Content); err != nil {
			continue
		}
		added++
	}
	return added, nil
}

// VectorID converts a memory item id into its vector store key.
func VectorID(id int64) string {
	return strconv.FormatInt(id, 10)
}

// CosineSimilarity returns the cosine of the angle between two vectors. It
// returns 0.0 rather than an error when the vectors differ in length, are
// empty, or have zero magnitude: a zero vector means "no similarity", not an
// undefined one.
func CosineSimilarity(a, b []float64) float64 {
	if len(a) == 0 || len(b) == 0 || len(a) != len(b) {
		return 0.0
	}
	var dot, magA, magB float64
	for i := range a {
		dot += a[i] * b[i]
		magA += a[i] * a[i]
		magB += b[i] * b[i]
	}
	if magA == 0 || magB == 0 {
		return 0.0
	}
	return dot / (math.Sqrt(magA) * math.Sqrt(magB))
}
