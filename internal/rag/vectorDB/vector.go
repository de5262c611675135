package vectorDB

import (
	"context"
	"math"
	"sort"
	"time"

	"github.com/akolanti/DocuSense/internal/domain/docModel"
)

// Index is a built, read-only similarity index for one document identity.
type Index interface {
	Key() string
	BuiltAt() time.Time
	Size() int
	Search(ctx context.Context, vector []float32, k int) ([]docModel.ScoredChunk, error)
}

// IndexStore persists indexes keyed by identity. Save replaces whatever was
// stored for the identity; Load on a damaged index returns IndexLoadFailed.
type IndexStore interface {
	Exists(ctx context.Context, identity docModel.DocumentIdentity) (bool, error)
	Load(ctx context.Context, identity docModel.DocumentIdentity) (Index, error)
	Save(ctx context.Context, identity docModel.DocumentIdentity, chunks []docModel.Chunk, vectors [][]float32) (Index, error)
	Drop(ctx context.Context, identity docModel.DocumentIdentity) error
}

// MemoryIndex is a brute-force cosine index over chunks held in memory.
type MemoryIndex struct {
	key     string
	builtAt time.Time
	chunks  []docModel.Chunk
	vectors [][]float32
	norms   []float64
}

func NewMemoryIndex(key string, builtAt time.Time, chunks []docModel.Chunk, vectors [][]float32) *MemoryIndex {
	norms := make([]float64, len(vectors))
	for i, v := range vectors {
		norms[i] = norm(v)
	}
	return &MemoryIndex{key: key, builtAt: builtAt, chunks: chunks, vectors: vectors, norms: norms}
}

func (m *MemoryIndex) Key() string        { return m.key }
func (m *MemoryIndex) BuiltAt() time.Time { return m.builtAt }
func (m *MemoryIndex) Size() int          { return len(m.chunks) }

func (m *MemoryIndex) Search(ctx context.Context, vector []float32, k int) ([]docModel.ScoredChunk, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	qn := norm(vector)
	scored := make([]docModel.ScoredChunk, 0, len(m.chunks))
	for i, v := range m.vectors {
		if len(v) != len(vector) {
			continue
		}
		scored = append(scored, docModel.ScoredChunk{Chunk: m.chunks[i], Score: cosine(vector, v, qn, m.norms[i])})
	}
	sort.SliceStable(scored, func(i, j int) bool { return scored[i].Score > scored[j].Score })
	if k > 0 && len(scored) > k {
		scored = scored[:k]
	}
	return scored, nil
}

func norm(v []float32) float64 {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	return math.Sqrt(sum)
}

func cosine(a []float32, b []float32, na float64, nb float64) float32 {
	if na == 0 || nb == 0 {
		return 0
	}
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return float32(dot / (na * nb))
}
