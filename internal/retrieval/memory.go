package retrieval

import (
	"context"
	"math"
	"sort"

	"github.com/yoockh/yoolisten/internal/providers/embedding"
)

// MemoryBuilder keeps chunk vectors in process and ranks them by cosine
// similarity. Indexes die with their session.
type MemoryBuilder struct {
	emb embedding.Embedder
}

func NewMemoryBuilder(emb embedding.Embedder) *MemoryBuilder {
	return &MemoryBuilder{emb: emb}
}

func (b *MemoryBuilder) Build(ctx context.Context, namespace, transcript string) (Index, error) {
	chunks, vecs, err := embedChunks(ctx, b.emb, transcript)
	if err != nil {
		return nil, err
	}
	return &memoryIndex{emb: b.emb, chunks: chunks, vecs: vecs}, nil
}

type memoryIndex struct {
	emb    embedding.Embedder
	chunks []string
	vecs   [][]float32
}

func (m *memoryIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 || len(m.chunks) == 0 {
		return nil, nil
	}
	q, err := embedQuery(ctx, m.emb, query)
	if err != nil {
		return nil, err
	}

	type scored struct {
		pos   int
		score float64
	}
	hits := make([]scored, len(m.vecs))
	for i, v := range m.vecs {
		hits[i] = scored{pos: i, score: cosine(q, v)}
	}
	sort.SliceStable(hits, func(i, j int) bool { return hits[i].score > hits[j].score })

	if k > len(hits) {
		k = len(hits)
	}
	out := make([]string, 0, k)
	for _, h := range hits[:k] {
		out = append(out, m.chunks[h.pos])
	}
	return out, nil
}

func (m *memoryIndex) Release(context.Context) error { return nil }

func cosine(a, b []float32) float64 {
	n := len(a)
	if len(b) < n {
		n = len(b)
	}
	var dot, na, nb float64
	for i := 0; i < n; i++ {
		dot += float64(a[i]) * float64(b[i])
		na += float64(a[i]) * float64(a[i])
		nb += float64(b[i]) * float64(b[i])
	}
	if na == 0 || nb == 0 {
		return 0
	}
	return dot / (math.Sqrt(na) * math.Sqrt(nb))
}
