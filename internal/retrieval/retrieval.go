// Package retrieval chunks a transcript, embeds the chunks and answers
// similarity queries against them. Storage is pluggable: in-process,
// Postgres/pgvector or Milvus.
package retrieval

import (
	"context"
	"fmt"

	"github.com/yoockh/yoolisten/internal/providers/embedding"
)

const (
	ChunkSize    = 500
	ChunkOverlap = 50
)

// Builder produces a searchable index over one transcript. namespace keeps
// the rows of different sessions apart in shared backends.
type Builder interface {
	Build(ctx context.Context, namespace, transcript string) (Index, error)
}

type Index interface {
	// Search returns at most k chunk texts, most similar first.
	Search(ctx context.Context, query string, k int) ([]string, error)
	// Release frees whatever the backend holds for this index.
	Release(ctx context.Context) error
}

// embedChunks splits the transcript and embeds every chunk in one call.
func embedChunks(ctx context.Context, emb embedding.Embedder, transcript string) ([]string, [][]float32, error) {
	chunks := SplitText(transcript, ChunkSize, ChunkOverlap)
	if len(chunks) == 0 {
		return nil, nil, nil
	}
	vecs, err := emb.Embed(ctx, chunks)
	if err != nil {
		return nil, nil, fmt.Errorf("embed chunks: %w", err)
	}
	return chunks, vecs, nil
}

func embedQuery(ctx context.Context, emb embedding.Embedder, query string) ([]float32, error) {
	vecs, err := emb.Embed(ctx, []string{query})
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vecs) == 0 {
		return nil, fmt.Errorf("embed query: no vector returned")
	}
	return vecs[0], nil
}
