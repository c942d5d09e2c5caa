package retrieval

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// keywordEmbedder maps a text to keyword counts, enough to rank chunks.
type keywordEmbedder struct {
	calls int
	err   error
}

var keywords = []string{"apple", "banana", "cherry"}

func (k *keywordEmbedder) Embed(_ context.Context, texts []string) ([][]float32, error) {
	k.calls++
	if k.err != nil {
		return nil, k.err
	}
	out := make([][]float32, len(texts))
	for i, t := range texts {
		v := make([]float32, len(keywords))
		for j, kw := range keywords {
			v[j] = float32(strings.Count(strings.ToLower(t), kw))
		}
		out[i] = v
	}
	return out, nil
}

func TestMemoryIndex_SearchRanksBySimilarity(t *testing.T) {
	emb := &keywordEmbedder{}
	idx := &memoryIndex{
		emb:    emb,
		chunks: []string{"apple apple", "banana", "cherry cherry banana"},
		vecs:   [][]float32{{2, 0, 0}, {0, 1, 0}, {0, 1, 2}},
	}

	got, err := idx.Search(context.Background(), "cherry banana", 2)
	require.NoError(t, err)
	assert.Equal(t, []string{"cherry cherry banana", "banana"}, got)

	got, err = idx.Search(context.Background(), "apple", 10)
	require.NoError(t, err)
	assert.Len(t, got, 3)
	assert.Equal(t, "apple apple", got[0])
}

func TestMemoryBuilder_BatchesChunkEmbedding(t *testing.T) {
	emb := &keywordEmbedder{}
	b := NewMemoryBuilder(emb)

	text := strings.Repeat("apple pie is sweet ", 40) + strings.Repeat("cherry tart is sour ", 40)
	idx, err := b.Build(context.Background(), "ns", text)
	require.NoError(t, err)
	assert.Equal(t, 1, emb.calls)

	got, err := idx.Search(context.Background(), "cherry", 1)
	require.NoError(t, err)
	require.Len(t, got, 1)
	assert.Contains(t, got[0], "cherry")
	assert.NoError(t, idx.Release(context.Background()))
}

func TestMemoryBuilder_EmbedFailure(t *testing.T) {
	b := NewMemoryBuilder(&keywordEmbedder{err: errors.New("boom")})

	_, err := b.Build(context.Background(), "ns", "some transcript")
	require.Error(t, err)
	assert.Contains(t, err.Error(), "boom")
}

func TestMemoryIndex_EmptyTranscript(t *testing.T) {
	emb := &keywordEmbedder{}
	idx, err := NewMemoryBuilder(emb).Build(context.Background(), "ns", "")
	require.NoError(t, err)

	got, err := idx.Search(context.Background(), "anything", 3)
	require.NoError(t, err)
	assert.Empty(t, got)
	assert.Equal(t, 0, emb.calls)
}
