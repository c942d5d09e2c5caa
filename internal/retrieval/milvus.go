package retrieval

import (
	"context"
	"fmt"
	"strconv"
	"strings"

	"github.com/milvus-io/milvus-sdk-go/v2/client"
	"github.com/milvus-io/milvus-sdk-go/v2/entity"
	"github.com/yoockh/yoolisten/internal/providers/embedding"
)

type MilvusConfig struct {
	Addr       string
	Username   string
	Password   string
	APIKey     string
	Collection string
	// Dim must match the embedding model's vector length.
	Dim int
}

type MilvusBuilder struct {
	mc   client.Client
	coll string
	dim  int
	emb  embedding.Embedder
}

// NewMilvusBuilder connects, creates the collection and its HNSW/COSINE
// index when missing, and loads it.
func NewMilvusBuilder(ctx context.Context, cfg MilvusConfig, emb embedding.Embedder) (*MilvusBuilder, error) {
	mc, err := client.NewClient(ctx, client.Config{
		Address:  cfg.Addr,
		Username: cfg.Username,
		Password: cfg.Password,
		APIKey:   cfg.APIKey,
	})
	if err != nil {
		return nil, fmt.Errorf("connect milvus: %w", err)
	}
	if cfg.Dim <= 0 {
		cfg.Dim = 1536
	}
	if cfg.Collection == "" {
		cfg.Collection = "transcript_chunks"
	}

	b := &MilvusBuilder{mc: mc, coll: cfg.Collection, dim: cfg.Dim, emb: emb}
	if err := b.ensureCollection(ctx); err != nil {
		_ = mc.Close()
		return nil, err
	}
	return b, nil
}

func (b *MilvusBuilder) Close() error { return b.mc.Close() }

func (b *MilvusBuilder) ensureCollection(ctx context.Context) error {
	has, err := b.mc.HasCollection(ctx, b.coll)
	if err != nil {
		return err
	}
	if !has {
		schema := entity.NewSchema().WithName(b.coll)
		schema.WithField(entity.NewField().WithName("id").WithIsAutoID(true).WithIsPrimaryKey(true).WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("namespace").WithDataType(entity.FieldTypeVarChar).WithMaxLength(256))
		schema.WithField(entity.NewField().WithName("position").WithDataType(entity.FieldTypeInt64))
		schema.WithField(entity.NewField().WithName("text").WithDataType(entity.FieldTypeVarChar).WithMaxLength(4096))
		schema.WithField(entity.NewField().WithName("vector").WithDataType(entity.FieldTypeFloatVector).WithDim(int64(b.dim)))

		if err := b.mc.CreateCollection(ctx, schema, int32(2)); err != nil {
			return fmt.Errorf("create collection: %w", err)
		}
	} else if err := b.checkDim(ctx); err != nil {
		return err
	}

	idx, err := entity.NewIndexHNSW(entity.COSINE, 8, 200)
	if err != nil {
		return fmt.Errorf("new hnsw index: %w", err)
	}
	if err := b.mc.CreateIndex(ctx, b.coll, "vector", idx, false, client.WithIndexName("idx_vector")); err != nil {
		return fmt.Errorf("create index: %w", err)
	}
	if err := b.mc.LoadCollection(ctx, b.coll, false); err != nil {
		return fmt.Errorf("load collection: %w", err)
	}
	return nil
}

// checkDim refuses an existing collection whose vector field was created for
// a different embedding size.
func (b *MilvusBuilder) checkDim(ctx context.Context) error {
	coll, err := b.mc.DescribeCollection(ctx, b.coll)
	if err != nil {
		return fmt.Errorf("describe collection: %w", err)
	}
	if coll.Schema == nil {
		return nil
	}
	for _, f := range coll.Schema.Fields {
		if f.Name != "vector" {
			continue
		}
		dim, err := strconv.Atoi(f.TypeParams[entity.TypeParamDim])
		if err != nil {
			return fmt.Errorf("collection %s: unreadable vector dim: %w", b.coll, err)
		}
		if dim != b.dim {
			return fmt.Errorf("collection %s has dim %d, embeddings have %d", b.coll, dim, b.dim)
		}
	}
	return nil
}

func (b *MilvusBuilder) Build(ctx context.Context, namespace, transcript string) (Index, error) {
	chunks, vecs, err := embedChunks(ctx, b.emb, transcript)
	if err != nil {
		return nil, err
	}

	idx := &milvusIndex{b: b, namespace: namespace}
	if len(chunks) == 0 {
		return idx, nil
	}

	namespaces := make([]string, len(chunks))
	positions := make([]int64, len(chunks))
	for i := range chunks {
		if len(vecs[i]) != b.dim {
			return nil, fmt.Errorf("milvus insert: embedding has %d dims, collection expects %d", len(vecs[i]), b.dim)
		}
		namespaces[i] = namespace
		positions[i] = int64(i)
	}
	_, err = b.mc.Insert(ctx, b.coll, "",
		entity.NewColumnVarChar("namespace", namespaces),
		entity.NewColumnInt64("position", positions),
		entity.NewColumnVarChar("text", chunks),
		entity.NewColumnFloatVector("vector", b.dim, vecs),
	)
	if err != nil {
		return nil, fmt.Errorf("milvus insert: %w", err)
	}
	return idx, nil
}

type milvusIndex struct {
	b         *MilvusBuilder
	namespace string
}

func (m *milvusIndex) filter() string {
	return fmt.Sprintf("namespace == \"%s\"", strings.ReplaceAll(m.namespace, "\"", "\\\""))
}

func (m *milvusIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	q, err := embedQuery(ctx, m.b.emb, query)
	if err != nil {
		return nil, err
	}

	sp, err := entity.NewIndexHNSWSearchParam(64)
	if err != nil {
		return nil, err
	}
	res, err := m.b.mc.Search(ctx, m.b.coll, []string{}, m.filter(), []string{"text"},
		[]entity.Vector{entity.FloatVector(q)}, "vector", entity.COSINE, k, sp,
		client.WithSearchQueryConsistencyLevel(entity.ClStrong))
	if err != nil {
		return nil, fmt.Errorf("milvus search: %w", err)
	}

	var out []string
	for _, r := range res {
		for _, c := range r.Fields {
			col, ok := c.(*entity.ColumnVarChar)
			if !ok || col.Name() != "text" {
				continue
			}
			data := col.Data()
			for i := 0; i < r.ResultCount && i < len(data); i++ {
				out = append(out, data[i])
			}
		}
	}
	if len(out) > k {
		out = out[:k]
	}
	return out, nil
}

func (m *milvusIndex) Release(ctx context.Context) error {
	return m.b.mc.Delete(ctx, m.b.coll, "", m.filter())
}
