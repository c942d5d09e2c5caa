package retrieval

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/pgvector/pgvector-go"
	"github.com/yoockh/yoolisten/internal/providers/embedding"
	"gorm.io/datatypes"
	"gorm.io/gorm"
	"gorm.io/gorm/clause"
)

type TranscriptChunk struct {
	ID        string          `gorm:"column:id;type:uuid;primaryKey" json:"id"`
	Namespace string          `gorm:"column:namespace;type:text;index" json:"namespace"`
	Position  int             `gorm:"column:position" json:"position"`
	Content   string          `gorm:"column:content;type:text" json:"content"`
	Embedding pgvector.Vector `gorm:"column:embedding;type:vector" json:"embedding"`
	Metadata  datatypes.JSON  `gorm:"column:metadata;type:jsonb" json:"metadata"`
	CreatedAt time.Time       `gorm:"column:created_at;type:timestamptz" json:"created_at"`
}

func (TranscriptChunk) TableName() string { return "transcript_chunks" }

type PgVectorBuilder struct {
	db  *gorm.DB
	emb embedding.Embedder
	dim int
}

// NewPgVectorBuilder migrates the chunk table. The vector extension must
// already exist (config.InitPostgres creates it). dim > 0 rejects vectors
// of any other length before they reach the table.
func NewPgVectorBuilder(db *gorm.DB, emb embedding.Embedder, dim int) (*PgVectorBuilder, error) {
	if err := db.AutoMigrate(&TranscriptChunk{}); err != nil {
		return nil, err
	}
	return &PgVectorBuilder{db: db, emb: emb, dim: dim}, nil
}

func (b *PgVectorBuilder) Build(ctx context.Context, namespace, transcript string) (Index, error) {
	chunks, vecs, err := embedChunks(ctx, b.emb, transcript)
	if err != nil {
		return nil, err
	}

	idx := &pgIndex{db: b.db, emb: b.emb, namespace: namespace}
	if len(chunks) == 0 {
		return idx, nil
	}

	now := time.Now().UTC()
	rows := make([]TranscriptChunk, len(chunks))
	for i, c := range chunks {
		if b.dim > 0 && len(vecs[i]) != b.dim {
			return nil, fmt.Errorf("pgvector insert: embedding has %d dims, expected %d", len(vecs[i]), b.dim)
		}
		meta, _ := json.Marshal(map[string]any{"chars": len([]rune(c)), "chunk_count": len(chunks)})
		rows[i] = TranscriptChunk{
			ID:        uuid.NewString(),
			Namespace: namespace,
			Position:  i,
			Content:   c,
			Embedding: pgvector.NewVector(vecs[i]),
			Metadata:  datatypes.JSON(meta),
			CreatedAt: now,
		}
	}
	if err := b.db.WithContext(ctx).CreateInBatches(rows, 100).Error; err != nil {
		return nil, err
	}
	return idx, nil
}

// searchQuery ranks this namespace's chunks by cosine distance to q.
func (p *pgIndex) searchQuery(tx *gorm.DB, q []float32, k int, dest *[]TranscriptChunk) *gorm.DB {
	return tx.
		Select("content").
		Where("namespace = ?", p.namespace).
		Clauses(clause.OrderBy{
			Expression: clause.Expr{SQL: "embedding <=> ?", Vars: []interface{}{pgvector.NewVector(q)}},
		}).
		Limit(k).
		Find(dest)
}

func (p *pgIndex) releaseQuery(tx *gorm.DB) *gorm.DB {
	return tx.Where("namespace = ?", p.namespace).Delete(&TranscriptChunk{})
}

type pgIndex struct {
	db        *gorm.DB
	emb       embedding.Embedder
	namespace string
}

func (p *pgIndex) Search(ctx context.Context, query string, k int) ([]string, error) {
	if k <= 0 {
		return nil, nil
	}
	q, err := embedQuery(ctx, p.emb, query)
	if err != nil {
		return nil, err
	}

	var rows []TranscriptChunk
	if err := p.searchQuery(p.db.WithContext(ctx), q, k, &rows).Error; err != nil {
		return nil, err
	}

	out := make([]string, 0, len(rows))
	for _, r := range rows {
		out = append(out, r.Content)
	}
	return out, nil
}

func (p *pgIndex) Release(ctx context.Context) error {
	return p.releaseQuery(p.db.WithContext(ctx)).Error
}
