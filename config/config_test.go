package config

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_RequiresAPIKey(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "  ")
	_, err := Load()
	assert.Error(t, err)
}

func TestLoad_Defaults(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SESSION_TTL", "")
	t.Setenv("MAX_UPLOAD_BYTES", "")
	t.Setenv("STT_PROVIDER", "")
	t.Setenv("EMBEDDING_MODEL", "")
	t.Setenv("EMBEDDING_DIM", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, "sk-test", cfg.OpenAI.APIKey)
	assert.Equal(t, time.Hour, cfg.Session.TTL)
	assert.EqualValues(t, DefaultMaxUploadBytes, cfg.Upload.MaxBytes)
	assert.Equal(t, "openai", cfg.Providers.STT)
	assert.Equal(t, DefaultAllowedExtensions, cfg.Upload.AllowedExtensions)
	assert.Equal(t, 1536, cfg.OpenAI.EmbeddingDim)
}

func TestLoad_EmbeddingDim(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("EMBEDDING_MODEL", "text-embedding-3-large")
	t.Setenv("EMBEDDING_DIM", "")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 3072, cfg.OpenAI.EmbeddingDim)

	t.Setenv("EMBEDDING_MODEL", "some-local-model")
	t.Setenv("EMBEDDING_DIM", "768")
	cfg, err = Load()
	require.NoError(t, err)
	assert.Equal(t, 768, cfg.OpenAI.EmbeddingDim)
}

func TestLoad_Overrides(t *testing.T) {
	t.Setenv("OPENAI_API_KEY", "sk-test")
	t.Setenv("SESSION_TTL", "90s")
	t.Setenv("MAX_UPLOAD_BYTES", "1024")
	t.Setenv("VECTOR_STORE", "PgVector")
	t.Setenv("CHAT_STREAM_DELAY", "not-a-duration")

	cfg, err := Load()
	require.NoError(t, err)
	assert.Equal(t, 90*time.Second, cfg.Session.TTL)
	assert.EqualValues(t, 1024, cfg.Upload.MaxBytes)
	assert.Equal(t, "pgvector", cfg.Providers.VectorStore)
	assert.Equal(t, 30*time.Millisecond, cfg.Session.ChatStreamDelay)
}

func TestNewOpenAIClient(t *testing.T) {
	assert.NotNil(t, NewOpenAIClient(OpenAIConfig{APIKey: "k", BaseURL: "http://localhost:1/v1"}))
}
