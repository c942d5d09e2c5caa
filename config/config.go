package config

import (
	"errors"
	"log"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/sashabaranov/go-openai"
)

type Config struct {
	App       AppConfig
	OpenAI    OpenAIConfig
	Google    GoogleConfig
	Providers ProviderConfig
	Storage   StorageConfig
	Session   SessionConfig
	Upload    UploadConfig
}

type AppConfig struct {
	Port               string
	LogLevel           string
	LogFile            string
	CorsAllowedOrigins string
	DebugJWTSecret     string
}

type OpenAIConfig struct {
	APIKey             string
	BaseURL            string
	TranscriptionModel string
	ChatModel          string
	EmbeddingModel     string
	EmbeddingDim       int
}

type GoogleConfig struct {
	ProjectID   string
	Location    string
	VertexModel string
	STTLanguage string
	// STTStagingBucket holds audio passed to Cloud Speech by gs:// URI.
	// Falls back to the archive bucket when empty.
	STTStagingBucket string
}

type ProviderConfig struct {
	STT         string // openai|google
	LLM         string // openai|vertex
	VectorStore string // memory|pgvector|milvus
	History     string // file|mongo
}

type StorageConfig struct {
	HistoryFile      string
	PostgresURI      string
	MongoURI         string
	MongoDB          string
	RedisURL         string
	MilvusAddr       string
	MilvusUsername   string
	MilvusPassword   string
	MilvusAPIKey     string
	MilvusCollection string
	ArchiveBucket    string
}

type SessionConfig struct {
	TTL                time.Duration
	SweepInterval      time.Duration
	ChatStreamDelay    time.Duration
	SummaryStreamDelay time.Duration
}

type UploadConfig struct {
	MaxBytes          int64
	AllowedExtensions []string
	TempDir           string
}

// DefaultAllowedExtensions are the audio containers the transcription API accepts.
var DefaultAllowedExtensions = []string{".mp3", ".wav", ".m4a", ".flac", ".ogg", ".webm"}

const DefaultMaxUploadBytes = 25 << 20

// Load reads .env (if present) and the environment. OPENAI_API_KEY is required.
func Load() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		log.Println("Note: .env file not found, using system environment")
	}

	cfg := &Config{
		App: AppConfig{
			Port:               getEnv("PORT", "8000"),
			LogLevel:           getEnv("LOG_LEVEL", "info"),
			LogFile:            getEnv("LOG_FILE", ""),
			CorsAllowedOrigins: getEnv("CORS_ALLOWED_ORIGINS", "*"),
			DebugJWTSecret:     getEnv("DEBUG_JWT_SECRET", ""),
		},
		OpenAI: OpenAIConfig{
			APIKey:             strings.TrimSpace(os.Getenv("OPENAI_API_KEY")),
			BaseURL:            getEnv("OPENAI_BASE_URL", ""),
			TranscriptionModel: getEnv("TRANSCRIPTION_MODEL", "whisper-1"),
			ChatModel:          getEnv("CHAT_MODEL", "gpt-4o-mini"),
			EmbeddingModel:     getEnv("EMBEDDING_MODEL", "text-embedding-3-small"),
		},
		Google: GoogleConfig{
			ProjectID:   getEnv("GCP_PROJECT_ID", ""),
			Location:    getEnv("GCP_LOCATION", "us-central1"),
			VertexModel: getEnv("VERTEX_MODEL", "gemini-1.5-flash"),
			STTLanguage: getEnv("STT_LANGUAGE", "en-US"),

			STTStagingBucket: getEnv("STT_STAGING_BUCKET", ""),
		},
		Providers: ProviderConfig{
			STT:         strings.ToLower(getEnv("STT_PROVIDER", "openai")),
			LLM:         strings.ToLower(getEnv("LLM_PROVIDER", "openai")),
			VectorStore: strings.ToLower(getEnv("VECTOR_STORE", "memory")),
			History:     strings.ToLower(getEnv("HISTORY_BACKEND", "file")),
		},
		Storage: StorageConfig{
			HistoryFile:      getEnv("HISTORY_FILE", "history.json"),
			PostgresURI:      getEnv("POSTGRES_URI", ""),
			MongoURI:         getEnv("MONGO_URI", ""),
			MongoDB:          getEnv("MONGO_DB", "yoolisten"),
			RedisURL:         getEnv("REDIS_URL", ""),
			MilvusAddr:       getEnv("MILVUS_ADDR", "localhost:19530"),
			MilvusUsername:   getEnv("MILVUS_USERNAME", ""),
			MilvusPassword:   getEnv("MILVUS_PASSWORD", ""),
			MilvusAPIKey:     getEnv("MILVUS_API_KEY", ""),
			MilvusCollection: getEnv("MILVUS_COLLECTION", "transcript_chunks"),
			ArchiveBucket:    getEnv("AUDIO_ARCHIVE_BUCKET", ""),
		},
		Session: SessionConfig{
			TTL:                getEnvAsDuration("SESSION_TTL", time.Hour),
			SweepInterval:      getEnvAsDuration("SESSION_SWEEP_INTERVAL", 10*time.Minute),
			ChatStreamDelay:    getEnvAsDuration("CHAT_STREAM_DELAY", 30*time.Millisecond),
			SummaryStreamDelay: getEnvAsDuration("SUMMARY_STREAM_DELAY", 10*time.Millisecond),
		},
		Upload: UploadConfig{
			MaxBytes:          getEnvAsInt64("MAX_UPLOAD_BYTES", DefaultMaxUploadBytes),
			AllowedExtensions: DefaultAllowedExtensions,
			TempDir:           getEnv("TEMP_DIR", os.TempDir()),
		},
	}

	cfg.OpenAI.EmbeddingDim = int(getEnvAsInt64("EMBEDDING_DIM", int64(EmbeddingDimFor(cfg.OpenAI.EmbeddingModel))))

	if cfg.OpenAI.APIKey == "" {
		return nil, errors.New("OPENAI_API_KEY environment variable is not set (create a .env file)")
	}
	return cfg, nil
}

// EmbeddingDimFor is the vector length of the known OpenAI embedding models.
// Other models need EMBEDDING_DIM.
func EmbeddingDimFor(model string) int {
	switch model {
	case "text-embedding-3-large":
		return 3072
	default:
		return 1536
	}
}

func getEnv(key, fallback string) string {
	if value, exists := os.LookupEnv(key); exists && strings.TrimSpace(value) != "" {
		return strings.TrimSpace(value)
	}
	return fallback
}

func getEnvAsInt64(key string, fallback int64) int64 {
	if v, err := strconv.ParseInt(getEnv(key, ""), 10, 64); err == nil && v > 0 {
		return v
	}
	return fallback
}

func getEnvAsDuration(key string, fallback time.Duration) time.Duration {
	if v, err := time.ParseDuration(getEnv(key, "")); err == nil && v >= 0 {
		return v
	}
	return fallback
}

// NewOpenAIClient builds the client shared by transcription, chat and embeddings.
func NewOpenAIClient(c OpenAIConfig) *openai.Client {
	oc := openai.DefaultConfig(c.APIKey)
	if c.BaseURL != "" {
		oc.BaseURL = c.BaseURL
	}
	return openai.NewClientWithConfig(oc)
}
