package main

import (
	"context"
	"errors"
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/sashabaranov/go-openai"
	"github.com/sirupsen/logrus"

	"github.com/yoockh/yoolisten/config"
	"github.com/yoockh/yoolisten/internal/api/handlers"
	"github.com/yoockh/yoolisten/internal/api/middleware"
	"github.com/yoockh/yoolisten/internal/api/routes"
	"github.com/yoockh/yoolisten/internal/cache"
	"github.com/yoockh/yoolisten/internal/logger"
	"github.com/yoockh/yoolisten/internal/providers/embedding"
	"github.com/yoockh/yoolisten/internal/providers/llm"
	"github.com/yoockh/yoolisten/internal/providers/stt"
	"github.com/yoockh/yoolisten/internal/repositories"
	filerepo "github.com/yoockh/yoolisten/internal/repositories/file"
	mongorepo "github.com/yoockh/yoolisten/internal/repositories/mongo"
	"github.com/yoockh/yoolisten/internal/retrieval"
	"github.com/yoockh/yoolisten/internal/services"
	"github.com/yoockh/yoolisten/internal/storage"
	"github.com/yoockh/yoolisten/internal/workers"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config error: %v", err)
	}
	lg := logger.New(cfg.App.LogLevel, cfg.App.LogFile)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	var closers []func() error
	defer func() {
		for i := len(closers) - 1; i >= 0; i-- {
			if err := closers[i](); err != nil {
				lg.WithError(err).Warn("shutdown: close failed")
			}
		}
	}()
	fatal := func(msg string, err error) {
		lg.WithError(err).Error(msg)
		stop()
		for i := len(closers) - 1; i >= 0; i-- {
			_ = closers[i]()
		}
		os.Exit(1)
	}

	oc := config.NewOpenAIClient(cfg.OpenAI)

	// Optional audio archive
	var archive storage.Archiver
	if cfg.Storage.ArchiveBucket != "" {
		gcs, err := storage.NewGCSArchiver(ctx, cfg.Storage.ArchiveBucket)
		if err != nil {
			fatal("GCS init error", err)
		}
		closers = append(closers, gcs.Close)
		archive = gcs
		lg.WithField("bucket", cfg.Storage.ArchiveBucket).Info("audio archive enabled")
	}

	// Speech-to-text
	sttProvider, closeSTT, err := newSTT(ctx, cfg, oc, archive, lg)
	if err != nil {
		fatal("stt init error", err)
	}
	closers = append(closers, closeSTT...)

	// Chat / summary model
	llmProvider, err := newLLM(ctx, cfg, oc)
	if err != nil {
		fatal("llm init error", err)
	}
	closers = append(closers, llmProvider.Close)

	// Retrieval
	emb := embedding.NewOpenAI(oc, cfg.OpenAI.EmbeddingModel)
	builder, closeBuilder, err := newRetrievalBuilder(ctx, cfg, emb)
	if err != nil {
		fatal("vector store init error", err)
	}
	if closeBuilder != nil {
		closers = append(closers, closeBuilder)
	}

	// History
	historyRepo, closeHistory, err := newHistoryRepo(cfg, lg)
	if err != nil {
		fatal("history backend init error", err)
	}
	if closeHistory != nil {
		closers = append(closers, closeHistory)
	}

	// Optional transcript cache
	var tc cache.TranscriptCache
	if cfg.Storage.RedisURL != "" {
		rdb, err := config.InitRedis(cfg.Storage.RedisURL)
		if err != nil {
			fatal("Redis init error", err)
		}
		closers = append(closers, rdb.Close)
		tc = cache.NewRedisCache(rdb, cache.TranscriptTTL)
		lg.Info("Redis connected, transcript cache enabled")
	}

	// Services
	sessions := services.NewSessionStore(builder, cfg.Session.TTL, cfg.Session.SweepInterval, lg)
	historySvc := services.NewHistoryService(historyRepo, sessions, lg)
	chatSvc := services.NewChatService(sessions, historySvc, llmProvider, cfg.Session.ChatStreamDelay, lg)
	uploadSvc := services.NewTranscriptionService(sttProvider, llmProvider, sessions, historySvc, tc, archive,
		services.TranscriptionConfig{
			AllowedExtensions: cfg.Upload.AllowedExtensions,
			MaxBytes:          cfg.Upload.MaxBytes,
			SummaryDelay:      cfg.Session.SummaryStreamDelay,
		}, lg)

	// Workers
	sweeper := &workers.SessionSweeper{Sessions: sessions, Interval: cfg.Session.SweepInterval, Logger: lg}
	if err := sweeper.Start(ctx); err != nil {
		fatal("session sweeper start error", err)
	}

	// HTTP
	if cfg.App.LogLevel != "debug" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()
	r.Use(gin.Recovery(), middleware.RequestLogger(lg))
	r.MaxMultipartMemory = cfg.Upload.MaxBytes + 1<<20

	routes.RegisterRoutes(r, routes.Deps{
		Process:            handlers.NewProcessHandler(uploadSvc, cfg.Upload.MaxBytes),
		Chat:               handlers.NewChatHandler(chatSvc),
		Session:            handlers.NewSessionHandler(sessions),
		History:            handlers.NewHistoryHandler(historySvc),
		WS:                 handlers.NewWSHandler(sessions, chatSvc, lg),
		DebugJWTSecret:     cfg.App.DebugJWTSecret,
		CorsAllowedOrigins: cfg.App.CorsAllowedOrigins,
	})

	srv := &http.Server{
		Addr:              ":" + cfg.App.Port,
		Handler:           r,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		lg.WithFields(logrus.Fields{
			"port":         cfg.App.Port,
			"stt":          cfg.Providers.STT,
			"llm":          cfg.Providers.LLM,
			"vector_store": cfg.Providers.VectorStore,
			"history":      cfg.Providers.History,
		}).Info("server listening")
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			lg.WithError(err).Error("server error")
			stop()
		}
	}()

	<-ctx.Done()
	lg.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		lg.WithError(err).Warn("graceful shutdown failed")
	}
	<-sweeper.Done()
}

// newSTT may narrow cfg.Upload to what the chosen backend can decode.
func newSTT(ctx context.Context, cfg *config.Config, oc *openai.Client, archive storage.Archiver, lg *logrus.Logger) (stt.Provider, []func() error, error) {
	switch cfg.Providers.STT {
	case "openai", "whisper":
		p := stt.NewWhisper(oc, cfg.OpenAI.TranscriptionModel, cfg.Upload.TempDir)
		return p, []func() error{p.Close}, nil
	case "google":
		var closers []func() error
		staging := archive
		if cfg.Google.STTStagingBucket != "" {
			gcs, err := storage.NewGCSArchiver(ctx, cfg.Google.STTStagingBucket)
			if err != nil {
				return nil, nil, err
			}
			closers = append(closers, gcs.Close)
			staging = gcs
		}
		p, err := stt.NewGoogleSpeech(ctx, cfg.Google.STTLanguage, staging)
		if err != nil {
			for _, c := range closers {
				_ = c()
			}
			return nil, nil, err
		}
		closers = append(closers, p.Close)

		cfg.Upload.AllowedExtensions, cfg.Upload.MaxBytes = p.UploadLimits(cfg.Upload.AllowedExtensions, cfg.Upload.MaxBytes)
		lg.WithFields(logrus.Fields{
			"allowed_extensions": cfg.Upload.AllowedExtensions,
			"max_bytes":          cfg.Upload.MaxBytes,
			"staging":            staging != nil,
		}).Info("google speech upload policy")
		return p, closers, nil
	default:
		return nil, nil, fmt.Errorf("unknown STT_PROVIDER %q", cfg.Providers.STT)
	}
}

func newLLM(ctx context.Context, cfg *config.Config, oc *openai.Client) (llm.Provider, error) {
	switch cfg.Providers.LLM {
	case "openai":
		return llm.NewOpenAI(oc, cfg.OpenAI.ChatModel), nil
	case "vertex":
		if cfg.Google.ProjectID == "" {
			return nil, errors.New("GCP_PROJECT_ID is required for LLM_PROVIDER=vertex")
		}
		return llm.NewVertexGemini(ctx, cfg.Google.ProjectID, cfg.Google.Location, cfg.Google.VertexModel)
	default:
		return nil, fmt.Errorf("unknown LLM_PROVIDER %q", cfg.Providers.LLM)
	}
}

func newRetrievalBuilder(ctx context.Context, cfg *config.Config, emb embedding.Embedder) (retrieval.Builder, func() error, error) {
	switch cfg.Providers.VectorStore {
	case "memory":
		return retrieval.NewMemoryBuilder(emb), nil, nil
	case "pgvector":
		db, err := config.InitPostgres(cfg.Storage.PostgresURI)
		if err != nil {
			return nil, nil, err
		}
		sqlDB, err := db.DB()
		if err != nil {
			return nil, nil, err
		}
		b, err := retrieval.NewPgVectorBuilder(db, emb, cfg.OpenAI.EmbeddingDim)
		if err != nil {
			_ = sqlDB.Close()
			return nil, nil, err
		}
		return b, sqlDB.Close, nil
	case "milvus":
		b, err := retrieval.NewMilvusBuilder(ctx, retrieval.MilvusConfig{
			Addr:       cfg.Storage.MilvusAddr,
			Username:   cfg.Storage.MilvusUsername,
			Password:   cfg.Storage.MilvusPassword,
			APIKey:     cfg.Storage.MilvusAPIKey,
			Collection: cfg.Storage.MilvusCollection,
			Dim:        cfg.OpenAI.EmbeddingDim,
		}, emb)
		if err != nil {
			return nil, nil, err
		}
		return b, b.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown VECTOR_STORE %q", cfg.Providers.VectorStore)
	}
}

func newHistoryRepo(cfg *config.Config, lg *logrus.Logger) (repositories.HistoryRepository, func() error, error) {
	switch cfg.Providers.History {
	case "file":
		return filerepo.NewHistoryRepo(cfg.Storage.HistoryFile, lg), nil, nil
	case "mongo":
		client, err := config.InitMongo(cfg.Storage.MongoURI)
		if err != nil {
			return nil, nil, err
		}
		disconnect := func() error { return client.Disconnect(context.Background()) }
		db := client.Database(cfg.Storage.MongoDB)
		if err := config.EnsureMongoIndexes(db); err != nil {
			_ = disconnect()
			return nil, nil, err
		}
		lg.WithField("db", cfg.Storage.MongoDB).Info("MongoDB connected")
		return mongorepo.NewHistoryRepo(db), disconnect, nil
	default:
		return nil, nil, fmt.Errorf("unknown HISTORY_BACKEND %q", cfg.Providers.History)
	}
}
