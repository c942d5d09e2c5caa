package services

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoolisten/internal/cache"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/providers/llm"
	"github.com/yoockh/yoolisten/internal/providers/stt"
	"github.com/yoockh/yoolisten/internal/storage"
	"github.com/yoockh/yoolisten/internal/streaming"
	"github.com/yoockh/yoolisten/internal/utils"
)

const (
	SummaryTemperature = 0.7
	SummaryMaxTokens   = 1000
)

const summarySystemPrompt = "You are a professional text summarization assistant. " +
	"Summarize the text the user provides concisely and accurately, highlighting the key information and main points."

// Upload is one received audio file.
type Upload struct {
	Filename    string
	ContentType string
	Data        []byte
}

type TranscriptionService interface {
	// Validate checks name and size before any upstream call.
	Validate(filename string, size int64) error
	Transcribe(ctx context.Context, up Upload) (string, error)
	// ProcessWithSummary runs transcription, summary, indexing and recording,
	// reporting progress into sink. A returned error means nothing was
	// written to sink.
	ProcessWithSummary(ctx context.Context, up Upload, sink streaming.Sink) error
}

type TranscriptionConfig struct {
	AllowedExtensions []string
	MaxBytes          int64
	SummaryDelay      time.Duration
}

type transcriptionService struct {
	stt      stt.Provider
	llm      llm.Provider
	sessions SessionStore
	history  HistoryService
	cache    cache.TranscriptCache
	archive  storage.Archiver
	cfg      TranscriptionConfig
	log      *logrus.Logger
}

// NewTranscriptionService wires the upload pipeline. tc and archive may be nil.
func NewTranscriptionService(
	sttProvider stt.Provider,
	llmProvider llm.Provider,
	sessions SessionStore,
	history HistoryService,
	tc cache.TranscriptCache,
	archive storage.Archiver,
	cfg TranscriptionConfig,
	log *logrus.Logger,
) TranscriptionService {
	return &transcriptionService{
		stt:      sttProvider,
		llm:      llmProvider,
		sessions: sessions,
		history:  history,
		cache:    tc,
		archive:  archive,
		cfg:      cfg,
		log:      log,
	}
}

func (s *transcriptionService) Validate(filename string, size int64) error {
	const op = "TranscriptionService.Validate"

	if strings.TrimSpace(filename) == "" {
		return utils.E(utils.CodeInvalidArgument, op, "no filename provided", nil)
	}
	ext := strings.ToLower(filepath.Ext(filename))
	if !utils.AllowedExtension(ext, s.cfg.AllowedExtensions) {
		return utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("unsupported file format %q, allowed: %s", ext, strings.Join(s.cfg.AllowedExtensions, ", ")), nil)
	}
	if s.cfg.MaxBytes > 0 && size > s.cfg.MaxBytes {
		return utils.E(utils.CodeInvalidArgument, op,
			fmt.Sprintf("file exceeds the %dMB limit", s.cfg.MaxBytes>>20), nil)
	}
	return nil
}

func (s *transcriptionService) Transcribe(ctx context.Context, up Upload) (string, error) {
	const op = "TranscriptionService.Transcribe"

	if err := s.Validate(up.Filename, int64(len(up.Data))); err != nil {
		return "", err
	}
	log := s.log.WithFields(logrus.Fields{"filename": up.Filename, "bytes": len(up.Data)})

	if s.cache != nil {
		text, hit, err := s.cache.Lookup(ctx, up.Data)
		if err != nil {
			log.WithError(err).Warn("transcript cache lookup failed")
		} else if hit {
			log.Info("transcript cache hit")
			return text, nil
		}
	}

	start := time.Now()
	text, err := s.stt.Transcribe(ctx, up.Data, up.Filename)
	if err != nil {
		return "", utils.E(utils.CodeUpstream, op, "transcription failed", err)
	}
	log.WithFields(logrus.Fields{
		"chars":       len([]rune(text)),
		"duration_ms": time.Since(start).Milliseconds(),
	}).Info("audio transcribed")

	if s.cache != nil {
		if err := s.cache.Store(ctx, up.Data, text); err != nil {
			log.WithError(err).Warn("transcript cache fill failed")
		}
	}
	s.archiveAudio(up)
	return text, nil
}

// archiveAudio copies the upload to the archive in the background.
func (s *transcriptionService) archiveAudio(up Upload) {
	if s.archive == nil {
		return
	}
	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
		defer cancel()

		name := storage.ObjectName("audio", uuid.NewString(), up.Filename, time.Now())
		path, err := s.archive.Archive(ctx, name, up.ContentType, bytes.NewReader(up.Data))
		if err != nil {
			s.log.WithError(err).WithField("filename", up.Filename).Warn("audio archive failed")
			return
		}
		s.log.WithField("path", path).Debug("audio archived")
	}()
}

func (s *transcriptionService) ProcessWithSummary(ctx context.Context, up Upload, sink streaming.Sink) error {
	const op = "TranscriptionService.ProcessWithSummary"

	if err := s.Validate(up.Filename, int64(len(up.Data))); err != nil {
		return err
	}
	log := s.log.WithField("filename", up.Filename)

	send := func(ev models.StreamEvent) bool {
		if err := streaming.Emit(sink, ev); err != nil {
			log.WithError(err).Info("upload: client went away")
			return false
		}
		return true
	}
	fail := func(err error) error {
		log.WithError(err).Error("upload: pipeline failed")
		send(models.ErrorEvent(utils.PublicMessage(err)))
		return nil
	}

	if !send(models.Status("Starting audio processing...")) || !send(models.Status("Transcribing audio...")) {
		return nil
	}

	text, err := s.Transcribe(ctx, up)
	if err != nil {
		return fail(err)
	}
	if !send(models.StreamEvent{Type: models.EventTranscription, Content: text}) ||
		!send(models.Status("Generating summary...")) {
		return nil
	}

	chunks, errs := s.llm.StreamAnswer(ctx, summaryPrompt(text), llm.Options{
		Temperature: SummaryTemperature,
		MaxTokens:   SummaryMaxTokens,
	})
	summary, err := streaming.Relay(ctx, sink, models.EventSummaryChunk, chunks, errs, s.cfg.SummaryDelay)
	if err != nil {
		if errors.Is(err, streaming.ErrClientGone) || ctx.Err() != nil {
			log.WithError(err).Info("upload: client went away during summary")
			return nil
		}
		return fail(utils.E(utils.CodeUpstream, op, "summary failed", err))
	}

	if !send(models.Status("Building chat index...")) {
		return nil
	}

	sessionID := uuid.NewString()
	indexed := true
	if _, err := s.sessions.Create(ctx, sessionID, text); err != nil {
		indexed = false
		log.WithError(err).Warn("upload: indexing failed, chat unavailable")
		if !send(models.Warning("Chat index could not be built; chat is unavailable for this transcript")) {
			return nil
		}
	} else if !send(models.StreamEvent{Type: models.EventSessionCreated, SessionID: sessionID, Message: "Chat session ready"}) {
		return nil
	}

	if indexed {
		rec := models.HistoryRecord{
			SessionID:     sessionID,
			Filename:      up.Filename,
			UploadTime:    time.Now().UTC(),
			Transcription: text,
			Summary:       summary,
			ChatHistory:   []models.ChatTurn{},
		}
		if err := s.history.Record(context.WithoutCancel(ctx), rec); err != nil {
			log.WithError(err).Warn("upload: history record failed")
			if !send(models.Warning("Failed to save this upload to history")) {
				return nil
			}
		}
	}

	send(models.StreamEvent{Type: models.EventComplete, Filename: up.Filename})
	return nil
}

func summaryPrompt(text string) []llm.Message {
	return []llm.Message{
		{Role: llm.RoleSystem, Content: summarySystemPrompt},
		{Role: llm.RoleUser, Content: "Please summarize the following text:\n\n" + text},
	}
}
