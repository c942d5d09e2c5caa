package services

import (
	"context"
	"errors"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/repositories"
	"github.com/yoockh/yoolisten/internal/utils"
)

const PreviewLength = 100

type HistoryService interface {
	List(ctx context.Context) ([]models.HistorySummary, error)
	// Open returns the record and makes sure a live session exists for it,
	// rebuilding one from the stored transcript when needed.
	Open(ctx context.Context, sessionID string) (rec *models.HistoryRecord, chatAvailable bool, err error)
	Record(ctx context.Context, rec models.HistoryRecord) error
	SyncChat(ctx context.Context, sessionID string, chat []models.ChatTurn) (bool, error)
	Delete(ctx context.Context, sessionID string) error
}

type historyService struct {
	repo     repositories.HistoryRepository
	sessions SessionStore
	log      *logrus.Logger
}

func NewHistoryService(repo repositories.HistoryRepository, sessions SessionStore, log *logrus.Logger) HistoryService {
	return &historyService{repo: repo, sessions: sessions, log: log}
}

func (s *historyService) List(ctx context.Context) ([]models.HistorySummary, error) {
	const op = "HistoryService.List"

	recs, err := s.repo.Load(ctx)
	if err != nil {
		return nil, utils.E(utils.CodeInternal, op, "failed to load history", err)
	}

	out := make([]models.HistorySummary, 0, len(recs))
	for _, r := range recs {
		out = append(out, models.HistorySummary{
			SessionID:            r.SessionID,
			Filename:             r.Filename,
			UploadTime:           r.UploadTime,
			TranscriptionPreview: utils.Preview(r.Transcription, PreviewLength),
		})
	}
	return out, nil
}

func (s *historyService) Open(ctx context.Context, sessionID string) (*models.HistoryRecord, bool, error) {
	const op = "HistoryService.Open"

	if sessionID == "" {
		return nil, false, utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	rec, err := s.repo.Get(ctx, sessionID)
	if err != nil {
		if errors.Is(err, utils.ErrNotFound) {
			return nil, false, utils.E(utils.CodeNotFound, op, "history record not found", err)
		}
		return nil, false, utils.E(utils.CodeInternal, op, "failed to read history", err)
	}

	_, created, err := s.sessions.GetOrCreate(ctx, sessionID, rec.Transcription, rec.ChatHistory...)
	if err != nil {
		s.log.WithError(err).WithField("session_id", sessionID).Warn("history: session rehydration failed")
		return rec, false, nil
	}
	if created {
		s.log.WithField("session_id", sessionID).Info("history: session rehydrated")
	}
	return rec, true, nil
}

func (s *historyService) Record(ctx context.Context, rec models.HistoryRecord) error {
	const op = "HistoryService.Record"

	if rec.SessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}
	if err := s.repo.Append(ctx, rec); err != nil {
		return utils.E(utils.CodeInternal, op, "failed to save history record", err)
	}
	return nil
}

func (s *historyService) SyncChat(ctx context.Context, sessionID string, chat []models.ChatTurn) (bool, error) {
	const op = "HistoryService.SyncChat"

	found, err := s.repo.UpdateChatLog(ctx, sessionID, chat)
	if err != nil {
		return false, utils.E(utils.CodeInternal, op, "failed to update chat history", err)
	}
	return found, nil
}

func (s *historyService) Delete(ctx context.Context, sessionID string) error {
	const op = "HistoryService.Delete"

	if sessionID == "" {
		return utils.E(utils.CodeInvalidArgument, op, "session_id is required", nil)
	}

	removed, err := s.repo.Delete(ctx, sessionID)
	if err != nil {
		return utils.E(utils.CodeInternal, op, "failed to delete history record", err)
	}
	dropped := s.sessions.Delete(sessionID)
	if !removed {
		return utils.E(utils.CodeNotFound, op, "history record not found", utils.ErrNotFound)
	}

	s.log.WithFields(logrus.Fields{"session_id": sessionID, "session_dropped": dropped}).Info("history record deleted")
	return nil
}
