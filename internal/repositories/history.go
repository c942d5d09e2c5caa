package repositories

import (
	"context"

	"github.com/yoockh/yoolisten/internal/models"
)

// HistoryRepository persists finished uploads. Records are kept
// most-recent-first. Get returns utils.ErrNotFound for unknown ids.
type HistoryRepository interface {
	Load(ctx context.Context) ([]models.HistoryRecord, error)
	Save(ctx context.Context, records []models.HistoryRecord) error
	Append(ctx context.Context, rec models.HistoryRecord) error
	UpdateChatLog(ctx context.Context, sessionID string, chat []models.ChatTurn) (found bool, err error)
	Delete(ctx context.Context, sessionID string) (removed bool, err error)
	Get(ctx context.Context, sessionID string) (*models.HistoryRecord, error)
}
