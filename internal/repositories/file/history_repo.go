package file

import (
	"context"
	"encoding/json"
	"errors"
	"io/fs"
	"os"
	"sync"

	"github.com/sirupsen/logrus"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/repositories"
	"github.com/yoockh/yoolisten/internal/utils"
)

// historyRepo stores the whole history as one JSON array. Every mutation is
// a read-modify-write of the file under mu.
type historyRepo struct {
	path string
	log  *logrus.Logger
	mu   sync.Mutex
}

func NewHistoryRepo(path string, log *logrus.Logger) repositories.HistoryRepository {
	return &historyRepo{path: path, log: log}
}

// read never fails: a missing or unreadable file is an empty history.
func (r *historyRepo) read() []models.HistoryRecord {
	b, err := os.ReadFile(r.path)
	if errors.Is(err, fs.ErrNotExist) {
		return []models.HistoryRecord{}
	}
	if err != nil {
		r.log.WithError(err).WithField("path", r.path).Error("history: read failed, starting empty")
		return []models.HistoryRecord{}
	}

	var recs []models.HistoryRecord
	if err := json.Unmarshal(b, &recs); err != nil {
		r.log.WithError(err).WithField("path", r.path).Error("history: corrupt file, starting empty")
		return []models.HistoryRecord{}
	}
	if recs == nil {
		recs = []models.HistoryRecord{}
	}
	return recs
}

func (r *historyRepo) write(recs []models.HistoryRecord) error {
	if recs == nil {
		recs = []models.HistoryRecord{}
	}
	return utils.WriteJSONFileAtomic(r.path, recs, true)
}

func (r *historyRepo) Load(ctx context.Context) ([]models.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.read(), nil
}

func (r *historyRepo) Save(ctx context.Context, records []models.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.write(records)
}

func (r *historyRepo) Append(ctx context.Context, rec models.HistoryRecord) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if rec.ChatHistory == nil {
		rec.ChatHistory = []models.ChatTurn{}
	}
	recs := append([]models.HistoryRecord{rec}, r.read()...)
	return r.write(recs)
}

func (r *historyRepo) UpdateChatLog(ctx context.Context, sessionID string, chat []models.ChatTurn) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := r.read()
	for i := range recs {
		if recs[i].SessionID == sessionID {
			recs[i].ChatHistory = append([]models.ChatTurn{}, chat...)
			return true, r.write(recs)
		}
	}
	return false, nil
}

func (r *historyRepo) Delete(ctx context.Context, sessionID string) (bool, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	recs := r.read()
	kept := recs[:0]
	for _, rec := range recs {
		if rec.SessionID != sessionID {
			kept = append(kept, rec)
		}
	}
	if len(kept) == len(recs) {
		return false, nil
	}
	return true, r.write(kept)
}

func (r *historyRepo) Get(ctx context.Context, sessionID string) (*models.HistoryRecord, error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	for _, rec := range r.read() {
		if rec.SessionID == sessionID {
			rec := rec
			return &rec, nil
		}
	}
	return nil, utils.ErrNotFound
}
