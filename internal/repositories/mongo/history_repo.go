package mongo

import (
	"context"
	"errors"
	"time"

	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/repositories"
	"github.com/yoockh/yoolisten/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo"
	"go.mongodb.org/mongo-driver/mongo/options"
)

type historyRepo struct {
	col *mongo.Collection
}

// NewHistoryRepo expects config.EnsureMongoIndexes to have run on db.
func NewHistoryRepo(db *mongo.Database) repositories.HistoryRepository {
	return &historyRepo{col: db.Collection("history")}
}

func (r *historyRepo) Load(ctx context.Context) ([]models.HistoryRecord, error) {
	cur, err := r.col.Find(ctx, bson.M{},
		options.Find().SetSort(bson.D{{Key: "upload_time", Value: -1}}))
	if err != nil {
		return nil, err
	}
	defer cur.Close(ctx)

	out := []models.HistoryRecord{}
	if err := cur.All(ctx, &out); err != nil {
		return nil, err
	}
	return out, nil
}

// Save replaces the whole collection with records.
func (r *historyRepo) Save(ctx context.Context, records []models.HistoryRecord) error {
	if _, err := r.col.DeleteMany(ctx, bson.M{}); err != nil {
		return err
	}
	if len(records) == 0 {
		return nil
	}
	docs := make([]interface{}, len(records))
	for i := range records {
		docs[i] = records[i]
	}
	_, err := r.col.InsertMany(ctx, docs)
	return err
}

func (r *historyRepo) Append(ctx context.Context, rec models.HistoryRecord) error {
	if rec.UploadTime.IsZero() {
		rec.UploadTime = time.Now().UTC()
	}
	if rec.ChatHistory == nil {
		rec.ChatHistory = []models.ChatTurn{}
	}
	_, err := r.col.InsertOne(ctx, rec)
	return err
}

func (r *historyRepo) UpdateChatLog(ctx context.Context, sessionID string, chat []models.ChatTurn) (bool, error) {
	if chat == nil {
		chat = []models.ChatTurn{}
	}
	res, err := r.col.UpdateOne(ctx,
		bson.M{"session_id": sessionID},
		bson.M{"$set": bson.M{"chat_history": chat}},
	)
	if err != nil {
		return false, err
	}
	return res.MatchedCount > 0, nil
}

func (r *historyRepo) Delete(ctx context.Context, sessionID string) (bool, error) {
	res, err := r.col.DeleteMany(ctx, bson.M{"session_id": sessionID})
	if err != nil {
		return false, err
	}
	return res.DeletedCount > 0, nil
}

func (r *historyRepo) Get(ctx context.Context, sessionID string) (*models.HistoryRecord, error) {
	var rec models.HistoryRecord
	err := r.col.FindOne(ctx, bson.M{"session_id": sessionID}).Decode(&rec)
	if errors.Is(err, mongo.ErrNoDocuments) {
		return nil, utils.ErrNotFound
	}
	if err != nil {
		return nil, err
	}
	return &rec, nil
}
