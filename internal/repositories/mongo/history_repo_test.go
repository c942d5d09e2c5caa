package mongo

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/utils"
	"go.mongodb.org/mongo-driver/bson"
	"go.mongodb.org/mongo-driver/mongo/integration/mtest"
)

func historyDoc(id string, uploaded time.Time) bson.D {
	return bson.D{
		{Key: "session_id", Value: id},
		{Key: "filename", Value: id + ".wav"},
		{Key: "upload_time", Value: uploaded},
		{Key: "transcription", Value: "transcript of " + id},
		{Key: "summary", Value: "summary of " + id},
		{Key: "chat_history", Value: bson.A{
			bson.D{{Key: "role", Value: "user"}, {Key: "content", Value: "hi"}},
		}},
	}
}

func TestHistoryRepo(t *testing.T) {
	mt := mtest.New(t, mtest.NewOptions().ClientType(mtest.Mock))
	uploaded := time.Date(2024, 5, 1, 10, 0, 0, 0, time.UTC)

	mt.Run("get decodes the record", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".history"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch, historyDoc("s1", uploaded)))
		repo := NewHistoryRepo(mt.DB)

		rec, err := repo.Get(context.Background(), "s1")
		require.NoError(mt, err)
		assert.Equal(mt, "s1", rec.SessionID)
		assert.Equal(mt, "transcript of s1", rec.Transcription)
		assert.True(mt, uploaded.Equal(rec.UploadTime))
		assert.Equal(mt, []models.ChatTurn{{Role: models.RoleUser, Content: "hi"}}, rec.ChatHistory)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, "find", evt.CommandName)
		assert.Equal(mt, "s1", evt.Command.Lookup("filter", "session_id").StringValue())
	})

	mt.Run("get missing maps to not found", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".history"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewHistoryRepo(mt.DB)

		_, err := repo.Get(context.Background(), "missing")
		assert.ErrorIs(mt, err, utils.ErrNotFound)
	})

	mt.Run("load sorts newest first", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".history"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch,
			historyDoc("new", uploaded.Add(time.Hour)),
			historyDoc("old", uploaded),
		))
		repo := NewHistoryRepo(mt.DB)

		recs, err := repo.Load(context.Background())
		require.NoError(mt, err)
		require.Len(mt, recs, 2)
		assert.Equal(mt, "new", recs[0].SessionID)
		assert.Equal(mt, "old", recs[1].SessionID)

		evt := mt.GetStartedEvent()
		require.NotNil(mt, evt)
		assert.Equal(mt, int32(-1), evt.Command.Lookup("sort", "upload_time").AsInt32())
	})

	mt.Run("load empty collection", func(mt *mtest.T) {
		ns := mt.DB.Name() + ".history"
		mt.AddMockResponses(mtest.CreateCursorResponse(0, ns, mtest.FirstBatch))
		repo := NewHistoryRepo(mt.DB)

		recs, err := repo.Load(context.Background())
		require.NoError(mt, err)
		assert.NotNil(mt, recs)
		assert.Empty(mt, recs)
	})

	mt.Run("update chat log reports matches", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}, bson.E{Key: "nModified", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}, bson.E{Key: "nModified", Value: 0}),
		)
		repo := NewHistoryRepo(mt.DB)
		chat := []models.ChatTurn{{Role: models.RoleUser, Content: "q"}, {Role: models.RoleAssistant, Content: "a"}}

		ok, err := repo.UpdateChatLog(context.Background(), "s1", chat)
		require.NoError(mt, err)
		assert.True(mt, ok)

		ok, err = repo.UpdateChatLog(context.Background(), "gone", nil)
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("delete reports removed rows", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 0}),
		)
		repo := NewHistoryRepo(mt.DB)

		ok, err := repo.Delete(context.Background(), "s1")
		require.NoError(mt, err)
		assert.True(mt, ok)

		ok, err = repo.Delete(context.Background(), "s1")
		require.NoError(mt, err)
		assert.False(mt, ok)
	})

	mt.Run("append and save write through", func(mt *mtest.T) {
		mt.AddMockResponses(
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 1}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 3}),
			mtest.CreateSuccessResponse(bson.E{Key: "n", Value: 2}),
		)
		repo := NewHistoryRepo(mt.DB)

		require.NoError(mt, repo.Append(context.Background(), models.HistoryRecord{SessionID: "s3"}))
		require.NoError(mt, repo.Save(context.Background(), []models.HistoryRecord{
			{SessionID: "a", UploadTime: uploaded},
			{SessionID: "b", UploadTime: uploaded},
		}))

		var names []string
		for _, evt := range mt.GetAllStartedEvents() {
			names = append(names, evt.CommandName)
		}
		assert.Equal(mt, []string{"insert", "delete", "insert"}, names)
	})

	mt.Run("command errors surface", func(mt *mtest.T) {
		mt.AddMockResponses(mtest.CreateCommandErrorResponse(mtest.CommandError{
			Code:    2,
			Message: "bad filter",
			Name:    "BadValue",
		}))
		repo := NewHistoryRepo(mt.DB)

		_, err := repo.Delete(context.Background(), "s1")
		require.Error(mt, err)
		assert.NotErrorIs(mt, err, utils.ErrNotFound)
	})
}
