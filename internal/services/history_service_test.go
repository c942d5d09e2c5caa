package services

import (
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoolisten/internal/logger"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/utils"
)

func TestHistoryService_ListPreviews(t *testing.T) {
	repo := newFileHistory(t)
	svc := NewHistoryService(repo, newStore(&fakeBuilder{}, time.Hour), logger.Discard())
	ctx := context.Background()

	long := strings.Repeat("x", 150)
	require.NoError(t, svc.Record(ctx, models.HistoryRecord{SessionID: "a", Transcription: long}))
	require.NoError(t, svc.Record(ctx, models.HistoryRecord{SessionID: "b", Transcription: "short"}))

	list, err := svc.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "b", list[0].SessionID)
	assert.Equal(t, "short", list[0].TranscriptionPreview)
	assert.Equal(t, strings.Repeat("x", 100)+"...", list[1].TranscriptionPreview)
}

func TestHistoryService_OpenRehydratesSession(t *testing.T) {
	repo := newFileHistory(t)
	store := newStore(&fakeBuilder{}, time.Hour)
	svc := NewHistoryService(repo, store, logger.Discard())
	ctx := context.Background()

	chat := []models.ChatTurn{
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "a"},
	}
	require.NoError(t, repo.Append(ctx, models.HistoryRecord{SessionID: "old", Transcription: "stored transcript", ChatHistory: chat}))

	rec, available, err := svc.Open(ctx, "old")
	require.NoError(t, err)
	assert.True(t, available)
	assert.Equal(t, "stored transcript", rec.Transcription)

	sess, err := store.Get("old")
	require.NoError(t, err)
	assert.Equal(t, chat, sess.Turns())

	_, _, err = svc.Open(ctx, "missing")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestHistoryService_OpenWithoutTranscript(t *testing.T) {
	repo := newFileHistory(t)
	svc := NewHistoryService(repo, newStore(&fakeBuilder{}, time.Hour), logger.Discard())
	ctx := context.Background()
	require.NoError(t, repo.Append(ctx, models.HistoryRecord{SessionID: "empty"}))

	_, available, err := svc.Open(ctx, "empty")
	require.NoError(t, err)
	assert.False(t, available)
}

func TestHistoryService_DeleteDropsSession(t *testing.T) {
	repo := newFileHistory(t)
	store := newStore(&fakeBuilder{}, time.Hour)
	svc := NewHistoryService(repo, store, logger.Discard())
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "text")
	require.NoError(t, err)
	require.NoError(t, svc.Record(ctx, models.HistoryRecord{SessionID: "s1", Transcription: "text"}))

	require.NoError(t, svc.Delete(ctx, "s1"))
	_, err = store.Get("s1")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))

	err = svc.Delete(ctx, "s1")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestHistoryService_ConcurrentOpenBuildsOnce(t *testing.T) {
	repo := newFileHistory(t)
	b := newRowBuilder(20 * time.Millisecond)
	store := newStore(b, time.Hour)
	svc := NewHistoryService(repo, store, logger.Discard())
	ctx := context.Background()

	chat := []models.ChatTurn{
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "a"},
	}
	require.NoError(t, repo.Append(ctx, models.HistoryRecord{SessionID: "h1", Transcription: "stored transcript", ChatHistory: chat}))

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, available, err := svc.Open(ctx, "h1")
			assert.NoError(t, err)
			assert.True(t, available)
		}()
	}
	wg.Wait()

	assert.Equal(t, 1, b.buildCount())
	sess, err := store.Get("h1")
	require.NoError(t, err)
	assert.Equal(t, chat, sess.Turns())

	got, err := sess.Index.Search(ctx, "q", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"stored transcript"}, got)
}

func TestHistoryService_ChatAfterRehydrateIsKept(t *testing.T) {
	repo := newFileHistory(t)
	store := newStore(&fakeBuilder{}, time.Hour)
	svc := NewHistoryService(repo, store, logger.Discard())
	ctx := context.Background()

	require.NoError(t, repo.Append(ctx, models.HistoryRecord{
		SessionID:     "h1",
		Transcription: "stored transcript",
		ChatHistory:   []models.ChatTurn{{Role: models.RoleUser, Content: "q1"}, {Role: models.RoleAssistant, Content: "a1"}},
	}))

	_, _, err := svc.Open(ctx, "h1")
	require.NoError(t, err)
	chat, err := store.AppendTurns("h1",
		models.ChatTurn{Role: models.RoleUser, Content: "q2"},
		models.ChatTurn{Role: models.RoleAssistant, Content: "a2"},
	)
	require.NoError(t, err)
	require.Len(t, chat, 4)

	// a second open of the live session must not reset the log
	_, _, err = svc.Open(ctx, "h1")
	require.NoError(t, err)
	sess, err := store.Get("h1")
	require.NoError(t, err)
	assert.Equal(t, chat, sess.Turns())
}
