package services

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/yoockh/yoolisten/internal/models"
	"github.com/yoockh/yoolisten/internal/utils"
)

func TestSessionStore_CreateGetDelete(t *testing.T) {
	store := newStore(&fakeBuilder{}, time.Hour)
	ctx := context.Background()

	sess, err := store.Create(ctx, "s1", "hello there")
	require.NoError(t, err)
	assert.Equal(t, "s1", sess.ID)
	assert.Empty(t, sess.Turns())

	got, err := store.Get("s1")
	require.NoError(t, err)
	assert.Same(t, sess, got)
	assert.True(t, store.Touch("s1"))

	assert.True(t, store.Delete("s1"))
	assert.False(t, store.Delete("s1"))
	assert.False(t, store.Touch("s1"))

	_, err = store.Get("s1")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSessionStore_CreateBuildFailure(t *testing.T) {
	store := newStore(&fakeBuilder{err: errors.New("embedding api down")}, time.Hour)

	_, err := store.Create(context.Background(), "s1", "text")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeUpstream))

	_, err = store.Get("s1")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSessionStore_GetOrCreate(t *testing.T) {
	store := newStore(&fakeBuilder{}, time.Hour)
	ctx := context.Background()

	_, _, err := store.GetOrCreate(ctx, "s1", "")
	require.Error(t, err)
	assert.True(t, utils.IsCode(err, utils.CodeFailedPrecondition))

	sess, created, err := store.GetOrCreate(ctx, "s1", "transcript")
	require.NoError(t, err)
	assert.True(t, created)

	again, created, err := store.GetOrCreate(ctx, "s1", "")
	require.NoError(t, err)
	assert.False(t, created)
	assert.Same(t, sess, again)
}

func TestSessionStore_SweepRemovesIdleSessions(t *testing.T) {
	b := &fakeBuilder{}
	store := newStore(b, 50*time.Millisecond)
	ctx := context.Background()

	_, err := store.Create(ctx, "old", "transcript")
	require.NoError(t, err)

	time.Sleep(120 * time.Millisecond)
	_, err = store.Create(ctx, "fresh", "transcript")
	require.NoError(t, err)

	assert.Equal(t, 1, store.Sweep())
	_, err = store.Get("old")
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
	_, err = store.Get("fresh")
	assert.NoError(t, err)

	select {
	case <-b.indexes[0].released:
	case <-time.After(time.Second):
		t.Fatal("index of the swept session was not released")
	}
	assert.Equal(t, 0, store.Sweep())
}

func TestSessionStore_AppendTurns(t *testing.T) {
	store := newStore(&fakeBuilder{}, time.Hour)
	_, err := store.Create(context.Background(), "s1", "transcript")
	require.NoError(t, err)

	chat, err := store.AppendTurns("s1",
		models.ChatTurn{Role: models.RoleUser, Content: "q"},
		models.ChatTurn{Role: models.RoleAssistant, Content: "a"},
	)
	require.NoError(t, err)
	assert.Len(t, chat, 2)

	_, err = store.AppendTurns("missing", models.ChatTurn{Role: models.RoleUser, Content: "q"})
	assert.True(t, utils.IsCode(err, utils.CodeNotFound))
}

func TestSessionStore_CreateReplacesAndReleasesOld(t *testing.T) {
	b := &fakeBuilder{}
	store := newStore(b, time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "first")
	require.NoError(t, err)
	_, err = store.Create(ctx, "s1", "second")
	require.NoError(t, err)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	assert.Equal(t, "second", sess.Transcript)
	assert.Len(t, store.List(), 1)

	select {
	case <-b.indexes[0].released:
	case <-time.After(time.Second):
		t.Fatal("replaced index was not released")
	}
}

func TestSessionStore_ReplaceKeepsNewIndexRows(t *testing.T) {
	b := newRowBuilder(0)
	store := newStore(b, time.Hour)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "first")
	require.NoError(t, err)
	_, err = store.Create(ctx, "s1", "second")
	require.NoError(t, err)

	// the old index is released in the background
	require.Eventually(t, func() bool { return b.namespaces() == 1 }, time.Second, 5*time.Millisecond)

	sess, err := store.Get("s1")
	require.NoError(t, err)
	got, err := sess.Index.Search(ctx, "anything", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"second"}, got)
}

func TestSessionStore_SweptSessionRebuildKeepsRows(t *testing.T) {
	b := newRowBuilder(0)
	store := newStore(b, 30*time.Millisecond)
	ctx := context.Background()

	_, err := store.Create(ctx, "s1", "transcript")
	require.NoError(t, err)
	time.Sleep(60 * time.Millisecond)

	sess, created, err := store.GetOrCreate(ctx, "s1", "transcript")
	require.NoError(t, err)
	require.True(t, created)

	require.Eventually(t, func() bool { return b.namespaces() == 1 }, time.Second, 5*time.Millisecond)
	got, err := sess.Index.Search(ctx, "q", 3)
	require.NoError(t, err)
	assert.Equal(t, []string{"transcript"}, got)
}

func TestSessionStore_CreateSeedsTurns(t *testing.T) {
	store := newStore(&fakeBuilder{}, time.Hour)
	turns := []models.ChatTurn{
		{Role: models.RoleUser, Content: "q"},
		{Role: models.RoleAssistant, Content: "a"},
	}

	sess, err := store.Create(context.Background(), "s1", "transcript", turns...)
	require.NoError(t, err)
	assert.Equal(t, turns, sess.Turns())

	// the session owns its copy
	turns[0].Content = "changed"
	assert.Equal(t, "q", sess.Turns()[0].Content)
}

func TestSessionStore_GetOrCreateSharesConcurrentBuilds(t *testing.T) {
	b := newRowBuilder(20 * time.Millisecond)
	store := newStore(b, time.Hour)

	const callers = 8
	var wg sync.WaitGroup
	sessions := make([]*models.Session, callers)
	errs := make([]error, callers)
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			sessions[i], _, errs[i] = store.GetOrCreate(context.Background(), "s1", "transcript")
		}(i)
	}
	wg.Wait()

	for i := 0; i < callers; i++ {
		require.NoError(t, errs[i])
		assert.Same(t, sessions[0], sessions[i])
	}
	assert.Equal(t, 1, b.buildCount())
	assert.Equal(t, 1, b.namespaces())
}
