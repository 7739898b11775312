package redis

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	goredis "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/RecyclifyApp/Backend-sub000/internal/domain/quest"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/shared"
	"github.com/RecyclifyApp/Backend-sub000/internal/domain/task"
)

func newTestCache(t *testing.T) (*Cache, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := goredis.NewClient(&goredis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return NewCacheFromClient(client), mr
}

func TestCache_SetGet(t *testing.T) {
	cache, _ := newTestCache(t)
	ctx := context.Background()

	var out quest.Quest
	assert.ErrorIs(t, cache.Get(ctx, "missing", &out), ErrCacheMiss)
	assert.ErrorIs(t, cache.Set(ctx, "", 1, 0), ErrCacheKeyEmpty)
	assert.ErrorIs(t, cache.Set(ctx, "k", nil, 0), ErrCacheNilValue)

	in := quest.Quest{ID: "q1", Title: "Bottles", Type: "recycling", TotalAmountToComplete: 10}
	require.NoError(t, cache.Set(ctx, "k", in, TTLCatalog))
	require.NoError(t, cache.Get(ctx, "k", &out))
	assert.Equal(t, in, out)
}

func TestCache_DeleteIfEquals(t *testing.T) {
	cache, mr := newTestCache(t)
	ctx := context.Background()

	ok, err := cache.SetNX(ctx, "lock:x", "a", TTLRegenerationLock)
	require.NoError(t, err)
	assert.True(t, ok)

	ok, err = cache.SetNX(ctx, "lock:x", "b", TTLRegenerationLock)
	require.NoError(t, err)
	assert.False(t, ok)

	removed, err := cache.DeleteIfEquals(ctx, "lock:x", "b")
	require.NoError(t, err)
	assert.False(t, removed)
	assert.True(t, mr.Exists("lock:x"))

	removed, err = cache.DeleteIfEquals(ctx, "lock:x", "a")
	require.NoError(t, err)
	assert.True(t, removed)
	assert.False(t, mr.Exists("lock:x"))
}

func TestRegenerationLock(t *testing.T) {
	cache, mr := newTestCache(t)
	lock := NewRegenerationLock(cache, 0, nil)
	ctx := context.Background()

	release, err := lock.Acquire(ctx, "class-1")
	require.NoError(t, err)

	_, err = lock.Acquire(ctx, "class-1")
	assert.ErrorIs(t, err, shared.ErrRegenerationLocked)
	assert.True(t, shared.IsRetryable(err))

	other, err := lock.Acquire(ctx, "class-2")
	require.NoError(t, err)
	other()

	release()
	assert.False(t, mr.Exists(LockKey("regenerate:class-1")))

	again, err := lock.Acquire(ctx, "class-1")
	require.NoError(t, err)
	again()
}

func TestClassLeaderboard_Top(t *testing.T) {
	cache, _ := newTestCache(t)
	board := NewClassLeaderboard(cache)
	ctx := context.Background()

	require.NoError(t, board.Increment(ctx, "c1", "bob", 10))
	require.NoError(t, board.Increment(ctx, "c1", "alice", 10))
	require.NoError(t, board.Increment(ctx, "c1", "carol", 5))
	require.NoError(t, board.Increment(ctx, "c1", "carol", 20))
	require.NoError(t, board.Increment(ctx, "c2", "dave", 100))

	top, err := board.Top(ctx, "c1", 10)
	require.NoError(t, err)
	require.Len(t, top, 3)
	assert.Equal(t, "carol", top[0].StudentID)
	assert.Equal(t, 25, top[0].Points)
	assert.Equal(t, 1, top[0].Rank)
	assert.Equal(t, "alice", top[1].StudentID)
	assert.Equal(t, "bob", top[2].StudentID)
	assert.Equal(t, 3, top[2].Rank)

	limited, err := board.Top(ctx, "c1", 2)
	require.NoError(t, err)
	assert.Len(t, limited, 2)

	empty, err := board.Top(ctx, "none", 5)
	require.NoError(t, err)
	assert.Empty(t, empty)
}

type countingCatalog struct {
	questCalls int
	listCalls  int
	taskCalls  int
}

func (c *countingCatalog) GetQuest(_ context.Context, id string) (*quest.Quest, error) {
	c.questCalls++
	if id != "q1" {
		return nil, shared.ErrQuestNotFound
	}
	return &quest.Quest{ID: "q1", Type: "recycling", TotalAmountToComplete: 5}, nil
}

func (c *countingCatalog) ListQuests(_ context.Context, _ quest.Filter) ([]quest.Quest, error) {
	c.listCalls++
	return []quest.Quest{{ID: "q1", TotalAmountToComplete: 5}, {ID: "q2", TotalAmountToComplete: 3}}, nil
}

func (c *countingCatalog) GetTask(_ context.Context, id string) (*task.Task, error) {
	c.taskCalls++
	return &task.Task{ID: id, Points: 3, QuestID: "q1"}, nil
}

func TestCatalogCache_ReadThrough(t *testing.T) {
	cache, mr := newTestCache(t)
	source := &countingCatalog{}
	cc := NewCatalogCache(cache, source, time.Minute, nil)
	ctx := context.Background()

	for i := 0; i < 3; i++ {
		q, err := cc.GetQuest(ctx, "q1")
		require.NoError(t, err)
		assert.Equal(t, "q1", q.ID)
	}
	assert.Equal(t, 1, source.questCalls)

	_, err := cc.GetQuest(ctx, "nope")
	assert.True(t, errors.Is(err, shared.ErrQuestNotFound))

	filter := quest.Filter{IDs: []string{"q2", "q1"}}
	_, err = cc.ListQuests(ctx, filter)
	require.NoError(t, err)
	list, err := cc.ListQuests(ctx, quest.Filter{IDs: []string{"q1", "q2"}})
	require.NoError(t, err)
	assert.Len(t, list, 2)
	assert.Equal(t, 1, source.listCalls)

	_, err = cc.GetTask(ctx, "t1")
	require.NoError(t, err)
	_, err = cc.GetTask(ctx, "t1")
	require.NoError(t, err)
	assert.Equal(t, 1, source.taskCalls)

	require.NoError(t, cc.Invalidate(ctx))
	assert.False(t, mr.Exists(QuestKey("q1")))
	_, err = cc.GetQuest(ctx, "q1")
	require.NoError(t, err)
	assert.Equal(t, 3, source.questCalls)
}

func TestCatalogCache_RedisDownFallsBack(t *testing.T) {
	cache, mr := newTestCache(t)
	source := &countingCatalog{}
	cc := NewCatalogCache(cache, source, time.Minute, nil)
	mr.Close()

	q, err := cc.GetQuest(context.Background(), "q1")
	require.NoError(t, err)
	assert.Equal(t, "q1", q.ID)
}
