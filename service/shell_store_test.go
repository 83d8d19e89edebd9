package service

import (
	"context"
	"os"
	"testing"
	"time"

	"github.com/go-redis/redis/v8"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryShellStoreRoundTrip(t *testing.T) {
	ctx := context.Background()
	store := NewMemoryShellStore(time.Hour)

	got, err := store.Get(ctx, "missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	state := NewShellState(true)
	state.Prompt = "a cat"
	state.Images = []GeneratedImage{{EncodedData: "QQ==", SourcePrompt: "a cat"}}
	require.NoError(t, store.Save(ctx, "sid", state))

	got, err = store.Get(ctx, "sid")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state, *got)

	require.NoError(t, store.Delete(ctx, "sid"))
	got, err = store.Get(ctx, "sid")
	require.NoError(t, err)
	assert.Nil(t, got)
}

func TestMemoryShellStoreExpiry(t *testing.T) {
	ctx := context.Background()
	now := time.Unix(1000, 0)
	store := NewMemoryShellStore(time.Minute)
	store.now = func() time.Time { return now }

	require.NoError(t, store.Save(ctx, "a", NewShellState(true)))
	require.NoError(t, store.Save(ctx, "b", NewShellState(true)))

	now = now.Add(2 * time.Minute)
	got, err := store.Get(ctx, "a")
	require.NoError(t, err)
	assert.Nil(t, got)

	assert.Equal(t, 1, store.Sweep())
	assert.Equal(t, 0, store.Sweep())
}

func TestRedisShellStoreRoundTrip(t *testing.T) {
	connString := os.Getenv("REDIS_CONN_STRING")
	if connString == "" {
		t.Skip("REDIS_CONN_STRING not set")
	}
	opt, err := redis.ParseURL(connString)
	require.NoError(t, err)
	rdb := redis.NewClient(opt)
	defer rdb.Close()

	ctx := context.Background()
	store := NewRedisShellStore(rdb, time.Minute)
	sessionId := "test-" + time.Now().Format("150405.000000")
	defer store.Delete(ctx, sessionId)

	state := NewShellState(false)
	state.Error = "x"
	require.NoError(t, store.Save(ctx, sessionId, state))

	got, err := store.Get(ctx, sessionId)
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, state, *got)

	got, err = store.Get(ctx, sessionId+"-missing")
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, rdb.Set(ctx, redisShellKeyPrefix+sessionId, "{not json", time.Minute).Err())
	_, err = store.Get(ctx, sessionId)
	assert.ErrorIs(t, err, ErrCorruptShellState)
}
