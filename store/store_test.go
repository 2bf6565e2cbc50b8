package store

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/rushteam/featx/core"
)

func newRedis(t *testing.T) (*RedisStore, *miniredis.Miniredis) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	s := NewRedisStoreFromClient(client)
	t.Cleanup(func() { _ = s.Close() })
	return s, mr
}

func TestStores(t *testing.T) {
	redisStore, _ := newRedis(t)
	memStore := NewMemoryStore()
	t.Cleanup(func() { _ = memStore.Close() })

	for _, s := range []interface {
		core.Store
		core.KeyScanner
	}{memStore, redisStore} {
		t.Run(s.Name(), func(t *testing.T) {
			ctx := context.Background()

			_, err := s.Get(ctx, "missing")
			assert.True(t, core.IsStoreNotFound(err))

			require.NoError(t, s.Set(ctx, "featx:result:a:1", []byte("one")))
			got, err := s.Get(ctx, "featx:result:a:1")
			require.NoError(t, err)
			assert.Equal(t, []byte("one"), got)

			require.NoError(t, s.BatchSet(ctx, map[string][]byte{
				"featx:result:a:2": []byte("two"),
				"featx:result:b:1": []byte("three"),
			}))
			batch, err := s.BatchGet(ctx, []string{"featx:result:a:2", "featx:result:b:1", "nope"})
			require.NoError(t, err)
			assert.Len(t, batch, 2)
			assert.Equal(t, []byte("three"), batch["featx:result:b:1"])

			keys, err := s.Keys(ctx, "featx:result:a:")
			require.NoError(t, err)
			assert.ElementsMatch(t, []string{"featx:result:a:1", "featx:result:a:2"}, keys)

			require.NoError(t, s.Delete(ctx, "featx:result:a:1"))
			_, err = s.Get(ctx, "featx:result:a:1")
			assert.ErrorIs(t, err, core.ErrStoreNotFound)
		})
	}
}

func TestRedisStore_TTL(t *testing.T) {
	s, mr := newRedis(t)
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 10))
	mr.FastForward(11 * time.Second)
	_, err := s.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
}

func TestMemoryStore_TTL(t *testing.T) {
	s := NewMemoryStore()
	defer s.Close()
	ctx := context.Background()

	require.NoError(t, s.Set(ctx, "k", []byte("v"), 1))
	s.mu.Lock()
	s.data["k"].expire = time.Now().Add(-time.Second)
	s.mu.Unlock()

	_, err := s.Get(ctx, "k")
	assert.True(t, core.IsStoreNotFound(err))
	keys, err := s.Keys(ctx, "")
	require.NoError(t, err)
	assert.Empty(t, keys)
}

func TestNewRedisStore_Unavailable(t *testing.T) {
	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	_, err := NewRedisStore(ctx, "127.0.0.1:1", 0)
	assert.ErrorIs(t, err, core.ErrUnavailable)
}
