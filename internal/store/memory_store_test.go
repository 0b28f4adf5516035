package store

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryStoreSetGetDelete(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	_, found, err := kv.Get(ctx, "missing")
	require.NoError(t, err)
	assert.False(t, found)

	require.NoError(t, kv.Set(ctx, "k", []byte("v")))

	value, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), value)

	require.NoError(t, kv.Delete(ctx, "k"))

	_, found, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)

	// 删除不存在的键不报错
	require.NoError(t, kv.Delete(ctx, "k"))
}

func TestMemoryStoreExpire(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	now := time.Unix(1700000000, 0)
	kv.SetTimeProvider(func() time.Time { return now })

	require.NoError(t, kv.Set(ctx, "k", []byte("v")))
	require.NoError(t, kv.Expire(ctx, "k", 10*time.Minute))

	_, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)

	now = now.Add(10*time.Minute + time.Second)

	_, found, err = kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreExpireMissingKey(t *testing.T) {
	kv := NewMemoryStore()
	assert.NoError(t, kv.Expire(context.Background(), "missing", time.Minute))
}

func TestMemoryStoreSetClearsTTL(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	now := time.Unix(1700000000, 0)
	kv.SetTimeProvider(func() time.Time { return now })

	require.NoError(t, kv.Set(ctx, "k", []byte("v1")))
	require.NoError(t, kv.Expire(ctx, "k", time.Minute))
	require.NoError(t, kv.Set(ctx, "k", []byte("v2")))

	now = now.Add(time.Hour)

	value, found, err := kv.Get(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v2"), value)
}

func TestMemoryStoreGetDel(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	require.NoError(t, kv.Set(ctx, "k", []byte("v")))

	value, found, err := kv.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.True(t, found)
	assert.Equal(t, []byte("v"), value)

	_, found, err = kv.GetDel(ctx, "k")
	require.NoError(t, err)
	assert.False(t, found)
}

func TestMemoryStoreGetDelConcurrentSingleWinner(t *testing.T) {
	ctx := context.Background()
	kv := NewMemoryStore()

	require.NoError(t, kv.Set(ctx, "k", []byte("v")))

	const workers = 32

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, found, err := kv.GetDel(ctx, "k")
			require.NoError(t, err)
			if found {
				mu.Lock()
				winners++
				mu.Unlock()
			}
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, winners)
}
