package lifecycle

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/message"
	"github.com/sixthextinction/burn-after-reading-redis-next-notify/internal/store"
)

// ---- 故障注入存储 ----

type failingKV struct {
	store.KV
	err error
}

func (kv *failingKV) Get(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, kv.err
}

func (kv *failingKV) Set(ctx context.Context, key string, value []byte) error {
	return kv.err
}

func (kv *failingKV) GetDel(ctx context.Context, key string) ([]byte, bool, error) {
	return nil, false, kv.err
}

func newTestManager() (*Manager, *store.MemoryStore) {
	kv := store.NewMemoryStore()
	return NewManager(kv), kv
}

func TestCreateThenRetrieveOneTime(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	id, err := manager.Create(ctx, "hello", message.OneTime())
	require.NoError(t, err)
	require.NotEmpty(t, id)

	record, err := manager.Retrieve(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", record.Content)
	assert.Equal(t, message.KindOneTime, record.Policy.Kind)
	assert.Equal(t, id, record.ID)
}

func TestRetrieveIsNonDestructive(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	id, err := manager.Create(ctx, "x", message.TimeBased(10))
	require.NoError(t, err)

	first, err := manager.Retrieve(ctx, id)
	require.NoError(t, err)
	second, err := manager.Retrieve(ctx, id)
	require.NoError(t, err)

	assert.Equal(t, "x", first.Content)
	assert.Equal(t, first, second)
}

func TestConsumeReturnsRecordThenNotFound(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	id, err := manager.Create(ctx, "hello", message.OneTime())
	require.NoError(t, err)

	record, err := manager.Consume(ctx, id)
	require.NoError(t, err)
	assert.Equal(t, "hello", record.Content)

	_, err = manager.Retrieve(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)

	// 二次消费返回 NotFound,而不是重复删除错误
	_, err = manager.Consume(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestRetrieveUnknownIDMatchesConsumedID(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	_, unknownErr := manager.Retrieve(ctx, "nonexistent-id")
	assert.ErrorIs(t, unknownErr, ErrNotFound)

	id, err := manager.Create(ctx, "hello", message.OneTime())
	require.NoError(t, err)
	_, err = manager.Consume(ctx, id)
	require.NoError(t, err)

	_, consumedErr := manager.Retrieve(ctx, id)
	assert.ErrorIs(t, consumedErr, ErrNotFound)

	// 缺失原因不可区分:两种错误完全一致
	assert.Equal(t, unknownErr, consumedErr)
}

func TestTimeBasedExpiryViaStoreTTL(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	manager := NewManager(kv)

	now := time.Unix(1700000000, 0)
	kv.SetTimeProvider(func() time.Time { return now })
	manager.SetTimeProvider(func() time.Time { return now })

	id, err := manager.Create(ctx, "x", message.TimeBased(10))
	require.NoError(t, err)

	_, err = manager.Retrieve(ctx, id)
	require.NoError(t, err)

	// TTL 窗口过后无需显式消费即不可见
	now = now.Add(10*time.Minute + time.Second)

	_, err = manager.Retrieve(ctx, id)
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestCreateValidation(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	_, err := manager.Create(ctx, "", message.OneTime())
	assert.ErrorIs(t, err, ErrValidation)

	_, err = manager.Create(ctx, "x", message.TimeBased(0))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = manager.Create(ctx, "x", message.TimeBased(-1))
	assert.ErrorIs(t, err, ErrValidation)

	_, err = manager.Create(ctx, "x", message.ExpirationPolicy{Kind: "never"})
	assert.ErrorIs(t, err, ErrValidation)
}

func TestStoreFailureSurfacesAsStoreError(t *testing.T) {
	ctx := context.Background()
	broken := &failingKV{err: errors.New("connection refused")}
	manager := NewManager(broken)

	_, err := manager.Create(ctx, "hello", message.OneTime())
	assert.ErrorIs(t, err, ErrStore)

	_, err = manager.Retrieve(ctx, "abc")
	assert.ErrorIs(t, err, ErrStore)

	_, err = manager.Consume(ctx, "abc")
	assert.ErrorIs(t, err, ErrStore)
}

func TestCorruptStoredValueSurfacesAsStoreError(t *testing.T) {
	ctx := context.Background()
	kv := store.NewMemoryStore()
	manager := NewManager(kv)

	require.NoError(t, kv.Set(ctx, "bad", []byte("{corrupt")))

	_, err := manager.Retrieve(ctx, "bad")
	assert.ErrorIs(t, err, ErrStore)
}

func TestGeneratedIDsAreUnique(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	seen := make(map[string]struct{})
	for i := 0; i < 100; i++ {
		id, err := manager.Create(ctx, "hello", message.OneTime())
		require.NoError(t, err)

		_, duplicate := seen[id]
		require.False(t, duplicate, "duplicate id %s", id)
		seen[id] = struct{}{}
	}
}

func TestConcurrentConsumeSingleWinner(t *testing.T) {
	ctx := context.Background()
	manager, _ := newTestManager()

	id, err := manager.Create(ctx, "hello", message.OneTime())
	require.NoError(t, err)

	const workers = 16

	var wg sync.WaitGroup
	var mu sync.Mutex
	winners := 0

	for i := 0; i < workers; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()

			_, err := manager.Consume(ctx, id)
			if err == nil {
				mu.Lock()
				winners++
				mu.Unlock()
				return
			}

			assert.ErrorIs(t, err, ErrNotFound)
		}()
	}

	wg.Wait()
	assert.Equal(t, 1, winners)
}
