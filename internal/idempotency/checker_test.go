package idempotency

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMemoryCheckerFirstAndDuplicate(t *testing.T) {
	ctx := context.Background()
	checker := NewMemoryChecker()

	first, err := checker.CheckAndSet(ctx, "abc", time.Hour)
	require.NoError(t, err)
	assert.True(t, first)

	second, err := checker.CheckAndSet(ctx, "abc", time.Hour)
	require.NoError(t, err)
	assert.False(t, second)

	// 不同消息互不影响
	other, err := checker.CheckAndSet(ctx, "def", time.Hour)
	require.NoError(t, err)
	assert.True(t, other)
}

func TestMemoryCheckerExpiry(t *testing.T) {
	ctx := context.Background()
	checker := NewMemoryChecker()

	now := time.Unix(1700000000, 0)
	checker.SetTimeProvider(func() time.Time { return now })

	first, err := checker.CheckAndSet(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, first)

	now = now.Add(2 * time.Minute)

	// 窗口过期后同一 ID 再次视为首次
	again, err := checker.CheckAndSet(ctx, "abc", time.Minute)
	require.NoError(t, err)
	assert.True(t, again)
}

func TestBuildKey(t *testing.T) {
	assert.Equal(t, "burn:notified:abc", buildKey("burn", "abc"))
}
