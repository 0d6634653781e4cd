package ratelimit

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func fixedMemoryLimiter(max int, window time.Duration, now *time.Time) *MemoryLimiter {
	l := NewMemoryLimiter(max, window)
	l.now = func() time.Time { return *now }
	return l
}

func TestMemoryLimiterFixedWindow(t *testing.T) {
	now := time.UnixMilli(10_000)
	l := fixedMemoryLimiter(10, time.Second, &now)
	ctx := context.Background()

	for i := 1; i <= 10; i++ {
		res, err := l.Allow(ctx, "conn-1")
		require.NoError(t, err)
		assert.True(t, res.Allowed, "hit %d", i)
		assert.Equal(t, int64(10-i), res.Remaining)
	}
	res, err := l.Allow(ctx, "conn-1")
	require.NoError(t, err)
	assert.False(t, res.Allowed)
	assert.Equal(t, time.Second, res.RetryAfter)

	// other connections have their own budget
	res, err = l.Allow(ctx, "conn-2")
	require.NoError(t, err)
	assert.True(t, res.Allowed)

	// next window resets
	now = now.Add(time.Second)
	res, err = l.Allow(ctx, "conn-1")
	require.NoError(t, err)
	assert.True(t, res.Allowed)
	assert.Equal(t, int64(1), res.CurrentHits)
}

func TestRuleOnlyCoversNamedCalls(t *testing.T) {
	now := time.UnixMilli(0)
	r := &Rule{
		Names:   []string{"lights.setColourMode", "lights"},
		Limiter: fixedMemoryLimiter(2, time.Second, &now),
	}
	ctx := context.Background()

	assert.NoError(t, r.Check(ctx, "c", "lights.setColourMode"))
	assert.NoError(t, r.Check(ctx, "c", "lights"))
	err := r.Check(ctx, "c", "lights.setColourMode")
	assert.ErrorIs(t, err, ErrLimited)

	for i := 0; i < 20; i++ {
		assert.NoError(t, r.Check(ctx, "c", "blocks.sendInput"))
	}

	var nilRule *Rule
	assert.NoError(t, nilRule.Check(ctx, "c", "lights"))
}
