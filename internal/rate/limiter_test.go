package rate

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/jonboulle/clockwork"
	rdb "github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/require"
)

func TestMemoryLimiter_FixedWindow(t *testing.T) {
	clock := clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 10, 0, time.UTC))
	l := NewMemoryLimiter(2, time.Minute, clock)
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "1.2.3.4")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.Equal(t, 50*time.Second, res.RetryAfter)

	other, err := l.Allow(ctx, "5.6.7.8")
	require.NoError(t, err)
	require.True(t, other.Allowed)

	clock.Advance(time.Minute)
	res, err = l.Allow(ctx, "1.2.3.4")
	require.NoError(t, err)
	require.True(t, res.Allowed)
	require.EqualValues(t, 1, res.Remaining)
}

func TestRedisLimiter_FixedWindow(t *testing.T) {
	mr := miniredis.RunT(t)
	client := rdb.NewClient(&rdb.Options{Addr: mr.Addr()})
	defer client.Close()

	l := NewRedisLimiter(client, "authemu:rl:", 2, time.Minute)
	l.Clock = clockwork.NewFakeClockAt(time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC))
	ctx := context.Background()

	for i := 0; i < 2; i++ {
		res, err := l.Allow(ctx, "ip")
		require.NoError(t, err)
		require.True(t, res.Allowed)
	}
	res, err := l.Allow(ctx, "ip")
	require.NoError(t, err)
	require.False(t, res.Allowed)
	require.EqualValues(t, 3, res.CurrentHits)
	require.Positive(t, res.RetryAfter)

	keys := mr.Keys()
	require.Len(t, keys, 1)
	require.Positive(t, mr.TTL(keys[0]))
}
