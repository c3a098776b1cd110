package client_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/gotrader/schwab/client"
)

func TestNewRateLimiter_ZeroAndNegativeDisable(t *testing.T) {
	tests := []struct {
		name      string
		perMinute int
	}{
		{"zero limit", 0},
		{"negative limit", -100},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			rl := client.NewRateLimiter(tt.perMinute)
			assert.Nil(t, rl)
			// A nil limiter never blocks.
			require.NoError(t, rl.Wait(context.Background()))
		})
	}
}

func TestRateLimiter_AllowsBurstThenDelays(t *testing.T) {
	// 600 per minute is 10 per second, so the bucket starts with 10 tokens
	// and the 11th call has to wait roughly 100ms for a refill.
	rl := client.NewRateLimiter(600)

	start := time.Now()
	for i := 0; i < 11; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	elapsed := time.Since(start)

	assert.GreaterOrEqual(t, elapsed, 50*time.Millisecond, "the call after the burst must be delayed")
	assert.Less(t, elapsed, 2*time.Second)
}

func TestRateLimiter_BurstWithinBucketIsImmediate(t *testing.T) {
	rl := client.NewRateLimiter(600)

	start := time.Now()
	for i := 0; i < 10; i++ {
		require.NoError(t, rl.Wait(context.Background()))
	}
	assert.Less(t, time.Since(start), 50*time.Millisecond, "calls inside the bucket must not block")
}

func TestRateLimiter_CancelledContextUnblocksWait(t *testing.T) {
	// 60 per minute leaves a single-token bucket; the second wait blocks for
	// about a second unless the context ends it early.
	rl := client.NewRateLimiter(60)
	require.NoError(t, rl.Wait(context.Background()))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	err := rl.Wait(ctx)
	require.Error(t, err)
	assert.ErrorIs(t, err, context.DeadlineExceeded)
	assert.Less(t, time.Since(start), 500*time.Millisecond)
}
