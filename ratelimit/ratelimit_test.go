package ratelimit_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/spotwrap/ratelimit"
)

func TestLimiter(t *testing.T) {
	t.Parallel()

	t.Run("Disabled", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(0, 0)
		assert.Nil(t, l)
		require.NoError(t, l.Wait(t.Context()))
	})

	t.Run("Paces", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(20, 1)
		start := time.Now()
		for range 3 {
			require.NoError(t, l.Wait(t.Context()))
		}
		assert.GreaterOrEqual(t, time.Since(start), 90*time.Millisecond)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		t.Parallel()
		l := ratelimit.New(0.001, 1)
		require.NoError(t, l.Wait(t.Context()))
		ctx, cancel := context.WithCancel(t.Context())
		cancel()
		require.Error(t, l.Wait(ctx))
	})
}

func TestBatchConcurrency(t *testing.T) {
	t.Parallel()
	assert.Equal(t, 1, ratelimit.BatchConcurrency(8, 1))
	assert.Equal(t, 1, ratelimit.BatchConcurrency(1, 8))
	assert.Equal(t, 3, ratelimit.BatchConcurrency(8, 3))
	assert.Equal(t, 4, ratelimit.BatchConcurrency(4, 10))
}
