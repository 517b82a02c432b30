package ctxutil_test

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/spotwrap/ctxutil"
)

func TestWithDelayedTimeout(t *testing.T) {
	t.Parallel()

	t.Run("initially_active", func(t *testing.T) {
		t.Parallel()

		parentCtx, parentCancel := context.WithCancel(t.Context())
		defer parentCancel()

		ctx, cancel := ctxutil.WithDelayedTimeout(parentCtx, time.Second)
		defer cancel()

		select {
		case <-ctx.Done():
			assert.Fail(t, "expected returned context to be active initially")
		default:
		}
	})

	t.Run("cancels_after_delay", func(t *testing.T) {
		t.Parallel()

		parentCtx, parentCancel := context.WithCancel(t.Context())
		defer parentCancel()

		waitDur := 500 * time.Millisecond

		ctx, cancel := ctxutil.WithDelayedTimeout(parentCtx, waitDur)
		defer cancel()

		start := time.Now()
		parentCancel()

		select {
		case <-ctx.Done():
			assert.Fail(t, "expected returned context to remain active immediately after parent cancellation")
		default:
		}

		select {
		case <-ctx.Done():
			assert.GreaterOrEqual(t, time.Since(start), waitDur)
		case <-time.After(waitDur + time.Second):
			assert.Fail(t, "expected returned context to be canceled after the delay")
		}
	})

	t.Run("own_cancel", func(t *testing.T) {
		t.Parallel()

		ctx, cancel := ctxutil.WithDelayedTimeout(t.Context(), time.Hour)
		cancel()
		<-ctx.Done()
		require.ErrorIs(t, ctx.Err(), context.Canceled)
	})
}

func TestWithOptionalTimeout(t *testing.T) {
	t.Parallel()

	ctx, cancel := ctxutil.WithOptionalTimeout(t.Context(), 0)
	defer cancel()
	_, ok := ctx.Deadline()
	assert.False(t, ok)

	ctx, cancel = ctxutil.WithOptionalTimeout(t.Context(), time.Minute)
	defer cancel()
	_, ok = ctx.Deadline()
	assert.True(t, ok)
}
