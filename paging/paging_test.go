package paging_test

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/spotwrap/paging"
)

type call struct {
	offset, limit int
}

// collection serves pages of consecutive ints out of a fixed total.
func collection(total int, calls *[]call) paging.FetchFunc[int] {
	return func(_ context.Context, offset, limit int) (*paging.Page[int], error) {
		*calls = append(*calls, call{offset, limit})
		var items []int
		for i := offset; i < min(offset+limit, total); i++ {
			items = append(items, i)
		}
		return &paging.Page[int]{Items: items, Total: total, Offset: offset, Limit: limit}, nil
	}
}

func TestCollect(t *testing.T) {
	t.Parallel()

	t.Run("CallCountAndOffsets", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			total, size int
			offsets     []int
		}{
			{0, 50, []int{0}},
			{1, 50, []int{0}},
			{50, 50, []int{0}},
			{51, 50, []int{0, 50}},
			{65, 50, []int{0, 50}},
			{135, 100, []int{0, 100}},
			{250, 50, []int{0, 50, 100, 150, 200}},
		}
		for _, c := range cases {
			var calls []call
			items, err := paging.Collect(t.Context(), c.size, 100, collection(c.total, &calls))
			require.NoError(t, err)
			assert.Len(t, items, c.total)
			offsets := make([]int, len(calls))
			for i, v := range calls {
				offsets[i] = v.offset
				assert.Equal(t, c.size, v.limit)
			}
			assert.Equal(t, c.offsets, offsets, "total=%d size=%d", c.total, c.size)
			for i, v := range items {
				assert.Equal(t, i, v)
			}
		}
	})

	t.Run("UnderDeliveringUpstream", func(t *testing.T) {
		t.Parallel()
		var calls int
		items, err := paging.Collect(t.Context(), 10, 100, func(_ context.Context, offset, limit int) (*paging.Page[int], error) {
			calls++
			// Every page is short and the last one is empty.
			if offset >= 20 {
				return &paging.Page[int]{Items: nil, Total: 30, Offset: offset, Limit: limit}, nil
			}
			return &paging.Page[int]{Items: []int{offset}, Total: 30, Offset: offset, Limit: limit}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 3, calls)
		assert.Equal(t, []int{0, 10}, items)
	})

	t.Run("LastSeenTotalWins", func(t *testing.T) {
		t.Parallel()
		var buf bytes.Buffer
		ctx := zerolog.New(&buf).WithContext(t.Context())
		totals := []int{100, 15}
		var calls int
		items, err := paging.Collect(ctx, 10, 100, func(_ context.Context, offset, limit int) (*paging.Page[int], error) {
			total := totals[calls]
			calls++
			return &paging.Page[int]{Items: []int{offset}, Total: total, Offset: offset, Limit: limit}, nil
		})
		require.NoError(t, err)
		assert.Equal(t, 2, calls)
		assert.Equal(t, []int{0, 10}, items)
		assert.Contains(t, buf.String(), "Collection total changed between pages")
	})

	t.Run("MaxPages", func(t *testing.T) {
		t.Parallel()
		var calls []call
		_, err := paging.Collect(t.Context(), 10, 3, collection(1000, &calls))
		require.ErrorIs(t, err, paging.ErrTooManyPages)
		assert.Len(t, calls, 3)
	})

	t.Run("FetchErrorAborts", func(t *testing.T) {
		t.Parallel()
		errBoom := errors.New("boom")
		var calls int
		items, err := paging.Collect(t.Context(), 10, 100, func(_ context.Context, offset, limit int) (*paging.Page[int], error) {
			calls++
			if offset > 0 {
				return nil, errBoom
			}
			return &paging.Page[int]{Items: []int{1}, Total: 30, Offset: offset, Limit: limit}, nil
		})
		require.ErrorIs(t, err, errBoom)
		assert.Nil(t, items)
		assert.Equal(t, 2, calls)
	})

	t.Run("CanceledContext", func(t *testing.T) {
		t.Parallel()
		ctx, cancel := context.WithCancel(t.Context())
		_, err := paging.Collect(ctx, 10, 100, func(ctx context.Context, _, _ int) (*paging.Page[int], error) {
			cancel()
			return nil, errors.New("request aborted")
		})
		require.ErrorIs(t, err, context.Canceled)
	})

	t.Run("WrappedContextErrorsReturnedBare", func(t *testing.T) {
		t.Parallel()
		for _, target := range []error{context.DeadlineExceeded, context.Canceled} {
			_, err := paging.Collect(t.Context(), 10, 100, func(context.Context, int, int) (*paging.Page[int], error) {
				return nil, fmt.Errorf("failed to fetch page: %w", target)
			})
			require.Equal(t, target, err)
		}
	})

	t.Run("FlawCarriesPageOffset", func(t *testing.T) {
		t.Parallel()
		_, err := paging.Collect(t.Context(), 10, 100, func(_ context.Context, offset, limit int) (*paging.Page[int], error) {
			if offset > 0 {
				return nil, flaw.From(errors.New("upstream returned garbage"))
			}
			return &paging.Page[int]{Items: []int{1}, Total: 30, Offset: offset, Limit: limit}, nil
		})
		var flawErr *flaw.Flaw
		require.ErrorAs(t, err, &flawErr)
		require.NotEmpty(t, flawErr.Records)
		payload := flawErr.Records[len(flawErr.Records)-1].Payload
		assert.Equal(t, 10, payload["offset"])
		assert.Equal(t, 30, payload["last_total"])
	})

	t.Run("InvalidPageSize", func(t *testing.T) {
		t.Parallel()
		var calls []call
		_, err := paging.Collect(t.Context(), 0, 100, collection(10, &calls))
		require.Error(t, err)
		assert.Empty(t, calls)
	})
}
