package batch_test

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/spotwrap/batch"
)

type record struct {
	ID string
}

func recordKey(r *record) string { return r.ID }

func ids(n int) []string {
	out := make([]string, n)
	for i := range out {
		out[i] = fmt.Sprintf("id-%03d", i)
	}
	return out
}

type recorder struct {
	mu     sync.Mutex
	chunks [][]string
}

func (r *recorder) lookup(_ context.Context, chunk []string) ([]*record, error) {
	r.mu.Lock()
	r.chunks = append(r.chunks, slices.Clone(chunk))
	r.mu.Unlock()
	out := make([]*record, len(chunk))
	for i, id := range chunk {
		out[i] = &record{ID: id}
	}
	return out, nil
}

func TestResolve(t *testing.T) {
	t.Parallel()

	t.Run("ChunksCoverInputInOrder", func(t *testing.T) {
		t.Parallel()
		cases := []struct {
			n, size, expectedChunks int
		}{
			{0, 20, 0},
			{1, 20, 1},
			{20, 20, 1},
			{65, 20, 4},
			{135, 50, 3},
			{100, 50, 2},
		}
		for _, c := range cases {
			var rec recorder
			input := ids(c.n)
			out, err := batch.Resolve(t.Context(), input, c.size, rec.lookup, recordKey)
			require.NoError(t, err)
			require.Len(t, rec.chunks, c.expectedChunks, "n=%d size=%d", c.n, c.size)
			var flat []string
			for _, chunk := range rec.chunks {
				assert.LessOrEqual(t, len(chunk), c.size)
				assert.NotEmpty(t, chunk)
				flat = append(flat, chunk...)
			}
			if c.n > 0 {
				assert.Equal(t, input, flat)
			}
			assert.Len(t, out, c.n)
		}
	})

	t.Run("MergesByRecordKeyNotPosition", func(t *testing.T) {
		t.Parallel()
		lookup := func(_ context.Context, chunk []string) ([]*record, error) {
			// Reversed, with a hole and an entry nobody asked for.
			out := []*record{nil, {ID: "extra"}}
			for i := len(chunk) - 1; i > 0; i-- {
				out = append(out, &record{ID: chunk[i]})
			}
			return out, nil
		}
		out, err := batch.Resolve(t.Context(), []string{"a", "b", "c"}, 3, lookup, recordKey)
		require.NoError(t, err)
		keys := make([]string, 0, len(out))
		for k, v := range out {
			assert.Equal(t, k, v.ID)
			keys = append(keys, k)
		}
		assert.ElementsMatch(t, []string{"extra", "b", "c"}, keys)
	})

	t.Run("NullSlotsAndEmptyKeysAreSkipped", func(t *testing.T) {
		t.Parallel()
		lookup := func(_ context.Context, chunk []string) ([]*record, error) {
			return []*record{{ID: chunk[0]}, nil, {ID: ""}}, nil
		}
		out, err := batch.Resolve(t.Context(), []string{"a", "b", "c"}, 50, lookup, recordKey)
		require.NoError(t, err)
		assert.Len(t, out, 1)
		assert.Contains(t, out, "a")
	})

	t.Run("ErrorAbortsWithoutPartialResult", func(t *testing.T) {
		t.Parallel()
		errBoom := errors.New("boom")
		var calls int
		lookup := func(_ context.Context, chunk []string) ([]*record, error) {
			calls++
			if calls == 2 {
				return nil, errBoom
			}
			return []*record{{ID: chunk[0]}}, nil
		}
		out, err := batch.Resolve(t.Context(), ids(30), 10, lookup, recordKey)
		require.ErrorIs(t, err, errBoom)
		assert.Nil(t, out)
		assert.Equal(t, 2, calls)
	})

	t.Run("WrappedContextErrorsReturnedBare", func(t *testing.T) {
		t.Parallel()
		for _, target := range []error{context.DeadlineExceeded, context.Canceled} {
			lookup := func(context.Context, []string) ([]*record, error) {
				return nil, fmt.Errorf("failed to look up chunk: %w", target)
			}
			_, err := batch.Resolve(t.Context(), ids(3), 2, lookup, recordKey)
			require.Equal(t, target, err)
		}
	})

	t.Run("FlawCarriesChunkPayload", func(t *testing.T) {
		t.Parallel()
		var calls int
		lookup := func(_ context.Context, chunk []string) ([]*record, error) {
			calls++
			if calls == 2 {
				return nil, flaw.From(errors.New("upstream returned garbage"))
			}
			return []*record{{ID: chunk[0]}}, nil
		}
		_, err := batch.Resolve(t.Context(), ids(25), 10, lookup, recordKey)
		var flawErr *flaw.Flaw
		require.ErrorAs(t, err, &flawErr)
		require.NotEmpty(t, flawErr.Records)
		payload := flawErr.Records[len(flawErr.Records)-1].Payload
		assert.Equal(t, 1, payload["batch"])
		assert.Equal(t, 3, payload["num_batches"])
		assert.Equal(t, ids(25)[10:20], payload["ids"])
	})

	t.Run("InvalidSize", func(t *testing.T) {
		t.Parallel()
		var rec recorder
		_, err := batch.Resolve(t.Context(), ids(3), 0, rec.lookup, recordKey)
		require.Error(t, err)
		assert.Empty(t, rec.chunks)
	})
}

func TestResolveConcurrency(t *testing.T) {
	t.Parallel()

	t.Run("SameResultAsSequential", func(t *testing.T) {
		t.Parallel()
		var seq, par recorder
		sequential, err := batch.Resolve(t.Context(), ids(135), 50, seq.lookup, recordKey)
		require.NoError(t, err)
		parallel, err := batch.Resolve(t.Context(), ids(135), 50, par.lookup, recordKey, batch.Concurrency(3))
		require.NoError(t, err)
		assert.Equal(t, sequential, parallel)
		assert.Len(t, par.chunks, 3)
	})

	t.Run("BoundsInFlightLookups", func(t *testing.T) {
		t.Parallel()
		var inFlight, peak atomic.Int32
		lookup := func(_ context.Context, chunk []string) ([]*record, error) {
			n := inFlight.Add(1)
			for {
				p := peak.Load()
				if n <= p || peak.CompareAndSwap(p, n) {
					break
				}
			}
			time.Sleep(20 * time.Millisecond)
			inFlight.Add(-1)
			return []*record{{ID: chunk[0]}}, nil
		}
		out, err := batch.Resolve(t.Context(), ids(100), 10, lookup, recordKey, batch.Concurrency(2))
		require.NoError(t, err)
		assert.Len(t, out, 10)
		assert.LessOrEqual(t, peak.Load(), int32(2))
	})

	t.Run("FirstErrorWins", func(t *testing.T) {
		t.Parallel()
		errBoom := errors.New("boom")
		lookup := func(ctx context.Context, chunk []string) ([]*record, error) {
			if chunk[0] == "id-000" {
				return nil, errBoom
			}
			select {
			case <-ctx.Done():
				return nil, ctx.Err()
			case <-time.After(time.Second):
				return []*record{{ID: chunk[0]}}, nil
			}
		}
		out, err := batch.Resolve(t.Context(), ids(40), 10, lookup, recordKey, batch.Concurrency(4))
		require.ErrorIs(t, err, errBoom)
		assert.Nil(t, out)
	})
}
