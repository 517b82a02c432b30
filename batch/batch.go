// Package batch resolves identifier lists through "get several" style
// lookups that accept a bounded number of ids per call.
package batch

import (
	"context"
	"fmt"
	"sync"

	"github.com/rs/zerolog"
	"github.com/samber/lo"
	"github.com/xeptore/flaw/v8"
	"golang.org/x/sync/errgroup"

	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/mathutil"
	"github.com/xeptore/spotwrap/must"
	"github.com/xeptore/spotwrap/ratelimit"
)

// LookupFunc fetches the records for one chunk of ids. The returned slice
// may be shorter than ids, reordered, or contain nil slots.
type LookupFunc[T any] func(ctx context.Context, ids []string) ([]*T, error)

// KeyFunc extracts the record's own identifier.
type KeyFunc[T any] func(*T) string

type options struct {
	concurrency int
}

type Option func(*options)

// Concurrency allows up to n chunk lookups in flight at once.
func Concurrency(n int) Option {
	return func(o *options) {
		o.concurrency = n
	}
}

// Resolve splits ids into chunks of at most size, preserving order, issues
// one lookup per chunk and merges the returned records by their own key. Nil
// records and records with an empty key are skipped. Any lookup error aborts
// the whole resolution.
func Resolve[T any](ctx context.Context, ids []string, size int, lookup LookupFunc[T], key KeyFunc[T], opts ...Option) (map[string]*T, error) {
	if size < 1 {
		return nil, flaw.From(fmt.Errorf("invalid batch size: %d", size))
	}

	o := options{concurrency: 1}
	for _, opt := range opts {
		opt(&o)
	}

	var (
		numBatches = mathutil.CeilInts(len(ids), size)
		chunks     = lo.Chunk(ids, size)
		out        = make(map[string]*T, len(ids))
		mu         sync.Mutex
	)

	merge := func(records []*T) {
		mu.Lock()
		defer mu.Unlock()
		for _, r := range records {
			if nil == r {
				continue
			}
			if k := key(r); k != "" {
				out[k] = r
			}
		}
	}

	resolveChunk := func(ctx context.Context, i int, chunk []string) error {
		records, err := lookup(ctx, chunk)
		if nil != err {
			if errutil.IsContext(ctx) {
				return ctx.Err()
			}
			if err, ok := errutil.IsAny(err, context.DeadlineExceeded, context.Canceled); ok {
				return err
			}
			if errutil.IsFlaw(err) {
				flawP := flaw.P{"batch": i, "num_batches": numBatches, "batch_size": size, "ids": chunk}
				return must.BeFlaw(err).Append(flawP)
			}
			return err
		}
		merge(records)
		return nil
	}

	concurrency := ratelimit.BatchConcurrency(o.concurrency, numBatches)
	zerolog.Ctx(ctx).Trace().Int("ids", len(ids)).Int("batches", numBatches).Int("concurrency", concurrency).Msg("Resolving batches")

	if concurrency == 1 {
		for i, chunk := range chunks {
			if err := resolveChunk(ctx, i, chunk); nil != err {
				return nil, err
			}
		}
		return out, nil
	}

	wg, wgCtx := errgroup.WithContext(ctx)
	wg.SetLimit(concurrency)
	for i, chunk := range chunks {
		wg.Go(func() error {
			return resolveChunk(wgCtx, i, chunk)
		})
	}
	if err := wg.Wait(); nil != err {
		if errutil.IsContext(ctx) {
			return nil, ctx.Err()
		}
		return nil, err
	}
	return out, nil
}
