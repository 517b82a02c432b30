// Package paging drives offset based collection endpoints to exhaustion.
package paging

import (
	"context"
	"errors"
	"fmt"

	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/must"
)

// ErrTooManyPages is returned when a collection has not reached its declared
// total after the maximum number of page fetches.
var ErrTooManyPages = errors.New("too many pages")

// Page is one slice of an upstream collection. Offset+len(Items) is not
// guaranteed to stay within Total.
type Page[T any] struct {
	Items  []T `json:"items"`
	Total  int `json:"total"`
	Offset int `json:"offset"`
	Limit  int `json:"limit"`
}

type FetchFunc[T any] func(ctx context.Context, offset, limit int) (*Page[T], error)

// Collect fetches pages at offsets 0, pageSize, 2*pageSize and so on, and
// stops after the page whose span reaches the total declared by that same
// page. At least one page is always fetched. Items are returned in page order.
//
// A total that changes between pages is logged but otherwise trusted as is.
func Collect[T any](ctx context.Context, pageSize, maxPages int, fetch FetchFunc[T]) ([]T, error) {
	if pageSize < 1 {
		return nil, flaw.From(fmt.Errorf("invalid page size: %d", pageSize))
	}
	if maxPages < 1 {
		return nil, flaw.From(fmt.Errorf("invalid max pages: %d", maxPages))
	}

	logger := zerolog.Ctx(ctx)
	var (
		items     []T
		lastTotal int
	)
	flawP := flaw.P{"page_size": pageSize, "max_pages": maxPages}
	for i := 0; ; i++ {
		offset := i * pageSize
		flawP["offset"] = offset
		if i == maxPages {
			logger.Warn().Int("offset", offset).Int("last_total", lastTotal).Int("max_pages", maxPages).Msg("Collection did not reach its declared total within page limit")
			return nil, ErrTooManyPages
		}

		page, err := fetch(ctx, offset, pageSize)
		if nil != err {
			if errutil.IsContext(ctx) {
				return nil, ctx.Err()
			}
			if err, ok := errutil.IsAny(err, context.DeadlineExceeded, context.Canceled); ok {
				return nil, err
			}
			if errutil.IsFlaw(err) {
				return nil, must.BeFlaw(err).Append(flawP)
			}
			return nil, err
		}
		if nil == page {
			return nil, flaw.From(errors.New("page fetch returned no page")).Append(flawP)
		}

		if i > 0 && page.Total != lastTotal {
			logger.Warn().Int("offset", offset).Int("previous_total", lastTotal).Int("total", page.Total).Msg("Collection total changed between pages")
		}
		lastTotal = page.Total
		flawP["last_total"] = lastTotal

		items = append(items, page.Items...)

		if offset+pageSize >= page.Total {
			break
		}
	}

	return items, nil
}
