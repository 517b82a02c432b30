package spotify

import (
	"context"
	"errors"
	"fmt"

	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/metrics"
	"github.com/xeptore/spotwrap/must"
)

var (
	ErrNotFound        = errors.New("not found")
	ErrTooManyRequests = errors.New("too many requests")
	ErrBadRequest      = errors.New("bad request")

	errAuthExpired = errors.New("access token rejected")
)

func outcome(err error) string {
	switch {
	case nil == err:
		return metrics.OutcomeOk
	case errors.Is(err, errAuthExpired):
		return metrics.OutcomeAuthExpired
	case errors.Is(err, ErrNotFound):
		return metrics.OutcomeNotFound
	case errors.Is(err, ErrTooManyRequests):
		return metrics.OutcomeRateLimited
	case errors.Is(err, ErrBadRequest):
		return metrics.OutcomeBadRequest
	default:
		return metrics.OutcomeError
	}
}

// withCloseErr merges a response body close failure into err, which is
// whatever the request handling returned so far.
func withCloseErr(ctx context.Context, err, closeErr error) error {
	switch {
	case nil == err:
		return closeErr
	case errutil.IsContext(ctx):
		return flaw.From(errors.New("context was ended")).Join(closeErr)
	case errors.Is(err, context.DeadlineExceeded):
		return flaw.From(errors.New("timeout has reached")).Join(closeErr)
	case errutil.IsFlaw(err):
		return must.BeFlaw(err).Join(closeErr)
	default:
		return flaw.From(fmt.Errorf("received %v", err)).Join(closeErr)
	}
}
