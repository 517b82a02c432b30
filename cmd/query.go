package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strings"
	"syscall"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/goccy/go-json"
	"github.com/rs/zerolog"
	"github.com/tidwall/pretty"
	"github.com/urfave/cli/v2"
	"github.com/xeptore/flaw/v8"
	"gopkg.in/matryer/try.v1"

	"github.com/xeptore/spotwrap/aggregate"
	"github.com/xeptore/spotwrap/config"
	"github.com/xeptore/spotwrap/ctxutil"
	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/log"
	"github.com/xeptore/spotwrap/paging"
	"github.com/xeptore/spotwrap/spotify"
	"github.com/xeptore/spotwrap/spotify/auth"
)

type operation func(ctx context.Context, svc *aggregate.Service, arg string) (any, error)

func opArtistTracks(ctx context.Context, svc *aggregate.Service, id string) (any, error) {
	return svc.ArtistTracks(ctx, id)
}

func opPlaylistTracks(ctx context.Context, svc *aggregate.Service, id string) (any, error) {
	return svc.PlaylistTracks(ctx, id)
}

func opArtistInfo(ctx context.Context, svc *aggregate.Service, id string) (any, error) {
	return svc.ArtistInfo(ctx, id)
}

func opSearchArtist(ctx context.Context, svc *aggregate.Service, q string) (any, error) {
	return svc.SearchArtist(ctx, q)
}

func opSearchAlbum(ctx context.Context, svc *aggregate.Service, q string) (any, error) {
	return svc.SearchAlbum(ctx, q)
}

func opSearchPlaylist(ctx context.Context, svc *aggregate.Service, q string) (any, error) {
	return svc.SearchPlaylist(ctx, q)
}

// query runs op once against the argument of the command and prints the
// result as indented JSON. Rate limited and timed out runs are retried as a
// whole.
func query(op operation) cli.ActionFunc {
	return func(cliCtx *cli.Context) error {
		ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
		defer cancel()

		logger := log.NewPretty(os.Stderr)
		cfg, err := loadConfig(cliCtx, logger)
		if nil != err {
			return err
		}
		logger = log.New(os.Stderr, true, cfg.Log.Level)

		arg := strings.Join(cliCtx.Args().Slice(), " ")
		a, err := newApp(cfg, logger)
		if nil != err {
			return err
		}

		res, err := runWithRetry(ctx, logger, func(ctx context.Context) (any, error) {
			jobCtx, cancel := ctxutil.WithOptionalTimeout(ctx, config.AggregationTimeout)
			defer cancel()
			return op(jobCtx, a.service, arg)
		})
		if nil != err {
			if errutil.IsFlaw(err) && cliCtx.Bool(flagDebug) {
				dumpFlaw(logger, err)
			}
			return err
		}

		out, err := json.Marshal(res)
		if nil != err {
			flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
			return flaw.From(fmt.Errorf("failed to marshal result: %v", err)).Append(flawP)
		}
		if _, err := os.Stdout.Write(pretty.Pretty(out)); nil != err {
			return fmt.Errorf("failed to write result: %v", err)
		}
		return nil
	}
}

func newRetryBackOff() backoff.BackOff {
	b := backoff.NewExponentialBackOff()
	b.InitialInterval = config.CommandRetryInitialDelay
	b.Multiplier = 2
	b.MaxInterval = 30 * time.Second
	b.MaxElapsedTime = 0
	return b
}

func runWithRetry(ctx context.Context, logger zerolog.Logger, job func(ctx context.Context) (any, error)) (res any, err error) {
	b := newRetryBackOff()
	err = try.Do(func(attempt int) (retry bool, err error) {
		attemptRemained := attempt < config.CommandRetryMaxAttempts
		res, err = job(ctx)
		if nil == err {
			return false, nil
		}
		switch {
		case errutil.IsContext(ctx):
			return false, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded), errors.Is(err, spotify.ErrTooManyRequests):
			if !attemptRemained {
				return false, err
			}
			delay := b.NextBackOff()
			logger.Warn().Err(err).Int("attempt", attempt).Dur("delay", delay).Msg("Retrying aggregation")
			select {
			case <-ctx.Done():
				return false, ctx.Err()
			case <-time.After(delay):
			}
			return true, err
		case errutil.IsFlaw(err):
			return false, err
		default:
			if err, ok := errutil.IsAny(
				err,
				spotify.ErrNotFound,
				spotify.ErrBadRequest,
				aggregate.ErrEmptyID,
				aggregate.ErrEmptyQuery,
				paging.ErrTooManyPages,
				auth.ErrUnauthorized,
				auth.ErrInvalidClient,
				context.Canceled,
			); ok {
				return false, err
			}
			panic(errutil.UnknownError(err))
		}
	})
	if nil != err {
		return nil, err
	}
	return res, nil
}
