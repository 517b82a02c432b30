package main

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/urfave/cli/v2"

	"github.com/xeptore/spotwrap/api"
	"github.com/xeptore/spotwrap/config"
	"github.com/xeptore/spotwrap/ctxutil"
	"github.com/xeptore/spotwrap/log"
)

func serve(cliCtx *cli.Context) error {
	ctx, cancel := signal.NotifyContext(cliCtx.Context, syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	bootLogger := log.NewPretty(os.Stderr)
	cfg, err := loadConfig(cliCtx, bootLogger)
	if nil != err {
		return err
	}
	logger := log.New(os.Stdout, cfg.Log.Pretty, cfg.Log.Level)

	a, err := newApp(cfg, logger)
	if nil != err {
		return err
	}

	router := api.NewRouter(
		a.service,
		api.Options{
			CORSAllowedOrigins: cfg.HTTP.CORSAllowedOrigins,
			RequestsPerMinute:  cfg.HTTP.RequestsPerMinute,
			Timeout:            config.AggregationTimeout,
			Gatherer:           a.registry,
		},
		logger,
	)

	// In-flight requests get a grace period after the shutdown signal before
	// their contexts are canceled.
	requestsCtx, cancelRequests := ctxutil.WithDelayedTimeout(ctx, config.ServerShutdownGrace)
	defer cancelRequests()

	srv := &http.Server{ //nolint:exhaustruct
		Addr:              cfg.HTTP.ListenAddress,
		Handler:           router,
		ReadHeaderTimeout: config.ServerReadHeaderTimeout,
		BaseContext:       func(net.Listener) context.Context { return requestsCtx },
	}

	errs := make(chan error, 1)
	go func() {
		logger.Info().Str("address", cfg.HTTP.ListenAddress).Msg("Starting HTTP server")
		if err := srv.ListenAndServe(); nil != err && !errors.Is(err, http.ErrServerClosed) {
			errs <- err
		}
		close(errs)
	}()

	select {
	case err := <-errs:
		if nil != err {
			return fmt.Errorf("failed to serve: %v", err)
		}
		return nil
	case <-ctx.Done():
	}

	logger.Info().Msg("Shutting down HTTP server")
	shutdownCtx, cancelShutdown := context.WithTimeout(context.WithoutCancel(ctx), config.ServerShutdownGrace)
	defer cancelShutdown()
	if err := srv.Shutdown(shutdownCtx); nil != err {
		return fmt.Errorf("failed to shut down HTTP server gracefully: %v", err)
	}
	logger.Info().Msg("HTTP server stopped")
	return nil
}
