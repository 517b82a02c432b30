package main

import (
	"errors"
	"os"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/spotwrap/aggregate"
	"github.com/xeptore/spotwrap/config"
	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/metrics"
	"github.com/xeptore/spotwrap/ratelimit"
	"github.com/xeptore/spotwrap/spotify"
	"github.com/xeptore/spotwrap/spotify/auth"
)

type app struct {
	service  *aggregate.Service
	registry *prometheus.Registry
}

func newApp(cfg *config.Config, logger zerolog.Logger) (*app, error) {
	var (
		clientID     = os.Getenv("SPOTIFY_CLIENT_ID")
		clientSecret = os.Getenv("SPOTIFY_CLIENT_SECRET")
	)
	if clientID == "" || clientSecret == "" {
		return nil, errors.New("SPOTIFY_CLIENT_ID and SPOTIFY_CLIENT_SECRET environment variables are required")
	}

	m := metrics.New()
	registry := prometheus.NewRegistry()
	if err := m.Register(registry); nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(err).Append(flawP)
	}
	registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}), //nolint:exhaustruct
	)

	tokens := auth.NewManager(
		auth.NewClientCredentials(clientID, clientSecret, cfg.Upstream.TokenURL),
		config.TokenExpiryLeeway,
		m.TokenRefreshes,
		logger,
	)
	client := spotify.NewClient(
		tokens,
		spotify.Options{
			BaseURL:     cfg.Upstream.APIBaseURL,
			Market:      cfg.Upstream.Market,
			SearchLimit: cfg.Paging.SearchLimit,
			Limiter:     ratelimit.New(cfg.Upstream.RequestsPerSecond, cfg.Upstream.RequestsBurst),
			Requests:    m.UpstreamRequests,
		},
		logger,
	)
	service := aggregate.NewService(client, aggregate.SizesFromConfig(cfg), m.AggregationDuration, logger)

	return &app{service: service, registry: registry}, nil
}
