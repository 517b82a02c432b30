// Package api exposes the aggregation service over HTTP.
package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/go-chi/httprate"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog"

	"github.com/xeptore/spotwrap/aggregate"
)

// Aggregator is implemented by *aggregate.Service.
type Aggregator interface {
	ArtistTracks(ctx context.Context, artistID string) (map[string]*aggregate.Track, error)
	PlaylistTracks(ctx context.Context, playlistID string) (map[string]*aggregate.Track, error)
	ArtistInfo(ctx context.Context, artistID string) (*aggregate.ArtistInfo, error)
	SearchArtist(ctx context.Context, query string) ([]*aggregate.Artist, error)
	SearchAlbum(ctx context.Context, query string) ([]*aggregate.Album, error)
	SearchPlaylist(ctx context.Context, query string) ([]*aggregate.Playlist, error)
}

type Options struct {
	CORSAllowedOrigins []string
	// RequestsPerMinute of zero disables per client rate limiting.
	RequestsPerMinute int
	// Timeout bounds every aggregation request. Zero means no bound.
	Timeout time.Duration
	// Gatherer backs the /metrics endpoint. It is not mounted when nil.
	Gatherer prometheus.Gatherer
}

type handler struct {
	svc    Aggregator
	logger zerolog.Logger
}

// NewRouter returns the routes of the facade.
func NewRouter(svc Aggregator, opts Options, logger zerolog.Logger) http.Handler {
	h := &handler{
		svc:    svc,
		logger: logger.With().Str("module", "api").Logger(),
	}

	r := chi.NewRouter()
	r.Use(chimiddleware.RealIP)
	r.Use(h.requestID)
	r.Use(h.recoverer)
	r.Use(cors.Handler(cors.Options{ //nolint:exhaustruct
		AllowedOrigins: opts.CORSAllowedOrigins,
		AllowedMethods: []string{http.MethodGet, http.MethodOptions},
		ExposedHeaders: []string{requestIDHeader},
		MaxAge:         86400,
	}))

	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	})
	if nil != opts.Gatherer {
		r.Handle("/metrics", promhttp.HandlerFor(opts.Gatherer, promhttp.HandlerOpts{})) //nolint:exhaustruct
	}

	r.Group(func(r chi.Router) {
		if opts.RequestsPerMinute > 0 {
			r.Use(httprate.LimitByRealIP(opts.RequestsPerMinute, time.Minute))
		}
		r.Use(withTimeout(opts.Timeout))

		r.Get("/search/artist", h.searchArtist)
		r.Get("/search/album", h.searchAlbum)
		r.Get("/search/playlist", h.searchPlaylist)
		r.Get("/artists/{id}/tracks", h.artistTracks)
		r.Get("/artists/{id}/info", h.artistInfo)
		r.Get("/playlists/{id}/tracks", h.playlistTracks)
	})

	return r
}

func (h *handler) searchArtist(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SearchArtist(r.Context(), r.URL.Query().Get("search"))
	h.respond(w, r, res, err)
}

func (h *handler) searchAlbum(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SearchAlbum(r.Context(), r.URL.Query().Get("search"))
	h.respond(w, r, res, err)
}

func (h *handler) searchPlaylist(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.SearchPlaylist(r.Context(), r.URL.Query().Get("search"))
	h.respond(w, r, res, err)
}

func (h *handler) artistTracks(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ArtistTracks(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, res, err)
}

func (h *handler) artistInfo(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.ArtistInfo(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, res, err)
}

func (h *handler) playlistTracks(w http.ResponseWriter, r *http.Request) {
	res, err := h.svc.PlaylistTracks(r.Context(), chi.URLParam(r, "id"))
	h.respond(w, r, res, err)
}

func (h *handler) respond(w http.ResponseWriter, r *http.Request, data any, err error) {
	if nil != err {
		h.fail(w, r, err)
		return
	}
	writeJSON(w, zerolog.Ctx(r.Context()), http.StatusOK, envelope{Data: data})
}
