package api

import (
	"net/http"
	"time"

	chimiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"github.com/rs/zerolog"

	"github.com/xeptore/spotwrap/ctxutil"
	"github.com/xeptore/spotwrap/log"
)

const requestIDHeader = "X-Request-Id"

// requestID tags the request with an id, taken from the incoming header when
// present, and puts a logger carrying it into the request context. The
// request is logged once it completes.
func (h *handler) requestID(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := r.Header.Get(requestIDHeader)
		if _, err := uuid.Parse(id); nil != err {
			id = uuid.NewString()
		}
		w.Header().Set(requestIDHeader, id)

		logger := h.logger.With().Str("request_id", id).Logger()
		ww := chimiddleware.NewWrapResponseWriter(w, r.ProtoMajor)
		start := time.Now()
		defer func() {
			logger.
				Info().
				Str("method", r.Method).
				Str("path", r.URL.Path).
				Str("remote_addr", r.RemoteAddr).
				Int("status", ww.Status()).
				Int("bytes", ww.BytesWritten()).
				Dur("elapsed", time.Since(start)).
				Msg("Request served")
		}()

		next.ServeHTTP(ww, r.WithContext(logger.WithContext(r.Context())))
	})
}

func (h *handler) recoverer(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			rec := recover()
			if nil == rec {
				return
			}
			if rec == http.ErrAbortHandler { //nolint:errorlint
				panic(rec)
			}
			logger := zerolog.Ctx(r.Context())
			logger.Error().Func(log.Panic(rec)).Msg("Recovered from handler panic")
			writeJSON(w, logger, http.StatusInternalServerError, errorBody{
				Error:     http.StatusText(http.StatusInternalServerError),
				RequestID: w.Header().Get(requestIDHeader),
			})
		}()
		next.ServeHTTP(w, r)
	})
}

func withTimeout(timeout time.Duration) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ctx, cancel := ctxutil.WithOptionalTimeout(r.Context(), timeout)
			defer cancel()
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}
