package api

import (
	"context"
	"errors"
	"net/http"

	"github.com/goccy/go-json"
	"github.com/rs/zerolog"

	"github.com/xeptore/spotwrap/aggregate"
	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/log"
	"github.com/xeptore/spotwrap/spotify"
)

type envelope struct {
	Data any `json:"data"`
}

type errorBody struct {
	Error     string `json:"error"`
	RequestID string `json:"request_id,omitempty"`
}

// statusOf maps an aggregation error to the status reported downstream and
// whether it is the caller's fault.
func statusOf(err error) (status int, clientErr bool) {
	switch {
	case errors.Is(err, aggregate.ErrEmptyID),
		errors.Is(err, aggregate.ErrEmptyQuery),
		errors.Is(err, spotify.ErrBadRequest):
		return http.StatusBadRequest, true
	case errors.Is(err, spotify.ErrNotFound):
		return http.StatusNotFound, true
	case errors.Is(err, spotify.ErrTooManyRequests):
		return http.StatusTooManyRequests, false
	case errors.Is(err, context.DeadlineExceeded):
		return http.StatusGatewayTimeout, false
	default:
		return http.StatusBadGateway, false
	}
}

func (h *handler) fail(w http.ResponseWriter, r *http.Request, err error) {
	ctx := r.Context()
	logger := zerolog.Ctx(ctx)

	if errors.Is(err, context.Canceled) && errutil.IsContext(ctx) && !errors.Is(ctx.Err(), context.DeadlineExceeded) {
		logger.Debug().Msg("Client went away before aggregation finished")
		return
	}

	status, clientErr := statusOf(err)
	switch {
	case clientErr:
		logger.Debug().Err(err).Int("status", status).Msg("Rejected request")
	case errutil.IsFlaw(err):
		logger.Error().Func(log.Flaw(err)).Int("status", status).Msg("Aggregation failed")
	default:
		logger.Error().Err(err).Int("status", status).Msg("Aggregation failed")
	}

	msg := http.StatusText(status)
	if clientErr || status == http.StatusTooManyRequests {
		msg = err.Error()
	}
	writeJSON(w, logger, status, errorBody{Error: msg, RequestID: w.Header().Get(requestIDHeader)})
}

func writeJSON(w http.ResponseWriter, logger *zerolog.Logger, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); nil != err {
		logger.Error().Err(err).Msg("Failed to write response body")
	}
}
