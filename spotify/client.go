// Package spotify is a read-only client for the catalog endpoints of the
// Spotify Web API.
package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/goccy/go-json"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/spotwrap/config"
	"github.com/xeptore/spotwrap/constant"
	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/httputil"
	"github.com/xeptore/spotwrap/log"
	"github.com/xeptore/spotwrap/must"
	"github.com/xeptore/spotwrap/ratelimit"
	"github.com/xeptore/spotwrap/result"
	"github.com/xeptore/spotwrap/spotify/auth"
)

// TokenSource hands out bearer tokens and replaces rejected ones.
type TokenSource interface {
	AccessToken(ctx context.Context) (string, error)
	Refresh(ctx context.Context, rejected string) (string, error)
}

type Options struct {
	BaseURL     string
	Market      string
	SearchLimit int
	// Limiter may be nil.
	Limiter *ratelimit.Limiter
	// Requests may be nil.
	Requests *prometheus.CounterVec
}

type Client struct {
	baseURL     string
	market      string
	searchLimit int
	tokens      TokenSource
	limiter     *ratelimit.Limiter
	requests    *prometheus.CounterVec
	logger      zerolog.Logger
}

func NewClient(tokens TokenSource, opts Options, logger zerolog.Logger) *Client {
	baseURL := opts.BaseURL
	if baseURL == "" {
		baseURL = config.DefaultAPIBaseURL
	}
	market := opts.Market
	if market == "" {
		market = config.DefaultMarket
	}
	searchLimit := opts.SearchLimit
	if searchLimit < 1 {
		searchLimit = config.DefaultSearchLimit
	}
	return &Client{
		baseURL:     strings.TrimSuffix(baseURL, "/"),
		market:      market,
		searchLimit: searchLimit,
		tokens:      tokens,
		limiter:     opts.Limiter,
		requests:    opts.Requests,
		logger:      logger.With().Str("module", "spotify").Logger(),
	}
}

type request struct {
	endpoint string
	path     string
	query    url.Values
	timeout  time.Duration
}

// get performs req with the current token. A rejected token is refreshed and
// the identical request is attempted once more. A second rejection is fatal.
func (c *Client) get(ctx context.Context, req request) ([]byte, error) {
	token, err := c.tokens.AccessToken(ctx)
	if nil != err {
		return nil, err
	}

	res := c.attempt(ctx, req, token)
	switch res.Kind {
	case result.KindOk:
		return *res.Ok, nil
	case result.KindFailed:
		return nil, res.Err
	case result.KindAuthExpired:
	default:
		panic(fmt.Sprintf("unexpected result kind: %d", res.Kind))
	}

	c.logger.Debug().Str("endpoint", req.endpoint).Msg("Access token was rejected. Refreshing")
	token, err = c.tokens.Refresh(ctx, token)
	if nil != err {
		return nil, err
	}

	res = c.attempt(ctx, req, token)
	switch res.Kind {
	case result.KindOk:
		return *res.Ok, nil
	case result.KindFailed:
		return nil, res.Err
	case result.KindAuthExpired:
		c.logger.Error().Str("endpoint", req.endpoint).Msg("Refreshed access token was rejected too")
		return nil, auth.ErrUnauthorized
	default:
		panic(fmt.Sprintf("unexpected result kind: %d", res.Kind))
	}
}

func (c *Client) attempt(ctx context.Context, req request, token string) result.Of[[]byte] {
	b, err := c.do(ctx, req, token)
	if nil != c.requests {
		c.requests.WithLabelValues(req.endpoint, outcome(err)).Inc()
	}
	switch {
	case nil == err:
		return result.Ok(&b)
	case errors.Is(err, errAuthExpired):
		return result.AuthExpired[[]byte](err)
	default:
		return result.Err[[]byte](err)
	}
}

func (c *Client) do(ctx context.Context, req request, token string) (b []byte, err error) {
	if err := c.limiter.Wait(ctx); nil != err {
		if errutil.IsContext(ctx) {
			return nil, ctx.Err()
		}
		return nil, context.DeadlineExceeded
	}

	reqURL, err := url.Parse(c.baseURL + req.path)
	if nil != err {
		flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to parse %s URL: %v", req.endpoint, err)).Append(flawP)
	}
	reqURL.RawQuery = req.query.Encode()
	flawP := flaw.P{"url": reqURL.String(), "endpoint": req.endpoint}

	request, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL.String(), nil)
	if nil != err {
		if errutil.IsContext(ctx) {
			return nil, ctx.Err()
		}
		flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
		return nil, flaw.From(fmt.Errorf("failed to create %s request: %v", req.endpoint, err)).Append(flawP)
	}
	request.Header.Add("Authorization", "Bearer "+token)
	request.Header.Add("Accept", "application/json")
	request.Header.Add("User-Agent", constant.UserAgent+"/"+constant.Version)

	client := http.Client{Timeout: req.timeout} //nolint:exhaustruct
	resp, err := client.Do(request)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded), errutil.IsTimeout(err):
			return nil, context.DeadlineExceeded
		default:
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to send %s request: %v", req.endpoint, err)).Append(flawP)
		}
	}
	defer func() {
		if closeErr := resp.Body.Close(); nil != closeErr {
			flawP["err_debug_tree"] = errutil.Tree(closeErr).FlawP()
			closeErr = flaw.From(fmt.Errorf("failed to close %s response body: %v", req.endpoint, closeErr)).Append(flawP)
			err = withCloseErr(ctx, err, closeErr)
		}
	}()
	flawP["response"] = errutil.HTTPResponseFlawPayload(resp)

	switch code := resp.StatusCode; code {
	case http.StatusOK:
	case http.StatusUnauthorized:
		respBytes, err := httputil.ReadOptionalResponseBody(ctx, resp)
		if nil != err {
			return nil, err
		}
		c.logUnauthorized(req.endpoint, respBytes)
		return nil, errAuthExpired
	case http.StatusNotFound:
		return nil, ErrNotFound
	case http.StatusTooManyRequests:
		c.logger.Warn().Str("endpoint", req.endpoint).Dur("retry_after", httputil.RetryAfter(resp)).Msg("Upstream is rate limiting requests")
		return nil, ErrTooManyRequests
	case http.StatusBadRequest:
		respBytes, err := httputil.ReadOptionalResponseBody(ctx, resp)
		if nil != err {
			return nil, err
		}
		c.logger.Debug().Str("endpoint", req.endpoint).Str("url", reqURL.String()).Bytes("response_body", respBytes).Msg("Upstream rejected request")
		return nil, ErrBadRequest
	default:
		respBytes, err := httputil.ReadOptionalResponseBody(ctx, resp)
		if nil != err {
			return nil, err
		}
		flawP["response_body"] = string(respBytes)
		return nil, flaw.From(fmt.Errorf("unexpected status code: %d", code)).Append(flawP)
	}

	respBytes, err := httputil.ReadResponseBody(ctx, resp)
	if nil != err {
		if errutil.IsFlaw(err) {
			return nil, must.BeFlaw(err).Append(flawP)
		}
		return nil, err
	}
	return respBytes, nil
}

func (c *Client) logUnauthorized(endpoint string, body []byte) {
	reason := "unknown"
	if len(body) == 0 {
		reason = "empty"
	} else if expired, err := httputil.IsTokenExpiredUnauthorizedResponse(body); nil != err {
		c.logger.Warn().Func(log.Flaw(err)).Str("endpoint", endpoint).Msg("Failed to classify 401 response body")
	} else if expired {
		reason = "expired"
	} else if invalid, _ := httputil.IsTokenInvalidUnauthorizedResponse(body); invalid {
		reason = "invalid"
	}
	c.logger.Debug().Str("endpoint", endpoint).Str("reason", reason).Msg("Upstream rejected access token")
}

func decode[T any](b []byte, what string) (*T, error) {
	var out T
	if err := json.Unmarshal(b, &out); nil != err {
		flawP := flaw.P{"response_body": string(b), "err_debug_tree": errutil.Tree(err).FlawP()}
		return nil, flaw.From(fmt.Errorf("failed to decode %s response: %v", what, err)).Append(flawP)
	}
	return &out, nil
}
