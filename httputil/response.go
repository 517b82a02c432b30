package httputil

import (
	"context"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"

	"github.com/tidwall/gjson"
	"github.com/xeptore/flaw/v8"

	"github.com/xeptore/spotwrap/errutil"
)

func readResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := io.ReadAll(resp.Body)
	if nil != err {
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded):
			return nil, context.DeadlineExceeded
		default:
			flawP := flaw.P{"err_debug_tree": errutil.Tree(err).FlawP()}
			return nil, flaw.From(fmt.Errorf("failed to read response body: %v", err)).Append(flawP)
		}
	}
	if len(respBody) == 0 {
		return nil, io.EOF
	}
	return respBody, nil
}

// ReadResponseBody reads the whole body and treats an empty one as a flaw.
func ReadResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := readResponseBody(ctx, resp)
	if nil != err {
		if errors.Is(err, io.EOF) {
			return nil, flaw.From(errors.New("unexpected empty response body"))
		}
		return nil, err
	}
	return respBody, nil
}

// ReadOptionalResponseBody is like ReadResponseBody but an empty body yields
// nil bytes without an error.
func ReadOptionalResponseBody(ctx context.Context, resp *http.Response) ([]byte, error) {
	respBody, err := readResponseBody(ctx, resp)
	if nil != err {
		if errors.Is(err, io.EOF) {
			return nil, nil
		}
		return nil, err
	}
	return respBody, nil
}

const (
	tokenExpiredMessage = "The access token expired"
	tokenInvalidMessage = "Invalid access token"
)

func unauthorizedMessage(b []byte) (string, error) {
	if !gjson.ValidBytes(b) {
		flawP := flaw.P{"response_body": string(b)}
		return "", flaw.From(errors.New("failed to decode 401 status code response body: invalid json")).Append(flawP)
	}
	return gjson.GetBytes(b, "error.message").String(), nil
}

// IsTokenExpiredUnauthorizedResponse reports whether a 401 body says the
// bearer token reached its expiry.
func IsTokenExpiredUnauthorizedResponse(b []byte) (bool, error) {
	msg, err := unauthorizedMessage(b)
	if nil != err {
		return false, err
	}
	return msg == tokenExpiredMessage, nil
}

// IsTokenInvalidUnauthorizedResponse reports whether a 401 body says the
// bearer token was not recognized at all.
func IsTokenInvalidUnauthorizedResponse(b []byte) (bool, error) {
	msg, err := unauthorizedMessage(b)
	if nil != err {
		return false, err
	}
	return msg == tokenInvalidMessage, nil
}

// RetryAfter parses the Retry-After header in its delta-seconds form. It
// returns zero when the header is missing or malformed.
func RetryAfter(resp *http.Response) time.Duration {
	v := resp.Header.Get("Retry-After")
	if v == "" {
		return 0
	}
	secs, err := strconv.Atoi(v)
	if nil != err || secs < 0 {
		return 0
	}
	return time.Duration(secs) * time.Second
}
