package auth_test

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/oauth2"

	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/spotify/auth"
)

type fakeExchanger struct {
	calls  atomic.Int32
	ttl    time.Duration
	delay  time.Duration
	err    error
	prefix string
}

func (f *fakeExchanger) Exchange(ctx context.Context) (*oauth2.Token, error) {
	n := f.calls.Add(1)
	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if nil != f.err {
		return nil, f.err
	}
	return &oauth2.Token{ //nolint:exhaustruct
		AccessToken: f.prefix + string(rune('0'+n)),
		TokenType:   "Bearer",
		Expiry:      time.Now().Add(f.ttl),
	}, nil
}

func newCounter() prometheus.Counter {
	return prometheus.NewCounter(prometheus.CounterOpts{Name: "refreshes"}) //nolint:exhaustruct
}

func TestManagerAccessToken(t *testing.T) {
	t.Parallel()

	t.Run("ExchangesOnceWhileValid", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExchanger{ttl: time.Hour, prefix: "tok-"}
		refreshes := newCounter()
		m := auth.NewManager(ex, 30*time.Second, refreshes, zerolog.Nop())

		for range 3 {
			token, err := m.AccessToken(t.Context())
			require.NoError(t, err)
			assert.Equal(t, "tok-1", token)
		}
		assert.EqualValues(t, 1, ex.calls.Load())
		assert.InDelta(t, 1.0, testutil.ToFloat64(refreshes), 0)
	})

	t.Run("ReexchangesWithinLeeway", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExchanger{ttl: 10 * time.Second, prefix: "tok-"}
		m := auth.NewManager(ex, 30*time.Second, nil, zerolog.Nop())

		first, err := m.AccessToken(t.Context())
		require.NoError(t, err)
		second, err := m.AccessToken(t.Context())
		require.NoError(t, err)
		assert.NotEqual(t, first, second)
		assert.EqualValues(t, 2, ex.calls.Load())
	})

	t.Run("ExchangeFailureIsNotRetried", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExchanger{err: auth.ErrInvalidClient}
		m := auth.NewManager(ex, 0, nil, zerolog.Nop())

		_, err := m.AccessToken(t.Context())
		require.ErrorIs(t, err, auth.ErrInvalidClient)
		assert.EqualValues(t, 1, ex.calls.Load())
	})

	t.Run("ConcurrentCallersShareOneExchange", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExchanger{ttl: time.Hour, delay: 50 * time.Millisecond, prefix: "tok-"}
		m := auth.NewManager(ex, 0, nil, zerolog.Nop())

		var wg sync.WaitGroup
		tokens := make([]string, 16)
		for i := range tokens {
			wg.Add(1)
			go func() {
				defer wg.Done()
				token, err := m.AccessToken(t.Context())
				assert.NoError(t, err)
				tokens[i] = token
			}()
		}
		wg.Wait()

		assert.EqualValues(t, 1, ex.calls.Load())
		for _, token := range tokens {
			assert.Equal(t, "tok-1", token)
		}
	})

	t.Run("LateCallerReusesFinishedExchange", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExchanger{ttl: time.Hour, prefix: "tok-"}
		refreshes := newCounter()
		m := auth.NewManager(ex, 0, refreshes, zerolog.Nop())

		first, err := m.AccessToken(t.Context())
		require.NoError(t, err)

		// Reaching the exchange after it completed must not exchange again.
		late, err := m.Exchange(t.Context())
		require.NoError(t, err)
		assert.Equal(t, first, late)
		assert.EqualValues(t, 1, ex.calls.Load())
		assert.InDelta(t, 1.0, testutil.ToFloat64(refreshes), 0)
	})
}

func TestManagerRefresh(t *testing.T) {
	t.Parallel()

	t.Run("ReplacesRejectedToken", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExchanger{ttl: time.Hour, prefix: "tok-"}
		m := auth.NewManager(ex, 0, nil, zerolog.Nop())

		first, err := m.AccessToken(t.Context())
		require.NoError(t, err)
		refreshed, err := m.Refresh(t.Context(), first)
		require.NoError(t, err)
		assert.Equal(t, "tok-2", refreshed)

		current, err := m.AccessToken(t.Context())
		require.NoError(t, err)
		assert.Equal(t, refreshed, current)
	})

	t.Run("StaleRejectionKeepsNewerToken", func(t *testing.T) {
		t.Parallel()
		ex := &fakeExchanger{ttl: time.Hour, prefix: "tok-"}
		m := auth.NewManager(ex, 0, nil, zerolog.Nop())

		first, err := m.AccessToken(t.Context())
		require.NoError(t, err)
		second, err := m.Refresh(t.Context(), first)
		require.NoError(t, err)

		// A slower caller reports the first token as rejected after it was
		// already replaced.
		again, err := m.Refresh(t.Context(), first)
		require.NoError(t, err)
		assert.Equal(t, second, again)
		assert.EqualValues(t, 2, ex.calls.Load())
	})
}

func TestClientCredentials(t *testing.T) {
	t.Parallel()

	t.Run("Success", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			assert.Equal(t, http.MethodPost, r.Method)
			id, secret, ok := r.BasicAuth()
			assert.True(t, ok)
			assert.Equal(t, "id", id)
			assert.Equal(t, "secret", secret)
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "client_credentials", r.PostForm.Get("grant_type"))
			w.Header().Set("Content-Type", "application/json")
			_, _ = w.Write([]byte(`{"access_token":"abc","token_type":"Bearer","expires_in":3600}`))
		}))
		t.Cleanup(srv.Close)

		token, err := auth.NewClientCredentials("id", "secret", srv.URL).Exchange(t.Context())
		require.NoError(t, err)
		assert.Equal(t, "abc", token.AccessToken)
		assert.WithinDuration(t, time.Now().Add(time.Hour), token.Expiry, time.Minute)
	})

	t.Run("InvalidClient", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.Header().Set("Content-Type", "application/json")
			w.WriteHeader(http.StatusBadRequest)
			_, _ = w.Write([]byte(`{"error":"invalid_client","error_description":"Invalid client secret"}`))
		}))
		t.Cleanup(srv.Close)

		_, err := auth.NewClientCredentials("id", "wrong", srv.URL).Exchange(t.Context())
		require.ErrorIs(t, err, auth.ErrInvalidClient)
	})

	t.Run("ServerError", func(t *testing.T) {
		t.Parallel()
		srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		}))
		t.Cleanup(srv.Close)

		_, err := auth.NewClientCredentials("id", "secret", srv.URL).Exchange(t.Context())
		require.Error(t, err)
		assert.True(t, errutil.IsFlaw(err))
		assert.False(t, errors.Is(err, auth.ErrInvalidClient))
	})
}
