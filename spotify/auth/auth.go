// Package auth owns the bearer token used against the catalog API. Tokens are
// obtained with the client credentials grant and refreshed on demand.
package auth

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/xeptore/flaw/v8"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2"
	"golang.org/x/oauth2/clientcredentials"
	"golang.org/x/sync/singleflight"

	"github.com/xeptore/spotwrap/config"
	"github.com/xeptore/spotwrap/errutil"
	"github.com/xeptore/spotwrap/log"
)

var (
	// ErrUnauthorized is returned when the upstream keeps rejecting a freshly
	// exchanged token.
	ErrUnauthorized = errors.New("unauthorized")
	// ErrInvalidClient is returned when the accounts service rejects the
	// client id and secret.
	ErrInvalidClient = errors.New("invalid client credentials")
)

// Exchanger trades client credentials for a new token.
type Exchanger interface {
	Exchange(ctx context.Context) (*oauth2.Token, error)
}

type ClientCredentials struct {
	config     clientcredentials.Config
	httpClient *http.Client
}

// NewClientCredentials returns an exchanger for the given application
// credentials. An empty tokenURL selects the public accounts service.
func NewClientCredentials(clientID, clientSecret, tokenURL string) *ClientCredentials {
	if tokenURL == "" {
		tokenURL = spotifyauth.TokenURL
	}
	return &ClientCredentials{
		config: clientcredentials.Config{ //nolint:exhaustruct
			ClientID:     clientID,
			ClientSecret: clientSecret,
			TokenURL:     tokenURL,
			AuthStyle:    oauth2.AuthStyleInHeader,
		},
		httpClient: &http.Client{Timeout: config.TokenExchangeTimeout}, //nolint:exhaustruct
	}
}

func (c *ClientCredentials) Exchange(ctx context.Context) (*oauth2.Token, error) {
	flawP := flaw.P{"token_url": c.config.TokenURL}
	token, err := c.config.Token(context.WithValue(ctx, oauth2.HTTPClient, c.httpClient))
	if nil != err {
		retrieveErr := new(oauth2.RetrieveError)
		switch {
		case errutil.IsContext(ctx):
			return nil, ctx.Err()
		case errors.Is(err, context.DeadlineExceeded), errutil.IsTimeout(err):
			return nil, context.DeadlineExceeded
		case errors.As(err, &retrieveErr):
			if isInvalidClient(retrieveErr) {
				return nil, ErrInvalidClient
			}
			flawP["error_code"] = retrieveErr.ErrorCode
			flawP["error_description"] = retrieveErr.ErrorDescription
			flawP["response_body"] = string(retrieveErr.Body)
			if nil != retrieveErr.Response {
				flawP["response"] = errutil.HTTPResponseFlawPayload(retrieveErr.Response)
			}
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to exchange client credentials: %v", err)).Append(flawP)
		default:
			flawP["err_debug_tree"] = errutil.Tree(err).FlawP()
			return nil, flaw.From(fmt.Errorf("failed to issue client credentials exchange request: %v", err)).Append(flawP)
		}
	}
	if token.AccessToken == "" {
		return nil, flaw.From(errors.New("received empty access token")).Append(flawP)
	}
	return token, nil
}

func isInvalidClient(err *oauth2.RetrieveError) bool {
	if err.ErrorCode == "invalid_client" {
		return true
	}
	if nil == err.Response {
		return false
	}
	return err.ErrorCode == "" && err.Response.StatusCode == http.StatusUnauthorized
}

// Manager holds the current token. It exchanges credentials lazily and makes
// sure only one exchange is in flight no matter how many callers need one.
type Manager struct {
	exchanger Exchanger
	leeway    time.Duration
	refreshes prometheus.Counter
	logger    zerolog.Logger

	mu    sync.RWMutex
	token *oauth2.Token
	group singleflight.Group
}

// NewManager returns a manager holding no token. Tokens expiring within leeway
// are treated as already expired. refreshes may be nil.
func NewManager(exchanger Exchanger, leeway time.Duration, refreshes prometheus.Counter, logger zerolog.Logger) *Manager {
	return &Manager{
		exchanger: exchanger,
		leeway:    leeway,
		refreshes: refreshes,
		logger:    logger.With().Str("module", "auth").Logger(),
		mu:        sync.RWMutex{},
		token:     nil,
		group:     singleflight.Group{},
	}
}

// AccessToken returns a usable bearer token, exchanging credentials first if
// none is held or the held one is about to expire.
func (m *Manager) AccessToken(ctx context.Context) (string, error) {
	m.mu.RLock()
	token := m.token
	m.mu.RUnlock()

	if m.usable(token) {
		return token.AccessToken, nil
	}
	return m.exchange(ctx)
}

// Refresh drops rejected and returns a fresh token. When the held token no
// longer equals rejected another caller already replaced it, and that
// replacement is returned without a new exchange.
func (m *Manager) Refresh(ctx context.Context, rejected string) (string, error) {
	m.mu.Lock()
	if nil != m.token && m.token.AccessToken == rejected {
		m.token = nil
	}
	token := m.token
	m.mu.Unlock()

	if m.usable(token) {
		m.logger.Debug().Msg("Token was already refreshed by a concurrent caller")
		return token.AccessToken, nil
	}
	return m.exchange(ctx)
}

func (m *Manager) usable(token *oauth2.Token) bool {
	if nil == token || token.AccessToken == "" {
		return false
	}
	if token.Expiry.IsZero() {
		return true
	}
	return time.Now().Add(m.leeway).Before(token.Expiry)
}

func (m *Manager) exchange(ctx context.Context) (string, error) {
	ch := m.group.DoChan("exchange", func() (any, error) {
		// A caller that saw no usable token may arrive after an exchange
		// already finished.
		m.mu.RLock()
		held := m.token
		m.mu.RUnlock()
		if m.usable(held) {
			return held.AccessToken, nil
		}

		// Waiters share this exchange, so it must not die with whichever
		// caller happened to start it. The exchanger carries its own timeout.
		token, err := m.exchanger.Exchange(context.WithoutCancel(ctx))
		if nil != err {
			return nil, err
		}

		m.mu.Lock()
		m.token = token
		m.mu.Unlock()

		if nil != m.refreshes {
			m.refreshes.Inc()
		}
		m.logger.Debug().Time("expiry", token.Expiry).Msg("Exchanged client credentials for a new token")
		return token.AccessToken, nil
	})

	select {
	case <-ctx.Done():
		return "", ctx.Err()
	case res := <-ch:
		if nil != res.Err {
			if errutil.IsFlaw(res.Err) {
				m.logger.Error().Func(log.Flaw(res.Err)).Msg("Client credentials exchange failed")
			}
			return "", res.Err
		}
		return res.Val.(string), nil //nolint:forcetypeassert
	}
}
