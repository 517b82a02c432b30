// Package spotifytest provides an in-memory catalog API and accounts service
// for tests.
package spotifytest

import (
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strconv"
	"strings"
	"sync"

	"github.com/go-chi/chi/v5"
	"github.com/goccy/go-json"

	"github.com/xeptore/spotwrap/paging"
	"github.com/xeptore/spotwrap/spotify"
)

const (
	ClientID     = "test-client"
	ClientSecret = "test-secret"

	maxSeveralAlbums   = 20
	maxSeveralTracks   = 50
	maxSeveralFeatures = 100
)

// Call is one request received by the fake API.
type Call struct {
	Route string
	Path  string
	Query url.Values
}

type Server struct {
	*httptest.Server
	Catalog *Catalog

	mu            sync.Mutex
	calls         []Call
	issued        int
	validTokens   map[string]bool
	rejectAll     bool
	rateLimitNext int
	expireAfter   int
}

// NewServer starts a fake serving catalog. Callers must Close it.
func NewServer(catalog *Catalog) *Server {
	s := &Server{ //nolint:exhaustruct
		Catalog:     catalog,
		validTokens: make(map[string]bool),
		expireAfter: -1,
	}
	s.Server = httptest.NewServer(s.routes())
	return s
}

func (s *Server) APIBaseURL() string { return s.URL + "/v1" }

func (s *Server) TokenURL() string { return s.URL + "/api/token" }

// Calls returns the API calls matching route, either a chi pattern such as
// "/v1/albums/{id}/tracks" or a literal request path. Calls rejected before
// routing, like unauthorized ones, only match by path. An empty route matches
// every call.
func (s *Server) Calls(route string) []Call {
	s.mu.Lock()
	defer s.mu.Unlock()
	var out []Call
	for _, c := range s.calls {
		if route == "" || c.Route == route || c.Path == route {
			out = append(out, c)
		}
	}
	return out
}

func (s *Server) ResetCalls() {
	s.mu.Lock()
	s.calls = nil
	s.mu.Unlock()
}

// TokensIssued reports how many successful credential exchanges happened.
func (s *Server) TokensIssued() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issued
}

// ExpireTokens makes every token issued so far be rejected.
func (s *Server) ExpireTokens() {
	s.mu.Lock()
	clear(s.validTokens)
	s.mu.Unlock()
}

// ExpireTokensAfter lets the next n API calls through and then expires every
// token issued so far, as if they reached their expiry mid-sequence.
func (s *Server) ExpireTokensAfter(n int) {
	s.mu.Lock()
	s.expireAfter = n
	s.mu.Unlock()
}

// RejectAllTokens makes the API reject every token, including fresh ones.
func (s *Server) RejectAllTokens(reject bool) {
	s.mu.Lock()
	s.rejectAll = reject
	s.mu.Unlock()
}

// RateLimitNext answers the next n API calls with 429.
func (s *Server) RateLimitNext(n int) {
	s.mu.Lock()
	s.rateLimitNext = n
	s.mu.Unlock()
}

func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Post("/api/token", s.token)
	r.Route("/v1", func(r chi.Router) {
		r.Use(s.record, s.authorize)
		r.Get("/search", s.search)
		r.Get("/artists/{id}", s.artist)
		r.Get("/artists/{id}/albums", s.artistAlbums)
		r.Get("/albums", s.severalAlbums)
		r.Get("/albums/{id}", s.album)
		r.Get("/albums/{id}/tracks", s.albumTracks)
		r.Get("/tracks", s.severalTracks)
		r.Get("/tracks/{id}", s.track)
		r.Get("/audio-features", s.audioFeatures)
		r.Get("/playlists/{id}/tracks", s.playlistTracks)
	})
	return r
}

func (s *Server) record(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		next.ServeHTTP(w, r)
		route := ""
		if rctx := chi.RouteContext(r.Context()); nil != rctx {
			route = rctx.RoutePattern()
		}
		s.mu.Lock()
		s.calls = append(s.calls, Call{Route: route, Path: r.URL.Path, Query: r.URL.Query()})
		s.mu.Unlock()
	})
}

func (s *Server) authorize(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		token := strings.TrimPrefix(r.Header.Get("Authorization"), "Bearer ")
		s.mu.Lock()
		switch {
		case s.expireAfter == 0:
			clear(s.validTokens)
			s.expireAfter = -1
		case s.expireAfter > 0:
			s.expireAfter--
		}
		valid := s.validTokens[token] && !s.rejectAll
		limited := s.rateLimitNext > 0
		if limited {
			s.rateLimitNext--
		}
		s.mu.Unlock()

		if !valid {
			writeJSON(w, http.StatusUnauthorized, map[string]any{
				"error": map[string]any{"status": http.StatusUnauthorized, "message": "The access token expired"},
			})
			return
		}
		if limited {
			w.Header().Set("Retry-After", "1")
			writeJSON(w, http.StatusTooManyRequests, map[string]any{
				"error": map[string]any{"status": http.StatusTooManyRequests, "message": "API rate limit exceeded"},
			})
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) token(w http.ResponseWriter, r *http.Request) {
	id, secret, ok := r.BasicAuth()
	if !ok || id != ClientID || secret != ClientSecret {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid_client", "error_description": "Invalid client"})
		return
	}
	s.mu.Lock()
	s.issued++
	token := "token-" + strconv.Itoa(s.issued)
	s.validTokens[token] = true
	s.mu.Unlock()
	writeJSON(w, http.StatusOK, map[string]any{"access_token": token, "token_type": "Bearer", "expires_in": 3600})
}

func notFound(w http.ResponseWriter) {
	writeJSON(w, http.StatusNotFound, map[string]any{
		"error": map[string]any{"status": http.StatusNotFound, "message": "Resource not found"},
	})
}

func badRequest(w http.ResponseWriter, msg string) {
	writeJSON(w, http.StatusBadRequest, map[string]any{
		"error": map[string]any{"status": http.StatusBadRequest, "message": msg},
	})
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func pageParams(r *http.Request) (offset, limit int, ok bool) {
	offset, err := strconv.Atoi(r.URL.Query().Get("offset"))
	if nil != err || offset < 0 {
		return 0, 0, false
	}
	limit, err = strconv.Atoi(r.URL.Query().Get("limit"))
	if nil != err || limit < 1 {
		return 0, 0, false
	}
	return offset, limit, true
}

func page[T any](items []T, offset, limit int) paging.Page[T] {
	start := min(offset, len(items))
	end := min(offset+limit, len(items))
	return paging.Page[T]{Items: items[start:end], Total: len(items), Offset: offset, Limit: limit}
}

func splitIDs(r *http.Request, maxIDs int) ([]string, error) {
	raw := r.URL.Query().Get("ids")
	if raw == "" {
		return nil, errors.New("missing ids")
	}
	ids := strings.Split(raw, ",")
	if len(ids) > maxIDs {
		return nil, fmt.Errorf("too many ids requested: %d", len(ids))
	}
	return ids, nil
}

func (s *Server) search(w http.ResponseWriter, r *http.Request) {
	q := strings.ToLower(r.URL.Query().Get("q"))
	limit, err := strconv.Atoi(r.URL.Query().Get("limit"))
	if nil != err || limit < 1 {
		badRequest(w, "Invalid limit")
		return
	}
	c := s.Catalog
	switch kind := r.URL.Query().Get("type"); kind {
	case "artist":
		items := matching(c.artistOrder, q, func(id string) (spotify.Artist, string) { a := c.Artists[id]; return *a, a.Name })
		writeJSON(w, http.StatusOK, map[string]any{"artists": page(items, 0, limit)})
	case "album":
		items := matching(c.albumOrder, q, func(id string) (spotify.SimpleAlbum, string) { a := c.Albums[id]; return a.SimpleAlbum, a.Name })
		writeJSON(w, http.StatusOK, map[string]any{"albums": page(items, 0, limit)})
	case "playlist":
		items := matching(c.playlistOrder, q, func(id string) (*spotify.SimplePlaylist, string) { p := c.Playlists[id]; return p, p.Name })
		// The real API returns null for some unavailable playlists.
		items = append(items, nil)
		writeJSON(w, http.StatusOK, map[string]any{"playlists": page(items, 0, limit)})
	default:
		badRequest(w, "Unsupported type: "+kind)
	}
}

func matching[T any](order []string, q string, get func(id string) (T, string)) []T {
	out := make([]T, 0)
	for _, id := range order {
		v, name := get(id)
		if strings.Contains(strings.ToLower(name), q) {
			out = append(out, v)
		}
	}
	return out
}

func (s *Server) artist(w http.ResponseWriter, r *http.Request) {
	a, ok := s.Catalog.Artists[chi.URLParam(r, "id")]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) artistAlbums(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.Catalog.Artists[id]; !ok {
		notFound(w)
		return
	}
	if r.URL.Query().Get("include_groups") != "album,single" {
		badRequest(w, "Unexpected include_groups")
		return
	}
	offset, limit, ok := pageParams(r)
	if !ok || limit > 50 {
		badRequest(w, "Invalid paging")
		return
	}
	albumIDs := s.Catalog.ArtistAlbums[id]
	items := make([]spotify.SimpleAlbum, len(albumIDs))
	for i, albumID := range albumIDs {
		items[i] = s.Catalog.Albums[albumID].SimpleAlbum
	}
	writeJSON(w, http.StatusOK, page(items, offset, limit))
}

func (s *Server) album(w http.ResponseWriter, r *http.Request) {
	a, ok := s.Catalog.Albums[chi.URLParam(r, "id")]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, a)
}

func (s *Server) severalAlbums(w http.ResponseWriter, r *http.Request) {
	ids, err := splitIDs(r, maxSeveralAlbums)
	if nil != err {
		badRequest(w, err.Error())
		return
	}
	out := make([]*spotify.Album, len(ids))
	for i, id := range ids {
		out[i] = s.Catalog.Albums[id]
	}
	writeJSON(w, http.StatusOK, map[string]any{"albums": out})
}

func (s *Server) albumTracks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	if _, ok := s.Catalog.Albums[id]; !ok {
		notFound(w)
		return
	}
	offset, limit, ok := pageParams(r)
	if !ok || limit > 50 {
		badRequest(w, "Invalid paging")
		return
	}
	trackIDs := s.Catalog.AlbumTracks[id]
	items := make([]spotify.SimpleTrack, len(trackIDs))
	for i, trackID := range trackIDs {
		items[i] = s.Catalog.Tracks[trackID].SimpleTrack
	}
	writeJSON(w, http.StatusOK, page(items, offset, limit))
}

func (s *Server) track(w http.ResponseWriter, r *http.Request) {
	t, ok := s.Catalog.Tracks[chi.URLParam(r, "id")]
	if !ok {
		notFound(w)
		return
	}
	writeJSON(w, http.StatusOK, t)
}

func (s *Server) severalTracks(w http.ResponseWriter, r *http.Request) {
	ids, err := splitIDs(r, maxSeveralTracks)
	if nil != err {
		badRequest(w, err.Error())
		return
	}
	out := make([]*spotify.Track, len(ids))
	for i, id := range ids {
		out[i] = s.Catalog.Tracks[id]
	}
	writeJSON(w, http.StatusOK, map[string]any{"tracks": out})
}

func (s *Server) audioFeatures(w http.ResponseWriter, r *http.Request) {
	ids, err := splitIDs(r, maxSeveralFeatures)
	if nil != err {
		badRequest(w, err.Error())
		return
	}
	out := make([]*spotify.AudioFeatures, len(ids))
	for i, id := range ids {
		out[i] = s.Catalog.AudioFeatures[id]
	}
	writeJSON(w, http.StatusOK, map[string]any{"audio_features": out})
}

func (s *Server) playlistTracks(w http.ResponseWriter, r *http.Request) {
	id := chi.URLParam(r, "id")
	entries, ok := s.Catalog.PlaylistEntries[id]
	if !ok {
		notFound(w)
		return
	}
	offset, limit, ok := pageParams(r)
	if !ok || limit > 100 {
		badRequest(w, "Invalid paging")
		return
	}
	writeJSON(w, http.StatusOK, page(entries, offset, limit))
}
