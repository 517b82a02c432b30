// Package aggregate turns single logical requests, like "every track by this
// artist", into the sequence of paged and batched upstream calls they need,
// and reshapes the results for the front end.
package aggregate

import (
	"context"
	"errors"
	"strings"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/rs/zerolog"
	"github.com/samber/lo"

	"github.com/xeptore/spotwrap/batch"
	"github.com/xeptore/spotwrap/config"
	"github.com/xeptore/spotwrap/paging"
	"github.com/xeptore/spotwrap/spotify"
)

var (
	ErrEmptyID    = errors.New("empty identifier")
	ErrEmptyQuery = errors.New("empty search query")
)

// Upstream is the subset of the catalog client the service needs.
type Upstream interface {
	SearchArtists(ctx context.Context, query string) (*paging.Page[spotify.Artist], error)
	SearchAlbums(ctx context.Context, query string) (*paging.Page[spotify.SimpleAlbum], error)
	SearchPlaylists(ctx context.Context, query string) (*paging.Page[spotify.SimplePlaylist], error)
	Artist(ctx context.Context, id string) (*spotify.Artist, error)
	SeveralAlbums(ctx context.Context, ids []string) ([]*spotify.Album, error)
	SeveralTracks(ctx context.Context, ids []string) ([]*spotify.Track, error)
	SeveralAudioFeatures(ctx context.Context, ids []string) ([]*spotify.AudioFeatures, error)
	ArtistAlbums(ctx context.Context, artistID string, offset, limit int) (*paging.Page[spotify.SimpleAlbum], error)
	AlbumTracks(ctx context.Context, albumID string, offset, limit int) (*paging.Page[spotify.SimpleTrack], error)
	PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) (*paging.Page[spotify.PlaylistEntry], error)
}

type Sizes struct {
	ArtistAlbumsPage   int
	AlbumTracksPage    int
	PlaylistTracksPage int
	MaxPages           int
	AlbumBatch         int
	TrackBatch         int
	Concurrency        int
}

func SizesFromConfig(cfg *config.Config) Sizes {
	return Sizes{
		ArtistAlbumsPage:   cfg.Paging.ArtistAlbums,
		AlbumTracksPage:    cfg.Paging.AlbumTracks,
		PlaylistTracksPage: cfg.Paging.PlaylistTracks,
		MaxPages:           cfg.Paging.MaxPages,
		AlbumBatch:         cfg.Batch.Albums,
		TrackBatch:         cfg.Batch.Tracks,
		Concurrency:        cfg.Batch.Concurrency,
	}
}

type Service struct {
	upstream Upstream
	sizes    Sizes
	duration *prometheus.HistogramVec
	logger   zerolog.Logger
}

// NewService returns a service issuing its calls through upstream. duration
// may be nil.
func NewService(upstream Upstream, sizes Sizes, duration *prometheus.HistogramVec, logger zerolog.Logger) *Service {
	return &Service{
		upstream: upstream,
		sizes:    sizes,
		duration: duration,
		logger:   logger.With().Str("module", "aggregate").Logger(),
	}
}

// loggerFor prefers the request scoped logger carried by ctx.
func (s *Service) loggerFor(ctx context.Context, operation string) zerolog.Logger {
	logger := zerolog.Ctx(ctx)
	if logger.GetLevel() == zerolog.Disabled {
		logger = &s.logger
	}
	return logger.With().Str("operation", operation).Logger()
}

func (s *Service) track(operation string, logger zerolog.Logger, start time.Time, err *error) {
	elapsed := time.Since(start)
	if nil != s.duration {
		s.duration.WithLabelValues(operation).Observe(elapsed.Seconds())
	}
	if nil != *err {
		logger.Debug().Dur("elapsed", elapsed).Err(*err).Msg("Aggregation failed")
		return
	}
	logger.Debug().Dur("elapsed", elapsed).Msg("Aggregation finished")
}

func (s *Service) batchOptions() []batch.Option {
	return []batch.Option{batch.Concurrency(s.sizes.Concurrency)}
}

// ArtistTracks returns every track on the artist's albums and singles that
// credits the artist, keyed by track id.
func (s *Service) ArtistTracks(ctx context.Context, artistID string) (tracks map[string]*Track, err error) {
	if artistID == "" {
		return nil, ErrEmptyID
	}
	logger := s.loggerFor(ctx, "artist_tracks").With().Str("artist_id", artistID).Logger()
	logger.Debug().Msg("Aggregation started")
	defer s.track("artist_tracks", logger, time.Now(), &err)

	_, tracks, err = s.artistCatalog(logger.WithContext(ctx), artistID)
	if nil != err {
		return nil, err
	}
	return tracks, nil
}

// PlaylistTracks returns every catalog track of the playlist keyed by track
// id. Unavailable and local entries are skipped.
func (s *Service) PlaylistTracks(ctx context.Context, playlistID string) (tracks map[string]*Track, err error) {
	if playlistID == "" {
		return nil, ErrEmptyID
	}
	logger := s.loggerFor(ctx, "playlist_tracks").With().Str("playlist_id", playlistID).Logger()
	logger.Debug().Msg("Aggregation started")
	defer s.track("playlist_tracks", logger, time.Now(), &err)
	ctx = logger.WithContext(ctx)

	entries, err := paging.Collect(ctx, s.sizes.PlaylistTracksPage, s.sizes.MaxPages, func(ctx context.Context, offset, limit int) (*paging.Page[spotify.PlaylistEntry], error) {
		return s.upstream.PlaylistTracks(ctx, playlistID, offset, limit)
	})
	if nil != err {
		return nil, err
	}

	trackIDs := make([]string, 0, len(entries))
	for _, e := range entries {
		if id, ok := e.TrackID(); ok {
			trackIDs = append(trackIDs, id)
		}
	}
	logger.Debug().Int("entries", len(entries)).Int("tracks", len(trackIDs)).Msg("Collected playlist track ids")

	tracks, err = s.resolveTracks(ctx, lo.Uniq(trackIDs))
	if nil != err {
		return nil, err
	}
	return tracks, nil
}

// ArtistInfo returns the artist along with its albums and the tracks that
// ArtistTracks would return.
func (s *Service) ArtistInfo(ctx context.Context, artistID string) (info *ArtistInfo, err error) {
	if artistID == "" {
		return nil, ErrEmptyID
	}
	logger := s.loggerFor(ctx, "artist_info").With().Str("artist_id", artistID).Logger()
	logger.Debug().Msg("Aggregation started")
	defer s.track("artist_info", logger, time.Now(), &err)
	ctx = logger.WithContext(ctx)

	artist, err := s.upstream.Artist(ctx, artistID)
	if nil != err {
		return nil, err
	}

	albums, tracks, err := s.artistCatalog(ctx, artistID)
	if nil != err {
		return nil, err
	}

	return &ArtistInfo{
		Artists: map[string]*Artist{artist.ID: newArtist(artist)},
		Albums:  albums,
		Tracks:  tracks,
	}, nil
}

func (s *Service) artistCatalog(ctx context.Context, artistID string) (map[string]*Album, map[string]*Track, error) {
	logger := zerolog.Ctx(ctx)

	simpleAlbums, err := paging.Collect(ctx, s.sizes.ArtistAlbumsPage, s.sizes.MaxPages, func(ctx context.Context, offset, limit int) (*paging.Page[spotify.SimpleAlbum], error) {
		return s.upstream.ArtistAlbums(ctx, artistID, offset, limit)
	})
	if nil != err {
		return nil, nil, err
	}
	albumIDs := lo.Uniq(lo.FilterMap(simpleAlbums, func(a spotify.SimpleAlbum, _ int) (string, bool) { return a.ID, a.ID != "" }))

	resolved, err := batch.Resolve[spotify.Album](ctx, albumIDs, s.sizes.AlbumBatch, s.upstream.SeveralAlbums, albumKey, s.batchOptions()...)
	if nil != err {
		return nil, nil, err
	}
	logger.Debug().Int("listed", len(albumIDs)).Int("resolved", len(resolved)).Msg("Resolved artist albums")

	albums := make(map[string]*Album, len(resolved))
	var trackIDs []string
	for _, id := range albumIDs {
		album, ok := resolved[id]
		if !ok {
			continue
		}
		albums[id] = newAlbum(album)

		albumTracks, err := paging.Collect(ctx, s.sizes.AlbumTracksPage, s.sizes.MaxPages, func(ctx context.Context, offset, limit int) (*paging.Page[spotify.SimpleTrack], error) {
			return s.upstream.AlbumTracks(ctx, id, offset, limit)
		})
		if nil != err {
			return nil, nil, err
		}
		for _, t := range albumTracks {
			if t.ID != "" {
				trackIDs = append(trackIDs, t.ID)
			}
		}
	}
	logger.Debug().Int("tracks", len(trackIDs)).Msg("Collected album track ids")

	tracks, err := s.resolveTracks(ctx, lo.Uniq(trackIDs))
	if nil != err {
		return nil, nil, err
	}

	// Tracks on collaboration albums may be led by someone else entirely.
	for id, t := range tracks {
		if !lo.Contains(t.ArtistIDs, artistID) {
			delete(tracks, id)
		}
	}

	return albums, tracks, nil
}

// resolveTracks fetches full track records and their audio features for ids,
// merging the features onto the tracks by id.
func (s *Service) resolveTracks(ctx context.Context, ids []string) (map[string]*Track, error) {
	tracks, err := batch.Resolve[spotify.Track](ctx, ids, s.sizes.TrackBatch, s.upstream.SeveralTracks, trackKey, s.batchOptions()...)
	if nil != err {
		return nil, err
	}
	features, err := batch.Resolve[spotify.AudioFeatures](ctx, ids, s.sizes.TrackBatch, s.upstream.SeveralAudioFeatures, audioFeaturesKey, s.batchOptions()...)
	if nil != err {
		return nil, err
	}

	out := make(map[string]*Track, len(tracks))
	for id, t := range tracks {
		rec := newTrack(t)
		if f, ok := features[id]; ok {
			rec.applyFeatures(f)
		}
		out[id] = rec
	}
	zerolog.Ctx(ctx).Debug().Int("requested", len(ids)).Int("resolved", len(out)).Int("with_features", len(features)).Msg("Resolved tracks")
	return out, nil
}

func (s *Service) SearchArtist(ctx context.Context, query string) (artists []*Artist, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	logger := s.loggerFor(ctx, "search_artist")
	defer s.track("search_artist", logger, time.Now(), &err)

	res, err := s.upstream.SearchArtists(logger.WithContext(ctx), query)
	if nil != err {
		return nil, err
	}
	return lo.Map(res.Items, func(a spotify.Artist, _ int) *Artist { return newArtist(&a) }), nil
}

// SearchAlbum upgrades the partial records returned by the search to full
// albums. Albums that fail to resolve are left out; the rest keep search
// order.
func (s *Service) SearchAlbum(ctx context.Context, query string) (albums []*Album, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	logger := s.loggerFor(ctx, "search_album")
	defer s.track("search_album", logger, time.Now(), &err)
	ctx = logger.WithContext(ctx)

	res, err := s.upstream.SearchAlbums(ctx, query)
	if nil != err {
		return nil, err
	}
	ids := lo.Uniq(lo.FilterMap(res.Items, func(a spotify.SimpleAlbum, _ int) (string, bool) { return a.ID, a.ID != "" }))

	resolved, err := batch.Resolve[spotify.Album](ctx, ids, s.sizes.AlbumBatch, s.upstream.SeveralAlbums, albumKey, s.batchOptions()...)
	if nil != err {
		return nil, err
	}

	albums = make([]*Album, 0, len(resolved))
	for _, id := range ids {
		if a, ok := resolved[id]; ok {
			albums = append(albums, newAlbum(a))
		}
	}
	return albums, nil
}

func (s *Service) SearchPlaylist(ctx context.Context, query string) (playlists []*Playlist, err error) {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil, ErrEmptyQuery
	}
	logger := s.loggerFor(ctx, "search_playlist")
	defer s.track("search_playlist", logger, time.Now(), &err)

	res, err := s.upstream.SearchPlaylists(logger.WithContext(ctx), query)
	if nil != err {
		return nil, err
	}
	return lo.Map(res.Items, func(p spotify.SimplePlaylist, _ int) *Playlist { return newPlaylist(&p) }), nil
}

func albumKey(a *spotify.Album) string { return a.ID }

func trackKey(t *spotify.Track) string { return t.ID }

func audioFeaturesKey(f *spotify.AudioFeatures) string { return f.ID.String() }
