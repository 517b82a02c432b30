package spotify

import (
	"context"
	"net/url"
	"strconv"
	"strings"

	"github.com/xeptore/spotwrap/config"
	"github.com/xeptore/spotwrap/paging"
)

const (
	searchTypeArtist   = "artist"
	searchTypeAlbum    = "album"
	searchTypePlaylist = "playlist"

	artistAlbumGroups = "album,single"
)

func (c *Client) search(ctx context.Context, kind, query string) ([]byte, error) {
	params := make(url.Values, 4)
	params.Add("q", query)
	params.Add("type", kind)
	params.Add("limit", strconv.Itoa(c.searchLimit))
	params.Add("market", c.market)
	return c.get(ctx, request{
		endpoint: "search_" + kind,
		path:     "/search",
		query:    params,
		timeout:  config.SearchRequestTimeout,
	})
}

func (c *Client) SearchArtists(ctx context.Context, query string) (*paging.Page[Artist], error) {
	b, err := c.search(ctx, searchTypeArtist, query)
	if nil != err {
		return nil, err
	}
	res, err := decode[struct {
		Artists paging.Page[Artist] `json:"artists"`
	}](b, "artist search")
	if nil != err {
		return nil, err
	}
	return &res.Artists, nil
}

func (c *Client) SearchAlbums(ctx context.Context, query string) (*paging.Page[SimpleAlbum], error) {
	b, err := c.search(ctx, searchTypeAlbum, query)
	if nil != err {
		return nil, err
	}
	res, err := decode[struct {
		Albums paging.Page[SimpleAlbum] `json:"albums"`
	}](b, "album search")
	if nil != err {
		return nil, err
	}
	return &res.Albums, nil
}

// SearchPlaylists drops the null entries the upstream sometimes returns in
// place of unavailable playlists.
func (c *Client) SearchPlaylists(ctx context.Context, query string) (*paging.Page[SimplePlaylist], error) {
	b, err := c.search(ctx, searchTypePlaylist, query)
	if nil != err {
		return nil, err
	}
	res, err := decode[struct {
		Playlists paging.Page[*SimplePlaylist] `json:"playlists"`
	}](b, "playlist search")
	if nil != err {
		return nil, err
	}
	items := make([]SimplePlaylist, 0, len(res.Playlists.Items))
	for _, v := range res.Playlists.Items {
		if nil != v {
			items = append(items, *v)
		}
	}
	return &paging.Page[SimplePlaylist]{
		Items:  items,
		Total:  res.Playlists.Total,
		Offset: res.Playlists.Offset,
		Limit:  res.Playlists.Limit,
	}, nil
}

func (c *Client) marketQuery() url.Values {
	params := make(url.Values, 1)
	params.Add("market", c.market)
	return params
}

func (c *Client) Artist(ctx context.Context, id string) (*Artist, error) {
	b, err := c.get(ctx, request{
		endpoint: "artist",
		path:     "/artists/" + url.PathEscape(id),
		query:    nil,
		timeout:  config.EntityRequestTimeout,
	})
	if nil != err {
		return nil, err
	}
	return decode[Artist](b, "artist")
}

func (c *Client) Album(ctx context.Context, id string) (*Album, error) {
	b, err := c.get(ctx, request{
		endpoint: "album",
		path:     "/albums/" + url.PathEscape(id),
		query:    c.marketQuery(),
		timeout:  config.EntityRequestTimeout,
	})
	if nil != err {
		return nil, err
	}
	return decode[Album](b, "album")
}

func (c *Client) Track(ctx context.Context, id string) (*Track, error) {
	b, err := c.get(ctx, request{
		endpoint: "track",
		path:     "/tracks/" + url.PathEscape(id),
		query:    c.marketQuery(),
		timeout:  config.EntityRequestTimeout,
	})
	if nil != err {
		return nil, err
	}
	return decode[Track](b, "track")
}

func (c *Client) several(ctx context.Context, endpoint, path string, ids []string, withMarket bool) ([]byte, error) {
	params := make(url.Values, 2)
	params.Add("ids", strings.Join(ids, ","))
	if withMarket {
		params.Add("market", c.market)
	}
	return c.get(ctx, request{
		endpoint: endpoint,
		path:     path,
		query:    params,
		timeout:  config.SeveralRequestTimeout,
	})
}

// SeveralAlbums looks up at most 20 albums. Unknown ids come back as nil
// slots.
func (c *Client) SeveralAlbums(ctx context.Context, ids []string) ([]*Album, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b, err := c.several(ctx, "several_albums", "/albums", ids, true)
	if nil != err {
		return nil, err
	}
	res, err := decode[struct {
		Albums []*Album `json:"albums"`
	}](b, "several albums")
	if nil != err {
		return nil, err
	}
	return res.Albums, nil
}

// SeveralTracks looks up at most 50 tracks. Unknown ids come back as nil
// slots.
func (c *Client) SeveralTracks(ctx context.Context, ids []string) ([]*Track, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b, err := c.several(ctx, "several_tracks", "/tracks", ids, true)
	if nil != err {
		return nil, err
	}
	res, err := decode[struct {
		Tracks []*Track `json:"tracks"`
	}](b, "several tracks")
	if nil != err {
		return nil, err
	}
	return res.Tracks, nil
}

// SeveralAudioFeatures looks up audio analysis for at most 100 tracks. Tracks
// without analysis come back as nil slots.
func (c *Client) SeveralAudioFeatures(ctx context.Context, ids []string) ([]*AudioFeatures, error) {
	if len(ids) == 0 {
		return nil, nil
	}
	b, err := c.several(ctx, "audio_features", "/audio-features", ids, false)
	if nil != err {
		return nil, err
	}
	res, err := decode[struct {
		AudioFeatures []*AudioFeatures `json:"audio_features"`
	}](b, "audio features")
	if nil != err {
		return nil, err
	}
	return res.AudioFeatures, nil
}

func (c *Client) pageQuery(offset, limit int) url.Values {
	params := make(url.Values, 4)
	params.Add("market", c.market)
	params.Add("limit", strconv.Itoa(limit))
	params.Add("offset", strconv.Itoa(offset))
	return params
}

// ArtistAlbums returns one page of the artist's albums and singles.
func (c *Client) ArtistAlbums(ctx context.Context, artistID string, offset, limit int) (*paging.Page[SimpleAlbum], error) {
	params := c.pageQuery(offset, limit)
	params.Add("include_groups", artistAlbumGroups)
	b, err := c.get(ctx, request{
		endpoint: "artist_albums",
		path:     "/artists/" + url.PathEscape(artistID) + "/albums",
		query:    params,
		timeout:  config.PageRequestTimeout,
	})
	if nil != err {
		return nil, err
	}
	return decode[paging.Page[SimpleAlbum]](b, "artist albums page")
}

func (c *Client) AlbumTracks(ctx context.Context, albumID string, offset, limit int) (*paging.Page[SimpleTrack], error) {
	b, err := c.get(ctx, request{
		endpoint: "album_tracks",
		path:     "/albums/" + url.PathEscape(albumID) + "/tracks",
		query:    c.pageQuery(offset, limit),
		timeout:  config.PageRequestTimeout,
	})
	if nil != err {
		return nil, err
	}
	return decode[paging.Page[SimpleTrack]](b, "album tracks page")
}

func (c *Client) PlaylistTracks(ctx context.Context, playlistID string, offset, limit int) (*paging.Page[PlaylistEntry], error) {
	b, err := c.get(ctx, request{
		endpoint: "playlist_tracks",
		path:     "/playlists/" + url.PathEscape(playlistID) + "/tracks",
		query:    c.pageQuery(offset, limit),
		timeout:  config.PageRequestTimeout,
	})
	if nil != err {
		return nil, err
	}
	return decode[paging.Page[PlaylistEntry]](b, "playlist tracks page")
}
