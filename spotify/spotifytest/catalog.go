package spotifytest

import (
	"hash/fnv"

	zspotify "github.com/zmb3/spotify/v2"

	"github.com/xeptore/spotwrap/spotify"
)

// Catalog is the data served by Server. Populate it before the server
// receives requests.
type Catalog struct {
	Artists         map[string]*spotify.Artist
	ArtistAlbums    map[string][]string
	Albums          map[string]*spotify.Album
	AlbumTracks     map[string][]string
	Tracks          map[string]*spotify.Track
	AudioFeatures   map[string]*spotify.AudioFeatures
	Playlists       map[string]*spotify.SimplePlaylist
	PlaylistEntries map[string][]*spotify.PlaylistEntry

	artistOrder   []string
	albumOrder    []string
	playlistOrder []string
}

func NewCatalog() *Catalog {
	return &Catalog{
		Artists:         make(map[string]*spotify.Artist),
		ArtistAlbums:    make(map[string][]string),
		Albums:          make(map[string]*spotify.Album),
		AlbumTracks:     make(map[string][]string),
		Tracks:          make(map[string]*spotify.Track),
		AudioFeatures:   make(map[string]*spotify.AudioFeatures),
		Playlists:       make(map[string]*spotify.SimplePlaylist),
		PlaylistEntries: make(map[string][]*spotify.PlaylistEntry),
		artistOrder:     nil,
		albumOrder:      nil,
		playlistOrder:   nil,
	}
}

func (c *Catalog) AddArtist(id, name string) *spotify.Artist {
	a := &spotify.Artist{ //nolint:exhaustruct
		ID:         id,
		Name:       name,
		Genres:     []string{"test"},
		Popularity: 50,
	}
	c.Artists[id] = a
	c.artistOrder = append(c.artistOrder, id)
	return a
}

func (c *Catalog) simpleArtists(ids []string) []zspotify.SimpleArtist {
	out := make([]zspotify.SimpleArtist, len(ids))
	for i, id := range ids {
		name := id
		if a, ok := c.Artists[id]; ok {
			name = a.Name
		}
		out[i] = zspotify.SimpleArtist{Name: name, ID: zspotify.ID(id)} //nolint:exhaustruct
	}
	return out
}

// AddAlbum registers an album credited to artistIDs. It is listed under the
// first artist only, the way collaboration albums show up upstream.
func (c *Catalog) AddAlbum(id, name string, artistIDs ...string) *spotify.Album {
	a := &spotify.Album{ //nolint:exhaustruct
		SimpleAlbum: spotify.SimpleAlbum{ //nolint:exhaustruct
			ID:               id,
			Name:             name,
			AlbumType:        "album",
			AlbumGroup:       "album",
			ReleaseDate:      "2020-01-01",
			Artists:          c.simpleArtists(artistIDs),
			AvailableMarkets: []string{"US"},
		},
		Popularity: 40,
		Label:      "Test Records",
	}
	c.Albums[id] = a
	c.albumOrder = append(c.albumOrder, id)
	if len(artistIDs) > 0 {
		c.ArtistAlbums[artistIDs[0]] = append(c.ArtistAlbums[artistIDs[0]], id)
	}
	return a
}

// AddTrack registers a track on albumID credited to artistIDs.
func (c *Catalog) AddTrack(id, albumID string, artistIDs ...string) *spotify.Track {
	c.AlbumTracks[albumID] = append(c.AlbumTracks[albumID], id)
	t := &spotify.Track{ //nolint:exhaustruct
		SimpleTrack: spotify.SimpleTrack{ //nolint:exhaustruct
			ID:               id,
			Name:             "Track " + id,
			Type:             "track",
			Artists:          c.simpleArtists(artistIDs),
			DurationMs:       180000,
			TrackNumber:      len(c.AlbumTracks[albumID]),
			DiscNumber:       1,
			AvailableMarkets: []string{"US"},
		},
		Popularity: popularity(id),
	}
	if album, ok := c.Albums[albumID]; ok {
		t.Album = album.SimpleAlbum
		album.TotalTracks = len(c.AlbumTracks[albumID])
	}
	c.Tracks[id] = t
	return t
}

// AddAudioFeatures registers analysis for trackID with values derived from
// the id.
func (c *Catalog) AddAudioFeatures(trackID string) *spotify.AudioFeatures {
	h := float32(popularity(trackID)) / 100
	f := &spotify.AudioFeatures{ //nolint:exhaustruct
		ID:               zspotify.ID(trackID),
		Acousticness:     h,
		Danceability:     1 - h,
		Energy:           h / 2,
		Instrumentalness: 0.1,
		Liveness:         0.2,
		Loudness:         -7.5,
		Speechiness:      0.05,
		Tempo:            120,
		Valence:          0.6,
		Key:              5,
		Mode:             1,
		TimeSignature:    4,
	}
	c.AudioFeatures[trackID] = f
	return f
}

func (c *Catalog) AddPlaylist(id, name string) *spotify.SimplePlaylist {
	p := &spotify.SimplePlaylist{ //nolint:exhaustruct
		ID:    id,
		Name:  name,
		Owner: spotify.PlaylistOwner{ID: "owner", DisplayName: "Owner"},
	}
	c.Playlists[id] = p
	c.PlaylistEntries[id] = make([]*spotify.PlaylistEntry, 0)
	c.playlistOrder = append(c.playlistOrder, id)
	return p
}

// AppendToPlaylist adds entries for trackIDs, which must already be
// registered.
func (c *Catalog) AppendToPlaylist(playlistID string, trackIDs ...string) {
	for _, id := range trackIDs {
		c.PlaylistEntries[playlistID] = append(c.PlaylistEntries[playlistID], &spotify.PlaylistEntry{
			AddedAt: "2021-01-01T00:00:00Z",
			IsLocal: false,
			Track:   c.Tracks[id],
		})
	}
	c.Playlists[playlistID].Tracks.Total = len(c.PlaylistEntries[playlistID])
}

// AppendUnavailable adds a null track entry.
func (c *Catalog) AppendUnavailable(playlistID string) {
	c.PlaylistEntries[playlistID] = append(c.PlaylistEntries[playlistID], &spotify.PlaylistEntry{AddedAt: "2021-01-01T00:00:00Z", IsLocal: false, Track: nil})
	c.Playlists[playlistID].Tracks.Total = len(c.PlaylistEntries[playlistID])
}

// AppendLocal adds a local file entry, which has no catalog id.
func (c *Catalog) AppendLocal(playlistID, name string) {
	track := &spotify.Track{ //nolint:exhaustruct
		SimpleTrack: spotify.SimpleTrack{Name: name, Type: "track", IsLocal: true}, //nolint:exhaustruct
	}
	c.PlaylistEntries[playlistID] = append(c.PlaylistEntries[playlistID], &spotify.PlaylistEntry{AddedAt: "2021-01-01T00:00:00Z", IsLocal: true, Track: track})
	c.Playlists[playlistID].Tracks.Total = len(c.PlaylistEntries[playlistID])
}

func popularity(id string) int {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return int(h.Sum32() % 100)
}
