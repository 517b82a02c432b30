package spotify

import (
	zspotify "github.com/zmb3/spotify/v2"
)

type Image struct {
	URL    string `json:"url"`
	Height int    `json:"height"`
	Width  int    `json:"width"`
}

type Artist struct {
	ID         string   `json:"id"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Images     []Image  `json:"images"`
	Followers  struct {
		Total int `json:"total"`
	} `json:"followers"`
}

type SimpleAlbum struct {
	ID                   string         `json:"id"`
	Name                 string         `json:"name"`
	AlbumType            string         `json:"album_type"`
	AlbumGroup           string         `json:"album_group"`
	ReleaseDate          string         `json:"release_date"`
	ReleaseDatePrecision string         `json:"release_date_precision"`
	TotalTracks          int            `json:"total_tracks"`
	Artists              []SimpleArtist `json:"artists"`
	Images               []Image        `json:"images"`
	AvailableMarkets     []string       `json:"available_markets"`
}

type Album struct {
	SimpleAlbum
	Popularity int      `json:"popularity"`
	Label      string   `json:"label"`
	Genres     []string `json:"genres"`
}

type SimpleTrack struct {
	ID               string         `json:"id"`
	Name             string         `json:"name"`
	Type             string         `json:"type"`
	Artists          []SimpleArtist `json:"artists"`
	DurationMs       int            `json:"duration_ms"`
	Explicit         bool           `json:"explicit"`
	TrackNumber      int            `json:"track_number"`
	DiscNumber       int            `json:"disc_number"`
	IsLocal          bool           `json:"is_local"`
	AvailableMarkets []string       `json:"available_markets"`
	PreviewURL       string         `json:"preview_url"`
}

// ArtistIDs returns the ids of every credited artist, in credit order.
func (t *SimpleTrack) ArtistIDs() []string {
	out := make([]string, 0, len(t.Artists))
	for _, a := range t.Artists {
		out = append(out, a.ID.String())
	}
	return out
}

type Track struct {
	SimpleTrack
	Album      SimpleAlbum `json:"album"`
	Popularity int         `json:"popularity"`
}

type PlaylistOwner struct {
	ID          string `json:"id"`
	DisplayName string `json:"display_name"`
}

type SimplePlaylist struct {
	ID          string        `json:"id"`
	Name        string        `json:"name"`
	Description string        `json:"description"`
	Owner       PlaylistOwner `json:"owner"`
	Images      []Image       `json:"images"`
	Public      *bool         `json:"public"`
	Tracks      struct {
		Total int `json:"total"`
	} `json:"tracks"`
}

// PlaylistEntry is one row of a playlist. Track is nil for removed or
// unavailable items, and may describe a local file or a podcast episode.
type PlaylistEntry struct {
	AddedAt string `json:"added_at"`
	IsLocal bool   `json:"is_local"`
	Track   *Track `json:"track"`
}

const trackTypeTrack = "track"

// TrackID returns the catalog track id of the entry, or false if the entry
// does not point at a catalog track.
func (e *PlaylistEntry) TrackID() (string, bool) {
	if nil == e.Track || e.IsLocal || e.Track.IsLocal || e.Track.ID == "" {
		return "", false
	}
	if e.Track.Type != "" && e.Track.Type != trackTypeTrack {
		return "", false
	}
	return e.Track.ID, true
}

type (
	SimpleArtist  = zspotify.SimpleArtist
	AudioFeatures = zspotify.AudioFeatures
)
