package aggregate

import (
	"github.com/samber/lo"

	"github.com/xeptore/spotwrap/ptr"
	"github.com/xeptore/spotwrap/spotify"
)

// Track is catalog metadata for one track, enriched with its audio analysis
// when the upstream has one. Feature fields are nil when it does not.
type Track struct {
	ID               string   `json:"spotifyId"`
	Name             string   `json:"name"`
	ArtistIDs        []string `json:"artistIds"`
	AlbumID          string   `json:"albumId"`
	AvailableMarkets []string `json:"availableMarkets"`
	Popularity       int      `json:"popularity"`
	TrackNumber      int      `json:"trackNumber"`
	DurationMs       int      `json:"durationMs"`
	Explicit         bool     `json:"explicit"`

	Danceability     *float32 `json:"danceability"`
	Energy           *float32 `json:"energy"`
	Key              *int     `json:"key"`
	Loudness         *float32 `json:"loudness"`
	Mode             *int     `json:"mode"`
	Speechiness      *float32 `json:"speechiness"`
	Acousticness     *float32 `json:"acousticness"`
	Instrumentalness *float32 `json:"instrumentalness"`
	Liveness         *float32 `json:"liveness"`
	Valence          *float32 `json:"valence"`
	Tempo            *float32 `json:"tempo"`
	TimeSignature    *int     `json:"timeSignature"`
}

func newTrack(t *spotify.Track) *Track {
	return &Track{
		ID:               t.ID,
		Name:             t.Name,
		ArtistIDs:        t.ArtistIDs(),
		AlbumID:          t.Album.ID,
		AvailableMarkets: t.AvailableMarkets,
		Popularity:       t.Popularity,
		TrackNumber:      t.TrackNumber,
		DurationMs:       t.DurationMs,
		Explicit:         t.Explicit,
		Danceability:     nil,
		Energy:           nil,
		Key:              nil,
		Loudness:         nil,
		Mode:             nil,
		Speechiness:      nil,
		Acousticness:     nil,
		Instrumentalness: nil,
		Liveness:         nil,
		Valence:          nil,
		Tempo:            nil,
		TimeSignature:    nil,
	}
}

// HasFeatures reports whether audio analysis was merged into t.
func (t *Track) HasFeatures() bool {
	return nil != t.Tempo
}

func (t *Track) applyFeatures(f *spotify.AudioFeatures) {
	t.Danceability = ptr.Of(f.Danceability)
	t.Energy = ptr.Of(f.Energy)
	t.Key = ptr.Of(int(f.Key))
	t.Loudness = ptr.Of(f.Loudness)
	t.Mode = ptr.Of(int(f.Mode))
	t.Speechiness = ptr.Of(f.Speechiness)
	t.Acousticness = ptr.Of(f.Acousticness)
	t.Instrumentalness = ptr.Of(f.Instrumentalness)
	t.Liveness = ptr.Of(f.Liveness)
	t.Valence = ptr.Of(f.Valence)
	t.Tempo = ptr.Of(f.Tempo)
	t.TimeSignature = ptr.Of(int(f.TimeSignature))
}

type Album struct {
	ID                   string   `json:"spotifyId"`
	Name                 string   `json:"name"`
	ArtistIDs            []string `json:"artistIds"`
	AlbumType            string   `json:"albumType"`
	AvailableMarkets     []string `json:"availableMarkets"`
	Genres               []string `json:"genres"`
	Label                string   `json:"label"`
	Popularity           int      `json:"popularity"`
	ImageURLs            []string `json:"imageUrls"`
	ReleaseDate          string   `json:"releaseDate"`
	ReleaseDatePrecision string   `json:"releaseDatePrecision"`
	TotalTracks          int      `json:"totalTracks"`
}

func newAlbum(a *spotify.Album) *Album {
	return &Album{
		ID:                   a.ID,
		Name:                 a.Name,
		ArtistIDs:            lo.Map(a.Artists, func(v spotify.SimpleArtist, _ int) string { return v.ID.String() }),
		AlbumType:            a.AlbumType,
		AvailableMarkets:     a.AvailableMarkets,
		Genres:               a.Genres,
		Label:                a.Label,
		Popularity:           a.Popularity,
		ImageURLs:            imageURLs(a.Images),
		ReleaseDate:          a.ReleaseDate,
		ReleaseDatePrecision: a.ReleaseDatePrecision,
		TotalTracks:          a.TotalTracks,
	}
}

type Artist struct {
	ID         string   `json:"spotifyId"`
	Name       string   `json:"name"`
	Genres     []string `json:"genres"`
	Popularity int      `json:"popularity"`
	Followers  int      `json:"followers"`
	ImageURLs  []string `json:"imageUrls"`
}

func newArtist(a *spotify.Artist) *Artist {
	return &Artist{
		ID:         a.ID,
		Name:       a.Name,
		Genres:     a.Genres,
		Popularity: a.Popularity,
		Followers:  a.Followers.Total,
		ImageURLs:  imageURLs(a.Images),
	}
}

type Playlist struct {
	ID         string   `json:"spotifyId"`
	UserID     string   `json:"userId"`
	Name       string   `json:"name"`
	TrackCount int      `json:"trackCount"`
	ImageURLs  []string `json:"imageUrls"`
}

func newPlaylist(p *spotify.SimplePlaylist) *Playlist {
	return &Playlist{
		ID:         p.ID,
		UserID:     p.Owner.ID,
		Name:       p.Name,
		TrackCount: p.Tracks.Total,
		ImageURLs:  imageURLs(p.Images),
	}
}

// ArtistInfo bundles an artist with its albums and the tracks credited to it.
type ArtistInfo struct {
	Artists map[string]*Artist `json:"artists"`
	Albums  map[string]*Album  `json:"albums"`
	Tracks  map[string]*Track  `json:"tracks"`
}

func imageURLs(images []spotify.Image) []string {
	return lo.Map(images, func(v spotify.Image, _ int) string { return v.URL })
}
