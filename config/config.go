package config

import (
	"errors"
	"fmt"
	"os"

	"gopkg.in/yaml.v3"
)

type Config struct {
	HTTP     HTTP     `json:"http"     yaml:"http"`
	Upstream Upstream `json:"upstream" yaml:"upstream"`
	Paging   Paging   `json:"paging"   yaml:"paging"`
	Batch    Batch    `json:"batch"    yaml:"batch"`
	Log      Log      `json:"log"      yaml:"log"`
}

type HTTP struct {
	ListenAddress      string   `json:"listen_address"       yaml:"listen_address"`
	CORSAllowedOrigins []string `json:"cors_allowed_origins" yaml:"cors_allowed_origins"`
	// RequestsPerMinute caps requests per client IP. Zero disables the limit.
	RequestsPerMinute int `json:"requests_per_minute" yaml:"requests_per_minute"`
}

type Upstream struct {
	APIBaseURL string `json:"api_base_url" yaml:"api_base_url"`
	TokenURL   string `json:"token_url"    yaml:"token_url"`
	Market     string `json:"market"       yaml:"market"`
	// RequestsPerSecond of zero disables the upstream rate limiter.
	RequestsPerSecond float64 `json:"requests_per_second" yaml:"requests_per_second"`
	RequestsBurst     int     `json:"requests_burst"      yaml:"requests_burst"`
}

type Paging struct {
	ArtistAlbums   int `json:"artist_albums"   yaml:"artist_albums"`
	AlbumTracks    int `json:"album_tracks"    yaml:"album_tracks"`
	PlaylistTracks int `json:"playlist_tracks" yaml:"playlist_tracks"`
	SearchLimit    int `json:"search_limit"    yaml:"search_limit"`
	MaxPages       int `json:"max_pages"       yaml:"max_pages"`
}

type Batch struct {
	Albums      int `json:"albums"      yaml:"albums"`
	Tracks      int `json:"tracks"      yaml:"tracks"`
	Concurrency int `json:"concurrency" yaml:"concurrency"`
}

type Log struct {
	Level  string `json:"level"  yaml:"level"`
	Pretty bool   `json:"pretty" yaml:"pretty"`
}

const (
	DefaultListenAddress    = ":8080"
	DefaultAPIBaseURL       = "https://api.spotify.com/v1"
	DefaultMarket           = "US"
	DefaultArtistAlbumsPage = 50
	DefaultAlbumTracksPage  = 50
	DefaultPlaylistPage     = 100
	DefaultSearchLimit      = 20
	DefaultMaxPages         = 500
	DefaultAlbumBatch       = 20
	DefaultTrackBatch       = 50
	DefaultBatchConcurrency = 1
	DefaultLogLevel         = "info"

	// Hard ceilings imposed by the upstream API.
	maxAlbumBatch = 20
	maxTrackBatch = 50
	maxPageSize   = 50
	maxPlaylist   = 100
)

// Default returns a config with every tunable set to its default.
func Default() Config {
	var cfg Config
	cfg.applyDefaults()
	return cfg
}

func (cfg *Config) applyDefaults() {
	if cfg.HTTP.ListenAddress == "" {
		cfg.HTTP.ListenAddress = DefaultListenAddress
	}
	if cfg.Upstream.APIBaseURL == "" {
		cfg.Upstream.APIBaseURL = DefaultAPIBaseURL
	}
	if cfg.Upstream.Market == "" {
		cfg.Upstream.Market = DefaultMarket
	}
	if cfg.Paging.ArtistAlbums == 0 {
		cfg.Paging.ArtistAlbums = DefaultArtistAlbumsPage
	}
	if cfg.Paging.AlbumTracks == 0 {
		cfg.Paging.AlbumTracks = DefaultAlbumTracksPage
	}
	if cfg.Paging.PlaylistTracks == 0 {
		cfg.Paging.PlaylistTracks = DefaultPlaylistPage
	}
	if cfg.Paging.SearchLimit == 0 {
		cfg.Paging.SearchLimit = DefaultSearchLimit
	}
	if cfg.Paging.MaxPages == 0 {
		cfg.Paging.MaxPages = DefaultMaxPages
	}
	if cfg.Batch.Albums == 0 {
		cfg.Batch.Albums = DefaultAlbumBatch
	}
	if cfg.Batch.Tracks == 0 {
		cfg.Batch.Tracks = DefaultTrackBatch
	}
	if cfg.Batch.Concurrency == 0 {
		cfg.Batch.Concurrency = DefaultBatchConcurrency
	}
	if cfg.Log.Level == "" {
		cfg.Log.Level = DefaultLogLevel
	}
}

func (cfg *Config) validate() error {
	if cfg.HTTP.RequestsPerMinute < 0 {
		return errors.New("http requests per minute is negative")
	}
	if cfg.Upstream.RequestsPerSecond < 0 {
		return errors.New("upstream requests per second is negative")
	}
	if cfg.Upstream.RequestsPerSecond > 0 && cfg.Upstream.RequestsBurst < 1 {
		return errors.New("upstream requests burst must be at least 1 when rate limiting is enabled")
	}
	if err := between("artist albums page size", cfg.Paging.ArtistAlbums, 1, maxPageSize); nil != err {
		return err
	}
	if err := between("album tracks page size", cfg.Paging.AlbumTracks, 1, maxPageSize); nil != err {
		return err
	}
	if err := between("playlist tracks page size", cfg.Paging.PlaylistTracks, 1, maxPlaylist); nil != err {
		return err
	}
	if err := between("search limit", cfg.Paging.SearchLimit, 1, maxPageSize); nil != err {
		return err
	}
	if cfg.Paging.MaxPages < 1 {
		return errors.New("max pages must be positive")
	}
	if err := between("album batch size", cfg.Batch.Albums, 1, maxAlbumBatch); nil != err {
		return err
	}
	if err := between("track batch size", cfg.Batch.Tracks, 1, maxTrackBatch); nil != err {
		return err
	}
	if cfg.Batch.Concurrency < 1 {
		return errors.New("batch concurrency must be positive")
	}
	return nil
}

func between(name string, v, lo, hi int) error {
	if v < lo || v > hi {
		return fmt.Errorf("%s must be within [%d, %d], got %d", name, lo, hi, v)
	}
	return nil
}

func FromFile(filePath string) (*Config, error) {
	data, err := os.ReadFile(filePath)
	if nil != err {
		return nil, fmt.Errorf("failed to read config file %q: %v", filePath, err)
	}

	cfg, err := parse(data)
	if nil != err {
		return nil, fmt.Errorf("config file %q: %v", filePath, err)
	}

	return cfg, nil
}

func FromString(data string) (*Config, error) {
	return parse([]byte(data))
}

func parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); nil != err {
		return nil, fmt.Errorf("failed to unmarshal config: %v", err)
	}

	cfg.applyDefaults()
	if err := cfg.validate(); nil != err {
		return nil, fmt.Errorf("validation failed: %v", err)
	}

	return &cfg, nil
}
