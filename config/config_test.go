package config_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/xeptore/spotwrap/config"
)

func TestFromString(t *testing.T) {
	t.Parallel()

	t.Run("Defaults", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromString("{}")
		require.NoError(t, err)
		assert.Equal(t, config.Default(), *cfg)
		assert.Equal(t, 20, cfg.Batch.Albums)
		assert.Equal(t, 50, cfg.Batch.Tracks)
		assert.Equal(t, 50, cfg.Paging.ArtistAlbums)
		assert.Equal(t, 50, cfg.Paging.AlbumTracks)
		assert.Equal(t, 100, cfg.Paging.PlaylistTracks)
		assert.Equal(t, "US", cfg.Upstream.Market)
		assert.Equal(t, 1, cfg.Batch.Concurrency)
	})

	t.Run("Overrides", func(t *testing.T) {
		t.Parallel()
		cfg, err := config.FromString(`
upstream:
  market: DE
  requests_per_second: 10
  requests_burst: 5
batch:
  tracks: 25
  concurrency: 4
`)
		require.NoError(t, err)
		assert.Equal(t, "DE", cfg.Upstream.Market)
		assert.Equal(t, 25, cfg.Batch.Tracks)
		assert.Equal(t, 4, cfg.Batch.Concurrency)
		assert.InDelta(t, 10.0, cfg.Upstream.RequestsPerSecond, 0)
	})

	t.Run("BatchAboveUpstreamCeiling", func(t *testing.T) {
		t.Parallel()
		_, err := config.FromString("batch:\n  albums: 21\n")
		require.Error(t, err)
		assert.Contains(t, err.Error(), "album batch size")
	})

	t.Run("RateLimitWithoutBurst", func(t *testing.T) {
		t.Parallel()
		_, err := config.FromString("upstream:\n  requests_per_second: 3\n")
		require.Error(t, err)
	})

	t.Run("Malformed", func(t *testing.T) {
		t.Parallel()
		_, err := config.FromString("batch: [")
		require.Error(t, err)
	})
}

func TestFromFile(t *testing.T) {
	t.Parallel()

	filePath := filepath.Join(t.TempDir(), "config.yaml")
	require.NoError(t, os.WriteFile(filePath, []byte("paging:\n  max_pages: 3\n"), 0o0600))

	cfg, err := config.FromFile(filePath)
	require.NoError(t, err)
	assert.Equal(t, 3, cfg.Paging.MaxPages)

	_, err = config.FromFile(filepath.Join(t.TempDir(), "missing.yaml"))
	require.Error(t, err)
}
