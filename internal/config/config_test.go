package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	require.NoError(t, err)
	assert.Equal(t, DefaultConfig(), cfg)
	assert.NoError(t, cfg.Validate())
}

func TestLoad_FileThenEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "candlescope.yaml")
	require.NoError(t, os.WriteFile(path, []byte(`
listing:
  retries: 5
  delay: 500ms
output:
  format: json
  charts_dir: out/charts
`), 0644))

	t.Setenv("CANDLESCOPE_OUTPUT_CHARTS_DIR", "env/charts")
	t.Setenv("CANDLESCOPE_FEED_HOSTS", "http://a,http://b,http://c")

	cfg, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, 5, cfg.Listing.Retries)
	assert.Equal(t, 500*time.Millisecond, cfg.Listing.Delay)
	assert.Equal(t, "json", cfg.Output.Format)
	assert.Equal(t, "env/charts", cfg.Output.ChartsDir)
	assert.Equal(t, []string{"http://a", "http://b", "http://c"}, cfg.Feed.Hosts)

	// untouched keys keep their defaults
	assert.Equal(t, 10*time.Second, cfg.Listing.Timeout)
	assert.Equal(t, "patterns", cfg.Output.PatternsDir)
}

func TestLoad_BadYAML(t *testing.T) {
	path := filepath.Join(t.TempDir(), "bad.yaml")
	require.NoError(t, os.WriteFile(path, []byte("listing: [oops"), 0644))

	_, err := Load(path)
	assert.Error(t, err)
}

func TestLoad_BadEnv(t *testing.T) {
	t.Setenv("CANDLESCOPE_LISTING_RETRIES", "many")

	_, err := Load(filepath.Join(t.TempDir(), "absent.yaml"))
	assert.Error(t, err)
}

func TestValidate(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(c *Config)
	}{
		{"zero retries", func(c *Config) { c.Listing.Retries = 0 }},
		{"negative delay", func(c *Config) { c.Listing.Delay = -time.Second }},
		{"zero timeout", func(c *Config) { c.Feed.Timeout = 0 }},
		{"no hosts", func(c *Config) { c.Feed.Hosts = nil }},
		{"no charts dir", func(c *Config) { c.Output.ChartsDir = "" }},
		{"bad format", func(c *Config) { c.Output.Format = "xlsx" }},
		{"no stock url", func(c *Config) { c.Listing.StockURL = "" }},
		{"zero width", func(c *Config) { c.Output.ChartWidth = 0 }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := DefaultConfig()
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}
