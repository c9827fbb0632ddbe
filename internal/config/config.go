package config

import (
	"fmt"
	"os"
	"time"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// EnvPrefix namespaces every environment override
const EnvPrefix = "CANDLESCOPE_"

// Config represents the application configuration
type Config struct {
	Listing ListingConfig `yaml:"listing" envPrefix:"LISTING_"`
	Feed    FeedConfig    `yaml:"feed" envPrefix:"FEED_"`
	Output  OutputConfig  `yaml:"output" envPrefix:"OUTPUT_"`
	Log     LogConfig     `yaml:"log" envPrefix:"LOG_"`
}

// ListingConfig holds the top-movers listing scrape settings
type ListingConfig struct {
	StockURL  string        `yaml:"stock_url" env:"STOCK_URL"`
	FundURL   string        `yaml:"fund_url" env:"FUND_URL"`
	RowClass  string        `yaml:"row_class" env:"ROW_CLASS"`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	Retries   int           `yaml:"retries" env:"RETRIES"`
	Delay     time.Duration `yaml:"delay" env:"DELAY"`
	FundCount int           `yaml:"fund_count" env:"FUND_COUNT"`
	RateLimit int           `yaml:"rate_limit" env:"RATE_LIMIT"` // requests per minute
}

// FeedConfig holds the price series feed settings
type FeedConfig struct {
	Hosts     []string      `yaml:"hosts" env:"HOSTS" envSeparator:","`
	Timeout   time.Duration `yaml:"timeout" env:"TIMEOUT"`
	RateLimit int           `yaml:"rate_limit" env:"RATE_LIMIT"` // requests per minute
}

// OutputConfig holds where and how results are written
type OutputConfig struct {
	ChartsDir   string  `yaml:"charts_dir" env:"CHARTS_DIR"`
	PatternsDir string  `yaml:"patterns_dir" env:"PATTERNS_DIR"`
	Format      string  `yaml:"format" env:"FORMAT"`
	HistoryDB   string  `yaml:"history_db" env:"HISTORY_DB"` // empty disables run history
	ChartWidth  float64 `yaml:"chart_width" env:"CHART_WIDTH"`   // points
	ChartHeight float64 `yaml:"chart_height" env:"CHART_HEIGHT"` // points
}

// LogConfig holds logger settings
type LogConfig struct {
	Level  string `yaml:"level" env:"LEVEL"`
	Format string `yaml:"format" env:"FORMAT"` // console or json
}

// DefaultConfig returns the default configuration
func DefaultConfig() *Config {
	return &Config{
		Listing: ListingConfig{
			StockURL:  "https://finance.yahoo.com/gainers",
			FundURL:   "https://finance.yahoo.com/mutualfunds",
			RowClass:  "simpTblRow",
			Timeout:   10 * time.Second,
			Retries:   3,
			Delay:     2 * time.Second,
			FundCount: 10,
			RateLimit: 30,
		},
		Feed: FeedConfig{
			Hosts: []string{
				"https://query1.finance.yahoo.com",
				"https://query2.finance.yahoo.com",
			},
			Timeout:   30 * time.Second,
			RateLimit: 30,
		},
		Output: OutputConfig{
			ChartsDir:   "charts",
			PatternsDir: "patterns",
			Format:      "csv",
			ChartWidth:  1008,
			ChartHeight: 576,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "console",
		},
	}
}

// Load reads .env when present, overlays the YAML file on the defaults
// and finally applies CANDLESCOPE_* environment variables.
func Load(path string) (*Config, error) {
	_ = godotenv.Load()

	cfg := DefaultConfig()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parsing config file: %w", err)
		}
	case !os.IsNotExist(err):
		return nil, fmt.Errorf("reading config file: %w", err)
	}

	if err := env.ParseWithOptions(cfg, env.Options{Prefix: EnvPrefix}); err != nil {
		return nil, fmt.Errorf("parsing environment: %w", err)
	}

	return cfg, nil
}

// Validate checks if the configuration is valid
func (c *Config) Validate() error {
	if c.Listing.StockURL == "" || c.Listing.FundURL == "" {
		return fmt.Errorf("listing urls are required")
	}
	if c.Listing.Retries < 1 {
		return fmt.Errorf("listing retries must be at least 1")
	}
	if c.Listing.Delay < 0 {
		return fmt.Errorf("listing delay must not be negative")
	}
	if c.Listing.Timeout <= 0 || c.Feed.Timeout <= 0 {
		return fmt.Errorf("timeouts must be positive")
	}
	if len(c.Feed.Hosts) == 0 {
		return fmt.Errorf("at least one feed host is required")
	}
	if c.Output.ChartsDir == "" || c.Output.PatternsDir == "" {
		return fmt.Errorf("output directories are required")
	}
	if c.Output.Format != "csv" && c.Output.Format != "json" {
		return fmt.Errorf("output format must be csv or json, got %q", c.Output.Format)
	}
	if c.Output.ChartWidth <= 0 || c.Output.ChartHeight <= 0 {
		return fmt.Errorf("chart size must be positive")
	}
	return nil
}
