package config

import (
	"log/slog"
	"path/filepath"
	"time"

	"github.com/adrg/xdg"

	sitemapcsv "github.com/kotylevskiy/go-sitemap-csv"
)

// Default configuration values.
const (
	// AppName is used for XDG directory names.
	AppName = "sitemap-to-csv"

	// DefaultOutput is the CSV written when --output is not given.
	DefaultOutput = "sitemap_urls.csv"

	// DefaultMaxDepth and DefaultMaxFetches bound pathological sitemap trees.
	DefaultMaxDepth   = sitemapcsv.DefaultMaxDepth
	DefaultMaxFetches = sitemapcsv.DefaultMaxFetches

	// DefaultConcurrency keeps traversal sequential unless asked otherwise.
	DefaultConcurrency = 1

	// DefaultTimeout applies to each sitemap request.
	DefaultTimeout = 30 * time.Second

	// DefaultServeAddr is where the web UI listens.
	DefaultServeAddr = "127.0.0.1:8080"

	// DefaultConfigFile is the file name looked up in the XDG config dir.
	DefaultConfigFile = "config.yaml"

	// DefaultHistoryLimit is how many runs `history` lists.
	DefaultHistoryLimit = 20
)

// Config holds every option of the CLI and the web UI.
type Config struct {
	// Output is the CSV path; "-" writes to stdout.
	Output string

	// MaxDepth and MaxFetches are passed to the resolver; negative disables.
	MaxDepth   int
	MaxFetches int

	// Concurrency is the number of sitemaps fetched in parallel per level.
	Concurrency int

	// Timeout is per request, TotalTimeout bounds the whole run (0 = none).
	Timeout      time.Duration
	TotalTimeout time.Duration

	CAFile        string
	Insecure      bool
	UserAgent     string
	MaxBodySize   int64
	RespectRobots bool

	// Discover treats the argument as a site and looks up its sitemaps.
	Discover bool

	StripDomain bool
	Sort        bool

	// ReportFile receives a Markdown report when set.
	ReportFile string

	// History records every run in a SQLite database under DBDir.
	History bool
	DBDir   string

	LogLevel string

	// ConfigFilePath is an explicit config file; empty means the XDG default.
	ConfigFilePath string

	// Addr is the listen address of the web UI.
	Addr string
}

// NewConfig returns a Config populated with defaults.
func NewConfig() *Config {
	return &Config{
		Output:      DefaultOutput,
		MaxDepth:    DefaultMaxDepth,
		MaxFetches:  DefaultMaxFetches,
		Concurrency: DefaultConcurrency,
		Timeout:     DefaultTimeout,
		DBDir:       XDGDataDir(),
		Addr:        DefaultServeAddr,
	}
}

// XDGConfigDir returns the config directory, e.g. ~/.config/sitemap-to-csv on Linux.
func XDGConfigDir() string {
	return filepath.Join(xdg.ConfigHome, AppName)
}

// XDGDataDir returns the data directory, e.g. ~/.local/share/sitemap-to-csv on Linux.
func XDGDataDir() string {
	return filepath.Join(xdg.DataHome, AppName)
}

// DefaultConfigPath is where the config file is looked up when --config is not given.
func DefaultConfigPath() string {
	return filepath.Join(XDGConfigDir(), DefaultConfigFile)
}

// Validate checks the configuration and returns the first problem found.
func (c *Config) Validate() error {
	if c.Output == "" {
		return ErrNoOutput
	}
	if c.Concurrency <= 0 {
		return ErrInvalidConcurrency
	}
	if c.Timeout < 0 || c.TotalTimeout < 0 {
		return ErrInvalidTimeout
	}
	if c.MaxBodySize < 0 {
		return ErrInvalidMaxBodySize
	}
	if c.CAFile != "" && c.Insecure {
		return ErrConflictingTLSOptions
	}
	return nil
}

// Transport builds the fetcher configuration.
func (c *Config) Transport(logger *slog.Logger) sitemapcsv.TransportConfig {
	return sitemapcsv.TransportConfig{
		CAFile:             c.CAFile,
		InsecureSkipVerify: c.Insecure,
		UserAgent:          c.UserAgent,
		Timeout:            c.Timeout,
		MaxBodySize:        c.MaxBodySize,
		RespectRobots:      c.RespectRobots,
		Logger:             logger,
	}
}

// ResolverOptions builds resolver options around the given fetcher.
func (c *Config) ResolverOptions(fetcher sitemapcsv.Fetcher, logger *slog.Logger) sitemapcsv.Options {
	return sitemapcsv.Options{
		Fetcher:     fetcher,
		MaxDepth:    c.MaxDepth,
		MaxFetches:  c.MaxFetches,
		Concurrency: c.Concurrency,
		Logger:      logger,
	}
}
