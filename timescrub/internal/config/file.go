// Package config handles timescrub configuration from YAML files.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/hazyhaar/timescrub/horosafe"
)

// Config is the top-level timescrub configuration.
type Config struct {
	Archive   ArchiveConfig   `yaml:"archive"`
	Capture   CaptureConfig   `yaml:"capture"`
	PixelDiff PixelDiffConfig `yaml:"pixeldiff"`
	Bookmarks BookmarkConfig  `yaml:"bookmarks"`
	HTTP      HTTPConfig      `yaml:"http"`
	Sinks     []SinkConfig    `yaml:"sinks"`
}

// ArchiveConfig locates the snapshot archive backend.
type ArchiveConfig struct {
	BaseURL   string        `yaml:"base_url"`
	APIPrefix string        `yaml:"api_prefix"` // e.g. /api/v1
	Timeout   time.Duration `yaml:"timeout"`
	UserAgent string        `yaml:"user_agent"`
	MaxBytes  int64         `yaml:"max_bytes"`
}

// CaptureConfig controls off-screen rendering.
type CaptureConfig struct {
	Remote           string        `yaml:"remote"`
	Width            int           `yaml:"width"`
	Height           int           `yaml:"height"`
	NavTimeout       time.Duration `yaml:"nav_timeout"`
	Settle           time.Duration `yaml:"settle"`
	Stealth          *bool         `yaml:"stealth"`
	ResourceBlocking []string      `yaml:"resource_blocking"`
	RecycleInterval  time.Duration `yaml:"recycle_interval"`
	MemoryLimit      int64         `yaml:"memory_limit"`
}

// StealthEnabled reports the stealth setting, true when unset.
func (c CaptureConfig) StealthEnabled() bool {
	return c.Stealth == nil || *c.Stealth
}

// PixelDiffConfig tunes the pixel comparison.
type PixelDiffConfig struct {
	Threshold float64 `yaml:"threshold"`  // CIE-Lab distance
	Dim       float64 `yaml:"dim"`        // grey share kept for matched pixels
	Highlight string  `yaml:"highlight"`  // #rrggbb
	Grid      int     `yaml:"grid"`       // region cell size in pixels
	RegionMin float64 `yaml:"region_min"` // share of changed pixels per reported cell
	MemoSize  int     `yaml:"memo_size"`
}

// BookmarkConfig selects the bookmark store.
type BookmarkConfig struct {
	Backend string `yaml:"backend"` // memory | sqlite | file
	Path    string `yaml:"path"`
}

// HTTPConfig controls the host HTTP API.
type HTTPConfig struct {
	Addr string `yaml:"addr"`
}

// SinkConfig defines an output backend.
type SinkConfig struct {
	Type string `yaml:"type"` // stdout | webhook
	URL  string `yaml:"url"`  // for webhook
}

// Default returns a configuration with every default applied.
func Default() *Config {
	var cfg Config
	cfg.applyDefaults()
	return &cfg
}

// LoadFile reads a YAML configuration file.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("config: read %s: %w", path, err)
	}
	return Parse(data)
}

// Parse decodes YAML configuration and applies defaults.
func Parse(data []byte) (*Config, error) {
	var cfg Config
	if err := yaml.Unmarshal(data, &cfg); err != nil {
		return nil, fmt.Errorf("config: parse: %w", err)
	}
	cfg.applyDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks values defaults cannot repair.
func (c *Config) Validate() error {
	if _, err := horosafe.CheckURL(c.Archive.BaseURL); err != nil {
		return fmt.Errorf("config: archive.base_url: %w", err)
	}
	switch c.Bookmarks.Backend {
	case "memory":
	case "sqlite", "file":
		if c.Bookmarks.Path == "" {
			return fmt.Errorf("config: bookmarks.path required for backend %q", c.Bookmarks.Backend)
		}
	default:
		return fmt.Errorf("config: unknown bookmarks.backend %q", c.Bookmarks.Backend)
	}
	for i, s := range c.Sinks {
		switch s.Type {
		case "stdout":
		case "webhook":
			if s.URL == "" {
				return fmt.Errorf("config: sinks[%d]: webhook requires url", i)
			}
			if _, err := horosafe.CheckURL(s.URL); err != nil {
				return fmt.Errorf("config: sinks[%d]: %w", i, err)
			}
		default:
			return fmt.Errorf("config: sinks[%d]: unknown type %q", i, s.Type)
		}
	}
	return nil
}

func (c *Config) applyDefaults() {
	if c.Archive.BaseURL == "" {
		c.Archive.BaseURL = "http://localhost:3001"
	}
	if c.Archive.Timeout <= 0 {
		c.Archive.Timeout = 30 * time.Second
	}
	if c.Archive.UserAgent == "" {
		c.Archive.UserAgent = "timescrub/1.0"
	}
	if c.Archive.MaxBytes <= 0 {
		c.Archive.MaxBytes = 10 * 1024 * 1024
	}

	if c.Capture.Width <= 0 {
		c.Capture.Width = 1920
	}
	if c.Capture.Height <= 0 {
		c.Capture.Height = 1080
	}
	if c.Capture.NavTimeout <= 0 {
		c.Capture.NavTimeout = 30 * time.Second
	}
	if c.Capture.Settle <= 0 {
		c.Capture.Settle = 500 * time.Millisecond
	}
	if c.Capture.RecycleInterval <= 0 {
		c.Capture.RecycleInterval = 4 * time.Hour
	}

	if c.PixelDiff.Threshold <= 0 {
		c.PixelDiff.Threshold = 0.05
	}
	if c.PixelDiff.Dim <= 0 {
		c.PixelDiff.Dim = 0.1
	}
	if c.PixelDiff.Highlight == "" {
		c.PixelDiff.Highlight = "#ff0000"
	}
	if c.PixelDiff.Grid <= 0 {
		c.PixelDiff.Grid = 50
	}
	if c.PixelDiff.RegionMin <= 0 {
		c.PixelDiff.RegionMin = 0.1
	}
	if c.PixelDiff.MemoSize <= 0 {
		c.PixelDiff.MemoSize = 16
	}

	if c.Bookmarks.Backend == "" {
		c.Bookmarks.Backend = "memory"
	}
	if c.HTTP.Addr == "" {
		c.HTTP.Addr = ":8086"
	}
}
