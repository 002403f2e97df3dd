package timescrub

import "github.com/hazyhaar/timescrub/timescrub/internal/config"

// Re-export configuration types for external consumers.
type (
	Config          = config.Config
	ArchiveConfig   = config.ArchiveConfig
	CaptureConfig   = config.CaptureConfig
	PixelDiffConfig = config.PixelDiffConfig
	BookmarkConfig  = config.BookmarkConfig
	HTTPConfig      = config.HTTPConfig
	SinkConfig      = config.SinkConfig
)

// LoadConfigFile reads a YAML configuration file and applies defaults.
func LoadConfigFile(path string) (*Config, error) {
	return config.LoadFile(path)
}

// DefaultConfig returns a configuration with every default applied.
func DefaultConfig() *Config {
	return config.Default()
}
