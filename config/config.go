// Package config loads server configuration from an optional YAML file and
// WEBTOBOOK_-prefixed environment variables. Everything has a default, so
// a bare `webtobook serve` works out of the box.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config is the full application configuration.
type Config struct {
	Server    ServerConfig    `mapstructure:"server"`
	Scraper   ScraperConfig   `mapstructure:"scraper"`
	Discovery DiscoveryConfig `mapstructure:"discovery"`
	Images    ImagesConfig    `mapstructure:"images"`
	Logging   LoggingConfig   `mapstructure:"logging"`
}

type ServerConfig struct {
	Addr string `mapstructure:"addr"`
	Mode string `mapstructure:"mode"` // debug / release
}

type ScraperConfig struct {
	Retries int           `mapstructure:"retries"`
	Timeout time.Duration `mapstructure:"timeout"`
}

type DiscoveryConfig struct {
	MaxPages      int  `mapstructure:"max_pages"`
	ProbeFallback bool `mapstructure:"probe_fallback"`
}

type ImagesConfig struct {
	CacheTTL time.Duration `mapstructure:"cache_ttl"`
}

type LoggingConfig struct {
	Level  string `mapstructure:"level"`  // debug / info / warn / error
	Format string `mapstructure:"format"` // json / text
}

// Load reads configuration from path (optional) and the environment.
func Load(path string) (*Config, error) {
	v := viper.New()

	v.SetDefault("server.addr", ":8080")
	v.SetDefault("server.mode", "release")
	v.SetDefault("scraper.retries", 3)
	v.SetDefault("scraper.timeout", 30*time.Second)
	v.SetDefault("discovery.max_pages", 300)
	v.SetDefault("discovery.probe_fallback", true)
	v.SetDefault("images.cache_ttl", time.Hour)
	v.SetDefault("logging.level", "info")
	v.SetDefault("logging.format", "text")

	v.SetEnvPrefix("WEBTOBOOK")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("reading config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshaling config: %w", err)
	}
	return &cfg, nil
}
