package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/jfmyers9/partyline/internal/resolver"
	"github.com/spf13/viper"
)

// Resolver backends.
const (
	BackendLastFM  = "lastfm"
	BackendCatalog = "catalog"
)

// Config holds application configuration
type Config struct {
	// Address the server listens on
	// Default: "localhost:6789"
	ListenAddr string

	// WebSocket transport settings
	WS WSConfig

	// Track resolver settings
	Resolver ResolverConfig

	// Last.fm API credentials
	LastFM LastFMConfig

	// Resolver cache settings
	Cache CacheConfig

	// Output format template for the lookup command
	// Default: "{{.Artist}} - {{.Title}} ({{.Duration}})"
	OutputFormat string
}

// WSConfig holds WebSocket transport settings
type WSConfig struct {
	ReadLimit    int64
	WriteTimeout time.Duration
	PingInterval time.Duration
}

// ResolverConfig selects and configures the track resolver
type ResolverConfig struct {
	Backend string
	Catalog []resolver.Entry
}

// LastFMConfig holds Last.fm specific configuration
type LastFMConfig struct {
	APIKey string
}

// CacheConfig holds resolver cache settings. An empty Path disables the cache.
type CacheConfig struct {
	Path string
	TTL  time.Duration
}

// Load reads configuration from file and environment
func Load() (*Config, error) {
	return load(getConfigDir())
}

func load(configDir string) (*Config, error) {
	v := viper.New()

	// Set config name and paths
	v.SetConfigName("config")
	v.SetConfigType("yaml")

	// Config file locations (in order of precedence)
	v.AddConfigPath(configDir)
	v.AddConfigPath(".")

	// Set defaults
	v.SetDefault("listen_addr", "localhost:6789")
	v.SetDefault("ws.read_limit", 64*1024)
	v.SetDefault("ws.write_timeout", 10*time.Second)
	v.SetDefault("ws.ping_interval", 30*time.Second)
	v.SetDefault("resolver.backend", BackendLastFM)
	v.SetDefault("cache.path", filepath.Join(configDir, "tracks.db"))
	v.SetDefault("cache.ttl", 7*24*time.Hour)
	v.SetDefault("output_format", "{{.Artist}} - {{.Title}} ({{.Duration}})")

	// Read config file (optional - don't fail if missing)
	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); !ok {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Read from environment variables
	v.SetEnvPrefix("PARTYLINE")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Map config to struct
	cfg := &Config{
		ListenAddr: v.GetString("listen_addr"),
		WS: WSConfig{
			ReadLimit:    v.GetInt64("ws.read_limit"),
			WriteTimeout: v.GetDuration("ws.write_timeout"),
			PingInterval: v.GetDuration("ws.ping_interval"),
		},
		Resolver: ResolverConfig{
			Backend: strings.ToLower(v.GetString("resolver.backend")),
		},
		LastFM: LastFMConfig{
			APIKey: v.GetString("lastfm.api_key"),
		},
		Cache: CacheConfig{
			Path: v.GetString("cache.path"),
			TTL:  v.GetDuration("cache.ttl"),
		},
		OutputFormat: v.GetString("output_format"),
	}

	if err := v.UnmarshalKey("resolver.catalog", &cfg.Resolver.Catalog); err != nil {
		return nil, fmt.Errorf("failed to parse resolver catalog: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks settings that would otherwise fail at first use
func (c *Config) Validate() error {
	switch c.Resolver.Backend {
	case BackendLastFM, BackendCatalog:
	default:
		return fmt.Errorf("unknown resolver backend %q (want %s or %s)", c.Resolver.Backend, BackendLastFM, BackendCatalog)
	}

	if c.ListenAddr == "" {
		return fmt.Errorf("listen_addr must not be empty")
	}

	return nil
}

// getConfigDir returns the configuration directory path
// Creates the directory if it doesn't exist
func getConfigDir() string {
	homeDir, err := os.UserHomeDir()
	if err != nil {
		return "."
	}

	configDir := filepath.Join(homeDir, ".config", "partyline")

	// Create config directory if it doesn't exist
	_ = os.MkdirAll(configDir, 0755)

	return configDir
}
