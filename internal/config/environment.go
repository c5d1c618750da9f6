package config

import (
	"fmt"
	"net/url"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v2"

	"kevfeed/internal/cache"
	"kevfeed/internal/catalog"
)

type Config struct {
	Port        int         `yaml:"port"`
	UpstreamURL string      `yaml:"upstream_url"`
	Cache       CacheConfig `yaml:"cache"`
	// RefreshInterval drives the in-process update loop; 0 leaves refreshing
	// to an external scheduler.
	RefreshInterval time.Duration `yaml:"refresh_interval"`
	// RefreshTokenHash is a bcrypt hash guarding POST /admin/refresh. Empty
	// disables the endpoint.
	RefreshTokenHash string `yaml:"refresh_token_hash"`
	MaxConnections   int    `yaml:"max_connections"`
	LogLevel         string `yaml:"log_level"`
	LogColor         bool   `yaml:"log_color"`
}

type CacheConfig struct {
	Type string `yaml:"type"`
	Path string `yaml:"path"`
}

func Default() Config {
	return Config{
		Port:            8080,
		UpstreamURL:     catalog.DefaultURL,
		Cache:           CacheConfig{Type: cache.TypeMemory},
		RefreshInterval: time.Hour,
		MaxConnections:  256,
		LogLevel:        "info",
	}
}

// GetConfig returns the defaults overridden by KEVFEED_* environment variables.
func GetConfig() Config {
	config := Default()
	config.applyEnv()
	return config
}

// Load layers defaults, the YAML file at path (if any; KEVFEED_CONFIG is used
// when path is empty) and then the environment.
func Load(path string) (Config, error) {
	config := Default()

	if path == "" {
		path = os.Getenv("KEVFEED_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("error reading config file: %w", err)
		}
		if err := yaml.UnmarshalStrict(b, &config); err != nil {
			return Config{}, fmt.Errorf("error parsing config file %s: %w", path, err)
		}
	}

	config.applyEnv()
	if err := config.Validate(); err != nil {
		return Config{}, err
	}
	return config, nil
}

func (c *Config) applyEnv() {
	if port := os.Getenv("KEVFEED_PORT"); port != "" {
		if p, err := strconv.Atoi(port); err == nil {
			c.Port = p
		}
	}

	if u := os.Getenv("KEVFEED_UPSTREAM_URL"); u != "" {
		c.UpstreamURL = u
	}

	if t := os.Getenv("KEVFEED_CACHE_TYPE"); t != "" {
		c.Cache.Type = t
	}

	if p := os.Getenv("KEVFEED_CACHE_PATH"); p != "" {
		c.Cache.Path = p
	}

	if i := os.Getenv("KEVFEED_REFRESH_INTERVAL"); i != "" {
		if d, err := time.ParseDuration(i); err == nil {
			c.RefreshInterval = d
		}
	}

	if h := os.Getenv("KEVFEED_REFRESH_TOKEN_HASH"); h != "" {
		c.RefreshTokenHash = h
	}

	if m := os.Getenv("KEVFEED_MAX_CONNECTIONS"); m != "" {
		if n, err := strconv.Atoi(m); err == nil {
			c.MaxConnections = n
		}
	}

	if l := os.Getenv("KEVFEED_LOG_LEVEL"); l != "" {
		c.LogLevel = l
	}
}

func (c Config) Validate() error {
	if c.Port < 1 || c.Port > 65535 {
		return fmt.Errorf("invalid port %d", c.Port)
	}
	u, err := url.Parse(c.UpstreamURL)
	if err != nil {
		return fmt.Errorf("invalid upstream_url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("invalid upstream_url %q: must use HTTP or HTTPS", c.UpstreamURL)
	}
	if u.Host == "" {
		return fmt.Errorf("invalid upstream_url %q: missing host", c.UpstreamURL)
	}
	if !slices.Contains(cache.Types, strings.ToLower(c.Cache.Type)) {
		return fmt.Errorf("unsupported cache type %q, expected one of %s", c.Cache.Type, strings.Join(cache.Types, ", "))
	}
	if strings.ToLower(c.Cache.Type) != cache.TypeMemory && c.Cache.Path == "" {
		return fmt.Errorf("cache type %q requires a cache path", c.Cache.Type)
	}
	if c.RefreshInterval < 0 {
		return fmt.Errorf("refresh_interval must not be negative")
	}
	if c.MaxConnections < 0 {
		return fmt.Errorf("max_connections must not be negative")
	}
	return nil
}

func (c Config) GetAddress() string {
	return fmt.Sprintf(":%d", c.Port)
}

// CacheStoreConfig converts the cache section for cache.Config.New.
func (c Config) CacheStoreConfig() cache.Config {
	return cache.Config{Type: c.Cache.Type, Path: c.Cache.Path}
}
