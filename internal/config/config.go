package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// Config captures the messaging service runtime parameters.
type Config struct {
	HTTPAddress string         `mapstructure:"http_address"`
	LogLevel    string         `mapstructure:"log_level"`
	DatabaseURL string         `mapstructure:"database_url"`
	RedisURL    string         `mapstructure:"redis_url"`
	Feed        FeedConfig     `mapstructure:"feed"`
	Timeouts    TimeoutsConfig `mapstructure:"timeouts"`
}

// FeedConfig describes the realtime change-feed endpoint and reconnect policy.
type FeedConfig struct {
	URL        string        `mapstructure:"url"`
	MinBackoff time.Duration `mapstructure:"min_backoff"`
	MaxBackoff time.Duration `mapstructure:"max_backoff"`
}

// TimeoutsConfig bounds every remote call the core makes.
type TimeoutsConfig struct {
	Request  time.Duration `mapstructure:"request"`
	Send     time.Duration `mapstructure:"send"`
	Shutdown time.Duration `mapstructure:"shutdown"`
}

const (
	defaultHTTPAddress = "0.0.0.0:8080"
	defaultLogLevel    = "info"
	defaultMinBackoff  = 500 * time.Millisecond
	defaultMaxBackoff  = 30 * time.Second
	defaultRequest     = 5 * time.Second
	defaultSend        = 10 * time.Second
	defaultShutdown    = 10 * time.Second
)

// Load reads configuration from the provided file path (if any) and the environment.
// Environment variables are prefixed with STREETCONNECT_ and can override file values.
func Load(path string) (Config, error) {
	v := viper.New()
	v.SetEnvPrefix("STREETCONNECT")
	v.AutomaticEnv()
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))

	v.SetDefault("http_address", defaultHTTPAddress)
	v.SetDefault("log_level", defaultLogLevel)
	v.SetDefault("feed.min_backoff", defaultMinBackoff.String())
	v.SetDefault("feed.max_backoff", defaultMaxBackoff.String())
	v.SetDefault("timeouts.request", defaultRequest.String())
	v.SetDefault("timeouts.send", defaultSend.String())
	v.SetDefault("timeouts.shutdown", defaultShutdown.String())

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return Config{}, fmt.Errorf("read config %s: %w", path, err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return Config{}, fmt.Errorf("unmarshal config: %w", err)
	}

	// Viper leaves durations as strings; normalize them here.
	durations := []struct {
		key      string
		target   *time.Duration
		fallback time.Duration
	}{
		{"feed.min_backoff", &cfg.Feed.MinBackoff, defaultMinBackoff},
		{"feed.max_backoff", &cfg.Feed.MaxBackoff, defaultMaxBackoff},
		{"timeouts.request", &cfg.Timeouts.Request, defaultRequest},
		{"timeouts.send", &cfg.Timeouts.Send, defaultSend},
		{"timeouts.shutdown", &cfg.Timeouts.Shutdown, defaultShutdown},
	}
	for _, d := range durations {
		if !v.IsSet(d.key) {
			*d.target = d.fallback
			continue
		}
		dur, err := time.ParseDuration(v.GetString(d.key))
		if err != nil {
			return Config{}, fmt.Errorf("invalid %s: %w", d.key, err)
		}
		*d.target = dur
	}

	if cfg.HTTPAddress == "" {
		cfg.HTTPAddress = defaultHTTPAddress
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = defaultLogLevel
	}
	if cfg.DatabaseURL == "" {
		return Config{}, fmt.Errorf("database_url is required")
	}

	return cfg, nil
}
