package config

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
)

func LoadConfig() (*Config, error) {
	if err := godotenv.Load(); err != nil {
		slog.Debug("no .env file found, using process environment")
	}
	return parse(env.Options{})
}

func parse(opts env.Options) (*Config, error) {
	cfg := &Config{}
	if err := env.ParseWithOptions(cfg, opts); err != nil {
		return nil, ErrConfig(err.Error())
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	_ = os.MkdirAll(cfg.DataDir, 0o755)
	return cfg, nil
}

func (c *Config) Validate() error {
	if c.DiscordToken == "" {
		return ErrConfig("DISCORD_TOKEN required")
	}
	if c.DefaultVolume < 0 || c.DefaultVolume > 100 {
		return ErrConfig(fmt.Sprintf("DEFAULT_VOLUME must be within 0-100, got %d", c.DefaultVolume))
	}
	if c.IdleTimeout <= 0 {
		return ErrConfig("IDLE_TIMEOUT must be positive")
	}
	if c.Lavalink.Host == "" || c.Lavalink.Port <= 0 {
		return ErrConfig("LAVALINK_HOST and LAVALINK_PORT required")
	}
	return nil
}

// SpotifyEnabled reports whether client credentials for Spotify were provided.
func (c *Config) SpotifyEnabled() bool {
	return c.SpotifyClientID != "" && c.SpotifyClientSecret != ""
}

type ErrConfig string

func (e ErrConfig) Error() string { return string(e) }
