package config

import "time"

type Config struct {
	DiscordToken          string        `env:"DISCORD_TOKEN,required"`
	SpotifyClientID       string        `env:"SPOTIFY_CLIENT_ID"`
	SpotifyClientSecret   string        `env:"SPOTIFY_CLIENT_SECRET"`
	DataDir               string        `env:"DATA_DIR" envDefault:"./data"`
	BotStatus             string        `env:"BOT_STATUS" envDefault:"online"` // online/dnd/idle
	BotActivity           string        `env:"BOT_ACTIVITY" envDefault:"you :)"`
	RegisterCommandsOnBot bool          `env:"REGISTER_COMMANDS_ON_BOT" envDefault:"false"`
	IdleTimeout           time.Duration `env:"IDLE_TIMEOUT" envDefault:"300s"`
	DefaultVolume         int           `env:"DEFAULT_VOLUME" envDefault:"40"`
	CommandCooldown       time.Duration `env:"COMMAND_COOLDOWN" envDefault:"2s"`

	EnableSponsorBlock     bool `env:"ENABLE_SPONSORBLOCK" envDefault:"false"`
	SponsorBlockTimeoutMin int  `env:"SPONSORBLOCK_TIMEOUT" envDefault:"5"`

	Lavalink LavalinkConfig `envPrefix:"LAVALINK_"`
}

type LavalinkConfig struct {
	Name     string `env:"NAME" envDefault:"MAIN"`
	Host     string `env:"HOST" envDefault:"127.0.0.1"`
	Port     int    `env:"PORT" envDefault:"2333"`
	Password string `env:"PASSWORD" envDefault:"youshallnotpass"`
	Secure   bool   `env:"SECURE" envDefault:"false"`
}
