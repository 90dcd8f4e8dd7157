package repository

import (
	"database/sql"
	"errors"
	"time"
)

var (
	ErrPlaylistExists   = errors.New("a playlist with that name already exists")
	ErrPlaylistNotFound = errors.New("no playlist with that name")
	ErrNotOwner         = errors.New("only the member who saved a playlist can remove it")
)

type Repo struct {
	db *sql.DB
}

// Settings are per-guild knobs edited through the config command.
type Settings struct {
	GuildID              string
	PlaylistLimit        int
	IdleTimeoutSeconds   int
	LeaveIfNoListeners   bool
	DefaultVolume        int
	DefaultQueuePageSize int
}

func (s *Settings) IdleTimeout() time.Duration {
	return time.Duration(s.IdleTimeoutSeconds) * time.Second
}

// Playlist is a saved link a guild can queue by name.
type Playlist struct {
	ID        int64
	GuildID   string
	Name      string
	URL       string
	AuthorID  string
	CreatedAt time.Time
}
