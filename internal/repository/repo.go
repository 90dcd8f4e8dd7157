package repository

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"time"

	"github.com/mattn/go-sqlite3"
)

func NewRepo(db *sql.DB) *Repo { return &Repo{db: db} }

// UpsertSettings returns the guild's settings, creating the defaults row on first use.
func (r *Repo) UpsertSettings(ctx context.Context, guild string) (*Settings, error) {
	if _, err := r.db.ExecContext(ctx,
		`INSERT OR IGNORE INTO settings(guild_id) VALUES (?)`, guild,
	); err != nil {
		return nil, err
	}
	return r.GetSettings(ctx, guild)
}

func (r *Repo) GetSettings(ctx context.Context, guild string) (*Settings, error) {
	row := r.db.QueryRowContext(ctx, `
	SELECT guild_id, playlist_limit, idle_timeout_seconds, leave_if_no_listeners,
	       default_volume, default_queue_page_size
	FROM settings WHERE guild_id = ?`, guild)

	var s Settings
	var leave int
	if err := row.Scan(
		&s.GuildID,
		&s.PlaylistLimit,
		&s.IdleTimeoutSeconds,
		&leave,
		&s.DefaultVolume,
		&s.DefaultQueuePageSize,
	); err != nil {
		return nil, err
	}
	s.LeaveIfNoListeners = leave != 0
	return &s, nil
}

func (r *Repo) UpdateSettings(ctx context.Context, s *Settings) error {
	_, err := r.db.ExecContext(ctx, `
		UPDATE settings SET
		  playlist_limit=?,
		  idle_timeout_seconds=?,
		  leave_if_no_listeners=?,
		  default_volume=?,
		  default_queue_page_size=?
		WHERE guild_id=?`,
		s.PlaylistLimit, s.IdleTimeoutSeconds, boolToInt(s.LeaveIfNoListeners),
		s.DefaultVolume, s.DefaultQueuePageSize, s.GuildID,
	)
	return err
}

func isUniqueViolation(err error) bool {
	var se sqlite3.Error
	return errors.As(err, &se) && se.ExtendedCode == sqlite3.ErrConstraintUnique
}

func (r *Repo) AddPlaylist(ctx context.Context, p *Playlist) error {
	if p.CreatedAt.IsZero() {
		p.CreatedAt = time.Now()
	}
	res, err := r.db.ExecContext(ctx,
		`INSERT INTO playlists(guild_id, name, url, author_id, created_at) VALUES (?,?,?,?,?)`,
		p.GuildID, p.Name, p.URL, p.AuthorID, p.CreatedAt.Unix(),
	)
	if isUniqueViolation(err) {
		return ErrPlaylistExists
	}
	if err != nil {
		return err
	}
	p.ID, _ = res.LastInsertId()
	return nil
}

func (r *Repo) RemovePlaylist(ctx context.Context, guild, name string) (int64, error) {
	res, err := r.db.ExecContext(ctx, `DELETE FROM playlists WHERE guild_id=? AND name=?`, guild, name)
	if err != nil {
		return 0, err
	}
	return res.RowsAffected()
}

const playlistCols = `id, guild_id, name, url, author_id, created_at`

func scanPlaylist(row interface{ Scan(...any) error }) (*Playlist, error) {
	var p Playlist
	var created int64
	if err := row.Scan(&p.ID, &p.GuildID, &p.Name, &p.URL, &p.AuthorID, &created); err != nil {
		return nil, err
	}
	p.CreatedAt = time.Unix(created, 0)
	return &p, nil
}

func (r *Repo) FindPlaylist(ctx context.Context, guild, name string) (*Playlist, error) {
	row := r.db.QueryRowContext(ctx, `SELECT `+playlistCols+` FROM playlists WHERE guild_id=? AND name=?`, guild, name)
	p, err := scanPlaylist(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, ErrPlaylistNotFound
	}
	return p, err
}

func (r *Repo) ListPlaylists(ctx context.Context, guild string) ([]Playlist, error) {
	rows, err := r.db.QueryContext(ctx, `SELECT `+playlistCols+` FROM playlists WHERE guild_id=? ORDER BY name ASC`, guild)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []Playlist
	for rows.Next() {
		p, err := scanPlaylist(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, *p)
	}
	return out, rows.Err()
}

// SearchPlaylists returns names starting with prefix, for autocomplete.
func (r *Repo) SearchPlaylists(ctx context.Context, guild, prefix string, limit int) ([]string, error) {
	prefix = strings.NewReplacer(`\`, `\\`, `%`, `\%`, `_`, `\_`).Replace(strings.ToLower(prefix))
	rows, err := r.db.QueryContext(ctx,
		`SELECT name FROM playlists WHERE guild_id=? AND name LIKE ? ESCAPE '\' ORDER BY name ASC LIMIT ?`,
		guild, prefix+"%", limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var out []string
	for rows.Next() {
		var n string
		if err := rows.Scan(&n); err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, rows.Err()
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
