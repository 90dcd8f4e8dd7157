package repository

import (
	"context"
	"strings"
)

// PlaylistService applies naming and ownership rules on top of Repo.
type PlaylistService struct {
	repo *Repo
}

func NewPlaylistService(repo *Repo) *PlaylistService {
	return &PlaylistService{repo: repo}
}

func normalizeName(name string) string {
	return strings.ToLower(strings.TrimSpace(name))
}

func (s *PlaylistService) Save(ctx context.Context, guild, author, name, url string) (*Playlist, error) {
	p := &Playlist{
		GuildID:  guild,
		AuthorID: author,
		Name:     normalizeName(name),
		URL:      strings.TrimSpace(url),
	}
	if err := s.repo.AddPlaylist(ctx, p); err != nil {
		return nil, err
	}
	return p, nil
}

// Remove deletes a playlist. Only its author may remove it unless force is set.
func (s *PlaylistService) Remove(ctx context.Context, guild, requester, name string, force bool) error {
	p, err := s.repo.FindPlaylist(ctx, guild, normalizeName(name))
	if err != nil {
		return err
	}
	if !force && p.AuthorID != requester {
		return ErrNotOwner
	}
	n, err := s.repo.RemovePlaylist(ctx, guild, p.Name)
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrPlaylistNotFound
	}
	return nil
}

func (s *PlaylistService) Find(ctx context.Context, guild, name string) (*Playlist, error) {
	return s.repo.FindPlaylist(ctx, guild, normalizeName(name))
}

func (s *PlaylistService) List(ctx context.Context, guild string) ([]Playlist, error) {
	return s.repo.ListPlaylists(ctx, guild)
}

func (s *PlaylistService) Suggest(ctx context.Context, guild, prefix string) ([]string, error) {
	return s.repo.SearchPlaylists(ctx, guild, normalizeName(prefix), 25)
}
