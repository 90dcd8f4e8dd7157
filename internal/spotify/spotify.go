package spotify

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"strings"

	"github.com/zmb3/spotify/v2"
	spotifyauth "github.com/zmb3/spotify/v2/auth"
	"golang.org/x/oauth2/clientcredentials"
)

var ErrNotSpotify = errors.New("not a spotify link")

type Track struct {
	Name   string
	Artist string
}

// SearchQuery is the text used to find the track on the audio node.
func (t Track) SearchQuery() string {
	if t.Artist == "" {
		return t.Name
	}
	return t.Artist + " - " + t.Name
}

// Collection is what a link expanded to: one track, or an album/playlist/artist's tracks.
type Collection struct {
	Kind   string
	Title  string
	Source string
	Tracks []Track
}

type Client struct {
	raw    *spotify.Client
	market string
}

func NewClientCredentials(ctx context.Context, clientID, clientSecret string) *Client {
	cfg := &clientcredentials.Config{
		ClientID:     clientID,
		ClientSecret: clientSecret,
		TokenURL:     spotifyauth.TokenURL,
	}
	httpClient := cfg.Client(ctx)
	return &Client{raw: spotify.New(httpClient, spotify.WithRetry(true)), market: "US"}
}

// IsLink reports whether s looks like a Spotify URL or URI.
func IsLink(s string) bool {
	return strings.HasPrefix(s, "spotify:") || strings.Contains(s, "open.spotify.com")
}

func ParseID(raw string) (typ string, id spotify.ID, err error) {
	if strings.HasPrefix(raw, "spotify:") {
		parts := strings.Split(raw, ":")
		if len(parts) == 3 && parts[2] != "" {
			return parts[1], spotify.ID(parts[2]), nil
		}
		return "", "", fmt.Errorf("invalid spotify URI")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return "", "", err
	}
	if u.Host != "open.spotify.com" && u.Host != "www.open.spotify.com" {
		return "", "", ErrNotSpotify
	}
	parts := strings.Split(strings.Trim(u.Path, "/"), "/")
	// localized links look like /intl-de/track/<id>
	if len(parts) > 0 && strings.HasPrefix(parts[0], "intl-") {
		parts = parts[1:]
	}
	if len(parts) < 2 || parts[1] == "" {
		return "", "", fmt.Errorf("invalid spotify URL path")
	}
	switch parts[0] {
	case "album", "playlist", "track", "artist":
		return parts[0], spotify.ID(parts[1]), nil
	}
	return "", "", fmt.Errorf("unsupported spotify type %q", parts[0])
}

// Lookup expands a Spotify link into tracks. limit caps collections; zero means no cap.
func (c *Client) Lookup(ctx context.Context, link string, limit int) (*Collection, error) {
	typ, id, err := ParseID(link)
	if err != nil {
		return nil, err
	}
	switch typ {
	case "album":
		return c.album(ctx, id, limit)
	case "playlist":
		return c.playlist(ctx, id, limit)
	case "track":
		t, err := c.raw.GetTrack(ctx, id)
		if err != nil {
			return nil, err
		}
		return &Collection{
			Kind:   typ,
			Title:  t.Name,
			Source: t.ExternalURLs["spotify"],
			Tracks: []Track{{Name: t.Name, Artist: firstArtist(t.Artists)}},
		}, nil
	default:
		return c.artistTop(ctx, id, limit)
	}
}

func firstArtist(artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return artists[0].Name
}

func full(out []Track, limit int) bool { return limit > 0 && len(out) >= limit }

func (c *Client) album(ctx context.Context, id spotify.ID, limit int) (*Collection, error) {
	alb, err := c.raw.GetAlbum(ctx, id)
	if err != nil {
		return nil, err
	}
	page, err := c.raw.GetAlbumTracks(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []Track
	add := func(items []spotify.SimpleTrack) {
		for _, t := range items {
			if full(out, limit) {
				return
			}
			out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
		}
	}
	add(page.Tracks)
	for page.Next != "" && !full(out, limit) {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Tracks)
	}
	return &Collection{Kind: "album", Title: alb.Name, Source: alb.ExternalURLs["spotify"], Tracks: out}, nil
}

func (c *Client) playlist(ctx context.Context, id spotify.ID, limit int) (*Collection, error) {
	pl, err := c.raw.GetPlaylist(ctx, id)
	if err != nil {
		return nil, err
	}
	page, err := c.raw.GetPlaylistItems(ctx, id)
	if err != nil {
		return nil, err
	}
	var out []Track
	add := func(items []spotify.PlaylistItem) {
		for _, it := range items {
			if full(out, limit) {
				return
			}
			if t := it.Track.Track; t != nil {
				out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
			}
		}
	}
	add(page.Items)
	for page.Next != "" && !full(out, limit) {
		if err := c.raw.NextPage(ctx, page); err != nil {
			break
		}
		add(page.Items)
	}
	return &Collection{Kind: "playlist", Title: pl.Name, Source: pl.ExternalURLs["spotify"], Tracks: out}, nil
}

func (c *Client) artistTop(ctx context.Context, id spotify.ID, limit int) (*Collection, error) {
	top, err := c.raw.GetArtistsTopTracks(ctx, id, c.market)
	if err != nil {
		return nil, err
	}
	out := make([]Track, 0, len(top))
	title := ""
	for _, t := range top {
		if full(out, limit) {
			break
		}
		if title == "" {
			title = firstArtist(t.Artists)
		}
		out = append(out, Track{Name: t.Name, Artist: firstArtist(t.Artists)})
	}
	return &Collection{Kind: "artist", Title: title, Tracks: out}, nil
}

// Search returns album and track matches for autocomplete.
func (c *Client) Search(ctx context.Context, query string, limit int) ([]spotify.SimpleAlbum, []spotify.FullTrack, error) {
	if limit <= 0 {
		limit = 10
	}
	res, err := c.raw.Search(ctx, query, spotify.SearchTypeAlbum|spotify.SearchTypeTrack, spotify.Limit(limit))
	if err != nil {
		return nil, nil, err
	}
	var albums []spotify.SimpleAlbum
	if res.Albums != nil {
		albums = res.Albums.Albums
	}
	var tracks []spotify.FullTrack
	if res.Tracks != nil {
		tracks = res.Tracks.Tracks
	}
	return albums[:min(limit, len(albums))], tracks[:min(limit, len(tracks))], nil
}
