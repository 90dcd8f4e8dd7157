package autocomplete

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/cache"
	"github.com/sonroyaalmerol/lavabot/internal/utils"
	"github.com/zmb3/spotify/v2"
)

const (
	DefaultSuggestURL = "https://suggestqueries.google.com/complete/search"
	// Discord rejects choice names and values over 100 characters.
	maxChoiceLen = 100
)

type SpotifySearcher interface {
	Search(ctx context.Context, query string, limit int) ([]spotify.SimpleAlbum, []spotify.FullTrack, error)
}

// Suggester builds play-command autocomplete choices from YouTube and Spotify.
type Suggester struct {
	http    *http.Client
	baseURL string
	spotify SpotifySearcher
	cache   *cache.TTL[[]*discordgo.ApplicationCommandOptionChoice]
}

// New returns a Suggester; sp may be nil when Spotify is not configured.
func New(baseURL string, sp SpotifySearcher) *Suggester {
	if baseURL == "" {
		baseURL = DefaultSuggestURL
	}
	return &Suggester{
		http:    &http.Client{Timeout: 2 * time.Second},
		baseURL: baseURL,
		spotify: sp,
		cache:   cache.New[[]*discordgo.ApplicationCommandOptionChoice](10*time.Minute, 1024),
	}
}

func (s *Suggester) youtube(ctx context.Context, query string) ([]string, error) {
	u, err := url.Parse(s.baseURL)
	if err != nil {
		return nil, err
	}
	q := u.Query()
	q.Set("client", "firefox")
	q.Set("ds", "yt")
	q.Set("q", query)
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, err
	}
	resp, err := s.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("suggest: http %d", resp.StatusCode)
	}
	var parsed []any
	if err := json.NewDecoder(resp.Body).Decode(&parsed); err != nil {
		return nil, err
	}
	if len(parsed) < 2 {
		return nil, nil
	}
	arr, ok := parsed[1].([]any)
	if !ok {
		return nil, nil
	}
	out := make([]string, 0, len(arr))
	for _, v := range arr {
		if str, ok := v.(string); ok {
			out = append(out, str)
		}
	}
	return out, nil
}

func choice(name, value string) *discordgo.ApplicationCommandOptionChoice {
	return &discordgo.ApplicationCommandOptionChoice{
		Name:  utils.Truncate(name, maxChoiceLen),
		Value: value,
	}
}

func artistOf(artists []spotify.SimpleArtist) string {
	if len(artists) == 0 {
		return ""
	}
	return " - " + artists[0].Name
}

// Suggest returns at most limit choices. Lookup failures only shrink the result.
func (s *Suggester) Suggest(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if limit <= 0 {
		limit = 10
	}
	key := fmt.Sprintf("%d:%s", limit, strings.ToLower(query))
	if c, ok := s.cache.Get(key); ok {
		return c
	}

	out := make([]*discordgo.ApplicationCommandOptionChoice, 0, limit)
	if yt, err := s.youtube(ctx, query); err == nil {
		for _, v := range yt[:min(len(yt), limit)] {
			if len(v) > maxChoiceLen {
				continue
			}
			out = append(out, choice("YouTube: "+v, v))
		}
	} else {
		slog.Debug("autocomplete: youtube suggestions failed", "query", query, "err", err)
	}

	if s.spotify != nil {
		albums, tracks, err := s.spotify.Search(ctx, query, limit/2)
		if err == nil {
			var sp []*discordgo.ApplicationCommandOptionChoice
			for _, a := range albums {
				sp = append(sp, choice("Spotify: 💿 "+a.Name+artistOf(a.Artists), "spotify:album:"+a.ID.String()))
			}
			for _, t := range tracks {
				sp = append(sp, choice("Spotify: 🎵 "+t.Name+artistOf(t.Artists), "spotify:track:"+t.ID.String()))
			}
			// make room for spotify results
			if keep := limit - len(sp); len(out) > keep {
				out = out[:max(0, keep)]
			}
			out = append(out, sp...)
		} else {
			slog.Debug("autocomplete: spotify search failed", "query", query, "err", err)
		}
	}

	if len(out) > limit {
		out = out[:limit]
	}
	s.cache.Set(key, out)
	slog.Debug("autocomplete: cached suggestions", "query", query, "choices", len(out), "cached", s.cache.Len())
	return out
}
