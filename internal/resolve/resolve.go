package resolve

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/sonroyaalmerol/lavabot/internal/audionode"
	"github.com/sonroyaalmerol/lavabot/internal/sponsorblock"
	"github.com/sonroyaalmerol/lavabot/internal/spotify"
	"github.com/sonroyaalmerol/lavabot/internal/utils"
)

var (
	ErrNoMatches       = errors.New("no songs found")
	ErrSpotifyDisabled = errors.New("spotify is not enabled")
)

const searchPrefix = "ytsearch:"

type Loader interface {
	LoadTracks(ctx context.Context, identifier string) (*audionode.LoadResult, error)
}

type SpotifySource interface {
	Lookup(ctx context.Context, link string, limit int) (*spotify.Collection, error)
}

type Trimmer interface {
	Trim(ctx context.Context, videoID string, length time.Duration) (sponsorblock.Trim, bool)
}

// Item is one resolved track with its optional trim window.
type Item struct {
	Track    audionode.Track
	Start    time.Duration
	End      time.Duration
	Playlist string
}

// Event is one step of a resolution: an item, an informational note, or a per-item error.
type Event struct {
	Item *Item
	Info string
	Err  error
}

type Resolver struct {
	loader  Loader
	spotify SpotifySource
	trimmer Trimmer
	log     *slog.Logger
}

// New builds a resolver. sp and tr are optional.
func New(loader Loader, sp SpotifySource, tr Trimmer) *Resolver {
	return &Resolver{loader: loader, spotify: sp, trimmer: tr, log: slog.With("component", "resolve")}
}

func isURL(q string) bool {
	return strings.HasPrefix(q, "http://") || strings.HasPrefix(q, "https://")
}

// Identifier turns free text into a node search and passes URLs through.
func Identifier(query string) string {
	q := strings.TrimSpace(query)
	if isURL(q) || strings.Contains(q, "search:") {
		return q
	}
	return searchPrefix + q
}

// Stream resolves query, emitting items as they become available. The channel is
// closed when resolution finishes or ctx is done. limit caps playlists; zero means no cap.
func (r *Resolver) Stream(ctx context.Context, query string, limit int) <-chan Event {
	ch := make(chan Event, 8)
	go func() {
		defer close(ch)
		emit := func(ev Event) bool {
			select {
			case ch <- ev:
				return true
			case <-ctx.Done():
				return false
			}
		}

		q := strings.TrimSpace(query)
		if q == "" {
			emit(Event{Err: ErrNoMatches})
			return
		}
		if spotify.IsLink(q) {
			r.streamSpotify(ctx, q, limit, emit)
			return
		}

		res, err := r.loader.LoadTracks(ctx, Identifier(q))
		if err != nil {
			emit(Event{Err: fmt.Errorf("load %q: %w", q, err)})
			return
		}
		switch res.LoadType {
		case audionode.LoadEmpty:
			emit(Event{Err: ErrNoMatches})
		case audionode.LoadError:
			if res.Exception == nil {
				emit(Event{Err: ErrNoMatches})
				return
			}
			emit(Event{Err: res.Exception})
		case audionode.LoadSearch:
			if len(res.Tracks) == 0 {
				emit(Event{Err: ErrNoMatches})
				return
			}
			emit(Event{Item: r.item(ctx, res.Tracks[0], "")})
		case audionode.LoadPlaylist:
			tracks := res.Tracks
			if limit > 0 && len(tracks) > limit {
				utils.ShuffleSlice(tracks)
				tracks = tracks[:limit]
				if !emit(Event{Info: fmt.Sprintf("a random sample of %d songs was taken", limit)}) {
					return
				}
			}
			name := ""
			if res.Playlist != nil {
				name = res.Playlist.Name
			}
			for _, t := range tracks {
				if !emit(Event{Item: r.item(ctx, t, name)}) {
					return
				}
			}
		default:
			for _, t := range res.Tracks {
				if !emit(Event{Item: r.item(ctx, t, "")}) {
					return
				}
			}
		}
	}()
	return ch
}

func (r *Resolver) streamSpotify(ctx context.Context, link string, limit int, emit func(Event) bool) {
	if r.spotify == nil {
		emit(Event{Err: ErrSpotifyDisabled})
		return
	}
	col, err := r.spotify.Lookup(ctx, link, limit)
	if err != nil {
		emit(Event{Err: fmt.Errorf("spotify: %w", err)})
		return
	}
	if len(col.Tracks) == 0 {
		emit(Event{Err: ErrNoMatches})
		return
	}
	notFound := 0
	for _, st := range col.Tracks {
		res, err := r.loader.LoadTracks(ctx, searchPrefix+st.SearchQuery())
		if ctx.Err() != nil {
			return
		}
		if err != nil || len(res.Tracks) == 0 {
			notFound++
			r.log.Debug("spotify track not found on node", "query", st.SearchQuery(), "err", err)
			continue
		}
		if !emit(Event{Item: r.item(ctx, res.Tracks[0], col.Title)}) {
			return
		}
	}
	switch {
	case notFound == 1:
		emit(Event{Info: "1 song was not found"})
	case notFound > 1:
		emit(Event{Info: fmt.Sprintf("%d songs were not found", notFound)})
	}
}

func (r *Resolver) item(ctx context.Context, t audionode.Track, playlist string) *Item {
	it := &Item{Track: t, Playlist: playlist}
	if r.trimmer == nil || t.Info.IsStream || t.Info.SourceName != "youtube" {
		return it
	}
	if tr, ok := r.trimmer.Trim(ctx, t.Info.Identifier, t.Info.Duration()); ok {
		it.Start, it.End = tr.Start, tr.End
	}
	return it
}

// Resolve drains Stream. It fails only when nothing resolved.
func (r *Resolver) Resolve(ctx context.Context, query string, limit int) ([]*Item, []string, error) {
	var (
		items []*Item
		notes []string
		first error
	)
	for ev := range r.Stream(ctx, query, limit) {
		switch {
		case ev.Err != nil:
			if first == nil {
				first = ev.Err
			}
		case ev.Info != "":
			notes = append(notes, ev.Info)
		case ev.Item != nil:
			items = append(items, ev.Item)
		}
	}
	if len(items) == 0 {
		if first == nil {
			first = ErrNoMatches
		}
		if err := ctx.Err(); err != nil {
			first = err
		}
		return nil, notes, first
	}
	return items, notes, nil
}
