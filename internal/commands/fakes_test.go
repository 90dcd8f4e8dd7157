package commands

import (
	"context"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
	"github.com/sonroyaalmerol/lavabot/internal/player"
	"github.com/sonroyaalmerol/lavabot/internal/repository"
	"github.com/sonroyaalmerol/lavabot/internal/resolve"
)

type fakeNode struct {
	mu      sync.Mutex
	volumes []int
	stops   int
}

func (n *fakeNode) Play(context.Context, string, audionode.PlayRequest) error { return nil }
func (n *fakeNode) Pause(context.Context, string, bool) error                { return nil }
func (n *fakeNode) SetEqualizer(context.Context, string, []audionode.Band) error {
	return nil
}
func (n *fakeNode) Seek(context.Context, string, time.Duration) error { return nil }
func (n *fakeNode) Destroy(context.Context, string) error             { return nil }

func (n *fakeNode) SetVolume(_ context.Context, _ string, v int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.volumes = append(n.volumes, v)
	return nil
}

func (n *fakeNode) Stop(context.Context, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
	return nil
}

func (n *fakeNode) Name() string { return "MAIN" }

func (n *fakeNode) Stats(context.Context) (*audionode.Stats, error) {
	return &audionode.Stats{
		Players:        3,
		PlayingPlayers: 1,
		Uptime:         int64(90 * time.Minute / time.Millisecond),
		Memory:         audionode.Memory{Used: 256 << 20, Allocated: 512 << 20, Free: 256 << 20},
		CPU:            audionode.CPU{Cores: 4, LavalinkLoad: 0.05},
	}, nil
}

// fakeGuilds doubles as the voice adapter so both agree on who is where.
type fakeGuilds struct {
	mu       sync.Mutex
	voice    map[string]string
	managers map[string]bool
}

func (g *fakeGuilds) UserVoiceChannel(_, userID string) (string, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	ch, ok := g.voice[userID]
	return ch, ok
}

func (g *fakeGuilds) CanManage(_, _, userID string) bool {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.managers[userID]
}

func (g *fakeGuilds) Join(context.Context, string, string) error { return nil }
func (g *fakeGuilds) Leave(context.Context, string) error        { return nil }

func (g *fakeGuilds) Members(_, channelID string) []string {
	g.mu.Lock()
	defer g.mu.Unlock()
	var out []string
	for u, ch := range g.voice {
		if ch == channelID {
			out = append(out, u)
		}
	}
	slices.Sort(out)
	return out
}

type fakeSurface struct {
	mu    sync.Mutex
	next  int
	live  map[string]bool
	sends int
}

func (s *fakeSurface) SendEmbed(context.Context, string, *discordgo.MessageEmbed) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.next++
	s.sends++
	id := fmt.Sprintf("m%d", s.next)
	s.live[id] = true
	return id, nil
}

func (s *fakeSurface) EditEmbed(_ context.Context, _, id string, _ *discordgo.MessageEmbed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.live[id] {
		return fmt.Errorf("unknown message %s", id)
	}
	return nil
}

func (s *fakeSurface) DeleteMessage(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.live, id)
	return nil
}

func (s *fakeSurface) RecentMessageIDs(context.Context, string, int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.live {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeSurface) AddReaction(context.Context, string, string, string) error { return nil }
func (s *fakeSurface) RemoveReaction(context.Context, string, string, string, string) error {
	return nil
}

func (s *fakeSurface) sent() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends
}

func (s *fakeSurface) vanishAll() {
	s.mu.Lock()
	clear(s.live)
	s.mu.Unlock()
}

type fakeSettings struct {
	mu   sync.Mutex
	rows map[string]repository.Settings
}

func (f *fakeSettings) UpsertSettings(_ context.Context, guild string) (*repository.Settings, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	s, ok := f.rows[guild]
	if !ok {
		s = repository.Settings{
			GuildID: guild, PlaylistLimit: 50, IdleTimeoutSeconds: 300,
			LeaveIfNoListeners: true, DefaultVolume: 40, DefaultQueuePageSize: 10,
		}
		f.rows[guild] = s
	}
	return &s, nil
}

func (f *fakeSettings) UpdateSettings(_ context.Context, s *repository.Settings) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.rows[s.GuildID] = *s
	return nil
}

type fakePlaylists struct {
	mu    sync.Mutex
	saved map[string]repository.Playlist
}

func (f *fakePlaylists) Save(_ context.Context, guild, author, name, url string) (*repository.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if _, ok := f.saved[name]; ok {
		return nil, repository.ErrPlaylistExists
	}
	p := repository.Playlist{GuildID: guild, AuthorID: author, Name: name, URL: url}
	f.saved[name] = p
	return &p, nil
}

func (f *fakePlaylists) Remove(_ context.Context, _, requester, name string, force bool) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.saved[name]
	if !ok {
		return repository.ErrPlaylistNotFound
	}
	if !force && p.AuthorID != requester {
		return repository.ErrNotOwner
	}
	delete(f.saved, name)
	return nil
}

func (f *fakePlaylists) Find(_ context.Context, _, name string) (*repository.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	p, ok := f.saved[name]
	if !ok {
		return nil, repository.ErrPlaylistNotFound
	}
	return &p, nil
}

func (f *fakePlaylists) List(context.Context, string) ([]repository.Playlist, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	var out []repository.Playlist
	for _, p := range f.saved {
		out = append(out, p)
	}
	return out, nil
}

type fakeResolver struct {
	mu      sync.Mutex
	queries []string
	items   []*resolve.Item
	notes   []string
	err     error
}

func (r *fakeResolver) Resolve(_ context.Context, query string, _ int) ([]*resolve.Item, []string, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.queries = append(r.queries, query)
	return r.items, r.notes, r.err
}

func nodeTrack(title string) audionode.Track {
	return audionode.Track{
		Encoded: "enc-" + title,
		Info: audionode.TrackInfo{
			Title:      title,
			Length:     180000,
			IsSeekable: true,
			URI:        "https://example.com/" + title,
		},
	}
}

type env struct {
	node      *fakeNode
	guilds    *fakeGuilds
	surface   *fakeSurface
	settings  *fakeSettings
	playlists *fakePlaylists
	resolver  *fakeResolver
	pm        *player.PlayerManager
	x         *Executor
}

func newEnv(t *testing.T, cooldown time.Duration) *env {
	t.Helper()
	e := &env{
		node:      &fakeNode{},
		guilds:    &fakeGuilds{voice: map[string]string{}, managers: map[string]bool{}},
		surface:   &fakeSurface{live: map[string]bool{}},
		settings:  &fakeSettings{rows: map[string]repository.Settings{}},
		playlists: &fakePlaylists{saved: map[string]repository.Playlist{}},
		resolver:  &fakeResolver{},
	}
	e.pm = player.NewPlayerManager(player.Deps{
		Node:    e.node,
		Voice:   e.guilds,
		Surface: e.surface,
		SelfID:  func() string { return "bot" },
	})
	e.x = NewExecutor(Deps{
		Players:   e.pm,
		Guilds:    e.guilds,
		Resolver:  e.resolver,
		Settings:  e.settings,
		Playlists: e.playlists,
		Node:      e.node,
		Cooldown:  cooldown,
	})
	t.Cleanup(func() { _ = e.pm.DestroyAll(context.Background()) })
	return e
}

func (e *env) seat(channelID string, users ...string) {
	e.guilds.mu.Lock()
	defer e.guilds.mu.Unlock()
	for _, u := range users {
		e.guilds.voice[u] = channelID
	}
}

func (e *env) run(userID, name string, args map[string]any) Response {
	return e.runSub(userID, name, "", args)
}

func (e *env) runSub(userID, name, sub string, args map[string]any) Response {
	return e.x.Execute(context.Background(), Invocation{
		GuildID:   "g1",
		ChannelID: "text1",
		UserID:    userID,
		Name:      name,
		Sub:       sub,
		Args:      args,
	})
}

// playing queues titles through the play command and waits for the first one to start.
func (e *env) playing(t *testing.T, titles ...string) *player.Player {
	t.Helper()
	e.resolver.mu.Lock()
	e.resolver.items = nil
	for _, title := range titles {
		e.resolver.items = append(e.resolver.items, &resolve.Item{Track: nodeTrack(title)})
	}
	e.resolver.mu.Unlock()

	if r := e.run("u1", "play", map[string]any{"query": "anything"}); r.Ephemeral {
		t.Fatalf("play failed: %q", r.Content)
	}
	p := e.pm.Peek("g1")
	if p == nil {
		t.Fatal("no player after play")
	}
	waitFor(t, "first track", func() bool { return p.Current() != nil })
	return p
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}
