package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
	"github.com/sonroyaalmerol/lavabot/internal/cache"
	"github.com/sonroyaalmerol/lavabot/internal/player"
	"github.com/sonroyaalmerol/lavabot/internal/repository"
	"github.com/sonroyaalmerol/lavabot/internal/resolve"
	"golang.org/x/time/rate"
)

var (
	ErrUnknownCommand = errors.New("unknown command")
	ErrCooldown       = errors.New("command on cooldown")
	ErrNotInVoice     = errors.New("not in a voice channel")
	ErrWrongChannel   = errors.New("not in the player's voice channel")
	ErrVoteClosed     = errors.New("a vote already passed for this track")
)

// Source tells which front-end produced an invocation.
type Source int

const (
	SourceSlash Source = iota
	SourceReaction
)

// Invocation is a resolved command name with typed arguments.
type Invocation struct {
	GuildID   string
	ChannelID string
	UserID    string
	Name      string
	// Sub is the subcommand for grouped commands such as playlist and config.
	Sub    string
	Args   map[string]any
	Source Source
}

func (inv Invocation) String(name string) string {
	switch v := inv.Args[name].(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	}
	return ""
}

func (inv Invocation) Int(name string) (int, bool) {
	switch v := inv.Args[name].(type) {
	case int:
		return v, true
	case int64:
		return int(v), true
	case float64:
		return int(v), true
	case string:
		n, err := strconv.Atoi(v)
		return n, err == nil
	}
	return 0, false
}

func (inv Invocation) Bool(name string) (bool, bool) {
	switch v := inv.Args[name].(type) {
	case bool:
		return v, true
	case string:
		b, err := strconv.ParseBool(v)
		return b, err == nil
	}
	return false, false
}

type Response struct {
	Content   string
	Embed     *discordgo.MessageEmbed
	Ephemeral bool
}

func (r Response) Empty() bool { return r.Content == "" && r.Embed == nil }

func reply(format string, args ...any) Response {
	return Response{Content: fmt.Sprintf(format, args...)}
}

// Call is what a command body sees.
type Call struct {
	Inv    Invocation
	Player *player.Player
	// Manager is set when the caller may act without voting.
	Manager bool
	x       *Executor
}

type Command struct {
	Name        string
	Description string
	Options     []*discordgo.ApplicationCommandOption
	// Gate is the vote action ordinary listeners must reach quorum on.
	Gate player.Action
	// NeedsPlayer rejects the call with ErrNotConnected when the guild has no player.
	NeedsPlayer bool
	// Slow commands are deferred by the slash front-end before running.
	Slow bool
	// Hidden commands are reachable only through reactions.
	Hidden bool
	Run    func(ctx context.Context, c *Call) (Response, error)
}

// Guilds answers gateway-state questions about members.
type Guilds interface {
	UserVoiceChannel(guildID, userID string) (string, bool)
	CanManage(guildID, channelID, userID string) bool
}

type Players interface {
	Peek(guildID string) *player.Player
	Connect(ctx context.Context, guildID, voiceChannelID string, s player.Settings) (*player.Player, error)
}

type Resolver interface {
	Resolve(ctx context.Context, query string, limit int) ([]*resolve.Item, []string, error)
}

type SettingsStore interface {
	UpsertSettings(ctx context.Context, guild string) (*repository.Settings, error)
	UpdateSettings(ctx context.Context, s *repository.Settings) error
}

type Playlists interface {
	Save(ctx context.Context, guild, author, name, url string) (*repository.Playlist, error)
	Remove(ctx context.Context, guild, requester, name string, force bool) error
	Find(ctx context.Context, guild, name string) (*repository.Playlist, error)
	List(ctx context.Context, guild string) ([]repository.Playlist, error)
}

type NodeInfo interface {
	Name() string
	Stats(ctx context.Context) (*audionode.Stats, error)
}

type Deps struct {
	Players   Players
	Guilds    Guilds
	Resolver  Resolver
	Settings  SettingsStore
	Playlists Playlists
	Node      NodeInfo
	Cooldown  time.Duration
	// Defaults used when the guild settings cannot be read.
	IdleTimeout   time.Duration
	DefaultVolume int
}

// Executor runs commands from every front-end through the same checks.
type Executor struct {
	deps     Deps
	commands map[string]*Command
	order    []*Command
	limiters *cache.TTL[*rate.Limiter]
}

func NewExecutor(deps Deps) *Executor {
	if deps.IdleTimeout <= 0 {
		deps.IdleTimeout = player.DefaultIdleTimeout
	}
	x := &Executor{
		deps:     deps,
		commands: make(map[string]*Command),
		limiters: cache.New[*rate.Limiter](deps.Cooldown+time.Minute, 4096),
	}
	for _, c := range table() {
		x.commands[c.Name] = c
		x.order = append(x.order, c)
	}
	return x
}

// Lookup returns the named command.
func (x *Executor) Lookup(name string) (*Command, bool) {
	c, ok := x.commands[name]
	return c, ok
}

func (x *Executor) allow(inv Invocation) bool {
	if x.deps.Cooldown <= 0 {
		return true
	}
	key := inv.GuildID + ":" + inv.UserID + ":" + inv.Name
	l, ok := x.limiters.Get(key)
	if !ok {
		l = rate.NewLimiter(rate.Every(x.deps.Cooldown), 1)
		x.limiters.Set(key, l)
	}
	return l.Allow()
}

// Execute runs inv and converts any failure into a user-facing reply.
func (x *Executor) Execute(ctx context.Context, inv Invocation) Response {
	resp, err := x.execute(ctx, inv)
	if err != nil && inv.Source == SourceReaction && errors.Is(err, ErrCooldown) {
		return Response{}
	}
	if err != nil {
		level := slog.LevelDebug
		if !expected(err) {
			level = slog.LevelWarn
		}
		slog.Log(ctx, level, "command failed", "guildID", inv.GuildID, "userID", inv.UserID, "command", inv.Name, "sub", inv.Sub, "err", err)
		return Response{Content: Describe(err), Ephemeral: true}
	}
	return resp
}

func (x *Executor) execute(ctx context.Context, inv Invocation) (Response, error) {
	cmd, ok := x.commands[inv.Name]
	if !ok {
		return Response{}, ErrUnknownCommand
	}
	if !x.allow(inv) {
		return Response{}, ErrCooldown
	}

	c := &Call{Inv: inv, x: x}
	if x.deps.Guilds != nil {
		c.Manager = x.deps.Guilds.CanManage(inv.GuildID, inv.ChannelID, inv.UserID)
	}
	if cmd.NeedsPlayer || cmd.Gate != "" {
		c.Player = x.deps.Players.Peek(inv.GuildID)
		if c.Player == nil || c.Player.Destroyed() {
			return Response{}, player.ErrNotConnected
		}
	}

	if cmd.Gate != "" && !c.Manager {
		if err := c.requireListener(); err != nil {
			return Response{}, err
		}
		if cmd.Gate.NeedsTrack() && c.Player.Current() == nil {
			return Response{}, player.ErrNothingPlaying
		}
		v := c.Player.Vote(cmd.Gate, inv.UserID)
		switch v.Outcome {
		case player.OutcomeIgnored:
			return Response{}, ErrVoteClosed
		case player.OutcomeExecute:
			if v.Required > 1 {
				slog.Info("vote passed", "guildID", inv.GuildID, "action", cmd.Gate, "votes", v.Votes)
			}
		default:
			return Response{}, v.Err(cmd.Gate)
		}
	}

	slog.Info("cmd "+cmd.Name, "guildID", inv.GuildID, "userID", inv.UserID, "sub", inv.Sub)
	return cmd.Run(ctx, c)
}

// requireListener checks the caller sits in the player's voice channel.
func (c *Call) requireListener() error {
	ch, ok := c.x.deps.Guilds.UserVoiceChannel(c.Inv.GuildID, c.Inv.UserID)
	if !ok {
		return ErrNotInVoice
	}
	if c.Player != nil && ch != c.Player.VoiceChannelID() {
		return ErrWrongChannel
	}
	return nil
}

// settings returns the guild settings, falling back to process defaults.
func (c *Call) settings(ctx context.Context) *repository.Settings {
	s, err := c.x.deps.Settings.UpsertSettings(ctx, c.Inv.GuildID)
	if err == nil {
		return s
	}
	slog.Warn("get settings failed", "guildID", c.Inv.GuildID, "err", err)
	return &repository.Settings{
		GuildID:              c.Inv.GuildID,
		PlaylistLimit:        50,
		IdleTimeoutSeconds:   int(c.x.deps.IdleTimeout / time.Second),
		LeaveIfNoListeners:   true,
		DefaultVolume:        c.x.deps.DefaultVolume,
		DefaultQueuePageSize: 10,
	}
}

func playerSettings(s *repository.Settings) player.Settings {
	return player.Settings{IdleTimeout: s.IdleTimeout(), Volume: s.DefaultVolume}
}

// connect returns the guild's player, joining channelID when none is live.
func (c *Call) connect(ctx context.Context, channelID string, s *repository.Settings) (*player.Player, error) {
	if p := c.x.deps.Players.Peek(c.Inv.GuildID); p != nil && !p.Destroyed() {
		return p, nil
	}
	return c.x.deps.Players.Connect(ctx, c.Inv.GuildID, channelID, playerSettings(s))
}
