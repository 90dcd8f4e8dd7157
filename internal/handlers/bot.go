package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
	"github.com/sonroyaalmerol/lavabot/internal/commands"
	"github.com/sonroyaalmerol/lavabot/internal/config"
	"github.com/sonroyaalmerol/lavabot/internal/player"
	"golang.org/x/sync/errgroup"
)

const (
	readyTimeout    = 30 * time.Second
	shutdownTimeout = 10 * time.Second
)

// Suggester produces play autocomplete choices.
type Suggester interface {
	Suggest(ctx context.Context, query string, limit int) []*discordgo.ApplicationCommandOptionChoice
}

// PlaylistNames completes saved playlist names.
type PlaylistNames interface {
	Suggest(ctx context.Context, guild, prefix string) ([]string, error)
}

// Options are the collaborators built by main.
type Options struct {
	Node      *audionode.Client
	Resolver  commands.Resolver
	Settings  commands.SettingsStore
	Playlists interface {
		commands.Playlists
		PlaylistNames
	}
	Suggester Suggester
}

type Bot struct {
	cfg       *config.Config
	session   *discordgo.Session
	node      *audionode.Client
	settings  commands.SettingsStore
	playlists PlaylistNames
	suggest   Suggester
	voice     *VoiceBridge
	pm        *player.PlayerManager
	exec      *commands.Executor
	inbox     *Inbox

	ctx   context.Context
	ready chan struct{}
	once  sync.Once
}

func NewBot(cfg *config.Config, opts Options) (*Bot, error) {
	dg, err := discordgo.New("Bot " + cfg.DiscordToken)
	if err != nil {
		return nil, err
	}
	dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildVoiceStates | discordgo.IntentsGuildMessageReactions
	// handlers run in gateway order; guild work is handed to the inbox
	dg.SyncEvents = true

	b := &Bot{
		cfg:      cfg,
		session:  dg,
		node:     opts.Node,
		settings: opts.Settings,
		suggest:  opts.Suggester,
		inbox:    NewInbox(),
		ctx:      context.Background(),
		ready:    make(chan struct{}),
	}
	if opts.Playlists != nil {
		b.playlists = opts.Playlists
	}

	guilds := discordGuilds{s: dg}
	b.voice = NewVoiceBridge(opts.Node, joinVoice(dg), guilds.Members)
	b.pm = player.NewPlayerManager(player.Deps{
		Node:     opts.Node,
		Voice:    b.voice,
		Surface:  discordSurface{s: dg},
		SelfID:   b.selfID,
		Dispatch: b.dispatchReaction,
	})

	deps := commands.Deps{
		Players:       b.pm,
		Guilds:        guilds,
		Resolver:      opts.Resolver,
		Settings:      opts.Settings,
		Node:          opts.Node,
		Cooldown:      cfg.CommandCooldown,
		IdleTimeout:   cfg.IdleTimeout,
		DefaultVolume: cfg.DefaultVolume,
	}
	if opts.Playlists != nil {
		deps.Playlists = opts.Playlists
	}
	b.exec = commands.NewExecutor(deps)
	return b, nil
}

func (b *Bot) selfID() string {
	if u := b.session.State.User; u != nil {
		return u.ID
	}
	return ""
}

// Players exposes the guild player registry.
func (b *Bot) Players() *player.PlayerManager { return b.pm }

func (b *Bot) Run(ctx context.Context) error {
	b.ctx = ctx
	dg := b.session

	dg.AddHandler(b.onReady)
	dg.AddHandler(b.onGuildCreate)
	dg.AddHandler(b.onInteraction)
	dg.AddHandler(b.onReactionAdd)
	dg.AddHandler(b.onVoiceStateUpdate)
	dg.AddHandler(b.onVoiceServerUpdate)
	b.node.OnEvent(b.pm.HandleNodeEvent)

	if err := dg.Open(); err != nil {
		return err
	}
	defer dg.Close()

	select {
	case <-b.ready:
	case <-time.After(readyTimeout):
		return errors.New("discord: no ready event")
	case <-ctx.Done():
		return nil
	}
	b.node.SetUserID(b.selfID())

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return b.node.Run(gctx)
	})
	g.Go(func() error {
		wctx, cancel := context.WithTimeout(gctx, readyTimeout)
		defer cancel()
		if err := b.node.WaitReady(wctx); err != nil {
			slog.Warn("audio node not ready yet, commands will fail until it connects", "node", b.node.Name(), "err", err)
			return nil
		}
		slog.Info("audio node ready", "node", b.node.Name(), "session", b.node.SessionID())
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		sctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		if err := b.pm.DestroyAll(sctx); err != nil {
			slog.Warn("player teardown on shutdown", "err", err)
		}
		return nil
	})
	return g.Wait()
}

func (b *Bot) onReady(s *discordgo.Session, r *discordgo.Ready) {
	slog.Info("connected", "user", r.User.Username, "guilds", len(r.Guilds))
	if err := s.UpdateStatusComplex(discordgo.UpdateStatusData{
		Status: b.cfg.BotStatus,
		Activities: []*discordgo.Activity{{
			Name: b.cfg.BotActivity,
			Type: discordgo.ActivityTypeListening,
		}},
	}); err != nil {
		slog.Warn("update status failed", "err", err)
	}
	b.once.Do(func() { close(b.ready) })

	appID := r.User.ID
	defs := b.exec.Definitions()
	go func() {
		if b.cfg.RegisterCommandsOnBot {
			if _, err := s.ApplicationCommandBulkOverwrite(appID, "", defs); err != nil {
				slog.Error("register global commands", "err", err)
				return
			}
			slog.Info("registered global application commands", "count", len(defs))
			return
		}
		var wg sync.WaitGroup
		for _, g := range r.Guilds {
			wg.Add(1)
			go func(guildID string) {
				defer wg.Done()
				if _, err := s.ApplicationCommandBulkOverwrite(appID, guildID, defs); err != nil {
					slog.Error("register guild commands", "guild", guildID, "err", err)
				}
			}(g.ID)
		}
		wg.Wait()
		if _, err := s.ApplicationCommandBulkOverwrite(appID, "", []*discordgo.ApplicationCommand{}); err != nil {
			slog.Error("clear global commands", "err", err)
		}
		slog.Info("registered commands on all guilds")
	}()
}

// onGuildCreate registers commands on guilds joined after startup.
func (b *Bot) onGuildCreate(s *discordgo.Session, g *discordgo.GuildCreate) {
	if b.cfg.RegisterCommandsOnBot || s.State.User == nil {
		return
	}
	appID := s.State.User.ID
	defs := b.exec.Definitions()
	go func() {
		if _, err := s.ApplicationCommandBulkOverwrite(appID, g.ID, defs); err != nil {
			slog.Error("register guild commands on join", "guild", g.ID, "err", err)
		}
	}()
}

func (b *Bot) onReactionAdd(s *discordgo.Session, r *discordgo.MessageReactionAdd) {
	if r.GuildID == "" || r.UserID == b.selfID() {
		return
	}
	b.pm.HandleReaction(r.GuildID, player.Reaction{
		ChannelID: r.ChannelID,
		MessageID: r.MessageID,
		UserID:    r.UserID,
		Emoji:     r.Emoji.APIName(),
	})
}

func (b *Bot) onVoiceServerUpdate(_ *discordgo.Session, v *discordgo.VoiceServerUpdate) {
	b.voice.ServerUpdate(b.ctx, v.GuildID, v.Token, v.Endpoint)
}

func (b *Bot) onVoiceStateUpdate(_ *discordgo.Session, vs *discordgo.VoiceStateUpdate) {
	gid := vs.GuildID
	if vs.UserID == b.selfID() {
		b.voice.StateUpdate(b.ctx, gid, vs.ChannelID, vs.SessionID)
		if vs.ChannelID == "" {
			b.inbox.Post(gid, func() { b.teardown(gid, "disconnected from voice") })
		}
		return
	}
	if leftChannel(b.voice.ChannelOf(gid), vs) {
		b.inbox.Post(gid, func() { b.leaveIfNoListeners(gid) })
	}
}

// leftChannel reports whether the update may have taken a member out of ch.
// An unknown previous state counts as a possible departure.
func leftChannel(ch string, vs *discordgo.VoiceStateUpdate) bool {
	if ch == "" || vs.ChannelID == ch {
		return false
	}
	return vs.BeforeUpdate == nil || vs.BeforeUpdate.ChannelID == ch
}

func (b *Bot) leaveIfNoListeners(guildID string) {
	p := b.pm.Peek(guildID)
	if p == nil || p.Destroyed() {
		return
	}
	set, err := b.settings.UpsertSettings(b.ctx, guildID)
	if err != nil || set == nil || !set.LeaveIfNoListeners {
		return
	}
	if len(p.Listeners()) == 0 {
		b.teardown(guildID, "no listeners left")
	}
}

func (b *Bot) teardown(guildID, reason string) {
	p := b.pm.Peek(guildID)
	if p == nil {
		return
	}
	slog.Info("destroying player", "guildID", guildID, "reason", reason)
	ctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := p.Destroy(ctx); err != nil {
		slog.Warn("player teardown failed", "guildID", guildID, "err", err)
	}
}
