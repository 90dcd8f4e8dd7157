package commands

import (
	"context"
	"fmt"
	"maps"
	"slices"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
	"github.com/sonroyaalmerol/lavabot/internal/player"
	"github.com/sonroyaalmerol/lavabot/internal/utils"
)

func table() []*Command {
	minVol, maxVol := 0.0, 100.0
	minPage := 1.0

	var presets []*discordgo.ApplicationCommandOptionChoice
	for _, name := range presetNames() {
		presets = append(presets, &discordgo.ApplicationCommandOptionChoice{Name: titleCase(name), Value: name})
	}

	cmds := []*Command{
		{
			Name:        "connect",
			Description: "Join your voice channel or the one given",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionChannel,
				Name:         "channel",
				Description:  "voice channel to join",
				ChannelTypes: []discordgo.ChannelType{discordgo.ChannelTypeGuildVoice, discordgo.ChannelTypeGuildStageVoice},
			}},
			Run: runConnect,
		},
		{
			Name:        "play",
			Description: "Queue a song, playlist or search result",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:         discordgo.ApplicationCommandOptionString,
				Name:         "query",
				Description:  "YouTube URL, Spotify URL, or search query",
				Required:     true,
				Autocomplete: true,
			}},
			Slow: true,
			Run: func(ctx context.Context, c *Call) (Response, error) {
				return c.play(ctx, c.Inv.String("query"))
			},
		},
		{Name: "pause", Description: "Pause the current song", Gate: player.ActionPause, Run: runPause},
		{Name: "resume", Description: "Resume the current song", Gate: player.ActionResume, Run: runResume},
		{Name: "skip", Description: "Skip the current song", Gate: player.ActionSkip, Run: runSkip},
		{Name: "stop", Description: "Stop the music, clear the queue and leave", Gate: player.ActionStop, Run: runStop},
		{Name: "shuffle", Description: "Shuffle the queue", Gate: player.ActionShuffle, Run: runShuffle},
		{Name: "repeat", Description: "Play the current song again next", Gate: player.ActionRepeat, Run: runRepeat},
		{Name: "disconnect", Description: "Leave the voice channel", NeedsPlayer: true, Run: runDisconnect},
		{
			Name:        "volume",
			Description: "Set the player volume",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "value",
				Description: "0 to 100",
				Required:    true,
				MinValue:    &minVol,
				MaxValue:    maxVol,
			}},
			NeedsPlayer: true,
			Run:         runVolume,
		},
		{Name: player.CommandVolUp, Hidden: true, NeedsPlayer: true, Run: stepVolume(true)},
		{Name: player.CommandVolDown, Hidden: true, NeedsPlayer: true, Run: stepVolume(false)},
		{
			Name:        "queue",
			Description: "Show the queue",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionInteger,
				Name:        "page",
				Description: "page of the queue to show",
				MinValue:    &minPage,
			}},
			NeedsPlayer: true,
			Run:         runQueue,
		},
		{
			Name:        "loop",
			Description: "Toggle looping of the queue",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "mode",
				Description: "on or off, toggles when omitted",
				Choices: []*discordgo.ApplicationCommandOptionChoice{
					{Name: "on", Value: "on"},
					{Name: "off", Value: "off"},
				},
			}},
			NeedsPlayer: true,
			Run:         runLoop,
		},
		{
			Name:        "eq",
			Description: "Set the equalizer preset",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "preset",
				Description: "equalizer preset",
				Required:    true,
				Choices:     presets,
			}},
			NeedsPlayer: true,
			Run:         runEqualizer,
		},
		{
			Name:        "seek",
			Description: "Jump to a position in the current song",
			Options: []*discordgo.ApplicationCommandOption{{
				Type:        discordgo.ApplicationCommandOptionString,
				Name:        "time",
				Description: "h:m:s, m:s or seconds",
				Required:    true,
			}},
			NeedsPlayer: true,
			Run:         runSeek,
		},
		{Name: "now_playing", Description: "Show the player controller", NeedsPlayer: true, Run: runNowPlaying},
	}
	return append(cmds, libraryCommands()...)
}

func titleCase(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func runConnect(ctx context.Context, c *Call) (Response, error) {
	ch := c.Inv.String("channel")
	if ch == "" {
		var ok bool
		if ch, ok = c.x.deps.Guilds.UserVoiceChannel(c.Inv.GuildID, c.Inv.UserID); !ok {
			return Response{}, ErrNotInVoice
		}
	}
	if p := c.x.deps.Players.Peek(c.Inv.GuildID); p != nil && !p.Destroyed() && p.VoiceChannelID() == ch {
		return Response{Content: "already there", Ephemeral: true}, nil
	}
	if _, err := c.x.deps.Players.Connect(ctx, c.Inv.GuildID, ch, playerSettings(c.settings(ctx))); err != nil {
		return Response{}, fmt.Errorf("connect: %w", err)
	}
	return reply("connected to <#%s>", ch), nil
}

// play resolves query and queues the results as the caller's requests.
func (c *Call) play(ctx context.Context, query string) (Response, error) {
	query = strings.Trim(strings.TrimSpace(query), "<>")
	if query == "" {
		return Response{}, fmt.Errorf("%w: empty query", ErrBadArgument)
	}
	ch, ok := c.x.deps.Guilds.UserVoiceChannel(c.Inv.GuildID, c.Inv.UserID)
	if !ok {
		return Response{}, ErrNotInVoice
	}
	set := c.settings(ctx)

	p := c.x.deps.Players.Peek(c.Inv.GuildID)
	if p != nil && !p.Destroyed() && p.VoiceChannelID() != ch && !c.Manager {
		return Response{}, ErrWrongChannel
	}
	p, err := c.x.deps.Players.Connect(ctx, c.Inv.GuildID, ch, playerSettings(set))
	if err != nil {
		return Response{}, fmt.Errorf("connect: %w", err)
	}

	items, notes, err := c.x.deps.Resolver.Resolve(ctx, query, set.PlaylistLimit)
	if err != nil {
		return Response{}, err
	}
	tracks := make([]*player.Track, 0, len(items))
	for _, it := range items {
		t := player.NewTrack(it.Track, c.Inv.UserID, c.Inv.ChannelID)
		t.Start, t.End = it.Start, it.End
		tracks = append(tracks, t)
	}
	if err := p.Enqueue(tracks...); err != nil {
		return Response{}, err
	}

	var msg string
	switch {
	case len(items) == 1 && items[0].Playlist == "":
		msg = fmt.Sprintf("**%s** added to the queue", utils.EscapeMd(tracks[0].Title()))
	case items[0].Playlist != "":
		msg = fmt.Sprintf("added **%d** songs from **%s** to the queue", len(items), utils.EscapeMd(items[0].Playlist))
	default:
		msg = fmt.Sprintf("added **%d** songs to the queue", len(items))
	}
	if len(notes) > 0 {
		msg += " (" + strings.Join(notes, ", ") + ")"
	}
	return Response{Content: msg}, nil
}

func runPause(ctx context.Context, c *Call) (Response, error) {
	if c.Player.Status() == player.StatusPaused {
		return Response{Content: "already paused", Ephemeral: true}, nil
	}
	if err := c.Player.Pause(ctx); err != nil {
		return Response{}, err
	}
	return reply("<@%s> paused the music", c.Inv.UserID), nil
}

func runResume(ctx context.Context, c *Call) (Response, error) {
	if c.Player.Status() == player.StatusPlaying {
		return Response{Content: "already playing", Ephemeral: true}, nil
	}
	if err := c.Player.Resume(ctx); err != nil {
		return Response{}, err
	}
	return reply("<@%s> resumed the music", c.Inv.UserID), nil
}

func runSkip(ctx context.Context, c *Call) (Response, error) {
	if err := c.Player.Skip(ctx); err != nil {
		return Response{}, err
	}
	return reply("<@%s> skipped the song", c.Inv.UserID), nil
}

func runStop(ctx context.Context, c *Call) (Response, error) {
	if err := c.Player.Stop(ctx); err != nil {
		return Response{}, err
	}
	return reply("<@%s> stopped the music", c.Inv.UserID), nil
}

func runShuffle(_ context.Context, c *Call) (Response, error) {
	if err := c.Player.Shuffle(); err != nil {
		return Response{}, err
	}
	return reply("<@%s> shuffled the queue", c.Inv.UserID), nil
}

func runRepeat(_ context.Context, c *Call) (Response, error) {
	if err := c.Player.Repeat(); err != nil {
		return Response{}, err
	}
	return reply("<@%s> repeated the current song", c.Inv.UserID), nil
}

func runDisconnect(ctx context.Context, c *Call) (Response, error) {
	if !c.Manager {
		if err := c.requireListener(); err != nil {
			return Response{}, err
		}
	}
	if err := c.Player.Destroy(ctx); err != nil {
		return Response{}, err
	}
	return Response{Content: "u betcha, disconnected"}, nil
}

func runVolume(ctx context.Context, c *Call) (Response, error) {
	v, ok := c.Inv.Int("value")
	if !ok {
		return Response{}, fmt.Errorf("%w: volume", ErrBadArgument)
	}
	if err := c.Player.SetVolume(ctx, v); err != nil {
		return Response{}, err
	}
	return reply("set the volume to **%d**%%", v), nil
}

func stepVolume(up bool) func(context.Context, *Call) (Response, error) {
	return func(ctx context.Context, c *Call) (Response, error) {
		vol, atBound, err := c.Player.StepVolume(ctx, up)
		if err != nil {
			return Response{}, err
		}
		switch {
		case atBound && up:
			return Response{Content: "maximum volume reached"}, nil
		case atBound:
			return Response{Content: "player is currently muted"}, nil
		case up:
			return reply("<@%s> raised the volume to **%d**%%", c.Inv.UserID, vol), nil
		}
		return reply("<@%s> lowered the volume to **%d**%%", c.Inv.UserID, vol), nil
	}
}

func runQueue(ctx context.Context, c *Call) (Response, error) {
	page, ok := c.Inv.Int("page")
	if !ok {
		page = 1
	}
	embed, err := player.BuildQueueEmbed(c.Player.State(), page, c.settings(ctx).DefaultQueuePageSize)
	if err != nil {
		return Response{}, err
	}
	return Response{Embed: embed}, nil
}

func runLoop(_ context.Context, c *Call) (Response, error) {
	var want *bool
	switch strings.ToLower(c.Inv.String("mode")) {
	case "on":
		on := true
		want = &on
	case "off":
		off := false
		want = &off
	}
	on, err := c.Player.SetLoop(want)
	if err != nil {
		return Response{}, err
	}
	state := "off"
	if on {
		state = "on"
	}
	return reply("looping is now **%s**", state), nil
}

func runEqualizer(ctx context.Context, c *Call) (Response, error) {
	name, err := c.Player.SetEqualizer(ctx, c.Inv.String("preset"))
	if err != nil {
		return Response{}, err
	}
	return reply("equalizer set to **%s** by <@%s>", titleCase(name), c.Inv.UserID), nil
}

func runSeek(ctx context.Context, c *Call) (Response, error) {
	pos, err := utils.ParseClock(c.Inv.String("time"))
	if err != nil {
		return Response{}, err
	}
	if err := c.Player.Seek(ctx, pos); err != nil {
		return Response{}, err
	}
	if pos == 0 {
		return reply("<@%s> moved the song to the beginning", c.Inv.UserID), nil
	}
	return reply("<@%s> moved the song to %s", c.Inv.UserID, utils.PrettyTime(pos)), nil
}

func runNowPlaying(ctx context.Context, c *Call) (Response, error) {
	if c.Player.Current() == nil {
		return Response{}, player.ErrNothingPlaying
	}
	if err := c.Player.Controller().Refresh(ctx); err != nil {
		return Response{}, err
	}
	return Response{Content: "controller refreshed", Ephemeral: true}, nil
}

func presetNames() []string {
	return slices.Sorted(maps.Keys(audionode.Presets))
}
