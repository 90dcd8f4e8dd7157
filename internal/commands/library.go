package commands

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/dustin/go-humanize"
	"github.com/sonroyaalmerol/lavabot/internal/player"
	"github.com/sonroyaalmerol/lavabot/internal/repository"
	"github.com/sonroyaalmerol/lavabot/internal/utils"
)

const playlistListColor = 0xe74c3c

func libraryCommands() []*Command {
	name := func(autocomplete bool) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Name: "name", Description: "playlist name", Type: discordgo.ApplicationCommandOptionString,
			Required: true, Autocomplete: autocomplete,
		}
	}
	sub := func(n, desc string, opts ...*discordgo.ApplicationCommandOption) *discordgo.ApplicationCommandOption {
		return &discordgo.ApplicationCommandOption{
			Type: discordgo.ApplicationCommandOptionSubCommand, Name: n, Description: desc, Options: opts,
		}
	}

	return []*Command{
		{
			Name:        "playlist",
			Description: "Play and manage saved playlists",
			Options: []*discordgo.ApplicationCommandOption{
				sub("play", "queue a saved playlist", name(true)),
				sub("add", "save a playlist or song under a name", name(false),
					&discordgo.ApplicationCommandOption{Name: "link", Description: "URL to save", Type: discordgo.ApplicationCommandOptionString, Required: true}),
				sub("remove", "remove a saved playlist", name(true)),
				sub("list", "list saved playlists"),
			},
			Slow: true,
			Run:  runPlaylist,
		},
		{Name: "node_info", Description: "Show audio node statistics", Run: runNodeInfo},
		{
			Name:        "config",
			Description: "Configure bot settings",
			Options: []*discordgo.ApplicationCommandOption{
				sub("get", "show settings"),
				sub("set-playlist-limit", "set max songs added from a playlist",
					&discordgo.ApplicationCommandOption{Name: "limit", Description: "max tracks", Type: discordgo.ApplicationCommandOptionInteger, Required: true}),
				sub("set-idle-timeout", "seconds to wait with an empty queue before leaving",
					&discordgo.ApplicationCommandOption{Name: "seconds", Description: "seconds", Type: discordgo.ApplicationCommandOptionInteger, Required: true}),
				sub("set-leave-if-no-listeners", "leave when no listeners",
					&discordgo.ApplicationCommandOption{Name: "value", Description: "true/false", Type: discordgo.ApplicationCommandOptionBoolean, Required: true}),
				sub("set-default-volume", "default volume",
					&discordgo.ApplicationCommandOption{Name: "level", Description: "0-100", Type: discordgo.ApplicationCommandOptionInteger, Required: true}),
				sub("set-queue-page-size", "queue page size",
					&discordgo.ApplicationCommandOption{Name: "page_size", Description: "1-30", Type: discordgo.ApplicationCommandOptionInteger, Required: true}),
			},
			Run: runConfig,
		},
	}
}

func runPlaylist(ctx context.Context, c *Call) (Response, error) {
	pl := c.x.deps.Playlists
	guild, name := c.Inv.GuildID, c.Inv.String("name")

	switch c.Inv.Sub {
	case "play":
		p, err := pl.Find(ctx, guild, name)
		if errors.Is(err, repository.ErrPlaylistNotFound) {
			resp, lerr := listPlaylists(ctx, c)
			if lerr != nil {
				return Response{}, err
			}
			resp.Content = fmt.Sprintf("no saved playlist named `%s`, saved playlists are listed here:", name)
			resp.Ephemeral = true
			return resp, nil
		}
		if err != nil {
			return Response{}, err
		}
		return c.play(ctx, p.URL)
	case "add":
		link := strings.TrimSpace(c.Inv.String("link"))
		if strings.TrimSpace(name) == "" || link == "" {
			return Response{}, fmt.Errorf("%w: name and link are required", ErrBadArgument)
		}
		p, err := pl.Save(ctx, guild, c.Inv.UserID, name, link)
		if err != nil {
			return Response{}, err
		}
		slog.Info("playlist saved", "guildID", guild, "userID", c.Inv.UserID, "name", p.Name)
		return reply("added playlist `%s`, with link: `%s`", p.Name, p.URL), nil
	case "remove":
		if err := pl.Remove(ctx, guild, c.Inv.UserID, name, c.Manager); err != nil {
			return Response{}, err
		}
		slog.Info("playlist removed", "guildID", guild, "userID", c.Inv.UserID, "name", name)
		return reply("removed playlist `%s`", strings.ToLower(strings.TrimSpace(name))), nil
	case "list":
		return listPlaylists(ctx, c)
	}
	return Response{}, ErrUnknownCommand
}

func listPlaylists(ctx context.Context, c *Call) (Response, error) {
	items, err := c.x.deps.Playlists.List(ctx, c.Inv.GuildID)
	if err != nil {
		return Response{}, err
	}
	if len(items) == 0 {
		return Response{Content: "no saved playlists yet", Ephemeral: true}, nil
	}
	var b strings.Builder
	for _, p := range items {
		line := fmt.Sprintf("[%s](%s) by <@%s>\n", utils.EscapeMd(p.Name), p.URL, p.AuthorID)
		if b.Len()+len(line) > 4000 {
			break
		}
		b.WriteString(line)
	}
	return Response{Embed: &discordgo.MessageEmbed{
		Title:       "Saved Playlists",
		Description: strings.TrimRight(b.String(), "\n"),
		Color:       playlistListColor,
	}}, nil
}

func runNodeInfo(ctx context.Context, c *Call) (Response, error) {
	node := c.x.deps.Node
	if node == nil {
		return Response{}, player.ErrAudioNode
	}
	st, err := node.Stats(ctx)
	if err != nil {
		return Response{}, fmt.Errorf("%w: %v", player.ErrAudioNode, err)
	}
	mem := st.Memory
	var b strings.Builder
	fmt.Fprintf(&b, "Connected to node `%s`.\n", node.Name())
	fmt.Fprintf(&b, "`%d` players are distributed on server.\n", st.Players)
	fmt.Fprintf(&b, "`%d` players are playing on server.\n\n", st.PlayingPlayers)
	fmt.Fprintf(&b, "Server Memory: `%s/%s` | `(%s free)`\n",
		humanize.IBytes(uint64(max(mem.Used, 0))),
		humanize.IBytes(uint64(max(mem.Allocated, 0))),
		humanize.IBytes(uint64(max(mem.Free, 0))))
	fmt.Fprintf(&b, "Server CPU: `%d` cores, `%.1f%%` node load\n\n", st.CPU.Cores, st.CPU.LavalinkLoad*100)
	fmt.Fprintf(&b, "Server Uptime: `%s`", utils.PrettyTime(st.UptimeDuration()))
	return Response{Content: b.String()}, nil
}

func runConfig(ctx context.Context, c *Call) (Response, error) {
	set := c.settings(ctx)
	if c.Inv.Sub == "get" {
		idle := "never leave"
		if set.IdleTimeoutSeconds > 0 {
			idle = fmt.Sprintf("%ds", set.IdleTimeoutSeconds)
		}
		return reply("Config\n- Playlist Limit: %d\n- Wait before leaving after queue empty: %s\n- Leave if no listeners: %t\n- Default volume: %d\n- Default queue page size: %d",
			set.PlaylistLimit, idle, set.LeaveIfNoListeners, set.DefaultVolume, set.DefaultQueuePageSize), nil
	}
	if !c.Manager {
		return Response{}, player.ErrPermissionDenied
	}

	var key string
	var value any
	switch c.Inv.Sub {
	case "set-playlist-limit":
		n, ok := c.Inv.Int("limit")
		if !ok || n < 1 {
			return Response{}, fmt.Errorf("%w: invalid limit", ErrBadArgument)
		}
		key, value, set.PlaylistLimit = "PlaylistLimit", n, n
	case "set-idle-timeout":
		n, ok := c.Inv.Int("seconds")
		if !ok || n < 1 {
			return Response{}, fmt.Errorf("%w: timeout must be at least one second", ErrBadArgument)
		}
		key, value, set.IdleTimeoutSeconds = "IdleTimeoutSeconds", n, n
	case "set-leave-if-no-listeners":
		v, ok := c.Inv.Bool("value")
		if !ok {
			return Response{}, fmt.Errorf("%w: value", ErrBadArgument)
		}
		key, value, set.LeaveIfNoListeners = "LeaveIfNoListeners", v, v
	case "set-default-volume":
		n, ok := c.Inv.Int("level")
		if !ok || n < 0 || n > 100 {
			return Response{}, player.ErrVolumeRange
		}
		key, value, set.DefaultVolume = "DefaultVolume", n, n
	case "set-queue-page-size":
		n, ok := c.Inv.Int("page_size")
		if !ok || n < 1 || n > 30 {
			return Response{}, fmt.Errorf("%w: page size must be within 1-30", ErrBadArgument)
		}
		key, value, set.DefaultQueuePageSize = "DefaultQueuePageSize", n, n
	default:
		return Response{}, ErrUnknownCommand
	}
	if err := c.x.deps.Settings.UpdateSettings(ctx, set); err != nil {
		return Response{}, err
	}
	slog.Info("config updated", "guildID", c.Inv.GuildID, "key", key, "value", value)
	return Response{Content: "👍 " + key + " updated"}, nil
}
