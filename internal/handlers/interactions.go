package handlers

import (
	"context"
	"log/slog"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/commands"
)

const (
	// deferAfter is how long a command may wait in the guild inbox before the
	// interaction gets a deferred response to keep the token alive.
	deferAfter     = 1500 * time.Millisecond
	commandTimeout = 45 * time.Second
	suggestTimeout = 2500 * time.Millisecond
	reactionReply  = 5 * time.Second
	reactionEmbed  = 20 * time.Second
)

var noMentions = &discordgo.MessageAllowedMentions{}

func userIDOf(i *discordgo.InteractionCreate) string {
	if i.Member != nil && i.Member.User != nil {
		return i.Member.User.ID
	}
	if i.User != nil {
		return i.User.ID
	}
	return ""
}

// subcommand unwraps a single subcommand option, returning its name and options.
func subcommand(opts []*discordgo.ApplicationCommandInteractionDataOption) (string, []*discordgo.ApplicationCommandInteractionDataOption) {
	if len(opts) == 1 && opts[0].Type == discordgo.ApplicationCommandOptionSubCommand {
		return opts[0].Name, opts[0].Options
	}
	return "", opts
}

// toInvocation converts a slash command interaction to an executor invocation.
func toInvocation(i *discordgo.InteractionCreate) commands.Invocation {
	data := i.ApplicationCommandData()
	sub, opts := subcommand(data.Options)
	inv := commands.Invocation{
		GuildID:   i.GuildID,
		ChannelID: i.ChannelID,
		UserID:    userIDOf(i),
		Name:      data.Name,
		Sub:       sub,
		Args:      make(map[string]any, len(opts)),
		Source:    commands.SourceSlash,
	}
	for _, o := range opts {
		switch o.Type {
		case discordgo.ApplicationCommandOptionInteger:
			inv.Args[o.Name] = o.IntValue()
		case discordgo.ApplicationCommandOptionBoolean:
			inv.Args[o.Name] = o.BoolValue()
		case discordgo.ApplicationCommandOptionChannel:
			inv.Args[o.Name] = o.ChannelValue(nil).ID
		case discordgo.ApplicationCommandOptionString:
			inv.Args[o.Name] = o.StringValue()
		default:
			inv.Args[o.Name] = o.Value
		}
	}
	return inv
}

func (b *Bot) onInteraction(s *discordgo.Session, i *discordgo.InteractionCreate) {
	switch i.Type {
	case discordgo.InteractionApplicationCommandAutocomplete:
		go b.autocomplete(s, i)
	case discordgo.InteractionApplicationCommand:
		if i.GuildID == "" {
			b.reply(s, i, commands.Response{Content: "commands only work in servers", Ephemeral: true})
			return
		}
		inv := toInvocation(i)
		received := time.Now()
		slog.Debug("interaction queued", "guildID", i.GuildID, "userID", inv.UserID, "command", inv.Name)
		b.inbox.Post(i.GuildID, func() { b.runInteraction(s, i, inv, received) })
	}
}

func (b *Bot) runInteraction(s *discordgo.Session, i *discordgo.InteractionCreate, inv commands.Invocation, received time.Time) {
	deferred := false
	if cmd, ok := b.exec.Lookup(inv.Name); (ok && cmd.Slow) || time.Since(received) > deferAfter {
		deferred = b.deferReply(s, i)
	}

	ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
	defer cancel()
	resp := b.exec.Execute(ctx, inv)
	if resp.Empty() {
		resp.Content = "👍"
	}
	if deferred {
		b.editReply(s, i, resp)
		return
	}
	b.reply(s, i, resp)
}

func flagsFor(resp commands.Response) discordgo.MessageFlags {
	if resp.Ephemeral {
		return discordgo.MessageFlagsEphemeral
	}
	return 0
}

func embedsOf(resp commands.Response) []*discordgo.MessageEmbed {
	if resp.Embed == nil {
		return nil
	}
	return []*discordgo.MessageEmbed{resp.Embed}
}

func (b *Bot) reply(s *discordgo.Session, i *discordgo.InteractionCreate, resp commands.Response) {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseChannelMessageWithSource,
		Data: &discordgo.InteractionResponseData{
			Content:         resp.Content,
			Embeds:          embedsOf(resp),
			Flags:           flagsFor(resp),
			AllowedMentions: noMentions,
		},
	}); err != nil {
		slog.Warn("reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (b *Bot) deferReply(s *discordgo.Session, i *discordgo.InteractionCreate) bool {
	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionResponseDeferredChannelMessageWithSource,
	}); err != nil {
		slog.Warn("defer reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
		return false
	}
	return true
}

// editReply fills a deferred response. Ephemeral replies replace it with a private followup.
func (b *Bot) editReply(s *discordgo.Session, i *discordgo.InteractionCreate, resp commands.Response) {
	if resp.Ephemeral {
		if err := s.InteractionResponseDelete(i.Interaction); err != nil {
			slog.Debug("delete deferred reply failed", "guildID", i.GuildID, "err", err)
		}
		if _, err := s.FollowupMessageCreate(i.Interaction, true, &discordgo.WebhookParams{
			Content:         resp.Content,
			Embeds:          embedsOf(resp),
			Flags:           discordgo.MessageFlagsEphemeral,
			AllowedMentions: noMentions,
		}); err != nil {
			slog.Warn("followup failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
		}
		return
	}
	embeds := embedsOf(resp)
	if _, err := s.InteractionResponseEdit(i.Interaction, &discordgo.WebhookEdit{
		Content:         &resp.Content,
		Embeds:          &embeds,
		AllowedMentions: noMentions,
	}); err != nil {
		slog.Warn("edit reply failed", "guildID", i.GuildID, "userID", userIDOf(i), "err", err)
	}
}

func (b *Bot) autocomplete(s *discordgo.Session, i *discordgo.InteractionCreate) {
	ctx, cancel := context.WithTimeout(b.ctx, suggestTimeout)
	defer cancel()

	data := i.ApplicationCommandData()
	_, opts := subcommand(data.Options)
	var focused *discordgo.ApplicationCommandInteractionDataOption
	for _, o := range opts {
		if o.Focused {
			focused = o
			break
		}
	}

	choices := []*discordgo.ApplicationCommandOptionChoice{}
	if focused != nil && focused.Type == discordgo.ApplicationCommandOptionString {
		query := focused.StringValue()
		switch {
		case data.Name == "play" && focused.Name == "query" && b.suggest != nil:
			slog.Debug("autocomplete: fetching suggestions", "guildID", i.GuildID, "userID", userIDOf(i), "query", query)
			if c := b.suggest.Suggest(ctx, query, 10); c != nil {
				choices = c
			}
		case data.Name == "playlist" && focused.Name == "name" && b.playlists != nil:
			names, err := b.playlists.Suggest(ctx, i.GuildID, query)
			if err != nil {
				slog.Warn("playlist suggestions failed", "guildID", i.GuildID, "err", err)
			}
			for _, n := range names {
				choices = append(choices, &discordgo.ApplicationCommandOptionChoice{Name: n, Value: n})
			}
		}
	}

	if err := s.InteractionRespond(i.Interaction, &discordgo.InteractionResponse{
		Type: discordgo.InteractionApplicationCommandAutocompleteResult,
		Data: &discordgo.InteractionResponseData{Choices: choices},
	}); err != nil {
		slog.Debug("autocomplete respond failed", "guildID", i.GuildID, "err", err)
	}
}

// dispatchReaction is the controller's Dispatcher: it runs the command through the
// executor in the guild inbox and posts a short-lived reply in the controller channel.
func (b *Bot) dispatchReaction(guildID, channelID, userID, command string) {
	b.inbox.Post(guildID, func() {
		ctx, cancel := context.WithTimeout(b.ctx, commandTimeout)
		defer cancel()
		resp := b.exec.Execute(ctx, commands.Invocation{
			GuildID:   guildID,
			ChannelID: channelID,
			UserID:    userID,
			Name:      command,
			Source:    commands.SourceReaction,
		})
		b.announce(ctx, channelID, resp)
	})
}

func (b *Bot) announce(ctx context.Context, channelID string, resp commands.Response) {
	if resp.Empty() {
		return
	}
	m, err := b.session.ChannelMessageSendComplex(channelID, &discordgo.MessageSend{
		Content:         resp.Content,
		Embeds:          embedsOf(resp),
		AllowedMentions: noMentions,
	}, discordgo.WithContext(ctx))
	if err != nil {
		slog.Debug("reaction reply failed", "channelID", channelID, "err", err)
		return
	}
	ttl := reactionReply
	if resp.Embed != nil {
		ttl = reactionEmbed
	}
	time.AfterFunc(ttl, func() {
		if err := b.session.ChannelMessageDelete(channelID, m.ID); err != nil {
			slog.Debug("delete reaction reply failed", "channelID", channelID, "err", err)
		}
	})
}
