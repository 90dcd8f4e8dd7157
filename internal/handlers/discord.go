package handlers

import (
	"context"

	"github.com/bwmarrin/discordgo"
)

// discordSurface posts and maintains controller messages over the REST API.
type discordSurface struct {
	s *discordgo.Session
}

func (d discordSurface) SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error) {
	m, err := d.s.ChannelMessageSendEmbed(channelID, embed, discordgo.WithContext(ctx))
	if err != nil {
		return "", err
	}
	return m.ID, nil
}

func (d discordSurface) EditEmbed(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error {
	_, err := d.s.ChannelMessageEditEmbed(channelID, messageID, embed, discordgo.WithContext(ctx))
	return err
}

func (d discordSurface) DeleteMessage(ctx context.Context, channelID, messageID string) error {
	return d.s.ChannelMessageDelete(channelID, messageID, discordgo.WithContext(ctx))
}

func (d discordSurface) RecentMessageIDs(ctx context.Context, channelID string, limit int) ([]string, error) {
	msgs, err := d.s.ChannelMessages(channelID, limit, "", "", "", discordgo.WithContext(ctx))
	if err != nil {
		return nil, err
	}
	ids := make([]string, 0, len(msgs))
	for _, m := range msgs {
		ids = append(ids, m.ID)
	}
	return ids, nil
}

func (d discordSurface) AddReaction(ctx context.Context, channelID, messageID, emoji string) error {
	return d.s.MessageReactionAdd(channelID, messageID, emoji, discordgo.WithContext(ctx))
}

func (d discordSurface) RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error {
	return d.s.MessageReactionRemove(channelID, messageID, emoji, userID, discordgo.WithContext(ctx))
}

// discordGuilds answers member questions from the gateway state cache.
type discordGuilds struct {
	s *discordgo.Session
}

func (d discordGuilds) UserVoiceChannel(guildID, userID string) (string, bool) {
	vs, err := d.s.State.VoiceState(guildID, userID)
	if err != nil || vs == nil || vs.ChannelID == "" {
		return "", false
	}
	return vs.ChannelID, true
}

// CanManage reports whether the user may manage the channel, which lets them skip votes.
func (d discordGuilds) CanManage(guildID, channelID, userID string) bool {
	if g, err := d.s.State.Guild(guildID); err == nil && g.OwnerID == userID {
		return true
	}
	perms, err := d.s.UserChannelPermissions(userID, channelID)
	if err != nil {
		return false
	}
	return perms&(discordgo.PermissionAdministrator|discordgo.PermissionManageChannels) != 0
}

// Members lists non-bot users in a voice channel.
func (d discordGuilds) Members(guildID, channelID string) []string {
	g, err := d.s.State.Guild(guildID)
	if err != nil || g == nil {
		return nil
	}
	self := ""
	if d.s.State.User != nil {
		self = d.s.State.User.ID
	}
	var out []string
	for _, vs := range g.VoiceStates {
		if vs.ChannelID != channelID || vs.UserID == self {
			continue
		}
		if m, _ := d.s.State.Member(guildID, vs.UserID); m != nil && m.User != nil && m.User.Bot {
			continue
		}
		out = append(out, vs.UserID)
	}
	return out
}

// joinVoice sends the gateway voice-state update. The audio node opens the actual connection.
func joinVoice(s *discordgo.Session) func(guildID, channelID string) error {
	return func(guildID, channelID string) error {
		return s.ChannelVoiceJoinManual(guildID, channelID, false, true)
	}
}
