package commands

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/player"
	"github.com/sonroyaalmerol/lavabot/internal/repository"
	"github.com/sonroyaalmerol/lavabot/internal/resolve"
	"github.com/sonroyaalmerol/lavabot/internal/utils"
)

var ErrBadArgument = errors.New("bad argument")

// userErrors are failures caused by the caller, not the bot.
var userErrors = []error{
	ErrUnknownCommand, ErrCooldown, ErrNotInVoice, ErrWrongChannel, ErrVoteClosed, ErrBadArgument,
	player.ErrNotConnected, player.ErrPermissionDenied, player.ErrNothingPlaying,
	player.ErrVolumeRange, player.ErrSeekRange, player.ErrNotSeekable, player.ErrUnknownEqualizer,
	player.ErrAlreadyVoted, player.ErrDestroyed, player.ErrPageRange,
	resolve.ErrNoMatches, resolve.ErrSpotifyDisabled, utils.ErrBadClock,
	repository.ErrPlaylistExists, repository.ErrPlaylistNotFound, repository.ErrNotOwner,
}

func expected(err error) bool {
	for _, target := range userErrors {
		if errors.Is(err, target) {
			return true
		}
	}
	return false
}

// Describe turns a command error into a short message for the caller.
func Describe(err error) string {
	var ve *player.VoteError
	switch {
	case err == nil:
		return ""
	case errors.As(err, &ve):
		return fmt.Sprintf("voted to %s, **%d** more votes needed", ve.Action, ve.Remaining())
	case errors.Is(err, player.ErrAlreadyVoted):
		return "you already voted for that"
	case errors.Is(err, ErrVoteClosed):
		return "that already passed a vote for this song"
	case errors.Is(err, player.ErrPermissionDenied):
		return "you don't have permission to do that"
	case errors.Is(err, ErrCooldown):
		return "slow down a little"
	case errors.Is(err, ErrNotInVoice):
		return "gotta be in a voice channel"
	case errors.Is(err, ErrWrongChannel):
		return "gotta be in the same voice channel as me"
	case errors.Is(err, player.ErrNotConnected), errors.Is(err, player.ErrDestroyed):
		return "not connected"
	case errors.Is(err, player.ErrNothingPlaying):
		return "nothing is currently playing"
	case errors.Is(err, player.ErrVolumeRange):
		return "please enter a value between 0 and 100"
	case errors.Is(err, player.ErrSeekRange):
		return "the given time is longer than the song"
	case errors.Is(err, player.ErrNotSeekable):
		return "can't seek in this song"
	case errors.Is(err, player.ErrUnknownEqualizer):
		names := presetNames()
		for i, n := range names {
			names[i] = titleCase(n)
		}
		return "not a valid equalizer, try " + strings.Join(names, ", ")
	case errors.Is(err, player.ErrPageRange):
		return "that page doesn't exist"
	case errors.Is(err, utils.ErrBadClock):
		return "invalid time, ex: 0, 4:30 or 1:15:10"
	case errors.Is(err, resolve.ErrNoMatches):
		return "no songs found"
	case errors.Is(err, resolve.ErrSpotifyDisabled):
		return "spotify links are not enabled"
	case errors.Is(err, repository.ErrPlaylistExists):
		return "that name is already taken, try a different one"
	case errors.Is(err, repository.ErrPlaylistNotFound):
		return "no saved playlist with that name"
	case errors.Is(err, repository.ErrNotOwner):
		return "only the member who saved that playlist can remove it"
	case errors.Is(err, ErrBadArgument):
		if _, detail, ok := strings.Cut(err.Error(), ": "); ok {
			return detail
		}
		return "invalid arguments"
	case errors.Is(err, ErrUnknownCommand):
		return "unknown command"
	case errors.Is(err, player.ErrAudioNode):
		return "the audio node is having trouble, try again"
	case errors.Is(err, player.ErrDelivery):
		return "couldn't post the player message here"
	case errors.Is(err, context.DeadlineExceeded):
		return "that took too long, try again"
	}
	return "internal error"
}

// Definitions returns the slash commands to register. Hidden commands are left out.
func (x *Executor) Definitions() []*discordgo.ApplicationCommand {
	out := make([]*discordgo.ApplicationCommand, 0, len(x.order))
	for _, c := range x.order {
		if c.Hidden {
			continue
		}
		out = append(out, &discordgo.ApplicationCommand{
			Name:        c.Name,
			Description: c.Description,
			Options:     c.Options,
		})
	}
	return out
}
