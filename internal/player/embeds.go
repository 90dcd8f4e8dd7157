package player

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/utils"
)

const (
	ControllerColor = 0xffb347
	upNextShown     = 3
	upNextTitleLen  = 45
)

var ErrPageRange = errors.New("the queue isn't that big")

func songLink(t *Track) string {
	title := utils.EscapeMd(t.Title())
	if t.Info.URI == "" {
		return title
	}
	return fmt.Sprintf("[%s](%s)", title, t.Info.URI)
}

func durationText(t *Track) string {
	if t.IsStream() {
		return "🔴 Streaming"
	}
	return utils.PrettyTime(t.Duration())
}

func progressLine(st State) string {
	cur := st.Current
	if cur.IsStream() {
		return "🔴 live"
	}
	progress := 0.0
	if d := cur.Duration(); d > 0 {
		progress = float64(st.Position) / float64(d)
	}
	return fmt.Sprintf("%s `[ %s/%s ]`", ProgressBar(12, progress),
		utils.PrettyTime(st.Position), utils.PrettyTime(cur.Duration()))
}

func titleCase(s string) string {
	if s == "" {
		return "Flat"
	}
	return strings.ToUpper(s[:1]) + s[1:]
}

func onOff(b bool) string {
	if b {
		return "On"
	}
	return "Off"
}

// BuildControllerEmbed renders the live controller for a player snapshot.
func BuildControllerEmbed(st State) *discordgo.MessageEmbed {
	cur := st.Current
	if cur == nil {
		return &discordgo.MessageEmbed{
			Title:       "Nothing Playing",
			Description: "The queue is empty.",
			Color:       ControllerColor,
		}
	}

	title := "Now Playing"
	if st.Status == StatusPaused {
		title = "Paused"
	}
	desc := fmt.Sprintf("**%s**\n\n%s", songLink(cur), progressLine(st))

	embed := &discordgo.MessageEmbed{
		Title:       title,
		Description: desc,
		Color:       ControllerColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "Duration", Value: durationText(cur), Inline: true},
			{Name: "Queue Length", Value: fmt.Sprint(st.QueueLen), Inline: true},
			{Name: "Volume", Value: fmt.Sprintf("**`%d%%`**", st.Volume), Inline: true},
			{Name: "Requested By", Value: fmt.Sprintf("<@%s>", cur.RequesterID), Inline: true},
			{Name: "EQ", Value: titleCase(st.Equalizer), Inline: true},
			{Name: "Looping", Value: onOff(st.Looping), Inline: true},
		},
	}
	if st.VoiceChannelID != "" {
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Channel", Value: fmt.Sprintf("<#%s>", st.VoiceChannelID), Inline: true,
		})
	}
	if len(st.Upcoming) > 0 {
		n := min(upNextShown, len(st.Upcoming))
		var b strings.Builder
		for i, t := range st.Upcoming[:n] {
			fmt.Fprintf(&b, "`%d.` %s\n", i+1, utils.EscapeMd(utils.Truncate(t.Title(), upNextTitleLen)))
		}
		embed.Fields = append(embed.Fields, &discordgo.MessageEmbedField{
			Name: "Coming Up", Value: strings.TrimRight(b.String(), "\n"),
		})
	}
	if cur.Info.ArtworkURL != "" {
		embed.Thumbnail = &discordgo.MessageEmbedThumbnail{URL: cur.Info.ArtworkURL}
	}
	return embed
}

// BuildQueueEmbed renders one page of the queue. page is 1-based.
func BuildQueueEmbed(st State, page, pageSize int) (*discordgo.MessageEmbed, error) {
	const maxDesc = 4096

	if st.Current == nil && len(st.Upcoming) == 0 {
		return nil, ErrNothingPlaying
	}
	if pageSize <= 0 {
		pageSize = 10
	}
	if page <= 0 {
		page = 1
	}
	total := len(st.Upcoming)
	maxPage := max(1, (total+pageSize-1)/pageSize)
	if page > maxPage {
		return nil, ErrPageRange
	}
	begin := (page - 1) * pageSize
	end := min(total, begin+pageSize)

	var desc strings.Builder
	if st.Current != nil {
		fmt.Fprintf(&desc, "**%s**\nRequested by: <@%s>\n%s\n\n", songLink(st.Current), st.Current.RequesterID, progressLine(st))
	}
	if end > begin {
		desc.WriteString("**Up next:**\n")
	}
	shown := 0
	for i, t := range st.Upcoming[begin:end] {
		line := fmt.Sprintf("`%d.` %s `[ %s ]`\n", begin+i+1, songLink(t), durationText(t))
		if desc.Len()+len(line) > maxDesc-32 {
			break
		}
		desc.WriteString(line)
		shown++
	}
	if rest := end - begin - shown; rest > 0 {
		fmt.Fprintf(&desc, "…and %d more", rest)
	}

	var totalLen time.Duration
	for _, t := range st.Upcoming {
		if !t.IsStream() {
			totalLen += t.Duration()
		}
	}

	return &discordgo.MessageEmbed{
		Title:       "Queue",
		Description: desc.String(),
		Color:       ControllerColor,
		Fields: []*discordgo.MessageEmbedField{
			{Name: "In queue", Value: fmt.Sprintf("%d songs", total), Inline: true},
			{Name: "Total length", Value: utils.PrettyTime(totalLen), Inline: true},
			{Name: "Page", Value: fmt.Sprintf("%d out of %d", page, maxPage), Inline: true},
		},
	}, nil
}
