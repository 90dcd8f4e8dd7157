package player

import (
	"context"
	"strings"
)

// Reaction is a reaction-add on a controller message.
type Reaction struct {
	ChannelID string
	MessageID string
	UserID    string
	Emoji     string
}

// Dispatcher hands a reaction-derived command to the same executor slash commands use.
type Dispatcher func(guildID, channelID, userID, command string)

const (
	CommandPlayPause = "rp"
	CommandVolDown   = "vol_down"
	CommandVolUp     = "vol_up"
)

type glyph struct {
	emoji   string
	command string
}

// Glyphs are added to the controller message in this order.
var Glyphs = []glyph{
	{"⏯️", CommandPlayPause},
	{"⏹️", "stop"},
	{"⏭️", "skip"},
	{"🔀", "shuffle"},
	{"🔂", "repeat"},
	{"🔁", "loop"},
	{"➖", CommandVolDown},
	{"➕", CommandVolUp},
	{"ℹ️", "queue"},
}

func normalizeEmoji(e string) string {
	return strings.ReplaceAll(e, "\ufe0f", "")
}

// GlyphCommand maps a reaction emoji to its command name.
func GlyphCommand(emoji string) (string, bool) {
	e := normalizeEmoji(emoji)
	for _, g := range Glyphs {
		if normalizeEmoji(g.emoji) == e {
			return g.command, true
		}
	}
	return "", false
}

type listener struct {
	channelID string
	messageID string
	events    chan Reaction
	cancel    context.CancelFunc
}

func (c *Controller) startListener(channelID, messageID string) *listener {
	ctx, cancel := context.WithCancel(c.p.ctx)
	l := &listener{
		channelID: channelID,
		messageID: messageID,
		events:    make(chan Reaction, 16),
		cancel:    cancel,
	}
	go c.listen(ctx, l)
	return l
}

func (c *Controller) listen(ctx context.Context, l *listener) {
	for _, g := range Glyphs {
		if ctx.Err() != nil {
			return
		}
		if err := c.surface.AddReaction(ctx, l.channelID, l.messageID, g.emoji); err != nil {
			c.log.Debug("failed to add controller reaction", "emoji", g.emoji, "err", err)
		}
	}
	for {
		select {
		case <-ctx.Done():
			return
		case r := <-l.events:
			c.react(ctx, l, r)
		}
	}
}

func (c *Controller) react(ctx context.Context, l *listener, r Reaction) {
	if r.MessageID != l.messageID || r.UserID == "" || r.UserID == c.selfID() {
		return
	}
	cmd, ok := GlyphCommand(r.Emoji)
	if !ok {
		return
	}
	if !c.isListener(r.UserID) {
		return
	}
	if err := c.surface.RemoveReaction(ctx, l.channelID, l.messageID, r.Emoji, r.UserID); err != nil {
		c.log.Debug("failed to remove reaction", "err", err)
	}
	if cmd == CommandPlayPause {
		cmd = "pause"
		if c.p.Status() == StatusPaused {
			cmd = "resume"
		}
	}
	if c.dispatch != nil {
		c.dispatch(c.p.guildID, l.channelID, r.UserID, cmd)
	}
}

func (c *Controller) isListener(userID string) bool {
	for _, id := range c.p.Listeners() {
		if id == userID {
			return true
		}
	}
	return false
}

// Feed routes a reaction to the live listener. It reports false when the reaction
// is not on the current controller message.
func (c *Controller) Feed(r Reaction) bool {
	c.mu.Lock()
	l := c.listener
	c.mu.Unlock()
	if l == nil || l.messageID != r.MessageID {
		return false
	}
	select {
	case l.events <- r:
		return true
	default:
		c.log.Debug("reaction dropped, listener busy")
		return false
	}
}
