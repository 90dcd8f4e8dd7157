package player

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"sync"
	"sync/atomic"

	"github.com/bwmarrin/discordgo"
)

// FreshWindow is how many recent channel messages the controller may sit among and still be edited.
const FreshWindow = 8

// Surface is the chat side of the controller.
type Surface interface {
	SendEmbed(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) (string, error)
	EditEmbed(ctx context.Context, channelID, messageID string, embed *discordgo.MessageEmbed) error
	DeleteMessage(ctx context.Context, channelID, messageID string) error
	RecentMessageIDs(ctx context.Context, channelID string, limit int) ([]string, error)
	AddReaction(ctx context.Context, channelID, messageID, emoji string) error
	RemoveReaction(ctx context.Context, channelID, messageID, emoji, userID string) error
}

// Controller keeps one live status message per player with reaction controls on it.
type Controller struct {
	p        *Player
	surface  Surface
	selfID   func() string
	dispatch Dispatcher
	log      *slog.Logger

	refreshing atomic.Bool

	mu        sync.Mutex
	channelID string
	messageID string
	listener  *listener
	destroyed bool
}

func newController(p *Player, s Surface, selfID func() string, d Dispatcher) *Controller {
	if selfID == nil {
		selfID = func() string { return "" }
	}
	return &Controller{
		p:        p,
		surface:  s,
		selfID:   selfID,
		dispatch: d,
		log:      p.log.With("component", "controller"),
	}
}

// Message returns the channel and id of the live controller message, if any.
func (c *Controller) Message() (channelID, messageID string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.channelID, c.messageID
}

// Refresh redraws the controller. A call made while another refresh runs is dropped.
func (c *Controller) Refresh(ctx context.Context) error {
	if !c.refreshing.CompareAndSwap(false, true) {
		return nil
	}
	defer c.refreshing.Store(false)

	st := c.p.State()
	if st.Current == nil {
		return nil
	}
	target := st.Current.ChannelID
	embed := BuildControllerEmbed(st)

	c.mu.Lock()
	if c.destroyed {
		c.mu.Unlock()
		return nil
	}
	chID, msgID := c.channelID, c.messageID
	c.mu.Unlock()

	if msgID != "" && chID == target && c.isFresh(ctx, chID, msgID) {
		err := c.surface.EditEmbed(ctx, chID, msgID, embed)
		if err == nil {
			return nil
		}
		c.log.Debug("controller edit failed, resending", "err", err)
	}
	return c.resend(ctx, target, embed)
}

func (c *Controller) isFresh(ctx context.Context, channelID, messageID string) bool {
	ids, err := c.surface.RecentMessageIDs(ctx, channelID, FreshWindow)
	if err != nil {
		return false
	}
	return slices.Contains(ids, messageID)
}

func (c *Controller) resend(ctx context.Context, channelID string, embed *discordgo.MessageEmbed) error {
	c.mu.Lock()
	oldCh, oldMsg, oldL := c.channelID, c.messageID, c.listener
	c.channelID, c.messageID, c.listener = "", "", nil
	c.mu.Unlock()

	if oldL != nil {
		oldL.cancel()
	}
	if oldMsg != "" {
		if err := c.surface.DeleteMessage(ctx, oldCh, oldMsg); err != nil {
			c.log.Debug("failed to delete stale controller", "err", err)
		}
	}

	id, err := c.surface.SendEmbed(ctx, channelID, embed)
	if err != nil {
		c.log.Error("failed to send controller", "channelID", channelID, "err", err)
		return fmt.Errorf("%w: %v", ErrDelivery, err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.destroyed {
		_ = c.surface.DeleteMessage(ctx, channelID, id)
		return nil
	}
	c.channelID, c.messageID = channelID, id
	c.listener = c.startListener(channelID, id)
	return nil
}

// Destroy deletes the controller message and stops its reaction listener.
func (c *Controller) Destroy(ctx context.Context) error {
	c.mu.Lock()
	c.destroyed = true
	ch, msg, l := c.channelID, c.messageID, c.listener
	c.channelID, c.messageID, c.listener = "", "", nil
	c.mu.Unlock()

	if l != nil {
		l.cancel()
	}
	if msg == "" {
		return nil
	}
	if err := c.surface.DeleteMessage(ctx, ch, msg); err != nil {
		return fmt.Errorf("%w: delete controller: %v", ErrDelivery, err)
	}
	return nil
}
