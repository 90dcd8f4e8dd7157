package player

import (
	"context"
	"log/slog"
	"sync"

	"github.com/hashicorp/go-multierror"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
)

// Deps are the collaborators shared by every player.
type Deps struct {
	Node     Node
	Voice    Voice
	Surface  Surface
	SelfID   func() string
	Dispatch Dispatcher
}

// PlayerManager is the process-wide guild to player table.
type PlayerManager struct {
	deps Deps

	mu      sync.Mutex
	players map[string]*Player
}

func NewPlayerManager(deps Deps) *PlayerManager {
	return &PlayerManager{deps: deps, players: make(map[string]*Player)}
}

// SetDispatcher installs the reaction dispatcher for players created from now on.
func (pm *PlayerManager) SetDispatcher(d Dispatcher) {
	pm.mu.Lock()
	pm.deps.Dispatch = d
	pm.mu.Unlock()
}

// Peek returns the live player for a guild, or nil.
func (pm *PlayerManager) Peek(guildID string) *Player {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return pm.players[guildID]
}

func (pm *PlayerManager) Len() int {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	return len(pm.players)
}

// Connect joins voiceChannelID, creating and starting the guild's player on first use.
func (pm *PlayerManager) Connect(ctx context.Context, guildID, voiceChannelID string, s Settings) (*Player, error) {
	if p := pm.Peek(guildID); p != nil && !p.Destroyed() {
		if p.VoiceChannelID() == voiceChannelID {
			return p, nil
		}
		if err := pm.deps.Voice.Join(ctx, guildID, voiceChannelID); err != nil {
			return nil, err
		}
		p.setVoiceChannel(voiceChannelID)
		return p, nil
	}

	if err := pm.deps.Voice.Join(ctx, guildID, voiceChannelID); err != nil {
		return nil, err
	}

	pm.mu.Lock()
	defer pm.mu.Unlock()
	if p, ok := pm.players[guildID]; ok && !p.Destroyed() {
		return p, nil
	}
	p := newPlayer(guildID, voiceChannelID, s, pm.deps, pm.remove)
	pm.players[guildID] = p
	p.start()
	slog.Info("player created", "guildID", guildID, "channelID", voiceChannelID)
	return p, nil
}

func (pm *PlayerManager) remove(p *Player) {
	pm.mu.Lock()
	defer pm.mu.Unlock()
	if pm.players[p.guildID] == p {
		delete(pm.players, p.guildID)
	}
}

// HandleNodeEvent routes an audio node event to the guild's player.
func (pm *PlayerManager) HandleNodeEvent(ev audionode.Event) {
	if p := pm.Peek(ev.GuildID); p != nil {
		p.HandleEvent(ev)
	}
}

// HandleReaction routes a reaction-add to the guild's controller.
func (pm *PlayerManager) HandleReaction(guildID string, r Reaction) bool {
	p := pm.Peek(guildID)
	if p == nil {
		return false
	}
	return p.controller.Feed(r)
}

// DestroyAll tears down every player, used at shutdown.
func (pm *PlayerManager) DestroyAll(ctx context.Context) error {
	pm.mu.Lock()
	all := make([]*Player, 0, len(pm.players))
	for _, p := range pm.players {
		all = append(all, p)
	}
	pm.mu.Unlock()

	var result *multierror.Error
	for _, p := range all {
		if err := p.Destroy(ctx); err != nil {
			result = multierror.Append(result, err)
		}
	}
	return result.ErrorOrNil()
}
