package handlers

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/lavabot/internal/audionode"
)

var ErrVoiceTimeout = errors.New("timed out waiting for the voice server")

const voiceJoinTimeout = 10 * time.Second

// VoiceUpdater receives the credentials the audio node needs to open the voice connection.
type VoiceUpdater interface {
	UpdateVoice(ctx context.Context, guildID string, v audionode.VoiceState) error
}

type voiceServer struct {
	token    string
	endpoint string
}

// VoiceBridge joins voice channels through the gateway and forwards the resulting
// session and server credentials to the audio node.
type VoiceBridge struct {
	node    VoiceUpdater
	send    func(guildID, channelID string) error
	members func(guildID, channelID string) []string
	timeout time.Duration

	mu       sync.Mutex
	channels map[string]string
	sessions map[string]string
	servers  map[string]voiceServer
	waiters  map[string][]chan error
}

// NewVoiceBridge builds a bridge. send issues the gateway voice-state update, an empty
// channel id meaning leave. members lists non-bot users in a channel.
func NewVoiceBridge(node VoiceUpdater, send func(guildID, channelID string) error, members func(guildID, channelID string) []string) *VoiceBridge {
	return &VoiceBridge{
		node:     node,
		send:     send,
		members:  members,
		timeout:  voiceJoinTimeout,
		channels: make(map[string]string),
		sessions: make(map[string]string),
		servers:  make(map[string]voiceServer),
		waiters:  make(map[string][]chan error),
	}
}

// Join requests channelID and waits until the node received the voice credentials.
func (b *VoiceBridge) Join(ctx context.Context, guildID, channelID string) error {
	done := make(chan error, 1)
	b.mu.Lock()
	b.waiters[guildID] = append(b.waiters[guildID], done)
	b.mu.Unlock()

	if err := b.send(guildID, channelID); err != nil {
		b.drop(guildID, done)
		return err
	}

	timer := time.NewTimer(b.timeout)
	defer timer.Stop()
	select {
	case err := <-done:
		return err
	case <-timer.C:
		b.drop(guildID, done)
		return ErrVoiceTimeout
	case <-ctx.Done():
		b.drop(guildID, done)
		return ctx.Err()
	}
}

func (b *VoiceBridge) drop(guildID string, done chan error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	ws := b.waiters[guildID]
	for i, w := range ws {
		if w == done {
			b.waiters[guildID] = append(ws[:i], ws[i+1:]...)
			break
		}
	}
	if len(b.waiters[guildID]) == 0 {
		delete(b.waiters, guildID)
	}
}

func (b *VoiceBridge) Leave(_ context.Context, guildID string) error {
	b.forget(guildID)
	return b.send(guildID, "")
}

func (b *VoiceBridge) Members(guildID, channelID string) []string {
	return b.members(guildID, channelID)
}

// ChannelOf returns the channel the bot is connected to in guildID.
func (b *VoiceBridge) ChannelOf(guildID string) string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.channels[guildID]
}

func (b *VoiceBridge) forget(guildID string) {
	b.mu.Lock()
	defer b.mu.Unlock()
	delete(b.channels, guildID)
	delete(b.sessions, guildID)
	delete(b.servers, guildID)
}

// StateUpdate records the bot's own voice state. Forwarding to the node runs in the background.
func (b *VoiceBridge) StateUpdate(ctx context.Context, guildID, channelID, sessionID string) {
	if channelID == "" {
		b.forget(guildID)
		return
	}
	b.mu.Lock()
	b.channels[guildID] = channelID
	b.sessions[guildID] = sessionID
	b.mu.Unlock()
	go b.forward(ctx, guildID)
}

// ServerUpdate records the voice server assigned to the guild.
func (b *VoiceBridge) ServerUpdate(ctx context.Context, guildID, token, endpoint string) {
	b.mu.Lock()
	b.servers[guildID] = voiceServer{token: token, endpoint: endpoint}
	b.mu.Unlock()
	go b.forward(ctx, guildID)
}

func (b *VoiceBridge) forward(ctx context.Context, guildID string) {
	b.mu.Lock()
	srv := b.servers[guildID]
	vs := audionode.VoiceState{Token: srv.token, Endpoint: srv.endpoint, SessionID: b.sessions[guildID]}
	if !vs.Complete() {
		b.mu.Unlock()
		return
	}
	waiters := b.waiters[guildID]
	delete(b.waiters, guildID)
	b.mu.Unlock()

	err := b.node.UpdateVoice(ctx, guildID, vs)
	if err != nil {
		slog.Warn("forwarding voice state to node failed", "guildID", guildID, "err", err)
	}
	for _, w := range waiters {
		w <- err
	}
}
