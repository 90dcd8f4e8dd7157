package handlers

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
)

type fakeUpdater struct {
	mu    sync.Mutex
	calls map[string]audionode.VoiceState
	err   error
}

func (f *fakeUpdater) UpdateVoice(_ context.Context, guildID string, v audionode.VoiceState) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = make(map[string]audionode.VoiceState)
	}
	f.calls[guildID] = v
	return f.err
}

func (f *fakeUpdater) call(guildID string) (audionode.VoiceState, bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	v, ok := f.calls[guildID]
	return v, ok
}

func noMembers(string, string) []string { return nil }

func TestVoiceBridgeJoinForwardsCredentials(t *testing.T) {
	node := &fakeUpdater{}
	var b *VoiceBridge
	var sent []string
	b = NewVoiceBridge(node, func(guildID, channelID string) error {
		sent = append(sent, channelID)
		if channelID == "" {
			return nil
		}
		// the gateway answers with both events, in either order
		go func() {
			b.ServerUpdate(context.Background(), guildID, "tok", "voice.example:443")
			b.StateUpdate(context.Background(), guildID, channelID, "sess")
		}()
		return nil
	}, noMembers)

	if err := b.Join(context.Background(), "g1", "vc1"); err != nil {
		t.Fatalf("join: %v", err)
	}
	want := audionode.VoiceState{Token: "tok", Endpoint: "voice.example:443", SessionID: "sess"}
	if got, ok := node.call("g1"); !ok || got != want {
		t.Fatalf("node voice = %+v, want %+v", got, want)
	}
	if ch := b.ChannelOf("g1"); ch != "vc1" {
		t.Errorf("channel = %q, want vc1", ch)
	}

	if err := b.Leave(context.Background(), "g1"); err != nil {
		t.Fatalf("leave: %v", err)
	}
	if ch := b.ChannelOf("g1"); ch != "" {
		t.Errorf("channel after leave = %q", ch)
	}
	if len(sent) != 2 || sent[1] != "" {
		t.Errorf("gateway updates = %q, want [vc1 \"\"]", sent)
	}
}

func TestVoiceBridgeJoinReportsNodeError(t *testing.T) {
	node := &fakeUpdater{err: errors.New("node down")}
	var b *VoiceBridge
	b = NewVoiceBridge(node, func(guildID, channelID string) error {
		go func() {
			b.StateUpdate(context.Background(), guildID, channelID, "sess")
			b.ServerUpdate(context.Background(), guildID, "tok", "ep")
		}()
		return nil
	}, noMembers)

	if err := b.Join(context.Background(), "g1", "vc1"); err == nil || err.Error() != "node down" {
		t.Fatalf("join err = %v, want node down", err)
	}
}

func TestVoiceBridgeJoinTimeout(t *testing.T) {
	b := NewVoiceBridge(&fakeUpdater{}, func(string, string) error { return nil }, noMembers)
	b.timeout = 20 * time.Millisecond

	if err := b.Join(context.Background(), "g1", "vc1"); !errors.Is(err, ErrVoiceTimeout) {
		t.Fatalf("join err = %v, want ErrVoiceTimeout", err)
	}
	b.mu.Lock()
	left := len(b.waiters)
	b.mu.Unlock()
	if left != 0 {
		t.Errorf("waiters left = %d", left)
	}
}

func TestVoiceBridgeSendError(t *testing.T) {
	boom := errors.New("gateway closed")
	b := NewVoiceBridge(&fakeUpdater{}, func(string, string) error { return boom }, noMembers)
	if err := b.Join(context.Background(), "g1", "vc1"); !errors.Is(err, boom) {
		t.Fatalf("join err = %v", err)
	}
}

func TestVoiceBridgeDisconnectForgetsSession(t *testing.T) {
	node := &fakeUpdater{}
	b := NewVoiceBridge(node, func(string, string) error { return nil }, func(_, ch string) []string {
		if ch == "vc1" {
			return []string{"u1"}
		}
		return nil
	})
	b.StateUpdate(context.Background(), "g1", "vc1", "sess")
	if got := b.Members("g1", b.ChannelOf("g1")); len(got) != 1 {
		t.Errorf("members = %v", got)
	}
	b.StateUpdate(context.Background(), "g1", "", "")
	if ch := b.ChannelOf("g1"); ch != "" {
		t.Errorf("channel = %q after disconnect", ch)
	}
	// a late server update must not forward a stale session
	b.ServerUpdate(context.Background(), "g1", "tok", "ep")
	time.Sleep(20 * time.Millisecond)
	if _, ok := node.call("g1"); ok {
		t.Error("forwarded voice state without a session")
	}
}

func TestLeftChannel(t *testing.T) {
	update := func(after string, before *string) *discordgo.VoiceStateUpdate {
		vs := &discordgo.VoiceStateUpdate{VoiceState: &discordgo.VoiceState{UserID: "u1", ChannelID: after}}
		if before != nil {
			vs.BeforeUpdate = &discordgo.VoiceState{UserID: "u1", ChannelID: *before}
		}
		return vs
	}
	vc1, vc2, none := "vc1", "vc2", ""
	tests := []struct {
		name string
		bot  string
		vs   *discordgo.VoiceStateUpdate
		want bool
	}{
		{"left bot channel", "vc1", update("", &vc1), true},
		{"moved away", "vc1", update("vc2", &vc1), true},
		{"unknown previous state", "vc1", update("", nil), true},
		{"mute inside bot channel", "vc1", update("vc1", &vc1), false},
		{"joined bot channel", "vc1", update("vc1", &none), false},
		{"elsewhere", "vc1", update("", &vc2), false},
		{"bot not connected", "", update("", &vc1), false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := leftChannel(tt.bot, tt.vs); got != tt.want {
				t.Errorf("leftChannel = %v, want %v", got, tt.want)
			}
		})
	}
}
