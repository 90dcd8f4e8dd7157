package player

import (
	"context"
	"errors"
	"fmt"
	"slices"
	"sync"
	"testing"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
)

type fakeNode struct {
	mu        sync.Mutex
	plays     []audionode.PlayRequest
	paused    []bool
	volumes   []int
	stops     int
	destroys  int
	playErr   error
	volumeErr error
}

func (n *fakeNode) Play(_ context.Context, _ string, req audionode.PlayRequest) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.plays = append(n.plays, req)
	return n.playErr
}

func (n *fakeNode) Pause(_ context.Context, _ string, paused bool) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.paused = append(n.paused, paused)
	return nil
}

func (n *fakeNode) SetVolume(_ context.Context, _ string, v int) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	if n.volumeErr != nil {
		return n.volumeErr
	}
	n.volumes = append(n.volumes, v)
	return nil
}

func (n *fakeNode) SetEqualizer(context.Context, string, []audionode.Band) error { return nil }
func (n *fakeNode) Seek(context.Context, string, time.Duration) error           { return nil }

func (n *fakeNode) Stop(context.Context, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.stops++
	return nil
}

func (n *fakeNode) Destroy(context.Context, string) error {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.destroys++
	return nil
}

func (n *fakeNode) playCount() int {
	n.mu.Lock()
	defer n.mu.Unlock()
	return len(n.plays)
}

func (n *fakeNode) lastPlay() audionode.PlayRequest {
	n.mu.Lock()
	defer n.mu.Unlock()
	return n.plays[len(n.plays)-1]
}

type fakeVoice struct {
	mu      sync.Mutex
	members []string
	joins   []string
	leaves  int
}

func (v *fakeVoice) Join(_ context.Context, _, channelID string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.joins = append(v.joins, channelID)
	return nil
}

func (v *fakeVoice) Leave(context.Context, string) error {
	v.mu.Lock()
	defer v.mu.Unlock()
	v.leaves++
	return nil
}

func (v *fakeVoice) Members(string, string) []string {
	v.mu.Lock()
	defer v.mu.Unlock()
	return slices.Clone(v.members)
}

func (v *fakeVoice) setMembers(ids ...string) {
	v.mu.Lock()
	v.members = ids
	v.mu.Unlock()
}

type fakeSurface struct {
	mu        sync.Mutex
	next      int
	live      map[string]bool
	sends     int
	edits     int
	deletes   int
	reactions []string
	removed   []string
	sendErr   error
	editErr   error
}

func newFakeSurface() *fakeSurface { return &fakeSurface{live: map[string]bool{}} }

func (s *fakeSurface) SendEmbed(_ context.Context, _ string, _ *discordgo.MessageEmbed) (string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.sendErr != nil {
		return "", s.sendErr
	}
	s.next++
	s.sends++
	id := fmt.Sprintf("m%d", s.next)
	s.live[id] = true
	return id, nil
}

func (s *fakeSurface) EditEmbed(_ context.Context, _, id string, _ *discordgo.MessageEmbed) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.editErr != nil {
		return s.editErr
	}
	if !s.live[id] {
		return errors.New("unknown message")
	}
	s.edits++
	return nil
}

func (s *fakeSurface) DeleteMessage(_ context.Context, _, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.deletes++
	delete(s.live, id)
	return nil
}

func (s *fakeSurface) RecentMessageIDs(context.Context, string, int) ([]string, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	var ids []string
	for id := range s.live {
		ids = append(ids, id)
	}
	return ids, nil
}

func (s *fakeSurface) AddReaction(_ context.Context, _, _, emoji string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.reactions = append(s.reactions, emoji)
	return nil
}

func (s *fakeSurface) RemoveReaction(_ context.Context, _, _, emoji, userID string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.removed = append(s.removed, userID+":"+emoji)
	return nil
}

// vanish simulates a message deleted by someone else.
func (s *fakeSurface) vanish(id string) {
	s.mu.Lock()
	delete(s.live, id)
	s.mu.Unlock()
}

func (s *fakeSurface) counts() (sends, edits, deletes int) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sends, s.edits, s.deletes
}

type harness struct {
	node    *fakeNode
	voice   *fakeVoice
	surface *fakeSurface
	mgr     *PlayerManager

	mu         sync.Mutex
	dispatched []string
}

func newHarness() *harness {
	h := &harness{node: &fakeNode{}, voice: &fakeVoice{}, surface: newFakeSurface()}
	h.voice.setMembers("u1", "u2")
	h.mgr = NewPlayerManager(Deps{
		Node:    h.node,
		Voice:   h.voice,
		Surface: h.surface,
		SelfID:  func() string { return "bot" },
		Dispatch: func(guildID, channelID, userID, command string) {
			h.mu.Lock()
			h.dispatched = append(h.dispatched, userID+":"+command)
			h.mu.Unlock()
		},
	})
	return h
}

func (h *harness) connect(t *testing.T, idle time.Duration) *Player {
	t.Helper()
	p, err := h.mgr.Connect(context.Background(), "g1", "vc1", Settings{IdleTimeout: idle, Volume: 40})
	if err != nil {
		t.Fatalf("Connect: %v", err)
	}
	t.Cleanup(func() { _ = p.Destroy(context.Background()) })
	return p
}

func (h *harness) commands() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	return slices.Clone(h.dispatched)
}

func testTrack(title string) *Track {
	return NewTrack(audionode.Track{
		Encoded: "enc-" + title,
		Info: audionode.TrackInfo{
			Title:      title,
			Length:     180000,
			IsSeekable: true,
			URI:        "https://example.com/" + title,
		},
	}, "u1", "text1")
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func trackEnd(guildID string, t *Track, reason audionode.EndReason) audionode.Event {
	return audionode.Event{
		Type:    audionode.EventTrackEnd,
		GuildID: guildID,
		Track:   &audionode.Track{Encoded: t.Encoded},
		Reason:  reason,
	}
}
