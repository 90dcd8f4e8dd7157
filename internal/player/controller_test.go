package player

import (
	"context"
	"errors"
	"slices"
	"strings"
	"testing"
)

// playingPlayer builds a player holding a current track without running its loop.
func playingPlayer(t *testing.T, h *harness) (*Player, *Track) {
	t.Helper()
	h.mgr.mu.Lock()
	deps := h.mgr.deps
	h.mgr.mu.Unlock()
	p := newPlayer("g1", "vc1", Settings{}, deps, nil)
	tr := testTrack("a")
	p.begin(tr)
	t.Cleanup(func() { _ = p.Destroy(context.Background()) })
	return p, tr
}

func TestControllerEditsFreshMessage(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	ctx := context.Background()

	if err := p.Controller().Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if err := p.Controller().Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	sends, edits, _ := h.surface.counts()
	if sends != 1 || edits != 1 {
		t.Errorf("sends=%d edits=%d, want 1 and 1", sends, edits)
	}
	if ch, id := p.Controller().Message(); ch != "text1" || id != "m1" {
		t.Errorf("Message = %s/%s", ch, id)
	}
}

func TestControllerResendsWhenMessageGone(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	ctx := context.Background()
	p.Controller().Refresh(ctx)

	h.surface.vanish("m1")
	if err := p.Controller().Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	sends, edits, deletes := h.surface.counts()
	if sends != 2 || edits != 0 || deletes != 1 {
		t.Errorf("sends=%d edits=%d deletes=%d", sends, edits, deletes)
	}
	if _, id := p.Controller().Message(); id != "m2" {
		t.Errorf("message id = %s, want m2", id)
	}
}

func TestControllerEditFailureFallsBackToResend(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	ctx := context.Background()
	p.Controller().Refresh(ctx)

	h.surface.mu.Lock()
	h.surface.editErr = errors.New("edit refused")
	h.surface.mu.Unlock()
	if err := p.Controller().Refresh(ctx); err != nil {
		t.Fatalf("Refresh: %v", err)
	}
	if sends, _, _ := h.surface.counts(); sends != 2 {
		t.Errorf("sends = %d, want 2", sends)
	}
}

func TestControllerDeliveryFailure(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	h.surface.sendErr = errors.New("missing access")
	err := p.Controller().Refresh(context.Background())
	if !errors.Is(err, ErrDelivery) {
		t.Fatalf("Refresh = %v, want ErrDelivery", err)
	}
	if _, id := p.Controller().Message(); id != "" {
		t.Errorf("message id = %q after failed send", id)
	}
}

func TestControllerDestroy(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	ctx := context.Background()
	p.Controller().Refresh(ctx)
	if err := p.Controller().Destroy(ctx); err != nil {
		t.Fatalf("Destroy: %v", err)
	}
	if p.Controller().Feed(Reaction{MessageID: "m1", UserID: "u1", Emoji: "⏭"}) {
		t.Error("destroyed controller accepted a reaction")
	}
	if err := p.Controller().Refresh(ctx); err != nil {
		t.Fatalf("Refresh after destroy: %v", err)
	}
	if sends, _, _ := h.surface.counts(); sends != 1 {
		t.Errorf("sends = %d, destroyed controller resent", sends)
	}
}

func TestReactionDispatch(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	p.Controller().Refresh(context.Background())

	feed := func(user, emoji string) {
		t.Helper()
		if !p.Controller().Feed(Reaction{ChannelID: "text1", MessageID: "m1", UserID: user, Emoji: emoji}) {
			t.Fatalf("Feed(%s, %s) rejected", user, emoji)
		}
	}

	feed("bot", "⏭")
	feed("stranger", "⏭")
	feed("u1", "👍")
	feed("u1", "⏯")
	waitFor(t, "pause", func() bool { return len(h.commands()) == 1 })

	p.setStatus(StatusPaused)
	feed("u2", "⏯️")
	feed("u2", "ℹ")
	feed("u1", "➕")
	waitFor(t, "rest", func() bool { return len(h.commands()) == 4 })

	want := []string{"u1:pause", "u2:resume", "u2:queue", "u1:vol_up"}
	if got := h.commands(); !slices.Equal(got, want) {
		t.Errorf("dispatched = %v, want %v", got, want)
	}

	h.surface.mu.Lock()
	removed := len(h.surface.removed)
	h.surface.mu.Unlock()
	if removed != 4 {
		t.Errorf("removed reactions = %d, want 4", removed)
	}
	if p.Controller().Feed(Reaction{MessageID: "other", UserID: "u1", Emoji: "⏭"}) {
		t.Error("reaction on another message accepted")
	}
}

func TestListenerReplacedOnResend(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	ctx := context.Background()
	p.Controller().Refresh(ctx)
	h.surface.vanish("m1")
	p.Controller().Refresh(ctx)

	if p.Controller().Feed(Reaction{MessageID: "m1", UserID: "u1", Emoji: "⏭"}) {
		t.Error("old message still routed")
	}
	if !p.Controller().Feed(Reaction{MessageID: "m2", UserID: "u1", Emoji: "⏭"}) {
		t.Fatal("new message not routed")
	}
	waitFor(t, "skip", func() bool { return len(h.commands()) == 1 })
	if got := h.commands(); got[0] != "u1:skip" {
		t.Errorf("dispatched = %v", got)
	}
}

func TestGlyphCommand(t *testing.T) {
	tests := []struct {
		emoji string
		want  string
		ok    bool
	}{
		{"⏯", CommandPlayPause, true},
		{"⏯️", CommandPlayPause, true},
		{"⏹", "stop", true},
		{"⏭️", "skip", true},
		{"🔀", "shuffle", true},
		{"🔂", "repeat", true},
		{"🔁", "loop", true},
		{"➖", CommandVolDown, true},
		{"➕", CommandVolUp, true},
		{"ℹ", "queue", true},
		{"🎵", "", false},
	}
	for _, tt := range tests {
		got, ok := GlyphCommand(tt.emoji)
		if got != tt.want || ok != tt.ok {
			t.Errorf("GlyphCommand(%q) = %q, %v", tt.emoji, got, ok)
		}
	}
}

func TestControllerEmbed(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	long := testTrack("an extremely long title that goes well past the forty five character limit")
	p.Queue().Push(testTrack("b"))
	p.Queue().Push(long)
	p.Queue().Push(testTrack("c"))
	p.Queue().Push(testTrack("d"))

	e := BuildControllerEmbed(p.State())
	if e.Color != ControllerColor || e.Title != "Now Playing" {
		t.Errorf("embed = %+v", e)
	}
	var upNext string
	for _, f := range e.Fields {
		if f.Name == "Coming Up" {
			upNext = f.Value
		}
	}
	if upNext == "" {
		t.Fatal("missing Coming Up field")
	}
	if want := "`3.` c"; !strings.Contains(upNext, want) || strings.Contains(upNext, "`4.`") {
		t.Errorf("coming up = %q", upNext)
	}
	if strings.Contains(upNext, "character limit") {
		t.Errorf("title not truncated: %q", upNext)
	}
}

func TestQueueEmbedPaging(t *testing.T) {
	h := newHarness()
	p, _ := playingPlayer(t, h)
	for _, n := range []string{"b", "c", "d"} {
		p.Queue().Push(testTrack(n))
	}
	if _, err := BuildQueueEmbed(p.State(), 1, 2); err != nil {
		t.Fatalf("page 1: %v", err)
	}
	if _, err := BuildQueueEmbed(p.State(), 3, 2); !errors.Is(err, ErrPageRange) {
		t.Errorf("page 3 = %v, want ErrPageRange", err)
	}
}
