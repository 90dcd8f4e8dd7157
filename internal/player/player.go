package player

import (
	"context"
	"fmt"
	"log/slog"
	"math"
	"strings"
	"sync"
	"time"

	"github.com/hashicorp/go-multierror"
	"github.com/sonroyaalmerol/lavabot/internal/audionode"
)

const (
	DefaultVolume      = 40
	DefaultIdleTimeout = 300 * time.Second
	DefaultEqualizer   = "flat"

	teardownTimeout = 10 * time.Second
)

// Node is the audio node's player API for one session.
type Node interface {
	Play(ctx context.Context, guildID string, req audionode.PlayRequest) error
	Pause(ctx context.Context, guildID string, paused bool) error
	SetVolume(ctx context.Context, guildID string, volume int) error
	SetEqualizer(ctx context.Context, guildID string, bands []audionode.Band) error
	Seek(ctx context.Context, guildID string, pos time.Duration) error
	Stop(ctx context.Context, guildID string) error
	Destroy(ctx context.Context, guildID string) error
}

// Voice joins and leaves voice channels on the gateway.
type Voice interface {
	Join(ctx context.Context, guildID, channelID string) error
	Leave(ctx context.Context, guildID string) error
	// Members lists the non-bot user ids currently in the channel.
	Members(guildID, channelID string) []string
}

type Status int

const (
	StatusIdle Status = iota
	StatusPlaying
	StatusPaused
	StatusDestroyed
)

func (s Status) String() string {
	switch s {
	case StatusPlaying:
		return "playing"
	case StatusPaused:
		return "paused"
	case StatusDestroyed:
		return "destroyed"
	}
	return "idle"
}

type Settings struct {
	IdleTimeout time.Duration
	Volume      int
}

func (s Settings) normalized() Settings {
	if s.IdleTimeout <= 0 {
		s.IdleTimeout = DefaultIdleTimeout
	}
	if s.Volume < 0 || s.Volume > 100 {
		s.Volume = DefaultVolume
	}
	return s
}

// State is a point-in-time copy of the player used for rendering.
type State struct {
	GuildID        string
	VoiceChannelID string
	Status         Status
	Current        *Track
	Upcoming       []*Track
	QueueLen       int
	Volume         int
	Looping        bool
	Equalizer      string
	Position       time.Duration
}

// trackRun is the lifetime of one playing track.
type trackRun struct {
	track *Track
	ended chan struct{}
	once  sync.Once
}

func (r *trackRun) end() { r.once.Do(func() { close(r.ended) }) }

type Player struct {
	guildID    string
	node       Node
	voice      Voice
	queue      *TrackQueue
	votes      *VoteCoordinator
	controller *Controller
	log        *slog.Logger
	onDestroy  func(*Player)

	ctx         context.Context
	cancel      context.CancelFunc
	destroyOnce sync.Once
	loopDone    chan struct{}

	mu             sync.Mutex
	status         Status
	run            *trackRun
	looping        bool
	volume         int
	eq             string
	bands          []audionode.Band
	voiceChannelID string
	position       time.Duration
	idleTimeout    time.Duration
	// failed is the encoded track of the last exception; its trailing loadFailed end is dropped.
	failed string
}

func newPlayer(guildID, voiceChannelID string, s Settings, deps Deps, onDestroy func(*Player)) *Player {
	s = s.normalized()
	ctx, cancel := context.WithCancel(context.Background())
	p := &Player{
		guildID:        guildID,
		node:           deps.Node,
		voice:          deps.Voice,
		queue:          NewTrackQueue(),
		votes:          NewVoteCoordinator(),
		log:            slog.With("component", "player", "guildID", guildID),
		onDestroy:      onDestroy,
		ctx:            ctx,
		cancel:         cancel,
		loopDone:       make(chan struct{}),
		status:         StatusIdle,
		volume:         s.Volume,
		eq:             DefaultEqualizer,
		voiceChannelID: voiceChannelID,
		idleTimeout:    s.IdleTimeout,
	}
	p.bands, _ = audionode.PresetBands(DefaultEqualizer)
	p.controller = newController(p, deps.Surface, deps.SelfID, deps.Dispatch)
	return p
}

func (p *Player) GuildID() string          { return p.guildID }
func (p *Player) Queue() *TrackQueue       { return p.queue }
func (p *Player) Votes() *VoteCoordinator  { return p.votes }
func (p *Player) Controller() *Controller  { return p.controller }
func (p *Player) Done() <-chan struct{}    { return p.loopDone }
func (p *Player) Context() context.Context { return p.ctx }

func (p *Player) setVoiceChannel(id string) {
	p.mu.Lock()
	p.voiceChannelID = id
	p.mu.Unlock()
}

// Vote casts userID's vote for a against the current listener count.
func (p *Player) Vote(a Action, userID string) Vote {
	return p.votes.Cast(a, userID, len(p.Listeners()))
}

func (p *Player) VoiceChannelID() string {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.voiceChannelID
}

// Listeners returns the non-bot members of the player's voice channel.
func (p *Player) Listeners() []string {
	ch := p.VoiceChannelID()
	if ch == "" {
		return nil
	}
	return p.voice.Members(p.guildID, ch)
}

func (p *Player) Status() Status {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.status
}

func (p *Player) Current() *Track {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.run == nil {
		return nil
	}
	return p.run.track
}

func (p *Player) State() State {
	p.mu.Lock()
	st := State{
		GuildID:        p.guildID,
		VoiceChannelID: p.voiceChannelID,
		Status:         p.status,
		Looping:        p.looping,
		Volume:         p.volume,
		Equalizer:      p.eq,
		Position:       p.position,
	}
	if p.run != nil {
		st.Current = p.run.track
	}
	p.mu.Unlock()
	st.Upcoming = p.queue.Snapshot(0)
	st.QueueLen = len(st.Upcoming)
	return st
}

// Enqueue adds tracks to the tail and refreshes the controller when something is playing.
func (p *Player) Enqueue(tracks ...*Track) error {
	if p.Status() == StatusDestroyed {
		return ErrDestroyed
	}
	for _, t := range tracks {
		p.queue.Push(t)
	}
	if p.Current() != nil {
		p.refresh()
	}
	return nil
}

func (p *Player) start() { go p.loop() }

func (p *Player) loop() {
	defer close(p.loopDone)
	for {
		p.votes.Reset()
		t, ok := p.queue.Pop(p.ctx, p.idleTimeout)
		if !ok {
			if p.ctx.Err() == nil {
				p.log.Info("no track within idle timeout, disconnecting", "timeout", p.idleTimeout)
				ctx, cancel := context.WithTimeout(context.Background(), teardownTimeout)
				if err := p.Destroy(ctx); err != nil {
					p.log.Warn("teardown after idle timeout", "err", err)
				}
				cancel()
			}
			return
		}

		r, req := p.begin(t)
		if r == nil {
			return
		}
		p.log.Info("playing track", "title", t.Title(), "requester", t.RequesterID)
		if err := p.node.Play(p.ctx, p.guildID, req); err != nil {
			p.log.Error("failed to start track", "title", t.Title(), "err", err)
			r.end()
		}
		if err := p.controller.Refresh(p.ctx); err != nil {
			p.log.Warn("controller refresh failed", "err", err)
		}

		select {
		case <-r.ended:
		case <-p.ctx.Done():
			return
		}
		p.finish(r)
	}
}

func (p *Player) begin(t *Track) (*trackRun, audionode.PlayRequest) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusDestroyed {
		return nil, audionode.PlayRequest{}
	}
	r := &trackRun{track: t, ended: make(chan struct{})}
	p.run = r
	p.status = StatusPlaying
	p.votes.Reset()
	p.position = t.Start
	if p.looping {
		p.queue.Push(t)
	}
	return r, t.playRequest(p.volume, p.bands)
}

func (p *Player) finish(r *trackRun) {
	p.mu.Lock()
	if p.run == r && p.status != StatusDestroyed {
		p.run = nil
		p.status = StatusIdle
		p.position = 0
	}
	p.mu.Unlock()
	p.votes.Reset()
}

// endCurrent forces the ended signal for the given encoded track, or the current one if empty.
func (p *Player) endCurrent(encoded string) bool {
	p.mu.Lock()
	r := p.run
	p.mu.Unlock()
	if r == nil || (encoded != "" && r.track.Encoded != encoded) {
		return false
	}
	r.end()
	return true
}

// HandleEvent applies an audio node event addressed to this guild.
func (p *Player) HandleEvent(ev audionode.Event) {
	encoded := ""
	if ev.Track != nil {
		encoded = ev.Track.Encoded
	}
	switch ev.Type {
	case audionode.EventPlayerUpdate:
		p.mu.Lock()
		if p.run != nil {
			p.position = ev.Position
		}
		p.mu.Unlock()
	case audionode.EventTrackStart:
		p.log.Debug("node started track", "title", trackTitle(ev.Track))
	case audionode.EventTrackEnd:
		switch ev.Reason {
		case audionode.EndStopped, audionode.EndReplaced:
			return
		}
		p.mu.Lock()
		echo := ev.Reason == audionode.EndLoadFailed && encoded != "" && p.failed == encoded
		p.failed = ""
		p.mu.Unlock()
		if echo {
			return
		}
		p.endCurrent(encoded)
	case audionode.EventTrackException:
		p.log.Warn("track exception", "title", trackTitle(ev.Track), "err", ev.Exception)
		p.mu.Lock()
		p.failed = encoded
		p.mu.Unlock()
		p.endCurrent(encoded)
	case audionode.EventTrackStuck:
		p.log.Warn("track stuck", "title", trackTitle(ev.Track), "threshold", ev.Threshold)
		p.endCurrent(encoded)
	case audionode.EventWebSocketClosed:
		p.log.Warn("node voice socket closed", "code", ev.Code, "reason", ev.Message, "byRemote", ev.ByRemote)
	}
}

func trackTitle(t *audionode.Track) string {
	if t == nil {
		return ""
	}
	return t.Info.Title
}

func (p *Player) refresh() {
	go func() {
		if err := p.controller.Refresh(p.ctx); err != nil {
			p.log.Warn("controller refresh failed", "err", err)
		}
	}()
}

func (p *Player) playing() (*Track, Status, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.status == StatusDestroyed {
		return nil, p.status, ErrDestroyed
	}
	if p.run == nil {
		return nil, p.status, ErrNothingPlaying
	}
	return p.run.track, p.status, nil
}

// Pause is a no-op when already paused.
func (p *Player) Pause(ctx context.Context) error {
	_, st, err := p.playing()
	if err != nil || st == StatusPaused {
		return err
	}
	if err := p.node.Pause(ctx, p.guildID, true); err != nil {
		return nodeErr(err)
	}
	p.setStatus(StatusPaused)
	p.refresh()
	return nil
}

// Resume is a no-op when already playing.
func (p *Player) Resume(ctx context.Context) error {
	_, st, err := p.playing()
	if err != nil || st == StatusPlaying {
		return err
	}
	if err := p.node.Pause(ctx, p.guildID, false); err != nil {
		return nodeErr(err)
	}
	p.setStatus(StatusPlaying)
	p.refresh()
	return nil
}

func (p *Player) setStatus(s Status) {
	p.mu.Lock()
	if p.status != StatusDestroyed && p.run != nil {
		p.status = s
	}
	p.mu.Unlock()
}

// Skip stops the node track and ends the current run.
func (p *Player) Skip(ctx context.Context) error {
	t, _, err := p.playing()
	if err != nil {
		return err
	}
	if err := p.node.Stop(ctx, p.guildID); err != nil {
		p.log.Warn("node stop failed during skip", "err", err)
	}
	p.endCurrent(t.Encoded)
	return nil
}

// Stop clears the queue and destroys the player.
func (p *Player) Stop(ctx context.Context) error {
	if p.Status() == StatusDestroyed {
		return ErrDestroyed
	}
	p.queue.Clear()
	return p.Destroy(ctx)
}

func (p *Player) Shuffle() error {
	if p.Status() == StatusDestroyed {
		return ErrDestroyed
	}
	p.queue.Shuffle()
	p.refresh()
	return nil
}

// Repeat queues the current track to play again next.
func (p *Player) Repeat() error {
	t, _, err := p.playing()
	if err != nil {
		return err
	}
	p.queue.RequeueFront(t)
	p.refresh()
	return nil
}

// SetLoop toggles looping when on is nil. Enabling while playing queues the current track at the tail.
func (p *Player) SetLoop(on *bool) (bool, error) {
	p.mu.Lock()
	if p.status == StatusDestroyed {
		p.mu.Unlock()
		return false, ErrDestroyed
	}
	want := !p.looping
	if on != nil {
		want = *on
	}
	changed := want != p.looping
	p.looping = want
	var cur *Track
	if p.run != nil {
		cur = p.run.track
	}
	p.mu.Unlock()

	if changed && cur != nil {
		if want {
			p.queue.Push(cur)
		} else {
			p.queue.Remove(cur)
		}
	}
	p.refresh()
	return want, nil
}

func (p *Player) Volume() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.volume
}

func (p *Player) SetVolume(ctx context.Context, v int) error {
	if v < 0 || v > 100 {
		return ErrVolumeRange
	}
	if p.Status() == StatusDestroyed {
		return ErrDestroyed
	}
	if err := p.node.SetVolume(ctx, p.guildID, v); err != nil {
		return nodeErr(err)
	}
	p.mu.Lock()
	p.volume = v
	p.mu.Unlock()
	p.refresh()
	return nil
}

// StepVolume moves the volume to the next multiple of ten. atBound reports the volume
// was already at 0 or 100 so nothing changed.
func (p *Player) StepVolume(ctx context.Context, up bool) (vol int, atBound bool, err error) {
	cur := p.Volume()
	next := SteppedVolume(cur, up)
	if next == cur {
		return cur, true, nil
	}
	if err := p.SetVolume(ctx, next); err != nil {
		return cur, false, err
	}
	return next, false, nil
}

// SteppedVolume returns the volume one step of ten away from v, clamped to [0,100].
func SteppedVolume(v int, up bool) int {
	delta := 10.0
	if !up {
		delta = -10.0
	}
	next := int(math.Ceil((float64(v)+delta)/10) * 10)
	return max(0, min(100, next))
}

func (p *Player) Seek(ctx context.Context, pos time.Duration) error {
	t, _, err := p.playing()
	if err != nil {
		return err
	}
	if !t.Seekable() {
		return ErrNotSeekable
	}
	if pos < 0 || pos > t.Duration() {
		return ErrSeekRange
	}
	if err := p.node.Seek(ctx, p.guildID, pos); err != nil {
		return nodeErr(err)
	}
	p.mu.Lock()
	p.position = pos
	p.mu.Unlock()
	p.refresh()
	return nil
}

func (p *Player) SetEqualizer(ctx context.Context, name string) (string, error) {
	bands, ok := audionode.PresetBands(name)
	if !ok {
		return "", ErrUnknownEqualizer
	}
	if p.Status() == StatusDestroyed {
		return "", ErrDestroyed
	}
	if err := p.node.SetEqualizer(ctx, p.guildID, bands); err != nil {
		return "", nodeErr(err)
	}
	key := strings.ToLower(strings.TrimSpace(name))
	p.mu.Lock()
	p.eq = key
	p.bands = bands
	p.mu.Unlock()
	p.refresh()
	return key, nil
}

func (p *Player) Destroyed() bool { return p.Status() == StatusDestroyed }

// Destroy tears the player down once: controller, loop, node player, voice, registry entry.
func (p *Player) Destroy(ctx context.Context) error {
	var result *multierror.Error
	p.destroyOnce.Do(func() {
		p.mu.Lock()
		p.status = StatusDestroyed
		r := p.run
		p.mu.Unlock()

		if err := p.controller.Destroy(ctx); err != nil {
			result = multierror.Append(result, err)
		}
		p.cancel()
		if r != nil {
			r.end()
		}
		if err := p.node.Destroy(ctx, p.guildID); err != nil {
			result = multierror.Append(result, nodeErr(err))
		}
		if err := p.voice.Leave(ctx, p.guildID); err != nil {
			result = multierror.Append(result, fmt.Errorf("leave voice: %w", err))
		}
		if p.onDestroy != nil {
			p.onDestroy(p)
		}
		p.log.Info("player destroyed")
	})
	return result.ErrorOrNil()
}
