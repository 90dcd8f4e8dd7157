package sponsorblock

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/sonroyaalmerol/lavabot/internal/cache"
)

const (
	category = "music_offtopic"
	// edge is how close to either end of the track a segment must sit to count as intro or outro.
	edge = 2 * time.Second
)

// Trim is the playable window of a track after off-topic intro and outro are cut.
type Trim struct {
	Start time.Duration
	End   time.Duration // zero plays to the natural end
}

// Applier looks up off-topic segments and turns them into start/end trims.
type Applier struct {
	client     *Client
	cache      *cache.TTL[[]Segment]
	disableFor time.Duration

	mu            sync.Mutex
	disabledUntil time.Time
}

func NewApplier(client *Client, timeoutMinutes int) *Applier {
	return &Applier{
		client:     client,
		cache:      cache.New[[]Segment](time.Hour, 4096),
		disableFor: time.Duration(timeoutMinutes) * time.Minute,
	}
}

func (a *Applier) disabled() bool {
	a.mu.Lock()
	defer a.mu.Unlock()
	return time.Now().Before(a.disabledUntil)
}

// Trim returns the window to play for a YouTube video of the given length. ok is false
// when nothing should be cut.
func (a *Applier) Trim(ctx context.Context, videoID string, length time.Duration) (Trim, bool) {
	if videoID == "" || length <= 0 || a.disabled() {
		return Trim{}, false
	}

	segs, ok := a.cache.Get(videoID)
	if !ok {
		var err error
		segs, err = a.client.GetSegments(ctx, videoID, []string{category})
		if err != nil {
			if errors.Is(err, ErrUnavailable) {
				a.mu.Lock()
				a.disabledUntil = time.Now().Add(a.disableFor)
				a.mu.Unlock()
				slog.Warn("sponsorblock unavailable, pausing lookups", "for", a.disableFor)
			} else {
				slog.Debug("sponsorblock lookup failed", "videoID", videoID, "err", err)
			}
			return Trim{}, false
		}
		a.cache.Set(videoID, segs)
	}
	if len(segs) == 0 {
		return Trim{}, false
	}
	segs = MergeSegments(segs)

	var tr Trim
	changed := false
	if last := segs[len(segs)-1]; last.End() >= length-edge && last.Start() > 0 && last.Start() < length {
		tr.End = last.Start()
		changed = true
	}
	if first := segs[0]; first.Start() <= edge && first.End() > 0 {
		end := length
		if tr.End > 0 {
			end = tr.End
		}
		if first.End() < end {
			tr.Start = first.End()
			changed = true
		}
	}
	return tr, changed
}
