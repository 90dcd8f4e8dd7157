package player

import (
	"context"
	"slices"
	"sync"
	"time"

	"github.com/sonroyaalmerol/lavabot/internal/utils"
)

// TrackQueue is a FIFO of tracks with a blocking Pop. A Track instance is held at most once.
type TrackQueue struct {
	mu     sync.Mutex
	items  []*Track
	signal chan struct{}
}

func NewTrackQueue() *TrackQueue {
	return &TrackQueue{signal: make(chan struct{})}
}

func (q *TrackQueue) removeLocked(t *Track) {
	if i := slices.Index(q.items, t); i >= 0 {
		q.items = slices.Delete(q.items, i, i+1)
	}
}

func (q *TrackQueue) wakeLocked() {
	close(q.signal)
	q.signal = make(chan struct{})
}

// Push appends t, moving it to the tail if it is already queued.
func (q *TrackQueue) Push(t *Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(t)
	q.items = append(q.items, t)
	q.wakeLocked()
}

// RequeueFront puts t at the head, moving it if it is already queued.
func (q *TrackQueue) RequeueFront(t *Track) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.removeLocked(t)
	q.items = slices.Insert(q.items, 0, t)
	q.wakeLocked()
}

// Remove drops t from the queue and reports whether it was present.
func (q *TrackQueue) Remove(t *Track) bool {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	q.removeLocked(t)
	return len(q.items) != n
}

// Pop waits up to timeout for a track. ok is false on timeout or when ctx is done.
func (q *TrackQueue) Pop(ctx context.Context, timeout time.Duration) (*Track, bool) {
	timer := time.NewTimer(timeout)
	defer timer.Stop()
	for {
		q.mu.Lock()
		if len(q.items) > 0 {
			t := q.items[0]
			q.items[0] = nil
			q.items = q.items[1:]
			q.mu.Unlock()
			return t, true
		}
		wait := q.signal
		q.mu.Unlock()

		select {
		case <-wait:
		case <-timer.C:
			return nil, false
		case <-ctx.Done():
			return nil, false
		}
	}
}

func (q *TrackQueue) Shuffle() {
	q.mu.Lock()
	defer q.mu.Unlock()
	utils.ShuffleSlice(q.items)
}

// Snapshot returns up to limit queued tracks in order. limit <= 0 returns all of them.
func (q *TrackQueue) Snapshot(limit int) []*Track {
	q.mu.Lock()
	defer q.mu.Unlock()
	n := len(q.items)
	if limit > 0 && limit < n {
		n = limit
	}
	return slices.Clone(q.items[:n])
}

func (q *TrackQueue) Clear() {
	q.mu.Lock()
	defer q.mu.Unlock()
	clear(q.items)
	q.items = q.items[:0]
}

func (q *TrackQueue) Len() int {
	q.mu.Lock()
	defer q.mu.Unlock()
	return len(q.items)
}

func (q *TrackQueue) IsEmpty() bool { return q.Len() == 0 }
