package player

import (
	"context"
	"testing"
	"time"
)

func TestPopTimesOut(t *testing.T) {
	q := NewTrackQueue()
	start := time.Now()
	tr, ok := q.Pop(context.Background(), 30*time.Millisecond)
	if ok || tr != nil {
		t.Fatalf("Pop on empty queue = %v, %v; want nil, false", tr, ok)
	}
	if time.Since(start) < 30*time.Millisecond {
		t.Error("Pop returned before the timeout")
	}
}

func TestPopReceivesPushBeforeDeadline(t *testing.T) {
	q := NewTrackQueue()
	want := testTrack("a")
	go func() {
		time.Sleep(20 * time.Millisecond)
		q.Push(want)
	}()
	got, ok := q.Pop(context.Background(), 2*time.Second)
	if !ok || got != want {
		t.Fatalf("Pop = %v, %v; want pushed track", got, ok)
	}
}

func TestPopCancelled(t *testing.T) {
	q := NewTrackQueue()
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, ok := q.Pop(ctx, time.Minute); ok {
		t.Fatal("Pop on cancelled context returned a track")
	}
}

func titles(ts []*Track) []string {
	out := make([]string, len(ts))
	for i, t := range ts {
		out[i] = t.Title()
	}
	return out
}

func TestQueueOrdering(t *testing.T) {
	a, b, c := testTrack("a"), testTrack("b"), testTrack("c")
	tests := []struct {
		name string
		ops  func(q *TrackQueue)
		want []string
	}{
		{"fifo", func(q *TrackQueue) { q.Push(a); q.Push(b); q.Push(c) }, []string{"a", "b", "c"}},
		{"push moves existing to tail", func(q *TrackQueue) { q.Push(a); q.Push(b); q.Push(a) }, []string{"b", "a"}},
		{"requeue front", func(q *TrackQueue) { q.Push(a); q.Push(b); q.RequeueFront(c) }, []string{"c", "a", "b"}},
		{"requeue front moves existing", func(q *TrackQueue) { q.Push(a); q.Push(b); q.RequeueFront(b) }, []string{"b", "a"}},
		{"remove", func(q *TrackQueue) { q.Push(a); q.Push(b); q.Remove(a) }, []string{"b"}},
		{"clear", func(q *TrackQueue) { q.Push(a); q.Push(b); q.Clear() }, []string{}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			q := NewTrackQueue()
			tt.ops(q)
			got := titles(q.Snapshot(0))
			if len(got) != len(tt.want) {
				t.Fatalf("queue = %v, want %v", got, tt.want)
			}
			for i := range got {
				if got[i] != tt.want[i] {
					t.Fatalf("queue = %v, want %v", got, tt.want)
				}
			}
			if q.Len() != len(tt.want) || q.IsEmpty() != (len(tt.want) == 0) {
				t.Errorf("Len = %d, IsEmpty = %v", q.Len(), q.IsEmpty())
			}
		})
	}
}

func TestSnapshotLimit(t *testing.T) {
	q := NewTrackQueue()
	for _, n := range []string{"a", "b", "c", "d"} {
		q.Push(testTrack(n))
	}
	if got := q.Snapshot(3); len(got) != 3 || got[0].Title() != "a" {
		t.Errorf("Snapshot(3) = %v", titles(got))
	}
	if q.Len() != 4 {
		t.Errorf("Snapshot removed tracks, Len = %d", q.Len())
	}
}

func TestShuffleKeepsTracks(t *testing.T) {
	q := NewTrackQueue()
	for _, n := range []string{"a", "b", "c", "d", "e"} {
		q.Push(testTrack(n))
	}
	q.Shuffle()
	seen := map[string]bool{}
	for _, tr := range q.Snapshot(0) {
		seen[tr.Title()] = true
	}
	if len(seen) != 5 {
		t.Errorf("shuffle changed contents: %v", seen)
	}
}
