package handlers

import (
	"sync"
	"testing"
	"time"
)

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

func TestInboxRunsJobsInOrder(t *testing.T) {
	ib := NewInbox()
	var (
		mu  sync.Mutex
		got []int
	)
	for i := 0; i < 200; i++ {
		i := i
		ib.Post("g1", func() {
			mu.Lock()
			got = append(got, i)
			mu.Unlock()
		})
	}
	waitFor(t, "all jobs", func() bool {
		mu.Lock()
		defer mu.Unlock()
		return len(got) == 200
	})
	for i, v := range got {
		if v != i {
			t.Fatalf("job %d ran at position %d", v, i)
		}
	}
	waitFor(t, "worker exit", func() bool { return ib.Active() == 0 })
}

func TestInboxGuildsAreIndependent(t *testing.T) {
	ib := NewInbox()
	release := make(chan struct{})
	done := make(chan string, 2)

	ib.Post("g1", func() {
		<-release
		done <- "g1"
	})
	ib.Post("g2", func() { done <- "g2" })

	select {
	case g := <-done:
		if g != "g2" {
			t.Fatalf("first finished = %s, want g2", g)
		}
	case <-time.After(2 * time.Second):
		t.Fatal("g2 was blocked by g1")
	}
	if n := ib.Active(); n != 1 {
		t.Errorf("active = %d, want 1", n)
	}
	close(release)
	<-done
	waitFor(t, "workers exit", func() bool { return ib.Active() == 0 })
}

func TestInboxSurvivesPanics(t *testing.T) {
	ib := NewInbox()
	ran := make(chan struct{})
	ib.Post("g1", func() { panic("boom") })
	ib.Post("g1", func() { close(ran) })
	select {
	case <-ran:
	case <-time.After(2 * time.Second):
		t.Fatal("job after panic did not run")
	}
}
