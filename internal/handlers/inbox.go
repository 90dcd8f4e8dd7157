package handlers

import (
	"log/slog"
	"runtime/debug"
	"sync"
)

// Inbox runs jobs one at a time per guild, in the order they were posted.
// A guild's worker goroutine exits as soon as its queue drains.
type Inbox struct {
	mu     sync.Mutex
	queues map[string]*guildQueue
}

type guildQueue struct {
	jobs []func()
}

func NewInbox() *Inbox {
	return &Inbox{queues: make(map[string]*guildQueue)}
}

// Post never blocks the caller.
func (ib *Inbox) Post(guildID string, job func()) {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	if q, ok := ib.queues[guildID]; ok {
		q.jobs = append(q.jobs, job)
		return
	}
	q := &guildQueue{jobs: []func(){job}}
	ib.queues[guildID] = q
	go ib.drain(guildID, q)
}

// Active returns the number of guilds with a running worker.
func (ib *Inbox) Active() int {
	ib.mu.Lock()
	defer ib.mu.Unlock()
	return len(ib.queues)
}

func (ib *Inbox) drain(guildID string, q *guildQueue) {
	for {
		ib.mu.Lock()
		if len(q.jobs) == 0 {
			delete(ib.queues, guildID)
			ib.mu.Unlock()
			return
		}
		job := q.jobs[0]
		q.jobs[0] = nil
		q.jobs = q.jobs[1:]
		ib.mu.Unlock()

		run(guildID, job)
	}
}

func run(guildID string, job func()) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("guild job panicked", "guildID", guildID, "panic", r, "stack", string(debug.Stack()))
		}
	}()
	job()
}
