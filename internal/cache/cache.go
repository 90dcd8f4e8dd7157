package cache

import (
	"sync"
	"time"
)

type entry[T any] struct {
	val T
	exp time.Time
}

// TTL is an in-memory map whose entries expire ttl after they were set.
type TTL[T any] struct {
	mu  sync.Mutex
	ttl time.Duration
	max int
	m   map[string]entry[T]
	now func() time.Time
}

// New returns a cache. max bounds the entry count; zero means unbounded.
func New[T any](ttl time.Duration, max int) *TTL[T] {
	return &TTL[T]{ttl: ttl, max: max, m: make(map[string]entry[T]), now: time.Now}
}

func (c *TTL[T]) Get(key string) (T, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	var zero T
	ent, ok := c.m[key]
	if !ok {
		return zero, false
	}
	if c.now().After(ent.exp) {
		delete(c.m, key)
		return zero, false
	}
	return ent.val, true
}

func (c *TTL[T]) Set(key string, val T) {
	c.mu.Lock()
	defer c.mu.Unlock()
	now := c.now()
	if c.max > 0 && len(c.m) >= c.max {
		if _, exists := c.m[key]; !exists {
			c.purgeLocked(now)
			if len(c.m) >= c.max {
				c.evictOldestLocked()
			}
		}
	}
	c.m[key] = entry[T]{val: val, exp: now.Add(c.ttl)}
}

func (c *TTL[T]) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.m)
}

func (c *TTL[T]) purgeLocked(now time.Time) {
	for k, e := range c.m {
		if now.After(e.exp) {
			delete(c.m, k)
		}
	}
}

func (c *TTL[T]) evictOldestLocked() {
	var oldest string
	var at time.Time
	for k, e := range c.m {
		if oldest == "" || e.exp.Before(at) {
			oldest, at = k, e.exp
		}
	}
	delete(c.m, oldest)
}
