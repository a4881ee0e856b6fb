// Package ratelimit implements fixed-window request counting per key.
//
// Each key owns a bucket {count, windowStart}. The first request of a window
// opens it; requests are admitted while count <= limit; once the window has
// elapsed the next request opens a fresh one. Buckets live in a go-cache store
// whose janitor purges entries that have been idle past the sweep threshold,
// so the table stays bounded by the set of recently active keys.
package ratelimit

import (
	"math"
	"sync"
	"time"

	"github.com/patrickmn/go-cache"
)

const (
	RestMessage     = "Too many requests. Please wait a moment before trying again."
	RealtimeMessage = "Too many chat requests. Please wait a minute before sending another message."
)

type bucket struct {
	count       int
	windowStart time.Time
}

type Governor struct {
	mu     sync.Mutex
	store  *cache.Cache
	limit  int
	window time.Duration
	now    func() time.Time
}

type Option func(*Governor)

// WithClock replaces time.Now for window arithmetic. Idle expiry still runs on
// the wall clock.
func WithClock(now func() time.Time) Option {
	return func(g *Governor) {
		g.now = now
	}
}

// New builds a governor admitting limit requests per window. Buckets idle for
// longer than sweep (or the window, whichever is larger) are dropped by a
// background janitor running every sweep.
func New(limit int, window, sweep time.Duration, opts ...Option) *Governor {
	idle := sweep
	if window > idle {
		idle = window
	}
	g := &Governor{
		store:  cache.New(idle, sweep),
		limit:  limit,
		window: window,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(g)
	}
	return g
}

func (g *Governor) load(key string) (bucket, bool) {
	v, ok := g.store.Get(key)
	if !ok {
		return bucket{}, false
	}
	return v.(bucket), true
}

// Allow records one request for key and reports whether it is within the limit.
func (g *Governor) Allow(key string) bool {
	now := g.now()

	g.mu.Lock()
	defer g.mu.Unlock()

	b, ok := g.load(key)
	if !ok || now.Sub(b.windowStart) > g.window {
		b = bucket{windowStart: now}
	}
	if b.count >= g.limit {
		return false
	}
	b.count++
	g.store.SetDefault(key, b)
	return true
}

// RetryAfterSeconds is the time left in the key's current window, rounded up.
func (g *Governor) RetryAfterSeconds(key string) int {
	g.mu.Lock()
	b, ok := g.load(key)
	g.mu.Unlock()
	if !ok {
		return 0
	}

	remaining := g.window - g.now().Sub(b.windowStart)
	if remaining <= 0 {
		return 0
	}
	return int(math.Ceil(remaining.Seconds()))
}

func (g *Governor) Reset(key string) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.store.Delete(key)
}

// Len is the number of tracked keys, including expired ones the janitor has
// not reached yet.
func (g *Governor) Len() int {
	return g.store.ItemCount()
}

func (g *Governor) Limit() int {
	return g.limit
}
