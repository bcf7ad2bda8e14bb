// Package ratelimit provides a single-process token bucket per user for the
// gateway API.
package ratelimit

import (
	"sync"
	"time"
)

type Config struct {
	RPS   float64
	Burst int

	// Operational bounds for the in-memory map (single-process only).
	MaxEntries int
	EntryTTL   time.Duration
}

type Limiter struct {
	cfg Config

	mu sync.Mutex
	m  map[string]*bucket
}

type bucket struct {
	tokens   float64
	last     time.Time
	lastSeen time.Time
}

func New(cfg Config) *Limiter {
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	if cfg.EntryTTL <= 0 {
		cfg.EntryTTL = 30 * time.Minute
	}
	return &Limiter{cfg: cfg, m: make(map[string]*bucket)}
}

// Allow reports whether one request for key may proceed now. A zero RPS
// disables limiting.
func (l *Limiter) Allow(key string, now time.Time) bool {
	if l.cfg.RPS <= 0 {
		return true
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	b, ok := l.m[key]
	if !ok {
		l.evictLocked(now)
		b = &bucket{tokens: float64(l.cfg.Burst), last: now}
		l.m[key] = b
	}
	b.lastSeen = now

	elapsed := now.Sub(b.last).Seconds()
	if elapsed > 0 {
		b.tokens += elapsed * l.cfg.RPS
		if cap := float64(l.cfg.Burst); b.tokens > cap {
			b.tokens = cap
		}
		b.last = now
	}

	if b.tokens < 1 {
		return false
	}
	b.tokens--
	return true
}

func (l *Limiter) evictLocked(now time.Time) {
	for key, b := range l.m {
		if now.Sub(b.lastSeen) > l.cfg.EntryTTL {
			delete(l.m, key)
		}
	}
	if len(l.m) < l.cfg.MaxEntries {
		return
	}
	// Still full of live entries; drop the stalest one.
	var oldestKey string
	var oldest time.Time
	for key, b := range l.m {
		if oldestKey == "" || b.lastSeen.Before(oldest) {
			oldestKey = key
			oldest = b.lastSeen
		}
	}
	if oldestKey != "" {
		delete(l.m, oldestKey)
	}
}
