package ratelimit

import (
	"sync"
	"time"
)

// Limiter admits at most one request per client per interval, keyed by the
// caller's network address. The recorded timestamp is refreshed even when a
// request is rejected: a client retrying faster than the interval only
// becomes eligible after pausing for a full interval from its last attempt,
// not its last admitted request.
type Limiter struct {
	mu         sync.Mutex
	interval   time.Duration
	maxClients int
	seen       map[string]time.Time
}

func New(interval time.Duration, maxClients int) *Limiter {
	if interval <= 0 {
		interval = time.Second
	}
	if maxClients <= 0 {
		maxClients = 10000
	}
	return &Limiter{
		interval:   interval,
		maxClients: maxClients,
		seen:       make(map[string]time.Time),
	}
}

func (l *Limiter) Interval() time.Duration {
	return l.interval
}

// Allow reports whether a request from id at time now is admitted. When
// rejected, wait is the remaining time until the client becomes eligible
// again, measured before this attempt refreshed the timestamp.
func (l *Limiter) Allow(id string, now time.Time) (admitted bool, wait time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if len(l.seen) >= l.maxClients {
		l.evictLocked(now)
	}

	prior, tracked := l.seen[id]
	l.seen[id] = now
	if !tracked {
		return true, 0
	}
	elapsed := now.Sub(prior)
	if elapsed >= l.interval {
		return true, 0
	}
	return false, l.interval - elapsed
}

// evictLocked drops entries old enough that they would be admitted anyway,
// so eviction never changes an admit/reject decision.
func (l *Limiter) evictLocked(now time.Time) {
	for id, ts := range l.seen {
		if now.Sub(ts) >= l.interval {
			delete(l.seen, id)
		}
	}
}

// Tracked reports how many client identities are currently recorded.
func (l *Limiter) Tracked() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.seen)
}
