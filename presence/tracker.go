package presence

import (
	"sync"
	"time"
)

type key struct {
	userId    string
	sessionId string
}

// Tracker keeps the last heartbeat per (user, session). Staleness is handled
// by the threshold comparison at read time, not by eviction; Sweep only exists
// to bound memory over a long process lifetime.
type Tracker struct {
	mu   sync.RWMutex
	seen map[key]time.Time
}

func NewTracker() *Tracker {
	return &Tracker{seen: make(map[key]time.Time)}
}

func (t *Tracker) Heartbeat(userId, sessionId string, now time.Time) {
	t.mu.Lock()
	t.seen[key{userId, sessionId}] = now
	t.mu.Unlock()
}

func (t *Tracker) IsOnline(userId, sessionId string, now time.Time, threshold time.Duration) bool {
	t.mu.RLock()
	last, ok := t.seen[key{userId, sessionId}]
	t.mu.RUnlock()
	if !ok {
		return false
	}
	return now.Sub(last) < threshold
}

// Sweep drops records older than maxAge and reports how many were removed.
func (t *Tracker) Sweep(now time.Time, maxAge time.Duration) int {
	t.mu.Lock()
	defer t.mu.Unlock()
	removed := 0
	for k, last := range t.seen {
		if now.Sub(last) >= maxAge {
			delete(t.seen, k)
			removed++
		}
	}
	return removed
}

func (t *Tracker) Len() int {
	t.mu.RLock()
	defer t.mu.RUnlock()
	return len(t.seen)
}
