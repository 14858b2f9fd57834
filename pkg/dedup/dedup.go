// Package dedup drops QoS 1 redeliveries. Entries are keyed by the
// reading's fingerprint, so a re-ingested identical reading is recognized
// no matter which broker delivery carried it.
package dedup

import (
	"sync"
	"time"
)

type Deduper struct {
	mu   sync.Mutex
	ttl  time.Duration
	max  int
	seen map[string]time.Time
}

func New(ttl time.Duration, max int) *Deduper {
	if ttl <= 0 {
		ttl = 10 * time.Minute
	}
	if max <= 0 {
		max = 10000
	}
	return &Deduper{ttl: ttl, max: max, seen: make(map[string]time.Time, max)}
}

// FirstSeen reports whether this fingerprint is new within the TTL window
// and records it. An empty fingerprint is always treated as new.
func (d *Deduper) FirstSeen(fingerprint string) bool {
	if fingerprint == "" {
		return true
	}
	now := time.Now()

	d.mu.Lock()
	defer d.mu.Unlock()

	if exp, ok := d.seen[fingerprint]; ok && now.Before(exp) {
		return false
	}
	d.seen[fingerprint] = now.Add(d.ttl)
	if len(d.seen) > d.max {
		d.evict(now)
	}
	return true
}

// evict removes expired entries; called with the lock held. If everything
// is still live the map is allowed to exceed max until entries age out.
func (d *Deduper) evict(now time.Time) {
	for k, exp := range d.seen {
		if now.After(exp) {
			delete(d.seen, k)
		}
		if len(d.seen) <= d.max {
			return
		}
	}
}
