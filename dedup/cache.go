// Package dedup implements a shard-locked, time-windowed admit-once cache
// that suppresses repeated reports of the same spot across all connected
// cluster feeds.
package dedup

import (
	"log"
	"sync"
	"time"

	"spotfeed/spot"
)

// DefaultWindow is the span within which repeated reports of the same spot
// are suppressed. The purge interval keeps the cache footprint bounded, so
// it is a correctness parameter rather than a tuning knob and must not
// exceed the window.
const (
	DefaultWindow        = 60 * time.Second
	defaultPurgeInterval = 60 * time.Second
)

// shardCount must remain a power of two so shard selection is a bit mask.
const shardCount = 64

// Cache decides accept-once semantics for parsed spots. TryAdmit may be
// called concurrently from any number of connection handlers.
type Cache struct {
	window     time.Duration
	purgeEvery time.Duration
	shards     []cacheShard
	shutdown   chan struct{}
	stopOnce   sync.Once
	now        func() time.Time // injectable for tests
}

// cacheShard keeps a portion of the cache guarded by its own lock. Sharding
// the map keeps the single-lock hold times on the hot path short.
type cacheShard struct {
	mu        sync.Mutex
	seen      map[uint32]time.Time // key -> first-seen instant
	admitted  uint64
	duplicate uint64
}

// NewCache creates a dedup cache with the given suppression window. A zero
// or negative window falls back to DefaultWindow.
func NewCache(window time.Duration) *Cache {
	if window <= 0 {
		window = DefaultWindow
	}
	purge := defaultPurgeInterval
	if purge > window {
		purge = window
	}
	shards := make([]cacheShard, shardCount)
	for i := range shards {
		shards[i].seen = make(map[uint32]time.Time)
	}
	return &Cache{
		window:     window,
		purgeEvery: purge,
		shards:     shards,
		shutdown:   make(chan struct{}),
		now:        time.Now,
	}
}

// Start launches the background purge loop. Safe to call once during startup.
func (c *Cache) Start() {
	go c.purgeLoop()
}

// Stop signals the purge loop to exit. Idempotent.
func (c *Cache) Stop() {
	c.stopOnce.Do(func() {
		close(c.shutdown)
	})
}

// TryAdmit atomically tests-and-inserts the spot's dedup key. It returns
// true when the spot is novel within the window and false when a matching
// report was already admitted. The check and the insert happen under one
// shard lock so concurrent producers cannot both admit the same spot.
func (c *Cache) TryAdmit(s *spot.ParsedSpot) bool {
	hash := s.DedupHash()
	now := c.now().UTC()
	shard := &c.shards[hash&(shardCount-1)]

	shard.mu.Lock()
	defer shard.mu.Unlock()

	if firstSeen, ok := shard.seen[hash]; ok && now.Sub(firstSeen) < c.window {
		shard.duplicate++
		return false
	}
	shard.seen[hash] = now
	shard.admitted++
	return true
}

// Stats returns cumulative admit/duplicate counters and the live entry count.
func (c *Cache) Stats() (admitted, duplicates uint64, size int) {
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mu.Lock()
		admitted += shard.admitted
		duplicates += shard.duplicate
		size += len(shard.seen)
		shard.mu.Unlock()
	}
	return admitted, duplicates, size
}

// purgeLoop periodically removes expired entries so the footprint stays
// bounded without per-entry timers.
func (c *Cache) purgeLoop() {
	ticker := time.NewTicker(c.purgeEvery)
	defer ticker.Stop()

	for {
		select {
		case <-c.shutdown:
			log.Println("Dedup: purge loop stopped")
			return
		case <-ticker.C:
			c.purge()
		}
	}
}

// purge removes all entries older than the window. Each shard lock is held
// only for its own scan so TryAdmit is never blocked for long.
func (c *Cache) purge() {
	now := c.now().UTC()
	for i := range c.shards {
		shard := &c.shards[i]
		shard.mu.Lock()
		for hash, firstSeen := range shard.seen {
			if now.Sub(firstSeen) > c.window {
				delete(shard.seen, hash)
			}
		}
		shard.mu.Unlock()
	}
}
