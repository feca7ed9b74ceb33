package cache

import (
	"container/list"
	"sync"
	"time"
)

// MemoryCache is a size bounded LRU of clips.
type MemoryCache struct {
	mu       sync.Mutex
	capacity int64
	size     int64
	entries  map[string]*list.Element
	recency  *list.List // front is most recently used
	stats    Stats
}

type memoryEntry struct {
	key    string
	clip   []byte
	stored time.Time
}

// NewMemoryCache creates a memory tier holding up to capacity bytes.
func NewMemoryCache(capacity int64) *MemoryCache {
	return &MemoryCache{
		capacity: capacity,
		entries:  make(map[string]*list.Element),
		recency:  list.New(),
		stats:    Stats{Tier: TierMemory, Capacity: capacity},
	}
}

// Get returns the clip stored under key and marks it recently used.
func (c *MemoryCache) Get(key string) ([]byte, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.stats.Misses++
		return nil, false
	}
	c.recency.MoveToFront(el)
	c.stats.Hits++
	return el.Value.(*memoryEntry).clip, true
}

// Put stores clip under key, evicting least recently used clips to make
// room.
func (c *MemoryCache) Put(key string, clip []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	n := int64(len(clip))
	if n > c.capacity {
		return ErrTooLarge
	}

	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
	for c.size+n > c.capacity && c.recency.Len() > 0 {
		c.remove(c.recency.Back())
		c.stats.Evictions++
		c.stats.LastEviction = time.Now()
	}

	c.entries[key] = c.recency.PushFront(&memoryEntry{key: key, clip: clip, stored: time.Now()})
	c.size += n
	return nil
}

// Contains reports whether key is stored without touching its recency.
func (c *MemoryCache) Contains(key string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.entries[key]
	return ok
}

// Delete drops key if present.
func (c *MemoryCache) Delete(key string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if el, ok := c.entries[key]; ok {
		c.remove(el)
	}
}

// Clear drops every clip.
func (c *MemoryCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries = make(map[string]*list.Element)
	c.recency.Init()
	c.size = 0
}

// Prune drops clips stored before now-maxAge and returns how many.
func (c *MemoryCache) Prune(maxAge time.Duration) int {
	c.mu.Lock()
	defer c.mu.Unlock()

	cutoff := time.Now().Add(-maxAge)
	pruned := 0
	for el := c.recency.Back(); el != nil; {
		prev := el.Prev()
		if el.Value.(*memoryEntry).stored.Before(cutoff) {
			c.remove(el)
			pruned++
		}
		el = prev
	}
	return pruned
}

// Stats returns a snapshot of the tier.
func (c *MemoryCache) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.stats
	s.Size = c.size
	s.Entries = len(c.entries)
	return s
}

// remove must be called with mu held.
func (c *MemoryCache) remove(el *list.Element) {
	e := c.recency.Remove(el).(*memoryEntry)
	delete(c.entries, e.key)
	c.size -= int64(len(e.clip))
}
