// Package entrycache keeps decompressed archive entries in memory between the
// metadata injection phase and the translation phase of a run.
//
// Eviction is least-frequently-used. Ties go to the entry inserted first so
// eviction order is deterministic. Callers clear the cache between batches
// because a rewrite invalidates every cached entry for that archive path.
package entrycache

import "sync"

type key struct {
	path  string
	entry string
}

type item struct {
	data  []byte
	count uint64
	seq   uint64
}

// Stats reports cache effectiveness counters since the last Clear.
type Stats struct {
	Entries   int    `json:"entries"`
	Capacity  int    `json:"capacity"`
	Hits      uint64 `json:"hits"`
	Misses    uint64 `json:"misses"`
	Evictions uint64 `json:"evictions"`
}

// Cache is a fixed-capacity LFU store keyed by (archive path, entry name).
type Cache struct {
	capacity int

	mu        sync.Mutex
	items     map[key]*item
	seq       uint64
	hits      uint64
	misses    uint64
	evictions uint64
}

// New returns a cache holding at most capacity entries. Capacity below one is raised to one.
func New(capacity int) *Cache {
	if capacity < 1 {
		capacity = 1
	}
	return &Cache{
		capacity: capacity,
		items:    make(map[key]*item, capacity),
	}
}

// Get returns the cached bytes and bumps the entry's access counter.
func (c *Cache) Get(path, entry string) ([]byte, bool) {
	if c == nil {
		return nil, false
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	it, ok := c.items[key{path, entry}]
	if !ok {
		c.misses++
		return nil, false
	}
	it.count++
	c.hits++
	return it.data, true
}

// Put stores data for (path, entry), evicting the least used entry when full.
// Replacing an existing entry keeps its access counter.
func (c *Cache) Put(path, entry string, data []byte) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	k := key{path, entry}
	if it, ok := c.items[k]; ok {
		it.data = data
		return
	}
	if len(c.items) >= c.capacity {
		c.evictLocked()
	}
	c.seq++
	c.items[k] = &item{data: data, count: 1, seq: c.seq}
}

func (c *Cache) evictLocked() {
	var (
		victim key
		best   *item
	)
	for k, it := range c.items {
		if best == nil || it.count < best.count || (it.count == best.count && it.seq < best.seq) {
			victim, best = k, it
		}
	}
	if best != nil {
		delete(c.items, victim)
		c.evictions++
	}
}

// Invalidate drops every entry cached for path.
func (c *Cache) Invalidate(path string) {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for k := range c.items {
		if k.path == path {
			delete(c.items, k)
		}
	}
}

// Clear drops every entry and resets the counters.
func (c *Cache) Clear() {
	if c == nil {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.items = make(map[key]*item, c.capacity)
	c.hits, c.misses, c.evictions = 0, 0, 0
}

// Len returns the number of cached entries.
func (c *Cache) Len() int {
	if c == nil {
		return 0
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.items)
}

// Stats returns a snapshot of the cache counters.
func (c *Cache) Stats() Stats {
	if c == nil {
		return Stats{}
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	return Stats{
		Entries:   len(c.items),
		Capacity:  c.capacity,
		Hits:      c.hits,
		Misses:    c.misses,
		Evictions: c.evictions,
	}
}
