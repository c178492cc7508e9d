package client

import (
	"container/list"
	"sync"
	"sync/atomic"

	"github.com/dan-strohschein/cqltrace/statement"
)

// PreparedCache keeps prepared statements by ID with LRU eviction.
type PreparedCache struct {
	mu      sync.Mutex
	entries map[string]*list.Element // ID -> element holding *statement.Prepared
	order   *list.List               // front = most recently used
	maxSize int
	stats   cacheCounters
}

type cacheCounters struct {
	hits      atomic.Int64
	misses    atomic.Int64
	evictions atomic.Int64
}

// CacheStats is a snapshot of PreparedCache counters.
type CacheStats struct {
	Hits      int64
	Misses    int64
	Evictions int64
	Size      int
}

// NewPreparedCache creates a cache holding at most maxSize statements.
// A non-positive maxSize means 100.
func NewPreparedCache(maxSize int) *PreparedCache {
	if maxSize <= 0 {
		maxSize = 100
	}
	return &PreparedCache{
		entries: make(map[string]*list.Element, maxSize),
		order:   list.New(),
		maxSize: maxSize,
	}
}

// Get returns the statement registered under id.
func (c *PreparedCache) Get(id string) (*statement.Prepared, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		c.stats.misses.Add(1)
		return nil, false
	}

	c.stats.hits.Add(1)
	c.order.MoveToFront(elem)
	return elem.Value.(*statement.Prepared), true
}

// Add stores p, replacing any statement with the same ID and evicting the
// least recently used entry when full. It returns the evicted statement.
func (c *PreparedCache) Add(p *statement.Prepared) (evicted *statement.Prepared) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if elem, ok := c.entries[p.ID]; ok {
		elem.Value = p
		c.order.MoveToFront(elem)
		return nil
	}

	if c.order.Len() >= c.maxSize {
		if oldest := c.order.Back(); oldest != nil {
			evicted = c.order.Remove(oldest).(*statement.Prepared)
			delete(c.entries, evicted.ID)
			c.stats.evictions.Add(1)
		}
	}

	c.entries[p.ID] = c.order.PushFront(p)
	return evicted
}

// Remove deletes the statement registered under id.
func (c *PreparedCache) Remove(id string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	elem, ok := c.entries[id]
	if !ok {
		return false
	}
	c.order.Remove(elem)
	delete(c.entries, id)
	return true
}

// Clear removes every statement.
func (c *PreparedCache) Clear() {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.entries = make(map[string]*list.Element, c.maxSize)
	c.order.Init()
}

// Len returns the number of cached statements.
func (c *PreparedCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.order.Len()
}

// Stats returns a snapshot of the cache counters.
func (c *PreparedCache) Stats() CacheStats {
	return CacheStats{
		Hits:      c.stats.hits.Load(),
		Misses:    c.stats.misses.Load(),
		Evictions: c.stats.evictions.Load(),
		Size:      c.Len(),
	}
}
