// Package attendance holds the background half of the checkpoint: the
// persistence worker that records attendance in the remote store and the
// cache through which its results reach the display.
package attendance

import (
	"image"
	"sync"

	"github.com/kozaktomas/face-attendance/internal/database"
)

// Entry is a cached worker result for one identity.
type Entry struct {
	ID     string
	Record database.StudentRecord
	Image  image.Image // nil when no reference image was found

	// Epoch of the display session that requested the fetch.
	Epoch uint64

	// Recorded is false when the fetch fell inside the cooldown window and
	// no attendance was written.
	Recorded bool
}

// Cache maps identity keys to the latest worker result. It is written by the
// persistence worker and read by the frame loop.
type Cache struct {
	mu      sync.RWMutex
	entries map[string]Entry
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{entries: make(map[string]Entry)}
}

// Get returns the entry for id.
func (c *Cache) Get(id string) (Entry, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	e, ok := c.entries[id]
	return e, ok
}

// Put stores e under e.ID unless the cache already holds a result from a
// newer session for that key. It reports whether the entry was stored.
func (c *Cache) Put(e Entry) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	if cur, ok := c.entries[e.ID]; ok && cur.Epoch > e.Epoch {
		return false
	}
	c.entries[e.ID] = e
	return true
}

// Image returns the cached reference image for id, if any.
func (c *Cache) Image(id string) image.Image {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.entries[id].Image
}

// Len returns the number of cached identities.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.entries)
}
