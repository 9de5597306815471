// Package cache keeps recent harvest responses in memory so repeated API
// calls for the same keyword can skip a full scroll-and-extract run.
package cache

import (
	"crypto/sha256"
	"encoding/hex"
	"strconv"
	"sync"
	"time"

	"github.com/use-agent/jobharvest/models"
)

// maxLifetime bounds how long any entry is kept regardless of max_age.
const maxLifetime = time.Hour

type entry struct {
	response  *models.HarvestResponse
	createdAt time.Time
}

// Cache is an in-memory response cache. It is safe for concurrent use.
type Cache struct {
	mu         sync.RWMutex
	store      map[string]*entry
	maxEntries int
	stop       chan struct{}
	once       sync.Once
}

// New creates a Cache holding at most maxEntries responses. A background
// goroutine evicts entries older than an hour every 5 minutes until Close.
func New(maxEntries int) *Cache {
	c := &Cache{
		store:      make(map[string]*entry),
		maxEntries: maxEntries,
		stop:       make(chan struct{}),
	}
	go c.cleanupLoop(5 * time.Minute)
	return c
}

// Key identifies a harvest by everything that changes its result.
func Key(keyword, country, containerXPath string, maxScrolls int, ai bool) string {
	h := sha256.New()
	for _, part := range []string{keyword, country, containerXPath, strconv.Itoa(maxScrolls), strconv.FormatBool(ai)} {
		h.Write([]byte(part))
		h.Write([]byte("|"))
	}
	return hex.EncodeToString(h.Sum(nil))
}

// Get returns a response younger than maxAgeMs milliseconds. maxAgeMs <= 0
// disables the lookup.
func (c *Cache) Get(key string, maxAgeMs int) (*models.HarvestResponse, bool) {
	if maxAgeMs <= 0 {
		return nil, false
	}

	c.mu.RLock()
	e, ok := c.store[key]
	c.mu.RUnlock()
	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) > time.Duration(maxAgeMs)*time.Millisecond {
		return nil, false
	}
	return e.response, true
}

// Set stores resp, evicting the oldest entry when at capacity. A cache with
// no capacity stores nothing.
func (c *Cache) Set(key string, resp *models.HarvestResponse) {
	if c.maxEntries <= 0 {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, exists := c.store[key]; !exists && len(c.store) >= c.maxEntries {
		var oldest string
		var oldestAt time.Time
		for k, e := range c.store {
			if oldest == "" || e.createdAt.Before(oldestAt) {
				oldest, oldestAt = k, e.createdAt
			}
		}
		delete(c.store, oldest)
	}
	c.store[key] = &entry{response: resp, createdAt: time.Now()}
}

// Len returns the number of stored entries.
func (c *Cache) Len() int {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return len(c.store)
}

// Close stops the cleanup goroutine.
func (c *Cache) Close() {
	c.once.Do(func() { close(c.stop) })
}

func (c *Cache) cleanupLoop(every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-c.stop:
			return
		case <-ticker.C:
			c.evictBefore(time.Now().Add(-maxLifetime))
		}
	}
}

func (c *Cache) evictBefore(cutoff time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()
	for k, e := range c.store {
		if e.createdAt.Before(cutoff) {
			delete(c.store, k)
		}
	}
}
