// Package geocache memoises reverse-geocoding answers so repeated clicks on the
// same spot do not hit the provider again. A cache belongs to one session and
// is dropped with it; answers are never shared between sessions.
package geocache

import (
	"context"
	"fmt"
	"sync"

	"github.com/couchcryptid/parade-planner/internal/domain"
	"github.com/couchcryptid/parade-planner/internal/observability"
)

// CachedGeocoder wraps a Geocoder with an in-memory LRU cache.
type CachedGeocoder struct {
	inner   domain.Geocoder
	cache   *lruCache
	metrics *observability.Metrics
}

// New creates a cache decorator around a geocoder.
func New(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) *CachedGeocoder {
	return &CachedGeocoder{
		inner:   inner,
		cache:   newLRUCache(maxEntries),
		metrics: metrics,
	}
}

// Wrap returns inner behind a cache of maxEntries, or inner itself when
// maxEntries is not positive.
func Wrap(inner domain.Geocoder, maxEntries int, metrics *observability.Metrics) domain.Geocoder {
	if maxEntries <= 0 {
		return inner
	}
	return New(inner, maxEntries, metrics)
}

func (c *CachedGeocoder) ReverseGeocode(ctx context.Context, lat, lon float64) (domain.Address, error) {
	key := fmt.Sprintf("%.6f,%.6f", lat, lon)
	if addr, ok := c.cache.get(key); ok {
		c.metrics.GeocodeCache.WithLabelValues("hit").Inc()
		return addr, nil
	}
	c.metrics.GeocodeCache.WithLabelValues("miss").Inc()

	addr, err := c.inner.ReverseGeocode(ctx, lat, lon)
	if err != nil {
		return addr, err
	}
	// Empty answers are not cached so a transient "nothing here" can be retried
	// by a later click.
	if addr != (domain.Address{}) {
		c.cache.put(key, addr)
	}
	return addr, nil
}

// lruCache is a simple thread-safe LRU cache for addresses.
type lruCache struct {
	maxEntries int
	mu         sync.Mutex
	entries    map[string]*entry
	head       *entry // most recently used
	tail       *entry // least recently used
}

type entry struct {
	key   string
	value domain.Address
	prev  *entry
	next  *entry
}

func newLRUCache(maxEntries int) *lruCache {
	return &lruCache{
		maxEntries: maxEntries,
		entries:    make(map[string]*entry),
	}
}

func (c *lruCache) get(key string) (domain.Address, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	e, ok := c.entries[key]
	if !ok {
		return domain.Address{}, false
	}
	c.moveToFront(e)
	return e.value, true
}

func (c *lruCache) put(key string, value domain.Address) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if e, ok := c.entries[key]; ok {
		e.value = value
		c.moveToFront(e)
		return
	}

	e := &entry{key: key, value: value}
	c.entries[key] = e
	c.addToFront(e)

	if len(c.entries) > c.maxEntries {
		c.evictTail()
	}
}

func (c *lruCache) len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.entries)
}

func (c *lruCache) moveToFront(e *entry) {
	if e == c.head {
		return
	}
	c.remove(e)
	c.addToFront(e)
}

func (c *lruCache) addToFront(e *entry) {
	e.next = c.head
	e.prev = nil
	if c.head != nil {
		c.head.prev = e
	}
	c.head = e
	if c.tail == nil {
		c.tail = e
	}
}

func (c *lruCache) remove(e *entry) {
	if e.prev != nil {
		e.prev.next = e.next
	} else {
		c.head = e.next
	}
	if e.next != nil {
		e.next.prev = e.prev
	} else {
		c.tail = e.prev
	}
}

func (c *lruCache) evictTail() {
	if c.tail == nil {
		return
	}
	delete(c.entries, c.tail.key)
	c.remove(c.tail)
}
