// Package cache provides the bounded, TTL'd price cache used by Position Lifecycle
// pricers (spec.md §4.H, §5 "Shared resources"): per-process, ~1000 entries, ~10s TTL
// with jitter, size-based LRU eviction and periodic cleanup so it never grows unbounded.
package cache

import (
	"container/list"
	"sync"
	"time"

	"github.com/shopspring/decimal"
)

const (
	defaultCapacity = 1000
	defaultTTL      = 10 * time.Second
)

// PricePoint is a cached quote for a mint, keyed by pricing source (spec.md §4.H:
// BONDING_CURVE reads are never substituted for AMM_POOL quotes or vice versa).
type PricePoint struct {
	Price     decimal.Decimal
	Source    string
	CachedAt  time.Time
}

type entry struct {
	key       string
	value     PricePoint
	expiresAt time.Time
}

// PriceCache is a bounded, TTL'd, LRU-evicted cache of the most recent price per mint.
type PriceCache struct {
	mu       sync.Mutex
	ttl      time.Duration
	capacity int

	ll    *list.List
	items map[string]*list.Element

	stop chan struct{}
}

// New builds a PriceCache. ttl<=0 defaults to 10s; capacity<=0 defaults to 1000 entries.
func New(ttl time.Duration, capacity int) *PriceCache {
	if ttl <= 0 {
		ttl = defaultTTL
	}
	if capacity <= 0 {
		capacity = defaultCapacity
	}
	c := &PriceCache{
		ttl:      ttl,
		capacity: capacity,
		ll:       list.New(),
		items:    make(map[string]*list.Element, capacity),
		stop:     make(chan struct{}),
	}
	go c.cleanupLoop()
	return c
}

// jitter spreads TTL expiry by up to 20% so many entries cached at once don't all expire
// on the same tick (spec.md §4.H "cached ~30s with jitter" for AMM quotes).
func (c *PriceCache) jitteredTTL() time.Duration {
	spread := time.Duration(int64(c.ttl) / 5)
	if spread <= 0 {
		return c.ttl
	}
	offset := time.Duration(time.Now().UnixNano() % int64(spread))
	return c.ttl - spread/2 + offset
}

// Get returns the cached point for key if present and unexpired, promoting it to
// most-recently-used.
func (c *PriceCache) Get(key string) (PricePoint, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.items[key]
	if !ok {
		return PricePoint{}, false
	}
	e := el.Value.(*entry)
	if time.Now().After(e.expiresAt) {
		c.removeElement(el)
		return PricePoint{}, false
	}
	c.ll.MoveToFront(el)
	return e.value, true
}

// Set stores or refreshes a price point, evicting the least-recently-used entry if the
// cache is at capacity.
func (c *PriceCache) Set(key string, value PricePoint) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.items[key]; ok {
		e := el.Value.(*entry)
		e.value = value
		e.expiresAt = time.Now().Add(c.jitteredTTL())
		c.ll.MoveToFront(el)
		return
	}

	e := &entry{key: key, value: value, expiresAt: time.Now().Add(c.jitteredTTL())}
	el := c.ll.PushFront(e)
	c.items[key] = el

	if c.ll.Len() > c.capacity {
		c.evictOldest()
	}
}

func (c *PriceCache) evictOldest() {
	el := c.ll.Back()
	if el != nil {
		c.removeElement(el)
	}
}

func (c *PriceCache) removeElement(el *list.Element) {
	e := el.Value.(*entry)
	delete(c.items, e.key)
	c.ll.Remove(el)
}

// cleanupLoop periodically sweeps expired entries so a mint that stops being quoted
// doesn't linger until an unrelated Set triggers eviction.
func (c *PriceCache) cleanupLoop() {
	ticker := time.NewTicker(c.ttl * 3)
	defer ticker.Stop()
	for {
		select {
		case <-ticker.C:
			c.sweepExpired()
		case <-c.stop:
			return
		}
	}
}

func (c *PriceCache) sweepExpired() {
	c.mu.Lock()
	defer c.mu.Unlock()

	now := time.Now()
	for el := c.ll.Back(); el != nil; {
		e := el.Value.(*entry)
		prev := el.Prev()
		if now.After(e.expiresAt) {
			c.removeElement(el)
		}
		el = prev
	}
}

// Len reports the current entry count, for operator telemetry.
func (c *PriceCache) Len() int {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.ll.Len()
}

// Close stops the background cleanup loop.
func (c *PriceCache) Close() { close(c.stop) }
