// Package cache implements the scope manager's bounded write-back lookup
// cache: a capacity-bounded mapping from user binding to a cached value with
// a dirty bit, so that deferred writes can reach the owning scope on
// eviction or flush.
package cache

import (
	lru "github.com/hashicorp/golang-lru/v2"
	"github.com/mna/nenuphar-gc/lang/binding"
	"github.com/mna/nenuphar-gc/lang/heap"
)

// Entry is one cached lookup: the value itself, a copy of its pointee if it
// is a pointer variant, the scope that currently owns the binding, and
// whether the entry has been written to since it was last clean.
type Entry struct {
	Value   heap.Value
	Ptr     *heap.Pointee
	OwnerID int
	Dirty   bool
}

// Cache is the bounded LRU write-back cache keyed by user binding. It wraps
// github.com/hashicorp/golang-lru/v2, whose NewWithEvict callback gives the
// capacity-overflow eviction golang-lru already implements; the dirty bit
// and write-back-on-evict semantics are added on top, since golang-lru has
// no notion of dirtiness.
type Cache struct {
	lru         *lru.Cache[binding.Binding, *Entry]
	cap         int
	overflow    *Entry // set by the onEvicted callback during the most recent Insert
	overflowK   binding.Binding
	hadOverflow bool
}

// New builds a cache bounded to cap entries. cap must be positive.
func New(cap int) *Cache {
	c := &Cache{cap: cap}
	l, err := lru.NewWithEvict(cap, func(k binding.Binding, v *Entry) {
		c.overflowK = k
		c.overflow = v
		c.hadOverflow = true
	})
	if err != nil {
		// Only returned by golang-lru for cap <= 0, which is a caller bug, not a
		// runtime condition this package should recover from.
		panic(err)
	}
	c.lru = l
	return c
}

// Insert stores entry under k. If k was already present, the newly stored
// entry's Dirty flag is forced true, since it is overwriting a previous
// value. If the insertion overflows capacity, the evicted (binding, entry)
// pair is returned for the caller to write back.
func (c *Cache) Insert(k binding.Binding, entry Entry) (evictedKey binding.Binding, evicted *Entry, hadEviction bool) {
	if _, ok := c.lru.Peek(k); ok {
		entry.Dirty = true
	}
	c.hadOverflow = false
	c.lru.Add(k, &entry)
	if c.hadOverflow && c.overflowK != k {
		return c.overflowK, c.overflow, true
	}
	return "", nil, false
}

// Get returns the entry cached under k without promoting it to
// most-recently-used. Callers that want promotion must call Refresh.
func (c *Cache) Get(k binding.Binding) (*Entry, bool) {
	return c.lru.Peek(k)
}

// Refresh promotes k to most-recently-used, if present.
func (c *Cache) Refresh(k binding.Binding) {
	c.lru.Get(k)
}

// Remove deletes and returns the entry cached under k, if any.
func (c *Cache) Remove(k binding.Binding) (*Entry, bool) {
	v, ok := c.lru.Peek(k)
	if !ok {
		return nil, false
	}
	c.lru.Remove(k)
	return v, true
}

// FlushedEntry pairs a binding with the cache entry evicted for it by Flush.
type FlushedEntry struct {
	Key   binding.Binding
	Entry *Entry
}

// Flush drains the entire cache from least- to most-recently-used, returning
// every entry for write-back. The cache is empty after Flush returns.
func (c *Cache) Flush() []FlushedEntry {
	keys := c.lru.Keys()
	out := make([]FlushedEntry, 0, len(keys))
	for _, k := range keys {
		if v, ok := c.lru.Peek(k); ok {
			out = append(out, FlushedEntry{k, v})
		}
	}
	c.lru.Purge()
	return out
}

// Len returns the number of entries currently cached.
func (c *Cache) Len() int { return c.lru.Len() }

// Resize grows the cache's capacity. Per spec.md §4.4, capacity only grows,
// never shrinks, at runtime; a smaller or equal newCap is a no-op.
func (c *Cache) Resize(newCap int) {
	if newCap > c.cap {
		c.lru.Resize(newCap)
		c.cap = newCap
	}
}
