package cache_test

import (
	"testing"

	"github.com/mna/nenuphar-gc/lang/binding"
	"github.com/mna/nenuphar-gc/lang/cache"
	"github.com/mna/nenuphar-gc/lang/heap"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestInsertAndGet(t *testing.T) {
	c := cache.New(2)

	_, _, hadEviction := c.Insert("x", cache.Entry{Value: heap.NewNum("x", 1), OwnerID: 1})
	assert.False(t, hadEviction)

	entry, ok := c.Get("x")
	require.True(t, ok)
	assert.False(t, entry.Dirty, "a fresh insert is clean")
	assert.Equal(t, 1, entry.OwnerID)
}

func TestInsertExistingKeyMarksDirty(t *testing.T) {
	c := cache.New(2)
	c.Insert("x", cache.Entry{Value: heap.NewNum("x", 1), OwnerID: 1})
	c.Insert("x", cache.Entry{Value: heap.NewNum("x", 2), OwnerID: 1})

	entry, ok := c.Get("x")
	require.True(t, ok)
	assert.True(t, entry.Dirty, "overwriting an already-cached key marks it dirty")
	assert.Equal(t, float64(2), entry.Value.Num)
}

func TestInsertOverflowEvictsLeastRecentlyUsed(t *testing.T) {
	c := cache.New(2)
	c.Insert("x", cache.Entry{Value: heap.NewNum("x", 1), OwnerID: 1})
	c.Insert("y", cache.Entry{Value: heap.NewNum("y", 2), OwnerID: 1})
	// Touch x so y becomes least-recently-used.
	c.Refresh("x")

	evictedKey, evicted, hadEviction := c.Insert("z", cache.Entry{Value: heap.NewNum("z", 3), OwnerID: 1})
	require.True(t, hadEviction)
	assert.Equal(t, binding.Binding("y"), evictedKey)
	assert.Equal(t, float64(2), evicted.Value.Num)

	_, ok := c.Get("y")
	assert.False(t, ok)
	assert.Equal(t, 2, c.Len())
}

func TestRemove(t *testing.T) {
	c := cache.New(2)
	c.Insert("x", cache.Entry{Value: heap.NewNum("x", 1), OwnerID: 1})

	entry, ok := c.Remove("x")
	require.True(t, ok)
	assert.Equal(t, float64(1), entry.Value.Num)

	_, ok = c.Remove("x")
	assert.False(t, ok)
}

func TestFlushDrainsEverything(t *testing.T) {
	c := cache.New(4)
	c.Insert("x", cache.Entry{Value: heap.NewNum("x", 1), OwnerID: 1})
	c.Insert("y", cache.Entry{Value: heap.NewNum("y", 2), OwnerID: 1})

	flushed := c.Flush()
	assert.Len(t, flushed, 2)
	assert.Equal(t, 0, c.Len())

	_, ok := c.Get("x")
	assert.False(t, ok)
}

func TestResizeOnlyGrows(t *testing.T) {
	c := cache.New(2)
	c.Insert("x", cache.Entry{Value: heap.NewNum("x", 1), OwnerID: 1})
	c.Insert("y", cache.Entry{Value: heap.NewNum("y", 2), OwnerID: 1})

	c.Resize(1) // no-op: capacity never shrinks
	_, _, hadEviction := c.Insert("z", cache.Entry{Value: heap.NewNum("z", 3), OwnerID: 1})
	assert.True(t, hadEviction, "capacity must still be 2 after a no-op shrink attempt")

	c2 := cache.New(1)
	c2.Insert("x", cache.Entry{Value: heap.NewNum("x", 1), OwnerID: 1})
	c2.Resize(3)
	_, _, hadEviction2 := c2.Insert("y", cache.Entry{Value: heap.NewNum("y", 2), OwnerID: 1})
	assert.False(t, hadEviction2, "growing capacity must take effect")
}
