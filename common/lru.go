// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package common

// LruCache is a fixed-capacity key-value cache evicting the least recently
// used entry when full. It is not safe for concurrent use.
type LruCache[K comparable, V any] struct {
	cache    map[K]*lruEntry[K, V]
	capacity int
	head     *lruEntry[K, V]
	tail     *lruEntry[K, V]
}

type lruEntry[K comparable, V any] struct {
	key        K
	val        V
	prev, next *lruEntry[K, V]
}

// NewLruCache returns an empty cache holding at most capacity entries.
func NewLruCache[K comparable, V any](capacity int) *LruCache[K, V] {
	if capacity < 1 {
		capacity = 1
	}
	return &LruCache[K, V]{
		cache:    make(map[K]*lruEntry[K, V], capacity),
		capacity: capacity,
	}
}

// Get returns the value stored for the key, marking it as recently used.
func (c *LruCache[K, V]) Get(key K) (V, bool) {
	var val V
	item, exists := c.cache[key]
	if exists {
		val = item.val
		c.touch(item)
	}
	return val, exists
}

// Set associates the key with the value, replacing any present value. If
// adding the entry exceeds the capacity, the least recently used entry is
// removed and returned as evicted.
func (c *LruCache[K, V]) Set(key K, val V) (evictedKey K, evictedValue V, evicted bool) {
	item, exists := c.cache[key]
	if exists {
		item.val = val
		c.touch(item)
		return
	}

	if len(c.cache) >= c.capacity {
		item = c.dropLast()
		evictedKey = item.key
		evictedValue = item.val
		evicted = true
		delete(c.cache, item.key)
	} else {
		item = new(lruEntry[K, V])
	}
	item.key = key
	item.val = val
	c.cache[key] = item

	item.prev = nil
	item.next = c.head
	if c.head != nil {
		c.head.prev = item
	}
	c.head = item
	if c.tail == nil {
		c.tail = item
	}
	return
}

// Remove drops the key from the cache, returning the removed value if any.
func (c *LruCache[K, V]) Remove(key K) (V, bool) {
	var val V
	item, exists := c.cache[key]
	if !exists {
		return val, false
	}
	delete(c.cache, key)
	if item.prev != nil {
		item.prev.next = item.next
	} else {
		c.head = item.next
	}
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.tail = item.prev
	}
	return item.val, true
}

// Len returns the number of cached entries.
func (c *LruCache[K, V]) Len() int {
	return len(c.cache)
}

// touch moves the entry to the head of the LRU queue.
func (c *LruCache[K, V]) touch(item *lruEntry[K, V]) {
	if c.head == item {
		return
	}
	item.prev.next = item.next
	if item.next != nil {
		item.next.prev = item.prev
	} else {
		c.tail = item.prev
	}
	item.prev = nil
	item.next = c.head
	c.head.prev = item
	c.head = item
}

// dropLast unlinks and returns the tail entry. The caller removes it from
// the map.
func (c *LruCache[K, V]) dropLast() *lruEntry[K, V] {
	item := c.tail
	c.tail = item.prev
	if c.tail != nil {
		c.tail.next = nil
	} else {
		c.head = nil
	}
	return item
}
