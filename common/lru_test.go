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

import "testing"

func TestLruCache_SetGet(t *testing.T) {
	c := NewLruCache[int, string](3)
	if _, exists := c.Get(1); exists {
		t.Errorf("empty cache should not contain key 1")
	}
	c.Set(1, "a")
	if val, exists := c.Get(1); !exists || val != "a" {
		t.Errorf("expected (a, true), got (%v, %v)", val, exists)
	}
	c.Set(1, "b")
	if val, _ := c.Get(1); val != "b" {
		t.Errorf("set of existing key should replace value, got %v", val)
	}
	if c.Len() != 1 {
		t.Errorf("expected 1 entry, got %d", c.Len())
	}
}

func TestLruCache_EvictsLeastRecentlyUsed(t *testing.T) {
	c := NewLruCache[int, int](2)
	c.Set(1, 10)
	c.Set(2, 20)
	c.Get(1) // 2 becomes the least recently used

	evictedKey, evictedValue, evicted := c.Set(3, 30)
	if !evicted || evictedKey != 2 || evictedValue != 20 {
		t.Errorf("expected eviction of (2, 20), got (%v, %v, %v)", evictedKey, evictedValue, evicted)
	}
	if _, exists := c.Get(2); exists {
		t.Errorf("evicted key 2 should be gone")
	}
	if _, exists := c.Get(1); !exists {
		t.Errorf("recently used key 1 should have survived")
	}
}

func TestLruCache_Remove(t *testing.T) {
	c := NewLruCache[int, int](2)
	c.Set(1, 10)
	if val, removed := c.Remove(1); !removed || val != 10 {
		t.Errorf("expected removal of 10, got (%v, %v)", val, removed)
	}
	if _, removed := c.Remove(1); removed {
		t.Errorf("second removal should report absence")
	}
	if c.Len() != 0 {
		t.Errorf("expected empty cache, got %d entries", c.Len())
	}
}
