// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package database

import (
	"sync"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kasarlabs/bonsai-go/backend"
	"github.com/kasarlabs/bonsai-go/common"
	"github.com/kasarlabs/bonsai-go/trie"
)

// BasicId is the logical identifier under which snapshots are retained.
// Callers use monotonically increasing ids, typically block numbers.
type BasicId uint64

// Config carries the tuning knobs of a Database.
type Config struct {
	// SnapshotCacheSize bounds the number of snapshots retained for later
	// transaction creation. The least recently used snapshot is released
	// when the bound is exceeded. Zero selects DefaultSnapshotCacheSize.
	SnapshotCacheSize int
}

// DefaultSnapshotCacheSize is the snapshot retention bound used when the
// configuration does not specify one.
const DefaultSnapshotCacheSize = 128

func (c Config) snapshotCacheSize() int {
	if c.SnapshotCacheSize <= 0 {
		return DefaultSnapshotCacheSize
	}
	return c.SnapshotCacheSize
}

// snapshotTable is the bounded id-to-snapshot mapping. Evicted and
// overwritten snapshots are released eagerly.
type snapshotTable struct {
	mu    sync.Mutex
	cache *common.LruCache[BasicId, *backend.Snapshot]
}

func newSnapshotTable(capacity int) *snapshotTable {
	return &snapshotTable{cache: common.NewLruCache[BasicId, *backend.Snapshot](capacity)}
}

func (t *snapshotTable) put(id BasicId, snap *backend.Snapshot) {
	t.mu.Lock()
	defer t.mu.Unlock()
	if prior, ok := t.cache.Remove(id); ok {
		prior.Release()
	}
	if _, evictedValue, evicted := t.cache.Set(id, snap); evicted {
		evictedValue.Release()
	}
}

func (t *snapshotTable) get(id BasicId) (*backend.Snapshot, bool) {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.cache.Get(id)
}

// Snapshot captures the store's current state under the logical id,
// overwriting any prior snapshot at that id.
func (d *Database) Snapshot(id BasicId) error {
	log.Trace("Generating store snapshot", "id", uint64(id))
	snap, err := d.store.Snapshot()
	if err != nil {
		return err
	}
	d.snapshots.put(id, snap)
	return nil
}

// Transaction opens an isolated optimistic transaction pinned to the
// snapshot retained under the id. It returns false if no snapshot exists
// at that id (never created, or evicted from the bounded table).
func (d *Database) Transaction(id BasicId) (*Transaction, bool) {
	log.Trace("Generating store transaction", "id", uint64(id))
	snap, ok := d.snapshots.get(id)
	if !ok {
		return nil, false
	}
	return &Transaction{
		inner:   d.store.Transaction(snap),
		mapping: d.mapping,
	}, true
}

// Merge commits the transaction atomically into the live store. It fails
// with backend.ErrTransactionConflict if a concurrent writer invalidated
// the transaction's read set; the caller must then restart from a fresh
// snapshot.
func (d *Database) Merge(transaction *Transaction) error {
	return transaction.inner.Commit()
}

// Transaction is the snapshot-pinned, mutable view of one trie namespace.
// It implements the same storage contract as the live Database, so the
// trie algorithm can compute against it while concurrent block processing
// continues against the live store.
type Transaction struct {
	inner   *backend.Transaction
	mapping KeyMapping
}

// CreateBatch returns an empty batch bound to this transaction.
func (t *Transaction) CreateBatch() trie.Batch {
	return &columnBatch{mapping: t.mapping}
}

// Get returns the value for the key as seen by this transaction.
func (t *Transaction) Get(key trie.DatabaseKey) ([]byte, bool, error) {
	return t.inner.Get(t.mapping.column(key), key.Bytes)
}

// GetByPrefix returns all entries whose key starts with the prefix, as
// seen by this transaction.
func (t *Transaction) GetByPrefix(prefix trie.DatabaseKey) ([]trie.Entry, error) {
	entries, err := t.inner.GetByPrefix(t.mapping.column(prefix), prefix.Bytes)
	if err != nil {
		return nil, err
	}
	out := make([]trie.Entry, len(entries))
	for i, e := range entries {
		out[i] = trie.Entry{Key: e.Key, Value: e.Value}
	}
	return out, nil
}

// Contains reports whether the key is present as seen by this transaction.
func (t *Transaction) Contains(key trie.DatabaseKey) (bool, error) {
	return t.inner.Contains(t.mapping.column(key), key.Bytes)
}

// Insert stores the value for the key in the transaction's overlay.
func (t *Transaction) Insert(key trie.DatabaseKey, value []byte, batch trie.Batch) ([]byte, error) {
	if batch != nil {
		cb, err := ownBatch(batch)
		if err != nil {
			return nil, err
		}
		prev, _, err := t.Get(key)
		if err != nil {
			return nil, err
		}
		cb.Put(key, value)
		return prev, nil
	}
	return t.inner.Insert(t.mapping.column(key), key.Bytes, value)
}

// Remove deletes the key in the transaction's overlay.
func (t *Transaction) Remove(key trie.DatabaseKey, batch trie.Batch) ([]byte, error) {
	if batch != nil {
		cb, err := ownBatch(batch)
		if err != nil {
			return nil, err
		}
		prev, _, err := t.Get(key)
		if err != nil {
			return nil, err
		}
		cb.Delete(key)
		return prev, nil
	}
	return t.inner.Remove(t.mapping.column(key), key.Bytes)
}

// RemoveByPrefix deletes all entries whose key starts with the prefix, as
// seen by this transaction.
func (t *Transaction) RemoveByPrefix(prefix trie.DatabaseKey) error {
	return t.inner.RemoveByPrefix(t.mapping.column(prefix), prefix.Bytes)
}

// WriteBatch replays the batch into the transaction's overlay.
func (t *Transaction) WriteBatch(batch trie.Batch) error {
	cb, err := ownBatch(batch)
	if err != nil {
		return err
	}
	return t.inner.WriteBatch(&cb.batch)
}
