// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package database binds the keyed store to the trie's storage contract.
// It maps the three logical key namespaces to their physical columns and
// provides the snapshot and optimistic-transaction lifecycle the trie
// algorithm relies on for isolated computation.
package database

import (
	"fmt"

	"github.com/ethereum/go-ethereum/log"
	"github.com/kasarlabs/bonsai-go/backend"
	"github.com/kasarlabs/bonsai-go/common"
	"github.com/kasarlabs/bonsai-go/trie"
)

// KeyMapping is the fixed association between the trie's logical key
// namespaces and physical columns. It is set once at construction and
// never changes.
type KeyMapping struct {
	Flat    backend.TableSpace
	Trie    backend.TableSpace
	TrieLog backend.TableSpace
}

// The three namespaces of the state layer.
var (
	ContractsMapping = KeyMapping{
		Flat:    backend.ContractFlatKey,
		Trie:    backend.ContractTrieKey,
		TrieLog: backend.ContractLogKey,
	}
	StorageMapping = KeyMapping{
		Flat:    backend.StorageFlatKey,
		Trie:    backend.StorageTrieKey,
		TrieLog: backend.StorageLogKey,
	}
	ClassesMapping = KeyMapping{
		Flat:    backend.ClassFlatKey,
		Trie:    backend.ClassTrieKey,
		TrieLog: backend.ClassLogKey,
	}
)

// column resolves the physical column for a database key.
func (m KeyMapping) column(key trie.DatabaseKey) backend.TableSpace {
	switch key.Kind {
	case trie.FlatKind:
		return m.Flat
	case trie.TrieKind:
		return m.Trie
	case trie.TrieLogKind:
		return m.TrieLog
	default:
		panic(fmt.Sprintf("mapping database key of unknown kind %d", key.Kind))
	}
}

// Database implements the trie storage contract on top of the keyed store
// for one trie namespace. It additionally owns the namespace's snapshot
// table; see Snapshot, Transaction and Merge.
type Database struct {
	store     *backend.KeyedStore
	mapping   KeyMapping
	snapshots *snapshotTable
}

// New binds a trie namespace to the store using the given column mapping.
func New(store *backend.KeyedStore, mapping KeyMapping, config Config) *Database {
	return &Database{
		store:     store,
		mapping:   mapping,
		snapshots: newSnapshotTable(config.snapshotCacheSize()),
	}
}

// CreateBatch returns an empty batch bound to this database.
func (d *Database) CreateBatch() trie.Batch {
	return &columnBatch{mapping: d.mapping}
}

// Get returns the value stored for the key.
func (d *Database) Get(key trie.DatabaseKey) ([]byte, bool, error) {
	log.Trace("Getting from store", "kind", key.Kind, "key", fmt.Sprintf("%x", key.Bytes))
	return d.store.Get(d.mapping.column(key), key.Bytes)
}

// GetByPrefix returns all entries whose key starts with the prefix.
func (d *Database) GetByPrefix(prefix trie.DatabaseKey) ([]trie.Entry, error) {
	log.Trace("Scanning store", "kind", prefix.Kind, "prefix", fmt.Sprintf("%x", prefix.Bytes))
	entries, err := d.store.GetByPrefix(d.mapping.column(prefix), prefix.Bytes)
	return toTrieEntries(entries), err
}

// Contains reports whether the key is present.
func (d *Database) Contains(key trie.DatabaseKey) (bool, error) {
	return d.store.Contains(d.mapping.column(key), key.Bytes)
}

// Insert stores the value for the key, optionally into a batch.
func (d *Database) Insert(key trie.DatabaseKey, value []byte, batch trie.Batch) ([]byte, error) {
	log.Trace("Inserting into store", "kind", key.Kind, "key", fmt.Sprintf("%x", key.Bytes))
	inner, err := innerBatch(batch)
	if err != nil {
		return nil, err
	}
	return d.store.Insert(d.mapping.column(key), key.Bytes, value, inner)
}

// Remove deletes the key, optionally into a batch.
func (d *Database) Remove(key trie.DatabaseKey, batch trie.Batch) ([]byte, error) {
	log.Trace("Removing from store", "kind", key.Kind, "key", fmt.Sprintf("%x", key.Bytes))
	inner, err := innerBatch(batch)
	if err != nil {
		return nil, err
	}
	return d.store.Remove(d.mapping.column(key), key.Bytes, inner)
}

// RemoveByPrefix transactionally deletes all entries whose key starts with
// the prefix.
func (d *Database) RemoveByPrefix(prefix trie.DatabaseKey) error {
	return d.store.RemoveByPrefix(d.mapping.column(prefix), prefix.Bytes)
}

// WriteBatch applies the batch atomically.
func (d *Database) WriteBatch(batch trie.Batch) error {
	cb, err := ownBatch(batch)
	if err != nil {
		return err
	}
	return d.store.WriteBatch(&cb.batch)
}

// columnBatch is the trie.Batch implementation of this package: it maps
// every staged key to its physical column eagerly.
type columnBatch struct {
	mapping KeyMapping
	batch   backend.Batch
}

func (b *columnBatch) Put(key trie.DatabaseKey, value []byte) {
	b.batch.Put(b.mapping.column(key), key.Bytes, value)
}

func (b *columnBatch) Delete(key trie.DatabaseKey) {
	b.batch.Delete(b.mapping.column(key), key.Bytes)
}

// ownBatch rejects batches created by a different database implementation.
func ownBatch(batch trie.Batch) (*columnBatch, error) {
	cb, ok := batch.(*columnBatch)
	if !ok {
		return nil, fmt.Errorf("%w: batch of foreign type %T", common.ErrInvariantViolation, batch)
	}
	return cb, nil
}

// innerBatch unwraps an optional batch argument.
func innerBatch(batch trie.Batch) (*backend.Batch, error) {
	if batch == nil {
		return nil, nil
	}
	cb, err := ownBatch(batch)
	if err != nil {
		return nil, err
	}
	return &cb.batch, nil
}

func toTrieEntries(entries []backend.Entry) []trie.Entry {
	if entries == nil {
		return nil
	}
	out := make([]trie.Entry, len(entries))
	for i, e := range entries {
		out[i] = trie.Entry{Key: e.Key, Value: e.Value}
	}
	return out
}
