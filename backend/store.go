// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package backend

import (
	"errors"
	"sync"

	"github.com/kasarlabs/bonsai-go/common"
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

const (
	// ErrStorage covers I/O failures, corruption, and missing data reported
	// by the physical database. It is always propagated to the caller and
	// never retried inside this package.
	ErrStorage = common.ConstError("storage failure")

	// ErrTransactionConflict is returned by Transaction.Commit when a
	// concurrent writer invalidated the transaction's snapshot-relative
	// read set. The caller must restart from a fresh snapshot.
	ErrTransactionConflict = common.ConstError("transaction conflict")
)

// Entry is a single key-value pair returned by prefix scans. Keys are
// reported without their table space prefix.
type Entry struct {
	Key   []byte
	Value []byte
}

// KeyedStore is a column-oriented persistent key-value store. Columns are
// realized as TableSpace prefixes over a single LevelDB instance. All
// methods are safe for concurrent use; transaction commits are serialized
// internally.
type KeyedStore struct {
	db       LevelDB
	commitMu sync.Mutex
}

// NewKeyedStore wraps an open LevelDB instance.
func NewKeyedStore(db LevelDB) *KeyedStore {
	return &KeyedStore{db: db}
}

// OpenKeyedStore opens (or creates) a store in the given directory.
func OpenKeyedStore(path string) (*KeyedStore, error) {
	db, err := OpenLevelDb(path, &opt.Options{})
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return NewKeyedStore(db), nil
}

// Get returns the value stored in the column for the key, and whether the
// key was present.
func (s *KeyedStore) Get(table TableSpace, key []byte) ([]byte, bool, error) {
	value, err := s.db.Get(table.DbKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Join(ErrStorage, err)
	}
	return value, true, nil
}

// Contains reports whether the key is present in the column.
func (s *KeyedStore) Contains(table TableSpace, key []byte) (bool, error) {
	has, err := s.db.Has(table.DbKey(key), nil)
	if err != nil {
		return false, errors.Join(ErrStorage, err)
	}
	return has, nil
}

// GetByPrefix returns all entries of the column whose key starts with the
// prefix, in lexicographic key order. The scan stops at the first key not
// matching the prefix.
func (s *KeyedStore) GetByPrefix(table TableSpace, prefix []byte) ([]Entry, error) {
	iter := s.db.NewIterator(util.BytesPrefix(table.DbKey(prefix)), nil)
	defer iter.Release()

	var entries []Entry
	for iter.Next() {
		key := make([]byte, len(iter.Key())-1)
		copy(key, iter.Key()[1:]) // strip the table space byte
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		entries = append(entries, Entry{Key: key, Value: value})
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return entries, nil
}

// Insert stores the value for the key and returns the previous value if
// any. When batch is not nil the write is accumulated into the batch and
// only becomes observable once the batch is committed.
func (s *KeyedStore) Insert(table TableSpace, key, value []byte, batch *Batch) ([]byte, error) {
	prev, _, err := s.Get(table, key)
	if err != nil {
		return nil, err
	}
	if batch != nil {
		batch.Put(table, key, value)
		return prev, nil
	}
	if err := s.db.Put(table.DbKey(key), value, nil); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return prev, nil
}

// Remove deletes the key and returns the previous value if any. When batch
// is not nil the deletion is accumulated into the batch.
func (s *KeyedStore) Remove(table TableSpace, key []byte, batch *Batch) ([]byte, error) {
	prev, _, err := s.Get(table, key)
	if err != nil {
		return nil, err
	}
	if batch != nil {
		batch.Delete(table, key)
		return prev, nil
	}
	if err := s.db.Delete(table.DbKey(key), nil); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return prev, nil
}

// RemoveByPrefix transactionally deletes all entries of the column whose
// key starts with the prefix.
func (s *KeyedStore) RemoveByPrefix(table TableSpace, prefix []byte) error {
	iter := s.db.NewIterator(util.BytesPrefix(table.DbKey(prefix)), nil)
	defer iter.Release()

	batch := new(Batch)
	for iter.Next() {
		key := make([]byte, len(iter.Key())-1)
		copy(key, iter.Key()[1:])
		batch.Delete(table, key)
	}
	if err := iter.Error(); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return s.WriteBatch(batch)
}

// WriteBatch applies all writes accumulated in the batch atomically.
func (s *KeyedStore) WriteBatch(batch *Batch) error {
	if err := s.db.Write(&batch.batch, nil); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// Snapshot captures the current state of the store. The returned snapshot
// is immutable and must be released when no longer needed.
func (s *KeyedStore) Snapshot() (*Snapshot, error) {
	snap, err := s.db.GetSnapshot()
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return &Snapshot{snap: snap}, nil
}

// Transaction opens a mutable, isolated view derived from the snapshot.
// Reads are pinned to the snapshot; writes stay private until Commit.
func (s *KeyedStore) Transaction(snap *Snapshot) *Transaction {
	return &Transaction{
		store:  s,
		snap:   snap,
		writes: make(map[string]txWrite),
		reads:  make(map[string][]byte),
	}
}

// Close closes the underlying database.
func (s *KeyedStore) Close() error {
	if err := s.db.Close(); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return nil
}

// Batch accumulates writes to be applied atomically by WriteBatch. A batch
// is not safe for concurrent use.
type Batch struct {
	batch leveldb.Batch
}

// Put stages an insert of the value under the key in the column.
func (b *Batch) Put(table TableSpace, key, value []byte) {
	b.batch.Put(table.DbKey(key), value)
}

// Delete stages a deletion of the key in the column.
func (b *Batch) Delete(table TableSpace, key []byte) {
	b.batch.Delete(table.DbKey(key))
}

// Len returns the number of staged writes.
func (b *Batch) Len() int {
	return b.batch.Len()
}

// Reset drops all staged writes.
func (b *Batch) Reset() {
	b.batch.Reset()
}
