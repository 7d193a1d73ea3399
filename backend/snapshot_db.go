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

	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// Snapshot is an immutable point-in-time view of the KeyedStore. Reads
// through a snapshot never observe writes issued after its creation.
type Snapshot struct {
	snap *leveldb.Snapshot
}

// Get returns the value stored for the key in the column as of the
// snapshot, and whether the key was present.
func (s *Snapshot) Get(table TableSpace, key []byte) ([]byte, bool, error) {
	value, err := s.snap.Get(table.DbKey(key), nil)
	if err == leveldb.ErrNotFound {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, errors.Join(ErrStorage, err)
	}
	return value, true, nil
}

// Contains reports whether the key was present as of the snapshot.
func (s *Snapshot) Contains(table TableSpace, key []byte) (bool, error) {
	has, err := s.snap.Has(table.DbKey(key), nil)
	if err != nil {
		return false, errors.Join(ErrStorage, err)
	}
	return has, nil
}

// GetByPrefix returns all entries of the column whose key starts with the
// prefix, as of the snapshot, in lexicographic key order.
func (s *Snapshot) GetByPrefix(table TableSpace, prefix []byte) ([]Entry, error) {
	iter := s.snap.NewIterator(util.BytesPrefix(table.DbKey(prefix)), nil)
	defer iter.Release()

	var entries []Entry
	for iter.Next() {
		key := make([]byte, len(iter.Key())-1)
		copy(key, iter.Key()[1:])
		value := make([]byte, len(iter.Value()))
		copy(value, iter.Value())
		entries = append(entries, Entry{Key: key, Value: value})
	}
	if err := iter.Error(); err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return entries, nil
}

// Release frees the resources held by the snapshot. The snapshot must not
// be used afterwards.
func (s *Snapshot) Release() {
	s.snap.Release()
}

// rawGet reads a full database key (including the table space byte) through
// the snapshot, mapping absence to a nil value.
func (s *Snapshot) rawGet(dbKey []byte) ([]byte, error) {
	value, err := s.snap.Get(dbKey, nil)
	if err == leveldb.ErrNotFound {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Join(ErrStorage, err)
	}
	return value, nil
}
