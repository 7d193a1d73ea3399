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
	"github.com/syndtr/goleveldb/leveldb"
	"github.com/syndtr/goleveldb/leveldb/iterator"
	"github.com/syndtr/goleveldb/leveldb/opt"
	"github.com/syndtr/goleveldb/leveldb/util"
)

// TableSpace divides the key-value storage into columns by prefixing every
// key with a single byte. Three columns exist per trie namespace: a flat
// column for raw key-to-value entries, a trie column for node encodings,
// and a log column for per-version change journals.
type TableSpace byte

const (
	// ContractFlatKey is the flat column of the contracts trie.
	ContractFlatKey TableSpace = 'C'
	// ContractTrieKey is the node column of the contracts trie.
	ContractTrieKey TableSpace = 'c'
	// ContractLogKey is the journal column of the contracts trie.
	ContractLogKey TableSpace = '1'

	// StorageFlatKey is the flat column of the per-contract storage tries.
	StorageFlatKey TableSpace = 'S'
	// StorageTrieKey is the node column of the per-contract storage tries.
	StorageTrieKey TableSpace = 's'
	// StorageLogKey is the journal column of the per-contract storage tries.
	StorageLogKey TableSpace = '2'

	// ClassFlatKey is the flat column of the classes trie.
	ClassFlatKey TableSpace = 'K'
	// ClassTrieKey is the node column of the classes trie.
	ClassTrieKey TableSpace = 'k'
	// ClassLogKey is the journal column of the classes trie.
	ClassLogKey TableSpace = '3'
)

// DbKey converts the input key to its respective table space key.
func (t TableSpace) DbKey(key []byte) []byte {
	dbKey := make([]byte, 0, len(key)+1)
	dbKey = append(dbKey, byte(t))
	return append(dbKey, key...)
}

// LevelDB is an interface missing in original LevelDB design. It contains
// the methods of a leveldb.DB this package relies on, allowing the physical
// database to be substituted in tests.
type LevelDB interface {

	// Get gets the value for the given key. It returns ErrNotFound if the
	// DB does not contain the key.
	//
	// The returned slice is its own copy, it is safe to modify the contents
	// of the returned slice.
	Get(key []byte, ro *opt.ReadOptions) (value []byte, err error)

	// Has returns true if the DB does contain the given key.
	Has(key []byte, ro *opt.ReadOptions) (bool, error)

	// NewIterator returns an iterator over the latest state of the DB.
	// Slice allows restricting the iterator to a key range. The iterator
	// must be released after use.
	NewIterator(slice *util.Range, ro *opt.ReadOptions) iterator.Iterator

	// Put sets the value for the given key, overwriting any previous value.
	Put(key, value []byte, wo *opt.WriteOptions) error

	// Delete deletes the value for the given key.
	Delete(key []byte, wo *opt.WriteOptions) error

	// Write applies the given batch to the DB atomically.
	Write(batch *leveldb.Batch, wo *opt.WriteOptions) error

	// GetSnapshot returns a frozen view of the DB state at a particular
	// point in time. The snapshot must be released after use.
	GetSnapshot() (*leveldb.Snapshot, error)

	// Close closes the underlying database.
	Close() error
}

// OpenLevelDb opens a LevelDB instance in the given directory.
func OpenLevelDb(path string, options *opt.Options) (LevelDB, error) {
	return leveldb.OpenFile(path, options)
}
