// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package trie

//go:generate mockgen -source database.go -destination database_mock.go -package trie

// KeyKind tags the logical namespace a DatabaseKey belongs to. The storage
// implementation maps each kind to a distinct physical column; the key
// bytes are otherwise opaque to it.
type KeyKind uint8

const (
	// TrieKind addresses trie node encodings.
	TrieKind KeyKind = iota + 1
	// FlatKind addresses raw key-to-value entries and trie metadata.
	FlatKind
	// TrieLogKind addresses per-version change journals.
	TrieLogKind
)

// DatabaseKey identifies a single entry within one of the three logical
// trie namespaces.
type DatabaseKey struct {
	Kind  KeyKind
	Bytes []byte
}

// TrieKey builds a DatabaseKey addressing a trie node.
func TrieKey(key []byte) DatabaseKey {
	return DatabaseKey{Kind: TrieKind, Bytes: key}
}

// FlatKey builds a DatabaseKey addressing a flat entry.
func FlatKey(key []byte) DatabaseKey {
	return DatabaseKey{Kind: FlatKind, Bytes: key}
}

// TrieLogKey builds a DatabaseKey addressing a journal entry.
func TrieLogKey(key []byte) DatabaseKey {
	return DatabaseKey{Kind: TrieLogKind, Bytes: key}
}

// Entry is a key-value pair returned by prefix scans.
type Entry struct {
	Key   []byte
	Value []byte
}

// Batch accumulates writes to be applied atomically by Database.WriteBatch.
type Batch interface {
	// Put stages an insert of the value under the key.
	Put(key DatabaseKey, value []byte)
	// Delete stages a deletion of the key.
	Delete(key DatabaseKey)
}

// Database is the storage contract required by the trie algorithm. It is
// the only coupling surface between the trie and the persistence layer;
// both the live adapter and its snapshot-pinned transactions implement it.
type Database interface {
	// CreateBatch returns an empty batch bound to this database.
	CreateBatch() Batch

	// Get returns the value stored for the key and whether it was present.
	Get(key DatabaseKey) ([]byte, bool, error)

	// GetByPrefix returns all entries whose key starts with the prefix, in
	// lexicographic key order.
	GetByPrefix(prefix DatabaseKey) ([]Entry, error)

	// Contains reports whether the key is present.
	Contains(key DatabaseKey) (bool, error)

	// Insert stores the value for the key and returns the previous value if
	// any. When batch is not nil the write is accumulated into the batch.
	Insert(key DatabaseKey, value []byte, batch Batch) ([]byte, error)

	// Remove deletes the key and returns the previous value if any. When
	// batch is not nil the deletion is accumulated into the batch.
	Remove(key DatabaseKey, batch Batch) ([]byte, error)

	// RemoveByPrefix transactionally deletes all entries whose key starts
	// with the prefix.
	RemoveByPrefix(prefix DatabaseKey) error

	// WriteBatch applies all writes accumulated in the batch atomically.
	WriteBatch(batch Batch) error
}
