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
	"bytes"
	"errors"
	"fmt"
	"sort"

	"github.com/kasarlabs/bonsai-go/common"
	"github.com/syndtr/goleveldb/leveldb"
)

type txWrite struct {
	value   []byte
	deleted bool
}

// Transaction is a mutable, isolated view of the store derived from a
// snapshot. Reads are answered from the private write overlay first and the
// snapshot second; nothing is visible to other readers until Commit.
//
// Concurrency control is optimistic: no locks are taken while the
// transaction is open. Every key read or written is recorded together with
// the value observed through the snapshot; Commit revalidates this set
// against the live store and fails with ErrTransactionConflict if any entry
// changed in the meantime. A transaction commits at most once and is
// discarded afterwards.
type Transaction struct {
	store     *KeyedStore
	snap      *Snapshot
	writes    map[string]txWrite // full db key -> staged write
	reads     map[string][]byte  // full db key -> value observed via snapshot
	committed bool
}

// Get returns the value for the key in the column as seen by this
// transaction.
func (t *Transaction) Get(table TableSpace, key []byte) ([]byte, bool, error) {
	dbKey := table.DbKey(key)
	if w, ok := t.writes[string(dbKey)]; ok {
		if w.deleted {
			return nil, false, nil
		}
		return w.value, true, nil
	}
	value, err := t.snapGet(dbKey)
	if err != nil {
		return nil, false, err
	}
	return value, value != nil, nil
}

// Contains reports whether the key is present as seen by this transaction.
func (t *Transaction) Contains(table TableSpace, key []byte) (bool, error) {
	_, present, err := t.Get(table, key)
	return present, err
}

// GetByPrefix returns all entries of the column whose key starts with the
// prefix, as seen by this transaction, in lexicographic key order.
func (t *Transaction) GetByPrefix(table TableSpace, prefix []byte) ([]Entry, error) {
	snapshot, err := t.snap.GetByPrefix(table, prefix)
	if err != nil {
		return nil, err
	}

	merged := make(map[string][]byte, len(snapshot))
	for _, e := range snapshot {
		dbKey := table.DbKey(e.Key)
		if _, seen := t.reads[string(dbKey)]; !seen {
			t.reads[string(dbKey)] = e.Value
		}
		merged[string(e.Key)] = e.Value
	}

	// Overlay private writes within the scanned range.
	overlayPrefix := string(table.DbKey(prefix))
	for dbKey, w := range t.writes {
		if len(dbKey) < len(overlayPrefix) || dbKey[:len(overlayPrefix)] != overlayPrefix {
			continue
		}
		key := dbKey[1:] // strip the table space byte
		if w.deleted {
			delete(merged, key)
		} else {
			merged[key] = w.value
		}
	}

	keys := make([]string, 0, len(merged))
	for key := range merged {
		keys = append(keys, key)
	}
	sort.Strings(keys)

	entries := make([]Entry, 0, len(keys))
	for _, key := range keys {
		entries = append(entries, Entry{Key: []byte(key), Value: merged[key]})
	}
	return entries, nil
}

// Insert stores the value for the key in the transaction's private overlay
// and returns the previously visible value if any.
func (t *Transaction) Insert(table TableSpace, key, value []byte) ([]byte, error) {
	prev, _, err := t.Get(table, key)
	if err != nil {
		return nil, err
	}
	staged := make([]byte, len(value))
	copy(staged, value)
	t.writes[string(table.DbKey(key))] = txWrite{value: staged}
	return prev, nil
}

// Remove deletes the key in the transaction's private overlay and returns
// the previously visible value if any.
func (t *Transaction) Remove(table TableSpace, key []byte) ([]byte, error) {
	prev, _, err := t.Get(table, key)
	if err != nil {
		return nil, err
	}
	t.writes[string(table.DbKey(key))] = txWrite{deleted: true}
	return prev, nil
}

// RemoveByPrefix deletes all entries of the column whose key starts with
// the prefix, as seen by this transaction.
func (t *Transaction) RemoveByPrefix(table TableSpace, prefix []byte) error {
	entries, err := t.GetByPrefix(table, prefix)
	if err != nil {
		return err
	}
	for _, e := range entries {
		t.writes[string(table.DbKey(e.Key))] = txWrite{deleted: true}
	}
	return nil
}

// WriteBatch replays all writes accumulated in the batch into the
// transaction's private overlay.
func (t *Transaction) WriteBatch(batch *Batch) error {
	r := &txReplayer{tx: t}
	if err := batch.batch.Replay(r); err != nil {
		return errors.Join(ErrStorage, err)
	}
	return r.err
}

// txReplayer applies leveldb batch records to the transaction overlay. Keys
// arrive with their table space byte already encoded.
type txReplayer struct {
	tx  *Transaction
	err error
}

func (r *txReplayer) Put(dbKey, value []byte) {
	if r.err != nil {
		return
	}
	if _, err := r.tx.snapGet(dbKey); err != nil {
		r.err = err
		return
	}
	staged := make([]byte, len(value))
	copy(staged, value)
	r.tx.writes[string(append([]byte{}, dbKey...))] = txWrite{value: staged}
}

func (r *txReplayer) Delete(dbKey []byte) {
	if r.err != nil {
		return
	}
	if _, err := r.tx.snapGet(dbKey); err != nil {
		r.err = err
		return
	}
	r.tx.writes[string(append([]byte{}, dbKey...))] = txWrite{deleted: true}
}

// Commit validates the transaction's read set against the live store and,
// if nothing diverged, applies the write overlay as one atomic batch.
// Commits of concurrent transactions are serialized by the store.
func (t *Transaction) Commit() error {
	t.store.commitMu.Lock()
	defer t.store.commitMu.Unlock()

	if t.committed {
		return fmt.Errorf("%w: transaction committed twice", common.ErrInvariantViolation)
	}

	for dbKey, seen := range t.reads {
		current, err := t.store.db.Get([]byte(dbKey), nil)
		if err == leveldb.ErrNotFound {
			current = nil
		} else if err != nil {
			return errors.Join(ErrStorage, err)
		}
		if !bytes.Equal(current, seen) {
			return ErrTransactionConflict
		}
	}

	batch := new(leveldb.Batch)
	for dbKey, w := range t.writes {
		if w.deleted {
			batch.Delete([]byte(dbKey))
		} else {
			batch.Put([]byte(dbKey), w.value)
		}
	}
	if err := t.store.db.Write(batch, nil); err != nil {
		return errors.Join(ErrStorage, err)
	}
	t.committed = true
	return nil
}

// snapGet reads a full database key through the snapshot, recording the
// observation in the read set. The first observation per key wins.
func (t *Transaction) snapGet(dbKey []byte) ([]byte, error) {
	if seen, ok := t.reads[string(dbKey)]; ok {
		return seen, nil
	}
	value, err := t.snap.rawGet(dbKey)
	if err != nil {
		return nil, err
	}
	t.reads[string(append([]byte{}, dbKey...))] = value
	return value, nil
}
