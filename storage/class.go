// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package storage

import (
	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/kasarlabs/bonsai-go/database"
	"github.com/kasarlabs/bonsai-go/trie"
)

// ClassTrie is the write handler of the classes trie: the poseidon trie
// mapping class hashes to their leaf hashes. It holds the single-writer
// guard for the classes namespace until ApplyChanges or Discard.
type ClassTrie struct {
	manager  *Manager
	tx       *database.Transaction
	trie     *trie.Trie
	life     lifecycle
	released bool
}

// ClassTrie opens the write handler for the classes trie against the
// snapshot retained at the id.
func (m *Manager) ClassTrie(id database.BasicId) (*ClassTrie, error) {
	if err := m.guard.acquire("classes"); err != nil {
		return nil, err
	}
	tx, err := transaction(m.classes, id)
	if err != nil {
		m.guard.release("classes")
		return nil, err
	}
	return &ClassTrie{
		manager: m,
		tx:      tx,
		trie:    trie.New(tx, nil, crypto.Poseidon, TrieHeight),
	}, nil
}

// Init attaches the trie's root record, creating it on first use.
func (h *ClassTrie) Init() error {
	if err := h.life.require("Init", phaseEmpty); err != nil {
		return err
	}
	if err := h.trie.Init(); err != nil {
		return err
	}
	h.life.advance(phaseInitialized)
	return nil
}

// Insert stages a write of the leaf hash under the class hash.
func (h *ClassTrie) Insert(classHash, leafHash *felt.Felt) error {
	if err := h.life.require("Insert", phaseInitialized, phaseStaged); err != nil {
		return err
	}
	if err := h.trie.Put(classHash, leafHash); err != nil {
		return err
	}
	h.life.advance(phaseStaged)
	return nil
}

// Update stages a batch of leaf writes.
func (h *ClassTrie) Update(updates []trie.Update) error {
	for i := range updates {
		if err := h.Insert(&updates[i].Key, &updates[i].Value); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the committed leaf hash for the class hash as seen by this
// handler's transaction.
func (h *ClassTrie) Get(classHash *felt.Felt) (felt.Felt, error) {
	return h.trie.Get(classHash)
}

// Commit applies all staged writes inside the transaction.
func (h *ClassTrie) Commit(version uint64) error {
	if err := h.life.require("Commit", phaseInitialized, phaseStaged); err != nil {
		return err
	}
	if err := h.trie.Commit(version); err != nil {
		return err
	}
	h.life.advance(phaseCommitted)
	return nil
}

// Root returns the root hash as seen by this handler's transaction.
func (h *ClassTrie) Root() (felt.Felt, error) {
	return h.trie.Root()
}

// releaseGuard hands the classes writer guard back exactly once.
func (h *ClassTrie) releaseGuard() {
	if !h.released {
		h.released = true
		h.manager.guard.release("classes")
	}
}

// ApplyChanges merges the transaction into the live store and releases the
// classes writer guard.
func (h *ClassTrie) ApplyChanges() error {
	if err := h.life.require("ApplyChanges", phaseCommitted); err != nil {
		return err
	}
	defer h.releaseGuard()
	if err := h.manager.classes.Merge(h.tx); err != nil {
		return err
	}
	h.life.advance(phaseMerged)
	return nil
}

// Discard abandons the handler without touching the live store, releasing
// the writer guard. Safe to call in any phase, and after ApplyChanges.
func (h *ClassTrie) Discard() {
	h.releaseGuard()
	h.life.advance(phaseMerged)
}

// ClassTrieReader is the read-only view of the classes trie over the live
// store.
type ClassTrieReader struct {
	trie *trie.Trie
}

// ClassTrieReader opens a read handler over the live classes trie.
func (m *Manager) ClassTrieReader() *ClassTrieReader {
	return &ClassTrieReader{trie: trie.New(m.classes, nil, crypto.Poseidon, TrieHeight)}
}

// Root returns the committed root hash of the classes trie.
func (r *ClassTrieReader) Root() (felt.Felt, error) {
	return r.trie.Root()
}

// RootAt returns the root hash journaled by the commit at the version.
func (r *ClassTrieReader) RootAt(version uint64) (felt.Felt, bool, error) {
	return r.trie.RootAt(version)
}

// Get returns the committed leaf hash for the class hash.
func (r *ClassTrieReader) Get(classHash *felt.Felt) (felt.Felt, error) {
	return r.trie.Get(classHash)
}

// VerifyIntegrity recomputes the classes trie root from the persisted
// nodes and checks it against the stored root record.
func (r *ClassTrieReader) VerifyIntegrity() (felt.Felt, error) {
	return r.trie.VerifyIntegrity()
}
