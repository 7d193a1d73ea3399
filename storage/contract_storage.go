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
	"bytes"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/kasarlabs/bonsai-go/database"
	"github.com/kasarlabs/bonsai-go/trie"
	"golang.org/x/exp/slices"
)

// ContractStorage is the write handler of the per-contract storage tries.
// All storage tries share one namespace, keyed by contract address, and
// all writes of one block land in a single transaction so they merge
// atomically. It holds the single-writer guard for the storage namespace
// until ApplyChanges or Discard.
type ContractStorage struct {
	manager  *Manager
	tx       *database.Transaction
	tries    map[felt.Felt]*contractStorageTrie
	released bool
}

type contractStorageTrie struct {
	trie *trie.Trie
	life lifecycle
}

// ContractStorage opens the write handler for the storage tries against
// the snapshot retained at the id.
func (m *Manager) ContractStorage(id database.BasicId) (*ContractStorage, error) {
	if err := m.guard.acquire("storage"); err != nil {
		return nil, err
	}
	tx, err := transaction(m.storage, id)
	if err != nil {
		m.guard.release("storage")
		return nil, err
	}
	return &ContractStorage{
		manager: m,
		tx:      tx,
		tries:   make(map[felt.Felt]*contractStorageTrie),
	}, nil
}

func (h *ContractStorage) storageTrie(address *felt.Felt) *contractStorageTrie {
	if st, ok := h.tries[*address]; ok {
		return st
	}
	owner := address.Bytes()
	st := &contractStorageTrie{trie: trie.New(h.tx, owner[:], crypto.Pedersen, TrieHeight)}
	h.tries[*address] = st
	return st
}

// Init attaches the storage trie of the contract, creating its root record
// on first use. Each touched contract must be initialized before its first
// write.
func (h *ContractStorage) Init(address *felt.Felt) error {
	st := h.storageTrie(address)
	if err := st.life.require("Init", phaseEmpty); err != nil {
		return err
	}
	if err := st.trie.Init(); err != nil {
		return err
	}
	st.life.advance(phaseInitialized)
	return nil
}

// Insert stages a write of the value under the storage key of the contract.
func (h *ContractStorage) Insert(address, key, value *felt.Felt) error {
	st := h.storageTrie(address)
	if err := st.life.require("Insert", phaseInitialized, phaseStaged); err != nil {
		return err
	}
	if err := st.trie.Put(key, value); err != nil {
		return err
	}
	st.life.advance(phaseStaged)
	return nil
}

// Update stages a batch of storage writes for the contract.
func (h *ContractStorage) Update(address *felt.Felt, updates []trie.Update) error {
	for i := range updates {
		if err := h.Insert(address, &updates[i].Key, &updates[i].Value); err != nil {
			return err
		}
	}
	return nil
}

// Get returns the committed storage value as seen by this handler's
// transaction.
func (h *ContractStorage) Get(address, key *felt.Felt) (felt.Felt, error) {
	return h.storageTrie(address).trie.Get(key)
}

// Commit applies the staged writes of every touched contract inside the
// transaction, in deterministic address order.
func (h *ContractStorage) Commit(version uint64) error {
	addresses := make([]felt.Felt, 0, len(h.tries))
	for address := range h.tries {
		addresses = append(addresses, address)
	}
	slices.SortFunc(addresses, func(a, b felt.Felt) int {
		ab, bb := a.Bytes(), b.Bytes()
		return bytes.Compare(ab[:], bb[:])
	})
	for _, address := range addresses {
		st := h.tries[address]
		if err := st.life.require("Commit", phaseInitialized, phaseStaged); err != nil {
			return err
		}
		if err := st.trie.Commit(version); err != nil {
			return err
		}
		st.life.advance(phaseCommitted)
	}
	return nil
}

// Root returns the root hash of the contract's storage trie as seen by
// this handler's transaction. After Commit it reflects the staged writes.
func (h *ContractStorage) Root(address *felt.Felt) (felt.Felt, error) {
	return h.storageTrie(address).trie.Root()
}

// releaseGuard hands the storage writer guard back exactly once.
func (h *ContractStorage) releaseGuard() {
	if !h.released {
		h.released = true
		h.manager.guard.release("storage")
	}
}

// ApplyChanges merges the transaction into the live store and releases the
// storage writer guard.
func (h *ContractStorage) ApplyChanges() error {
	for _, st := range h.tries {
		if err := st.life.require("ApplyChanges", phaseCommitted); err != nil {
			return err
		}
	}
	defer h.releaseGuard()
	if err := h.manager.storage.Merge(h.tx); err != nil {
		return err
	}
	for _, st := range h.tries {
		st.life.advance(phaseMerged)
	}
	return nil
}

// Discard abandons the handler without touching the live store, releasing
// the writer guard. Safe to call in any phase, and after ApplyChanges.
func (h *ContractStorage) Discard() {
	h.releaseGuard()
	for _, st := range h.tries {
		st.life.advance(phaseMerged)
	}
}

// ContractStorageReader is the read-only view of the storage tries over
// the live store.
type ContractStorageReader struct {
	db *database.Database
}

// ContractStorageReader opens a read handler over the live storage tries.
func (m *Manager) ContractStorageReader() *ContractStorageReader {
	return &ContractStorageReader{db: m.storage}
}

func (r *ContractStorageReader) storageTrie(address *felt.Felt) *trie.Trie {
	owner := address.Bytes()
	return trie.New(r.db, owner[:], crypto.Pedersen, TrieHeight)
}

// Root returns the committed root hash of the contract's storage trie.
func (r *ContractStorageReader) Root(address *felt.Felt) (felt.Felt, error) {
	return r.storageTrie(address).Root()
}

// RootAt returns the root hash journaled for the contract by the commit at
// the version.
func (r *ContractStorageReader) RootAt(address *felt.Felt, version uint64) (felt.Felt, bool, error) {
	return r.storageTrie(address).RootAt(version)
}

// Get returns the committed storage value of the contract.
func (r *ContractStorageReader) Get(address, key *felt.Felt) (felt.Felt, error) {
	return r.storageTrie(address).Get(key)
}
