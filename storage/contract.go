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
	"fmt"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/kasarlabs/bonsai-go/common"
	"github.com/kasarlabs/bonsai-go/database"
	"github.com/kasarlabs/bonsai-go/trie"
)

// contractInfoTag prefixes contract metadata records in the contracts flat
// column. The resulting 33-byte keys cannot collide with 32-byte leaf keys
// or the 4-byte root record.
const contractInfoTag = 'm'

// ContractInfo is the metadata recorded per deployed contract alongside
// the contracts trie: the class hash the contract was deployed with and
// its current nonce.
type ContractInfo struct {
	ClassHash felt.Felt
	Nonce     felt.Felt
}

func contractInfoKey(address *felt.Felt) []byte {
	addr := address.Bytes()
	out := make([]byte, 0, 1+len(addr))
	out = append(out, contractInfoTag)
	return append(out, addr[:]...)
}

func (i ContractInfo) encode() []byte {
	classHash, nonce := i.ClassHash.Bytes(), i.Nonce.Bytes()
	out := make([]byte, 0, len(classHash)+len(nonce))
	out = append(out, classHash[:]...)
	return append(out, nonce[:]...)
}

func decodeContractInfo(data []byte) (ContractInfo, error) {
	if len(data) != 2*felt.Bytes {
		return ContractInfo{}, fmt.Errorf("%w: contract info record of %d bytes", common.ErrValueOutOfRange, len(data))
	}
	var info ContractInfo
	info.ClassHash.SetBytes(data[:felt.Bytes])
	info.Nonce.SetBytes(data[felt.Bytes:])
	return info, nil
}

// ContractTrie is the write handler of the contracts trie: the pedersen
// trie mapping contract addresses to their state leaves. It holds the
// single-writer guard for the contracts namespace until ApplyChanges or
// Discard.
type ContractTrie struct {
	manager  *Manager
	tx       *database.Transaction
	trie     *trie.Trie
	life     lifecycle
	released bool
}

// ContractTrie opens the write handler for the contracts trie against the
// snapshot retained at the id. It fails if another writer holds the
// contracts namespace or no snapshot exists at the id.
func (m *Manager) ContractTrie(id database.BasicId) (*ContractTrie, error) {
	if err := m.guard.acquire("contracts"); err != nil {
		return nil, err
	}
	tx, err := transaction(m.contracts, id)
	if err != nil {
		m.guard.release("contracts")
		return nil, err
	}
	return &ContractTrie{
		manager: m,
		tx:      tx,
		trie:    trie.New(tx, nil, crypto.Pedersen, TrieHeight),
	}, nil
}

// Init attaches the trie's root record, creating it on first use.
func (h *ContractTrie) Init() error {
	if err := h.life.require("Init", phaseEmpty); err != nil {
		return err
	}
	if err := h.trie.Init(); err != nil {
		return err
	}
	h.life.advance(phaseInitialized)
	return nil
}

// Insert stages a write of the leaf hash under the contract address.
func (h *ContractTrie) Insert(address, leafHash *felt.Felt) error {
	if err := h.life.require("Insert", phaseInitialized, phaseStaged); err != nil {
		return err
	}
	if err := h.trie.Put(address, leafHash); err != nil {
		return err
	}
	h.life.advance(phaseStaged)
	return nil
}

// Update stages a batch of leaf writes.
func (h *ContractTrie) Update(updates []trie.Update) error {
	for i := range updates {
		if err := h.Insert(&updates[i].Key, &updates[i].Value); err != nil {
			return err
		}
	}
	return nil
}

// PutContractInfo records the contract's metadata in the same transaction
// as the trie writes, so it becomes visible atomically with them.
func (h *ContractTrie) PutContractInfo(address *felt.Felt, info ContractInfo) error {
	if err := h.life.require("PutContractInfo", phaseInitialized, phaseStaged); err != nil {
		return err
	}
	_, err := h.tx.Insert(trie.FlatKey(contractInfoKey(address)), info.encode(), nil)
	return err
}

// ContractInfo returns the metadata of the contract as seen by this
// handler's transaction, including records staged through PutContractInfo.
func (h *ContractTrie) ContractInfo(address *felt.Felt) (ContractInfo, bool, error) {
	data, exists, err := h.tx.Get(trie.FlatKey(contractInfoKey(address)))
	if err != nil || !exists {
		return ContractInfo{}, false, err
	}
	info, err := decodeContractInfo(data)
	return info, err == nil, err
}

// Get returns the committed leaf hash for the address as seen by this
// handler's transaction.
func (h *ContractTrie) Get(address *felt.Felt) (felt.Felt, error) {
	return h.trie.Get(address)
}

// Commit applies all staged writes inside the transaction and recomputes
// the trie's hashes. The live store is untouched until ApplyChanges.
func (h *ContractTrie) Commit(version uint64) error {
	if err := h.life.require("Commit", phaseInitialized, phaseStaged); err != nil {
		return err
	}
	if err := h.trie.Commit(version); err != nil {
		return err
	}
	h.life.advance(phaseCommitted)
	return nil
}

// Root returns the root hash as seen by this handler's transaction. After
// Commit it reflects the staged writes.
func (h *ContractTrie) Root() (felt.Felt, error) {
	return h.trie.Root()
}

// releaseGuard hands the contracts writer guard back exactly once; later
// calls on the same handler are no-ops so a discarded handler can never
// clear the guard of a successor writer.
func (h *ContractTrie) releaseGuard() {
	if !h.released {
		h.released = true
		h.manager.guard.release("contracts")
	}
}

// ApplyChanges merges the transaction into the live store and releases the
// contracts writer guard. On a merge conflict the guard is still released
// and the caller must restart from a fresh snapshot.
func (h *ContractTrie) ApplyChanges() error {
	if err := h.life.require("ApplyChanges", phaseCommitted); err != nil {
		return err
	}
	defer h.releaseGuard()
	if err := h.manager.contracts.Merge(h.tx); err != nil {
		return err
	}
	h.life.advance(phaseMerged)
	return nil
}

// Discard abandons the handler without touching the live store, releasing
// the writer guard. Safe to call in any phase, and after ApplyChanges.
func (h *ContractTrie) Discard() {
	h.releaseGuard()
	h.life.advance(phaseMerged)
}

// ContractTrieReader is the read-only view of the contracts trie over the
// live store. It requires no guard and sees only merged state.
type ContractTrieReader struct {
	db   *database.Database
	trie *trie.Trie
}

// ContractTrieReader opens a read handler over the live contracts trie.
func (m *Manager) ContractTrieReader() *ContractTrieReader {
	return &ContractTrieReader{
		db:   m.contracts,
		trie: trie.New(m.contracts, nil, crypto.Pedersen, TrieHeight),
	}
}

// Root returns the committed root hash of the contracts trie.
func (r *ContractTrieReader) Root() (felt.Felt, error) {
	return r.trie.Root()
}

// RootAt returns the root hash journaled by the commit at the version.
func (r *ContractTrieReader) RootAt(version uint64) (felt.Felt, bool, error) {
	return r.trie.RootAt(version)
}

// Get returns the committed leaf hash for the contract address.
func (r *ContractTrieReader) Get(address *felt.Felt) (felt.Felt, error) {
	return r.trie.Get(address)
}

// ContractInfo returns the committed metadata of the contract.
func (r *ContractTrieReader) ContractInfo(address *felt.Felt) (ContractInfo, bool, error) {
	data, exists, err := r.db.Get(trie.FlatKey(contractInfoKey(address)))
	if err != nil || !exists {
		return ContractInfo{}, false, err
	}
	info, err := decodeContractInfo(data)
	return info, err == nil, err
}

// VerifyIntegrity recomputes the contracts trie root from the persisted
// nodes and checks it against the stored root record.
func (r *ContractTrieReader) VerifyIntegrity() (felt.Felt, error) {
	return r.trie.VerifyIntegrity()
}
