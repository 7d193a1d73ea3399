// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package commitment

import (
	"fmt"
	"runtime"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/ethereum/go-ethereum/log"
	"github.com/kasarlabs/bonsai-go/common"
	"github.com/kasarlabs/bonsai-go/database"
	"github.com/kasarlabs/bonsai-go/storage"
	"github.com/kasarlabs/bonsai-go/trie"
	"golang.org/x/sync/errgroup"
)

// Domain separators of the global state commitment and the class leaf
// hash, as defined by the Starknet protocol.
var (
	stateVersion     = new(felt.Felt).SetBytes([]byte("STARKNET_STATE_V0"))
	classLeafVersion = new(felt.Felt).SetBytes([]byte("CONTRACT_CLASS_LEAF_V0"))
)

// ContractLeafHash is the contracts-trie leaf of a contract:
// pedersen(pedersen(pedersen(class_hash, storage_root), nonce), 0).
func ContractLeafHash(classHash, storageRoot, nonce *felt.Felt) felt.Felt {
	zero := &felt.Felt{}
	return *crypto.Pedersen(crypto.Pedersen(crypto.Pedersen(classHash, storageRoot), nonce), zero)
}

// ClassLeafHash is the classes-trie leaf of a declared class:
// poseidon(CONTRACT_CLASS_LEAF_V0, compiled_class_hash).
func ClassLeafHash(compiledClassHash *felt.Felt) felt.Felt {
	return *crypto.Poseidon(classLeafVersion, compiledClassHash)
}

// StateCommitment composes the global state root from the two trie roots:
// poseidon(STARKNET_STATE_V0, contracts_root, classes_root). When no class
// has ever been declared the commitment degenerates to the contracts root.
func StateCommitment(contractsRoot, classesRoot *felt.Felt) felt.Felt {
	if classesRoot.IsZero() {
		return *contractsRoot
	}
	return *crypto.PoseidonArray(stateVersion, contractsRoot, classesRoot)
}

// Engine folds per-block state diffs into the state tries and produces the
// resulting state root. A single Engine instance processes blocks
// sequentially; within a block the contract and class branches run in
// parallel, as does the per-contract leaf computation.
type Engine struct {
	manager *Manager
	workers int
}

// Manager is the trie handler surface the engine drives.
type Manager = storage.Manager

// NewEngine creates an engine over the given trie manager. workers bounds
// the per-contract leaf-hash parallelism; zero selects GOMAXPROCS.
func NewEngine(manager *Manager, workers int) *Engine {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Engine{manager: manager, workers: workers}
}

// UpdateStateRoot applies the block's state diff to all tries and returns
// the new global state root. Contract and class commitments are computed
// concurrently; the result only depends on the diff's content, never on
// iteration or scheduling order.
func (e *Engine) UpdateStateRoot(diff *StateDiff, blockNumber uint64) (felt.Felt, error) {
	if err := e.manager.Snapshot(database.BasicId(blockNumber)); err != nil {
		return felt.Felt{}, err
	}

	var contractsRoot, classesRoot felt.Felt
	var g errgroup.Group
	g.Go(func() error {
		var err error
		contractsRoot, err = e.updateContracts(diff, blockNumber)
		return err
	})
	g.Go(func() error {
		var err error
		classesRoot, err = e.updateClasses(diff, blockNumber)
		return err
	})
	if err := g.Wait(); err != nil {
		return felt.Felt{}, err
	}

	root := StateCommitment(&contractsRoot, &classesRoot)
	log.Debug("Updated state root", "block", blockNumber,
		"contracts", contractsRoot.String(), "classes", classesRoot.String(),
		"root", root.String())
	return root, nil
}

// updateContracts folds the storage diffs into the per-contract storage
// tries, recomputes the leaf of every touched contract, and commits the
// contracts trie.
func (e *Engine) updateContracts(diff *StateDiff, blockNumber uint64) (felt.Felt, error) {
	if err := e.updateContractStorage(diff, blockNumber); err != nil {
		return felt.Felt{}, err
	}

	addresses := diff.touchedContracts()
	leaves := make([]trie.Update, len(addresses))
	infos := make([]storage.ContractInfo, len(addresses))

	contracts := e.manager.ContractTrieReader()
	storageReader := e.manager.ContractStorageReader()

	var g errgroup.Group
	g.SetLimit(e.workers)
	for i := range addresses {
		g.Go(func() error {
			address := addresses[i]
			info, err := e.contractInfo(contracts, diff, &address)
			if err != nil {
				return err
			}
			storageRoot, err := storageReader.Root(&address)
			if err != nil {
				return err
			}
			infos[i] = info
			leaves[i] = trie.Update{
				Key:   address,
				Value: ContractLeafHash(&info.ClassHash, &storageRoot, &info.Nonce),
			}
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return felt.Felt{}, err
	}

	handler, err := e.manager.ContractTrie(database.BasicId(blockNumber))
	if err != nil {
		return felt.Felt{}, err
	}
	defer handler.Discard()
	if err := handler.Init(); err != nil {
		return felt.Felt{}, err
	}
	if err := handler.Update(leaves); err != nil {
		return felt.Felt{}, err
	}
	for i := range addresses {
		if err := handler.PutContractInfo(&addresses[i], infos[i]); err != nil {
			return felt.Felt{}, err
		}
	}
	if err := handler.Commit(blockNumber + 1); err != nil {
		return felt.Felt{}, err
	}
	root, err := handler.Root()
	if err != nil {
		return felt.Felt{}, err
	}
	return root, handler.ApplyChanges()
}

// updateContractStorage commits the storage tries of all contracts with
// storage diffs. Like all trie commits of block N, they are journaled at
// version N+1.
func (e *Engine) updateContractStorage(diff *StateDiff, blockNumber uint64) error {
	if len(diff.StorageDiffs) == 0 {
		return nil
	}
	handler, err := e.manager.ContractStorage(database.BasicId(blockNumber))
	if err != nil {
		return err
	}
	defer handler.Discard()
	for _, address := range sortedFelts(diff.StorageDiffs) {
		if err := handler.Init(&address); err != nil {
			return err
		}
		slots := diff.StorageDiffs[address]
		for _, key := range sortedFelts(slots) {
			value := slots[key]
			if err := handler.Insert(&address, &key, &value); err != nil {
				return err
			}
		}
	}
	if err := handler.Commit(blockNumber + 1); err != nil {
		return err
	}
	return handler.ApplyChanges()
}

// contractInfo resolves the class hash and nonce of a touched contract:
// values in the diff win, otherwise the persisted record applies. A
// contract without a class hash in either place cannot exist.
func (e *Engine) contractInfo(contracts *storage.ContractTrieReader, diff *StateDiff, address *felt.Felt) (storage.ContractInfo, error) {
	recorded, found, err := contracts.ContractInfo(address)
	if err != nil {
		return storage.ContractInfo{}, err
	}

	info := recorded
	if classHash, ok := diff.DeployedContracts[*address]; ok {
		info.ClassHash = classHash
	} else if !found {
		return storage.ContractInfo{}, fmt.Errorf(
			"%w: contract %s has neither a deployed class hash nor a persisted record",
			common.ErrInvariantViolation, address.String())
	}
	if nonce, ok := diff.Nonces[*address]; ok {
		info.Nonce = nonce
	}
	return info, nil
}

// updateClasses folds the declared classes into the classes trie and
// commits it.
func (e *Engine) updateClasses(diff *StateDiff, blockNumber uint64) (felt.Felt, error) {
	handler, err := e.manager.ClassTrie(database.BasicId(blockNumber))
	if err != nil {
		return felt.Felt{}, err
	}
	defer handler.Discard()
	if err := handler.Init(); err != nil {
		return felt.Felt{}, err
	}
	for _, classHash := range sortedFelts(diff.DeclaredClasses) {
		compiled := diff.DeclaredClasses[classHash]
		leaf := ClassLeafHash(&compiled)
		if err := handler.Insert(&classHash, &leaf); err != nil {
			return felt.Felt{}, err
		}
	}
	if err := handler.Commit(blockNumber + 1); err != nil {
		return felt.Felt{}, err
	}
	root, err := handler.Root()
	if err != nil {
		return felt.Felt{}, err
	}
	return root, handler.ApplyChanges()
}

// StateRoot returns the current global state root from the committed trie
// roots, without applying any diff.
func (e *Engine) StateRoot() (felt.Felt, error) {
	contractsRoot, err := e.manager.ContractTrieReader().Root()
	if err != nil {
		return felt.Felt{}, err
	}
	classesRoot, err := e.manager.ClassTrieReader().Root()
	if err != nil {
		return felt.Felt{}, err
	}
	return StateCommitment(&contractsRoot, &classesRoot), nil
}
