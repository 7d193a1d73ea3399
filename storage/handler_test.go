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
	"errors"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/kasarlabs/bonsai-go/backend"
	"github.com/kasarlabs/bonsai-go/common"
	"github.com/kasarlabs/bonsai-go/database"
	"github.com/kasarlabs/bonsai-go/trie"
)

func newTestManager(t *testing.T) *Manager {
	t.Helper()
	store, err := backend.OpenKeyedStore(t.TempDir())
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return NewManager(store, database.Config{})
}

func snapshotAt(t *testing.T, manager *Manager, id database.BasicId) {
	t.Helper()
	if err := manager.Snapshot(id); err != nil {
		t.Fatalf("snapshot failed: %v", err)
	}
}

func uintFelt(v uint64) *felt.Felt {
	return new(felt.Felt).SetUint64(v)
}

func TestContractTrie_FullLifecycle(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	handler, err := manager.ContractTrie(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	if err := handler.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	address, leaf := uintFelt(1000), uintFelt(77)
	if err := handler.Insert(address, leaf); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	info := ContractInfo{ClassHash: *uintFelt(5), Nonce: *uintFelt(1)}
	if err := handler.PutContractInfo(address, info); err != nil {
		t.Fatalf("put contract info failed: %v", err)
	}
	if err := handler.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// nothing is live before the merge
	if root, _ := manager.ContractTrieReader().Root(); !root.IsZero() {
		t.Fatalf("live root must stay zero before ApplyChanges, got %s", root.String())
	}

	if err := handler.ApplyChanges(); err != nil {
		t.Fatalf("apply changes failed: %v", err)
	}

	reader := manager.ContractTrieReader()
	root, err := reader.Root()
	if err != nil || root.IsZero() {
		t.Errorf("live root should be set after the merge, got %s err=%v", root.String(), err)
	}
	value, err := reader.Get(address)
	if err != nil || !value.Equal(leaf) {
		t.Errorf("expected leaf %s, got %s err=%v", leaf.String(), value.String(), err)
	}
	persisted, found, err := reader.ContractInfo(address)
	if err != nil || !found {
		t.Fatalf("contract info missing, found=%v err=%v", found, err)
	}
	if !persisted.ClassHash.Equal(&info.ClassHash) || !persisted.Nonce.Equal(&info.Nonce) {
		t.Errorf("contract info differs after merge")
	}
}

func TestContractTrie_OutOfOrderCallsAreRejected(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	handler, err := manager.ContractTrie(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	defer handler.Discard()

	if err := handler.Insert(uintFelt(1), uintFelt(2)); !errors.Is(err, common.ErrInvariantViolation) {
		t.Errorf("insert before init should fail, got %v", err)
	}
	if err := handler.Commit(0); !errors.Is(err, common.ErrInvariantViolation) {
		t.Errorf("commit before init should fail, got %v", err)
	}
	if err := handler.ApplyChanges(); !errors.Is(err, common.ErrInvariantViolation) {
		t.Errorf("apply changes before commit should fail, got %v", err)
	}

	if err := handler.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := handler.Init(); !errors.Is(err, common.ErrInvariantViolation) {
		t.Errorf("double init should fail, got %v", err)
	}
	if err := handler.ApplyChanges(); !errors.Is(err, common.ErrInvariantViolation) {
		t.Errorf("apply changes before commit should fail, got %v", err)
	}

	if err := handler.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := handler.Insert(uintFelt(1), uintFelt(2)); !errors.Is(err, common.ErrInvariantViolation) {
		t.Errorf("insert after commit should fail, got %v", err)
	}
}

func TestContractTrie_SingleWriter(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	first, err := manager.ContractTrie(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	if _, err := manager.ContractTrie(0); !errors.Is(err, common.ErrInvariantViolation) {
		t.Fatalf("second writer should be rejected, got %v", err)
	}

	// other namespaces are independent
	classes, err := manager.ClassTrie(0)
	if err != nil {
		t.Fatalf("classes writer should be independent: %v", err)
	}
	classes.Discard()

	first.Discard()
	second, err := manager.ContractTrie(0)
	if err != nil {
		t.Fatalf("writer should be available after discard: %v", err)
	}
	second.Discard()
}

func TestContractTrie_RequiresRetainedSnapshot(t *testing.T) {
	manager := newTestManager(t)

	if _, err := manager.ContractTrie(42); !errors.Is(err, common.ErrInvariantViolation) {
		t.Fatalf("handler without snapshot should fail, got %v", err)
	}
	// the guard must have been released by the failed open
	snapshotAt(t, manager, 42)
	handler, err := manager.ContractTrie(42)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	handler.Discard()
}

func TestContractStorage_PerContractLifecycle(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	handler, err := manager.ContractStorage(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	one, two := uintFelt(100), uintFelt(200)

	if err := handler.Insert(one, uintFelt(1), uintFelt(11)); !errors.Is(err, common.ErrInvariantViolation) {
		t.Fatalf("insert before per-contract init should fail, got %v", err)
	}
	for _, address := range []*felt.Felt{one, two} {
		if err := handler.Init(address); err != nil {
			t.Fatalf("init failed: %v", err)
		}
	}
	if err := handler.Insert(one, uintFelt(1), uintFelt(11)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := handler.Insert(two, uintFelt(1), uintFelt(22)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := handler.Commit(1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	rootOne, err := handler.Root(one)
	if err != nil || rootOne.IsZero() {
		t.Fatalf("expected committed root for contract one, got %s err=%v", rootOne.String(), err)
	}
	rootTwo, _ := handler.Root(two)
	if rootOne.Equal(&rootTwo) {
		t.Errorf("different storage content should yield different roots")
	}

	if err := handler.ApplyChanges(); err != nil {
		t.Fatalf("apply changes failed: %v", err)
	}

	reader := manager.ContractStorageReader()
	value, err := reader.Get(one, uintFelt(1))
	if err != nil || !value.Equal(uintFelt(11)) {
		t.Errorf("expected 11, got %s err=%v", value.String(), err)
	}
	liveRoot, err := reader.Root(one)
	if err != nil || !liveRoot.Equal(&rootOne) {
		t.Errorf("live root should match the handler root after merge")
	}
	journaled, found, err := reader.RootAt(one, 1)
	if err != nil || !found || !journaled.Equal(&rootOne) {
		t.Errorf("expected journaled root at version 1, found=%v err=%v", found, err)
	}
}

func TestContractStorage_DiscardAfterApplyLeavesSuccessorGuard(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	first, err := manager.ContractStorage(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	address := uintFelt(100)
	if err := first.Init(address); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := first.Insert(address, uintFelt(1), uintFelt(11)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := first.Commit(1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := first.ApplyChanges(); err != nil {
		t.Fatalf("apply changes failed: %v", err)
	}

	second, err := manager.ContractStorage(0)
	if err != nil {
		t.Fatalf("writer should be available after apply changes: %v", err)
	}

	// a late discard of the merged handler must not clear the live guard
	first.Discard()
	if _, err := manager.ContractStorage(0); !errors.Is(err, common.ErrInvariantViolation) {
		t.Fatalf("guard of the live writer was cleared, got %v", err)
	}

	second.Discard()
	third, err := manager.ContractStorage(0)
	if err != nil {
		t.Fatalf("writer should be available after discard: %v", err)
	}
	third.Discard()
}

func TestContractTrie_MergeConflictReleasesGuardOnce(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	handler, err := manager.ContractTrie(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	if err := handler.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := handler.Insert(uintFelt(1), uintFelt(2)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := handler.Commit(1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// touch the root record the handler observed, so the merge conflicts
	rootBytes := uintFelt(9).Bytes()
	if _, err := manager.contracts.Insert(trie.FlatKey([]byte("root")), rootBytes[:], nil); err != nil {
		t.Fatalf("live insert failed: %v", err)
	}
	if err := handler.ApplyChanges(); !errors.Is(err, backend.ErrTransactionConflict) {
		t.Fatalf("expected a transaction conflict, got %v", err)
	}

	// the failed apply released the guard; a successor can write
	second, err := manager.ContractTrie(0)
	if err != nil {
		t.Fatalf("writer should be available after the failed apply: %v", err)
	}

	// discarding the failed handler must not release the guard again
	handler.Discard()
	if _, err := manager.ContractTrie(0); !errors.Is(err, common.ErrInvariantViolation) {
		t.Fatalf("guard of the live writer was cleared, got %v", err)
	}
	second.Discard()
}

func TestClassTrie_DiscardAfterApplyLeavesSuccessorGuard(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	first, err := manager.ClassTrie(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	if err := first.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := first.Commit(1); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := first.ApplyChanges(); err != nil {
		t.Fatalf("apply changes failed: %v", err)
	}

	second, err := manager.ClassTrie(0)
	if err != nil {
		t.Fatalf("writer should be available after apply changes: %v", err)
	}
	first.Discard()
	if _, err := manager.ClassTrie(0); !errors.Is(err, common.ErrInvariantViolation) {
		t.Fatalf("guard of the live writer was cleared, got %v", err)
	}
	second.Discard()
}

func TestClassTrie_Lifecycle(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	handler, err := manager.ClassTrie(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	if err := handler.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := handler.Insert(uintFelt(9), uintFelt(90)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := handler.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := handler.ApplyChanges(); err != nil {
		t.Fatalf("apply changes failed: %v", err)
	}

	reader := manager.ClassTrieReader()
	value, err := reader.Get(uintFelt(9))
	if err != nil || !value.Equal(uintFelt(90)) {
		t.Errorf("expected 90, got %s err=%v", value.String(), err)
	}
	if _, err := reader.VerifyIntegrity(); err != nil {
		t.Errorf("integrity check failed: %v", err)
	}
}

func TestManager_NamespacesShareOneStore(t *testing.T) {
	manager := newTestManager(t)
	snapshotAt(t, manager, 0)

	contracts, err := manager.ContractTrie(0)
	if err != nil {
		t.Fatalf("failed to open handler: %v", err)
	}
	if err := contracts.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := contracts.Insert(uintFelt(3), uintFelt(33)); err != nil {
		t.Fatalf("insert failed: %v", err)
	}
	if err := contracts.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	if err := contracts.ApplyChanges(); err != nil {
		t.Fatalf("apply changes failed: %v", err)
	}

	// the same key in the classes namespace stays unset
	value, err := manager.ClassTrieReader().Get(uintFelt(3))
	if err != nil || !value.IsZero() {
		t.Errorf("classes namespace must not see contract leaves, got %s err=%v", value.String(), err)
	}
}
