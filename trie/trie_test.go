// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package trie_test

import (
	"errors"
	"testing"

	"github.com/NethermindEth/juno/core/crypto"
	"github.com/NethermindEth/juno/core/felt"
	"github.com/kasarlabs/bonsai-go/backend"
	"github.com/kasarlabs/bonsai-go/common"
	"github.com/kasarlabs/bonsai-go/database"
	"github.com/kasarlabs/bonsai-go/trie"
	"go.uber.org/mock/gomock"
)

const testHeight = 251

func openTestDb(t *testing.T, dir string) *database.Database {
	t.Helper()
	store, err := backend.OpenKeyedStore(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(); err != nil {
			t.Errorf("failed to close store: %v", err)
		}
	})
	return database.New(store, database.ContractsMapping, database.Config{})
}

func newTestTrie(t *testing.T) *trie.Trie {
	t.Helper()
	tr := trie.New(openTestDb(t, t.TempDir()), nil, crypto.Pedersen, testHeight)
	if err := tr.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	return tr
}

func uintFelt(v uint64) *felt.Felt {
	return new(felt.Felt).SetUint64(v)
}

func TestTrie_EmptyRootIsZero(t *testing.T) {
	tr := newTestTrie(t)
	root, err := tr.Root()
	if err != nil {
		t.Fatalf("root failed: %v", err)
	}
	if !root.IsZero() {
		t.Errorf("empty trie should have root zero, got %s", root.String())
	}
}

func TestTrie_SingleLeafRoot(t *testing.T) {
	tr := newTestTrie(t)
	key, value := uintFelt(0xcafe), uintFelt(0xbeef)

	if err := tr.Put(key, value); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tr.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	// A single leaf hangs off one root edge spanning the whole key, so the
	// root is H(value, key) + height.
	expected := new(felt.Felt).Add(crypto.Pedersen(value, key), uintFelt(testHeight))
	root, err := tr.Root()
	if err != nil {
		t.Fatalf("root failed: %v", err)
	}
	if !root.Equal(expected) {
		t.Errorf("expected root %s, got %s", expected.String(), root.String())
	}
}

func TestTrie_GetSeesOnlyCommittedValues(t *testing.T) {
	tr := newTestTrie(t)
	key, value := uintFelt(7), uintFelt(42)

	if err := tr.Put(key, value); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	got, err := tr.Get(key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.IsZero() {
		t.Errorf("staged write must not be visible before commit, got %s", got.String())
	}

	if err := tr.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	got, err = tr.Get(key)
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !got.Equal(value) {
		t.Errorf("expected %s, got %s", value.String(), got.String())
	}

	unknown, err := tr.Get(uintFelt(9999))
	if err != nil {
		t.Fatalf("get failed: %v", err)
	}
	if !unknown.IsZero() {
		t.Errorf("unknown key should read as zero, got %s", unknown.String())
	}
}

func TestTrie_RootIsInsertionOrderIndependent(t *testing.T) {
	keys := []uint64{0, 1, 2, 3, 5, 8, 13, 1 << 20, 1<<20 + 1, 1 << 45}

	forward := newTestTrie(t)
	for _, k := range keys {
		if err := forward.Put(uintFelt(k), uintFelt(k+100)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := forward.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	backward := newTestTrie(t)
	for i := len(keys) - 1; i >= 0; i-- {
		if err := backward.Put(uintFelt(keys[i]), uintFelt(keys[i]+100)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := backward.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	forwardRoot, _ := forward.Root()
	backwardRoot, _ := backward.Root()
	if !forwardRoot.Equal(&backwardRoot) {
		t.Errorf("roots differ by insertion order: %s vs %s", forwardRoot.String(), backwardRoot.String())
	}
}

func TestTrie_IncrementalCommitsMatchSingleCommit(t *testing.T) {
	keys := []uint64{4, 6, 7, 1 << 10, 1<<10 + 3, 1 << 33}

	single := newTestTrie(t)
	for _, k := range keys {
		if err := single.Put(uintFelt(k), uintFelt(k*2)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := single.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	incremental := newTestTrie(t)
	for i, k := range keys {
		if err := incremental.Put(uintFelt(k), uintFelt(k*2)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		if err := incremental.Commit(uint64(i)); err != nil {
			t.Fatalf("commit %d failed: %v", i, err)
		}
	}

	singleRoot, _ := single.Root()
	incrementalRoot, _ := incremental.Root()
	if !singleRoot.Equal(&incrementalRoot) {
		t.Errorf("incremental commits diverged: %s vs %s", singleRoot.String(), incrementalRoot.String())
	}
}

func TestTrie_UpdateExistingLeaf(t *testing.T) {
	updated := newTestTrie(t)
	for _, v := range []uint64{1, 2} {
		if err := updated.Put(uintFelt(5), uintFelt(v)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		if err := updated.Put(uintFelt(17), uintFelt(v+10)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
		if err := updated.Commit(v); err != nil {
			t.Fatalf("commit failed: %v", err)
		}
	}

	fresh := newTestTrie(t)
	if err := fresh.Put(uintFelt(5), uintFelt(2)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := fresh.Put(uintFelt(17), uintFelt(12)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := fresh.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	updatedRoot, _ := updated.Root()
	freshRoot, _ := fresh.Root()
	if !updatedRoot.Equal(&freshRoot) {
		t.Errorf("updated trie should match a fresh trie with the final values: %s vs %s",
			updatedRoot.String(), freshRoot.String())
	}
}

func TestTrie_VerifyIntegrity(t *testing.T) {
	tr := newTestTrie(t)
	for _, k := range []uint64{3, 11, 12, 1 << 50, 1<<50 + 7} {
		if err := tr.Put(uintFelt(k), uintFelt(k+1)); err != nil {
			t.Fatalf("put failed: %v", err)
		}
	}
	if err := tr.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	recomputed, err := tr.VerifyIntegrity()
	if err != nil {
		t.Fatalf("integrity check failed: %v", err)
	}
	root, _ := tr.Root()
	if !recomputed.Equal(&root) {
		t.Errorf("recomputed root %s differs from stored root %s", recomputed.String(), root.String())
	}
}

func TestTrie_RootAtJournalsCommits(t *testing.T) {
	tr := newTestTrie(t)

	if err := tr.Put(uintFelt(1), uintFelt(10)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tr.Commit(4); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	rootAt4, _ := tr.Root()

	if err := tr.Put(uintFelt(2), uintFelt(20)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tr.Commit(5); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	rootAt5, _ := tr.Root()

	journaled, found, err := tr.RootAt(4)
	if err != nil || !found || !journaled.Equal(&rootAt4) {
		t.Errorf("expected journaled root %s at version 4, got %s found=%v err=%v",
			rootAt4.String(), journaled.String(), found, err)
	}
	journaled, found, err = tr.RootAt(5)
	if err != nil || !found || !journaled.Equal(&rootAt5) {
		t.Errorf("expected journaled root %s at version 5, got %s found=%v err=%v",
			rootAt5.String(), journaled.String(), found, err)
	}
	if _, found, err := tr.RootAt(6); err != nil || found {
		t.Errorf("version 6 was never committed, found=%v err=%v", found, err)
	}
}

func TestTrie_PersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()

	store, err := backend.OpenKeyedStore(dir)
	if err != nil {
		t.Fatalf("failed to open store: %v", err)
	}
	tr := trie.New(database.New(store, database.ContractsMapping, database.Config{}), nil, crypto.Pedersen, testHeight)
	if err := tr.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}
	if err := tr.Put(uintFelt(21), uintFelt(22)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := tr.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}
	root, _ := tr.Root()
	if err := store.Close(); err != nil {
		t.Fatalf("failed to close store: %v", err)
	}

	reopened := trie.New(openTestDb(t, dir), nil, crypto.Pedersen, testHeight)
	rootAfter, err := reopened.Root()
	if err != nil {
		t.Fatalf("root failed: %v", err)
	}
	if !rootAfter.Equal(&root) {
		t.Errorf("root did not survive reopen: %s vs %s", root.String(), rootAfter.String())
	}
	value, err := reopened.Get(uintFelt(21))
	if err != nil || !value.Equal(uintFelt(22)) {
		t.Errorf("leaf did not survive reopen, got %s err=%v", value.String(), err)
	}
}

func TestTrie_OwnersAreIsolated(t *testing.T) {
	db := openTestDb(t, t.TempDir())
	first := trie.New(db, []byte{0x01}, crypto.Pedersen, testHeight)
	second := trie.New(db, []byte{0x02}, crypto.Pedersen, testHeight)
	for _, tr := range []*trie.Trie{first, second} {
		if err := tr.Init(); err != nil {
			t.Fatalf("init failed: %v", err)
		}
	}

	if err := first.Put(uintFelt(1), uintFelt(2)); err != nil {
		t.Fatalf("put failed: %v", err)
	}
	if err := first.Commit(0); err != nil {
		t.Fatalf("commit failed: %v", err)
	}

	secondRoot, err := second.Root()
	if err != nil {
		t.Fatalf("root failed: %v", err)
	}
	if !secondRoot.IsZero() {
		t.Errorf("a sibling owner must stay empty, got root %s", secondRoot.String())
	}
	value, err := second.Get(uintFelt(1))
	if err != nil || !value.IsZero() {
		t.Errorf("a sibling owner must not see foreign leaves, got %s err=%v", value.String(), err)
	}
}

func TestTrie_PutRejectsOversizedKey(t *testing.T) {
	tr := newTestTrie(t)
	key, err := new(felt.Felt).SetString("0x800000000000000000000000000000000000000000000000000000000000000")
	if err != nil {
		t.Fatalf("failed to build key: %v", err)
	}
	if err := tr.Put(key, uintFelt(1)); !errors.Is(err, common.ErrValueOutOfRange) {
		t.Errorf("key 2^251 exceeds the trie height, got %v", err)
	}
}

func TestTrie_InitCreatesRootRecordOnce(t *testing.T) {
	ctrl := gomock.NewController(t)
	db := trie.NewMockDatabase(ctrl)
	tr := trie.New(db, nil, crypto.Pedersen, testHeight)

	rootKey := trie.FlatKey([]byte("root"))
	zero := make([]byte, 32)

	db.EXPECT().Contains(rootKey).Return(false, nil)
	db.EXPECT().Insert(rootKey, zero, nil).Return(nil, nil)
	if err := tr.Init(); err != nil {
		t.Fatalf("init failed: %v", err)
	}

	db.EXPECT().Contains(rootKey).Return(true, nil)
	if err := tr.Init(); err != nil {
		t.Fatalf("second init should be a no-op: %v", err)
	}
}
