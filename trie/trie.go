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

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/kasarlabs/bonsai-go/common"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// HashFn combines two field elements into one. crypto.Pedersen and
// crypto.Poseidon both satisfy it.
type HashFn func(a, b *felt.Felt) *felt.Felt

// rootRecordKey is the flat key suffix under which the committed root hash
// is stored. It cannot collide with leaf keys, which are always 32 bytes.
var rootRecordKey = []byte("root")

// Update is a single staged key-value write.
type Update struct {
	Key   felt.Felt
	Value felt.Felt
}

// Trie is a binary Merkle-Patricia trie of fixed height over field-element
// keys and values. Interior runs without branches are collapsed into edge
// nodes; an empty trie has root hash zero.
//
// All persistence goes through the Database contract: node encodings in the
// trie namespace keyed by their absolute path, raw values mirrored in the
// flat namespace for direct reads, and a root journal in the trie-log
// namespace keyed by commit version.
//
// Writes are staged with Put and only take effect on Commit, which
// recomputes the hashes of all modified paths bottom-up and emits a single
// atomic batch. A Trie instance is not safe for concurrent use.
type Trie struct {
	db     Database
	owner  []byte // distinguishes tries sharing one namespace; nil or a 32-byte address
	hash   HashFn
	height int

	pending map[felt.Felt]felt.Felt
	nodes   map[string]*node
	dirty   map[string]Path

	rootHash   felt.Felt
	rootLoaded bool
}

// New opens the trie identified by owner within the given database. The
// trie materializes lazily; opening never touches the store.
func New(db Database, owner []byte, hash HashFn, height int) *Trie {
	return &Trie{
		db:      db,
		owner:   owner,
		hash:    hash,
		height:  height,
		pending: make(map[felt.Felt]felt.Felt),
		nodes:   make(map[string]*node),
		dirty:   make(map[string]Path),
	}
}

// Init attaches the trie's root record, creating it if absent. It is
// idempotent and must be called before the first commit.
func (t *Trie) Init() error {
	key := FlatKey(t.ownerKey(rootRecordKey))
	exists, err := t.db.Contains(key)
	if err != nil {
		return err
	}
	if exists {
		return nil
	}
	zero := felt.Felt{}
	rootBytes := zero.Bytes()
	_, err = t.db.Insert(key, rootBytes[:], nil)
	return err
}

// Get returns the committed value for the key, or a zero felt if the key
// was never written. Staged but uncommitted writes are not visible.
func (t *Trie) Get(key *felt.Felt) (felt.Felt, error) {
	keyBytes := key.Bytes()
	data, exists, err := t.db.Get(FlatKey(t.ownerKey(keyBytes[:])))
	if err != nil {
		return felt.Felt{}, err
	}
	var value felt.Felt
	if exists {
		value.SetBytes(data)
	}
	return value, nil
}

// Put stages a write of the value under the key. The trie structure and
// hashes remain untouched until Commit.
func (t *Trie) Put(key, value *felt.Felt) error {
	if _, err := pathFromFelt(key, t.height); err != nil {
		return err
	}
	t.pending[*key] = *value
	return nil
}

// Root returns the committed root hash. An empty trie has root zero.
func (t *Trie) Root() (felt.Felt, error) {
	if t.rootLoaded {
		return t.rootHash, nil
	}
	data, exists, err := t.db.Get(FlatKey(t.ownerKey(rootRecordKey)))
	if err != nil {
		return felt.Felt{}, err
	}
	if exists {
		t.rootHash.SetBytes(data)
	}
	t.rootLoaded = true
	return t.rootHash, nil
}

// RootAt returns the root hash recorded by the commit at the given version,
// and whether such a commit exists.
func (t *Trie) RootAt(version uint64) (felt.Felt, bool, error) {
	data, exists, err := t.db.Get(TrieLogKey(t.ownerKey(versionKey(version))))
	if err != nil || !exists {
		return felt.Felt{}, false, err
	}
	var root felt.Felt
	root.SetBytes(data)
	return root, true, nil
}

// Commit applies all staged writes to the trie structure, recomputes the
// hashes of every modified path, and persists nodes, flat values, the root
// record, and a journal entry for the version in one atomic batch.
func (t *Trie) Commit(version uint64) error {
	// Deterministic application order regardless of staging order.
	keys := maps.Keys(t.pending)
	slices.SortFunc(keys, func(a, b felt.Felt) int {
		ab, bb := a.Bytes(), b.Bytes()
		return bytes.Compare(ab[:], bb[:])
	})

	for _, key := range keys {
		value := t.pending[key]
		if err := t.insert(&key, &value); err != nil {
			return err
		}
	}

	// Recompute hashes bottom-up: children are strictly deeper than their
	// parents, so processing longer locations first suffices.
	locs := maps.Values(t.dirty)
	slices.SortFunc(locs, func(a, b Path) int {
		if a.Len() != b.Len() {
			return b.Len() - a.Len()
		}
		return bytes.Compare(a.Encode(), b.Encode())
	})

	computed := make(map[string]felt.Felt, len(locs))
	for _, loc := range locs {
		n := t.nodes[loc.key()]
		var h felt.Felt
		switch n.kind {
		case leafKind:
			h = n.value
		case edgeKind:
			if ch, ok := computed[loc.Join(n.path).key()]; ok {
				n.child = ch
			}
			pathFelt := n.path.Felt()
			length := new(felt.Felt).SetUint64(uint64(n.path.Len()))
			h = *new(felt.Felt).Add(t.hash(&n.child, &pathFelt), length)
		case binaryKind:
			if l, ok := computed[loc.Append(0).key()]; ok {
				n.left = l
			}
			if r, ok := computed[loc.Append(1).key()]; ok {
				n.right = r
			}
			h = *t.hash(&n.left, &n.right)
		}
		computed[loc.key()] = h
	}

	if root, ok := computed[emptyPath.key()]; ok {
		t.rootHash = root
		t.rootLoaded = true
	} else if _, err := t.Root(); err != nil {
		return err
	}

	batch := t.db.CreateBatch()
	for _, loc := range locs {
		batch.Put(TrieKey(t.ownerKey(loc.Encode())), t.nodes[loc.key()].encode())
	}
	for _, key := range keys {
		value := t.pending[key]
		keyBytes, valueBytes := key.Bytes(), value.Bytes()
		batch.Put(FlatKey(t.ownerKey(keyBytes[:])), valueBytes[:])
	}
	rootBytes := t.rootHash.Bytes()
	batch.Put(FlatKey(t.ownerKey(rootRecordKey)), rootBytes[:])
	batch.Put(TrieLogKey(t.ownerKey(versionKey(version))), rootBytes[:])

	if err := t.db.WriteBatch(batch); err != nil {
		return err
	}
	t.pending = make(map[felt.Felt]felt.Felt)
	t.dirty = make(map[string]Path)
	return nil
}

// insert threads the key into the trie structure, marking every node on
// the descent path dirty. Hashes are not recomputed here.
func (t *Trie) insert(key, value *felt.Felt) error {
	full, err := pathFromFelt(key, t.height)
	if err != nil {
		return err
	}

	loc := emptyPath
	for {
		n, exists, err := t.node(loc)
		if err != nil {
			return err
		}
		if !exists {
			// Empty trie: a single edge spanning the whole key.
			rest := full.Suffix(loc.Len())
			t.set(loc, &node{kind: edgeKind, path: rest})
			t.set(full, &node{kind: leafKind, value: *value})
			return nil
		}

		switch n.kind {
		case leafKind:
			n.value = *value
			t.markDirty(loc)
			return nil

		case binaryKind:
			t.markDirty(loc)
			loc = loc.Append(full.Bit(loc.Len()))

		case edgeKind:
			rest := full.Suffix(loc.Len())
			shared := commonPrefixLen(n.path, rest)
			if shared == n.path.Len() {
				t.markDirty(loc)
				loc = loc.Join(n.path)
				continue
			}
			return t.splitEdge(loc, n, full, shared, value)
		}
	}
}

// splitEdge breaks the edge at loc at the point where the new key diverges
// from the edge path, introducing a binary node with the surviving part of
// the old edge on one side and the new leaf on the other.
func (t *Trie) splitEdge(loc Path, old *node, full Path, shared int, value *felt.Felt) error {
	q := old.path
	rest := full.Suffix(loc.Len())
	branchLoc := loc.Join(q.Prefix(shared))
	oldBit, newBit := q.Bit(shared), rest.Bit(shared)

	branch := &node{kind: binaryKind}

	// The surviving side keeps the old child. If the old edge extended past
	// the branch point a shortened edge is introduced; otherwise the old
	// child already sits at the branch position and only its hash is
	// carried over.
	if q.Len() > shared+1 {
		t.set(branchLoc.Append(oldBit), &node{kind: edgeKind, path: q.Suffix(shared + 1), child: old.child})
	} else {
		if oldBit == 0 {
			branch.left = old.child
		} else {
			branch.right = old.child
		}
	}

	newRest := rest.Suffix(shared + 1)
	if newRest.Len() > 0 {
		t.set(branchLoc.Append(newBit), &node{kind: edgeKind, path: newRest})
		t.set(full, &node{kind: leafKind, value: *value})
	} else {
		t.set(branchLoc.Append(newBit), &node{kind: leafKind, value: *value})
	}

	t.set(branchLoc, branch)
	if shared > 0 {
		t.set(loc, &node{kind: edgeKind, path: q.Prefix(shared)})
	}
	return nil
}

// node returns the node at the given location, loading and caching it from
// the database if needed.
func (t *Trie) node(loc Path) (*node, bool, error) {
	if n, ok := t.nodes[loc.key()]; ok {
		return n, true, nil
	}
	data, exists, err := t.db.Get(TrieKey(t.ownerKey(loc.Encode())))
	if err != nil || !exists {
		return nil, false, err
	}
	n, err := decodeNode(data)
	if err != nil {
		return nil, false, err
	}
	t.nodes[loc.key()] = n
	return n, true, nil
}

// set places the node at the location and marks it dirty.
func (t *Trie) set(loc Path, n *node) {
	t.nodes[loc.key()] = n
	t.markDirty(loc)
}

func (t *Trie) markDirty(loc Path) {
	t.dirty[loc.key()] = loc
}

// ownerKey prefixes a key with the trie's owner identifier.
func (t *Trie) ownerKey(key []byte) []byte {
	out := make([]byte, 0, len(t.owner)+len(key))
	out = append(out, t.owner...)
	return append(out, key...)
}

func versionKey(version uint64) []byte {
	var out [8]byte
	binary.BigEndian.PutUint64(out[:], version)
	return out[:]
}

// VerifyIntegrity recomputes the root hash from the persisted node
// structure and compares it against the committed root record. It returns
// the recomputed root.
func (t *Trie) VerifyIntegrity() (felt.Felt, error) {
	recomputed, err := t.verifyNode(emptyPath)
	if err != nil {
		return felt.Felt{}, err
	}
	stored, err := t.Root()
	if err != nil {
		return felt.Felt{}, err
	}
	if !recomputed.Equal(&stored) {
		return felt.Felt{}, fmt.Errorf("%w: recomputed root %s does not match stored root %s",
			common.ErrValueOutOfRange, recomputed.String(), stored.String())
	}
	return recomputed, nil
}

func (t *Trie) verifyNode(loc Path) (felt.Felt, error) {
	n, exists, err := t.node(loc)
	if err != nil {
		return felt.Felt{}, err
	}
	if !exists {
		if loc.Len() == 0 {
			return felt.Felt{}, nil // empty trie
		}
		return felt.Felt{}, fmt.Errorf("%w: missing node at depth %d", common.ErrValueOutOfRange, loc.Len())
	}
	switch n.kind {
	case leafKind:
		return n.value, nil
	case binaryKind:
		left, err := t.verifyNode(loc.Append(0))
		if err != nil {
			return felt.Felt{}, err
		}
		right, err := t.verifyNode(loc.Append(1))
		if err != nil {
			return felt.Felt{}, err
		}
		if !left.Equal(&n.left) || !right.Equal(&n.right) {
			return felt.Felt{}, fmt.Errorf("%w: child hash mismatch at depth %d", common.ErrValueOutOfRange, loc.Len())
		}
		return *t.hash(&left, &right), nil
	case edgeKind:
		child, err := t.verifyNode(loc.Join(n.path))
		if err != nil {
			return felt.Felt{}, err
		}
		if !child.Equal(&n.child) {
			return felt.Felt{}, fmt.Errorf("%w: edge child hash mismatch at depth %d", common.ErrValueOutOfRange, loc.Len())
		}
		pathFelt := n.path.Felt()
		length := new(felt.Felt).SetUint64(uint64(n.path.Len()))
		return *new(felt.Felt).Add(t.hash(&child, &pathFelt), length), nil
	default:
		return felt.Felt{}, fmt.Errorf("%w: unknown node kind %d", common.ErrValueOutOfRange, n.kind)
	}
}
