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
	"errors"
	"testing"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/kasarlabs/bonsai-go/common"
)

func TestPath_FromFeltRoundTrip(t *testing.T) {
	for _, value := range []uint64{0, 1, 2, 5, 0xdeadbeef, 1 << 40} {
		key := new(felt.Felt).SetUint64(value)
		path, err := pathFromFelt(key, 251)
		if err != nil {
			t.Fatalf("pathFromFelt(%d) failed: %v", value, err)
		}
		if path.Len() != 251 {
			t.Fatalf("expected full-height path, got %d bits", path.Len())
		}
		back := path.Felt()
		if !back.Equal(key) {
			t.Errorf("round trip of %d yielded %s", value, back.String())
		}
	}
}

func TestPath_FromFeltRejectsOversizedKeys(t *testing.T) {
	// 2^250 fits in a height-251 trie, 2^4 does not fit in a height-4 trie.
	key := new(felt.Felt).SetUint64(16)
	if _, err := pathFromFelt(key, 4); !errors.Is(err, common.ErrValueOutOfRange) {
		t.Errorf("expected out-of-range error, got %v", err)
	}
	if _, err := pathFromFelt(key, 5); err != nil {
		t.Errorf("key 16 fits a height-5 trie, got %v", err)
	}
}

func TestPath_EncodeRoundTrip(t *testing.T) {
	paths := []Path{
		emptyPath,
		{bits: []uint8{0}},
		{bits: []uint8{1}},
		{bits: []uint8{1, 0, 1, 1, 0, 0, 0, 1, 1}},
	}
	if full, err := pathFromFelt(new(felt.Felt).SetUint64(0xcafe), 251); err == nil {
		paths = append(paths, full)
	} else {
		t.Fatalf("pathFromFelt failed: %v", err)
	}

	for _, path := range paths {
		decoded, err := decodePath(path.Encode())
		if err != nil {
			t.Fatalf("decode of %d-bit path failed: %v", path.Len(), err)
		}
		if decoded.Len() != path.Len() {
			t.Fatalf("expected %d bits, got %d", path.Len(), decoded.Len())
		}
		for i := 0; i < path.Len(); i++ {
			if decoded.Bit(i) != path.Bit(i) {
				t.Errorf("bit %d differs after round trip", i)
			}
		}
	}
}

func TestPath_EncodeOrdersByDepthThenBits(t *testing.T) {
	// The length byte leads, so shorter paths sort before deeper ones and
	// equal-length paths sort by their bits.
	a := Path{bits: []uint8{1}}
	b := Path{bits: []uint8{0, 1}}
	if string(a.Encode()) >= string(b.Encode()) {
		t.Errorf("shallower path should encode lower than a deeper one")
	}
	c := Path{bits: []uint8{0, 1}}
	d := Path{bits: []uint8{1, 0}}
	if string(c.Encode()) >= string(d.Encode()) {
		t.Errorf("equal-depth paths should order by bits")
	}
}

func TestPath_PrefixSuffixJoin(t *testing.T) {
	p := Path{bits: []uint8{1, 0, 1, 1}}
	joined := p.Prefix(2).Join(p.Suffix(2))
	if joined.key() != p.key() {
		t.Errorf("prefix+suffix should reassemble the path")
	}
	if got := commonPrefixLen(p, Path{bits: []uint8{1, 0, 0}}); got != 2 {
		t.Errorf("expected common prefix of 2 bits, got %d", got)
	}
	if got := commonPrefixLen(p, p); got != p.Len() {
		t.Errorf("a path shares its full length with itself, got %d", got)
	}
}

func TestNode_EncodeRoundTrip(t *testing.T) {
	leaf := &node{kind: leafKind}
	leaf.value.SetUint64(42)

	binary := &node{kind: binaryKind}
	binary.left.SetUint64(7)
	binary.right.SetUint64(9)

	edge := &node{kind: edgeKind, path: Path{bits: []uint8{1, 0, 1}}}
	edge.child.SetUint64(11)

	for _, n := range []*node{leaf, binary, edge} {
		decoded, err := decodeNode(n.encode())
		if err != nil {
			t.Fatalf("decode of kind %d failed: %v", n.kind, err)
		}
		if decoded.kind != n.kind {
			t.Fatalf("expected kind %d, got %d", n.kind, decoded.kind)
		}
		switch n.kind {
		case leafKind:
			if !decoded.value.Equal(&n.value) {
				t.Errorf("leaf value differs after round trip")
			}
		case binaryKind:
			if !decoded.left.Equal(&n.left) || !decoded.right.Equal(&n.right) {
				t.Errorf("binary children differ after round trip")
			}
		case edgeKind:
			if !decoded.child.Equal(&n.child) || decoded.path.key() != n.path.key() {
				t.Errorf("edge content differs after round trip")
			}
		}
	}
}

func TestNode_DecodeRejectsGarbage(t *testing.T) {
	for _, data := range [][]byte{nil, {0x00}, {0x09, 1, 2}, {leafTag, 1, 2}, {edgeTag}} {
		if _, err := decodeNode(data); !errors.Is(err, common.ErrValueOutOfRange) {
			t.Errorf("decode of %x should fail with out-of-range, got %v", data, err)
		}
	}
}
