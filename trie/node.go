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
	"fmt"

	"github.com/NethermindEth/juno/core/felt"
	"github.com/kasarlabs/bonsai-go/common"
)

type nodeKind uint8

const (
	leafKind nodeKind = iota + 1
	binaryKind
	edgeKind
)

// node is the in-memory form of a persisted trie node. Nodes are addressed
// by their absolute path from the root; a node therefore does not store
// child pointers, only the child hashes needed to compute its own hash.
//
//   - leaf: the stored value, hashing to itself; always at full height.
//   - binary: two children at path+0 and path+1; hashes to H(left, right).
//   - edge: a run of branch-free bits ending at the child located at
//     path+edgePath; hashes to H(child, edgePath) + len(edgePath).
type node struct {
	kind  nodeKind
	value felt.Felt // leaf payload
	path  Path      // edge path
	left  felt.Felt // binary left child hash
	right felt.Felt // binary right child hash
	child felt.Felt // edge child hash
}

const (
	leafTag   byte = 0x01
	binaryTag byte = 0x02
	edgeTag   byte = 0x03
)

// encode serializes the node into its persisted form.
func (n *node) encode() []byte {
	switch n.kind {
	case leafKind:
		value := n.value.Bytes()
		return append([]byte{leafTag}, value[:]...)
	case binaryKind:
		left, right := n.left.Bytes(), n.right.Bytes()
		out := make([]byte, 0, 65)
		out = append(out, binaryTag)
		out = append(out, left[:]...)
		return append(out, right[:]...)
	case edgeKind:
		child := n.child.Bytes()
		out := []byte{edgeTag}
		out = append(out, n.path.Encode()...)
		return append(out, child[:]...)
	default:
		panic(fmt.Sprintf("encoding node of unknown kind %d", n.kind))
	}
}

// decodeNode is the inverse of encode.
func decodeNode(data []byte) (*node, error) {
	if len(data) == 0 {
		return nil, fmt.Errorf("%w: empty node encoding", common.ErrValueOutOfRange)
	}
	switch data[0] {
	case leafTag:
		if len(data) != 33 {
			return nil, fmt.Errorf("%w: leaf node of %d bytes", common.ErrValueOutOfRange, len(data))
		}
		n := &node{kind: leafKind}
		n.value.SetBytes(data[1:33])
		return n, nil
	case binaryTag:
		if len(data) != 65 {
			return nil, fmt.Errorf("%w: binary node of %d bytes", common.ErrValueOutOfRange, len(data))
		}
		n := &node{kind: binaryKind}
		n.left.SetBytes(data[1:33])
		n.right.SetBytes(data[33:65])
		return n, nil
	case edgeTag:
		if len(data) < 2 {
			return nil, fmt.Errorf("%w: truncated edge node", common.ErrValueOutOfRange)
		}
		pathSize := 1 + (int(data[1])+7)/8
		if len(data) != 1+pathSize+32 {
			return nil, fmt.Errorf("%w: edge node of %d bytes", common.ErrValueOutOfRange, len(data))
		}
		path, err := decodePath(data[1 : 1+pathSize])
		if err != nil {
			return nil, err
		}
		n := &node{kind: edgeKind, path: path}
		n.child.SetBytes(data[1+pathSize:])
		return n, nil
	default:
		return nil, fmt.Errorf("%w: unknown node tag %#x", common.ErrValueOutOfRange, data[0])
	}
}
