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

// Path is a sequence of branch choices from the trie root, most significant
// bit first. A full-height path addresses a leaf; shorter paths address
// internal nodes. Paths are immutable: all operations return new values.
type Path struct {
	bits []uint8
}

// emptyPath addresses the root node.
var emptyPath = Path{}

// pathFromFelt expands the low height bits of the key into a full-depth
// path. Keys with bits set above the trie height are out of range.
func pathFromFelt(key *felt.Felt, height int) (Path, error) {
	b := key.Bytes()
	bits := make([]uint8, height)
	for i := 0; i < height; i++ {
		// bit i of the path is bit height-1-i of the integer
		pos := height - 1 - i
		if b[31-pos/8]>>(pos%8)&1 == 1 {
			bits[i] = 1
		}
	}
	// reject keys exceeding the trie height
	for pos := height; pos < 256; pos++ {
		if b[31-pos/8]>>(pos%8)&1 == 1 {
			return Path{}, fmt.Errorf("%w: key %s exceeds trie height %d", common.ErrValueOutOfRange, key.String(), height)
		}
	}
	return Path{bits: bits}, nil
}

// Len returns the number of bits in the path.
func (p Path) Len() int {
	return len(p.bits)
}

// Bit returns the i-th branch choice.
func (p Path) Bit(i int) uint8 {
	return p.bits[i]
}

// Append returns the path extended by one branch choice.
func (p Path) Append(bit uint8) Path {
	bits := make([]uint8, len(p.bits)+1)
	copy(bits, p.bits)
	bits[len(p.bits)] = bit
	return Path{bits: bits}
}

// Join returns the concatenation of both paths.
func (p Path) Join(q Path) Path {
	bits := make([]uint8, len(p.bits)+len(q.bits))
	copy(bits, p.bits)
	copy(bits[len(p.bits):], q.bits)
	return Path{bits: bits}
}

// Prefix returns the first n bits of the path.
func (p Path) Prefix(n int) Path {
	return Path{bits: p.bits[:n]}
}

// Suffix returns the path with the first n bits removed.
func (p Path) Suffix(n int) Path {
	return Path{bits: p.bits[n:]}
}

// commonPrefixLen returns the length of the longest common prefix of both
// paths.
func commonPrefixLen(p, q Path) int {
	n := 0
	for n < p.Len() && n < q.Len() && p.bits[n] == q.bits[n] {
		n++
	}
	return n
}

// Felt returns the path bits interpreted as a big-endian integer.
func (p Path) Felt() felt.Felt {
	var b [32]byte
	for i, bit := range p.bits {
		if bit == 1 {
			pos := len(p.bits) - 1 - i
			b[31-pos/8] |= 1 << (pos % 8)
		}
	}
	var f felt.Felt
	f.SetBytes(b[:])
	return f
}

// Encode packs the path into a storage key: one length byte followed by the
// bits packed most significant first.
func (p Path) Encode() []byte {
	out := make([]byte, 1+(len(p.bits)+7)/8)
	out[0] = byte(len(p.bits))
	for i, bit := range p.bits {
		if bit == 1 {
			out[1+i/8] |= 1 << (7 - i%8)
		}
	}
	return out
}

// decodePath is the inverse of Encode.
func decodePath(data []byte) (Path, error) {
	if len(data) < 1 {
		return Path{}, fmt.Errorf("%w: empty path encoding", common.ErrValueOutOfRange)
	}
	n := int(data[0])
	if len(data) != 1+(n+7)/8 {
		return Path{}, fmt.Errorf("%w: path encoding of %d bits has %d bytes", common.ErrValueOutOfRange, n, len(data))
	}
	bits := make([]uint8, n)
	for i := 0; i < n; i++ {
		if data[1+i/8]>>(7-i%8)&1 == 1 {
			bits[i] = 1
		}
	}
	return Path{bits: bits}, nil
}

// key returns the encoded path as a map key.
func (p Path) key() string {
	return string(p.Encode())
}
