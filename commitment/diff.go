// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

// Package commitment computes Starknet state roots. Per block it folds a
// state diff into the contracts and classes tries and composes the global
// state commitment from their roots.
package commitment

import (
	"bytes"

	"github.com/NethermindEth/juno/core/felt"
	"golang.org/x/exp/maps"
	"golang.org/x/exp/slices"
)

// StateDiff is the per-block set of state changes to fold into the tries.
type StateDiff struct {
	// DeployedContracts maps the address of each contract deployed or
	// replaced in the block to its class hash.
	DeployedContracts map[felt.Felt]felt.Felt
	// Nonces maps contract addresses to their new nonce.
	Nonces map[felt.Felt]felt.Felt
	// StorageDiffs maps contract addresses to their changed storage slots.
	StorageDiffs map[felt.Felt]map[felt.Felt]felt.Felt
	// DeclaredClasses maps the hash of each class declared in the block to
	// its compiled class hash.
	DeclaredClasses map[felt.Felt]felt.Felt
}

// touchedContracts returns the sorted union of all contract addresses the
// diff affects. Every one of them gets a fresh contracts-trie leaf.
func (d *StateDiff) touchedContracts() []felt.Felt {
	seen := make(map[felt.Felt]struct{},
		len(d.DeployedContracts)+len(d.Nonces)+len(d.StorageDiffs))
	for address := range d.DeployedContracts {
		seen[address] = struct{}{}
	}
	for address := range d.Nonces {
		seen[address] = struct{}{}
	}
	for address := range d.StorageDiffs {
		seen[address] = struct{}{}
	}
	return sortedFelts(seen)
}

func sortedFelts[V any](m map[felt.Felt]V) []felt.Felt {
	out := maps.Keys(m)
	slices.SortFunc(out, func(a, b felt.Felt) int {
		ab, bb := a.Bytes(), b.Bytes()
		return bytes.Compare(ab[:], bb[:])
	})
	return out
}
