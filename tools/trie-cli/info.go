// Copyright (c) 2024 Kasar Labs
//
// Use of this software is governed by the Business Source License included
// in the LICENSE file and at kasarlabs.com/bsl11.
//
// Change Date: 2028-4-16
//
// On the date above, in accordance with the Business Source License, use of
// this software will be governed by the GNU Lesser General Public License v3.

package main

import (
	"fmt"

	"github.com/kasarlabs/bonsai-go/backend"
	"github.com/kasarlabs/bonsai-go/commitment"
	"github.com/kasarlabs/bonsai-go/database"
	"github.com/kasarlabs/bonsai-go/storage"
	"github.com/urfave/cli/v2"
)

var Info = cli.Command{
	Action:    info,
	Name:      "info",
	Usage:     "lists the trie roots and the composed state root of a state repository",
	ArgsUsage: "<directory>",
}

// openManager opens the store at the directory argument of the command.
func openManager(context *cli.Context) (*storage.Manager, *backend.KeyedStore, error) {
	if context.Args().Len() != 1 {
		return nil, nil, fmt.Errorf("missing directory storing state")
	}
	store, err := backend.OpenKeyedStore(context.Args().Get(0))
	if err != nil {
		return nil, nil, err
	}
	return storage.NewManager(store, database.Config{}), store, nil
}

func info(context *cli.Context) error {
	manager, store, err := openManager(context)
	if err != nil {
		return err
	}
	defer store.Close()

	contractsRoot, err := manager.ContractTrieReader().Root()
	if err != nil {
		return err
	}
	classesRoot, err := manager.ClassTrieReader().Root()
	if err != nil {
		return err
	}
	stateRoot := commitment.StateCommitment(&contractsRoot, &classesRoot)

	fmt.Printf("Directory contains a state repository with the following roots:\n")
	fmt.Printf("\tContracts trie: %s\n", contractsRoot.String())
	fmt.Printf("\tClasses trie:   %s\n", classesRoot.String())
	fmt.Printf("\tState root:     %s\n", stateRoot.String())
	return nil
}
