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

	"github.com/kasarlabs/bonsai-go/commitment"
	"github.com/urfave/cli/v2"
)

var Root = cli.Command{
	Action: root,
	Name:   "root",
	Usage:  "prints the state root, current or as journaled at a given block",
	Flags: []cli.Flag{
		&blockFlag,
	},
	ArgsUsage: "<directory>",
}

var blockFlag = cli.Uint64Flag{
	Name:  "block",
	Usage: "print the root journaled by the commit at this block instead of the current one",
	Value: 0,
}

func root(context *cli.Context) error {
	manager, store, err := openManager(context)
	if err != nil {
		return err
	}
	defer store.Close()

	if !context.IsSet(blockFlag.Name) {
		engine := commitment.NewEngine(manager, 0)
		stateRoot, err := engine.StateRoot()
		if err != nil {
			return err
		}
		fmt.Println(stateRoot.String())
		return nil
	}

	// the commit of block N is journaled at version N+1
	block := context.Uint64(blockFlag.Name)
	contractsRoot, found, err := manager.ContractTrieReader().RootAt(block + 1)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no commit journaled at block %d", block)
	}
	classesRoot, found, err := manager.ClassTrieReader().RootAt(block + 1)
	if err != nil {
		return err
	}
	if !found {
		return fmt.Errorf("no classes commit journaled at block %d", block)
	}
	stateRoot := commitment.StateCommitment(&contractsRoot, &classesRoot)
	fmt.Println(stateRoot.String())
	return nil
}
