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

	"github.com/urfave/cli/v2"
)

var Verify = cli.Command{
	Action:    verify,
	Name:      "verify",
	Usage:     "recomputes the contracts and classes trie roots from the stored nodes and checks them against the root records",
	ArgsUsage: "<directory>",
}

func verify(context *cli.Context) error {
	manager, store, err := openManager(context)
	if err != nil {
		return err
	}
	defer store.Close()

	fmt.Println("Verifying contracts trie ...")
	contractsRoot, err := manager.ContractTrieReader().VerifyIntegrity()
	if err != nil {
		return err
	}
	fmt.Printf("\tOK, root %s\n", contractsRoot.String())

	fmt.Println("Verifying classes trie ...")
	classesRoot, err := manager.ClassTrieReader().VerifyIntegrity()
	if err != nil {
		return err
	}
	fmt.Printf("\tOK, root %s\n", classesRoot.String())
	return nil
}
