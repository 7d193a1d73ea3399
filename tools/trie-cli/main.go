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
	"os"

	"github.com/urfave/cli/v2"
)

// Run using
//  go run ./tools/trie-cli <command> <flags>

func main() {
	app := &cli.App{
		Name:      "trie-cli",
		Usage:     "Starknet state trie toolbox",
		Copyright: "(c) 2024 Kasar Labs",
		Commands: []*cli.Command{
			&Info,
			&Root,
			&Verify,
		},
	}

	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
