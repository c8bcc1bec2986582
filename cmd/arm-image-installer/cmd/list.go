// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"os"

	"github.com/spf13/cobra"

	"github.com/fedora-arm/arm-image-installer/pkg/board"
)

// listBoardsCmd prints the grouped supported boards listing.
var listBoardsCmd = &cobra.Command{
	Use:   "list-boards",
	Short: "List all supported boards",
	RunE: func(cmd *cobra.Command, args []string) error {
		return board.ListSupported(os.Stdout, options.BoardsFile)
	},
}

func init() {
	rootCmd.AddCommand(listBoardsCmd)
}
