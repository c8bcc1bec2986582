// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/fedora-arm/arm-image-installer/internal/pkg/install"
	"github.com/fedora-arm/arm-image-installer/pkg/board"
)

// rootCmd represents the base command when called without any subcommands.
var rootCmd = &cobra.Command{
	Use:           "arm-image-installer",
	Short:         "Write ARM disk images to removable media",
	SilenceUsage:  true,
	SilenceErrors: true,
}

var (
	options = &install.Options{}
	debug   bool
)

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main(). It only needs to happen once to the rootCmd.
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, "ERROR:", err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable verbose debug output")
	rootCmd.PersistentFlags().StringVar(&options.BoardsFile, "boards-file", board.DefaultSupportedBoardsPath,
		"Path to the supported boards list")
}
