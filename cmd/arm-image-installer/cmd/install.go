// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package cmd

import (
	"bufio"
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/fedora-arm/arm-image-installer/internal/pkg/bootconfig"
	"github.com/fedora-arm/arm-image-installer/internal/pkg/install"
	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// installCmd writes an image to the target media and configures it to boot.
var installCmd = &cobra.Command{
	Use:   "install",
	Short: "Write an image to the target media and prepare it for a board",
	RunE: func(cmd *cobra.Command, args []string) error {
		return runInstallCmd()
	},
}

func init() {
	installCmd.Flags().StringVar(&options.ImagePath, "image", "", "Path to the disk image (.xz, .zst or raw)")
	installCmd.Flags().StringVar(&options.Device, "media", "", "Target block device (e.g. /dev/sdX, /dev/mmcblkX, /dev/nvmeXnY)")
	installCmd.Flags().StringVar(&options.Board, "target", "", "Target board name or alias")

	installCmd.Flags().StringVar(&options.SSHKeyPath, "addkey", "", "Path to an SSH public key to inject for the root user")
	installCmd.Flags().BoolVar(&options.RemoveRootPassword, "norootpass", false, "Remove the root password for passwordless root login")
	installCmd.Flags().BoolVar(&options.Relabel, "relabel", false, "Create the SELinux autorelabel marker for first boot")
	installCmd.Flags().BoolVar(&options.ResizeRootFS, "resizefs", false, "Resize the root filesystem to fill the device")

	installCmd.Flags().StringVar(&options.WifiSSID, "wifi-ssid", "", "Wi-Fi SSID to configure")
	installCmd.Flags().StringVar(&options.WifiPassword, "wifi-pass", "", "Wi-Fi password to configure")
	installCmd.Flags().StringVar(&options.WifiSecurity, "wifi-security", bootconfig.WifiSecurityWPAPSK,
		"Wi-Fi security method (wpa-psk or sae)")

	installCmd.Flags().BoolVar(&options.AddConsole, "addconsole", false, "Add the board's serial console to the kernel command line")
	installCmd.Flags().StringVar(&options.ExtraArgs, "args", "", "Additional kernel arguments to append")
	installCmd.Flags().BoolVar(&options.ShowBoot, "showboot", false, "Show boot messages (remove rhgb quiet)")
	installCmd.Flags().BoolVar(&options.EnableSysrq, "sysrq", false, "Enable kernel sysrq (sysrq_always_enabled=1)")

	installCmd.Flags().StringVar(&options.IgnitionURL, "ign-url", "", "Ignition configuration URL for IoT installs")

	installCmd.Flags().BoolVarP(&options.AssumeYes, "assumeyes", "y", false, "Assume yes, skip the confirmation prompt")
	installCmd.Flags().BoolVar(&options.DryRun, "dry-run", false, "Log planned actions without touching the media")

	for _, flag := range []string{"image", "media", "target"} {
		installCmd.MarkFlagRequired(flag) //nolint:errcheck
	}

	rootCmd.AddCommand(installCmd)
}

func runInstallCmd() error {
	logger := logging.New(debug)

	defer logger.Sync() //nolint:errcheck

	if os.Geteuid() != 0 {
		return errors.New("this command must be run as root")
	}

	if !validWifiSecurity(options.WifiSecurity) {
		return fmt.Errorf("invalid --wifi-security %q (expected %s or %s)",
			options.WifiSecurity, bootconfig.WifiSecurityWPAPSK, bootconfig.WifiSecuritySAE)
	}

	installer := install.NewInstaller(logger, *options)

	installer.Summary()

	if !options.DryRun && !options.AssumeYes {
		if !confirm(options.Device) {
			return errors.New("aborted by user")
		}
	}

	return installer.Run()
}

func validWifiSecurity(method string) bool {
	return method == bootconfig.WifiSecurityWPAPSK || method == bootconfig.WifiSecuritySAE
}

// confirm gates destructive operation behind an interactive yes/no prompt.
func confirm(device string) bool {
	fmt.Printf("\n*** WARNING: ALL DATA ON %s WILL BE DESTROYED. CONTINUE? (y/N): ", device)

	answer, err := bufio.NewReader(os.Stdin).ReadString('\n')
	if err != nil {
		return false
	}

	switch strings.ToLower(strings.TrimSpace(answer)) {
	case "y", "yes":
		return true
	default:
		return false
	}
}
