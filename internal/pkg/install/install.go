// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package install sequences the provisioning pipeline: device validation,
// image write, partition configuration, bootloader installation, and
// filesystem growth.
package install

import (
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/internal/pkg/bootconfig"
	"github.com/fedora-arm/arm-image-installer/internal/pkg/device"
	"github.com/fedora-arm/arm-image-installer/internal/pkg/growfs"
	"github.com/fedora-arm/arm-image-installer/internal/pkg/mount"
	"github.com/fedora-arm/arm-image-installer/internal/pkg/rootconfig"
	"github.com/fedora-arm/arm-image-installer/internal/pkg/uboot"
	"github.com/fedora-arm/arm-image-installer/pkg/board"
	"github.com/fedora-arm/arm-image-installer/pkg/image"
	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// Options represents the full set of options for a media installation run.
// It is immutable once parsed and threaded read-only through every component.
type Options struct {
	ImagePath string
	Device    string
	Board     string

	SSHKeyPath         string
	RemoveRootPassword bool
	Relabel            bool
	ResizeRootFS       bool

	WifiSSID     string
	WifiPassword string
	WifiSecurity string

	AddConsole  bool
	ExtraArgs   string
	ShowBoot    bool
	EnableSysrq bool

	IgnitionURL string

	BoardsFile string
	AssumeYes  bool
	DryRun     bool
}

// Installer runs the provisioning pipeline for a single target device.
type Installer struct {
	logger  *zap.Logger
	options Options
}

// NewInstaller creates an installer for the given request.
func NewInstaller(logger *zap.Logger, options Options) *Installer {
	return &Installer{
		logger:  logger.With(logging.Component("install")),
		options: options,
	}
}

// Run executes the pipeline. Validation failures abort before any destructive
// action; once the image write has begun, failures are fatal with no rollback.
func (i *Installer) Run() error {
	opts := i.options

	canonical := board.Resolve(opts.Board)
	iot := image.IsIoT(opts.ImagePath)

	if err := board.Validate(i.logger, opts.BoardsFile, opts.Board); err != nil {
		return err
	}

	if err := image.ValidateFormat(opts.ImagePath); err != nil {
		return err
	}

	if err := device.Validate(opts.Device); err != nil {
		return err
	}

	if err := image.Write(i.logger, opts.ImagePath, opts.Device, opts.DryRun); err != nil {
		return err
	}

	partitions := device.LocatePartitions(i.logger, opts.Device)

	tempDir, err := os.MkdirTemp("", "arm-image-installer-")
	if err != nil {
		return err
	}

	defer os.RemoveAll(tempDir) //nolint:errcheck

	bootMount := filepath.Join(tempDir, "boot")
	rootMount := filepath.Join(tempDir, "root")

	err = mount.WithMount(i.logger, partitions.Boot, bootMount, opts.DryRun, func() error {
		return mount.WithMount(i.logger, partitions.Root, rootMount, opts.DryRun, func() error {
			if err := rootconfig.Apply(i.logger, rootMount, rootconfig.Options{
				SSHKeyPath:         opts.SSHKeyPath,
				RemoveRootPassword: opts.RemoveRootPassword,
				Relabel:            opts.Relabel,
				IoT:                iot,
				DryRun:             opts.DryRun,
			}); err != nil {
				return err
			}

			if err := bootconfig.Apply(i.logger, bootMount, bootconfig.Options{
				Board:        canonical,
				ImagePath:    opts.ImagePath,
				ShowBoot:     opts.ShowBoot,
				AddConsole:   opts.AddConsole,
				ExtraArgs:    opts.ExtraArgs,
				EnableSysrq:  opts.EnableSysrq,
				IgnitionURL:  opts.IgnitionURL,
				WifiSSID:     opts.WifiSSID,
				WifiPassword: opts.WifiPassword,
				WifiSecurity: opts.WifiSecurity,
				IoT:          iot,
				DryRun:       opts.DryRun,
			}); err != nil {
				return err
			}

			return uboot.Install(i.logger, canonical, opts.Device, rootMount, opts.DryRun)
		})
	})
	if err != nil {
		return err
	}

	if opts.ResizeRootFS {
		if err = device.GrowPartition(i.logger, opts.Device, opts.DryRun); err != nil {
			return err
		}

		if err = growfs.ResizeRoot(i.logger, partitions.Root, opts.DryRun); err != nil {
			return err
		}
	}

	i.logger.Info("image installation completed successfully")

	return nil
}

// Summary logs the run parameters before the confirmation prompt.
func (i *Installer) Summary() {
	opts := i.options

	i.logger.Info("====================================================")
	i.logger.Info("ARM Image Installer Summary")
	i.logger.Info(fmt.Sprintf("Image file        : %s", opts.ImagePath))
	i.logger.Info(fmt.Sprintf("Target device     : %s", opts.Device))
	i.logger.Info(fmt.Sprintf("Target board      : %s", board.Resolve(opts.Board)))
	i.logger.Info(fmt.Sprintf("IoT image         : %v", image.IsIoT(opts.ImagePath)))

	if opts.SSHKeyPath != "" {
		i.logger.Info(fmt.Sprintf("SSH key           : %s", opts.SSHKeyPath))
	}

	if opts.RemoveRootPassword {
		i.logger.Info("Remove root pass  : Yes")
	}

	if opts.Relabel {
		i.logger.Info("SELinux relabel   : Yes")
	}

	if opts.ResizeRootFS {
		i.logger.Info("Resize filesystem : Yes")
	}

	if opts.WifiSSID != "" {
		i.logger.Info(fmt.Sprintf("Wi-Fi SSID        : %s", opts.WifiSSID))
		i.logger.Info(fmt.Sprintf("Wi-Fi security    : %s", opts.WifiSecurity))
	}

	if opts.AddConsole {
		i.logger.Info("Add serial console: Yes")
	}

	if opts.ExtraArgs != "" {
		i.logger.Info(fmt.Sprintf("Extra kernel args : %s", opts.ExtraArgs))
	}

	if opts.ShowBoot {
		i.logger.Info("Show boot messages: Yes")
	}

	if opts.EnableSysrq {
		i.logger.Info("Enable sysrq      : Yes")
	}

	if opts.IgnitionURL != "" {
		i.logger.Info(fmt.Sprintf("Ignition URL      : %s", opts.IgnitionURL))
	}

	i.logger.Info(fmt.Sprintf("Dry run mode      : %v", opts.DryRun))
	i.logger.Info("====================================================")
}
