// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package growfs grows the root filesystem to fill its enlarged partition,
// dispatching to the filesystem-specific growth tool.
package growfs

import (
	"errors"
	"fmt"
	"strings"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// ErrUnsupportedFilesystem indicates the detected filesystem has no known growth tool.
var ErrUnsupportedFilesystem = errors.New("unsupported filesystem type")

// simulatedFilesystem is reported by the probe under dry-run so the dispatch
// below still has a representative type to log.
const simulatedFilesystem = "ext4"

// ResizeRoot detects the root partition's filesystem type and grows it to
// fill the partition. The partition table entry must have been grown first
// (device.GrowPartition); the caller sequences the two.
func ResizeRoot(logger *zap.Logger, rootPartition string, dryRun bool) error {
	logger = logger.With(logging.Component("growfs"))

	fsType, err := detectFilesystem(logger, rootPartition, dryRun)
	if err != nil {
		return err
	}

	return grow(logger, rootPartition, fsType, dryRun)
}

// Grow runs the growth tool matching an already-probed filesystem type.
func Grow(logger *zap.Logger, rootPartition, fsType string, dryRun bool) error {
	return grow(logger.With(logging.Component("growfs")), rootPartition, fsType, dryRun)
}

func grow(logger *zap.Logger, rootPartition, fsType string, dryRun bool) error {
	switch fsType {
	case "ext4":
		// resize2fs refuses to grow an unchecked filesystem
		if err := run(logger, dryRun, "e2fsck", "-f", "-y", rootPartition); err != nil {
			return err
		}

		if err := run(logger, dryRun, "resize2fs", rootPartition); err != nil {
			return err
		}
	case "xfs":
		if err := run(logger, dryRun, "xfs_growfs", rootPartition); err != nil {
			return err
		}
	case "btrfs":
		// btrfs can only be resized through a live mount
		mountpoint, err := btrfsMountpoint(logger, rootPartition, dryRun)
		if err != nil {
			return err
		}

		if err = run(logger, dryRun, "btrfs", "filesystem", "resize", "max", mountpoint); err != nil {
			return err
		}
	default:
		return fmt.Errorf("%w: %q on %s", ErrUnsupportedFilesystem, fsType, rootPartition)
	}

	logger.Info("root filesystem grown", zap.String("fstype", fsType), zap.String("partition", rootPartition))

	return nil
}

// detectFilesystem probes the filesystem type of the partition.
func detectFilesystem(logger *zap.Logger, partition string, dryRun bool) (string, error) {
	if dryRun {
		logger.Info("would probe filesystem type", logging.DryRun(),
			zap.String("partition", partition), zap.String("simulated", simulatedFilesystem))

		return simulatedFilesystem, nil
	}

	output, err := cmd.Run("blkid", "-o", "value", "-s", "TYPE", partition)
	if err != nil {
		return "", fmt.Errorf("probing filesystem type of %s: %w", partition, err)
	}

	fsType := strings.TrimSpace(output)

	logger.Info("detected filesystem type", zap.String("partition", partition), zap.String("fstype", fsType))

	return fsType, nil
}

// btrfsMountpoint resolves the active mountpoint of the partition. No
// mountpoint is fatal since btrfs cannot be grown offline.
func btrfsMountpoint(logger *zap.Logger, partition string, dryRun bool) (string, error) {
	if dryRun {
		logger.Info("would resolve btrfs mountpoint", logging.DryRun(), zap.String("partition", partition))

		return "/mnt", nil
	}

	output, err := cmd.Run("findmnt", "-n", "-o", "TARGET", partition)
	if err != nil {
		return "", fmt.Errorf("resolving btrfs mountpoint of %s: %w", partition, err)
	}

	return parseBtrfsMountpoint(partition, output)
}

func parseBtrfsMountpoint(partition, output string) (string, error) {
	mountpoint := strings.TrimSpace(output)
	if mountpoint == "" {
		return "", fmt.Errorf("unable to locate btrfs mountpoint for %s", partition)
	}

	return mountpoint, nil
}

// run executes a filesystem growth tool, logging instead of executing under dry-run.
func run(logger *zap.Logger, dryRun bool, name string, args ...string) error {
	command := name + " " + strings.Join(args, " ")

	if dryRun {
		logger.Info("would run", logging.DryRun(), zap.String("command", command))

		return nil
	}

	logger.Debug("running", zap.String("command", command))

	if _, err := cmd.Run(name, args...); err != nil {
		return fmt.Errorf("%s failed: %w", name, err)
	}

	return nil
}
