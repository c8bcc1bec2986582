// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package device guards the target block device: it validates the device
// path, checks for active mounts, and locates the boot and root partitions.
package device

import (
	"errors"
	"fmt"
	"os"
	"strings"
	"unicode"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

var (
	// ErrInvalidDevice indicates the path does not look like removable media.
	ErrInvalidDevice = errors.New("not a valid removable media device")
	// ErrDeviceNotFound indicates the device node does not exist.
	ErrDeviceNotFound = errors.New("target device does not exist")
	// ErrDeviceBusy indicates a partition of the device is mounted.
	ErrDeviceBusy = errors.New("device is mounted or in use")
)

// allowedPrefixes is the SATA/MMC/NVMe naming allow-list for target media.
var allowedPrefixes = []string{"/dev/sd", "/dev/mmcblk", "/dev/nvme"}

// Partition indices assumed by the Fedora ARM disk layout. Images with a
// different layout will get an incorrect fallback guess; this is a documented
// limitation of the layout convention, not something to detect here.
const (
	BootPartitionIndex = 2
	RootPartitionIndex = 3
)

const procMounts = "/proc/mounts"

// PartitionPair holds the boot and root partition paths of the target device.
type PartitionPair struct {
	Boot string
	Root string
}

// Validate performs the read-only pre-flight checks on the target device.
func Validate(devicePath string) error {
	valid := false

	for _, prefix := range allowedPrefixes {
		if strings.HasPrefix(devicePath, prefix) {
			valid = true

			break
		}
	}

	if !valid {
		return fmt.Errorf("%w: %s (expected %s prefix)", ErrInvalidDevice, devicePath, strings.Join(allowedPrefixes, ", "))
	}

	if _, err := os.Stat(devicePath); err != nil {
		return fmt.Errorf("%w: %s", ErrDeviceNotFound, devicePath)
	}

	mounts, err := os.ReadFile(procMounts)
	if err != nil {
		return fmt.Errorf("reading %s: %w", procMounts, err)
	}

	return checkBusy(devicePath, string(mounts))
}

// checkBusy fails if any mounted source device is the target device or one of
// its partitions.
func checkBusy(devicePath, mounts string) error {
	for _, line := range strings.Split(mounts, "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}

		if belongsTo(devicePath, fields[0]) {
			return fmt.Errorf("%w: %s (mounted as %s)", ErrDeviceBusy, devicePath, fields[0])
		}
	}

	return nil
}

// belongsTo reports whether source is the device itself or one of its
// partitions. A bare prefix match is not enough: /dev/sdab1 must not make
// /dev/sda look busy, so the byte after the device name has to start a
// partition suffix (a digit, or the "p" separator of mmcblk/nvme devices).
func belongsTo(devicePath, source string) bool {
	if !strings.HasPrefix(source, devicePath) {
		return false
	}

	rest := source[len(devicePath):]
	if rest == "" {
		return true
	}

	return rest[0] == 'p' || (rest[0] >= '0' && rest[0] <= '9')
}

// LocatePartitions finds the boot and root partitions of the device by
// partition label, falling back to the fixed layout convention when labels
// are missing. It never hard-fails: a malformed device yields the fallback
// guess, matching the best-effort behavior of lsblk itself.
func LocatePartitions(logger *zap.Logger, devicePath string) PartitionPair {
	logger = logger.With(logging.Component("device"))

	pair := PartitionPair{}

	output, err := cmd.Run("lsblk", "-ln", "-o", "NAME,PARTLABEL", devicePath)
	if err != nil {
		logger.Warn("lsblk failed, falling back to layout convention", zap.Error(err))
	} else {
		pair = parsePartitions(output)
	}

	if pair.Boot == "" || pair.Root == "" {
		pair = PartitionPair{
			Boot: PartitionName(devicePath, BootPartitionIndex),
			Root: PartitionName(devicePath, RootPartitionIndex),
		}

		logger.Warn("partition labels not found, assuming standard layout",
			zap.String("boot", pair.Boot), zap.String("root", pair.Root))
	}

	return pair
}

// parsePartitions extracts the boot/root pair from `lsblk -ln -o NAME,PARTLABEL` output.
func parsePartitions(output string) PartitionPair {
	pair := PartitionPair{}

	for _, line := range strings.Split(strings.TrimSpace(output), "\n") {
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}

		name, label := "/dev/"+fields[0], strings.ToLower(strings.Join(fields[1:], " "))

		switch {
		case strings.Contains(label, "boot"):
			pair.Boot = name
		case strings.Contains(label, "root"):
			pair.Root = name
		}
	}

	return pair
}

// PartitionName derives the path of the n-th partition of a device, inserting
// the `p` separator for devices whose name ends in a digit (mmcblk, nvme).
func PartitionName(devicePath string, index int) string {
	if devicePath != "" && unicode.IsDigit(rune(devicePath[len(devicePath)-1])) {
		return fmt.Sprintf("%sp%d", devicePath, index)
	}

	return fmt.Sprintf("%s%d", devicePath, index)
}

// GrowPartition grows the root partition table entry to fill the device.
// The filesystem itself is grown separately by the growfs package.
func GrowPartition(logger *zap.Logger, devicePath string, dryRun bool) error {
	logger = logger.With(logging.Component("device"))

	index := fmt.Sprintf("%d", RootPartitionIndex)

	if dryRun {
		logger.Info("would grow root partition to fill device", logging.DryRun(),
			zap.String("device", devicePath), zap.String("partition", index))

		return nil
	}

	logger.Info("growing root partition to fill device",
		zap.String("device", devicePath), zap.String("partition", index))

	if _, err := cmd.Run("parted", "--script", devicePath, "resizepart", index, "100%"); err != nil {
		return fmt.Errorf("growing partition %s on %s: %w", index, devicePath, err)
	}

	return nil
}
