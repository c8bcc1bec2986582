// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package uboot writes a board's second-stage bootloader to raw media at the
// board-specific offset.
package uboot

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"golang.org/x/sys/unix"

	"github.com/fedora-arm/arm-image-installer/pkg/board"
	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// ErrBootloaderNotFound indicates the u-boot binary is neither in the written
// image nor installed on the host.
var ErrBootloaderNotFound = errors.New("bootloader binary not found")

// Firmware locations: relative to the mounted root filesystem of the just
// written image, and on the host.
const (
	imageFirmwareDir = "usr/share/uboot"
	hostFirmwareDir  = "/usr/share/uboot"
)

// Install writes the board's u-boot binary to the raw device at the
// configured offset. Boards without a bootloader spec need no raw write
// (firmware is embedded in the image) and are skipped. A partial write to the
// boot sector region cannot be retried safely, so any failure is fatal.
func Install(logger *zap.Logger, boardName, devicePath, rootMount string, dryRun bool) error {
	logger = logger.With(logging.Component("uboot"))

	canonical := board.Resolve(boardName)

	spec := board.BootloaderSpec(canonical)
	if spec == nil {
		logger.Info("no u-boot installation required for board, skipping", zap.String("board", canonical))

		return nil
	}

	offset := spec.Seek * board.BlockSize

	if dryRun {
		// the image was never written, so the binary may legitimately be
		// absent from both candidate locations
		source, err := locate(logger, canonical, spec.Filename, rootMount)
		if err != nil {
			logger.Warn("u-boot binary not present yet, it would be searched in the written image and on the host",
				zap.String("filename", spec.Filename), zap.String("board", canonical))

			source = spec.Filename
		}

		logger.Info("would write u-boot to device", logging.DryRun(),
			zap.String("source", source), zap.String("device", devicePath), zap.Int64("offset", offset))

		return nil
	}

	source, err := locate(logger, canonical, spec.Filename, rootMount)
	if err != nil {
		return err
	}

	logger.Info("writing u-boot", zap.String("source", source),
		zap.String("device", devicePath), zap.Int64("offset", offset))

	uboot, err := os.ReadFile(source)
	if err != nil {
		return err
	}

	f, err := os.OpenFile(devicePath, os.O_RDWR|unix.O_CLOEXEC, 0o666)
	if err != nil {
		return err
	}

	defer f.Close() //nolint:errcheck

	n, err := f.WriteAt(uboot, offset)
	if err != nil {
		return fmt.Errorf("writing u-boot to %s at offset %d: %w", devicePath, offset, err)
	}

	// Sync before the device is detached so the boot sector region is durable.
	if err = f.Sync(); err != nil {
		return err
	}

	logger.Info("u-boot written", zap.Int("bytes", n))

	return nil
}

// locate searches the candidate firmware locations in order: the just
// written root filesystem first, then the host.
func locate(logger *zap.Logger, canonical, filename, rootMount string) (string, error) {
	candidates := []string{
		filepath.Join(rootMount, imageFirmwareDir, canonical, filename),
		filepath.Join(hostFirmwareDir, canonical, filename),
	}

	for _, candidate := range candidates {
		if _, err := os.Stat(candidate); err == nil {
			logger.Info("found u-boot binary", zap.String("path", candidate))

			return candidate, nil
		}
	}

	return "", fmt.Errorf("%w: %q for board %s (try: dnf install uboot-images-armv8)",
		ErrBootloaderNotFound, filename, canonical)
}
