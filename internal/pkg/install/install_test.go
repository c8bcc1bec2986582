// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package install_test

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/internal/pkg/device"
	"github.com/fedora-arm/arm-image-installer/internal/pkg/install"
	"github.com/fedora-arm/arm-image-installer/pkg/board"
	"github.com/fedora-arm/arm-image-installer/pkg/image"
)

// The pipeline fails fast on validation errors, before anything destructive.

func baseOptions(t *testing.T) install.Options {
	t.Helper()

	imagePath := filepath.Join(t.TempDir(), "Fedora-IoT-42.raw")
	require.NoError(t, os.WriteFile(imagePath, []byte("image"), 0o644))

	return install.Options{
		ImagePath:  imagePath,
		Device:     "/dev/sdzzz",
		Board:      "pine64_plus",
		BoardsFile: filepath.Join(t.TempDir(), "no-such-list"),
	}
}

func TestRunUnsupportedBoard(t *testing.T) {
	opts := baseOptions(t)
	opts.Board = "no-such-board"

	boardsFile := filepath.Join(t.TempDir(), "SUPPORTED-BOARDS")
	require.NoError(t, os.WriteFile(boardsFile, []byte("Other Devices:\npine64_plus\n"), 0o644))
	opts.BoardsFile = boardsFile

	err := install.NewInstaller(zap.NewNop(), opts).Run()

	assert.ErrorIs(t, err, board.ErrUnsupportedBoard)
}

func TestRunUnsupportedFormat(t *testing.T) {
	opts := baseOptions(t)
	opts.ImagePath = "image.qcow2"

	err := install.NewInstaller(zap.NewNop(), opts).Run()

	assert.ErrorIs(t, err, image.ErrUnsupportedFormat)
}

func TestRunInvalidDevice(t *testing.T) {
	opts := baseOptions(t)
	opts.Device = "/dev/loop0"

	err := install.NewInstaller(zap.NewNop(), opts).Run()

	assert.ErrorIs(t, err, device.ErrInvalidDevice)
}

func TestRunDeviceNotFound(t *testing.T) {
	opts := baseOptions(t)

	err := install.NewInstaller(zap.NewNop(), opts).Run()

	assert.ErrorIs(t, err, device.ErrDeviceNotFound)
}
