// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package uboot_test

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/internal/pkg/uboot"
)

// fakeMedia creates a zero-filled "device" file large enough for the write.
func fakeMedia(t *testing.T, size int64) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "media")
	require.NoError(t, os.WriteFile(path, nil, 0o644))
	require.NoError(t, os.Truncate(path, size))

	return path
}

// stageFirmware places a u-boot binary into the fake root filesystem.
func stageFirmware(t *testing.T, rootMount, boardName, filename string, contents []byte) {
	t.Helper()

	dir := filepath.Join(rootMount, "usr/share/uboot", boardName)
	require.NoError(t, os.MkdirAll(dir, 0o755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, filename), contents, 0o644))
}

func TestInstall(t *testing.T) {
	firmware := bytes.Repeat([]byte{0xa5}, 2048)

	rootMount := t.TempDir()
	stageFirmware(t, rootMount, "pine64_plus", "u-boot-sunxi-with-spl.bin", firmware)

	media := fakeMedia(t, 32*1024)

	require.NoError(t, uboot.Install(zap.NewNop(), "pine64_plus", media, rootMount, false))

	written, err := os.ReadFile(media)
	require.NoError(t, err)

	// pine64_plus writes at 8 KiB-blocks from the start of the device
	offset := int64(8 * 1024)

	assert.True(t, bytes.Equal(make([]byte, offset), written[:offset]))
	assert.True(t, bytes.Equal(firmware, written[offset:offset+int64(len(firmware))]))
}

func TestInstallNoBootloaderNeeded(t *testing.T) {
	media := fakeMedia(t, 1024)

	// firmware embedded in the image, alias resolves the same way
	for _, name := range []string{"RaspberryPi4-64", "rpi4", "x13s"} {
		require.NoError(t, uboot.Install(zap.NewNop(), name, media, t.TempDir(), false))
	}

	written, err := os.ReadFile(media)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(make([]byte, 1024), written))
}

func TestInstallNotFound(t *testing.T) {
	err := uboot.Install(zap.NewNop(), "beagleplay", fakeMedia(t, 1024), t.TempDir(), false)

	assert.ErrorIs(t, err, uboot.ErrBootloaderNotFound)
}

func TestInstallDryRunMissingFirmware(t *testing.T) {
	// under dry-run nothing was written to the image, so the binary is
	// expected to be missing from both search paths; that must not be fatal
	require.NoError(t, uboot.Install(zap.NewNop(), "pine64_plus", "/dev/sdX", t.TempDir(), true))
}

func TestInstallDryRun(t *testing.T) {
	firmware := []byte("firmware")

	rootMount := t.TempDir()
	stageFirmware(t, rootMount, "rockpro64-rk3399", "idbloader.img", firmware)

	media := fakeMedia(t, 128*1024)

	require.NoError(t, uboot.Install(zap.NewNop(), "rockpro64-rk3399", media, rootMount, true))

	written, err := os.ReadFile(media)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(make([]byte, 128*1024), written))
}
