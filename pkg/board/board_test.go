// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package board_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/fedora-arm/arm-image-installer/pkg/board"
)

func TestResolve(t *testing.T) {
	for _, test := range []struct {
		name     string
		expected string
	}{
		{name: "rpi4", expected: "RaspberryPi4-64"},
		{name: "pi4", expected: "RaspberryPi4-64"},
		{name: "rpi3", expected: "RaspberryPi3-64"},
		{name: "pi3", expected: "RaspberryPi3-64"},
		{name: "x13s", expected: "Thinkpad-X13s"},
		{name: "pine64_plus", expected: "pine64_plus"},
		{name: "no-such-board", expected: "no-such-board"},
		{name: "", expected: ""},
	} {
		t.Run(test.name, func(t *testing.T) {
			resolved := board.Resolve(test.name)

			assert.Equal(t, test.expected, resolved)

			// resolution is idempotent
			assert.Equal(t, resolved, board.Resolve(resolved))
		})
	}
}

func TestBootloaderSpec(t *testing.T) {
	for _, test := range []struct {
		name string

		expectedFilename string
		expectedSeek     int64
	}{
		{name: "pine64_plus", expectedFilename: "u-boot-sunxi-with-spl.bin", expectedSeek: 8},
		{name: "sopine_baseboard", expectedFilename: "u-boot-sunxi-with-spl.bin", expectedSeek: 8},
		{name: "rockpro64-rk3399", expectedFilename: "idbloader.img", expectedSeek: 64},
		{name: "beagleplay", expectedFilename: "tiboot3.bin", expectedSeek: 64},
	} {
		t.Run(test.name, func(t *testing.T) {
			spec := board.BootloaderSpec(test.name)

			require.NotNil(t, spec)
			assert.Equal(t, test.expectedFilename, spec.Filename)
			assert.Equal(t, test.expectedSeek, spec.Seek)
		})
	}
}

func TestBootloaderSpecEmbedded(t *testing.T) {
	// boards with firmware embedded in the image need no raw write,
	// aliases resolve to the same answer
	for _, name := range []string{"RaspberryPi4-64", "rpi4", "pi3", "Thinkpad-X13s", "x13s"} {
		assert.Nil(t, board.BootloaderSpec(name), name)
	}

	// unknown boards have no spec either
	assert.Nil(t, board.BootloaderSpec("no-such-board"))
}

func TestDefaultConsole(t *testing.T) {
	for _, test := range []struct {
		name      string
		boardName string
		imagePath string

		expected string
	}{
		{
			name:      "rpi4 workstation",
			boardName: "RaspberryPi4-64",
			imagePath: "Fedora-Workstation-42-1.1.aarch64.raw.xz",
			expected:  "ttyS1,115200",
		},
		{
			name:      "rpi4 IoT",
			boardName: "RaspberryPi4-64",
			imagePath: "Fedora-IoT-42.20250101.0.aarch64.raw.xz",
			expected:  "ttyS0,115200",
		},
		{
			name:      "rpi4 Server via alias",
			boardName: "rpi4",
			imagePath: "Fedora-Server-42-1.1.aarch64.raw.xz",
			expected:  "ttyS0,115200",
		},
		{
			name:      "pine64",
			boardName: "pine64_plus",
			imagePath: "Fedora-IoT-42.20250101.0.aarch64.raw.xz",
			expected:  "ttyAMA0,115200",
		},
	} {
		t.Run(test.name, func(t *testing.T) {
			assert.Equal(t, test.expected, board.DefaultConsole(test.boardName, test.imagePath))
		})
	}
}
