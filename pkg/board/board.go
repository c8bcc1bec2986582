// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package board maps supported ARM single-board computers to the facts the
// installer needs: the second-stage bootloader binary, its write offset on
// raw media, and the default serial console.
package board

import (
	"strings"
)

// Canonical names referenced outside the tables.
const (
	RaspberryPi4 = "RaspberryPi4-64"
	RaspberryPi3 = "RaspberryPi3-64"
	ThinkpadX13s = "Thinkpad-X13s"
)

// BlockSize is the unit of the bootloader write offset.
const BlockSize = 1024

// Spec describes how a board's second-stage bootloader is written to raw media.
type Spec struct {
	// Filename of the u-boot binary under the per-board firmware directory.
	Filename string
	// Seek is the write offset in BlockSize blocks from the start of the device.
	Seek int64
}

// aliases is kept separate from the bootloader table so that alias resolution
// never shadows a canonical identity.
var aliases = map[string]string{
	"rpi4": RaspberryPi4,
	"pi4":  RaspberryPi4,
	"rpi3": RaspberryPi3,
	"pi3":  RaspberryPi3,
	"x13s": ThinkpadX13s,
}

// bootloaders maps canonical board names to their u-boot installation facts.
// A nil entry means the board needs no raw bootloader write (firmware is
// embedded in the image).
var bootloaders = map[string]*Spec{
	// Allwinner A64 family.
	"pine64_plus":      {Filename: "u-boot-sunxi-with-spl.bin", Seek: 8},
	"nanopi_a64":       {Filename: "u-boot-sunxi-with-spl.bin", Seek: 8},
	"bananapi_m64":     {Filename: "u-boot-sunxi-with-spl.bin", Seek: 8},
	"sopine_baseboard": {Filename: "u-boot-sunxi-with-spl.bin", Seek: 8},

	// Rockchip rk3399 family.
	"rockpro64-rk3399":  {Filename: "idbloader.img", Seek: 64},
	"nanopi-r4s-rk3399": {Filename: "idbloader.img", Seek: 64},
	"rock-pi-4-rk3399":  {Filename: "idbloader.img", Seek: 64},

	// TI AM625.
	"beagleplay": {Filename: "tiboot3.bin", Seek: 64},

	// Firmware ships inside the image, nothing to write.
	RaspberryPi4: nil,
	RaspberryPi3: nil,
	ThinkpadX13s: nil,
}

// Resolve maps a board alias to its canonical name. Unknown names resolve to
// themselves, so Resolve is idempotent.
func Resolve(name string) string {
	if canonical, ok := aliases[name]; ok {
		return canonical
	}

	return name
}

// BootloaderSpec returns the u-boot installation facts for a board, or nil if
// the board needs no raw bootloader write.
func BootloaderSpec(name string) *Spec {
	return bootloaders[Resolve(name)]
}

// DefaultConsole returns the serial console specifier for a board. The
// Raspberry Pi 4 routes its primary UART differently on IoT/Server images.
func DefaultConsole(name, imagePath string) string {
	if Resolve(name) == RaspberryPi4 {
		if strings.Contains(imagePath, "IoT") || strings.Contains(imagePath, "Server") {
			return "ttyS0,115200"
		}

		return "ttyS1,115200"
	}

	return "ttyAMA0,115200"
}
