// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// arm-image-installer writes ARM disk images to removable media and prepares
// them to boot on a specific board.
package main

import (
	"github.com/fedora-arm/arm-image-installer/cmd/arm-image-installer/cmd"
)

func main() {
	cmd.Execute()
}
