// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package bootconfig

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"

	"go.uber.org/zap"
	"gopkg.in/ini.v1"

	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// Wi-Fi security methods accepted by the NetworkManager keyfile.
const (
	WifiSecurityWPAPSK = "wpa-psk"
	WifiSecuritySAE    = "sae"
)

func init() {
	// keyfiles use key=value without the spaces ini.v1 adds by default;
	// PrettyFormat is package-global state, set it exactly once
	ini.PrettyFormat = false
}

// writeWifiProfile writes a complete NetworkManager keyfile to the boot
// filesystem. The pre-shared key is embedded in cleartext, so the file is
// restricted to owner-only access.
func writeWifiProfile(logger *zap.Logger, bootMount string, opts Options) error {
	path := filepath.Join(bootMount, wifiProfileFile)

	if opts.DryRun {
		logger.Info("would write Wi-Fi profile", logging.DryRun(),
			zap.String("path", path), zap.String("ssid", opts.WifiSSID))

		return nil
	}

	profile, err := wifiProfile(opts)
	if err != nil {
		return fmt.Errorf("building Wi-Fi profile: %w", err)
	}

	if err = os.WriteFile(path, profile, 0o600); err != nil {
		return err
	}

	if err = os.Chmod(path, 0o600); err != nil {
		return err
	}

	logger.Info("Wi-Fi profile written", zap.String("path", path), zap.String("ssid", opts.WifiSSID))

	return nil
}

// wifiProfile renders the NetworkManager keyfile for the requested network.
func wifiProfile(opts Options) ([]byte, error) {
	cfg := ini.Empty()

	connection := cfg.Section("connection")
	connection.Key("id").SetValue("WiFi connection")
	connection.Key("type").SetValue("wifi")
	connection.Key("interface-name").SetValue("wlan0")

	cfg.Section("wifi").Key("ssid").SetValue(opts.WifiSSID)

	if opts.WifiPassword != "" {
		security := cfg.Section("wifi-security")
		security.Key("key-mgmt").SetValue(opts.WifiSecurity)
		security.Key("psk").SetValue(opts.WifiPassword)
	}

	cfg.Section("ipv4").Key("method").SetValue("auto")
	cfg.Section("ipv6").Key("method").SetValue("auto")

	var buf bytes.Buffer

	if _, err := cfg.WriteTo(&buf); err != nil {
		return nil, err
	}

	return buf.Bytes(), nil
}
