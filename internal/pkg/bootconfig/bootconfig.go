// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package bootconfig mutates files inside the mounted boot filesystem:
// kernel command-line entries, the ignition firstboot marker, and the Wi-Fi
// network profile.
package bootconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/siderolabs/go-procfs/procfs"
	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/internal/pkg/fsutil"
	"github.com/fedora-arm/arm-image-installer/pkg/board"
	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// Paths inside the mounted boot filesystem.
const (
	entriesDir       = "loader/entries"
	ignitionFile     = "ignition.firstboot"
	wifiProfileFile  = "wifi-credentials.nmconnection"
	optionsKeyword   = "options"
	sysrqEnableToken = "sysrq_always_enabled=1"
)

// Options is the subset of the installation request applied to the boot filesystem.
type Options struct {
	Board        string
	ImagePath    string
	ShowBoot     bool
	AddConsole   bool
	ExtraArgs    string
	EnableSysrq  bool
	IgnitionURL  string
	WifiSSID     string
	WifiPassword string
	WifiSecurity string
	IoT          bool
	DryRun       bool
}

// Apply performs the boot filesystem configuration: kernel command-line
// rewrite, firstboot provisioning URL injection, Wi-Fi profile.
func Apply(logger *zap.Logger, bootMount string, opts Options) error {
	logger = logger.With(logging.Component("bootconfig"))

	logger.Info("applying bootloader configuration")

	if err := rewriteEntries(logger, bootMount, opts); err != nil {
		return err
	}

	if opts.IgnitionURL != "" {
		if err := injectIgnitionURL(logger, bootMount, opts); err != nil {
			return err
		}
	}

	if opts.WifiSSID != "" {
		if err := writeWifiProfile(logger, bootMount, opts); err != nil {
			return err
		}
	}

	return nil
}

// rewriteEntries rewrites the options line of every boot loader entry file.
// A missing entries directory means the boot layout differs from expectation
// and is only a warning.
func rewriteEntries(logger *zap.Logger, bootMount string, opts Options) error {
	if !opts.ShowBoot && !opts.AddConsole && opts.ExtraArgs == "" && !opts.EnableSysrq {
		return nil
	}

	dir := filepath.Join(bootMount, entriesDir)

	if opts.DryRun {
		logger.Info("would rewrite boot loader entries", logging.DryRun(), zap.String("dir", dir))

		return nil
	}

	entries, err := os.ReadDir(dir)
	if err != nil {
		logger.Warn("boot entries directory not found, skipping kernel argument injection",
			zap.String("dir", dir))

		return nil //nolint:nilerr
	}

	console := ""
	if opts.AddConsole {
		console = board.DefaultConsole(opts.Board, opts.ImagePath)
	}

	for _, entry := range entries {
		if entry.IsDir() {
			continue
		}

		path := filepath.Join(dir, entry.Name())

		err = fsutil.RewriteLines(path, func(line string) string {
			return RewriteOptions(line, console, opts.ExtraArgs, opts.ShowBoot, opts.EnableSysrq)
		})
		if err != nil {
			return fmt.Errorf("rewriting boot entry %s: %w", path, err)
		}
	}

	logger.Info("boot loader kernel arguments updated")

	return nil
}

// RewriteOptions mutates a boot loader entry options line. Mutation order is
// fixed: strip quiet-boot tokens, append the console specifier (skipped when
// a console= argument is already present), append extra arguments verbatim,
// append the sysrq enable token. Non-options lines pass through unchanged.
func RewriteOptions(line, console, extraArgs string, showBoot, sysrq bool) string {
	if !strings.HasPrefix(line, optionsKeyword) {
		return line
	}

	if showBoot {
		line = strings.ReplaceAll(line, " rhgb", "")
		line = strings.ReplaceAll(line, " quiet", "")
	}

	if console != "" && !hasConsole(line) {
		line += " console=" + console
	}

	if extraArgs != "" {
		line += " " + extraArgs
	}

	if sysrq {
		line += " " + sysrqEnableToken
	}

	return line
}

// hasConsole reports whether the options line already carries a console argument.
func hasConsole(line string) bool {
	cmdline := procfs.NewCmdline(strings.TrimSpace(strings.TrimPrefix(line, optionsKeyword)))

	return cmdline.Get("console").First() != nil
}

// injectIgnitionURL appends the firstboot-enable and config-URL arguments to
// the ignition firstboot marker. Only IoT images run ignition; for any other
// image the provided URL is inapplicable and skipped with a warning.
func injectIgnitionURL(logger *zap.Logger, bootMount string, opts Options) error {
	if !opts.IoT {
		logger.Warn("ignition URL provided but image is not an IoT variant, skipping")

		return nil
	}

	path := filepath.Join(bootMount, ignitionFile)

	if opts.DryRun {
		logger.Info("would inject ignition URL", logging.DryRun(),
			zap.String("path", path), zap.String("url", opts.IgnitionURL))

		return nil
	}

	info, err := os.Stat(path)
	if err != nil {
		logger.Warn("ignition firstboot file not found, skipping ignition injection",
			zap.String("path", path))

		return nil //nolint:nilerr
	}

	contents, err := os.ReadFile(path)
	if err != nil {
		return err
	}

	updated := strings.ReplaceAll(string(contents), "true",
		"true ignition.firstboot=1 ignition.config.url="+opts.IgnitionURL)

	if err = fsutil.Replace(path, updated, info.Mode()); err != nil {
		return err
	}

	logger.Info("ignition URL injected", zap.String("url", opts.IgnitionURL))

	return nil
}
