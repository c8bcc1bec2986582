// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package rootconfig mutates files inside the mounted root filesystem:
// SSH key injection, root password removal, and the SELinux relabel marker.
package rootconfig

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/internal/pkg/fsutil"
	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// Paths inside the mounted root filesystem.
const (
	sshDirClassic = "root/.ssh"
	sshDirIoT     = "var/home/root/.ssh"
	shadowFile    = "etc/shadow"
	relabelMarker = ".autorelabel"
)

// keyMarker is prepended to every injected SSH key.
const keyMarker = "# Added by arm-image-installer"

// Options is the subset of the installation request applied to the root filesystem.
type Options struct {
	SSHKeyPath         string
	RemoveRootPassword bool
	Relabel            bool
	IoT                bool
	DryRun             bool
}

// Apply performs the post-write root filesystem configuration in fixed order:
// SSH key, root password removal, relabel marker. Steps are independent; each
// is a no-op when its option is unset.
func Apply(logger *zap.Logger, rootMount string, opts Options) error {
	logger = logger.With(logging.Component("rootconfig"))

	logger.Info("applying post-write configuration")

	if opts.SSHKeyPath != "" {
		if err := injectSSHKey(logger, rootMount, opts); err != nil {
			return err
		}
	}

	if opts.RemoveRootPassword {
		if err := removeRootPassword(logger, rootMount, opts.DryRun); err != nil {
			return err
		}
	}

	if opts.Relabel {
		if err := createRelabelMarker(logger, rootMount, opts.DryRun); err != nil {
			return err
		}
	}

	return nil
}

// injectSSHKey appends the public key to root's authorized_keys. Existing
// keys are not deduplicated.
func injectSSHKey(logger *zap.Logger, rootMount string, opts Options) error {
	sshDir := filepath.Join(rootMount, sshDirClassic)
	if opts.IoT {
		sshDir = filepath.Join(rootMount, sshDirIoT)
	}

	authorizedKeys := filepath.Join(sshDir, "authorized_keys")

	key, err := os.ReadFile(opts.SSHKeyPath)
	if err != nil {
		return fmt.Errorf("reading SSH public key: %w", err)
	}

	if opts.DryRun {
		logger.Info("would inject SSH key", logging.DryRun(), zap.String("path", authorizedKeys))

		return nil
	}

	if err = os.MkdirAll(sshDir, 0o700); err != nil {
		return err
	}

	f, err := os.OpenFile(authorizedKeys, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o600)
	if err != nil {
		return err
	}

	if _, err = fmt.Fprintf(f, "%s\n%s\n", keyMarker, strings.TrimSpace(string(key))); err != nil {
		f.Close() //nolint:errcheck

		return err
	}

	if err = f.Close(); err != nil {
		return err
	}

	if err = os.Chmod(authorizedKeys, 0o600); err != nil {
		return err
	}

	logger.Info("SSH public key injected", zap.String("path", authorizedKeys))

	return nil
}

// removeRootPassword blanks the password field of the root entry in etc/shadow.
func removeRootPassword(logger *zap.Logger, rootMount string, dryRun bool) error {
	shadow := filepath.Join(rootMount, shadowFile)

	if dryRun {
		logger.Info("would remove root password", logging.DryRun(), zap.String("path", shadow))

		return nil
	}

	if err := fsutil.RewriteLines(shadow, BlankRootPassword); err != nil {
		return fmt.Errorf("rewriting %s: %w", shadow, err)
	}

	logger.Info("root password removed")

	return nil
}

// BlankRootPassword clears the password field of a shadow(5) line whose
// account field is exactly root. Every other line passes through unchanged.
func BlankRootPassword(line string) string {
	fields := strings.Split(line, ":")
	if len(fields) < 2 || fields[0] != "root" {
		return line
	}

	fields[1] = ""

	return strings.Join(fields, ":")
}

// createRelabelMarker creates the empty marker that triggers a full SELinux
// relabel on first boot. Recreating an existing marker is harmless.
func createRelabelMarker(logger *zap.Logger, rootMount string, dryRun bool) error {
	marker := filepath.Join(rootMount, relabelMarker)

	if dryRun {
		logger.Info("would create SELinux relabel marker", logging.DryRun(), zap.String("path", marker))

		return nil
	}

	f, err := os.OpenFile(marker, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}

	if err = f.Close(); err != nil {
		return err
	}

	logger.Info("SELinux relabel marker created", zap.String("path", marker))

	return nil
}
