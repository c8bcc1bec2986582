// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package mount provides scoped mount/unmount of a partition around an
// operation, guaranteeing the unmount runs on every exit path.
package mount

import (
	"fmt"
	"os"
	"strings"
	"time"

	"github.com/siderolabs/go-cmd/pkg/cmd"
	"github.com/siderolabs/go-retry/retry"
	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// Busy mounts are retried every 100ms over the course of 5 seconds.
const (
	retryTimeout = 5 * time.Second
	retryUnit    = 100 * time.Millisecond
)

// WithMount mounts the partition at target, runs body, and unmounts
// afterwards regardless of the body outcome. An unmount failure is logged and
// only returned when the body itself succeeded, so it never masks the
// original error. Under dry-run the mount calls are simulated and body still
// runs (dry-run aware itself).
func WithMount(logger *zap.Logger, partition, target string, dryRun bool, body func() error) (err error) {
	logger = logger.With(logging.Component("mount"))

	if dryRun {
		logger.Info("would mount partition", logging.DryRun(),
			zap.String("partition", partition), zap.String("target", target))

		defer logger.Info("would unmount partition", logging.DryRun(), zap.String("target", target))

		return body()
	}

	if err = os.MkdirAll(target, 0o755); err != nil {
		return fmt.Errorf("creating mount point %s: %w", target, err)
	}

	if err = runWithBusyRetry("mount", partition, target); err != nil {
		return fmt.Errorf("mounting %s at %s: %w", partition, target, err)
	}

	logger.Debug("mounted partition", zap.String("partition", partition), zap.String("target", target))

	defer func() {
		if umountErr := runWithBusyRetry("umount", target); umountErr != nil {
			logger.Warn("unmount failed", zap.String("target", target), zap.Error(umountErr))

			if err == nil {
				err = fmt.Errorf("unmounting %s: %w", target, umountErr)
			}

			return
		}

		logger.Debug("unmounted partition", zap.String("target", target))
	}()

	return body()
}

// runWithBusyRetry runs an external mount tool, retrying while the kernel
// still reports the target busy.
func runWithBusyRetry(name string, args ...string) error {
	return retry.Constant(retryTimeout, retry.WithUnits(retryUnit)).Retry(func() error {
		_, err := cmd.Run(name, args...)
		if err != nil {
			if strings.Contains(err.Error(), "busy") {
				return retry.ExpectedError(err)
			}

			return err
		}

		return nil
	})
}
