// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

// Package image streams a (possibly compressed) disk image onto raw media.
package image

import (
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/dustin/go-humanize"
	"github.com/klauspost/compress/zstd"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/pkg/logging"
)

// ErrUnsupportedFormat indicates the image extension is not recognized.
var ErrUnsupportedFormat = errors.New("unsupported image format")

// IsIoT reports whether the image is an IoT variant build, identified by the
// Fedora image naming convention.
func IsIoT(imagePath string) bool {
	return strings.Contains(filepath.Base(imagePath), "IoT")
}

// ValidateFormat fails unless the image has a recognized compressed or raw
// extension. A name without any extension is treated as a raw image.
func ValidateFormat(imagePath string) error {
	switch {
	case strings.HasSuffix(imagePath, ".xz"),
		strings.HasSuffix(imagePath, ".zst"),
		strings.HasSuffix(imagePath, ".zstd"),
		strings.HasSuffix(imagePath, ".raw"),
		strings.HasSuffix(imagePath, ".img"),
		!strings.Contains(filepath.Base(imagePath), "."):
		return nil
	default:
		return fmt.Errorf("%w: %s (expected .xz, .zst, .raw, .img or a raw image without extension)",
			ErrUnsupportedFormat, filepath.Base(imagePath))
	}
}

// stream couples a decompressing reader with the closers behind it.
type stream struct {
	io.Reader

	closers []func() error
}

func (s *stream) Close() error {
	var err error

	for _, closeFn := range s.closers {
		err = errors.Join(err, closeFn())
	}

	return err
}

// open returns a byte stream of the uncompressed image contents.
func open(imagePath string) (io.ReadCloser, error) {
	f, err := os.Open(imagePath)
	if err != nil {
		return nil, err
	}

	switch {
	case strings.HasSuffix(imagePath, ".xz"):
		r, err := xz.NewReader(f)
		if err != nil {
			f.Close() //nolint:errcheck

			return nil, fmt.Errorf("opening xz stream: %w", err)
		}

		return &stream{Reader: r, closers: []func() error{f.Close}}, nil
	case strings.HasSuffix(imagePath, ".zst"), strings.HasSuffix(imagePath, ".zstd"):
		d, err := zstd.NewReader(f)
		if err != nil {
			f.Close() //nolint:errcheck

			return nil, fmt.Errorf("opening zstd stream: %w", err)
		}

		return &stream{Reader: d, closers: []func() error{
			func() error { d.Close(); return nil },
			f.Close,
		}}, nil
	default:
		return f, nil
	}
}

// Write streams the image verbatim onto the device. The write is destructive
// and not resumable: a mid-copy failure leaves the device partially written
// and is surfaced as fatal.
func Write(logger *zap.Logger, imagePath, devicePath string, dryRun bool) error {
	if err := ValidateFormat(imagePath); err != nil {
		return err
	}

	if dryRun {
		logger.Info("would write image directly to device", logging.DryRun(),
			zap.String("image", imagePath), zap.String("device", devicePath))

		return nil
	}

	logger.Info("streaming image to device", zap.String("image", imagePath), zap.String("device", devicePath))

	src, err := open(imagePath)
	if err != nil {
		return err
	}

	defer src.Close() //nolint:errcheck

	dst, err := os.OpenFile(devicePath, os.O_WRONLY, 0)
	if err != nil {
		return err
	}

	defer dst.Close() //nolint:errcheck

	n, err := io.Copy(dst, src)
	if err != nil {
		return fmt.Errorf("image write to %s failed after %s, device contents are indeterminate: %w",
			devicePath, humanize.IBytes(uint64(n)), err)
	}

	if err = dst.Sync(); err != nil {
		return fmt.Errorf("syncing %s: %w", devicePath, err)
	}

	logger.Info("image written", zap.String("size", humanize.IBytes(uint64(n))))

	return nil
}
