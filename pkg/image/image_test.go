// This Source Code Form is subject to the terms of the Mozilla Public
// License, v. 2.0. If a copy of the MPL was not distributed with this
// file, You can obtain one at http://mozilla.org/MPL/2.0/.

package image_test

import (
	"bytes"
	"crypto/rand"
	"os"
	"path/filepath"
	"testing"

	"github.com/klauspost/compress/zstd"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/ulikunitz/xz"
	"go.uber.org/zap"

	"github.com/fedora-arm/arm-image-installer/pkg/image"
)

func TestValidateFormat(t *testing.T) {
	for _, test := range []struct {
		path string

		expectedErr error
	}{
		{path: "Fedora-IoT-42.aarch64.raw.xz"},
		{path: "image.zst"},
		{path: "image.zstd"},
		{path: "image.raw"},
		{path: "image.img"},
		{path: "/tmp/some.dir/rawimage"},
		{path: "image.qcow2", expectedErr: image.ErrUnsupportedFormat},
		{path: "image.tar.gz", expectedErr: image.ErrUnsupportedFormat},
		{path: "image.iso", expectedErr: image.ErrUnsupportedFormat},
	} {
		t.Run(test.path, func(t *testing.T) {
			err := image.ValidateFormat(test.path)

			if test.expectedErr != nil {
				assert.ErrorIs(t, err, test.expectedErr)
			} else {
				assert.NoError(t, err)
			}
		})
	}
}

func TestIsIoT(t *testing.T) {
	assert.True(t, image.IsIoT("/images/Fedora-IoT-42.20250101.0.aarch64.raw.xz"))
	assert.False(t, image.IsIoT("/images/Fedora-Workstation-42-1.1.aarch64.raw.xz"))
	assert.False(t, image.IsIoT("/IoT-images/Fedora-Workstation-42-1.1.aarch64.raw.xz"))
}

// testPayload returns a payload larger than the copy buffers involved.
func testPayload(t *testing.T) []byte {
	t.Helper()

	payload := make([]byte, 1024*1024+37)

	_, err := rand.Read(payload)
	require.NoError(t, err)

	return payload
}

// sink creates an empty "device" file to write into.
func sink(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "device")
	require.NoError(t, os.WriteFile(path, nil, 0o644))

	return path
}

func TestWriteRaw(t *testing.T) {
	payload := testPayload(t)

	src := filepath.Join(t.TempDir(), "image.raw")
	require.NoError(t, os.WriteFile(src, payload, 0o644))

	dst := sink(t)

	require.NoError(t, image.Write(zap.NewNop(), src, dst, false))

	written, err := os.ReadFile(dst)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(payload, written))
}

func TestWriteXZ(t *testing.T) {
	payload := testPayload(t)

	var compressed bytes.Buffer

	w, err := xz.NewWriter(&compressed)
	require.NoError(t, err)

	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	src := filepath.Join(t.TempDir(), "image.raw.xz")
	require.NoError(t, os.WriteFile(src, compressed.Bytes(), 0o644))

	dst := sink(t)

	require.NoError(t, image.Write(zap.NewNop(), src, dst, false))

	written, err := os.ReadFile(dst)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(payload, written))
}

func TestWriteZstd(t *testing.T) {
	payload := testPayload(t)

	var compressed bytes.Buffer

	w, err := zstd.NewWriter(&compressed)
	require.NoError(t, err)

	_, err = w.Write(payload)
	require.NoError(t, err)
	require.NoError(t, w.Close())

	src := filepath.Join(t.TempDir(), "image.raw.zst")
	require.NoError(t, os.WriteFile(src, compressed.Bytes(), 0o644))

	dst := sink(t)

	require.NoError(t, image.Write(zap.NewNop(), src, dst, false))

	written, err := os.ReadFile(dst)
	require.NoError(t, err)

	assert.True(t, bytes.Equal(payload, written))
}

func TestWriteDryRun(t *testing.T) {
	src := filepath.Join(t.TempDir(), "image.raw")
	require.NoError(t, os.WriteFile(src, []byte("payload"), 0o644))

	dst := sink(t)

	require.NoError(t, image.Write(zap.NewNop(), src, dst, true))

	written, err := os.ReadFile(dst)
	require.NoError(t, err)

	assert.Empty(t, written)
}

func TestWriteUnsupportedFormat(t *testing.T) {
	err := image.Write(zap.NewNop(), "image.qcow2", sink(t), false)

	assert.ErrorIs(t, err, image.ErrUnsupportedFormat)
}
